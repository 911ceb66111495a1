package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/voxelpay/payments/internal/models"
)

// VendorRepository defines the interface for vendor payout-connection data access
type VendorRepository interface {
	Find(ctx context.Context, vendorID int64, provider string) (*models.VendorConnection, error)
	Upsert(ctx context.Context, conn *models.VendorConnection) error
	Delete(ctx context.Context, vendorID int64, provider string) error
}

type vendorRepository struct {
	db Querier
}

// NewVendorRepository creates a new VendorRepository
func NewVendorRepository(q Querier) VendorRepository {
	return &vendorRepository{db: q}
}

// Find retrieves a vendor's connection for one provider
func (r *vendorRepository) Find(ctx context.Context, vendorID int64, provider string) (*models.VendorConnection, error) {
	query := `
		SELECT vendor_id, provider, access_token, refresh_token, subaccount_code,
		       payout_email, merchant_id, expires_at, created_at, updated_at
		FROM vendor_connections
		WHERE vendor_id = $1 AND provider = $2
	`

	var conn models.VendorConnection
	err := r.db.QueryRowContext(ctx, query, vendorID, provider).Scan(
		&conn.VendorID,
		&conn.Provider,
		&conn.AccessToken,
		&conn.RefreshToken,
		&conn.SubaccountCode,
		&conn.PayoutEmail,
		&conn.MerchantID,
		&conn.ExpiresAt,
		&conn.CreatedAt,
		&conn.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find vendor connection: %w", err)
	}

	return &conn, nil
}

// Upsert creates or replaces a vendor's connection for one provider
func (r *vendorRepository) Upsert(ctx context.Context, conn *models.VendorConnection) error {
	query := `
		INSERT INTO vendor_connections (
			vendor_id, provider, access_token, refresh_token, subaccount_code,
			payout_email, merchant_id, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (vendor_id, provider) DO UPDATE
		SET access_token = EXCLUDED.access_token,
		    refresh_token = EXCLUDED.refresh_token,
		    subaccount_code = EXCLUDED.subaccount_code,
		    payout_email = EXCLUDED.payout_email,
		    merchant_id = EXCLUDED.merchant_id,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		conn.VendorID,
		conn.Provider,
		conn.AccessToken,
		conn.RefreshToken,
		conn.SubaccountCode,
		conn.PayoutEmail,
		conn.MerchantID,
		conn.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert vendor connection: %w", err)
	}

	return nil
}

// Delete removes a vendor's connection for one provider
func (r *vendorRepository) Delete(ctx context.Context, vendorID int64, provider string) error {
	query := `DELETE FROM vendor_connections WHERE vendor_id = $1 AND provider = $2`

	if _, err := r.db.ExecContext(ctx, query, vendorID, provider); err != nil {
		return fmt.Errorf("failed to delete vendor connection: %w", err)
	}

	return nil
}
