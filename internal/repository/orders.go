package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/voxelpay/payments/internal/models"
)

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id int64) (*models.Order, error)
	// FindByDetail looks up an order by a dotted details path, e.g.
	// ("paystack.reference", "vx_42_abc"). Missing orders return
	// models.ErrNotFound.
	FindByDetail(ctx context.Context, path, value string) (*models.Order, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*models.Order, error)
	Create(ctx context.Context, order *models.Order) error
	Save(ctx context.Context, order *models.Order) error
	// UpdateStatusIf transitions the order to the target status only when its
	// current status is one of the listed ones. Returns false when the guard
	// did not match; used as the first-writer-wins guard between webhook and
	// return-URL races.
	UpdateStatusIf(ctx context.Context, id int64, from []models.OrderStatus, to models.OrderStatus) (bool, error)
}

type orderRepository struct {
	db Querier
}

// NewOrderRepository creates a new OrderRepository
func NewOrderRepository(q Querier) OrderRepository {
	return &orderRepository{db: q}
}

const orderColumns = `id, customer_id, status, currency, customer_email, transaction_id, details, items, created_at, updated_at`

func (r *orderRepository) scanOrder(row *sql.Row) (*models.Order, error) {
	var order models.Order
	var details, items []byte

	err := row.Scan(
		&order.ID,
		&order.CustomerID,
		&order.Status,
		&order.Currency,
		&order.CustomerEmail,
		&order.TransactionID,
		&details,
		&items,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	if err := json.Unmarshal(details, &order.Details); err != nil {
		return nil, fmt.Errorf("failed to decode order details: %w", err)
	}
	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("failed to decode order items: %w", err)
	}

	return &order, nil
}

// FindByID retrieves an order by its id
func (r *orderRepository) FindByID(ctx context.Context, id int64) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return r.scanOrder(r.db.QueryRowContext(ctx, query, id))
}

// FindByIDForUpdate retrieves an order by id, locking the row for the
// duration of the surrounding transaction
func (r *orderRepository) FindByIDForUpdate(ctx context.Context, id int64) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	return r.scanOrder(r.db.QueryRowContext(ctx, query, id))
}

// FindByDetail retrieves an order by a provider correlation key stored in
// the details bag, using a JSONB containment query served by the GIN index.
func (r *orderRepository) FindByDetail(ctx context.Context, path, value string) (*models.Order, error) {
	needle, err := detailContainment(path, value)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE details @> $1 LIMIT 1`
	return r.scanOrder(r.db.QueryRowContext(ctx, query, needle))
}

// FindByTransactionID retrieves an order by its provider transaction id
func (r *orderRepository) FindByTransactionID(ctx context.Context, transactionID string) (*models.Order, error) {
	if transactionID == "" {
		return nil, models.ErrNotFound
	}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE transaction_id = $1 LIMIT 1`
	return r.scanOrder(r.db.QueryRowContext(ctx, query, transactionID))
}

// Create inserts a new order and fills in its generated id and timestamps
func (r *orderRepository) Create(ctx context.Context, order *models.Order) error {
	details, items, err := encodeOrder(order)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO orders (customer_id, status, currency, customer_email, transaction_id, details, items)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err = r.db.QueryRowContext(ctx, query,
		order.CustomerID,
		order.Status,
		order.Currency,
		order.CustomerEmail,
		order.TransactionID,
		details,
		items,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

// Save persists the order's status, transaction id, details and items
func (r *orderRepository) Save(ctx context.Context, order *models.Order) error {
	details, items, err := encodeOrder(order)
	if err != nil {
		return err
	}

	query := `
		UPDATE orders
		SET status = $2,
		    transaction_id = $3,
		    details = $4,
		    items = $5,
		    updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, order.ID, order.Status, order.TransactionID, details, items)
	if err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return models.ErrNotFound
	}

	return nil
}

// UpdateStatusIf performs a conditional status transition.
func (r *orderRepository) UpdateStatusIf(ctx context.Context, id int64, from []models.OrderStatus, to models.OrderStatus) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("at least one source status is required")
	}

	placeholders := make([]string, len(from))
	args := []any{id, to}
	for i, status := range from {
		placeholders[i] = fmt.Sprintf("$%d", i+3)
		args = append(args, status)
	}

	query := fmt.Sprintf(`
		UPDATE orders
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status IN (%s)
	`, strings.Join(placeholders, ", "))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func encodeOrder(order *models.Order) (details, items []byte, err error) {
	if order.Details == nil {
		order.Details = map[string]any{}
	}
	details, err = json.Marshal(order.Details)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode order details: %w", err)
	}

	if order.Items == nil {
		order.Items = []models.OrderItem{}
	}
	items, err = json.Marshal(order.Items)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode order items: %w", err)
	}

	return details, items, nil
}

// detailContainment builds the nested JSON document for a @> containment
// query from a dotted path, e.g. ("paypal.order_id", "X") ->
// {"paypal":{"order_id":"X"}}.
func detailContainment(path, value string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("detail path cannot be empty")
	}

	parts := strings.Split(path, ".")
	var doc any = value
	for i := len(parts) - 1; i >= 0; i-- {
		doc = map[string]any{parts[i]: doc}
	}

	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode detail query: %w", err)
	}
	return encoded, nil
}
