package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDecimalString(t *testing.T) {
	assert.Equal(t, "19.99", ToDecimalString(1999))
	assert.Equal(t, "0.00", ToDecimalString(0))
	assert.Equal(t, "0.01", ToDecimalString(1))
	assert.Equal(t, "100.00", ToDecimalString(10000))
	assert.Equal(t, "-5.50", ToDecimalString(-550))
}

func TestFromDecimalString(t *testing.T) {
	t.Run("exact amounts", func(t *testing.T) {
		cents, err := FromDecimalString("19.99")
		require.NoError(t, err)
		assert.Equal(t, int64(1999), cents)

		cents, err = FromDecimalString("0")
		require.NoError(t, err)
		assert.Equal(t, int64(0), cents)

		cents, err = FromDecimalString("100")
		require.NoError(t, err)
		assert.Equal(t, int64(10000), cents)
	})

	t.Run("rounds half up beyond two places", func(t *testing.T) {
		cents, err := FromDecimalString("19.999")
		require.NoError(t, err)
		assert.Equal(t, int64(2000), cents)

		cents, err = FromDecimalString("19.994")
		require.NoError(t, err)
		assert.Equal(t, int64(1999), cents)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := FromDecimalString("19,99")
		assert.Error(t, err)

		_, err = FromDecimalString("")
		assert.Error(t, err)
	})
}

func TestFromDecimal(t *testing.T) {
	assert.Equal(t, int64(1999), FromDecimal(19.99))
	assert.Equal(t, int64(2000), FromDecimal(19.995))
	assert.Equal(t, int64(0), FromDecimal(0))
}

func TestRoundTrip(t *testing.T) {
	for _, cents := range []int64{0, 1, 99, 100, 1999, 123456789} {
		parsed, err := FromDecimalString(ToDecimalString(cents))
		require.NoError(t, err)
		assert.Equal(t, cents, parsed)
	}
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(2000), ToMinorUnits(2000))
	assert.Equal(t, int64(2000), FromMinorUnits(2000))
	assert.Equal(t, int64(2000), MinorUnitsFromDecimal(19.999))
	assert.Equal(t, "20.00", DecimalFromMinorUnits(2000))
}
