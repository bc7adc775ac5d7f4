package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeRange(t *testing.T) {
	for _, s := range []string{"1m", " 3M ", "6m"} {
		_, err := ParseTimeRange(s)
		assert.NoError(t, err, "input %q", s)
	}

	_, err := ParseTimeRange("2y")
	assert.Error(t, err)
	_, err = ParseTimeRange("")
	assert.Error(t, err)
}

func TestTimeRangeDays(t *testing.T) {
	assert.Equal(t, 30, Range1M.Days())
	assert.Equal(t, 90, Range3M.Days())
	assert.Equal(t, 180, Range6M.Days())
}

func TestStockRequestValidate(t *testing.T) {
	valid := &StockRequest{Symbols: []string{"TQQQ"}, TimeRange: "1m"}
	require.NoError(t, valid.Validate())

	assert.Error(t, (&StockRequest{TimeRange: "1m"}).Validate(), "symbols required")
	assert.Error(t, (&StockRequest{Symbols: []string{" "}, TimeRange: "1m"}).Validate(), "blank ticker rejected")
	assert.Error(t, (&StockRequest{Symbols: []string{"TQQQ"}, TimeRange: "1y"}).Validate(), "unknown range rejected")
}

func TestProviderQuoteIsZero(t *testing.T) {
	assert.True(t, ProviderQuote{}.IsZero())
	assert.True(t, ProviderQuote{Open: 10}.IsZero(), "a quote without a price is unusable")
	assert.False(t, ProviderQuote{Price: 10}.IsZero())
}
