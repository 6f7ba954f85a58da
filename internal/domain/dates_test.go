package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCeilDays(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, CeilDays(base, base))
	assert.Equal(t, 0, CeilDays(base, base.Add(-time.Hour)))
	assert.Equal(t, 1, CeilDays(base, base.Add(time.Minute)))
	assert.Equal(t, 1, CeilDays(base, base.Add(24*time.Hour)))
	assert.Equal(t, 2, CeilDays(base, base.Add(25*time.Hour)))
	assert.Equal(t, 7, CeilDays(base, base.AddDate(0, 0, 7)))
}

func TestDateOf(t *testing.T) {
	almaty := time.FixedZone("UTC+5", 5*60*60)

	// 20:30 UTC on May 31 is already June 1 at UTC+5.
	instant := time.Date(2024, 5, 31, 20, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), DateOf(instant, almaty))
	assert.Equal(t, time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC), DateOf(instant, nil))
}

func TestAmountsMatch(t *testing.T) {
	m := decimal.RequireFromString
	assert.True(t, AmountsMatch(m("100.00"), m("100.00")))
	assert.True(t, AmountsMatch(m("100.00"), m("100.01")))
	assert.True(t, AmountsMatch(m("99.99"), m("100.00")))
	assert.False(t, AmountsMatch(m("100.00"), m("100.02")))
	assert.True(t, SumAmounts(m("10.10"), m("0.90"), m("89")).Equal(m("100")))
	assert.True(t, SumAmounts().IsZero())
}
