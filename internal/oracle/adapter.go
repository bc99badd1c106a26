// Package oracle adapts external price feeds to the unit price the
// registry charges at mint time.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"reflights/internal/domain/payment"
)

var (
	ErrInvalidAnswer = errors.New("oracle: invalid answer")
	ErrStaleAnswer   = errors.New("oracle: stale answer")
)

// Answer is a raw feed reading: Value scaled by 10^Decimals.
type Answer struct {
	Value     int64     `json:"answer"`
	Decimals  uint8     `json:"decimals"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Feed interface {
	Latest(ctx context.Context) (Answer, error)
}

// Adapter normalizes feed answers to a fixed number of decimals.
type Adapter struct {
	feed      Feed
	precision uint8
	maxAge    time.Duration
	now       func() time.Time
}

// NewAdapter returns prices with precision decimals. A zero maxAge accepts
// answers of any age.
func NewAdapter(feed Feed, precision uint8, maxAge time.Duration) *Adapter {
	return &Adapter{
		feed:      feed,
		precision: precision,
		maxAge:    maxAge,
		now:       time.Now,
	}
}

func (a *Adapter) CurrentUnitPrice(ctx context.Context) (payment.Amount, error) {
	ans, err := a.feed.Latest(ctx)
	if err != nil {
		return 0, fmt.Errorf("read price feed: %w", err)
	}
	if ans.Value <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidAnswer, ans.Value)
	}
	if a.maxAge > 0 && a.now().Sub(ans.UpdatedAt) > a.maxAge {
		return 0, fmt.Errorf("%w: updated at %s", ErrStaleAnswer, ans.UpdatedAt.Format(time.RFC3339))
	}
	return Normalize(ans.Value, ans.Decimals, a.precision)
}

// Normalize rescales value from one decimal precision to another.
// Scaling down truncates toward zero.
func Normalize(value int64, from, to uint8) (payment.Amount, error) {
	switch {
	case from == to:
		return payment.Amount(value), nil
	case from > to:
		factor := pow10(from - to)
		if factor == 0 {
			return 0, nil
		}
		return payment.Amount(value / factor), nil
	default:
		factor := pow10(to - from)
		if factor == 0 || value > math.MaxInt64/factor || value < math.MinInt64/factor {
			return 0, fmt.Errorf("%w: %d overflows at %d decimals", ErrInvalidAnswer, value, to)
		}
		return payment.Amount(value * factor), nil
	}
}

// pow10 returns 10^n, or 0 when it does not fit in int64.
func pow10(n uint8) int64 {
	if n > 18 {
		return 0
	}
	p := int64(1)
	for i := uint8(0); i < n; i++ {
		p *= 10
	}
	return p
}
