package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// Range is a [Low, High] dollar amount. Both bounds are carried through every
// additive stage so the estimate never collapses to a single point before the
// final rounding.
type Range struct {
	Low  decimal.Decimal
	High decimal.Decimal
}

// NewRange builds a Range from float bounds.
func NewRange(low, high float64) Range {
	return Range{Low: decimal.NewFromFloat(low), High: decimal.NewFromFloat(high)}
}

// Add sums two ranges bound by bound.
func (r Range) Add(o Range) Range {
	return Range{Low: r.Low.Add(o.Low), High: r.High.Add(o.High)}
}

// Scale multiplies both bounds by a unit count.
func (r Range) Scale(n int) Range {
	return r.Mul(decimal.NewFromInt(int64(n)))
}

// Mul multiplies both bounds by f.
func (r Range) Mul(f decimal.Decimal) Range {
	return Range{Low: r.Low.Mul(f), High: r.High.Mul(f)}
}

// Midpoint returns (Low + High) / 2.
func (r Range) Midpoint() decimal.Decimal {
	return r.Low.Add(r.High).Div(two)
}

// IsZero reports whether both bounds are zero.
func (r Range) IsZero() bool {
	return r.Low.IsZero() && r.High.IsZero()
}

// Validate checks that the range is non-negative and ordered.
func (r Range) Validate() error {
	if r.Low.IsNegative() || r.High.IsNegative() {
		return fmt.Errorf("range %s has a negative bound", r)
	}
	if r.Low.GreaterThan(r.High) {
		return fmt.Errorf("range %s has low > high", r)
	}
	return nil
}

func (r Range) String() string {
	return "[" + r.Low.String() + ", " + r.High.String() + "]"
}

// MaxDollars caps any rounded amount. Estimates above it are rejected
// rather than wrapped.
var MaxDollars = decimal.NewFromInt(1_000_000_000)

// roundDollars rounds half away from zero, which for the non-negative
// amounts produced here is the same as rounding half up. ok is false when
// the amount is outside [0, MaxDollars].
func roundDollars(d decimal.Decimal) (n int64, ok bool) {
	r := d.Round(0)
	if r.IsNegative() || r.GreaterThan(MaxDollars) {
		return 0, false
	}
	return r.IntPart(), true
}
