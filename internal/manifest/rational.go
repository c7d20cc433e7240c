package manifest

import "fmt"

// Rational represents a duration as an exact fraction of seconds (Num/Den),
// per spec §9: durations are carried as a rational rather than a float so
// that derived values like TARGETDURATION are computed from an exact value,
// not an accumulated floating point error. Floating point is only used at
// the serialization boundary (EXTINF seconds).
type Rational struct {
	Num int64
	Den int64
}

// NewRational builds a normalized Rational. Den <= 0 is treated as 1.
func NewRational(num, den int64) Rational {
	if den <= 0 {
		den = 1
	}
	return Rational{Num: num, Den: den}
}

// Seconds renders the rational as a float64, for serialization only.
func (r Rational) Seconds() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// CeilSeconds returns ceil(r) as a whole number of seconds, computed with
// integer arithmetic so it never drifts from the exact rational value.
func (r Rational) CeilSeconds() int64 {
	if r.Den <= 0 || r.Num <= 0 {
		return 0
	}
	return (r.Num + r.Den - 1) / r.Den
}

// Add returns r + other, reduced to a common denominator (the product of
// both denominators; good enough for the modest durations this package
// handles, and exact unlike summing floats).
func (r Rational) Add(other Rational) Rational {
	if r.Den == other.Den {
		return Rational{Num: r.Num + other.Num, Den: r.Den}
	}
	return Rational{
		Num: r.Num*other.Den + other.Num*r.Den,
		Den: r.Den * other.Den,
	}
}

// Sub returns r - other, using the same common-denominator approach as Add.
func (r Rational) Sub(other Rational) Rational {
	if r.Den == other.Den {
		return Rational{Num: r.Num - other.Num, Den: r.Den}
	}
	return Rational{
		Num: r.Num*other.Den - other.Num*r.Den,
		Den: r.Den * other.Den,
	}
}

// Cmp returns -1, 0, or 1 as r is less than, equal to, or greater than other.
func (r Rational) Cmp(other Rational) int {
	// cross-multiply to compare without floating point division
	lhs := r.Num * other.Den
	rhs := other.Num * r.Den
	switch {
	case lhs < rhs:
		return -1
	case lhs > rhs:
		return 1
	default:
		return 0
	}
}

// GreaterThan reports whether r > other.
func (r Rational) GreaterThan(other Rational) bool { return r.Cmp(other) > 0 }

// LessThanOrEqual reports whether r <= other.
func (r Rational) LessThanOrEqual(other Rational) bool { return r.Cmp(other) <= 0 }

// Max returns the larger of r and other.
func (r Rational) Max(other Rational) Rational {
	if r.GreaterThan(other) {
		return r
	}
	return other
}

// IsZero reports whether the rational value is exactly zero.
func (r Rational) IsZero() bool { return r.Num == 0 }

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// RationalFromSeconds builds a Rational with a microsecond-scale denominator,
// the common case for callers that only have a float64 duration (e.g. an
// upstream pipeline reporting seconds as a float).
func RationalFromSeconds(seconds float64) Rational {
	const scale = 1_000_000
	return NewRational(int64(seconds*scale+0.5), scale)
}
