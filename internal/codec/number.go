package codec

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Number is the numeric-tower helper the filter evaluator needs: JSON
// numbers arrive in one of three lanes (unsigned integer, signed integer,
// floating point), and comparisons, subtraction, and absolute value must
// stay in the widest lane implied by the two operands, falling back to
// floating point when the lanes don't match.
type Number struct {
	raw json.Number
}

// NumberFromJSON wraps a decoded json.Number.
func NumberFromJSON(n json.Number) Number {
	return Number{raw: n}
}

func (n Number) MarshalJSON() ([]byte, error) {
	if n.raw == "" {
		return []byte("0"), nil
	}
	return []byte(n.raw), nil
}

func (n *Number) UnmarshalJSON(data []byte) error {
	var num json.Number
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&num); err != nil {
		return err
	}
	n.raw = num
	return nil
}

func numberFromUint(v uint64) Number {
	return Number{raw: json.Number(strconv.FormatUint(v, 10))}
}

func numberFromInt(v int64) Number {
	return Number{raw: json.Number(strconv.FormatInt(v, 10))}
}

func numberFromFloat(v float64) Number {
	return Number{raw: json.Number(strconv.FormatFloat(v, 'g', -1, 64))}
}

func (n Number) isUint() bool {
	_, err := strconv.ParseUint(string(n.raw), 10, 64)
	return err == nil
}

func (n Number) isInt() bool {
	_, err := strconv.ParseInt(string(n.raw), 10, 64)
	return err == nil
}

func (n Number) asUint() uint64 {
	v, _ := strconv.ParseUint(string(n.raw), 10, 64)
	return v
}

func (n Number) asInt() int64 {
	v, _ := strconv.ParseInt(string(n.raw), 10, 64)
	return v
}

func (n Number) asFloat() float64 {
	v, _ := strconv.ParseFloat(string(n.raw), 64)
	return v
}

// Float64 returns the number widened to float64, for callers that only need
// an approximate magnitude (e.g. logging).
func (n Number) Float64() float64 { return n.asFloat() }

// Cmp returns -1, 0, or 1 comparing n to other, staying in the widest lane
// both share (unsigned, then signed, then floating point).
func (n Number) Cmp(other Number) int {
	switch {
	case n.isUint() && other.isUint():
		a, b := n.asUint(), other.asUint()
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	case n.isInt() && other.isInt():
		a, b := n.asInt(), other.asInt()
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	default:
		a, b := n.asFloat(), other.asFloat()
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	}
}

// Equal reports numeric equality across lanes.
func (n Number) Equal(other Number) bool { return n.Cmp(other) == 0 }

// Sub subtracts other from n, staying in the widest shared lane; mixed
// integer/float lanes fall back to plain float subtraction of the
// widenings, since the sign of the difference still matters to callers
// (the minChange gate takes Abs() of the result itself).
func (n Number) Sub(other Number) Number {
	switch {
	case n.isUint() && other.isUint():
		a, b := n.asUint(), other.asUint()
		if a >= b {
			return numberFromUint(a - b)
		}
		return numberFromInt(-(int64(b - a)))
	case n.isInt() && other.isInt():
		return numberFromInt(n.asInt() - other.asInt())
	default:
		return numberFromFloat(n.asFloat() - other.asFloat())
	}
}

// Abs returns the absolute value, staying in the same lane for integers.
func (n Number) Abs() Number {
	switch {
	case n.isUint():
		return n
	case n.isInt():
		v := n.asInt()
		if v < 0 {
			v = -v
		}
		return numberFromInt(v)
	default:
		return numberFromFloat(math.Abs(n.asFloat()))
	}
}
