package codec

import (
	"bytes"
	"encoding/json"
	"reflect"
)

// Value is an arbitrary JSON value: a signal's current value, a set
// request's payload, or a subscription notification's delivered value.
type Value struct {
	raw json.RawMessage
}

// ValueFromJSON wraps raw encoded JSON bytes as a Value without re-encoding
// them, so the original numeric lane survives.
func ValueFromJSON(raw json.RawMessage) Value {
	cp := make(json.RawMessage, len(raw))
	copy(cp, raw)
	return Value{raw: cp}
}

// ValueFromAny encodes an arbitrary Go value into a Value.
func ValueFromAny(v interface{}) (Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Value{}, err
	}
	return Value{raw: raw}, nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.raw == nil {
		return []byte("null"), nil
	}
	return v.raw, nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	cp := make(json.RawMessage, len(data))
	copy(cp, data)
	v.raw = cp
	return nil
}

// decode parses the value into Go primitives, preserving the original
// numeric lane via json.Number so deep equality and numeric extraction both
// see the value as the client actually sent it.
func (v Value) decode() (interface{}, error) {
	if len(v.raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(v.raw))
	dec.UseNumber()
	var out interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Equal reports deep JSON equality between two values, the change gate the
// filter evaluator relies on.
func (v Value) Equal(other Value) bool {
	a, errA := v.decode()
	b, errB := other.decode()
	if errA != nil || errB != nil {
		return bytes.Equal(v.raw, other.raw)
	}
	return reflect.DeepEqual(a, b)
}

// AsNumber extracts the value as a Number if it decodes to a bare JSON
// number, and reports whether that succeeded.
func (v Value) AsNumber() (Number, bool) {
	decoded, err := v.decode()
	if err != nil {
		return Number{}, false
	}
	n, ok := decoded.(json.Number)
	if !ok {
		return Number{}, false
	}
	return NumberFromJSON(n), true
}

// IsNull reports whether the value is JSON null or empty.
func (v Value) IsNull() bool {
	return len(v.raw) == 0 || string(v.raw) == "null"
}

// Raw returns the underlying encoded bytes.
func (v Value) Raw() json.RawMessage { return v.raw }
