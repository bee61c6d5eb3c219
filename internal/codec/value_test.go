package codec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, literal string) Value {
	t.Helper()
	return ValueFromJSON(json.RawMessage(literal))
}

func TestValueEqualScalar(t *testing.T) {
	assert.True(t, value(t, "42").Equal(value(t, "42")))
	assert.False(t, value(t, "42").Equal(value(t, "43")))
	assert.True(t, value(t, `"open"`).Equal(value(t, `"open"`)))
}

func TestValueEqualObjectIgnoresKeyOrder(t *testing.T) {
	a := value(t, `{"x":1,"y":2}`)
	b := value(t, `{"y":2,"x":1}`)
	assert.True(t, a.Equal(b))
}

func TestValueAsNumber(t *testing.T) {
	n, ok := value(t, "12.5").AsNumber()
	require.True(t, ok)
	assert.InDelta(t, 12.5, n.Float64(), 0.0001)

	_, ok = value(t, `"not a number"`).AsNumber()
	assert.False(t, ok)
}

func TestValueIsNull(t *testing.T) {
	assert.True(t, Value{}.IsNull())
	assert.True(t, value(t, "null").IsNull())
	assert.False(t, value(t, "0").IsNull())
}
