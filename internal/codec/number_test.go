package codec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func number(t *testing.T, literal string) Number {
	t.Helper()
	var n Number
	require.NoError(t, json.Unmarshal([]byte(literal), &n))
	return n
}

func TestNumberEqualAcrossLanes(t *testing.T) {
	assert.True(t, number(t, "100").Equal(number(t, "100")))
	assert.True(t, number(t, "100").Equal(number(t, "100.0")))
	assert.True(t, number(t, "-5").Equal(number(t, "-5")))
	assert.False(t, number(t, "100").Equal(number(t, "101")))
}

func TestNumberCmpMixedSign(t *testing.T) {
	assert.Equal(t, 1, number(t, "5").Cmp(number(t, "-5")))
	assert.Equal(t, -1, number(t, "-5").Cmp(number(t, "5")))
	assert.Equal(t, 0, number(t, "0").Cmp(number(t, "0")))
}

func TestNumberSubUnsignedLane(t *testing.T) {
	diff := number(t, "10").Sub(number(t, "4"))
	assert.Equal(t, int64(6), diff.asInt())
}

func TestNumberSubUnsignedLaneUnderflow(t *testing.T) {
	diff := number(t, "4").Sub(number(t, "10"))
	assert.Equal(t, int64(-6), diff.asInt())
}

func TestNumberSubFloatLane(t *testing.T) {
	diff := number(t, "10.5").Sub(number(t, "4.25"))
	assert.InDelta(t, 6.25, diff.Float64(), 0.0001)
}

func TestNumberSubFloatLaneMixedSign(t *testing.T) {
	diff := number(t, "-10.5").Sub(number(t, "3.0"))
	assert.InDelta(t, -13.5, diff.Float64(), 0.0001)
	assert.InDelta(t, 13.5, diff.Abs().Float64(), 0.0001)
}

func TestNumberAbsPreservesIntegerLane(t *testing.T) {
	assert.Equal(t, int64(5), number(t, "-5").Abs().asInt())
	assert.Equal(t, uint64(5), number(t, "5").Abs().asUint())
}

func TestNumberRoundTrip(t *testing.T) {
	n := number(t, "3.14159")
	data, err := json.Marshal(n)
	require.NoError(t, err)
	assert.Equal(t, "3.14159", string(data))
}
