package alligator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeID(t *testing.T) {
	for _, idx := range []uint32{0, 1, 1023, 1 << 21} {
		id := encodeID(idx)
		assert.NotZero(t, id&idValidBit)

		got, valid := decodeID(id)
		assert.True(t, valid)
		assert.Equal(t, idx, got)
	}
}

func TestDecodeID_InvalidWithoutValidBit(t *testing.T) {
	_, valid := decodeID(0x00000005)
	assert.False(t, valid)
}

func TestSentinelID(t *testing.T) {
	assert.Equal(t, uint32(0x803FFFFF), idSentinel)
	assert.True(t, isSentinelID(idSentinel))
	assert.False(t, isSentinelID(encodeID(0)))
}

func TestEncodeID_MasksHighIndexBits(t *testing.T) {
	// An index that overflows the 22-bit field must be masked, never
	// bleed into the reserved or valid bits.
	id := encodeID(1 << 22)
	index, valid := decodeID(id)
	assert.True(t, valid)
	assert.Equal(t, uint32(0), index)
}
