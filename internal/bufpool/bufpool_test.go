package bufpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetReturnsRequestedLength(t *testing.T) {
	for _, size := range []int{1, 4096, 4097, 32768, 131072, 131073} {
		b := Get(size)
		assert.Len(t, b, size)
	}
}

func TestGetPutRoundTripReusesTierCapacity(t *testing.T) {
	b := Get(4096)
	assert.Equal(t, 4096, cap(b))
	Put(b)

	b2 := Get(4096)
	assert.Equal(t, 4096, cap(b2))
}

func TestPutIgnoresNonTieredCapacity(t *testing.T) {
	b := make([]byte, 1000)
	assert.NotPanics(t, func() { Put(b) })
}

func TestGetOversizeFallsBackToFreshAllocation(t *testing.T) {
	b := Get(200000)
	assert.Len(t, b, 200000)
	assert.GreaterOrEqual(t, cap(b), 200000)
}
