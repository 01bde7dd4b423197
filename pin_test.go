package alligator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPin_AcquireRelease(t *testing.T) {
	var p Pin
	assert.False(t, p.IsPinned())

	p.acquire()
	assert.True(t, p.IsPinned())

	p.Release()
	assert.False(t, p.IsPinned())
}

func TestPin_Reentrant(t *testing.T) {
	var p Pin
	p.acquire()
	p.acquire()
	assert.True(t, p.IsPinned())

	p.Release()
	assert.True(t, p.IsPinned(), "still held by the second acquire")

	p.Release()
	assert.False(t, p.IsPinned())
}

func TestBuffer_Pin_ReturnsLiveHandle(t *testing.T) {
	f := testFabric(t)
	buf, err := f.AllocateHeap(16)
	assert.NoError(t, err)

	pin := buf.Pin()
	assert.True(t, pin.IsPinned())
	pin.Release()
	assert.False(t, pin.IsPinned())
}
