package alligator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshmorgan1000/alligator/internal/interfaces"
)

func TestSimulatedDevice_UploadDownloadRoundTrip(t *testing.T) {
	d := NewSimulatedDevice(interfaces.DeviceLocal, 32)
	require.NoError(t, d.Upload([]byte("payload"), 4))

	dst := make([]byte, 7)
	require.NoError(t, d.Download(dst, 4))
	assert.Equal(t, "payload", string(dst))
}

func TestSimulatedDevice_MapReturnsSameSliceUntilUnmap(t *testing.T) {
	d := NewSimulatedDevice(interfaces.Unified, 16)
	a, err := d.Map(0, 16)
	require.NoError(t, err)
	b, err := d.Map(0, 16)
	require.NoError(t, err)
	assert.Equal(t, &a[0], &b[0])

	require.NoError(t, d.Unmap())
}

func TestSimulatedDevice_CopyFrom(t *testing.T) {
	src := NewSimulatedDevice(interfaces.DeviceLocal, 16)
	dst := NewSimulatedDevice(interfaces.DeviceLocal, 16)
	require.NoError(t, src.Upload([]byte("xyz"), 0))

	require.NoError(t, dst.CopyFrom(src, 3, 0, 5))
	out := make([]byte, 3)
	require.NoError(t, dst.Download(out, 5))
	assert.Equal(t, "xyz", string(out))
}

func TestSimulatedDevice_UploadAsyncSignalsCallback(t *testing.T) {
	d := NewSimulatedDevice(interfaces.DeviceLocal, 8)
	done := make(chan bool, 1)
	d.UploadAsync([]byte("ok"), 0, func(success bool) { done <- success })
	assert.True(t, <-done)
}

func TestSimulatedDevice_Clear(t *testing.T) {
	d := NewSimulatedDevice(interfaces.DeviceLocal, 4)
	require.NoError(t, d.Clear(0x7))
	dst := make([]byte, 4)
	require.NoError(t, d.Download(dst, 0))
	for _, b := range dst {
		assert.Equal(t, byte(0x7), b)
	}
}
