package alligator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshmorgan1000/alligator/internal/interfaces"
)

func TestGPUBuffer_AllocateDefaultsToSimulatedDevice(t *testing.T) {
	f := testFabric(t)
	gb, err := f.AllocateGPU(64, DefaultGPUConfig(), nil)
	require.NoError(t, err)
	assert.IsType(t, &SimulatedDevice{}, gb.device)
	// The default config is device-local, which the host cannot touch directly.
	assert.False(t, gb.Flags().Local)
}

func TestGPUBuffer_UploadDownloadRoundTrip(t *testing.T) {
	f := testFabric(t)
	gb, err := f.AllocateGPU(64, DefaultGPUConfig(), nil)
	require.NoError(t, err)

	require.NoError(t, gb.Upload([]byte("gpu-data"), 0))
	dst := make([]byte, 8)
	require.NoError(t, gb.Download(dst, 0))
	assert.Equal(t, "gpu-data", string(dst))
	assert.EqualValues(t, 8, gb.WriterFrontier())
}

func TestGPUBuffer_MapUnmap(t *testing.T) {
	f := testFabric(t)
	cfg := DefaultGPUConfig()
	cfg.MemoryType = interfaces.Unified
	gb, err := f.AllocateGPU(32, cfg, nil)
	require.NoError(t, err)

	data, err := gb.Map(0, 32)
	require.NoError(t, err)
	assert.Len(t, data, 32)
	require.NoError(t, gb.Unmap())
}

func TestGPUBuffer_MockDeviceInjectedFailure(t *testing.T) {
	f := testFabric(t)
	mock := NewMockGPUDevice(16, interfaces.DeviceLocal)
	gb, err := f.AllocateGPU(16, DefaultGPUConfig(), mock)
	require.NoError(t, err)

	mock.SetUploadErr(assert.AnError)
	err = gb.Upload([]byte("x"), 0)
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrKindOperationFailed))
	assert.Equal(t, 1, mock.CallCounts()["upload"])
}

func TestResolveAutoGPU_PrefersDeviceLocal(t *testing.T) {
	mt, ok := ResolveAutoGPU([]interfaces.MemoryType{interfaces.HostVisible, interfaces.DeviceLocal, interfaces.Unified})
	require.True(t, ok)
	assert.Equal(t, interfaces.DeviceLocal, mt)
}

func TestResolveAutoGPU_FallsBackInPriorityOrder(t *testing.T) {
	mt, ok := ResolveAutoGPU([]interfaces.MemoryType{interfaces.HostCached, interfaces.HostVisible})
	require.True(t, ok)
	assert.Equal(t, interfaces.HostVisible, mt)
}

func TestResolveAutoGPU_EmptyIsFalse(t *testing.T) {
	_, ok := ResolveAutoGPU(nil)
	assert.False(t, ok)
}
