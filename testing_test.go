package alligator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshmorgan1000/alligator/internal/interfaces"
)

func TestMockNetworkTransport_FeedAndRead(t *testing.T) {
	m := NewMockNetworkTransport("local:1", "remote:2")
	m.Feed([]byte("inbound"))

	buf := make([]byte, 7)
	n, err := m.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "inbound", string(buf[:n]))
}

func TestMockNetworkTransport_WriteRecordsBytes(t *testing.T) {
	m := NewMockNetworkTransport("a", "b")
	n, err := m.Write([]byte("outbound"))
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, "outbound", string(m.Written()))
	assert.Equal(t, 1, m.CallCounts()["write"])
}

func TestMockNetworkTransport_InjectedWriteErr(t *testing.T) {
	m := NewMockNetworkTransport("a", "b")
	m.WriteErr = errors.New("boom")
	_, err := m.Write([]byte("x"))
	require.Error(t, err)
}

func TestMockNetworkTransport_CloseMarksClosed(t *testing.T) {
	m := NewMockNetworkTransport("a", "b")
	require.NoError(t, m.Close())
	assert.True(t, m.IsClosed())
	_, err := m.Write([]byte("x"))
	require.Error(t, err)
}

func TestMockGPUDevice_UploadDownload(t *testing.T) {
	m := NewMockGPUDevice(32, interfaces.DeviceLocal)
	require.NoError(t, m.Upload([]byte("abc"), 0))
	dst := make([]byte, 3)
	require.NoError(t, m.Download(dst, 0))
	assert.Equal(t, "abc", string(dst))
	assert.Equal(t, 1, m.CallCounts()["upload"])
	assert.Equal(t, 1, m.CallCounts()["download"])
}

func TestMockGPUDevice_InjectedDownloadErr(t *testing.T) {
	m := NewMockGPUDevice(16, interfaces.DeviceLocal)
	m.SetDownloadErr(errors.New("device fault"))
	_, err := m.Map(0, 4)
	require.NoError(t, err)
	err = m.Download(make([]byte, 4), 0)
	require.Error(t, err)
}

func TestMockGPUDevice_CloseClearsStorage(t *testing.T) {
	m := NewMockGPUDevice(8, interfaces.DeviceLocal)
	require.NoError(t, m.Close())
	assert.True(t, m.IsClosed())
	assert.Nil(t, m.data)
}
