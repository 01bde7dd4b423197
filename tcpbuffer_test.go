package alligator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCPBuffer_BindConnectSendReceive(t *testing.T) {
	f := testFabric(t)

	server, err := f.AllocateTCP(1024, DefaultNetworkConfig(TCP))
	require.NoError(t, err)
	require.True(t, server.Bind(Endpoint{Host: "127.0.0.1", Port: 0}))
	addr := server.Endpoint()

	client, err := f.AllocateTCP(1024, DefaultNetworkConfig(TCP))
	require.NoError(t, err)
	require.True(t, client.Connect(Endpoint{Host: addr.Host, Port: addr.Port}))

	span, err := client.Span(0, 5)
	require.NoError(t, err)
	copy(span.Bytes(), []byte("hello"))
	n, err := client.Send(0, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	var desc RxDescriptor
	var ok bool
	require.Eventually(t, func() bool {
		desc, ok = server.GetRx()
		return ok
	}, defaultEventuallyTimeout, defaultEventuallyTick)
	assert.EqualValues(t, 5, desc.Size)

	require.NoError(t, client.Close())
	require.NoError(t, server.Close())
}

func TestTCPBuffer_SendBeforeReadyFails(t *testing.T) {
	f := testFabric(t)
	tb, err := f.AllocateTCP(16, DefaultNetworkConfig(TCP))
	require.NoError(t, err)

	_, err = tb.Send(0, 4)
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrKindInvalidState))
}

func TestTCPBuffer_ConnectRefused(t *testing.T) {
	f := testFabric(t)
	tb, err := f.AllocateTCP(16, DefaultNetworkConfig(TCP))
	require.NoError(t, err)

	ok := tb.Connect(Endpoint{Host: "127.0.0.1", Port: 1})
	assert.False(t, ok)
	assert.Equal(t, StateFailed, tb.State())
}

func TestTCPBuffer_Poll_ObservesInboundTraffic(t *testing.T) {
	f := testFabric(t)
	server, err := f.AllocateTCP(1024, DefaultNetworkConfig(TCP))
	require.NoError(t, err)
	require.True(t, server.Bind(Endpoint{Host: "127.0.0.1", Port: 0}))
	addr := server.Endpoint()

	client, err := f.AllocateTCP(1024, DefaultNetworkConfig(TCP))
	require.NoError(t, err)
	require.True(t, client.Connect(Endpoint{Host: addr.Host, Port: addr.Port}))

	span, err := client.Span(0, 4)
	require.NoError(t, err)
	copy(span.Bytes(), []byte("poll"))
	_, err = client.Send(0, 4)
	require.NoError(t, err)

	n, err := server.Poll(int((2 * time.Second).Milliseconds()))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)
}
