package alligator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUDPBuffer_BindConnectSendReceive(t *testing.T) {
	f := testFabric(t)

	server, err := f.AllocateUDP(1024, DefaultNetworkConfig(UDP))
	require.NoError(t, err)
	require.True(t, server.Bind(Endpoint{Host: "127.0.0.1", Port: 0}))
	addr := server.Endpoint()

	client, err := f.AllocateUDP(1024, DefaultNetworkConfig(UDP))
	require.NoError(t, err)
	require.True(t, client.Connect(Endpoint{Host: addr.Host, Port: addr.Port}))

	span, err := client.Span(0, 9)
	require.NoError(t, err)
	copy(span.Bytes(), []byte("datagram!"))
	n, err := client.Send(0, 9)
	require.NoError(t, err)
	assert.Equal(t, 9, n)

	dst, err := server.Span(100, 9)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		n, _ := server.Receive(100, 9)
		return n == 9
	}, defaultEventuallyTimeout, defaultEventuallyTick)
	assert.Equal(t, "datagram!", string(dst.Bytes()))

	require.NoError(t, client.Close())
	require.NoError(t, server.Close())
}

func TestUDPBuffer_ReceiveWithoutDataReturnsZero(t *testing.T) {
	f := testFabric(t)
	server, err := f.AllocateUDP(64, DefaultNetworkConfig(UDP))
	require.NoError(t, err)
	require.True(t, server.Bind(Endpoint{Host: "127.0.0.1", Port: 0}))

	n, err := server.Receive(0, 8)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
