package alligator

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/joshmorgan1000/alligator/internal/bufpool"
)

// UDPBuffer is the concrete UDP variant of the Network Backend, built on net.PacketConn. Unlike TCP there is no accept step:
// Bind opens the socket directly into Listening, and a background read
// loop always runs, recording each datagram's sender in its
// RxDescriptor.
type UDPBuffer struct {
	*networkBase
	mu        sync.Mutex
	pconn     net.PacketConn
	peer      net.Addr
	endpoint  Endpoint
	closeOnce sync.Once
}

// AllocateUDP constructs and registers a UDPBuffer.
func (f *Fabric) AllocateUDP(capacity int64, cfg NetworkConfig) (*UDPBuffer, error) {
	if capacity <= 0 {
		return nil, NewError("allocate", ErrKindInvalidArgument, "network capacity must be > 0")
	}
	u := &UDPBuffer{networkBase: newNetworkBase(f, UDP, capacity, cfg)}
	if _, err := f.register(u); err != nil {
		return nil, err
	}
	return u, nil
}

func udpAddrToEndpoint(addr net.Addr) *Endpoint {
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return nil
	}
	port, _ := strconv.Atoi(portStr)
	return &Endpoint{Host: host, Port: port, Transport: UDP}
}

// Bind opens a UDP socket on endpoint and starts the background read
// loop.
func (u *UDPBuffer) Bind(endpoint Endpoint) bool {
	if !u.transition(StateBinding, StateIdle) {
		return false
	}
	pc, err := net.ListenPacket("udp", fmt.Sprintf("%s:%d", endpoint.Host, endpoint.Port))
	if err != nil {
		u.fail()
		return false
	}
	if addr, ok := pc.LocalAddr().(*net.UDPAddr); ok {
		endpoint.Port = addr.Port
	}
	u.mu.Lock()
	u.pconn = pc
	u.endpoint = endpoint
	u.mu.Unlock()
	if !u.transition(StateListening, StateBinding) {
		pc.Close()
		return false
	}
	go u.readLoop()
	return true
}

// Endpoint returns the bound or connected endpoint.
func (u *UDPBuffer) Endpoint() Endpoint {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.endpoint
}

func (u *UDPBuffer) readLoop() {
	buf := bufpool.Get(64 * 1024)
	defer bufpool.Put(buf)
	for {
		n, addr, err := u.pconn.ReadFrom(buf)
		if n > 0 {
			offset, ok := u.reserve(int64(n))
			if !ok {
				u.counters.drops.Add(1)
			} else {
				copy(u.storage[offset:offset+int64(n)], buf[:n])
				u.counters.bytesReceived.Add(uint64(n))
				u.counters.packetsReceived.Add(1)
				u.enqueueRx(offset, int64(n), udpAddrToEndpoint(addr))
			}
		}
		if err != nil {
			u.fabric.logger.WithBuffer(u.ID(), "udp").Debug("udp: read loop exiting", "error", err)
			return
		}
	}
}

// Connect "connects" the UDP socket to endpoint, fixing the peer address
// for subsequent Send/Receive calls. UDP has no handshake, so success is
// determined by the local socket operations succeeding.
func (u *UDPBuffer) Connect(endpoint Endpoint) bool {
	if !u.transition(StateConnecting, StateIdle) {
		return false
	}
	conn, err := net.Dial("udp", fmt.Sprintf("%s:%d", endpoint.Host, endpoint.Port))
	if err != nil {
		u.fail()
		return false
	}
	u.mu.Lock()
	u.pconn = conn.(net.PacketConn)
	u.peer = conn.RemoteAddr()
	u.endpoint = endpoint
	u.mu.Unlock()
	if !u.transition(StateReady, StateConnecting) {
		conn.Close()
		return false
	}
	go u.readLoop()
	return true
}

// Send transmits bytes from the buffer's own storage to the connected
// peer.
func (u *UDPBuffer) Send(offset, size int64) (int, error) {
	if err := u.requireReady("send"); err != nil {
		return -1, err
	}
	span, err := u.Span(offset, size)
	if err != nil {
		return -1, err
	}
	n, err := u.writeTo(span.Bytes(), u.peer)
	if err != nil {
		u.counters.errors.Add(1)
		u.fabric.logger.WithBuffer(u.ID(), "udp").Warn("udp: send failed", "error", err)
		return -1, WrapError("send", err)
	}
	u.counters.bytesSent.Add(uint64(n))
	u.counters.packetsSent.Add(1)
	return n, nil
}

func (u *UDPBuffer) writeTo(p []byte, addr net.Addr) (int, error) {
	// A connected socket (from Connect) rejects WriteTo; it already knows
	// its peer, so it is written to directly.
	if c, ok := u.pconn.(net.Conn); ok && c.RemoteAddr() != nil {
		return c.Write(p)
	}
	return u.pconn.WriteTo(p, addr)
}

// Receive dequeues the next pending datagram and copies up to size bytes
// into [offset, offset+size).
func (u *UDPBuffer) Receive(offset, size int64) (int, error) {
	if err := u.requireReadyOrListening("receive"); err != nil {
		return -1, err
	}
	dst, err := u.Span(offset, size)
	if err != nil {
		return -1, err
	}
	desc, ok := u.GetRx()
	if !ok {
		return 0, nil
	}
	n := desc.Size
	if n > size {
		n = size
	}
	copy(dst.Bytes()[:n], u.storage[desc.Offset:desc.Offset+n])
	return int(n), nil
}

// SendFrom transmits directly from other's storage.
func (u *UDPBuffer) SendFrom(other Buffer, size, srcOffset int64) (int, error) {
	if err := u.requireReady("send_from"); err != nil {
		return -1, err
	}
	src, err := other.Span(srcOffset, size)
	if err != nil {
		return -1, err
	}
	n, err := u.writeTo(src.Bytes(), u.peer)
	if err != nil {
		u.counters.errors.Add(1)
		u.fabric.logger.WithBuffer(u.ID(), "udp").Warn("udp: send_from failed", "error", err)
		return -1, WrapError("send_from", err)
	}
	u.counters.bytesSent.Add(uint64(n))
	u.counters.packetsSent.Add(1)
	return n, nil
}

// ReceiveInto is the inverse of SendFrom.
func (u *UDPBuffer) ReceiveInto(other Buffer, size, dstOffset int64) (int, error) {
	if err := u.requireReadyOrListening("receive_into"); err != nil {
		return -1, err
	}
	dst, err := other.Span(dstOffset, size)
	if err != nil {
		return -1, err
	}
	desc, ok := u.GetRx()
	if !ok {
		return 0, nil
	}
	n := desc.Size
	if n > size {
		n = size
	}
	copy(dst.Bytes()[:n], u.storage[desc.Offset:desc.Offset+n])
	return int(n), nil
}

// Poll drives I/O progress for at most timeoutMs.
func (u *UDPBuffer) Poll(timeoutMs int) (int, error) {
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	start := u.counters.packetsReceived.Load()
	for time.Now().Before(deadline) {
		if u.counters.packetsReceived.Load() > start {
			break
		}
		time.Sleep(time.Millisecond)
	}
	return int(u.counters.packetsReceived.Load() - start), nil
}

// Close transitions Ready/Listening→Closing→Closed and releases the
// socket.
func (u *UDPBuffer) Close() error {
	if !u.transition(StateClosing, StateReady) && !u.transition(StateClosing, StateListening) {
		return NewBufferError("close", u.ID(), ErrKindInvalidState, "not ready or listening")
	}
	var err error
	u.closeOnce.Do(func() {
		u.mu.Lock()
		defer u.mu.Unlock()
		if u.pconn != nil {
			err = u.pconn.Close()
		}
		u.setState(StateClosed)
	})
	if err != nil {
		u.fabric.logger.WithBuffer(u.ID(), "udp").Warn("udp: close failed", "error", err)
	}
	return err
}

func (u *UDPBuffer) deallocate() error {
	if u.State() != StateClosed {
		return u.Close()
	}
	return nil
}

var _ Buffer = (*UDPBuffer)(nil)
