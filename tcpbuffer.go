package alligator

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/joshmorgan1000/alligator/internal/bufpool"
	"github.com/joshmorgan1000/alligator/internal/constants"
)

// TCPBuffer is the concrete TCP variant of the network backend, built
// directly on net.Listener/net.Conn. A Listening buffer runs
// a background accept/ingest loop per peer so get_rx/Poll observe traffic
// without the caller driving every read; a Ready (client) buffer is
// driven synchronously through Send/Receive, matching how a single-peer
// client connection is normally used.
type TCPBuffer struct {
	*networkBase
	mu        sync.Mutex
	listener  net.Listener
	conn      net.Conn
	endpoint  Endpoint
	closeOnce sync.Once
}

// AllocateTCP constructs and registers a TCPBuffer with local staging
// storage of the given capacity.
func (f *Fabric) AllocateTCP(capacity int64, cfg NetworkConfig) (*TCPBuffer, error) {
	if capacity <= 0 {
		return nil, NewError("allocate", ErrKindInvalidArgument, "network capacity must be > 0")
	}
	t := &TCPBuffer{networkBase: newNetworkBase(f, TCP, capacity, cfg)}
	if _, err := f.register(t); err != nil {
		return nil, err
	}
	return t, nil
}

func applyTCPProfile(conn net.Conn, profile OptimisationProfile) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	switch profile {
	case ProfileLatency, ProfileGPUPipeline, ProfileNeuralEngine:
		tc.SetNoDelay(true)
	case ProfileThroughput:
		tc.SetNoDelay(false)
	}
}

// Bind listens on endpoint.
func (t *TCPBuffer) Bind(endpoint Endpoint) bool {
	if !t.transition(StateBinding, StateIdle) {
		return false
	}
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", endpoint.Host, endpoint.Port))
	if err != nil {
		t.fail()
		return false
	}
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		endpoint.Port = addr.Port
	}
	t.mu.Lock()
	t.listener = ln
	t.endpoint = endpoint
	t.mu.Unlock()
	if !t.transition(StateListening, StateBinding) {
		ln.Close()
		return false
	}
	go t.acceptLoop()
	return true
}

// Endpoint returns the bound or connected endpoint.
func (t *TCPBuffer) Endpoint() Endpoint {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.endpoint
}

func (t *TCPBuffer) acceptLoop() {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			t.fabric.logger.WithBuffer(t.ID(), "tcp").Debug("tcp: accept loop exiting", "error", err)
			return
		}
		go t.ingestLoop(conn)
	}
}

func (t *TCPBuffer) ingestLoop(conn net.Conn) {
	buf := bufpool.Get(64 * 1024)
	defer bufpool.Put(buf)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			offset, ok := t.reserve(int64(n))
			if !ok {
				t.counters.drops.Add(1)
			} else {
				copy(t.storage[offset:offset+int64(n)], buf[:n])
				t.counters.bytesReceived.Add(uint64(n))
				t.counters.packetsReceived.Add(1)
				t.enqueueRx(offset, int64(n), nil)
			}
		}
		if err != nil {
			return
		}
	}
}

// Connect dials endpoint and blocks until Ready or Failed.
func (t *TCPBuffer) Connect(endpoint Endpoint) bool {
	if !t.transition(StateConnecting, StateIdle) {
		return false
	}
	d := net.Dialer{Timeout: constants.DefaultConnectTimeout}
	conn, err := d.Dial("tcp", fmt.Sprintf("%s:%d", endpoint.Host, endpoint.Port))
	if err != nil {
		t.fail()
		return false
	}
	applyTCPProfile(conn, endpoint.Profile)
	t.mu.Lock()
	t.conn = conn
	t.endpoint = endpoint
	t.mu.Unlock()
	return t.transition(StateReady, StateConnecting)
}

// Send transmits bytes from the buffer's own storage.
func (t *TCPBuffer) Send(offset, size int64) (int, error) {
	if err := t.requireReady("send"); err != nil {
		return -1, err
	}
	span, err := t.Span(offset, size)
	if err != nil {
		return -1, err
	}
	n, err := t.conn.Write(span.Bytes())
	if err != nil {
		t.counters.errors.Add(1)
		t.fail()
		return -1, WrapError("send", err)
	}
	t.counters.bytesSent.Add(uint64(n))
	t.counters.packetsSent.Add(1)
	return n, nil
}

// Receive copies up to size bytes of the next pending stream data into
// [offset, offset+size). On a Ready connection it reads synchronously; on a
// Listening buffer it drains the background ingest queue instead, since
// a listener has no single peer connection to read from directly.
func (t *TCPBuffer) Receive(offset, size int64) (int, error) {
	if err := t.requireReadyOrListening("receive"); err != nil {
		return -1, err
	}
	dst, err := t.Span(offset, size)
	if err != nil {
		return -1, err
	}
	if t.State() == StateReady {
		n, err := t.conn.Read(dst.Bytes())
		if err != nil {
			t.counters.errors.Add(1)
			t.fabric.logger.WithBuffer(t.ID(), "tcp").Warn("tcp: receive failed", "error", err)
			return -1, WrapError("receive", err)
		}
		t.advanceFrontierTo(offset + int64(n))
		t.counters.bytesReceived.Add(uint64(n))
		t.counters.packetsReceived.Add(1)
		return n, nil
	}
	desc, ok := t.GetRx()
	if !ok {
		return 0, nil
	}
	n := desc.Size
	if n > size {
		n = size
	}
	copy(dst.Bytes()[:n], t.storage[desc.Offset:desc.Offset+n])
	return int(n), nil
}

// SendFrom transmits directly from other's storage without staging
// through this buffer.
func (t *TCPBuffer) SendFrom(other Buffer, size, srcOffset int64) (int, error) {
	if err := t.requireReady("send_from"); err != nil {
		return -1, err
	}
	src, err := other.Span(srcOffset, size)
	if err != nil {
		return -1, err
	}
	n, err := t.conn.Write(src.Bytes())
	if err != nil {
		t.counters.errors.Add(1)
		t.fabric.logger.WithBuffer(t.ID(), "tcp").Warn("tcp: send_from failed", "error", err)
		return -1, WrapError("send_from", err)
	}
	t.counters.bytesSent.Add(uint64(n))
	t.counters.packetsSent.Add(1)
	return n, nil
}

// ReceiveInto is the inverse of SendFrom.
func (t *TCPBuffer) ReceiveInto(other Buffer, size, dstOffset int64) (int, error) {
	if err := t.requireReadyOrListening("receive_into"); err != nil {
		return -1, err
	}
	dst, err := other.Span(dstOffset, size)
	if err != nil {
		return -1, err
	}
	if t.State() == StateReady {
		n, err := t.conn.Read(dst.Bytes())
		if err != nil {
			t.counters.errors.Add(1)
			t.fabric.logger.WithBuffer(t.ID(), "tcp").Warn("tcp: receive_into failed", "error", err)
			return -1, WrapError("receive_into", err)
		}
		t.counters.bytesReceived.Add(uint64(n))
		t.counters.packetsReceived.Add(1)
		return n, nil
	}
	desc, ok := t.GetRx()
	if !ok {
		return 0, nil
	}
	n := desc.Size
	if n > size {
		n = size
	}
	copy(dst.Bytes()[:n], t.storage[desc.Offset:desc.Offset+n])
	return int(n), nil
}

// Poll drives I/O progress for at most timeoutMs and returns the count of
// receive events completed during the wait. The accept
// and ingest loops already run in the background; Poll observes their
// progress rather than performing the reads itself.
func (t *TCPBuffer) Poll(timeoutMs int) (int, error) {
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	start := t.counters.packetsReceived.Load()
	for time.Now().Before(deadline) {
		if t.counters.packetsReceived.Load() > start {
			break
		}
		time.Sleep(time.Millisecond)
	}
	return int(t.counters.packetsReceived.Load() - start), nil
}

// Close transitions Ready/Listening→Closing→Closed and releases the
// underlying socket(s).
func (t *TCPBuffer) Close() error {
	if !t.transition(StateClosing, StateReady) && !t.transition(StateClosing, StateListening) {
		return NewBufferError("close", t.ID(), ErrKindInvalidState, "not ready or listening")
	}
	var err error
	t.closeOnce.Do(func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.conn != nil {
			err = t.conn.Close()
		}
		if t.listener != nil {
			if e := t.listener.Close(); e != nil && err == nil {
				err = e
			}
		}
		t.setState(StateClosed)
	})
	if err != nil {
		t.fabric.logger.WithBuffer(t.ID(), "tcp").Warn("tcp: close failed", "error", err)
	}
	return err
}

func (t *TCPBuffer) deallocate() error {
	if t.State() != StateClosed {
		return t.Close()
	}
	return nil
}

var (
	_ Buffer = (*TCPBuffer)(nil)
)
