package alligator

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	quic "github.com/quic-go/quic-go"

	"github.com/joshmorgan1000/alligator/internal/bufpool"
	"github.com/joshmorgan1000/alligator/internal/constants"
)

// quicStreamRecord is the per-stream bookkeeping a multiplexed QUIC
// connection needs beyond the shared network state: accumulated inbound
// bytes, a read cursor, and whether the peer has signalled FIN.
type quicStreamRecord struct {
	mu          sync.Mutex
	stream      quic.Stream
	data        []byte
	offset      int64
	finReceived bool
}

// QUICBuffer is the concrete QUIC variant of the Network Backend, adding stream multiplexing on top of the shared state machine.
// Real QUIC/TLS wire framing is provided entirely by quic-go; this type
// only adapts its Connection/Stream API to the Buffer contract. TLS uses
// an ephemeral self-signed certificate since the fabric has no identity
// of its own to present — callers that need a real certificate chain
// should not use this default and instead terminate QUIC at a layer that
// supplies one.
type QUICBuffer struct {
	*networkBase
	mu                sync.Mutex
	listener          *quic.Listener
	conn              *quic.Conn
	defaultStream     *quicStreamRecord
	streams           map[uint32]*quicStreamRecord
	nextStreamID      atomic.Uint32
	zeroRTT           bool
	congestionControl string
	closeOnce         sync.Once
}

// AllocateQUIC constructs and registers a QUICBuffer.
func (f *Fabric) AllocateQUIC(capacity int64, cfg NetworkConfig) (*QUICBuffer, error) {
	if capacity <= 0 {
		return nil, NewError("allocate", ErrKindInvalidArgument, "network capacity must be > 0")
	}
	q := &QUICBuffer{
		networkBase: newNetworkBase(f, QUIC, capacity, cfg),
		streams:     make(map[uint32]*quicStreamRecord),
		zeroRTT:     cfg.ZeroRTTEnabled,
	}
	if _, err := f.register(q); err != nil {
		return nil, err
	}
	return q, nil
}

// generateSelfSignedTLSConfig builds an ephemeral TLS identity, the same
// shape quic-go's own examples use for a server with no real certificate
// authority involved.
func generateSelfSignedTLSConfig() (*tls.Config, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	template := x509.Certificate{SerialNumber: big.NewInt(1)}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, NextProtos: []string{"alligator-quic"}}, nil
}

// SetZeroRTT toggles 0-RTT handshake support.
func (q *QUICBuffer) SetZeroRTT(enabled bool) { q.zeroRTT = enabled }

// SetCongestionControl records the congestion control algorithm name.
// quic-go does not expose a public congestion controller selection API,
// so the recorded name is not applied to any connection.
func (q *QUICBuffer) SetCongestionControl(name string) { q.congestionControl = name }

// Bind listens for QUIC connections on endpoint.
func (q *QUICBuffer) Bind(endpoint Endpoint) bool {
	if !q.transition(StateBinding, StateIdle) {
		return false
	}
	tlsConf, err := generateSelfSignedTLSConfig()
	if err != nil {
		q.fail()
		return false
	}
	ln, err := quic.ListenAddr(fmt.Sprintf("%s:%d", endpoint.Host, endpoint.Port), tlsConf, &quic.Config{Allow0RTT: q.zeroRTT})
	if err != nil {
		q.fail()
		return false
	}
	q.mu.Lock()
	q.listener = ln
	q.mu.Unlock()
	if !q.transition(StateListening, StateBinding) {
		ln.Close()
		return false
	}
	go q.acceptLoop()
	return true
}

func (q *QUICBuffer) acceptLoop() {
	for {
		conn, err := q.listener.Accept(context.Background())
		if err != nil {
			q.fabric.logger.WithBuffer(q.ID(), "quic").Debug("quic: accept loop exiting", "error", err)
			return
		}
		q.mu.Lock()
		q.conn = conn
		q.mu.Unlock()
		go q.acceptStreams(conn)
	}
}

func (q *QUICBuffer) acceptStreams(conn *quic.Conn) {
	for {
		stream, err := conn.AcceptStream(context.Background())
		if err != nil {
			return
		}
		id := q.nextStreamID.Add(1) - 1
		rec := &quicStreamRecord{stream: stream}
		q.mu.Lock()
		if q.defaultStream == nil {
			q.defaultStream = rec
		}
		q.streams[id] = rec
		q.mu.Unlock()
		go q.ingestStream(rec)
	}
}

// ingestStream drains rec.stream into both the shared buffer storage
// (for default-stream consumers using the unary Receive/GetRx path) and
// the stream's own accumulated data (for ReceiveStream consumers).
func (q *QUICBuffer) ingestStream(rec *quicStreamRecord) {
	buf := bufpool.Get(64 * 1024)
	defer bufpool.Put(buf)
	for {
		n, err := rec.stream.Read(buf)
		if n > 0 {
			rec.mu.Lock()
			rec.data = append(rec.data, buf[:n]...)
			rec.mu.Unlock()

			offset, ok := q.reserve(int64(n))
			if !ok {
				q.counters.drops.Add(1)
			} else {
				copy(q.storage[offset:offset+int64(n)], buf[:n])
				q.counters.bytesReceived.Add(uint64(n))
				q.counters.packetsReceived.Add(1)
				q.enqueueRx(offset, int64(n), nil)
			}
		}
		if err != nil {
			if err == io.EOF {
				rec.mu.Lock()
				rec.finReceived = true
				rec.mu.Unlock()
			}
			return
		}
	}
}

// Connect dials endpoint and opens the default stream, blocking until
// Ready or Failed.
func (q *QUICBuffer) Connect(endpoint Endpoint) bool {
	if !q.transition(StateConnecting, StateIdle) {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultConnectTimeout)
	defer cancel()

	tlsConf := &tls.Config{InsecureSkipVerify: true, NextProtos: []string{"alligator-quic"}}
	conn, err := quic.DialAddr(ctx, fmt.Sprintf("%s:%d", endpoint.Host, endpoint.Port), tlsConf, &quic.Config{Allow0RTT: q.zeroRTT})
	if err != nil {
		q.fail()
		return false
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		q.fail()
		return false
	}
	rec := &quicStreamRecord{stream: stream}
	q.mu.Lock()
	q.conn = conn
	q.defaultStream = rec
	q.streams[0] = rec
	q.mu.Unlock()
	q.nextStreamID.Store(1)

	if !q.transition(StateReady, StateConnecting) {
		stream.Close()
		conn.CloseWithError(0, "")
		return false
	}
	go q.ingestStream(rec)
	return true
}

func (q *QUICBuffer) lookupStream(id uint32) (*quicStreamRecord, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	rec, ok := q.streams[id]
	return rec, ok
}

// CreateStream opens a new multiplexed stream and assigns it a
// monotonically increasing id.
func (q *QUICBuffer) CreateStream() (uint32, error) {
	if err := q.requireReady("create_stream"); err != nil {
		return 0, err
	}
	stream, err := q.conn.OpenStreamSync(context.Background())
	if err != nil {
		q.fabric.logger.WithBuffer(q.ID(), "quic").Warn("quic: create_stream failed", "error", err)
		return 0, WrapError("create_stream", err)
	}
	id := q.nextStreamID.Add(1) - 1
	rec := &quicStreamRecord{stream: stream}
	q.mu.Lock()
	q.streams[id] = rec
	q.mu.Unlock()
	go q.ingestStream(rec)
	return id, nil
}

// CloseStream drains and removes the stream record.
func (q *QUICBuffer) CloseStream(id uint32) error {
	rec, ok := q.lookupStream(id)
	if !ok {
		return NewBufferError("close_stream", q.ID(), ErrKindNotFound, "unknown stream id")
	}
	if err := rec.stream.Close(); err != nil {
		return WrapError("close_stream", err)
	}
	q.mu.Lock()
	delete(q.streams, id)
	q.mu.Unlock()
	return nil
}

// SendStream behaves like Send but scoped to one stream: bytes still come from the buffer's own storage.
func (q *QUICBuffer) SendStream(id uint32, offset, size int64, fin bool) (int, error) {
	if err := q.requireReady("send_stream"); err != nil {
		return -1, err
	}
	rec, ok := q.lookupStream(id)
	if !ok {
		return -1, NewBufferError("send_stream", q.ID(), ErrKindNotFound, "unknown stream id")
	}
	span, err := q.Span(offset, size)
	if err != nil {
		return -1, err
	}
	n, err := rec.stream.Write(span.Bytes())
	if err != nil {
		q.counters.errors.Add(1)
		q.fabric.logger.WithBuffer(q.ID(), "quic").Warn("quic: send_stream failed", "stream", id, "error", err)
		return -1, WrapError("send_stream", err)
	}
	if fin {
		rec.stream.Close()
	}
	q.counters.bytesSent.Add(uint64(n))
	q.counters.packetsSent.Add(1)
	return n, nil
}

// ReceiveStream behaves like Receive but scoped to one stream: bytes are drained from the stream's own accumulated
// data, independent of the shared receive queue.
func (q *QUICBuffer) ReceiveStream(id uint32, offset, size int64) (int, error) {
	if err := q.requireReadyOrListening("receive_stream"); err != nil {
		return -1, err
	}
	rec, ok := q.lookupStream(id)
	if !ok {
		return -1, NewBufferError("receive_stream", q.ID(), ErrKindNotFound, "unknown stream id")
	}
	dst, err := q.Span(offset, size)
	if err != nil {
		return -1, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	avail := int64(len(rec.data)) - rec.offset
	if avail <= 0 {
		return 0, nil
	}
	n := size
	if n > avail {
		n = avail
	}
	copy(dst.Bytes()[:n], rec.data[rec.offset:rec.offset+n])
	rec.offset += n
	q.counters.bytesReceived.Add(uint64(n))
	q.counters.packetsReceived.Add(1)
	return int(n), nil
}

// Send transmits over the default stream.
func (q *QUICBuffer) Send(offset, size int64) (int, error) {
	return q.SendStream(0, offset, size, false)
}

// Receive drains the default stream's accumulated data, or, when
// Listening with no default stream yet, the shared ingest queue.
func (q *QUICBuffer) Receive(offset, size int64) (int, error) {
	if err := q.requireReadyOrListening("receive"); err != nil {
		return -1, err
	}
	q.mu.Lock()
	def := q.defaultStream
	q.mu.Unlock()
	if def != nil {
		return q.ReceiveStream(0, offset, size)
	}
	dst, err := q.Span(offset, size)
	if err != nil {
		return -1, err
	}
	desc, ok := q.GetRx()
	if !ok {
		return 0, nil
	}
	n := desc.Size
	if n > size {
		n = size
	}
	copy(dst.Bytes()[:n], q.storage[desc.Offset:desc.Offset+n])
	return int(n), nil
}

// SendFrom transmits directly from other's storage over the default
// stream.
func (q *QUICBuffer) SendFrom(other Buffer, size, srcOffset int64) (int, error) {
	if err := q.requireReady("send_from"); err != nil {
		return -1, err
	}
	src, err := other.Span(srcOffset, size)
	if err != nil {
		return -1, err
	}
	n, err := q.defaultStream.stream.Write(src.Bytes())
	if err != nil {
		q.counters.errors.Add(1)
		q.fabric.logger.WithBuffer(q.ID(), "quic").Warn("quic: send_from failed", "error", err)
		return -1, WrapError("send_from", err)
	}
	q.counters.bytesSent.Add(uint64(n))
	q.counters.packetsSent.Add(1)
	return n, nil
}

// ReceiveInto is the inverse of SendFrom.
func (q *QUICBuffer) ReceiveInto(other Buffer, size, dstOffset int64) (int, error) {
	if err := q.requireReadyOrListening("receive_into"); err != nil {
		return -1, err
	}
	dst, err := other.Span(dstOffset, size)
	if err != nil {
		return -1, err
	}
	q.mu.Lock()
	rec := q.defaultStream
	q.mu.Unlock()
	if rec == nil {
		return 0, nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	avail := int64(len(rec.data)) - rec.offset
	if avail <= 0 {
		return 0, nil
	}
	n := int64(len(dst.Bytes()))
	if n > avail {
		n = avail
	}
	copy(dst.Bytes()[:n], rec.data[rec.offset:rec.offset+n])
	rec.offset += n
	q.counters.bytesReceived.Add(uint64(n))
	q.counters.packetsReceived.Add(1)
	return int(n), nil
}

// Poll drives I/O progress for at most timeoutMs.
func (q *QUICBuffer) Poll(timeoutMs int) (int, error) {
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	start := q.counters.packetsReceived.Load()
	for time.Now().Before(deadline) {
		if q.counters.packetsReceived.Load() > start {
			break
		}
		time.Sleep(time.Millisecond)
	}
	return int(q.counters.packetsReceived.Load() - start), nil
}

// Close transitions Ready/Listening→Closing→Closed and tears down the
// QUIC connection.
func (q *QUICBuffer) Close() error {
	if !q.transition(StateClosing, StateReady) && !q.transition(StateClosing, StateListening) {
		return NewBufferError("close", q.ID(), ErrKindInvalidState, "not ready or listening")
	}
	var err error
	q.closeOnce.Do(func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if q.conn != nil {
			err = q.conn.CloseWithError(0, "")
		}
		if q.listener != nil {
			if e := q.listener.Close(); e != nil && err == nil {
				err = e
			}
		}
		q.setState(StateClosed)
	})
	if err != nil {
		q.fabric.logger.WithBuffer(q.ID(), "quic").Warn("quic: close failed", "error", err)
	}
	return err
}

func (q *QUICBuffer) deallocate() error {
	if q.State() != StateClosed {
		return q.Close()
	}
	return nil
}

var _ Buffer = (*QUICBuffer)(nil)
