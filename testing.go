package alligator

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/joshmorgan1000/alligator/internal/interfaces"
)

// mockAddr is a trivial net.Addr for MockNetworkTransport endpoints.
type mockAddr string

func (a mockAddr) Network() string { return "mock" }
func (a mockAddr) String() string  { return string(a) }

// MockNetworkTransport is a net.Conn double for exercising TCP/UDP/QUIC
// buffer logic without opening a real socket: call-counters plus
// injectable failure points. Reads are served from an internal FIFO fed
// by Feed; Writes are recorded and can be inspected with Written.
type MockNetworkTransport struct {
	mu     sync.Mutex
	local  net.Addr
	remote net.Addr
	rx     []byte
	tx     []byte
	closed bool

	// ReadErr, when non-nil, is returned by every Read call instead of
	// copying data.
	ReadErr error
	// WriteErr, when non-nil, is returned by every Write call.
	WriteErr error

	readCalls  int
	writeCalls int
	closeCalls int
}

// NewMockNetworkTransport builds a transport bound to the given local and
// remote addresses, both purely cosmetic labels for assertions.
func NewMockNetworkTransport(local, remote string) *MockNetworkTransport {
	return &MockNetworkTransport{local: mockAddr(local), remote: mockAddr(remote)}
}

// Feed appends bytes a subsequent Read will drain, simulating inbound
// traffic from the peer.
func (m *MockNetworkTransport) Feed(p []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rx = append(m.rx, p...)
}

// Written returns a copy of everything written so far.
func (m *MockNetworkTransport) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(m.tx))
	copy(out, m.tx)
	return out
}

func (m *MockNetworkTransport) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readCalls++
	if m.closed {
		return 0, errors.New("mock transport closed")
	}
	if m.ReadErr != nil {
		return 0, m.ReadErr
	}
	if len(m.rx) == 0 {
		return 0, nil
	}
	n := copy(p, m.rx)
	m.rx = m.rx[n:]
	return n, nil
}

func (m *MockNetworkTransport) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeCalls++
	if m.closed {
		return 0, errors.New("mock transport closed")
	}
	if m.WriteErr != nil {
		return 0, m.WriteErr
	}
	m.tx = append(m.tx, p...)
	return len(p), nil
}

func (m *MockNetworkTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalls++
	m.closed = true
	return nil
}

func (m *MockNetworkTransport) LocalAddr() net.Addr  { return m.local }
func (m *MockNetworkTransport) RemoteAddr() net.Addr { return m.remote }

func (m *MockNetworkTransport) SetDeadline(time.Time) error      { return nil }
func (m *MockNetworkTransport) SetReadDeadline(time.Time) error  { return nil }
func (m *MockNetworkTransport) SetWriteDeadline(time.Time) error { return nil }

// IsClosed reports whether Close has been called.
func (m *MockNetworkTransport) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// CallCounts returns how many times each method has been invoked.
func (m *MockNetworkTransport) CallCounts() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]int{"read": m.readCalls, "write": m.writeCalls, "close": m.closeCalls}
}

// MockGPUDevice is an interfaces.Device double backed by a plain host
// buffer, with call-counters and injectable Upload/Download failures
// (SetUploadErr/SetDownloadErr), used to exercise GPUBuffer logic
// independent of SimulatedDevice's own behaviour. There is no setter for a
// Sync failure.
type MockGPUDevice struct {
	mu         sync.Mutex
	memType    interfaces.MemoryType
	data       []byte
	mapped     []byte
	closed     bool
	uploadErr  error
	downloadErr error
	syncErr    error

	uploadCalls   int
	downloadCalls int
	mapCalls      int
	syncCalls     int
}

// NewMockGPUDevice allocates a MockGPUDevice of the given size and
// memory type.
func NewMockGPUDevice(size int64, memType interfaces.MemoryType) *MockGPUDevice {
	return &MockGPUDevice{memType: memType, data: make([]byte, size)}
}

// SetUploadErr makes every subsequent Upload/UploadAsync call fail with err.
func (m *MockGPUDevice) SetUploadErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadErr = err
}

// SetDownloadErr makes every subsequent Download/DownloadAsync call fail
// with err.
func (m *MockGPUDevice) SetDownloadErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadErr = err
}

func (m *MockGPUDevice) MemoryType() interfaces.MemoryType { return m.memType }

func (m *MockGPUDevice) Map(offset, size int64) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mapCalls++
	if offset < 0 || offset+size > int64(len(m.data)) {
		return nil, errors.New("mock device: map out of range")
	}
	m.mapped = m.data[offset : offset+size]
	return m.mapped, nil
}

func (m *MockGPUDevice) Unmap() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mapped = nil
	return nil
}

func (m *MockGPUDevice) Upload(src []byte, offset int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadCalls++
	if m.uploadErr != nil {
		return m.uploadErr
	}
	copy(m.data[offset:], src)
	return nil
}

func (m *MockGPUDevice) Download(dst []byte, offset int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadCalls++
	if m.downloadErr != nil {
		return m.downloadErr
	}
	copy(dst, m.data[offset:offset+int64(len(dst))])
	return nil
}

func (m *MockGPUDevice) CopyFrom(other interfaces.Device, size, srcOffset, dstOffset int64) error {
	buf := make([]byte, size)
	if err := other.Download(buf, srcOffset); err != nil {
		return err
	}
	return m.Upload(buf, dstOffset)
}

func (m *MockGPUDevice) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncCalls++
	return m.syncErr
}

func (m *MockGPUDevice) Clear(fill byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.data {
		m.data[i] = fill
	}
	return nil
}

func (m *MockGPUDevice) UploadAsync(src []byte, offset int64, cb interfaces.AsyncCallback) {
	err := m.Upload(src, offset)
	if cb != nil {
		cb(err == nil)
	}
}

func (m *MockGPUDevice) DownloadAsync(dst []byte, offset int64, cb interfaces.AsyncCallback) {
	err := m.Download(dst, offset)
	if cb != nil {
		cb(err == nil)
	}
}

func (m *MockGPUDevice) NativeHandle() uintptr { return 0 }

func (m *MockGPUDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.data = nil
	return nil
}

// IsClosed reports whether Close has been called.
func (m *MockGPUDevice) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// CallCounts returns how many times each method has been invoked.
func (m *MockGPUDevice) CallCounts() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]int{
		"upload":   m.uploadCalls,
		"download": m.downloadCalls,
		"map":      m.mapCalls,
		"sync":     m.syncCalls,
	}
}

var (
	_ net.Conn          = (*MockNetworkTransport)(nil)
	_ interfaces.Device = (*MockGPUDevice)(nil)
)
