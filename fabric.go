package alligator

import (
	"sync/atomic"

	"github.com/joshmorgan1000/alligator/internal/constants"
	"github.com/joshmorgan1000/alligator/internal/logging"
)

// FabricConfig holds the registry's build-time and runtime tunables, a
// plain struct plus a constructor that fills in defaults
// (internal/logging.Config/DefaultConfig follows the same shape).
type FabricConfig struct {
	// MaxBufferBit bounds the registry to 2^MaxBufferBit slots. Must be
	// in [MinMaxBufferBit, MaxMaxBufferBit].
	MaxBufferBit int
	// GCIntervalMS is the Reclaimer's sleep interval between cycles.
	GCIntervalMS int
	// Logger receives Fabric and Reclaimer diagnostics. Defaults to
	// logging.Default() when nil.
	Logger *logging.Logger
}

// DefaultFabricConfig returns MAX_BUFFER_BIT = 22 (≈4.2M slots) and a 5ms
// reclaim cycle.
func DefaultFabricConfig() FabricConfig {
	return FabricConfig{
		MaxBufferBit: constants.DefaultMaxBufferBit,
		GCIntervalMS: constants.DefaultGCIntervalMS,
		Logger:       logging.Default(),
	}
}

// registrySlot is a registry slot: an owning pointer to a
// buffer plus a retirement tag. Slots are allocated once, up front for
// the array's current size, and never reallocated individually — only
// the containing array is replaced wholesale on growth, so a *registrySlot
// address stays valid across growth for any reader still holding the
// pre-growth array pointer.
type registrySlot struct {
	buf     atomic.Pointer[Buffer]
	retired atomic.Bool
}

// Fabric is the process-wide buffer registry and allocator.
// It owns a dynamic, doubling array of registry slots addressed by a
// dense index, plus a background Reclaimer. Construct with NewFabric;
// call Shutdown to stop the Reclaimer and release every live buffer.
type Fabric struct {
	cfg       FabricConfig
	slots     atomic.Pointer[[]*registrySlot]
	nextIndex atomic.Uint32
	growing   atomic.Bool
	maxSize   uint32
	metrics   *FabricMetrics
	reclaimer *reclaimer
	logger    *logging.Logger
}

// NewFabric constructs a Fabric and starts its Reclaimer goroutine.
func NewFabric(cfg FabricConfig) *Fabric {
	if cfg.MaxBufferBit == 0 {
		cfg = DefaultFabricConfig()
	}
	if cfg.MaxBufferBit < constants.MinMaxBufferBit {
		cfg.MaxBufferBit = constants.MinMaxBufferBit
	}
	if cfg.MaxBufferBit > constants.MaxMaxBufferBit {
		cfg.MaxBufferBit = constants.MaxMaxBufferBit
	}
	if cfg.GCIntervalMS <= 0 {
		cfg.GCIntervalMS = constants.DefaultGCIntervalMS
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}

	initial := constants.InitialRegistrySize
	maxSize := uint32(1) << uint(cfg.MaxBufferBit)
	// The wire id only has room for IDIndexBits of slot index (see id.go);
	// a MaxBufferBit beyond that would let the registry grow past what ids
	// can address, aliasing distinct slots onto the same id.
	if idCeiling := uint32(1) << uint(constants.IDIndexBits); maxSize > idCeiling {
		maxSize = idCeiling
	}
	if uint32(initial) > maxSize {
		initial = int(maxSize)
	}
	arr := make([]*registrySlot, initial)
	for i := range arr {
		arr[i] = &registrySlot{}
	}

	f := &Fabric{
		cfg:     cfg,
		maxSize: maxSize,
		metrics: NewFabricMetrics(),
		logger:  cfg.Logger,
	}
	f.slots.Store(&arr)
	f.reclaimer = newReclaimer(f, cfg.GCIntervalMS)
	f.reclaimer.start()
	return f
}

// Metrics returns the fabric's allocation/reclamation counters.
func (f *Fabric) Metrics() *FabricMetrics { return f.metrics }

// register reserves a registry slot for buf, publishes it, assigns the
// buffer's id and returns it. Backend constructors call this once their
// backend-private state is ready;
// on failure the buffer is never published and the caller must
// deallocate it itself.
func (f *Fabric) register(buf Buffer) (uint32, error) {
	for {
		arrPtr := f.slots.Load()
		arr := *arrPtr
		i := f.nextIndex.Add(1) - 1

		if i >= f.maxSize {
			return 0, NewError("allocate", ErrKindOutOfMemory, "registry at maximum size")
		}
		if int(i) >= len(arr) {
			f.grow(arrPtr)
			continue
		}

		slot := arr[i]
		b := buf
		slot.buf.Store(&b)
		slot.retired.Store(false)
		id := encodeID(i)
		buf.base().id.Store(id)
		f.metrics.allocations.Add(1)
		f.logger.WithBuffer(id, buf.Kind().String()).Debug("fabric: registered buffer")
		return id, nil
	}
}

// grow doubles the slot array. Single-writer,
// cooperative: the CAS loser spins until the winner publishes the new
// array and clears the growing gate.
func (f *Fabric) grow(observed *[]*registrySlot) {
	if !f.growing.CompareAndSwap(false, true) {
		for f.growing.Load() {
			// Cooperative spin; growth copies pointers only and
			// completes quickly.
		}
		return
	}
	defer f.growing.Store(false)

	// Re-check: another grow may have already replaced the array between
	// our caller's load and our CAS winning.
	if f.slots.Load() != observed {
		return
	}

	old := *observed
	newSize := len(old) * 2
	if uint32(newSize) > f.maxSize {
		newSize = int(f.maxSize)
	}
	if newSize <= len(old) {
		return
	}
	grown := make([]*registrySlot, newSize)
	copy(grown, old)
	for i := len(old); i < newSize; i++ {
		grown[i] = &registrySlot{}
	}
	f.slots.Store(&grown)
	f.metrics.growths.Add(1)
	f.logger.Info("fabric: grew registry", "from", len(old), "to", newSize)
}

// GetBuffer decodes id and returns the live buffer it addresses, or nil
// if the slot is empty or the stored buffer's id no longer matches.
func (f *Fabric) GetBuffer(id uint32) Buffer {
	index, valid := decodeID(id)
	if !valid || isSentinelID(id) {
		return nil
	}
	arr := *f.slots.Load()
	if int(index) >= len(arr) {
		return nil
	}
	bp := arr[index].buf.Load()
	if bp == nil {
		return nil
	}
	buf := *bp
	if buf.ID() != id {
		return nil
	}
	return buf
}

// ClearBuffer marks the buffer addressed by id eligible for reclamation.
// It does not free anything immediately: the Reclaimer frees retired,
// unpinned buffers on its next cycle.
func (f *Fabric) ClearBuffer(id uint32) error {
	index, valid := decodeID(id)
	if !valid || isSentinelID(id) {
		return NewBufferError("clear_buffer", id, ErrKindNotFound, "invalid id")
	}
	arr := *f.slots.Load()
	if int(index) >= len(arr) {
		return NewBufferError("clear_buffer", id, ErrKindNotFound, "index beyond registry")
	}
	slot := arr[index]
	bp := slot.buf.Load()
	if bp == nil || (*bp).ID() != id {
		return NewBufferError("clear_buffer", id, ErrKindNotFound, "no live buffer at id")
	}
	slot.retired.Store(true)
	return nil
}

// releaseSlotImmediately frees a slot synchronously without waiting for
// the Reclaimer. Used only by the Chain Protocol to discard a CAS loser's
// candidate buffer so its registry slot never lingers as a ghost entry.
func (f *Fabric) releaseSlotImmediately(buf Buffer) {
	id := buf.ID()
	index, valid := decodeID(id)
	if !valid {
		return
	}
	arr := *f.slots.Load()
	if int(index) >= len(arr) {
		return
	}
	slot := arr[index]
	bp := slot.buf.Load()
	if bp == nil || (*bp).ID() != id {
		return
	}
	slot.buf.Store(nil)
	buf.base().id.Store(idSentinel)
	f.metrics.deallocations.Add(1)
}

// Shutdown stops the Reclaimer and deallocates every still-live buffer
// regardless of retirement state.
func (f *Fabric) Shutdown() {
	f.reclaimer.stop()
	arr := *f.slots.Load()
	for _, slot := range arr {
		bp := slot.buf.Load()
		if bp == nil {
			continue
		}
		buf := *bp
		if err := buf.deallocate(); err != nil {
			f.logger.WithBuffer(buf.ID(), buf.Kind().String()).Warn("fabric: shutdown deallocate failed", "error", err)
		}
		slot.buf.Store(nil)
		f.metrics.deallocations.Add(1)
	}
}
