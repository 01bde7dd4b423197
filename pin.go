package alligator

import "sync/atomic"

// Pin is a scoped acquisition that prevents reclamation of the buffer it
// was obtained from. It is reentrant: multiple live pins on
// the same buffer are tracked with a refcount, and the buffer is eligible
// for reclamation again only once every pin has been released.
type Pin struct {
	count atomic.Int32
}

// acquire increments the pin refcount. Called by base.Pin(); not exported
// because callers must go through a Buffer to obtain one.
func (p *Pin) acquire() {
	p.count.Add(1)
}

// Release drops this pin. Once the refcount reaches zero the buffer is
// eligible for reclamation again on the Reclaimer's next cycle. Release
// is safe to call at most once per acquired pin; calling it more times
// than Pin() was called underflows the count and is a caller bug.
func (p *Pin) Release() {
	p.count.Add(-1)
}

// IsPinned reports whether at least one pin is currently live.
func (p *Pin) IsPinned() bool {
	return p.count.Load() > 0
}
