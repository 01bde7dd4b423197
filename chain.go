package alligator

// reserveChained implements the Chain Protocol: a producer
// reserving n bytes that would overflow the current link's capacity
// installs a freshly allocated successor of the same backend kind and a
// capacity class not smaller than n, then restarts the reservation there.
// Losers of the next-link CAS discard their candidate and continue on the
// winner's successor. Traversal continues until a link has room, so a
// single call may walk several already-full links before reserving.
//
// newLink is supplied by each backend because only it knows how to build
// one of its own kind (heap size, file path, shared segment name, ...).
func reserveChained(head Buffer, n int64, newLink func(capacity int64) (Buffer, error)) (Buffer, int64, error) {
	cur := head
	for {
		b := cur.base()
		if offset, ok := b.reserve(n); ok {
			return cur, offset, nil
		}

		next := b.next.Load()
		if next == nil {
			capacity := n
			if capacity < DefaultCapacityClass {
				capacity = DefaultCapacityClass
			}
			candidate, err := newLink(capacity)
			if err != nil {
				return nil, 0, WrapError("chain", err)
			}
			if b.next.CompareAndSwap(nil, &candidate) {
				next = &candidate
				if b.fabric != nil {
					b.fabric.metrics.RecordChainLink()
					b.fabric.logger.WithBuffer(candidate.ID(), candidate.Kind().String()).
						Debug("chain: installed successor", "head", cur.ID())
				}
			} else {
				// Lost the race: someone else's successor won. newLink
				// already registered our candidate (it has a live id and
				// registry slot), so it must be released explicitly rather
				// than just deallocated, or its slot would linger as a
				// ghost entry forever since nothing ever retires it.
				b.fabric.releaseSlotImmediately(candidate)
				_ = candidate.deallocate()
				next = b.next.Load()
			}
		}
		cur = *next
	}
}
