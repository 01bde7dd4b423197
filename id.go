package alligator

// Buffer id encoding. 32-bit, little-endian on the wire:
//
//	bit 31:     valid flag (1 = live id)
//	bits 22-30: reserved, currently zero
//	bits 0-21:  slot index
//
// This is fixed width regardless of the configured MAX_BUFFER_BIT (which
// ranges 10-30): Fabric clamps its effective registry ceiling to 2^22
// slots so an index never needs more bits than the id format reserves for
// it (see fabric.go's NewFabric).
//
// idSentinel is the "no buffer" / "empty slot" value: every low bit set
// together with the valid bit, i.e. 0x803FFFFF.
const (
	idValidBit  = uint32(1) << 31
	idIndexMask = uint32(1)<<22 - 1
	idSentinel  = idValidBit | idIndexMask // 0x803FFFFF
)

// encodeID packs a registry slot index into a buffer id.
func encodeID(index uint32) uint32 {
	return idValidBit | (index & idIndexMask)
}

// decodeID extracts the slot index from id and reports whether id carries
// the valid bit.
func decodeID(id uint32) (index uint32, valid bool) {
	if id&idValidBit == 0 {
		return 0, false
	}
	return id & idIndexMask, true
}

// isSentinelID reports whether id is the reserved "empty" sentinel.
func isSentinelID(id uint32) bool {
	return id == idSentinel
}
