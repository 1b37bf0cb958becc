package transtable

import "sync/atomic"

// TTData is a plain-data snapshot of one entry's logical fields, returned
// by Probe. It may be inconsistent with respect to any single write: a
// concurrent writer can tear the underlying bytes across fields.
type TTData struct {
	Move  uint16
	Value int16
	Eval  int16
	Depth int
	Bound Bound
	IsPV  bool
	Cut   bool
}

// entry is the 10-byte wire layout cached inside a Cluster. Field order
// matches probe's read order so that sequential access stays within one
// cache line.
//
// keyStub   16 bit (low 16 bits of the position key)
// depth8     8 bit (search depth - DepthEntryOffset; 0 means empty)
// genBound8  8 bit (generation | isPV<<2 | bound)
// move16    16 bit
// value16   16 bit signed
// eval16    16 bit signed
type entry struct {
	keyStub   uint32 // only the low 16 bits are ever used; see keyStub16
	depth8    uint32 // only the low 8 bits are ever used
	genBound8 uint32 // only the low 8 bits are ever used
	move16    uint32 // only the low 16 bits are ever used
	value16   int32  // truncated to int16 on every store
	eval16    int32  // truncated to int16 on every store
}

// The logical fields above are narrower than the machine words backing
// them. Go has no portable way to take a relaxed atomic load/store on a
// uint8/uint16 lvalue embedded in a struct without either unsafe pointer
// games or a wider backing word; this type uses 32-bit backing words and
// relaxed (non-fenced) atomic.Load/StoreUint32-family ops so the race
// detector and the memory model are both satisfied while staying as close
// as possible to a plain read/write on the hot path. No field is ever
// wider than what its comment says; the extra bits are simply never
// written.

func (e *entry) keyStub16() uint16   { return uint16(atomic.LoadUint32(&e.keyStub)) }
func (e *entry) depthByte() uint8    { return uint8(atomic.LoadUint32(&e.depth8)) }
func (e *entry) genBoundByte() uint8 { return uint8(atomic.LoadUint32(&e.genBound8)) }
func (e *entry) moveField() uint16   { return uint16(atomic.LoadUint32(&e.move16)) }
func (e *entry) valueField() int16   { return int16(atomic.LoadInt32(&e.value16)) }
func (e *entry) evalField() int16    { return int16(atomic.LoadInt32(&e.eval16)) }

// isOccupied reports whether this entry holds a saved position. Per spec,
// occupancy is defined purely by depth8 != 0, regardless of any other
// field's value.
func (e *entry) isOccupied() bool {
	return e.depthByte() != 0
}

// read assembles a plain-data snapshot of the entry's logical fields. cut
// is supplied by the caller since the cut flag lives in the owning
// Cluster's shared extra field, not in the entry itself.
func (e *entry) read(cut bool) TTData {
	gb := e.genBoundByte()
	return TTData{
		Move:  e.moveField(),
		Value: e.valueField(),
		Eval:  e.evalField(),
		Depth: int(e.depthByte()) + DepthEntryOffset,
		Bound: Bound(gb & 0x3),
		IsPV:  gb&0x4 != 0,
		Cut:   cut,
	}
}

// relativeAge returns the cyclic distance, in the 8-bit generation space,
// from this entry's stored generation to currentGen. The result is always
// a non-negative multiple of GenerationDelta.
func (e *entry) relativeAge(currentGen uint8) uint8 {
	gb := e.genBoundByte()
	// Truncate to 8 bits (wrap modulo 256), then mask: the sum can exceed
	// 255 (GenerationCycle alone is 263), and the truncation wraps it back
	// into the 8-bit generation space. GenerationMask fits in 8 bits, so
	// masking before truncating would give the same result. gb's low
	// GenerationBits bits hold the PV flag and bound, not generation; the
	// mask discards their noise from the result.
	diff := uint8(GenerationCycle + int(currentGen) - int(gb))
	return diff & uint8(GenerationMask)
}

// replacementScore is depth - ageWeight*relativeAge, the quantity
// pickVictim minimizes over when a cluster is full and a stub misses.
// Computed in int so it can go negative.
func (e *entry) replacementScore(currentGen uint8, ageWeight int) int {
	return int(e.depthByte()) - ageWeight*int(e.relativeAge(currentGen))
}

// save applies the replacement rule that decides whether a write
// overwrites this entry. cutBits is the shared extra-bits accessor for
// this entry's cut flag within its cluster; save writes the new cut flag
// through it only when the overwrite condition holds. Unlike
// replacementScore, this overwrite condition does not weigh relativeAge
// by k: any nonzero age already forces an overwrite, so the multiplier is
// vacuous here and save takes no ageWeight parameter.
//
// depth must satisfy DepthEntryOffset < depth < DepthEntryOffset+256 on a
// commit; this is asserted via a Logger.Warn + clamp rather than a panic,
// since probe/write must never fail.
func (e *entry) save(
	keyStub uint16, value int16, isPV bool, bound Bound, depth int, move uint16, evalv int16,
	cut bool, currentGen uint8, gentleAging bool, cutBits cutBitsAccessor, log Logger,
) bool {
	storedStub := e.keyStub16()

	// Move preservation: keep the old move unless a new one is supplied or
	// this is a different position taking over the slot.
	if move != 0 || keyStub != storedStub {
		atomic.StoreUint32(&e.move16, uint32(move))
	}

	storedDepth := int(e.depthByte())
	overwrite := bound == BoundExact ||
		keyStub != storedStub ||
		(depth-DepthEntryOffset)+boolToInt(isPV)*2 > storedDepth-4 ||
		e.relativeAge(currentGen) > 0

	if overwrite {
		if depth <= DepthEntryOffset || depth >= DepthEntryOffset+256 {
			if log != nil {
				log.Warn("transtable: save depth out of range, clamping",
					"depth", depth, "min", DepthEntryOffset+1, "max", DepthEntryOffset+255)
			}
			if depth <= DepthEntryOffset {
				depth = DepthEntryOffset + 1
			} else {
				depth = DepthEntryOffset + 255
			}
		}

		atomic.StoreUint32(&e.keyStub, uint32(keyStub))
		atomic.StoreUint32(&e.depth8, uint32(depth-DepthEntryOffset))
		gb := uint32(currentGen) | boolToUint32(isPV)<<2 | uint32(bound)
		atomic.StoreUint32(&e.genBound8, gb)
		atomic.StoreInt32(&e.value16, int32(value))
		atomic.StoreInt32(&e.eval16, int32(evalv))
		cutBits.set(cut)
		return true
	}

	// Gentle aging: a save that was skipped still nudges the stored depth
	// down by one, so entries that keep surviving probes without being
	// refreshed slowly become cheaper to evict.
	if gentleAging && storedDepth >= 5 && Bound(e.genBoundByte()&0x3) != BoundExact {
		atomic.StoreUint32(&e.depth8, uint32(storedDepth-1))
	}
	return false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func boolToUint32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
