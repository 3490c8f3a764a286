// Package utils holds small shared helpers.
package utils

// Connection handles are packed into a single uint64 so they can travel
// through maps and events as one opaque word. Layout, low to high:
//
//	[ index : 32 bits ][ generation : 31 bits ][ valid : 1 bit ]
//
// The generation distinguishes reuses of the same registry slot; a handle
// from a previous occupant of the slot fails generation comparison and is
// treated as unknown.
const (
	GenerationOffset = 32 // GenerationOffset generation field offset.
	ValidOffset      = 63 // ValidOffset valid-bit offset.
)

const (
	_indexMask      = 0xFFFFFFFF
	_generationMask = 0x7FFFFFFF
)

// PackHandle builds a valid handle word from slot index and generation.
func PackHandle(index uint32, generation uint32) uint64 {
	h := uint64(index) & _indexMask
	h |= (uint64(generation) & _generationMask) << GenerationOffset
	h |= uint64(1) << ValidOffset
	return h
}

// UnpackHandle splits a handle word into slot index and generation.
func UnpackHandle(h uint64) (index uint32, generation uint32) {
	index = uint32(h & _indexMask)
	generation = uint32((h >> GenerationOffset) & _generationMask)
	return index, generation
}

// IsHandleValid reports whether the valid bit is set. The zero value is
// never a valid handle.
func IsHandleValid(h uint64) bool {
	return h>>ValidOffset == 1
}
