// Package persistence serializes a layout index to a compact, versioned
// binary cache file and reloads it without touching the dataset roots.
//
// Layout of a cache file:
//
//	[Magic "RSBL":4][Version:u16][Flags:u16][PayloadLen:u64][Payload][CRC32:u32]
//
// The payload holds the dataset table, a deduplicated string heap, the file
// table and run-length-encoded sparse entity/metadata columns referencing
// the heap. Flag bit 0 marks a zstd-compressed payload; the CRC32 (IEEE)
// covers the payload bytes as stored.
package persistence

import "fmt"

var magic = [4]byte{'R', 'S', 'B', 'L'}

const (
	formatVersion = uint16(1)

	flagZstd = uint16(1 << 0)

	// maxPayloadLen bounds the allocation made for a declared payload so a
	// corrupted header cannot trigger a runaway allocation.
	maxPayloadLen = 1 << 31
)

// IncompatibleError indicates a cache file that cannot be loaded: wrong
// magic or version, checksum mismatch, or a payload that fails to decode.
type IncompatibleError struct {
	Reason string
}

func (e *IncompatibleError) Error() string {
	return fmt.Sprintf("incompatible cache: %s", e.Reason)
}

func incompatible(format string, args ...any) error {
	return &IncompatibleError{Reason: fmt.Sprintf(format, args...)}
}
