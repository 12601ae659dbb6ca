package abi

import (
	"unicode/utf8"

	"github.com/tetratelabs/wazero/api"

	"github.com/mvanbem/ignition/internal/ignition"
)

// requireRead returns the byte slice at [offset, offset+byteCount) in mem,
// or traps if the range falls outside the instance's linear memory.
//
// wazero's Memory.Read returns a slice backed directly by the instance's
// linear memory, not a copy, which is what makes a pipe rendezvous
// zero-copy: this is exactly the dst/src slice handed to
// (*ignition.Process).IoRead / IoWrite.
func requireRead(mem api.Memory, field string, offset, byteCount uint32) []byte {
	buf, ok := mem.Read(offset, byteCount)
	if !ok {
		panic(ignition.NewTrapError("out of bounds memory access reading %s (offset=%d len=%d)", field, offset, byteCount))
	}
	return buf
}

// requireReadString is requireRead plus UTF-8 validation; non-UTF-8 bytes
// trap.
func requireReadString(mem api.Memory, field string, offset, byteCount uint32) string {
	buf := requireRead(mem, field, offset, byteCount)
	if !utf8.Valid(buf) {
		panic(ignition.NewTrapError("invalid UTF-8 in %s (offset=%d len=%d)", field, offset, byteCount))
	}
	return string(buf)
}

// requireReadUint32 reads a single little-endian u32 at offset.
func requireReadUint32(mem api.Memory, field string, offset uint32) uint32 {
	v, ok := mem.ReadUint32Le(offset)
	if !ok {
		panic(ignition.NewTrapError("out of bounds memory access reading %s (offset=%d)", field, offset))
	}
	return v
}

// requireWriteUint32 writes a single little-endian u32 at offset.
func requireWriteUint32(mem api.Memory, field string, offset, value uint32) {
	if !mem.WriteUint32Le(offset, value) {
		panic(ignition.NewTrapError("out of bounds memory access writing %s (offset=%d)", field, offset))
	}
}
