// Package probe walks a packet prefix in place through a [start, end) window
// of packet memory, the same way the kernel-side program assembled by
// probeprog does. Every read is preceded by its own bounds check against the
// window's end.
package probe

import (
	"errors"
	"unsafe"
)

// ErrAccess is the only error of the walk. It is returned both for reads
// beyond the end of the window and for unsupported transport protocols.
var ErrAccess = errors.New("packet access failed")

// PacketAccess exposes the currently accessible packet window. Data is the
// first byte of the window, DataEnd the address one past its last byte.
// Only Data may be dereferenced, and only below DataEnd.
type PacketAccess interface {
	Data() unsafe.Pointer
	DataEnd() uintptr
}

// inWindow reports whether size bytes at offset lie within the window.
func inWindow(ctx PacketAccess, offset, size uintptr) bool {
	return uintptr(ctx.Data())+offset+size <= ctx.DataEnd()
}

// ptrAt returns a pointer to a T at offset if the whole T lies within the
// window, so the read through it cannot fault.
func ptrAt[T any](ctx PacketAccess, offset uintptr) (*T, error) {
	if !inWindow(ctx, offset, unsafe.Sizeof(*new(T))) {
		return nil, ErrAccess
	}
	return (*T)(unsafe.Add(ctx.Data(), offset)), nil
}
