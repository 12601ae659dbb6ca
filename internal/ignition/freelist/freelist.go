// Package freelist implements a dense slab of small-integer-indexed slots,
// reused LIFO via an intrusive free list stored inside the freed slot
// itself. It backs both the host-side process slabs (RPC clients, RPC
// servers, I/O objects) and the guest-side reactor.
package freelist

import "golang.org/x/exp/constraints"

// Index is any unsigned integer usable as a dense slot index.
type Index interface {
	constraints.Unsigned
}

type node[T any] struct {
	allocated bool
	value     T
	nextFree  int
}

// FreeList allocates dense small-integer identifiers of type I, backing
// each with a value of type T. Indices are reused LIFO: the most recently
// freed slot is the next one handed out by Insert. An index MUST NOT be
// reused while it is still allocated; the implementation never does this on
// its own, since Insert only ever draws from the head of the free list or
// grows the slab.
type FreeList[I Index, T any] struct {
	nodes        []node[T]
	firstFree    int
	hasFirstFree bool
}

const noFree = -1

// Insert allocates a fresh slot (reusing the most recently freed one, if
// any) and stores value in it, returning the slot's index.
func (f *FreeList[I, T]) Insert(value T) I {
	if f.hasFirstFree {
		idx := f.firstFree
		next := f.nodes[idx].nextFree
		f.firstFree = next
		f.hasFirstFree = next != noFree
		f.nodes[idx] = node[T]{allocated: true, value: value}
		return I(idx)
	}
	idx := len(f.nodes)
	f.nodes = append(f.nodes, node[T]{allocated: true, value: value})
	return I(idx)
}

// Get returns the value stored at index. It panics if index is out of
// range or currently free: callers are expected to only ever pass indices
// they allocated and have not yet removed.
func (f *FreeList[I, T]) Get(index I) *T {
	n := &f.nodes[index]
	if !n.allocated {
		panic("freelist: get called on a free slot")
	}
	return &n.value
}

// TryGet returns the value stored at index and true, or false if index is
// out of range or currently free. Unlike Get, it never panics; this is the
// form the ABI boundary uses to turn an untrusted guest-supplied handle
// into a trap instead of a host panic.
func (f *FreeList[I, T]) TryGet(index I) (*T, bool) {
	if int(index) < 0 || int(index) >= len(f.nodes) {
		return nil, false
	}
	n := &f.nodes[index]
	if !n.allocated {
		return nil, false
	}
	return &n.value, true
}

// Remove frees index, returning the value that was stored there, and makes
// index eligible for reuse by a subsequent Insert.
func (f *FreeList[I, T]) Remove(index I) T {
	n := &f.nodes[index]
	if !n.allocated {
		panic("freelist: remove called on a free slot")
	}
	value := n.value
	var zero T
	next := noFree
	if f.hasFirstFree {
		next = f.firstFree
	}
	*n = node[T]{allocated: false, value: zero, nextFree: next}
	f.firstFree = int(index)
	f.hasFirstFree = true
	return value
}

// TryRemove is the non-panicking form of Remove.
func (f *FreeList[I, T]) TryRemove(index I) (T, bool) {
	if _, ok := f.TryGet(index); !ok {
		var zero T
		return zero, false
	}
	return f.Remove(index), true
}

// Len reports the current slab size, including freed slots awaiting reuse.
func (f *FreeList[I, T]) Len() int { return len(f.nodes) }
