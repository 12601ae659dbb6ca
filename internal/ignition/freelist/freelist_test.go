package freelist

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFreeListInsertGetRemove(t *testing.T) {
	var fl FreeList[uint32, string]

	a := fl.Insert("a")
	b := fl.Insert("b")
	c := fl.Insert("c")
	require.Equal(t, uint32(0), a)
	require.Equal(t, uint32(1), b)
	require.Equal(t, uint32(2), c)

	require.Equal(t, "b", *fl.Get(b))

	require.Equal(t, "b", fl.Remove(b))

	// the freed slot is reused LIFO by the next insert.
	d := fl.Insert("d")
	require.Equal(t, b, d)
	require.Equal(t, "d", *fl.Get(d))

	require.Equal(t, "a", *fl.Get(a))
	require.Equal(t, "c", *fl.Get(c))
}

func TestFreeListLIFOReuse(t *testing.T) {
	var fl FreeList[uint32, int]

	ids := make([]uint32, 4)
	for i := range ids {
		ids[i] = fl.Insert(i)
	}

	fl.Remove(ids[1])
	fl.Remove(ids[2])

	// LIFO: the most recently freed slot (ids[2]) is reused first.
	require.Equal(t, ids[2], fl.Insert(100))
	require.Equal(t, ids[1], fl.Insert(101))
}

func TestFreeListPanicsOnUseAfterRemove(t *testing.T) {
	var fl FreeList[uint32, int]
	id := fl.Insert(1)
	fl.Remove(id)
	require.Panics(t, func() { fl.Get(id) })
	require.Panics(t, func() { fl.Remove(id) })
}
