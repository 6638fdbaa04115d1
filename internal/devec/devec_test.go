package devec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResizeBackGrowsAtEnd(t *testing.T) {
	d := New[byte]()
	d.ResizeBack(3)
	copy(d.AsSlice(), []byte{1, 2, 3})
	d.ResizeBack(5)
	assert.Equal(t, []byte{1, 2, 3, 0, 0}, d.AsSlice())
}

func TestResizeFrontPrependsZeroes(t *testing.T) {
	d := New[byte]()
	d.ResizeBack(2)
	copy(d.AsSlice(), []byte{9, 9})
	d.ResizeFront(5)
	require.Equal(t, 5, d.Len())
	assert.Equal(t, []byte{0, 0, 0, 9, 9}, d.AsSlice())
}

func TestResizeFrontReusesOffsetSlack(t *testing.T) {
	d := New[byte]()
	d.ResizeBack(4)
	copy(d.AsSlice(), []byte{1, 2, 3, 4})
	d.ResizeFront(2) // shrink: offset advances by 2
	assert.Equal(t, []byte{3, 4}, d.AsSlice())
	d.ResizeFront(4) // grow back into the slack we just freed
	assert.Equal(t, []byte{1, 2, 3, 4}, d.AsSlice())
}

func TestClearKeepsOffset(t *testing.T) {
	d := New[byte]()
	d.ResizeBack(4)
	copy(d.AsSlice(), []byte{1, 2, 3, 4})
	d.ResizeFront(2)
	d.Clear()
	assert.Equal(t, 0, d.Len())
}

func TestShrinkRebalancesOffset(t *testing.T) {
	d := New[byte]()
	d.ResizeBack(10)
	copy(d.AsSlice(), []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})
	d.ResizeFront(4) // shrinks from the front: offset advances to 6, live = [6,7,8,9]
	d.Shrink(4)      // compacts the backing array without changing the live elements
	assert.Equal(t, []byte{6, 7, 8, 9}, d.AsSlice())
}
