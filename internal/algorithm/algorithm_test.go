package algorithm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindNthOrLastExactTarget(t *testing.T) {
	pos, count, ok := FindNthOrLast([]byte("a\nb\nc\nd"), '\n', 1)
	assert.True(t, ok)
	assert.Equal(t, 2, count)
	assert.Equal(t, 3, pos) // second '\n' is at index 3
}

func TestFindNthOrLastFewerThanTarget(t *testing.T) {
	pos, count, ok := FindNthOrLast([]byte("a\nb"), '\n', 5)
	assert.True(t, ok) // one occurrence was found, just not the 6th
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, pos)
}

func TestFindNthOrLastNoOccurrence(t *testing.T) {
	_, count, ok := FindNthOrLast([]byte("abc"), '\n', 0)
	assert.False(t, ok)
	assert.Equal(t, 0, count)
}

func TestRFindNthOrLastScansBackward(t *testing.T) {
	pos, count, ok := RFindNthOrLast([]byte("a\nb\nc\nd"), '\n', 0)
	assert.True(t, ok)
	assert.Equal(t, 1, count)
	assert.Equal(t, 5, pos) // last '\n' before the trailing 'd'
}
