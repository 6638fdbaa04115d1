package fileview

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grafana/regexp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qchateau/bless/internal/filebuffer"
)

func newTestView(t *testing.T, content string) *FileView {
	t.Helper()
	path := filepath.Join(t.TempDir(), "view.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	v, err := New(path)
	require.NoError(t, err)
	t.Cleanup(func() { v.Close() })
	return v
}

func TestNewStartsAtTopWithLineOne(t *testing.T) {
	v := newTestView(t, "a\nb\nc\n")
	require.NotNil(t, v.CurrentLine())
	assert.Equal(t, int64(1), *v.CurrentLine())
}

func TestDownAdvancesByLines(t *testing.T) {
	v := newTestView(t, "line1\nline2\nline3\n")
	err := v.Down(1)
	require.NoError(t, err)
	require.NotNil(t, v.CurrentLine())
	assert.Equal(t, int64(2), *v.CurrentLine())

	lines, err := v.View(1, 0)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "line2", lines[0])
}

func TestDownPastEOFReturnsErrEOF(t *testing.T) {
	v := newTestView(t, "only one line\n")
	err := v.Down(5)
	assert.ErrorIs(t, err, ErrEOF)
}

func TestUpPastBOFReturnsErrBOF(t *testing.T) {
	v := newTestView(t, "a\nb\nc\n")
	err := v.Up(5)
	assert.ErrorIs(t, err, ErrBOF)
}

func TestDownThenUpReturnsToOriginalLine(t *testing.T) {
	v := newTestView(t, "a\nb\nc\nd\ne\n")
	require.NoError(t, v.Down(3))
	require.NoError(t, v.Up(3))
	require.NotNil(t, v.CurrentLine())
	assert.Equal(t, int64(1), *v.CurrentLine())
}

func TestJumpToLineMovesDirectly(t *testing.T) {
	v := newTestView(t, "a\nb\nc\nd\ne\n")
	require.NoError(t, v.JumpToLine(3))
	require.NotNil(t, v.CurrentLine())
	assert.Equal(t, int64(3), *v.CurrentLine())

	lines, err := v.View(1, 0)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "c", lines[0])
}

func TestJumpToLineZeroOrNegativeGoesToBottom(t *testing.T) {
	v := newTestView(t, "a\nb\nc\n")
	require.NoError(t, v.JumpToLine(0))
	require.NotNil(t, v.CurrentLine())
	assert.Equal(t, int64(0), *v.CurrentLine())
}

func TestTopAndBottomRoundTrip(t *testing.T) {
	v := newTestView(t, "a\nb\nc\n")
	require.NoError(t, v.Bottom())
	require.NotNil(t, v.CurrentLine())
	assert.Equal(t, int64(0), *v.CurrentLine())

	require.NoError(t, v.Top())
	require.NotNil(t, v.CurrentLine())
	assert.Equal(t, int64(1), *v.CurrentLine())
}

func TestSaveAndLoadStateRestoresPosition(t *testing.T) {
	v := newTestView(t, "a\nb\nc\nd\n")
	require.NoError(t, v.Down(2))
	state := v.SaveState()

	require.NoError(t, v.Down(1))
	require.NoError(t, v.LoadState(state))
	require.NotNil(t, v.CurrentLine())
	assert.Equal(t, int64(3), *v.CurrentLine())
}

func TestDownToLineMatchingFindsNextMatch(t *testing.T) {
	v := newTestView(t, "alpha\nbeta\ngamma\nbeta\n")
	re := regexp.MustCompile(`beta`)
	var cancel filebuffer.Cancel

	err := v.DownToLineMatching(re, false, &cancel)
	require.NoError(t, err)

	lines, err := v.View(1, 0)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "beta", lines[0])
}

func TestDownToLineMatchingNoMatchRestoresState(t *testing.T) {
	v := newTestView(t, "alpha\nbeta\ngamma\n")
	re := regexp.MustCompile(`zzz`)
	var cancel filebuffer.Cancel

	require.NoError(t, v.Down(1))
	state := v.SaveState()

	err := v.DownToLineMatching(re, false, &cancel)
	assert.ErrorIs(t, err, ErrNoMatchFound)
	assert.Equal(t, state, v.SaveState())
}

func TestUpToLineMatchingFindsMatchAboveTheLoadedWindow(t *testing.T) {
	// Bottom() jumps the buffer straight to the last byte without loading
	// any data, so the window behind the cursor is empty: the backward
	// search must itself pull more data via LoadPrev to find a match that
	// sits outside what's currently loaded, symmetric to how
	// DownToLineMatching pulls more data via LoadNext.
	v := newTestView(t, "needle\nb\nc\nd\ne\n")
	re := regexp.MustCompile(`needle`)
	var cancel filebuffer.Cancel

	require.NoError(t, v.Bottom())

	err := v.UpToLineMatching(re, &cancel)
	require.NoError(t, err)

	lines, err := v.View(1, 0)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "needle", lines[0])
}

func TestUpToLineMatchingNoMatchRestoresState(t *testing.T) {
	v := newTestView(t, "alpha\nbeta\ngamma\n")
	re := regexp.MustCompile(`zzz`)
	var cancel filebuffer.Cancel

	require.NoError(t, v.Down(1))
	state := v.SaveState()

	err := v.UpToLineMatching(re, &cancel)
	assert.ErrorIs(t, err, ErrNoMatchFound)
	assert.Equal(t, state, v.SaveState())
}

func TestViewCountsWrappedWidthButReturnsSourceLines(t *testing.T) {
	// "abcdefgh" takes 2 visual rows at ncols=4, which alone satisfies a
	// 2-row budget: the source line is returned whole, not split.
	v := newTestView(t, "abcdefgh\nshort\n")
	lines, err := v.View(2, 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"abcdefgh"}, lines)
}

func TestOffsetIsWithinFileBounds(t *testing.T) {
	v := newTestView(t, "0123456789")
	require.NoError(t, v.Down(0))
	_, err := v.View(10, 0)
	require.NoError(t, err)
	assert.LessOrEqual(t, v.Offset(), uint64(10))
}
