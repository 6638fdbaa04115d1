package broker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qchateau/bless/internal/fileview"
)

// newTestBroker opens path through a fresh FileView and wires a Broker over
// unbuffered command/cancel channels, the same shape a renderer would use.
func newTestBroker(t *testing.T, path string) (*Broker, chan Command, chan struct{}) {
	t.Helper()
	view, err := fileview.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { view.Close() })

	commands := make(chan Command)
	cancelCh := make(chan struct{})
	b := New(view, commands, cancelCh, 4)
	return b, commands, cancelCh
}

func runBroker(t *testing.T, b *Broker) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = b.Run(ctx) }()
}

func awaitState(t *testing.T, b *Broker) BackendState {
	t.Helper()
	select {
	case s := <-b.State():
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for broker state")
		return BackendState{}
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paged.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBrokerPagingMovesDownByLines(t *testing.T) {
	path := writeFile(t, "aaa\nbbb\nccc\nddd\neee\n")
	b, commands, _ := newTestBroker(t, path)
	runBroker(t, b)

	top := awaitState(t, b)
	require.NotNil(t, top.CurrentLine)
	assert.Equal(t, int64(1), *top.CurrentLine)
	require.NotEmpty(t, top.Text)
	assert.Equal(t, "aaa", top.Text[0])

	commands <- MoveLine(2)
	moved := awaitState(t, b)
	require.NotNil(t, moved.CurrentLine)
	assert.Equal(t, int64(3), *moved.CurrentLine)
	require.NotEmpty(t, moved.Text)
	assert.True(t, strings.HasPrefix(moved.Text[0], "c"))
}

func TestBrokerFollowSurfacesAppendedLines(t *testing.T) {
	path := writeFile(t, "first\n")
	b, commands, _ := newTestBroker(t, path)
	runBroker(t, b)

	awaitState(t, b)

	commands <- Follow(true)
	followed := awaitState(t, b)
	assert.True(t, followed.Follow)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("second\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	deadline := time.After(3 * time.Second)
	for {
		select {
		case s := <-b.State():
			found := false
			for _, line := range s.Text {
				if strings.Contains(line, "second") {
					found = true
				}
			}
			if found {
				return
			}
		case <-deadline:
			t.Fatal("follow never surfaced the appended line")
		}
	}
}

func TestBrokerSearchDownFindsLine(t *testing.T) {
	path := writeFile(t, "alpha\nbeta\ngamma\n")
	b, commands, _ := newTestBroker(t, path)
	runBroker(t, b)

	awaitState(t, b)

	commands <- SearchDown("gam")
	found := awaitState(t, b)
	assert.Nil(t, found.CurrentLine)
	require.NotEmpty(t, found.Text)
	assert.True(t, strings.HasPrefix(found.Text[0], "gamma"))
}

func TestBrokerSearchUpFindsLineAboveTheLoadedWindow(t *testing.T) {
	// Mirrors the bug scenario: jump to the bottom (the buffer's loaded
	// window holds none of the earlier data), then search up for a line
	// near the top, which only a window extended backward via LoadPrev
	// can find.
	path := writeFile(t, "needle\nb\nc\nd\ne\n")
	b, commands, _ := newTestBroker(t, path)
	runBroker(t, b)

	awaitState(t, b)

	commands <- JumpLine(0)
	awaitState(t, b)

	commands <- SearchUp("needle")
	found := awaitState(t, b)
	assert.Nil(t, found.CurrentLine)
	require.NotEmpty(t, found.Text)
	assert.True(t, strings.HasPrefix(found.Text[0], "needle"))
}

func TestBrokerSearchCancelledRestoresState(t *testing.T) {
	// Mirrors the spec scenario: a large haystack with no match anywhere,
	// cancelled partway through the scan.
	content := strings.Repeat("x", 100<<20)
	path := writeFile(t, content)
	b, commands, cancelCh := newTestBroker(t, path)
	runBroker(t, b)

	before := awaitState(t, b)
	require.NotNil(t, before.CurrentLine)

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancelCh <- struct{}{}
	}()

	commands <- SearchDown("needle-that-does-not-exist")
	after := awaitState(t, b)

	var found error
	for _, e := range after.Errors {
		if errors.Is(e, fileview.ErrCancelled) {
			found = e
		}
	}
	require.NotNil(t, found, "expected a cancelled error in %v", after.Errors)
	require.NotNil(t, after.CurrentLine)
	assert.Equal(t, *before.CurrentLine, *after.CurrentLine)
}

func TestBrokerBzip2JumpLandsInTargetBlock(t *testing.T) {
	path := filepath.Join("testdata", "two_block.bz2")
	b, commands, _ := newTestBroker(t, path)
	runBroker(t, b)

	awaitState(t, b)

	commands <- JumpFileRatio(0.75)
	jumped := awaitState(t, b)

	assert.Nil(t, jumped.CurrentLine)
	require.NotEmpty(t, jumped.Text)
	assert.True(t, strings.HasPrefix(jumped.Text[0], strings.Repeat("B", 10)))
}

func TestBrokerJumpFileRatioClampsOutOfRangeValues(t *testing.T) {
	path := writeFile(t, "aaa\nbbb\nccc\nddd\neee\n")
	b, commands, _ := newTestBroker(t, path)
	runBroker(t, b)

	awaitState(t, b)

	commands <- JumpFileRatio(2.0)
	state := awaitState(t, b)
	assert.Empty(t, state.Errors)

	commands <- JumpFileRatio(-1.0)
	state = awaitState(t, b)
	assert.Empty(t, state.Errors)
}

func TestBrokerMarksRoundTripPosition(t *testing.T) {
	path := writeFile(t, "aaa\nbbb\nccc\nddd\neee\n")
	b, commands, _ := newTestBroker(t, path)
	runBroker(t, b)

	top := awaitState(t, b)
	require.NotNil(t, top.CurrentLine)

	commands <- SaveMark("m1")
	awaitState(t, b)

	commands <- JumpLine(5)
	jumped := awaitState(t, b)
	require.NotNil(t, jumped.CurrentLine)
	assert.NotEqual(t, *top.CurrentLine, *jumped.CurrentLine)

	commands <- LoadMark("m1")
	restored := awaitState(t, b)
	require.NotNil(t, restored.CurrentLine)
	assert.Equal(t, *top.CurrentLine, *restored.CurrentLine)
	assert.Equal(t, top.Text, restored.Text)
}
