// Package fileview implements a line-oriented cursor over a filebuffer.Buffer:
// up/down by N lines, jump to line/byte/top/bottom, forward and backward
// regex-line search, and view materialization that loads more data on
// demand and shrinks the working set once it grows past a threshold.
package fileview

import (
	"errors"
	"path/filepath"

	"github.com/grafana/regexp"
	"github.com/mattn/go-runewidth"
	log "github.com/sirupsen/logrus"

	"github.com/qchateau/bless/internal/algorithm"
	"github.com/qchateau/bless/internal/filebuffer"
	"github.com/qchateau/bless/internal/loopbreak"
	"github.com/qchateau/bless/internal/text"
)

const (
	// matchWindow is how much overlap is preserved between scan windows
	// when a buffer's SeekFrom/RSeekFrom is unsupported and FileView falls
	// back to scanning loaded data directly.
	matchWindow = 0x1000
	// shrinkThreshold is how large the loaded window must grow before a
	// shrink is triggered, keeping working-set size roughly constant
	// regardless of how far the view has traversed.
	shrinkThreshold = 1 << 20
	// motionLoopBudget bounds the up/down retry loop against pathological
	// zero-progress iterations.
	motionLoopBudget = 10
)

// ViewState is an immutable snapshot used for marks and for restoring
// state after a failed search.
type ViewState struct {
	viewOffset  int
	bufferPos   uint64
	currentLine *int64
}

// FileView is a line-oriented cursor over a filebuffer.Buffer.
type FileView struct {
	realFilePath    string
	buffer          filebuffer.Buffer
	viewOffset      int
	currentLine     *int64
	shrinkThreshold int
}

// Option customizes a FileView constructed by New.
type Option func(*FileView)

// WithShrinkThreshold overrides the default SHRINK_THRESHOLD (1 MiB): how
// large the loaded window must grow before a shrink is triggered. Lets a
// deployment trade memory for fewer shrink/re-decode cycles on very large
// files.
func WithShrinkThreshold(bytes int) Option {
	return func(v *FileView) { v.shrinkThreshold = bytes }
}

// New opens path (canonicalizing it so rotation can be detected later) and
// returns a FileView positioned at the top of the file.
func New(path string, opts ...Option) (*FileView, error) {
	realPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	realPath, err = filepath.EvalSymlinks(realPath)
	if err != nil {
		return nil, err
	}

	buf, err := filebuffer.New(realPath)
	if err != nil {
		return nil, err
	}

	one := int64(1)
	v := &FileView{
		realFilePath:    realPath,
		buffer:          buf,
		viewOffset:      0,
		currentLine:     &one,
		shrinkThreshold: shrinkThreshold,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Close releases the underlying buffer's resources.
func (v *FileView) Close() error {
	return v.buffer.Close()
}

// RealFilePath returns the canonicalized path, used to detect rotation.
func (v *FileView) RealFilePath() string {
	return v.realFilePath
}

// FileSize returns the current physical file length.
func (v *FileView) FileSize() (uint64, error) {
	return v.buffer.TotalSize()
}

// CurrentLine returns the known line number of the top line, or nil if
// unknown (reached via a byte-jump or a regex jump). Positive counts from
// top-of-file starting at 1; zero or negative counts from bottom-of-file,
// with 0 meaning bottom.
func (v *FileView) CurrentLine() *int64 {
	return v.currentLine
}

// Offset estimates the current byte position in the file by linearly
// projecting view_offset across the buffer's decoded-to-file size ratio.
// For bzip2 files this is only an estimate since decoded and file sizes
// diverge.
func (v *FileView) Offset() uint64 {
	r := v.buffer.Range()
	dataSize := len(v.buffer.Data())
	if dataSize == 0 {
		return r.Start
	}
	bufferSize := float64(r.Len())
	return r.Start + uint64(float64(v.viewOffset)*bufferSize/float64(dataSize))
}

func (v *FileView) currentView() []byte {
	data := v.buffer.Data()
	if v.viewOffset >= len(data) {
		return nil
	}
	return data[v.viewOffset:]
}

func (v *FileView) aboveView() []byte {
	data := v.buffer.Data()
	if v.viewOffset > len(data) {
		return data
	}
	return data[:v.viewOffset]
}

func (v *FileView) currentViewUTF8() string {
	return text.DecodeUTF8(v.currentView())
}

func (v *FileView) loadNext() (int, error) {
	n, err := v.buffer.LoadNext()
	if err != nil {
		return 0, err
	}
	log.WithField("bytes", n).Debug("loaded next bytes")

	// Drop everything before the cursor: it has already been scrolled
	// past and won't be revisited without a fresh load_prev.
	if len(v.buffer.Data()) > v.shrinkThreshold {
		cursor := v.buffer.Range().Start + uint64(v.viewOffset)
		kept := v.buffer.ShrinkTo(filebuffer.ByteRange{Start: cursor, End: v.buffer.Range().End})
		v.viewOffset = int(cursor - kept.Start)
	}
	return n, nil
}

func (v *FileView) loadPrev() (int, error) {
	n, err := v.buffer.LoadPrev()
	if err != nil {
		return 0, err
	}
	v.viewOffset += n
	log.WithField("bytes", n).Debug("loaded previous bytes")

	// Drop everything past the cursor: it was only in view because of
	// forward scrolling before this backward motion started.
	if len(v.buffer.Data()) > v.shrinkThreshold {
		cursor := v.buffer.Range().Start + uint64(v.viewOffset)
		kept := v.buffer.ShrinkTo(filebuffer.ByteRange{Start: v.buffer.Range().Start, End: cursor})
		v.viewOffset = int(cursor - kept.Start)
	}
	return n, nil
}

// Up moves the cursor up by lines, loading more data at the front as
// needed. Returns ErrBOF if the beginning of file is reached before all
// requested lines were consumed.
func (v *FileView) Up(lines uint64) error {
	breaker := loopbreak.New(motionLoopBudget)
	log.WithField("lines", lines).Debug("up")

	for {
		if err := breaker.Tick(); err != nil {
			return err
		}

		view := v.aboveView()
		if pos, count, ok := algorithm.RFindNthOrLast(view, '\n', int(lines)); ok {
			nth := uint64(count - 1)
			v.viewOffset = pos + 1
			if v.currentLine != nil {
				newLine := *v.currentLine - int64(nth)
				v.currentLine = &newLine
			}
			lines -= nth
			if lines == 0 {
				return nil
			}
		}

		n, err := v.loadPrev()
		if err != nil {
			return err
		}
		if n == 0 {
			wasAtTop := v.viewOffset == 0
			v.viewOffset = 0
			one := int64(1)
			v.currentLine = &one
			if wasAtTop {
				return ErrBOF
			}
			return nil
		}
	}
}

// Down moves the cursor down by lines, loading more data at the back as
// needed. Returns ErrEOF if the end of file is reached before all
// requested lines were consumed.
func (v *FileView) Down(lines uint64) error {
	breaker := loopbreak.New(motionLoopBudget)
	log.WithField("lines", lines).Debug("down")

	for lines > 0 {
		if err := breaker.Tick(); err != nil {
			return err
		}

		nth := int(lines) - 1
		if nth < 0 {
			nth = 0
		}
		pos, count, ok := algorithm.FindNthOrLast(v.currentView(), '\n', nth)
		if ok {
			v.viewOffset += pos + 1
			if v.currentLine != nil {
				newLine := *v.currentLine + int64(count)
				v.currentLine = &newLine
			}
			lines -= uint64(count)
			breaker.Reset()
			continue
		}

		n, err := v.loadNext()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrEOF
		}
	}
	return nil
}

// UpToLineMatching searches backward for the closest preceding line
// matching re and moves the cursor there. Falls back to a generic scan
// over loaded data if the buffer reports it does not support RSeekFrom.
func (v *FileView) UpToLineMatching(re *regexp.Regexp, cancel *filebuffer.Cancel) error {
	log.WithField("pattern", re.String()).Debug("up to line matching")
	state := v.SaveState()

	m, err := v.buffer.RSeekFrom(re, uint64(v.viewOffset), cancel)
	switch {
	case errors.Is(err, filebuffer.ErrUnsupported):
		return v.scanUpFallback(re, cancel, state)
	case errors.Is(err, filebuffer.ErrCancelled):
		return ErrCancelled
	case err != nil:
		return err
	case m == nil:
		v.LoadState(state)
		return ErrNoMatchFound
	default:
		v.viewOffset = int(m.Start - v.buffer.Range().Start)
		v.currentLine = nil
		return v.Up(0)
	}
}

// DownToLineMatching searches forward for the closest following line
// matching re and moves the cursor there. If skipCurrent, the current
// line is excluded from the search. Falls back to a generic scan over
// loaded data if the buffer reports it does not support SeekFrom.
func (v *FileView) DownToLineMatching(re *regexp.Regexp, skipCurrent bool, cancel *filebuffer.Cancel) error {
	log.WithField("pattern", re.String()).Debug("down to line matching")
	state := v.SaveState()
	if skipCurrent {
		_ = v.Down(1)
	}

	m, err := v.buffer.SeekFrom(re, uint64(v.viewOffset), cancel)
	switch {
	case errors.Is(err, filebuffer.ErrUnsupported):
		return v.scanDownFallback(re, cancel, state)
	case errors.Is(err, filebuffer.ErrCancelled):
		return ErrCancelled
	case err != nil:
		return err
	case m == nil:
		v.LoadState(state)
		return ErrNoMatchFound
	default:
		v.viewOffset = int(m.Start - v.buffer.Range().Start)
		v.currentLine = nil
		return v.Up(0)
	}
}

// scanDownFallback implements the generic forward scan described in the
// view contract when the buffer's own SeekFrom is unsupported: scan
// data[view_offset:] for re, loading more data and preserving overlap
// when the window is exhausted.
func (v *FileView) scanDownFallback(re *regexp.Regexp, cancel *filebuffer.Cancel, state ViewState) error {
	for {
		if cancel.IsSet() {
			v.LoadState(state)
			return ErrCancelled
		}

		data := v.buffer.Data()
		view := data[min(v.viewOffset, len(data)):]
		if loc := re.FindIndex(view); loc != nil {
			v.viewOffset += loc[0]
			v.currentLine = nil
			return v.Up(0)
		}

		if len(data) > matchWindow {
			v.viewOffset = len(data) - matchWindow
		}

		n, err := v.loadNext()
		if err != nil {
			return err
		}
		if n == 0 {
			v.LoadState(state)
			return ErrNoMatchFound
		}
	}
}

// scanUpFallback implements the generic backward scan described in the
// view contract when the buffer's own RSeekFrom is unsupported.
func (v *FileView) scanUpFallback(re *regexp.Regexp, cancel *filebuffer.Cancel, state ViewState) error {
	for {
		if cancel.IsSet() {
			v.LoadState(state)
			return ErrCancelled
		}

		view := v.aboveView()
		all := re.FindAllIndex(view, -1)
		if len(all) > 0 {
			last := all[len(all)-1]
			v.viewOffset = last[0]
			v.currentLine = nil
			return v.Up(1)
		}

		v.viewOffset = matchWindow

		n, err := v.loadPrev()
		if err != nil {
			return err
		}
		if n == 0 {
			v.LoadState(state)
			return ErrNoMatchFound
		}
	}
}

// JumpToLine moves the cursor directly to line, choosing whichever of
// top/bottom is closer as a starting point when the current line is
// unknown or on the wrong side of zero.
func (v *FileView) JumpToLine(line int64) error {
	log.WithField("line", line).Debug("jump to line")

	if line > 0 && (v.currentLine == nil || *v.currentLine <= 0) {
		if err := v.Top(); err != nil {
			return err
		}
	} else if line <= 0 && (v.currentLine == nil || *v.currentLine > 0) {
		if err := v.Bottom(); err != nil {
			return err
		}
	}

	offset := line - *v.currentLine
	if abs64(offset) > abs64(line) {
		if line > 0 {
			if err := v.Top(); err != nil {
				return err
			}
		} else {
			if err := v.Bottom(); err != nil {
				return err
			}
		}
		offset = line - *v.currentLine
	}

	switch {
	case offset > 0:
		return v.Down(uint64(offset))
	case offset < 0:
		return v.Up(uint64(-offset))
	default:
		return nil
	}
}

// JumpToByte moves the cursor directly to a byte offset in the file.
func (v *FileView) JumpToByte(pos uint64) error {
	log.WithField("byte", pos).Debug("jump to byte")

	if _, err := v.buffer.Jump(pos); err != nil {
		return err
	}
	v.viewOffset = 0

	if pos == 0 {
		one := int64(1)
		v.currentLine = &one
		return nil
	}
	v.currentLine = nil
	return v.Up(0)
}

// Top moves the cursor to the beginning of the file.
func (v *FileView) Top() error {
	log.Debug("jump to top")
	return v.JumpToByte(0)
}

// Bottom moves the cursor to the end of the file.
func (v *FileView) Bottom() error {
	log.Debug("jump to bottom")

	total, err := v.buffer.TotalSize()
	if err != nil {
		return err
	}
	last := uint64(0)
	if total > 0 {
		last = total - 1
	}
	if _, err := v.buffer.Jump(last); err != nil {
		return err
	}
	v.viewOffset = len(v.buffer.Data())
	zero := int64(0)
	v.currentLine = &zero
	return nil
}

// SaveState snapshots the cursor for later restoration via LoadState.
func (v *FileView) SaveState() ViewState {
	var line *int64
	if v.currentLine != nil {
		l := *v.currentLine
		line = &l
	}
	return ViewState{
		viewOffset:  v.viewOffset,
		bufferPos:   v.buffer.Range().Start,
		currentLine: line,
	}
}

// LoadState restores a previously saved cursor snapshot.
func (v *FileView) LoadState(state ViewState) error {
	v.viewOffset = state.viewOffset
	v.currentLine = state.currentLine
	_, err := v.buffer.Jump(state.bufferPos)
	return err
}

// View materializes up to nlines of visible text, wrapped to ncols when
// ncols > 0 (0 means no wrapping), loading more data on demand.
func (v *FileView) View(nlines int, ncols int) ([]string, error) {
	log.WithFields(log.Fields{"nlines": nlines, "ncols": ncols}).Info("building view")

	for {
		inLines, outLines := 0, 0
		lines := splitLines(v.currentViewUTF8())

		for _, line := range lines {
			if ncols > 0 {
				outLines += divCeil(displayWidth(line), ncols)
			} else {
				outLines++
			}

			if outLines > nlines {
				return lines[:inLines], nil
			}
			inLines++
			if outLines == nlines {
				return lines[:inLines], nil
			}
		}

		n, err := v.loadNext()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
	}

	for {
		if err := v.Up(1); err != nil {
			return splitLines(v.currentViewUTF8()), nil
		}

		lines := splitLines(v.currentViewUTF8())
		outLines := 0
		for _, line := range lines {
			if ncols > 0 {
				outLines += divCeil(displayWidth(line), ncols)
			} else {
				outLines++
			}
		}

		if outLines >= nlines {
			if outLines > nlines {
				_ = v.Down(1)
			}
			return splitLines(v.currentViewUTF8()), nil
		}
	}
}

func divCeil(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func abs64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

func displayWidth(s string) int {
	return runewidth.StringWidth(s)
}
