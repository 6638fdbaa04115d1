// Package broker runs the command/cancel goroutine pair that drives a
// FileView on behalf of a renderer: it serializes Command values into
// FileView mutations and publishes a BackendState snapshot after each one.
package broker

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/grafana/regexp"
	log "github.com/sirupsen/logrus"

	"github.com/qchateau/bless/internal/filebuffer"
	"github.com/qchateau/bless/internal/fileview"
	"github.com/qchateau/bless/internal/text"
)

const (
	// followInterval is the state-refresh tick while Follow is on.
	followInterval = 100 * time.Millisecond
	// idleInterval is the state-refresh tick otherwise: just often enough
	// to notice a growing file without busy-polling it.
	idleInterval = 10 * time.Second
	// veryLargeMove is the "effectively infinite" down() used to settle
	// the view at EOF while following.
	veryLargeMove = uint64(1) << 32
)

// Broker owns a FileView and publishes its state to a single subscriber.
// Its exported surface is intentionally narrow: feed it commands and
// cancel signals, read its state channel.
type Broker struct {
	filePath  string
	view      *fileview.FileView
	cancelled filebuffer.Cancel

	commands <-chan Command
	cancelCh <-chan struct{}
	state    chan BackendState

	follow      bool
	width       int
	height      uint64
	tabWidth    int
	marks       map[string]fileview.ViewState
	lastErrors  []error
	lastSize    uint64
	sawFileSize bool
}

// New constructs a Broker over an already-open FileView. commands and
// cancelCh are read-only from the broker's side; the caller retains the
// send ends. tabWidth parameterizes the tab-expansion pass applied to
// every materialized line before publishing (0 strips tabs).
func New(view *fileview.FileView, commands <-chan Command, cancelCh <-chan struct{}, tabWidth int) *Broker {
	return &Broker{
		filePath: view.RealFilePath(),
		view:     view,
		commands: commands,
		cancelCh: cancelCh,
		state:    make(chan BackendState, 1),
		tabWidth: tabWidth,
		marks:    make(map[string]fileview.ViewState),
		height:   24,
	}
}

// State returns the latest-value channel the renderer should read from.
func (b *Broker) State() <-chan BackendState {
	return b.state
}

// Run drives the command handler and cancel handler concurrently until
// either terminates (a closed channel, a publish failure, or ctx being
// cancelled), matching the original's combined tokio::select! of the two
// cooperating tasks.
func (b *Broker) Run(ctx context.Context) error {
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	errCh := make(chan error, 2)
	go func() { errCh <- b.runCancelHandler(runCtx) }()
	go func() { errCh <- b.runCommandHandler(runCtx) }()

	err := <-errCh
	stop()
	return err
}

// runCancelHandler sets the shared cancel flag on every signal received.
// It never clears the flag itself: that's the command handler's job,
// once it has drained the queue the cancellation was meant to abort.
func (b *Broker) runCancelHandler(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-b.cancelCh:
			if !ok {
				return ErrCancelChannelClosed
			}
			b.cancelled.Set()
		}
	}
}

func (b *Broker) runCommandHandler(ctx context.Context) error {
	if err := b.tick(nil); err != nil {
		return err
	}

	timer := time.NewTimer(idleInterval)
	defer timer.Stop()

	for {
		interval := idleInterval
		if b.follow {
			interval = followInterval
		}
		timer.Reset(interval)

		select {
		case <-ctx.Done():
			return nil
		case cmd, ok := <-b.commands:
			if !ok {
				return ErrCommandChannelClosed
			}
			if err := b.tick(cmd); err != nil {
				return err
			}
		case <-timer.C:
			total, err := b.view.FileSize()
			if err == nil && b.sawFileSize && total == b.lastSize {
				continue
			}
			if err := b.tick(nil); err != nil {
				return err
			}
		}
	}
}

// tick runs one command-handler iteration: dispatch, drain-on-cancel,
// reload, follow-to-bottom, publish.
func (b *Broker) tick(cmd Command) error {
	var errs []error
	if cmd != nil {
		log.WithField("command", cmd).Debug("handling command")
		err := b.handleCommand(cmd)
		if isBOFOrEOF(err) && !isMoveLine(cmd) {
			// BOF/EOF is ordinary feedback for any command that merely
			// happens to move the cursor incidentally (JumpLine, Follow's
			// bottom(), a search's landing realignment); only an explicit
			// MoveLine surfaces it as an error.
			err = nil
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	if b.cancelled.IsSet() {
		b.drainCommands()
		b.cancelled.Clear()
	}

	if err := b.maybeReload(); err != nil {
		errs = append(errs, err)
	}

	if b.follow {
		if err := b.view.Down(veryLargeMove); err != nil && !errors.Is(err, fileview.ErrEOF) {
			errs = append(errs, err)
		}
	}

	b.lastErrors = errs
	return b.publish()
}

func isBOFOrEOF(err error) bool {
	return errors.Is(err, fileview.ErrBOF) || errors.Is(err, fileview.ErrEOF)
}

func isMoveLine(cmd Command) bool {
	_, ok := cmd.(MoveLine)
	return ok
}

func (b *Broker) drainCommands() {
	for {
		select {
		case <-b.commands:
		default:
			return
		}
	}
}

// maybeReload canonicalizes filePath and, if it now resolves somewhere
// other than the FileView's open file, transparently reopens it. This is
// what lets following a file survive log rotation.
func (b *Broker) maybeReload() error {
	real, err := filepath.EvalSymlinks(b.filePath)
	if err != nil {
		return nil
	}
	if real == b.view.RealFilePath() {
		return nil
	}

	next, err := fileview.New(b.filePath)
	if err != nil {
		return err
	}
	b.view.Close()
	b.view = next
	b.marks = make(map[string]fileview.ViewState)
	return nil
}

func (b *Broker) handleCommand(cmd Command) error {
	switch c := cmd.(type) {
	case Follow:
		b.follow = bool(c)
		if b.follow {
			return b.view.Bottom()
		}
		return nil
	case SearchDown:
		return b.search(string(c), false, b.view.DownToLineMatching)
	case SearchDownNext:
		return b.search(string(c), true, b.view.DownToLineMatching)
	case SearchUp:
		return b.search(string(c), false, func(re *regexp.Regexp, _ bool, cancel *filebuffer.Cancel) error {
			return b.view.UpToLineMatching(re, cancel)
		})
	case MoveLine:
		switch {
		case c > 0:
			return b.view.Down(uint64(c))
		case c < 0:
			return b.view.Up(uint64(-c))
		default:
			return nil
		}
	case JumpLine:
		return b.view.JumpToLine(int64(c))
	case JumpFileRatio:
		total, err := b.view.FileSize()
		if err != nil {
			return err
		}
		ratio := float64(c)
		switch {
		case ratio < 0:
			ratio = 0
		case ratio > 1:
			ratio = 1
		}
		return b.view.JumpToByte(uint64(float64(total) * ratio))
	case Resize:
		b.width = c.Width
		b.height = c.Height
		return nil
	case SaveMark:
		b.marks[string(c)] = b.view.SaveState()
		return nil
	case LoadMark:
		state, ok := b.marks[string(c)]
		if !ok {
			return ErrUnknownMark
		}
		return b.view.LoadState(state)
	default:
		return nil
	}
}

type matchFunc func(re *regexp.Regexp, skipCurrent bool, cancel *filebuffer.Cancel) error

func (b *Broker) search(pattern string, skipCurrent bool, match matchFunc) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fileview.ErrInvalidRegex
	}
	err = match(re, skipCurrent, &b.cancelled)
	if errors.Is(err, fileview.ErrCancelled) {
		return fileview.ErrCancelled
	}
	return err
}

func (b *Broker) publish() error {
	total, err := b.view.FileSize()
	if err != nil {
		b.lastErrors = append(b.lastErrors, err)
	}
	b.sawFileSize = err == nil
	if err == nil {
		b.lastSize = total
	}

	offsetBefore := b.view.Offset()
	lines, err := b.view.View(int(b.height), b.width)
	if err != nil {
		b.lastErrors = append(b.lastErrors, err)
		lines = nil
	}
	if b.view.Offset() < offsetBefore {
		b.lastErrors = append(b.lastErrors, fileview.ErrEOF)
	}

	for i, line := range lines {
		lines[i] = text.ExpandTabs(line, b.tabWidth)
	}

	state := BackendState{
		FilePath:     b.filePath,
		RealFilePath: b.view.RealFilePath(),
		FileSize:     total,
		CurrentLine:  b.view.CurrentLine(),
		Offset:       b.view.Offset(),
		Text:         lines,
		Follow:       b.follow,
		Marks:        markNames(b.marks),
		Errors:       b.lastErrors,
	}

	select {
	case <-b.state:
	default:
	}
	select {
	case b.state <- state:
		return nil
	default:
		return ErrStatePublishFailed
	}
}

func markNames(marks map[string]fileview.ViewState) []string {
	if len(marks) == 0 {
		return nil
	}
	names := make([]string, 0, len(marks))
	for name := range marks {
		names = append(names, name)
	}
	return names
}
