package broker

import "errors"

// ErrUnknownMark is returned by LoadMark when no mark of that name exists.
var ErrUnknownMark = errors.New("unknown mark")

// ErrCommandChannelClosed is fatal: the renderer will never send another
// command, so the broker has no further work to do.
var ErrCommandChannelClosed = errors.New("command channel closed")

// ErrCancelChannelClosed is fatal for the same reason as
// ErrCommandChannelClosed.
var ErrCancelChannelClosed = errors.New("cancel channel closed")

// ErrStatePublishFailed is fatal: the renderer can no longer observe the
// view, so continuing to run the broker serves no purpose.
var ErrStatePublishFailed = errors.New("state channel closed")
