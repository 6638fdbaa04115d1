package filebuffer

import "sync/atomic"

// Cancel is a shared flag polled at loop boundaries by long-running scans.
// It is set by a separate cancel handler goroutine and never carries a
// value beyond true/false, so a search left mid-scan can be abandoned
// cleanly rather than unwound via an error.
type Cancel struct {
	flag atomic.Bool
}

// Set raises the flag.
func (c *Cancel) Set() {
	c.flag.Store(true)
}

// Clear lowers the flag, readying it for the next operation.
func (c *Cancel) Clear() {
	c.flag.Store(false)
}

// IsSet reports whether the flag is currently raised.
func (c *Cancel) IsSet() bool {
	return c.flag.Load()
}
