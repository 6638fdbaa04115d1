package fileview

import "errors"

// ErrBOF is returned by Up when the view is already at the beginning of
// the file and cannot move further up.
var ErrBOF = errors.New("beginning of file")

// ErrEOF is returned by Down when the view is already at the end of the
// file and cannot move further down.
var ErrEOF = errors.New("end of file")

// ErrNoMatchFound is returned by the *_to_line_matching searches when the
// regex has no match anywhere in the searched direction.
var ErrNoMatchFound = errors.New("no match found")

// ErrCancelled is returned when a search's cancel flag was observed set.
var ErrCancelled = errors.New("search cancelled")

// ErrInvalidRegex is returned by callers that compile a user-supplied
// pattern before handing it to the view.
var ErrInvalidRegex = errors.New("invalid regex")
