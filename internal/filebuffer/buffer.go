// Package filebuffer implements the byte-window layer of the pager: a raw
// variant backed directly by a file, and a bzip2 variant that maintains a
// decoded window over a compressed stream. Both share one contract so the
// layer above never needs to know which kind it is paging through.
package filebuffer

import (
	"errors"
	"os"

	"github.com/grafana/regexp"
)

// ErrUnsupported is returned by operations a particular buffer variant does
// not implement, letting the caller fall back to a generic strategy.
var ErrUnsupported = errors.New("operation not supported by this buffer")

// ErrCancelled is returned by a search operation when its cancel flag was
// observed set before a match was found.
var ErrCancelled = errors.New("search cancelled")

// Buffer is a byte-window over a file. It owns a contiguous decoded region
// and knows the file-coordinate range that produced it.
type Buffer interface {
	// Data returns the currently loaded decoded bytes.
	Data() []byte
	// Range returns the file-coordinate range the loaded data corresponds
	// to. For raw buffers len(Data()) == Range().End-Range().Start; for
	// bzip2 buffers Data() is the decompressed size and may differ.
	Range() ByteRange
	// TotalSize returns the current physical file length. It may grow
	// between calls if the file is being appended to concurrently.
	TotalSize() (uint64, error)
	// Jump discards the current window and repositions at the requested
	// byte. The actual jump position may differ and is returned.
	Jump(pos uint64) (uint64, error)
	// LoadPrev extends the window backward, returning the number of bytes
	// prepended to Data().
	LoadPrev() (int, error)
	// LoadNext extends the window forward, returning the number of bytes
	// appended to Data(). A zero-length read signals EOF for now; the file
	// may still grow.
	LoadNext() (int, error)
	// ShrinkTo drops bytes outside of the requested decoded range and
	// returns the range actually kept (may be wider, e.g. rounded to whole
	// bzip2 blocks).
	ShrinkTo(r ByteRange) ByteRange
	// SeekFrom searches forward starting at Data()[offset:], loading more
	// data as needed, and returns the match's file-coordinate range.
	SeekFrom(re *regexp.Regexp, offset uint64, cancel *Cancel) (*ByteRange, error)
	// RSeekFrom searches backward starting at Data()[:offset].
	RSeekFrom(re *regexp.Regexp, offset uint64, cancel *Cancel) (*ByteRange, error)
	// Close releases any OS resources (mappings, file descriptors).
	Close() error
}

// ByteRange is a half-open [Start, End) span of bytes.
type ByteRange struct {
	Start uint64
	End   uint64
}

// Len returns End-Start.
func (r ByteRange) Len() uint64 {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// bzip2HeaderPattern matches a valid bzip2 stream header: "BZh" followed by
// the block-size digit 1-9.
var bzip2HeaderPattern = regexp.MustCompile(`^BZh[1-9]`)

// New opens path and returns the appropriate Buffer variant: bzip2 if the
// file starts with a valid bzip2 stream header, raw otherwise.
func New(path string) (Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var header [4]byte
	n, _ := f.ReadAt(header[:], 0)
	if n == 4 && bzip2HeaderPattern.Match(header[:]) {
		buf, err := newBzip2Buffer(f, header)
		if err != nil {
			f.Close()
			return nil, err
		}
		return buf, nil
	}

	return newRawBuffer(f), nil
}
