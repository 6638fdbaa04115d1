package filebuffer

import (
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/grafana/regexp"
	log "github.com/sirupsen/logrus"

	"github.com/qchateau/bless/internal/devec"
)

const (
	// bufferSize is the step by which the raw window grows on load_prev/load_next.
	bufferSize = 0xffff
	// findWindow is the size of one scan window during seek_from/rseek_from.
	findWindow = 1 << 20
	// findOverlap keeps matches straddling a window boundary discoverable.
	findOverlap = 4 << 10
)

// RawBuffer is a byte-window backed directly by a file, preferring a
// memory map and falling back to a DeVec filled by pread when mapping
// fails (e.g. on a zero-length or special file).
type RawBuffer struct {
	file       *os.File
	mapping    mmap.MMap
	mappedSize int64
	fallback   *devec.DeVec[byte]
	usingMap   bool
	fileRange  ByteRange
}

func newRawBuffer(f *os.File) *RawBuffer {
	return &RawBuffer{
		file:     f,
		fallback: devec.New[byte](),
	}
}

func (b *RawBuffer) ensureMapping() {
	info, err := b.file.Stat()
	if err != nil {
		return
	}
	size := info.Size()
	if size == 0 || size <= b.mappedSize {
		return
	}
	if b.mapping != nil {
		b.mapping.Unmap()
	}
	m, err := mmap.MapRegion(b.file, int(size), mmap.RDONLY, 0, 0)
	if err != nil {
		log.WithError(err).Debug("mmap failed, falling back to pread")
		b.usingMap = false
		return
	}
	b.mapping = m
	b.mappedSize = size
	b.usingMap = true
}

func (b *RawBuffer) Data() []byte {
	if b.usingMap {
		return b.mapping[b.fileRange.Start:b.fileRange.End]
	}
	return b.fallback.AsSlice()
}

func (b *RawBuffer) Range() ByteRange {
	return b.fileRange
}

func (b *RawBuffer) TotalSize() (uint64, error) {
	info, err := b.file.Stat()
	if err != nil {
		return 0, err
	}
	return uint64(info.Size()), nil
}

func (b *RawBuffer) Jump(pos uint64) (uint64, error) {
	b.ensureMapping()
	if b.usingMap {
		b.fileRange = ByteRange{Start: pos, End: pos}
		return pos, nil
	}
	b.fallback.Clear()
	b.fileRange = ByteRange{Start: pos, End: pos}
	return pos, nil
}

func (b *RawBuffer) LoadPrev() (int, error) {
	b.ensureMapping()

	tryReadSize := min64(b.fileRange.Start, bufferSize)
	if tryReadSize == 0 {
		return 0, nil
	}
	readOffset := b.fileRange.Start - tryReadSize

	if b.usingMap {
		b.fileRange.Start = readOffset
		return int(tryReadSize), nil
	}

	b.fallback.ResizeFront(b.fallback.Len() + int(tryReadSize))
	buf := b.fallback.AsSlice()[:tryReadSize]
	n, err := b.file.ReadAt(buf, int64(readOffset))
	if n < 0 {
		n = 0
	}
	missing := int(tryReadSize) - n
	if missing > 0 {
		b.fallback.ResizeFront(b.fallback.Len() - missing)
	}
	b.fileRange.Start -= uint64(n)
	if err != nil && n > 0 {
		err = nil
	}
	return n, err
}

func (b *RawBuffer) LoadNext() (int, error) {
	b.ensureMapping()

	readOffset := b.fileRange.End
	if b.usingMap {
		total, err := b.TotalSize()
		if err != nil {
			return 0, err
		}
		end := readOffset + bufferSize
		if end > total {
			end = total
		}
		n := int(end - readOffset)
		b.fileRange.End = end
		return n, nil
	}

	sizeBefore := b.fallback.Len()
	b.fallback.ResizeBack(sizeBefore + bufferSize)
	buf := b.fallback.AsSlice()[sizeBefore:]
	n, err := b.file.ReadAt(buf, int64(readOffset))
	if n < 0 {
		n = 0
	}
	b.fallback.ResizeBack(sizeBefore + n)
	b.fileRange.End += uint64(n)
	if err != nil && n > 0 {
		err = nil
	}
	return n, err
}

func (b *RawBuffer) ShrinkTo(r ByteRange) ByteRange {
	inter := ByteRange{Start: max64(b.fileRange.Start, r.Start), End: min64NoCap(b.fileRange.End, r.End)}
	if inter.End <= inter.Start {
		b.fileRange = ByteRange{Start: inter.Start, End: inter.Start}
		if !b.usingMap {
			b.fallback.Clear()
		}
		return b.fileRange
	}

	extraEnd := satSub(b.fileRange.End, inter.End)
	extraStart := satSub(inter.Start, b.fileRange.Start)

	if !b.usingMap {
		b.fallback.ResizeBack(b.fallback.Len() - int(extraEnd))
		b.fallback.ResizeFront(b.fallback.Len() - int(extraStart))
		b.fallback.Shrink(int(inter.End - inter.Start))
	}
	b.fileRange = inter
	return inter
}

func (b *RawBuffer) SeekFrom(re *regexp.Regexp, offset uint64, cancel *Cancel) (*ByteRange, error) {
	return b.scan(re, offset, cancel, true)
}

func (b *RawBuffer) RSeekFrom(re *regexp.Regexp, offset uint64, cancel *Cancel) (*ByteRange, error) {
	return b.scan(re, offset, cancel, false)
}

// scan implements both seek_from and rseek_from over sliding windows of the
// loaded data, extending the window via LoadNext when scanning forward runs
// off the end, symmetrically via LoadPrev when scanning backward runs off
// the start.
func (b *RawBuffer) scan(re *regexp.Regexp, offset uint64, cancel *Cancel, forward bool) (*ByteRange, error) {
	data := b.Data()
	if offset > uint64(len(data)) {
		offset = uint64(len(data))
	}

	if forward {
		pos := int(offset)
		for {
			if cancel.IsSet() {
				return nil, ErrCancelled
			}

			windowEnd := min(pos+findWindow, len(data))
			loc := re.FindIndex(data[pos:windowEnd])
			if loc != nil {
				start := b.fileRange.Start + uint64(pos+loc[0])
				end := b.fileRange.Start + uint64(pos+loc[1])
				return &ByteRange{Start: start, End: end}, nil
			}

			if windowEnd < len(data) {
				pos = windowEnd - findOverlap
				if pos < int(offset) {
					pos = int(offset)
				}
				continue
			}

			n, err := b.LoadNext()
			if err != nil {
				return nil, err
			}
			if n == 0 {
				return nil, nil
			}
			data = b.Data()
		}
	}

	end := int(offset)
	for {
		if cancel.IsSet() {
			return nil, ErrCancelled
		}

		windowStart := max(end-findWindow, 0)
		loc := lastMatch(re, data[windowStart:end])
		if loc != nil {
			start := b.fileRange.Start + uint64(windowStart+loc[0])
			stop := b.fileRange.Start + uint64(windowStart+loc[1])
			return &ByteRange{Start: start, End: stop}, nil
		}

		if windowStart > 0 {
			end = windowStart + findOverlap
			continue
		}

		n, err := b.LoadPrev()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, nil
		}
		data = b.Data()
		end += n
	}
}

func lastMatch(re *regexp.Regexp, data []byte) []int {
	all := re.FindAllIndex(data, -1)
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

func (b *RawBuffer) Close() error {
	if b.mapping != nil {
		b.mapping.Unmap()
	}
	return b.file.Close()
}

func min64(a uint64, b int) uint64 {
	if a < uint64(b) {
		return a
	}
	return uint64(b)
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func min64NoCap(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func satSub(a, b uint64) uint64 {
	if a <= b {
		return 0
	}
	return a - b
}
