package filebuffer

import (
	"bytes"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/grafana/regexp"
	log "github.com/sirupsen/logrus"

	"github.com/qchateau/bless/internal/loopbreak"
)

const (
	// magicRfindWindow bounds one backward scan for a block's start magic.
	magicRfindWindow = 64 << 10
	// magicOverlap is enough bytes to catch a magic straddling a window edge.
	magicOverlap = 8
	// maxInvalidBlocks bounds retries against magic collisions in the
	// compressed stream before giving up on a jump or load.
	maxInvalidBlocks = 10
	// headerLen is the length of the "BZh" + block-size-digit stream header.
	headerLen = 4
)

// blockMagic is the 6-byte sequence that opens every compressed block.
var blockMagic = [6]byte{0x31, 0x41, 0x59, 0x26, 0x53, 0x59}

// endOfStreamMagic is the 6-byte sequence that closes a bzip2 stream.
var endOfStreamMagic = [6]byte{0x17, 0x72, 0x45, 0x38, 0x50, 0x90}

// bzipBlock is one independently decodable compressed unit, already
// decoded into memory.
type bzipBlock struct {
	fileRange ByteRange
	decoded   []byte
}

// Bzip2Buffer is a decoded byte-window over a bzip2-compressed file. It
// never holds the whole file; it holds one or more contiguous decoded
// blocks, discovered by scanning the compressed bytes for block magics.
type Bzip2Buffer struct {
	file       *os.File
	mapping    mmap.MMap
	mappedSize int64
	header     [headerLen]byte
	blocks     []bzipBlock
	data       []byte
}

func newBzip2Buffer(f *os.File, header [headerLen]byte) (*Bzip2Buffer, error) {
	b := &Bzip2Buffer{file: f, header: header}
	b.ensureMapping()
	return b, nil
}

func (b *Bzip2Buffer) ensureMapping() {
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
		log.WithError(err).Debug("mmap failed scanning bzip2 block magics")
		return
	}
	b.mapping = m
	b.mappedSize = size
}

func (b *Bzip2Buffer) Data() []byte {
	return b.data
}

func (b *Bzip2Buffer) Range() ByteRange {
	if len(b.blocks) == 0 {
		return ByteRange{}
	}
	return ByteRange{Start: b.blocks[0].fileRange.Start, End: b.blocks[len(b.blocks)-1].fileRange.End}
}

func (b *Bzip2Buffer) TotalSize() (uint64, error) {
	info, err := b.file.Stat()
	if err != nil {
		return 0, err
	}
	return uint64(info.Size()), nil
}

// findBlockFrom forward-scans the mapping for a block magic at or after
// byte. If none is found before EOF, it returns the position just past the
// last mapped byte, which self-consistently signals "no further block" to
// Jump/LoadNext.
func (b *Bzip2Buffer) findBlockFrom(byteOff uint64) uint64 {
	b.ensureMapping()
	data := b.mapping
	if byteOff >= uint64(len(data)) {
		return uint64(len(data))
	}
	idx := bytes.Index(data[byteOff:], blockMagic[:])
	if idx < 0 {
		return uint64(len(data))
	}
	return byteOff + uint64(idx)
}

// rfindBlockFrom reverse-scans in sliding windows for a block magic at or
// before byte. If none is found by BOF, it returns headerLen: the implicit
// start of the first block, whether reached by match or by running out of
// stream to scan.
func (b *Bzip2Buffer) rfindBlockFrom(byteOff uint64) uint64 {
	b.ensureMapping()
	data := b.mapping
	// end must reach far enough past byteOff that a magic starting exactly
	// at byteOff is still wholly inside the scanned window.
	end := byteOff + uint64(len(blockMagic))
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}

	for end > headerLen {
		winStart := uint64(0)
		if end > magicRfindWindow {
			winStart = end - magicRfindWindow
		}
		idx := bytes.LastIndex(data[winStart:end], blockMagic[:])
		if idx >= 0 {
			return winStart + uint64(idx)
		}
		if winStart == 0 {
			break
		}
		end = winStart + magicOverlap
	}
	return headerLen
}

// decodeBlock decodes the compressed bytes in fileRange by wrapping them
// in a synthetic single-block bzip2 stream (stream header + the real
// block bytes + a fabricated end-of-stream trailer) and running it
// through the standard library's decoder.
//
// The standard library always verifies the combined stream CRC once it
// reaches the end-of-stream magic, and we have no way to compute that
// checksum for an arbitrary sub-range without a block-level decoder — no
// library in the dependency set exposes one (see DESIGN.md). Every actual
// block byte is still validated against its own embedded block CRC before
// that point, so once the real data has been fully read out we treat any
// resulting structural error on our fabricated trailer as expected and
// keep the bytes already decoded. The trailing garbage isn't always our
// own fake CRC either: a range that runs to the real end of the file
// carries the stream's genuine end-of-stream magic and CRC, which decodes
// cleanly on its own and leaves our fabricated trailer as inert bytes
// after it, tripping a "bad magic" error instead of a checksum one — both
// are equally benign once decoded is non-empty.
func (b *Bzip2Buffer) decodeBlock(r ByteRange) ([]byte, error) {
	b.ensureMapping()
	if r.End > uint64(len(b.mapping)) {
		r.End = uint64(len(b.mapping))
	}
	if r.End <= r.Start {
		return nil, fmt.Errorf("empty block range %d-%d", r.Start, r.End)
	}
	compressed := b.mapping[r.Start:r.End]

	synthetic := make([]byte, 0, headerLen+len(compressed)+len(endOfStreamMagic)+4)
	synthetic = append(synthetic, b.header[:]...)
	synthetic = append(synthetic, compressed...)
	synthetic = append(synthetic, endOfStreamMagic[:]...)
	synthetic = append(synthetic, 0, 0, 0, 0)

	reader := bzip2.NewReader(bytes.NewReader(synthetic))
	decoded, err := io.ReadAll(reader)
	if err != nil {
		var serr bzip2.StructuralError
		if errors.As(err, &serr) && len(decoded) > 0 {
			return decoded, nil
		}
		return nil, fmt.Errorf("decoding bzip2 block %d-%d: %w", r.Start, r.End, err)
	}
	return decoded, nil
}

// decodeBlockWithRetry retries decodeBlock at successive candidate block
// boundaries when the decoder rejects a range, bounded by an
// InfiniteLoopBreaker so a pathological magic collision cannot hang the
// pager.
func (b *Bzip2Buffer) decodeBlockWithRetry(start, firstEnd uint64) (ByteRange, []byte, error) {
	breaker := loopbreak.New(maxInvalidBlocks)
	end := firstEnd
	var lastErr error
	for {
		if end <= start {
			if lastErr != nil {
				return ByteRange{}, nil, lastErr
			}
			return ByteRange{}, nil, nil
		}
		decoded, err := b.decodeBlock(ByteRange{Start: start, End: end})
		if err == nil {
			return ByteRange{Start: start, End: end}, decoded, nil
		}
		lastErr = err
		log.WithError(err).Debug("bzip2 block decode failed, retrying at next boundary")
		if tickErr := breaker.Tick(); tickErr != nil {
			return ByteRange{}, nil, tickErr
		}
		end = b.findBlockFrom(end + 1)
	}
}

func (b *Bzip2Buffer) Jump(pos uint64) (uint64, error) {
	start := b.rfindBlockFrom(pos)
	end := b.findBlockFrom(pos + 1)
	if end <= start {
		end = b.findBlockFrom(start + 1)
	}

	fileRange, decoded, err := b.decodeBlockWithRetry(start, end)
	if err != nil {
		return 0, err
	}
	if decoded == nil {
		b.blocks = nil
		b.data = nil
		return start, nil
	}

	b.blocks = []bzipBlock{{fileRange: fileRange, decoded: decoded}}
	b.data = decoded
	return fileRange.Start, nil
}

func (b *Bzip2Buffer) LoadNext() (int, error) {
	if len(b.blocks) == 0 {
		return 0, nil
	}
	last := b.blocks[len(b.blocks)-1]
	start := last.fileRange.End
	firstEnd := b.findBlockFrom(start + 1)

	fileRange, decoded, err := b.decodeBlockWithRetry(start, firstEnd)
	if err != nil {
		return 0, err
	}
	if decoded == nil {
		return 0, nil
	}

	b.blocks = append(b.blocks, bzipBlock{fileRange: fileRange, decoded: decoded})
	b.data = append(b.data, decoded...)
	return len(decoded), nil
}

func (b *Bzip2Buffer) LoadPrev() (int, error) {
	if len(b.blocks) == 0 {
		return 0, nil
	}
	first := b.blocks[0]
	if first.fileRange.Start <= headerLen {
		return 0, nil
	}

	start := b.rfindBlockFrom(first.fileRange.Start - 1)
	end := first.fileRange.Start

	decoded, err := b.decodeBlock(ByteRange{Start: start, End: end})
	if err != nil {
		return 0, err
	}

	b.blocks = append([]bzipBlock{{fileRange: ByteRange{Start: start, End: end}, decoded: decoded}}, b.blocks...)
	merged := make([]byte, 0, len(decoded)+len(b.data))
	merged = append(merged, decoded...)
	merged = append(merged, b.data...)
	b.data = merged
	return len(decoded), nil
}

// ShrinkTo drops whole blocks from the front while their cumulative
// decoded length stays <= range.start, then truncates blocks from the
// back so the remaining decoded length covers range.end. r is expressed
// in the same mixed space FileView's generic shrink-cursor computes
// (buffer.Range().Start + view_offset): since decoded and compressed
// sizes diverge arbitrarily for bzip2, that cursor is only ever a rough
// proxy here (like Offset()'s own projection), so blocks are evicted by
// decoded length rather than by re-deriving exact file positions.
func (b *Bzip2Buffer) ShrinkTo(r ByteRange) ByteRange {
	start, end := int(r.Start), int(r.End)

	dropped := 0
	first := 0
	for first < len(b.blocks)-1 {
		blockLen := len(b.blocks[first].decoded)
		if dropped+blockLen > start {
			break
		}
		dropped += blockLen
		first++
	}
	b.blocks = b.blocks[first:]

	kept := 0
	last := len(b.blocks)
	for i, blk := range b.blocks {
		kept += len(blk.decoded)
		if dropped+kept >= end {
			last = i + 1
			break
		}
	}
	b.blocks = b.blocks[:last]

	b.data = b.data[:0]
	for _, blk := range b.blocks {
		b.data = append(b.data, blk.decoded...)
	}
	return ByteRange{Start: uint64(dropped), End: uint64(dropped + len(b.data))}
}

// SeekFrom and RSeekFrom operate over already-decoded data, since
// arbitrary byte offsets in decompressed space require decoding first.
// Block granularity makes a generic sliding-window scan awkward to bound
// correctly here, so this buffer reports Unsupported and lets FileView
// fall back to its own scan-and-load strategy (permitted by the contract).
func (b *Bzip2Buffer) SeekFrom(re *regexp.Regexp, offset uint64, cancel *Cancel) (*ByteRange, error) {
	return nil, ErrUnsupported
}

func (b *Bzip2Buffer) RSeekFrom(re *regexp.Regexp, offset uint64, cancel *Cancel) (*ByteRange, error) {
	return nil, ErrUnsupported
}

func (b *Bzip2Buffer) Close() error {
	if b.mapping != nil {
		b.mapping.Unmap()
	}
	return b.file.Close()
}
