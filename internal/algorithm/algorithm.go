// Package algorithm holds small byte-scanning helpers shared by the file
// buffer and file view layers.
package algorithm

import "bytes"

// FindNthOrLast scans data forward for byte b, stopping at the (nth)-th
// occurrence (0-based). If fewer than nth+1 occurrences exist, it stops at
// whatever was last found instead. It returns the index of that occurrence
// and how many occurrences were seen (count-1 == nth iff the target was
// reached); ok is false only when b does not occur in data at all.
func FindNthOrLast(data []byte, b byte, nth int) (pos int, count int, ok bool) {
	start := 0
	for {
		idx := bytes.IndexByte(data[start:], b)
		if idx < 0 {
			return pos, count, count > 0
		}
		pos = start + idx
		count++
		if count-1 == nth {
			return pos, count, true
		}
		start = pos + 1
	}
}

// RFindNthOrLast is the mirror of FindNthOrLast, scanning backward from the
// end of data.
func RFindNthOrLast(data []byte, b byte, nth int) (pos int, count int, ok bool) {
	end := len(data)
	for {
		idx := bytes.LastIndexByte(data[:end], b)
		if idx < 0 {
			return pos, count, count > 0
		}
		pos = idx
		count++
		if count-1 == nth {
			return pos, count, true
		}
		end = pos
	}
}
