package query

import (
	"context"
	"io"
)

// defaultMaxLineBytes is the line framer's byte bound when none is
// configured (spec.md §4.2).
const defaultMaxLineBytes = 1 << 20

// readChunkSize is how much the framer asks its source for per Read call.
// It bounds per-call work, not total memory; the line buffer itself is the
// memory bound (see Next).
const readChunkSize = 32 * 1024

// LineFramer turns a chunked byte stream into logical lines terminated by
// "\n" or "\r\n", with the terminator stripped. It buffers the current,
// not-yet-terminated line plus the unconsumed rest of at most one read
// chunk: peak memory is O(max_line_bytes + readChunkSize) regardless of
// total stream length, realizing spec.md §4.2 and the streaming-memory
// invariant (§8 #1).
type LineFramer struct {
	src          io.Reader
	maxLineBytes int

	buf        []byte
	searchFrom int
	chunk      []byte
	eof        bool
	done       bool
}

// NewLineFramer wraps src. maxLineBytes <= 0 selects the default (1 MiB).
func NewLineFramer(src io.Reader, maxLineBytes int) *LineFramer {
	if maxLineBytes <= 0 {
		maxLineBytes = defaultMaxLineBytes
	}
	return &LineFramer{
		src:          src,
		maxLineBytes: maxLineBytes,
		chunk:        make([]byte, readChunkSize),
	}
}

// Next returns the next logical line with its terminator stripped. It
// returns io.EOF once the source is exhausted and every byte has been
// delivered, including a final unterminated trailing line if one existed.
// The returned slice aliases the framer's internal buffer and is only
// valid until the next call to Next; callers that retain field contents
// past that point must copy them (the row splitter and parser do so when
// building Records).
func (f *LineFramer) Next(ctx context.Context) ([]byte, error) {
	if f.done {
		return nil, io.EOF
	}
	for {
		if idx := indexByte(f.buf[f.searchFrom:], '\n'); idx >= 0 {
			end := f.searchFrom + idx
			if end > f.maxLineBytes {
				f.done = true
				return nil, &LineTooLongError{Limit: f.maxLineBytes}
			}
			line := f.buf[:end]
			line = trimTrailingCR(line)
			f.buf = f.buf[end+1:]
			f.searchFrom = 0
			return line, nil
		}
		f.searchFrom = len(f.buf)

		if len(f.buf) > f.maxLineBytes {
			f.done = true
			return nil, &LineTooLongError{Limit: f.maxLineBytes}
		}

		if f.eof {
			f.done = true
			if len(f.buf) == 0 {
				return nil, io.EOF
			}
			line := trimTrailingCR(f.buf)
			f.buf = nil
			return line, nil
		}

		if err := ctx.Err(); err != nil {
			f.done = true
			return nil, err
		}

		n, err := f.src.Read(f.chunk)
		if n > 0 {
			f.buf = append(f.buf, f.chunk[:n]...)
		}
		if err != nil {
			if err != io.EOF {
				f.done = true
				return nil, &TransportError{Cause: err}
			}
			f.eof = true
		}
	}
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}

func trimTrailingCR(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\r' {
		return line[:n-1]
	}
	return line
}
