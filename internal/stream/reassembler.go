// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

const byteOrderMark = "\uFEFF"

// Reassembler converts a sequence of byte chunks into complete lines.
//
// The pending tail is kept as raw bytes and only split on '\n', which never
// appears inside a multi-byte UTF-8 sequence, so characters split across
// chunks are reassembled before decoding.
type Reassembler struct {
	buf     []byte
	decoder *encoding.Decoder
	started bool
	lines   int
}

// NewReassembler creates an empty reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{decoder: unicode.UTF8.NewDecoder()}
}

// Push appends chunk and returns every line it completed, in order, without
// the trailing newline.
func (r *Reassembler) Push(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	r.buf = append(r.buf, chunk...)

	var lines []string
	start := 0
	for {
		i := bytes.IndexByte(r.buf[start:], '\n')
		if i < 0 {
			break
		}
		lines = append(lines, r.decode(r.buf[start:start+i]))
		start += i + 1
	}
	if start > 0 {
		r.buf = append(r.buf[:0], r.buf[start:]...)
	}
	r.lines += len(lines)
	return lines
}

// Close ends the stream. Any unterminated trailing line is discarded and its
// length in bytes is returned.
func (r *Reassembler) Close() int {
	dropped := len(r.buf)
	r.buf = nil
	return dropped
}

// Buffered returns the number of bytes waiting for a newline.
func (r *Reassembler) Buffered() int {
	return len(r.buf)
}

// Lines returns the number of lines emitted so far.
func (r *Reassembler) Lines() int {
	return r.lines
}

func (r *Reassembler) decode(raw []byte) string {
	out, err := r.decoder.Bytes(raw)
	line := string(out)
	if err != nil {
		line = strings.ToValidUTF8(string(raw), "\uFFFD")
	}
	if !r.started {
		r.started = true
		line = strings.TrimPrefix(line, byteOrderMark)
	}
	return line
}
