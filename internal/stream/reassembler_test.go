// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(r *Reassembler, chunks ...[]byte) []string {
	var out []string
	for _, c := range chunks {
		out = append(out, r.Push(c)...)
	}
	return out
}

func TestReassembler_SplitsLines(t *testing.T) {
	r := NewReassembler()

	lines := feed(r, []byte("data: a\n\ndata: b\n"))

	assert.Equal(t, []string{"data: a", "", "data: b"}, lines)
	assert.Equal(t, 0, r.Buffered())
	assert.Equal(t, 3, r.Lines())
}

func TestReassembler_BuffersPartialLine(t *testing.T) {
	r := NewReassembler()

	assert.Empty(t, r.Push([]byte("data: {\"typ")))
	assert.Equal(t, 11, r.Buffered())

	lines := r.Push([]byte("e\":1}\n"))
	assert.Equal(t, []string{`data: {"type":1}`}, lines)
}

func TestReassembler_TrailingLineDropped(t *testing.T) {
	r := NewReassembler()

	lines := feed(r, []byte("data: one\ndata: tw"), []byte("o"))

	assert.Equal(t, []string{"data: one"}, lines)
	assert.Equal(t, 9, r.Close())
	assert.Equal(t, 0, r.Buffered())
}

func TestReassembler_EmptyChunk(t *testing.T) {
	r := NewReassembler()
	assert.Nil(t, r.Push(nil))
	assert.Nil(t, r.Push([]byte{}))
	assert.Equal(t, 0, r.Close())
}

func TestReassembler_MultiByteAcrossChunks(t *testing.T) {
	payload := []byte("data: héllo 日本 ❌\n")

	// Cut inside every character, including the 3-byte sequences.
	for cut := 1; cut < len(payload); cut++ {
		r := NewReassembler()
		lines := feed(r, payload[:cut], payload[cut:])
		require.Equal(t, []string{"data: héllo 日本 ❌"}, lines, "cut at %d", cut)
	}
}

func TestReassembler_InvalidBytesReplaced(t *testing.T) {
	r := NewReassembler()

	lines := r.Push([]byte{'a', 0xff, 'b', '\n'})

	require.Len(t, lines, 1)
	assert.Equal(t, "a\uFFFDb", lines[0])
}

func TestReassembler_StripsLeadingBOM(t *testing.T) {
	r := NewReassembler()

	lines := r.Push([]byte("\xEF\xBB\xBFdata: x\n\xEF\xBB\xBFy\n"))

	assert.Equal(t, []string{"data: x", "\uFEFFy"}, lines, "only the stream start is stripped")
}

func TestReassembler_ChunkBoundaryInvariance(t *testing.T) {
	stream := []byte("data: {\"type\":\"content_block_delta\",\"delta\":{\"text\":\"Grüß\"}}\n\n" +
		"data: [DONE]\n" +
		": keep-alive\r\n" +
		"data: 日本語\n")
	want := feed(NewReassembler(), stream)
	require.Len(t, want, 5)

	// Every two-cut split.
	for i := 0; i <= len(stream); i++ {
		for j := i; j <= len(stream); j++ {
			got := feed(NewReassembler(), stream[:i], stream[i:j], stream[j:])
			if !assert.Equal(t, want, got, "cuts at %d,%d", i, j) {
				return
			}
		}
	}

	// Random chunkings, down to single bytes.
	rng := rand.New(rand.NewSource(7))
	for n := 0; n < 200; n++ {
		r := NewReassembler()
		var got []string
		for rest := stream; len(rest) > 0; {
			size := 1 + rng.Intn(8)
			if size > len(rest) {
				size = len(rest)
			}
			got = append(got, r.Push(rest[:size])...)
			rest = rest[size:]
		}
		require.Equal(t, want, got)
	}
}
