// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package simflow

import (
	"bytes"
	"io"

	"github.com/gammazero/deque"
)

const (
	defaultTailLines = 20
	maxPartialLine   = 64 << 10
)

// outputCapture streams process output to a console writer while keeping a
// full copy and a bounded tail of complete lines. It is not safe for
// concurrent use; pass the same pointer as both Stdout and Stderr so that
// os/exec serializes writes.
type outputCapture struct {
	console io.Writer
	all     *bytes.Buffer // nil when only the tail is kept
	tail    deque.Deque[string]
	limit   int
	partial []byte
}

func newOutputCapture(console io.Writer, limit int) *outputCapture {
	if console == nil {
		console = io.Discard
	}
	if limit <= 0 {
		limit = defaultTailLines
	}
	return &outputCapture{
		console: console,
		all:     new(bytes.Buffer),
		limit:   limit,
	}
}

// newTailCapture keeps only the last limit lines, each cut to its final
// maxPartialLine bytes.
func newTailCapture(limit int) *outputCapture {
	c := newOutputCapture(io.Discard, limit)
	c.all = nil
	return c
}

func (c *outputCapture) Write(p []byte) (int, error) {
	if c.all != nil {
		c.all.Write(p)
	}
	data := p
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			c.partial = append(c.partial, data...)
			if excess := len(c.partial) - maxPartialLine; excess > 0 {
				c.partial = c.partial[:copy(c.partial, c.partial[excess:])]
			}
			break
		}
		line := append(c.partial, data[:i]...)
		c.pushLine(string(bytes.TrimSuffix(line, []byte{'\r'})))
		c.partial = c.partial[:0]
		data = data[i+1:]
	}
	// A failing console must not stall the child; the full copy is kept.
	_, _ = c.console.Write(p)
	return len(p), nil
}

func (c *outputCapture) pushLine(line string) {
	c.tail.PushBack(line)
	for c.tail.Len() > c.limit {
		c.tail.PopFront()
	}
}

// Output returns everything written so far, or nil for a tail capture.
func (c *outputCapture) Output() []byte {
	if c.all == nil {
		return nil
	}
	return c.all.Bytes()
}

// Tail returns up to the configured number of most recent lines, including
// an unterminated final line.
func (c *outputCapture) Tail() []string {
	lines := make([]string, 0, c.tail.Len()+1)
	for i := 0; i < c.tail.Len(); i++ {
		lines = append(lines, c.tail.At(i))
	}
	if len(c.partial) > 0 {
		lines = append(lines, string(c.partial))
		if len(lines) > c.limit {
			lines = lines[1:]
		}
	}
	return lines
}
