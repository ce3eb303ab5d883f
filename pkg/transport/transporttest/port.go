// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transporttest provides a scripted in-memory Port for testing
// drivers without hardware.
package transporttest

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"time"
)

// Port is a fake instrument. Each write is recorded; when a write, with its
// line terminator trimmed, matches a scripted command the queued reply is
// made available to Read.
type Port struct {
	mu      sync.Mutex
	rx      []byte
	writes  [][]byte
	replies map[string][][]byte
	timeout time.Duration
	closed  bool
	signal  chan struct{}

	// ReadTimeouts counts reads that returned no data.
	ReadTimeouts int
}

// NewPort returns an empty fake port.
func NewPort() *Port {
	return &Port{
		replies: make(map[string][][]byte),
		timeout: time.Second,
		signal:  make(chan struct{}, 1),
	}
}

// Reply queues reply for the next write of cmd. Replies for the same
// command are consumed in order; a command with no queued reply gets none.
func (p *Port) Reply(cmd string, reply []byte) *Port {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies[cmd] = append(p.replies[cmd], reply)
	return p
}

// ReplyLine queues a text reply terminated with LF.
func (p *Port) ReplyLine(cmd, line string) *Port {
	return p.Reply(cmd, []byte(line+"\n"))
}

// Feed makes data readable immediately.
func (p *Port) Feed(data []byte) {
	p.mu.Lock()
	p.rx = append(p.rx, data...)
	p.mu.Unlock()
	p.notify()
}

func (p *Port) notify() {
	select {
	case p.signal <- struct{}{}:
	default:
	}
}

// Writes returns a copy of every write so far.
func (p *Port) Writes() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.writes))
	for i, w := range p.writes {
		out[i] = bytes.Clone(w)
	}
	return out
}

// Lines returns every write as text with line terminators trimmed.
func (p *Port) Lines() []string {
	writes := p.Writes()
	out := make([]string, len(writes))
	for i, w := range writes {
		out[i] = strings.TrimRight(string(w), "\r\n")
	}
	return out
}

// Closed reports whether Close was called.
func (p *Port) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Port) Write(data []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	p.writes = append(p.writes, bytes.Clone(data))

	key := strings.TrimRight(string(data), "\r\n")
	fed := false
	if queue := p.replies[key]; len(queue) > 0 {
		p.rx = append(p.rx, queue[0]...)
		p.replies[key] = queue[1:]
		fed = true
	}
	p.mu.Unlock()

	if fed {
		p.notify()
	}
	return len(data), nil
}

// Read returns buffered reply bytes, or 0, nil once the read timeout
// passes with nothing to read.
func (p *Port) Read(buf []byte) (int, error) {
	p.mu.Lock()
	timeout := p.timeout
	p.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		p.mu.Lock()
		if len(p.rx) > 0 {
			n := copy(buf, p.rx)
			p.rx = p.rx[n:]
			p.mu.Unlock()
			return n, nil
		}
		if p.closed {
			p.mu.Unlock()
			return 0, io.EOF
		}
		p.mu.Unlock()

		select {
		case <-p.signal:
		case <-timer.C:
			p.mu.Lock()
			p.ReadTimeouts++
			p.mu.Unlock()
			return 0, nil
		}
	}
}

func (p *Port) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	p.timeout = t
	p.mu.Unlock()
	return nil
}

// ResetInputBuffer drops unread reply bytes.
func (p *Port) ResetInputBuffer() error {
	p.mu.Lock()
	p.rx = nil
	p.mu.Unlock()
	return nil
}

func (p *Port) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.notify()
	return nil
}
