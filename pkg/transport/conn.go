// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport provides the byte channel to an instrument.
//
// A Conn wraps one backend Port (serial line, Prologix GPIB adapter, USBTMC
// device or websocket bridge) and adds line framing, exact-length binary
// reads and per-read timeouts. Framing of binary payloads is left to the
// caller.
package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/Thermoquad/benchtop/pkg/logger"
)

const readChunkSize = 4096

// Port is the backend of a connection.
//
// Read follows the go.bug.st/serial convention: when the read timeout
// expires with no data it returns 0, nil.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// inputFlusher is implemented by ports that can drop bytes already received.
type inputFlusher interface {
	ResetInputBuffer() error
}

// Conn is an open connection to one instrument.
//
// Conn is NOT goroutine-safe apart from Close. The owner issues one
// operation at a time, matching the half-duplex command discipline of
// the instrument buses.
type Conn struct {
	address string
	port    Port
	cfg     *Config
	logger  logger.Logger
	stats   *Statistics

	pending []byte
	buf     []byte

	closeOnce sync.Once
	closeErr  error
	closed    chan struct{}
}

// NewConn wraps an already open port. Open is the usual entry point;
// NewConn exists for custom backends and tests.
func NewConn(address string, port Port, opts ...Option) (*Conn, error) {
	kind := KindSerial
	if a, err := ParseAddress(address); err == nil {
		kind = a.Kind
	}
	cfg, err := newConfig(kind, opts...)
	if err != nil {
		return nil, err
	}
	return newConn(address, port, cfg), nil
}

func newConn(address string, port Port, cfg *Config) *Conn {
	stats := cfg.stats
	if stats == nil && cfg.registry != nil {
		stats = cfg.registry.For(address)
	}
	if stats == nil {
		stats = NewStatistics()
	}
	return &Conn{
		address: address,
		port:    port,
		cfg:     cfg,
		logger:  cfg.logger.With("address", address),
		stats:   stats,
		buf:     make([]byte, readChunkSize),
		closed:  make(chan struct{}),
	}
}

// Address returns the address the connection was opened with.
func (c *Conn) Address() string { return c.address }

// Timeout returns the default read timeout.
func (c *Conn) Timeout() time.Duration { return c.cfg.timeout }

// Terminator returns the line terminator.
func (c *Conn) Terminator() string { return c.cfg.terminator }

// ByteOrder returns the byte order setting for binary payloads.
func (c *Conn) ByteOrder() binary.ByteOrder { return c.cfg.byteOrder }

// Stats returns the connection's traffic counters.
func (c *Conn) Stats() *Statistics { return c.stats }

// Logger returns the connection's logger.
func (c *Conn) Logger() logger.Logger { return c.logger }

func (c *Conn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// WriteLine writes text followed by the terminator.
func (c *Conn) WriteLine(text string) error {
	if err := c.write([]byte(text + c.cfg.terminator)); err != nil {
		return err
	}
	c.stats.incLinesWritten()
	c.logger.Debug("write line", "data", text)
	return nil
}

// WriteBytes writes b as is.
func (c *Conn) WriteBytes(b []byte) error {
	if err := c.write(b); err != nil {
		return err
	}
	c.logger.Debug("write bytes", "len", len(b))
	return nil
}

func (c *Conn) write(data []byte) error {
	if c.isClosed() {
		return ErrChannelClosed
	}
	for written := 0; written < len(data); {
		n, err := c.port.Write(data[written:])
		written += n
		c.stats.addBytesWritten(n)
		if err != nil {
			c.stats.incErrors()
			if c.isClosed() || errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: %w", ErrChannelClosed, err)
			}
			return fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
		if n == 0 {
			c.stats.incErrors()
			return fmt.Errorf("%w: port accepted no bytes", ErrWriteFailed)
		}
	}
	return nil
}

// ReadLine reads one line and strips the terminator. A trailing CR is
// stripped as well. A non-positive timeout uses the configured default.
func (c *Conn) ReadLine(timeout time.Duration) (string, error) {
	deadline := c.deadline(timeout)
	delim := c.cfg.terminator[len(c.cfg.terminator)-1]

	for {
		if i := bytes.IndexByte(c.pending, delim); i >= 0 {
			line := string(c.pending[:i+1])
			c.consume(i + 1)

			line = strings.TrimSuffix(line, c.cfg.terminator)
			line = strings.TrimRight(line, "\r\n")
			c.stats.incLinesRead()
			c.logger.Debug("read line", "data", line)
			return line, nil
		}
		if err := c.fill(deadline); err != nil {
			return "", c.readFailed(err, "line")
		}
	}
}

// ReadBytes reads exactly n bytes. A non-positive timeout uses the
// configured default.
func (c *Conn) ReadBytes(n int, timeout time.Duration) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative read length %d", n)
	}
	deadline := c.deadline(timeout)

	for len(c.pending) < n {
		if err := c.fill(deadline); err != nil {
			return nil, c.readFailed(err, fmt.Sprintf("%d bytes", n))
		}
	}

	out := make([]byte, n)
	copy(out, c.pending)
	c.consume(n)
	c.logger.Debug("read bytes", "len", n)
	return out, nil
}

func (c *Conn) deadline(timeout time.Duration) time.Time {
	if timeout <= 0 {
		timeout = c.cfg.timeout
	}
	return time.Now().Add(timeout)
}

func (c *Conn) consume(n int) {
	c.pending = append(c.pending[:0], c.pending[n:]...)
}

// fill reads whatever the port has before the deadline.
func (c *Conn) fill(deadline time.Time) error {
	if c.isClosed() {
		return ErrChannelClosed
	}

	remaining := time.Until(deadline)
	if remaining <= 0 {
		return ErrTimeout
	}
	if err := c.port.SetReadTimeout(remaining); err != nil {
		return fmt.Errorf("%w: %w", ErrChannelClosed, err)
	}

	n, err := c.port.Read(c.buf)
	if n > 0 {
		c.pending = append(c.pending, c.buf[:n]...)
		c.stats.addBytesRead(n)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrChannelClosed, err)
	}
	return nil
}

// readFailed classifies a failed read. After a timeout the partial input is
// discarded so the next command starts from a clean line.
func (c *Conn) readFailed(err error, what string) error {
	if errors.Is(err, ErrTimeout) {
		c.stats.incTimeouts()
		c.logger.Warn("read timeout", "waiting_for", what, "discarded", len(c.pending))
		c.Flush()
		return fmt.Errorf("%w: waiting for %s from %s", ErrTimeout, what, c.address)
	}
	c.stats.incErrors()
	return err
}

// Flush drops any received but unread input.
func (c *Conn) Flush() {
	c.pending = c.pending[:0]
	if f, ok := c.port.(inputFlusher); ok {
		if err := f.ResetInputBuffer(); err != nil {
			c.logger.Debug("reset input buffer failed", "error", err)
		}
	}
}

// Close closes the port. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.closeErr = c.port.Close()
		c.logger.Debug("closed")
	})
	return c.closeErr
}
