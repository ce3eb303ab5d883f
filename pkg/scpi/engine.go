// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scpi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Thermoquad/benchtop/pkg/logger"
	"github.com/Thermoquad/benchtop/pkg/waveform"
)

// Transport is the byte channel an Engine drives. *transport.Conn
// implements it.
type Transport interface {
	WriteLine(text string) error
	ReadLine(timeout time.Duration) (string, error)
	WriteBytes(b []byte) error
	ReadBytes(n int, timeout time.Duration) ([]byte, error)
	Timeout() time.Duration
}

type terminated interface {
	Terminator() string
}

// flusher is implemented by transports that can drop unread input.
type flusher interface {
	Flush()
}

// Engine issues commands over one transport.
//
// Every method is synchronous and blocks for at most the transport
// timeout per read. Calls from several goroutines are serialized; a query
// holds the engine until its response is read, so responses always pair
// with their command. Failed commands are not retried.
type Engine struct {
	mu     sync.Mutex
	t      Transport
	logger logger.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine returns an engine over t.
func NewEngine(t Transport, opts ...EngineOption) *Engine {
	e := &Engine{t: t, logger: logger.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Transport returns the underlying transport.
func (e *Engine) Transport() Transport {
	return e.t
}

// Send writes cmd without reading a response.
func (e *Engine) Send(cmd Command) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.t.WriteLine(string(cmd)); err != nil {
		return fmt.Errorf("send %q: %w", cmd, err)
	}
	e.logger.Debug("scpi send", "cmd", string(cmd))
	return nil
}

// Query writes cmd and returns the single response line, trimmed of
// surrounding whitespace.
func (e *Engine) Query(cmd Command) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.query(cmd)
}

func (e *Engine) query(cmd Command) (string, error) {
	if err := e.t.WriteLine(string(cmd)); err != nil {
		return "", fmt.Errorf("query %q: %w", cmd, err)
	}
	resp, err := e.t.ReadLine(e.t.Timeout())
	if err != nil {
		return "", fmt.Errorf("query %q: %w", cmd, err)
	}
	resp = strings.TrimSpace(resp)
	e.logger.Debug("scpi query", "cmd", string(cmd), "resp", resp)
	return resp, nil
}

// QueryFloat runs cmd and parses the response as one number.
func (e *Engine) QueryFloat(cmd Command) (float64, error) {
	resp, err := e.Query(cmd)
	if err != nil {
		return 0, err
	}
	return ParseFloat(resp)
}

// QueryFloats runs cmd and parses a comma separated list of numbers.
func (e *Engine) QueryFloats(cmd Command) ([]float64, error) {
	resp, err := e.Query(cmd)
	if err != nil {
		return nil, err
	}
	return ParseFloats(resp)
}

// QueryInt runs cmd and parses the response as an integer. Integral
// responses written in float notation, like "+1.000E+00", are accepted.
func (e *Engine) QueryInt(cmd Command) (int, error) {
	v, err := e.QueryFloat(cmd)
	if err != nil {
		return 0, err
	}
	if v != float64(int(v)) {
		return 0, fmt.Errorf("%w: %v is not an integer", ErrNotNumeric, v)
	}
	return int(v), nil
}

// QueryBlock writes cmd and reads one definite-length binary block. The
// returned bytes include the block header; use waveform.DecodeBlock to
// get the payload. The line terminator after the block is consumed.
func (e *Engine) QueryBlock(cmd Command) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.t.WriteLine(string(cmd)); err != nil {
		return nil, fmt.Errorf("query %q: %w", cmd, err)
	}

	timeout := e.t.Timeout()

	head, err := e.t.ReadBytes(2, timeout)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", cmd, err)
	}
	if _, _, err := waveform.ParseHeader(head); err != nil && !isShortHeader(head) {
		e.discard()
		return nil, fmt.Errorf("query %q: %w", cmd, err)
	}

	digits, err := e.t.ReadBytes(int(head[1]-'0'), timeout)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w: %w", cmd, waveform.ErrLengthMismatch, err)
	}
	header := append(head, digits...)

	headerLen, dataLen, err := waveform.ParseHeader(header)
	if err != nil {
		e.discard()
		return nil, fmt.Errorf("query %q: %w", cmd, err)
	}

	data, err := e.t.ReadBytes(dataLen, timeout)
	if err != nil {
		return nil, fmt.Errorf("query %q: reading %d byte block: %w: %w", cmd, dataLen, waveform.ErrLengthMismatch, err)
	}

	// The terminator is not part of the block. Some instruments omit it.
	termLen := 1
	if t, ok := e.t.(terminated); ok {
		termLen = len(t.Terminator())
	}
	if _, err := e.t.ReadBytes(termLen, timeout); err != nil {
		e.logger.Debug("no terminator after block", "cmd", string(cmd), "error", err)
	}

	block := make([]byte, 0, headerLen+dataLen)
	block = append(block, header...)
	block = append(block, data...)
	e.logger.Debug("scpi block", "cmd", string(cmd), "len", dataLen)
	return block, nil
}

// discard drops the rest of a response that could not be framed.
func (e *Engine) discard() {
	if f, ok := e.t.(flusher); ok {
		f.Flush()
	}
}

// isShortHeader reports whether head is a valid "#d" prefix whose length
// digits have not been read yet.
func isShortHeader(head []byte) bool {
	return len(head) == 2 && head[0] == waveform.BlockMarker && head[1] >= '1' && head[1] <= '9'
}

// ParseFloat parses one decimal numeric response (NR1, NR2 or NR3).
// NaN, Inf and hex tokens are not numeric. A number too large or too small
// for a float64 is returned as ±Inf together with ErrOutOfRange; underflow rounds to 0.
func ParseFloat(s string) (float64, error) {
	tok := strings.TrimSpace(s)
	if !isDecimal(tok) {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, s)
	}
	v, err := strconv.ParseFloat(tok, 64)
	if errors.Is(err, strconv.ErrRange) {
		return v, fmt.Errorf("%w: %q", ErrOutOfRange, s)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, s)
	}
	return v, nil
}

// isDecimal reports whether s uses only decimal number characters and has
// at least one digit.
func isDecimal(s string) bool {
	digits := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '+', c == '-', c == '.', c == 'e', c == 'E':
		default:
			return false
		}
	}
	return digits > 0
}

// ParseFloats parses a comma separated numeric response.
func ParseFloats(s string) ([]float64, error) {
	fields := strings.Split(s, ",")
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := ParseFloat(f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
