// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Prologix escapes. Data bytes matching these are prefixed with ESC so the
// adapter forwards them instead of treating them as framing.
const (
	prologixESC  = 0x1B
	prologixPlus = '+'
)

// Prologix read timeout limits in milliseconds.
const (
	prologixMinReadTimeout = 1
	prologixMaxReadTimeout = 3000
)

// prologixPort speaks to one GPIB instrument through a Prologix style
// USB-GPIB adapter. Adapter commands start with "++"; everything else is
// forwarded to the instrument at the configured address.
//
// The adapter runs with auto read-after-write off, so the first Read after
// a Write asks the adapter to address the instrument to talk with
// "++read eoi".
type prologixPort struct {
	rw    readWriteTimeoutCloser
	armed bool
}

type readWriteTimeoutCloser interface {
	Port
	inputFlusher
}

func newPrologixPort(rw readWriteTimeoutCloser, addr Address, cfg *Config) (*prologixPort, error) {
	p := &prologixPort{rw: rw}

	addrCmd := fmt.Sprintf("addr %d", addr.Primary)
	if addr.HasSecondary {
		// The adapter takes secondary addresses as 96-126.
		addrCmd = fmt.Sprintf("addr %d %d", addr.Primary, addr.Secondary+96)
	}

	tmo := cfg.timeout.Milliseconds()
	tmo = max(prologixMinReadTimeout, min(prologixMaxReadTimeout, tmo))

	cmds := []string{
		"savecfg 0",    // don't wear the adapter EEPROM
		"mode 1",       // controller
		addrCmd,        // instrument address
		"auto 0",       // read only when asked
		"eoi 1",        // assert EOI with the last byte
		"eos 3",        // append nothing, the data carries its own terminator
		"eot_enable 0", // pass EOI-terminated data through unchanged
		fmt.Sprintf("read_tmo_ms %d", tmo),
	}
	if cfg.clearOnOpen {
		cmds = append(cmds, "clr")
	}

	for _, cmd := range cmds {
		if err := p.command(cmd); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// command sends an adapter command.
func (p *prologixPort) command(cmd string) error {
	line := "++" + strings.ToLower(strings.TrimSpace(cmd)) + "\n"
	if _, err := io.WriteString(p.rw, line); err != nil {
		return fmt.Errorf("prologix: %s: %w", cmd, err)
	}
	return nil
}

// escape prefixes CR, LF, ESC and '+' with ESC and appends the USB
// terminator that ends the adapter's input line.
func (p *prologixPort) escape(data []byte) []byte {
	out := make([]byte, 0, len(data)*2+1)
	for _, b := range data {
		switch b {
		case '\r', '\n', prologixESC, prologixPlus:
			out = append(out, prologixESC)
		}
		out = append(out, b)
	}
	return append(out, '\n')
}

func (p *prologixPort) Write(data []byte) (int, error) {
	if _, err := p.rw.Write(p.escape(data)); err != nil {
		return 0, err
	}
	p.armed = false
	return len(data), nil
}

func (p *prologixPort) Read(buf []byte) (int, error) {
	if !p.armed {
		if err := p.command("read eoi"); err != nil {
			return 0, err
		}
		p.armed = true
	}
	return p.rw.Read(buf)
}

func (p *prologixPort) SetReadTimeout(t time.Duration) error {
	return p.rw.SetReadTimeout(t)
}

func (p *prologixPort) ResetInputBuffer() error {
	return p.rw.ResetInputBuffer()
}

func (p *prologixPort) Close() error {
	return p.rw.Close()
}
