// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// Kind selects the backend for an address.
type Kind int

const (
	KindSerial Kind = iota
	KindGPIB
	KindUSB
	KindWebSocket
)

func (k Kind) String() string {
	switch k {
	case KindSerial:
		return "serial"
	case KindGPIB:
		return "gpib"
	case KindUSB:
		return "usbtmc"
	case KindWebSocket:
		return "websocket"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Address is a parsed instrument address.
//
// Accepted forms:
//
//	/dev/ttyUSB0, COM3                      serial port
//	ASRL/dev/ttyUSB0::INSTR, ASRL3::INSTR   serial port, VISA syntax
//	GPIB0::7::INSTR, GPIB0::7::2::INSTR     GPIB primary[/secondary] address
//	USB0::0x0699::0x0368::C012345::INSTR    USBTMC vendor::product[::serial]
//	ws://host/path, wss://host/path         websocket bridge
type Address struct {
	Kind Kind
	Raw  string

	// Serial
	Port string

	// GPIB
	Board        int
	Primary      int
	Secondary    int
	HasSecondary bool

	// USB
	VendorID  uint16
	ProductID uint16
	Serial    string

	// WebSocket
	URL string
}

func (a Address) String() string {
	return a.Raw
}

// ParseAddress parses an instrument address.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}

	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "ws://") || strings.HasPrefix(lower, "wss://") {
		return Address{Kind: KindWebSocket, Raw: s, URL: s}, nil
	}

	if !strings.Contains(s, "::") {
		return Address{Kind: KindSerial, Raw: s, Port: s}, nil
	}

	parts := strings.Split(s, "::")
	if !strings.EqualFold(parts[len(parts)-1], "INSTR") {
		return Address{}, fmt.Errorf("%w: %q: only INSTR resources are supported", ErrInvalidAddress, s)
	}
	parts = parts[:len(parts)-1]

	head := strings.ToUpper(parts[0])
	switch {
	case strings.HasPrefix(head, "ASRL"):
		return parseSerialResource(s, parts)
	case strings.HasPrefix(head, "GPIB"):
		return parseGPIBResource(s, parts)
	case strings.HasPrefix(head, "USB"):
		return parseUSBResource(s, parts)
	}

	return Address{}, fmt.Errorf("%w: %q: unknown interface type", ErrInvalidAddress, s)
}

func parseSerialResource(raw string, parts []string) (Address, error) {
	if len(parts) != 1 {
		return Address{}, fmt.Errorf("%w: %q: expected ASRL<port>::INSTR", ErrInvalidAddress, raw)
	}
	port := parts[0][len("ASRL"):]
	if port == "" {
		return Address{}, fmt.Errorf("%w: %q: missing serial port", ErrInvalidAddress, raw)
	}
	if n, err := strconv.Atoi(port); err == nil {
		if n < 1 {
			return Address{}, fmt.Errorf("%w: %q: serial port numbers start at 1", ErrInvalidAddress, raw)
		}
		if runtime.GOOS == "windows" {
			port = fmt.Sprintf("COM%d", n)
		} else {
			port = fmt.Sprintf("/dev/ttyS%d", n-1)
		}
	}
	return Address{Kind: KindSerial, Raw: raw, Port: port}, nil
}

func parseGPIBResource(raw string, parts []string) (Address, error) {
	if len(parts) < 2 || len(parts) > 3 {
		return Address{}, fmt.Errorf("%w: %q: expected GPIB<board>::<primary>[::<secondary>]::INSTR", ErrInvalidAddress, raw)
	}

	a := Address{Kind: KindGPIB, Raw: raw}

	var err error
	if board := parts[0][len("GPIB"):]; board != "" {
		if a.Board, err = strconv.Atoi(board); err != nil {
			return Address{}, fmt.Errorf("%w: %q: bad board number", ErrInvalidAddress, raw)
		}
	}

	a.Primary, err = strconv.Atoi(parts[1])
	if err != nil || a.Primary < 0 || a.Primary > 30 {
		return Address{}, fmt.Errorf("%w: %q: primary address must be 0-30", ErrInvalidAddress, raw)
	}

	if len(parts) == 3 {
		a.Secondary, err = strconv.Atoi(parts[2])
		if err != nil || a.Secondary < 0 || a.Secondary > 30 {
			return Address{}, fmt.Errorf("%w: %q: secondary address must be 0-30", ErrInvalidAddress, raw)
		}
		a.HasSecondary = true
	}

	return a, nil
}

func parseUSBResource(raw string, parts []string) (Address, error) {
	if len(parts) < 3 || len(parts) > 5 {
		return Address{}, fmt.Errorf("%w: %q: expected USB<board>::<vid>::<pid>[::<serial>]::INSTR", ErrInvalidAddress, raw)
	}

	a := Address{Kind: KindUSB, Raw: raw}

	vid, err := strconv.ParseUint(parts[1], 0, 16)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q: bad vendor id %q", ErrInvalidAddress, raw, parts[1])
	}
	pid, err := strconv.ParseUint(parts[2], 0, 16)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q: bad product id %q", ErrInvalidAddress, raw, parts[2])
	}
	a.VendorID = uint16(vid)
	a.ProductID = uint16(pid)

	if len(parts) >= 4 {
		a.Serial = parts[3]
	}

	return a, nil
}
