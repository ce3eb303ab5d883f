// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"errors"
	"fmt"
)

// Open parses address, opens the matching backend and returns a connection
// bound to it. Every failure wraps ErrOpenFailed.
func Open(address string, opts ...Option) (*Conn, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenFailed, err)
	}

	cfg, err := newConfig(addr.Kind, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpenFailed, address, err)
	}

	port, err := openPort(addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpenFailed, address, err)
	}

	conn := newConn(addr.Raw, port, cfg)
	conn.logger.Debug("opened", "kind", addr.Kind.String(), "timeout", cfg.timeout)
	return conn, nil
}

func openPort(addr Address, cfg *Config) (Port, error) {
	switch addr.Kind {
	case KindSerial:
		return openSerial(addr.Port, cfg.baudRate)

	case KindGPIB:
		if cfg.adapterPort == "" {
			return nil, errors.New("GPIB addresses need a Prologix adapter port (WithAdapterPort)")
		}
		sp, err := openSerial(cfg.adapterPort, DefaultAdapterBaudRate)
		if err != nil {
			return nil, err
		}
		p, err := newPrologixPort(sp, addr, cfg)
		if err != nil {
			sp.Close()
			return nil, err
		}
		return p, nil

	case KindUSB:
		return openUSBTMC(addr, cfg)

	case KindWebSocket:
		return dialWebSocket(addr.URL, cfg)
	}

	return nil, fmt.Errorf("unsupported address kind %v", addr.Kind)
}
