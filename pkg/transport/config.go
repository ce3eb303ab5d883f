// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/benchtop/pkg/logger"
)

// Defaults.
const (
	DefaultTimeout = 2 * time.Second

	// The stage controller runs 19200 8N1 with CR/LF.
	DefaultSerialBaudRate   = 19200
	DefaultSerialTerminator = "\r\n"

	// GPIB, USBTMC and bridged instruments use LF.
	DefaultBusTerminator = "\n"

	// Prologix adapters ignore the baud rate on USB but need one to open.
	DefaultAdapterBaudRate = 115200

	DefaultDialTimeout = 15 * time.Second
)

// Config holds the settings of one connection.
type Config struct {
	timeout     time.Duration
	terminator  string
	baudRate    int
	byteOrder   binary.ByteOrder
	adapterPort string
	clearOnOpen bool

	username    string
	password    string
	insecureTLS bool

	logger   logger.Logger
	stats    *Statistics
	registry *Registry
}

// Option configures a connection.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error {
	return f(cfg)
}

func newConfig(kind Kind, opts ...Option) (*Config, error) {
	cfg := &Config{
		timeout:    DefaultTimeout,
		terminator: DefaultBusTerminator,
		baudRate:   DefaultSerialBaudRate,
		byteOrder:  binary.BigEndian,
		logger:     logger.Default(),
	}
	if kind == KindSerial {
		cfg.terminator = DefaultSerialTerminator
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// WithTimeout sets the default read timeout.
func WithTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", d)
		}
		cfg.timeout = d
		return nil
	})
}

// WithTerminator sets the line terminator. Line reads end at its last byte.
func WithTerminator(term string) Option {
	return optFunc(func(cfg *Config) error {
		if term == "" {
			return errors.New("terminator must not be empty")
		}
		cfg.terminator = term
		return nil
	})
}

// WithBaudRate sets the serial baud rate.
func WithBaudRate(baud int) Option {
	return optFunc(func(cfg *Config) error {
		if baud <= 0 {
			return fmt.Errorf("invalid baud rate %d", baud)
		}
		cfg.baudRate = baud
		return nil
	})
}

// WithByteOrder sets the order of multi-byte binary fields.
func WithByteOrder(order binary.ByteOrder) Option {
	return optFunc(func(cfg *Config) error {
		if order == nil {
			return errors.New("byte order must not be nil")
		}
		cfg.byteOrder = order
		return nil
	})
}

// WithAdapterPort sets the serial device of the Prologix adapter used for
// GPIB addresses.
func WithAdapterPort(port string) Option {
	return optFunc(func(cfg *Config) error {
		cfg.adapterPort = port
		return nil
	})
}

// WithDeviceClear sends a selected device clear when a GPIB connection opens.
func WithDeviceClear() Option {
	return optFunc(func(cfg *Config) error {
		cfg.clearOnOpen = true
		return nil
	})
}

// WithCredentials sets HTTP Basic credentials for websocket bridges.
func WithCredentials(username, password string) Option {
	return optFunc(func(cfg *Config) error {
		cfg.username = username
		cfg.password = password
		return nil
	})
}

// WithInsecureTLS skips certificate verification on wss:// bridges.
func WithInsecureTLS(skip bool) Option {
	return optFunc(func(cfg *Config) error {
		cfg.insecureTLS = skip
		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("logger must not be nil")
		}
		cfg.logger = l
		return nil
	})
}

// WithStatistics records traffic counters into s.
func WithStatistics(s *Statistics) Option {
	return optFunc(func(cfg *Config) error {
		cfg.stats = s
		return nil
	})
}

// WithRegistry records traffic counters into the registry entry for the
// connection's address.
func WithRegistry(r *Registry) Option {
	return optFunc(func(cfg *Config) error {
		cfg.registry = r
		return nil
	})
}

// Timeout returns the default read timeout.
func (cfg *Config) Timeout() time.Duration { return cfg.timeout }

// Terminator returns the line terminator.
func (cfg *Config) Terminator() string { return cfg.terminator }

// BaudRate returns the serial baud rate.
func (cfg *Config) BaudRate() int { return cfg.baudRate }

// ByteOrder returns the order of multi-byte binary fields.
func (cfg *Config) ByteOrder() binary.ByteOrder { return cfg.byteOrder }
