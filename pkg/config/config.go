// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the bench description: which instruments are
// connected where, and how the tools should log.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/benchtop/pkg/logger"
	"github.com/Thermoquad/benchtop/pkg/transport"
)

// ErrUnknownInstrument is returned when a name is not in the bench file.
var ErrUnknownInstrument = errors.New("unknown instrument")

// Config is the bench file.
type Config struct {
	Log         LogConfig             `yaml:"log"`
	MetricsAddr string                `yaml:"metrics_addr"`
	Instruments map[string]Instrument `yaml:"instruments"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// Instrument describes one connected instrument.
type Instrument struct {
	Address     string        `yaml:"address"`
	Adapter     string        `yaml:"adapter"` // Prologix serial port for GPIB addresses
	Timeout     time.Duration `yaml:"timeout"`
	Terminator  string        `yaml:"terminator"`
	BaudRate    int           `yaml:"baud_rate"`
	MMPerStep   float64       `yaml:"mm_per_step"`
	Username    string        `yaml:"username"`
	InsecureTLS bool          `yaml:"insecure_tls"`
}

// Default returns the configuration used without a bench file.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Instruments: map[string]Instrument{},
	}
}

// Load reads and validates a bench file. Unset fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a bench file.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Instruments == nil {
		cfg.Instruments = map[string]Instrument{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks log settings and every instrument entry.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := logger.ParseLevel(c.Log.Level); !ok {
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format: must be json or console, got %q", c.Log.Format))
	}

	for _, name := range c.Names() {
		if err := c.Instruments[name].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("instruments.%s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

// Names returns the instrument names in sorted order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Instruments))
	for name := range c.Instruments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Instrument returns the named instrument.
func (c *Config) Instrument(name string) (Instrument, error) {
	inst, ok := c.Instruments[name]
	if !ok {
		return Instrument{}, fmt.Errorf("%w: %q", ErrUnknownInstrument, name)
	}
	return inst, nil
}

// Validate checks the address and numeric settings.
func (i Instrument) Validate() error {
	addr, err := transport.ParseAddress(i.Address)
	if err != nil {
		return err
	}
	if addr.Kind == transport.KindGPIB && i.Adapter == "" {
		return fmt.Errorf("GPIB address %s needs an adapter port", i.Address)
	}
	if i.Timeout < 0 {
		return fmt.Errorf("negative timeout %v", i.Timeout)
	}
	if i.BaudRate < 0 {
		return fmt.Errorf("negative baud rate %d", i.BaudRate)
	}
	if i.MMPerStep < 0 {
		return fmt.Errorf("negative mm_per_step %g", i.MMPerStep)
	}
	if _, err := ParseTerminator(i.Terminator); err != nil {
		return err
	}
	return nil
}

// Options converts the entry into transport options. Unset fields are
// left to the transport defaults.
func (i Instrument) Options() []transport.Option {
	var opts []transport.Option
	if i.Timeout > 0 {
		opts = append(opts, transport.WithTimeout(i.Timeout))
	}
	if term, err := ParseTerminator(i.Terminator); err == nil && term != "" {
		opts = append(opts, transport.WithTerminator(term))
	}
	if i.BaudRate > 0 {
		opts = append(opts, transport.WithBaudRate(i.BaudRate))
	}
	if i.Adapter != "" {
		opts = append(opts, transport.WithAdapterPort(i.Adapter))
	}
	if i.InsecureTLS {
		opts = append(opts, transport.WithInsecureTLS(true))
	}
	return opts
}

// ParseTerminator accepts "lf", "cr", "crlf" (any case) or the literal
// terminator. An empty string means the transport default.
func ParseTerminator(s string) (string, error) {
	switch strings.ToLower(s) {
	case "":
		return "", nil
	case "lf", `\n`:
		return "\n", nil
	case "cr", `\r`:
		return "\r", nil
	case "crlf", `\r\n`:
		return "\r\n", nil
	}
	if strings.Trim(s, "\r\n") == "" {
		return s, nil
	}
	return "", fmt.Errorf("unknown terminator %q (use lf, cr or crlf)", s)
}
