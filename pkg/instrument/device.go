// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package instrument provides driver facades for the bench instruments:
// oscilloscope, lock-in amplifier, source-measure unit and motorized stage.
//
// Each facade owns one transport connection. Facades are not meant to be
// shared; drive different instruments from different goroutines instead.
package instrument

import (
	"fmt"
	"io"
	"strings"

	"github.com/Thermoquad/benchtop/pkg/logger"
	"github.com/Thermoquad/benchtop/pkg/scpi"
	"github.com/Thermoquad/benchtop/pkg/transport"
)

// Identifier is implemented by instruments that answer *IDN?.
type Identifier interface {
	Identify() (string, error)
}

// Querier is implemented by instruments that accept raw commands.
type Querier interface {
	Send(cmd scpi.Command) error
	Query(cmd scpi.Command) (string, error)
}

// Device is the IEEE 488.2 common command set shared by the SCPI
// instruments. The facades embed it.
type Device struct {
	conn   *transport.Conn
	engine *scpi.Engine
	logger logger.Logger
}

var (
	_ Identifier = (*Device)(nil)
	_ Querier    = (*Device)(nil)
)

// NewDevice wraps an open connection. The device owns conn from now on.
func NewDevice(conn *transport.Conn) *Device {
	log := conn.Logger()
	return &Device{
		conn:   conn,
		engine: scpi.NewEngine(conn, scpi.WithLogger(log)),
		logger: log,
	}
}

// OpenDevice opens address and wraps the connection.
func OpenDevice(address string, opts ...transport.Option) (*Device, error) {
	conn, err := transport.Open(address, opts...)
	if err != nil {
		return nil, err
	}
	return NewDevice(conn), nil
}

// Conn returns the underlying connection.
func (d *Device) Conn() *transport.Conn { return d.conn }

// Engine returns the command engine.
func (d *Device) Engine() *scpi.Engine { return d.engine }

// Identify returns the *IDN? response.
func (d *Device) Identify() (string, error) {
	return d.engine.Query("*IDN?")
}

// Reset restores the power-on settings (*RST).
func (d *Device) Reset() error {
	return d.engine.Send("*RST")
}

// Clear clears the status registers and error queue (*CLS).
func (d *Device) Clear() error {
	return d.engine.Send("*CLS")
}

// WaitComplete blocks until pending operations finish (*OPC?), bounded by
// the transport timeout.
func (d *Device) WaitComplete() error {
	v, err := d.engine.QueryInt("*OPC?")
	if err != nil {
		return err
	}
	if v != 1 {
		return fmt.Errorf("*OPC? returned %d", v)
	}
	return nil
}

// Send writes a raw command.
func (d *Device) Send(cmd scpi.Command) error {
	return d.engine.Send(cmd)
}

// Query writes a raw command and returns its response line.
func (d *Device) Query(cmd scpi.Command) (string, error) {
	return d.engine.Query(cmd)
}

// Close closes the connection.
func (d *Device) Close() error {
	return d.conn.Close()
}

// Identity is a parsed *IDN? response.
type Identity struct {
	Manufacturer string
	Model        string
	Serial       string
	Firmware     string
}

// ParseIdentity splits a *IDN? response into its four fields. Missing
// fields are left empty.
func ParseIdentity(idn string) Identity {
	fields := strings.SplitN(idn, ",", 4)
	for len(fields) < 4 {
		fields = append(fields, "")
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return Identity{
		Manufacturer: fields[0],
		Model:        fields[1],
		Serial:       fields[2],
		Firmware:     fields[3],
	}
}

func (id Identity) String() string {
	return strings.TrimSpace(id.Manufacturer + " " + id.Model)
}

// Use opens an instrument, runs fn and closes the instrument on every exit
// path, including panics. A close error is reported only when fn succeeded.
func Use[T io.Closer](open func() (T, error), fn func(T) error) (err error) {
	dev, err := open()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := dev.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close: %w", cerr)
		}
	}()
	return fn(dev)
}
