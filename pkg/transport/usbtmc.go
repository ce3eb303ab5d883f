// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build usbtmc

package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"
)

const usbtmcBuiltIn = true

// usbtmcPort frames reads and writes as USBTMC bulk transfers.
type usbtmcPort struct {
	ctx   *gousb.Context
	dev   *gousb.Device
	intf  *gousb.Interface
	done  func()
	in    *gousb.InEndpoint
	out   *gousb.OutEndpoint
	tag   byte
	tmo   time.Duration
	inbuf []byte
	// pending holds payload bytes of the last transfer not yet returned.
	pending []byte
}

func openUSBTMC(addr Address, cfg *Config) (*usbtmcPort, error) {
	ctx := gousb.NewContext()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(addr.VendorID) && desc.Product == gousb.ID(addr.ProductID)
	})
	dev := pickDevice(devs, addr.Serial)
	if dev == nil {
		ctx.Close()
		if err == nil {
			err = errors.New("no matching device")
		}
		return nil, fmt.Errorf("usbtmc %04x:%04x %s: %w", addr.VendorID, addr.ProductID, addr.Serial, err)
	}

	p := &usbtmcPort{ctx: ctx, dev: dev, tmo: cfg.timeout, inbuf: make([]byte, usbtmcHeaderSize+usbtmcTransferSize)}

	if err := dev.SetAutoDetach(true); err != nil {
		p.Close()
		return nil, fmt.Errorf("usbtmc: detach kernel driver: %w", err)
	}

	p.intf, p.done, err = dev.DefaultInterface()
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("usbtmc: claim interface: %w", err)
	}

	inNum, outNum := -1, -1
	for _, ep := range p.intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if ep.Direction == gousb.EndpointDirectionIn {
			inNum = ep.Number
		} else {
			outNum = ep.Number
		}
	}
	if inNum < 0 || outNum < 0 {
		p.Close()
		return nil, errors.New("usbtmc: interface has no bulk endpoint pair")
	}

	if p.in, err = p.intf.InEndpoint(inNum); err != nil {
		p.Close()
		return nil, fmt.Errorf("usbtmc: bulk-in endpoint: %w", err)
	}
	if p.out, err = p.intf.OutEndpoint(outNum); err != nil {
		p.Close()
		return nil, fmt.Errorf("usbtmc: bulk-out endpoint: %w", err)
	}

	return p, nil
}

// pickDevice keeps the device whose serial number matches (any device when
// serial is empty) and closes the rest.
func pickDevice(devs []*gousb.Device, serial string) *gousb.Device {
	var picked *gousb.Device
	for _, d := range devs {
		if picked == nil {
			if serial == "" {
				picked = d
				continue
			}
			if sn, err := d.SerialNumber(); err == nil && sn == serial {
				picked = d
				continue
			}
		}
		d.Close()
	}
	return picked
}

// nextTag returns the next bTag, cycling through 1..255.
func (p *usbtmcPort) nextTag() byte {
	p.tag = nextBTag(p.tag)
	return p.tag
}

func (p *usbtmcPort) Write(data []byte) (int, error) {
	if _, err := p.out.Write(encodeBulkOut(p.nextTag(), data)); err != nil {
		return 0, err
	}
	return len(data), nil
}

// Read requests one device-dependent message and returns its payload.
// A transfer that exceeds the read timeout reports 0, nil. Transfers
// carrying another request's bTag are late answers to a timed-out read
// and are dropped.
func (p *usbtmcPort) Read(buf []byte) (int, error) {
	if len(p.pending) == 0 {
		tag := p.nextTag()
		if _, err := p.out.Write(encodeRequestIn(tag, usbtmcTransferSize)); err != nil {
			return 0, err
		}

		ctx, cancel := context.WithTimeout(context.Background(), p.tmo)
		defer cancel()
		for {
			n, err := p.in.ReadContext(ctx, p.inbuf)
			if err != nil {
				if ctx.Err() != nil {
					return 0, nil
				}
				return 0, err
			}

			payload, err := decodeBulkIn(p.inbuf[:n], tag)
			if errors.Is(err, errStaleTag) {
				continue
			}
			if err != nil {
				return 0, err
			}
			p.pending = append(p.pending[:0], payload...)
			break
		}
	}

	n := copy(buf, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *usbtmcPort) SetReadTimeout(t time.Duration) error {
	p.tmo = t
	return nil
}

func (p *usbtmcPort) ResetInputBuffer() error {
	p.pending = nil
	return nil
}

func (p *usbtmcPort) Close() error {
	if p.done != nil {
		p.done()
	}
	var err error
	if p.dev != nil {
		err = p.dev.Close()
	}
	return errors.Join(err, p.ctx.Close())
}
