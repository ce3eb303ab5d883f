// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build !usbtmc

package transport

import "errors"

const usbtmcBuiltIn = false

// openUSBTMC reports that USBTMC support was not built in. Build with
// -tags usbtmc (needs cgo and libusb) to enable it.
func openUSBTMC(addr Address, cfg *Config) (Port, error) {
	return nil, errors.New("usbtmc support not built in (rebuild with -tags usbtmc)")
}
