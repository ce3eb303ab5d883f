// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Benchtop - Laboratory Instrument Control
//
// A CLI tool for driving oscilloscopes, lock-in amplifiers, source-measure
// units and motorized stages over serial, GPIB and USB.

package main

import (
	"os"

	"github.com/Thermoquad/benchtop/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
