// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/benchtop/pkg/instrument"
	"github.com/Thermoquad/benchtop/pkg/transport"
)

var idnCmd = &cobra.Command{
	Use:   "idn",
	Short: "Test the connection by asking the instrument to identify itself",
	Long: `Send *IDN? and wait for the identification string until the timeout.

Exit codes:
  0 - Instrument answered
  1 - Timeout reached without an answer
  2 - Connection error

Useful for checking cabling, GPIB addresses and adapter setup before a run.`,
	RunE: runIdn,
}

func init() {
	rootCmd.AddCommand(idnCmd)
}

func runIdn(cmd *cobra.Command, args []string) error {
	conn, t, err := OpenConnection(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	dev := instrument.NewDevice(conn)
	defer dev.Close()

	fmt.Printf("Benchtop - Identify\n")
	fmt.Printf("Connection: %s\n", t.describe())
	fmt.Printf("Timeout: %v\n\n", conn.Timeout())

	idn, err := dev.Identify()
	switch {
	case err == nil:
		id := instrument.ParseIdentity(idn)
		fmt.Printf("SUCCESS: %s\n", idn)
		fmt.Printf("  Manufacturer: %s\n", id.Manufacturer)
		fmt.Printf("  Model:        %s\n", id.Model)
		fmt.Printf("  Serial:       %s\n", id.Serial)
		fmt.Printf("  Firmware:     %s\n", id.Firmware)
		return nil

	case errors.Is(err, transport.ErrTimeout):
		fmt.Fprintf(os.Stderr, "TIMEOUT: no answer within %v\n", conn.Timeout())
		dev.Close()
		os.Exit(1)

	default:
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		dev.Close()
		os.Exit(2)
	}

	return nil
}
