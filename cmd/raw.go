// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/benchtop/pkg/instrument"
	"github.com/Thermoquad/benchtop/pkg/scpi"
	"github.com/Thermoquad/benchtop/pkg/waveform"
)

var (
	queryBlock bool
	queryRaw   bool
	sendStats  bool
)

var sendCmd = &cobra.Command{
	Use:   "send <command>...",
	Short: "Send one or more commands without reading a response",
	Long: `Send each argument as a separate command line.

Example:
  benchtop -a GPIB0::8::INSTR send "*RST" "FREQ 1000"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

var queryCmd = &cobra.Command{
	Use:   "query <command>",
	Short: "Send a command and print the response",
	Long: `Send a query and print the response line.

With --block the response is read as a definite-length binary block
(#<d><length><data>) and the payload is hex dumped, or written unchanged
with --raw.

Example:
  benchtop -a USB0::0x0699::0x0368::INSTR query --block "CURVE?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(queryCmd)
	sendCmd.Flags().BoolVar(&sendStats, "stats", false, "Print connection statistics when done")
	queryCmd.Flags().BoolVar(&queryBlock, "block", false, "Read a binary block response")
	queryCmd.Flags().BoolVar(&queryRaw, "raw", false, "Write the block payload to stdout unchanged (with --block)")
}

func runSend(cmd *cobra.Command, args []string) error {
	conn, _, err := OpenConnection(cmd)
	if err != nil {
		return err
	}

	return instrument.Use(func() (*instrument.Device, error) {
		return instrument.NewDevice(conn), nil
	}, func(dev *instrument.Device) error {
		for _, arg := range args {
			if err := dev.Send(scpi.Command(arg)); err != nil {
				return err
			}
		}
		if sendStats {
			fmt.Print(conn.Stats())
		}
		return nil
	})
}

func runQuery(cmd *cobra.Command, args []string) error {
	conn, _, err := OpenConnection(cmd)
	if err != nil {
		return err
	}

	command := scpi.Command(strings.Join(args, " "))

	return instrument.Use(func() (*instrument.Device, error) {
		return instrument.NewDevice(conn), nil
	}, func(dev *instrument.Device) error {
		if !queryBlock {
			resp, err := dev.Query(command)
			if err != nil {
				return err
			}
			fmt.Println(resp)
			return nil
		}

		block, err := dev.Engine().QueryBlock(command)
		if err != nil {
			return err
		}
		data, err := waveform.DecodeBlock(block)
		if err != nil {
			return err
		}
		if queryRaw {
			_, err := os.Stdout.Write(data)
			return err
		}
		fmt.Printf("%d bytes\n", len(data))
		fmt.Print(hex.Dump(data))
		return nil
	})
}
