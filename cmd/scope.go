// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/benchtop/pkg/export"
	"github.com/Thermoquad/benchtop/pkg/instrument"
	"github.com/Thermoquad/benchtop/pkg/waveform"
)

var (
	scopeChannel string
	scopeStart   int
	scopeStop    int
	scopeWidth   int
	scopeDwell   time.Duration
	scopeOutput  string
)

var scopeCmd = &cobra.Command{
	Use:   "scope",
	Short: "Oscilloscope acquisition",
}

var scopeCaptureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture one waveform and write it as a Time(s), Voltage(V) table",
	Long: `Run a single acquisition and convert the curve to seconds and volts.

The scope is stopped and cleared, the source and point range are selected,
the acquisition runs for --dwell, and the scale and offset are queried
fresh before the curve is transferred.`,
	RunE: runScopeCapture,
}

var scopePreambleCmd = &cobra.Command{
	Use:   "preamble",
	Short: "Print the current waveform scale and offset",
	RunE:  runScopePreamble,
}

func init() {
	rootCmd.AddCommand(scopeCmd)
	scopeCmd.AddCommand(scopeCaptureCmd)
	scopeCmd.AddCommand(scopePreambleCmd)

	d := instrument.DefaultAcquireParams
	scopeCaptureCmd.Flags().StringVar(&scopeChannel, "channel", d.Channel, "Source channel")
	scopeCaptureCmd.Flags().IntVar(&scopeStart, "start", d.Start, "First record point (1-based)")
	scopeCaptureCmd.Flags().IntVar(&scopeStop, "stop", d.Stop, "Last record point")
	scopeCaptureCmd.Flags().IntVar(&scopeWidth, "width", d.Width, "Bytes per sample (1 or 2)")
	scopeCaptureCmd.Flags().DurationVar(&scopeDwell, "dwell", d.Dwell, "Acquisition run time")
	scopeCaptureCmd.Flags().StringVarP(&scopeOutput, "output", "o", "", "CSV output file (default stdout)")
}

func openScope(cmd *cobra.Command) func() (*instrument.Scope, error) {
	return func() (*instrument.Scope, error) {
		conn, _, err := OpenConnection(cmd)
		if err != nil {
			return nil, err
		}
		return instrument.NewScope(conn), nil
	}
}

func runScopeCapture(cmd *cobra.Command, args []string) error {
	params := instrument.AcquireParams{
		Channel: scopeChannel,
		Start:   scopeStart,
		Stop:    scopeStop,
		Width:   scopeWidth,
		Dwell:   scopeDwell,
	}

	return instrument.Use(openScope(cmd), func(s *instrument.Scope) error {
		w, err := s.Acquire(params)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Captured %d points from %s\n", len(w), params.Channel)
		return writeTable(export.FromWaveform(w), scopeOutput)
	})
}

func runScopePreamble(cmd *cobra.Command, args []string) error {
	return instrument.Use(openScope(cmd), func(s *instrument.Scope) error {
		p, err := s.Preamble()
		if err != nil {
			return err
		}
		fmt.Printf("XINCR: %g s\n", p.XIncrement)
		fmt.Printf("XZERO: %g s\n", p.XZero)
		fmt.Printf("YMULT: %g V\n", p.YMult)
		fmt.Printf("YZERO: %g V\n", p.YZero)
		fmt.Printf("YOFF:  %g\n", p.YOffset)
		for _, anomaly := range waveform.CheckPreamble(p) {
			fmt.Printf("WARNING: %s\n", anomaly.Message)
		}
		return nil
	})
}
