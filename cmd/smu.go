// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/benchtop/pkg/export"
	"github.com/Thermoquad/benchtop/pkg/instrument"
)

var (
	smuSourceVoltage float64
	smuSourceCurrent float64
	smuCompliance    float64
	smuLeaveOn       bool

	smuStart  float64
	smuStop   float64
	smuStep   float64
	smuSettle time.Duration
	smuOutput string
)

var smuCmd = &cobra.Command{
	Use:   "smu",
	Short: "Source-measure unit readings and sweeps",
}

var smuMeasureCmd = &cobra.Command{
	Use:   "measure",
	Short: "Source a level and read voltage and current",
	Long: `Source a voltage (--voltage) or a current (--current) with a compliance
limit, take one reading and switch the output off again unless --leave-on
is given. Without a source flag the present source setting is used.`,
	RunE: runSmuMeasure,
}

var smuSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Voltage sweep written as a Voltage(V), Current(A) table",
	Long: `Step the source voltage from --start to --stop by --step and read V/I at
each level. The output is switched off when the sweep ends, fails or is
interrupted with Ctrl+C.

Example:
  benchtop -i smu smu sweep --start 0 --stop 1 --step 0.05 --compliance 0.01 -o iv.csv`,
	RunE: runSmuSweep,
}

func init() {
	rootCmd.AddCommand(smuCmd)
	smuCmd.AddCommand(smuMeasureCmd)
	smuCmd.AddCommand(smuSweepCmd)

	smuCmd.PersistentFlags().Float64Var(&smuCompliance, "compliance", 0.01, "Compliance limit (A when sourcing voltage, V when sourcing current)")

	smuMeasureCmd.Flags().Float64Var(&smuSourceVoltage, "voltage", 0, "Source voltage (V)")
	smuMeasureCmd.Flags().Float64Var(&smuSourceCurrent, "current", 0, "Source current (A)")
	smuMeasureCmd.Flags().BoolVar(&smuLeaveOn, "leave-on", false, "Leave the output on after reading")
	smuMeasureCmd.MarkFlagsMutuallyExclusive("voltage", "current")

	smuSweepCmd.Flags().Float64Var(&smuStart, "start", 0, "Start voltage (V)")
	smuSweepCmd.Flags().Float64Var(&smuStop, "stop", 1, "Stop voltage (V)")
	smuSweepCmd.Flags().Float64Var(&smuStep, "step", 0.1, "Voltage step (V)")
	smuSweepCmd.Flags().DurationVar(&smuSettle, "settle", 0, "Wait after each level before reading")
	smuSweepCmd.Flags().StringVarP(&smuOutput, "output", "o", "", "CSV output file (default stdout)")
}

func openSourceMeter(cmd *cobra.Command) func() (*instrument.SourceMeter, error) {
	return func() (*instrument.SourceMeter, error) {
		conn, _, err := OpenConnection(cmd)
		if err != nil {
			return nil, err
		}
		return instrument.NewSourceMeter(conn), nil
	}
}

func runSmuMeasure(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	return instrument.Use(openSourceMeter(cmd), func(m *instrument.SourceMeter) (err error) {
		switch {
		case flags.Changed("voltage"):
			err = m.SourceVoltage(smuSourceVoltage, smuCompliance)
		case flags.Changed("current"):
			err = m.SourceCurrent(smuSourceCurrent, smuCompliance)
		}
		if err != nil {
			return err
		}

		if err := m.Output(true); err != nil {
			return err
		}
		if !smuLeaveOn {
			defer func() {
				if oerr := m.Output(false); oerr != nil {
					err = errors.Join(err, oerr)
				}
			}()
		}

		s, err := m.Read()
		if err != nil {
			return err
		}
		fmt.Printf("Voltage: %g V\nCurrent: %g A\n", s.X, s.Y)
		return nil
	})
}

func runSmuSweep(cmd *cobra.Command, args []string) error {
	params := instrument.SweepParams{
		Start:        smuStart,
		Stop:         smuStop,
		Step:         smuStep,
		CurrentLimit: smuCompliance,
		Settle:       smuSettle,
	}
	if _, err := params.Levels(); err != nil {
		return err
	}

	ctx, stop := interruptible(cmd.Context())
	defer stop()

	return instrument.Use(openSourceMeter(cmd), func(m *instrument.SourceMeter) error {
		samples, err := m.Sweep(ctx, params)
		if err := interrupted(ctx, err, len(samples)); err != nil {
			return err
		}
		return writeTable(export.FromSweep(samples), smuOutput)
	})
}
