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
	lockinRTheta    bool
	lockinRecRTheta bool
	lockinSamples   int
	lockinInterval  time.Duration
	lockinOutput    string
	lockinFrequency float64
	lockinAmplitude float64
	lockinPhase     float64
	lockinSens      int
	lockinTC        int
	lockinAutoGain  bool
	lockinAutoPhase bool
)

var lockinCmd = &cobra.Command{
	Use:   "lockin",
	Short: "Lock-in amplifier readings and settings",
}

var lockinSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change reference and filter settings",
	Long: `Apply only the settings given on the command line.

Example:
  benchtop -i lockin lockin set --frequency 1000 --amplitude 0.1 --auto-phase`,
	RunE: runLockinSet,
}

var lockinSnapCmd = &cobra.Command{
	Use:   "snap",
	Short: "Read X and Y (or R and theta) at one instant",
	RunE:  runLockinSnap,
}

var lockinRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record X/Y samples as a Time(s), X(V), Y(V) table",
	Long: `Take --samples snapshots spaced by --interval. Ctrl+C stops early and
keeps what was recorded.

With --rtheta the table is Time(s), R(V), Theta(deg).`,
	RunE: runLockinRecord,
}

func init() {
	rootCmd.AddCommand(lockinCmd)
	lockinCmd.AddCommand(lockinSetCmd)
	lockinCmd.AddCommand(lockinSnapCmd)
	lockinCmd.AddCommand(lockinRecordCmd)

	f := lockinSetCmd.Flags()
	f.Float64Var(&lockinFrequency, "frequency", 0, "Reference frequency (Hz)")
	f.Float64Var(&lockinAmplitude, "amplitude", 0, "Sine output amplitude (V rms)")
	f.Float64Var(&lockinPhase, "phase", 0, "Reference phase (degrees)")
	f.IntVar(&lockinSens, "sensitivity", 0, fmt.Sprintf("Sensitivity index (0-%d)", instrument.MaxSensitivity))
	f.IntVar(&lockinTC, "time-constant", 0, fmt.Sprintf("Time constant index (0-%d)", instrument.MaxTimeConstant))
	f.BoolVar(&lockinAutoGain, "auto-gain", false, "Run auto gain")
	f.BoolVar(&lockinAutoPhase, "auto-phase", false, "Run auto phase")

	lockinSnapCmd.Flags().BoolVar(&lockinRTheta, "rtheta", false, "Read R and theta instead of X and Y")

	lockinRecordCmd.Flags().BoolVar(&lockinRecRTheta, "rtheta", false, "Record R and theta instead of X and Y")
	lockinRecordCmd.Flags().IntVarP(&lockinSamples, "samples", "n", 100, "Number of samples")
	lockinRecordCmd.Flags().DurationVar(&lockinInterval, "interval", 100*time.Millisecond, "Time between samples")
	lockinRecordCmd.Flags().StringVarP(&lockinOutput, "output", "o", "", "CSV output file (default stdout)")
}

func openLockIn(cmd *cobra.Command) func() (*instrument.LockIn, error) {
	return func() (*instrument.LockIn, error) {
		conn, _, err := OpenConnection(cmd)
		if err != nil {
			return nil, err
		}
		return instrument.NewLockIn(conn), nil
	}
}

func runLockinSet(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	type setting struct {
		flag  string
		apply func(*instrument.LockIn) error
	}
	settings := []setting{
		{"frequency", func(l *instrument.LockIn) error { return l.SetFrequency(lockinFrequency) }},
		{"amplitude", func(l *instrument.LockIn) error { return l.SetAmplitude(lockinAmplitude) }},
		{"phase", func(l *instrument.LockIn) error { return l.SetPhase(lockinPhase) }},
		{"sensitivity", func(l *instrument.LockIn) error { return l.SetSensitivity(lockinSens) }},
		{"time-constant", func(l *instrument.LockIn) error { return l.SetTimeConstant(lockinTC) }},
		{"auto-gain", func(l *instrument.LockIn) error { return l.AutoGain() }},
		{"auto-phase", func(l *instrument.LockIn) error { return l.AutoPhase() }},
	}

	var selected []setting
	for _, s := range settings {
		if flags.Changed(s.flag) {
			selected = append(selected, s)
		}
	}
	if len(selected) == 0 {
		return errors.New("nothing to set")
	}

	return instrument.Use(openLockIn(cmd), func(l *instrument.LockIn) error {
		for _, s := range selected {
			if err := s.apply(l); err != nil {
				return fmt.Errorf("%s: %w", s.flag, err)
			}
			fmt.Printf("%s: ok\n", s.flag)
		}
		return nil
	})
}

func runLockinSnap(cmd *cobra.Command, args []string) error {
	return instrument.Use(openLockIn(cmd), func(l *instrument.LockIn) error {
		if lockinRTheta {
			s, err := l.SnapRTheta()
			if err != nil {
				return err
			}
			fmt.Printf("R: %g V\nTheta: %g deg\n", s.X, s.Y)
			return nil
		}
		s, err := l.SnapXY()
		if err != nil {
			return err
		}
		fmt.Printf("X: %g V\nY: %g V\n", s.X, s.Y)
		return nil
	})
}

func runLockinRecord(cmd *cobra.Command, args []string) error {
	ctx, stop := interruptible(cmd.Context())
	defer stop()

	return instrument.Use(openLockIn(cmd), func(l *instrument.LockIn) error {
		record, header := l.Record, export.LockInHeader
		if lockinRecRTheta {
			record, header = l.RecordRTheta, export.RThetaHeader
		}

		samples, err := record(ctx, lockinSamples, lockinInterval)
		if err := interrupted(ctx, err, len(samples)); err != nil {
			return err
		}

		table, terr := export.FromSamples(samples, header)
		if terr != nil {
			return terr
		}
		return writeTable(table, lockinOutput)
	})
}
