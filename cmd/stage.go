// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/benchtop/pkg/instrument"
	"github.com/Thermoquad/benchtop/pkg/motion"
)

var mmPerStep float64

var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Motorized stage control",
	Long: `Drive the two-axis stepper stage controller.

Moves are sent as 4-byte frames: the axis byte then the signed step count
as a 24-bit two's complement number, most significant byte first. The
controller does not acknowledge moves.`,
}

var stageMoveCmd = &cobra.Command{
	Use:   "move <axis> <mm>",
	Short: "Move an axis by a relative distance in millimetres",
	Long: `Move axis A or B by a signed distance in millimetres.

The distance is converted to steps with --mm-per-step (or the bench file's
mm_per_step) and rounded half away from zero. Moves beyond the 24-bit step
range are rejected before anything is sent.

Flags go before the axis so a negative distance is not read as a flag.

Examples:
  benchtop -a /dev/ttyUSB0 stage move --mm-per-step 0.390625 A 10
  benchtop -a /dev/ttyUSB0 stage move --mm-per-step 0.390625 B -5`,
	Args: stageMoveArgs,
	RunE: runStageMove,
}

var stageStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop all motion",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStage(cmd, false, func(s *instrument.Stage) error {
			if err := s.Stop(); err != nil {
				return err
			}
			fmt.Printf("STOP sent (0x%02X)\n", motion.StopByte)
			return nil
		})
	},
}

var stageResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the controller",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStage(cmd, false, func(s *instrument.Stage) error {
			if err := s.Reset(); err != nil {
				return err
			}
			fmt.Printf("RESET sent (0x%02X)\n", motion.ResetByte)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(stageCmd)
	stageCmd.AddCommand(stageMoveCmd)
	stageCmd.AddCommand(stageStopCmd)
	stageCmd.AddCommand(stageResetCmd)
	stageCmd.PersistentFlags().Float64Var(&mmPerStep, "mm-per-step", 0, "Stage travel per step in millimetres")

	// Stop flag parsing at the axis so "-5" stays a distance.
	stageMoveCmd.Flags().SetInterspersed(false)
}

func stageMoveArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 2 {
		return fmt.Errorf("expected <axis> <mm>, got %d arguments (flags must come before the axis)", len(args))
	}
	return cobra.ExactArgs(2)(cmd, args)
}

// withStage opens the stage and runs fn. STOP and RESET need no scale, so
// a missing mm-per-step only fails when needScale is set.
func withStage(cmd *cobra.Command, needScale bool, fn func(*instrument.Stage) error) error {
	return instrument.Use(func() (*instrument.Stage, error) {
		conn, t, err := OpenConnection(cmd)
		if err != nil {
			return nil, err
		}
		scale := t.mmPerStep
		if mmPerStep > 0 {
			scale = mmPerStep
		}
		if scale == 0 {
			if needScale {
				conn.Close()
				return nil, errors.New("stage scale not set: use --mm-per-step or mm_per_step in the bench file")
			}
			scale = 1
		}
		s, err := instrument.NewStage(conn, scale)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return s, nil
	}, fn)
}

func runStageMove(cmd *cobra.Command, args []string) error {
	axis, err := motion.ParseAxis(args[0])
	if err != nil {
		return err
	}
	mm, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid distance %q: %w", args[1], err)
	}

	return withStage(cmd, true, func(s *instrument.Stage) error {
		step, err := s.Move(axis, mm)
		if err != nil {
			return err
		}
		frame := step.Serialize()
		fmt.Printf("Axis %s: %+g mm = %+d steps\n", motion.AxisName(axis), mm, step.Steps)
		fmt.Printf("Frame: % X\n", frame[:])
		fmt.Printf("Travel: %+g mm\n", step.Distance(s.MMPerStep()))
		return nil
	})
}
