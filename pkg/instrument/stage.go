// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package instrument

import (
	"fmt"
	"sync"

	"github.com/Thermoquad/benchtop/pkg/logger"
	"github.com/Thermoquad/benchtop/pkg/motion"
	"github.com/Thermoquad/benchtop/pkg/transport"
)

// Stage drives a two-axis stepper stage controller over a serial line.
//
// The controller never acknowledges, so Position is an open-loop estimate
// built from the moves sent since the last Reset.
type Stage struct {
	conn      *transport.Conn
	mmPerStep float64
	logger    logger.Logger

	mu    sync.Mutex
	steps map[byte]int64
}

// NewStage wraps an open connection. mmPerStep is the travel of one step.
func NewStage(conn *transport.Conn, mmPerStep float64) (*Stage, error) {
	if !(mmPerStep > 0) {
		return nil, fmt.Errorf("mm per step must be positive, got %g", mmPerStep)
	}
	return &Stage{
		conn:      conn,
		mmPerStep: mmPerStep,
		logger:    conn.Logger(),
		steps:     make(map[byte]int64),
	}, nil
}

// OpenStage opens the stage controller at address.
func OpenStage(address string, mmPerStep float64, opts ...transport.Option) (*Stage, error) {
	conn, err := transport.Open(address, opts...)
	if err != nil {
		return nil, err
	}
	s, err := NewStage(conn, mmPerStep)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Conn returns the underlying connection.
func (s *Stage) Conn() *transport.Conn { return s.conn }

// MMPerStep returns the travel of one step.
func (s *Stage) MMPerStep() float64 { return s.mmPerStep }

// Move sends a relative move of mm millimetres on axis. The frame is fully
// encoded before anything is written, so a move that overflows the step
// field sends nothing.
func (s *Stage) Move(axis byte, mm float64) (motion.StepCommand, error) {
	if axis != motion.AxisA && axis != motion.AxisB {
		return motion.StepCommand{}, fmt.Errorf("unknown axis 0x%02X", axis)
	}

	cmd, err := motion.EncodeStep(axis, mm, s.mmPerStep)
	if err != nil {
		return motion.StepCommand{}, err
	}

	frame := cmd.Serialize()
	if err := s.conn.WriteBytes(frame[:]); err != nil {
		return motion.StepCommand{}, err
	}

	s.mu.Lock()
	s.steps[axis] += int64(cmd.Steps)
	s.mu.Unlock()

	s.logger.Debug("stage move", "axis", motion.AxisName(axis), "steps", cmd.Steps, "frame", fmt.Sprintf("% X", frame))
	return cmd, nil
}

// Stop halts motion on both axes.
func (s *Stage) Stop() error {
	if err := s.conn.WriteBytes([]byte{motion.StopByte}); err != nil {
		return err
	}
	s.logger.Debug("stage stop")
	return nil
}

// Reset resets the controller and zeroes the position estimate.
func (s *Stage) Reset() error {
	if err := s.conn.WriteBytes([]byte{motion.ResetByte}); err != nil {
		return err
	}

	s.mu.Lock()
	clear(s.steps)
	s.mu.Unlock()

	s.logger.Debug("stage reset")
	return nil
}

// Position returns the commanded displacement of axis in millimetres since
// the stage was opened or last reset.
func (s *Stage) Position(axis byte) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.steps[axis]) * s.mmPerStep
}

// Close closes the connection.
func (s *Stage) Close() error {
	return s.conn.Close()
}
