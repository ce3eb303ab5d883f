// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package instrument

import (
	"context"
	"fmt"
	"time"

	"github.com/Thermoquad/benchtop/pkg/scpi"
)

// Sample is a pair of readings taken together, such as X/Y, R/θ or V/I,
// with its time in seconds relative to the first reading of a run.
type Sample struct {
	Time float64
	X    float64
	Y    float64
}

// ParseSample parses a two-value comma separated response.
func ParseSample(resp string) (Sample, error) {
	values, err := scpi.ParseFloats(resp)
	if err != nil {
		return Sample{}, err
	}
	if len(values) != 2 {
		return Sample{}, fmt.Errorf("%w: expected 2 values, got %d in %q", scpi.ErrNotNumeric, len(values), resp)
	}
	return Sample{X: values[0], Y: values[1]}, nil
}

// clock stamps samples relative to the first reading of a run.
type clock struct {
	now     func() time.Time
	start   time.Time
	started bool
}

func newClock(now func() time.Time) *clock {
	return &clock{now: now}
}

func (c *clock) elapsed() float64 {
	t := c.now()
	if !c.started {
		c.start = t
		c.started = true
	}
	return t.Sub(c.start).Seconds()
}

// wait sleeps for d unless ctx ends first.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
