// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package waveform

import (
	"fmt"
	"math"
)

// AnomalyType classifies a suspicious preamble field.
type AnomalyType int

const (
	AnomalyNotFinite AnomalyType = iota
	AnomalyZeroScale
	AnomalyNonPositiveIncrement
)

// ValidationError describes one preamble anomaly.
type ValidationError struct {
	Type    AnomalyType
	Field   string
	Message string
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// CheckPreamble reports fields that would make every converted sample
// meaningless. Conversion itself never rejects a preamble; callers decide
// whether these anomalies are fatal.
func CheckPreamble(p Preamble) []ValidationError {
	errors := []ValidationError{}

	fields := []struct {
		name  string
		value float64
	}{
		{"XINCR", p.XIncrement},
		{"XZERO", p.XZero},
		{"YMULT", p.YMult},
		{"YZERO", p.YZero},
		{"YOFF", p.YOffset},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			errors = append(errors, ValidationError{
				Type:    AnomalyNotFinite,
				Field:   f.name,
				Message: fmt.Sprintf("%s is not finite (%v)", f.name, f.value),
			})
		}
	}

	if p.YMult == 0 {
		errors = append(errors, ValidationError{
			Type:    AnomalyZeroScale,
			Field:   "YMULT",
			Message: "YMULT is zero, every sample converts to YZERO",
		})
	}

	if p.XIncrement <= 0 {
		errors = append(errors, ValidationError{
			Type:    AnomalyNonPositiveIncrement,
			Field:   "XINCR",
			Message: fmt.Sprintf("XINCR=%g, time axis does not advance", p.XIncrement),
		})
	}

	return errors
}
