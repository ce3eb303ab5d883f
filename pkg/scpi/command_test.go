// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scpi

import (
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{"bare header", New("*IDN?"), "*IDN?"},
		{"integer float", New("FREQ", 1000.0), "FREQ 1000"},
		{"fraction", New(":SOUR:VOLT", 0.1), ":SOUR:VOLT 0.1"},
		{"small", New(":SENS:CURR:PROT", 1e-7), ":SENS:CURR:PROT 1e-07"},
		{"negative", New("PHAS", -45.5), "PHAS -45.5"},
		{"int", New("SENS", 22), "SENS 22"},
		{"bool", New(":OUTP", true), ":OUTP 1"},
		{"string", New("DATA:SOU", "CH1"), "DATA:SOU CH1"},
		{"several", New("SNAP?", 1, 2), "SNAP? 1,2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cmd.String())
		})
	}
}

func TestFormatFloatRoundTrip(t *testing.T) {
	for _, v := range []float64{0, 1, -1, 0.1, 1.0 / 3, 2.5e-9, 1.7976931348623157e308, math.SmallestNonzeroFloat64} {
		got, err := strconv.ParseFloat(FormatFloat(v), 64)
		assert.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestIsQuery(t *testing.T) {
	assert.True(t, Command("*IDN?").IsQuery())
	assert.True(t, New("SNAP?", 1, 2).IsQuery())
	assert.False(t, Command("*RST").IsQuery())
	assert.False(t, New("DATA:SOU", "CH1?").IsQuery())
}
