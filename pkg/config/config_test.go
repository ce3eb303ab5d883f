// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const benchFile = `
log:
  level: debug
  format: json
metrics_addr: ":9464"
instruments:
  scope:
    address: USB0::0x0699::0x0368::C012345::INSTR
    timeout: 5s
  lockin:
    address: GPIB0::8::INSTR
    adapter: /dev/ttyUSB1
  stage:
    address: /dev/ttyUSB0
    terminator: crlf
    baud_rate: 19200
    mm_per_step: 0.390625
  bridge:
    address: wss://bench.local/ws
    username: admin
    insecure_tls: true
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(benchFile), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, ":9464", cfg.MetricsAddr)
	assert.Equal(t, []string{"bridge", "lockin", "scope", "stage"}, cfg.Names())

	scope, err := cfg.Instrument("scope")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, scope.Timeout)
	assert.Len(t, scope.Options(), 1)

	stage, err := cfg.Instrument("stage")
	require.NoError(t, err)
	assert.Equal(t, 0.390625, stage.MMPerStep)
	assert.Len(t, stage.Options(), 2)

	bridge, err := cfg.Instrument("bridge")
	require.NoError(t, err)
	assert.Equal(t, "admin", bridge.Username)
	assert.True(t, bridge.InsecureTLS)

	_, err = cfg.Instrument("dmm")
	assert.ErrorIs(t, err, ErrUnknownInstrument)
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("instruments:\n  smu:\n    address: GPIB0::24::INSTR\n    adapter: COM4\n"))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Empty(t, cfg.MetricsAddr)

	cfg, err = Parse([]byte(""))
	require.NoError(t, err)
	assert.NotNil(t, cfg.Instruments)
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"syntax", "log: [", "parse config"},
		{"log level", "log:\n  level: loud\n", "log.level"},
		{"log format", "log:\n  format: xml\n", "log.format"},
		{"bad address", "instruments:\n  x:\n    address: GPIB0::40::INSTR\n", "instruments.x"},
		{"gpib without adapter", "instruments:\n  x:\n    address: GPIB0::4::INSTR\n", "adapter"},
		{"negative timeout", "instruments:\n  x:\n    address: COM1\n    timeout: -1s\n", "timeout"},
		{"bad terminator", "instruments:\n  x:\n    address: COM1\n    terminator: semicolon\n", "terminator"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseTerminator(t *testing.T) {
	tests := map[string]string{
		"":     "",
		"LF":   "\n",
		"cr":   "\r",
		"crlf": "\r\n",
		`\r\n`: "\r\n",
		"\r\n": "\r\n",
		"\n":   "\n",
	}
	for in, want := range tests {
		got, err := ParseTerminator(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseTerminator(";")
	assert.Error(t, err)
}
