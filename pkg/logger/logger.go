// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package logger is the structured logging front end used by transports,
// the SCPI engine and the instrument drivers.
//
// Everything logs through the Logger interface so tests can swap in
// MockLogger and the CLI can pick a JSON or console handler at startup.
package logger

// Level is a logging severity.
type Level = int8

const (
	// DebugLevel traces every command and response on the wire.
	DebugLevel Level = iota - 1
	// InfoLevel is the default.
	InfoLevel
	// WarnLevel reports recoverable instrument trouble such as read timeouts.
	WarnLevel
	// ErrorLevel reports failed operations.
	ErrorLevel
)

// Logger is a leveled key/value logger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	// With returns a child logger carrying the given key/value pairs.
	With(keysAndValues ...any) Logger
	Level() Level
	SetLevel(level Level)
}

// ParseLevel maps a flag or config value to a Level.
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "debug":
		return DebugLevel, true
	case "info", "":
		return InfoLevel, true
	case "warn", "warning":
		return WarnLevel, true
	case "error":
		return ErrorLevel, true
	}
	return InfoLevel, false
}
