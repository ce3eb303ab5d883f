// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package logger

import "sync/atomic"

var defLogger atomic.Pointer[SlogLogger]

func init() {
	defLogger.Store(NewSlog(Options{Level: InfoLevel}))
}

// Default returns the process-wide logger.
func Default() Logger {
	return defLogger.Load()
}

// SetDefault replaces the process-wide logger.
func SetDefault(l *SlogLogger) {
	defLogger.Store(l)
}

func Debug(msg string, keysAndValues ...any) { Default().Debug(msg, keysAndValues...) }

func Info(msg string, keysAndValues ...any) { Default().Info(msg, keysAndValues...) }

func Warn(msg string, keysAndValues ...any) { Default().Warn(msg, keysAndValues...) }

func Error(msg string, keysAndValues ...any) { Default().Error(msg, keysAndValues...) }

// With returns a child of the default logger.
func With(keysAndValues ...any) Logger {
	return Default().With(keysAndValues...)
}
