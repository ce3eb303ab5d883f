// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package scpi implements the command/response discipline shared by the
// instrument drivers: one command in flight, one response line per query.
package scpi

import (
	"fmt"
	"strconv"
	"strings"
)

// Command is an ASCII instrument command: a header optionally followed by
// a space and comma separated parameters.
type Command string

// New builds a command from a header and parameters. Floats are written as
// the shortest decimal that parses back to the same value.
func New(header string, args ...any) Command {
	if len(args) == 0 {
		return Command(header)
	}

	params := make([]string, len(args))
	for i, arg := range args {
		params[i] = FormatArg(arg)
	}
	return Command(header + " " + strings.Join(params, ","))
}

// FormatArg renders one command parameter.
func FormatArg(arg any) string {
	switch v := arg.(type) {
	case float64:
		return FormatFloat(v)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(arg)
}

// FormatFloat renders v as the shortest round-trippable decimal.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// IsQuery reports whether the command expects a response.
func (c Command) IsQuery() bool {
	header, _, _ := strings.Cut(string(c), " ")
	return strings.HasSuffix(header, "?")
}

func (c Command) String() string {
	return string(c)
}
