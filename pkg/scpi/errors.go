// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scpi

import "errors"

// ErrNotNumeric indicates a numeric query got a response that does not
// parse as a number.
var ErrNotNumeric = errors.New("response is not numeric")

// ErrOutOfRange indicates a well formed number that does not fit a float64.
// The value returned with it is ±Inf or 0.
var ErrOutOfRange = errors.New("numeric response out of range")
