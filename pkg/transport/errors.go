// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import "errors"

var (
	// ErrOpenFailed indicates the channel to the instrument could not be opened.
	ErrOpenFailed = errors.New("open failed")

	// ErrTimeout indicates a read did not complete within its timeout.
	// The connection stays usable.
	ErrTimeout = errors.New("read timeout")

	// ErrChannelClosed indicates the connection was closed locally or by the peer.
	ErrChannelClosed = errors.New("channel closed")

	// ErrWriteFailed indicates bytes could not be written to the channel.
	ErrWriteFailed = errors.New("write failed")

	// ErrInvalidAddress indicates an instrument address that cannot be parsed.
	ErrInvalidAddress = errors.New("invalid instrument address")
)
