// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/Thermoquad/benchtop/pkg/export"
)

// writeTable saves t to path, or prints it to stdout when path is empty.
func writeTable(t *export.Table, path string) error {
	if path == "" {
		return t.WriteCSV(os.Stdout)
	}
	if err := t.Save(path); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Wrote %d rows to %s\n", t.Len(), path)
	return nil
}

// interruptible returns a context cancelled by Ctrl+C.
func interruptible(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt)
}

// interrupted filters a cancellation caused by Ctrl+C so partial results
// can still be written.
func interrupted(ctx context.Context, err error, got int) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		fmt.Fprintf(os.Stderr, "Interrupted after %d samples\n", got)
		return nil
	}
	return err
}
