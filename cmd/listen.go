// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/benchtop/pkg/transport"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print lines the instrument sends without being asked",
	Long: `Read and print every line received on the connection, with a timestamp.

Meant for talk-only instruments and for watching a bridge. Nothing is
written to the instrument. Read timeouts are not errors here; listening
continues until Ctrl+C or the connection closes.`,
	Args: cobra.NoArgs,
	RunE: runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)
}

func runListen(cmd *cobra.Command, args []string) error {
	conn, t, err := OpenConnection(cmd)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, stop := interruptible(cmd.Context())
	defer stop()

	fmt.Printf("Benchtop - Listen\n")
	fmt.Printf("Connection: %s\n", t.describe())
	fmt.Printf("Press Ctrl+C to exit\n\n")

	for ctx.Err() == nil {
		line, err := conn.ReadLine(0)
		switch {
		case err == nil:
			fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05.000"), line)
		case errors.Is(err, transport.ErrTimeout):
		case errors.Is(err, transport.ErrChannelClosed):
			fmt.Printf("Connection closed\n")
			return nil
		default:
			return err
		}
	}

	fmt.Printf("\n%s", conn.Stats())
	return nil
}
