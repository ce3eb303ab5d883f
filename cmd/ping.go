// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/benchtop/pkg/instrument"
	"github.com/Thermoquad/benchtop/pkg/transport"
)

var (
	pingCount int
	pingDelay time.Duration
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure command round-trip time with *OPC?",
	Long: `Send *OPC? repeatedly and report the round-trip time of each answer.

This checks that the link passes traffic both ways, and shows the latency
added by adapters and bridges (Prologix, WebSocket).

Exit codes:
  0 - All pings answered
  1 - One or more pings failed or timed out
  2 - Connection error`,
	Args: cobra.NoArgs,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
	pingCmd.Flags().DurationVar(&pingDelay, "delay", 100*time.Millisecond, "Pause between pings")
}

// pingResult summarizes a ping run.
type pingResult struct {
	sent     int
	answered int
	min      time.Duration
	max      time.Duration
	total    time.Duration
}

func (r *pingResult) add(rtt time.Duration) {
	if r.answered == 0 || rtt < r.min {
		r.min = rtt
	}
	if rtt > r.max {
		r.max = rtt
	}
	r.answered++
	r.total += rtt
}

func (r pingResult) loss() float64 {
	if r.sent == 0 {
		return 0
	}
	return float64(r.sent-r.answered) / float64(r.sent) * 100
}

func (r pingResult) avg() time.Duration {
	if r.answered == 0 {
		return 0
	}
	return r.total / time.Duration(r.answered)
}

func runPing(cmd *cobra.Command, args []string) error {
	if pingCount < 1 {
		return fmt.Errorf("count must be at least 1, got %d", pingCount)
	}

	conn, t, err := OpenConnection(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	dev := instrument.NewDevice(conn)
	defer dev.Close()

	fmt.Printf("Benchtop - Ping\n")
	fmt.Printf("Connection: %s\n", t.describe())
	fmt.Printf("Timeout: %v per ping\n", conn.Timeout())
	fmt.Printf("Count: %d pings\n\n", pingCount)

	var res pingResult
	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)
		res.sent++

		start := time.Now()
		err := dev.WaitComplete()
		rtt := time.Since(start)

		switch {
		case err == nil:
			res.add(rtt)
			fmt.Printf("OK rtt=%v\n", rtt.Round(time.Microsecond))
		case errors.Is(err, transport.ErrTimeout):
			fmt.Printf("TIMEOUT (no response in %v)\n", conn.Timeout())
		case errors.Is(err, transport.ErrChannelClosed):
			fmt.Printf("FAILED: %v\n", err)
			dev.Close()
			os.Exit(2)
		default:
			fmt.Printf("FAILED: %v\n", err)
		}

		if i < pingCount {
			time.Sleep(pingDelay)
		}
	}

	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d answered, %.0f%% loss\n", res.sent, res.answered, res.loss())
	if res.answered > 0 {
		fmt.Printf("rtt min/avg/max = %v/%v/%v\n",
			res.min.Round(time.Microsecond), res.avg().Round(time.Microsecond), res.max.Round(time.Microsecond))
	}

	if res.answered < res.sent {
		dev.Close()
		os.Exit(1)
	}
	return nil
}
