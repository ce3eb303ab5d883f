// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/benchtop/pkg/instrument"
	"github.com/Thermoquad/benchtop/pkg/transport"
)

var (
	monitorInterval time.Duration
	monitorHistory  int
	useTUI          bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor <lockin|smu>",
	Short: "Live view of lock-in or source-measure readings",
	Long: `Poll an instrument and show the latest reading, a history table and
connection statistics.

  lockin  X and Y from SNAP? 1,2
  smu     voltage and current from :READ? (the output must already be on)

Keys: q quits, p pauses polling. Use --tui=false for plain text lines.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"lockin", "smu"},
	RunE:      runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 500*time.Millisecond, "Time between readings")
	monitorCmd.Flags().IntVar(&monitorHistory, "history", 200, "Readings kept in the history table")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

// sampler reads one kind of two-value sample from an open instrument.
type sampler struct {
	kind   string
	labels [2]string
	read   func() (instrument.Sample, error)
	stats  *transport.Statistics
	closer io.Closer
}

func newSampler(kind string, conn *transport.Conn) (*sampler, error) {
	switch kind {
	case "lockin":
		l := instrument.NewLockIn(conn)
		return &sampler{
			kind:   "Lock-in",
			labels: [2]string{"X (V)", "Y (V)"},
			read:   l.SnapXY,
			stats:  conn.Stats(),
			closer: l,
		}, nil
	case "smu":
		m := instrument.NewSourceMeter(conn)
		return &sampler{
			kind:   "Source meter",
			labels: [2]string{"Voltage (V)", "Current (A)"},
			read:   m.Read,
			stats:  conn.Stats(),
			closer: m,
		}, nil
	}
	return nil, fmt.Errorf("unknown instrument kind %q (use lockin or smu)", kind)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if monitorInterval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", monitorInterval)
	}

	conn, t, err := OpenConnection(cmd)
	if err != nil {
		return err
	}

	s, err := newSampler(args[0], conn)
	if err != nil {
		conn.Close()
		return err
	}
	defer s.closer.Close()

	if useTUI {
		p := tea.NewProgram(newMonitorModel(s, t.describe(), monitorInterval, monitorHistory))
		_, err := p.Run()
		return err
	}
	return runMonitorText(cmd, s, t.describe())
}

// runMonitorText prints one line per reading until Ctrl+C.
func runMonitorText(cmd *cobra.Command, s *sampler, connInfo string) error {
	ctx, stop := interruptible(cmd.Context())
	defer stop()

	fmt.Printf("Benchtop - %s Monitor\n", s.kind)
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")
	fmt.Printf("%-12s  %14s  %14s\n", "Time", s.labels[0], s.labels[1])

	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	start := time.Now()
	for {
		sample, err := s.read()
		stamp := time.Since(start).Seconds()
		if err != nil {
			fmt.Printf("%-12.3f  ERROR: %v\n", stamp, err)
		} else {
			fmt.Printf("%-12.3f  %14.6g  %14.6g\n", stamp, sample.X, sample.Y)
		}

		select {
		case <-ctx.Done():
			fmt.Printf("\n%s", s.stats)
			return nil
		case <-ticker.C:
		}
	}
}
