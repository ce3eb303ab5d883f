// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/benchtop/pkg/config"
	"github.com/Thermoquad/benchtop/pkg/logger"
	"github.com/Thermoquad/benchtop/pkg/transport"
)

var (
	// Connection flags
	address     string
	instName    string
	configPath  string
	timeout     time.Duration
	adapterPort string
	terminator  string
	baudRate    int

	// WebSocket bridge flags
	wsUsername    string
	wsNoSSLVerify bool

	// Logging and metrics
	logLevel    string
	logFormat   string
	metricsAddr string
)

var (
	benchConfig = config.Default()
	registry    = transport.NewRegistry()
)

var rootCmd = &cobra.Command{
	Use:   "benchtop",
	Short: "Laboratory instrument control",
	Long: `Benchtop - drive bench instruments over serial, GPIB and USB.

Talks to oscilloscopes, lock-in amplifiers and source-measure units with
SCPI style commands, and to a two-axis stepper stage with binary move frames.

Addresses:
  Serial:    /dev/ttyUSB0, COM3, ASRL/dev/ttyUSB0::INSTR
  GPIB:      GPIB0::8::INSTR (through a Prologix adapter, --adapter /dev/ttyUSB1)
  USBTMC:    USB0::0x0699::0x0368::C012345::INSTR
  WebSocket: ws://host/path [--username user]

Instruments can also be named in a bench file (--config bench.yaml) and
selected with --instrument. Flags override the bench file.

For WebSocket bridges the password is read from the BENCHTOP_PASSWORD
environment variable, or prompted interactively if not set.`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	flags := rootCmd.PersistentFlags()

	flags.StringVarP(&address, "address", "a", "", "Instrument address")
	flags.StringVarP(&instName, "instrument", "i", "", "Instrument name from the bench file")
	flags.StringVarP(&configPath, "config", "c", "", "Bench file (YAML)")
	flags.DurationVar(&timeout, "timeout", transport.DefaultTimeout, "Read timeout")
	flags.StringVar(&adapterPort, "adapter", "", "Prologix adapter serial port (GPIB addresses)")
	flags.StringVar(&terminator, "terminator", "", "Line terminator: lf, cr or crlf (default depends on the bus)")
	flags.IntVarP(&baudRate, "baud", "b", transport.DefaultSerialBaudRate, "Baud rate (serial only)")

	flags.StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth (WebSocket only)")
	flags.BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	flags.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&logFormat, "log-format", "", "Log format: console or json")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9464)")
}

// setup loads the bench file, then configures logging and metrics.
func setup(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		benchConfig = cfg
	}

	level := benchConfig.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	lvl, ok := logger.ParseLevel(level)
	if !ok {
		return fmt.Errorf("unknown log level %q", level)
	}

	format := benchConfig.Log.Format
	if logFormat != "" {
		format = logFormat
	}
	if format != "console" && format != "json" {
		return fmt.Errorf("unknown log format %q (use console or json)", format)
	}

	logger.SetDefault(logger.NewSlog(logger.Options{
		Level:   lvl,
		Console: format == "console",
	}))

	addr := benchConfig.MetricsAddr
	if metricsAddr != "" {
		addr = metricsAddr
	}
	if addr != "" {
		startMetricsServer(addr)
	}

	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
