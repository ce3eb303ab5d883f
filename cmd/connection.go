// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Thermoquad/benchtop/pkg/config"
	"github.com/Thermoquad/benchtop/pkg/transport"
)

// target is a resolved instrument: the bench file entry with command line
// flags applied on top.
type target struct {
	name      string
	inst      config.Instrument
	mmPerStep float64
}

// resolveTarget picks the instrument named by --instrument, or builds one
// from --address, and applies the connection flags that were set.
func resolveTarget(cmd *cobra.Command) (target, error) {
	var t target

	if instName != "" {
		inst, err := benchConfig.Instrument(instName)
		if err != nil {
			return t, err
		}
		t.name = instName
		t.inst = inst
	}

	flags := cmd.Flags()
	if address != "" {
		t.inst.Address = address
	}
	if flags.Changed("timeout") || t.inst.Timeout == 0 {
		t.inst.Timeout = timeout
	}
	if adapterPort != "" {
		t.inst.Adapter = adapterPort
	}
	if terminator != "" {
		t.inst.Terminator = terminator
	}
	if flags.Changed("baud") {
		t.inst.BaudRate = baudRate
	}
	if wsUsername != "" {
		t.inst.Username = wsUsername
	}
	if wsNoSSLVerify {
		t.inst.InsecureTLS = true
	}
	t.mmPerStep = t.inst.MMPerStep

	if t.inst.Address == "" {
		return t, errors.New("either --address or --instrument must be specified")
	}
	if err := t.inst.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

// describe returns a one-line description of the connection.
func (t target) describe() string {
	if t.name != "" {
		return fmt.Sprintf("%s (%s)", t.name, t.inst.Address)
	}
	return t.inst.Address
}

// options returns the transport options for the target, prompting for a
// bridge password when a username is set.
func (t target) options() ([]transport.Option, error) {
	opts := append(t.inst.Options(), transport.WithRegistry(registry))

	addr, err := transport.ParseAddress(t.inst.Address)
	if err != nil {
		return nil, err
	}
	if addr.Kind == transport.KindWebSocket && t.inst.Username != "" {
		password, err := GetPassword()
		if err != nil {
			return nil, err
		}
		opts = append(opts, transport.WithCredentials(t.inst.Username, password))
	}
	return opts, nil
}

// OpenConnection opens the instrument selected by the flags.
func OpenConnection(cmd *cobra.Command) (*transport.Conn, target, error) {
	t, err := resolveTarget(cmd)
	if err != nil {
		return nil, t, err
	}
	opts, err := t.options()
	if err != nil {
		return nil, t, err
	}
	conn, err := transport.Open(t.inst.Address, opts...)
	if err != nil {
		return nil, t, err
	}
	return conn, t, nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("BENCHTOP_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}
