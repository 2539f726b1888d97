// Package mcu talks to an ESC over its debug console.
package mcu

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"escpwm/core"
	"escpwm/host/commission"
	"escpwm/host/serial"
)

// MCU represents a connection to the ESC console
type MCU struct {
	// Serial port
	port serial.Port

	// Connection state
	connected bool
}

// NewMCU creates a new MCU instance (not yet connected)
func NewMCU() *MCU {
	return &MCU{
		connected: false,
	}
}

// Connect connects to an ESC via serial port
func (m *MCU) Connect(device string) error {
	return m.ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig connects to an ESC with a custom serial config
func (m *MCU) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}
	return m.Attach(port)
}

// Attach uses an already open port
func (m *MCU) Attach(port serial.Port) error {
	// Drop stale console output from before the reset
	if err := port.Flush(); err != nil {
		port.Close()
		return fmt.Errorf("failed to flush serial port: %w", err)
	}
	m.port = port
	m.connected = true
	return nil
}

// Close closes the connection
func (m *MCU) Close() error {
	if !m.connected {
		return nil
	}
	m.connected = false
	return m.port.Close()
}

// IsConnected returns true if connected
func (m *MCU) IsConnected() bool {
	return m.connected
}

// WaitForCommissioning waits up to timeout for the firmware to print its
// PWM limits and checks them against cfg. Reset the board after connecting.
func (m *MCU) WaitForCommissioning(cfg core.BoardConfig, timeout time.Duration) (*commission.Report, error) {
	if !m.connected {
		return nil, fmt.Errorf("not connected")
	}
	r := &deadlineReader{r: m.port, deadline: time.Now().Add(timeout)}
	return commission.Watch(r, cfg)
}

// Monitor passes every console line to fn until the port fails.
func (m *MCU) Monitor(fn func(line string)) error {
	if !m.connected {
		return fmt.Errorf("not connected")
	}
	scanner := bufio.NewScanner(&deadlineReader{r: m.port})
	for scanner.Scan() {
		fn(strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read console: %w", err)
	}
	return nil
}

// deadlineReader turns serial read timeouts into retries until the deadline
// passes. A zero deadline never expires. tarm/serial reports a timeout as a
// zero-length read.
type deadlineReader struct {
	r        io.Reader
	deadline time.Time
}

func (d *deadlineReader) Read(b []byte) (int, error) {
	for {
		n, err := d.r.Read(b)
		if n > 0 {
			return n, nil
		}
		if err != nil && err != io.EOF {
			return 0, err
		}
		if !d.deadline.IsZero() && time.Now().After(d.deadline) {
			return 0, io.EOF
		}
	}
}
