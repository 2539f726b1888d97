// Package serial opens the ESC debug console. The firmware prints plain
// text lines on its UART; nothing is ever written back.
package serial

import "io"

// Port is an open console. Tests replace it with scripted readers.
type Port interface {
	io.ReadWriteCloser

	// Flush drops console output received before the call.
	Flush() error
}

// Config selects the console device
type Config struct {
	Device string // e.g. /dev/ttyUSB0 for a USB-UART bridge

	Baud int // must match the firmware UART

	// ReadTimeout bounds a single read in milliseconds. A timed out read
	// returns no data, which host/mcu treats as "keep waiting".
	ReadTimeout int
}

// DefaultBaud is the UART rate the stm32f103 firmware configures
const DefaultBaud = 115200

// DefaultConfig returns the console settings of the stock firmware
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 200,
	}
}
