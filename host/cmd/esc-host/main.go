package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"escpwm/host/boardcfg"
	"escpwm/host/dryrun"
	"escpwm/host/mcu"
	"escpwm/host/serial"
)

var (
	device  = flag.String("device", "/dev/ttyUSB0", "Serial device path")
	baud    = flag.Int("baud", serial.DefaultBaud, "Baud rate of the debug console")
	board   = flag.String("board", "", "Board profile (.json or .yaml); reference board if empty")
	dryRun  = flag.Bool("dry-run", false, "Drive simulated timers instead of a board")
	duty    = flag.Uint("duty", 8192, "14-bit duty cycle for the dry run")
	timeout = flag.Duration("timeout", 10*time.Second, "How long to wait for the commissioning report")
	monitor = flag.Bool("monitor", false, "Keep printing console output after commissioning")
)

func main() {
	flag.Parse()

	fmt.Println("ESC Host - PWM commissioning tool")
	fmt.Println("=================================")
	fmt.Println()

	profile := boardcfg.DefaultProfile()
	if *board != "" {
		var err error
		profile, err = boardcfg.LoadFile(*board)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("Board: %s\n", profile.Name)

	if *dryRun {
		if err := dryrun.Run(os.Stdout, profile.BoardConfig(), uint32(*duty)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: Dry run failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	mcuConn := mcu.NewMCU()

	fmt.Printf("Connecting to ESC on %s...\n", *device)
	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud
	if err := mcuConn.ConnectWithConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer mcuConn.Close()

	fmt.Println("Connected. Reset the board to start commissioning.")

	report, err := mcuConn.WaitForCommissioning(profile.BoardConfig(), *timeout)
	if report != nil {
		for _, line := range report.Log {
			fmt.Println("  " + line)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Commissioning failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Commissioning OK: PWM max %d, dead time %d ticks\n", report.Max, report.DeadTime)

	if !*monitor {
		return
	}

	fmt.Println("Monitoring console (Ctrl-C to exit)...")
	err = mcuConn.Monitor(func(line string) {
		fmt.Println(line)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
