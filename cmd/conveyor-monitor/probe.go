package main

import (
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/cortocircuito/conveyor-monitor/internal/gpio"
	"github.com/cortocircuito/conveyor-monitor/internal/serial"
)

// NewProbeCommand reads the inputs and prints them, for wiring checks.
func NewProbeCommand() *cobra.Command {
	var (
		samples   int
		interval  time.Duration
		listPorts bool
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Print the current sensor, encoder and button state",
		Long: `Read the station inputs and print them. With --samples > 1 the inputs are
polled repeatedly so encoder turns and button presses can be checked by hand.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if listPorts {
				ports, err := serial.Ports()
				if err != nil {
					return err
				}
				return printPorts(out, ports)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			reader, err := gpio.NewRealReader(cfg.InputPins())
			if err != nil {
				return errors.Wrap(err, "init gpio")
			}
			defer reader.Close()
			return probe(out, reader, samples, interval, time.Sleep)
		},
	}

	cmd.Flags().IntVarP(&samples, "samples", "n", 1, "number of samples to read")
	cmd.Flags().DurationVar(&interval, "interval", 100*time.Millisecond, "delay between samples")
	cmd.Flags().BoolVar(&listPorts, "serial-ports", false, "list serial ports instead of reading GPIO")
	return cmd
}

func probe(w io.Writer, reader gpio.Reader, samples int, interval time.Duration, sleep func(time.Duration)) error {
	if samples < 1 {
		samples = 1
	}
	for i := range samples {
		if i > 0 {
			sleep(interval)
		}
		s, err := reader.Read()
		if err != nil {
			return errors.Wrap(err, "read gpio")
		}
		fmt.Fprintf(w, "IR: %s, turn: %+d, pressed: %s\n", onOff(s.Beam), s.Turn, yesNo(s.Pressed))
	}
	return nil
}

func printPorts(w io.Writer, ports []string) error {
	if len(ports) == 0 {
		_, err := fmt.Fprintln(w, "no serial ports found")
		return err
	}
	for _, p := range ports {
		if _, err := fmt.Fprintln(w, p); err != nil {
			return err
		}
	}
	return nil
}

func onOff(b bool) string {
	if b {
		return "BLOCKED"
	}
	return "CLEAR"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
