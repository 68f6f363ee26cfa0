// Command conveyor-monitor watches a bottling conveyor for jams, drives the
// station's display and status LED, and reports telemetry over MQTT.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cortocircuito/conveyor-monitor/internal/config"
)

var (
	logLevel   = "info"
	configPath = config.DefaultPath
)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return errors.Wrap(err, "failed to parse log level")
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if isatty.IsTerminal(os.Stderr.Fd()) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.StampMilli,
		})
	}
	return nil
}

// loadConfig reads the configuration named by --config.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, errors.Wrap(err, "load configuration")
	}
	return cfg, nil
}

func main() {
	if err := NewCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// NewCommand builds the root command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conveyor-monitor",
		Short: "Jam detection and telemetry for a bottling conveyor station",
		Long: `conveyor-monitor polls the station's IR bottle sensor, rotary encoder and
button, detects jams from bottle timing, drives the 7-segment display and
RGB status LED, and publishes telemetry to MQTT.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogger()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&logLevel, "log-level", "l", logLevel, "log level (trace, debug, info, warn, error)")
	flags.StringVarP(&configPath, "config", "c", configPath, "config file path (missing file means defaults)")

	cmd.AddCommand(
		NewRunCommand(),
		NewProbeCommand(),
		NewStatusCommand(),
		NewHistoryCommand(),
		NewConfigCommand(),
	)
	return cmd
}
