package main

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/cortocircuito/conveyor-monitor/internal/status"
)

// NewStatusCommand queries a running daemon over HTTP.
func NewStatusCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of a running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				addr = cfg.HTTP.Addr
			}
			client := &http.Client{Timeout: 5 * time.Second}
			st, err := fetchStatus(client, statusURL(addr))
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "daemon HTTP address (default from config)")
	return cmd
}

// statusURL turns a listen address such as ":8080" into a URL to fetch.
func statusURL(addr string) string {
	if !strings.Contains(addr, "://") {
		if strings.HasPrefix(addr, ":") {
			addr = "localhost" + addr
		}
		addr = "http://" + addr
	}
	return strings.TrimSuffix(addr, "/") + "/index.json"
}

func fetchStatus(client *http.Client, url string) (status.StatusInner, error) {
	resp, err := client.Get(url)
	if err != nil {
		return status.StatusInner{}, errors.Wrap(err, "daemon not reachable")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return status.StatusInner{}, errors.Errorf("daemon returned %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return status.StatusInner{}, errors.Wrap(err, "read status")
	}
	st, err := status.ParseJSON(body)
	return st, errors.Wrap(err, "decode status")
}

func stateColor(state string) *color.Color {
	switch state {
	case "Funcionando":
		return color.New(color.Bold, color.FgGreen)
	case "Atasco":
		return color.New(color.Bold, color.FgRed)
	case "Regulando":
		return color.New(color.Bold, color.FgYellow)
	case "Seleccionando":
		return color.New(color.Bold, color.FgBlue)
	}
	return color.New(color.Bold)
}

func check(ok bool) string {
	if ok {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...any) string {
	return color.New(color.Bold).Sprintf(format, a...)
}

func printStatus(w io.Writer, st status.StatusInner) {
	fmt.Fprintf(w, "%s %s\n", bold("State:"), stateColor(st.State).Sprint(st.State))
	fmt.Fprintf(w, "  Mode: %s (%s)\n", st.Mode, st.Stage)
	fmt.Fprintf(w, "  Display: %s  LED: %s\n", bold("%s", st.Display), st.LED)
	fmt.Fprintf(w, "  Speed: %.2f m/s\n", st.Speed)
	if st.Regulated {
		fmt.Fprintf(w, "  Expected interval: %.2fs\n", st.ExpectedS)
	} else {
		fmt.Fprintln(w, "  Expected interval: calibrating")
	}
	if st.Jam.Latched {
		fmt.Fprintf(w, "  %s %s (%d press(es) so far)\n",
			color.New(color.Bold, color.FgRed).Sprint("Jam:"), st.Jam.Reason, st.Jam.AckPresses)
	}
	if st.Paused {
		fmt.Fprintln(w, "  Paused for reconfiguration")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s\n", bold("Counts:"))
	fmt.Fprintf(w, "  Bottles: %d  Jams: %d  Cleared: %d\n", st.Counts.Bottles, st.Counts.Jams, st.Counts.Clears)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s\n", bold("Connectivity:"))
	fmt.Fprintf(w, "  MQTT %s: %s %s\n", st.MQTT.Team, st.MQTT.Broker, check(st.MQTT.Connected))
	if st.Network != nil {
		fmt.Fprintf(w, "  Network: %s (%s) %s\n", st.Network.Status, st.Network.Type, st.Network.IP)
	}
	fmt.Fprintf(w, "  Uptime: %s\n", time.Duration(st.UptimeSeconds)*time.Second)
}
