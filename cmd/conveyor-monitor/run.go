package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cortocircuito/conveyor-monitor/internal/config"
	"github.com/cortocircuito/conveyor-monitor/internal/gpio"
	"github.com/cortocircuito/conveyor-monitor/internal/history"
	"github.com/cortocircuito/conveyor-monitor/internal/mqtt"
	"github.com/cortocircuito/conveyor-monitor/internal/panel"
	"github.com/cortocircuito/conveyor-monitor/internal/serial"
	"github.com/cortocircuito/conveyor-monitor/internal/status"
	"github.com/cortocircuito/conveyor-monitor/internal/web"
)

// NewRunCommand runs the station daemon.
func NewRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the station daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
}

func statusConfig(cfg config.Config) status.Config {
	return status.Config{
		PollMs:      cfg.Poll.Interval.Milliseconds(),
		PublishMs:   cfg.MQTT.PublishInterval.Milliseconds(),
		HeartbeatMs: cfg.MQTT.Heartbeat.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		Team:        cfg.MQTT.Team,
		HTTPAddr:    cfg.HTTP.Addr,
		SerialPort:  cfg.Serial.Port,
		HistoryPath: cfg.History.Path,
	}
}

// openTrace picks the trace sink: nothing, stdout ("-") or a serial port.
func openTrace(cfg config.SerialConfig) (serial.Sink, error) {
	switch cfg.Port {
	case "":
		return serial.Discard{}, nil
	case "-":
		// Hide Close so stdout stays open.
		return serial.NewWriterSink(struct{ io.Writer }{os.Stdout}), nil
	}
	return serial.OpenPort(cfg.Port, cfg.Baud)
}

func run(ctx context.Context, cfg config.Config) error {
	reader, err := gpio.NewRealReader(cfg.InputPins())
	if err != nil {
		return errors.Wrap(err, "init gpio")
	}
	defer reader.Close()

	s := &station{
		reader:          reader,
		params:          cfg.Params(),
		publishInterval: cfg.MQTT.PublishInterval,
		heartbeat:       cfg.MQTT.Heartbeat,
		now:             time.Now,
		getenv:          os.Getenv,
	}

	if cfg.Panel.Enabled {
		p, err := panel.NewGPIOPanel(cfg.OutputPins())
		if err != nil {
			return errors.Wrap(err, "init panel")
		}
		defer p.Close()
		s.panel = p
	}

	trace, err := openTrace(cfg.Serial)
	if err != nil {
		return errors.Wrap(err, "init serial trace")
	}
	defer trace.Close()
	s.trace = trace

	if cfg.History.Path != "" {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return errors.Wrap(err, "open history")
		}
		defer store.Close()
		s.history = store
	}

	// Tracker before STARTUP so the snapshot is available.
	s.tracker = status.NewTracker(time.Now(), statusConfig(cfg))
	s.tracker.SetNetwork(status.NetworkFromEnv(os.Getenv))

	if cfg.MQTT.Broker != "" {
		broker, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:         cfg.MQTT.Broker,
			ClientID:       cfg.MQTT.ClientID,
			Team:           cfg.MQTT.Team,
			Username:       cfg.MQTT.Username,
			Password:       cfg.MQTT.Password,
			BufferSize:     cfg.MQTT.BufferSize,
			ConnectTimeout: cfg.MQTT.ConnectTimeout,
		})
		if err != nil {
			return errors.Wrap(err, "init mqtt")
		}
		pub := mqtt.NewAsync(broker, cfg.MQTT.QueueSize)
		defer pub.Close()
		s.publisher = pub
		s.mqttStatus = pub
		s.tracker.SetMQTTConnected(pub.IsConnected())
		s.publishSystem("STARTUP", "", time.Now())
	} else {
		log.Warn("mqtt disabled: no broker configured")
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, s.tracker, s.historyLister())
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("http server error")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		log.WithField("addr", cfg.HTTP.Addr).Info("http status server listening")
	}

	log.WithFields(log.Fields{
		"poll":      cfg.Poll.Interval,
		"broker":    cfg.MQTT.Broker,
		"team":      cfg.MQTT.Team,
		"publish":   cfg.MQTT.PublishInterval,
		"heartbeat": cfg.MQTT.Heartbeat,
	}).Info("started")

	ticker := time.NewTicker(cfg.Poll.Interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return runLoop(ctx, s, ticker.C, sigCh)
}

// historyLister exposes the history store to the web server, if any.
func (s *station) historyLister() history.Lister {
	if l, ok := s.history.(history.Lister); ok {
		return l
	}
	return nil
}
