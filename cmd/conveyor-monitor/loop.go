package main

import (
	"context"
	"os"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cortocircuito/conveyor-monitor/internal/gpio"
	"github.com/cortocircuito/conveyor-monitor/internal/history"
	"github.com/cortocircuito/conveyor-monitor/internal/logic"
	"github.com/cortocircuito/conveyor-monitor/internal/mqtt"
	"github.com/cortocircuito/conveyor-monitor/internal/panel"
	"github.com/cortocircuito/conveyor-monitor/internal/serial"
	"github.com/cortocircuito/conveyor-monitor/internal/status"
)

// historyTimeout bounds a single history write so a slow disk cannot stall polling.
const historyTimeout = 500 * time.Millisecond

// station bundles the run loop's collaborators. Optional sinks are nil when
// disabled.
type station struct {
	reader     gpio.Reader
	panel      panel.Panel
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	trace      serial.Sink
	history    history.Recorder
	tracker    *status.Tracker

	params          logic.Params
	publishInterval time.Duration
	heartbeat       time.Duration
	now             func() time.Time
	getenv          func(string) string

	ctrl *logic.Controller

	readFault  faultLog
	panelFault faultLog
	traceFault faultLog
}

// faultLog reports a recurring failure once, then its recovery, instead of
// logging on every tick.
type faultLog struct {
	what    string
	failing bool
}

func (f *faultLog) report(err error) {
	if err == nil {
		if f.failing {
			log.Infof("%s recovered", f.what)
			f.failing = false
		}
		return
	}
	if !f.failing {
		log.WithError(err).Warnf("%s failed", f.what)
		f.failing = true
		return
	}
	log.WithError(err).Debugf("%s still failing", f.what)
}

func runLoop(ctx context.Context, s *station, tick <-chan time.Time, sig <-chan os.Signal) error {
	if s.trace == nil {
		s.trace = serial.Discard{}
	}
	if s.getenv == nil {
		s.getenv = os.Getenv
	}
	s.readFault.what = "gpio read"
	s.panelFault.what = "panel update"
	s.traceFault.what = "serial trace"

	startTime := s.now()
	s.ctrl = logic.NewController(s.params, startTime)

	for {
		select {
		case sg := <-sig:
			log.WithField("signal", sg).Info("shutting down")
			s.publishSystem("SHUTDOWN", signalName(sg), s.now())
			return nil

		case <-ctx.Done():
			log.Info("context done, shutting down")
			s.publishSystem("SHUTDOWN", "CANCELED", s.now())
			return nil

		case <-tick:
			s.step(ctx, s.now())
		}
	}
}

// step runs one poll: read inputs, advance the controller, drive the panel,
// then fan events and telemetry out to the sinks.
func (s *station) step(ctx context.Context, t time.Time) {
	sample, err := s.reader.Read()
	s.readFault.report(err)
	if err != nil {
		return
	}

	events := s.ctrl.Tick(logic.Input{
		Time:    t,
		Beam:    sample.Beam,
		Turn:    sample.Turn,
		Pressed: sample.Pressed,
	})

	s.show(t)

	for _, ev := range events {
		s.dispatch(ctx, ev)
	}

	if td := s.ctrl.CheckTelemetry(t, s.publishInterval); td != nil {
		log.WithFields(log.Fields{
			"status": td.Status,
			"speed":  td.Speed,
			"manual": td.Manual,
		}).Debug("telemetry")
		if s.publisher != nil {
			if err := s.publisher.PublishTelemetry(*td); err != nil {
				log.WithError(err).Warn("telemetry publish failed")
			}
		}
	}

	s.traceFault.report(s.trace.WriteSpeed(s.ctrl.Speed()))

	if hb := s.ctrl.CheckHeartbeat(t, s.heartbeat); hb != nil {
		log.WithFields(log.Fields{
			"uptime":  hb.Uptime.Truncate(time.Second),
			"bottles": hb.Counts.Bottles,
			"jams":    hb.Counts.Jams,
			"clears":  hb.Counts.Clears,
		}).Info("heartbeat")
		if s.tracker != nil {
			s.tracker.SetNetwork(status.NetworkFromEnv(s.getenv))
		}
		s.publishSystem("HEARTBEAT", "", hb.Timestamp)
	}

	s.updateTracker()
}

func (s *station) show(t time.Time) {
	if s.panel == nil {
		return
	}
	digit, color := s.ctrl.Display()
	err := s.panel.Show(digit)
	if err == nil {
		err = s.panel.Set(color, t)
	}
	s.panelFault.report(err)
}

func (s *station) dispatch(ctx context.Context, ev logic.Event) {
	entry := log.WithFields(eventFields(ev))
	switch ev.Type {
	case logic.EventJam:
		entry.Warn("jam detected")
	case logic.EventBottle:
		entry.Debug("bottle")
	default:
		entry.Info(string(ev.Type))
	}

	s.traceFault.report(s.trace.WriteEvent(ev))

	if s.publisher != nil {
		if err := s.publisher.Publish(ev); err != nil {
			log.WithError(err).WithField("event", ev.Type).Warn("event publish failed")
		}
	}

	if s.history != nil && history.Stored(ev.Type) {
		hctx, cancel := context.WithTimeout(ctx, historyTimeout)
		defer cancel()
		if _, err := s.history.Record(hctx, ev); err != nil {
			log.WithError(err).WithField("event", ev.Type).Error("history write failed")
		}
	}
}

func eventFields(ev logic.Event) log.Fields {
	f := log.Fields{"event": ev.Type, "mode": ev.Mode.String()}
	if ev.Reason != logic.ReasonNone {
		f["reason"] = ev.Reason
	}
	if ev.Elapsed > 0 {
		f["elapsed"] = ev.Elapsed
	}
	if ev.Expected > 0 {
		f["expected"] = ev.Expected
	}
	if ev.Presses > 0 {
		f["presses"] = ev.Presses
	}
	if ev.Value > 0 {
		f["value"] = ev.Value
	}
	return f
}

func (s *station) updateTracker() {
	if s.tracker == nil {
		return
	}
	s.tracker.Update(status.FromController(s.ctrl))
	if s.mqttStatus != nil {
		s.tracker.SetMQTTConnected(s.mqttStatus.IsConnected())
	}
}

// publishSystem sends a retained lifecycle event carrying a status snapshot.
func (s *station) publishSystem(name, reason string, at time.Time) {
	if s.publisher == nil {
		return
	}
	event := mqtt.SystemEvent{
		Timestamp: at,
		Event:     name,
		Reason:    reason,
		Retained:  true,
	}
	if s.tracker != nil {
		if s.ctrl != nil {
			s.updateTracker()
		}
		event.RawPayload = status.FormatStatusEvent(s.tracker.Snapshot(), name, reason)
	}
	if err := s.publisher.PublishSystem(event); err != nil {
		log.WithError(err).WithField("event", name).Warn("system event publish failed")
		return
	}
	log.WithField("event", name).Debug("published system event")
}

func signalName(sg os.Signal) string {
	switch sg {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
