// Package config loads the station configuration from defaults, an optional
// YAML file and CONVEYOR_* environment variables.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/cortocircuito/conveyor-monitor/internal/gpio"
	"github.com/cortocircuito/conveyor-monitor/internal/logic"
	"github.com/cortocircuito/conveyor-monitor/internal/panel"
)

// DefaultPath is where the daemon looks for its configuration file.
const DefaultPath = "/etc/conveyor-monitor/config.yaml"

// EnvPrefix prefixes environment overrides, e.g. CONVEYOR_MQTT_BROKER.
const EnvPrefix = "CONVEYOR"

// Config is the full station configuration.
type Config struct {
	Poll    PollConfig    `mapstructure:"poll" yaml:"poll"`
	Jam     JamConfig     `mapstructure:"jam" yaml:"jam"`
	MQTT    MQTTConfig    `mapstructure:"mqtt" yaml:"mqtt"`
	GPIO    GPIOConfig    `mapstructure:"gpio" yaml:"gpio"`
	Panel   PanelConfig   `mapstructure:"panel" yaml:"panel"`
	Serial  SerialConfig  `mapstructure:"serial" yaml:"serial"`
	History HistoryConfig `mapstructure:"history" yaml:"history"`
	HTTP    HTTPConfig    `mapstructure:"http" yaml:"http"`
}

// PollConfig sets the sampling cadence.
type PollConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// JamConfig holds the jam detection thresholds.
type JamConfig struct {
	ManualTolerance time.Duration `mapstructure:"manual_tolerance" yaml:"manual_tolerance"`
	AutoTolerance   time.Duration `mapstructure:"auto_tolerance" yaml:"auto_tolerance"`
	TimeoutMargin   time.Duration `mapstructure:"timeout_margin" yaml:"timeout_margin"`
	StallTimeout    time.Duration `mapstructure:"stall_timeout" yaml:"stall_timeout"`
	AckPresses      int           `mapstructure:"ack_presses" yaml:"ack_presses"`
}

// MQTTConfig configures telemetry. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker          string        `mapstructure:"broker" yaml:"broker"`
	Team            string        `mapstructure:"team" yaml:"team"`
	ClientID        string        `mapstructure:"client_id" yaml:"client_id"`
	Username        string        `mapstructure:"username" yaml:"username,omitempty"`
	Password        string        `mapstructure:"password" yaml:"password,omitempty"`
	PublishInterval time.Duration `mapstructure:"publish_interval" yaml:"publish_interval"`
	Heartbeat       time.Duration `mapstructure:"heartbeat" yaml:"heartbeat"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	BufferSize      int           `mapstructure:"buffer_size" yaml:"buffer_size"`
	QueueSize       int           `mapstructure:"queue_size" yaml:"queue_size"`
}

// GPIOConfig wires the inputs.
type GPIOConfig struct {
	Chip        string `mapstructure:"chip" yaml:"chip"`
	IR          int    `mapstructure:"ir" yaml:"ir"`
	CLK         int    `mapstructure:"clk" yaml:"clk"`
	DT          int    `mapstructure:"dt" yaml:"dt"`
	SW          int    `mapstructure:"sw" yaml:"sw"`
	IRActiveLow bool   `mapstructure:"ir_active_low" yaml:"ir_active_low"`
}

// PanelConfig wires the display and status LED.
type PanelConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Chip        string `mapstructure:"chip" yaml:"chip"`
	Segments    []int  `mapstructure:"segments" yaml:"segments,flow"`
	Red         int    `mapstructure:"red" yaml:"red"`
	Green       int    `mapstructure:"green" yaml:"green"`
	Blue        int    `mapstructure:"blue" yaml:"blue"`
	CommonAnode bool   `mapstructure:"common_anode" yaml:"common_anode"`
}

// SerialConfig configures the trace output. An empty port disables it and
// "-" writes to stdout.
type SerialConfig struct {
	Port string `mapstructure:"port" yaml:"port"`
	Baud int    `mapstructure:"baud" yaml:"baud"`
}

// HistoryConfig locates the jam history database. An empty path disables it.
type HistoryConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// HTTPConfig configures the status server. An empty address disables it.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Default returns the factory configuration.
func Default() Config {
	params := logic.DefaultParams()
	in := gpio.DefaultPins()
	out := panel.DefaultPins()
	return Config{
		Poll: PollConfig{Interval: 50 * time.Millisecond},
		Jam: JamConfig{
			ManualTolerance: params.ManualTolerance,
			AutoTolerance:   params.AutoTolerance,
			TimeoutMargin:   params.TimeoutMargin,
			StallTimeout:    params.StallTimeout,
			AckPresses:      params.AckPresses,
		},
		MQTT: MQTTConfig{
			Broker:          "tcp://localhost:1883",
			Team:            "equipo1",
			ClientID:        "conveyor-monitor",
			PublishInterval: 2 * time.Second,
			Heartbeat:       15 * time.Minute,
			ConnectTimeout:  10 * time.Second,
			BufferSize:      256,
			QueueSize:       64,
		},
		GPIO: GPIOConfig{
			Chip:        in.Chip,
			IR:          in.IR,
			CLK:         in.CLK,
			DT:          in.DT,
			SW:          in.SW,
			IRActiveLow: in.IRActiveLow,
		},
		Panel: PanelConfig{
			Enabled:     true,
			Chip:        out.Chip,
			Segments:    out.Segments[:],
			Red:         out.Red,
			Green:       out.Green,
			Blue:        out.Blue,
			CommonAnode: out.CommonAnode,
		},
		Serial:  SerialConfig{Baud: 115200},
		History: HistoryConfig{Path: "/var/lib/conveyor-monitor/history.db"},
		HTTP:    HTTPConfig{Addr: ":8080"},
	}
}

// setDefaults registers every key with viper so env overrides apply even
// when the file does not mention them.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("poll.interval", d.Poll.Interval)

	v.SetDefault("jam.manual_tolerance", d.Jam.ManualTolerance)
	v.SetDefault("jam.auto_tolerance", d.Jam.AutoTolerance)
	v.SetDefault("jam.timeout_margin", d.Jam.TimeoutMargin)
	v.SetDefault("jam.stall_timeout", d.Jam.StallTimeout)
	v.SetDefault("jam.ack_presses", d.Jam.AckPresses)

	v.SetDefault("mqtt.broker", d.MQTT.Broker)
	v.SetDefault("mqtt.team", d.MQTT.Team)
	v.SetDefault("mqtt.client_id", d.MQTT.ClientID)
	v.SetDefault("mqtt.username", d.MQTT.Username)
	v.SetDefault("mqtt.password", d.MQTT.Password)
	v.SetDefault("mqtt.publish_interval", d.MQTT.PublishInterval)
	v.SetDefault("mqtt.heartbeat", d.MQTT.Heartbeat)
	v.SetDefault("mqtt.connect_timeout", d.MQTT.ConnectTimeout)
	v.SetDefault("mqtt.buffer_size", d.MQTT.BufferSize)
	v.SetDefault("mqtt.queue_size", d.MQTT.QueueSize)

	v.SetDefault("gpio.chip", d.GPIO.Chip)
	v.SetDefault("gpio.ir", d.GPIO.IR)
	v.SetDefault("gpio.clk", d.GPIO.CLK)
	v.SetDefault("gpio.dt", d.GPIO.DT)
	v.SetDefault("gpio.sw", d.GPIO.SW)
	v.SetDefault("gpio.ir_active_low", d.GPIO.IRActiveLow)

	v.SetDefault("panel.enabled", d.Panel.Enabled)
	v.SetDefault("panel.chip", d.Panel.Chip)
	v.SetDefault("panel.segments", d.Panel.Segments)
	v.SetDefault("panel.red", d.Panel.Red)
	v.SetDefault("panel.green", d.Panel.Green)
	v.SetDefault("panel.blue", d.Panel.Blue)
	v.SetDefault("panel.common_anode", d.Panel.CommonAnode)

	v.SetDefault("serial.port", d.Serial.Port)
	v.SetDefault("serial.baud", d.Serial.Baud)
	v.SetDefault("history.path", d.History.Path)
	v.SetDefault("http.addr", d.HTTP.Addr)
}

// Load reads the configuration. A missing file at path is not an error; the
// defaults and environment still apply. An empty path skips the file.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return Config{}, errors.Wrapf(err, "read config %s", path)
			}
		case !os.IsNotExist(err):
			return Config{}, errors.Wrapf(err, "stat config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the station cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Poll.Interval <= 0:
		return errors.New("poll.interval must be positive")
	case c.Poll.Interval > 100*time.Millisecond:
		return errors.Errorf("poll.interval %v is too slow to catch bottles (max 100ms)", c.Poll.Interval)
	case c.Jam.ManualTolerance < 0 || c.Jam.AutoTolerance < 0:
		return errors.New("jam tolerances must not be negative")
	case c.Jam.TimeoutMargin < 0 || c.Jam.StallTimeout < 0:
		return errors.New("jam timeouts must not be negative")
	case c.Jam.AckPresses < 1:
		return errors.New("jam.ack_presses must be at least 1")
	case c.MQTT.Broker != "" && c.MQTT.Team == "":
		return errors.New("mqtt.team is required when mqtt.broker is set")
	case c.MQTT.PublishInterval < 0 || c.MQTT.Heartbeat < 0:
		return errors.New("mqtt intervals must not be negative")
	case c.Panel.Enabled && len(c.Panel.Segments) != 7:
		return errors.Errorf("panel.segments needs 7 pins (A..G), got %d", len(c.Panel.Segments))
	case c.Serial.Port != "" && c.Serial.Baud <= 0:
		return errors.New("serial.baud must be positive")
	}
	return nil
}

// Params returns the jam detection thresholds.
func (c Config) Params() logic.Params {
	return logic.Params{
		ManualTolerance: c.Jam.ManualTolerance,
		AutoTolerance:   c.Jam.AutoTolerance,
		TimeoutMargin:   c.Jam.TimeoutMargin,
		StallTimeout:    c.Jam.StallTimeout,
		AckPresses:      c.Jam.AckPresses,
	}
}

// InputPins returns the input wiring.
func (c Config) InputPins() gpio.Pins {
	return gpio.Pins{
		Chip:        c.GPIO.Chip,
		IR:          c.GPIO.IR,
		CLK:         c.GPIO.CLK,
		DT:          c.GPIO.DT,
		SW:          c.GPIO.SW,
		IRActiveLow: c.GPIO.IRActiveLow,
	}
}

// OutputPins returns the display and LED wiring.
func (c Config) OutputPins() panel.Pins {
	p := panel.Pins{
		Chip:        c.Panel.Chip,
		Red:         c.Panel.Red,
		Green:       c.Panel.Green,
		Blue:        c.Panel.Blue,
		CommonAnode: c.Panel.CommonAnode,
	}
	copy(p.Segments[:], c.Panel.Segments)
	return p
}

// YAML renders the configuration as a YAML document.
func (c Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	return out, errors.Wrap(err, "encode config")
}
