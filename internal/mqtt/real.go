package mqtt

import (
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/cortocircuito/conveyor-monitor/internal/logic"
)

// Options configures a RealPublisher.
type Options struct {
	Broker         string
	ClientID       string
	Team           string
	Username       string
	Password       string
	BufferSize     int
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

// RealPublisher publishes to an actual MQTT broker. Events and system
// messages published while disconnected are buffered and replayed on
// reconnect; telemetry is dropped since the next report supersedes it.
type RealPublisher struct {
	client  paho.Client
	topics  Topics
	team    string
	timeout time.Duration

	mu     sync.Mutex
	buffer *ringBuffer
}

// NewRealPublisher creates a publisher and starts connecting to the broker.
// If the broker cannot be reached within the connect timeout the publisher
// is still returned; paho keeps retrying in the background.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	if o.Broker == "" {
		return nil, errors.New("mqtt: broker address is required")
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = 5 * time.Second
	}

	p := &RealPublisher{
		topics:  NewTopics(o.Team),
		team:    o.Team,
		timeout: o.PublishTimeout,
		buffer:  newRingBuffer(o.BufferSize),
	}

	will, err := FormatSystemPayload(SystemEvent{Event: "OFFLINE", Reason: "CONNECTION_LOST", Timestamp: time.Now()})
	if err != nil {
		return nil, errors.Wrap(err, "format will payload")
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetUsername(o.Username).
		SetPassword(o.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetMaxReconnectInterval(time.Minute).
		SetBinaryWill(p.topics.System, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.WithError(err).Warn("mqtt: connection lost")
		}).
		SetReconnectingHandler(func(_ paho.Client, _ *paho.ClientOptions) {
			log.Info("mqtt: reconnecting")
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(o.ConnectTimeout) {
		log.WithField("broker", o.Broker).Warn("mqtt: broker not reachable yet, retrying in background")
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrap(err, "connect to broker")
	}
	return p, nil
}

// onConnect announces the station and replays anything buffered offline.
func (p *RealPublisher) onConnect(c paho.Client) {
	log.Info("mqtt: connected")

	if payload, err := FormatDiscovery(p.team); err != nil {
		log.WithError(err).Error("mqtt: format discovery")
	} else if err := p.wait(c.Publish(TopicDiscovery, 0, false, payload)); err != nil {
		log.WithError(err).Warn("mqtt: discovery publish failed")
	}

	p.mu.Lock()
	pending := p.buffer.drainAll()
	p.mu.Unlock()

	for _, m := range pending {
		if err := p.wait(c.Publish(m.topic, m.qos, m.retained, m.payload)); err != nil {
			log.WithError(err).WithField("topic", m.topic).Warn("mqtt: replay failed")
		}
	}
	if len(pending) > 0 {
		log.WithField("count", len(pending)).Info("mqtt: replayed buffered messages")
	}
}

func (p *RealPublisher) wait(token paho.Token) error {
	if !token.WaitTimeout(p.timeout) {
		return errors.New("publish timeout")
	}
	return token.Error()
}

// send publishes now, or buffers when offline and buffered is true.
func (p *RealPublisher) send(topic string, qos byte, retained bool, payload []byte, buffered bool) error {
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		if buffered {
			p.buffer.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		}
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	return errors.Wrapf(p.wait(p.client.Publish(topic, qos, retained, payload)), "publish %s", topic)
}

// PublishTelemetry sends status, speed and mode to their topics.
func (p *RealPublisher) PublishTelemetry(t logic.TelemetryData) error {
	if err := p.send(p.topics.Status, 0, false, []byte(t.Status), false); err != nil {
		return err
	}
	if err := p.send(p.topics.Speed, 0, false, []byte(FormatSpeed(t.Speed)), false); err != nil {
		return err
	}
	return p.send(p.topics.Mode, 0, false, []byte(FormatMode(t.Manual)), false)
}

// Publish sends a controller event to the events topic.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return errors.Wrap(err, "format payload")
	}
	return p.send(p.topics.Events, 0, false, payload, true)
}

// PublishSystem sends a system lifecycle event. QoS 1 so lifecycle
// transitions are not lost.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return errors.Wrap(err, "format system payload")
	}
	return p.send(p.topics.System, 1, event.Retained, payload, true)
}

// IsConnected reports whether the MQTT connection is currently active.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
