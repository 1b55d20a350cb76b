package lifeline

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pion/logging"

	"github.com/backkem/doorlock/pkg/frame"
)

// Mirror errors.
var (
	ErrConnectionFailed = errors.New("lifeline: mqtt connection failed")
	ErrPublishTimeout   = errors.New("lifeline: mqtt publish timed out")
	ErrQueueFull        = errors.New("lifeline: mirror queue full")
	ErrMirrorClosed     = errors.New("lifeline: mirror closed")
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 250 // milliseconds
	defaultKeepAlive         = 60 * time.Second
	defaultQueueSize         = 32
)

// Publisher is the part of a paho client the mirror uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
}

// MQTTConfig configures the broker connection of a Mirror.
type MQTTConfig struct {
	// Broker is the broker URL, e.g. "tcp://127.0.0.1:1883".
	Broker   string
	ClientID string
	Username string
	Password string

	// TopicPrefix roots every topic; default "doorlock".
	TopicPrefix string
	QoS         byte

	// PublishTimeout bounds the wait for a publish acknowledgment.
	PublishTimeout time.Duration

	// QueueSize bounds notifications waiting for the broker; default 32.
	QueueSize int

	// OnError, if set, receives failed notification publishes. They are
	// logged either way.
	OnError func(err error)
}

type notice struct {
	topic   string
	payload string
}

// Mirror publishes lifeline notifications to MQTT under
// <prefix>/<node>/notify/<command>, with the frame in hex as payload.
// The node's status is kept retained under <prefix>/<node>/status.
// Publishing happens on the mirror's own goroutine so a slow or absent
// broker never holds up the caller.
type Mirror struct {
	pub     Publisher
	client  pahomqtt.Client
	node    uint16
	prefix  string
	qos     byte
	timeout time.Duration
	onError func(error)
	log     logging.LeveledLogger

	queue   chan notice
	done    chan struct{}
	drained sync.WaitGroup
	once    sync.Once
}

// NewMirror creates a Mirror publishing through pub for node and starts its
// publishing goroutine. Close stops it.
func NewMirror(pub Publisher, node uint16, cfg MQTTConfig, loggerFactory logging.LoggerFactory) *Mirror {
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "doorlock"
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	m := &Mirror{
		pub:     pub,
		node:    node,
		prefix:  cfg.TopicPrefix,
		qos:     cfg.QoS,
		timeout: cfg.PublishTimeout,
		onError: cfg.OnError,
		log:     loggerFactory.NewLogger("lifeline"),
		queue:   make(chan notice, cfg.QueueSize),
		done:    make(chan struct{}),
	}
	m.drained.Add(1)
	go m.run()
	return m
}

// DialMirror connects to the broker and announces the node online. The
// broker publishes the offline status if the connection drops.
func DialMirror(node uint16, cfg MQTTConfig, loggerFactory logging.LoggerFactory) (*Mirror, error) {
	m := NewMirror(nil, node, cfg, loggerFactory)

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("doorlock-%d", node)
	}
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)
	opts.SetWill(m.StatusTopic(), "offline", 1, true)
	opts.SetOnConnectHandler(func(pahomqtt.Client) {
		m.log.Infof("connected to %s", cfg.Broker)
		m.publishStatus("online")
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		m.log.Warnf("connection to %s lost: %v", cfg.Broker, err)
	})

	client := pahomqtt.NewClient(opts)
	m.pub = client
	token := client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		m.Close()
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		m.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	m.client = client
	return m, nil
}

// NotifyTopic returns the topic of notifications carrying cmd.
func (m *Mirror) NotifyTopic(cmd frame.Command) string {
	return fmt.Sprintf("%s/%d/notify/%s", m.prefix, m.node, cmd)
}

// StatusTopic returns the retained status topic of the node.
func (m *Mirror) StatusTopic() string {
	return fmt.Sprintf("%s/%d/status", m.prefix, m.node)
}

// Mirror queues one notification frame for publishing and returns at once.
// A full queue drops the frame with ErrQueueFull.
func (m *Mirror) Mirror(cmd frame.Command, payload []byte) error {
	select {
	case <-m.done:
		return ErrMirrorClosed
	default:
	}
	n := notice{topic: m.NotifyTopic(cmd), payload: hex.EncodeToString(payload)}
	select {
	case m.queue <- n:
		return nil
	default:
		return fmt.Errorf("%w: dropped %s", ErrQueueFull, n.topic)
	}
}

func (m *Mirror) run() {
	defer m.drained.Done()
	for {
		select {
		case n := <-m.queue:
			m.send(n)
		case <-m.done:
			for {
				select {
				case n := <-m.queue:
					m.send(n)
				default:
					return
				}
			}
		}
	}
}

func (m *Mirror) send(n notice) {
	err := m.publish(n.topic, false, n.payload)
	if err == nil {
		return
	}
	m.log.Warnf("mirroring: %v", err)
	if m.onError != nil {
		m.onError(err)
	}
}

func (m *Mirror) publishStatus(status string) {
	if err := m.publish(m.StatusTopic(), true, status); err != nil {
		m.log.Warnf("publishing status %q: %v", status, err)
	}
}

func (m *Mirror) publish(topic string, retained bool, payload string) error {
	token := m.pub.Publish(topic, m.qos, retained, payload)
	if !token.WaitTimeout(m.timeout) {
		return fmt.Errorf("%w: %s", ErrPublishTimeout, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("lifeline: publish %s: %w", topic, err)
	}
	return nil
}

// Close publishes what is still queued, announces the node offline and
// disconnects a dialed client. Later calls do nothing.
func (m *Mirror) Close() error {
	m.once.Do(func() {
		close(m.done)
		m.drained.Wait()
		if m.client == nil {
			return
		}
		if m.client.IsConnected() {
			m.publishStatus("offline")
		}
		m.client.Disconnect(defaultDisconnectQuiesce)
	})
	return nil
}
