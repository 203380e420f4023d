package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/udec-estadio/humidityboard/pkg/config"
	"github.com/udec-estadio/humidityboard/pkg/models"
)

// ErrSubscriberStopped is returned by Connect after Disconnect was called
var ErrSubscriberStopped = errors.New("subscriber stopped")

const storeTimeout = 5 * time.Second

// Recorder persists a validated reading
type Recorder interface {
	StoreReading(ctx context.Context, value float64, location string) (models.Reading, error)
}

// Subscriber feeds readings published on an MQTT topic into a Recorder.
// Payloads use the same JSON body as the HTTP endpoint.
type Subscriber struct {
	client    mqtt.Client
	cfg       config.MQTTConfig
	recorder  Recorder
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSubscriber builds a subscriber; call Connect to start receiving
func NewSubscriber(cfg config.MQTTConfig, recorder Recorder, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "mqtt-ingest")

	s := &Subscriber{
		cfg:      cfg,
		recorder: recorder,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// Subscriptions are dropped with a clean session, so resubscribe on
	// every (re)connect.
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		s.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.Broker, "port", cfg.Port)
		if err := s.subscribe(c); err != nil {
			logger.Error("mqtt subscribe failed", "topic", cfg.Topic, "error", err)
		}
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	s.client = mqtt.NewClient(opts)
	return s
}

// Connect establishes the broker connection. The topic subscription is made
// by the on-connect handler.
func (s *Subscriber) Connect(ctx context.Context) error {
	select {
	case <-s.stopCh:
		return ErrSubscriberStopped
	default:
	}

	if s.IsConnected() {
		return nil
	}

	token := s.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			s.client.Disconnect(0)
			return ctx.Err()
		case <-s.stopCh:
			s.client.Disconnect(0)
			return ErrSubscriberStopped
		default:
		}
	}
}

func (s *Subscriber) subscribe(c mqtt.Client) error {
	qos := byte(1)

	token := c.Subscribe(s.cfg.Topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		s.handleMessage(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic %s", s.cfg.Topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.cfg.Topic, err)
	}

	s.logger.Info("subscribed to mqtt topic", "topic", s.cfg.Topic, "qos", qos)
	return nil
}

func (s *Subscriber) handleMessage(topic string, payload []byte) {
	s.logger.Debug("received mqtt message", "topic", topic, "size", len(payload))

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	reading, err := s.process(ctx, payload)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) || errors.Is(err, models.ErrMalformedBody) {
			s.logger.Warn("dropping invalid reading", "topic", topic, "error", err)
			return
		}
		s.logger.Error("failed to store reading", "topic", topic, "error", err)
		return
	}

	s.logger.Debug("stored reading", "id", reading.ID, "location", reading.Location)
}

// process decodes a payload with the HTTP validation rules and stores it
func (s *Subscriber) process(ctx context.Context, payload []byte) (models.Reading, error) {
	req, err := models.DecodeRecordRequest(bytes.NewReader(payload))
	if err != nil {
		return models.Reading{}, err
	}

	reading, err := s.recorder.StoreReading(ctx, req.Value, req.Location)
	if err != nil {
		return models.Reading{}, fmt.Errorf("store reading: %w", err)
	}

	return reading, nil
}

// IsConnected returns whether the client is connected
func (s *Subscriber) IsConnected() bool {
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()
	return connected && s.client.IsConnected()
}

// Disconnect stops the subscriber and closes the MQTT connection.
// Idempotent and safe to call multiple times.
func (s *Subscriber) Disconnect() {
	s.stopOnce.Do(func() {
		close(s.stopCh)

		if s.IsConnected() {
			token := s.client.Unsubscribe(s.cfg.Topic)
			token.WaitTimeout(2 * time.Second)
		}

		s.client.Disconnect(250)
		s.setConnected(false)
		s.logger.Info("mqtt subscriber disconnected")
	})
}

func (s *Subscriber) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}
