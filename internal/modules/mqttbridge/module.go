package mqttbridge

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/mikey-austin/tv_animator/internal/bus"
	"github.com/mikey-austin/tv_animator/internal/core"
	"github.com/mikey-austin/tv_animator/pkg/tva"
)

// endpoint is either the embedded broker or an external paho client.
type endpoint interface {
	publish(topic string, retained bool, payload []byte) error
	subscribe(topic string, handler func(topic string, payload []byte)) error
	close()
}

// Config configures the bridge.
type Config struct {
	Listen         string
	BrokerURL      string
	AllowAnonymous bool
	Username       string
	Password       string
	TopicBase      string
}

// Module bridges the daemon onto MQTT: every media change is
// republished for bot integrations, and the trigger command topic feeds
// back into the core service.
type Module struct {
	log     *zap.Logger
	service *core.Service
	bus     *bus.Bus
	config  Config
}

// NewModule creates the bridge module.
func NewModule(log *zap.Logger, service *core.Service, b *bus.Bus, cfg Config) *Module {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.TopicBase == "" {
		cfg.TopicBase = tva.BaseTopic
	}
	return &Module{log: log, service: service, bus: b, config: cfg}
}

// Run starts the endpoint, wires both directions and blocks until ctx
// is cancelled.
func (m *Module) Run(ctx context.Context) error {
	ep, err := m.dial(ctx)
	if err != nil {
		return err
	}
	defer ep.close()

	if err := ep.subscribe(tva.TopicTrigger(m.config.TopicBase), m.handleTrigger); err != nil {
		return err
	}

	events, cancel := m.bus.Subscribe()
	defer cancel()

	m.log.Info("mqtt bridge running", zap.String("topic_base", m.config.TopicBase))
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if changed, isChange := ev.(bus.MediaChanged); isChange {
				m.publishChange(ep, changed)
			}
		}
	}
}

func (m *Module) dial(ctx context.Context) (endpoint, error) {
	if m.config.BrokerURL != "" {
		m.log.Info("connecting to external broker", zap.String("url", m.config.BrokerURL))
		return newExternalClient(m.log, m.config.BrokerURL, m.config.Username, m.config.Password)
	}

	broker, err := newEmbeddedBroker(m.log, m.config.AllowAnonymous, m.config.Username, m.config.Password)
	if err != nil {
		return nil, err
	}
	if err := broker.serve(ctx, m.config.Listen); err != nil {
		return nil, err
	}
	m.log.Info("embedded broker listening", zap.String("addr", m.config.Listen))
	return broker, nil
}

type triggerCommand struct {
	Animation string `json:"animation"`
}

func (m *Module) handleTrigger(topic string, payload []byte) {
	var cmd triggerCommand
	if err := json.Unmarshal(payload, &cmd); err != nil || cmd.Animation == "" {
		m.log.Warn("bad trigger command", zap.String("topic", topic), zap.ByteString("payload", payload))
		return
	}
	if _, err := m.service.Trigger(cmd.Animation, bus.CauseMQTT); err != nil {
		m.log.Warn("mqtt trigger rejected", zap.String("media", cmd.Animation), zap.Error(err))
	}
}

type statePayload struct {
	CurrentAnimation string `json:"current_animation"`
	MediaType        string `json:"media_type"`
}

type eventPayload struct {
	PreviousAnimation string `json:"previous_animation,omitempty"`
	CurrentAnimation  string `json:"current_animation"`
	MediaType         string `json:"media_type"`
	Cause             string `json:"cause"`
	Message           string `json:"message"`
	TS                int64  `json:"ts"`
}

// publishChange mirrors a media change: retained state for late
// joiners, plus a one-shot event.
func (m *Module) publishChange(ep endpoint, changed bus.MediaChanged) {
	state, _ := json.Marshal(statePayload{
		CurrentAnimation: changed.Current,
		MediaType:        string(changed.MediaType),
	})
	if err := ep.publish(tva.TopicState(m.config.TopicBase), true, state); err != nil {
		m.log.Warn("state publish failed", zap.Error(err))
	}

	event, _ := json.Marshal(eventPayload{
		PreviousAnimation: changed.Previous,
		CurrentAnimation:  changed.Current,
		MediaType:         string(changed.MediaType),
		Cause:             string(changed.Cause),
		Message:           changed.Message,
		TS:                time.Now().Unix(),
	})
	if err := ep.publish(tva.TopicEvents(m.config.TopicBase), false, event); err != nil {
		m.log.Warn("event publish failed", zap.Error(err))
	}
}
