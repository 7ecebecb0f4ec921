package app

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sengledd/internal/command"
	"github.com/dokzlo13/sengledd/internal/config"
	"github.com/dokzlo13/sengledd/internal/eventbus"
	"github.com/dokzlo13/sengledd/internal/mqtt"
	"github.com/dokzlo13/sengledd/internal/poller"
	"github.com/dokzlo13/sengledd/internal/sengled"
)

// MQTTService mirrors light state to an MQTT broker and accepts set
// commands on <prefix>/<host>/set. State and availability topics are
// retained so late subscribers see the current values.
type MQTTService struct {
	cfg        *config.Config
	bus        *eventbus.Bus
	manager    *poller.Manager
	dispatcher *command.Dispatcher

	client *mqtt.Client
	ctx    context.Context
}

// NewMQTTService creates a new MQTTService.
func NewMQTTService(cfg *config.Config, bus *eventbus.Bus, manager *poller.Manager, dispatcher *command.Dispatcher) *MQTTService {
	return &MQTTService{
		cfg:        cfg,
		bus:        bus,
		manager:    manager,
		dispatcher: dispatcher,
	}
}

// Start connects to the broker, subscribes to the command topic and
// attaches the bus handlers that publish state changes.
func (s *MQTTService) Start(ctx context.Context) error {
	if !s.cfg.MQTT.Enabled {
		log.Debug().Msg("MQTT disabled")
		return nil
	}

	client, err := mqtt.Connect(s.cfg.MQTT.Broker, s.cfg.MQTT.ConnectTimeout.Duration())
	if err != nil {
		return err
	}
	s.client = client
	s.ctx = ctx

	if err := client.Subscribe(s.topic("+", "set"), s.handleSet); err != nil {
		return err
	}

	s.bus.Subscribe(eventbus.EventTypeLightState, s.publishState)
	s.bus.Subscribe(eventbus.EventTypeAvailability, s.publishAvailability)

	return nil
}

// Close disconnects from the broker.
func (s *MQTTService) Close() {
	if s.client != nil {
		s.client.Disconnect()
	}
}

func (s *MQTTService) topic(host string, leaf string) string {
	return s.cfg.MQTT.TopicPrefix + "/" + host + "/" + leaf
}

func (s *MQTTService) publishState(ev eventbus.Event) {
	state, ok := ev.Data["state"].(sengled.LightState)
	if !ok {
		return
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return
	}
	if err := s.client.Publish(s.topic(ev.Host, "state"), payload, true); err != nil {
		log.Warn().Err(err).Str("host", ev.Host).Msg("Failed to publish state")
	}
}

func (s *MQTTService) publishAvailability(ev eventbus.Event) {
	available, ok := ev.Data["available"].(bool)
	if !ok {
		return
	}
	payload := "offline"
	if available {
		payload = "online"
	}
	if err := s.client.Publish(s.topic(ev.Host, "availability"), []byte(payload), true); err != nil {
		log.Warn().Err(err).Str("host", ev.Host).Msg("Failed to publish availability")
	}
}

// handleSet runs on the broker client's callback goroutine.
func (s *MQTTService) handleSet(msg mqtt.Message) {
	parts := strings.Split(msg.Topic(), "/")
	if len(parts) < 3 {
		return
	}
	host := parts[len(parts)-2]

	var req command.Request
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		log.Warn().Err(err).Str("topic", msg.Topic()).Msg("Unparseable set command")
		return
	}

	if err := s.dispatcher.Apply(s.ctx, host, req); err != nil {
		log.Warn().Err(err).Str("host", host).Msg("MQTT set command failed")
	}
}
