package app

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sengledd/internal/command"
	"github.com/dokzlo13/sengledd/internal/config"
	"github.com/dokzlo13/sengledd/internal/db"
	"github.com/dokzlo13/sengledd/internal/eventbus"
	"github.com/dokzlo13/sengledd/internal/ledger"
	"github.com/dokzlo13/sengledd/internal/metrics"
	"github.com/dokzlo13/sengledd/internal/poller"
	"github.com/dokzlo13/sengledd/internal/sengled"
	"github.com/dokzlo13/sengledd/internal/sengled/discovery"
	"github.com/dokzlo13/sengledd/internal/sengled/protocol"
	"github.com/dokzlo13/sengledd/internal/store"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB       *db.DB
	Ledger   *ledger.Ledger
	Devices  *store.DeviceStore
	Bus      *eventbus.Bus
	Metrics  *metrics.Metrics
	registry *prometheus.Registry

	// Device plane
	Transport  *protocol.Transport
	Manager    *poller.Manager
	Dispatcher *command.Dispatcher
	Poller     *poller.Poller

	// High-level services
	API    *APIService
	MQTT   *MQTTService
	Health *HealthService
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	// Initialize database
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database

	// Initialize ledger and device store
	s.Ledger = ledger.New(database.DB)
	s.Devices = store.New(database.DB)

	// Initialize event bus
	s.Bus = eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())

	// Initialize metrics on a private registry
	s.registry = prometheus.NewRegistry()
	s.Metrics = metrics.New(s.registry)

	// Initialize the UDP transport shared by all controllers
	s.Transport = protocol.NewTransport(cfg.Transport.Port, cfg.Transport.Timeout.Duration())

	// Initialize controllers for statically configured devices
	s.Manager = poller.NewManager()
	for _, dev := range cfg.Devices {
		s.addDevice(dev.Host, dev.Name, dev.Type)
	}

	s.Dispatcher = command.NewDispatcher(s.Manager, s.Ledger, s.Metrics)
	s.Poller = poller.New(s.Manager, s.Bus, s.Devices, s.Metrics, cfg.Poll.Interval.Duration(), cfg.Poll.RateLimitRPS)

	// Initialize high-level services
	s.Health = NewHealthService(cfg, s.registry)
	s.API = NewAPIService(cfg, s.Manager, s.Dispatcher, s.Ledger)
	s.MQTT = NewMQTTService(cfg, s.Bus, s.Manager, s.Dispatcher)

	return s, nil
}

// addDevice creates a controller, seeds it from persisted state and
// registers it. Duplicate hosts are ignored.
func (s *Services) addDevice(host, name, capHint string) bool {
	hint, err := sengled.ParseCapability(capHint)
	if err != nil {
		hint = sengled.CapabilityUnknown
	}
	ctl := sengled.NewController(host, name, hint, s.Transport, s.cfg.Poll.Debounce.Duration())

	if rec, err := s.Devices.Load(host); err != nil {
		log.Warn().Err(err).Str("host", host).Msg("Failed to load persisted device state")
	} else if rec != nil {
		ctl.Restore(rec.Capability, rec.State)
	}

	return s.Manager.Add(ctl)
}

// Start starts all services in the correct order.
func (s *Services) Start(ctx context.Context) error {
	// Seed the controller set from a LAN probe before the poll loops
	// start; configured devices keep their entries.
	if s.cfg.Discovery.Enabled {
		s.runDiscovery(ctx)
	}

	// Connect to the MQTT broker before polling so the first state
	// snapshots are published.
	if err := s.MQTT.Start(ctx); err != nil {
		return err
	}

	s.Poller.Start(ctx)
	s.Health.Start(ctx)
	s.API.Start(ctx)

	go s.ledgerCleanupLoop(ctx)

	return nil
}

func (s *Services) runDiscovery(ctx context.Context) {
	found, err := discovery.Probe(ctx, s.cfg.Transport.Port, s.cfg.Discovery.Window.Duration())
	if err != nil {
		log.Warn().Err(err).Msg("Discovery probe failed")
		return
	}
	for _, dev := range found {
		if !s.addDevice(dev.Host, "", dev.Capability.String()) {
			continue
		}
		log.Info().Str("host", dev.Host).Str("capability", dev.Capability.String()).Msg("Added discovered bulb")
		s.Bus.Publish(eventbus.Event{
			Type: eventbus.EventTypeDiscovery,
			Host: dev.Host,
			Data: map[string]interface{}{"capability": dev.Capability.String()},
		})
	}
}

func (s *Services) ledgerCleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Ledger.CleanupInterval.Duration())
	defer ticker.Stop()

	retention := time.Duration(s.cfg.Ledger.RetentionDays) * 24 * time.Hour
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.Ledger.Prune(retention)
			if err != nil {
				log.Error().Err(err).Msg("Ledger cleanup failed")
				continue
			}
			if deleted > 0 {
				log.Info().Int64("deleted", deleted).Msg("Pruned command ledger")
			}
		}
	}
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	// Poll loops exit on context cancellation; wait for them before
	// tearing down the sinks they publish to.
	if s.Poller != nil {
		s.Poller.Wait()
	}
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.GetShutdownTimeout())
		s.Bus.Close(ctx)
		cancel()
	}
	if s.MQTT != nil {
		s.MQTT.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
