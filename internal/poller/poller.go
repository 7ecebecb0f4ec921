// Package poller runs the per-device poll loops and fans results out
// to the event bus, the metrics registry, and the device store.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/sengledd/internal/eventbus"
	"github.com/dokzlo13/sengledd/internal/metrics"
	"github.com/dokzlo13/sengledd/internal/sengled"
	"github.com/dokzlo13/sengledd/internal/store"
)

// Manager holds the set of device controllers. Controllers are added
// at startup (from config and discovery) and never removed while the
// daemon runs.
type Manager struct {
	mu    sync.RWMutex
	byKey map[string]*sengled.Controller
	order []string
}

// NewManager creates an empty controller set.
func NewManager() *Manager {
	return &Manager{byKey: make(map[string]*sengled.Controller)}
}

// Add registers a controller; a duplicate host is ignored so config
// entries win over discovery.
func (m *Manager) Add(ctl *sengled.Controller) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byKey[ctl.Host()]; exists {
		return false
	}
	m.byKey[ctl.Host()] = ctl
	m.order = append(m.order, ctl.Host())
	return true
}

// Get returns the controller for a host.
func (m *Manager) Get(host string) (*sengled.Controller, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ctl, ok := m.byKey[host]
	return ctl, ok
}

// All returns the controllers in registration order.
func (m *Manager) All() []*sengled.Controller {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*sengled.Controller, 0, len(m.order))
	for _, host := range m.order {
		out = append(out, m.byKey[host])
	}
	return out
}

// Poller drives one poll goroutine per device. A shared rate limiter
// bounds the aggregate UDP request rate across all devices.
type Poller struct {
	manager  *Manager
	bus      *eventbus.Bus
	devices  *store.DeviceStore
	metrics  *metrics.Metrics
	limiter  *rate.Limiter
	interval time.Duration

	wg sync.WaitGroup
}

// New creates a poller. rateLimitRPS bounds requests per second across
// all devices; zero selects a sane default.
func New(manager *Manager, bus *eventbus.Bus, devices *store.DeviceStore, m *metrics.Metrics, interval time.Duration, rateLimitRPS float64) *Poller {
	if interval == 0 {
		interval = 30 * time.Second
	}
	if rateLimitRPS == 0 {
		rateLimitRPS = 10.0
	}
	return &Poller{
		manager:  manager,
		bus:      bus,
		devices:  devices,
		metrics:  m,
		limiter:  rate.NewLimiter(rate.Limit(rateLimitRPS), int(rateLimitRPS)),
		interval: interval,
	}
}

// Start launches the poll loops. Each device polls independently; no
// state is shared across devices.
func (p *Poller) Start(ctx context.Context) {
	for _, ctl := range p.manager.All() {
		p.wg.Add(1)
		go p.run(ctx, ctl)
	}
	log.Info().Int("devices", len(p.manager.All())).Dur("interval", p.interval).Msg("Poller started")
}

// Wait blocks until all poll loops have exited.
func (p *Poller) Wait() {
	p.wg.Wait()
}

func (p *Poller) run(ctx context.Context, ctl *sengled.Controller) {
	defer p.wg.Done()

	// First poll right away so state is fresh shortly after startup.
	p.pollOnce(ctx, ctl)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx, ctl)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context, ctl *sengled.Controller) {
	if err := p.limiter.Wait(ctx); err != nil {
		return
	}

	prevState, prevAvailable := ctl.State()
	state, err := ctl.Poll(ctx)
	available := err == nil

	if !available {
		p.metrics.CountPollFailure(ctl.Host())
	}
	p.metrics.ObserveAvailability(ctl.Host(), ctl.Name(), available)
	if available {
		p.metrics.ObserveState(ctl.Host(), ctl.Name(), state.On, state.Brightness, state.ColorTempKelvin)
	}

	if available != prevAvailable {
		p.bus.Publish(eventbus.Event{
			Type: eventbus.EventTypeAvailability,
			Host: ctl.Host(),
			Data: map[string]interface{}{"available": available},
		})
	}

	if available && (!prevAvailable || !state.Equal(prevState)) {
		p.bus.Publish(eventbus.Event{
			Type: eventbus.EventTypeLightState,
			Host: ctl.Host(),
			Data: map[string]interface{}{"state": state},
		})
		if err := p.devices.Save(store.Record{
			Host:       ctl.Host(),
			Capability: ctl.Capability(),
			State:      state,
		}); err != nil {
			log.Warn().Err(err).Str("host", ctl.Host()).Msg("Failed to persist device state")
		}
	}
}
