package sengled

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sengledd/internal/sengled/codec"
	"github.com/dokzlo13/sengledd/internal/sengled/protocol"
)

// ErrUnavailable is returned by Poll when the bulb yielded no usable
// state. The previous canonical state is retained; the next poll is an
// independent fresh attempt.
var ErrUnavailable = errors.New("bulb unavailable")

// ErrNoResponse is returned by commands that elicited no parseable
// reply within the timeout window.
var ErrNoResponse = errors.New("no response from bulb")

// DefaultDebounce is how long polling is suppressed after a write.
// Right after a command the bulb briefly reports a transitional state;
// this is a client-side guard, not a protocol feature.
const DefaultDebounce = 2 * time.Second

// Info is the static device information exposed alongside state.
type Info struct {
	MAC             string `json:"mac,omitempty"`
	SoftwareVersion string `json:"software_version,omitempty"`
}

// Controller owns all mutable per-device state: capability, the
// request cache, the debounce timestamp, and the last canonical state.
// One controller per bulb; no state is shared across devices. The
// mutex also guarantees exactly one outstanding request per device.
type Controller struct {
	host      string
	name      string
	transport *protocol.Transport
	debounce  time.Duration

	mu         sync.Mutex
	capability Capability
	decoder    stateDecoder
	cache      requestCache
	state      LightState
	available  bool
	lastWrite  time.Time
}

// NewController creates a controller for one bulb. A capability hint
// (from discovery or config) skips the first-poll detection; pass
// CapabilityUnknown to detect on first status.
func NewController(host, name string, hint Capability, transport *protocol.Transport, debounce time.Duration) *Controller {
	if debounce == 0 {
		debounce = DefaultDebounce
	}
	c := &Controller{
		host:      host,
		name:      name,
		transport: transport,
		debounce:  debounce,
	}
	if hint != CapabilityUnknown {
		c.setCapability(hint)
	}
	return c
}

// Host returns the bulb's network address.
func (c *Controller) Host() string { return c.host }

// Name returns the configured display name.
func (c *Controller) Name() string { return c.name }

// Capability returns the current capability classification.
func (c *Controller) Capability() Capability {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capability
}

// State returns the last canonical state and whether the bulb is
// currently considered available.
func (c *Controller) State() (LightState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.available
}

// Restore seeds the controller from persisted state, typically on
// startup. The bulb stays unavailable until its first live poll. A
// persisted capability never overrides one already decided.
func (c *Controller) Restore(cap Capability, state LightState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capability == CapabilityUnknown && cap != CapabilityUnknown {
		c.setCapability(cap)
	}
	c.state = state
}

// setCapability decides the reconciliation path. One-way: once set it
// never transitions back, even if a later status has the other shape.
func (c *Controller) setCapability(cap Capability) {
	if c.capability != CapabilityUnknown || cap == CapabilityUnknown {
		return
	}
	c.capability = cap
	switch cap {
	case CapabilityWhite:
		// White-only firmware keeps reporting the last brightness even
		// when switched off, so its power state is assumed.
		c.decoder = whiteDecoder{assumedPower: true}
	case CapabilityRGB:
		c.decoder = rgbDecoder{cache: &c.cache}
	}
	log.Info().Str("host", c.host).Str("capability", cap.String()).Msg("Bulb capability decided")
}

// Poll queries the bulb and reconciles a fresh canonical state. On any
// failure the previous state is retained, ErrUnavailable is returned,
// and nothing is retried until the next scheduled poll. Within the
// debounce window after a write the last state is returned as-is.
func (c *Controller) Poll(ctx context.Context) (LightState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.available && time.Since(c.lastWrite) < c.debounce {
		return c.state, nil
	}

	res := c.transport.Exchange(ctx, c.host, protocol.NewRequest(protocol.FuncSearchDevices, nil))
	if !res.OK() {
		if res != nil {
			log.Warn().Str("host", c.host).Int("ret", res.Ret).Str("msg", res.Msg()).Msg("Status query rejected")
		}
		c.available = false
		return c.state, ErrUnavailable
	}

	st, err := res.Status()
	if err != nil {
		log.Warn().Err(err).Str("host", c.host).Msg("Failed to decode status")
		c.available = false
		return c.state, ErrUnavailable
	}

	if c.capability == CapabilityUnknown {
		c.setCapability(DetectCapability(st))
	}

	var brightnessPct *int
	if bres := c.transport.Exchange(ctx, c.host, protocol.NewRequest(protocol.FuncGetBrightness, nil)); bres.OK() {
		if pct, err := bres.Brightness(); err == nil {
			brightnessPct = &pct
		} else {
			log.Debug().Err(err).Str("host", c.host).Msg("Unusable brightness reading")
		}
	}

	state, err := c.decoder.decode(st, brightnessPct, c.state)
	if err != nil {
		log.Warn().Err(err).Str("host", c.host).Msg("Failed to reconcile state")
		c.available = false
		return c.state, ErrUnavailable
	}

	c.state = state
	c.available = true
	return c.state, nil
}

// SetPower switches the bulb on or off.
func (c *Controller) SetPower(ctx context.Context, on bool) error {
	sw := 0
	if on {
		sw = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.send(ctx, protocol.FuncSetSwitch, map[string]any{"switch": sw})
	// Local state is updated even when the command failed: the next
	// successful poll corrects it, and rolling back would fight the UI.
	c.state.On = on
	c.lastWrite = time.Now()
	return err
}

// SetBrightness sets the brightness on the canonical 0-255 scale.
func (c *Controller) SetBrightness(ctx context.Context, brightness uint8) error {
	pct := int(float64(brightness) / 255 * 100)

	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.send(ctx, protocol.FuncSetBrightness, map[string]any{"brightness": pct})
	c.state.Brightness = brightness
	c.lastWrite = time.Now()
	return err
}

// SetColor puts the bulb in RGB mode at the given color. The color is
// cached so subsequent polls report it verbatim instead of the lossy
// reconstruction, until the bulb changes mode.
func (c *Controller) SetColor(ctx context.Context, rgb codec.RGB) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capability == CapabilityWhite {
		return fmt.Errorf("bulb %s is white-only, color not supported", c.host)
	}

	err := c.send(ctx, protocol.FuncSetColor, map[string]any{
		"red":   int(rgb[0]),
		"green": int(rgb[1]),
		"blue":  int(rgb[2]),
	})

	c.cache.rgb = &rgb
	c.cache.kelvin = nil
	c.state.Mode = ModeRGB
	c.state.RGB = &rgb
	c.state.ColorTempKelvin = nil
	c.lastWrite = time.Now()
	return err
}

// SetColorTemperature puts the bulb in color-temperature mode. Kelvin
// is clamped to the supported [2000,6500] range and cached the same
// way SetColor caches its color.
func (c *Controller) SetColorTemperature(ctx context.Context, kelvin int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capability == CapabilityWhite {
		return fmt.Errorf("bulb %s is white-only, color temperature not supported", c.host)
	}

	kelvin = codec.ClampKelvin(kelvin)
	err := c.send(ctx, protocol.FuncSetColorTemp, map[string]any{
		"colorTemperature": codec.KelvinToDeviceTemp(kelvin),
	})

	c.cache.kelvin = &kelvin
	c.cache.rgb = nil
	c.state.Mode = ModeColorTemp
	c.state.ColorTempKelvin = &kelvin
	c.state.RGB = nil
	c.lastWrite = time.Now()
	return err
}

// Info queries the bulb's MAC address and firmware version.
func (c *Controller) Info(ctx context.Context) (Info, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var info Info
	if res := c.transport.Exchange(ctx, c.host, protocol.NewRequest(protocol.FuncGetDeviceMAC, nil)); res.OK() {
		info.MAC, _ = res.StringField("mac")
	}
	if res := c.transport.Exchange(ctx, c.host, protocol.NewRequest(protocol.FuncGetSoftwareVer, nil)); res.OK() {
		info.SoftwareVersion, _ = res.StringField("version")
	}
	if info.MAC == "" && info.SoftwareVersion == "" {
		return info, ErrNoResponse
	}
	return info, nil
}

// send issues one fire-and-wait command. Callers hold the mutex.
func (c *Controller) send(ctx context.Context, fn string, param map[string]any) error {
	res := c.transport.Exchange(ctx, c.host, protocol.NewRequest(fn, param))
	if res == nil {
		log.Warn().Str("host", c.host).Str("func", fn).Msg("Command got no response")
		return fmt.Errorf("%s: %w", fn, ErrNoResponse)
	}
	if !res.OK() {
		log.Warn().Str("host", c.host).Str("func", fn).Int("ret", res.Ret).Str("msg", res.Msg()).Msg("Command rejected by bulb")
		return fmt.Errorf("%s rejected: ret=%d", fn, res.Ret)
	}
	return nil
}
