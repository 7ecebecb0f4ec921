package sengled

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sengledd/internal/sengled/codec"
	"github.com/dokzlo13/sengledd/internal/sengled/protocol"
)

// requestCache remembers the last explicitly commanded color or color
// temperature. The bulb's own reporting is too lossy to round-trip a
// color exactly, so while the bulb stays in the commanded mode the
// cached value wins over the reconstructed one. Setting one side
// clears the other, and an observed mode switch clears the stale side.
type requestCache struct {
	rgb    *codec.RGB
	kelvin *int
}

// stateDecoder is the per-capability reconciliation path. The white
// and RGB variants enforce their own invariants (a white-only state
// never carries a color) instead of branching inside one function.
type stateDecoder interface {
	decode(st protocol.Status, brightnessPct *int, prev LightState) (LightState, error)
}

// whiteDecoder reconciles white-only bulbs. Their firmware is
// unreliable at reporting power-off through channel frequency alone,
// so power is assumed: ambiguous readings retain the previous value.
type whiteDecoder struct {
	assumedPower bool
}

func (d whiteDecoder) decode(st protocol.Status, brightnessPct *int, prev LightState) (LightState, error) {
	w, ok := st.Channel(protocol.ChannelW)
	if !ok {
		return prev, fmt.Errorf("status carries no W channel")
	}

	state := LightState{
		On:         prev.On,
		Brightness: prev.Brightness,
		Mode:       ModeBrightness,
	}

	switch {
	case w.FreqIsZero():
		state.On = true
	case brightnessPct != nil:
		if *brightnessPct == 0 {
			state.On = false
		} else if !d.assumedPower {
			state.On = true
		}
	default:
		// Fall back to reading the raw W value as a percent.
		if w.Value == 0 {
			state.On = false
		} else if !d.assumedPower {
			state.On = true
		}
	}

	switch {
	case brightnessPct != nil:
		state.Brightness = percentToByte(*brightnessPct)
	case w.Value >= 0 && w.Value <= 100:
		state.Brightness = percentToByte(w.Value)
	case state.On:
		// Out-of-range reading while on: keep what we had.
	default:
		state.Brightness = 0
	}

	return state, nil
}

// rgbDecoder reconciles RGB/RGBW bulbs.
type rgbDecoder struct {
	cache *requestCache
}

func (d rgbDecoder) decode(st protocol.Status, brightnessPct *int, prev LightState) (LightState, error) {
	if !st.HasRGB() {
		return prev, fmt.Errorf("status carries no RGB channels")
	}

	r, _ := st.Channel(protocol.ChannelR)
	g, _ := st.Channel(protocol.ChannelG)
	b, _ := st.Channel(protocol.ChannelB)
	w, _ := st.Channel(protocol.ChannelW)

	state := prev
	state.On = r.FreqIsZero() || g.FreqIsZero() || b.FreqIsZero() || w.FreqIsZero()

	if !state.On {
		state.Brightness = 0
		return state, nil
	}

	if w.Value > 0 {
		// An active white channel means color-temperature mode even if
		// the color channels carry values: the firmware mixes R/G/B in
		// for tinting. Treating that as an RGB color produces ghost
		// colors downstream.
		state.Mode = ModeColorTemp
		state.RGB = nil
		d.cache.rgb = nil

		if d.cache.kelvin != nil {
			k := *d.cache.kelvin
			state.ColorTempKelvin = &k
		} else {
			k := codec.EstimateKelvin(r.Value, g.Value, b.Value, w.Value)
			state.ColorTempKelvin = &k
		}
	} else {
		state.Mode = ModeRGB
		state.ColorTempKelvin = nil
		d.cache.kelvin = nil

		if d.cache.rgb != nil {
			c := *d.cache.rgb
			state.RGB = &c
		} else {
			c := normalizeRGB(r.Value, g.Value, b.Value)
			state.RGB = &c
		}
	}

	if brightnessPct != nil {
		state.Brightness = percentToByte(*brightnessPct)
	} else {
		maxRaw := maxInt(r.Value, g.Value, b.Value, w.Value)
		state.Brightness = clampByte(codec.EstimateBrightness(maxRaw))
	}

	if state.Mode == ModeRGB && d.cache.rgb != nil {
		d.checkCachedColorDrift(r.Value, g.Value, b.Value, state.Brightness)
	}

	return state, nil
}

// checkCachedColorDrift compares the cached color's expected encoding
// against what the bulb actually reports. A mismatch is only logged:
// the cache stays authoritative until the bulb changes mode, otherwise
// the lossy reverse transform makes the published color oscillate.
func (d rgbDecoder) checkCachedColorDrift(rRaw, gRaw, bRaw int, brightness uint8) {
	if brightness == 0 {
		return
	}
	// Encoded values live on the 0-99 scale; a 0-255 firmware reading
	// is not comparable.
	if codec.RawScale(maxInt(rRaw, gRaw, bRaw)) != 100 {
		return
	}

	observed := codec.Encoded{encByte(rRaw), encByte(gRaw), encByte(bRaw)}
	fraction := float64(brightness) / 255
	unscaled := codec.Unscale(observed, fraction)
	expected := codec.Encode(*d.cache.rgb)

	if !codec.LikelyMatch(expected, unscaled) {
		log.Debug().
			Interface("expected", expected).
			Interface("reported", unscaled).
			Msg("Bulb color drifted from last commanded value")
	}
}

// normalizeRGB scales the raw color channel readings so the strongest
// one maps to 255, matching both firmware scales.
func normalizeRGB(r, g, b int) codec.RGB {
	maxRaw := maxInt(r, g, b, 1)
	return codec.RGB{
		clampByte(int(float64(r) / float64(maxRaw) * 255)),
		clampByte(int(float64(g) / float64(maxRaw) * 255)),
		clampByte(int(float64(b) / float64(maxRaw) * 255)),
	}
}

func percentToByte(pct int) uint8 {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return clampByte(int(float64(pct) / 100 * 255))
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func encByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 99 {
		return 99
	}
	return uint8(v)
}

func maxInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
