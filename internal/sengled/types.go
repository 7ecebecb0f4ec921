// Package sengled turns raw bulb status snapshots into canonical light
// state and drives the bulbs through per-device controllers.
package sengled

import (
	"fmt"

	"github.com/dokzlo13/sengledd/internal/sengled/codec"
	"github.com/dokzlo13/sengledd/internal/sengled/protocol"
)

// ColorMode is the canonical mode of a light.
type ColorMode string

const (
	// ModeRGB means the bulb is rendering an RGB color.
	ModeRGB ColorMode = "rgb"
	// ModeColorTemp means the bulb is rendering white at a color
	// temperature, possibly tinted through the RGB channels.
	ModeColorTemp ColorMode = "color_temp"
	// ModeBrightness is the fixed mode of white-only bulbs.
	ModeBrightness ColorMode = "brightness"
)

// LightState is the reconciled, stable representation exposed to
// consumers, as opposed to the raw device fields. RGB and
// ColorTempKelvin are mutually exclusive; white-only bulbs carry
// neither.
type LightState struct {
	On              bool       `json:"on"`
	Brightness      uint8      `json:"brightness"`
	Mode            ColorMode  `json:"mode"`
	RGB             *codec.RGB `json:"rgb,omitempty"`
	ColorTempKelvin *int       `json:"color_temp_kelvin,omitempty"`
}

// Equal compares two states including their optional fields.
func (s LightState) Equal(o LightState) bool {
	if s.On != o.On || s.Brightness != o.Brightness || s.Mode != o.Mode {
		return false
	}
	if (s.RGB == nil) != (o.RGB == nil) {
		return false
	}
	if s.RGB != nil && *s.RGB != *o.RGB {
		return false
	}
	if (s.ColorTempKelvin == nil) != (o.ColorTempKelvin == nil) {
		return false
	}
	if s.ColorTempKelvin != nil && *s.ColorTempKelvin != *o.ColorTempKelvin {
		return false
	}
	return true
}

// Capability classifies a bulb as RGB-capable or white-only. Decided
// once per device from the first successful status snapshot, one-way.
type Capability int

const (
	CapabilityUnknown Capability = iota
	CapabilityRGB
	CapabilityWhite
)

// String returns the stable textual form used in config and storage.
func (c Capability) String() string {
	switch c {
	case CapabilityRGB:
		return "rgb"
	case CapabilityWhite:
		return "white"
	default:
		return "unknown"
	}
}

// ParseCapability parses the textual capability form; the empty
// string means unknown.
func ParseCapability(s string) (Capability, error) {
	switch s {
	case "rgb":
		return CapabilityRGB, nil
	case "white":
		return CapabilityWhite, nil
	case "", "unknown":
		return CapabilityUnknown, nil
	default:
		return CapabilityUnknown, fmt.Errorf("unknown capability %q", s)
	}
}

// DetectCapability classifies a status snapshot: presence of all three
// R, G, B channels means an RGB bulb, anything else is white-only.
func DetectCapability(st protocol.Status) Capability {
	if st.HasRGB() {
		return CapabilityRGB
	}
	return CapabilityWhite
}
