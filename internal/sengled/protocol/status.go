package protocol

import (
	"encoding/json"
	"fmt"
)

// Channel names as reported by the bulbs.
const (
	ChannelR = "R"
	ChannelG = "G"
	ChannelB = "B"
	ChannelW = "W"
)

// ChannelReading is one physical LED driver's reported state. Value is
// the raw drive level (0-100 or 0-255 depending on firmware; see
// codec.RawScale). Freq is a PWM-frequency-like field: zero means the
// driver is actively holding a steady level ("on"); nonzero or absent
// is inconclusive.
type ChannelReading struct {
	Value int
	Freq  *int
}

// FreqIsZero reports whether the channel's driver is known active.
func (c ChannelReading) FreqIsZero() bool {
	return c.Freq != nil && *c.Freq == 0
}

// Status is a decoded search_devices snapshot: a mapping from channel
// name to reading. RGB bulbs report all four channels; white-only
// bulbs report only W, under either key casing.
type Status struct {
	channels map[string]ChannelReading
}

// Channel looks up a reading by canonical name, tolerating the
// lowercase keys some white-only firmwares use.
func (s Status) Channel(name string) (ChannelReading, bool) {
	if c, ok := s.channels[name]; ok {
		return c, true
	}
	if len(name) == 1 {
		lower := string(name[0] | 0x20)
		if c, ok := s.channels[lower]; ok {
			return c, true
		}
	}
	return ChannelReading{}, false
}

// HasRGB reports whether all three color channels are present, which
// is how capability detection distinguishes RGB bulbs.
func (s Status) HasRGB() bool {
	_, r := s.channels[ChannelR]
	_, g := s.channels[ChannelG]
	_, b := s.channels[ChannelB]
	return r && g && b
}

// rawChannel mirrors the device's per-channel JSON object.
type rawChannel struct {
	Value *float64 `json:"value"`
	Freq  *float64 `json:"freq"`
}

// Status extracts the channel readings from a search_devices result.
func (r *Result) Status() (Status, error) {
	if r == nil {
		return Status{}, fmt.Errorf("no result")
	}

	channels := make(map[string]ChannelReading)
	for _, key := range []string{"R", "G", "B", "W", "r", "g", "b", "w"} {
		raw, ok := r.fields[key]
		if !ok {
			continue
		}
		var rc rawChannel
		if err := json.Unmarshal(raw, &rc); err != nil {
			return Status{}, fmt.Errorf("channel %s is malformed: %w", key, err)
		}
		reading := ChannelReading{}
		if rc.Value != nil {
			reading.Value = int(*rc.Value)
		}
		if rc.Freq != nil {
			f := int(*rc.Freq)
			reading.Freq = &f
		}
		channels[key] = reading
	}

	if len(channels) == 0 {
		return Status{}, fmt.Errorf("result carries no channel readings")
	}
	return Status{channels: channels}, nil
}

// StatusFromChannels builds a Status directly; used by tests and by
// the discovery probe when classifying replies.
func StatusFromChannels(channels map[string]ChannelReading) Status {
	return Status{channels: channels}
}

// Brightness extracts the 0-100 brightness percent from a
// get_device_brightness result.
func (r *Result) Brightness() (int, error) {
	raw, ok := r.Field("brightness")
	if !ok {
		return 0, fmt.Errorf("result carries no brightness field")
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("brightness field is malformed: %w", err)
	}
	return int(v), nil
}
