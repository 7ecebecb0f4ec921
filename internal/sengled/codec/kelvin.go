package codec

// Color temperature limits the bulbs accept, in Kelvin.
const (
	MinKelvin = 2000
	MaxKelvin = 6500
)

// KelvinToDeviceTemp maps Kelvin to the 1-100 scale the
// set_device_colortemp function expects.
func KelvinToDeviceTemp(kelvin int) int {
	dt := int(1 + (float64(kelvin-MinKelvin)/(MaxKelvin-MinKelvin))*99)
	if dt < 1 {
		return 1
	}
	if dt > 100 {
		return 100
	}
	return dt
}

// DeviceTempToKelvin maps the device's 1-100 color temperature scale
// back to Kelvin.
func DeviceTempToKelvin(deviceTemp int) int {
	kelvin := int(MinKelvin + (float64(deviceTemp-1)/99)*(MaxKelvin-MinKelvin))
	return ClampKelvin(kelvin)
}

// ClampKelvin bounds a Kelvin value to the device's supported range.
func ClampKelvin(kelvin int) int {
	if kelvin < MinKelvin {
		return MinKelvin
	}
	if kelvin > MaxKelvin {
		return MaxKelvin
	}
	return kelvin
}

// EstimateKelvin estimates the color temperature from the four raw
// channel readings of a bulb in color-temperature mode. Channels are
// normalized to 0-255 against the strongest one (so both firmware
// scales work), then run through a quadratic regression fit against
// observed bulbs. Approximate; always clamped to [MinKelvin,MaxKelvin].
func EstimateKelvin(rRaw, gRaw, bRaw, wRaw int) int {
	maxRaw := rRaw
	for _, v := range []int{gRaw, bRaw, wRaw, 1} {
		if v > maxRaw {
			maxRaw = v
		}
	}

	r := float64(int(float64(rRaw) / float64(maxRaw) * 255))
	g := float64(int(float64(gRaw) / float64(maxRaw) * 255))
	b := float64(int(float64(bRaw) / float64(maxRaw) * 255))
	w := float64(int(float64(wRaw) / float64(maxRaw) * 255))

	kelvin := int(5*r -
		9.6*g -
		12.5*b +
		7.4*w -
		0.127*r*r +
		0.136*r*w +
		0.277*g*g -
		0.613*g*b +
		0.439*g*w +
		0.33*b*b -
		0.216*b*w -
		0.113*w*w +
		6245.18)

	return ClampKelvin(kelvin)
}

// RawScale is the per-reading heuristic for the raw channel value
// scale, which varies by firmware: readings above 100 can only come
// from a 0-255 firmware, anything else is assumed 0-100. There is no
// authoritative signal distinguishing the variants.
func RawScale(v int) int {
	if v > 100 {
		return 255
	}
	return 100
}

// EstimateBrightness derives a 0-255 brightness from the strongest raw
// channel value when the separate brightness query yielded nothing,
// using RawScale to pick the firmware scale.
func EstimateBrightness(maxRaw int) int {
	if maxRaw <= 0 {
		return 0
	}
	if RawScale(maxRaw) == 255 {
		if maxRaw > 255 {
			return 255
		}
		return maxRaw
	}
	v := int(float64(maxRaw) / 100 * 255)
	if v > 255 {
		return 255
	}
	return v
}
