// Package codec implements the bidirectional, lossy transform between
// standard RGB color space and the per-channel 0-99 encoding Sengled
// bulbs report over UDP.
//
// The device-side encoding is a fixed, non-invertible function: the
// weakest channel is collapsed into a coarse floor value (0 or 1) and
// all grays collapse to a single sentinel. The reverse transform here
// is therefore an explicit approximation, not an inverse.
package codec

import "math"

// RGB is a standard 0-255 color triple, always meant at full
// brightness when passed through the codec.
type RGB [3]uint8

// Encoded is the device's internal 0-99 per-channel drive level at
// full (100%) brightness. Produce it with Encode or recover it from a
// device status via Unscale; never persist it across brightness
// changes without re-unscaling.
type Encoded [3]uint8

// graySentinel is what the device reports for any grayscale input.
// Full white, 50% gray, anything with R=G=B comes back as (19,19,19).
const graySentinel = 19

// gamma holds the per-channel-pair exponents of the device's encoding
// curve, keyed by [maxChannel][midChannel]. Only the six off-diagonal
// pairs are meaningful.
var gamma = [3][3]float64{
	0: {1: 2.55, 2: 3.00}, // red max
	1: {0: 2.00, 2: 3.00}, // green max
	2: {0: 2.15, 1: 1.05}, // blue max
}

// isFloor reports whether an encoded channel sits in the device's
// coarse minimum band. The device and the forward transform disagree
// on whether the weakest channel lands on 0 or 1, so both values are
// treated as the same floor.
func isFloor(v uint8) bool {
	return v <= 1
}

// order returns the indices of the strongest, middle and weakest
// channel of a triple. Ties resolve to the lowest index, matching the
// device's observed behavior.
func order(vals [3]int) (maxIdx, midIdx, minIdx int) {
	maxVal, minVal := vals[0], vals[0]
	for i := 1; i < 3; i++ {
		if vals[i] > maxVal {
			maxVal = vals[i]
		}
		if vals[i] < minVal {
			minVal = vals[i]
		}
	}
	for i := 0; i < 3; i++ {
		if vals[i] == maxVal {
			maxIdx = i
			break
		}
	}
	for i := 0; i < 3; i++ {
		if vals[i] == minVal {
			minIdx = i
			break
		}
	}
	midIdx = 3 - (maxIdx + minIdx)
	return
}

// Encode converts a full-brightness RGB color to the device's encoded
// representation. Deterministic; for any non-grayscale input exactly
// one output channel equals 99.
func Encode(c RGB) Encoded {
	if c[0] == c[1] && c[0] == c[2] {
		return Encoded{graySentinel, graySentinel, graySentinel}
	}

	vals := [3]int{int(c[0]), int(c[1]), int(c[2])}
	maxIdx, midIdx, minIdx := order(vals)

	exponent := gamma[maxIdx][midIdx]
	midVal := float64(vals[midIdx])
	minVal := vals[minIdx]

	var out Encoded
	out[maxIdx] = 99
	out[midIdx] = uint8(math.Round(math.Pow(midVal/255, exponent) * 99))

	// Floor heuristic: the device only drives the weakest channel at
	// all when it carries meaningful energy relative to the mid
	// channel (green is more sensitive). Not invertible.
	if (minVal > vals[midIdx]/2 || minIdx == 1) && minVal > 50 {
		out[minIdx] = 1
	} else {
		out[minIdx] = 0
	}
	return out
}

// ApproxRGB estimates the full-brightness RGB color behind an encoded
// triple. The strongest and middle channels invert the forward curve;
// the weakest channel is reconstructed from heuristic bands and must
// be treated as low-confidence. Pass device readings through Unscale
// first, this assumes 100% brightness.
func ApproxRGB(e Encoded) RGB {
	if e[0] == e[1] && e[0] == e[2] {
		v := clamp255(int(math.Round(float64(e[0]) * 255.0 / graySentinel)))
		return RGB{v, v, v}
	}

	vals := [3]int{int(e[0]), int(e[1]), int(e[2])}
	maxIdx, midIdx, minIdx := order(vals)

	exponent := gamma[maxIdx][midIdx]

	var out RGB
	out[maxIdx] = 255

	midRatio := math.Pow(float64(vals[midIdx])/99, 1/exponent)
	out[midIdx] = clamp255(int(math.Round(midRatio * 255)))

	// Floor bands: encoded 1 usually meant an input somewhere in the
	// 50-80 range, encoded 0 something well below that.
	mid := float64(out[midIdx])
	if vals[minIdx] == 1 {
		if minIdx != 1 {
			out[minIdx] = clamp255(int(math.Round(mid * 0.65)))
		} else {
			out[minIdx] = clamp255(int(math.Round(45 + mid*0.15)))
		}
	} else {
		dark := math.Round(mid * float64(out[maxIdx]) * 0.001)
		half := math.Round(mid / 2)
		out[minIdx] = clamp255(int(math.Min(dark, half)))
	}
	return out
}

// Unscale recovers the full-brightness encoded triple from a value the
// device reported while running at the given brightness fraction
// (0 < fraction <= 1). Floor channels are left alone since their
// response to brightness is unknowable. The strongest resulting
// channel is pinned to exactly 99: rounding otherwise drifts to 98 on
// the way down and past 99 on the way up.
func Unscale(e Encoded, fraction float64) Encoded {
	if fraction <= 0 || fraction > 1 {
		return e
	}

	vals := [3]int{int(e[0]), int(e[1]), int(e[2])}
	for i, v := range vals {
		if isFloor(uint8(v)) {
			continue
		}
		vals[i] = int(math.Round(float64(v) / fraction))
	}

	maxIdx := 0
	for i := 1; i < 3; i++ {
		if vals[i] > vals[maxIdx] {
			maxIdx = i
		}
	}
	if vals[maxIdx] != 99 {
		vals[maxIdx] = 99
	}

	var out Encoded
	for i, v := range vals {
		if v < 0 {
			v = 0
		}
		if v > 99 {
			v = 99
		}
		out[i] = uint8(v)
	}
	return out
}

// LikelyMatch reports whether two full-brightness encoded triples
// plausibly represent the same color. Exact equality always matches.
// Otherwise, per channel: floor values {0,1} only match floor values,
// 99 only matches 99, and anything in between tolerates a difference
// of at most 5.
func LikelyMatch(a, b Encoded) bool {
	if a == b {
		return true
	}
	for i := 0; i < 3; i++ {
		switch {
		case isFloor(a[i]):
			if !isFloor(b[i]) {
				return false
			}
		case a[i] == 99:
			if b[i] != 99 {
				return false
			}
		default:
			diff := int(a[i]) - int(b[i])
			if diff < 0 {
				diff = -diff
			}
			if diff > 5 {
				return false
			}
		}
	}
	return true
}

func clamp255(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
