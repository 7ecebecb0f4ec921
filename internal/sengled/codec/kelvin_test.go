package codec

import "testing"

func TestKelvinToDeviceTemp(t *testing.T) {
	tests := []struct {
		kelvin int
		want   int
	}{
		{2000, 1},
		{6500, 100},
		{4250, 50},
		{1000, 1},   // below range clamps
		{9000, 100}, // above range clamps
	}
	for _, tt := range tests {
		if got := KelvinToDeviceTemp(tt.kelvin); got != tt.want {
			t.Errorf("KelvinToDeviceTemp(%d) = %d, want %d", tt.kelvin, got, tt.want)
		}
	}
}

func TestDeviceTempToKelvin(t *testing.T) {
	tests := []struct {
		deviceTemp int
		want       int
	}{
		{1, 2000},
		{100, 6500},
		{50, 4227},
	}
	for _, tt := range tests {
		if got := DeviceTempToKelvin(tt.deviceTemp); got != tt.want {
			t.Errorf("DeviceTempToKelvin(%d) = %d, want %d", tt.deviceTemp, got, tt.want)
		}
	}
}

func TestClampKelvin(t *testing.T) {
	if got := ClampKelvin(1999); got != MinKelvin {
		t.Errorf("ClampKelvin(1999) = %d, want %d", got, MinKelvin)
	}
	if got := ClampKelvin(6501); got != MaxKelvin {
		t.Errorf("ClampKelvin(6501) = %d, want %d", got, MaxKelvin)
	}
	if got := ClampKelvin(3000); got != 3000 {
		t.Errorf("ClampKelvin(3000) = %d, want 3000", got)
	}
}

func TestEstimateKelvin_AlwaysInRange(t *testing.T) {
	// The regression is a rough fit; whatever it produces must stay
	// inside the range the bulbs accept.
	for _, raw := range [][4]int{
		{30, 20, 10, 40},
		{100, 100, 100, 100},
		{255, 0, 0, 0},
		{0, 0, 0, 255},
		{0, 0, 0, 0},
		{10, 90, 30, 5},
	} {
		got := EstimateKelvin(raw[0], raw[1], raw[2], raw[3])
		if got < MinKelvin || got > MaxKelvin {
			t.Errorf("EstimateKelvin(%v) = %d, outside [%d,%d]", raw, got, MinKelvin, MaxKelvin)
		}
	}
}

func TestEstimateKelvin_ColdWhiteClampsHigh(t *testing.T) {
	if got := EstimateKelvin(30, 20, 10, 40); got != MaxKelvin {
		t.Errorf("EstimateKelvin(30,20,10,40) = %d, want %d", got, MaxKelvin)
	}
}

func TestRawScale(t *testing.T) {
	tests := []struct {
		v    int
		want int
	}{
		{0, 100},
		{50, 100},
		{100, 100},
		{101, 255},
		{255, 255},
	}
	for _, tt := range tests {
		if got := RawScale(tt.v); got != tt.want {
			t.Errorf("RawScale(%d) = %d, want %d", tt.v, got, tt.want)
		}
	}
}

func TestEstimateBrightness(t *testing.T) {
	tests := []struct {
		maxRaw int
		want   int
	}{
		{0, 0},
		{-5, 0},
		{99, 252},  // 0-100 firmware scales up
		{100, 255}, // full on the 0-100 scale
		{150, 150}, // 0-255 firmware passes through
		{255, 255},
		{300, 255}, // garbage readings clamp
	}
	for _, tt := range tests {
		if got := EstimateBrightness(tt.maxRaw); got != tt.want {
			t.Errorf("EstimateBrightness(%d) = %d, want %d", tt.maxRaw, got, tt.want)
		}
	}
}
