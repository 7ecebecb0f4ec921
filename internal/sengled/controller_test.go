package sengled

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/dokzlo13/sengledd/internal/sengled/codec"
	"github.com/dokzlo13/sengledd/internal/sengled/protocol"
)

// fakeBulb answers the UDP protocol on loopback with canned responses
// per function name.
type fakeBulb struct {
	conn *net.UDPConn

	mu        sync.Mutex
	responses map[string]string
	requests  []protocol.Request
}

func newFakeBulb(t *testing.T) *fakeBulb {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	f := &fakeBulb{conn: conn, responses: make(map[string]string)}
	t.Cleanup(func() { conn.Close() })
	go f.serve()
	return f
}

func (f *fakeBulb) serve() {
	buf := make([]byte, 4096)
	for {
		n, addr, err := f.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		var req protocol.Request
		if err := json.Unmarshal(buf[:n], &req); err != nil {
			continue
		}
		f.mu.Lock()
		f.requests = append(f.requests, req)
		resp, ok := f.responses[req.Func]
		f.mu.Unlock()
		if ok {
			f.conn.WriteToUDP([]byte(resp), addr)
		}
	}
}

func (f *fakeBulb) respond(fn, payload string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[fn] = payload
}

func (f *fakeBulb) lastRequest(fn string) (protocol.Request, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].Func == fn {
			return f.requests[i], true
		}
	}
	return protocol.Request{}, false
}

func (f *fakeBulb) transport() *protocol.Transport {
	port := f.conn.LocalAddr().(*net.UDPAddr).Port
	return protocol.NewTransport(port, 500*time.Millisecond)
}

const rgbStatusResponse = `{"result":{"ret":0,
	"R":{"value":99,"freq":0},
	"G":{"value":40,"freq":0},
	"B":{"value":10,"freq":1},
	"W":{"value":0,"freq":1}}}`

func TestController_PollDetectsRGBAndReconciles(t *testing.T) {
	bulb := newFakeBulb(t)
	bulb.respond(protocol.FuncSearchDevices, rgbStatusResponse)
	bulb.respond(protocol.FuncGetBrightness, `{"result":{"ret":0,"brightness":40}}`)

	ctl := NewController("127.0.0.1", "desk", CapabilityUnknown, bulb.transport(), time.Millisecond)

	state, err := ctl.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if ctl.Capability() != CapabilityRGB {
		t.Errorf("Capability = %v, want %v", ctl.Capability(), CapabilityRGB)
	}
	if !state.On {
		t.Error("On = false, want true")
	}
	if state.Mode != ModeRGB {
		t.Errorf("Mode = %q, want %q", state.Mode, ModeRGB)
	}
	if state.RGB == nil {
		t.Fatal("RGB = nil")
	}
	if want := (codec.RGB{255, 103, 25}); *state.RGB != want {
		t.Errorf("RGB = %v, want %v", *state.RGB, want)
	}
	if state.Brightness != 102 {
		t.Errorf("Brightness = %d, want 102 from the 40%% reading", state.Brightness)
	}

	if _, available := ctl.State(); !available {
		t.Error("controller not available after a successful poll")
	}
}

func TestController_PollRejectionMeansUnavailable(t *testing.T) {
	bulb := newFakeBulb(t)
	bulb.respond(protocol.FuncSearchDevices, `{"result":{"ret":1}}`)

	ctl := NewController("127.0.0.1", "desk", CapabilityRGB, bulb.transport(), time.Millisecond)

	prev := LightState{On: true, Brightness: 200, Mode: ModeRGB}
	ctl.Restore(CapabilityRGB, prev)

	state, err := ctl.Poll(context.Background())
	if err != ErrUnavailable {
		t.Fatalf("Poll error = %v, want ErrUnavailable", err)
	}
	if !state.Equal(prev) {
		t.Errorf("state = %+v, want previous state retained", state)
	}
	if _, available := ctl.State(); available {
		t.Error("controller available after a rejected poll")
	}
}

func TestController_SetColorCachesAndBeatsLossyReadback(t *testing.T) {
	bulb := newFakeBulb(t)
	bulb.respond(protocol.FuncSetColor, `{"result":{"ret":0}}`)
	// The bulb reports a degraded rendition of the commanded color.
	bulb.respond(protocol.FuncSearchDevices, `{"result":{"ret":0,
		"R":{"value":99,"freq":0},
		"G":{"value":0,"freq":0},
		"B":{"value":1,"freq":0},
		"W":{"value":0,"freq":1}}}`)
	bulb.respond(protocol.FuncGetBrightness, `{"result":{"ret":0,"brightness":100}}`)

	ctl := NewController("127.0.0.1", "desk", CapabilityRGB, bulb.transport(), time.Millisecond)

	want := codec.RGB{200, 10, 50}
	if err := ctl.SetColor(context.Background(), want); err != nil {
		t.Fatalf("SetColor failed: %v", err)
	}

	req, ok := bulb.lastRequest(protocol.FuncSetColor)
	if !ok {
		t.Fatal("bulb never received set_device_color")
	}
	if r, _ := req.Param["red"].(float64); r != 200 {
		t.Errorf("sent red = %v, want 200", req.Param["red"])
	}

	time.Sleep(5 * time.Millisecond) // clear the write debounce window

	state, err := ctl.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if state.RGB == nil || *state.RGB != want {
		t.Errorf("RGB after readback = %v, want cached %v", state.RGB, want)
	}
}

func TestController_WhiteBulbRejectsColor(t *testing.T) {
	bulb := newFakeBulb(t)
	bulb.respond(protocol.FuncSearchDevices, `{"result":{"ret":0,"w":{"value":75,"freq":0}}}`)
	bulb.respond(protocol.FuncGetBrightness, `{"result":{"ret":0,"brightness":75}}`)

	ctl := NewController("127.0.0.1", "hall", CapabilityUnknown, bulb.transport(), time.Millisecond)

	state, err := ctl.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if ctl.Capability() != CapabilityWhite {
		t.Errorf("Capability = %v, want %v", ctl.Capability(), CapabilityWhite)
	}
	if state.Mode != ModeBrightness {
		t.Errorf("Mode = %q, want %q", state.Mode, ModeBrightness)
	}

	if err := ctl.SetColor(context.Background(), codec.RGB{255, 0, 0}); err == nil {
		t.Error("SetColor succeeded on a white-only bulb")
	}
	if err := ctl.SetColorTemperature(context.Background(), 4000); err == nil {
		t.Error("SetColorTemperature succeeded on a white-only bulb")
	}
}

func TestController_CommandFailureKeepsOptimisticState(t *testing.T) {
	bulb := newFakeBulb(t)
	bulb.respond(protocol.FuncSetSwitch, `{"result":{"ret":3,"msg":"busy"}}`)

	ctl := NewController("127.0.0.1", "desk", CapabilityRGB, bulb.transport(), time.Millisecond)

	if err := ctl.SetPower(context.Background(), true); err == nil {
		t.Fatal("SetPower succeeded despite ret=3")
	}
	state, _ := ctl.State()
	if !state.On {
		t.Error("On = false: optimistic update rolled back on failure")
	}
}

func TestController_SetColorTemperatureClampsAndCaches(t *testing.T) {
	bulb := newFakeBulb(t)
	bulb.respond(protocol.FuncSetColorTemp, `{"result":{"ret":0}}`)

	ctl := NewController("127.0.0.1", "desk", CapabilityRGB, bulb.transport(), time.Millisecond)

	if err := ctl.SetColorTemperature(context.Background(), 10000); err != nil {
		t.Fatalf("SetColorTemperature failed: %v", err)
	}

	req, ok := bulb.lastRequest(protocol.FuncSetColorTemp)
	if !ok {
		t.Fatal("bulb never received set_device_colortemp")
	}
	if dt, _ := req.Param["colorTemperature"].(float64); dt != 100 {
		t.Errorf("sent colorTemperature = %v, want 100 for a clamped 6500K", req.Param["colorTemperature"])
	}

	state, _ := ctl.State()
	if state.ColorTempKelvin == nil || *state.ColorTempKelvin != codec.MaxKelvin {
		t.Errorf("ColorTempKelvin = %v, want %d", state.ColorTempKelvin, codec.MaxKelvin)
	}
	if state.Mode != ModeColorTemp {
		t.Errorf("Mode = %q, want %q", state.Mode, ModeColorTemp)
	}
}

func TestController_CapabilityIsOneWay(t *testing.T) {
	bulb := newFakeBulb(t)
	ctl := NewController("127.0.0.1", "desk", CapabilityRGB, bulb.transport(), time.Millisecond)

	// A persisted classification never overrides one already decided.
	ctl.Restore(CapabilityWhite, LightState{})
	if ctl.Capability() != CapabilityRGB {
		t.Errorf("Capability = %v after Restore, want %v", ctl.Capability(), CapabilityRGB)
	}
}

func TestController_Info(t *testing.T) {
	bulb := newFakeBulb(t)
	bulb.respond(protocol.FuncGetDeviceMAC, `{"result":{"ret":0,"mac":"aa:bb:cc:dd:ee:ff"}}`)
	bulb.respond(protocol.FuncGetSoftwareVer, `{"result":{"ret":0,"version":"1.2.3"}}`)

	ctl := NewController("127.0.0.1", "desk", CapabilityRGB, bulb.transport(), time.Millisecond)

	info, err := ctl.Info(context.Background())
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.MAC != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("MAC = %q", info.MAC)
	}
	if info.SoftwareVersion != "1.2.3" {
		t.Errorf("SoftwareVersion = %q", info.SoftwareVersion)
	}
}
