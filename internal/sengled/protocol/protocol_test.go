package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseResponse_WrappedResult(t *testing.T) {
	res, err := ParseResponse([]byte(`{"result":{"ret":0,"brightness":70}}`))
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if !res.OK() {
		t.Errorf("OK() = false, want true (ret=%d)", res.Ret)
	}
	pct, err := res.Brightness()
	if err != nil {
		t.Fatalf("Brightness failed: %v", err)
	}
	if pct != 70 {
		t.Errorf("Brightness = %d, want 70", pct)
	}
}

func TestParseResponse_BareMap(t *testing.T) {
	// Some firmwares skip the result wrapper entirely.
	res, err := ParseResponse([]byte(`{"ret":0,"mac":"aa:bb:cc:dd:ee:ff"}`))
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if !res.OK() {
		t.Errorf("OK() = false, want true")
	}
	mac, ok := res.StringField("mac")
	if !ok || mac != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("StringField(mac) = %q, %v", mac, ok)
	}
}

func TestParseResponse_NonZeroRet(t *testing.T) {
	res, err := ParseResponse([]byte(`{"result":{"ret":3,"msg":"invalid param"}}`))
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if res.OK() {
		t.Error("OK() = true for ret=3")
	}
	if res.Ret != 3 {
		t.Errorf("Ret = %d, want 3", res.Ret)
	}
	if res.Msg() != "invalid param" {
		t.Errorf("Msg() = %q, want %q", res.Msg(), "invalid param")
	}
}

func TestParseResponse_MissingRet(t *testing.T) {
	res, err := ParseResponse([]byte(`{"result":{"brightness":10}}`))
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if res.OK() {
		t.Error("OK() = true without a ret field")
	}
	if res.Ret != -1 {
		t.Errorf("Ret = %d, want -1", res.Ret)
	}
}

func TestParseResponse_Malformed(t *testing.T) {
	for _, payload := range []string{``, `not json`, `[1,2,3]`, `{"ret":"zero"}`} {
		if _, err := ParseResponse([]byte(payload)); err == nil {
			t.Errorf("ParseResponse(%q) succeeded, want error", payload)
		}
	}
}

func TestResult_NilIsNotOK(t *testing.T) {
	var res *Result
	if res.OK() {
		t.Error("nil result reported OK")
	}
	if res.Msg() != "" {
		t.Error("nil result has a message")
	}
	if _, ok := res.Field("anything"); ok {
		t.Error("nil result has fields")
	}
}

func TestNewRequest_NormalizesNilParam(t *testing.T) {
	req := NewRequest(FuncSearchDevices, nil)
	payload, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(payload), `"param":{}`) {
		t.Errorf("payload %s does not carry an empty param object", payload)
	}
	if !strings.Contains(string(payload), `"func":"search_devices"`) {
		t.Errorf("payload %s does not carry the func name", payload)
	}
}

func TestStatus_Decode(t *testing.T) {
	res, err := ParseResponse([]byte(`{"result":{"ret":0,
		"R":{"value":99,"freq":0},
		"G":{"value":40,"freq":0},
		"B":{"value":10,"freq":1},
		"W":{"value":0,"freq":1}}}`))
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	st, err := res.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !st.HasRGB() {
		t.Error("HasRGB() = false")
	}
	r, ok := st.Channel(ChannelR)
	if !ok || r.Value != 99 || !r.FreqIsZero() {
		t.Errorf("Channel(R) = %+v, %v", r, ok)
	}
	b, ok := st.Channel(ChannelB)
	if !ok || b.FreqIsZero() {
		t.Errorf("Channel(B) = %+v: freq 1 reported as zero", b)
	}
}

func TestStatus_LowercaseKeys(t *testing.T) {
	// White-only firmwares report a lowercase w, sometimes without freq.
	res, err := ParseResponse([]byte(`{"result":{"ret":0,"w":{"value":75}}}`))
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	st, err := res.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.HasRGB() {
		t.Error("HasRGB() = true for a W-only status")
	}
	w, ok := st.Channel(ChannelW)
	if !ok {
		t.Fatal("Channel(W) missed the lowercase key")
	}
	if w.Value != 75 {
		t.Errorf("Channel(W).Value = %d, want 75", w.Value)
	}
	if w.FreqIsZero() {
		t.Error("absent freq reported as zero")
	}
}

func TestStatus_NoChannels(t *testing.T) {
	res, err := ParseResponse([]byte(`{"result":{"ret":0}}`))
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if _, err := res.Status(); err == nil {
		t.Error("Status() succeeded with no channel readings")
	}
}

func TestBrightness_Missing(t *testing.T) {
	res, err := ParseResponse([]byte(`{"result":{"ret":0}}`))
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if _, err := res.Brightness(); err == nil {
		t.Error("Brightness() succeeded without a brightness field")
	}
}
