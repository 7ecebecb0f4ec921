// Package protocol implements the JSON-over-UDP envelope Sengled bulbs
// speak on port 9080. A request is {"func": <name>, "param": {...}}; a
// response is {"result": {...}} or, on some firmwares, the bare result
// map. Success is signaled by an integer "ret" equal to zero.
package protocol

import (
	"encoding/json"
	"fmt"
)

// DefaultPort is the fixed UDP port the bulbs listen on.
const DefaultPort = 9080

// Device function names. These are protocol constants, not free text.
const (
	FuncSearchDevices  = "search_devices"
	FuncGetBrightness  = "get_device_brightness"
	FuncSetSwitch      = "set_device_switch"
	FuncSetBrightness  = "set_device_brightness"
	FuncSetColor       = "set_device_color"
	FuncSetColorTemp   = "set_device_colortemp"
	FuncGetDeviceMAC   = "get_device_mac"
	FuncGetSoftwareVer = "get_software_version"
)

// Request is the command envelope sent to a bulb.
type Request struct {
	Func  string         `json:"func"`
	Param map[string]any `json:"param"`
}

// NewRequest builds a request; param may be nil and is normalized to
// an empty map since the bulbs reject a missing "param".
func NewRequest(fn string, param map[string]any) Request {
	if param == nil {
		param = map[string]any{}
	}
	return Request{Func: fn, Param: param}
}

// Result is a parsed device response. Ret is -1 when the device
// omitted the field, which callers must treat as failure.
type Result struct {
	Ret    int
	fields map[string]json.RawMessage
}

// ParseResponse decodes a raw datagram into a Result. It accepts both
// the wrapped {"result": {...}} form and the bare-map fallback some
// firmwares send.
func ParseResponse(data []byte) (*Result, error) {
	var outer map[string]json.RawMessage
	if err := json.Unmarshal(data, &outer); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}

	fields := outer
	if raw, ok := outer["result"]; ok {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("result field is not an object: %w", err)
		}
		fields = inner
	}

	res := &Result{Ret: -1, fields: fields}
	if raw, ok := fields["ret"]; ok {
		var ret int
		if err := json.Unmarshal(raw, &ret); err != nil {
			return nil, fmt.Errorf("ret field is not an integer: %w", err)
		}
		res.Ret = ret
	}
	return res, nil
}

// OK reports whether the device accepted the command.
func (r *Result) OK() bool {
	return r != nil && r.Ret == 0
}

// Msg returns the device's error message, if any.
func (r *Result) Msg() string {
	if r == nil {
		return ""
	}
	raw, ok := r.fields["msg"]
	if !ok {
		return ""
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ""
	}
	return msg
}

// Field returns a raw result field by name.
func (r *Result) Field(name string) (json.RawMessage, bool) {
	if r == nil {
		return nil, false
	}
	raw, ok := r.fields[name]
	return raw, ok
}

// StringField decodes a result field as a string.
func (r *Result) StringField(name string) (string, bool) {
	raw, ok := r.Field(name)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
