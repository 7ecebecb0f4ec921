// Package command translates platform-level set requests into bulb
// commands, recording every attempt in the ledger and the metrics.
package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sengledd/internal/ledger"
	"github.com/dokzlo13/sengledd/internal/metrics"
	"github.com/dokzlo13/sengledd/internal/poller"
	"github.com/dokzlo13/sengledd/internal/sengled/codec"
	"github.com/dokzlo13/sengledd/internal/sengled/protocol"
)

// ErrUnknownDevice is returned for hosts not under management.
var ErrUnknownDevice = errors.New("unknown device")

// Request is one platform-level set request. RGB and ColorTempKelvin
// are mutually exclusive, mirroring the canonical state model.
type Request struct {
	On              *bool      `json:"on,omitempty"`
	Brightness      *uint8     `json:"brightness,omitempty"`
	RGB             *codec.RGB `json:"rgb,omitempty"`
	ColorTempKelvin *int       `json:"color_temp_kelvin,omitempty"`
}

// Validate rejects impossible combinations before any command is sent.
func (r Request) Validate() error {
	if r.On == nil && r.Brightness == nil && r.RGB == nil && r.ColorTempKelvin == nil {
		return fmt.Errorf("empty request")
	}
	if r.RGB != nil && r.ColorTempKelvin != nil {
		return fmt.Errorf("rgb and color_temp_kelvin are mutually exclusive")
	}
	return nil
}

// Dispatcher applies requests to controllers.
type Dispatcher struct {
	manager *poller.Manager
	ledger  *ledger.Ledger
	metrics *metrics.Metrics
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(manager *poller.Manager, l *ledger.Ledger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{manager: manager, ledger: l, metrics: m}
}

// Apply runs the request against one bulb: color or color temperature
// first, then brightness, then power. Individual command failures are
// recorded and joined; already-applied local state is never rolled
// back, the next successful poll settles it.
func (d *Dispatcher) Apply(ctx context.Context, host string, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	ctl, ok := d.manager.Get(host)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, host)
	}

	var errs []error

	if req.RGB != nil {
		rgb := *req.RGB
		err := ctl.SetColor(ctx, rgb)
		d.record(host, protocol.FuncSetColor, map[string]any{
			"red": int(rgb[0]), "green": int(rgb[1]), "blue": int(rgb[2]),
		}, err)
		errs = append(errs, err)
	}

	if req.ColorTempKelvin != nil {
		kelvin := codec.ClampKelvin(*req.ColorTempKelvin)
		err := ctl.SetColorTemperature(ctx, kelvin)
		d.record(host, protocol.FuncSetColorTemp, map[string]any{
			"colorTemperature": codec.KelvinToDeviceTemp(kelvin),
		}, err)
		errs = append(errs, err)
	}

	if req.Brightness != nil {
		b := *req.Brightness
		err := ctl.SetBrightness(ctx, b)
		d.record(host, protocol.FuncSetBrightness, map[string]any{
			"brightness": int(float64(b) / 255 * 100),
		}, err)
		errs = append(errs, err)
	}

	if req.On != nil {
		sw := 0
		if *req.On {
			sw = 1
		}
		err := ctl.SetPower(ctx, *req.On)
		d.record(host, protocol.FuncSetSwitch, map[string]any{"switch": sw}, err)
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (d *Dispatcher) record(host, fn string, param map[string]any, err error) {
	d.metrics.CountCommand(host, fn, err)
	if _, lerr := d.ledger.Record(host, fn, param, err); lerr != nil {
		log.Warn().Err(lerr).Str("host", host).Str("func", fn).Msg("Failed to record command")
	}
}
