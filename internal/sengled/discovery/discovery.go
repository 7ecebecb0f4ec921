// Package discovery finds Sengled bulbs on the local broadcast domain
// by broadcasting a status query and collecting replies for a short
// window. Best-effort: it only reaches bulbs on the same LAN/VLAN, and
// it only seeds the device list; configured devices always win.
package discovery

import (
	"context"
	"encoding/json"
	"net"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sengledd/internal/sengled"
	"github.com/dokzlo13/sengledd/internal/sengled/protocol"
)

// DefaultWindow is how long replies are collected after the probe.
const DefaultWindow = 2 * time.Second

// Device is one discovered bulb with its best-effort capability
// classification from the probe reply.
type Device struct {
	Host       string
	Capability sengled.Capability
}

// Probe broadcasts search_devices to the limited broadcast address and
// the inferred /24 subnet broadcast, then collects replies until the
// window closes. Replies that don't parse or report ret != 0 are
// skipped.
func Probe(ctx context.Context, port int, window time.Duration) ([]Device, error) {
	if port == 0 {
		port = protocol.DefaultPort
	}
	if window == 0 {
		window = DefaultWindow
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	payload, err := json.Marshal(protocol.NewRequest(protocol.FuncSearchDevices, nil))
	if err != nil {
		return nil, err
	}

	targets := []net.IP{net.IPv4bcast}
	if subnet := subnetBroadcast(); subnet != nil {
		targets = append(targets, subnet)
	}

	// Some environments don't deliver 255.255.255.255 reliably, so the
	// probe goes out twice to every target.
	for i := 0; i < 2; i++ {
		for _, ip := range targets {
			if _, err := conn.WriteToUDP(payload, &net.UDPAddr{IP: ip, Port: port}); err != nil {
				log.Debug().Err(err).Stringer("target", ip).Msg("Broadcast send failed")
			}
		}
	}

	deadline := time.Now().Add(window)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	var found []Device
	seen := make(map[string]struct{})
	buf := make([]byte, 2048)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			break
		}

		res, perr := protocol.ParseResponse(buf[:n])
		if perr != nil || !res.OK() {
			continue
		}

		host, _ := res.StringField("ip")
		if host == "" {
			host = addr.IP.String()
		}
		if _, dup := seen[host]; dup {
			continue
		}
		seen[host] = struct{}{}

		cap := sengled.CapabilityUnknown
		if st, serr := res.Status(); serr == nil {
			cap = sengled.DetectCapability(st)
		}
		found = append(found, Device{Host: host, Capability: cap})
		log.Info().Str("host", host).Str("capability", cap.String()).Msg("Discovered bulb")
	}

	return found, nil
}

// subnetBroadcast infers a likely /24 broadcast address from the
// host's primary IPv4. The dial never sends anything; it only picks
// the right interface.
func subnetBroadcast() net.IP {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return nil
	}
	defer conn.Close()

	local, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return nil
	}
	ip := local.IP.To4()
	if ip == nil {
		return nil
	}
	bcast := make(net.IP, 4)
	copy(bcast, ip)
	bcast[3] = 255
	return bcast
}
