package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultTimeout is the bounded wait for a reply datagram.
const DefaultTimeout = 3 * time.Second

// Transport sends one request datagram and waits for one reply on the
// same socket. The protocol has no sequence numbers; correlation is
// purely "next datagram within the timeout window". One exchange per
// call, no pipelining.
type Transport struct {
	port    int
	timeout time.Duration
}

// NewTransport creates a transport. Zero values select the protocol
// defaults.
func NewTransport(port int, timeout time.Duration) *Transport {
	if port == 0 {
		port = DefaultPort
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Transport{port: port, timeout: timeout}
}

// Exchange sends the request to host and returns the parsed reply, or
// nil when there is no usable reply. Timeouts and unparseable payloads
// are deliberately indistinguishable here: both mean "unknown state"
// and are never an error the caller should act on.
func (t *Transport) Exchange(ctx context.Context, host string, req Request) *Result {
	payload, err := json.Marshal(req)
	if err != nil {
		log.Error().Err(err).Str("func", req.Func).Msg("Failed to encode request")
		return nil
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "udp", net.JoinHostPort(host, fmt.Sprintf("%d", t.port)))
	if err != nil {
		log.Warn().Err(err).Str("host", host).Msg("Failed to open UDP socket")
		return nil
	}
	defer conn.Close()

	deadline := time.Now().Add(t.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		log.Warn().Err(err).Str("host", host).Msg("Failed to set socket deadline")
		return nil
	}

	log.Debug().Str("host", host).RawJSON("request", payload).Msg("Sending UDP command")
	if _, err := conn.Write(payload); err != nil {
		log.Warn().Err(err).Str("host", host).Str("func", req.Func).Msg("Failed to send UDP command")
		return nil
	}

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		// Timeout or socket error: no data, the next poll is the retry.
		log.Debug().Err(err).Str("host", host).Str("func", req.Func).Msg("No UDP response")
		return nil
	}

	log.Debug().Str("host", host).Bytes("response", buf[:n]).Msg("Received UDP response")
	res, err := ParseResponse(buf[:n])
	if err != nil {
		log.Debug().Err(err).Str("host", host).Msg("Unparseable UDP response")
		return nil
	}
	return res
}
