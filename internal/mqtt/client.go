// Package mqtt publishes canonical light state to an MQTT broker and
// accepts set commands, so the daemon plugs into Home Assistant-style
// platforms without them speaking the bulb protocol.
package mqtt

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

// Handler handles one inbound broker message.
type Handler func(Message)

// Message is the broker message type, re-exported for callers.
type Message = mqtt.Message

// Client is a thin wrapper over the paho client with the connection
// options this daemon needs.
type Client struct {
	cli mqtt.Client
}

// Connect dials the broker. Supported schemes: mqtt/tcp, ssl/tls,
// ws/wss. Credentials come from the URL userinfo.
func Connect(brokerURL string, connectTimeout time.Duration) (*Client, error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid broker url: %w", err)
	}

	server := u.Host
	switch u.Scheme {
	case "mqtt", "tcp":
		server = "tcp://" + server
	case "ssl", "tls":
		server = "ssl://" + server
	case "ws", "wss":
		server = u.Scheme + "://" + server + u.Path
	default:
		return nil, fmt.Errorf("unsupported broker scheme %q", u.Scheme)
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(server)
	opts.SetClientID("sengledd-" + time.Now().Format("150405.000"))
	opts.SetConnectTimeout(connectTimeout)
	opts.SetAutoReconnect(true)
	opts.OnConnect = func(c mqtt.Client) { log.Info().Str("broker", u.Host).Msg("MQTT connected") }
	opts.OnConnectionLost = func(c mqtt.Client, err error) { log.Error().Err(err).Msg("MQTT connection lost") }

	if u.User != nil {
		pw, _ := u.User.Password()
		opts.SetUsername(u.User.Username())
		opts.SetPassword(pw)
	}
	if u.Scheme == "ssl" || u.Scheme == "tls" || u.Scheme == "wss" {
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: true})
	}

	cli := mqtt.NewClient(opts)
	if t := cli.Connect(); t.Wait() && t.Error() != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", t.Error())
	}
	return &Client{cli: cli}, nil
}

// Publish sends a payload, optionally retained.
func (c *Client) Publish(topic string, payload []byte, retain bool) error {
	t := c.cli.Publish(topic, 0, retain, payload)
	if t.Wait() && t.Error() != nil {
		return t.Error()
	}
	return nil
}

// Subscribe registers a handler for a topic filter.
func (c *Client) Subscribe(topic string, cb Handler) error {
	t := c.cli.Subscribe(topic, 0, func(_ mqtt.Client, m mqtt.Message) { cb(m) })
	if t.Wait() && t.Error() != nil {
		return t.Error()
	}
	log.Info().Str("topic", topic).Msg("MQTT subscribed")
	return nil
}

// Disconnect closes the broker connection.
func (c *Client) Disconnect() {
	c.cli.Disconnect(250)
}
