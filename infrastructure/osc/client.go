// Package osc carries the UDP transport: a server for incoming commands and
// a client for outgoing events.
package osc

import (
	"github.com/hypebeast/go-osc/osc"
	"github.com/rs/zerolog"

	"github.com/hibikido/hibikido/domain/invocation"
)

// ReadySignal is the /confirm payload emitted once the server accepts
// commands.
const ReadySignal = "hibikido_server_ready"

// Outgoing event addresses.
const (
	addrManifest    = "/manifest"
	addrConfirm     = "/confirm"
	addrError       = "/error"
	addrStatsResult = "/stats_result"
)

// Stats is the payload of one /stats_result event.
type Stats struct {
	Recordings   int
	Segments     int
	Effects      int
	Presets      int
	Embeddings   int
	ActiveNiches int
	Queued       int
}

// Client sends events to the receiver endpoint. Numeric wire arguments are
// int32/float32 per OSC convention.
type Client struct {
	client *osc.Client
	trace  zerolog.Logger
}

// NewClient creates a Client sending to ip:port.
func NewClient(ip string, port int, trace zerolog.Logger) *Client {
	return &Client{
		client: osc.NewClient(ip, port),
		trace:  trace,
	}
}

// Manifest emits one admitted sound. The sequence index orders
// manifestations within a performance.
func (c *Client) Manifest(seq int, m invocation.Manifestation) error {
	msg := osc.NewMessage(addrManifest)
	msg.Append(int32(seq))
	msg.Append(m.Collection())
	msg.Append(float32(m.Score()))
	msg.Append(m.Path())
	msg.Append(m.Description())
	msg.Append(float32(m.Start()))
	msg.Append(float32(m.End()))
	msg.Append(m.ParamsJSON())
	return c.send(msg)
}

// Confirm acknowledges a command.
func (c *Client) Confirm(text string) error {
	return c.send(osc.NewMessage(addrConfirm, text))
}

// Error reports a rejected or failed command.
func (c *Client) Error(text string) error {
	return c.send(osc.NewMessage(addrError, text))
}

// StatsResult emits the stats tuple as seven int32 arguments.
func (c *Client) StatsResult(s Stats) error {
	return c.send(osc.NewMessage(addrStatsResult,
		int32(s.Recordings),
		int32(s.Segments),
		int32(s.Effects),
		int32(s.Presets),
		int32(s.Embeddings),
		int32(s.ActiveNiches),
		int32(s.Queued),
	))
}

// Ready announces that the server is up and accepting commands.
func (c *Client) Ready() error {
	return c.Confirm(ReadySignal)
}

func (c *Client) send(msg *osc.Message) error {
	c.trace.Trace().Str("addr", msg.Address).Str("packet", msg.String()).Msg("send")
	return c.client.Send(msg)
}
