// Package natsink publishes session lifecycle events to NATS. It implements
// [sesstore.Sink]: each event is marshalled to JSON and published on its own
// subject ("session.created", "session.expired", ...), optionally under a
// configurable prefix, so consumers subscribe to exactly the transitions they
// care about.
//
// Events are notifications, never authoritative state — this is not session
// replication, and a lost message loses nothing but visibility.
package natsink

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/avrellin/sesstore"
)

// Config holds NATS connection settings.
type Config struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
	SubjectPrefix string        // prepended to event subjects when non-empty
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Name:          "sesstore",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// Sink publishes lifecycle events over a NATS connection.
type Sink struct {
	conn   *nats.Conn
	prefix string
}

// New connects to NATS with the given config and returns a ready sink.
// It returns an error if the initial connection fails.
func New(cfg Config) (*Sink, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[natsink] disconnected: %v", err)
			} else {
				log.Printf("[natsink] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[natsink] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[natsink] connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("natsink: connect: %w", err)
	}

	return &Sink{conn: nc, prefix: cfg.SubjectPrefix}, nil
}

// Emit publishes the event. Marshal or publish failures are logged and
// dropped; observability must never fail a store operation.
func (s *Sink) Emit(_ context.Context, event sesstore.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[natsink] marshal event: %v", err)
		return
	}

	subject := string(event.Type)
	if s.prefix != "" {
		subject = s.prefix + "." + subject
	}
	if err := s.conn.Publish(subject, data); err != nil {
		log.Printf("[natsink] publish %s: %v", subject, err)
	}
}

// Close flushes pending publishes and closes the connection.
func (s *Sink) Close() {
	if err := s.conn.Flush(); err != nil {
		log.Printf("[natsink] flush: %v", err)
	}
	s.conn.Close()
}
