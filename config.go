package sesstore

import (
	"errors"
	"time"
)

// IDStrategy selects how session identifiers are generated.
type IDStrategy int

const (
	// IDRandom generates 128-bit crypto/rand identifiers in base64url.
	// This is the default.
	IDRandom IDStrategy = iota
	// IDUUID generates RFC 4122 v4 UUID strings.
	IDUUID
)

/*
====================================
STORE CONFIG
====================================
*/

// Config controls a [Store]. The zero value is not usable; start from
// [DefaultConfig] and override what you need. Config is read once at [New]
// and never consulted for mutation afterwards.
type Config struct {
	// Now supplies the clock every expiry decision reads through.
	// Defaults to time.Now. Tests substitute a fake.
	Now func() time.Time

	// IDStrategy selects the identifier generator.
	IDStrategy IDStrategy

	// CreateRetries bounds how many fresh identifiers Create draws before
	// giving up with ErrIDConflict. Collisions are astronomically unlikely;
	// the bound exists so a broken entropy source fails loudly instead of
	// spinning.
	CreateRetries int

	Sweep  SweepConfig
	Events EventsConfig
}

/*
====================================
SWEEP CONFIG
====================================
*/

// SweepConfig tunes the background sweeper. Interval and BatchSize are
// deliberately tunable: the right values depend on session churn, not on
// anything this package can know.
type SweepConfig struct {
	// Interval between sweep passes.
	Interval time.Duration
	// BatchSize bounds how many dead entries one pass pulls from the front
	// of the expiry index.
	BatchSize int
}

/*
====================================
EVENTS CONFIG
====================================
*/

// EventsConfig controls asynchronous lifecycle event dispatch.
type EventsConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull makes Emit non-blocking: events beyond the buffer are
	// counted and discarded instead of stalling store operations.
	DropIfFull bool
	Sink       Sink
}

// DefaultConfig returns the preset every deployment starts from.
func DefaultConfig() Config {
	return Config{
		Now:           time.Now,
		IDStrategy:    IDRandom,
		CreateRetries: 3,
		Sweep: SweepConfig{
			Interval:  30 * time.Second,
			BatchSize: 256,
		},
		Events: EventsConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

func (c *Config) normalize() {
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.CreateRetries <= 0 {
		c.CreateRetries = 3
	}
	if c.Sweep.Interval <= 0 {
		c.Sweep.Interval = 30 * time.Second
	}
	if c.Sweep.BatchSize <= 0 {
		c.Sweep.BatchSize = 256
	}
	if c.Events.BufferSize <= 0 {
		c.Events.BufferSize = 1
	}
}

func (c *Config) validate() error {
	switch c.IDStrategy {
	case IDRandom, IDUUID:
	default:
		return errors.New("sesstore: unknown id strategy")
	}
	if c.Events.Enabled && c.Events.Sink == nil {
		return errors.New("sesstore: events enabled without a sink")
	}
	return nil
}
