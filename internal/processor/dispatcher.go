package processor

import (
	"time"

	"github.com/linuxmatters/wizsync/internal/config"
)

// LightCommand is one color/brightness update addressed to every endpoint
// configured at the time it was built.
type LightCommand struct {
	Color      config.RGB
	Brightness int
	Endpoints  []string
}

// Sink delivers a command to the lights. Implementations must not block for
// longer than a short write deadline.
type Sink interface {
	Send(cmd LightCommand) error
}

// Outcome is what the dispatcher did with a frame.
type Outcome int

const (
	OutcomeSent Outcome = iota
	OutcomeRateLimited
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Dispatcher rate-limits commands to at most one per min_update_interval.
// Frames inside the interval are dropped rather than queued, so the lights
// always show the most recent state.
type Dispatcher struct {
	cfg          *config.Config
	sink         Sink
	lastDispatch time.Time
}

// NewDispatcher creates a dispatcher sending through sink.
func NewDispatcher(cfg *config.Config, sink Sink) *Dispatcher {
	return &Dispatcher{cfg: cfg, sink: sink}
}

// LastDispatch returns the time of the most recent send attempt.
func (d *Dispatcher) LastDispatch() time.Time { return d.lastDispatch }

// Dispatch sends color and brightness if the interval has elapsed. A sink
// error still consumes the slot and is returned alongside OutcomeFailed.
func (d *Dispatcher) Dispatch(color config.RGB, brightness int, now time.Time) (LightCommand, Outcome, error) {
	if now.Sub(d.lastDispatch) < d.cfg.MinUpdateInterval.Load() {
		return LightCommand{}, OutcomeRateLimited, nil
	}

	cmd := LightCommand{
		Color:      color,
		Brightness: brightness,
		Endpoints:  d.cfg.LightIPs(),
	}
	d.lastDispatch = now

	if err := d.sink.Send(cmd); err != nil {
		return cmd, OutcomeFailed, err
	}
	return cmd, OutcomeSent, nil
}
