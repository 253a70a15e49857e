package audio

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultPollInterval is how often the supervisor checks stream health.
const DefaultPollInterval = 100 * time.Millisecond

// SupervisorOption configures a Supervisor.
type SupervisorOption func(*Supervisor)

// WithSupervisorLogger sets the logger.
func WithSupervisorLogger(logger zerolog.Logger) SupervisorOption {
	return func(s *Supervisor) { s.logger = logger }
}

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) SupervisorOption {
	return func(s *Supervisor) { s.poll = d }
}

// WithReopenHook is called after every successful reopen.
func WithReopenHook(fn func()) SupervisorOption {
	return func(s *Supervisor) { s.onReopen = fn }
}

// Supervisor keeps a capture stream running. It opens the provider, then
// polls Active and reopens the stream whenever it dies. There is no backoff
// and no retry limit: a recoverable fault is retried on every poll.
type Supervisor struct {
	provider Provider
	params   func() Params
	handler  Handler
	logger   zerolog.Logger
	poll     time.Duration
	onReopen func()

	running atomic.Bool
	open    bool
	lost    bool // stream died and has not been reopened yet
	reopens atomic.Uint64
}

// NewSupervisor creates a supervisor. params is consulted on every open so a
// config reload applies on the next reopen.
func NewSupervisor(provider Provider, params func() Params, h Handler, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		provider: provider,
		params:   params,
		handler:  h,
		logger:   zerolog.Nop(),
		poll:     DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "supervisor").Logger()
	return s
}

// IsRunning reports whether Run is in its poll loop.
func (s *Supervisor) IsRunning() bool { return s.running.Load() }

// Reopens returns how many times the stream has been reopened.
func (s *Supervisor) Reopens() uint64 { return s.reopens.Load() }

// Run opens the stream and supervises it until ctx is cancelled, then stops
// and closes it. It returns ErrInvalidDevice from any open, and
// ErrStreamOpen from the first one; a reopen that hits ErrStreamOpen is
// retried like any other fault.
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("supervisor already running")
	}
	defer s.running.Store(false)

	s.logger.Info().Msg("supervisor starting")
	defer s.logger.Info().Msg("supervisor stopping")

	if err := s.start(); err != nil {
		if errors.Is(err, ErrInvalidDevice) || errors.Is(err, ErrStreamOpen) {
			return err
		}
		s.logger.Warn().Err(err).Msg("open failed, retrying")
	}

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case <-ticker.C:
		}

		if s.open && s.provider.Active() {
			continue
		}

		if s.open {
			s.logger.Warn().Err(ErrStreamInactive).Msg("reopening stream")
			s.shutdown()
			s.lost = true
		}
		if err := s.start(); err != nil {
			if errors.Is(err, ErrInvalidDevice) {
				return err
			}
			s.logger.Warn().Err(err).Msg("reopen failed, retrying")
			continue
		}
		if s.lost {
			s.lost = false
			s.reopens.Add(1)
			if s.onReopen != nil {
				s.onReopen()
			}
		}
	}
}

func (s *Supervisor) start() error {
	params := s.params()
	if err := s.provider.Open(params, s.handler); err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	if err := s.provider.Start(); err != nil {
		if cerr := s.provider.Close(); cerr != nil {
			s.logger.Debug().Err(cerr).Msg("close after failed start")
		}
		return fmt.Errorf("start stream: %w", err)
	}
	s.open = true
	s.logger.Info().
		Int("device", params.DeviceIndex).
		Int("channels", params.Channels).
		Int("frames_per_buffer", params.FramesPerBuffer).
		Msg("stream started")
	return nil
}

func (s *Supervisor) shutdown() {
	if !s.open {
		return
	}
	s.open = false
	if err := s.provider.Stop(); err != nil {
		s.logger.Warn().Err(err).Msg("stop stream")
	}
	if err := s.provider.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("close stream")
	}
}
