package processor

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"github.com/linuxmatters/wizsync/internal/audio"
	"github.com/linuxmatters/wizsync/internal/config"
)

// FrameResult summarises one processed frame for observers.
type FrameResult struct {
	Time     time.Time
	Reading  Reading
	Output   Output
	Command  LightCommand
	Outcome  Outcome
	SendErr  error
	Analysed bool // false for silent or quiet frames, which stop after estimation
}

// FrameObserver receives every FrameResult on the capture goroutine. It must
// not block.
type FrameObserver interface {
	ObserveFrame(FrameResult)
}

// ObserverFunc adapts a function to FrameObserver.
type ObserverFunc func(FrameResult)

func (f ObserverFunc) ObserveFrame(r FrameResult) { f(r) }

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. Warnings from the frame path are burst-sampled.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithRand sets the RNG used for randomised palette reversal.
func WithRand(rng *rand.Rand) Option {
	return func(p *Pipeline) { p.rng = rng }
}

// WithObserver adds an observer. Observers run in the order added.
func WithObserver(o FrameObserver) Option {
	return func(p *Pipeline) { p.observers = append(p.observers, o) }
}

// WithClock replaces time.Now for frames that carry no capture time.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// Pipeline runs one frame at a time through estimation, override
// arbitration and dispatch. It is driven from a single capture goroutine and
// is not safe for concurrent use.
type Pipeline struct {
	cfg       *config.Config
	logger    zerolog.Logger
	hotLog    zerolog.Logger
	rng       *rand.Rand
	now       func() time.Time
	observers []FrameObserver

	estimator  *VolumeEstimator
	machine    *OverrideMachine
	dispatcher *Dispatcher
}

// NewPipeline assembles a pipeline sending commands to sink.
func NewPipeline(cfg *config.Config, sink Sink, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.rng == nil {
		p.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	p.logger = p.logger.With().Str("component", "pipeline").Logger()
	p.hotLog = p.logger.Sample(&zerolog.BurstSampler{
		Burst:  5,
		Period: 10 * time.Second,
	})

	p.estimator = NewVolumeEstimator(cfg)
	p.machine = NewOverrideMachine(cfg,
		NewDrumBreakDetector(cfg),
		NewBeatDetector(cfg),
		NewColorMapper(cfg, p.rng, p.now()),
	)
	p.dispatcher = NewDispatcher(cfg, sink)
	return p
}

// Estimator returns the pipeline's volume estimator.
func (p *Pipeline) Estimator() *VolumeEstimator { return p.estimator }

// Machine returns the pipeline's override machine.
func (p *Pipeline) Machine() *OverrideMachine { return p.machine }

// Dispatcher returns the pipeline's dispatcher.
func (p *Pipeline) Dispatcher() *Dispatcher { return p.dispatcher }

// Handle is the audio.Handler for the capture provider.
func (p *Pipeline) Handle(frame audio.Frame) {
	if _, err := p.Process(frame); err != nil && !errors.Is(err, ErrEmptyFrame) {
		p.hotLog.Warn().Err(err).Msg("frame dropped")
	}
}

// Process runs frame through the pipeline and notifies observers. Empty
// frames return ErrEmptyFrame and are not observed.
func (p *Pipeline) Process(frame audio.Frame) (FrameResult, error) {
	now := frame.Time
	if now.IsZero() {
		now = p.now()
	}

	reading, err := p.estimator.Estimate(frame)
	if err != nil {
		return FrameResult{}, err
	}
	if reading.Fault != nil {
		p.hotLog.Warn().Err(reading.Fault).Float64("substitute", reading.Loudness).Msg("loudness substituted")
	}

	result := FrameResult{Time: now, Reading: reading}
	if reading.Status != StatusActive {
		p.notify(result)
		return result, nil
	}

	result.Analysed = true
	result.Output = p.machine.Step(reading, now)
	result.Command, result.Outcome, result.SendErr = p.dispatcher.Dispatch(result.Output.Color, result.Output.Brightness, now)
	if result.SendErr != nil {
		p.hotLog.Warn().Err(result.SendErr).Msg("light command failed")
	}

	p.notify(result)
	return result, nil
}

func (p *Pipeline) notify(r FrameResult) {
	for _, o := range p.observers {
		o.ObserveFrame(r)
	}
}
