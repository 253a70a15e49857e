package processor

import (
	"time"

	"github.com/linuxmatters/wizsync/internal/config"
)

// DetectorKind names the percussive event a Detector looks for.
type DetectorKind int

const (
	KindBeat DetectorKind = iota
	KindDrumBreak
)

func (k DetectorKind) String() string {
	switch k {
	case KindBeat:
		return "beat"
	case KindDrumBreak:
		return "drum_break"
	default:
		return "unknown"
	}
}

// DetectorParams are the knobs a Detector reads on every evaluation, so a
// config reload takes effect on the next frame.
type DetectorParams struct {
	Multiplier func() float64
	History    func() int
	Cooldown   func() time.Duration
}

// DetectorState is the per-kind state carried between evaluations.
type DetectorState struct {
	History     *History
	LastTrigger time.Time
	Threshold   float64 // threshold computed on the latest evaluation
}

// Detector flags frames whose loudness exceeds a multiple of its recent
// average, subject to a per-kind cooldown. Beat and drum-break detectors
// share this implementation and differ only in their parameters.
type Detector struct {
	kind   DetectorKind
	params DetectorParams
	state  DetectorState
}

// NewDetector creates a detector of the given kind.
func NewDetector(kind DetectorKind, params DetectorParams) *Detector {
	return &Detector{
		kind:   kind,
		params: params,
		state:  DetectorState{History: NewHistory(params.History())},
	}
}

// NewBeatDetector reads beat_threshold, beat_history_size and the color-cycle
// duration (its cooldown) from cfg.
func NewBeatDetector(cfg *config.Config) *Detector {
	return NewDetector(KindBeat, DetectorParams{
		Multiplier: cfg.BeatThreshold.Load,
		History:    func() int { return int(cfg.BeatHistory.Load()) },
		Cooldown:   cfg.ColorCycleDuration.Load,
	})
}

// NewDrumBreakDetector reads drum_break_threshold, drum_break_history_size and
// the drum-break interval (its cooldown) from cfg.
func NewDrumBreakDetector(cfg *config.Config) *Detector {
	return NewDetector(KindDrumBreak, DetectorParams{
		Multiplier: cfg.DrumBreakThreshold.Load,
		History:    func() int { return int(cfg.DrumBreakHistory.Load()) },
		Cooldown:   cfg.DrumBreakInterval.Load,
	})
}

// Kind returns the detector kind.
func (d *Detector) Kind() DetectorKind { return d.kind }

// State exposes the detector state for inspection.
func (d *Detector) State() *DetectorState { return &d.state }

// Evaluate records loudness and reports whether it triggers: loudness must
// exceed mean(history) * multiplier and more than the cooldown must have
// passed since the previous trigger. The history includes the current value.
func (d *Detector) Evaluate(loudness float64, now time.Time) bool {
	st := &d.state

	st.History.SetCapacity(d.params.History())
	st.History.Push(loudness)

	st.Threshold = st.History.Mean() * d.params.Multiplier()

	if loudness > st.Threshold && now.Sub(st.LastTrigger) > d.params.Cooldown() {
		st.LastTrigger = now
		return true
	}
	return false
}
