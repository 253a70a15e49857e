// Package processor turns captured audio frames into light commands: loudness
// estimation, beat and drum-break detection, palette color mapping, the
// override state machine, and rate-limited dispatch.
package processor

import (
	"errors"
	"math"

	"github.com/linuxmatters/wizsync/internal/audio"
	"github.com/linuxmatters/wizsync/internal/config"
)

const (
	// int16Scale maps float samples onto the signed 16-bit amplitude scale the
	// loudness thresholds were tuned for.
	int16Scale = 32767.0

	// expansionExponent widens the dynamic range of the loudness scalar.
	expansionExponent = 1.2

	// QuietThreshold is the loudness below which a frame is analysed but
	// neither detected on nor dispatched.
	QuietThreshold = 0.01

	// initialPeak seeds the running loudness peak used by dynamic brightness.
	initialPeak = 1.0
)

var (
	// ErrEmptyFrame is returned for a frame with no samples. Skip the frame.
	ErrEmptyFrame = errors.New("empty audio frame")

	// ErrNumericFault marks a frame whose loudness came out NaN or infinite.
	// The reading carries the last valid loudness instead.
	ErrNumericFault = errors.New("non-finite loudness")
)

// Status classifies a reading for the rest of the pipeline.
type Status int

const (
	// StatusActive frames go through detection and dispatch.
	StatusActive Status = iota
	// StatusSilent frames were all-zero; no state was touched.
	StatusSilent
	// StatusQuiet frames updated the smoothing history and envelope but are
	// below QuietThreshold, so detection and dispatch are skipped.
	StatusQuiet
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusSilent:
		return "silent"
	case StatusQuiet:
		return "quiet"
	default:
		return "unknown"
	}
}

// Reading is the Volume Estimator's output for one frame.
type Reading struct {
	RMS      float64 // raw RMS before smoothing and expansion
	Loudness float64 // sanitised, smoothed, expanded loudness
	Envelope float64 // adaptive envelope maximum after this frame
	Peak     float64 // highest loudness seen so far
	Status   Status
	Fault    error // ErrNumericFault when Loudness was substituted
}

// LoudnessState is the estimator's persistent state between frames.
type LoudnessState struct {
	Smoothing *History
	LastValid float64
	Envelope  float64
	Peak      float64
}

// VolumeEstimator converts frames into a loudness scalar and tracks an
// adaptive envelope (fast attack, slow decay) used for normalisation.
type VolumeEstimator struct {
	cfg   *config.Config
	state LoudnessState
}

// NewVolumeEstimator creates an estimator reading its knobs from cfg.
func NewVolumeEstimator(cfg *config.Config) *VolumeEstimator {
	return &VolumeEstimator{
		cfg: cfg,
		state: LoudnessState{
			Smoothing: NewHistory(int(cfg.SmoothingHistory.Load())),
			Peak:      initialPeak,
		},
	}
}

// State exposes the estimator state for inspection.
func (e *VolumeEstimator) State() *LoudnessState {
	return &e.state
}

// Estimate computes the loudness of frame and updates the estimator state.
//
// All-zero frames return a StatusSilent reading without touching any state.
// A non-finite result is replaced by the last valid loudness and reported
// through Reading.Fault rather than the error return, since the reading is
// still usable.
func (e *VolumeEstimator) Estimate(frame audio.Frame) (Reading, error) {
	samples := frame.Samples()
	if len(samples) == 0 {
		return Reading{}, ErrEmptyFrame
	}

	st := &e.state

	var sumSquares float64
	silent := true
	for _, s := range samples {
		q := quantize(s)
		if q != 0 {
			silent = false
		}
		sumSquares += q * q
	}
	if silent {
		return Reading{
			Loudness: st.LastValid,
			Envelope: st.Envelope,
			Peak:     st.Peak,
			Status:   StatusSilent,
		}, nil
	}

	rms := math.Sqrt(sumSquares / float64(len(samples)))

	loudness := rms
	if e.cfg.Smoothing.Load() && isFinite(rms) {
		st.Smoothing.SetCapacity(int(e.cfg.SmoothingHistory.Load()))
		st.Smoothing.Push(rms)
		loudness = st.Smoothing.Mean()
	}

	loudness = math.Pow(loudness, expansionExponent)

	var fault error
	if isFinite(loudness) {
		st.LastValid = loudness
	} else {
		loudness = st.LastValid
		fault = ErrNumericFault
	}

	st.Envelope = updateEnvelope(st.Envelope, loudness, e.cfg.UpperThreshold.Load(), e.cfg.LowerThreshold.Load())
	if loudness > st.Peak {
		st.Peak = loudness
	}

	status := StatusActive
	if loudness < QuietThreshold {
		status = StatusQuiet
	}

	return Reading{
		RMS:      rms,
		Loudness: loudness,
		Envelope: st.Envelope,
		Peak:     st.Peak,
		Status:   status,
		Fault:    fault,
	}, nil
}

// updateEnvelope jumps straight to loudness when it clears the envelope by
// more than upper, and otherwise decays by lower per frame, never below 0.
func updateEnvelope(envelope, loudness, upper, lower float64) float64 {
	switch {
	case loudness > envelope+upper:
		return loudness
	case loudness < envelope-lower:
		return math.Max(envelope-lower, 0)
	default:
		return envelope
	}
}

// quantize scales a float sample to the int16 range with truncation toward
// zero. NaN passes through so the fault path can see it.
func quantize(s float32) float64 {
	q := math.Trunc(float64(s) * int16Scale)
	if q > math.MaxInt16 {
		return math.MaxInt16
	}
	if q < math.MinInt16 {
		return math.MinInt16
	}
	return q
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
