package processor

import (
	"time"

	"github.com/linuxmatters/wizsync/internal/config"
)

// drumBreakStep is how long each drum-break palette color is shown.
const drumBreakStep = 50 * time.Millisecond

// Mode is the override state.
type Mode int

const (
	ModeNormal Mode = iota
	ModeDrumBreakActive
	ModeBeatActive
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeDrumBreakActive:
		return "drum_break"
	case ModeBeatActive:
		return "beat"
	default:
		return "unknown"
	}
}

// OverrideState is the machine's state between frames.
type OverrideState struct {
	Mode       Mode
	Activation time.Time // when the current override began
	Index      int       // beat palette cycling index
}

// Output is the result of one override step.
type Output struct {
	Mode               Mode
	Color              config.RGB
	Brightness         int
	BeatTriggered      bool
	DrumBreakTriggered bool
}

// OverrideMachine arbitrates between drum-break and beat overrides and the
// loudness-driven color. Drum breaks take priority over beats.
type OverrideMachine struct {
	cfg       *config.Config
	drumBreak *Detector
	beat      *Detector
	mapper    *ColorMapper
	state     OverrideState
}

// NewOverrideMachine wires the detectors and mapper the machine consults.
func NewOverrideMachine(cfg *config.Config, drumBreak, beat *Detector, mapper *ColorMapper) *OverrideMachine {
	return &OverrideMachine{
		cfg:       cfg,
		drumBreak: drumBreak,
		beat:      beat,
		mapper:    mapper,
	}
}

// State exposes the override state for inspection.
func (o *OverrideMachine) State() OverrideState { return o.state }

// Step advances the machine by one active frame. Detectors are consulted
// only in states where their result can matter, so their history reflects
// the frames they were asked about.
func (o *OverrideMachine) Step(r Reading, now time.Time) Output {
	st := &o.state
	var out Output

	if st.Mode == ModeDrumBreakActive && now.Sub(st.Activation) >= o.cfg.DrumBreakInterval.Load() {
		st.Mode = ModeNormal
	} else if st.Mode != ModeDrumBreakActive && o.cfg.DrumBreakDetection.Load() && o.drumBreak.Evaluate(r.Loudness, now) {
		st.Mode = ModeDrumBreakActive
		st.Activation = now
		out.DrumBreakTriggered = true
	}

	if st.Mode == ModeDrumBreakActive {
		out.Mode = st.Mode
		out.Color = drumBreakColor(o.cfg.DrumBreakColors(), now.Sub(st.Activation))
		out.Brightness = ClampBrightness(MaxBrightness, int(o.cfg.MinBrightness.Load()))
		return out
	}

	if st.Mode == ModeBeatActive && now.Sub(st.Activation) >= o.cfg.BeatWindow.Load() {
		st.Mode = ModeNormal
	} else if o.cfg.BeatDetection.Load() && o.beat.Evaluate(r.Loudness, now) {
		st.Mode = ModeBeatActive
		st.Activation = now
		st.Index = 0
		out.BeatTriggered = true
	}

	out.Mode = st.Mode
	switch st.Mode {
	case ModeBeatActive:
		beats := o.cfg.BeatColors()
		if len(beats) > 0 {
			out.Color = beats[st.Index%len(beats)]
		}
		st.Index++
	default:
		out.Color = o.mapper.ColorFor(r.Loudness, r.Envelope, now)
	}
	out.Brightness = Brightness(o.cfg, r.Loudness, r.Peak)
	return out
}

// drumBreakColor cycles the palette every drumBreakStep since activation.
func drumBreakColor(palette config.Palette, elapsed time.Duration) config.RGB {
	if len(palette) == 0 {
		return config.RGB{R: MaxBrightness, G: MaxBrightness, B: MaxBrightness}
	}
	if elapsed < 0 {
		elapsed = 0
	}
	return palette[int(elapsed/drumBreakStep)%len(palette)]
}
