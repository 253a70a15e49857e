package processor

import (
	"math/rand/v2"
	"testing"

	"github.com/linuxmatters/wizsync/internal/config"
)

var drumPalette = config.Palette{
	{R: 1, G: 1, B: 1}, {R: 2, G: 2, B: 2}, {R: 3, G: 3, B: 3}, {R: 4, G: 4, B: 4},
}

func newTestMachine(cfg *config.Config) *OverrideMachine {
	return NewOverrideMachine(cfg,
		NewDrumBreakDetector(cfg),
		NewBeatDetector(cfg),
		NewColorMapper(cfg, rand.New(rand.NewPCG(1, 2)), at(-1000)),
	)
}

func level(l float64) Reading {
	return Reading{Loudness: l, Envelope: l, Peak: l, Status: StatusActive}
}

// warmUp feeds five steady frames ending 10ms before t=0.
func warmUp(t *testing.T, m *OverrideMachine) {
	t.Helper()
	for i := range 5 {
		out := m.Step(level(1), at(-50+i*10))
		if out.Mode != ModeNormal {
			t.Fatalf("warm-up frame %d left normal mode: %v", i, out.Mode)
		}
	}
}

func TestOverrideBothTriggersPreferDrumBreak(t *testing.T) {
	cfg := testConfig()
	cfg.DrumBreakDetection.Store(true)
	cfg.BeatDetection.Store(true)
	m := newTestMachine(cfg)
	warmUp(t, m)

	out := m.Step(level(100), at(0))
	if out.Mode != ModeDrumBreakActive {
		t.Fatalf("Mode = %v, want drum_break", out.Mode)
	}
	if !out.DrumBreakTriggered || out.BeatTriggered {
		t.Errorf("triggers = drum %v beat %v, want drum only", out.DrumBreakTriggered, out.BeatTriggered)
	}
	if out.Brightness != MaxBrightness {
		t.Errorf("Brightness = %d, want %d", out.Brightness, MaxBrightness)
	}
}

func TestOverrideDrumBreakCycle(t *testing.T) {
	cfg := testConfig()
	cfg.DrumBreakDetection.Store(true)
	cfg.SetDrumBreakColors(drumPalette)
	m := newTestMachine(cfg)
	warmUp(t, m)

	if out := m.Step(level(100), at(0)); !out.DrumBreakTriggered {
		t.Fatal("drum break did not trigger")
	}

	tests := []struct {
		ms        int
		wantMode  Mode
		wantColor config.RGB
	}{
		{49, ModeDrumBreakActive, drumPalette[0]},
		{50, ModeDrumBreakActive, drumPalette[1]},
		{130, ModeDrumBreakActive, drumPalette[2]},
		{199, ModeDrumBreakActive, drumPalette[3]},
	}
	for _, tt := range tests {
		out := m.Step(level(1), at(tt.ms))
		if out.Mode != tt.wantMode || out.Color != tt.wantColor {
			t.Errorf("t=%dms: mode %v color %v, want %v %v", tt.ms, out.Mode, out.Color, tt.wantMode, tt.wantColor)
		}
		if out.DrumBreakTriggered {
			t.Errorf("t=%dms: retriggered while active", tt.ms)
		}
	}

	out := m.Step(level(1000), at(200))
	if out.Mode != ModeNormal {
		t.Errorf("t=200ms: mode %v, want normal", out.Mode)
	}
	if out.DrumBreakTriggered {
		t.Error("t=200ms: detector evaluated on the expiry frame")
	}
}

func TestOverrideBeatCycle(t *testing.T) {
	cfg := testConfig()
	cfg.BeatDetection.Store(true)
	beats := config.DefaultBeatColors
	m := newTestMachine(cfg)
	warmUp(t, m)

	out := m.Step(level(100), at(0))
	if !out.BeatTriggered || out.Mode != ModeBeatActive {
		t.Fatalf("beat did not trigger: %+v", out)
	}
	if out.Color != beats[0] {
		t.Errorf("first beat color = %v, want %v", out.Color, beats[0])
	}

	for i, ms := range []int{10, 20, 30} {
		out := m.Step(level(1), at(ms))
		want := beats[(i+1)%len(beats)]
		if out.Mode != ModeBeatActive || out.Color != want {
			t.Errorf("t=%dms: mode %v color %v, want beat %v", ms, out.Mode, out.Color, want)
		}
	}

	out = m.Step(level(1), at(1000))
	if out.Mode != ModeNormal || out.BeatTriggered {
		t.Errorf("t=1000ms: %+v, want normal without trigger", out)
	}
}

func TestOverrideDetectionDisabled(t *testing.T) {
	cfg := testConfig()
	m := newTestMachine(cfg)
	warmUp(t, m)

	out := m.Step(level(100), at(0))
	if out.Mode != ModeNormal || out.BeatTriggered || out.DrumBreakTriggered {
		t.Errorf("Step with detection off = %+v, want normal", out)
	}
	if n := m.drumBreak.State().History.Len(); n != 0 {
		t.Errorf("drum detector evaluated %d times while disabled", n)
	}
}

func TestOverrideNormalUsesMapperAndBrightness(t *testing.T) {
	cfg := testConfig()
	cfg.SetVividColors(rgb)
	cfg.UserBrightness.Store(180)
	m := newTestMachine(cfg)

	out := m.Step(Reading{Loudness: 5, Envelope: 10, Peak: 10, Status: StatusActive}, at(0))
	if out.Color != green {
		t.Errorf("Color = %v, want %v", out.Color, green)
	}
	if out.Brightness != 180 {
		t.Errorf("Brightness = %d, want 180", out.Brightness)
	}
}
