package processor

import (
	"testing"
	"time"
)

func TestDetectorEvaluate(t *testing.T) {
	type step struct {
		ms       int
		loudness float64
		want     bool
	}

	tests := []struct {
		name     string
		mult     float64
		history  int
		cooldown time.Duration
		steps    []step
	}{
		{
			name:     "spike over steady level triggers",
			mult:     1.5,
			history:  5,
			cooldown: 300 * time.Millisecond,
			steps: []step{
				{0, 1, false},
				{10, 1, false},
				{20, 1, false},
				{30, 1, false},
				// mean 2.8, threshold 4.2
				{40, 10, true},
			},
		},
		{
			name:     "cooldown suppresses a second spike",
			mult:     1.5,
			history:  5,
			cooldown: 300 * time.Millisecond,
			steps: []step{
				{0, 1, false},
				{10, 1, false},
				{20, 1, false},
				{30, 1, false},
				{40, 10, true},
				// mean 4.6, threshold 6.9, but only 100ms since the trigger
				{140, 10, false},
				// mean 8.4, threshold 12.6, 400ms since the trigger
				{440, 20, true},
			},
		},
		{
			name:     "cooldown boundary is exclusive",
			mult:     1.5,
			history:  10,
			cooldown: 300 * time.Millisecond,
			steps: []step{
				{0, 1, false},
				{10, 1, false},
				{20, 1, false},
				{30, 100, true},
				{330, 1000, false},
				{331, 10000, true},
			},
		},
		{
			name:     "single-entry history never triggers",
			mult:     1.5,
			history:  1,
			cooldown: 0,
			steps: []step{
				{0, 1, false},
				{10, 100, false},
				{20, 10000, false},
			},
		},
		{
			name:     "first frame cannot exceed its own average",
			mult:     1.8,
			history:  10,
			cooldown: 200 * time.Millisecond,
			steps: []step{
				{0, 500, false},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(KindBeat, DetectorParams{
				Multiplier: func() float64 { return tt.mult },
				History:    func() int { return tt.history },
				Cooldown:   func() time.Duration { return tt.cooldown },
			})
			for i, s := range tt.steps {
				if got := d.Evaluate(s.loudness, at(s.ms)); got != s.want {
					t.Errorf("step %d (t=%dms, loudness %v): Evaluate = %v, want %v (threshold %v)",
						i, s.ms, s.loudness, got, s.want, d.State().Threshold)
				}
				if d.State().History.Len() > tt.history {
					t.Errorf("step %d: history length %d exceeds %d", i, d.State().History.Len(), tt.history)
				}
			}
		})
	}
}

func TestDetectorsReadConfig(t *testing.T) {
	cfg := testConfig()

	beat := NewBeatDetector(cfg)
	drum := NewDrumBreakDetector(cfg)
	if beat.Kind() != KindBeat || drum.Kind() != KindDrumBreak {
		t.Fatalf("kinds = %v, %v", beat.Kind(), drum.Kind())
	}
	if got := beat.State().History.Cap(); got != int(cfg.BeatHistory.Load()) {
		t.Errorf("beat history cap = %d, want %d", got, cfg.BeatHistory.Load())
	}
	if got := drum.State().History.Cap(); got != int(cfg.DrumBreakHistory.Load()) {
		t.Errorf("drum history cap = %d, want %d", got, cfg.DrumBreakHistory.Load())
	}

	// A reload shrinking the history takes effect on the next evaluation.
	for i := range 5 {
		beat.Evaluate(1, at(i*10))
	}
	cfg.BeatHistory.Store(2)
	beat.Evaluate(1, at(50))
	if got := beat.State().History.Len(); got != 2 {
		t.Errorf("beat history length after reload = %d, want 2", got)
	}
}
