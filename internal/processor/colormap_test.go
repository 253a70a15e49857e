package processor

import (
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/linuxmatters/wizsync/internal/config"
)

var (
	red   = config.RGB{R: 255}
	green = config.RGB{G: 255}
	blue  = config.RGB{B: 255}
	rgb   = config.Palette{red, green, blue}
)

func TestMapColor(t *testing.T) {
	tests := []struct {
		name        string
		n           float64
		interpolate bool
		want        config.RGB
	}{
		{"start of range", 0, true, red},
		{"midpoint lands on middle entry", 0.5, true, green},
		{"end of range", 1, true, blue},
		// factor 0.5, eased weight sqrt(0.5)
		{"eased blend", 0.25, true, config.RGB{R: 74, G: 180}},
		{"no interpolation uses segment start", 0.75, false, green},
		{"no interpolation at start", 0.2, false, red},
		{"negative clamps to first entry", -1, true, red},
		{"overshoot extrapolates and clamps", 2, true, blue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapColor(rgb, tt.n, tt.interpolate); got != tt.want {
				t.Errorf("MapColor(n=%v) = %v, want %v", tt.n, got, tt.want)
			}
		})
	}
}

func TestMapColorSegmentBoundaries(t *testing.T) {
	palette := config.DefaultVividColors
	segments := len(palette) - 1
	for i := range palette {
		n := float64(i) / float64(segments)
		if got := MapColor(palette, n, true); got != palette[i] {
			t.Errorf("boundary %d (n=%v) = %v, want %v", i, n, got, palette[i])
		}
	}
}

func TestInterpolateDisabled(t *testing.T) {
	if got := Interpolate(red, blue, 0.9, false); got != red {
		t.Errorf("Interpolate(disabled) = %v, want %v", got, red)
	}
	if got := Interpolate(red, blue, -0.5, true); got != red {
		t.Errorf("Interpolate(negative factor) = %v, want %v", got, red)
	}
}

func TestColorMapperReverse(t *testing.T) {
	cfg := testConfig()
	m := NewColorMapper(cfg, rand.New(rand.NewPCG(1, 2)), at(0))
	orig := m.Palette()

	m.Reverse()
	reversed := m.Palette()
	if reversed[0] != orig[len(orig)-1] || !m.Reversed() {
		t.Fatalf("after one reversal palette = %v", reversed)
	}
	m.Reverse()
	if got := m.Palette(); !slices.Equal(got, orig) || m.Reversed() {
		t.Errorf("double reversal = %v, want %v", got, orig)
	}
}

func TestColorMapperTimedReversal(t *testing.T) {
	cfg := testConfig()
	cfg.SetVividColors(rgb)
	cfg.ReverseColors.Store(true)
	cfg.ReversalInterval.Store(5 * time.Second)
	m := NewColorMapper(cfg, rand.New(rand.NewPCG(1, 2)), at(0))

	if got := m.ColorFor(0, 1, at(4999)); got != red {
		t.Errorf("before interval: %v, want %v", got, red)
	}
	if got := m.ColorFor(0, 1, at(5000)); got != blue {
		t.Errorf("at interval: %v, want %v (reversed)", got, blue)
	}
	if got := m.ColorFor(0, 1, at(9999)); got != blue {
		t.Errorf("inside second interval: %v, want %v", got, blue)
	}
	if got := m.ColorFor(0, 1, at(10000)); got != red {
		t.Errorf("second reversal: %v, want %v", got, red)
	}
}

func TestColorMapperReversalDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.SetVividColors(rgb)
	m := NewColorMapper(cfg, rand.New(rand.NewPCG(1, 2)), at(0))

	if got := m.ColorFor(0, 1, at(60000)); got != red || m.Reversed() {
		t.Errorf("ColorFor with reversal off = %v (reversed %v), want %v", got, m.Reversed(), red)
	}
}

func TestColorMapperRandomInterval(t *testing.T) {
	cfg := testConfig()
	cfg.ReverseColors.Store(true)
	cfg.RandomReversal.Store(true)
	cfg.ReversalInterval.Store(time.Second)
	m := NewColorMapper(cfg, rand.New(rand.NewPCG(42, 7)), at(0))

	now := at(0)
	for i := range 20 {
		now = now.Add(m.Interval())
		m.ColorFor(1, 1, now)
		if iv := m.Interval(); iv < minRandomReversal || iv > maxRandomReversal {
			t.Fatalf("reversal %d: interval %v outside [%v, %v]", i, iv, minRandomReversal, maxRandomReversal)
		}
		if iv := m.Interval(); iv%time.Millisecond != 0 {
			t.Errorf("reversal %d: interval %v not whole milliseconds", i, iv)
		}
	}
}

func TestColorMapperNormalisation(t *testing.T) {
	cfg := testConfig()
	cfg.SetVividColors(rgb)
	m := NewColorMapper(cfg, rand.New(rand.NewPCG(1, 2)), at(0))

	tests := []struct {
		name     string
		loudness float64
		envelope float64
		want     config.RGB
	}{
		{"half envelope", 5, 10, green},
		{"zero envelope treated as full", 5, 0, blue},
		{"negative envelope treated as full", 5, -1, blue},
		{"silence against envelope", 0, 10, red},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.ColorFor(tt.loudness, tt.envelope, at(10)); got != tt.want {
				t.Errorf("ColorFor(%v, %v) = %v, want %v", tt.loudness, tt.envelope, got, tt.want)
			}
		})
	}
}

func TestColorMapperResetsOnPaletteChange(t *testing.T) {
	cfg := testConfig()
	cfg.SetVividColors(rgb)
	m := NewColorMapper(cfg, rand.New(rand.NewPCG(1, 2)), at(0))
	m.Reverse()

	mono := config.Palette{{R: 10, G: 10, B: 10}, {R: 20, G: 20, B: 20}}
	cfg.SetVividColors(mono)

	if got := m.ColorFor(0, 1, at(10)); got != mono[0] {
		t.Errorf("after palette change = %v, want %v", got, mono[0])
	}
	if m.Reversed() {
		t.Error("working palette still reversed after reload")
	}
}
