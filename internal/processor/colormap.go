package processor

import (
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/linuxmatters/wizsync/internal/config"
)

// Bounds for randomised reversal intervals, inclusive.
const (
	minRandomReversal = 3000 * time.Millisecond
	maxRandomReversal = 10000 * time.Millisecond
)

// ColorMapper maps normalised loudness onto the vivid palette. It owns a
// working copy of the palette whose order flips every reversal interval.
type ColorMapper struct {
	cfg *config.Config
	rng *rand.Rand

	palette      config.Palette
	reversed     bool
	interval     time.Duration
	lastReversal time.Time
	generation   uint64
}

// NewColorMapper creates a mapper whose first reversal is due one interval
// after start. rng drives randomised intervals.
func NewColorMapper(cfg *config.Config, rng *rand.Rand, start time.Time) *ColorMapper {
	m := &ColorMapper{
		cfg:          cfg,
		rng:          rng,
		lastReversal: start,
	}
	m.reset()
	return m
}

func (m *ColorMapper) reset() {
	m.palette = m.cfg.VividColors().Clone()
	m.reversed = false
	m.interval = m.cfg.ReversalInterval.Load()
	m.generation = m.cfg.Generation()
}

// Palette returns a copy of the working palette in its current order.
func (m *ColorMapper) Palette() config.Palette { return m.palette.Clone() }

// Reversed reports whether the working palette is currently flipped.
func (m *ColorMapper) Reversed() bool { return m.reversed }

// Interval returns the time until the next reversal is due, measured from
// the previous one.
func (m *ColorMapper) Interval() time.Duration { return m.interval }

// Reverse flips the working palette in place.
func (m *ColorMapper) Reverse() {
	slices.Reverse(m.palette)
	m.reversed = !m.reversed
}

// ColorFor returns the color for loudness normalised by envelope.
func (m *ColorMapper) ColorFor(loudness, envelope float64, now time.Time) config.RGB {
	if m.generation != m.cfg.Generation() {
		m.reset()
	}

	if m.cfg.ReverseColors.Load() && now.Sub(m.lastReversal) >= m.interval {
		m.Reverse()
		m.lastReversal = now
		if m.cfg.RandomReversal.Load() {
			m.interval = m.randomInterval()
		}
	}

	n := 1.0
	if envelope > 0 {
		n = loudness / envelope
	}
	if !isFinite(n) {
		n = 1
	}

	return MapColor(m.palette, n, m.cfg.Interpolation.Load())
}

func (m *ColorMapper) randomInterval() time.Duration {
	steps := int64((maxRandomReversal-minRandomReversal)/time.Millisecond) + 1
	return minRandomReversal + time.Duration(m.rng.Int64N(steps))*time.Millisecond
}

// MapColor splits [0, 1] into len(palette)-1 equal segments and picks the
// segment containing n. With interpolation the result blends toward the next
// entry with an eased weight sqrt(factor); without it the segment's start
// color is returned. n above 1 extrapolates along the last segment and the
// channels are clamped. The palette must hold at least 2 colors.
func MapColor(palette config.Palette, n float64, interpolate bool) config.RGB {
	size := len(palette)
	switch size {
	case 0:
		return config.RGB{}
	case 1:
		return palette[0]
	}

	segments := size - 1
	pos := n * float64(segments)
	idx := int(math.Floor(pos))
	if idx < 0 {
		idx = 0
	}
	if idx > size-2 {
		idx = size - 2
	}
	factor := pos - float64(idx)

	from := palette[idx%size]
	to := palette[(idx+1)%size]
	return Interpolate(from, to, factor, interpolate)
}

// Interpolate blends from toward to by sqrt(factor), truncating each channel.
func Interpolate(from, to config.RGB, factor float64, enabled bool) config.RGB {
	if !enabled {
		return from
	}
	if factor < 0 {
		factor = 0
	}
	blend := math.Sqrt(factor)
	mix := func(a, b uint8) uint8 {
		v := (1-blend)*float64(a) + blend*float64(b)
		return clampChannel(int(v))
	}
	return config.RGB{
		R: mix(from.R, to.R),
		G: mix(from.G, to.G),
		B: mix(from.B, to.B),
	}
}

func clampChannel(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
