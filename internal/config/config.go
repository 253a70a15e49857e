// Package config holds the tunable parameters shared by the capture goroutine
// and the configuration-load path.
//
// Scalars are individually atomic. Palettes and the endpoint list are replaced
// whole through atomic pointers, so a reload is never observed half-applied
// by a reader of any single field.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// SampleRate is the fixed capture rate in Hz.
const SampleRate = 48000

// RGB is a single color, serialised as a [r, g, b] array.
type RGB struct {
	R, G, B uint8
}

// MarshalJSON encodes the color as a three-element array.
func (c RGB) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]int{int(c.R), int(c.G), int(c.B)})
}

// UnmarshalJSON decodes a [r, g, b] array. Each channel must be in 0..255.
// Extra elements are ignored; older config files sometimes carry them.
func (c *RGB) UnmarshalJSON(data []byte) error {
	var raw []int
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("color must be an array of integers: %w", err)
	}
	if len(raw) < 3 {
		return fmt.Errorf("color needs 3 channels, got %d", len(raw))
	}
	for i := 0; i < 3; i++ {
		if raw[i] < 0 || raw[i] > 255 {
			return fmt.Errorf("color channel %d out of range: %d", i, raw[i])
		}
	}
	c.R, c.G, c.B = uint8(raw[0]), uint8(raw[1]), uint8(raw[2])
	return nil
}

// String renders the color as #rrggbb.
func (c RGB) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Palette is an ordered list of colors.
type Palette []RGB

// Clone returns an independent copy of the palette.
func (p Palette) Clone() Palette {
	return slices.Clone(p)
}

// Float is an atomically accessed float64.
type Float struct {
	bits atomic.Uint64
}

func (f *Float) Load() float64 {
	return math.Float64frombits(f.bits.Load())
}

func (f *Float) Store(v float64) {
	f.bits.Store(math.Float64bits(v))
}

// Duration is an atomically accessed time.Duration.
type Duration struct {
	ns atomic.Int64
}

func (d *Duration) Load() time.Duration {
	return time.Duration(d.ns.Load())
}

func (d *Duration) Store(v time.Duration) {
	d.ns.Store(int64(v))
}

// Config is the full set of tunables. The zero value is not useful; use Default.
type Config struct {
	// audio
	DeviceIndex     atomic.Int64
	Channels        atomic.Int64
	FramesPerBuffer atomic.Int64

	// brightness
	MinBrightness     atomic.Int64
	UserBrightness    atomic.Int64
	DynamicBrightness atomic.Bool

	// visualization
	UpperThreshold     Float
	LowerThreshold     Float
	MinUpdateInterval  Duration
	DrumBreakThreshold Float
	DrumBreakHistory   atomic.Int64
	DrumBreakInterval  Duration // both the drum-break window and its re-trigger cooldown
	BeatThreshold      Float
	BeatHistory        atomic.Int64
	ColorCycleDuration Duration // beat re-trigger cooldown
	BeatWindow         Duration
	SmoothingHistory   atomic.Int64

	// network
	UDPPort  atomic.Int64
	lightIPs atomic.Pointer[[]string]

	// features
	Smoothing          atomic.Bool
	ReverseColors      atomic.Bool
	RandomReversal     atomic.Bool
	ReversalInterval   Duration
	Interpolation      atomic.Bool
	DrumBreakDetection atomic.Bool
	BeatDetection      atomic.Bool

	// color_settings
	vivid     atomic.Pointer[Palette]
	beat      atomic.Pointer[Palette]
	drumBreak atomic.Pointer[Palette]

	generation atomic.Uint64
}

// Default palettes used when the configuration document has none.
var (
	DefaultVividColors = Palette{
		{255, 0, 0}, {255, 127, 0}, {255, 255, 0}, {0, 255, 0},
		{0, 0, 255}, {75, 0, 130}, {148, 0, 211},
	}
	DefaultBeatColors = Palette{
		{255, 255, 255}, {255, 0, 255}, {0, 255, 255},
	}
	DefaultDrumBreakColors = Palette{
		{255, 255, 255}, {255, 0, 0}, {255, 255, 255}, {0, 0, 255},
	}
)

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	c := &Config{}

	c.DeviceIndex.Store(-1)
	c.Channels.Store(2)
	c.FramesPerBuffer.Store(256)

	c.MinBrightness.Store(50)
	c.UserBrightness.Store(255)
	c.DynamicBrightness.Store(false)

	c.UpperThreshold.Store(0.05)
	c.LowerThreshold.Store(0.01)
	c.MinUpdateInterval.Store(100 * time.Millisecond)
	c.DrumBreakThreshold.Store(1.8)
	c.DrumBreakHistory.Store(10)
	c.DrumBreakInterval.Store(200 * time.Millisecond)
	c.BeatThreshold.Store(1.5)
	c.BeatHistory.Store(5)
	c.ColorCycleDuration.Store(300 * time.Millisecond)
	c.BeatWindow.Store(1000 * time.Millisecond)
	c.SmoothingHistory.Store(10)

	c.UDPPort.Store(38899)
	c.SetLightIPs(nil)

	c.Smoothing.Store(false)
	c.ReverseColors.Store(true)
	c.RandomReversal.Store(false)
	c.ReversalInterval.Store(5000 * time.Millisecond)
	c.Interpolation.Store(true)
	c.DrumBreakDetection.Store(false)
	c.BeatDetection.Store(false)

	storePalette(&c.vivid, DefaultVividColors)
	c.SetBeatColors(DefaultBeatColors)
	c.SetDrumBreakColors(DefaultDrumBreakColors)

	return c
}

// LightIPs returns the current endpoint list. The slice must not be modified.
func (c *Config) LightIPs() []string {
	if p := c.lightIPs.Load(); p != nil {
		return *p
	}
	return nil
}

// SetLightIPs replaces the endpoint list.
func (c *Config) SetLightIPs(ips []string) {
	cp := slices.Clone(ips)
	c.lightIPs.Store(&cp)
}

// VividColors returns the normal-mode palette. The slice must not be modified.
func (c *Config) VividColors() Palette { return loadPalette(&c.vivid) }

// BeatColors returns the beat palette. The slice must not be modified.
func (c *Config) BeatColors() Palette { return loadPalette(&c.beat) }

// DrumBreakColors returns the drum-break palette. The slice must not be modified.
func (c *Config) DrumBreakColors() Palette { return loadPalette(&c.drumBreak) }

// SetVividColors replaces the normal-mode palette and advances Generation so
// working copies are rebuilt.
func (c *Config) SetVividColors(p Palette) {
	storePalette(&c.vivid, p)
	c.generation.Add(1)
}

func (c *Config) SetBeatColors(p Palette)      { storePalette(&c.beat, p) }
func (c *Config) SetDrumBreakColors(p Palette) { storePalette(&c.drumBreak, p) }

// Generation increases every time a configuration document is applied or the
// vivid palette is replaced.
// Components holding working copies of palettes compare it to detect reloads.
func (c *Config) Generation() uint64 {
	return c.generation.Load()
}

func loadPalette(p *atomic.Pointer[Palette]) Palette {
	if v := p.Load(); v != nil {
		return *v
	}
	return nil
}

func storePalette(p *atomic.Pointer[Palette], colors Palette) {
	cp := colors.Clone()
	p.Store(&cp)
}

// MarshalZerologObject logs the effective settings.
func (c *Config) MarshalZerologObject(e *zerolog.Event) {
	e.Int64("device_index", c.DeviceIndex.Load()).
		Int64("channels", c.Channels.Load()).
		Int64("frames_per_buffer", c.FramesPerBuffer.Load()).
		Int64("min_brightness", c.MinBrightness.Load()).
		Int64("user_brightness", c.UserBrightness.Load()).
		Bool("dynamic_brightness", c.DynamicBrightness.Load()).
		Float64("upper_threshold", c.UpperThreshold.Load()).
		Float64("lower_threshold", c.LowerThreshold.Load()).
		Dur("min_update_interval", c.MinUpdateInterval.Load()).
		Float64("drum_break_threshold", c.DrumBreakThreshold.Load()).
		Int64("drum_break_history_size", c.DrumBreakHistory.Load()).
		Float64("beat_threshold", c.BeatThreshold.Load()).
		Int64("beat_history_size", c.BeatHistory.Load()).
		Int64("udp_port", c.UDPPort.Load()).
		Strs("light_ips", c.LightIPs()).
		Bool("smoothing", c.Smoothing.Load()).
		Bool("reverse_colors", c.ReverseColors.Load()).
		Bool("random_reversal_interval", c.RandomReversal.Load()).
		Dur("reversal_interval", c.ReversalInterval.Load()).
		Bool("interpolation", c.Interpolation.Load()).
		Bool("drum_break_detection", c.DrumBreakDetection.Load()).
		Bool("beat_detection", c.BeatDetection.Load()).
		Int("vivid_colors", len(c.VividColors())).
		Int("beat_colors", len(c.BeatColors())).
		Int("drum_break_colors", len(c.DrumBreakColors()))
}
