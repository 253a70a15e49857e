package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// DefaultFileName is the configuration document looked up next to the binary.
const DefaultFileName = "volume_config.json"

// LoadError reports a configuration file that could not be opened or read.
// Previously applied settings stay in effect.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("config load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ParseError reports a malformed or invalid configuration document.
// Nothing from the document is applied.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("config parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// document mirrors the JSON layout. Pointer fields distinguish a missing key
// (keep the current value) from an explicit zero.
type document struct {
	Audio         *audioSection         `json:"audio,omitempty"`
	Brightness    *brightnessSection    `json:"brightness,omitempty"`
	Visualization *visualizationSection `json:"visualization,omitempty"`
	Network       *networkSection       `json:"network,omitempty"`
	Features      *featuresSection      `json:"features,omitempty"`
	ColorSettings *colorSection         `json:"color_settings,omitempty"`
}

type audioSection struct {
	DeviceIndex     *int `json:"device_index,omitempty"`
	Channels        *int `json:"channels,omitempty"`
	FramesPerBuffer *int `json:"frames_per_buffer,omitempty"`
}

type brightnessSection struct {
	MinBrightness           *int  `json:"min_brightness,omitempty"`
	UserBrightness          *int  `json:"user_brightness,omitempty"`
	EnableDynamicBrightness *bool `json:"enable_dynamic_brightness,omitempty"`
}

type visualizationSection struct {
	UpperThreshold       *float64 `json:"upper_threshold,omitempty"`
	LowerThreshold       *float64 `json:"lower_threshold,omitempty"`
	MinUpdateIntervalMS  *int     `json:"min_update_interval_ms,omitempty"`
	DrumBreakThreshold   *float64 `json:"drum_break_threshold,omitempty"`
	DrumBreakHistorySize *int     `json:"drum_break_history_size,omitempty"`
	DrumBreakIntervalMS  *int     `json:"drum_break_interval_ms,omitempty"`
	BeatThreshold        *float64 `json:"beat_threshold,omitempty"`
	BeatHistorySize      *int     `json:"beat_history_size,omitempty"`
	ColorCycleDurationMS *int     `json:"color_cycle_duration_ms,omitempty"`
	BeatWindowMS         *int     `json:"beat_window_ms,omitempty"`
	SmoothingHistorySize *int     `json:"smoothing_history_size,omitempty"`
}

type networkSection struct {
	UDPPort  *int      `json:"udp_port,omitempty"`
	LightIPs *[]string `json:"light_ips,omitempty"`
}

type featuresSection struct {
	EnableSmoothing          *bool `json:"enable_smoothing,omitempty"`
	ReverseColors            *bool `json:"reverse_colors,omitempty"`
	RandomReversalInterval   *bool `json:"random_reversal_interval,omitempty"`
	ReversalInterval         *int  `json:"reversal_interval,omitempty"`
	EnableInterpolation      *bool `json:"enable_interpolation,omitempty"`
	EnableDrumBreakDetection *bool `json:"enable_drum_break_detection,omitempty"`
	EnableBeatDetection      *bool `json:"enable_beat_detection,omitempty"`
}

type colorSection struct {
	VividColors     *Palette `json:"vivid_colors,omitempty"`
	BeatColors      *Palette `json:"beat_colors,omitempty"`
	DrumBreakColors *Palette `json:"drum_break_colors,omitempty"`
}

// Load reads the document at path and applies it to c.
//
// A missing or unreadable file returns a *LoadError and a malformed or
// invalid document returns a *ParseError; in both cases c is unchanged.
func (c *Config) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &LoadError{Path: path, Err: err}
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return &ParseError{Path: path, Err: err}
	}
	if err := doc.validate(); err != nil {
		return &ParseError{Path: path, Err: err}
	}

	c.apply(&doc)
	return nil
}

func (d *document) validate() error {
	var errs []error
	checkRange := func(name string, v *int, lo, hi int) {
		if v != nil && (*v < lo || *v > hi) {
			errs = append(errs, fmt.Errorf("%s must be in %d..%d, got %d", name, lo, hi, *v))
		}
	}
	checkPositive := func(name string, v *int) {
		if v != nil && *v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, *v))
		}
	}
	checkNonNegative := func(name string, v *float64) {
		if v != nil && *v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %g", name, *v))
		}
	}

	if a := d.Audio; a != nil {
		checkPositive("audio.channels", a.Channels)
		checkPositive("audio.frames_per_buffer", a.FramesPerBuffer)
	}
	if b := d.Brightness; b != nil {
		checkRange("brightness.min_brightness", b.MinBrightness, 0, 255)
		checkRange("brightness.user_brightness", b.UserBrightness, 0, 255)
	}
	if v := d.Visualization; v != nil {
		checkNonNegative("visualization.upper_threshold", v.UpperThreshold)
		checkNonNegative("visualization.lower_threshold", v.LowerThreshold)
		checkRange("visualization.min_update_interval_ms", v.MinUpdateIntervalMS, 0, 60_000)
		checkNonNegative("visualization.drum_break_threshold", v.DrumBreakThreshold)
		checkPositive("visualization.drum_break_history_size", v.DrumBreakHistorySize)
		checkPositive("visualization.drum_break_interval_ms", v.DrumBreakIntervalMS)
		checkNonNegative("visualization.beat_threshold", v.BeatThreshold)
		checkPositive("visualization.beat_history_size", v.BeatHistorySize)
		checkRange("visualization.color_cycle_duration_ms", v.ColorCycleDurationMS, 0, 60_000)
		checkPositive("visualization.beat_window_ms", v.BeatWindowMS)
		checkPositive("visualization.smoothing_history_size", v.SmoothingHistorySize)
	}
	if n := d.Network; n != nil {
		checkRange("network.udp_port", n.UDPPort, 1, 65535)
	}
	if f := d.Features; f != nil {
		checkPositive("features.reversal_interval", f.ReversalInterval)
	}
	if cs := d.ColorSettings; cs != nil {
		if cs.VividColors != nil && len(*cs.VividColors) < 2 {
			errs = append(errs, fmt.Errorf("color_settings.vivid_colors needs at least 2 colors, got %d", len(*cs.VividColors)))
		}
		if cs.BeatColors != nil && len(*cs.BeatColors) == 0 {
			errs = append(errs, errors.New("color_settings.beat_colors must not be empty"))
		}
		if cs.DrumBreakColors != nil && len(*cs.DrumBreakColors) == 0 {
			errs = append(errs, errors.New("color_settings.drum_break_colors must not be empty"))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) apply(d *document) {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }

	if a := d.Audio; a != nil {
		setInt(&c.DeviceIndex, a.DeviceIndex)
		setInt(&c.Channels, a.Channels)
		setInt(&c.FramesPerBuffer, a.FramesPerBuffer)
	}
	if b := d.Brightness; b != nil {
		setInt(&c.MinBrightness, b.MinBrightness)
		setInt(&c.UserBrightness, b.UserBrightness)
		setBool(&c.DynamicBrightness, b.EnableDynamicBrightness)
	}
	if v := d.Visualization; v != nil {
		setFloat(&c.UpperThreshold, v.UpperThreshold)
		setFloat(&c.LowerThreshold, v.LowerThreshold)
		if v.MinUpdateIntervalMS != nil {
			c.MinUpdateInterval.Store(ms(*v.MinUpdateIntervalMS))
		}
		setFloat(&c.DrumBreakThreshold, v.DrumBreakThreshold)
		setInt(&c.DrumBreakHistory, v.DrumBreakHistorySize)
		if v.DrumBreakIntervalMS != nil {
			c.DrumBreakInterval.Store(ms(*v.DrumBreakIntervalMS))
		}
		setFloat(&c.BeatThreshold, v.BeatThreshold)
		setInt(&c.BeatHistory, v.BeatHistorySize)
		if v.ColorCycleDurationMS != nil {
			c.ColorCycleDuration.Store(ms(*v.ColorCycleDurationMS))
		}
		if v.BeatWindowMS != nil {
			c.BeatWindow.Store(ms(*v.BeatWindowMS))
		}
		setInt(&c.SmoothingHistory, v.SmoothingHistorySize)
	}
	if n := d.Network; n != nil {
		setInt(&c.UDPPort, n.UDPPort)
		if n.LightIPs != nil {
			c.SetLightIPs(*n.LightIPs)
		}
	}
	if f := d.Features; f != nil {
		setBool(&c.Smoothing, f.EnableSmoothing)
		setBool(&c.ReverseColors, f.ReverseColors)
		setBool(&c.RandomReversal, f.RandomReversalInterval)
		if f.ReversalInterval != nil {
			c.ReversalInterval.Store(ms(*f.ReversalInterval))
		}
		setBool(&c.Interpolation, f.EnableInterpolation)
		setBool(&c.DrumBreakDetection, f.EnableDrumBreakDetection)
		setBool(&c.BeatDetection, f.EnableBeatDetection)
	}
	if cs := d.ColorSettings; cs != nil {
		if cs.VividColors != nil {
			storePalette(&c.vivid, *cs.VividColors)
		}
		if cs.BeatColors != nil {
			c.SetBeatColors(*cs.BeatColors)
		}
		if cs.DrumBreakColors != nil {
			c.SetDrumBreakColors(*cs.DrumBreakColors)
		}
	}

	c.generation.Add(1)
}

// WriteFile serialises the current settings as a complete document.
// An existing file is only replaced when overwrite is set.
func (c *Config) WriteFile(path string, overwrite bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}

	data, err := json.MarshalIndent(c.document(), "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return f.Close()
}

func (c *Config) document() *document {
	ms := func(d time.Duration) *int { return ptr(int(d / time.Millisecond)) }
	i64 := func(v int64) *int { return ptr(int(v)) }

	d := &document{}

	d.Audio = &audioSection{
		DeviceIndex:     i64(c.DeviceIndex.Load()),
		Channels:        i64(c.Channels.Load()),
		FramesPerBuffer: i64(c.FramesPerBuffer.Load()),
	}

	d.Brightness = &brightnessSection{
		MinBrightness:           i64(c.MinBrightness.Load()),
		UserBrightness:          i64(c.UserBrightness.Load()),
		EnableDynamicBrightness: ptr(c.DynamicBrightness.Load()),
	}

	d.Visualization = &visualizationSection{
		UpperThreshold:       ptr(c.UpperThreshold.Load()),
		LowerThreshold:       ptr(c.LowerThreshold.Load()),
		MinUpdateIntervalMS:  ms(c.MinUpdateInterval.Load()),
		DrumBreakThreshold:   ptr(c.DrumBreakThreshold.Load()),
		DrumBreakHistorySize: i64(c.DrumBreakHistory.Load()),
		DrumBreakIntervalMS:  ms(c.DrumBreakInterval.Load()),
		BeatThreshold:        ptr(c.BeatThreshold.Load()),
		BeatHistorySize:      i64(c.BeatHistory.Load()),
		ColorCycleDurationMS: ms(c.ColorCycleDuration.Load()),
		BeatWindowMS:         ms(c.BeatWindow.Load()),
		SmoothingHistorySize: i64(c.SmoothingHistory.Load()),
	}

	ips := append([]string{}, c.LightIPs()...)
	d.Network = &networkSection{
		UDPPort:  i64(c.UDPPort.Load()),
		LightIPs: &ips,
	}

	d.Features = &featuresSection{
		EnableSmoothing:          ptr(c.Smoothing.Load()),
		ReverseColors:            ptr(c.ReverseColors.Load()),
		RandomReversalInterval:   ptr(c.RandomReversal.Load()),
		ReversalInterval:         ms(c.ReversalInterval.Load()),
		EnableInterpolation:      ptr(c.Interpolation.Load()),
		EnableDrumBreakDetection: ptr(c.DrumBreakDetection.Load()),
		EnableBeatDetection:      ptr(c.BeatDetection.Load()),
	}

	vivid, beat, drum := c.VividColors().Clone(), c.BeatColors().Clone(), c.DrumBreakColors().Clone()
	d.ColorSettings = &colorSection{
		VividColors:     &vivid,
		BeatColors:      &beat,
		DrumBreakColors: &drum,
	}

	return d
}

func ptr[T any](v T) *T { return &v }

func setInt(dst interface{ Store(int64) }, v *int) {
	if v != nil {
		dst.Store(int64(*v))
	}
}

func setBool(dst interface{ Store(bool) }, v *bool) {
	if v != nil {
		dst.Store(*v)
	}
}

func setFloat(dst *Float, v *float64) {
	if v != nil {
		dst.Store(*v)
	}
}
