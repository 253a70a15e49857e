package processor

import (
	"errors"
	"math"
	"time"

	"github.com/linuxmatters/wizsync/internal/audio"
	"github.com/linuxmatters/wizsync/internal/config"
)

// epoch anchors synthetic frame times well after the zero time, so the
// first detector evaluation is never inside a cooldown.
var epoch = time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)

// at returns epoch + ms milliseconds.
func at(ms int) time.Time {
	return epoch.Add(time.Duration(ms) * time.Millisecond)
}

// testConfig returns defaults with every optional feature off, so each test
// enables only what it exercises.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Smoothing.Store(false)
	cfg.ReverseColors.Store(false)
	cfg.RandomReversal.Store(false)
	cfg.DrumBreakDetection.Store(false)
	cfg.BeatDetection.Store(false)
	cfg.SetLightIPs([]string{"192.0.2.10"})
	return cfg
}

// constantFrame builds a mono frame of n samples all equal to level.
func constantFrame(level float32, n int, t time.Time) audio.Frame {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = level
	}
	return audio.NewFrame(samples, 1, config.SampleRate, t)
}

// sineFrame builds a mono sine burst at amplitude amp.
func sineFrame(amp, freq float64, n int, t time.Time) audio.Frame {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/config.SampleRate))
	}
	return audio.NewFrame(samples, 1, config.SampleRate, t)
}

// recordingSink captures every command and can be told to fail.
type recordingSink struct {
	commands []LightCommand
	fail     error
}

func (s *recordingSink) Send(cmd LightCommand) error {
	s.commands = append(s.commands, cmd)
	return s.fail
}

var errUnreachable = errors.New("bulb unreachable")

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
