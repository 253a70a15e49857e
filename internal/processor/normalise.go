package processor

import (
	"math"

	"github.com/linuxmatters/wizsync/internal/config"
)

const (
	// MaxBrightness is the ceiling of the dimming scale and the brightness of
	// every drum-break flash.
	MaxBrightness = 255

	// brightnessCurve shapes dynamic brightness so quiet passages dim faster.
	brightnessCurve = 1.5
)

// Brightness returns the dimming level for loudness in Normal and BeatActive
// modes. With dynamic brightness the user level is scaled by the loudness
// relative to the running peak. The result is clamped to [min, 255].
func Brightness(cfg *config.Config, loudness, peak float64) int {
	minimum := int(cfg.MinBrightness.Load())
	user := float64(cfg.UserBrightness.Load())

	level := user
	if cfg.DynamicBrightness.Load() {
		ratio := 0.0
		if peak > 0 {
			ratio = loudness / peak
		}
		if !isFinite(ratio) {
			ratio = 1
		}
		ratio = math.Min(math.Max(ratio, 0), 1)
		level = math.Max(float64(minimum), user*math.Pow(ratio, brightnessCurve))
	}

	return ClampBrightness(int(level), minimum)
}

// ClampBrightness bounds b to [minimum, 255].
func ClampBrightness(b, minimum int) int {
	if minimum > MaxBrightness {
		minimum = MaxBrightness
	}
	if b < minimum {
		return minimum
	}
	if b > MaxBrightness {
		return MaxBrightness
	}
	return b
}
