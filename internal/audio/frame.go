// Package audio provides live and replayed capture of fixed-size PCM frames
// and supervises the capture stream's health.
package audio

import (
	"time"

	goaudio "github.com/go-audio/audio"
)

// Frame is one capture buffer of interleaved float32 samples in [-1, 1].
// It is only valid for the duration of the handler call that receives it.
type Frame struct {
	*goaudio.Float32Buffer
	Time time.Time // capture time
}

// NewFrame wraps interleaved samples captured at t.
func NewFrame(samples []float32, channels, sampleRate int, t time.Time) Frame {
	if channels < 1 {
		channels = 1
	}
	return Frame{
		Float32Buffer: &goaudio.Float32Buffer{
			Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
			Data:           samples,
			SourceBitDepth: 32,
		},
		Time: t,
	}
}

// Samples returns the interleaved samples.
func (f Frame) Samples() []float32 {
	if f.Float32Buffer == nil {
		return nil
	}
	return f.Data
}

// Channels returns the interleaved channel count.
func (f Frame) Channels() int {
	if f.Float32Buffer == nil || f.Format == nil || f.Format.NumChannels < 1 {
		return 1
	}
	return f.Format.NumChannels
}

// Len returns the number of sample frames (samples per channel).
func (f Frame) Len() int {
	return len(f.Samples()) / f.Channels()
}

// Handler receives each captured frame on the capture goroutine. It must
// return within the buffer period and must not block.
type Handler func(Frame)
