package audio

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Replay plays a PCM WAV file through the capture interface, paced at the
// real-time buffer period. Without looping the stream goes inactive at end
// of file, which lets the supervisor reopen it from the start.
type Replay struct {
	path string
	loop bool

	mu      sync.Mutex
	file    *os.File
	dec     *wav.Decoder
	buf     *goaudio.IntBuffer
	out     []float32
	scale   float32
	format  goaudio.Format
	period  time.Duration
	handler Handler

	active atomic.Bool
	stop   chan struct{}
	done   chan struct{}
}

// NewReplay creates a replay provider for the WAV file at path.
func NewReplay(path string, loop bool) *Replay {
	return &Replay{path: path, loop: loop}
}

// Devices reports the file as the single available input.
func (r *Replay) Devices() ([]Device, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: %s is not a PCM WAV file", ErrInvalidDevice, r.path)
	}
	return []Device{{
		Index:             0,
		Name:              r.path,
		HostAPI:           "wav",
		MaxInputChannels:  int(dec.NumChans),
		DefaultSampleRate: float64(dec.SampleRate),
		Default:           true,
	}}, nil
}

// Open decodes the WAV header. The file's own channel count and sample rate
// replace those in params; only FramesPerBuffer is honoured.
func (r *Replay) Open(params Params, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		return errors.New("replay already open")
	}

	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDevice, err)
	}
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return fmt.Errorf("%w: %s is not a PCM WAV file", ErrInvalidDevice, r.path)
	}

	format := dec.Format()
	if format == nil || format.NumChannels < 1 || format.SampleRate < 1 || dec.BitDepth == 0 {
		f.Close()
		return fmt.Errorf("%w: %s has an unusable format", ErrInvalidDevice, r.path)
	}

	frames := params.FramesPerBuffer
	if frames < 1 {
		frames = 256
	}
	samples := frames * format.NumChannels

	r.file = f
	r.dec = dec
	r.format = *format
	r.buf = &goaudio.IntBuffer{
		Format:         format,
		Data:           make([]int, samples),
		SourceBitDepth: int(dec.BitDepth),
	}
	r.out = make([]float32, samples)
	r.scale = 1 / float32(int64(1)<<(dec.BitDepth-1))
	r.period = time.Duration(frames) * time.Second / time.Duration(format.SampleRate)
	r.handler = h
	return nil
}

// Start launches the pacing goroutine.
func (r *Replay) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dec == nil {
		return errors.New("replay not open")
	}
	if r.stop != nil {
		return nil
	}
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	r.active.Store(true)
	go r.run(r.stop, r.done)
	return nil
}

func (r *Replay) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer r.active.Store(false)

	ticker := time.NewTicker(r.period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			n, err := r.dec.PCMBuffer(r.buf)
			if n == 0 || err != nil {
				if !r.loop {
					return
				}
				if err := r.dec.Rewind(); err != nil {
					return
				}
				continue
			}
			for i, v := range r.buf.Data[:n] {
				r.out[i] = float32(v) * r.scale
			}
			r.handler(NewFrame(r.out[:n], r.format.NumChannels, r.format.SampleRate, now))
		}
	}
}

// Stop halts the pacing goroutine and waits for it to exit.
func (r *Replay) Stop() error {
	r.mu.Lock()
	stop, done := r.stop, r.done
	r.stop, r.done = nil, nil
	r.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	return nil
}

// Close releases the file. Open may be called again afterwards.
func (r *Replay) Close() error {
	if err := r.Stop(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file, r.dec, r.buf = nil, nil, nil
	if err != nil {
		return fmt.Errorf("close replay file: %w", err)
	}
	return nil
}

// Terminate is Close; a replay holds no backend.
func (r *Replay) Terminate() error { return r.Close() }

// Active reports whether frames are still being delivered.
func (r *Replay) Active() bool { return r.active.Load() }
