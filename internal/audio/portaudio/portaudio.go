// Package portaudio is the live capture provider, backed by the PortAudio C
// library through cgo.
package portaudio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pa "github.com/gordonklaus/portaudio"

	"github.com/linuxmatters/wizsync/internal/audio"
)

// stallTimeout is how long a started stream may go without a callback before
// it is reported inactive.
const stallTimeout = time.Second

// Input captures float32 interleaved input through PortAudio's callback
// API. The callback goroutine is PortAudio's own. It implements
// audio.Provider.
type Input struct {
	mu       sync.Mutex
	stream   *pa.Stream
	params   audio.Params
	handler  audio.Handler
	started  atomic.Bool
	lastCall atomic.Int64 // unix nanos of the most recent callback
	now      func() time.Time
}

var _ audio.Provider = (*Input)(nil)

// New initialises the PortAudio library. Call Terminate when done.
func New() (*Input, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("initialise portaudio: %w", err)
	}
	return &Input{now: time.Now}, nil
}

// Devices lists input-capable devices. Index is the position in PortAudio's
// device table, which is what device_index refers to.
func (p *Input) Devices() ([]audio.Device, error) {
	infos, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	def, _ := pa.DefaultInputDevice()

	var devices []audio.Device
	for i, info := range infos {
		if info.MaxInputChannels == 0 {
			continue
		}
		d := audio.Device{
			Index:             i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			Default:           def != nil && def.Name == info.Name,
		}
		if info.HostApi != nil {
			d.HostAPI = info.HostApi.Name
		}
		devices = append(devices, d)
	}
	return devices, nil
}

func (p *Input) lookup(index int) (*pa.DeviceInfo, error) {
	if index == audio.DefaultDevice {
		info, err := pa.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: no default input: %v", audio.ErrInvalidDevice, err)
		}
		return info, nil
	}
	infos, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	if index < 0 || index >= len(infos) {
		return nil, fmt.Errorf("%w: index %d out of range (0..%d)", audio.ErrInvalidDevice, index, len(infos)-1)
	}
	info := infos[index]
	if info.MaxInputChannels == 0 {
		return nil, fmt.Errorf("%w: %q has no input channels", audio.ErrInvalidDevice, info.Name)
	}
	return info, nil
}

// Open creates an input stream on the requested device. The channel count
// is capped at what the device offers.
func (p *Input) Open(params audio.Params, h audio.Handler) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		return errors.New("stream already open")
	}

	info, err := p.lookup(params.DeviceIndex)
	if err != nil {
		return err
	}

	channels := params.Channels
	if channels < 1 {
		channels = 1
	}
	if channels > info.MaxInputChannels {
		channels = info.MaxInputChannels
	}
	params.Channels = channels

	sp := pa.LowLatencyParameters(info, nil)
	sp.Input.Channels = channels
	sp.Output.Channels = 0
	sp.SampleRate = float64(params.SampleRate)
	sp.FramesPerBuffer = params.FramesPerBuffer

	p.params = params
	p.handler = h

	stream, err := pa.OpenStream(sp, p.callback)
	if err != nil {
		return fmt.Errorf("open input %q: %w", info.Name, openError(err))
	}
	p.stream = stream
	return nil
}

func (p *Input) callback(in []float32) {
	now := p.now()
	p.lastCall.Store(now.UnixNano())
	p.handler(audio.NewFrame(in, p.params.Channels, p.params.SampleRate, now))
}

// Start begins capture.
func (p *Input) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return errors.New("stream not open")
	}
	p.lastCall.Store(p.now().UnixNano())
	if err := p.stream.Start(); err != nil {
		return fmt.Errorf("start input: %w", err)
	}
	p.started.Store(true)
	return nil
}

// Stop halts capture. Stopping a stream that is not running is a no-op.
func (p *Input) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil || !p.started.Swap(false) {
		return nil
	}
	if err := p.stream.Stop(); err != nil {
		return fmt.Errorf("stop input: %w", err)
	}
	return nil
}

// Close releases the stream. Open may be called again afterwards.
func (p *Input) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return nil
	}
	p.started.Store(false)
	err := p.stream.Close()
	p.stream = nil
	if err != nil {
		return fmt.Errorf("close input: %w", err)
	}
	return nil
}

// Terminate shuts PortAudio down.
func (p *Input) Terminate() error {
	if err := p.Close(); err != nil {
		return err
	}
	return pa.Terminate()
}

// Active reports whether the stream is started and its callback ran within
// stallTimeout.
func (p *Input) Active() bool {
	if !p.started.Load() {
		return false
	}
	last := time.Unix(0, p.lastCall.Load())
	return p.now().Sub(last) < stallTimeout
}

// openError classifies a stream-open failure. Parameters the device rejects
// will be rejected again, so they map to audio.ErrStreamOpen; an unknown
// device maps to audio.ErrInvalidDevice. Anything else is returned as is and
// treated as transient.
func openError(err error) error {
	var hostErr pa.UnanticipatedHostError
	if errors.As(err, &hostErr) {
		return fmt.Errorf("%w: %v", audio.ErrStreamOpen, err)
	}
	var code pa.Error
	if !errors.As(err, &code) {
		return err
	}
	switch code {
	case pa.InvalidDevice:
		return fmt.Errorf("%w: %v", audio.ErrInvalidDevice, err)
	case pa.InvalidChannelCount,
		pa.InvalidSampleRate,
		pa.SampleFormatNotSupported,
		pa.BadIODeviceCombination,
		pa.BufferTooBig,
		pa.BufferTooSmall,
		pa.IncompatibleHostApiSpecificStreamInfo:
		return fmt.Errorf("%w: %v", audio.ErrStreamOpen, err)
	}
	return err
}
