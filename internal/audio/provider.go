package audio

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDevice means the configured input device does not exist or
	// cannot capture. It is not retried.
	ErrInvalidDevice = errors.New("invalid audio input device")

	// ErrStreamOpen means the device rejected the stream parameters, such
	// as the sample rate or channel count. It is fatal on the first open.
	ErrStreamOpen = errors.New("audio stream parameters rejected")

	// ErrStreamInactive reports a stream that stopped delivering frames.
	ErrStreamInactive = errors.New("audio stream inactive")
)

// DefaultDevice selects the host's default input device.
const DefaultDevice = -1

// Device describes one capture-capable input.
type Device struct {
	Index             int
	Name              string
	HostAPI           string
	MaxInputChannels  int
	DefaultSampleRate float64
	Default           bool
}

func (d Device) String() string {
	return fmt.Sprintf("%d: %s (%d ch, %.0f Hz)", d.Index, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
}

// Params selects the device and buffer geometry for a capture stream.
type Params struct {
	DeviceIndex     int
	Channels        int
	FramesPerBuffer int
	SampleRate      int
}

// Provider is a source of capture frames. Open binds the handler to a new
// stream; the handler then runs on the provider's capture goroutine until
// Stop. A Provider supports Open again after Close, which is how the
// supervisor recovers a dead stream.
type Provider interface {
	Devices() ([]Device, error)
	Open(p Params, h Handler) error
	Start() error
	Stop() error
	Close() error
	// Terminate releases the backend. The provider cannot be reused.
	Terminate() error
	// Active reports whether the open stream is still delivering frames.
	Active() bool
}
