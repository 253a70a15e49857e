package audio

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestWAV writes a mono 16-bit file of n samples all set to value.
func writeTestWAV(t *testing.T, n, value int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, 48000, 16, 1, 1)
	data := make([]int, n)
	for i := range data {
		data[i] = value
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: 48000},
		Data:           data,
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	return path
}

type frameLog struct {
	mu     sync.Mutex
	frames int
	first  []float32
	chans  int
}

func (l *frameLog) handle(f Frame) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.frames == 0 {
		l.first = append([]float32(nil), f.Samples()...)
		l.chans = f.Channels()
	}
	l.frames++
}

func (l *frameLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frames
}

func TestReplayDeliversFramesThenGoesInactive(t *testing.T) {
	path := writeTestWAV(t, 1024, 16384)
	r := NewReplay(path, false)
	var log frameLog

	require.NoError(t, r.Open(Params{FramesPerBuffer: 256}, log.handle))
	require.NoError(t, r.Start())
	assert.True(t, r.Active())

	require.Eventually(t, func() bool { return !r.Active() }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, r.Close())

	assert.Equal(t, 4, log.count())
	assert.Equal(t, 1, log.chans)
	require.Len(t, log.first, 256)
	assert.InDelta(t, 0.5, log.first[0], 1e-6)
}

func TestReplayLoops(t *testing.T) {
	path := writeTestWAV(t, 512, 1000)
	r := NewReplay(path, true)
	var log frameLog

	require.NoError(t, r.Open(Params{FramesPerBuffer: 256}, log.handle))
	require.NoError(t, r.Start())
	require.Eventually(t, func() bool { return log.count() > 4 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, r.Active())
	require.NoError(t, r.Close())
	assert.False(t, r.Active())
}

func TestReplayReopenAfterClose(t *testing.T) {
	path := writeTestWAV(t, 256, 1)
	r := NewReplay(path, false)

	for range 2 {
		require.NoError(t, r.Open(Params{FramesPerBuffer: 128}, func(Frame) {}))
		require.NoError(t, r.Start())
		require.NoError(t, r.Close())
	}
}

func TestReplayInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noise.wav")
	require.NoError(t, os.WriteFile(path, []byte("not a riff file at all"), 0o644))

	r := NewReplay(path, false)
	err := r.Open(Params{FramesPerBuffer: 256}, func(Frame) {})
	assert.ErrorIs(t, err, ErrInvalidDevice)

	_, err = NewReplay(filepath.Join(t.TempDir(), "missing.wav"), false).Devices()
	assert.Error(t, err)
}

func TestReplayDevices(t *testing.T) {
	path := writeTestWAV(t, 64, 0)
	devices, err := NewReplay(path, false).Devices()
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, 1, devices[0].MaxInputChannels)
	assert.Equal(t, 48000.0, devices[0].DefaultSampleRate)
}

func TestFrame(t *testing.T) {
	f := NewFrame([]float32{1, 2, 3, 4, 5, 6}, 2, 48000, time.Time{})
	assert.Equal(t, 2, f.Channels())
	assert.Equal(t, 3, f.Len())

	var empty Frame
	assert.Nil(t, empty.Samples())
	assert.Equal(t, 1, empty.Channels())
	assert.Zero(t, empty.Len())
}
