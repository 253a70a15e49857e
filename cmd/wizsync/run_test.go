package main

import (
	"testing"

	"github.com/linuxmatters/wizsync/internal/audio"
	"github.com/linuxmatters/wizsync/internal/config"
)

func TestStreamParams(t *testing.T) {
	cfg := config.Default()
	cfg.DeviceIndex.Store(3)
	cfg.Channels.Store(1)
	cfg.FramesPerBuffer.Store(512)

	params := streamParams(cfg)
	want := audio.Params{DeviceIndex: 3, Channels: 1, FramesPerBuffer: 512, SampleRate: config.SampleRate}
	if got := params(); got != want {
		t.Errorf("params = %+v, want %+v", got, want)
	}

	cfg.DeviceIndex.Store(5)
	if got := params().DeviceIndex; got != 5 {
		t.Errorf("device after reload = %d, want 5", got)
	}
}
