package ui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/linuxmatters/wizsync/internal/config"
	"github.com/linuxmatters/wizsync/internal/logging"
	"github.com/linuxmatters/wizsync/internal/processor"
)

func TestFeedNeverBlocks(t *testing.T) {
	feed := NewFeed(2)
	for range 5 {
		feed.ObserveFrame(processor.FrameResult{})
	}
	if got := feed.Dropped(); got != 3 {
		t.Errorf("Dropped() = %d, want 3", got)
	}
}

func TestModelTracksFrames(t *testing.T) {
	feed := NewFeed(4)
	m := NewModel("default input", []string{"192.0.2.10"}, feed, nil)

	active := processor.FrameResult{
		Analysed: true,
		Reading:  processor.Reading{Loudness: 50, Envelope: 100, Peak: 100},
		Output: processor.Output{
			Mode:       processor.ModeBeatActive,
			Color:      config.RGB{R: 255, B: 255},
			Brightness: 200,
		},
	}
	next, cmd := m.Update(FrameMsg{Result: active})
	if cmd == nil {
		t.Error("FrameMsg did not re-arm the feed listener")
	}
	m = next.(Model)

	silent := processor.FrameResult{Reading: processor.Reading{Status: processor.StatusSilent}}
	next, _ = m.Update(FrameMsg{Result: silent})
	m = next.(Model)

	if m.LastShown.Output.Mode != processor.ModeBeatActive {
		t.Errorf("LastShown mode = %v, want beat kept through silence", m.LastShown.Output.Mode)
	}
	view := m.View()
	for _, want := range []string{"wizsync", "192.0.2.10", "BEAT", "#ff00ff", "silent"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModelPollsStats(t *testing.T) {
	stats := func() logging.SessionStats { return logging.SessionStats{Frames: 42, Beats: 7} }
	m := NewModel("song.wav", nil, NewFeed(1), stats)

	next, cmd := m.Update(tickMsg{})
	if cmd == nil {
		t.Error("tick did not schedule the next tick")
	}
	m = next.(Model)
	if m.Stats.Frames != 42 || m.Stats.Beats != 7 {
		t.Errorf("Stats = %+v", m.Stats)
	}
	if !strings.Contains(m.View(), "frames 42") {
		t.Error("view does not show polled frame count")
	}
}

func TestModelQuitAndDone(t *testing.T) {
	m := NewModel("x", nil, NewFeed(1), nil)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q did not quit")
	}

	next, _ := m.Update(DoneMsg{Err: errors.New("device vanished")})
	m = next.(Model)
	if !m.Done || !strings.Contains(m.View(), "device vanished") {
		t.Errorf("done view = %q", m.View())
	}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		level float64
		want  string
	}{
		{0, strings.Repeat("░", 10) + "   0%"},
		{0.5, strings.Repeat("█", 5) + strings.Repeat("░", 5) + "  50%"},
		{2, strings.Repeat("█", 10) + " 100%"},
	}
	for _, tt := range tests {
		if got := renderBar(tt.level, 10); got != tt.want {
			t.Errorf("renderBar(%v) = %q, want %q", tt.level, got, tt.want)
		}
	}
}
