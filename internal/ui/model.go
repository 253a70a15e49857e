// Package ui provides the Bubbletea live monitor shown while lights are
// being driven.
package ui

import (
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/linuxmatters/wizsync/internal/logging"
	"github.com/linuxmatters/wizsync/internal/processor"
)

// refreshInterval paces counter polling.
const refreshInterval = 100 * time.Millisecond

// Feed hands pipeline events to the monitor without ever blocking the
// capture goroutine: when the buffer is full the event is dropped.
type Feed struct {
	ch      chan tea.Msg
	dropped atomic.Uint64
}

// NewFeed creates a feed buffering up to size messages.
func NewFeed(size int) *Feed {
	return &Feed{ch: make(chan tea.Msg, size)}
}

func (f *Feed) send(msg tea.Msg) {
	select {
	case f.ch <- msg:
	default:
		f.dropped.Add(1)
	}
}

// ObserveFrame implements processor.FrameObserver.
func (f *Feed) ObserveFrame(r processor.FrameResult) { f.send(FrameMsg{Result: r}) }

// StreamReopened forwards a supervisor reopen.
func (f *Feed) StreamReopened() { f.send(StreamMsg{Reopened: true}) }

// Dropped returns how many messages were discarded.
func (f *Feed) Dropped() uint64 { return f.dropped.Load() }

// Model is the live monitor.
type Model struct {
	Source    string // device or file being captured
	Endpoints []string

	feed  *Feed
	stats func() logging.SessionStats

	Last      processor.FrameResult
	LastShown processor.FrameResult // last analysed frame, kept through silence
	Stats     logging.SessionStats
	Reopening bool

	StartTime time.Time
	Done      bool
	Err       error

	Width  int
	Height int
}

// NewModel creates a monitor reading frames from feed and counters from
// stats.
func NewModel(source string, endpoints []string, feed *Feed, stats func() logging.SessionStats) Model {
	return Model{
		Source:    source,
		Endpoints: endpoints,
		feed:      feed,
		stats:     stats,
		StartTime: time.Now(),
	}
}

// Init starts listening for frames and schedules the first refresh.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForFeed(m.feed), tick())
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case FrameMsg:
		m.Last = msg.Result
		if msg.Result.Analysed {
			m.LastShown = msg.Result
		}
		m.Reopening = false
		return m, waitForFeed(m.feed)

	case StreamMsg:
		m.Reopening = msg.Reopened
		return m, waitForFeed(m.feed)

	case tickMsg:
		if m.stats != nil {
			m.Stats = m.stats()
		}
		return m, tick()

	case DoneMsg:
		m.Done = true
		m.Err = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

// View renders the monitor.
func (m Model) View() string {
	if m.Done {
		return renderDone(m)
	}
	return renderMonitor(m)
}

func waitForFeed(f *Feed) tea.Cmd {
	if f == nil {
		return nil
	}
	return func() tea.Msg {
		return <-f.ch
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg { return tickMsg{} })
}
