package logging

import (
	"fmt"
	"io"
	"math"
	"sync/atomic"
	"time"

	"github.com/linuxmatters/wizsync/internal/processor"
)

// Session tallies a run for the report printed at exit. It observes frames
// on the capture goroutine using atomics only.
type Session struct {
	start time.Time

	frames, silent, quiet, faults atomic.Uint64
	beats, drumBreaks             atomic.Uint64
	sent, limited, failed         atomic.Uint64
	reopens                       atomic.Uint64
	peakBits                      atomic.Uint64
}

// NewSession starts a tally at start.
func NewSession(start time.Time) *Session {
	return &Session{start: start}
}

// ObserveFrame implements processor.FrameObserver.
func (s *Session) ObserveFrame(r processor.FrameResult) {
	s.frames.Add(1)
	if r.Reading.Fault != nil {
		s.faults.Add(1)
	}
	switch r.Reading.Status {
	case processor.StatusSilent:
		s.silent.Add(1)
		return
	case processor.StatusQuiet:
		s.quiet.Add(1)
	}
	if r.Reading.Loudness > math.Float64frombits(s.peakBits.Load()) {
		s.peakBits.Store(math.Float64bits(r.Reading.Loudness))
	}
	if !r.Analysed {
		return
	}
	if r.Output.BeatTriggered {
		s.beats.Add(1)
	}
	if r.Output.DrumBreakTriggered {
		s.drumBreaks.Add(1)
	}
	switch r.Outcome {
	case processor.OutcomeSent:
		s.sent.Add(1)
	case processor.OutcomeRateLimited:
		s.limited.Add(1)
	case processor.OutcomeFailed:
		s.failed.Add(1)
	}
}

// StreamReopened counts a supervisor reopen.
func (s *Session) StreamReopened() { s.reopens.Add(1) }

// SessionStats is a point-in-time copy of a Session.
type SessionStats struct {
	Duration        time.Duration
	Frames          uint64
	SilentFrames    uint64
	QuietFrames     uint64
	NumericFaults   uint64
	Beats           uint64
	DrumBreaks      uint64
	CommandsSent    uint64
	RateLimited     uint64
	TransportFaults uint64
	StreamReopens   uint64
	PeakLoudness    float64
}

// Snapshot copies the counters as of now.
func (s *Session) Snapshot(now time.Time) SessionStats {
	return SessionStats{
		Duration:        now.Sub(s.start),
		Frames:          s.frames.Load(),
		SilentFrames:    s.silent.Load(),
		QuietFrames:     s.quiet.Load(),
		NumericFaults:   s.faults.Load(),
		Beats:           s.beats.Load(),
		DrumBreaks:      s.drumBreaks.Load(),
		CommandsSent:    s.sent.Load(),
		RateLimited:     s.limited.Load(),
		TransportFaults: s.failed.Load(),
		StreamReopens:   s.reopens.Load(),
		PeakLoudness:    math.Float64frombits(s.peakBits.Load()),
	}
}

// Table lays the stats out as count and per-second rate.
func (st SessionStats) Table() *MetricTable {
	secs := st.Duration.Seconds()
	t := NewMetricTable("Count", "Per sec")
	row := func(label string, n uint64) {
		t.AddRow(label, []string{fmt.Sprint(n), formatRate(n, secs)}, "", "")
	}
	row("Frames", st.Frames)
	row("Silent frames", st.SilentFrames)
	row("Quiet frames", st.QuietFrames)
	row("Numeric faults", st.NumericFaults)
	row("Beats", st.Beats)
	row("Drum breaks", st.DrumBreaks)
	row("Commands sent", st.CommandsSent)
	row("Rate limited", st.RateLimited)
	row("Transport faults", st.TransportFaults)
	row("Stream reopens", st.StreamReopens)
	return t
}

// WriteReport prints the session report.
func WriteReport(w io.Writer, st SessionStats) error {
	_, err := fmt.Fprintf(w, "Session %s, peak loudness %s\n\n%s",
		st.Duration.Round(time.Second), formatMetric(st.PeakLoudness, 1), st.Table())
	return err
}
