package ui

import (
	"github.com/linuxmatters/wizsync/internal/processor"
)

// FrameMsg carries the latest processed frame.
type FrameMsg struct {
	Result processor.FrameResult
}

// StreamMsg reports a supervisor event.
type StreamMsg struct {
	Reopened bool
}

// DoneMsg ends the monitor. Err is shown if the run failed.
type DoneMsg struct {
	Err error
}

type tickMsg struct{}
