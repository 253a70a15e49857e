package processor

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/linuxmatters/wizsync/internal/config"
)

func TestDispatcherRateLimit(t *testing.T) {
	cfg := testConfig()
	sink := &recordingSink{}
	d := NewDispatcher(cfg, sink)

	steps := []struct {
		ms   int
		want Outcome
	}{
		{0, OutcomeSent},
		{50, OutcomeRateLimited},
		{99, OutcomeRateLimited},
		{100, OutcomeSent},
		{150, OutcomeRateLimited},
		{260, OutcomeSent},
	}

	for _, s := range steps {
		_, got, err := d.Dispatch(red, 200, at(s.ms))
		if err != nil {
			t.Fatalf("t=%dms: unexpected error %v", s.ms, err)
		}
		if got != s.want {
			t.Errorf("t=%dms: outcome %v, want %v", s.ms, got, s.want)
		}
	}
	if len(sink.commands) != 3 {
		t.Errorf("sink received %d commands, want 3", len(sink.commands))
	}
}

func TestDispatcherMinimumSpacing(t *testing.T) {
	cfg := testConfig()
	cfg.MinUpdateInterval.Store(70 * time.Millisecond)
	d := NewDispatcher(cfg, &recordingSink{})

	var sent []time.Time
	for ms := 0; ms < 2000; ms += 16 {
		if _, outcome, _ := d.Dispatch(green, 100, at(ms)); outcome == OutcomeSent {
			sent = append(sent, at(ms))
		}
	}
	for i := 1; i < len(sent); i++ {
		if gap := sent[i].Sub(sent[i-1]); gap < 70*time.Millisecond {
			t.Fatalf("dispatches %d and %d only %v apart", i-1, i, gap)
		}
	}
}

func TestDispatcherTransportFailureConsumesSlot(t *testing.T) {
	cfg := testConfig()
	sink := &recordingSink{fail: errUnreachable}
	d := NewDispatcher(cfg, sink)

	_, outcome, err := d.Dispatch(blue, 255, at(0))
	if outcome != OutcomeFailed || !errors.Is(err, errUnreachable) {
		t.Fatalf("Dispatch = %v, %v; want failed with errUnreachable", outcome, err)
	}
	if !d.LastDispatch().Equal(at(0)) {
		t.Errorf("LastDispatch = %v, want %v", d.LastDispatch(), at(0))
	}

	sink.fail = nil
	if _, outcome, _ := d.Dispatch(blue, 255, at(50)); outcome != OutcomeRateLimited {
		t.Errorf("retry inside interval = %v, want rate limited", outcome)
	}
	if len(sink.commands) != 1 {
		t.Errorf("sink received %d commands, want 1 (no retry)", len(sink.commands))
	}
}

func TestDispatcherSnapshotsEndpoints(t *testing.T) {
	cfg := testConfig()
	cfg.SetLightIPs([]string{"192.0.2.1", "192.0.2.2"})
	sink := &recordingSink{}
	d := NewDispatcher(cfg, sink)

	cmd, _, _ := d.Dispatch(config.RGB{R: 9, G: 8, B: 7}, 128, at(0))
	cfg.SetLightIPs([]string{"192.0.2.3"})

	if !slices.Equal(cmd.Endpoints, []string{"192.0.2.1", "192.0.2.2"}) {
		t.Errorf("Endpoints = %v, want the list at dispatch time", cmd.Endpoints)
	}
	if cmd.Brightness != 128 || cmd.Color != (config.RGB{R: 9, G: 8, B: 7}) {
		t.Errorf("command = %+v", cmd)
	}
}
