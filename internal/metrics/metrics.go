// Package metrics exports pipeline counters and gauges for Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/linuxmatters/wizsync/internal/processor"
)

const namespace = "wizsync"

// Metrics holds the collectors. Its methods are safe to call from the
// capture goroutine: every update is a lock-free atomic add or set.
type Metrics struct {
	Frames          prometheus.Counter
	SilentFrames    prometheus.Counter
	QuietFrames     prometheus.Counter
	NumericFaults   prometheus.Counter
	Beats           prometheus.Counter
	DrumBreaks      prometheus.Counter
	CommandsSent    prometheus.Counter
	RateLimited     prometheus.Counter
	TransportFaults prometheus.Counter
	StreamReopens   prometheus.Counter

	Loudness   prometheus.Gauge
	Envelope   prometheus.Gauge
	Brightness prometheus.Gauge
	Mode       prometheus.Gauge
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	counter := func(name, help string) prometheus.Counter {
		return f.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}

	return &Metrics{
		Frames:          counter("frames_total", "Total number of audio frames processed"),
		SilentFrames:    counter("silent_frames_total", "Frames that were entirely zero"),
		QuietFrames:     counter("quiet_frames_total", "Frames below the quiet threshold"),
		NumericFaults:   counter("numeric_faults_total", "Frames whose loudness was non-finite and substituted"),
		Beats:           counter("beats_total", "Beat detections"),
		DrumBreaks:      counter("drum_breaks_total", "Drum-break detections"),
		CommandsSent:    counter("commands_sent_total", "Light commands sent"),
		RateLimited:     counter("commands_rate_limited_total", "Light commands dropped by the update interval"),
		TransportFaults: counter("transport_faults_total", "Light commands that failed to send"),
		StreamReopens:   counter("stream_reopens_total", "Capture stream reopens after a fault"),

		Loudness:   gauge("loudness", "Most recent loudness"),
		Envelope:   gauge("envelope", "Adaptive envelope maximum"),
		Brightness: gauge("brightness", "Brightness of the last analysed frame"),
		Mode:       gauge("mode", "Override mode: 0 normal, 1 drum break, 2 beat"),
	}
}

// ObserveFrame implements processor.FrameObserver.
func (m *Metrics) ObserveFrame(r processor.FrameResult) {
	m.Frames.Inc()
	if r.Reading.Fault != nil {
		m.NumericFaults.Inc()
	}

	switch r.Reading.Status {
	case processor.StatusSilent:
		m.SilentFrames.Inc()
		return
	case processor.StatusQuiet:
		m.QuietFrames.Inc()
	}
	m.Loudness.Set(r.Reading.Loudness)
	m.Envelope.Set(r.Reading.Envelope)
	if !r.Analysed {
		return
	}

	m.Mode.Set(float64(r.Output.Mode))
	m.Brightness.Set(float64(r.Output.Brightness))
	if r.Output.BeatTriggered {
		m.Beats.Inc()
	}
	if r.Output.DrumBreakTriggered {
		m.DrumBreaks.Inc()
	}

	switch r.Outcome {
	case processor.OutcomeSent:
		m.CommandsSent.Inc()
	case processor.OutcomeRateLimited:
		m.RateLimited.Inc()
	case processor.OutcomeFailed:
		m.TransportFaults.Inc()
	}
}

// StreamReopened counts a supervisor reopen.
func (m *Metrics) StreamReopened() { m.StreamReopens.Inc() }

// Serve exposes gatherer on addr at /metrics until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
