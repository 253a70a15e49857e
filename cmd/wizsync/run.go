package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/linuxmatters/wizsync/internal/audio"
	"github.com/linuxmatters/wizsync/internal/audio/portaudio"
	"github.com/linuxmatters/wizsync/internal/config"
	"github.com/linuxmatters/wizsync/internal/logging"
	"github.com/linuxmatters/wizsync/internal/metrics"
	"github.com/linuxmatters/wizsync/internal/processor"
	"github.com/linuxmatters/wizsync/internal/ui"
	"github.com/linuxmatters/wizsync/internal/wiz"
)

// feedSize buffers monitor events between redraws.
const feedSize = 64

// RunCmd drives the lights until interrupted.
type RunCmd struct {
	Replay      string `type:"existingfile" help:"Replay a WAV file instead of capturing live audio"`
	Loop        bool   `help:"Loop the replay file"`
	NoTUI       bool   `name:"no-tui" help:"Log to the console instead of showing the live monitor"`
	MetricsAddr string `help:"Serve Prometheus metrics on this address, e.g. :9090"`
	Seed        uint64 `help:"Seed for randomised palette reversal (0 picks one)"`
}

func (c *RunCmd) Run(g *Globals) error {
	logOpts := logging.Options{Level: g.LogLevel}
	if !c.NoTUI {
		logOpts.File = logging.DebugLogFile
	}
	logger, closer, err := logging.New(logOpts)
	if err != nil {
		return err
	}
	defer closer.Close()

	cfg := loadConfig(g, logger)

	provider, source, err := c.provider()
	if err != nil {
		return err
	}
	defer func() {
		if err := provider.Terminate(); err != nil {
			logger.Warn().Err(err).Msg("terminate audio backend")
		}
	}()

	client, err := wiz.NewClient(cfg)
	if err != nil {
		return err
	}
	defer client.Close()
	if hosts := client.Unresolved(); len(hosts) > 0 {
		logger.Warn().Strs("hosts", hosts).Msg("light endpoints did not resolve")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session := logging.NewSession(time.Now())
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	opts := []processor.Option{
		processor.WithLogger(logger),
		processor.WithObserver(m),
		processor.WithObserver(session),
	}
	if c.Seed != 0 {
		opts = append(opts, processor.WithRand(rand.New(rand.NewPCG(c.Seed, 0))))
	}
	var feed *ui.Feed
	if !c.NoTUI {
		feed = ui.NewFeed(feedSize)
		opts = append(opts, processor.WithObserver(feed))
	}
	pipeline := processor.NewPipeline(cfg, client, opts...)

	sup := audio.NewSupervisor(provider, streamParams(cfg), pipeline.Handle,
		audio.WithSupervisorLogger(logger),
		audio.WithReopenHook(func() {
			m.StreamReopened()
			session.StreamReopened()
			if feed != nil {
				feed.StreamReopened()
			}
		}),
	)

	go watchReload(ctx, cfg, client, g.Config, logger)

	if c.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, c.MetricsAddr, reg); err != nil {
				logger.Error().Err(err).Str("addr", c.MetricsAddr).Msg("metrics server")
			}
		}()
	}

	supDone := make(chan struct{})
	var supErr error
	go func() {
		supErr = sup.Run(ctx)
		close(supDone)
	}()

	if feed != nil {
		model := ui.NewModel(source, cfg.LightIPs(), feed, func() logging.SessionStats {
			return session.Snapshot(time.Now())
		})
		p := tea.NewProgram(model, tea.WithAltScreen())
		go func() {
			<-supDone
			p.Send(ui.DoneMsg{Err: supErr})
		}()
		if _, err := p.Run(); err != nil {
			stop()
			<-supDone
			return fmt.Errorf("UI error: %w", err)
		}
		stop()
	}
	<-supDone

	if supErr != nil {
		return supErr
	}
	return logging.WriteReport(os.Stdout, session.Snapshot(time.Now()))
}

// provider selects live capture or file replay and names the source for
// the monitor.
func (c *RunCmd) provider() (audio.Provider, string, error) {
	if c.Replay != "" {
		return audio.NewReplay(c.Replay, c.Loop), c.Replay, nil
	}
	pa, err := portaudio.New()
	if err != nil {
		return nil, "", err
	}
	return pa, "live input", nil
}

func streamParams(cfg *config.Config) func() audio.Params {
	return func() audio.Params {
		return audio.Params{
			DeviceIndex:     int(cfg.DeviceIndex.Load()),
			Channels:        int(cfg.Channels.Load()),
			FramesPerBuffer: int(cfg.FramesPerBuffer.Load()),
			SampleRate:      config.SampleRate,
		}
	}
}

// watchReload re-reads the config file on SIGHUP and re-resolves the light
// endpoints for the new generation. A rejected document leaves the running
// config untouched.
func watchReload(ctx context.Context, cfg *config.Config, client *wiz.Client, path string, logger zerolog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	logger = logger.With().Str("component", "config").Logger()
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
		}
		if err := cfg.Load(path); err != nil {
			var parseErr *config.ParseError
			if errors.As(err, &parseErr) {
				logger.Warn().Err(err).Msg("reload rejected")
				continue
			}
			logger.Warn().Err(err).Msg("reload failed")
			continue
		}
		logger.Info().Uint64("generation", cfg.Generation()).Msg("config reloaded")

		if client.Generation() == cfg.Generation() {
			continue
		}
		rctx, cancel := context.WithTimeout(ctx, wiz.DefaultResolveTimeout)
		if err := client.Resolve(rctx); err != nil {
			logger.Warn().Err(err).Msg("light endpoints did not resolve")
		}
		cancel()
	}
}
