package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"

	"github.com/linuxmatters/wizsync/internal/audio"
	"github.com/linuxmatters/wizsync/internal/audio/portaudio"
	"github.com/linuxmatters/wizsync/internal/cli"
	"github.com/linuxmatters/wizsync/internal/config"
	"github.com/linuxmatters/wizsync/internal/logging"
	"github.com/linuxmatters/wizsync/internal/wiz"
)

var (
	version = "0.0.1"
)

// Globals are flags shared by every command.
type Globals struct {
	Config   string `short:"c" type:"path" default:"volume_config.json" help:"Path to the JSON config file"`
	LogLevel string `default:"info" enum:"trace,debug,info,warn,error" help:"Log level (${enum})"`
}

// CLI defines the command-line interface
type CLI struct {
	Globals

	Run      RunCmd      `cmd:"" default:"1" help:"Drive the lights from live or replayed audio"`
	Devices  DevicesCmd  `cmd:"" help:"List audio input devices"`
	Discover DiscoverCmd `cmd:"" help:"Find WiZ bulbs on the local network"`
	Init     InitCmd     `cmd:"" help:"Write a config file with the built-in defaults"`
	Version  VersionCmd  `cmd:"" help:"Show version information"`
}

func main() {
	cliArgs := &CLI{}
	ctx := kong.Parse(cliArgs,
		kong.Name("wizsync"),
		kong.Description("Music-reactive WiZ light controller"),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
		},
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)

	if err := ctx.Run(&cliArgs.Globals); err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}
}

// loadConfig returns the defaults overlaid with the config file. A missing
// or invalid file is reported and the defaults are kept.
func loadConfig(g *Globals, logger zerolog.Logger) *config.Config {
	cfg := config.Default()
	err := cfg.Load(g.Config)

	var (
		loadErr  *config.LoadError
		parseErr *config.ParseError
	)
	switch {
	case err == nil:
		logger.Info().Str("path", g.Config).Object("config", cfg).Msg("config loaded")
	case errors.As(err, &loadErr):
		logger.Warn().Err(err).Msg("using default config")
	case errors.As(err, &parseErr):
		logger.Warn().Err(err).Msg("config rejected, using defaults")
	default:
		logger.Warn().Err(err).Msg("config not loaded")
	}
	return cfg
}

// DevicesCmd lists capture devices.
type DevicesCmd struct{}

func (c *DevicesCmd) Run(g *Globals) error {
	pa, err := portaudio.New()
	if err != nil {
		return err
	}
	defer pa.Terminate()

	devices, err := pa.Devices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return fmt.Errorf("%w: no input devices found", audio.ErrInvalidDevice)
	}

	t := logging.NewMetricTable("Name", "Host API", "Channels", "Rate")
	for _, d := range devices {
		note := ""
		if d.Default {
			note = "default"
		}
		t.AddRow(fmt.Sprint(d.Index), []string{
			d.Name,
			d.HostAPI,
			fmt.Sprint(d.MaxInputChannels),
			fmt.Sprintf("%.0f", d.DefaultSampleRate),
		}, "Hz", note)
	}
	fmt.Print(t.String())
	return nil
}

// DiscoverCmd broadcasts for bulbs and optionally saves their addresses.
type DiscoverCmd struct {
	Timeout time.Duration `default:"5s" help:"How long to wait for replies"`
	Save    bool          `help:"Replace network.light_ips in the config file with the bulbs found"`
}

func (c *DiscoverCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := wiz.DefaultDiscoverOptions()
	opts.Timeout = c.Timeout
	bulbs, err := wiz.Discover(ctx, opts)
	if err != nil {
		return err
	}
	if len(bulbs) == 0 {
		cli.PrintWarning("no bulbs replied")
		return nil
	}

	t := logging.NewMetricTable("MAC")
	ips := make([]string, 0, len(bulbs))
	for _, b := range bulbs {
		t.AddRow(b.IP, []string{b.MAC}, "", "")
		ips = append(ips, b.IP)
	}
	fmt.Print(t.String())

	if !c.Save {
		return nil
	}
	cfg := config.Default()
	if err := cfg.Load(g.Config); err != nil {
		var loadErr *config.LoadError
		if !errors.As(err, &loadErr) {
			return err
		}
	}
	cfg.SetLightIPs(ips)
	if err := cfg.WriteFile(g.Config, true); err != nil {
		return err
	}
	cli.PrintKeyValue("Saved", g.Config)
	return nil
}

// InitCmd writes the default configuration.
type InitCmd struct {
	Force bool `help:"Overwrite an existing config file"`
}

func (c *InitCmd) Run(g *Globals) error {
	if err := config.Default().WriteFile(g.Config, c.Force); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s already exists, use --force to replace it", g.Config)
		}
		return err
	}
	cli.PrintKeyValue("Wrote", g.Config)
	return nil
}

// VersionCmd prints the version.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	cli.PrintVersion(version)
	return nil
}
