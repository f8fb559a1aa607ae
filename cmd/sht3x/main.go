package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	chlog "github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/sht3x/cmd/sht3x/console"
	"github.com/mklimuk/sht3x/environment"
	"github.com/mklimuk/sht3x/i2c"
	"github.com/mklimuk/sht3x/snsctx"
)

var version string
var commit string
var date string

// settleDelay is how long a measurement command waits before reading back.
var settleDelay = environment.DefaultSettleDelay

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr, openBackend))
}

func run(args []string, stdout, stderr io.Writer, connect connector) int {
	console.SetOutput(stderr)
	// -v is verbose mode, not version
	cli.VersionFlag = &cli.BoolFlag{Name: "version", Usage: "print the version"}

	sel := newSelection()
	app := cli.NewApp()
	app.Name = "sht3x"
	app.Usage = "SHT3x sensor read"
	app.Version = fmt.Sprintf("%s-%s-%s", version, date, commit)
	app.HideHelpCommand = true
	app.CustomAppHelpTemplate = helpText()
	app.Writer = stdout
	app.ErrWriter = stderr
	app.Flags = newFlags(sel)
	app.ExitErrHandler = func(*cli.Context, error) {}
	app.OnUsageError = func(c *cli.Context, err error, isSubcommand bool) error {
		return console.Usage(unknownParameter(err), helpText())
	}
	app.Before = func(c *cli.Context) error {
		// stdout carries readings, so logs go to stderr
		charm := chlog.NewWithOptions(stderr, chlog.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
		})
		charm.SetColorProfile(termenv.NewOutput(stderr).EnvColorProfile())
		charm.SetLevel(chlog.InfoLevel)
		if c.Bool("v") {
			charm.SetLevel(chlog.DebugLevel)
		}
		slog.SetDefault(slog.New(charm))
		return nil
	}
	app.Action = func(c *cli.Context) error {
		if c.Args().Present() {
			return console.Usage(c.Args().First(), helpText())
		}
		cfg := newConfig(c, sel)
		ctx := snsctx.SetDevice(snsctx.SetVerbose(c.Context, cfg.verbose), cfg.device)
		slog.Debug("configuration", "device", cfg.device, "backend", cfg.backend, "addr", fmt.Sprintf("%#02x", cfg.address))

		open, err := connect(cfg)
		if err != nil {
			return console.Exit(1, "%s", err)
		}
		sensor := environment.NewSHT3x(i2c.Trace(open),
			environment.WithAddress(cfg.address),
			environment.WithSettleDelay(settleDelay),
			environment.WithCRCCheck(cfg.crc),
		)
		err = execute(ctx, cfg, sensor, newRenderer(stdout, cfg))
		if err != nil {
			return console.Exit(1, "%s (device %s, address %#02x)", err, cfg.device, sensor.Address())
		}
		return nil
	}

	err := app.Run(args)
	if err != nil {
		var exerr cli.ExitCoder
		if errors.As(err, &exerr) {
			if msg := exerr.Error(); msg != "" {
				console.Error(msg)
			}
			return exerr.ExitCode()
		}
		console.Error(err.Error())
		return 1
	}
	return 0
}
