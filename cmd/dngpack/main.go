package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/dngpack/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).Run(ctx, os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// app carries what the root command resolves for its subcommands.
type app struct {
	configPath string
	logLevel   string
	logFormat  string
	debug      bool

	cfg    Config
	log    logger.Logger
	stdout io.Writer
}

func newApp(stdout io.Writer) *cli.Command {
	a := &app{stdout: stdout, log: logger.Default()}
	return &cli.Command{
		Name:  "dngpack",
		Usage: "Write raw negatives as DNG and images as TIFF",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Usage:       "path to config.yaml (default: user config dir)",
				Destination: &a.configPath,
			},
		}, a.loggingFlags()...),
		Before: a.before,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			a.packCmd(),
			a.tiffCmd(),
			versionCmd(stdout),
		},
	}
}

func (a *app) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := a.configPath
	if path == "" {
		path = configPath()
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return ctx, err
	}
	a.cfg = cfg
	if cfg.LogLevel != "" && !cmd.IsSet("log-level") {
		a.logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !cmd.IsSet("log-format") {
		a.logFormat = cfg.LogFormat
	}
	log, err := newLogger(os.Stderr, a.logFormat, a.logLevel, a.debug)
	if err != nil {
		return ctx, err
	}
	a.log = log
	return logger.WithContext(ctx, a.log), nil
}
