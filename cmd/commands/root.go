// Package commands implements the vexora command line.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/hupe1980/vexora"
	"github.com/hupe1980/vexora/config"
	"github.com/hupe1980/vexora/logging"
)

type runtimeKey struct{}

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "vexora",
		Usage: "Delegate work to AI actors",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   filepath.Join(config.HomePath(), "config.yaml"),
				Sources: cli.EnvVars(config.EnvPrefix + "_CONFIG"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Before: setup,
		After:  teardown,
		Commands: []*cli.Command{
			NewSayCommand(),
			NewRunCommand(),
			NewExtractCommand(),
			NewGenerateCommand(),
			NewSchemaCommand(),
			NewThreadsCommand(),
		},
	}
}

// setup loads the settings and installs the runtime for the subcommand.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !cmd.IsSet("config") {
		path = ""
	}

	settings, err := config.Load(path)
	if err != nil {
		return ctx, err
	}

	if cmd.Bool("debug") {
		settings.LogLevel = "debug"
	}

	level, err := logging.ParseLevel(settings.LogLevel)
	if err != nil {
		return ctx, err
	}

	logging.Setup(level, settings.LogFormat, os.Stderr)

	v, err := vexora.New(
		vexora.WithSettings(settings),
		vexora.WithLogger(logging.Named("cli")),
	)
	if err != nil {
		return ctx, err
	}

	v.Install()

	return context.WithValue(ctx, runtimeKey{}, v), nil
}

func teardown(ctx context.Context, _ *cli.Command) error {
	if v, ok := ctx.Value(runtimeKey{}).(*vexora.Vexora); ok {
		return v.Close()
	}

	return nil
}

func runtimeFrom(ctx context.Context) (*vexora.Vexora, error) {
	v, ok := ctx.Value(runtimeKey{}).(*vexora.Vexora)
	if !ok {
		return nil, fmt.Errorf("runtime not initialized")
	}

	return v, nil
}

// input joins the arguments, or reads stdin when there are none and stdin
// is not a terminal. A single "-" always reads stdin.
func input(cmd *cli.Command, usage string) (string, error) {
	args := cmd.Args().Slice()

	if len(args) == 1 && args[0] == "-" || len(args) == 0 && !term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		args = []string{string(b)}
	}

	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return "", fmt.Errorf("usage: vexora %s", usage)
	}

	return text, nil
}
