// Command agentrail runs the bundled agent scenarios.
//
// Usage:
//
//	agentrail scenarios
//	agentrail run bank "I want to check my balance. My account number is 309473804"
//	agentrail run support --stream
//	agentrail run library --config agentrail.yaml --metrics-addr :9090 --trace
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/hupe1980/agentrail/config"
)

// CLI defines the command-line interface.
type CLI struct {
	Run       RunCmd       `cmd:"" help:"Run a scenario once, or interactively when no input is given."`
	Scenarios ScenariosCmd `cmd:"" help:"List the available scenarios."`

	Config   string   `short:"c" help:"Path to a YAML config file." type:"path"`
	EnvFile  []string `name:"env-file" help:"Dotenv files to load (default .env.local, .env)."`
	LogLevel string   `help:"Log level (debug, info, warn, error)." default:""`
}

func main() {
	cli := CLI{}
	kctx := kong.Parse(&cli,
		kong.Name("agentrail"),
		kong.Description("Guardrailed, capability gated agent runs with handoffs"),
		kong.UsageOnError(),
	)

	if err := config.LoadEnvFiles(cli.EnvFile...); err != nil {
		fmt.Fprintf(os.Stderr, "load env files: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kctx.BindTo(ctx, (*context.Context)(nil))
	err := kctx.Run(&cli)
	kctx.FatalIfErrorf(err)
}

// loadConfig reads --config, or builds the environment based defaults.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if c.Config != "" {
		var err error
		if cfg, err = config.Load(c.Config); err != nil {
			return nil, err
		}
	}
	if c.LogLevel != "" {
		cfg.Logging.Level = c.LogLevel
	}
	return cfg, nil
}
