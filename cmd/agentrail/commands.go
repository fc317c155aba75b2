package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hupe1980/agentrail/config"
	"github.com/hupe1980/agentrail/core"
	"github.com/hupe1980/agentrail/internal/demo"
	"github.com/hupe1980/agentrail/runner"
)

// ScenariosCmd lists the scenarios.
type ScenariosCmd struct{}

func (c *ScenariosCmd) Run() error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, s := range demo.Scenarios() {
		fmt.Fprintf(w, "%s\t%s\n", s.Name, s.Description)
		for _, sample := range s.Samples {
			fmt.Fprintf(w, "\t  > %s\n", sample)
		}
	}
	return w.Flush()
}

// RunCmd runs a scenario.
type RunCmd struct {
	Scenario string   `arg:"" help:"Scenario name (see 'agentrail scenarios')."`
	Input    []string `arg:"" optional:"" help:"User input. Starts an interactive session when empty."`

	Stream      bool          `help:"Print events as they happen."`
	Provider    string        `help:"Model provider (openai, anthropic, gemini, gemini-openai, mock)."`
	Model       string        `help:"Model name."`
	MaxTurns    int           `name:"max-turns" help:"Maximum model calls per run."`
	Timeout     time.Duration `help:"Per run timeout." default:"90s"`
	Trace       bool          `help:"Export spans to stderr."`
	MetricsAddr string        `name:"metrics-addr" help:"Serve Prometheus metrics on this address, e.g. :9090."`
}

func (c *RunCmd) Run(cli *CLI, ctx context.Context) error {
	sc, err := demo.Lookup(c.Scenario)
	if err != nil {
		return err
	}

	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	c.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	rt, err := cfg.Build(ctx)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = rt.Shutdown(shutdownCtx)
	}()

	if h := rt.MetricsHandler(); h != nil {
		srv := serveMetrics(c.MetricsAddr, h)
		defer srv.Close()
	}

	setup, err := sc.Build(demo.Deps{GuardModel: rt.Model})
	if err != nil {
		return fmt.Errorf("build scenario %s: %w", sc.Name, err)
	}

	if len(c.Input) > 0 {
		return c.runOnce(ctx, rt.Runner, setup, strings.Join(c.Input, " "), os.Stdout)
	}

	return c.interactive(ctx, rt.Runner, setup, sc, os.Stdin, os.Stdout)
}

func (c *RunCmd) apply(cfg *config.Config) {
	if c.Provider != "" && c.Provider != cfg.Model.Provider {
		cfg.Model.Provider = c.Provider
		cfg.Model.APIKey = ""
		cfg.SetDefaults()
	}
	if c.Model != "" {
		cfg.Model.Name = c.Model
	}
	if c.MaxTurns > 0 {
		cfg.Runner.MaxTurns = c.MaxTurns
	}
	if c.Trace {
		cfg.Tracing.Enabled = true
		cfg.Tracing.SetDefaults()
	}
	if c.MetricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = c.MetricsAddr
	}
}

func serveMetrics(addr string, h http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
		}
	}()
	return srv
}

func (c *RunCmd) interactive(ctx context.Context, r *runner.Runner, setup *demo.Setup, sc demo.Scenario, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "%s: %s\nType 'exit' to quit. Try:\n", sc.Name, sc.Description)
	for _, s := range sc.Samples {
		fmt.Fprintf(out, "  %s\n", s)
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(input) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		if err := c.runOnce(ctx, r, setup, input, out); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *RunCmd) runOnce(ctx context.Context, r *runner.Runner, setup *demo.Setup, input string, out io.Writer) error {
	if setup.Prepare != nil {
		setup.Prepare(input)
	}

	timeout := func(o *runner.RunOptions) { o.Timeout = c.Timeout }

	var res *runner.Result
	if c.Stream {
		s := r.RunStreamed(ctx, setup.Agent, input, setup.Cell, timeout)
		printEvents(out, s.Events())
		res = s.Wait()
	} else {
		res = r.Run(ctx, setup.Agent, input, setup.Cell, timeout)
		printResult(out, res)
	}

	if res.Failed() {
		return res.Err()
	}
	return nil
}

func printEvents(out io.Writer, events <-chan core.Event) {
	first := true
	for ev := range events {
		switch ev.Type {
		case core.EventAgentActivated:
			if !first {
				fmt.Fprintf(out, "[Handoff] Switching to %s\n", ev.Agent)
			}
			first = false
		case core.EventToolInvoked:
			fmt.Fprintf(out, "[Tool] %s(%s)\n", ev.ToolName, ev.Arguments)
		case core.EventToolResult:
			if ev.Error != "" {
				fmt.Fprintf(out, "[Tool Error] %s\n", ev.Error)
				continue
			}
			fmt.Fprintf(out, "[Tool Output] %s\n", ev.Result)
		case core.EventMessage:
			fmt.Fprintf(out, "[Response]\n%s\n", ev.Text)
		case core.EventHalted:
			fmt.Fprintf(out, "[Halted] %s\n", guardrailNames(ev.Verdicts))
		case core.EventFailed:
			// reported by runOnce
		}
	}
}

func printResult(out io.Writer, res *runner.Result) {
	switch {
	case res.Done():
		fmt.Fprintln(out, res.FinalOutput)
	case res.Halted():
		fmt.Fprintf(out, "Guardrail triggered: %s\n", guardrailNames(res.Tripped()))
	}
}

func guardrailNames(verdicts []core.GuardrailResult) string {
	names := make([]string, len(verdicts))
	for i, v := range verdicts {
		names[i] = fmt.Sprintf("%s (%s)", v.Guardrail, v.Direction)
	}
	return strings.Join(names, ", ")
}
