// Command facetscript runs facet scene scripts without the desktop UI and
// prints the resulting scene and its provenance.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/chazu/facet/pkg/config"
	"github.com/chazu/facet/pkg/engine"
	"github.com/chazu/facet/pkg/graph"
)

// errScriptFailed is returned after the script's own errors are printed.
var errScriptFailed = errors.New("script failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(engine.New).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// engineFactory builds the engine a run evaluates against.
type engineFactory func(cfg *config.Config, log *slog.Logger) *engine.Engine

func newRootCmd(newEngine engineFactory) *cobra.Command {
	root := &cobra.Command{
		Use:           "facetscript",
		Short:         "Run facet scene scripts headlessly",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(newEngine))
	return root
}

type runOptions struct {
	configPath string
	validate   bool
	newEngine  engineFactory
}

func newRunCmd(newEngine engineFactory) *cobra.Command {
	opts := runOptions{newEngine: newEngine}
	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Evaluate a script and print the resulting scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := run(cmd.Context(), args[0], opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil && !errors.Is(err, errScriptFailed) {
				fmt.Fprintf(cmd.ErrOrStderr(), "facetscript: %v\n", err)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config", "", "config file (default: $FACET_CONFIG, ./facet.yaml, then the user config dir)")
	cmd.Flags().BoolVar(&opts.validate, "validate", false, "check the provenance graph and fail on structural errors")
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, _, err := config.LoadFromPath(path)
		return cfg, err
	}
	cfg, _, err := config.Load()
	return cfg, err
}

func run(ctx context.Context, path string, opts runOptions, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	log := config.NewLogger(cfg.Log, stderr)

	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}

	eng := opts.newEngine(cfg, log)
	res, err := eng.Evaluate(ctx, string(src))
	if err != nil {
		return fmt.Errorf("evaluate %s: %w", path, err)
	}

	for _, w := range res.Warnings {
		fmt.Fprintf(stderr, "%s: warning: %s (%s)\n", path, w.Message, w.NodeID)
	}

	s := eng.Session()
	writeScene(stdout, s.Elements())
	writeProvenance(stdout, s.Graph(), s.Elements())

	failed := false
	for _, e := range res.Errors {
		if e.Line > 0 {
			fmt.Fprintf(stderr, "%s:%d: %s\n", path, e.Line, e.Message)
		} else {
			fmt.Fprintf(stderr, "%s: %s\n", path, e.Message)
		}
		failed = true
	}

	if opts.validate {
		for _, v := range graph.Validate(s.Graph()) {
			fmt.Fprintf(stderr, "%s: %s\n", path, v.Error())
			if v.Severity == graph.SeverityError {
				failed = true
			}
		}
	}

	if failed {
		return errScriptFailed
	}
	return nil
}
