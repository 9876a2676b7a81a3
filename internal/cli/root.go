// Package cli implements the reviewgate command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sprite-ai/reviewgate/internal/config"
	"github.com/sprite-ai/reviewgate/internal/input"
	"github.com/sprite-ai/reviewgate/internal/logging"
)

// Global flags
var (
	configPath string
	verbose    bool
)

// cmdEnv is the config and logger built for one command run. It travels
// in the command's context.
type cmdEnv struct {
	cfg    *config.Config
	logger *zap.Logger
}

type cmdEnvKey struct{}

func withEnv(ctx context.Context, env cmdEnv) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, cmdEnvKey{}, env)
}

// envFrom returns the env stored in ctx, or the zero value.
func envFrom(ctx context.Context) cmdEnv {
	if ctx == nil {
		return cmdEnv{}
	}
	env, _ := ctx.Value(cmdEnvKey{}).(cmdEnv)
	return env
}

var rootCmd = &cobra.Command{
	Use:   "reviewgate",
	Short: "Complexity scoring and review routing for implementation plans",
	Long: `reviewgate scores an implementation plan's complexity on a 1-10 scale and
routes it to the right level of human review:

  1-3   auto-proceed
  4-6   quick optional review (10 second countdown)
  7-10  full review checkpoint

Security keywords, schema changes, hotfixes, breaking changes and --review
always force a full review.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config %s: %w", configPath, err)
		}
		logger, err := logging.New(logging.Level(cfg.Logging.Level, verbose), cfg.Logging.Format)
		if err != nil {
			return err
		}
		cmd.SetContext(withEnv(cmd.Context(), cmdEnv{cfg: cfg, logger: logger}))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if l := envFrom(cmd.Context()).logger; l != nil {
			_ = l.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(
		evaluateCmd,
		reviewCmd,
		modifyCmd,
		askCmd,
		versionsCmd,
		workCmd,
		auditCmd,
		statsCmd,
		serveCmd,
		mcpCmd,
		versionCmd,
	)
}

// Execute runs the root command. Errors other than *ExitError are printed.
func Execute() error {
	err := rootCmd.Execute()
	var exit *ExitError
	if err != nil && !errors.As(err, &exit) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

// ExitError carries a process exit code without an error message.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string { return fmt.Sprintf("exit status %d", e.Code) }

// ExitCode maps an Execute error to a process exit code.
func ExitCode(err error) int {
	var exit *ExitError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &exit):
		return exit.Code
	case errors.Is(err, input.ErrInterrupted):
		return 130
	default:
		return 1
	}
}
