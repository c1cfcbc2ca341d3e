package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"hydractl/internal/apperrors"
	"hydractl/internal/config"
	"hydractl/internal/observability"
)

// app holds the state shared by all commands of one invocation.
type app struct {
	cfg     *config.ToolConfig
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	logger  *slog.Logger
	metrics *observability.Metrics
}

// run executes the command line and returns the error that decides the
// exit code. Errors are logged before they are returned.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return err
	}

	a := &app{
		cfg:    config.LoadToolConfig(),
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}
	// Replaced once flags are parsed.
	a.logger = observability.NewLogger(stderr, a.cfg.LogLevel, a.cfg.LogFormat)

	cmd := rootCmd(a)
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err != nil {
		a.logger.Error("hydractl failed", "error", err, "exit_code", apperrors.ExitCode(err))
	}
	return err
}

// rootCmd builds the command tree. Global flags default to the values
// loaded from the environment.
func rootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hydractl",
		Short:         "hydractl provisions projects and jobsets on a Hydra CI server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.logger = observability.NewLogger(a.stderr, a.cfg.LogLevel, a.cfg.LogFormat)
			slog.SetDefault(a.logger)
			return nil
		},
	}

	addGlobalFlags(cmd.PersistentFlags(), a.cfg)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return apperrors.Validation("flags", err.Error())
	})

	cmd.AddCommand(
		jobsetCreateCmd(a),
		versionCmd(a),
	)
	return cmd
}

// addGlobalFlags binds the connection and logging flags to cfg.
func addGlobalFlags(flags *pflag.FlagSet, cfg *config.ToolConfig) {
	flags.StringVar(&cfg.Host, "host", cfg.Host, "Hydra base URL (env HYDRA_HOST)")
	flags.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request HTTP timeout, 0 disables it (env HYDRA_HTTP_TIMEOUT)")
	flags.BoolVar(&cfg.StrictStatus, "strict-status", cfg.StrictStatus, "Fail on non-2xx responses (env HYDRA_STRICT_STATUS)")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error (env LOG_LEVEL)")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text or json (env LOG_FORMAT)")
	flags.StringVar(&cfg.PushgatewayURL, "pushgateway", cfg.PushgatewayURL, "Prometheus Pushgateway URL to push run metrics to (env PUSHGATEWAY_URL)")
}

// exactArgs is cobra.ExactArgs reporting a validation error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return apperrors.Validation("args", fmt.Sprintf("%v\nUsage: %s", err, cmd.UseLine()))
		}
		return nil
	}
}

// pushMetrics sends the run's metrics to the Pushgateway, if configured.
// Failures are logged only.
func (a *app) pushMetrics(ctx context.Context) {
	if a.metrics == nil || a.cfg.PushgatewayURL == "" {
		return
	}
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := a.metrics.Push(pushCtx, a.cfg.PushgatewayURL, "hydractl"); err != nil {
		a.logger.Warn("Failed to push metrics", "url", a.cfg.PushgatewayURL, "error", err)
		return
	}
	a.logger.Debug("Metrics pushed", "url", a.cfg.PushgatewayURL)
}
