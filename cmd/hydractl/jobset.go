package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hydractl/internal/apperrors"
	"hydractl/internal/config"
	"hydractl/internal/hydra"
	"hydractl/internal/observability"
	"hydractl/internal/provision"
)

type jobsetCreateOptions struct {
	user         string
	password     string
	passwordFile string
}

func jobsetCreateCmd(a *app) *cobra.Command {
	opts := &jobsetCreateOptions{user: a.cfg.User}

	cmd := &cobra.Command{
		Use:   "jobset-create PROJECT JOBSET CONFIG",
		Short: "Create or update a jobset, creating its project if needed",
		Long: `Logs in to Hydra, ensures PROJECT exists (enabled and visible), then
creates or replaces JOBSET in it with the definition read from CONFIG.

CONFIG is a JSON document; files ending in .jsonc or .yaml/.yml are
converted to JSON first. Both PUT requests are idempotent, so the
command can be re-run safely. Nothing is rolled back on failure.`,
		Example: `  hydractl jobset-create myproj default jobset.json --user alice --password-file /run/secrets/hydra
  echo "$PASSWORD" | hydractl --host https://hydra.example.org jobset-create myproj default jobset.yaml --user alice --password-file -`,
		Args: exactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.jobsetCreate(cmd, opts, args[0], args[1], args[2])
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.user, "user", "u", opts.user, "Hydra user name (env HYDRA_USER)")
	flags.StringVar(&opts.password, "password", "", "Hydra password; prefer --password-file or HYDRA_PASSWORD")
	flags.StringVar(&opts.passwordFile, "password-file", "", "Read the password from this file, or from stdin if '-' (env HYDRA_PASSWORD_FILE)")

	return cmd
}

func (a *app) jobsetCreate(cmd *cobra.Command, opts *jobsetCreateOptions, project, jobsetName, configPath string) error {
	ctx := cmd.Context()

	creds, err := a.credentials(opts)
	if err != nil {
		return err
	}
	defer creds.Clear()

	metrics, err := observability.NewMetrics(ctx)
	if err != nil {
		return err
	}
	defer metrics.Shutdown(ctx)
	a.metrics = metrics

	fmt.Fprintf(a.stdout, "Creating jobset '%s' in project '%s'\n", jobsetName, project)

	p := provision.New(provision.Options{
		Timeout:      a.cfg.Timeout,
		StrictStatus: a.cfg.StrictStatus,
		Logger:       a.logger,
		Metrics:      metrics,
	})
	report, err := p.Run(ctx, provision.Request{
		Host:        a.cfg.Host,
		ConfigPath:  configPath,
		Project:     project,
		Jobset:      jobsetName,
		Credentials: creds,
	})
	for _, result := range report.Results {
		a.logger.Debug("Hydra exchange", "result", result.String(), "duration", result.Duration)
	}
	a.pushMetrics(ctx)
	if err != nil {
		return err
	}

	a.logger.Info("Jobset created", "host", a.cfg.Host, "project", project, "jobset", jobsetName)
	return nil
}

// credentials resolves the login credentials. Flags win over the
// environment, a direct password over a password file. Once the
// credentials are built, no other copy of the password is kept.
func (a *app) credentials(opts *jobsetCreateOptions) (*hydra.Credentials, error) {
	defer func() {
		opts.password = ""
		a.cfg.Password = ""
	}()

	if opts.user == "" {
		return nil, apperrors.Validation("user", "a user is required (--user or HYDRA_USER)")
	}
	if opts.password != "" && opts.passwordFile != "" {
		return nil, apperrors.Validation("password", "--password and --password-file are mutually exclusive")
	}

	var password string
	var err error
	switch {
	case opts.password != "":
		password = opts.password
	case opts.passwordFile != "":
		password, err = config.ReadSecretFile(opts.passwordFile, a.stdin)
	case a.cfg.Password != "":
		password = a.cfg.Password
	case a.cfg.PasswordFile != "":
		password, err = config.ReadSecretFile(a.cfg.PasswordFile, a.stdin)
	}
	if err != nil {
		return nil, err
	}
	if password == "" {
		return nil, apperrors.Validation("password", "a password is required (--password, --password-file, HYDRA_PASSWORD or HYDRA_PASSWORD_FILE)")
	}

	return hydra.NewCredentials(opts.user, password), nil
}
