// Package provision runs the jobset provisioning sequence against a Hydra
// server: load the jobset document, log in, ensure the project, ensure the
// jobset. The sequence is linear and stops at the first failure. Steps that
// already succeeded are not undone.
package provision

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"time"

	"hydractl/internal/hydra"
	"hydractl/internal/jobset"
	"hydractl/internal/observability"
)

// Request describes one provisioning run.
type Request struct {
	Host        string
	ConfigPath  string
	Project     string
	Jobset      string
	Credentials *hydra.Credentials
}

// Options configures the Provisioner.
type Options struct {
	// HTTPClient is the transport handed to each run's Hydra client. May be nil.
	HTTPClient   *http.Client
	Timeout      time.Duration
	StrictStatus bool
	Logger       *slog.Logger
	Metrics      *observability.Metrics
}

// Report records how far a run got and the HTTP exchanges it made.
type Report struct {
	Stage   Stage
	Results []*hydra.Result
}

// Provisioner executes provisioning runs.
type Provisioner struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Provisioner.
func New(opts Options) *Provisioner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{opts: opts, logger: logger}
}

// Run executes the provisioning sequence. The credentials in req are
// cleared once the login call has returned. The returned Report is never
// nil; on failure the error is a *StepError naming the step that failed.
func (p *Provisioner) Run(ctx context.Context, req Request) (*Report, error) {
	start := time.Now()
	report := &Report{Stage: StageStart}
	defer req.Credentials.Clear()

	err := p.run(ctx, req, report)

	if p.opts.Metrics != nil {
		p.opts.Metrics.RecordRun(ctx, report.Stage.String(), err == nil, time.Since(start).Seconds())
	}
	return report, err
}

func (p *Provisioner) run(ctx context.Context, req Request, report *Report) error {
	logger := p.logger.With("project", req.Project, "jobset", req.Jobset)

	// Bad names must never reach the network.
	if err := hydra.ValidateProjectName(req.Project); err != nil {
		return fail(report, StepValidate, err)
	}
	if err := hydra.ValidateJobsetName(req.Jobset); err != nil {
		return fail(report, StepValidate, err)
	}

	client, err := hydra.NewClient(hydra.ClientConfig{
		Host:         req.Host,
		HTTPClient:   p.opts.HTTPClient,
		Timeout:      p.opts.Timeout,
		StrictStatus: p.opts.StrictStatus,
		Logger:       p.logger,
		Metrics:      p.opts.Metrics,
	})
	if err != nil {
		return fail(report, StepValidate, err)
	}

	cfg, err := jobset.LoadConfig(req.ConfigPath)
	if err != nil {
		return fail(report, StepLoadConfig, err)
	}
	report.Stage = StageConfigLoaded
	logConfig(logger, req.ConfigPath, cfg)

	session, result, err := client.Login(ctx, req.Credentials)
	req.Credentials.Clear()
	report.record(result)
	if err != nil {
		return fail(report, StepLogin, err)
	}
	report.Stage = StageAuthenticated
	logger = logger.With("user", session.User())

	result, err = session.EnsureProject(ctx, req.Project)
	report.record(result)
	if err != nil {
		return fail(report, StepEnsureProject, err)
	}
	report.Stage = StageProjectEnsured

	result, err = session.EnsureJobset(ctx, req.Project, req.Jobset, cfg)
	report.record(result)
	if err != nil {
		return fail(report, StepEnsureJobset, err)
	}
	report.Stage = StageJobsetEnsured

	logger.Info("Jobset provisioned", "host", client.Host(), "requests", len(report.Results))
	return nil
}

// logConfig logs what is about to be sent as the jobset body.
func logConfig(logger *slog.Logger, path string, cfg *jobset.Config) {
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	fields, err := cfg.Fields()
	if err != nil {
		return
	}
	schema := cfg.Schema()
	logger.Debug("Jobset configuration loaded",
		"path", path,
		"fields", slices.Sorted(maps.Keys(fields)),
		"nixexprinput", schema.NixExprInput,
		"nixexprpath", schema.NixExprPath,
		"flake", schema.Flake,
		"inputs", len(schema.Inputs),
	)
}

func (r *Report) record(result *hydra.Result) {
	if result != nil {
		r.Results = append(r.Results, result)
	}
}

// StepError is returned by Run. Step is the step that failed, Stage the
// last stage completed before it.
type StepError struct {
	Step  Step
	Stage Stage
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func fail(report *Report, step Step, err error) error {
	return &StepError{Step: step, Stage: report.Stage, Err: err}
}
