package hydra

import (
	"fmt"
	"net/http"
	"regexp"
	"time"

	"hydractl/internal/apperrors"
)

// maxNameLength matches the limit Hydra puts on project and jobset names.
const maxNameLength = 255

// Hydra's identifier rules. Jobset names may also contain dots
// (release-23.05), project names may not.
var (
	projectNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)
	jobsetNamePattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ProjectConfig is the body of a project PUT.
type ProjectConfig struct {
	DisplayName string `json:"displayname"`
	Enabled     bool   `json:"enabled"`
	Visible     bool   `json:"visible"`
}

// NewProjectConfig returns the project body this tool always sends:
// the name as display name, enabled and visible.
func NewProjectConfig(project string) ProjectConfig {
	return ProjectConfig{
		DisplayName: project,
		Enabled:     true,
		Visible:     true,
	}
}

// Result describes one completed HTTP exchange.
type Result struct {
	Method     string
	URL        string
	StatusCode int
	Duration   time.Duration
}

// OK reports whether the server answered with a 2xx status.
func (r *Result) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Result) String() string {
	return fmt.Sprintf("%s %s -> %d %s", r.Method, r.URL, r.StatusCode, http.StatusText(r.StatusCode))
}

// ValidateProjectName checks a project name before it is placed in a URL
// path. Names with '/', '.', spaces or other characters outside Hydra's
// project rule are rejected rather than encoded.
func ValidateProjectName(name string) error {
	return validateName("project", name, projectNamePattern, "letters, digits, '_' and '-'")
}

// ValidateJobsetName checks a jobset name. Jobset names additionally
// allow '.'.
func ValidateJobsetName(name string) error {
	return validateName("jobset", name, jobsetNamePattern, "letters, digits, '_', '-' and '.'")
}

func validateName(field, name string, pattern *regexp.Regexp, allowed string) error {
	if name == "" {
		return apperrors.Validation(field, fmt.Sprintf("%s name is required", field))
	}
	if len(name) > maxNameLength {
		return apperrors.Validation(field, fmt.Sprintf("%s name exceeds maximum length of %d", field, maxNameLength))
	}
	if !pattern.MatchString(name) {
		return apperrors.Validation(field, fmt.Sprintf("invalid %s name %q: must start with a letter or underscore and contain only %s", field, name, allowed))
	}
	return nil
}
