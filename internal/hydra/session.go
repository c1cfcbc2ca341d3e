package hydra

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"hydractl/internal/apperrors"
	"hydractl/internal/jobset"
)

// Session is an authenticated Hydra client. It is created by Client.Login
// and lives for a single provisioning run.
type Session struct {
	client *Client
	user   string
}

// User returns the name the session logged in as.
func (s *Session) User() string {
	return s.user
}

// EnsureProject creates or replaces the project with the given name.
// The request is a PUT, so repeating it leaves the server in the same state.
func (s *Session) EnsureProject(ctx context.Context, project string) (*Result, error) {
	if err := ValidateProjectName(project); err != nil {
		return nil, err
	}

	body := NewProjectConfig(project)
	result, err := s.client.do(ctx, "hydra.ensureProject", http.MethodPut, ProjectPath(project), body)
	if err != nil {
		return result, err
	}

	s.client.logger.Info("Project ensured", "project", project, "status", result.StatusCode)
	return result, nil
}

// EnsureJobset creates or replaces a jobset in project. The loaded
// configuration is sent as the request body without modification.
func (s *Session) EnsureJobset(ctx context.Context, project, name string, cfg *jobset.Config) (*Result, error) {
	if err := ValidateProjectName(project); err != nil {
		return nil, err
	}
	if err := ValidateJobsetName(name); err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, apperrors.Validation("config", "jobset configuration is required")
	}

	body := json.RawMessage(cfg.Bytes())
	result, err := s.client.do(ctx, "hydra.ensureJobset", http.MethodPut, JobsetPath(project, name), body)
	if err != nil {
		return result, err
	}

	s.client.logger.Info("Jobset ensured", "project", project, "jobset", name, "status", result.StatusCode)
	return result, nil
}

// ProjectPath returns the API path of a project.
func ProjectPath(project string) string {
	return "/project/" + url.PathEscape(project)
}

// JobsetPath returns the API path of a jobset.
func JobsetPath(project, name string) string {
	return "/jobset/" + url.PathEscape(project) + "/" + url.PathEscape(name)
}
