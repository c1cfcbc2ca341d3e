package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"hydractl/internal/apperrors"
	"hydractl/internal/config"
	"hydractl/internal/hydratest"
)

// clearEnv unsets every variable the tool reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HYDRA_HOST", "HYDRA_USER", "HYDRA_PASSWORD", "HYDRA_PASSWORD_FILE",
		"HYDRA_HTTP_TIMEOUT", "HYDRA_STRICT_STATUS", "LOG_LEVEL", "LOG_FORMAT", "PUSHGATEWAY_URL",
	} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestJobsetCreate(t *testing.T) {
	clearEnv(t)
	server := hydratest.NewServer(t, hydratest.WithUser("alice", "secret"))
	configPath := writeFile(t, "jobset.json", `{"nixexprinput":"src","nixexprpath":"release.nix","enabled":true}`)

	stdout, stderr, err := execute(t, "",
		"--host", server.URL,
		"jobset-create", "myproj", "default", configPath,
		"--user", "alice", "--password", "secret",
	)
	if err != nil {
		t.Fatalf("run() error = %v\nstderr: %s", err, stderr)
	}
	if stdout != "Creating jobset 'default' in project 'myproj'\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
	if strings.Contains(stderr, "secret") {
		t.Errorf("password leaked into logs: %s", stderr)
	}
	if n := len(server.Requests()); n != 3 {
		t.Errorf("expected 3 requests, got %d", n)
	}
	if _, ok := server.Jobset("myproj", "default"); !ok {
		t.Error("jobset not created")
	}
}

func TestJobsetCreate_PasswordSources(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		stdin string
		args  []string
	}{
		{
			name:  "stdin",
			stdin: "secret\n",
			args:  []string{"--user", "alice", "--password-file", "-"},
		},
		{
			name: "file",
			args: []string{"--user", "alice", "--password-file", "FILE"},
		},
		{
			name: "environment",
			env:  map[string]string{"HYDRA_USER": "alice", "HYDRA_PASSWORD": "secret"},
		},
		{
			name: "environment file",
			env:  map[string]string{"HYDRA_USER": "alice", "HYDRA_PASSWORD_FILE": "FILE"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			server := hydratest.NewServer(t, hydratest.WithUser("alice", "secret"))
			configPath := writeFile(t, "jobset.json", `{}`)
			secretFile := writeFile(t, "password", "secret\n")

			for k, v := range tt.env {
				if v == "FILE" {
					v = secretFile
				}
				t.Setenv(k, v)
			}
			args := []string{"--host", server.URL, "jobset-create", "myproj", "default", configPath}
			for _, arg := range tt.args {
				if arg == "FILE" {
					arg = secretFile
				}
				args = append(args, arg)
			}

			if _, stderr, err := execute(t, tt.stdin, args...); err != nil {
				t.Fatalf("run() error = %v\nstderr: %s", err, stderr)
			}
			if _, ok := server.Project("myproj"); !ok {
				t.Error("project not created")
			}
		})
	}
}

func TestExitCodes(t *testing.T) {
	closed := httptest.NewServer(http.NotFoundHandler())
	unreachable := closed.URL
	closed.Close()

	tests := []struct {
		name     string
		host     string // "" means the fake server
		env      map[string]string
		args     []string
		wantCode int
		wantOut  bool // status line printed
	}{
		{
			name:     "missing arguments",
			args:     []string{"jobset-create", "myproj", "--user", "alice", "--password", "secret"},
			wantCode: apperrors.ExitUsage,
		},
		{
			name:     "unknown flag",
			args:     []string{"jobset-create", "myproj", "default", "CONFIG", "--bogus"},
			wantCode: apperrors.ExitUsage,
		},
		{
			name:     "missing user",
			args:     []string{"jobset-create", "myproj", "default", "CONFIG", "--password", "secret"},
			wantCode: apperrors.ExitUsage,
		},
		{
			name:     "missing password",
			args:     []string{"jobset-create", "myproj", "default", "CONFIG", "--user", "alice"},
			wantCode: apperrors.ExitUsage,
		},
		{
			name:     "both password flags",
			args:     []string{"jobset-create", "myproj", "default", "CONFIG", "--user", "alice", "--password", "x", "--password-file", "-"},
			wantCode: apperrors.ExitUsage,
		},
		{
			name:     "missing password file from flag",
			args:     []string{"jobset-create", "myproj", "default", "CONFIG", "--user", "alice", "--password-file", "/nonexistent/secret"},
			wantCode: apperrors.ExitConfig,
		},
		{
			name:     "missing password file from environment",
			env:      map[string]string{"HYDRA_PASSWORD_FILE": "/nonexistent/secret"},
			args:     []string{"jobset-create", "myproj", "default", "CONFIG", "--user", "alice"},
			wantCode: apperrors.ExitConfig,
		},
		{
			name:     "dotted jobset name",
			args:     []string{"jobset-create", "nixos", "release-23.05", "CONFIG", "--user", "alice", "--password", "secret"},
			wantCode: apperrors.ExitOK,
			wantOut:  true,
		},
		{
			name:     "invalid project name",
			args:     []string{"jobset-create", "my proj", "default", "CONFIG", "--user", "alice", "--password", "secret"},
			wantCode: apperrors.ExitUsage,
			wantOut:  true,
		},
		{
			name:     "missing config",
			args:     []string{"jobset-create", "myproj", "default", "/nonexistent/jobset.json", "--user", "alice", "--password", "secret"},
			wantCode: apperrors.ExitConfig,
			wantOut:  true,
		},
		{
			name:     "unreachable host",
			host:     unreachable,
			args:     []string{"jobset-create", "myproj", "default", "CONFIG", "--user", "alice", "--password", "secret"},
			wantCode: apperrors.ExitTransport,
			wantOut:  true,
		},
		{
			name:     "login rejected",
			args:     []string{"jobset-create", "myproj", "default", "CONFIG", "--user", "alice", "--password", "wrong"},
			wantCode: apperrors.ExitApplication,
			wantOut:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			server := hydratest.NewServer(t, hydratest.WithUser("alice", "secret"))
			configPath := writeFile(t, "jobset.json", `{}`)

			host := tt.host
			if host == "" {
				host = server.URL
			}
			args := []string{"--host", host}
			for _, arg := range tt.args {
				if arg == "CONFIG" {
					arg = configPath
				}
				args = append(args, arg)
			}

			stdout, _, err := execute(t, "", args...)
			if got := apperrors.ExitCode(err); got != tt.wantCode {
				t.Errorf("exit code = %d, want %d (error: %v)", got, tt.wantCode, err)
			}
			if printed := stdout != ""; printed != tt.wantOut {
				t.Errorf("status line printed = %v, want %v (stdout %q)", printed, tt.wantOut, stdout)
			}
		})
	}
}

func TestStrictStatusFlag(t *testing.T) {
	clearEnv(t)
	server := hydratest.NewServer(t, hydratest.WithStatus(hydratest.RouteProject, http.StatusInternalServerError))
	configPath := writeFile(t, "jobset.json", `{}`)
	base := []string{"jobset-create", "myproj", "default", configPath, "--user", "alice", "--password", "secret"}

	_, _, err := execute(t, "", append([]string{"--host", server.URL}, base...)...)
	if apperrors.ExitCode(err) != apperrors.ExitApplication {
		t.Errorf("strict run error = %v, want application error", err)
	}

	_, _, err = execute(t, "", append([]string{"--host", server.URL, "--strict-status=false"}, base...)...)
	if err != nil {
		t.Errorf("lenient run error = %v, want nil", err)
	}
}

func TestPushgateway(t *testing.T) {
	clearEnv(t)
	var mu sync.Mutex
	var pushed []string
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		pushed = append(pushed, r.Method+" "+r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	server := hydratest.NewServer(t)
	configPath := writeFile(t, "jobset.json", `{}`)
	_, stderr, err := execute(t, "",
		"--host", server.URL, "--pushgateway", gateway.URL,
		"jobset-create", "myproj", "default", configPath, "--user", "alice", "--password", "secret",
	)
	if err != nil {
		t.Fatalf("run() error = %v\nstderr: %s", err, stderr)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(pushed) != 1 || pushed[0] != "PUT /metrics/job/hydractl" {
		t.Errorf("unexpected pushes %v", pushed)
	}
}

func TestPushgateway_FailureKeepsExitCode(t *testing.T) {
	clearEnv(t)
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer gateway.Close()

	server := hydratest.NewServer(t)
	configPath := writeFile(t, "jobset.json", `{}`)
	_, stderr, err := execute(t, "",
		"--host", server.URL, "--pushgateway", gateway.URL,
		"jobset-create", "myproj", "default", configPath, "--user", "alice", "--password", "secret",
	)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.Contains(stderr, "Failed to push metrics") {
		t.Errorf("push failure not logged: %s", stderr)
	}
}

func TestVersion(t *testing.T) {
	clearEnv(t)
	stdout, _, err := execute(t, "", "version")
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.HasPrefix(stdout, "hydractl dev ") {
		t.Errorf("unexpected version output %q", stdout)
	}
}

func TestCredentials_KeepsNoPlaintextCopy(t *testing.T) {
	t.Parallel()
	a := &app{cfg: &config.ToolConfig{Password: "from-env"}}
	opts := &jobsetCreateOptions{user: "alice", password: "from-flag"}

	creds, err := a.credentials(opts)
	if err != nil {
		t.Fatalf("credentials() error = %v", err)
	}
	if !creds.HasPassword() {
		t.Fatal("expected a password")
	}
	if opts.password != "" || a.cfg.Password != "" {
		t.Errorf("plaintext password still held: flag %q, config %q", opts.password, a.cfg.Password)
	}

	creds.Clear()
	if creds.HasPassword() {
		t.Error("password still held after Clear()")
	}
}

func TestCredentials_PasswordFileErrors(t *testing.T) {
	t.Parallel()
	missing := filepath.Join(t.TempDir(), "missing")

	tests := []struct {
		name string
		cfg  config.ToolConfig
		opts jobsetCreateOptions
	}{
		{"flag", config.ToolConfig{}, jobsetCreateOptions{user: "alice", passwordFile: missing}},
		{"environment", config.ToolConfig{PasswordFile: missing}, jobsetCreateOptions{user: "alice"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := &app{cfg: &tt.cfg}
			_, err := a.credentials(&tt.opts)
			if !errors.Is(err, apperrors.ErrConfigRead) {
				t.Errorf("credentials() error = %v, want ErrConfigRead", err)
			}
		})
	}
}
