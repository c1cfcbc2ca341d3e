package apperrors

import "errors"

// Process exit codes by error class.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitConfig      = 3
	ExitTransport   = 4
	ExitApplication = 5
)

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrValidation):
		return ExitUsage
	case errors.Is(err, ErrConfigRead), errors.Is(err, ErrConfigParse):
		return ExitConfig
	case errors.Is(err, ErrTransport):
		return ExitTransport
	case errors.Is(err, ErrApplication):
		return ExitApplication
	default:
		return ExitFailure
	}
}
