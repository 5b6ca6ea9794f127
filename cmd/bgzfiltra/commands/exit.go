package commands

import (
	"errors"

	"bgzfiltra/internal/config"
)

// Process exit codes.
const (
	ExitFailure          = 1
	ExitInvalidSettings  = 2
	ExitSettingsNotFound = 3
)

// ExitCode maps a run error to the process exit status.
func ExitCode(err error) int {
	var vErr *config.ValidationError
	switch {
	case err == nil:
		return 0
	case errors.Is(err, config.ErrNoConfigFile):
		return ExitSettingsNotFound
	case errors.As(err, &vErr):
		return ExitInvalidSettings
	}
	return ExitFailure
}
