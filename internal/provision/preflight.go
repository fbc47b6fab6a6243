package provision

import (
	"context"
	"os"

	"github.com/pkg/errors"
)

var (
	ErrPreflight  = errors.New("preflight check failed")
	ErrValidation = errors.New("invalid input")
)

// Pinger checks that the container engine is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CheckPlatform rejects hosts the tool cannot run on.
func CheckPlatform(goos string) error {
	switch goos {
	case "linux", "darwin":
		return nil
	default:
		return errors.Wrapf(ErrPreflight, "unsupported platform %s", goos)
	}
}

// CheckEngine makes sure the container engine answers before anything is touched.
func CheckEngine(ctx context.Context, engine Pinger) error {
	if err := engine.Ping(ctx); err != nil {
		return errors.Wrap(ErrPreflight, err.Error())
	}

	return nil
}

// ValidateDump checks that the dump is an existing regular file.
func ValidateDump(path string) error {
	if path == "" {
		return errors.Wrap(ErrValidation, "dump file is not specified")
	}

	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(ErrValidation, "%s is not a file", path)
	}
	if !info.Mode().IsRegular() {
		return errors.Wrapf(ErrValidation, "%s is not a file", path)
	}

	return nil
}
