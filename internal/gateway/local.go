package gateway

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Local runs commands on the host.
type Local struct {
	logger zerolog.Logger
}

func NewLocal(logger zerolog.Logger) *Local {
	return &Local{
		logger: logger.With().Str("gateway", "local").Logger(),
	}
}

func (l *Local) Execute(ctx context.Context, cmd Command) (Result, error) {
	invokedAt := time.Now()

	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer

	proc := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	proc.Stdout = &stdout
	proc.Stderr = &stderr

	err := proc.Run()
	result := Result{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:

	case ctx.Err() == context.DeadlineExceeded:
		result.ExitCode = ExitCodeTimeout

	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		if result.ExitCode < 0 {
			// Killed by a signal.
			result.ExitCode = ExitCodeTimeout
		}

	default:
		return Result{}, errors.Wrapf(err, "failed to start %s", cmd.Name)
	}

	l.logger.Debug().
		Str("command", cmd.Name).
		Int("exit_code", result.ExitCode).
		Dur("elapsed_ms", time.Since(invokedAt)).
		Msg("command finished")

	return result, nil
}
