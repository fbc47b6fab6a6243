package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ExitCodeTimeout is reported for commands killed because their timeout expired.
// It follows the convention of coreutils timeout(1).
const ExitCodeTimeout = 124

var ErrNonZeroExit = errors.New("command exited with non-zero code")

// Command is a structured process invocation. Args are passed as is,
// no shell interpolation is performed.
type Command struct {
	Name string
	Args []string

	// Timeout limits the command execution time. Zero means no limit.
	Timeout time.Duration
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Result is the outcome of a finished (or killed) command.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

func (r Result) Succeeded() bool {
	return r.ExitCode == 0
}

// Err returns nil for a zero exit code and ErrNonZeroExit with the stderr tail otherwise.
func (r Result) Err() error {
	if r.Succeeded() {
		return nil
	}

	return errors.Wrapf(ErrNonZeroExit, "exit code %d: %s", r.ExitCode, tail(r.Stderr, 512))
}

// Gateway runs a command and waits for its completion.
//
// Implementations report a killed or timed out process as a Result with a non-zero exit code.
// An error is returned only when the command could not be started at all.
type Gateway interface {
	Execute(ctx context.Context, cmd Command) (Result, error)
}

func tail(b []byte, limit int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= limit {
		return s
	}

	return "..." + s[len(s)-limit:]
}
