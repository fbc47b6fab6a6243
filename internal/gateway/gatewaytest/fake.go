// Package gatewaytest provides a scripted gateway for tests.
package gatewaytest

import (
	"context"
	"sync"

	"github.com/lodthe/container-from-sqldump/internal/gateway"
)

// Handler produces the outcome of a single command.
type Handler func(cmd gateway.Command) (gateway.Result, error)

// Fake records executed commands and answers them with Handler.
// A nil Handler makes every command succeed with empty output.
type Fake struct {
	Handler Handler

	mu       sync.Mutex
	commands []gateway.Command
}

func (f *Fake) Execute(ctx context.Context, cmd gateway.Command) (gateway.Result, error) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return gateway.Result{}, err
	}
	if f.Handler == nil {
		return gateway.Result{}, nil
	}

	return f.Handler(cmd)
}

// Commands returns a copy of the executed commands in order.
func (f *Fake) Commands() []gateway.Command {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]gateway.Command(nil), f.commands...)
}

// Stdout is a shortcut for a successful result with the given output.
func Stdout(out string) (gateway.Result, error) {
	return gateway.Result{Stdout: []byte(out)}, nil
}
