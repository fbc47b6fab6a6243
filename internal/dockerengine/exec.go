package dockerengine

import (
	"bytes"
	"context"
	"time"

	"github.com/lodthe/container-from-sqldump/internal/gateway"
	"github.com/lodthe/container-from-sqldump/internal/metrics"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/pkg/errors"
)

// execGateway runs commands inside a running container.
type execGateway struct {
	engine    *Engine
	container string
}

// Gateway returns a gateway.Gateway executing commands inside the given container.
func (e *Engine) Gateway(containerName string) gateway.Gateway {
	return &execGateway{
		engine:    e,
		container: containerName,
	}
}

func (g *execGateway) Execute(ctx context.Context, cmd gateway.Command) (res gateway.Result, err error) {
	invokedAt := time.Now()
	defer func() {
		metrics.Pipeline.Observe(metrics.StepExecCommand, err == nil && res.Succeeded(), invokedAt)
	}()

	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	cli := g.engine.cli
	exec, err := cli.ContainerExecCreate(ctx, g.container, container.ExecOptions{
		AttachStderr: true,
		AttachStdout: true,
		Cmd:          append([]string{cmd.Name}, cmd.Args...),
	})
	if err != nil {
		return gateway.Result{}, errors.Wrap(err, "exec create failed")
	}

	resp, err := cli.ContainerExecAttach(ctx, exec.ID, container.ExecAttachOptions{})
	if err != nil {
		return gateway.Result{}, errors.Wrap(err, "exec attach failed")
	}
	defer resp.Close()

	// https://github.com/moby/moby/blob/8e610b2b55bfd1bfa9436ab110d311f5e8a74dcb/integration/internal/container/exec.go#L38
	var outBuf, errBuf bytes.Buffer
	outputDone := make(chan error, 1)

	go func() {
		_, copyErr := stdcopy.StdCopy(&outBuf, &errBuf, resp.Reader)
		outputDone <- copyErr
	}()

	select {
	case copyErr := <-outputDone:
		if copyErr != nil {
			return gateway.Result{}, errors.Wrap(copyErr, "failed to get output")
		}

	case <-ctx.Done():
		// The process keeps running inside the container, report it as killed.
		// Buffers are still written by the copier, so the output is dropped.
		g.engine.logger.Warn().Str("container", g.container).Str("command", cmd.Name).Msg("exec timed out")

		return gateway.Result{ExitCode: gateway.ExitCodeTimeout}, nil
	}

	inspect, err := cli.ContainerExecInspect(ctx, exec.ID)
	if err != nil {
		return gateway.Result{}, errors.Wrap(err, "exec inspect failed")
	}

	g.engine.logger.Debug().
		Str("container", g.container).
		Str("command", cmd.Name).
		Int("exit_code", inspect.ExitCode).
		Dur("elapsed_ms", time.Since(invokedAt)).
		Msg("exec finished")

	return gateway.Result{
		ExitCode: inspect.ExitCode,
		Stdout:   outBuf.Bytes(),
		Stderr:   errBuf.Bytes(),
	}, nil
}
