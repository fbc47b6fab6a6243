package dockerengine

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/lodthe/container-from-sqldump/internal/metrics"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	dockercli "github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Engine manages named containers through the Docker Engine API.
type Engine struct {
	logger zerolog.Logger
	cli    *dockercli.Client
}

func New(logger zerolog.Logger, cli *dockercli.Client) *Engine {
	return &Engine{
		logger: logger.With().Str("component", "docker_engine").Logger(),
		cli:    cli,
	}
}

// Ping checks whether the daemon is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	_, err := e.cli.Ping(ctx)
	if err != nil {
		return errors.Wrap(err, "docker daemon is unreachable")
	}

	return nil
}

// RemoveContainer force removes the container with its volumes.
// A missing container is not an error.
func (e *Engine) RemoveContainer(ctx context.Context, name string) (err error) {
	invokedAt := time.Now()
	defer func() {
		metrics.Pipeline.Observe(metrics.StepRemoveContainer, err == nil, invokedAt)
	}()

	err = e.cli.ContainerRemove(ctx, name, container.RemoveOptions{
		RemoveVolumes: true,
		Force:         true,
	})
	if dockercli.IsErrNotFound(err) {
		e.logger.Debug().Str("container", name).Msg("container does not exist, nothing to remove")
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "failed to remove container %s", name)
	}

	e.logger.Debug().Str("container", name).Dur("elapsed_ms", time.Since(invokedAt)).Msg("container has been force removed")

	return nil
}

// RunContainer pulls the image if it is missing, then creates and starts the container.
// It returns the container ID.
func (e *Engine) RunContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	err := e.pull(ctx, spec.Image)
	if err != nil {
		return "", errors.Wrap(err, "pull failed")
	}

	contConfig, hostConfig, err := spec.build()
	if err != nil {
		return "", errors.Wrap(err, "invalid container spec")
	}

	invokedAt := time.Now()
	cont, err := e.cli.ContainerCreate(ctx, contConfig, hostConfig, nil, nil, spec.Name)
	metrics.Pipeline.Observe(metrics.StepCreateContainer, err == nil, invokedAt)
	if err != nil {
		return "", errors.Wrap(err, "container cannot be created")
	}

	createdAt := time.Now()
	debugLogger := e.logger.Debug().
		Str("container", spec.Name).
		Str("image", spec.Image).
		Str("container_id", cont.ID)
	debugLogger.Dur("elapsed_ms", time.Since(invokedAt)).Msg("container has been created")

	err = e.cli.ContainerStart(ctx, cont.ID, container.StartOptions{})
	metrics.Pipeline.Observe(metrics.StepStartContainer, err == nil, createdAt)
	if err != nil {
		return "", errors.Wrap(err, "container cannot be started")
	}

	debugLogger.Dur("elapsed_ms", time.Since(createdAt)).Msg("container has been started")

	return cont.ID, nil
}

// pull checks whether the image exists locally. If no, it will be downloaded.
func (e *Engine) pull(ctx context.Context, ref string) (err error) {
	startedAt := time.Now()

	_, err = e.cli.ImageInspect(ctx, ref)
	if err == nil {
		e.logger.Debug().Str("image", ref).Msg("image has already been pulled")
		return nil
	}
	if !dockercli.IsErrNotFound(err) {
		e.logger.Error().Err(err).Str("image", ref).Msg("docker inspect failed")
	}

	defer func() {
		metrics.Pipeline.Observe(metrics.StepPullImage, err == nil, startedAt)
	}()

	out, err := e.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return errors.Wrap(err, "docker pull failed")
	}
	defer out.Close()

	// We should read the output to be sure that the image has been pulled.
	_, err = io.Copy(io.Discard, out)
	if err != nil {
		return errors.Wrap(err, "failed to read pull output")
	}

	e.logger.Info().Str("image", ref).Dur("elapsed_ms", time.Since(startedAt)).Msg("image has been pulled")

	return nil
}

// Logs returns the combined stdout and stderr of the container.
func (e *Engine) Logs(ctx context.Context, name string) (string, error) {
	out, err := e.cli.ContainerLogs(ctx, name, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to get logs of %s", name)
	}
	defer out.Close()

	var buf bytes.Buffer
	_, err = stdcopy.StdCopy(&buf, &buf, out)
	if err != nil {
		return "", errors.Wrap(err, "failed to read logs")
	}

	return buf.String(), nil
}
