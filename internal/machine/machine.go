// Package machine resolves the Docker daemon of a docker-machine VM.
package machine

import (
	"bufio"
	"context"
	"strings"
	"time"

	"github.com/lodthe/container-from-sqldump/internal/gateway"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	Binary = "docker-machine"

	envHost      = "DOCKER_HOST"
	envTLSVerify = "DOCKER_TLS_VERIFY"
	envCertPath  = "DOCKER_CERT_PATH"
	envName      = "DOCKER_MACHINE_NAME"

	defaultTimeout = 2 * time.Minute
)

// Endpoint is what `docker-machine env` tells a client to export.
type Endpoint struct {
	Host        string
	TLSVerify   bool
	CertPath    string
	MachineName string

	// IP is the address of the VM. Published container ports are reachable there.
	IP string
}

// ParseEnv extracts the endpoint from the shell output of `docker-machine env`.
// Lines other than `export KEY="value"` are ignored.
func ParseEnv(output string) Endpoint {
	var endpoint Endpoint

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "export ") {
			continue
		}

		key, value, ok := strings.Cut(strings.TrimSpace(strings.TrimPrefix(line, "export ")), "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"'`)

		switch key {
		case envHost:
			endpoint.Host = value
		case envTLSVerify:
			endpoint.TLSVerify = value == "1"
		case envCertPath:
			endpoint.CertPath = value
		case envName:
			endpoint.MachineName = value
		}
	}

	return endpoint
}

// Resolver drives the docker-machine binary through a gateway.
type Resolver struct {
	logger  zerolog.Logger
	gateway gateway.Gateway
}

func NewResolver(logger zerolog.Logger, gw gateway.Gateway) *Resolver {
	return &Resolver{
		logger:  logger.With().Str("component", "machine").Logger(),
		gateway: gw,
	}
}

// Installed tells whether the docker-machine binary can be executed.
func (r *Resolver) Installed(ctx context.Context) bool {
	res, err := r.gateway.Execute(ctx, gateway.Command{Name: Binary, Args: []string{"version"}, Timeout: defaultTimeout})

	return err == nil && res.Succeeded()
}

// Resolve starts the default machine and returns its endpoint.
// Starting an already running machine is not an error.
func (r *Resolver) Resolve(ctx context.Context) (Endpoint, error) {
	startedAt := time.Now()

	res, err := r.run(ctx, "start")
	if err != nil {
		return Endpoint{}, err
	}
	if !res.Succeeded() {
		r.logger.Warn().Int("exit_code", res.ExitCode).Msg("docker-machine start failed, probably already running")
	}

	res, err = r.run(ctx, "env", "--shell", "bash")
	if err != nil {
		return Endpoint{}, err
	}
	if err = res.Err(); err != nil {
		return Endpoint{}, errors.Wrap(err, "docker-machine env failed")
	}
	endpoint := ParseEnv(string(res.Stdout))

	res, err = r.run(ctx, "ip")
	if err != nil {
		return Endpoint{}, err
	}
	if err = res.Err(); err != nil {
		return Endpoint{}, errors.Wrap(err, "docker-machine ip failed")
	}

	endpoint.IP = strings.TrimSpace(string(res.Stdout))
	if endpoint.IP == "" {
		return Endpoint{}, errors.New("docker-machine reported an empty ip")
	}

	r.logger.Info().
		Str("host", endpoint.Host).
		Str("ip", endpoint.IP).
		Str("machine", endpoint.MachineName).
		Dur("elapsed_ms", time.Since(startedAt)).
		Msg("docker machine resolved")

	return endpoint, nil
}

func (r *Resolver) run(ctx context.Context, args ...string) (gateway.Result, error) {
	cmd := gateway.Command{Name: Binary, Args: args, Timeout: defaultTimeout}

	res, err := r.gateway.Execute(ctx, cmd)
	if err != nil {
		return gateway.Result{}, errors.Wrapf(err, "failed to execute %s", cmd)
	}

	return res, nil
}
