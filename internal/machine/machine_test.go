package machine

import (
	"context"
	"testing"

	"github.com/lodthe/container-from-sqldump/internal/gateway"
	"github.com/lodthe/container-from-sqldump/internal/gateway/gatewaytest"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const envOutput = `export DOCKER_TLS_VERIFY="1"
export DOCKER_HOST="tcp://192.168.99.100:2376"
export DOCKER_CERT_PATH="/Users/dev/.docker/machine/machines/default"
export DOCKER_MACHINE_NAME="default"
# Run this command to configure your shell:
# eval $(docker-machine env)
`

func TestParseEnv(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		expected Endpoint
	}{
		{
			name:   "bash",
			output: envOutput,
			expected: Endpoint{
				Host:        "tcp://192.168.99.100:2376",
				TLSVerify:   true,
				CertPath:    "/Users/dev/.docker/machine/machines/default",
				MachineName: "default",
			},
		},
		{
			name:   "no tls",
			output: "export DOCKER_HOST='tcp://10.0.0.2:2375'\nexport DOCKER_TLS_VERIFY=\"\"\n",
			expected: Endpoint{
				Host: "tcp://10.0.0.2:2375",
			},
		},
		{
			name:     "garbage",
			output:   "Error checking TLS connection\nexport\nexport BROKEN\n",
			expected: Endpoint{},
		},
		{
			name:     "empty",
			output:   "",
			expected: Endpoint{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseEnv(tt.output))
		})
	}
}

func TestResolver_Resolve(t *testing.T) {
	gw := &gatewaytest.Fake{
		Handler: func(cmd gateway.Command) (gateway.Result, error) {
			switch cmd.Args[0] {
			case "start":
				return gateway.Result{ExitCode: 1, Stderr: []byte(`Machine "default" is already running.`)}, nil
			case "env":
				return gatewaytest.Stdout(envOutput)
			case "ip":
				return gatewaytest.Stdout("192.168.99.100\n")
			}

			return gateway.Result{ExitCode: 127}, nil
		},
	}

	endpoint, err := NewResolver(zerolog.Nop(), gw).Resolve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "192.168.99.100", endpoint.IP)
	assert.Equal(t, "tcp://192.168.99.100:2376", endpoint.Host)
	assert.True(t, endpoint.TLSVerify)

	var invoked []string
	for _, cmd := range gw.Commands() {
		assert.Equal(t, Binary, cmd.Name)
		invoked = append(invoked, cmd.Args[0])
	}
	assert.Equal(t, []string{"start", "env", "ip"}, invoked)
}

func TestResolver_Resolve_EnvFails(t *testing.T) {
	gw := &gatewaytest.Fake{
		Handler: func(cmd gateway.Command) (gateway.Result, error) {
			if cmd.Args[0] == "env" {
				return gateway.Result{ExitCode: 1, Stderr: []byte("Host does not exist")}, nil
			}

			return gatewaytest.Stdout("")
		},
	}

	_, err := NewResolver(zerolog.Nop(), gw).Resolve(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, gateway.ErrNonZeroExit))
	assert.Contains(t, err.Error(), "Host does not exist")
}

func TestResolver_Resolve_EmptyIP(t *testing.T) {
	gw := &gatewaytest.Fake{
		Handler: func(cmd gateway.Command) (gateway.Result, error) {
			if cmd.Args[0] == "env" {
				return gatewaytest.Stdout(envOutput)
			}

			return gatewaytest.Stdout("  \n")
		},
	}

	_, err := NewResolver(zerolog.Nop(), gw).Resolve(context.Background())
	assert.Error(t, err)
}

func TestResolver_Installed(t *testing.T) {
	ok := &gatewaytest.Fake{}
	assert.True(t, NewResolver(zerolog.Nop(), ok).Installed(context.Background()))

	missing := &gatewaytest.Fake{
		Handler: func(gateway.Command) (gateway.Result, error) {
			return gateway.Result{}, errors.New("executable file not found in $PATH")
		},
	}
	assert.False(t, NewResolver(zerolog.Nop(), missing).Installed(context.Background()))
}
