package dockerengine

import (
	"path/filepath"

	dockercli "github.com/docker/docker/client"
	"github.com/pkg/errors"
)

// ClientConfig points the Docker client at a daemon. Empty fields fall back to
// the DOCKER_* variables of the process environment.
type ClientConfig struct {
	// Host is a daemon URL, e.g. tcp://192.168.99.100:2376.
	Host string

	TLSVerify bool

	// CertPath is a directory with ca.pem, cert.pem and key.pem.
	CertPath string
}

func NewClient(cfg ClientConfig) (*dockercli.Client, error) {
	opts := []dockercli.Opt{
		dockercli.FromEnv,
		dockercli.WithAPIVersionNegotiation(),
	}

	if cfg.Host != "" {
		opts = append(opts, dockercli.WithHost(cfg.Host))
	}

	if cfg.TLSVerify {
		if cfg.CertPath == "" {
			return nil, errors.New("cert path is required when tls verification is enabled")
		}

		opts = append(opts, dockercli.WithTLSClientConfig(
			filepath.Join(cfg.CertPath, "ca.pem"),
			filepath.Join(cfg.CertPath, "cert.pem"),
			filepath.Join(cfg.CertPath, "key.pem"),
		))
	}

	cli, err := dockercli.NewClientWithOpts(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create docker client")
	}

	return cli, nil
}
