package dockerengine

import (
	"strconv"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/go-connections/nat"
	"github.com/pkg/errors"
)

// PortMapping publishes a container TCP port on the host.
type PortMapping struct {
	HostPort      int
	ContainerPort int
}

// Volume bind mounts a host directory into the container.
type Volume struct {
	Source   string
	Target   string
	ReadOnly bool
}

// ContainerSpec describes a named long-living container.
type ContainerSpec struct {
	Name  string
	Image string

	Env    []string
	Cmd    []string
	Labels map[string]string

	Ports   []PortMapping
	Volumes []Volume

	// Links are legacy container links in the "name:alias" form.
	Links []string

	// RestartAlways sets the "always" restart policy.
	RestartAlways bool
}

func (s ContainerSpec) build() (*container.Config, *container.HostConfig, error) {
	if s.Name == "" {
		return nil, nil, errors.New("container name is required")
	}
	if s.Image == "" {
		return nil, nil, errors.New("image is required")
	}

	contConfig := &container.Config{
		Image:        s.Image,
		Env:          s.Env,
		Cmd:          s.Cmd,
		Labels:       s.Labels,
		ExposedPorts: nat.PortSet{},
	}

	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{},
		Links:        s.Links,
	}

	if s.RestartAlways {
		hostConfig.RestartPolicy = container.RestartPolicy{Name: container.RestartPolicyAlways}
	}

	for _, p := range s.Ports {
		port, err := nat.NewPort("tcp", strconv.Itoa(p.ContainerPort))
		if err != nil {
			return nil, nil, errors.Wrapf(err, "invalid container port %d", p.ContainerPort)
		}

		contConfig.ExposedPorts[port] = struct{}{}
		hostConfig.PortBindings[port] = append(hostConfig.PortBindings[port], nat.PortBinding{
			HostPort: strconv.Itoa(p.HostPort),
		})
	}

	for _, v := range s.Volumes {
		if v.Source == "" || v.Target == "" {
			return nil, nil, errors.Errorf("invalid volume %q -> %q", v.Source, v.Target)
		}

		hostConfig.Mounts = append(hostConfig.Mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   v.Source,
			Target:   v.Target,
			ReadOnly: v.ReadOnly,
		})
	}

	return contConfig, hostConfig, nil
}
