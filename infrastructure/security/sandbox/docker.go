package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// DockerAPI is the subset of the Docker Engine client the backend uses.
type DockerAPI interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerKill(ctx context.Context, containerID, signal string) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
}

// DockerBackend runs units as Docker containers.
type DockerBackend struct {
	api  DockerAPI
	pull bool
}

// DockerOption configures a DockerBackend.
type DockerOption func(*DockerBackend)

// WithPullIfMissing pulls the image when container creation reports it absent.
func WithPullIfMissing(pull bool) DockerOption {
	return func(b *DockerBackend) {
		b.pull = pull
	}
}

// NewDockerBackend wraps an existing Docker API client.
func NewDockerBackend(api DockerAPI, opts ...DockerOption) *DockerBackend {
	b := &DockerBackend{api: api, pull: true}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewDockerBackendFromEnv connects using DOCKER_HOST and related variables.
func NewDockerBackendFromEnv(host string, opts ...DockerOption) (*DockerBackend, error) {
	clientOpts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		clientOpts = append(clientOpts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return NewDockerBackend(cli, opts...), nil
}

// Name implements Backend.
func (b *DockerBackend) Name() string {
	return "docker"
}

// Create implements Backend.
func (b *DockerBackend) Create(ctx context.Context, spec Spec) (string, error) {
	if len(spec.Command) == 0 {
		return "", ErrEmptyCommand
	}

	cfg := &container.Config{
		Image:           spec.Image,
		Entrypoint:      spec.Command[:1],
		Cmd:             spec.Command[1:],
		Env:             spec.Env,
		Labels:          spec.Labels,
		AttachStdout:    true,
		AttachStderr:    true,
		OpenStdin:       false,
		NetworkDisabled: !spec.Network,
	}

	hostCfg := &container.HostConfig{
		NetworkMode: networkMode(spec.Network),
		Resources: container.Resources{
			Memory:   spec.Limits.MemoryBytes,
			NanoCPUs: spec.Limits.NanoCPUs,
		},
	}
	if spec.Limits.PidsLimit > 0 {
		pids := spec.Limits.PidsLimit
		hostCfg.Resources.PidsLimit = &pids
	}

	resp, err := b.api.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	if err != nil && b.pull && errdefs.IsNotFound(err) {
		if perr := b.pullImage(ctx, spec.Image); perr != nil {
			return "", errors.Join(err, perr)
		}
		resp, err = b.api.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	}
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (b *DockerBackend) pullImage(ctx context.Context, ref string) error {
	rc, err := b.api.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull %s: %w", ref, err)
	}
	defer rc.Close()

	// The pull completes only once the progress stream is drained.
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("pull %s: %w", ref, err)
	}
	return nil
}

// Start implements Backend.
func (b *DockerBackend) Start(ctx context.Context, id string) error {
	return b.api.ContainerStart(ctx, id, container.StartOptions{})
}

// Wait implements Backend.
func (b *DockerBackend) Wait(ctx context.Context, id string) (int, error) {
	statusCh, errCh := b.api.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case status := <-statusCh:
		if status.Error != nil && status.Error.Message != "" {
			return int(status.StatusCode), errors.New(status.Error.Message)
		}
		return int(status.StatusCode), nil
	case err := <-errCh:
		return -1, err
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

// Logs implements Backend. The multiplexed stream is demuxed into a single
// buffer so stdout and stderr interleave as written.
func (b *DockerBackend) Logs(ctx context.Context, id string) ([]byte, error) {
	rc, err := b.api.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, rc); err != nil {
		return buf.Bytes(), err
	}
	return buf.Bytes(), nil
}

// Kill implements Killer.
func (b *DockerBackend) Kill(ctx context.Context, id string) error {
	err := b.api.ContainerKill(ctx, id, "KILL")
	if errdefs.IsNotFound(err) || errdefs.IsConflict(err) {
		return nil
	}
	return err
}

// Remove implements Backend.
func (b *DockerBackend) Remove(ctx context.Context, id string) error {
	err := b.api.ContainerRemove(ctx, id, container.RemoveOptions{Force: true, RemoveVolumes: true})
	if errdefs.IsNotFound(err) {
		return nil
	}
	return err
}

func networkMode(enabled bool) container.NetworkMode {
	if enabled {
		return "bridge"
	}
	return "none"
}

var (
	_ Backend = (*DockerBackend)(nil)
	_ Killer  = (*DockerBackend)(nil)
)
