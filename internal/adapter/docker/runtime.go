// Package docker implements the container runtime against the Docker
// Engine API.
package docker

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"berth/internal/provision"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/moby/term"
)

var _ provision.ContainerRuntime = (*Runtime)(nil)

// Runtime implements provision.ContainerRuntime using the Docker Engine API.
type Runtime struct {
	cli *client.Client
}

// NewRuntime creates a Runtime with a new Docker client from the
// environment and verifies the daemon is reachable.
func NewRuntime(ctx context.Context) (*Runtime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	if err := Ping(ctx, cli); err != nil {
		_ = cli.Close()
		return nil, err
	}
	return &Runtime{cli: cli}, nil
}

// NewRuntimeFromClient wraps an existing Docker client.
func NewRuntimeFromClient(cli *client.Client) *Runtime {
	return &Runtime{cli: cli}
}

func (r *Runtime) Inspect(ctx context.Context, name string) (provision.InstanceInfo, error) {
	info, err := r.cli.ContainerInspect(ctx, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return provision.InstanceInfo{Exists: false}, nil
		}
		return provision.InstanceInfo{}, fmt.Errorf("inspect container %q: %w", name, err)
	}
	running := info.State != nil && info.State.Running
	return provision.InstanceInfo{Exists: true, Running: running}, nil
}

// Launch creates a container from spec and starts it. A locally missing
// image is pulled and the create retried once.
func (r *Runtime) Launch(ctx context.Context, spec provision.LaunchSpec) error {
	cc := &container.Config{
		Image:    spec.Image,
		Hostname: spec.Name,
	}
	hc := &container.HostConfig{
		RestartPolicy: container.RestartPolicy{
			Name: container.RestartPolicyUnlessStopped,
		},
	}
	for _, m := range spec.Mounts {
		hc.Mounts = append(hc.Mounts, mount.Mount{
			Type:   mount.TypeBind,
			Source: m.Source,
			Target: m.Target,
		})
	}

	_, err := r.cli.ContainerCreate(ctx, cc, hc, nil, nil, spec.Name)
	if err != nil {
		if !errdefs.IsNotFound(err) {
			return fmt.Errorf("create container: %w", err)
		}
		if err := r.pullImage(ctx, spec.Image); err != nil {
			return err
		}
		if _, err = r.cli.ContainerCreate(ctx, cc, hc, nil, nil, spec.Name); err != nil {
			return fmt.Errorf("create container after pull: %w", err)
		}
	}

	if err := r.cli.ContainerStart(ctx, spec.Name, container.StartOptions{}); err != nil {
		return fmt.Errorf("start container: %w", err)
	}
	return nil
}

func (r *Runtime) Start(ctx context.Context, name string) error {
	if err := r.cli.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
		return fmt.Errorf("start container %q: %w", name, err)
	}
	return nil
}

func (r *Runtime) Stop(ctx context.Context, name string) error {
	if err := r.cli.ContainerStop(ctx, name, container.StopOptions{}); err != nil {
		return fmt.Errorf("stop container %q: %w", name, err)
	}
	return nil
}

func (r *Runtime) Delete(ctx context.Context, name string) error {
	err := r.cli.ContainerRemove(ctx, name, container.RemoveOptions{Force: true})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("remove container %q: %w", name, err)
	}
	return nil
}

// Exec runs spec inside the container and returns the command's exit
// status. Non-interactive output is demultiplexed onto our stdout and
// stderr; interactive execs attach the terminal directly.
func (r *Runtime) Exec(ctx context.Context, name string, spec provision.ExecSpec) (int, error) {
	shell := spec.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	cmd := []string{shell, "-l"}
	if spec.Command != "" {
		cmd = []string{shell, "-c", spec.Command}
	}

	execCfg := container.ExecOptions{
		User:         spec.User,
		Cmd:          cmd,
		Tty:          spec.Interactive,
		AttachStdin:  spec.Interactive,
		AttachStdout: true,
		AttachStderr: true,
	}
	resp, err := r.cli.ContainerExecCreate(ctx, name, execCfg)
	if err != nil {
		return 0, fmt.Errorf("create exec in %q: %w", name, err)
	}

	attach, err := r.cli.ContainerExecAttach(ctx, resp.ID, container.ExecAttachOptions{Tty: spec.Interactive})
	if err != nil {
		return 0, fmt.Errorf("attach exec in %q: %w", name, err)
	}
	defer attach.Close()

	if spec.Interactive {
		err = streamInteractive(attach.Conn, attach.Reader, attach.CloseWrite)
	} else {
		_, err = stdcopy.StdCopy(os.Stdout, os.Stderr, attach.Reader)
	}
	if err != nil {
		return 0, fmt.Errorf("stream exec in %q: %w", name, err)
	}

	info, err := r.cli.ContainerExecInspect(ctx, resp.ID)
	if err != nil {
		return 0, fmt.Errorf("inspect exec in %q: %w", name, err)
	}
	return info.ExitCode, nil
}

// PushFile writes data to path inside the container via a single-entry tar
// stream rooted at /.
func (r *Runtime) PushFile(ctx context.Context, name, path string, data []byte) error {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	hdr := &tar.Header{
		Name:    strings.TrimPrefix(path, "/"),
		Mode:    0o644,
		Size:    int64(len(data)),
		ModTime: time.Now(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write tar header for %s: %w", path, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("write tar body for %s: %w", path, err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar for %s: %w", path, err)
	}

	err := r.cli.CopyToContainer(ctx, name, "/", &buf, container.CopyToContainerOptions{})
	if err != nil {
		return fmt.Errorf("copy %s into %q: %w", path, name, err)
	}
	return nil
}

// Addresses maps the container's networks to their IPv4 addresses. Network
// names take the place of interface devices in definitions.
func (r *Runtime) Addresses(ctx context.Context, name string) (map[string]string, error) {
	info, err := r.cli.ContainerInspect(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("inspect container %q: %w", name, err)
	}
	out := make(map[string]string)
	if info.NetworkSettings == nil {
		return out, nil
	}
	for network, endpoint := range info.NetworkSettings.Networks {
		if endpoint != nil && endpoint.IPAddress != "" {
			out[network] = endpoint.IPAddress
		}
	}
	return out, nil
}

func (r *Runtime) Close() error {
	return r.cli.Close()
}

func (r *Runtime) pullImage(ctx context.Context, img string) error {
	resp, err := r.cli.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %q: %w", img, err)
	}
	defer resp.Close()
	if _, err := io.Copy(io.Discard, resp); err != nil {
		return fmt.Errorf("pull image %q: read response: %w", img, err)
	}
	return nil
}

// streamInteractive wires the local terminal to a tty exec. Raw mode is
// skipped when stdin is not a terminal, so piped input still works.
func streamInteractive(conn io.Writer, output io.Reader, closeWrite func() error) error {
	fd := os.Stdin.Fd()
	if term.IsTerminal(fd) {
		state, err := term.SetRawTerminal(fd)
		if err != nil {
			return fmt.Errorf("set raw terminal: %w", err)
		}
		defer func() { _ = term.RestoreTerminal(fd, state) }()
	}

	go func() {
		_, _ = io.Copy(conn, os.Stdin)
		_ = closeWrite()
	}()
	if _, err := io.Copy(os.Stdout, output); err != nil {
		return err
	}
	return nil
}
