// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

package buildexec

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/google/uuid"
	"github.com/habitat-sh/hab-auto-build/internal/textwrap"
	"github.com/pkg/errors"
)

// DockerBackend runs the configured external builder binary inside a
// one-container-per-plan-identity sandbox, for repos that want build
// isolation beyond the default SubprocessBackend. The container lifecycle is
// start-once/exec/copy-out/stop, mutex-guarded against concurrent use of one
// container; the plan context (and repo root) are bind-mounted, the builder
// binary runs inside, and its outputs are copied back out through the tar
// stream.
type DockerBackend struct {
	// Image is the container image the builder binary runs inside.
	Image string
	// BuilderPath is the builder binary's path as seen inside the container.
	BuilderPath string

	cli *client.Client
	mu  sync.Mutex
}

// NewDockerBackend constructs a DockerBackend using the Docker daemon
// configured by the environment (DOCKER_HOST etc.).
func NewDockerBackend(image, builderPath string) (*DockerBackend, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errors.Wrap(err, "creating docker client")
	}
	return &DockerBackend{Image: image, BuilderPath: builderPath, cli: cli}, nil
}

// Run implements Backend: start a fresh container for this plan, bind-mount
// its context and repo, run the builder binary inside, stream combined
// output, then copy everything under the container's output directory back
// into req.OutputDir through the engine's tar stream. Copying out instead of
// bind-mounting the output directory keeps the backend usable against a
// remote daemon, where a host bind of req.OutputDir would resolve on the
// wrong machine. The container is always stopped and removed on exit.
func (b *DockerBackend) Run(ctx context.Context, req BuildRequest, out io.Writer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	containerID, err := b.start(ctx, req)
	if err != nil {
		return err
	}
	defer b.stop(context.Background(), containerID)

	script := fmt.Sprintf(textwrap.Dedent(`
		set -eu
		mkdir -p /hab/output
		cd /hab/context
		exec %s /hab/context /hab/repo "$@"
		`[1:]), b.BuilderPath)
	args := []string{"sh", "-c", script, "builder", req.Target}
	if err := b.exec(ctx, containerID, args, out); err != nil {
		return err
	}
	return b.copyOutputs(ctx, containerID, "/hab/output", req.OutputDir)
}

func (b *DockerBackend) start(ctx context.Context, req BuildRequest) (string, error) {
	binds := []string{
		req.ContextDir + ":/hab/context",
	}
	if req.RepoRoot != "" {
		binds = append(binds, req.RepoRoot+":/hab/repo:ro")
	}
	resp, err := b.cli.ContainerCreate(ctx, &container.Config{
		Image: b.Image,
		Cmd:   []string{"tail", "-f", "/dev/null"},
		Env:   envSlice(req.Env),
	}, &container.HostConfig{
		Binds: binds,
	}, nil, nil, "hab-build-"+uuid.New().String())
	if err != nil {
		return "", errors.Wrapf(err, "creating container for %s", req.Plan)
	}
	if err := b.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", errors.Wrapf(err, "starting container for %s", req.Plan)
	}
	return resp.ID, nil
}

func (b *DockerBackend) exec(ctx context.Context, containerID string, args []string, out io.Writer) error {
	execResp, err := b.cli.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		Cmd:          args,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return errors.Wrap(err, "creating exec instance")
	}
	attach, err := b.cli.ContainerExecAttach(ctx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return errors.Wrap(err, "attaching to exec instance")
	}
	defer attach.Close()
	if _, err := io.Copy(out, attach.Reader); err != nil && err != io.EOF {
		return errors.Wrap(err, "streaming build output")
	}
	inspect, err := b.cli.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return errors.Wrap(err, "inspecting exec result")
	}
	if inspect.ExitCode != 0 {
		return errors.Errorf("builder exited with status %d", inspect.ExitCode)
	}
	return nil
}

func (b *DockerBackend) stop(ctx context.Context, containerID string) {
	_ = b.cli.ContainerStop(ctx, containerID, container.StopOptions{})
	_ = b.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{})
}

// copyOutputs extracts every entry under containerPath into hostDir,
// preserving relative structure. The archive's top-level directory entry
// (the containerPath directory itself) is stripped.
func (b *DockerBackend) copyOutputs(ctx context.Context, containerID, containerPath, hostDir string) error {
	reader, _, err := b.cli.CopyFromContainer(ctx, containerID, containerPath)
	if err != nil {
		return errors.Wrap(err, "copying build outputs from container")
	}
	defer reader.Close()
	prefix := path.Base(containerPath) + "/"
	tr := tar.NewReader(reader)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "reading output archive")
		}
		name := strings.TrimPrefix(hdr.Name, prefix)
		if name == "" || name == hdr.Name {
			continue
		}
		dest := filepath.Join(hostDir, filepath.FromSlash(name))
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return errors.Wrap(err, "creating output directory")
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return errors.Wrap(err, "creating output directory")
			}
			f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode)&0o777)
			if err != nil {
				return errors.Wrap(err, "creating output file")
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return errors.Wrap(err, "writing output file")
			}
			if err := f.Close(); err != nil {
				return err
			}
		}
	}
}

var _ Backend = (*DockerBackend)(nil)
