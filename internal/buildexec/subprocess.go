// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

package buildexec

import (
	"context"
	"io"
	"os/exec"
	"sort"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

// SubprocessBackend runs the configured external builder binary directly on
// the host via os/exec. This is the default backend; DockerBackend is the
// sandboxed alternative.
type SubprocessBackend struct {
	// Binary is the external builder executable invoked for every plan.
	Binary string
	// GracePeriod is how long a cancelled build is given to exit after
	// SIGTERM before SIGKILL. Zero selects 30s.
	GracePeriod time.Duration
}

// Run implements Backend. It invokes Binary with
// (plan_context, repo_root, target) as positional arguments and the
// request's resolved-dependency environment. Cancellation terminates
// gracefully and force-kills only after the grace period, rather than the
// abrupt SIGKILL os/exec.CommandContext performs by default.
func (b SubprocessBackend) Run(ctx context.Context, req BuildRequest, out io.Writer) error {
	cmd := exec.Command(b.Binary, req.ContextDir, req.RepoRoot, req.Target)
	cmd.Dir = req.ContextDir
	cmd.Env = envSlice(req.Env)
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "starting builder for %s", req.Plan)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	grace := b.GracePeriod
	if grace <= 0 {
		grace = 30 * time.Second
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// Graceful termination first, then force-kill after grace.
		_ = cmd.Process.Signal(syscall.SIGTERM)
		select {
		case err := <-done:
			return err
		case <-time.After(grace):
			_ = cmd.Process.Kill()
			<-done
			return ctx.Err()
		}
	}
}

func envSlice(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

var _ Backend = SubprocessBackend{}

// LookPath resolves binary against PATH, surfacing a clear error before any
// plan is dispatched rather than failing on the first build.
func LookPath(binary string) error {
	if _, err := exec.LookPath(binary); err != nil {
		return errors.Wrapf(err, "builder binary %q not found", binary)
	}
	return nil
}
