// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container implements container runtime detection and execution.
// It is used to run the document-conversion engine from an image when no
// local binary is installed.
package container

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"
)

const (
	binDocker = "docker"
	binPodman = "podman"
)

// waitDelay bounds how long Run waits for a killed process's output pipes
// to close.
const waitDelay = 2 * time.Second

// removeTimeout bounds the cleanup of a cancelled container.
const removeTimeout = 10 * time.Second

// Mount binds a host directory into the container.
type Mount struct {
	Source string
	Target string
}

// RunSpec describes one container invocation.
type RunSpec struct {
	Image string
	// Name names the container so a cancelled run can be removed. Required
	// for cancellation to stop the container itself.
	Name string
	// Args are passed to the image entrypoint.
	Args []string
	// Mounts are bind mounts, applied in order.
	Mounts []Mount
	// WorkDir sets the working directory inside the container.
	WorkDir string
	// User runs the container process as "uid:gid" so files written to a
	// mount stay owned by the caller.
	User string

	Stderr io.Writer
}

// Runtime provides container operations: checking availability, verifying
// images, and running containers.
type Runtime interface {
	// Name returns the runtime name ("docker" or "podman").
	Name() string

	// Available reports whether the runtime binary exists on PATH and
	// responds to an info command.
	Available(ctx context.Context) bool

	// ImageExists checks whether the named image exists locally.
	// Returns nil when the image is found, or an error describing the failure.
	ImageExists(ctx context.Context, image string) error

	// Run executes a container described by spec and waits for it to exit.
	// When ctx ends first the named container is force-removed and the
	// returned error wraps ctx.Err().
	Run(ctx context.Context, spec RunSpec) error
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	RunSilent(ctx context.Context, name string, args ...string) error
	Run(ctx context.Context, name string, args []string, stderr io.Writer) error
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) RunSilent(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

func (o *osExecutor) Run(ctx context.Context, name string, args []string, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay
	return cmd.Run()
}

// runtime implements Runtime for a specific container binary. Both Docker
// and Podman share the same logic; they differ only in binary name and the
// subcommand used to check image existence.
type runtime struct {
	bin           string
	imageCheckCmd []string // e.g. ["image", "inspect"] for docker
	exec          executor
}

func (r *runtime) Name() string { return r.bin }

func (r *runtime) Available(ctx context.Context) bool {
	if _, err := r.exec.LookPath(r.bin); err != nil {
		return false
	}
	return r.exec.RunSilent(ctx, r.bin, "info") == nil
}

func (r *runtime) ImageExists(ctx context.Context, image string) error {
	args := make([]string, 0, len(r.imageCheckCmd)+1)
	args = append(args, r.imageCheckCmd...)
	args = append(args, image)

	if err := r.exec.RunSilent(ctx, r.bin, args...); err != nil {
		return fmt.Errorf("image %s not found in %s: %w", image, r.bin, err)
	}
	return nil
}

func (r *runtime) Run(ctx context.Context, spec RunSpec) error {
	args := runArgs(spec)
	err := r.exec.Run(ctx, r.bin, args, spec.Stderr)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		// Killing the CLI client leaves the container running.
		r.remove(spec.Name)
		return fmt.Errorf("running %s container %s: %w: %v", r.bin, spec.Image, ctxErr, err)
	}
	return fmt.Errorf("running %s container %s: %w", r.bin, spec.Image, err)
}

// remove force-removes a container that outlived its caller.
func (r *runtime) remove(name string) {
	if name == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), removeTimeout)
	defer cancel()
	_ = r.exec.RunSilent(ctx, r.bin, "rm", "-f", name)
}

// runArgs builds the "run" command line shared by docker and podman.
func runArgs(spec RunSpec) []string {
	args := []string{"run", "--rm", "--network", "none"}
	if spec.Name != "" {
		args = append(args, "--name", spec.Name)
	}
	for _, m := range spec.Mounts {
		args = append(args, "-v", m.Source+":"+m.Target)
	}
	if spec.WorkDir != "" {
		args = append(args, "-w", spec.WorkDir)
	}
	if spec.User != "" {
		args = append(args, "--user", spec.User)
	}
	args = append(args, spec.Image)
	return append(args, spec.Args...)
}

func newDockerRuntime(exec executor) *runtime {
	return &runtime{
		bin:           binDocker,
		imageCheckCmd: []string{"image", "inspect"},
		exec:          exec,
	}
}

func newPodmanRuntime(exec executor) *runtime {
	return &runtime{
		bin:           binPodman,
		imageCheckCmd: []string{"image", "exists"},
		exec:          exec,
	}
}

var defaultExec = &osExecutor{}

// DetectRuntime tries docker first, falls back to podman. Returns an error
// if neither runtime is available.
func DetectRuntime(ctx context.Context) (Runtime, error) {
	return detectRuntime(ctx, defaultExec)
}

func detectRuntime(ctx context.Context, exec executor) (Runtime, error) {
	docker := newDockerRuntime(exec)
	if docker.Available(ctx) {
		return docker, nil
	}

	podman := newPodmanRuntime(exec)
	if podman.Available(ctx) {
		return podman, nil
	}

	return nil, fmt.Errorf(
		"no container runtime available: neither %s nor %s found or operational",
		binDocker, binPodman,
	)
}
