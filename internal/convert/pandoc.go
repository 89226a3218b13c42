// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pdiddy/md2docx/internal/container"
	"github.com/pdiddy/md2docx/pkg/types"
)

// containerWorkDir is where the work directory is mounted inside the image.
const containerWorkDir = "/data"

// maxStderr bounds how much engine output is carried into an error message.
const maxStderr = 1024

// waitDelay bounds how long a killed engine may keep its stderr pipe open,
// e.g. through a child process that survived the kill.
const waitDelay = 2 * time.Second

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, name string, args []string, stderr io.Writer) error
}

type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

// Run runs name to completion. If ctx ends first the process is killed and
// the returned error wraps ctx.Err().
func (o *osExecutor) Run(ctx context.Context, name string, args []string, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay
	err := cmd.Run()
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ctx.Err(), err)
	}
	return err
}

var defaultExec executor = &osExecutor{}

// pandocArgs builds the engine arguments; src and dst are paths as the
// engine will see them.
func pandocArgs(src, srcFormat, dst, dstFormat string, extra []string) []string {
	args := []string{"--from", srcFormat, "--to", dstFormat, "--output", dst}
	args = append(args, extra...)
	return append(args, src)
}

// engineError folds the engine's stderr into err so the user sees why the
// engine gave up.
func engineError(engine string, err error, stderr *bytes.Buffer) error {
	msg := strings.TrimSpace(stderr.String())
	if len(msg) > maxStderr {
		msg = msg[len(msg)-maxStderr:]
	}
	if msg == "" {
		return fmt.Errorf("%s: %w", engine, err)
	}
	return fmt.Errorf("%s: %w: %s", engine, err, msg)
}

// PandocConverter runs a locally installed pandoc binary.
type PandocConverter struct {
	bin       string
	extraArgs []string
	exec      executor
}

// NewPandocConverter verifies that bin is on PATH and returns a converter
// that invokes it.
func NewPandocConverter(bin string, extraArgs []string) (*PandocConverter, error) {
	return newPandocConverter(defaultExec, bin, extraArgs)
}

func newPandocConverter(exec executor, bin string, extraArgs []string) (*PandocConverter, error) {
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("pandoc not available: %w", err)
	}
	return &PandocConverter{bin: path, extraArgs: extraArgs, exec: exec}, nil
}

func (p *PandocConverter) Convert(ctx context.Context, src, srcFormat, dst, dstFormat string) error {
	var stderr bytes.Buffer
	args := pandocArgs(src, srcFormat, dst, dstFormat, p.extraArgs)
	if err := p.exec.Run(ctx, p.bin, args, &stderr); err != nil {
		return engineError("pandoc", err, &stderr)
	}
	return nil
}

// ContainerConverter runs pandoc from a container image. The work
// directory is bind mounted into the container, so src and dst must both
// live inside it.
type ContainerConverter struct {
	runtime container.Runtime
	image   string
	workDir string
	user    string

	extraArgs []string
	newName   func() string
}

// NewContainerConverter creates a converter that runs image with rt. It
// verifies that the image exists locally before returning.
func NewContainerConverter(ctx context.Context, rt container.Runtime, image, workDir string, extraArgs []string) (*ContainerConverter, error) {
	if err := rt.ImageExists(ctx, image); err != nil {
		return nil, fmt.Errorf("pandoc image not available in %s: %w", rt.Name(), err)
	}
	abs, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("resolving work directory %s: %w", workDir, err)
	}

	c := &ContainerConverter{
		runtime:   rt,
		image:     image,
		workDir:   abs,
		extraArgs: extraArgs,
		newName:   func() string { return "md2docx-" + uuid.NewString() },
	}
	if uid, gid := os.Getuid(), os.Getgid(); uid >= 0 {
		c.user = strconv.Itoa(uid) + ":" + strconv.Itoa(gid)
	}
	return c, nil
}

func (c *ContainerConverter) Convert(ctx context.Context, src, srcFormat, dst, dstFormat string) error {
	inSrc, err := c.containerPath(src)
	if err != nil {
		return err
	}
	inDst, err := c.containerPath(dst)
	if err != nil {
		return err
	}

	var stderr bytes.Buffer
	err = c.runtime.Run(ctx, container.RunSpec{
		Image:   c.image,
		Name:    c.newName(),
		Args:    pandocArgs(inSrc, srcFormat, inDst, dstFormat, c.extraArgs),
		Mounts:  []container.Mount{{Source: c.workDir, Target: containerWorkDir}},
		WorkDir: containerWorkDir,
		User:    c.user,
		Stderr:  &stderr,
	})
	if err != nil {
		return engineError("pandoc container", err, &stderr)
	}
	return nil
}

// containerPath maps a host path inside the work directory to its path
// inside the container.
func (c *ContainerConverter) containerPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", p, err)
	}
	rel, err := filepath.Rel(c.workDir, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside the work directory %s", p, c.workDir)
	}
	return containerWorkDir + "/" + filepath.ToSlash(rel), nil
}

// NewConverter builds the converter selected by cfg. With the auto backend a
// local pandoc is preferred and the container image is the fallback.
func NewConverter(ctx context.Context, cfg types.ConversionConfig, log zerolog.Logger) (Converter, error) {
	switch cfg.Backend {
	case types.BackendPandoc:
		return NewPandocConverter(cfg.PandocPath, cfg.ExtraArgs)
	case types.BackendContainer:
		return newContainerBackend(ctx, cfg)
	case types.BackendAuto, "":
		local, localErr := NewPandocConverter(cfg.PandocPath, cfg.ExtraArgs)
		if localErr == nil {
			log.Debug().Str("backend", string(types.BackendPandoc)).Msg("using local pandoc")
			return local, nil
		}
		boxed, boxErr := newContainerBackend(ctx, cfg)
		if boxErr == nil {
			log.Debug().Str("backend", string(types.BackendContainer)).Str("image", cfg.Image).Msg("using containerized pandoc")
			return boxed, nil
		}
		return nil, fmt.Errorf("no conversion backend available: %w", errors.Join(localErr, boxErr))
	default:
		return nil, fmt.Errorf("unknown conversion backend %q", cfg.Backend)
	}
}

func newContainerBackend(ctx context.Context, cfg types.ConversionConfig) (*ContainerConverter, error) {
	rt, err := container.DetectRuntime(ctx)
	if err != nil {
		return nil, err
	}
	return NewContainerConverter(ctx, rt, cfg.Image, cfg.WorkDir, cfg.ExtraArgs)
}
