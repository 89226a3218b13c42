// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/md2docx/internal/artifact"
	"github.com/pdiddy/md2docx/internal/container"
	"github.com/pdiddy/md2docx/pkg/types"
)

// mockExecutor records the last command and returns configured responses.
type mockExecutor struct {
	onPath  map[string]bool
	stderr  string
	runErr  error
	gotName string
	gotArgs []string
}

func (m *mockExecutor) LookPath(file string) (string, error) {
	if m.onPath[file] {
		return "/usr/local/bin/" + file, nil
	}
	return "", errors.New("executable file not found in $PATH")
}

func (m *mockExecutor) Run(_ context.Context, name string, args []string, stderr io.Writer) error {
	m.gotName, m.gotArgs = name, args
	_, _ = io.WriteString(stderr, m.stderr)
	return m.runErr
}

func TestNewPandocConverter_Missing(t *testing.T) {
	_, err := newPandocConverter(&mockExecutor{}, "pandoc", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pandoc not available")
}

func TestPandocConverter_Convert(t *testing.T) {
	exec := &mockExecutor{onPath: map[string]bool{"pandoc": true}}
	p, err := newPandocConverter(exec, "pandoc", []string{"--reference-doc=ref.docx"})
	require.NoError(t, err)

	err = p.Convert(context.Background(), "/w/in.md", types.FormatMarkdown, "/w/out.docx", types.FormatDOCX)
	require.NoError(t, err)

	assert.Equal(t, "/usr/local/bin/pandoc", exec.gotName)
	assert.Equal(t, []string{
		"--from", "markdown", "--to", "docx", "--output", "/w/out.docx",
		"--reference-doc=ref.docx", "/w/in.md",
	}, exec.gotArgs)
}

func TestPandocConverter_ErrorCarriesStderr(t *testing.T) {
	exec := &mockExecutor{
		onPath: map[string]bool{"pandoc": true},
		stderr: "  YAML parse exception at line 3\n",
		runErr: errors.New("exit status 64"),
	}
	p, err := newPandocConverter(exec, "pandoc", nil)
	require.NoError(t, err)

	err = p.Convert(context.Background(), "in.md", "markdown", "out.docx", "docx")
	require.Error(t, err)
	assert.Equal(t, "pandoc: exit status 64: YAML parse exception at line 3", err.Error())
}

func TestEngineError_TruncatesLongStderr(t *testing.T) {
	exec := &mockExecutor{
		onPath: map[string]bool{"pandoc": true},
		stderr: strings.Repeat("x", 5000) + "tail",
		runErr: errors.New("exit status 1"),
	}
	p, err := newPandocConverter(exec, "pandoc", nil)
	require.NoError(t, err)

	err = p.Convert(context.Background(), "in.md", "markdown", "out.docx", "docx")
	require.Error(t, err)
	assert.True(t, strings.HasSuffix(err.Error(), "tail"))
	assert.Less(t, len(err.Error()), maxStderr+64)
}

// fakeRuntime implements container.Runtime for testing.
type fakeRuntime struct {
	imageErr error
	runErr   error
	stderr   string
	spec     container.RunSpec
}

func (f *fakeRuntime) Name() string { return "docker" }

func (f *fakeRuntime) Available(context.Context) bool { return true }

func (f *fakeRuntime) ImageExists(context.Context, string) error { return f.imageErr }

func (f *fakeRuntime) Run(_ context.Context, spec container.RunSpec) error {
	f.spec = spec
	if spec.Stderr != nil {
		_, _ = io.WriteString(spec.Stderr, f.stderr)
	}
	return f.runErr
}

func TestNewContainerConverter_ImageMissing(t *testing.T) {
	rt := &fakeRuntime{imageErr: errors.New("no such image")}
	_, err := NewContainerConverter(context.Background(), rt, "pandoc/core:latest", t.TempDir(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pandoc image not available in docker")
}

func TestContainerConverter_Convert(t *testing.T) {
	dir := t.TempDir()
	rt := &fakeRuntime{}
	c, err := NewContainerConverter(context.Background(), rt, "pandoc/core:latest", dir, nil)
	require.NoError(t, err)

	src := filepath.Join(dir, "md2docx-1.md")
	dst := filepath.Join(dir, "md2docx-2.docx")
	require.NoError(t, c.Convert(context.Background(), src, "markdown", dst, "docx"))

	assert.Equal(t, "pandoc/core:latest", rt.spec.Image)
	assert.Equal(t, []container.Mount{{Source: dir, Target: "/data"}}, rt.spec.Mounts)
	assert.Equal(t, "/data", rt.spec.WorkDir)
	assert.Equal(t, []string{
		"--from", "markdown", "--to", "docx", "--output", "/data/md2docx-2.docx", "/data/md2docx-1.md",
	}, rt.spec.Args)
	assert.True(t, strings.HasPrefix(rt.spec.Name, "md2docx-"), rt.spec.Name)
}

func TestContainerConverter_RejectsPathsOutsideWorkDir(t *testing.T) {
	dir := t.TempDir()
	c, err := NewContainerConverter(context.Background(), &fakeRuntime{}, "pandoc/core:latest", dir, nil)
	require.NoError(t, err)

	outside := filepath.Join(filepath.Dir(dir), "elsewhere.md")
	err = c.Convert(context.Background(), outside, "markdown", filepath.Join(dir, "out.docx"), "docx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside the work directory")
}

func TestContainerConverter_RunFailure(t *testing.T) {
	dir := t.TempDir()
	rt := &fakeRuntime{runErr: errors.New("exit status 83"), stderr: "Unknown input format"}
	c, err := NewContainerConverter(context.Background(), rt, "pandoc/core:latest", dir, nil)
	require.NoError(t, err)

	err = c.Convert(context.Background(), filepath.Join(dir, "a.md"), "markdown", filepath.Join(dir, "a.docx"), "docx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pandoc container")
	assert.Contains(t, err.Error(), "Unknown input format")
}

func TestNewConverter_UnknownBackend(t *testing.T) {
	_, err := NewConverter(context.Background(), types.ConversionConfig{Backend: "libreoffice"}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown conversion backend")
}

// slowEngine writes an executable that ignores its arguments and sleeps in
// a child process, which keeps stderr open after the script itself is killed.
func slowEngine(t *testing.T) string {
	t.Helper()
	if goruntime.GOOS == "windows" {
		t.Skip("shell script engine")
	}
	path := filepath.Join(t.TempDir(), "pandoc")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nsleep 30\n"), 0o755))
	return path
}

func TestPandocConverter_DeadlineStopsEngine(t *testing.T) {
	p, err := NewPandocConverter(slowEngine(t), nil)
	require.NoError(t, err)
	svc, dir := newTestService(t, p, artifact.NewMemoryStore())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	a, err := svc.Convert(ctx, "# Hello")
	elapsed := time.Since(start)

	assert.Nil(t, a)
	assert.ErrorIs(t, err, ErrConversionEngine)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, elapsed, 10*time.Second)
	assert.Empty(t, workFiles(t, dir))
}
