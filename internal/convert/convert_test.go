// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/md2docx/internal/artifact"
	"github.com/pdiddy/md2docx/pkg/types"
)

// fakeConverter implements Converter for testing. It records the paths it
// was given, captures the markdown it read, and writes canned output or
// returns an error, depending on configuration.
type fakeConverter struct {
	mu     sync.Mutex
	output []byte
	err    error
	calls  []fakeCall
}

type fakeCall struct {
	src, srcFormat, dst, dstFormat string
	markdown                       string
}

func (f *fakeConverter) Convert(_ context.Context, src, srcFormat, dst, dstFormat string) error {
	data, readErr := os.ReadFile(src)
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{src, srcFormat, dst, dstFormat, string(data)})
	f.mu.Unlock()

	if readErr != nil {
		return readErr
	}
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(dst, f.output, 0o600)
}

func (f *fakeConverter) lastCall(t *testing.T) fakeCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls, "converter was not called")
	return f.calls[len(f.calls)-1]
}

type recordedConversion struct {
	status types.ConversionStatus
	kind   string
}

type fakeRecorder struct {
	mu   sync.Mutex
	seen []recordedConversion
}

func (r *fakeRecorder) ObserveConversion(status types.ConversionStatus, kind string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, recordedConversion{status, kind})
}

// failingStore rejects every Put.
type failingStore struct{ *artifact.MemoryStore }

func (failingStore) Put(context.Context, artifact.Artifact) error {
	return errors.New("ledger is read-only")
}

func newTestService(t *testing.T, conv Converter, store artifact.Store) (*Service, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "work")
	svc, err := NewService(conv, store, ServiceConfig{WorkDir: dir, TTL: time.Hour}, zerolog.Nop())
	require.NoError(t, err)
	return svc, dir
}

// workFiles lists the files left in the work directory.
func workFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestConvert_Success(t *testing.T) {
	conv := &fakeConverter{output: []byte("PK\x03\x04 fake docx")}
	store := artifact.NewMemoryStore()
	svc, dir := newTestService(t, conv, store)

	a, err := svc.Convert(context.Background(), "# Hello\n\nWorld")
	require.NoError(t, err)
	require.NotNil(t, a)

	call := conv.lastCall(t)
	assert.Equal(t, "# Hello\n\nWorld", call.markdown)
	assert.Equal(t, types.FormatMarkdown, call.srcFormat)
	assert.Equal(t, types.FormatDOCX, call.dstFormat)
	assert.Equal(t, ".md", filepath.Ext(call.src))
	assert.Equal(t, ".docx", filepath.Ext(call.dst))

	assert.NoFileExists(t, call.src, "markdown input must be removed")
	assert.Equal(t, call.dst, a.Path)
	info, err := os.Stat(a.Path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
	assert.Equal(t, info.Size(), a.Size)

	assert.Equal(t, DefaultLabel, a.Label)
	assert.Equal(t, ".docx", filepath.Ext(a.Filename))
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, time.Hour, a.ExpiresAt.Sub(a.CreatedAt))

	stored, err := store.Get(context.Background(), a.ID, a.CreatedAt)
	require.NoError(t, err)
	assert.Equal(t, a.Path, stored.Path)

	assert.Equal(t, []string{filepath.Base(a.Path)}, workFiles(t, dir))
}

func TestConvert_PreservesInputVerbatim(t *testing.T) {
	inputs := map[string]string{
		"empty":         "",
		"non-ascii":     "# Überschrift\n\n日本語のテキスト — ✓ emoji 🎉",
		"broken syntax": "# unclosed [link(\n```\nno fence end\n**bold",
		"crlf":          "line one\r\nline two\r\n",
	}
	for name, md := range inputs {
		t.Run(name, func(t *testing.T) {
			conv := &fakeConverter{output: []byte("docx")}
			svc, _ := newTestService(t, conv, artifact.NewMemoryStore())

			a, err := svc.Convert(context.Background(), md)
			require.NoError(t, err)
			require.NotNil(t, a)
			assert.Equal(t, md, conv.lastCall(t).markdown)
		})
	}
}

func TestConvert_EngineFailure(t *testing.T) {
	conv := &fakeConverter{err: errors.New("simulated pandoc crash")}
	rec := &fakeRecorder{}
	svc, dir := newTestService(t, conv, artifact.NewMemoryStore())
	svc.WithRecorder(rec)

	a, err := svc.Convert(context.Background(), "# Hello")
	assert.Nil(t, a)
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrConversionEngine)
	assert.Equal(t, KindConversionEngine, KindOf(err))
	assert.Contains(t, err.Error(), "simulated pandoc crash")
	assert.Contains(t, err.Error(), "conversion failed")

	call := conv.lastCall(t)
	assert.NoFileExists(t, call.src)
	assert.NoFileExists(t, call.dst)
	assert.Empty(t, workFiles(t, dir), "no temp files may survive a failed request")

	require.Len(t, rec.seen, 1)
	assert.Equal(t, types.ConversionFailed, rec.seen[0].status)
	assert.Equal(t, "conversion_engine", rec.seen[0].kind)
}

func TestConvert_EmptyOutput(t *testing.T) {
	conv := &fakeConverter{output: nil}
	svc, dir := newTestService(t, conv, artifact.NewMemoryStore())

	a, err := svc.Convert(context.Background(), "# Hello")
	assert.Nil(t, a)
	assert.ErrorIs(t, err, ErrOutputRetrieval)
	assert.Contains(t, err.Error(), "empty document")
	assert.Empty(t, workFiles(t, dir))
}

func TestConvert_OutputMissing(t *testing.T) {
	conv := converterFunc(func(_ context.Context, _, _, dst, _ string) error {
		return os.Remove(dst)
	})
	svc, dir := newTestService(t, conv, artifact.NewMemoryStore())

	a, err := svc.Convert(context.Background(), "# Hello")
	assert.Nil(t, a)
	assert.ErrorIs(t, err, ErrOutputRetrieval)
	assert.Empty(t, workFiles(t, dir))
}

func TestConvert_StoreFailure(t *testing.T) {
	conv := &fakeConverter{output: []byte("docx")}
	svc, dir := newTestService(t, conv, failingStore{artifact.NewMemoryStore()})

	a, err := svc.Convert(context.Background(), "# Hello")
	assert.Nil(t, a)
	assert.ErrorIs(t, err, ErrOutputRetrieval)
	assert.Contains(t, err.Error(), "read-only")
	assert.Empty(t, workFiles(t, dir), "unrecorded output must not leak")
}

func TestConvert_UnwritableWorkDir(t *testing.T) {
	conv := &fakeConverter{output: []byte("docx")}
	svc, dir := newTestService(t, conv, artifact.NewMemoryStore())
	require.NoError(t, os.RemoveAll(dir))

	a, err := svc.Convert(context.Background(), "# Hello")
	assert.Nil(t, a)
	assert.ErrorIs(t, err, ErrInputPersistence)
	assert.Empty(t, conv.calls)
}

func TestConvert_CancelledContext(t *testing.T) {
	conv := converterFunc(func(ctx context.Context, _, _, _, _ string) error {
		return ctx.Err()
	})
	svc, dir := newTestService(t, conv, artifact.NewMemoryStore())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Convert(ctx, "# Hello")
	assert.ErrorIs(t, err, ErrConversionEngine)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, workFiles(t, dir))
}

func TestConvert_ConcurrentRequestsUseDistinctFiles(t *testing.T) {
	const n = 16
	conv := &fakeConverter{output: []byte("docx")}
	svc, dir := newTestService(t, conv, artifact.NewMemoryStore())

	var wg sync.WaitGroup
	results := make([]*artifact.Artifact, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = svc.Convert(context.Background(), "# Doc")
		}()
	}
	wg.Wait()

	paths := make(map[string]bool)
	for i := range n {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
	}
	for _, c := range conv.calls {
		assert.False(t, paths[c.src], "duplicate input path %s", c.src)
		assert.False(t, paths[c.dst], "duplicate output path %s", c.dst)
		paths[c.src] = true
		paths[c.dst] = true
	}
	assert.Len(t, paths, 2*n)
	assert.Len(t, workFiles(t, dir), n, "only the outputs remain")
}

func TestRelease(t *testing.T) {
	conv := &fakeConverter{output: []byte("docx")}
	store := artifact.NewMemoryStore()
	svc, dir := newTestService(t, conv, store)

	a, err := svc.Convert(context.Background(), "# Hello")
	require.NoError(t, err)

	require.NoError(t, svc.Release(context.Background(), a))
	assert.NoFileExists(t, a.Path)
	assert.Empty(t, workFiles(t, dir))
	_, err = store.Get(context.Background(), a.ID, a.CreatedAt)
	assert.ErrorIs(t, err, artifact.ErrNotFound)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "input_persistence", KindInputPersistence.String())
	assert.Equal(t, "conversion_engine", KindConversionEngine.String())
	assert.Equal(t, "output_retrieval", KindOutputRetrieval.String())
	assert.Equal(t, "unknown", Kind(0).String())
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
}

// converterFunc adapts a function to Converter.
type converterFunc func(ctx context.Context, src, srcFormat, dst, dstFormat string) error

func (f converterFunc) Convert(ctx context.Context, src, srcFormat, dst, dstFormat string) error {
	return f(ctx, src, srcFormat, dst, dstFormat)
}

func TestRemoveStale(t *testing.T) {
	svc, dir := newTestService(t, &fakeConverter{output: []byte("docx")}, artifact.NewMemoryStore())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	write := func(name string, modTime time.Time) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
		require.NoError(t, os.Chtimes(path, modTime, modTime))
		return path
	}
	oldDoc := write("md2docx-111.docx", now.Add(-2*time.Hour))
	oldInput := write("md2docx-222.md", now.Add(-3*time.Hour))
	fresh := write("md2docx-333.docx", now.Add(-time.Minute))
	foreign := write("notes.docx", now.Add(-24*time.Hour))

	removed, err := svc.RemoveStale(now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.NoFileExists(t, oldDoc)
	assert.NoFileExists(t, oldInput)
	assert.FileExists(t, fresh)
	assert.FileExists(t, foreign)
}
