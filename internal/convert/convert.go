// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns markdown text into a downloadable Word document by
// delegating to an external conversion engine. The package only does the
// plumbing around the engine: per-request temporary files, cleanup on every
// exit path, and a single user-facing error on failure.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pdiddy/md2docx/internal/artifact"
	"github.com/pdiddy/md2docx/pkg/types"
)

// DefaultLabel is the retrieval label attached to every artifact.
const DefaultLabel = "Download Word Document"

// tempPrefix starts the name of every file the service creates.
const tempPrefix = "md2docx-"

// Converter transforms the document at src into dst. Different backends
// (local pandoc, containerized pandoc) implement this interface.
type Converter interface {
	// Convert reads src as srcFormat and writes dst as dstFormat. It blocks
	// until the engine exits.
	Convert(ctx context.Context, src, srcFormat, dst, dstFormat string) error
}

// Recorder observes finished conversions. Metrics implements it.
type Recorder interface {
	ObserveConversion(status types.ConversionStatus, kind string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveConversion(types.ConversionStatus, string, time.Duration) {}

// ServiceConfig holds the settings a Service needs.
type ServiceConfig struct {
	// WorkDir is where per-request temp files are created. It is created
	// with mode 0700 if missing.
	WorkDir string
	// TTL is how long a successful artifact stays downloadable.
	TTL time.Duration
	// Label is the retrieval label; DefaultLabel when empty.
	Label string
}

// Service converts markdown text to DOCX artifacts. It is safe for
// concurrent use: each call owns uniquely named temp files and shares
// nothing else but the artifact store.
type Service struct {
	conv     Converter
	store    artifact.Store
	recorder Recorder
	log      zerolog.Logger

	workDir string
	ttl     time.Duration
	label   string

	now   func() time.Time
	newID func() string
}

// NewService creates a Service and prepares its work directory.
func NewService(conv Converter, store artifact.Store, cfg ServiceConfig, log zerolog.Logger) (*Service, error) {
	if err := os.MkdirAll(cfg.WorkDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating work directory %s: %w", cfg.WorkDir, err)
	}
	label := cfg.Label
	if label == "" {
		label = DefaultLabel
	}
	return &Service{
		conv:     conv,
		store:    store,
		recorder: nopRecorder{},
		log:      log,
		workDir:  cfg.WorkDir,
		ttl:      cfg.TTL,
		label:    label,
		now:      time.Now,
		newID:    uuid.NewString,
	}, nil
}

// WithRecorder sets the recorder notified after every conversion.
func (s *Service) WithRecorder(r Recorder) *Service {
	s.recorder = r
	return s
}

// Convert converts markdown to a DOCX artifact. Exactly one of the return
// values is non-nil; a non-nil error is always a *Error.
//
// The markdown temp file is removed before Convert returns. The output file
// is removed on failure; on success it belongs to the artifact store until
// its expiry.
func (s *Service) Convert(ctx context.Context, markdown string) (*artifact.Artifact, error) {
	start := s.now()
	a, err := s.convert(ctx, markdown)
	elapsed := s.now().Sub(start)

	if err != nil {
		kind := KindOf(err)
		s.recorder.ObserveConversion(types.ConversionFailed, kind.String(), elapsed)
		s.log.Warn().Err(err).Str("kind", kind.String()).Dur("elapsed", elapsed).Msg("conversion failed")
		return nil, err
	}

	s.recorder.ObserveConversion(types.ConversionDone, "", elapsed)
	s.log.Info().Str("id", a.ID).Int64("size", a.Size).Dur("elapsed", elapsed).Msg("converted")
	return a, nil
}

func (s *Service) convert(ctx context.Context, markdown string) (_ *artifact.Artifact, err error) {
	outPath, err := reserveFile(s.workDir, tempPrefix+"*.docx")
	if err != nil {
		return nil, &Error{Kind: KindInputPersistence, Err: fmt.Errorf("creating output file: %w", err)}
	}
	defer func() {
		if err != nil {
			s.release(outPath)
		}
	}()

	inPath, err := writeInput(s.workDir, markdown)
	if err != nil {
		return nil, &Error{Kind: KindInputPersistence, Err: fmt.Errorf("writing markdown: %w", err)}
	}

	convErr := s.conv.Convert(ctx, inPath, types.FormatMarkdown, outPath, types.FormatDOCX)
	rmErr := removeIfExists(inPath)

	if convErr != nil {
		if rmErr != nil {
			s.log.Warn().Err(rmErr).Str("path", inPath).Msg("removing markdown input")
		}
		return nil, &Error{Kind: KindConversionEngine, Err: convErr}
	}
	if rmErr != nil {
		return nil, &Error{Kind: KindInputPersistence, Err: fmt.Errorf("removing markdown input: %w", rmErr)}
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return nil, &Error{Kind: KindOutputRetrieval, Err: fmt.Errorf("reading converted document: %w", err)}
	}
	if info.Size() == 0 {
		return nil, &Error{Kind: KindOutputRetrieval, Err: errors.New("converter produced an empty document")}
	}

	now := s.now()
	a := artifact.Artifact{
		ID:        s.newID(),
		Path:      outPath,
		Label:     s.label,
		Filename:  "document-" + now.UTC().Format("20060102-150405") + ".docx",
		Size:      info.Size(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.Put(ctx, a); err != nil {
		return nil, &Error{Kind: KindOutputRetrieval, Err: fmt.Errorf("recording converted document: %w", err)}
	}
	return &a, nil
}

// Release deletes an artifact's file and forgets it before its expiry.
// Callers that copy the document elsewhere use it to hand ownership back.
func (s *Service) Release(ctx context.Context, a *artifact.Artifact) error {
	if err := removeIfExists(a.Path); err != nil {
		return fmt.Errorf("removing artifact %s: %w", a.ID, err)
	}
	return s.store.Delete(ctx, a.ID)
}

// RemoveStale deletes request files in the work directory last modified
// before cutoff. Outputs issued by an earlier process whose ledger did not
// survive are only reachable this way. It returns how many files it removed.
func (s *Service) RemoveStale(cutoff time.Time) (int, error) {
	matches, err := filepath.Glob(filepath.Join(s.workDir, tempPrefix+"*"))
	if err != nil {
		return 0, err
	}

	var removed int
	var errs []error
	for _, path := range matches {
		info, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := removeIfExists(path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.log.Info().Int("removed", removed).Time("cutoff", cutoff).Msg("removed stale work files")
	}
	return removed, errors.Join(errs...)
}

func (s *Service) release(path string) {
	if err := removeIfExists(path); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("removing output after failure")
	}
}

// reserveFile creates an empty file with a unique name matching pattern
// and returns its path.
func reserveFile(dir, pattern string) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// writeInput persists markdown verbatim as UTF-8 in a unique .md file. On
// error no file is left behind.
func writeInput(dir, markdown string) (string, error) {
	f, err := os.CreateTemp(dir, tempPrefix+"*.md")
	if err != nil {
		return "", err
	}
	_, werr := f.WriteString(markdown)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
