// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pdiddy/md2docx/internal/artifact"
	"github.com/pdiddy/md2docx/internal/convert"
	"github.com/pdiddy/md2docx/pkg/types"
)

// openStore opens the artifact ledger: SQLite when a database path is
// configured, process memory otherwise.
func openStore(c types.ArtifactConfig) (artifact.Store, error) {
	if c.DBPath == "" {
		return artifact.NewMemoryStore(), nil
	}
	s, err := artifact.NewSQLiteStore(c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening artifact ledger %s: %w", c.DBPath, err)
	}
	return s, nil
}

// newConverter selects the conversion engine; tests replace it.
var newConverter = convert.NewConverter

// newService builds the conversion engine and the service around it.
func newService(ctx context.Context, c types.Config, store artifact.Store, log zerolog.Logger) (*convert.Service, error) {
	conv, err := newConverter(ctx, c.Conversion, log)
	if err != nil {
		return nil, err
	}
	return convert.NewService(conv, store, convert.ServiceConfig{
		WorkDir: c.Conversion.WorkDir,
		TTL:     c.Artifacts.TTL,
	}, log)
}
