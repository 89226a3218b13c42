// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package artifact keeps the ledger of converted documents handed to callers.
// A successful conversion transfers ownership of its output file to the
// ledger, which deletes it once its expiry passes.
package artifact

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when an artifact is unknown or has expired.
var ErrNotFound = errors.New("artifact not found")

// Artifact is a completed output document ready for retrieval.
type Artifact struct {
	// ID identifies the artifact in download URLs.
	ID string `json:"id" yaml:"id"`

	// Path is the output file on disk. Never exposed to HTTP clients.
	Path string `json:"-" yaml:"path"`

	// Label is the human-readable retrieval label.
	Label string `json:"label" yaml:"label"`

	// Filename is the name offered to the client on download.
	Filename string `json:"filename" yaml:"filename"`

	// Size is the output file size in bytes.
	Size int64 `json:"size" yaml:"size"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	ExpiresAt time.Time `json:"expires_at" yaml:"expires_at"`
}

// Expired reports whether the artifact is past its expiry at now.
func (a Artifact) Expired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// Store records artifacts until they are swept.
type Store interface {
	// Put records a new artifact.
	Put(ctx context.Context, a Artifact) error

	// Get returns the artifact with id, or ErrNotFound when it is unknown
	// or expired at now.
	Get(ctx context.Context, id string, now time.Time) (Artifact, error)

	// Expired lists artifacts whose expiry is at or before now, oldest first.
	Expired(ctx context.Context, now time.Time) ([]Artifact, error)

	// Delete forgets the artifact with id. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error

	Close() error
}

// MemoryStore is a Store held in process memory.
type MemoryStore struct {
	mu        sync.Mutex
	artifacts map[string]Artifact
}

// NewMemoryStore returns an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{artifacts: make(map[string]Artifact)}
}

func (m *MemoryStore) Put(_ context.Context, a Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts[a.ID] = a
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string, now time.Time) (Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.artifacts[id]
	if !ok || a.Expired(now) {
		return Artifact{}, ErrNotFound
	}
	return a, nil
}

func (m *MemoryStore) Expired(_ context.Context, now time.Time) ([]Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Artifact
	for _, a := range m.artifacts {
		if a.Expired(now) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.artifacts, id)
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
