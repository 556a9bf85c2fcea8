package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/arvel/coherenced/internal/ingest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFeed(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "updates.ndjson")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o600))
	return path
}

func collect(t *testing.T, source *ingest.Source) []ingest.Update {
	t.Helper()

	done := make(chan error, 1)
	go func() { done <- source.Run(context.Background()) }()

	var updates []ingest.Update
	for update := range source.Updates() {
		updates = append(updates, update)
	}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("source did not finish")
	}

	return updates
}

func TestSourceDeliversUpdates(t *testing.T) {
	path := writeFeed(t, `
{"incoherence":0.05,"self_modeling":0.9,"memory_integrity":0.9,"domains":{"time":0.8,"mind":0.71}}
{"incoherence":0.04,"self_modeling":0.92,"memory_integrity":0.91}
`)

	source, err := ingest.Open(path)
	require.NoError(t, err)
	defer source.Close()

	updates := collect(t, source)
	require.Len(t, updates, 2)

	assert.InDelta(t, 0.05, updates[0].Incoherence, 1e-9)
	assert.InDelta(t, 0.9, updates[0].SelfModeling, 1e-9)
	assert.InDelta(t, 0.9, updates[0].MemoryIntegrity, 1e-9)
	assert.InDelta(t, 0.71, updates[0].Domains["mind"], 1e-9)

	// Absent domains table is fine; it merges as "no domain changes"
	assert.Empty(t, updates[1].Domains)

	assert.Zero(t, source.Rejected())
}

func TestSourceAssignsEventIDs(t *testing.T) {
	path := writeFeed(t, `
{"incoherence":0.1,"self_modeling":0.8,"memory_integrity":0.85}
{"incoherence":0.1,"self_modeling":0.8,"memory_integrity":0.85}
`)

	source, err := ingest.Open(path)
	require.NoError(t, err)
	defer source.Close()

	updates := collect(t, source)
	require.Len(t, updates, 2)
	assert.NotEmpty(t, updates[0].EventID)
	assert.NotEmpty(t, updates[1].EventID)
	assert.NotEqual(t, updates[0].EventID, updates[1].EventID)
}

func TestSourceRejectsMalformedRecords(t *testing.T) {
	path := writeFeed(t, `
not json at all
{"self_modeling":0.9,"memory_integrity":0.9}
{"incoherence":1e999,"self_modeling":0.9,"memory_integrity":0.9}
{"incoherence":0.05,"self_modeling":0.9,"memory_integrity":0.9}
`)

	source, err := ingest.Open(path)
	require.NoError(t, err)
	defer source.Close()

	updates := collect(t, source)
	require.Len(t, updates, 1, "only the well-formed record survives")
	assert.InDelta(t, 0.05, updates[0].Incoherence, 1e-9)
	assert.Equal(t, uint64(3), source.Rejected())
}

func TestOpenMissingFile(t *testing.T) {
	_, err := ingest.Open(filepath.Join(t.TempDir(), "missing.ndjson"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to open update source")
}

func TestRunStopsOnCancel(t *testing.T) {
	path := writeFeed(t, `
{"incoherence":0.05,"self_modeling":0.9,"memory_integrity":0.9}
`)

	source, err := ingest.Open(path)
	require.NoError(t, err)
	defer source.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- source.Run(ctx) }()

	// Drain whatever was buffered before cancellation won the race
	for range source.Updates() {
	}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("source did not stop on cancel")
	}
}
