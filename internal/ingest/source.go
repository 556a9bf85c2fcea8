// Package ingest reads externally computed metric updates and hands
// them to the tracker. Records arrive as newline-delimited JSON on a
// file, FIFO or stdin; scoring them happens upstream and is none of
// our business.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"math"
	"os"
	"sync/atomic"

	"codeberg.org/arvel/coherenced/internal/errors"
	"codeberg.org/arvel/coherenced/internal/logger"
	"github.com/google/uuid"
)

// Update is one decoded metrics record. EventID is assigned on decode
// and ties log lines about the same record together.
type Update struct {
	EventID         string
	Incoherence     float64
	SelfModeling    float64
	MemoryIntegrity float64
	Domains         map[string]float64
}

// record is the wire form. Pointer scalars distinguish a missing field
// from an explicit zero; the original update contract requires all
// three scalars on every record.
type record struct {
	Incoherence     *float64           `json:"incoherence"`
	SelfModeling    *float64           `json:"self_modeling"`
	MemoryIntegrity *float64           `json:"memory_integrity"`
	Domains         map[string]float64 `json:"domains"`
}

const updateBuffer = 16

// Source delivers updates from a single reader until EOF or
// cancellation.
type Source struct {
	reader   io.ReadCloser
	path     string
	updates  chan Update
	rejected atomic.Uint64
}

// Open opens the update feed. An empty path means stdin.
func Open(path string) (*Source, error) {
	errFactory := errors.New()

	var reader io.ReadCloser
	if path == "" {
		reader = io.NopCloser(os.Stdin)
		path = "stdin"
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, errFactory.Wrap(errors.ErrOpenSource, err)
		}
		reader = file
	}

	return &Source{
		reader:  reader,
		path:    path,
		updates: make(chan Update, updateBuffer),
	}, nil
}

// Updates returns the delivery channel. It is closed when Run returns.
func (s *Source) Updates() <-chan Update {
	return s.updates
}

// Rejected returns how many records were dropped as malformed.
func (s *Source) Rejected() uint64 {
	return s.rejected.Load()
}

// Run reads records until EOF, a read error, or context cancellation.
// Malformed records are logged, counted and skipped; they never reach
// the tracker.
func (s *Source) Run(ctx context.Context) error {
	defer close(s.updates)

	errFactory := errors.New()
	scanner := bufio.NewScanner(s.reader)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		update, err := decode(line)
		if err != nil {
			s.rejected.Add(1)
			logger.Warn().
				Str("source", s.path).
				Err(err).
				Msg("Dropping malformed metric update")
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case s.updates <- update:
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return errFactory.Wrap(errors.ErrReadSource, err)
	}

	logger.Debug().Str("source", s.path).Msg("Update source reached EOF")

	return nil
}

// Close closes the underlying reader, unblocking a pending Run.
func (s *Source) Close() error {
	return s.reader.Close()
}

func decode(line []byte) (Update, error) {
	errFactory := errors.New()

	var rec record
	if err := json.Unmarshal(line, &rec); err != nil {
		return Update{}, errFactory.Wrap(errors.ErrDecodeUpdate, err)
	}

	if rec.Incoherence == nil || rec.SelfModeling == nil || rec.MemoryIntegrity == nil {
		return Update{}, errFactory.WithMessage(errors.ErrInvalidUpdate, "missing scalar metric field")
	}

	scalars := []float64{*rec.Incoherence, *rec.SelfModeling, *rec.MemoryIntegrity}
	for _, value := range scalars {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return Update{}, errFactory.WithData(errors.ErrInvalidUpdate, value)
		}
	}
	for domain, value := range rec.Domains {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return Update{}, errFactory.WithData(errors.ErrInvalidUpdate, domain)
		}
	}

	return Update{
		EventID:         uuid.NewString(),
		Incoherence:     *rec.Incoherence,
		SelfModeling:    *rec.SelfModeling,
		MemoryIntegrity: *rec.MemoryIntegrity,
		Domains:         rec.Domains,
	}, nil
}
