package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/flashbots/quantagg/tensor"
)

// ErrRoundNotFound is returned when no record exists for a round.
var ErrRoundNotFound = errors.New("round not found")

// RoundRecord is one completed aggregation round.
type RoundRecord struct {
	Round           int
	NumContributors int

	// Result is the reconstructed floating-point sum.
	Result tensor.Value

	// Quantized is the inner process's integer-encoded sum.
	Quantized tensor.Value

	// Distortion is the aggregated quantization distortion; nil when
	// the collector runs without distortion measurement.
	Distortion *float64

	CompletedAt time.Time
}

// RoundStore persists completed rounds.
type RoundStore interface {
	SaveRound(ctx context.Context, rec *RoundRecord) error
	GetRound(ctx context.Context, round int) (*RoundRecord, error)
	LatestRound(ctx context.Context) (*RoundRecord, error)
}

// MemoryStore is an in-memory RoundStore for tests and demos.
type MemoryStore struct {
	mu     sync.RWMutex
	rounds map[int]*RoundRecord
	latest int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rounds: make(map[int]*RoundRecord)}
}

// SaveRound stores or replaces the record for its round.
func (s *MemoryStore) SaveRound(ctx context.Context, rec *RoundRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rounds[rec.Round] = rec
	if rec.Round > s.latest {
		s.latest = rec.Round
	}
	return nil
}

// GetRound returns the record for a round, or ErrRoundNotFound.
func (s *MemoryStore) GetRound(ctx context.Context, round int) (*RoundRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.rounds[round]
	if !ok {
		return nil, ErrRoundNotFound
	}
	return rec, nil
}

// LatestRound returns the most recently completed round's record.
func (s *MemoryStore) LatestRound(ctx context.Context) (*RoundRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.rounds[s.latest]
	if !ok {
		return nil, ErrRoundNotFound
	}
	return rec, nil
}
