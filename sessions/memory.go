package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	apperrors "github.com/jrsteele09/go-frontdoor-relay/internal/errors"
)

// MemoryStore is a process-local Repo for single instance deployments.
type MemoryStore struct {
	cache   *expirable.LRU[string, Record]
	ttl     time.Duration
	nowFunc func() time.Time
}

var _ Repo = (*MemoryStore)(nil)

type MemoryOption func(*MemoryStore)

func WithNowFunc(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.nowFunc = now
	}
}

// NewMemoryStore holds up to capacity records (0 means unbounded), each for ttl.
func NewMemoryStore(ttl time.Duration, capacity int, options ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		cache:   expirable.NewLRU[string, Record](capacity, nil, ttl),
		ttl:     ttl,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Upsert stores a copy of the record
func (s *MemoryStore) Upsert(_ context.Context, sessionID string, record Record) error {
	if sessionID == "" {
		return errors.New("sessionID is required")
	}
	if err := record.AuthTokens.Validate(); err != nil {
		return err
	}

	now := s.nowFunc()
	record.ID = sessionID
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.ExpiresAt = now.Add(s.ttl)
	record.AuthTokens = copyTokens(record.AuthTokens)

	s.cache.Add(sessionID, record)
	return nil
}

// Get retrieves a record by session ID
func (s *MemoryStore) Get(_ context.Context, sessionID string) (*Record, error) {
	if sessionID == "" {
		return nil, apperrors.ErrSessionNotFound
	}

	record, ok := s.cache.Get(sessionID)
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	if !s.nowFunc().Before(record.ExpiresAt) {
		s.cache.Remove(sessionID)
		return nil, apperrors.ErrSessionNotFound
	}

	record.AuthTokens = copyTokens(record.AuthTokens)
	return &record, nil
}

// Delete removes a record
func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	s.cache.Remove(sessionID)
	return nil
}

// Len is the number of records held, including ones not yet purged.
func (s *MemoryStore) Len() int {
	return s.cache.Len()
}

func copyTokens(t *AuthTokens) *AuthTokens {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
