// Package memory provides an in-process implementation of the cache, job
// registry and result store for development and tests. Entries honor TTLs
// lazily: an expired entry is treated as absent on read.
package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/JakeFAU/ivoox-scraper/internal/jobs"
)

type entry struct {
	data      []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Store implements jobs.Cache, jobs.Registry and jobs.ResultStore in memory.
type Store struct {
	mu            sync.Mutex
	cache         map[string]entry
	registrations map[string]entry
	records       map[string]entry
	now           func() time.Time
}

// NewStore constructs a Store.
func NewStore() *Store {
	return &Store{
		cache:         make(map[string]entry),
		registrations: make(map[string]entry),
		records:       make(map[string]entry),
		now:           time.Now,
	}
}

// Get reads a cached payload.
func (s *Store) Get(_ context.Context, key string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.cache[key]
	if !ok || e.expired(s.now()) {
		delete(s.cache, key)
		return nil, jobs.ErrCacheMiss
	}
	return append(json.RawMessage(nil), e.data...), nil
}

// Set writes a cached payload with a TTL.
func (s *Store) Set(_ context.Context, key string, value json.RawMessage, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = entry{data: append([]byte(nil), value...), expiresAt: s.expiry(ttl)}
	return nil
}

// Delete removes a cached payload.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, key)
	return nil
}

// Register performs the check-and-set under the store lock, matching the
// SETNX semantics of the Redis implementation.
func (s *Store) Register(_ context.Context, key, jobID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.registrations[key]; ok && !e.expired(s.now()) {
		return false, nil
	}
	s.registrations[key] = entry{data: []byte(jobID), expiresAt: s.expiry(ttl)}
	return true, nil
}

// RegisteredJob returns the job ID registered for the key, or "" when none.
func (s *Store) RegisteredJob(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.registrations[key]
	if !ok || e.expired(s.now()) {
		delete(s.registrations, key)
		return "", nil
	}
	return string(e.data), nil
}

// ClearRegistration drops the registration for the key.
func (s *Store) ClearRegistration(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.registrations, key)
	return nil
}

// PutJob writes a job record with a TTL.
func (s *Store) PutJob(_ context.Context, rec jobs.Record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = entry{data: data, expiresAt: s.expiry(ttl)}
	return nil
}

// GetJob reads a job record by ID.
func (s *Store) GetJob(_ context.Context, jobID string) (jobs.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.records[jobID]
	if !ok || e.expired(s.now()) {
		delete(s.records, jobID)
		return jobs.Record{}, jobs.ErrJobNotFound
	}
	var rec jobs.Record
	if err := json.Unmarshal(e.data, &rec); err != nil {
		return jobs.Record{}, err
	}
	return rec, nil
}

func (s *Store) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}
