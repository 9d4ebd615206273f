// Package tokens stores uploaded driver datasets under opaque tokens with a
// limited lifetime.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"

	"github.com/TobiSchelling/drivereport/internal/telemetry"
)

var (
	// ErrNotFound is returned for unknown tokens.
	ErrNotFound = errors.New("dataset not found")
	// ErrExpired is returned for tokens past their lifetime that have not
	// been swept yet.
	ErrExpired = errors.New("dataset expired")
)

// Dataset is one uploaded batch of driver records.
type Dataset struct {
	Token       string
	Fingerprint string
	Payload     []byte
	Drivers     []telemetry.Driver
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the dataset is past its lifetime at now.
func (d *Dataset) Expired(now time.Time) bool {
	return !d.ExpiresAt.IsZero() && !now.Before(d.ExpiresAt)
}

// Store keeps datasets by token.
type Store interface {
	Get(ctx context.Context, token string) (*Dataset, error)
	Set(ctx context.Context, ds *Dataset) error
	// Expire removes datasets expired at now and returns how many were removed.
	Expire(ctx context.Context, now time.Time) (int, error)
	// ByFingerprint returns a live dataset with the given payload fingerprint.
	ByFingerprint(ctx context.Context, fingerprint string, now time.Time) (*Dataset, error)
}

// NewToken returns a fresh random token.
func NewToken() string {
	return uuid.NewString()
}

// Fingerprint hashes a payload for duplicate upload detection.
func Fingerprint(payload []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(payload))
}

// NewDataset decodes a payload into a dataset valid for ttl from now.
func NewDataset(payload []byte, now time.Time, ttl time.Duration) (*Dataset, error) {
	drivers, err := telemetry.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding dataset: %w", err)
	}
	return &Dataset{
		Token:       NewToken(),
		Fingerprint: Fingerprint(payload),
		Payload:     payload,
		Drivers:     drivers,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}, nil
}

// Memory is an in-process Store.
type Memory struct {
	mu    sync.RWMutex
	items map[string]*Dataset
	now   func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{items: map[string]*Dataset{}, now: time.Now}
}

func (m *Memory) Get(_ context.Context, token string) (*Dataset, error) {
	m.mu.RLock()
	ds, ok := m.items[token]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if ds.Expired(m.now()) {
		return nil, ErrExpired
	}
	return ds, nil
}

func (m *Memory) Set(_ context.Context, ds *Dataset) error {
	if ds == nil || ds.Token == "" {
		return errors.New("dataset without token")
	}
	m.mu.Lock()
	m.items[ds.Token] = ds
	m.mu.Unlock()
	return nil
}

func (m *Memory) Expire(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for token, ds := range m.items {
		if ds.Expired(now) {
			delete(m.items, token)
			n++
		}
	}
	return n, nil
}

func (m *Memory) ByFingerprint(_ context.Context, fingerprint string, now time.Time) (*Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ds := range m.items {
		if ds.Fingerprint == fingerprint && !ds.Expired(now) {
			return ds, nil
		}
	}
	return nil, ErrNotFound
}

// Len returns the number of stored datasets, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
