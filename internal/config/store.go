// Package config provides cached, TTL-bounded access to the shared system
// configuration. The store is the single source of truth for modes, rules
// and schedules: the control loop reads through it and the request handlers
// write through it.
package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/plateforme/homegarden/internal/model"
)

// DefaultTTL bounds how stale a cached config may get before the next Get
// reloads it from persistence.
const DefaultTTL = 5 * time.Second

// Persistence loads and stores the configuration. Implementations must be
// atomic from the store's viewpoint: no torn reads.
type Persistence interface {
	Load() (model.SystemConfig, error)
	Store(model.SystemConfig) error
}

// Patch carries the fields a Set call wants to change; nil fields are left
// untouched.
type Patch struct {
	CurrentProfile             *string
	MaintenanceMode            *bool
	VacationMode               *bool
	Schedules                  *[]model.ScheduleEntry
	MinWateringIntervalMinutes *float64
}

// Store is a TTL-bounded cache over a Persistence. Safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	p   Persistence
	ttl time.Duration
	now func() time.Time

	cached   model.SystemConfig
	loadedAt time.Time // zero means nothing cached
}

// NewStore returns a store with an empty cache; the first Get loads.
func NewStore(p Persistence, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{p: p, ttl: ttl, now: time.Now}
}

// Get returns the cached config when its age is within the TTL, otherwise
// reloads from persistence and replaces the cache atomically.
func (s *Store) Get() (model.SystemConfig, error) {
	s.mu.RLock()
	if !s.loadedAt.IsZero() && s.now().Sub(s.loadedAt) <= s.ttl {
		cfg := s.cached
		s.mu.RUnlock()
		return cfg, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another caller may have reloaded while we upgraded the lock.
	if !s.loadedAt.IsZero() && s.now().Sub(s.loadedAt) <= s.ttl {
		return s.cached, nil
	}
	cfg, err := s.p.Load()
	if err != nil {
		return model.SystemConfig{}, fmt.Errorf("config load: %w", err)
	}
	s.cached = cfg
	s.loadedAt = s.now()
	return cfg, nil
}

// Invalidate drops the cache so the next Get reloads.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.loadedAt = time.Time{}
	s.mu.Unlock()
}

// Set merges the patch into the persisted config, stores it, and refreshes
// the cache in place so the control loop observes the write without an extra
// read round-trip.
func (s *Store) Set(p Patch) (model.SystemConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.p.Load()
	if err != nil {
		return model.SystemConfig{}, fmt.Errorf("config load before set: %w", err)
	}
	if p.CurrentProfile != nil {
		cfg.CurrentProfile = *p.CurrentProfile
	}
	if p.MaintenanceMode != nil {
		cfg.MaintenanceMode = *p.MaintenanceMode
	}
	if p.VacationMode != nil {
		cfg.VacationMode = *p.VacationMode
	}
	if p.Schedules != nil {
		cfg.Schedules = *p.Schedules
	}
	if p.MinWateringIntervalMinutes != nil {
		cfg.MinWateringIntervalMinutes = *p.MinWateringIntervalMinutes
	}
	if err := s.p.Store(cfg); err != nil {
		return model.SystemConfig{}, fmt.Errorf("config store: %w", err)
	}
	s.cached = cfg
	s.loadedAt = s.now()
	return cfg, nil
}
