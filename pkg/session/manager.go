package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/sieve/internal/logging"
	"github.com/aretw0/sieve/pkg/domain"
	"github.com/aretw0/sieve/pkg/ports"
)

const (
	// DefaultLockTTL bounds how long a distributed lock is held.
	DefaultLockTTL = 30 * time.Second
	// DefaultStaleAfter is how long an in-progress record may go without an
	// update before its process is presumed dead.
	DefaultStaleAfter = time.Hour
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.StateStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker     ports.DistributedLocker // Optional distributed locker
	lockTTL    time.Duration
	staleAfter time.Duration
	now        func() time.Time
	logger     *slog.Logger // Logger for internal events (like deferred errors)
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets how long a distributed lock survives a crashed holder.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithStaleAfter sets the age after which an in-progress record counts as
// abandoned: it can then be restarted, claimed or discarded. Zero disables
// the check.
func WithStaleAfter(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.staleAfter = d
		}
	}
}

// WithClock replaces time.Now for timestamps and staleness.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Session Manager with the given persistence store.
func NewManager(store ports.StateStore, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		locks:      make(map[string]*lockEntry),
		logger:     logging.NewNop(), // Default to no-op
		lockTTL:    DefaultLockTTL,
		staleAfter: DefaultStaleAfter,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return // Should not happen if paired correctly
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// Load retrieves an existing session from the store.
func (m *Manager) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	var state *domain.State
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		state, err = m.store.Load(ctx, sessionID)
		return err
	})
	return state, err
}

// Start registers a new session. A key whose record is still in progress
// or paused is refused with domain.ErrSessionExists; terminated and
// abandoned records are replaced.
func (m *Manager) Start(ctx context.Context, state *domain.State) error {
	return m.WithLock(ctx, state.SessionID, func(ctx context.Context) error {
		existing, err := m.store.Load(ctx, state.SessionID)
		switch {
		case err == nil && existing.Status != domain.StatusTerminated && !m.abandoned(existing):
			return fmt.Errorf("%w: %s is %s", domain.ErrSessionExists, state.SessionID, existing.Status)
		case err != nil && !errors.Is(err, domain.ErrSessionNotFound):
			return fmt.Errorf("failed to check session existence: %w", err)
		}

		// Persist immediately to reserve the ID
		if err := m.store.Save(ctx, state.SessionID, state); err != nil {
			return fmt.Errorf("failed to initialize session: %w", err)
		}
		return nil
	})
}

// Claim takes ownership of a paused session: the record is re-saved as in
// progress so no other process can resume it concurrently.
func (m *Manager) Claim(ctx context.Context, sessionID string) (*domain.State, error) {
	var state *domain.State
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		loaded, err := m.store.Load(ctx, sessionID)
		if err != nil {
			return err
		}
		switch loaded.Status {
		case domain.StatusPaused:
		case domain.StatusInProgress:
			if !m.abandoned(loaded) {
				return fmt.Errorf("%w: %s", domain.ErrSessionInProgress, sessionID)
			}
			m.logger.Warn("Claiming abandoned session", "session_id", sessionID, "updated_at", loaded.UpdatedAt)
		default:
			return fmt.Errorf("%w: %s is %s", domain.ErrSessionNotPaused, sessionID, loaded.Status)
		}

		loaded.Status = domain.StatusInProgress
		loaded.UpdatedAt = m.now()
		if err := m.store.Save(ctx, sessionID, loaded); err != nil {
			return fmt.Errorf("failed to claim session: %w", err)
		}
		state = loaded
		return nil
	})
	return state, err
}

// Discard removes a session that nobody is running.
func (m *Manager) Discard(ctx context.Context, sessionID string) error {
	return m.discard(ctx, sessionID, false)
}

// ForceDiscard removes a session even while it is marked in progress, for
// records whose process is known to be gone.
func (m *Manager) ForceDiscard(ctx context.Context, sessionID string) error {
	return m.discard(ctx, sessionID, true)
}

func (m *Manager) discard(ctx context.Context, sessionID string, force bool) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		loaded, err := m.store.Load(ctx, sessionID)
		if err != nil {
			return err
		}
		if loaded.Status == domain.StatusInProgress && !force && !m.abandoned(loaded) {
			return fmt.Errorf("%w: %s", domain.ErrSessionInProgress, sessionID)
		}
		return m.store.Delete(ctx, sessionID)
	})
}

// abandoned reports an in-progress record nobody has updated for longer
// than staleAfter.
func (m *Manager) abandoned(s *domain.State) bool {
	return m.staleAfter > 0 &&
		s.Status == domain.StatusInProgress &&
		m.now().Sub(s.UpdatedAt) > m.staleAfter
}

// Save persists the session state.
func (m *Manager) Save(ctx context.Context, sessionID string, state *domain.State) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Save(ctx, sessionID, state)
	})
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Delete(ctx, sessionID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying state store.
func (m *Manager) Store() ports.StateStore {
	return m.store
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	// Distributed Locking
	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
