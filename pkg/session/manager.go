package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/leadflow/internal/logging"
	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/aretw0/leadflow/pkg/ports"
)

// DefaultRestoreWindow is how long an unfinished session stays restorable.
const DefaultRestoreWindow = 24 * time.Hour

// DefaultLockTTL bounds how long a crashed replica can hold a distributed lock.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager owns the snapshot side channel of the engine: it mirrors sessions
// into a SnapshotStore, applies the restore window, and serializes access per
// session ID. Unused locks are garbage collected by reference counting.
//
// Snapshot, Restore and Discard do not lock; callers run them inside WithLock.
type Manager struct {
	store ports.SnapshotStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	window  time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the distributed lock expiry.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithRestoreWindow sets the maximum snapshot age that can be restored.
func WithRestoreWindow(window time.Duration) Option {
	return func(m *Manager) {
		m.window = window
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager backed by store.
func NewManager(store ports.SnapshotStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		window:  DefaultRestoreWindow,
		now:     time.Now,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must lock entry.mu, and call release(sessionID) after unlocking.
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

// release decrements the reference count and deletes the entry at zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// WithLock executes fn while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			// Use a fresh context: the caller's may already be canceled.
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Snapshot overwrites the session's slot with its current state.
// Failures are returned as *domain.PersistenceWriteError.
func (m *Manager) Snapshot(ctx context.Context, s *domain.Session) error {
	snap := &domain.Snapshot{Session: *s.Clone(), SavedAt: m.now()}
	if err := m.store.Save(ctx, s.ID, snap); err != nil {
		return &domain.PersistenceWriteError{Op: "snapshot", Err: err}
	}
	return nil
}

// Restore returns the stored session when its snapshot is younger than the
// restore window and holds at least one response. Anything else is the normal
// "start fresh" path, reported as (nil, false, nil). Expired snapshots are
// discarded on the way.
func (m *Manager) Restore(ctx context.Context, sessionID string) (*domain.Session, bool, error) {
	snap, err := m.store.Load(ctx, sessionID)
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load snapshot: %w", err)
	}

	age := m.now().Sub(snap.SavedAt)
	if !Restorable(snap, age, m.window) {
		m.logger.Debug("snapshot not restorable",
			"session_id", sessionID,
			"age", age,
			"responses", len(snap.Session.Responses),
		)
		if age >= m.window {
			if err := m.store.Delete(ctx, sessionID); err != nil {
				m.logger.Warn("failed to discard expired snapshot", "session_id", sessionID, "err", err)
			}
		}
		return nil, false, nil
	}

	s := snap.Session.Clone()
	return s, true, nil
}

// Restorable applies the restore policy to a snapshot of the given age.
func Restorable(snap *domain.Snapshot, age, window time.Duration) bool {
	return age < window && len(snap.Session.Responses) > 0
}

// Discard removes the snapshot of a session.
func (m *Manager) Discard(ctx context.Context, sessionID string) error {
	if err := m.store.Delete(ctx, sessionID); err != nil {
		return &domain.PersistenceWriteError{Op: "delete", Err: err}
	}
	return nil
}

// Inspect returns the raw snapshot, regardless of the restore policy.
func (m *Manager) Inspect(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	return m.store.Load(ctx, sessionID)
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Window returns the restore window.
func (m *Manager) Window() time.Duration {
	return m.window
}

// Store returns the underlying snapshot store.
func (m *Manager) Store() ports.SnapshotStore {
	return m.store
}
