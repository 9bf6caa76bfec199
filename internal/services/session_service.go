package services

import (
	"context"
	"sync"

	"quickshop/internal/domain"
	applog "quickshop/internal/log"
	"quickshop/internal/remote"
	"quickshop/internal/repos"
)

// Session bundles the per-scope state owners: one recorder (the only writer)
// and one syncer (the only queue drainer).
type Session struct {
	Scope    string
	Recorder *Recorder
	Syncer   *Syncer
}

// SessionManager creates sessions on first touch, running reconciliation to
// build the authoritative state, and fans out sync triggers (connectivity
// restored, periodic interval) to every live session.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	snapshots  *repos.SnapshotRepo
	queue      *repos.QueueRepo
	store      remote.DocStore
	mon        remote.Monitor
	reconciler *Reconciler
}

func NewSessionManager(snapshots *repos.SnapshotRepo, queue *repos.QueueRepo, store remote.DocStore, mon remote.Monitor) *SessionManager {
	return &SessionManager{
		sessions:   map[string]*Session{},
		snapshots:  snapshots,
		queue:      queue,
		store:      store,
		mon:        mon,
		reconciler: NewReconciler(snapshots, queue, store, mon),
	}
}

// Get returns the session for a scope, reconciling local snapshot, remote
// document and pending queue on first touch. The follow-up drain catches up
// whatever was queued while offline.
func (m *SessionManager) Get(ctx context.Context, scope string) (*Session, error) {
	m.mu.Lock()
	if s, ok := m.sessions[scope]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	// Reconciliation happens outside the manager lock; it may hit the
	// network.
	state, err := m.reconciler.Load(ctx, scope)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[scope]; ok {
		return s, nil
	}

	syncer := NewSyncer(scope, m.queue, m.store, m.mon)
	recorder := NewRecorder(scope, state, m.snapshots, m.queue)
	recorder.WireSync(syncer.Kick, func(st *domain.ShopState, fields ...string) {
		go func() {
			if err := syncer.PushDoc(context.Background(), st, fields...); err != nil {
				applog.Warn(nil, "sync.push.fail", err, map[string]any{"scope": scope})
			}
		}()
	})
	syncer.OnSynced(func() {
		applog.Info(nil, "sync.data.synced", map[string]any{"scope": scope})
	})

	s := &Session{Scope: scope, Recorder: recorder, Syncer: syncer}
	m.sessions[scope] = s
	syncer.Kick()
	return s, nil
}

// KickAll triggers a drain for every live session. Wired to connectivity
// transitions and the periodic sync ticker.
func (m *SessionManager) KickAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		s.Syncer.Kick()
	}
}

// Drop forgets a session, e.g. after sign-out. Local data stays on disk under
// its scope key.
func (m *SessionManager) Drop(scope string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, scope)
}
