// Package registry hands out the per-origin transaction stores and the
// per-session chat sessions, building each lazily on first use.
package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lxlibrary/lx-backend/internal/chat"
	"github.com/lxlibrary/lx-backend/internal/transactions"
	pkgerrors "github.com/lxlibrary/lx-backend/pkg/errors"
	"github.com/lxlibrary/lx-backend/pkg/logger"
	"github.com/lxlibrary/lx-backend/pkg/metrics"
	"github.com/lxlibrary/lx-backend/pkg/storage"
	"golang.org/x/sync/singleflight"
)

// SlotFactory scopes a slot store to one owner id.
type SlotFactory func(id string) storage.Slots

// Params wires a Registry.
type Params struct {
	DurableSlots SlotFactory
	SessionSlots SlotFactory

	Assistant        chat.Asker
	AssistantBaseURL string

	Logger          *logger.Logger
	Metrics         *metrics.StateMetrics
	Clock           func() time.Time
	Location        *time.Location
	LoanPeriodDays  int
	CheckoutLatency time.Duration
}

type storeEntry struct {
	store    *transactions.Store
	lastSeen time.Time
}

type sessionEntry struct {
	session  *chat.Session
	lastSeen time.Time
}

// Registry caches state owners by id.
type Registry struct {
	params Params
	clock  func() time.Time

	mu       sync.RWMutex
	stores   map[string]*storeEntry
	sessions map[string]*sessionEntry
	sfg      singleflight.Group
}

func New(p Params) (*Registry, error) {
	if p.DurableSlots == nil || p.SessionSlots == nil {
		return nil, errors.New("slot factories required")
	}
	if p.Assistant == nil {
		return nil, errors.New("assistant required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	clock := p.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Registry{
		params:   p,
		clock:    clock,
		stores:   map[string]*storeEntry{},
		sessions: map[string]*sessionEntry{},
	}, nil
}

// Store returns the transaction store for originID, loading it on first use.
func (r *Registry) Store(ctx context.Context, originID string) (*transactions.Store, error) {
	if originID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "client id required")
	}

	r.mu.Lock()
	if entry, ok := r.stores[originID]; ok {
		entry.lastSeen = r.clock()
		r.mu.Unlock()
		return entry.store, nil
	}
	r.mu.Unlock()

	// Prevents concurrent first requests from loading the snapshot twice.
	v, err, _ := r.sfg.Do("store:"+originID, func() (any, error) {
		r.mu.RLock()
		existing, ok := r.stores[originID]
		r.mu.RUnlock()
		if ok {
			return existing.store, nil
		}

		built, err := transactions.NewStore(context.WithoutCancel(ctx), transactions.Params{
			Slots:           r.params.DurableSlots(originID),
			Logger:          r.params.Logger,
			Metrics:         r.params.Metrics,
			Clock:           r.params.Clock,
			Location:        r.params.Location,
			LoanPeriodDays:  r.params.LoanPeriodDays,
			CheckoutLatency: r.params.CheckoutLatency,
		})
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.stores[originID] = &storeEntry{store: built, lastSeen: r.clock()}
		r.mu.Unlock()
		r.params.Logger.Debug(r.params.Logger.WithClientID(ctx, originID), "registry.store_loaded")
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*transactions.Store), nil
}

// Session returns the chat session for sessionID, restoring it on first use.
func (r *Registry) Session(ctx context.Context, sessionID string) (*chat.Session, error) {
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}

	r.mu.Lock()
	if entry, ok := r.sessions[sessionID]; ok {
		entry.lastSeen = r.clock()
		r.mu.Unlock()
		return entry.session, nil
	}
	r.mu.Unlock()

	v, err, _ := r.sfg.Do("session:"+sessionID, func() (any, error) {
		r.mu.RLock()
		existing, ok := r.sessions[sessionID]
		r.mu.RUnlock()
		if ok {
			return existing.session, nil
		}

		built, err := chat.NewSession(context.WithoutCancel(ctx), chat.Params{
			Slots:     r.params.SessionSlots(sessionID),
			Assistant: r.params.Assistant,
			BaseURL:   r.params.AssistantBaseURL,
			Logger:    r.params.Logger,
			Metrics:   r.params.Metrics,
			Clock:     r.params.Clock,
		})
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.sessions[sessionID] = &sessionEntry{session: built, lastSeen: r.clock()}
		r.mu.Unlock()
		r.params.Logger.Debug(r.params.Logger.WithSessionID(ctx, sessionID), "registry.session_restored")
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*chat.Session), nil
}

// EvictIdleSessions drops cached sessions unused for longer than idle. Their
// logs stay in the session store until it expires them. Sessions with a
// reply still pending are kept.
func (r *Registry) EvictIdleSessions(idle time.Duration) int {
	cutoff := r.clock().Add(-idle)

	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, entry := range r.sessions {
		if entry.lastSeen.Before(cutoff) && !entry.session.IsTyping() {
			delete(r.sessions, id)
			evicted++
		}
	}
	return evicted
}

// EvictIdleStores drops cached stores unused for longer than idle. Their
// state is durable, so the next request reloads it. Stores with a checkout
// still in flight are kept.
func (r *Registry) EvictIdleStores(idle time.Duration) int {
	cutoff := r.clock().Add(-idle)

	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, entry := range r.stores {
		if entry.lastSeen.Before(cutoff) && !entry.store.Busy() {
			delete(r.stores, id)
			evicted++
		}
	}
	return evicted
}

// RunEviction drops idle sessions and stores every interval until ctx is done.
func (r *Registry) RunEviction(ctx context.Context, interval, idle time.Duration) {
	if interval <= 0 || idle <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.EvictIdleSessions(idle); n > 0 {
				r.params.Logger.Debug(r.params.Logger.WithField(ctx, "evicted", n), "registry.sessions_evicted")
			}
			if n := r.EvictIdleStores(idle); n > 0 {
				r.params.Logger.Debug(r.params.Logger.WithField(ctx, "evicted", n), "registry.stores_evicted")
			}
		}
	}
}
