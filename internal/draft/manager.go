package draft

import (
	"context"
	"strings"
	"sync"

	"github.com/Marga-Ghale/ora-template-studio/internal/clock"
	"go.uber.org/zap"
)

// Manager hands out one Store per user namespace, backed by a shared Storage.
type Manager struct {
	storage Storage
	clock   clock.Clock
	opts    Options
	log     *zap.Logger

	mu     sync.Mutex
	stores map[string]*Store
}

func NewManager(storage Storage, c clock.Clock, opts Options, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		storage: storage,
		clock:   c,
		opts:    opts,
		log:     log.Named("drafts"),
		stores:  make(map[string]*Store),
	}
}

// SetSavingListener installs the listener on every store created from now on.
func (m *Manager) SetSavingListener(fn SavingListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opts.OnSaving = fn
}

// For returns the store of namespace, creating it on first use.
func (m *Manager) For(namespace string) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.stores[namespace]; ok {
		return s
	}
	s := NewStore(namespace, m.storage, m.clock, m.opts, m.log)
	m.stores[namespace] = s
	return s
}

// Namespaces lists every namespace that has persisted state.
func (m *Manager) Namespaces(ctx context.Context) ([]string, error) {
	keys, err := m.storage.Keys(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, k := range keys {
		ns, ok := namespaceOf(k)
		if !ok || seen[ns] {
			continue
		}
		seen[ns] = true
		out = append(out, ns)
	}
	return out, nil
}

// SweepExpired purges expired drafts in every persisted namespace and
// returns the total removed. Stores left without drafts are dropped from
// memory. A failing namespace is logged and skipped.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	namespaces, err := m.Namespaces(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, ns := range namespaces {
		n, err := m.For(ns).PurgeExpired(ctx)
		if err != nil {
			m.log.Warn("Draft sweep failed", zap.String("namespace", ns), zap.Error(err))
			continue
		}
		total += n
		m.evictIfEmpty(ctx, ns)
	}
	return total, nil
}

// Len returns the number of stores currently held in memory.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stores)
}

// evictIfEmpty forgets the store of namespace once it holds no drafts. A
// later For rebuilds it from storage.
func (m *Manager) evictIfEmpty(ctx context.Context, namespace string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stores[namespace]
	if !ok {
		return
	}
	empty, err := s.Empty(ctx)
	if err != nil || !empty {
		return
	}
	delete(m.stores, namespace)
}

func namespaceOf(key string) (string, bool) {
	for _, suffix := range []string{":" + StateKey, ":" + LegacyKey} {
		if strings.HasSuffix(key, suffix) {
			return strings.TrimSuffix(key, suffix), true
		}
	}
	return "", false
}
