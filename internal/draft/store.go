// Package draft keeps in-progress project template forms so an editor can
// recover them after a reload or restart. Each user owns one Store with a
// singleton create slot and one update slot per template id.
package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Marga-Ghale/ora-template-studio/internal/clock"
	"github.com/Marga-Ghale/ora-template-studio/internal/metrics"
	"github.com/Marga-Ghale/ora-template-studio/internal/models"
	"go.uber.org/zap"
)

const (
	StateKey  = "project-template-drafts"
	LegacyKey = "project-template-draft"

	DefaultTTL         = 24 * time.Hour
	DefaultSavingDelay = 500 * time.Millisecond
)

var ErrMissingTemplateID = errors.New("update draft requires a template id")

// State is the persisted part of a Store. The saving flag is transient and
// never written.
type State struct {
	CreateDraft        *models.DraftSnapshot           `json:"createDraft"`
	UpdateDrafts       map[string]models.DraftSnapshot `json:"updateDrafts"`
	LastSavedTimestamp *int64                          `json:"lastSavedTimestamp"`
}

func emptyState() State {
	return State{UpdateDrafts: make(map[string]models.DraftSnapshot)}
}

// SavingListener is told when a store's saving flag flips. It must not call
// back into the Store.
type SavingListener func(namespace string, saving bool)

type Options struct {
	TTL         time.Duration
	SavingDelay time.Duration
	OnSaving    SavingListener
}

// Store is the draft store of a single namespace. All methods are safe for
// concurrent use; the persisted state is loaded lazily on first use.
type Store struct {
	namespace   string
	storage     Storage
	clock       clock.Clock
	ttl         time.Duration
	savingDelay time.Duration
	onSaving    SavingListener
	log         *zap.Logger

	mu         sync.Mutex
	state      State
	hydrated   bool
	saving     bool
	savingGen  uint64
	savingStop clock.Timer
}

func NewStore(namespace string, storage Storage, c clock.Clock, opts Options, log *zap.Logger) *Store {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.SavingDelay <= 0 {
		opts.SavingDelay = DefaultSavingDelay
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		namespace:   namespace,
		storage:     storage,
		clock:       c,
		ttl:         opts.TTL,
		savingDelay: opts.SavingDelay,
		onSaving:    opts.OnSaving,
		log:         log.With(zap.String("namespace", namespace)),
		state:       emptyState(),
	}
}

func (s *Store) Namespace() string { return s.namespace }

func (s *Store) stateKey() string  { return s.namespace + ":" + StateKey }
func (s *Store) legacyKey() string { return s.namespace + ":" + LegacyKey }

// ============================================
// Rehydration
// ============================================

// hydrate loads the persisted state once and folds a legacy single-slot
// draft into it. Callers hold s.mu.
func (s *Store) hydrate(ctx context.Context) error {
	if s.hydrated {
		return nil
	}

	state := emptyState()
	raw, err := s.storage.Get(ctx, s.stateKey())
	if err != nil {
		return fmt.Errorf("load drafts: %w", err)
	}
	if raw != nil {
		if err := json.Unmarshal(raw, &state); err != nil {
			s.log.Warn("Discarding unreadable draft state", zap.Error(err))
			state = emptyState()
		}
		if state.UpdateDrafts == nil {
			state.UpdateDrafts = make(map[string]models.DraftSnapshot)
		}
	}

	migrated, err := s.migrateLegacy(ctx, &state)
	if err != nil {
		return err
	}

	s.state = state
	s.hydrated = true
	if migrated {
		return s.persist(ctx)
	}
	return nil
}

func (s *Store) migrateLegacy(ctx context.Context, state *State) (bool, error) {
	raw, err := s.storage.Get(ctx, s.legacyKey())
	if err != nil {
		return false, fmt.Errorf("load legacy draft: %w", err)
	}
	if raw == nil {
		return false, nil
	}

	var legacy models.DraftSnapshot
	if err := json.Unmarshal(raw, &legacy); err != nil {
		s.log.Warn("Dropping unreadable legacy draft", zap.Error(err))
	} else if legacy.IsUpdate && legacy.TemplateID != "" {
		if _, exists := state.UpdateDrafts[legacy.TemplateID]; !exists {
			state.UpdateDrafts[legacy.TemplateID] = legacy
		}
	} else if state.CreateDraft == nil {
		legacy.IsUpdate = false
		legacy.TemplateID = ""
		state.CreateDraft = &legacy
	}

	if err := s.storage.Delete(ctx, s.legacyKey()); err != nil {
		return false, fmt.Errorf("delete legacy draft: %w", err)
	}
	s.log.Info("Migrated legacy draft")
	return true, nil
}

func (s *Store) persist(ctx context.Context) error {
	data, err := json.Marshal(s.state)
	if err != nil {
		return err
	}
	if err := s.storage.Set(ctx, s.stateKey(), data); err != nil {
		return fmt.Errorf("persist drafts: %w", err)
	}
	return nil
}

// ============================================
// Operations
// ============================================

// SaveDraft stamps the form with the current time and writes it to the
// create slot, or to the update slot of templateID when isUpdate is set.
func (s *Store) SaveDraft(ctx context.Context, form models.ProjectTemplateForm, templateID string, isUpdate bool) (models.DraftSnapshot, error) {
	if isUpdate && templateID == "" {
		return models.DraftSnapshot{}, ErrMissingTemplateID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.hydrate(ctx); err != nil {
		return models.DraftSnapshot{}, err
	}

	now := s.clock.Now().UnixMilli()
	snap := models.DraftSnapshot{ProjectTemplateForm: form, Timestamp: now}
	slot := "create"
	if isUpdate {
		snap.TemplateID = templateID
		snap.IsUpdate = true
		s.state.UpdateDrafts[templateID] = snap
		slot = "update"
	} else {
		s.state.CreateDraft = &snap
	}
	s.state.LastSavedTimestamp = &now

	s.markSaving()
	if err := s.persist(ctx); err != nil {
		return models.DraftSnapshot{}, err
	}
	metrics.IncrementDraftSave(slot)
	return snap, nil
}

// markSaving raises the transient saving flag and schedules it to drop
// after savingDelay. Callers hold s.mu.
func (s *Store) markSaving() {
	if s.savingStop != nil {
		s.savingStop.Stop()
	}
	s.savingGen++
	gen := s.savingGen
	wasSaving := s.saving
	s.saving = true
	if !wasSaving && s.onSaving != nil {
		s.onSaving(s.namespace, true)
	}

	s.savingStop = s.clock.AfterFunc(s.savingDelay, func() {
		s.mu.Lock()
		if gen != s.savingGen {
			s.mu.Unlock()
			return
		}
		s.saving = false
		s.savingStop = nil
		listener := s.onSaving
		s.mu.Unlock()
		if listener != nil {
			listener(s.namespace, false)
		}
	})
}

// LoadDraft returns the snapshot of the requested slot. An expired snapshot
// is deleted and reported as absent.
func (s *Store) LoadDraft(ctx context.Context, templateID string, isUpdate bool) (*models.DraftSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.hydrate(ctx); err != nil {
		return nil, err
	}

	var snap *models.DraftSnapshot
	if isUpdate {
		if templateID == "" {
			return nil, nil
		}
		if d, ok := s.state.UpdateDrafts[templateID]; ok {
			snap = &d
		}
	} else if s.state.CreateDraft != nil {
		d := *s.state.CreateDraft
		snap = &d
	}
	if snap == nil {
		return nil, nil
	}

	if s.expired(*snap) {
		if isUpdate {
			delete(s.state.UpdateDrafts, templateID)
		} else {
			s.state.CreateDraft = nil
		}
		metrics.AddDraftsExpired(1)
		if err := s.persist(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return snap, nil
}

// HasValidDraft reports whether LoadDraft would return a snapshot.
func (s *Store) HasValidDraft(ctx context.Context, templateID string, isUpdate bool) (bool, error) {
	snap, err := s.LoadDraft(ctx, templateID, isUpdate)
	if err != nil {
		return false, err
	}
	return snap != nil, nil
}

func (s *Store) expired(snap models.DraftSnapshot) bool {
	return s.clock.Now().Sub(time.UnixMilli(snap.Timestamp)) > s.ttl
}

// ClearDraft removes the slot addressed by templateID and isUpdate.
func (s *Store) ClearDraft(ctx context.Context, templateID string, isUpdate bool) error {
	if isUpdate {
		return s.ClearUpdateDraft(ctx, templateID)
	}
	return s.ClearCreateDraft(ctx)
}

func (s *Store) ClearCreateDraft(ctx context.Context) error {
	return s.mutate(ctx, func(st *State) bool {
		if st.CreateDraft == nil {
			return false
		}
		st.CreateDraft = nil
		return true
	})
}

func (s *Store) ClearUpdateDraft(ctx context.Context, templateID string) error {
	return s.mutate(ctx, func(st *State) bool {
		if _, ok := st.UpdateDrafts[templateID]; !ok {
			return false
		}
		delete(st.UpdateDrafts, templateID)
		return true
	})
}

func (s *Store) ClearAllDrafts(ctx context.Context) error {
	return s.mutate(ctx, func(st *State) bool {
		changed := st.CreateDraft != nil || len(st.UpdateDrafts) > 0
		st.CreateDraft = nil
		st.UpdateDrafts = make(map[string]models.DraftSnapshot)
		return changed
	})
}

// ClearOtherDrafts keeps only the slot of the session being opened. Opening
// an edit session drops the create draft and every other template's draft;
// opening a create session drops all update drafts.
func (s *Store) ClearOtherDrafts(ctx context.Context, currentID string, currentIsUpdate bool) error {
	return s.mutate(ctx, func(st *State) bool {
		changed := false
		if currentIsUpdate && st.CreateDraft != nil {
			st.CreateDraft = nil
			changed = true
		}
		for id := range st.UpdateDrafts {
			if currentIsUpdate && id == currentID {
				continue
			}
			delete(st.UpdateDrafts, id)
			changed = true
		}
		return changed
	})
}

// PurgeExpired drops every snapshot older than the TTL and returns how many
// were removed.
func (s *Store) PurgeExpired(ctx context.Context) (int, error) {
	removed := 0
	err := s.mutate(ctx, func(st *State) bool {
		if st.CreateDraft != nil && s.expired(*st.CreateDraft) {
			st.CreateDraft = nil
			removed++
		}
		for id, d := range st.UpdateDrafts {
			if s.expired(d) {
				delete(st.UpdateDrafts, id)
				removed++
			}
		}
		return removed > 0
	})
	metrics.AddDraftsExpired(removed)
	return removed, err
}

// IsSaving reports the transient saving flag.
func (s *Store) IsSaving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saving
}

// LastSavedTimestamp returns the unix-millisecond time of the last save.
func (s *Store) LastSavedTimestamp(ctx context.Context) (*int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hydrate(ctx); err != nil {
		return nil, err
	}
	if s.state.LastSavedTimestamp == nil {
		return nil, nil
	}
	ts := *s.state.LastSavedTimestamp
	return &ts, nil
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hydrate(ctx); err != nil {
		return State{}, err
	}
	out := emptyState()
	if s.state.CreateDraft != nil {
		d := *s.state.CreateDraft
		out.CreateDraft = &d
	}
	for id, d := range s.state.UpdateDrafts {
		out.UpdateDrafts[id] = d
	}
	if s.state.LastSavedTimestamp != nil {
		ts := *s.state.LastSavedTimestamp
		out.LastSavedTimestamp = &ts
	}
	return out, nil
}

// Empty reports whether the store holds no drafts.
func (s *Store) Empty(ctx context.Context) (bool, error) {
	st, err := s.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	return st.CreateDraft == nil && len(st.UpdateDrafts) == 0, nil
}

func (s *Store) mutate(ctx context.Context, fn func(*State) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hydrate(ctx); err != nil {
		return err
	}
	if !fn(&s.state) {
		return nil
	}
	return s.persist(ctx)
}
