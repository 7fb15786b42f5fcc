package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Marga-Ghale/ora-template-studio/internal/clock"
	"github.com/Marga-Ghale/ora-template-studio/internal/composition"
	"github.com/Marga-Ghale/ora-template-studio/internal/draft"
	"github.com/Marga-Ghale/ora-template-studio/internal/metrics"
	"github.com/Marga-Ghale/ora-template-studio/internal/models"
	"github.com/Marga-Ghale/ora-template-studio/internal/notification"
	"github.com/Marga-Ghale/ora-template-studio/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ============================================
// Composition Service
// ============================================

const (
	DefaultFormAutosaveDelay      = 2 * time.Second
	DefaultSelectionAutosaveDelay = 1 * time.Second

	autosaveTimeout = 5 * time.Second
)

type CompositionOptions struct {
	// FormAutosaveDelay is the quiet period after a form field change.
	FormAutosaveDelay time.Duration
	// SelectionAutosaveDelay is the quiet period after a selection-only change.
	SelectionAutosaveDelay time.Duration
}

// CompositionService drives the project-template editor. Every open editor is
// a Session keyed by id and owned by one user.
type CompositionService interface {
	OpenCreate(ctx context.Context, userID string) Result[*SessionState]
	OpenEdit(ctx context.Context, userID, templateID string) Result[*SessionState]
	Get(ctx context.Context, userID, sessionID string) Result[*SessionState]

	SetForm(ctx context.Context, userID, sessionID string, patch FormPatch) Result[*SessionState]
	SelectMilestones(ctx context.Context, userID, sessionID string, milestoneIDs []string) Result[*SessionState]
	CreateMilestoneTemplate(ctx context.Context, userID, sessionID string, req models.CreateMilestoneTemplateRequest) Result[*SessionState]
	RemoveMilestone(ctx context.Context, userID, sessionID, milestoneID string) Result[*SessionState]
	CustomizeMilestoneRef(ctx context.Context, userID, sessionID string, ref models.MilestoneRef) Result[*SessionState]
	ReorderMilestones(ctx context.Context, userID, sessionID string, from, to int) Result[*SessionState]

	AddPhase(ctx context.Context, userID, sessionID, milestoneID string, req models.PhaseRequest) Result[*SessionState]
	UpdatePhase(ctx context.Context, userID, sessionID, phaseID string, req models.PhaseRequest) Result[*SessionState]
	DeletePhase(ctx context.Context, userID, sessionID, phaseID string) Result[*SessionState]
	AddDeliverable(ctx context.Context, userID, sessionID, phaseID string, req models.DeliverableRequest) Result[*SessionState]
	UpdateDeliverable(ctx context.Context, userID, sessionID, deliverableID string, req models.DeliverableRequest) Result[*SessionState]
	DeleteDeliverable(ctx context.Context, userID, sessionID, deliverableID string) Result[*SessionState]
	ChangePosition(ctx context.Context, userID, sessionID string, req models.ChangePositionRequest) Result[*SessionState]

	TogglePrecedence(ctx context.Context, userID, sessionID, deliverableID, targetID string) Result[*SessionState]
	RemovePrecedence(ctx context.Context, userID, sessionID, deliverableID, targetID string) Result[*SessionState]
	PrecedenceCandidates(ctx context.Context, userID, sessionID, deliverableID string, filter composition.CandidateFilter) Result[[]composition.CandidateGroup]

	SaveDraftNow(ctx context.Context, userID, sessionID string) Result[*SessionState]
	RecoverDraft(ctx context.Context, userID, sessionID string) Result[*SessionState]
	DiscardDraft(ctx context.Context, userID, sessionID string) Result[*SessionState]
	HasUnsavedChanges(ctx context.Context, userID, sessionID string) Result[bool]

	Submit(ctx context.Context, userID, sessionID string) Result[*models.ProjectTemplate]
	Close(ctx context.Context, userID, sessionID string) Result[bool]

	// ReapIdle closes sessions untouched for longer than maxIdle.
	ReapIdle(ctx context.Context, maxIdle time.Duration) int
	// SessionOwner returns the user owning sessionID.
	SessionOwner(sessionID string) (string, bool)
	OpenSessions() int
}

type compositionService struct {
	backend  CompositionBackend
	drafts   *draft.Manager
	notifier notification.Notifier
	activity ActivityService
	clock    clock.Clock
	opts     CompositionOptions
	log      *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewCompositionService(
	backend CompositionBackend,
	drafts *draft.Manager,
	notifier notification.Notifier,
	activity ActivityService,
	c clock.Clock,
	opts CompositionOptions,
	log *zap.Logger,
) CompositionService {
	if opts.FormAutosaveDelay <= 0 {
		opts.FormAutosaveDelay = DefaultFormAutosaveDelay
	}
	if opts.SelectionAutosaveDelay <= 0 {
		opts.SelectionAutosaveDelay = DefaultSelectionAutosaveDelay
	}
	if notifier == nil {
		notifier = notification.NewService(nil, log)
	}
	if activity == nil {
		activity = NewActivityService(nil, log)
	}
	if log == nil {
		log = zap.NewNop()
	}

	drafts.SetSavingListener(func(userID string, saving bool) {
		notifier.DraftStatus(userID, saving, nil)
	})

	return &compositionService{
		backend:  backend,
		drafts:   drafts,
		notifier: notifier,
		activity: activity,
		clock:    c,
		opts:     opts,
		log:      log.Named("composition"),
		sessions: make(map[string]*Session),
	}
}

// ============================================
// Session registry
// ============================================

func (s *compositionService) newSession(userID, mode, templateID string) *Session {
	return &Session{
		ID:         uuid.NewString(),
		UserID:     userID,
		Mode:       mode,
		TemplateID: templateID,
		form:       models.EmptyForm(),
		selected:   []models.MilestoneTemplate{},
		loading:    true,
		lastActive: s.clock.Now(),
		autosave:   clock.NewDebouncer(s.clock),
	}
}

func (s *compositionService) register(sess *Session) {
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	n := len(s.sessions)
	s.mu.Unlock()
	metrics.SetOpenSessions(n)
}

func (s *compositionService) unregister(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()
	metrics.SetOpenSessions(n)
}

func (s *compositionService) lookup(userID, sessionID string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	if sess.UserID != userID {
		return nil, ErrForbidden
	}
	return sess, nil
}

func (s *compositionService) SessionOwner(sessionID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return "", false
	}
	return sess.UserID, true
}

func (s *compositionService) OpenSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// withSession runs fn with the session locked. On success the new state is
// broadcast to the session room when publish is set.
func (s *compositionService) withSession(ctx context.Context, userID, sessionID string, publish bool, fn func(*Session) error) Result[*SessionState] {
	sess, err := s.lookup(userID, sessionID)
	if err != nil {
		return Fail[*SessionState](err)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.closed {
		return Fail[*SessionState](ErrSessionClosed)
	}
	sess.lastActive = s.clock.Now()

	if err := fn(sess); err != nil {
		return Fail[*SessionState](err)
	}
	state := s.state(ctx, sess)
	if publish {
		s.notifier.SessionUpdated(sess.ID, map[string]interface{}{"state": state})
	}
	return Ok(state)
}

// state renders sess. Callers hold sess.mu. Draft store failures only cost
// the draft indicators.
func (s *compositionService) state(ctx context.Context, sess *Session) *SessionState {
	store := s.drafts.For(sess.UserID)

	hasDraft, err := store.HasValidDraft(ctx, sess.TemplateID, sess.isUpdate())
	if err != nil {
		s.log.Warn("Draft lookup failed", zap.String("session_id", sess.ID), zap.Error(err))
	}
	lastSaved, err := store.LastSavedTimestamp(ctx)
	if err != nil {
		s.log.Warn("Draft timestamp lookup failed", zap.String("session_id", sess.ID), zap.Error(err))
	}

	dirty := sess.dirty()
	unsaved := hasDraft || (!sess.isUpdate() && dirty) || (sess.isUpdate() && sess.userEdited)

	return &SessionState{
		ID:                   sess.ID,
		Mode:                 sess.Mode,
		TemplateID:           sess.TemplateID,
		Form:                 sess.cloneForm(),
		SelectedMilestoneIDs: sess.selectedIDs(),
		Views:                sess.views,
		Dirty:                dirty,
		UserEdited:           sess.userEdited,
		HasUnsavedChanges:    unsaved,
		RecoverableDraft:     sess.recoverable,
		AutosavePending:      sess.autosave.Pending(),
		Saving:               store.IsSaving(),
		LastSavedTimestamp:   lastSaved,
	}
}

// ============================================
// Feedback
// ============================================

// outcome emits the toast of a mutation and passes err through.
func (s *compositionService) outcome(userID, success, failure string, err error) error {
	if err != nil {
		s.notifier.Toast(userID, notification.Failure(failure, toResultError(err).UserMessage))
		return err
	}
	if success != "" {
		s.notifier.Toast(userID, notification.Success(success, ""))
	}
	return nil
}

// publishPending shows optimistic placeholders before a backend round trip.
func (s *compositionService) publishPending(sess *Session) {
	s.notifier.SessionUpdated(sess.ID, map[string]interface{}{
		"pending": true,
		"views":   sess.views,
	})
}

// ============================================
// Autosave
// ============================================

// scheduleAutosave (re)arms the draft autosave. Nothing is armed while the
// session is still being populated or while a stale draft awaits the
// recover-or-discard choice. Callers hold sess.mu.
func (s *compositionService) scheduleAutosave(sess *Session, delay time.Duration) {
	if sess.loading || sess.closed || sess.recoverable != nil {
		return
	}
	sess.autosave.Arm(delay, func() { s.runAutosave(sess) })
}

func (s *compositionService) runAutosave(sess *Session) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.closed || sess.loading || sess.recoverable != nil || !sess.needsAutosave() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), autosaveTimeout)
	defer cancel()

	if err := s.saveDraft(ctx, sess); err != nil {
		s.log.Warn("Autosave failed", zap.String("session_id", sess.ID), zap.Error(err))
	}
}

// saveDraft writes the current form to the session's draft slot. Callers
// hold sess.mu.
func (s *compositionService) saveDraft(ctx context.Context, sess *Session) error {
	form := sess.cloneForm()
	form.Milestones = composition.SyncMilestoneRefs(form.Milestones, sess.selectedIDs())

	snap, err := s.drafts.For(sess.UserID).SaveDraft(ctx, form, sess.TemplateID, sess.isUpdate())
	if err != nil {
		return err
	}
	s.notifier.SessionUpdated(sess.ID, map[string]interface{}{"lastSavedTimestamp": snap.Timestamp})
	return nil
}

// ============================================
// Opening
// ============================================

func (s *compositionService) OpenCreate(ctx context.Context, userID string) Result[*SessionState] {
	if userID == "" {
		return Fail[*SessionState](ErrInvalidInput)
	}
	store := s.drafts.For(userID)
	if err := store.ClearOtherDrafts(ctx, "", false); err != nil {
		return Fail[*SessionState](err)
	}

	sess := s.newSession(userID, types.ModeCreate, "")
	snap, err := store.LoadDraft(ctx, "", false)
	if err != nil {
		return Fail[*SessionState](err)
	}
	sess.recoverable = snap
	sess.rederive()
	sess.loading = false

	s.register(sess)
	s.activity.Record(ctx, types.ActivitySessionOpened, userID, sess.ID, "", map[string]interface{}{"mode": sess.Mode})
	s.log.Debug("Session opened", zap.String("session_id", sess.ID), zap.String("mode", sess.Mode))

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return Ok(s.state(ctx, sess))
}

func (s *compositionService) OpenEdit(ctx context.Context, userID, templateID string) Result[*SessionState] {
	if userID == "" || templateID == "" {
		return Fail[*SessionState](ErrInvalidInput)
	}
	store := s.drafts.For(userID)
	if err := store.ClearOtherDrafts(ctx, templateID, true); err != nil {
		return Fail[*SessionState](err)
	}

	detailed, err := s.backend.GetDetailedProjectTemplate(ctx, templateID)
	if err != nil {
		return Fail[*SessionState](s.outcome(userID, "", "Could not load project template", err))
	}

	sess := s.newSession(userID, types.ModeUpdate, templateID)
	sess.form = formFromDetailed(detailed)

	refIDs := make([]string, 0, len(detailed.Milestones))
	inlined := make(map[string]models.MilestoneTemplate, len(detailed.Milestones))
	for _, m := range detailed.Milestones {
		refIDs = append(refIDs, m.MilestoneTemplateID)
		if m.MilestoneTemplate.ID != "" {
			inlined[m.MilestoneTemplate.ID] = m.MilestoneTemplate
		}
	}
	selected, err := s.resolveSelection(ctx, dedupe(refIDs), inlined)
	if err != nil {
		return Fail[*SessionState](s.outcome(userID, "", "Could not load milestone templates", err))
	}
	sess.selected = selected
	sess.syncRefs()
	sess.rederive()

	snap, err := store.LoadDraft(ctx, templateID, true)
	if err != nil {
		return Fail[*SessionState](err)
	}
	sess.recoverable = snap
	sess.loading = false

	s.register(sess)
	s.activity.Record(ctx, types.ActivitySessionOpened, userID, sess.ID, templateID, map[string]interface{}{"mode": sess.Mode})
	s.log.Debug("Session opened",
		zap.String("session_id", sess.ID),
		zap.String("mode", sess.Mode),
		zap.String("template_id", templateID),
	)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return Ok(s.state(ctx, sess))
}

// resolveSelection returns the milestone templates for ids in order, taking
// known ones from have and fetching the rest in one batch.
func (s *compositionService) resolveSelection(ctx context.Context, ids []string, have map[string]models.MilestoneTemplate) ([]models.MilestoneTemplate, error) {
	var missing []string
	for _, id := range ids {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		fetched, err := s.backend.FetchMilestoneTemplates(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, m := range fetched {
			have[m.ID] = m
		}
	}

	out := make([]models.MilestoneTemplate, 0, len(ids))
	for _, id := range ids {
		if m, ok := have[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *compositionService) Get(ctx context.Context, userID, sessionID string) Result[*SessionState] {
	return s.withSession(ctx, userID, sessionID, false, func(*Session) error { return nil })
}

// ============================================
// Form and selection
// ============================================

func (s *compositionService) SetForm(ctx context.Context, userID, sessionID string, patch FormPatch) Result[*SessionState] {
	return s.withSession(ctx, userID, sessionID, true, func(sess *Session) error {
		if patch.empty() {
			return nil
		}
		sess.applyPatch(patch)
		sess.userEdited = true
		s.scheduleAutosave(sess, s.opts.FormAutosaveDelay)
		return nil
	})
}

func (s *compositionService) SelectMilestones(ctx context.Context, userID, sessionID string, milestoneIDs []string) Result[*SessionState] {
	return s.withSession(ctx, userID, sessionID, true, func(sess *Session) error {
		var missing []string
		for _, id := range dedupe(milestoneIDs) {
			if sess.indexOf(id) < 0 {
				missing = append(missing, id)
			}
		}
		if len(missing) == 0 {
			return nil
		}

		fetched, err := s.backend.FetchMilestoneTemplates(ctx, missing)
		if err != nil {
			return s.outcome(userID, "", "Could not load milestone templates", err)
		}
		s.addToSelection(sess, fetched...)
		return nil
	})
}

// addToSelection appends templates not yet selected and syncs references.
func (s *compositionService) addToSelection(sess *Session, templates ...models.MilestoneTemplate) {
	for _, m := range templates {
		if sess.indexOf(m.ID) >= 0 {
			continue
		}
		sess.selected = append(sess.selected, m)
	}
	sess.syncRefs()
	sess.rederive()
	sess.userEdited = true
	s.scheduleAutosave(sess, s.opts.SelectionAutosaveDelay)
}

func (s *compositionService) CreateMilestoneTemplate(ctx context.Context, userID, sessionID string, req models.CreateMilestoneTemplateRequest) Result[*SessionState] {
	return s.withSession(ctx, userID, sessionID, true, func(sess *Session) error {
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			return fmt.Errorf("%w: milestone template name is required", ErrInvalidInput)
		}

		created, err := s.backend.CreateMilestoneTemplate(ctx, req)
		if err != nil {
			return s.outcome(userID, "", "Could not create milestone template", err)
		}
		if created.Phases == nil {
			created.Phases = []models.Phase{}
		}
		s.addToSelection(sess, *created)
		return s.outcome(userID, "Milestone template created", "", nil)
	})
}

func (s *compositionService) RemoveMilestone(ctx context.Context, userID, sessionID, milestoneID string) Result[*SessionState] {
	return s.withSession(ctx, userID, sessionID, true, func(sess *Session) error {
		i := sess.indexOf(milestoneID)
		if i < 0 {
			return fmt.Errorf("milestone %s: %w", milestoneID, ErrNotFound)
		}
		sess.selected = append(sess.selected[:i:i], sess.selected[i+1:]...)
		sess.form.Milestones = composition.RemoveMilestoneRef(sess.form.Milestones, milestoneID)
		sess.rederive()
		sess.userEdited = true
		s.scheduleAutosave(sess, s.opts.SelectionAutosaveDelay)
		return nil
	})
}

func (s *compositionService) CustomizeMilestoneRef(ctx context.Context, userID, sessionID string, ref models.MilestoneRef) Result[*SessionState] {
	return s.withSession(ctx, userID, sessionID, true, func(sess *Session) error {
		if sess.indexOf(ref.MilestoneTemplateID) < 0 {
			return fmt.Errorf("%w: milestone %q is not selected", ErrInvalidInput, ref.MilestoneTemplateID)
		}
		if ref.CustomName != nil && strings.TrimSpace(*ref.CustomName) == "" {
			ref.CustomName = nil
		}
		sess.form.Milestones = composition.UpsertMilestoneRef(sess.form.Milestones, ref)
		sess.userEdited = true
		s.scheduleAutosave(sess, s.opts.FormAutosaveDelay)
		return nil
	})
}

func (s *compositionService) ReorderMilestones(ctx context.Context, userID, sessionID string, from, to int) Result[*SessionState] {
	return s.withSession(ctx, userID, sessionID, true, func(sess *Session) error {
		if from < 0 || from >= len(sess.selected) || to < 0 || to >= len(sess.selected) {
			return fmt.Errorf("%w: position out of range", ErrInvalidInput)
		}
		s.moveMilestone(sess, from, to)
		return nil
	})
}

// moveMilestone is the drag-and-drop of a milestone. References follow the
// new order only once one of them carries an override.
func (s *compositionService) moveMilestone(sess *Session, from, to int) {
	if from == to {
		return
	}
	sess.selected = composition.MoveIndex(sess.selected, from, to)
	sess.form.Milestones, _ = composition.ReorderMilestoneRefs(sess.form.Milestones, sess.selectedIDs())
	sess.rederive()
	sess.userEdited = true
	s.scheduleAutosave(sess, s.opts.SelectionAutosaveDelay)
}

// ============================================
// Phases and deliverables
// ============================================

func (s *compositionService) AddPhase(ctx context.Context, userID, sessionID, milestoneID string, req models.PhaseRequest) Result[*SessionState] {
	return s.withSession(ctx, userID, sessionID, true, func(sess *Session) error {
		if milestoneID == "" {
			return ErrMissingSelection
		}
		if sess.indexOf(milestoneID) < 0 {
			return fmt.Errorf("milestone %s: %w", milestoneID, ErrNotFound)
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			return fmt.Errorf("%w: phase name is required", ErrInvalidInput)
		}

		placeholder := models.PhaseView{
			ID:          composition.NewLocalID(),
			Name:        req.Name,
			Description: req.Description,
			MilestoneID: milestoneID,
		}
		sess.local.Phases = append(sess.local.Phases, placeholder)
		sess.rederive()
		s.publishPending(sess)

		phase, err := s.backend.AddPhase(ctx, milestoneID, req)
		sess.removeLocalPhase(placeholder.ID)
		if err != nil {
			sess.rederive()
			return s.outcome(userID, "", "Could not add phase", err)
		}
		sess.selected = composition.ApplyPhaseAdded(sess.selected, milestoneID, *phase)
		sess.rederive()
		return s.outcome(userID, "Phase added", "", nil)
	})
}

func (s *compositionService) UpdatePhase(ctx context.Context, userID, sessionID, phaseID string, req models.PhaseRequest) Result[*SessionState] {
	return s.withSession(ctx, userID, sessionID, true, func(sess *Session) error {
		milestoneID, err := s.phaseOwner(sess, phaseID)
		if err != nil {
			return err
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			return fmt.Errorf("%w: phase name is required", ErrInvalidInput)
		}

		phase, err := s.backend.UpdatePhase(ctx, milestoneID, phaseID, req)
		if err != nil {
			return s.outcome(userID, "", "Could not update phase", err)
		}
		sess.selected = composition.ApplyPhaseUpdated(sess.selected, milestoneID, *phase)
		sess.rederive()
		return s.outcome(userID, "Phase updated", "", nil)
	})
}

func (s *compositionService) DeletePhase(ctx context.Context, userID, sessionID, phaseID string) Result[*SessionState] {
	return s.withSession(ctx, userID, sessionID, true, func(sess *Session) error {
		milestoneID, err := s.phaseOwner(sess, phaseID)
		if err != nil {
			return err
		}
		if err := s.backend.DeletePhase(ctx, milestoneID, phaseID); err != nil {
			return s.outcome(userID, "", "Could not delete phase", err)
		}
		sess.selected = composition.ApplyPhaseDeleted(sess.selected, milestoneID, phaseID)
		sess.rederive()
		return s.outcome(userID, "Phase deleted", "", nil)
	})
}

func (s *compositionService) phaseOwner(sess *Session, phaseID string) (string, error) {
	if phaseID == "" {
		return "", ErrMissingSelection
	}
	if composition.IsLocalID(phaseID) {
		return "", ErrNotPersisted
	}
	milestoneID, ok := composition.FindPhaseOwner(sess.selected, phaseID)
	if !ok {
		return "", fmt.Errorf("phase %s: %w", phaseID, ErrNotFound)
	}
	return milestoneID, nil
}

func (s *compositionService) deliverableOwner(sess *Session, deliverableID string) (string, string, error) {
	if composition.IsLocalID(deliverableID) {
		return "", "", ErrNotPersisted
	}
	milestoneID, phaseID, ok := composition.FindDeliverableOwner(sess.selected, deliverableID)
	if !ok {
		return "", "", fmt.Errorf("deliverable %s: %w", deliverableID, ErrNotFound)
	}
	return milestoneID, phaseID, nil
}

// normalizeDeliverable trims the name, defaults the priority and keeps only
// precedence references to other deliverables of the composition.
func normalizeDeliverable(sess *Session, selfID string, req *models.DeliverableRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return fmt.Errorf("%w: deliverable name is required", ErrInvalidInput)
	}
	if req.Priority == "" {
		req.Priority = types.PriorityMedium
	}
	if !types.IsValidPriority(req.Priority) {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, req.Priority)
	}
	if req.Precedence == nil {
		return nil
	}

	known := make(map[string]bool, len(sess.views.Deliverables))
	for _, d := range sess.views.Deliverables {
		if !composition.IsLocalID(d.ID) {
			known[d.ID] = true
		}
	}
	seen := make(map[string]bool, len(req.Precedence))
	refs := make([]models.PrecedenceRef, 0, len(req.Precedence))
	for _, ref := range req.Precedence {
		id := ref.DeliverableID
		if id == selfID || !known[id] || seen[id] {
			continue
		}
		seen[id] = true
		refs = append(refs, ref)
	}
	req.Precedence = refs
	return nil
}

func (s *compositionService) AddDeliverable(ctx context.Context, userID, sessionID, phaseID string, req models.DeliverableRequest) Result[*SessionState] {
	return s.withSession(ctx, userID, sessionID, true, func(sess *Session) error {
		milestoneID, err := s.phaseOwner(sess, phaseID)
		if err != nil {
			return err
		}
		if err := normalizeDeliverable(sess, "", &req); err != nil {
			return err
		}
		if req.Precedence == nil {
			req.Precedence = []models.PrecedenceRef{}
		}

		placeholder := models.DeliverableView{
			ID:          composition.NewLocalID(),
			Name:        req.Name,
			Description: req.Description,
			Priority:    req.Priority,
			Precedence:  req.Precedence,
			PhaseID:     phaseID,
		}
		sess.local.Deliverables = append(sess.local.Deliverables, placeholder)
		sess.rederive()
		s.publishPending(sess)

		created, err := s.backend.AddDeliverable(ctx, milestoneID, phaseID, req)
		sess.removeLocalDeliverable(placeholder.ID)
		if err != nil {
			sess.rederive()
			return s.outcome(userID, "", "Could not add deliverable", err)
		}
		sess.selected = composition.ApplyDeliverableAdded(sess.selected, milestoneID, phaseID, *created)
		sess.rederive()
		return s.outcome(userID, "Deliverable added", "", nil)
	})
}

func (s *compositionService) UpdateDeliverable(ctx context.Context, userID, sessionID, deliverableID string, req models.DeliverableRequest) Result[*SessionState] {
	return s.withSession(ctx, userID, sessionID, true, func(sess *Session) error {
		milestoneID, phaseID, err := s.deliverableOwner(sess, deliverableID)
		if err != nil {
			return err
		}
		if err := normalizeDeliverable(sess, deliverableID, &req); err != nil {
			return err
		}
		if req.Precedence == nil {
			current, _ := composition.FindDeliverable(sess.selected, deliverableID)
			req.Precedence = append([]models.PrecedenceRef{}, current.Precedence...)
		} else if createsCycle(sess.views.Deliverables, deliverableID, req.Precedence) {
			return s.outcome(userID, "", "Could not update deliverable", cycleError())
		}

		return s.storeDeliverable(ctx, sess, milestoneID, phaseID, deliverableID, req, "Deliverable updated", "Could not update deliverable")
	})
}

func (s *compositionService) storeDeliverable(ctx context.Context, sess *Session, milestoneID, phaseID, deliverableID string, req models.DeliverableRequest, success, failure string) error {
	updated, err := s.backend.UpdateDeliverable(ctx, milestoneID, phaseID, deliverableID, req)
	if err != nil {
		return s.outcome(sess.UserID, "", failure, err)
	}
	sess.selected = composition.ApplyDeliverableUpdated(sess.selected, milestoneID, phaseID, *updated)
	sess.rederive()
	return s.outcome(sess.UserID, success, "", nil)
}

func createsCycle(all []models.DeliverableView, id string, precedence []models.PrecedenceRef) bool {
	pool := make([]models.DeliverableView, len(all))
	copy(pool, all)
	for i := range pool {
		if pool[i].ID == id {
			pool[i].Precedence = precedence
		}
	}
	return composition.PrecedenceGraphHasCycle(pool)
}

func (s *compositionService) DeleteDeliverable(ctx context.Context, userID, sessionID, deliverableID string) Result[*SessionState] {
	return s.withSession(ctx, userID, sessionID, true, func(sess *Session) error {
		milestoneID, phaseID, err := s.deliverableOwner(sess, deliverableID)
		if err != nil {
			return err
		}
		if err := s.backend.DeleteDeliverable(ctx, milestoneID, phaseID, deliverableID); err != nil {
			return s.outcome(userID, "", "Could not delete deliverable", err)
		}
		sess.selected = composition.ApplyDeliverableDeleted(sess.selected, milestoneID, phaseID, deliverableID)
		sess.rederive()
		return s.outcome(userID, "Deliverable deleted", "", nil)
	})
}

// ChangePosition moves a phase or deliverable through the backend and swaps
// in the returned milestone. Milestones only have a position inside this
// composition, so their moves stay local.
func (s *compositionService) ChangePosition(ctx context.Context, userID, sessionID string, req models.ChangePositionRequest) Result[*SessionState] {
	return s.withSession(ctx, userID, sessionID, true, func(sess *Session) error {
		if !types.IsValidPositionType(req.Type) {
			return fmt.Errorf("%w: unknown position type %q", ErrInvalidInput, req.Type)
		}
		if req.NewPosition < 0 {
			return fmt.Errorf("%w: position must not be negative", ErrInvalidInput)
		}

		switch req.Type {
		case types.PositionMilestone:
			from := sess.indexOf(req.PositionID)
			if from < 0 {
				return fmt.Errorf("milestone %s: %w", req.PositionID, ErrNotFound)
			}
			to := req.NewPosition
			if to >= len(sess.selected) {
				to = len(sess.selected) - 1
			}
			s.moveMilestone(sess, from, to)
			return nil
		case types.PositionPhase:
			if _, err := s.phaseOwner(sess, req.PositionID); err != nil {
				return err
			}
		case types.PositionDeliverable:
			if _, _, err := s.deliverableOwner(sess, req.PositionID); err != nil {
				return err
			}
		}

		parent, err := s.backend.ChangePosition(ctx, req)
		if err != nil {
			return s.outcome(userID, "", "Could not change position", err)
		}
		var replaced bool
		sess.selected, replaced = composition.ReplaceMilestone(sess.selected, *parent)
		if !replaced {
			s.log.Warn("Position change returned an unselected milestone",
				zap.String("session_id", sess.ID),
				zap.String("milestone_id", parent.ID),
			)
		}
		sess.rederive()
		return s.outcome(userID, "Position updated", "", nil)
	})
}

// ============================================
// Precedence
// ============================================

func (s *compositionService) TogglePrecedence(ctx context.Context, userID, sessionID, deliverableID, targetID string) Result[*SessionState] {
	return s.withSession(ctx, userID, sessionID, true, func(sess *Session) error {
		mgr, milestoneID, phaseID, err := s.precedenceManager(sess, deliverableID)
		if err != nil {
			return err
		}
		if targetID == deliverableID {
			return nil
		}
		if _, err := mgr.Toggle(targetID); err != nil {
			if errors.Is(err, composition.ErrPrecedenceCycle) {
				return s.outcome(userID, "", "Could not update precedence", cycleError())
			}
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return s.storePrecedence(ctx, sess, milestoneID, phaseID, deliverableID, mgr.Precedence())
	})
}

func (s *compositionService) RemovePrecedence(ctx context.Context, userID, sessionID, deliverableID, targetID string) Result[*SessionState] {
	return s.withSession(ctx, userID, sessionID, true, func(sess *Session) error {
		mgr, milestoneID, phaseID, err := s.precedenceManager(sess, deliverableID)
		if err != nil {
			return err
		}
		if !mgr.Contains(targetID) {
			return nil
		}
		mgr.Remove(targetID)
		return s.storePrecedence(ctx, sess, milestoneID, phaseID, deliverableID, mgr.Precedence())
	})
}

func (s *compositionService) precedenceManager(sess *Session, deliverableID string) (*composition.PrecedenceManager, string, string, error) {
	milestoneID, phaseID, err := s.deliverableOwner(sess, deliverableID)
	if err != nil {
		return nil, "", "", err
	}
	current, ok := sess.findDeliverableView(deliverableID)
	if !ok {
		return nil, "", "", fmt.Errorf("deliverable %s: %w", deliverableID, ErrNotFound)
	}
	return composition.NewPrecedenceManager(current, sess.views.Deliverables), milestoneID, phaseID, nil
}

func (s *compositionService) storePrecedence(ctx context.Context, sess *Session, milestoneID, phaseID, deliverableID string, precedence []models.PrecedenceRef) error {
	d, _ := composition.FindDeliverable(sess.selected, deliverableID)
	req := models.DeliverableRequest{
		Name:        d.Name,
		Description: d.Description,
		Priority:    d.Priority,
		Precedence:  precedence,
	}
	return s.storeDeliverable(ctx, sess, milestoneID, phaseID, deliverableID, req, "Precedence updated", "Could not update precedence")
}

func (s *compositionService) PrecedenceCandidates(ctx context.Context, userID, sessionID, deliverableID string, filter composition.CandidateFilter) Result[[]composition.CandidateGroup] {
	var groups []composition.CandidateGroup
	res := s.withSession(ctx, userID, sessionID, false, func(sess *Session) error {
		groups = composition.ListCandidates(sess.views.Deliverables, sess.views.Phases, deliverableID, filter)
		return nil
	})
	if !res.Success {
		return Fail[[]composition.CandidateGroup](res.Err())
	}
	return Ok(groups)
}

// ============================================
// Drafts
// ============================================

func (s *compositionService) SaveDraftNow(ctx context.Context, userID, sessionID string) Result[*SessionState] {
	return s.withSession(ctx, userID, sessionID, false, func(sess *Session) error {
		if sess.recoverable != nil {
			return fmt.Errorf("%w: recover or discard the pending draft first", ErrInvalidInput)
		}
		sess.autosave.Cancel()
		if err := s.saveDraft(ctx, sess); err != nil {
			return s.outcome(userID, "", "Could not save draft", err)
		}
		return nil
	})
}

func (s *compositionService) RecoverDraft(ctx context.Context, userID, sessionID string) Result[*SessionState] {
	return s.withSession(ctx, userID, sessionID, true, func(sess *Session) error {
		snap, err := s.drafts.For(userID).LoadDraft(ctx, sess.TemplateID, sess.isUpdate())
		if err != nil {
			return err
		}
		if snap == nil {
			sess.recoverable = nil
			return ErrNoDraft
		}

		sess.loading = true
		defer func() { sess.loading = false }()

		have := make(map[string]models.MilestoneTemplate, len(sess.selected))
		for _, m := range sess.selected {
			have[m.ID] = m
		}
		ids := make([]string, 0, len(snap.Milestones))
		for _, ref := range snap.Milestones {
			ids = append(ids, ref.MilestoneTemplateID)
		}
		selected, err := s.resolveSelection(ctx, dedupe(ids), have)
		if err != nil {
			return s.outcome(userID, "", "Could not recover draft", err)
		}

		sess.autosave.Cancel()
		sess.form = snap.ProjectTemplateForm
		sess.form = sess.cloneForm()
		sess.selected = selected
		sess.syncRefs()
		sess.rederive()
		sess.recoverable = nil
		sess.userEdited = true

		s.activity.Record(ctx, types.ActivityDraftRecovered, userID, sess.ID, sess.TemplateID, map[string]interface{}{
			"draftTimestamp": snap.Timestamp,
		})
		s.notifier.Toast(userID, notification.Info("Draft recovered", ""))
		return nil
	})
}

func (s *compositionService) DiscardDraft(ctx context.Context, userID, sessionID string) Result[*SessionState] {
	return s.withSession(ctx, userID, sessionID, true, func(sess *Session) error {
		sess.autosave.Cancel()
		if err := s.drafts.For(userID).ClearDraft(ctx, sess.TemplateID, sess.isUpdate()); err != nil {
			return err
		}
		sess.recoverable = nil
		s.activity.Record(ctx, types.ActivityDraftDiscarded, userID, sess.ID, sess.TemplateID, nil)
		return nil
	})
}

func (s *compositionService) HasUnsavedChanges(ctx context.Context, userID, sessionID string) Result[bool] {
	res := s.Get(ctx, userID, sessionID)
	if !res.Success {
		return Fail[bool](res.Err())
	}
	return Ok(res.Data.HasUnsavedChanges)
}

// ============================================
// Submit and close
// ============================================

// Submit forces the references to the latest selection and order, validates
// the form and writes it to the backend. A successful submit clears the
// draft and closes the session.
func (s *compositionService) Submit(ctx context.Context, userID, sessionID string) Result[*models.ProjectTemplate] {
	sess, err := s.lookup(userID, sessionID)
	if err != nil {
		return Fail[*models.ProjectTemplate](err)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.closed {
		return Fail[*models.ProjectTemplate](ErrSessionClosed)
	}
	sess.lastActive = s.clock.Now()

	ids := sess.selectedIDs()
	sess.syncRefs()
	sess.form.Milestones, _ = composition.OrderMilestoneRefs(sess.form.Milestones, ids)
	form := sess.cloneForm()

	if err := validateComposition(form, sess.views); err != nil {
		metrics.IncrementSubmission(sess.Mode, "invalid")
		return Fail[*models.ProjectTemplate](s.outcome(userID, "", "Please review the form", err))
	}

	var saved *models.ProjectTemplate
	if sess.isUpdate() {
		saved, err = s.backend.UpdateProjectTemplate(ctx, sess.TemplateID, form.ToRequest())
	} else {
		saved, err = s.backend.CreateProjectTemplate(ctx, form.ToRequest())
	}
	if err != nil {
		metrics.IncrementSubmission(sess.Mode, "error")
		return Fail[*models.ProjectTemplate](s.outcome(userID, "", "Could not save project template", err))
	}
	metrics.IncrementSubmission(sess.Mode, "success")

	if err := s.drafts.For(userID).ClearDraft(ctx, sess.TemplateID, sess.isUpdate()); err != nil {
		s.log.Warn("Failed to clear draft after submit", zap.String("session_id", sess.ID), zap.Error(err))
	}
	sess.userEdited = false
	s.closeSession(sess, "submitted")

	action, title := types.ActivityTemplateCreated, "Project template created"
	if sess.isUpdate() {
		action, title = types.ActivityTemplateUpdated, "Project template updated"
	}
	s.activity.Record(ctx, action, userID, sess.ID, saved.ID, map[string]interface{}{"name": saved.Name})
	s.notifier.Toast(userID, notification.Success(title, saved.Name))
	return Ok(saved)
}

func (s *compositionService) Close(ctx context.Context, userID, sessionID string) Result[bool] {
	sess, err := s.lookup(userID, sessionID)
	if err != nil {
		return Fail[bool](err)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return Ok(false)
	}
	s.closeSession(sess, "closed")
	return Ok(true)
}

// closeSession cancels the pending autosave and drops the session. Callers
// hold sess.mu.
func (s *compositionService) closeSession(sess *Session, reason string) {
	sess.autosave.Cancel()
	sess.closed = true
	s.unregister(sess.ID)
	s.notifier.SessionClosed(sess.ID, reason)
	s.log.Debug("Session closed", zap.String("session_id", sess.ID), zap.String("reason", reason))
}

func (s *compositionService) ReapIdle(ctx context.Context, maxIdle time.Duration) int {
	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	now := s.clock.Now()
	reaped := 0
	for _, sess := range sessions {
		sess.mu.Lock()
		if !sess.closed && now.Sub(sess.lastActive) > maxIdle {
			s.closeSession(sess, "idle")
			reaped++
		}
		sess.mu.Unlock()
	}
	if reaped > 0 {
		s.log.Info("Reaped idle sessions", zap.Int("count", reaped))
	}
	return reaped
}
