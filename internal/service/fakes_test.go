package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Marga-Ghale/ora-template-studio/internal/backend"
	"github.com/Marga-Ghale/ora-template-studio/internal/clock"
	"github.com/Marga-Ghale/ora-template-studio/internal/composition"
	"github.com/Marga-Ghale/ora-template-studio/internal/draft"
	"github.com/Marga-Ghale/ora-template-studio/internal/models"
	"github.com/Marga-Ghale/ora-template-studio/internal/notification"
	"github.com/Marga-Ghale/ora-template-studio/internal/repository"
	"github.com/Marga-Ghale/ora-template-studio/internal/types"
)

var epoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

// ============================================
// Fixtures
// ============================================

func strPtr(s string) *string { return &s }

func milestone(id, name string, phases ...models.Phase) models.MilestoneTemplate {
	if phases == nil {
		phases = []models.Phase{}
	}
	return models.MilestoneTemplate{ID: id, Name: name, IsActive: true, Phases: phases}
}

func phase(id, name string, deliverables ...models.Deliverable) models.Phase {
	if deliverables == nil {
		deliverables = []models.Deliverable{}
	}
	return models.Phase{ID: id, Name: name, Deliverables: deliverables}
}

func deliverable(id, name string, precedence ...string) models.Deliverable {
	refs := []models.PrecedenceRef{}
	for _, p := range precedence {
		refs = append(refs, models.PrecedenceRef{DeliverableID: p})
	}
	return models.Deliverable{ID: id, Name: name, Priority: types.PriorityMedium, Precedence: refs}
}

func deepCopy[T any](v T) T {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return out
}

func notFound(what string) error {
	return &backend.APIError{Status: http.StatusNotFound, Message: what + " not found"}
}

// ============================================
// Fake backend
// ============================================

type fakeBackend struct {
	mu         sync.Mutex
	seq        int
	milestones map[string]models.MilestoneTemplate
	projects   map[string]models.ProjectTemplate
	tags       map[string]models.Tag
	failures   map[string]error

	createdProjects []models.ProjectTemplateRequest
	updatedProjects map[string]models.ProjectTemplateRequest
	calls           []string
}

func newFakeBackend(milestones ...models.MilestoneTemplate) *fakeBackend {
	f := &fakeBackend{
		milestones:      make(map[string]models.MilestoneTemplate),
		projects:        make(map[string]models.ProjectTemplate),
		tags:            make(map[string]models.Tag),
		failures:        make(map[string]error),
		updatedProjects: make(map[string]models.ProjectTemplateRequest),
	}
	for _, m := range milestones {
		f.milestones[m.ID] = deepCopy(m)
	}
	return f
}

// failNext makes the next call of method return err.
func (f *fakeBackend) failNext(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = err
}

func (f *fakeBackend) enter(method string) error {
	f.calls = append(f.calls, method)
	if err, ok := f.failures[method]; ok {
		delete(f.failures, method)
		return err
	}
	return nil
}

func (f *fakeBackend) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeBackend) called(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (f *fakeBackend) FetchMilestoneTemplates(ctx context.Context, ids []string) ([]models.MilestoneTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("FetchMilestoneTemplates"); err != nil {
		return nil, err
	}
	out := make([]models.MilestoneTemplate, 0, len(ids))
	for _, id := range ids {
		m, ok := f.milestones[id]
		if !ok {
			return nil, notFound("milestone template")
		}
		out = append(out, deepCopy(m))
	}
	return out, nil
}

func (f *fakeBackend) CreateMilestoneTemplate(ctx context.Context, req models.CreateMilestoneTemplateRequest) (*models.MilestoneTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateMilestoneTemplate"); err != nil {
		return nil, err
	}
	m := milestone(f.nextID("m"), req.Name)
	m.Description = req.Description
	f.milestones[m.ID] = m
	out := deepCopy(m)
	return &out, nil
}

func (f *fakeBackend) AddPhase(ctx context.Context, milestoneID string, req models.PhaseRequest) (*models.Phase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("AddPhase"); err != nil {
		return nil, err
	}
	m, ok := f.milestones[milestoneID]
	if !ok {
		return nil, notFound("milestone template")
	}
	p := phase(f.nextID("p"), req.Name)
	p.Description = req.Description
	m.Phases = append(m.Phases, p)
	f.milestones[milestoneID] = m
	out := deepCopy(p)
	return &out, nil
}

func (f *fakeBackend) UpdatePhase(ctx context.Context, milestoneID, phaseID string, req models.PhaseRequest) (*models.Phase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdatePhase"); err != nil {
		return nil, err
	}
	m := deepCopy(f.milestones[milestoneID])
	for i := range m.Phases {
		if m.Phases[i].ID == phaseID {
			m.Phases[i].Name = req.Name
			m.Phases[i].Description = req.Description
			f.milestones[milestoneID] = m
			out := deepCopy(m.Phases[i])
			return &out, nil
		}
	}
	return nil, notFound("phase")
}

func (f *fakeBackend) DeletePhase(ctx context.Context, milestoneID, phaseID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeletePhase"); err != nil {
		return err
	}
	m := deepCopy(f.milestones[milestoneID])
	out := m.Phases[:0]
	for _, p := range m.Phases {
		if p.ID != phaseID {
			out = append(out, p)
		}
	}
	m.Phases = out
	f.milestones[milestoneID] = m
	return nil
}

func (f *fakeBackend) AddDeliverable(ctx context.Context, milestoneID, phaseID string, req models.DeliverableRequest) (*models.Deliverable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("AddDeliverable"); err != nil {
		return nil, err
	}
	m := deepCopy(f.milestones[milestoneID])
	for i := range m.Phases {
		if m.Phases[i].ID != phaseID {
			continue
		}
		d := models.Deliverable{
			ID:          f.nextID("d"),
			Name:        req.Name,
			Description: req.Description,
			Priority:    req.Priority,
			Precedence:  req.Precedence,
		}
		m.Phases[i].Deliverables = append(m.Phases[i].Deliverables, d)
		f.milestones[milestoneID] = m
		out := deepCopy(d)
		return &out, nil
	}
	return nil, notFound("phase")
}

func (f *fakeBackend) UpdateDeliverable(ctx context.Context, milestoneID, phaseID, deliverableID string, req models.DeliverableRequest) (*models.Deliverable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateDeliverable"); err != nil {
		return nil, err
	}
	m := deepCopy(f.milestones[milestoneID])
	for i := range m.Phases {
		if m.Phases[i].ID != phaseID {
			continue
		}
		for j := range m.Phases[i].Deliverables {
			d := &m.Phases[i].Deliverables[j]
			if d.ID != deliverableID {
				continue
			}
			d.Name, d.Description, d.Priority, d.Precedence = req.Name, req.Description, req.Priority, req.Precedence
			f.milestones[milestoneID] = m
			out := deepCopy(*d)
			return &out, nil
		}
	}
	return nil, notFound("deliverable")
}

func (f *fakeBackend) DeleteDeliverable(ctx context.Context, milestoneID, phaseID, deliverableID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enter("DeleteDeliverable")
}

// ChangePosition supports phases only, which is all the tests move.
func (f *fakeBackend) ChangePosition(ctx context.Context, req models.ChangePositionRequest) (*models.MilestoneTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ChangePosition"); err != nil {
		return nil, err
	}
	for id, m := range f.milestones {
		for i, p := range m.Phases {
			if p.ID != req.PositionID {
				continue
			}
			m = deepCopy(m)
			m.Phases = composition.MoveIndex(m.Phases, i, req.NewPosition)
			f.milestones[id] = m
			out := deepCopy(m)
			return &out, nil
		}
	}
	return nil, notFound("position")
}

func (f *fakeBackend) GetDetailedProjectTemplate(ctx context.Context, id string) (*models.DetailedProjectTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetDetailedProjectTemplate"); err != nil {
		return nil, err
	}
	p, ok := f.projects[id]
	if !ok {
		return nil, notFound("project template")
	}
	out := &models.DetailedProjectTemplate{ID: p.ID, Name: p.Name, Description: p.Description, IsActive: p.IsActive}
	for _, ref := range p.Milestones {
		out.Milestones = append(out.Milestones, models.DetailedMilestone{
			MilestoneRef:      ref,
			MilestoneTemplate: deepCopy(f.milestones[ref.MilestoneTemplateID]),
		})
	}
	for _, tagID := range p.TagIDs {
		out.Tags = append(out.Tags, f.tags[tagID])
	}
	return out, nil
}

func (f *fakeBackend) CreateProjectTemplate(ctx context.Context, req models.ProjectTemplateRequest) (*models.ProjectTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateProjectTemplate"); err != nil {
		return nil, err
	}
	f.createdProjects = append(f.createdProjects, deepCopy(req))
	p := models.ProjectTemplate{
		ID: f.nextID("pt"), Name: req.Name, Description: req.Description, IsActive: req.IsActive,
		Milestones: req.Milestones, TagIDs: req.TagIDs,
	}
	f.projects[p.ID] = p
	return &p, nil
}

func (f *fakeBackend) UpdateProjectTemplate(ctx context.Context, id string, req models.ProjectTemplateRequest) (*models.ProjectTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateProjectTemplate"); err != nil {
		return nil, err
	}
	f.updatedProjects[id] = deepCopy(req)
	p := models.ProjectTemplate{
		ID: id, Name: req.Name, Description: req.Description, IsActive: req.IsActive,
		Milestones: req.Milestones, TagIDs: req.TagIDs,
	}
	f.projects[id] = p
	return &p, nil
}

func (f *fakeBackend) ListMilestoneTemplatesPaginated(ctx context.Context, q models.PageQuery) (*models.Paginated[models.MilestoneTemplate], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListMilestoneTemplatesPaginated"); err != nil {
		return nil, err
	}
	items := []models.MilestoneTemplate{}
	for _, m := range f.milestones {
		items = append(items, deepCopy(m))
	}
	return &models.Paginated[models.MilestoneTemplate]{Items: items, Total: len(items), Page: q.Page, Limit: q.Limit, TotalPages: 1}, nil
}

func (f *fakeBackend) ListActiveMilestoneTemplates(ctx context.Context) ([]models.MilestoneTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListActiveMilestoneTemplates"); err != nil {
		return nil, err
	}
	out := []models.MilestoneTemplate{}
	for _, m := range f.milestones {
		if m.IsActive {
			out = append(out, deepCopy(m))
		}
	}
	return out, nil
}

func (f *fakeBackend) FindMilestoneTemplatesByName(ctx context.Context, name string) ([]models.MilestoneTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("FindMilestoneTemplatesByName"); err != nil {
		return nil, err
	}
	out := []models.MilestoneTemplate{}
	for _, m := range f.milestones {
		if m.Name == name {
			out = append(out, deepCopy(m))
		}
	}
	return out, nil
}

func (f *fakeBackend) GetMilestoneTemplate(ctx context.Context, id string) (*models.MilestoneTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetMilestoneTemplate"); err != nil {
		return nil, err
	}
	m, ok := f.milestones[id]
	if !ok {
		return nil, notFound("milestone template")
	}
	out := deepCopy(m)
	return &out, nil
}

func (f *fakeBackend) UpdateMilestoneTemplate(ctx context.Context, id string, req models.UpdateMilestoneTemplateRequest) (*models.MilestoneTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateMilestoneTemplate"); err != nil {
		return nil, err
	}
	m, ok := f.milestones[id]
	if !ok {
		return nil, notFound("milestone template")
	}
	if req.Name != nil {
		m.Name = *req.Name
	}
	if req.IsActive != nil {
		m.IsActive = *req.IsActive
	}
	f.milestones[id] = m
	out := deepCopy(m)
	return &out, nil
}

func (f *fakeBackend) DeleteMilestoneTemplate(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enter("DeleteMilestoneTemplate")
}

func (f *fakeBackend) ReactivateMilestoneTemplate(ctx context.Context, id string) (*models.MilestoneTemplate, error) {
	return f.setMilestoneActive("ReactivateMilestoneTemplate", id, func(bool) bool { return true })
}

func (f *fakeBackend) ToggleMilestoneTemplateActive(ctx context.Context, id string) (*models.MilestoneTemplate, error) {
	return f.setMilestoneActive("ToggleMilestoneTemplateActive", id, func(active bool) bool { return !active })
}

func (f *fakeBackend) setMilestoneActive(method, id string, next func(bool) bool) (*models.MilestoneTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(method); err != nil {
		return nil, err
	}
	m, ok := f.milestones[id]
	if !ok {
		return nil, notFound("milestone template")
	}
	m.IsActive = next(m.IsActive)
	f.milestones[id] = m
	out := deepCopy(m)
	return &out, nil
}

func (f *fakeBackend) ListProjectTemplatesPaginated(ctx context.Context, q models.PageQuery) (*models.Paginated[models.ProjectTemplate], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListProjectTemplatesPaginated"); err != nil {
		return nil, err
	}
	items := []models.ProjectTemplate{}
	for _, p := range f.projects {
		items = append(items, p)
	}
	return &models.Paginated[models.ProjectTemplate]{Items: items, Total: len(items), Page: q.Page, Limit: q.Limit, TotalPages: 1}, nil
}

func (f *fakeBackend) ListActiveProjectTemplates(ctx context.Context) ([]models.ProjectTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListActiveProjectTemplates"); err != nil {
		return nil, err
	}
	out := []models.ProjectTemplate{}
	for _, p := range f.projects {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeBackend) DeleteProjectTemplate(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enter("DeleteProjectTemplate")
}

func (f *fakeBackend) ReactivateProjectTemplate(ctx context.Context, id string) (*models.ProjectTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ReactivateProjectTemplate"); err != nil {
		return nil, err
	}
	p, ok := f.projects[id]
	if !ok {
		return nil, notFound("project template")
	}
	p.IsActive = true
	f.projects[id] = p
	return &p, nil
}

func (f *fakeBackend) ListTags(ctx context.Context) ([]models.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListTags"); err != nil {
		return nil, err
	}
	out := []models.Tag{}
	for _, t := range f.tags {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeBackend) SearchTags(ctx context.Context, name string) ([]models.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("SearchTags"); err != nil {
		return nil, err
	}
	out := []models.Tag{}
	for _, t := range f.tags {
		if t.Name == name {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeBackend) GetTag(ctx context.Context, id string) (*models.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetTag"); err != nil {
		return nil, err
	}
	t, ok := f.tags[id]
	if !ok {
		return nil, notFound("tag")
	}
	return &t, nil
}

func (f *fakeBackend) CreateTag(ctx context.Context, req models.TagRequest) (*models.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateTag"); err != nil {
		return nil, err
	}
	t := models.Tag{ID: f.nextID("t"), Name: req.Name, Color: req.Color}
	f.tags[t.ID] = t
	return &t, nil
}

func (f *fakeBackend) UpdateTag(ctx context.Context, id string, req models.TagRequest) (*models.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateTag"); err != nil {
		return nil, err
	}
	t := models.Tag{ID: id, Name: req.Name, Color: req.Color}
	f.tags[id] = t
	return &t, nil
}

func (f *fakeBackend) DeleteTag(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteTag"); err != nil {
		return err
	}
	delete(f.tags, id)
	return nil
}

// ============================================
// Recording notifier
// ============================================

type recordingNotifier struct {
	mu           sync.Mutex
	toasts       []notification.Toast
	draftSaving  []bool
	updates      map[string]int
	closedReason map[string]string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{updates: make(map[string]int), closedReason: make(map[string]string)}
}

func (n *recordingNotifier) Toast(userID string, t notification.Toast) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toasts = append(n.toasts, t)
}

func (n *recordingNotifier) DraftStatus(userID string, saving bool, lastSavedTimestamp *int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.draftSaving = append(n.draftSaving, saving)
}

func (n *recordingNotifier) SessionUpdated(sessionID string, payload map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates[sessionID]++
}

func (n *recordingNotifier) SessionClosed(sessionID, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closedReason[sessionID] = reason
}

func (n *recordingNotifier) lastToast() notification.Toast {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.toasts) == 0 {
		return notification.Toast{}
	}
	return n.toasts[len(n.toasts)-1]
}

// ============================================
// Harness
// ============================================

type harness struct {
	svc      *compositionService
	backend  *fakeBackend
	notifier *recordingNotifier
	clock    *clock.Fake
	drafts   *draft.Manager
	activity *fakeActivity
}

func newHarness(t *testing.T, milestones ...models.MilestoneTemplate) *harness {
	t.Helper()
	h := &harness{
		backend:  newFakeBackend(milestones...),
		notifier: newRecordingNotifier(),
		clock:    clock.NewFake(epoch),
		activity: &fakeActivity{},
	}
	h.drafts = draft.NewManager(draft.NewMemoryStorage(), h.clock, draft.Options{}, nil)
	h.svc = NewCompositionService(h.backend, h.drafts, h.notifier, h.activity, h.clock, CompositionOptions{}, nil).(*compositionService)
	return h
}

type fakeActivity struct {
	mu      sync.Mutex
	actions []string
}

func (a *fakeActivity) Record(ctx context.Context, action, userID, sessionID, templateID string, metadata map[string]interface{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
}

func (a *fakeActivity) GetUserActivities(ctx context.Context, userID string, limit int) ([]*repository.Activity, error) {
	return []*repository.Activity{}, nil
}

func (a *fakeActivity) GetSessionActivities(ctx context.Context, sessionID string) ([]*repository.Activity, error) {
	return []*repository.Activity{}, nil
}

func (a *fakeActivity) PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error) {
	return 0, nil
}

func (a *fakeActivity) recorded() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string{}, a.actions...)
}
