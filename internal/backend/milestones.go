package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Marga-Ghale/ora-template-studio/internal/models"
	"golang.org/x/sync/errgroup"
)

const milestonesPath = "/v1/milestone-templates"

func milestonePath(id string) string {
	return milestonesPath + "/" + url.PathEscape(id)
}

func phasesPath(milestoneID string) string {
	return milestonePath(milestoneID) + "/phases"
}

func deliverablesPath(milestoneID, phaseID string) string {
	return phasesPath(milestoneID) + "/" + url.PathEscape(phaseID) + "/deliverables"
}

func pageValues(q models.PageQuery) url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	return v
}

// ============================================
// Milestone templates
// ============================================

func (c *Client) ListMilestoneTemplatesPaginated(ctx context.Context, q models.PageQuery) (*models.Paginated[models.MilestoneTemplate], error) {
	var out models.Paginated[models.MilestoneTemplate]
	if err := c.do(ctx, "milestone_templates.paginated", http.MethodGet, milestonesPath+"/paginated", pageValues(q), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListActiveMilestoneTemplates(ctx context.Context) ([]models.MilestoneTemplate, error) {
	var out []models.MilestoneTemplate
	err := c.do(ctx, "milestone_templates.active", http.MethodGet, milestonesPath+"/active", nil, nil, &out)
	return out, err
}

func (c *Client) FindMilestoneTemplatesByName(ctx context.Context, name string) ([]models.MilestoneTemplate, error) {
	var out []models.MilestoneTemplate
	err := c.do(ctx, "milestone_templates.by_name", http.MethodGet, milestonesPath+"/by-name", url.Values{"name": {name}}, nil, &out)
	return out, err
}

func (c *Client) GetMilestoneTemplate(ctx context.Context, id string) (*models.MilestoneTemplate, error) {
	var out models.MilestoneTemplate
	if err := c.do(ctx, "milestone_templates.get", http.MethodGet, milestonePath(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateMilestoneTemplate(ctx context.Context, req models.CreateMilestoneTemplateRequest) (*models.MilestoneTemplate, error) {
	var out models.MilestoneTemplate
	if err := c.do(ctx, "milestone_templates.create", http.MethodPost, milestonesPath, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateMilestoneTemplate(ctx context.Context, id string, req models.UpdateMilestoneTemplateRequest) (*models.MilestoneTemplate, error) {
	var out models.MilestoneTemplate
	if err := c.do(ctx, "milestone_templates.update", http.MethodPut, milestonePath(id), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteMilestoneTemplate soft-deletes the template.
func (c *Client) DeleteMilestoneTemplate(ctx context.Context, id string) error {
	return c.do(ctx, "milestone_templates.delete", http.MethodPatch, milestonePath(id)+"/delete", nil, nil, nil)
}

func (c *Client) ReactivateMilestoneTemplate(ctx context.Context, id string) (*models.MilestoneTemplate, error) {
	var out models.MilestoneTemplate
	if err := c.do(ctx, "milestone_templates.reactivate", http.MethodPatch, milestonePath(id)+"/reactivate", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ToggleMilestoneTemplateActive(ctx context.Context, id string) (*models.MilestoneTemplate, error) {
	var out models.MilestoneTemplate
	if err := c.do(ctx, "milestone_templates.toggle_active", http.MethodPatch, milestonePath(id)+"/toggle-active", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchMilestoneTemplates loads every id in parallel. The result follows the
// order of ids; the first failure cancels the rest.
func (c *Client) FetchMilestoneTemplates(ctx context.Context, ids []string) ([]models.MilestoneTemplate, error) {
	out := make([]models.MilestoneTemplate, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.fetchConcurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			m, err := c.GetMilestoneTemplate(gctx, id)
			if err != nil {
				return err
			}
			out[i] = *m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ============================================
// Phases and deliverables
// ============================================

func (c *Client) AddPhase(ctx context.Context, milestoneID string, req models.PhaseRequest) (*models.Phase, error) {
	var out models.Phase
	if err := c.do(ctx, "phases.create", http.MethodPost, phasesPath(milestoneID), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdatePhase(ctx context.Context, milestoneID, phaseID string, req models.PhaseRequest) (*models.Phase, error) {
	var out models.Phase
	path := phasesPath(milestoneID) + "/" + url.PathEscape(phaseID)
	if err := c.do(ctx, "phases.update", http.MethodPut, path, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeletePhase(ctx context.Context, milestoneID, phaseID string) error {
	path := phasesPath(milestoneID) + "/" + url.PathEscape(phaseID)
	return c.do(ctx, "phases.delete", http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) AddDeliverable(ctx context.Context, milestoneID, phaseID string, req models.DeliverableRequest) (*models.Deliverable, error) {
	var out models.Deliverable
	if err := c.do(ctx, "deliverables.create", http.MethodPost, deliverablesPath(milestoneID, phaseID), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateDeliverable(ctx context.Context, milestoneID, phaseID, deliverableID string, req models.DeliverableRequest) (*models.Deliverable, error) {
	var out models.Deliverable
	path := deliverablesPath(milestoneID, phaseID) + "/" + url.PathEscape(deliverableID)
	if err := c.do(ctx, "deliverables.update", http.MethodPut, path, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteDeliverable(ctx context.Context, milestoneID, phaseID, deliverableID string) error {
	path := deliverablesPath(milestoneID, phaseID) + "/" + url.PathEscape(deliverableID)
	return c.do(ctx, "deliverables.delete", http.MethodDelete, path, nil, nil, nil)
}

// ChangePosition moves a milestone, phase or deliverable and returns the
// updated parent milestone template.
func (c *Client) ChangePosition(ctx context.Context, req models.ChangePositionRequest) (*models.MilestoneTemplate, error) {
	var out models.MilestoneTemplate
	if err := c.do(ctx, "milestone_templates.change_position", http.MethodPatch, milestonesPath+"/change-position", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
