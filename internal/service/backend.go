package service

import (
	"context"

	"github.com/Marga-Ghale/ora-template-studio/internal/models"
)

// CompositionBackend is the part of the template backend the composition
// editor needs.
type CompositionBackend interface {
	FetchMilestoneTemplates(ctx context.Context, ids []string) ([]models.MilestoneTemplate, error)
	CreateMilestoneTemplate(ctx context.Context, req models.CreateMilestoneTemplateRequest) (*models.MilestoneTemplate, error)

	AddPhase(ctx context.Context, milestoneID string, req models.PhaseRequest) (*models.Phase, error)
	UpdatePhase(ctx context.Context, milestoneID, phaseID string, req models.PhaseRequest) (*models.Phase, error)
	DeletePhase(ctx context.Context, milestoneID, phaseID string) error

	AddDeliverable(ctx context.Context, milestoneID, phaseID string, req models.DeliverableRequest) (*models.Deliverable, error)
	UpdateDeliverable(ctx context.Context, milestoneID, phaseID, deliverableID string, req models.DeliverableRequest) (*models.Deliverable, error)
	DeleteDeliverable(ctx context.Context, milestoneID, phaseID, deliverableID string) error

	ChangePosition(ctx context.Context, req models.ChangePositionRequest) (*models.MilestoneTemplate, error)

	GetDetailedProjectTemplate(ctx context.Context, id string) (*models.DetailedProjectTemplate, error)
	CreateProjectTemplate(ctx context.Context, req models.ProjectTemplateRequest) (*models.ProjectTemplate, error)
	UpdateProjectTemplate(ctx context.Context, id string, req models.ProjectTemplateRequest) (*models.ProjectTemplate, error)
}

// CatalogBackend backs the list pages.
type CatalogBackend interface {
	ListMilestoneTemplatesPaginated(ctx context.Context, q models.PageQuery) (*models.Paginated[models.MilestoneTemplate], error)
	ListActiveMilestoneTemplates(ctx context.Context) ([]models.MilestoneTemplate, error)
	FindMilestoneTemplatesByName(ctx context.Context, name string) ([]models.MilestoneTemplate, error)
	GetMilestoneTemplate(ctx context.Context, id string) (*models.MilestoneTemplate, error)
	UpdateMilestoneTemplate(ctx context.Context, id string, req models.UpdateMilestoneTemplateRequest) (*models.MilestoneTemplate, error)
	DeleteMilestoneTemplate(ctx context.Context, id string) error
	ReactivateMilestoneTemplate(ctx context.Context, id string) (*models.MilestoneTemplate, error)
	ToggleMilestoneTemplateActive(ctx context.Context, id string) (*models.MilestoneTemplate, error)

	ListProjectTemplatesPaginated(ctx context.Context, q models.PageQuery) (*models.Paginated[models.ProjectTemplate], error)
	ListActiveProjectTemplates(ctx context.Context) ([]models.ProjectTemplate, error)
	GetDetailedProjectTemplate(ctx context.Context, id string) (*models.DetailedProjectTemplate, error)
	DeleteProjectTemplate(ctx context.Context, id string) error
	ReactivateProjectTemplate(ctx context.Context, id string) (*models.ProjectTemplate, error)

	ListTags(ctx context.Context) ([]models.Tag, error)
	SearchTags(ctx context.Context, name string) ([]models.Tag, error)
	GetTag(ctx context.Context, id string) (*models.Tag, error)
	CreateTag(ctx context.Context, req models.TagRequest) (*models.Tag, error)
	UpdateTag(ctx context.Context, id string, req models.TagRequest) (*models.Tag, error)
	DeleteTag(ctx context.Context, id string) error
}

// TemplateBackend is satisfied by *backend.Client.
type TemplateBackend interface {
	CompositionBackend
	CatalogBackend
}
