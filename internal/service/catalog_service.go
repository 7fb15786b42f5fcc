package service

import (
	"context"
	"strings"

	"github.com/Marga-Ghale/ora-template-studio/internal/backend"
	"github.com/Marga-Ghale/ora-template-studio/internal/models"
	"github.com/Marga-Ghale/ora-template-studio/internal/notification"
	"go.uber.org/zap"
)

// ============================================
// Catalog Service
// ============================================

// CatalogService backs the list pages: milestone templates, project
// templates and tags outside of any composition session.
type CatalogService interface {
	ListMilestoneTemplates(ctx context.Context, q models.PageQuery) Result[*models.Paginated[models.MilestoneTemplate]]
	ListActiveMilestoneTemplates(ctx context.Context) Result[[]models.MilestoneTemplate]
	SearchMilestoneTemplates(ctx context.Context, name string) Result[[]models.MilestoneTemplate]
	GetMilestoneTemplate(ctx context.Context, id string) Result[*models.MilestoneTemplate]
	UpdateMilestoneTemplate(ctx context.Context, id string, req models.UpdateMilestoneTemplateRequest) Result[*models.MilestoneTemplate]
	DeleteMilestoneTemplate(ctx context.Context, id string) Result[bool]
	ReactivateMilestoneTemplate(ctx context.Context, id string) Result[*models.MilestoneTemplate]
	ToggleMilestoneTemplateActive(ctx context.Context, id string) Result[*models.MilestoneTemplate]

	ListProjectTemplates(ctx context.Context, q models.PageQuery) Result[*models.Paginated[models.ProjectTemplate]]
	ListActiveProjectTemplates(ctx context.Context) Result[[]models.ProjectTemplate]
	GetProjectTemplate(ctx context.Context, id string) Result[*models.DetailedProjectTemplate]
	DeleteProjectTemplate(ctx context.Context, id string) Result[bool]
	ReactivateProjectTemplate(ctx context.Context, id string) Result[*models.ProjectTemplate]

	ListTags(ctx context.Context, search string) Result[[]models.Tag]
	GetTag(ctx context.Context, id string) Result[*models.Tag]
	CreateTag(ctx context.Context, req models.TagRequest) Result[*models.Tag]
	UpdateTag(ctx context.Context, id string, req models.TagRequest) Result[*models.Tag]
	DeleteTag(ctx context.Context, id string) Result[bool]
}

type catalogService struct {
	backend  CatalogBackend
	notifier notification.Notifier
	log      *zap.Logger
}

func NewCatalogService(backend CatalogBackend, notifier notification.Notifier, log *zap.Logger) CatalogService {
	if notifier == nil {
		notifier = notification.NewService(nil, log)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &catalogService{backend: backend, notifier: notifier, log: log.Named("catalog")}
}

// query wraps a read.
func query[T any](data T, err error) Result[T] {
	if err != nil {
		return Fail[T](err)
	}
	return Ok(data)
}

// mutation wraps a write and emits its toast to the calling user.
func mutation[T any](s *catalogService, ctx context.Context, success, failure string, data T, err error) Result[T] {
	userID := backend.UserID(ctx)
	if err != nil {
		s.log.Warn(failure, zap.String("user_id", userID), zap.Error(err))
		res := Fail[T](err)
		s.notifier.Toast(userID, notification.Failure(failure, res.UserMessage()))
		return res
	}
	s.notifier.Toast(userID, notification.Success(success, ""))
	return Ok(data)
}

func normalizePage(q models.PageQuery) models.PageQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > 100 {
		q.Limit = 20
	}
	q.Search = strings.TrimSpace(q.Search)
	return q
}

// ============================================
// Milestone templates
// ============================================

func (s *catalogService) ListMilestoneTemplates(ctx context.Context, q models.PageQuery) Result[*models.Paginated[models.MilestoneTemplate]] {
	return query(s.backend.ListMilestoneTemplatesPaginated(ctx, normalizePage(q)))
}

func (s *catalogService) ListActiveMilestoneTemplates(ctx context.Context) Result[[]models.MilestoneTemplate] {
	return query(s.backend.ListActiveMilestoneTemplates(ctx))
}

func (s *catalogService) SearchMilestoneTemplates(ctx context.Context, name string) Result[[]models.MilestoneTemplate] {
	name = strings.TrimSpace(name)
	if name == "" {
		return s.ListActiveMilestoneTemplates(ctx)
	}
	return query(s.backend.FindMilestoneTemplatesByName(ctx, name))
}

func (s *catalogService) GetMilestoneTemplate(ctx context.Context, id string) Result[*models.MilestoneTemplate] {
	return query(s.backend.GetMilestoneTemplate(ctx, id))
}

func (s *catalogService) UpdateMilestoneTemplate(ctx context.Context, id string, req models.UpdateMilestoneTemplateRequest) Result[*models.MilestoneTemplate] {
	m, err := s.backend.UpdateMilestoneTemplate(ctx, id, req)
	return mutation(s, ctx, "Milestone template updated", "Could not update milestone template", m, err)
}

func (s *catalogService) DeleteMilestoneTemplate(ctx context.Context, id string) Result[bool] {
	err := s.backend.DeleteMilestoneTemplate(ctx, id)
	return mutation(s, ctx, "Milestone template deleted", "Could not delete milestone template", err == nil, err)
}

func (s *catalogService) ReactivateMilestoneTemplate(ctx context.Context, id string) Result[*models.MilestoneTemplate] {
	m, err := s.backend.ReactivateMilestoneTemplate(ctx, id)
	return mutation(s, ctx, "Milestone template reactivated", "Could not reactivate milestone template", m, err)
}

func (s *catalogService) ToggleMilestoneTemplateActive(ctx context.Context, id string) Result[*models.MilestoneTemplate] {
	m, err := s.backend.ToggleMilestoneTemplateActive(ctx, id)
	title := "Milestone template deactivated"
	if err == nil && m.IsActive {
		title = "Milestone template activated"
	}
	return mutation(s, ctx, title, "Could not change milestone template status", m, err)
}

// ============================================
// Project templates
// ============================================

func (s *catalogService) ListProjectTemplates(ctx context.Context, q models.PageQuery) Result[*models.Paginated[models.ProjectTemplate]] {
	return query(s.backend.ListProjectTemplatesPaginated(ctx, normalizePage(q)))
}

func (s *catalogService) ListActiveProjectTemplates(ctx context.Context) Result[[]models.ProjectTemplate] {
	return query(s.backend.ListActiveProjectTemplates(ctx))
}

func (s *catalogService) GetProjectTemplate(ctx context.Context, id string) Result[*models.DetailedProjectTemplate] {
	return query(s.backend.GetDetailedProjectTemplate(ctx, id))
}

func (s *catalogService) DeleteProjectTemplate(ctx context.Context, id string) Result[bool] {
	err := s.backend.DeleteProjectTemplate(ctx, id)
	return mutation(s, ctx, "Project template deleted", "Could not delete project template", err == nil, err)
}

func (s *catalogService) ReactivateProjectTemplate(ctx context.Context, id string) Result[*models.ProjectTemplate] {
	p, err := s.backend.ReactivateProjectTemplate(ctx, id)
	return mutation(s, ctx, "Project template reactivated", "Could not reactivate project template", p, err)
}

// ============================================
// Tags
// ============================================

func (s *catalogService) ListTags(ctx context.Context, search string) Result[[]models.Tag] {
	search = strings.TrimSpace(search)
	if search != "" {
		return query(s.backend.SearchTags(ctx, search))
	}
	return query(s.backend.ListTags(ctx))
}

func (s *catalogService) GetTag(ctx context.Context, id string) Result[*models.Tag] {
	return query(s.backend.GetTag(ctx, id))
}

func (s *catalogService) CreateTag(ctx context.Context, req models.TagRequest) Result[*models.Tag] {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return Fail[*models.Tag](ErrInvalidInput)
	}
	t, err := s.backend.CreateTag(ctx, req)
	return mutation(s, ctx, "Tag created", "Could not create tag", t, err)
}

func (s *catalogService) UpdateTag(ctx context.Context, id string, req models.TagRequest) Result[*models.Tag] {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return Fail[*models.Tag](ErrInvalidInput)
	}
	t, err := s.backend.UpdateTag(ctx, id, req)
	return mutation(s, ctx, "Tag updated", "Could not update tag", t, err)
}

func (s *catalogService) DeleteTag(ctx context.Context, id string) Result[bool] {
	err := s.backend.DeleteTag(ctx, id)
	return mutation(s, ctx, "Tag deleted", "Could not delete tag", err == nil, err)
}
