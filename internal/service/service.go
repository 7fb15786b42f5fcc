package service

import (
	"errors"

	"github.com/Marga-Ghale/ora-template-studio/internal/clock"
	"github.com/Marga-Ghale/ora-template-studio/internal/draft"
	"github.com/Marga-Ghale/ora-template-studio/internal/notification"
	"github.com/Marga-Ghale/ora-template-studio/internal/repository"
	"go.uber.org/zap"
)

var (
	ErrNotFound         = errors.New("resource not found")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidInput     = errors.New("invalid input")
	ErrSessionClosed    = errors.New("composition session is closed")
	ErrMissingSelection = errors.New("select a parent before adding to it")
	ErrNotPersisted     = errors.New("entity has not been saved yet")
	ErrNoDraft          = errors.New("no draft to recover")
)

// ============================================
// Services Container
// ============================================

type Services struct {
	Composition CompositionService
	Catalog     CatalogService
	Activity    ActivityService
}

// ServiceDeps contains all dependencies needed to create services
type ServiceDeps struct {
	Backend     TemplateBackend
	Drafts      *draft.Manager
	Repos       *repository.Repositories
	Notifier    notification.Notifier
	Clock       clock.Clock
	Composition CompositionOptions
	Logger      *zap.Logger
}

func NewServices(deps *ServiceDeps) *Services {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	c := deps.Clock
	if c == nil {
		c = clock.Real()
	}

	var activityRepo repository.ActivityRepository
	if deps.Repos != nil {
		activityRepo = deps.Repos.ActivityRepo
	}
	activity := NewActivityService(activityRepo, log)

	return &Services{
		Composition: NewCompositionService(deps.Backend, deps.Drafts, deps.Notifier, activity, c, deps.Composition, log),
		Catalog:     NewCatalogService(deps.Backend, deps.Notifier, log),
		Activity:    activity,
	}
}
