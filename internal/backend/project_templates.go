package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Marga-Ghale/ora-template-studio/internal/models"
)

const projectTemplatesPath = "/v1/project-templates"

func projectTemplatePath(id string) string {
	return projectTemplatesPath + "/" + url.PathEscape(id)
}

func (c *Client) ListProjectTemplatesPaginated(ctx context.Context, q models.PageQuery) (*models.Paginated[models.ProjectTemplate], error) {
	var out models.Paginated[models.ProjectTemplate]
	if err := c.do(ctx, "project_templates.paginated", http.MethodGet, projectTemplatesPath+"/paginated", pageValues(q), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListActiveProjectTemplates(ctx context.Context) ([]models.ProjectTemplate, error) {
	var out []models.ProjectTemplate
	err := c.do(ctx, "project_templates.active", http.MethodGet, projectTemplatesPath+"/active", nil, nil, &out)
	return out, err
}

// GetDetailedProjectTemplate returns the template with every milestone
// template and tag inlined.
func (c *Client) GetDetailedProjectTemplate(ctx context.Context, id string) (*models.DetailedProjectTemplate, error) {
	var out models.DetailedProjectTemplate
	if err := c.do(ctx, "project_templates.detailed", http.MethodGet, projectTemplatePath(id)+"/detailed", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateProjectTemplate(ctx context.Context, req models.ProjectTemplateRequest) (*models.ProjectTemplate, error) {
	var out models.ProjectTemplate
	if err := c.do(ctx, "project_templates.create", http.MethodPost, projectTemplatesPath, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProjectTemplate(ctx context.Context, id string, req models.ProjectTemplateRequest) (*models.ProjectTemplate, error) {
	var out models.ProjectTemplate
	if err := c.do(ctx, "project_templates.update", http.MethodPut, projectTemplatePath(id), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteProjectTemplate(ctx context.Context, id string) error {
	return c.do(ctx, "project_templates.delete", http.MethodPatch, projectTemplatePath(id)+"/delete", nil, nil, nil)
}

func (c *Client) ReactivateProjectTemplate(ctx context.Context, id string) (*models.ProjectTemplate, error) {
	var out models.ProjectTemplate
	if err := c.do(ctx, "project_templates.reactivate", http.MethodPatch, projectTemplatePath(id)+"/reactivate", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
