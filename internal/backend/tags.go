package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Marga-Ghale/ora-template-studio/internal/models"
)

const tagsPath = "/v1/tags"

func tagPath(id string) string {
	return tagsPath + "/" + url.PathEscape(id)
}

func (c *Client) ListTags(ctx context.Context) ([]models.Tag, error) {
	var out []models.Tag
	err := c.do(ctx, "tags.list", http.MethodGet, tagsPath, nil, nil, &out)
	return out, err
}

// SearchTags matches tags by name.
func (c *Client) SearchTags(ctx context.Context, name string) ([]models.Tag, error) {
	var out []models.Tag
	err := c.do(ctx, "tags.search", http.MethodGet, tagsPath+"/search", url.Values{"name": {name}}, nil, &out)
	return out, err
}

func (c *Client) GetTag(ctx context.Context, id string) (*models.Tag, error) {
	var out models.Tag
	if err := c.do(ctx, "tags.get", http.MethodGet, tagPath(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateTag(ctx context.Context, req models.TagRequest) (*models.Tag, error) {
	var out models.Tag
	if err := c.do(ctx, "tags.create", http.MethodPost, tagsPath, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateTag(ctx context.Context, id string, req models.TagRequest) (*models.Tag, error) {
	var out models.Tag
	if err := c.do(ctx, "tags.update", http.MethodPut, tagPath(id), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteTag(ctx context.Context, id string) error {
	return c.do(ctx, "tags.delete", http.MethodDelete, tagPath(id), nil, nil, nil)
}
