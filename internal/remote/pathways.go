package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/agentoven/voicebridge/pkg/models"
)

// CreatePathway creates the remote pathway and returns its remote id.
func (c *Client) CreatePathway(ctx context.Context, p *models.Pathway, fields models.FieldSet) (string, error) {
	const op = "create-pathway"
	data, err := c.do(ctx, call{
		op:      op,
		method:  http.MethodPost,
		path:    "/convo_pathway/create",
		body:    fields.Filter(p.RemoteFields()),
		timeout: c.createTimeout,
	})
	if err != nil {
		return "", err
	}

	var resp struct {
		PathwayID string `json:"pathway_id"`
		ID        string `json:"id"`
		Data      struct {
			PathwayID string `json:"pathway_id"`
		} `json:"data"`
	}
	if err := unmarshal(data, &resp); err != nil {
		return "", malformed(op, data, err)
	}
	for _, id := range []string{resp.PathwayID, resp.Data.PathwayID, resp.ID} {
		if id != "" {
			return id, nil
		}
	}
	return "", malformed(op, data, errors.New("response has no pathway_id"))
}

// UpdatePathway pushes the supplied fields of p to the bound remote pathway.
func (c *Client) UpdatePathway(ctx context.Context, remoteID string, p *models.Pathway, fields models.FieldSet) (map[string]any, error) {
	const op = "update-pathway"
	data, err := c.do(ctx, call{
		op:      op,
		method:  http.MethodPost,
		path:    "/convo_pathway/" + url.PathEscape(remoteID),
		body:    fields.Filter(p.RemoteFields()),
		timeout: c.requestTimeout,
		retry:   true,
	})
	if err != nil {
		return nil, err
	}
	return decodeObject(op, data)
}

// DeletePathway deletes the remote pathway.
func (c *Client) DeletePathway(ctx context.Context, remoteID string) error {
	_, err := c.do(ctx, call{
		op:      "delete-pathway",
		method:  http.MethodDelete,
		path:    "/convo_pathway/" + url.PathEscape(remoteID),
		timeout: c.requestTimeout,
		retry:   true,
	})
	return err
}

// GetPathway fetches the remote representation of a pathway.
func (c *Client) GetPathway(ctx context.Context, remoteID string) (map[string]any, error) {
	const op = "get-pathway"
	data, err := c.do(ctx, call{
		op:      op,
		method:  http.MethodGet,
		path:    "/convo_pathway/" + url.PathEscape(remoteID),
		timeout: c.requestTimeout,
		retry:   true,
	})
	if err != nil {
		return nil, err
	}
	return decodeObject(op, data)
}

// unmarshal decodes a JSON object, treating an empty body as {}.
func unmarshal(data []byte, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
