package remote

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/agentoven/voicebridge/pkg/models"
)

// agentPayload is the sparse remote body for an agent write.
func agentPayload(a *models.Agent, fields models.FieldSet) map[string]any {
	return fields.Filter(a.RemoteFields())
}

// CreateAgent creates the remote agent and returns its remote id. Create is
// not idempotent on the platform side, so it is attempted exactly once.
func (c *Client) CreateAgent(ctx context.Context, a *models.Agent, fields models.FieldSet) (string, error) {
	const op = "create-agent"
	data, err := c.do(ctx, call{
		op:      op,
		method:  http.MethodPost,
		path:    "/agents",
		body:    agentPayload(a, fields),
		timeout: c.createTimeout,
	})
	if err != nil {
		return "", err
	}

	var resp struct {
		AgentID string `json:"agent_id"`
		Agent   struct {
			AgentID string `json:"agent_id"`
		} `json:"agent"`
	}
	if err := unmarshal(data, &resp); err != nil {
		return "", malformed(op, data, err)
	}
	switch {
	case resp.Agent.AgentID != "":
		return resp.Agent.AgentID, nil
	case resp.AgentID != "":
		return resp.AgentID, nil
	}
	return "", malformed(op, data, errors.New("response has no agent_id"))
}

// UpdateAgent pushes the supplied fields of a to the bound remote agent and
// returns the remote representation.
func (c *Client) UpdateAgent(ctx context.Context, remoteID string, a *models.Agent, fields models.FieldSet) (map[string]any, error) {
	const op = "update-agent"
	data, err := c.do(ctx, call{
		op:      op,
		method:  http.MethodPost,
		path:    "/agents/" + url.PathEscape(remoteID),
		body:    agentPayload(a, fields),
		timeout: c.requestTimeout,
		retry:   true,
	})
	if err != nil {
		return nil, err
	}
	return decodeObject(op, data)
}

// DeleteAgent deletes the remote agent.
func (c *Client) DeleteAgent(ctx context.Context, remoteID string) error {
	_, err := c.do(ctx, call{
		op:      "delete-agent",
		method:  http.MethodPost,
		path:    "/agents/" + url.PathEscape(remoteID) + "/delete",
		timeout: c.requestTimeout,
		retry:   true,
	})
	return err
}
