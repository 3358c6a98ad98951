package remote_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentoven/voicebridge/internal/remote"
	"github.com/agentoven/voicebridge/pkg/models"
)

func newClient(t *testing.T, h http.HandlerFunc) *remote.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return remote.New(remote.Config{
		BaseURL:        srv.URL,
		APIKey:         "sk-test",
		InitialBackoff: time.Millisecond,
		RequestTimeout: time.Second,
		CreateTimeout:  time.Second,
	})
}

func readJSON(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	data, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func testAgent() *models.Agent {
	return &models.Agent{
		ID:          "local-1",
		Name:        "Support",
		Prompt:      "<h1>Hello</h1>",
		Script:      "Hello",
		Voice:       "maya",
		Language:    "ENG",
		Model:       "enhanced",
		MaxDuration: 12,
		Keywords:    []string{"refund"},
	}
}

func TestCreateAgentSendsSparsePayload(t *testing.T) {
	var body map[string]any
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/agents", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body = readJSON(t, r)
		w.Write([]byte(`{"status":"success","agent":{"agent_id":"id-123"}}`))
	})

	id, err := c.CreateAgent(context.Background(), testAgent(), models.NewFieldSet("name", "prompt"))
	require.NoError(t, err)
	assert.Equal(t, "id-123", id)
	assert.Equal(t, map[string]any{"name": "Support", "prompt": "Hello"}, body)
}

func TestCreateAgentTopLevelID(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"agent_id":"flat-1"}`))
	})
	id, err := c.CreateAgent(context.Background(), testAgent(), models.NewFieldSet("name"))
	require.NoError(t, err)
	assert.Equal(t, "flat-1", id)
}

func TestCreateAgentMissingID(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success"}`))
	})
	_, err := c.CreateAgent(context.Background(), testAgent(), models.NewFieldSet("name"))
	require.Error(t, err)
	assert.True(t, remote.IsKind(err, remote.KindRejected))
}

func TestCreateIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := c.CreateAgent(context.Background(), testAgent(), models.NewFieldSet("name"))
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	f, ok := remote.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, remote.KindRejected, f.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, f.StatusCode)
}

func TestUpdateRetriesGatewayErrors(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/agents/remote-1", r.URL.Path)
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"agent_id":"remote-1","voice":"maya"}`))
	})

	out, err := c.UpdateAgent(context.Background(), "remote-1", testAgent(), models.NewFieldSet("voice"))
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "maya", out["voice"])
}

func TestUpdateGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusGatewayTimeout)
	})
	_, err := c.UpdateAgent(context.Background(), "remote-1", testAgent(), models.NewFieldSet("voice"))
	require.Error(t, err)
	assert.Equal(t, int32(5), calls.Load())
	assert.True(t, remote.IsKind(err, remote.KindRejected))
}

func TestBudget(t *testing.T) {
	// Five 30s attempts plus waits of at most 1.5x the 1s, 1.5s, 2.25s and 3.375s intervals.
	c := remote.New(remote.Config{})
	assert.Equal(t, 150*time.Second+12187500*time.Microsecond, c.Budget())

	slowCreate := remote.New(remote.Config{CreateTimeout: 10 * time.Minute})
	assert.Equal(t, 10*time.Minute, slowCreate.Budget())
}

func TestRetriesFinishWithinBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	c := remote.New(remote.Config{
		BaseURL:        srv.URL,
		RequestTimeout: 100 * time.Millisecond,
		CreateTimeout:  100 * time.Millisecond,
		MaxAttempts:    4,
		InitialBackoff: 20 * time.Millisecond,
	})

	start := time.Now()
	_, err := c.UpdateAgent(context.Background(), "remote-1", testAgent(), models.NewFieldSet("voice"))
	require.Error(t, err)
	assert.Less(t, time.Since(start), c.Budget())
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"invalid voice"}`))
	})
	err := c.DeleteAgent(context.Background(), "remote-1")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	f, _ := remote.AsFailure(err)
	assert.Equal(t, http.StatusBadRequest, f.StatusCode)
	assert.Contains(t, f.Body, "invalid voice")
	assert.Contains(t, err.Error(), "delete-agent")
}

func TestDeleteAgentPath(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/agents/remote-1/delete", r.URL.Path)
	})
	require.NoError(t, c.DeleteAgent(context.Background(), "remote-1"))
}

func TestTimeoutFailure(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	c := remote.New(remote.Config{BaseURL: srv.URL, RequestTimeout: 20 * time.Millisecond, InitialBackoff: time.Millisecond})
	err := c.DeleteAgent(context.Background(), "slow")
	require.Error(t, err)
	assert.True(t, remote.IsKind(err, remote.KindTimeout), "got %v", err)
}

func TestUnreachableFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := remote.New(remote.Config{BaseURL: url})
	_, err := c.GetPathway(context.Background(), "pw-1")
	require.Error(t, err)
	assert.True(t, remote.IsKind(err, remote.KindUnreachable), "got %v", err)
}

func TestPathwayOperations(t *testing.T) {
	p := &models.Pathway{
		Name:        "Flow",
		Description: "desc",
		Nodes:       map[string]models.Node{"1": {Name: "Start", Text: "Hi", Type: "Default"}},
	}

	var seen []string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		switch r.Method + " " + r.URL.Path {
		case "POST /convo_pathway/create":
			body := readJSON(t, r)
			assert.Equal(t, "Flow", body["name"])
			assert.NotContains(t, body, "description")
			w.Write([]byte(`{"status":"success","data":{"pathway_id":"pw-9"}}`))
		case "POST /convo_pathway/pw-9":
			body := readJSON(t, r)
			assert.Equal(t, map[string]any{"description": "desc"}, body)
			w.Write([]byte(`{"name":"Flow","description":"desc"}`))
		case "GET /convo_pathway/pw-9":
			w.Write([]byte(`{"name":"Flow","nodes":[]}`))
		case "DELETE /convo_pathway/pw-9":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ctx := context.Background()
	id, err := c.CreatePathway(ctx, p, models.NewFieldSet("name", "nodes"))
	require.NoError(t, err)
	assert.Equal(t, "pw-9", id)

	out, err := c.UpdatePathway(ctx, id, p, models.NewFieldSet("description"))
	require.NoError(t, err)
	assert.Equal(t, "desc", out["description"])

	got, err := c.GetPathway(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Flow", got["name"])

	require.NoError(t, c.DeletePathway(ctx, id))
	assert.Equal(t, []string{
		"POST /convo_pathway/create",
		"POST /convo_pathway/pw-9",
		"GET /convo_pathway/pw-9",
		"DELETE /convo_pathway/pw-9",
	}, seen)
}

func TestCreatePathwayIDFallbacks(t *testing.T) {
	for name, body := range map[string]string{
		"top-level": `{"pathway_id":"a"}`,
		"data":      `{"data":{"pathway_id":"a"}}`,
		"id":        `{"id":"a"}`,
	} {
		t.Run(name, func(t *testing.T) {
			c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})
			id, err := c.CreatePathway(context.Background(), &models.Pathway{Name: "x"}, models.NewFieldSet("name"))
			require.NoError(t, err)
			assert.Equal(t, "a", id)
		})
	}
}
