package directory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const agentsBody = `{"agents":[{"id":"fc-1","first_name":"Ana","last_name":"Lima","email":"ana@example.com","availability_status":"AVAILABLE","login_status":true,"agent_status":{"id":"st-1","name":"Feedback"}}],"pagination":{"total_items":1}}`

func newTestClient(url, token string) *Client {
	return NewClient(Options{BaseURL: url, Token: token, PageSize: 25}, zerolog.Nop())
}

func TestFetchAgentsRawSendsBearerAndPageSize(t *testing.T) {
	var gotAuth, gotPageSize, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPageSize = r.URL.Query().Get("items_per_page")
		gotPath = r.URL.Path
		w.Write([]byte(agentsBody))
	}))
	defer srv.Close()

	body, err := newTestClient(srv.URL, "tok").FetchAgentsRaw(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "25", gotPageSize)
	assert.Equal(t, "/agents", gotPath)
	assert.JSONEq(t, agentsBody, string(body))
}

func TestListAgentsDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(agentsBody))
	}))
	defer srv.Close()

	agents, err := newTestClient(srv.URL, "tok").ListAgents(context.Background())
	require.NoError(t, err)
	require.Len(t, agents, 1)

	assert.Equal(t, "fc-1", agents[0].ID)
	assert.Equal(t, "Ana Lima", agents[0].FullName())
	assert.True(t, agents[0].LoginStatus)
	require.NotNil(t, agents[0].AgentStatus)
	assert.Equal(t, "st-1", agents[0].AgentStatus.ID)
}

func TestMissingTokenMakesNoRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "").FetchAgentsRaw(context.Background())
	assert.ErrorIs(t, err, ErrMissingToken)
	assert.False(t, called, "no request should be sent without a token")
}

func TestUpstreamErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "tok").ListAgents(context.Background())
	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusServiceUnavailable, upstream.StatusCode)
	assert.Contains(t, err.Error(), "503")
}

func TestGetAgentNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "tok").GetAgent(context.Background(), "fc-404")
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestGetAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/agents/fc-7", r.URL.Path)
		w.Write([]byte(`{"id":"fc-7","first_name":"Bia","availability_status":"UNAVAILABLE"}`))
	}))
	defer srv.Close()

	agent, err := newTestClient(srv.URL, "tok").GetAgent(context.Background(), "fc-7")
	require.NoError(t, err)
	assert.Equal(t, "fc-7", agent.ID)
	assert.EqualValues(t, "UNAVAILABLE", agent.AvailabilityStatus)
}

func TestInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "tok").ListAgents(context.Background())
	assert.Error(t, err)
}

func TestOversizedResponseIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(agentsBody))
	}))
	defer srv.Close()

	limited := NewClient(Options{BaseURL: srv.URL, Token: "tok", MaxBodyBytes: int64(len(agentsBody) - 1)}, zerolog.Nop())
	_, err := limited.ListAgents(context.Background())
	assert.ErrorIs(t, err, ErrResponseTooLarge)

	exact := NewClient(Options{BaseURL: srv.URL, Token: "tok", MaxBodyBytes: int64(len(agentsBody))}, zerolog.Nop())
	agents, err := exact.ListAgents(context.Background())
	require.NoError(t, err)
	assert.Len(t, agents, 1)
}
