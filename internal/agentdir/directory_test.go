package agentdir

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dennisdiepolder/monti/wfm/internal/directory"
	"github.com/dennisdiepolder/monti/wfm/internal/types"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAgents_Deterministic(t *testing.T) {
	a := NewGenerator(7, nil).GenerateAgents(50)
	b := NewGenerator(7, nil).GenerateAgents(50)
	require.Len(t, a, 50)
	assert.Equal(t, a, b)

	ids := make(map[string]bool)
	emails := make(map[string]bool)
	for _, agent := range a {
		assert.False(t, ids[agent.ID], "duplicate id %s", agent.ID)
		assert.False(t, emails[agent.Email], "duplicate email %s", agent.Email)
		ids[agent.ID] = true
		emails[agent.Email] = true

		assert.Contains(t, DefaultRoles, agent.RoleID)
		assert.False(t, agent.LoginStatus)
		assert.Equal(t, types.AvailabilityUnavailable, agent.AvailabilityStatus)
		assert.Regexp(t, `^[a-z]+\.[a-z]+\.\d+@example\.com$`, agent.Email)
	}
}

func newTestDirectory(t *testing.T, count int) (*Directory, *httptest.Server) {
	t.Helper()
	dir := NewDirectory(NewGenerator(1, nil).GenerateAgents(count), "secret", zerolog.Nop())
	router := mux.NewRouter()
	dir.SetupRoutes(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return dir, srv
}

func TestDirectory_RequiresToken(t *testing.T) {
	_, srv := newTestDirectory(t, 3)

	resp, err := http.Get(srv.URL + "/v2/agents")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v2/agents", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// The backend directory client reads the fake directory without translation
func TestDirectory_ServesDirectoryClient(t *testing.T) {
	dir, srv := newTestDirectory(t, 30)
	client := directory.NewClient(directory.Options{
		BaseURL:  srv.URL + "/v2",
		Token:    "secret",
		PageSize: 25,
	}, zerolog.Nop())

	agents, err := client.ListAgents(context.Background())
	require.NoError(t, err)
	assert.Len(t, agents, 25)

	want, ok := dir.Get(agents[3].ID)
	require.True(t, ok)
	got, err := client.GetAgent(context.Background(), want.ID)
	require.NoError(t, err)
	assert.Equal(t, want, *got)

	_, err = client.GetAgent(context.Background(), "missing")
	assert.ErrorIs(t, err, directory.ErrAgentNotFound)
}

func TestDirectory_PageSizeClamped(t *testing.T) {
	_, srv := newTestDirectory(t, 150)
	client := directory.NewClient(directory.Options{
		BaseURL:  srv.URL + "/v2",
		Token:    "secret",
		PageSize: 500,
	}, zerolog.Nop())

	agents, err := client.ListAgents(context.Background())
	require.NoError(t, err)
	assert.Len(t, agents, maxPageSize)
}

func TestDirectory_SnapshotIsCopy(t *testing.T) {
	dir := NewDirectory(NewGenerator(1, nil).GenerateAgents(2), "secret", zerolog.Nop())
	dir.update(0, func(a *types.Agent) {
		a.AgentStatus = &types.AgentStatus{ID: "st-break", Name: "Pausa"}
	})

	snap := dir.Snapshot()
	snap[0].AgentStatus.ID = "changed"

	again, _ := dir.Get(snap[0].ID)
	assert.Equal(t, "st-break", again.AgentStatus.ID)
}
