package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/wfm/internal/auth"
	"github.com/dennisdiepolder/monti/wfm/internal/cache"
	"github.com/dennisdiepolder/monti/wfm/internal/config"
	"github.com/dennisdiepolder/monti/wfm/internal/directory"
	"github.com/dennisdiepolder/monti/wfm/internal/monitor"
	"github.com/dennisdiepolder/monti/wfm/internal/poller"
	"github.com/dennisdiepolder/monti/wfm/internal/storage"
	"github.com/dennisdiepolder/monti/wfm/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDirectory serves the agent directory REST API from memory
type fakeDirectory struct {
	mu     sync.Mutex
	agents []types.Agent
	status int
}

func (f *fakeDirectory) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.status != 0 {
		w.WriteHeader(f.status)
		w.Write([]byte(`{"message":"upstream down"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if id := strings.TrimPrefix(r.URL.Path, "/agents/"); id != r.URL.Path {
		for _, a := range f.agents {
			if a.ID == id {
				json.NewEncoder(w).Encode(a)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(types.AgentList{Agents: f.agents})
}

func (f *fakeDirectory) fail(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
}

func (f *fakeDirectory) setStatus(id string, status types.Availability) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.agents {
		if f.agents[i].ID == id {
			f.agents[i].AvailabilityStatus = status
		}
	}
}

// storeCalls counts schedule store calls to prove validation happens first
type storeCalls struct {
	*storage.MemoryStore
	mu    sync.Mutex
	calls int
}

func (s *storeCalls) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *storeCalls) hit() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

func (s *storeCalls) CheckScheduleConflict(ctx context.Context, agentID string, start, end time.Time, excludeID string) (bool, error) {
	s.hit()
	return s.MemoryStore.CheckScheduleConflict(ctx, agentID, start, end, excludeID)
}

func (s *storeCalls) CreateSchedule(ctx context.Context, sc *types.Schedule) error {
	s.hit()
	return s.MemoryStore.CreateSchedule(ctx, sc)
}

type noBoard struct{}

func (noBoard) Board() *types.Board { return nil }

type testServer struct {
	t         *testing.T
	dir       *fakeDirectory
	store     *storeCalls
	statuses  *cache.MemoryStatusStore
	listCache *cache.AgentListCache
	monitor   *monitor.Monitor
	router    http.Handler
}

func newTestServer(t *testing.T, token string) *testServer {
	t.Helper()

	dir := &fakeDirectory{agents: []types.Agent{
		{ID: "fc-1", FirstName: "Ana", LastName: "Souza", Email: "ana@example.com", RoleID: "role-support",
			AvailabilityStatus: types.AvailabilityAvailable, LoginStatus: true},
		{ID: "fc-2", FirstName: "Bruno", LastName: "Lima", Email: "bruno@example.com", RoleID: "role-support",
			AvailabilityStatus: types.AvailabilityUnavailable,
			AgentStatus:        &types.AgentStatus{ID: "st-lunch", Name: "Almoço"}},
		{ID: "fc-9", FirstName: "Outsider", Email: "out@example.com", RoleID: "role-sales",
			AvailabilityStatus: types.AvailabilityAvailable},
	}}
	upstream := httptest.NewServer(dir)
	t.Cleanup(upstream.Close)

	client := directory.NewClient(directory.Options{BaseURL: upstream.URL, Token: token, Timeout: 2 * time.Second}, zerolog.Nop())
	allow := config.NewAllowList([]string{"role-support"}, []string{"fc-1", "fc-2"}, types.ReasonTable{"st-lunch": types.ReasonLunch})

	store := &storeCalls{MemoryStore: storage.NewMemoryStore()}
	// Internal agents "A" and "B" own the shifts posted by the schedule tests
	for _, a := range []types.InternalAgent{
		{ID: "A", Name: "Agent A", Email: "agent-a@example.com", Role: types.RoleAgent, IsActive: true},
		{ID: "B", Name: "Agent B", Email: "agent-b@example.com", Role: types.RoleAgent, IsActive: true},
	} {
		require.NoError(t, store.CreateAgent(context.Background(), &a))
	}
	statuses := cache.NewMemoryStatusStore()
	listCache := cache.NewAgentListCache(time.Minute)
	mon := monitor.New(client, store, statuses, nil, allow, zerolog.Nop())
	poll := poller.New(client, listCache, allow, time.Minute, zerolog.Nop())

	r := chi.NewRouter()
	// Tests pick the caller's role with a header; admin by default
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			role := req.Header.Get("X-Test-Role")
			if role == "" {
				role = auth.RoleAdmin
			}
			claims := &auth.Claims{Email: role + "@example.com", Role: role}
			next.ServeHTTP(w, req.WithContext(auth.WithClaims(req.Context(), claims)))
		})
	})
	Routes(r, Deps{
		Directory: client,
		Store:     store,
		Monitor:   mon,
		Poller:    poll,
		Boards:    noBoard{},
		Statuses:  statuses,
		ListCache: listCache,
		AllowList: allow,
		Logger:    zerolog.Nop(),
	})

	return &testServer{t: t, dir: dir, store: store, statuses: statuses, listCache: listCache, monitor: mon, router: r}
}

func (s *testServer) do(method, path string, body interface{}, role ...string) *httptest.ResponseRecorder {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if len(role) > 0 {
		req.Header.Set("X-Test-Role", role[0])
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func dataOf[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	return decode[struct {
		Data T `json:"data"`
	}](t, rec).Data
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["error"]
}

func validSchedule() map[string]interface{} {
	return map[string]interface{}{
		"agent_id":    "A",
		"start_time":  "2024-01-15T08:00:00Z",
		"end_time":    "2024-01-15T16:00:00Z",
		"shift_type":  "manha",
		"day_of_week": 1,
	}
}

func TestCreateSchedule(t *testing.T) {
	s := newTestServer(t, "token")

	rec := s.do(http.MethodPost, "/api/schedules", validSchedule())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	sc := dataOf[types.Schedule](t, rec)
	assert.NotEmpty(t, sc.ID)
	assert.True(t, sc.IsActive)
	assert.Equal(t, 1, sc.DayOfWeek)
	assert.Equal(t, types.ShiftMorning, sc.ShiftType)
}

func TestCreateScheduleValidatesBeforeStore(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]interface{})
		want   string
	}{
		{"day_of_week too large", func(b map[string]interface{}) { b["day_of_week"] = 7 }, "day_of_week"},
		{"day_of_week negative", func(b map[string]interface{}) { b["day_of_week"] = -1 }, "day_of_week"},
		{"missing agent", func(b map[string]interface{}) { delete(b, "agent_id") }, "agent_id"},
		{"missing start", func(b map[string]interface{}) { delete(b, "start_time") }, "start_time"},
		{"missing shift type", func(b map[string]interface{}) { delete(b, "shift_type") }, "shift_type"},
		{"unknown shift type", func(b map[string]interface{}) { b["shift_type"] = "madrugada" }, "shift_type"},
		{"end before start", func(b map[string]interface{}) { b["end_time"] = "2024-01-15T07:00:00Z" }, "end_time"},
		{"bad timestamp", func(b map[string]interface{}) { b["start_time"] = "yesterday" }, "start_time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, "token")
			body := validSchedule()
			tt.mutate(body)

			rec := s.do(http.MethodPost, "/api/schedules", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, errorOf(t, rec), tt.want)
			assert.Zero(t, s.store.count(), "store must not be called")
		})
	}
}

func TestCreateScheduleUnknownAgent(t *testing.T) {
	s := newTestServer(t, "token")

	body := validSchedule()
	body["agent_id"] = "ghost"
	rec := s.do(http.MethodPost, "/api/schedules", body)
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

	list := dataOf[[]types.Schedule](t, s.do(http.MethodGet, "/api/schedules", nil))
	assert.Empty(t, list)

	sc := dataOf[types.Schedule](t, s.do(http.MethodPost, "/api/schedules", validSchedule()))
	moved := validSchedule()
	moved["agent_id"] = "ghost"
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPut, "/api/schedules/"+sc.ID, moved).Code)
}

func TestCreateScheduleConflict(t *testing.T) {
	s := newTestServer(t, "token")
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/schedules", validSchedule()).Code)

	overlap := validSchedule()
	overlap["start_time"] = "2024-01-15T15:00:00Z"
	overlap["end_time"] = "2024-01-15T20:00:00Z"
	overlap["shift_type"] = "tarde"
	rec := s.do(http.MethodPost, "/api/schedules", overlap)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Back-to-back shifts do not overlap
	next := validSchedule()
	next["start_time"] = "2024-01-15T16:00:00Z"
	next["end_time"] = "2024-01-15T22:00:00Z"
	next["shift_type"] = "noite"
	assert.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/schedules", next).Code)
}

func TestUpdateScheduleExcludesItself(t *testing.T) {
	s := newTestServer(t, "token")
	sc := dataOf[types.Schedule](t, s.do(http.MethodPost, "/api/schedules", validSchedule()))

	body := validSchedule()
	body["end_time"] = "2024-01-15T17:00:00Z"
	rec := s.do(http.MethodPut, "/api/schedules/"+sc.ID, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	updated := dataOf[types.Schedule](t, rec)
	assert.Equal(t, 9.0, updated.Hours())
	assert.True(t, updated.IsActive)

	// The body form of PUT needs an id
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, "/api/schedules", validSchedule()).Code)
}

func TestDeleteScheduleWithPendingSwap(t *testing.T) {
	s := newTestServer(t, "token")

	mine := dataOf[types.Schedule](t, s.do(http.MethodPost, "/api/schedules", validSchedule()))
	theirs := validSchedule()
	theirs["agent_id"] = "B"
	other := dataOf[types.Schedule](t, s.do(http.MethodPost, "/api/schedules", theirs))

	rec := s.do(http.MethodPost, "/api/swaps", map[string]string{
		"requester_id":         "A",
		"target_agent_id":      "B",
		"original_schedule_id": mine.ID,
		"target_schedule_id":   other.ID,
	}, auth.RoleAgent)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	for _, id := range []string{mine.ID, other.ID} {
		rec = s.do(http.MethodDelete, "/api/schedules/"+id, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)

		got := dataOf[types.Schedule](t, s.do(http.MethodGet, "/api/schedules/"+id, nil))
		assert.True(t, got.IsActive)
	}
}

func TestDeleteScheduleDeactivates(t *testing.T) {
	s := newTestServer(t, "token")
	sc := dataOf[types.Schedule](t, s.do(http.MethodPost, "/api/schedules", validSchedule()))

	rec := s.do(http.MethodDelete, "/api/schedules?id="+sc.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := dataOf[types.Schedule](t, s.do(http.MethodGet, "/api/schedules/"+sc.ID, nil))
	assert.False(t, got.IsActive)

	// Inactive shifts are hidden by default
	list := dataOf[[]types.Schedule](t, s.do(http.MethodGet, "/api/schedules?agent_id=A", nil))
	assert.Empty(t, list)
	list = dataOf[[]types.Schedule](t, s.do(http.MethodGet, "/api/schedules?agent_id=A&active=false", nil))
	assert.Len(t, list, 1)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, "/api/schedules/missing", nil).Code)
}

func TestScheduleWritesNeedStaff(t *testing.T) {
	s := newTestServer(t, "token")
	rec := s.do(http.MethodPost, "/api/schedules", validSchedule(), auth.RoleAgent)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestScheduleHoursAndWeekly(t *testing.T) {
	s := newTestServer(t, "token")
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/schedules", validSchedule()).Code)

	tue := validSchedule()
	tue["start_time"] = "2024-01-16T12:00:00Z"
	tue["end_time"] = "2024-01-16T18:00:00Z"
	tue["day_of_week"] = 2
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/schedules", tue).Code)

	rec := s.do(http.MethodGet, "/api/schedules/hours?agent_id=A&from=2024-01-15&to=2024-01-16T15:00:00Z", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 11.0, dataOf[types.WorkedHours](t, rec).Hours)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/schedules/hours?agent_id=A", nil).Code)

	rec = s.do(http.MethodGet, "/api/schedules/weekly?week_start=2024-01-14", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	week := dataOf[weeklyView](t, rec)
	require.Len(t, week.Days, 7)
	assert.Equal(t, "2024-01-15", week.Days[1].Date)
	assert.Len(t, week.Days[1].Schedules, 1)
	assert.Len(t, week.Days[2].Schedules, 1)
	assert.Equal(t, 14.0, week.HoursByAgent["A"])
}

func TestSwapLifecycle(t *testing.T) {
	s := newTestServer(t, "token")
	mine := dataOf[types.Schedule](t, s.do(http.MethodPost, "/api/schedules", validSchedule()))
	theirs := validSchedule()
	theirs["agent_id"] = "B"
	theirs["start_time"] = "2024-01-16T08:00:00Z"
	theirs["end_time"] = "2024-01-16T16:00:00Z"
	theirs["day_of_week"] = 2
	other := dataOf[types.Schedule](t, s.do(http.MethodPost, "/api/schedules", theirs))

	req := map[string]string{
		"requester_id":         "A",
		"target_agent_id":      "B",
		"original_schedule_id": other.ID,
		"target_schedule_id":   mine.ID,
	}
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/swaps", req).Code, "schedules belong to the other agent")

	req["original_schedule_id"], req["target_schedule_id"] = mine.ID, other.ID
	sw := dataOf[types.ShiftSwap](t, s.do(http.MethodPost, "/api/swaps", req))
	assert.Equal(t, types.SwapPending, sw.Status)

	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, "/api/swaps", req).Code)

	rec := s.do(http.MethodPatch, "/api/swaps/"+sw.ID, map[string]string{"status": "approved"}, auth.RoleAgent)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPatch, "/api/swaps/"+sw.ID, map[string]string{"status": "approved"}, auth.RoleSupervisor)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resolved := dataOf[types.ShiftSwap](t, rec)
	assert.Equal(t, types.SwapApproved, resolved.Status)
	assert.Equal(t, "supervisor@example.com", resolved.ReviewedBy)

	got := dataOf[types.Schedule](t, s.do(http.MethodGet, "/api/schedules/"+mine.ID, nil))
	assert.Equal(t, "B", got.AgentID)

	rec = s.do(http.MethodPatch, "/api/swaps/"+sw.ID, map[string]string{"status": "cancelled"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	list := dataOf[[]types.ShiftSwap](t, s.do(http.MethodGet, "/api/swaps?status=approved&agent_id=A", nil))
	assert.Len(t, list, 1)
}

func TestAgentsCRUD(t *testing.T) {
	s := newTestServer(t, "token")

	rec := s.do(http.MethodPost, "/api/agents", map[string]string{"name": "Ana", "email": "ana@example.com", "freshchat_id": "fc-1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ana := dataOf[types.InternalAgent](t, rec)
	assert.Equal(t, types.RoleAgent, ana.Role)
	assert.True(t, ana.IsActive)

	rec = s.do(http.MethodPost, "/api/agents", map[string]string{"name": "Other", "email": "ANA@example.com"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/api/agents", map[string]string{"name": "No mail"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/agents", map[string]string{"name": "X", "email": "x@example.com", "role": "boss"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPatch, "/api/agents/"+ana.ID, map[string]string{"team": "N2", "role": "supervisor"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := dataOf[types.InternalAgent](t, rec)
	assert.Equal(t, "N2", updated.Team)
	assert.Equal(t, types.RoleSupervisor, updated.Role)

	list := dataOf[[]types.InternalAgent](t, s.do(http.MethodGet, "/api/agents?role=supervisor", nil))
	assert.Len(t, list, 1)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/agents/missing", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPatch, "/api/agents/missing", map[string]string{"team": "x"}).Code)

	// An agent with active shifts cannot be removed
	body := validSchedule()
	body["agent_id"] = ana.ID
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/schedules", body).Code)
	assert.Equal(t, http.StatusConflict, s.do(http.MethodDelete, "/api/agents/"+ana.ID, nil).Code)

	rec = s.do(http.MethodPost, "/api/agents", map[string]string{"name": "Bruno", "email": "bruno@example.com"})
	bruno := dataOf[types.InternalAgent](t, rec)
	assert.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/api/agents/"+bruno.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/agents/"+bruno.ID, nil).Code)
}

func TestProxy(t *testing.T) {
	s := newTestServer(t, "token")

	rec := s.do(http.MethodGet, "/api/proxy", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[types.AgentList](t, rec)
	assert.Len(t, list.Agents, 3, "the proxy does not filter")

	s.dir.fail(http.StatusServiceUnavailable)
	rec = s.do(http.MethodGet, "/api/proxy", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, errorOf(t, rec), "503")
}

func TestProxyWithoutToken(t *testing.T) {
	s := newTestServer(t, "")

	rec := s.do(http.MethodGet, "/api/proxy", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, errorOf(t, rec))
}

func TestMonitorSync(t *testing.T) {
	s := newTestServer(t, "token")
	ctx := context.Background()
	require.NoError(t, s.store.CreateAgent(ctx, &types.InternalAgent{Name: "Ana", Email: "ana@example.com", FreshchatID: "fc-1", IsActive: true}))

	rec := s.do(http.MethodGet, "/api/freshchat-monitor", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[monitor.SyncResult](t, rec)
	assert.Equal(t, 2, first.TotalAgentsMonitored)
	assert.Equal(t, 2, first.TotalChanges)
	assert.Equal(t, 1, first.LogsSaved)
	for _, c := range first.Changes {
		assert.Equal(t, types.AvailabilityUnknown, c.PreviousStatus)
	}

	second := decode[monitor.SyncResult](t, s.do(http.MethodGet, "/api/freshchat-monitor", nil))
	assert.Equal(t, 0, second.TotalChanges)
	assert.Equal(t, 0, second.LogsSaved)

	s.dir.setStatus("fc-1", types.AvailabilityUnavailable)
	third := decode[monitor.SyncResult](t, s.do(http.MethodGet, "/api/freshchat-monitor", nil))
	assert.Equal(t, 1, third.TotalChanges)
	assert.Equal(t, 1, third.LogsSaved)

	logs := dataOf[[]types.StatusLog](t, s.do(http.MethodGet, "/api/status-logs", nil))
	assert.Len(t, logs, 2)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/freshchat-monitor", nil, auth.RoleAgent).Code)
}

func TestMonitorCheck(t *testing.T) {
	s := newTestServer(t, "token")
	require.NoError(t, s.store.CreateAgent(context.Background(), &types.InternalAgent{Name: "Ana", Email: "ana@example.com", FreshchatID: "fc-1", IsActive: true}))

	rec := s.do(http.MethodPost, "/api/freshchat-monitor", map[string]interface{}{"agent_id": "fc-1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, decode[monitor.CheckResult](t, rec).Changed)

	rec = s.do(http.MethodPost, "/api/freshchat-monitor", map[string]interface{}{"agent_id": "fc-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no status change", decode[monitor.CheckResult](t, rec).Message)

	rec = s.do(http.MethodPost, "/api/freshchat-monitor", map[string]interface{}{"agent_id": "fc-1", "force_log": true})
	assert.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/freshchat-monitor", map[string]interface{}{}).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/api/freshchat-monitor", map[string]interface{}{"agent_id": "fc-404"}).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/api/freshchat-monitor", map[string]interface{}{"agent_id": "fc-2"}).Code)
}

func TestSyncUsers(t *testing.T) {
	s := newTestServer(t, "token")

	rec := s.do(http.MethodPost, "/api/sync-users-xano", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := dataOf[SyncReport](t, rec)
	assert.Equal(t, 2, report.Total, "fc-9 is not allow-listed")
	assert.Equal(t, 2, report.Created)

	ana, err := s.store.GetAgentByFreshchatID(context.Background(), "fc-1")
	require.NoError(t, err)
	assert.Equal(t, "Ana Souza", ana.Name)

	report = dataOf[SyncReport](t, s.do(http.MethodPost, "/api/sync-users", nil))
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 2, report.Updated)
}

func TestLiveRoster(t *testing.T) {
	s := newTestServer(t, "token")

	rec := s.do(http.MethodGet, "/api/agents/live", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	before := decode[rosterResponse](t, rec)
	assert.True(t, before.Loading)
	assert.Empty(t, before.Data)

	rec = s.do(http.MethodPost, "/api/admin/poll-cache/invalidate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	after := decode[rosterResponse](t, s.do(http.MethodGet, "/api/agents/live", nil))
	assert.False(t, after.Loading)
	require.Len(t, after.Data, 2)
	assert.Equal(t, types.ReasonLunch, after.Data[1].Reason)
	assert.NotNil(t, after.FetchedAt)

	assert.Equal(t, http.StatusServiceUnavailable, s.do(http.MethodGet, "/api/agents/board", nil).Code)
}

func TestAdmin(t *testing.T) {
	s := newTestServer(t, "token")
	require.NoError(t, s.statuses.Set(context.Background(), "fc-1", cache.StatusEntry{Status: types.AvailabilityAvailable}))

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/admin/status-memory/reset", nil, auth.RoleSupervisor).Code)

	rec := s.do(http.MethodPost, "/api/admin/status-memory/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]interface{}](t, rec)["agents_cleared"])

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/api/admin/archive/truncate", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/admin/simulator/status", nil).Code)
}

func TestGamification(t *testing.T) {
	s := newTestServer(t, "token")
	ana := dataOf[types.InternalAgent](t, s.do(http.MethodPost, "/api/agents", map[string]string{"name": "Ana", "email": "ana@example.com"}))

	task := dataOf[types.Task](t, s.do(http.MethodPost, "/api/tasks", map[string]interface{}{"title": "Feedback", "points": 30}))
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/tasks", map[string]interface{}{"title": "x", "points": 1}, auth.RoleAgent).Code)

	complete := "/api/tasks/" + task.ID + "/complete"
	assert.Equal(t, http.StatusCreated, s.do(http.MethodPost, complete, map[string]string{"agent_id": ana.ID}, auth.RoleAgent).Code)
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, complete, map[string]string{"agent_id": ana.ID}, auth.RoleAgent).Code)

	item := dataOf[types.MarketplaceItem](t, s.do(http.MethodPost, "/api/marketplace/items", map[string]interface{}{"name": "Day off", "cost": 50, "stock": 1}))
	redeem := "/api/marketplace/items/" + item.ID + "/redeem"
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, redeem, map[string]string{"agent_id": ana.ID}).Code)

	rec := s.do(http.MethodPost, "/api/points", map[string]interface{}{"agent_id": ana.ID, "amount": 20, "reason": "bonus"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusCreated, s.do(http.MethodPost, redeem, map[string]string{"agent_id": ana.ID}).Code)

	bal := dataOf[types.PointsBalance](t, s.do(http.MethodGet, "/api/points/"+ana.ID, nil))
	assert.Equal(t, 0, bal.Balance)
	assert.Len(t, bal.Ledger, 3)

	items := dataOf[[]types.MarketplaceItem](t, s.do(http.MethodGet, "/api/marketplace/items", nil))
	require.Len(t, items, 1)
	assert.Equal(t, 0, items[0].Stock)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{invalid("bad"), http.StatusBadRequest},
		{storage.ErrNotFound, http.StatusNotFound},
		{directory.ErrAgentNotFound, http.StatusNotFound},
		{storage.ErrPendingSwap, http.StatusConflict},
		{storage.ErrAgentHasSchedules, http.StatusConflict},
		{&directory.UpstreamError{StatusCode: 502}, http.StatusInternalServerError},
		{directory.ErrMissingToken, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		got, _ := classify(tt.err)
		assert.Equal(t, tt.want, got, tt.err.Error())
	}
}
