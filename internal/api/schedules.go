package api

import (
	"net/http"
	"time"

	"github.com/dennisdiepolder/monti/wfm/internal/storage"
	"github.com/dennisdiepolder/monti/wfm/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// SchedulesHandler serves shift CRUD and the aggregated schedule views
type SchedulesHandler struct {
	store  storage.ScheduleStore
	logger zerolog.Logger
}

// NewSchedulesHandler creates a new SchedulesHandler
func NewSchedulesHandler(store storage.ScheduleStore, logger zerolog.Logger) *SchedulesHandler {
	return &SchedulesHandler{
		store:  store,
		logger: logger.With().Str("component", "schedules").Logger(),
	}
}

type scheduleRequest struct {
	ID        string          `json:"id"`
	AgentID   string          `json:"agent_id"`
	StartTime string          `json:"start_time"`
	EndTime   string          `json:"end_time"`
	ShiftType types.ShiftType `json:"shift_type"`
	DayOfWeek *int            `json:"day_of_week"`
	Notes     string          `json:"notes"`
}

// schedule validates the request without touching the store. day_of_week
// defaults to the weekday of start_time.
func (req scheduleRequest) schedule() (*types.Schedule, error) {
	switch {
	case req.AgentID == "":
		return nil, invalid("agent_id is required")
	case req.StartTime == "":
		return nil, invalid("start_time is required")
	case req.EndTime == "":
		return nil, invalid("end_time is required")
	case req.ShiftType == "":
		return nil, invalid("shift_type is required")
	}
	if req.DayOfWeek != nil && (*req.DayOfWeek < 0 || *req.DayOfWeek > 6) {
		return nil, invalid("day_of_week must be between 0 and 6")
	}
	if !types.ValidShiftType(req.ShiftType) {
		return nil, invalid("invalid shift_type %q", req.ShiftType)
	}

	start, err := parseTime("start_time", req.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := parseTime("end_time", req.EndTime)
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, invalid("end_time must be after start_time")
	}

	day := int(start.Weekday())
	if req.DayOfWeek != nil {
		day = *req.DayOfWeek
	}
	return &types.Schedule{
		ID:        req.ID,
		AgentID:   req.AgentID,
		StartTime: start,
		EndTime:   end,
		ShiftType: req.ShiftType,
		DayOfWeek: day,
		Notes:     req.Notes,
	}, nil
}

// List handles GET /api/schedules?agent_id=&from=&to=&day_of_week=&active=
func (h *SchedulesHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := scheduleFilter(r)
	if err != nil {
		writeErr(w, h.logger, err, "list schedules")
		return
	}

	schedules, err := h.store.ListSchedules(r.Context(), filter)
	if err != nil {
		writeErr(w, h.logger, err, "list schedules")
		return
	}
	if schedules == nil {
		schedules = []types.Schedule{}
	}
	writeData(w, http.StatusOK, schedules)
}

func scheduleFilter(r *http.Request) (types.ScheduleFilter, error) {
	q := r.URL.Query()
	filter := types.ScheduleFilter{
		AgentID:    q.Get("agent_id"),
		ActiveOnly: q.Get("active") != "false",
	}

	var err error
	if filter.From, err = optionalTime(r, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = optionalTime(r, "to"); err != nil {
		return filter, err
	}
	if q.Get("day_of_week") != "" {
		day, err := queryInt(r, "day_of_week", 0)
		if err != nil || day > 6 {
			return filter, invalid("day_of_week must be between 0 and 6")
		}
		filter.DayOfWeek = &day
	}
	return filter, nil
}

// Create handles POST /api/schedules
func (h *SchedulesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, h.logger, err, "create schedule")
		return
	}
	sc, err := req.schedule()
	if err != nil {
		writeErr(w, h.logger, err, "create schedule")
		return
	}
	sc.ID = ""

	conflict, err := h.store.CheckScheduleConflict(r.Context(), sc.AgentID, sc.StartTime, sc.EndTime, "")
	if err != nil {
		writeErr(w, h.logger, err, "create schedule")
		return
	}
	if conflict {
		writeErr(w, h.logger, storage.ErrScheduleConflict, "create schedule")
		return
	}

	if err := h.store.CreateSchedule(r.Context(), sc); err != nil {
		writeErr(w, h.logger, err, "create schedule")
		return
	}

	h.logger.Info().
		Str("schedule_id", sc.ID).
		Str("agent_id", sc.AgentID).
		Time("start", sc.StartTime).
		Time("end", sc.EndTime).
		Msg("schedule created")

	writeData(w, http.StatusCreated, sc)
}

// Get handles GET /api/schedules/{id}
func (h *SchedulesHandler) Get(w http.ResponseWriter, r *http.Request) {
	sc, err := h.store.GetSchedule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, h.logger, err, "get schedule")
		return
	}
	writeData(w, http.StatusOK, sc)
}

// Update handles PUT /api/schedules/{id} and PUT /api/schedules with the id in the body
func (h *SchedulesHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, h.logger, err, "update schedule")
		return
	}
	if id := chi.URLParam(r, "id"); id != "" {
		req.ID = id
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	sc, err := req.schedule()
	if err != nil {
		writeErr(w, h.logger, err, "update schedule")
		return
	}

	existing, err := h.store.GetSchedule(r.Context(), sc.ID)
	if err != nil {
		writeErr(w, h.logger, err, "update schedule")
		return
	}

	conflict, err := h.store.CheckScheduleConflict(r.Context(), sc.AgentID, sc.StartTime, sc.EndTime, sc.ID)
	if err != nil {
		writeErr(w, h.logger, err, "update schedule")
		return
	}
	if conflict {
		writeErr(w, h.logger, storage.ErrScheduleConflict, "update schedule")
		return
	}

	sc.IsActive = existing.IsActive
	if err := h.store.UpdateSchedule(r.Context(), sc); err != nil {
		writeErr(w, h.logger, err, "update schedule")
		return
	}

	h.logger.Info().Str("schedule_id", sc.ID).Msg("schedule updated")
	writeData(w, http.StatusOK, sc)
}

// Delete handles DELETE /api/schedules/{id} and DELETE /api/schedules?id=.
// Schedules are deactivated, never removed.
func (h *SchedulesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		id = r.URL.Query().Get("id")
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.store.DeactivateSchedule(r.Context(), id); err != nil {
		writeErr(w, h.logger, err, "delete schedule")
		return
	}

	h.logger.Info().Str("schedule_id", id).Msg("schedule deactivated")
	writeData(w, http.StatusOK, map[string]interface{}{"id": id, "is_active": false})
}

// Hours handles GET /api/schedules/hours?agent_id=&from=&to=
func (h *SchedulesHandler) Hours(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agent_id")
	if agentID == "" {
		writeError(w, http.StatusBadRequest, "agent_id is required")
		return
	}
	from, err := optionalTime(r, "from")
	if err != nil {
		writeErr(w, h.logger, err, "worked hours")
		return
	}
	to, err := optionalTime(r, "to")
	if err != nil {
		writeErr(w, h.logger, err, "worked hours")
		return
	}
	if from.IsZero() || to.IsZero() {
		writeError(w, http.StatusBadRequest, "from and to are required")
		return
	}
	if !to.After(from) {
		writeError(w, http.StatusBadRequest, "to must be after from")
		return
	}

	hours, err := h.store.WorkedHours(r.Context(), agentID, from, to)
	if err != nil {
		writeErr(w, h.logger, err, "worked hours")
		return
	}

	writeData(w, http.StatusOK, types.WorkedHours{AgentID: agentID, From: from, To: to, Hours: hours})
}

// weekDay groups the shifts starting on one day of a week
type weekDay struct {
	DayOfWeek int              `json:"day_of_week"`
	Date      string           `json:"date"`
	Schedules []types.Schedule `json:"schedules"`
}

type weeklyView struct {
	WeekStart    time.Time          `json:"week_start"`
	WeekEnd      time.Time          `json:"week_end"`
	Days         []weekDay          `json:"days"`
	HoursByAgent map[string]float64 `json:"hours_by_agent"`
}

// Weekly handles GET /api/schedules/weekly?week_start=YYYY-MM-DD&agent_id=.
// Without week_start the week containing today (starting Sunday) is used.
func (h *SchedulesHandler) Weekly(w http.ResponseWriter, r *http.Request) {
	start, err := optionalTime(r, "week_start")
	if err != nil {
		writeErr(w, h.logger, err, "weekly schedules")
		return
	}
	if start.IsZero() {
		now := time.Now().UTC()
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).
			AddDate(0, 0, -int(now.Weekday()))
	}
	end := start.AddDate(0, 0, 7)

	schedules, err := h.store.ListSchedules(r.Context(), types.ScheduleFilter{
		AgentID:    r.URL.Query().Get("agent_id"),
		From:       start,
		To:         end,
		ActiveOnly: true,
	})
	if err != nil {
		writeErr(w, h.logger, err, "weekly schedules")
		return
	}

	writeData(w, http.StatusOK, buildWeek(start, schedules))
}

func buildWeek(start time.Time, schedules []types.Schedule) weeklyView {
	end := start.AddDate(0, 0, 7)
	view := weeklyView{
		WeekStart:    start,
		WeekEnd:      end,
		Days:         make([]weekDay, 7),
		HoursByAgent: make(map[string]float64),
	}
	for i := range view.Days {
		day := start.AddDate(0, 0, i)
		view.Days[i] = weekDay{
			DayOfWeek: int(day.Weekday()),
			Date:      day.Format(time.DateOnly),
			Schedules: []types.Schedule{},
		}
	}

	for _, sc := range schedules {
		// Shifts that began the evening before the week still count towards its hours
		if !sc.StartTime.Before(start) {
			if idx := int(sc.StartTime.Sub(start).Hours() / 24); idx < 7 {
				view.Days[idx].Schedules = append(view.Days[idx].Schedules, sc)
			}
		}
		view.HoursByAgent[sc.AgentID] += clipHours(sc, start, end)
	}
	return view
}

func clipHours(sc types.Schedule, from, to time.Time) float64 {
	s, e := sc.StartTime, sc.EndTime
	if s.Before(from) {
		s = from
	}
	if e.After(to) {
		e = to
	}
	if !e.After(s) {
		return 0
	}
	return e.Sub(s).Hours()
}
