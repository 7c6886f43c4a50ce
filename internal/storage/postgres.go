package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dennisdiepolder/monti/wfm/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// PostgresStore implements Store on PostgreSQL. Schedule conflict detection
// and worked hours are delegated to stored procedures.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgresStore creates a connection pool and verifies it
func NewPostgresStore(ctx context.Context, databaseURL string, logger zerolog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	logger.Info().Msg("PostgreSQL store initialized")
	return &PostgresStore{pool: pool, logger: logger}, nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// mapError translates driver errors into the package sentinels
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return ErrDuplicate
		case "23503": // foreign_key_violation
			return ErrNotFound
		}
	}
	return err
}

func nullString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// --- agents ---

const agentColumns = `id, name, email, COALESCE(freshchat_id, ''), role, COALESCE(shift_type, ''),
	COALESCE(team, ''), is_active, created_at, updated_at`

func scanAgent(row pgx.Row) (*types.InternalAgent, error) {
	a := &types.InternalAgent{}
	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Email,
		&a.FreshchatID,
		&a.Role,
		&a.ShiftType,
		&a.Team,
		&a.IsActive,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return a, nil
}

// CreateAgent inserts a new agent record
func (s *PostgresStore) CreateAgent(ctx context.Context, a *types.InternalAgent) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	created, err := scanAgent(s.pool.QueryRow(ctx, `
		INSERT INTO agents (id, name, email, freshchat_id, role, shift_type, team, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+agentColumns,
		a.ID, a.Name, a.Email, nullString(a.FreshchatID), a.Role,
		nullString(string(a.ShiftType)), nullString(a.Team), a.IsActive,
	))
	if err != nil {
		return err
	}
	*a = *created
	return nil
}

// GetAgent retrieves an agent by ID
func (s *PostgresStore) GetAgent(ctx context.Context, id string) (*types.InternalAgent, error) {
	return scanAgent(s.pool.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = $1`, id))
}

// GetAgentByFreshchatID retrieves the agent linked to a directory agent
func (s *PostgresStore) GetAgentByFreshchatID(ctx context.Context, freshchatID string) (*types.InternalAgent, error) {
	return scanAgent(s.pool.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE freshchat_id = $1`, freshchatID))
}

// ListAgents lists agents ordered by name
func (s *PostgresStore) ListAgents(ctx context.Context, filter types.AgentFilter) ([]types.InternalAgent, error) {
	var (
		where []string
		args  []any
	)
	if filter.ActiveOnly {
		where = append(where, "is_active = TRUE")
	}
	if filter.Role != "" {
		args = append(args, filter.Role)
		where = append(where, fmt.Sprintf("role = $%d", len(args)))
	}

	query := `SELECT ` + agentColumns + ` FROM agents`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	agents := make([]types.InternalAgent, 0)
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

// UpdateAgent applies a partial update
func (s *PostgresStore) UpdateAgent(ctx context.Context, id string, patch types.AgentPatch) (*types.InternalAgent, error) {
	var updated *types.InternalAgent
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		a, err := scanAgent(tx.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		applyAgentPatch(a, patch)

		updated, err = scanAgent(tx.QueryRow(ctx, `
			UPDATE agents
			SET name = $2, email = $3, freshchat_id = $4, role = $5, shift_type = $6,
				team = $7, is_active = $8, updated_at = now()
			WHERE id = $1
			RETURNING `+agentColumns,
			id, a.Name, a.Email, nullString(a.FreshchatID), a.Role,
			nullString(string(a.ShiftType)), nullString(a.Team), a.IsActive,
		))
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteAgent removes an agent without active schedules. Agents still
// referenced by inactive schedules, swaps, status logs or the points ledger
// yield ErrAgentHasHistory.
func (s *PostgresStore) DeleteAgent(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		var busy bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM schedules WHERE agent_id = $1 AND is_active = TRUE)
		`, id).Scan(&busy)
		if err != nil {
			return err
		}
		if busy {
			return ErrAgentHasSchedules
		}

		tag, err := tx.Exec(ctx, `DELETE FROM agents WHERE id = $1`, id)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" {
				return ErrAgentHasHistory
			}
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// UpsertAgentByFreshchatID inserts or refreshes the agent linked to a directory id
func (s *PostgresStore) UpsertAgentByFreshchatID(ctx context.Context, a *types.InternalAgent) (bool, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	var (
		out      types.InternalAgent
		inserted bool
	)
	err := s.pool.QueryRow(ctx, `
		INSERT INTO agents (id, name, email, freshchat_id, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (freshchat_id) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email, is_active = EXCLUDED.is_active, updated_at = now()
		RETURNING `+agentColumns+`, (xmax = 0)`,
		a.ID, a.Name, a.Email, a.FreshchatID, a.Role, a.IsActive,
	).Scan(
		&out.ID,
		&out.Name,
		&out.Email,
		&out.FreshchatID,
		&out.Role,
		&out.ShiftType,
		&out.Team,
		&out.IsActive,
		&out.CreatedAt,
		&out.UpdatedAt,
		&inserted,
	)
	if err != nil {
		return false, mapError(err)
	}
	*a = out
	return inserted, nil
}

// --- schedules ---

const scheduleColumns = `id, agent_id, start_time, end_time, shift_type, day_of_week, notes,
	is_active, created_at, updated_at`

func scanSchedule(row pgx.Row) (*types.Schedule, error) {
	sc := &types.Schedule{}
	err := row.Scan(
		&sc.ID,
		&sc.AgentID,
		&sc.StartTime,
		&sc.EndTime,
		&sc.ShiftType,
		&sc.DayOfWeek,
		&sc.Notes,
		&sc.IsActive,
		&sc.CreatedAt,
		&sc.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return sc, nil
}

// CreateSchedule inserts an active schedule
func (s *PostgresStore) CreateSchedule(ctx context.Context, sc *types.Schedule) error {
	if sc.ID == "" {
		sc.ID = uuid.NewString()
	}
	created, err := scanSchedule(s.pool.QueryRow(ctx, `
		INSERT INTO schedules (id, agent_id, start_time, end_time, shift_type, day_of_week, notes, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		RETURNING `+scheduleColumns,
		sc.ID, sc.AgentID, sc.StartTime, sc.EndTime, sc.ShiftType, sc.DayOfWeek, sc.Notes,
	))
	if err != nil {
		return err
	}
	*sc = *created
	return nil
}

// GetSchedule retrieves a schedule by ID
func (s *PostgresStore) GetSchedule(ctx context.Context, id string) (*types.Schedule, error) {
	return scanSchedule(s.pool.QueryRow(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = $1`, id))
}

// ListSchedules lists schedules ordered by start time
func (s *PostgresStore) ListSchedules(ctx context.Context, f types.ScheduleFilter) ([]types.Schedule, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.AgentID != "" {
		add("agent_id = $%d", f.AgentID)
	}
	if f.ActiveOnly {
		where = append(where, "is_active = TRUE")
	}
	if f.DayOfWeek != nil {
		add("day_of_week = $%d", *f.DayOfWeek)
	}
	if !f.From.IsZero() {
		add("end_time > $%d", f.From)
	}
	if !f.To.IsZero() {
		add("start_time < $%d", f.To)
	}

	query := `SELECT ` + scheduleColumns + ` FROM schedules`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_time"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schedules := make([]types.Schedule, 0)
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *sc)
	}
	return schedules, rows.Err()
}

// UpdateSchedule replaces the mutable fields of a schedule
func (s *PostgresStore) UpdateSchedule(ctx context.Context, sc *types.Schedule) error {
	updated, err := scanSchedule(s.pool.QueryRow(ctx, `
		UPDATE schedules
		SET agent_id = $2, start_time = $3, end_time = $4, shift_type = $5, day_of_week = $6,
			notes = $7, is_active = $8, updated_at = now()
		WHERE id = $1
		RETURNING `+scheduleColumns,
		sc.ID, sc.AgentID, sc.StartTime, sc.EndTime, sc.ShiftType, sc.DayOfWeek, sc.Notes, sc.IsActive,
	))
	if err != nil {
		return err
	}
	*sc = *updated
	return nil
}

// DeactivateSchedule soft-deletes a schedule unless a pending swap references it
func (s *PostgresStore) DeactivateSchedule(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		var found string
		if err := tx.QueryRow(ctx, `SELECT id FROM schedules WHERE id = $1 FOR UPDATE`, id).Scan(&found); err != nil {
			return mapError(err)
		}

		var pending bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM shift_swaps
				WHERE status = 'pending' AND (original_schedule_id = $1 OR target_schedule_id = $1)
			)
		`, id).Scan(&pending)
		if err != nil {
			return err
		}
		if pending {
			return ErrPendingSwap
		}

		_, err = tx.Exec(ctx, `UPDATE schedules SET is_active = FALSE, updated_at = now() WHERE id = $1`, id)
		return err
	})
}

// CheckScheduleConflict calls the check_schedule_conflict procedure
func (s *PostgresStore) CheckScheduleConflict(ctx context.Context, agentID string, start, end time.Time, excludeID string) (bool, error) {
	var conflict bool
	err := s.pool.QueryRow(ctx,
		`SELECT check_schedule_conflict($1, $2, $3, $4)`,
		agentID, start, end, nullString(excludeID),
	).Scan(&conflict)
	if err != nil {
		return false, fmt.Errorf("check_schedule_conflict: %w", err)
	}
	return conflict, nil
}

// WorkedHours calls the calculate_worked_hours procedure
func (s *PostgresStore) WorkedHours(ctx context.Context, agentID string, from, to time.Time) (float64, error) {
	var hours float64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(calculate_worked_hours($1, $2, $3), 0)::float8`,
		agentID, from, to,
	).Scan(&hours)
	if err != nil {
		return 0, fmt.Errorf("calculate_worked_hours: %w", err)
	}
	return hours, nil
}

// --- swaps ---

const swapColumns = `id, requester_id, target_agent_id, original_schedule_id, target_schedule_id,
	reason, status, COALESCE(reviewed_by, ''), reviewed_at, created_at`

func scanSwap(row pgx.Row) (*types.ShiftSwap, error) {
	sw := &types.ShiftSwap{}
	err := row.Scan(
		&sw.ID,
		&sw.RequesterID,
		&sw.TargetAgentID,
		&sw.OriginalScheduleID,
		&sw.TargetScheduleID,
		&sw.Reason,
		&sw.Status,
		&sw.ReviewedBy,
		&sw.ReviewedAt,
		&sw.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return sw, nil
}

// CreateSwap records a pending swap if neither schedule already has one
func (s *PostgresStore) CreateSwap(ctx context.Context, sw *types.ShiftSwap) error {
	if sw.ID == "" {
		sw.ID = uuid.NewString()
	}

	return s.inTx(ctx, func(tx pgx.Tx) error {
		// Lock both schedules so two concurrent requests cannot both pass the check
		rows, err := tx.Query(ctx, `SELECT id FROM schedules WHERE id = ANY($1) FOR UPDATE`,
			[]string{sw.OriginalScheduleID, sw.TargetScheduleID})
		if err != nil {
			return err
		}
		locked := 0
		for rows.Next() {
			locked++
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if locked < 2 && sw.OriginalScheduleID != sw.TargetScheduleID {
			return ErrNotFound
		}

		var pending bool
		err = tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM shift_swaps
				WHERE status = 'pending'
				  AND (original_schedule_id IN ($1, $2) OR target_schedule_id IN ($1, $2))
			)
		`, sw.OriginalScheduleID, sw.TargetScheduleID).Scan(&pending)
		if err != nil {
			return err
		}
		if pending {
			return ErrPendingSwap
		}

		created, err := scanSwap(tx.QueryRow(ctx, `
			INSERT INTO shift_swaps (id, requester_id, target_agent_id, original_schedule_id, target_schedule_id, reason, status)
			VALUES ($1, $2, $3, $4, $5, $6, 'pending')
			RETURNING `+swapColumns,
			sw.ID, sw.RequesterID, sw.TargetAgentID, sw.OriginalScheduleID, sw.TargetScheduleID, sw.Reason,
		))
		if err != nil {
			return err
		}
		*sw = *created
		return nil
	})
}

// GetSwap retrieves a swap by ID
func (s *PostgresStore) GetSwap(ctx context.Context, id string) (*types.ShiftSwap, error) {
	return scanSwap(s.pool.QueryRow(ctx, `SELECT `+swapColumns+` FROM shift_swaps WHERE id = $1`, id))
}

// ListSwaps lists swaps, newest first
func (s *PostgresStore) ListSwaps(ctx context.Context, status types.SwapStatus, agentID string) ([]types.ShiftSwap, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+swapColumns+`
		FROM shift_swaps
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = '' OR requester_id = $2 OR target_agent_id = $2)
		ORDER BY created_at DESC
	`, string(status), agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	swaps := make([]types.ShiftSwap, 0)
	for rows.Next() {
		sw, err := scanSwap(rows)
		if err != nil {
			return nil, err
		}
		swaps = append(swaps, *sw)
	}
	return swaps, rows.Err()
}

// ResolveSwap moves a pending swap to its final status. Approval exchanges
// the agents of the two schedules in the same transaction.
func (s *PostgresStore) ResolveSwap(ctx context.Context, id string, status types.SwapStatus, reviewer string) (*types.ShiftSwap, error) {
	var resolved *types.ShiftSwap
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		sw, err := scanSwap(tx.QueryRow(ctx, `SELECT `+swapColumns+` FROM shift_swaps WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if sw.Status != types.SwapPending {
			return ErrSwapNotPending
		}

		if status == types.SwapApproved {
			tag, err := tx.Exec(ctx, `
				UPDATE schedules s
				SET agent_id = o.agent_id, updated_at = now()
				FROM schedules o
				WHERE (s.id = $1 AND o.id = $2) OR (s.id = $2 AND o.id = $1)
			`, sw.OriginalScheduleID, sw.TargetScheduleID)
			if err != nil {
				return err
			}
			if tag.RowsAffected() != 2 {
				return ErrNotFound
			}
		}

		resolved, err = scanSwap(tx.QueryRow(ctx, `
			UPDATE shift_swaps
			SET status = $2, reviewed_by = $3, reviewed_at = now()
			WHERE id = $1
			RETURNING `+swapColumns,
			id, status, nullString(reviewer),
		))
		return err
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

// --- status logs ---

// InsertStatusLogs writes all logs in one transaction; either every row is
// stored or none is.
func (s *PostgresStore) InsertStatusLogs(ctx context.Context, logs []types.StatusLog) error {
	if len(logs) == 0 {
		return nil
	}

	return s.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, l := range logs {
			batch.Queue(`
				INSERT INTO status_logs (id, agent_id, external_agent_id, status, previous_status, details, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, l.ID, l.AgentID, l.ExternalAgentID, l.Status, l.PreviousStatus, l.Details, l.CreatedAt)
		}

		br := tx.SendBatch(ctx, batch)
		for range logs {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return mapError(err)
			}
		}
		return br.Close()
	})
}

// ListStatusLogs returns the newest logs, optionally for one agent
func (s *PostgresStore) ListStatusLogs(ctx context.Context, agentID string, limit int) ([]types.StatusLog, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, agent_id, external_agent_id, status, previous_status, details, created_at
		FROM status_logs
		WHERE ($1 = '' OR agent_id = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, agentID, lim)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]types.StatusLog, 0)
	for rows.Next() {
		var l types.StatusLog
		if err := rows.Scan(&l.ID, &l.AgentID, &l.ExternalAgentID, &l.Status, &l.PreviousStatus, &l.Details, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.DateKey = l.CreatedAt.UTC().Format("2006-01-02")
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// --- gamification ---

// lockAgent serializes ledger writes per agent
func lockAgent(ctx context.Context, tx pgx.Tx, agentID string) error {
	var id string
	return mapError(tx.QueryRow(ctx, `SELECT id FROM agents WHERE id = $1 FOR UPDATE`, agentID).Scan(&id))
}

func balance(ctx context.Context, q interface {
	QueryRow(context.Context, string, ...any) pgx.Row
}, agentID string) (int, error) {
	var total int
	err := q.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)::int FROM points_ledger WHERE agent_id = $1`, agentID).Scan(&total)
	return total, err
}

func insertLedger(ctx context.Context, tx pgx.Tx, agentID string, amount int, reason string) (*types.PointsEntry, error) {
	e := &types.PointsEntry{}
	err := tx.QueryRow(ctx, `
		INSERT INTO points_ledger (id, agent_id, amount, reason)
		VALUES ($1, $2, $3, $4)
		RETURNING id, agent_id, amount, reason, created_at
	`, ulid.Make().String(), agentID, amount, reason).Scan(&e.ID, &e.AgentID, &e.Amount, &e.Reason, &e.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return e, nil
}

// AwardPoints appends a ledger entry. Negative amounts may not overdraw.
func (s *PostgresStore) AwardPoints(ctx context.Context, e *types.PointsEntry) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockAgent(ctx, tx, e.AgentID); err != nil {
			return err
		}
		if e.Amount < 0 {
			total, err := balance(ctx, tx, e.AgentID)
			if err != nil {
				return err
			}
			if total+e.Amount < 0 {
				return ErrInsufficientPoints
			}
		}

		created, err := insertLedger(ctx, tx, e.AgentID, e.Amount, e.Reason)
		if err != nil {
			return err
		}
		*e = *created
		return nil
	})
}

// PointsBalance returns the balance of an agent and the newest ledger entries
func (s *PostgresStore) PointsBalance(ctx context.Context, agentID string, ledgerLimit int) (*types.PointsBalance, error) {
	if _, err := s.GetAgent(ctx, agentID); err != nil {
		return nil, err
	}

	total, err := balance(ctx, s.pool, agentID)
	if err != nil {
		return nil, err
	}

	var lim any
	if ledgerLimit > 0 {
		lim = ledgerLimit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, agent_id, amount, reason, created_at
		FROM points_ledger
		WHERE agent_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, agentID, lim)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bal := &types.PointsBalance{AgentID: agentID, Balance: total, Ledger: []types.PointsEntry{}}
	for rows.Next() {
		var e types.PointsEntry
		if err := rows.Scan(&e.ID, &e.AgentID, &e.Amount, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		bal.Ledger = append(bal.Ledger, e)
	}
	return bal, rows.Err()
}

// CreateTask inserts an active task
func (s *PostgresStore) CreateTask(ctx context.Context, t *types.Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO tasks (id, title, description, points, due_date, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING is_active, created_at
	`, t.ID, t.Title, t.Description, t.Points, t.DueDate).Scan(&t.IsActive, &t.CreatedAt)
}

// ListTasks lists tasks in creation order
func (s *PostgresStore) ListTasks(ctx context.Context, activeOnly bool) ([]types.Task, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, description, points, due_date, is_active, created_at
		FROM tasks
		WHERE (NOT $1 OR is_active = TRUE)
		ORDER BY created_at
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]types.Task, 0)
	for rows.Next() {
		var t types.Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Points, &t.DueDate, &t.IsActive, &t.CreatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CompleteTask records a completion and credits the task points once per agent
func (s *PostgresStore) CompleteTask(ctx context.Context, taskID, agentID string) (*types.TaskCompletion, error) {
	var c *types.TaskCompletion
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockAgent(ctx, tx, agentID); err != nil {
			return err
		}

		var (
			title  string
			points int
		)
		err := tx.QueryRow(ctx, `SELECT title, points FROM tasks WHERE id = $1 AND is_active = TRUE`, taskID).Scan(&title, &points)
		if err != nil {
			return mapError(err)
		}

		c = &types.TaskCompletion{TaskID: taskID, AgentID: agentID, Points: points}
		err = tx.QueryRow(ctx, `
			INSERT INTO task_completions (task_id, agent_id, points)
			VALUES ($1, $2, $3)
			RETURNING completed_at
		`, taskID, agentID, points).Scan(&c.CompletedAt)
		if err != nil {
			if errors.Is(mapError(err), ErrDuplicate) {
				return ErrAlreadyCompleted
			}
			return err
		}

		_, err = insertLedger(ctx, tx, agentID, points, "task: "+title)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CreateItem inserts an active marketplace item
func (s *PostgresStore) CreateItem(ctx context.Context, item *types.MarketplaceItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO marketplace_items (id, name, description, cost, stock, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING is_active, created_at
	`, item.ID, item.Name, item.Description, item.Cost, item.Stock).Scan(&item.IsActive, &item.CreatedAt)
}

// ListItems lists marketplace items by cost
func (s *PostgresStore) ListItems(ctx context.Context, activeOnly bool) ([]types.MarketplaceItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, description, cost, stock, is_active, created_at
		FROM marketplace_items
		WHERE (NOT $1 OR is_active = TRUE)
		ORDER BY cost
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]types.MarketplaceItem, 0)
	for rows.Next() {
		var it types.MarketplaceItem
		if err := rows.Scan(&it.ID, &it.Name, &it.Description, &it.Cost, &it.Stock, &it.IsActive, &it.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// RedeemItem deducts the item cost and decrements its stock atomically
func (s *PostgresStore) RedeemItem(ctx context.Context, itemID, agentID string) (*types.Redemption, error) {
	var r *types.Redemption
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockAgent(ctx, tx, agentID); err != nil {
			return err
		}

		var (
			name        string
			cost, stock int
		)
		err := tx.QueryRow(ctx, `
			SELECT name, cost, stock FROM marketplace_items
			WHERE id = $1 AND is_active = TRUE
			FOR UPDATE
		`, itemID).Scan(&name, &cost, &stock)
		if err != nil {
			return mapError(err)
		}
		if stock <= 0 {
			return ErrOutOfStock
		}

		total, err := balance(ctx, tx, agentID)
		if err != nil {
			return err
		}
		if total < cost {
			return ErrInsufficientPoints
		}

		if _, err := tx.Exec(ctx, `UPDATE marketplace_items SET stock = stock - 1 WHERE id = $1`, itemID); err != nil {
			return err
		}
		if _, err := insertLedger(ctx, tx, agentID, -cost, "redeem: "+name); err != nil {
			return err
		}

		r = &types.Redemption{ID: uuid.NewString(), ItemID: itemID, AgentID: agentID, Cost: cost}
		return tx.QueryRow(ctx, `
			INSERT INTO redemptions (id, item_id, agent_id, cost)
			VALUES ($1, $2, $3, $4)
			RETURNING redeemed_at
		`, r.ID, itemID, agentID, cost).Scan(&r.RedeemedAt)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}
