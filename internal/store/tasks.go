package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"outreach-engine/internal/domain"
)

const taskCols = `id, task_type, campaign_id, company_id, status, progress, total, result, error,
  created_at, updated_at, started_at, completed_at`

func scanTask(row interface{ Scan(...any) error }) (domain.Task, error) {
	var t domain.Task
	var typ, status, created, updated string
	var companyID sql.NullInt64
	var result, started, completed sql.NullString
	if err := row.Scan(&t.ID, &typ, &t.CampaignID, &companyID, &status, &t.Progress, &t.Total,
		&result, &t.Error, &created, &updated, &started, &completed); err != nil {
		return t, err
	}
	t.Type = domain.TaskType(typ)
	t.Status = domain.TaskStatus(status)
	if companyID.Valid {
		id := companyID.Int64
		t.CompanyID = &id
	}
	if result.Valid && result.String != "" {
		t.Result = json.RawMessage(result.String)
	}
	t.CreatedAt = parseTime(created)
	t.UpdatedAt = parseTime(updated)
	t.StartedAt = parseNullTime(started)
	t.CompletedAt = parseNullTime(completed)
	return t, nil
}

func scanTasks(rows *sql.Rows) ([]domain.Task, error) {
	var out []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (d *DB) InsertTask(ctx context.Context, t domain.Task) error {
	var companyID sql.NullInt64
	if t.CompanyID != nil {
		companyID = sql.NullInt64{Int64: *t.CompanyID, Valid: true}
	}
	now := d.stamp()
	_, err := d.Pool.ExecContext(ctx, `
INSERT INTO tasks(id, task_type, campaign_id, company_id, status, progress, total, error, created_at, updated_at)
VALUES(?,?,?,?,?,?,?,'',?,?);`,
		t.ID, string(t.Type), t.CampaignID, companyID, string(domain.TaskPending), 0, t.Total, now, now)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (d *DB) GetTask(ctx context.Context, id string) (domain.Task, error) {
	t, err := scanTask(d.Pool.QueryRowContext(ctx,
		`SELECT `+taskCols+` FROM tasks WHERE id = ? LIMIT 1;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return t, err
}

// UpdateTaskProgress moves a live task to processing and records progress.
// started_at is stamped on the first such transition. Terminal tasks are left
// untouched and false is returned.
func (d *DB) UpdateTaskProgress(ctx context.Context, id string, progress int) (bool, error) {
	now := d.stamp()
	res, err := d.Pool.ExecContext(ctx, `
UPDATE tasks
SET status = ?, progress = ?, updated_at = ?,
    started_at = CASE WHEN started_at IS NULL AND ? = 0 THEN ? ELSE started_at END
WHERE id = ? AND status IN (?, ?);`,
		string(domain.TaskProcessing), progress, now, progress, now, id,
		string(domain.TaskPending), string(domain.TaskProcessing))
	if err != nil {
		return false, fmt.Errorf("update task progress: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// FinishTask moves a live task to a terminal status. It returns false when the
// task was already terminal.
func (d *DB) FinishTask(ctx context.Context, id string, status domain.TaskStatus, result []byte, msg string) (bool, error) {
	if !status.Terminal() {
		return false, fmt.Errorf("finish task %s: %q is not terminal", id, status)
	}
	var raw sql.NullString
	if len(result) > 0 {
		raw = sql.NullString{String: string(result), Valid: true}
	}
	now := d.stamp()
	res, err := d.Pool.ExecContext(ctx, `
UPDATE tasks
SET status = ?, result = ?, error = ?, updated_at = ?, completed_at = ?,
    progress = CASE WHEN ? = 'completed' AND total > 0 THEN total ELSE progress END
WHERE id = ? AND status IN (?, ?);`,
		string(status), raw, msg, now, now, string(status), id,
		string(domain.TaskPending), string(domain.TaskProcessing))
	if err != nil {
		return false, fmt.Errorf("finish task: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// ListTasks returns a campaign's tasks, newest first.
func (d *DB) ListTasks(ctx context.Context, campaignID int64) ([]domain.Task, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT `+taskCols+` FROM tasks WHERE campaign_id = ? ORDER BY created_at DESC, id DESC;`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

// ActiveTasks returns non-terminal tasks of one type for a campaign.
func (d *DB) ActiveTasks(ctx context.Context, campaignID int64, typ domain.TaskType) ([]domain.Task, error) {
	rows, err := d.Pool.QueryContext(ctx, `
SELECT `+taskCols+` FROM tasks
WHERE campaign_id = ? AND task_type = ? AND status IN (?, ?)
ORDER BY created_at ASC;`,
		campaignID, string(typ), string(domain.TaskPending), string(domain.TaskProcessing))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

// StaleTasks returns non-terminal tasks not updated since cutoff.
func (d *DB) StaleTasks(ctx context.Context, cutoff time.Time) ([]domain.Task, error) {
	rows, err := d.Pool.QueryContext(ctx, `
SELECT `+taskCols+` FROM tasks
WHERE status IN (?, ?) AND updated_at < ?
ORDER BY updated_at ASC;`,
		string(domain.TaskPending), string(domain.TaskProcessing), formatTime(cutoff))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}
