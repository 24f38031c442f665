// Package tasks records the lifecycle of background work. The task row is the
// durable handle callers poll; nothing about in-flight work lives in memory.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"outreach-engine/internal/domain"
	"outreach-engine/internal/logging"
	"outreach-engine/internal/metrics"
)

type Store interface {
	InsertTask(ctx context.Context, t domain.Task) error
	GetTask(ctx context.Context, id string) (domain.Task, error)
	UpdateTaskProgress(ctx context.Context, id string, progress int) (bool, error)
	FinishTask(ctx context.Context, id string, status domain.TaskStatus, result []byte, msg string) (bool, error)
	ListTasks(ctx context.Context, campaignID int64) ([]domain.Task, error)
	ActiveTasks(ctx context.Context, campaignID int64, typ domain.TaskType) ([]domain.Task, error)
	StaleTasks(ctx context.Context, cutoff time.Time) ([]domain.Task, error)
}

type Tracker struct {
	store   Store
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewTracker(s Store, log *zap.Logger, m *metrics.Metrics) *Tracker {
	if m == nil {
		m = metrics.Nop()
	}
	return &Tracker{store: s, log: logging.OrNop(log).Named("tasks"), metrics: m}
}

// Create records a pending task and returns its id.
func (t *Tracker) Create(ctx context.Context, typ domain.TaskType, campaignID int64, companyID *int64, total int) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("task id: %w", err)
	}
	task := domain.Task{
		ID:         id.String(),
		Type:       typ,
		CampaignID: campaignID,
		CompanyID:  companyID,
		Total:      total,
	}
	if err := t.store.InsertTask(ctx, task); err != nil {
		return "", err
	}
	t.log.Debug("task created",
		zap.String("task_id", task.ID),
		zap.String("type", string(typ)),
		zap.Int64("campaign_id", campaignID))
	return task.ID, nil
}

// SetProgress marks the task processing. It reports false when the task is
// already terminal, e.g. failed by the supervisor while it sat in the queue;
// the caller should then abandon the run. A store error is logged and
// reported as true.
func (t *Tracker) SetProgress(ctx context.Context, id string, progress int) bool {
	ok, err := t.store.UpdateTaskProgress(ctx, id, progress)
	if err != nil {
		t.log.Warn("task progress not recorded", zap.String("task_id", id), zap.Error(err))
		return true
	}
	if !ok {
		t.log.Debug("progress on finished task ignored", zap.String("task_id", id), zap.Int("progress", progress))
	}
	return ok
}

// Complete stores result as the task's JSON payload.
func (t *Tracker) Complete(ctx context.Context, id string, result any) {
	var raw []byte
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			t.log.Warn("task result not encodable", zap.String("task_id", id), zap.Error(err))
		} else {
			raw = b
		}
	}
	t.finish(ctx, id, domain.TaskCompleted, raw, "")
}

func (t *Tracker) Fail(ctx context.Context, id string, msg string) {
	t.finish(ctx, id, domain.TaskFailed, nil, msg)
}

func (t *Tracker) finish(ctx context.Context, id string, status domain.TaskStatus, raw []byte, msg string) {
	ok, err := t.store.FinishTask(ctx, id, status, raw, msg)
	if err != nil {
		t.log.Error("task finish not recorded", zap.String("task_id", id), zap.String("status", string(status)), zap.Error(err))
		return
	}
	if !ok {
		t.log.Warn("task already terminal", zap.String("task_id", id), zap.String("status", string(status)))
		return
	}

	task, err := t.store.GetTask(ctx, id)
	typ := "unknown"
	if err == nil {
		typ = string(task.Type)
	}
	t.metrics.Tasks.WithLabelValues(typ, string(status)).Inc()

	fields := []zap.Field{zap.String("task_id", id), zap.String("type", typ)}
	if status == domain.TaskFailed {
		t.log.Warn("task failed", append(fields, zap.String("error", msg))...)
	} else {
		t.log.Info("task completed", fields...)
	}
}

func (t *Tracker) Get(ctx context.Context, id string) (domain.Task, error) {
	return t.store.GetTask(ctx, id)
}

func (t *Tracker) ListForCampaign(ctx context.Context, campaignID int64) ([]domain.Task, error) {
	return t.store.ListTasks(ctx, campaignID)
}

// ActiveFor reports the first non-terminal task of typ for the campaign.
func (t *Tracker) ActiveFor(ctx context.Context, campaignID int64, typ domain.TaskType) (*domain.Task, error) {
	active, err := t.store.ActiveTasks(ctx, campaignID, typ)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, nil
	}
	return &active[0], nil
}
