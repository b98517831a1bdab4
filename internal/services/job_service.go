package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/noc-backend/internal/data/repos"
	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/jobs"
	"github.com/yungbote/noc-backend/internal/pkg/apierr"
	"github.com/yungbote/noc-backend/internal/pkg/ctxutil"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
)

// JobWorkflowName is the Temporal workflow that drives one job run.
const JobWorkflowName = "noc.jobrun"

// MaxJobAttempts bounds retries for both the poll worker and Temporal.
const MaxJobAttempts = 5

// EnqueueRequest describes a job run. TenantID and OwnerUserID are both
// optional; system jobs have neither.
type EnqueueRequest struct {
	TenantID    *uuid.UUID
	OwnerUserID *uuid.UUID
	JobType     string
	EntityType  string
	EntityID    *uuid.UUID
	Payload     map[string]any
}

type JobService interface {
	Enqueue(dbc dbctx.Context, req EnqueueRequest) (*types.JobRun, error)
	// EnqueueIfIdle skips (returns nil, false) when a queued or running job
	// with the same type, tenant and entity already exists.
	EnqueueIfIdle(dbc dbctx.Context, req EnqueueRequest) (*types.JobRun, bool, error)
	Dispatch(dbc dbctx.Context, jobID uuid.UUID) error
	GetForTenant(dbc dbctx.Context, tenantID, jobID uuid.UUID) (*types.JobRun, error)
	CancelForTenant(dbc dbctx.Context, tenantID, jobID uuid.UUID) (*types.JobRun, error)
	// OnCancel registers hook for jobs whose EntityType is entityType. Hooks
	// run inside the cancel transaction; an error aborts the cancel.
	OnCancel(entityType string, hook JobCancelHook)
}

// JobCancelHook moves the job's entity to its own cancelled state.
type JobCancelHook func(dbc dbctx.Context, job *types.JobRun) error

type jobService struct {
	db     *gorm.DB
	log    *logger.Logger
	repo   repos.JobRunRepo
	notify JobNotifier

	temporal          temporalsdkclient.Client
	temporalTaskQueue string

	hooksMu     sync.RWMutex
	cancelHooks map[string]JobCancelHook
}

// NewJobService takes a nil Temporal client in poll mode; jobs then wait in
// the table for the poll worker.
func NewJobService(
	db *gorm.DB,
	baseLog *logger.Logger,
	repo repos.JobRunRepo,
	notify JobNotifier,
	tc temporalsdkclient.Client,
	taskQueue string,
) JobService {
	return &jobService{
		db:                db,
		log:               baseLog.With("service", "JobService"),
		repo:              repo,
		notify:            notify,
		temporal:          tc,
		temporalTaskQueue: strings.TrimSpace(taskQueue),
		cancelHooks:       map[string]JobCancelHook{},
	}
}

func (s *jobService) OnCancel(entityType string, hook JobCancelHook) {
	if entityType == "" || hook == nil {
		return
	}
	s.hooksMu.Lock()
	s.cancelHooks[entityType] = hook
	s.hooksMu.Unlock()
}

func (s *jobService) cancelHook(entityType string) JobCancelHook {
	s.hooksMu.RLock()
	defer s.hooksMu.RUnlock()
	return s.cancelHooks[entityType]
}

func (s *jobService) Enqueue(dbc dbctx.Context, req EnqueueRequest) (*types.JobRun, error) {
	if strings.TrimSpace(req.JobType) == "" {
		return nil, apierr.Invalid("missing_job_type", "job type is required")
	}
	payload := req.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	if td := ctxutil.GetTraceData(dbc.Ctx); td != nil {
		if td.TraceID != "" {
			if _, ok := payload["trace_id"]; !ok {
				payload["trace_id"] = td.TraceID
			}
		}
		if td.RequestID != "" {
			if _, ok := payload["request_id"]; !ok {
				payload["request_id"] = td.RequestID
			}
		}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	now := time.Now().UTC()
	job := &types.JobRun{
		ID:          uuid.New(),
		TenantID:    req.TenantID,
		OwnerUserID: req.OwnerUserID,
		JobType:     req.JobType,
		EntityType:  req.EntityType,
		EntityID:    req.EntityID,
		Status:      jobs.StatusQueued,
		Stage:       "queued",
		Message:     "Queued",
		Payload:     datatypes.JSON(b),
		Result:      datatypes.JSON([]byte(`{}`)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.repo.Create(dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.Tx}, []*types.JobRun{job}); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	if s.notify != nil {
		s.notify.JobCreated(job)
	}

	// Inside a caller's transaction the workflow must not start before the
	// row commits; the caller dispatches afterwards.
	if isDBTransaction(dbc.Tx) {
		s.log.Debug("Job enqueued inside transaction; awaiting dispatch after commit", "job_id", job.ID, "job_type", job.JobType)
		return job, nil
	}
	if err := s.Dispatch(dbctx.Context{Ctx: dbc.Ctx}, job.ID); err != nil {
		return job, err
	}
	return job, nil
}

func (s *jobService) EnqueueIfIdle(dbc dbctx.Context, req EnqueueRequest) (*types.JobRun, bool, error) {
	exists, err := s.repo.ExistsRunnable(dbc, req.TenantID, req.JobType, req.EntityType, req.EntityID)
	if err != nil {
		return nil, false, err
	}
	if exists {
		return nil, false, nil
	}
	job, err := s.Enqueue(dbc, req)
	if err != nil {
		return job, job != nil, err
	}
	return job, true, nil
}

type txCommitter interface {
	Commit() error
	Rollback() error
}

// isDBTransaction detects a real transaction by its ConnPool; cloned
// *gorm.DB pointers make pointer comparison unreliable.
func isDBTransaction(db *gorm.DB) bool {
	if db == nil || db.Statement == nil || db.Statement.ConnPool == nil {
		return false
	}
	_, ok := db.Statement.ConnPool.(txCommitter)
	return ok
}

// Dispatch starts the job's workflow in Temporal mode. In poll mode it is a
// no-op: the worker claims queued rows itself.
func (s *jobService) Dispatch(dbc dbctx.Context, jobID uuid.UUID) error {
	if s == nil || s.temporal == nil {
		return nil
	}
	if jobID == uuid.Nil {
		return apierr.Invalid("missing_job_id", "job id is required")
	}
	ctx := ctxutil.Default(dbc.Ctx)

	err := s.startJobWorkflow(ctx, jobID, enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE)
	if err == nil {
		return nil
	}
	if _, ok := err.(*serviceerror.WorkflowExecutionAlreadyStarted); ok {
		return nil
	}

	now := time.Now().UTC()
	_ = s.repo.UpdateFields(dbctx.Context{Ctx: ctx}, jobID, map[string]interface{}{
		"status":        jobs.StatusFailed,
		"stage":         "dispatch",
		"error":         err.Error(),
		"attempts":      MaxJobAttempts,
		"last_error_at": now,
		"locked_at":     nil,
		"updated_at":    now,
	})
	if s.notify != nil {
		if rows, rerr := s.repo.GetByIDs(dbctx.Context{Ctx: ctx}, []uuid.UUID{jobID}); rerr == nil && len(rows) > 0 && rows[0] != nil {
			s.notify.JobFailed(rows[0], "dispatch", err.Error())
		}
	}
	return fmt.Errorf("start temporal workflow: %w", err)
}

func (s *jobService) startJobWorkflow(ctx context.Context, jobID uuid.UUID, reusePolicy enums.WorkflowIdReusePolicy) error {
	tq := s.temporalTaskQueue
	if tq == "" {
		tq = "noc"
	}
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                    jobID.String(),
		TaskQueue:             tq,
		WorkflowIDReusePolicy: reusePolicy,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    30 * time.Second,
			BackoffCoefficient: 1.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    MaxJobAttempts,
		},
	}
	_, err := s.temporal.ExecuteWorkflow(ctx, opts, JobWorkflowName, jobID.String())
	return err
}

func (s *jobService) GetForTenant(dbc dbctx.Context, tenantID, jobID uuid.UUID) (*types.JobRun, error) {
	if jobID == uuid.Nil {
		return nil, apierr.Invalid("missing_job_id", "job id is required")
	}
	job, err := s.repo.GetByIDForTenant(dbc, tenantID, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, apierr.NotFound("job_not_found", "job %s", jobID)
	}
	return job, nil
}

func (s *jobService) CancelForTenant(dbc dbctx.Context, tenantID, jobID uuid.UUID) (*types.JobRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}

	var updated *types.JobRun
	shouldNotify := false
	err := transaction.WithContext(ctxutil.Default(dbc.Ctx)).Transaction(func(txx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: txx}
		job, err := s.GetForTenant(inner, tenantID, jobID)
		if err != nil {
			return err
		}
		switch job.Status {
		case jobs.StatusSucceeded, jobs.StatusFailed, jobs.StatusCanceled:
			updated = job
			return nil
		}
		now := time.Now().UTC()
		if err := s.repo.UpdateFields(inner, jobID, map[string]interface{}{
			"status":       jobs.StatusCanceled,
			"message":      "Canceled",
			"locked_at":    nil,
			"heartbeat_at": now,
			"updated_at":   now,
		}); err != nil {
			return err
		}
		job.Status = jobs.StatusCanceled
		job.Message = "Canceled"
		job.LockedAt = nil
		job.HeartbeatAt = &now
		job.UpdatedAt = now
		if hook := s.cancelHook(job.EntityType); hook != nil && job.EntityID != nil {
			if err := hook(inner, job); err != nil {
				return fmt.Errorf("cancel %s %s: %w", job.EntityType, *job.EntityID, err)
			}
		}
		updated = job
		shouldNotify = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if shouldNotify && s.notify != nil {
		s.notify.JobCanceled(updated)
	}
	if shouldNotify && s.temporal != nil {
		_ = s.temporal.CancelWorkflow(ctxutil.Default(dbc.Ctx), jobID.String(), "")
	}
	return updated, nil
}
