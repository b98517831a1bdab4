package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/noc-backend/internal/data/repos"
	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/jobs"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
	"github.com/yungbote/noc-backend/internal/realtime"
)

// JobNotifier reports job lifecycle changes to the owner (user channel) or,
// for system jobs, the tenant NOC channel, and records them in the job's
// event timeline.
type JobNotifier interface {
	JobCreated(job *types.JobRun)
	JobProgress(job *types.JobRun, stage string, progress int, message string)
	JobFailed(job *types.JobRun, stage string, errorMessage string)
	JobDone(job *types.JobRun)
	JobCanceled(job *types.JobRun)
}

type jobNotifier struct {
	emit   Emitter
	events repos.JobRunEventRepo
	log    *logger.Logger
}

// NewJobNotifier accepts a nil events repo; events are then only emitted.
func NewJobNotifier(log *logger.Logger, emit Emitter, events repos.JobRunEventRepo) JobNotifier {
	return &jobNotifier{emit: emit, events: events, log: log.With("service", "JobNotifier")}
}

func jobChannel(job *types.JobRun) string {
	if job.OwnerUserID != nil && *job.OwnerUserID != uuid.Nil {
		return realtime.UserChannel(*job.OwnerUserID)
	}
	if job.TenantID != nil && *job.TenantID != uuid.Nil {
		return realtime.NOCChannel(*job.TenantID)
	}
	return ""
}

func (n *jobNotifier) publish(job *types.JobRun, event realtime.Event, data map[string]any) {
	if n == nil || n.emit == nil || job == nil {
		return
	}
	ch := jobChannel(job)
	if ch == "" {
		return
	}
	n.emit.Emit(context.Background(), realtime.Message{Channel: ch, Event: event, Data: data})
}

func (n *jobNotifier) record(job *types.JobRun, kind, stage string, progress int, message string, data map[string]any) {
	if n == nil || n.events == nil || job == nil {
		return
	}
	ev := &types.JobRunEvent{
		JobID:    job.ID,
		TenantID: job.TenantID,
		JobType:  job.JobType,
		Kind:     kind,
		Stage:    stage,
		Progress: progress,
		Message:  message,
	}
	if len(data) > 0 {
		if b, err := json.Marshal(data); err == nil {
			ev.Data = datatypes.JSON(b)
		}
	}
	if err := n.events.Append(dbctx.Context{Ctx: context.Background()}, ev); err != nil {
		n.log.Warn("append job event failed", "job_id", job.ID, "kind", kind, "error", err)
	}
}

func (n *jobNotifier) JobCreated(job *types.JobRun) {
	n.publish(job, realtime.EventJobCreated, map[string]any{"job": job})
	n.record(job, jobs.JobEventCreated, job.Stage, 0, job.Message, nil)
}

func (n *jobNotifier) JobProgress(job *types.JobRun, stage string, progress int, message string) {
	n.publish(job, realtime.EventJobProgress, map[string]any{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"stage":    stage,
		"progress": progress,
		"message":  message,
	})
	n.record(job, jobs.JobEventProgress, stage, progress, message, nil)
}

func (n *jobNotifier) JobFailed(job *types.JobRun, stage string, errorMessage string) {
	n.publish(job, realtime.EventJobFailed, map[string]any{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"stage":    stage,
		"error":    errorMessage,
	})
	n.record(job, jobs.JobEventFailed, stage, job.Progress, errorMessage, nil)
}

func (n *jobNotifier) JobDone(job *types.JobRun) {
	n.publish(job, realtime.EventJobDone, map[string]any{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"job":      job,
	})
	n.record(job, jobs.JobEventSucceeded, job.Stage, 100, job.Message, nil)
}

func (n *jobNotifier) JobCanceled(job *types.JobRun) {
	n.publish(job, realtime.EventJobCanceled, map[string]any{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"job":      job,
	})
	n.record(job, jobs.JobEventCanceled, job.Stage, job.Progress, "Canceled", nil)
}
