package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/noc-backend/internal/clients/sendgrid"
	"github.com/yungbote/noc-backend/internal/clients/twilio"
	"github.com/yungbote/noc-backend/internal/data/repos"
	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/jobs"
	"github.com/yungbote/noc-backend/internal/domain/noc"
	"github.com/yungbote/noc-backend/internal/modules/noc/playbook"
	"github.com/yungbote/noc-backend/internal/observability"
	"github.com/yungbote/noc-backend/internal/pkg/apierr"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
)

type PlaybookService interface {
	Create(dbc dbctx.Context, tenantID uuid.UUID, def playbook.Definition) (*types.Playbook, error)
	Update(dbc dbctx.Context, tenantID, id uuid.UUID, def playbook.Definition) (*types.Playbook, error)
	Delete(dbc dbctx.Context, tenantID, id uuid.UUID) error
	Get(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.Playbook, error)
	List(dbc dbctx.Context, tenantID uuid.UUID) ([]*types.Playbook, error)
	// LoadFile upserts every playbook in a YAML file by tenant slug and name.
	LoadFile(dbc dbctx.Context, path string) (int, error)

	// Trigger opens an execution for each enabled playbook matching alert
	// that is not cooling down for the alert's dedup key.
	Trigger(dbc dbctx.Context, alert *types.AlertEvent) ([]*types.PlaybookExecution, error)
	Approve(dbc dbctx.Context, tenantID, execID, userID uuid.UUID) (*types.PlaybookExecution, error)
	Reject(dbc dbctx.Context, tenantID, execID, userID uuid.UUID) (*types.PlaybookExecution, error)
	// Cancel stops an unfinished execution and cancels its job, if any.
	Cancel(dbc dbctx.Context, tenantID, execID, userID uuid.UUID) (*types.PlaybookExecution, error)
	// Execute runs a queued execution's steps. Step failures are recorded on
	// the execution; the error return is reserved for storage failures.
	Execute(dbc dbctx.Context, execID uuid.UUID) (*types.PlaybookExecution, error)
	ListExecutions(dbc dbctx.Context, tenantID uuid.UUID, f repos.ExecutionFilter) ([]*types.PlaybookExecution, int64, error)
	GetExecution(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.PlaybookExecution, error)
}

type PlaybookDeps struct {
	Playbooks  repos.PlaybookRepo
	Executions repos.PlaybookExecutionRepo
	Alerts     repos.AlertRepo
	Tenants    repos.TenantRepo
	Incidents  IncidentService
	Jobs       JobService
	Notify     NOCNotifier
	Email      sendgrid.Client
	SMS        twilio.Client
	Metrics    *observability.Metrics
}

type playbookService struct {
	db  *gorm.DB
	log *logger.Logger
	PlaybookDeps
	now func() time.Time
}

// NewPlaybookService accepts nil Email and SMS clients; the matching step
// actions then fail with a configuration error.
func NewPlaybookService(db *gorm.DB, baseLog *logger.Logger, deps PlaybookDeps) PlaybookService {
	s := &playbookService{
		db:           db,
		log:          baseLog.With("service", "PlaybookService"),
		PlaybookDeps: deps,
		now:          func() time.Time { return time.Now().UTC() },
	}
	if deps.Jobs != nil {
		deps.Jobs.OnCancel(jobs.EntityPlaybookExecution, s.cancelForJob)
	}
	return s
}

// cancellableExecution lists the statuses Cancel may leave.
var cancellableExecution = []string{noc.ExecutionPendingApproval, noc.ExecutionQueued, noc.ExecutionRunning}

func (s *playbookService) Create(dbc dbctx.Context, tenantID uuid.UUID, def playbook.Definition) (*types.Playbook, error) {
	if err := playbook.Validate(def); err != nil {
		return nil, apierr.Invalid("invalid_playbook", "%v", err)
	}
	existing, err := s.Playbooks.GetByName(dbc, tenantID, strings.TrimSpace(def.Name))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apierr.Conflict("playbook_exists", "playbook %q already exists", def.Name)
	}
	pb := &types.Playbook{TenantID: tenantID}
	playbook.Apply(def, pb)
	if err := s.Playbooks.Create(dbc, pb); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apierr.Conflict("playbook_exists", "playbook %q already exists", def.Name)
		}
		return nil, fmt.Errorf("create playbook: %w", err)
	}
	return pb, nil
}

func (s *playbookService) Update(dbc dbctx.Context, tenantID, id uuid.UUID, def playbook.Definition) (*types.Playbook, error) {
	if err := playbook.Validate(def); err != nil {
		return nil, apierr.Invalid("invalid_playbook", "%v", err)
	}
	pb, err := s.Get(dbc, tenantID, id)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(def.Name); name != pb.Name {
		other, err := s.Playbooks.GetByName(dbc, tenantID, name)
		if err != nil {
			return nil, err
		}
		if other != nil {
			return nil, apierr.Conflict("playbook_exists", "playbook %q already exists", name)
		}
	}
	playbook.Apply(def, pb)
	if err := s.Playbooks.Save(dbc, pb); err != nil {
		return nil, fmt.Errorf("save playbook: %w", err)
	}
	return pb, nil
}

func (s *playbookService) Delete(dbc dbctx.Context, tenantID, id uuid.UUID) error {
	ok, err := s.Playbooks.Delete(dbc, tenantID, id)
	if err != nil {
		return err
	}
	if !ok {
		return apierr.NotFound("playbook_not_found", "playbook %s", id)
	}
	return nil
}

func (s *playbookService) Get(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.Playbook, error) {
	pb, err := s.Playbooks.GetByID(dbc, tenantID, id)
	if err != nil {
		return nil, err
	}
	if pb == nil {
		return nil, apierr.NotFound("playbook_not_found", "playbook %s", id)
	}
	return pb, nil
}

func (s *playbookService) List(dbc dbctx.Context, tenantID uuid.UUID) ([]*types.Playbook, error) {
	return s.Playbooks.List(dbc, tenantID)
}

func (s *playbookService) LoadFile(dbc dbctx.Context, path string) (int, error) {
	defs, err := playbook.LoadFile(path)
	if err != nil {
		return 0, err
	}
	n := 0
	err = inTx(s.db, dbc, func(inner dbctx.Context) error {
		for _, def := range defs {
			tenant, err := s.Tenants.GetBySlug(inner, strings.TrimSpace(def.Tenant))
			if err != nil {
				return err
			}
			if tenant == nil {
				return fmt.Errorf("playbook %q: unknown tenant %q", def.Name, def.Tenant)
			}
			pb, err := s.Playbooks.GetByName(inner, tenant.ID, strings.TrimSpace(def.Name))
			if err != nil {
				return err
			}
			if pb == nil {
				pb = &types.Playbook{TenantID: tenant.ID}
				playbook.Apply(def, pb)
				err = s.Playbooks.Create(inner, pb)
			} else {
				playbook.Apply(def, pb)
				err = s.Playbooks.Save(inner, pb)
			}
			if err != nil {
				return fmt.Errorf("upsert playbook %q: %w", def.Name, err)
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("Playbooks loaded", "path", path, "count", n)
	return n, nil
}

func (s *playbookService) Trigger(dbc dbctx.Context, alert *types.AlertEvent) ([]*types.PlaybookExecution, error) {
	if alert == nil {
		return nil, nil
	}
	pbs, err := s.Playbooks.ListEnabled(dbc, alert.TenantID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var out []*types.PlaybookExecution
	var dispatch []uuid.UUID
	for _, pb := range pbs {
		if !playbook.Match(pb, alert) {
			continue
		}
		last, err := s.Executions.LatestForKey(dbc, alert.TenantID, pb.ID, alert.DedupKey)
		if err != nil {
			return out, err
		}
		if playbook.InCooldown(last, pb.CooldownMinutes, now) {
			s.log.Debug("Playbook cooling down", "playbook", pb.Name, "alert_id", alert.ID)
			continue
		}
		alertID := alert.ID
		exec := &types.PlaybookExecution{
			ID:          uuid.New(),
			TenantID:    alert.TenantID,
			PlaybookID:  pb.ID,
			AlertID:     &alertID,
			DedupKey:    alert.DedupKey,
			Status:      noc.ExecutionQueued,
			RequestedAt: now,
			StepResults: datatypes.JSON([]byte(`[]`)),
		}
		if pb.RequiresApproval {
			exec.Status = noc.ExecutionPendingApproval
		}
		err = inTx(s.db, dbc, func(inner dbctx.Context) error {
			if exec.Status == noc.ExecutionQueued {
				job, err := s.enqueueExecution(inner, exec.TenantID, exec.ID)
				if err != nil {
					return err
				}
				exec.JobID = &job.ID
			}
			return s.Executions.Create(inner, exec)
		})
		if err != nil {
			return out, fmt.Errorf("open execution for %q: %w", pb.Name, err)
		}
		if exec.JobID != nil {
			dispatch = append(dispatch, *exec.JobID)
		}
		out = append(out, exec)
		if s.Notify != nil {
			s.Notify.PlaybookExecution(dbc.Ctx, exec.TenantID, exec)
		}
	}
	s.dispatch(dbc, dispatch)
	return out, nil
}

func (s *playbookService) enqueueExecution(dbc dbctx.Context, tenantID, execID uuid.UUID) (*types.JobRun, error) {
	if s.Jobs == nil {
		return nil, fmt.Errorf("job service not configured")
	}
	tid, eid := tenantID, execID
	return s.Jobs.Enqueue(dbc, EnqueueRequest{
		TenantID:   &tid,
		JobType:    jobs.TypePlaybookExecute,
		EntityType: jobs.EntityPlaybookExecution,
		EntityID:   &eid,
		Payload:    map[string]any{"execution_id": execID.String()},
	})
}

// dispatch starts workflows for jobs enqueued inside our own transaction.
// Under a caller's transaction the caller owns commit and dispatch.
func (s *playbookService) dispatch(dbc dbctx.Context, jobIDs []uuid.UUID) {
	if s.Jobs == nil || isDBTransaction(dbc.Tx) {
		return
	}
	for _, id := range jobIDs {
		if err := s.Jobs.Dispatch(dbctx.Context{Ctx: dbc.Ctx}, id); err != nil {
			s.log.Warn("Dispatch playbook job failed", "job_id", id, "error", err)
		}
	}
}

func (s *playbookService) Approve(dbc dbctx.Context, tenantID, execID, userID uuid.UUID) (*types.PlaybookExecution, error) {
	if _, err := s.GetExecution(dbc, tenantID, execID); err != nil {
		return nil, err
	}
	var jobID uuid.UUID
	err := inTx(s.db, dbc, func(inner dbctx.Context) error {
		job, err := s.enqueueExecution(inner, tenantID, execID)
		if err != nil {
			return err
		}
		jobID = job.ID
		now := s.now()
		ok, err := s.Executions.UpdateFieldsIfStatus(inner, execID, []string{noc.ExecutionPendingApproval}, map[string]interface{}{
			"status":      noc.ExecutionQueued,
			"approved_by": userID,
			"approved_at": now,
			"job_id":      job.ID,
		})
		if err != nil {
			return err
		}
		if !ok {
			return apierr.Conflict("not_pending", "execution is not pending approval")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.dispatch(dbc, []uuid.UUID{jobID})
	return s.reloadAndNotify(dbc, tenantID, execID)
}

func (s *playbookService) Reject(dbc dbctx.Context, tenantID, execID, userID uuid.UUID) (*types.PlaybookExecution, error) {
	if _, err := s.GetExecution(dbc, tenantID, execID); err != nil {
		return nil, err
	}
	now := s.now()
	ok, err := s.Executions.UpdateFieldsIfStatus(dbc, execID, []string{noc.ExecutionPendingApproval}, map[string]interface{}{
		"status":      noc.ExecutionRejected,
		"approved_by": userID,
		"finished_at": now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apierr.Conflict("not_pending", "execution is not pending approval")
	}
	s.Metrics.PlaybookRun(noc.ExecutionRejected)
	return s.reloadAndNotify(dbc, tenantID, execID)
}

func (s *playbookService) markCancelled(dbc dbctx.Context, execID uuid.UUID, userID *uuid.UUID, reason string) (bool, error) {
	updates := map[string]interface{}{
		"status":      noc.ExecutionCancelled,
		"finished_at": s.now(),
		"error":       reason,
	}
	if userID != nil {
		updates["approved_by"] = *userID
	}
	return s.Executions.UpdateFieldsIfStatus(dbc, execID, cancellableExecution, updates)
}

func (s *playbookService) Cancel(dbc dbctx.Context, tenantID, execID, userID uuid.UUID) (*types.PlaybookExecution, error) {
	exec, err := s.GetExecution(dbc, tenantID, execID)
	if err != nil {
		return nil, err
	}
	if exec.IsTerminal() {
		return nil, apierr.Conflict("not_cancellable", "execution is already %s", exec.Status)
	}
	err = inTx(s.db, dbc, func(inner dbctx.Context) error {
		ok, err := s.markCancelled(inner, execID, &userID, "cancelled by operator")
		if err != nil {
			return err
		}
		if !ok {
			return apierr.Conflict("not_cancellable", "execution finished before it could be cancelled")
		}
		if exec.JobID != nil && s.Jobs != nil {
			if _, err := s.Jobs.CancelForTenant(inner, tenantID, *exec.JobID); err != nil {
				return fmt.Errorf("cancel execution job: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Metrics.PlaybookRun(noc.ExecutionCancelled)
	return s.reloadAndNotify(dbc, tenantID, execID)
}

// cancelForJob runs inside JobService.CancelForTenant for playbook_execute jobs.
func (s *playbookService) cancelForJob(dbc dbctx.Context, job *types.JobRun) error {
	ok, err := s.markCancelled(dbc, *job.EntityID, nil, "job cancelled")
	if err != nil || !ok {
		return err
	}
	s.Metrics.PlaybookRun(noc.ExecutionCancelled)
	s.log.Info("Playbook execution cancelled with its job", "execution_id", *job.EntityID, "job_id", job.ID)
	if s.Notify != nil {
		if exec, err := s.Executions.GetByIDAnyTenant(dbc, *job.EntityID); err == nil && exec != nil {
			s.Notify.PlaybookExecution(dbc.Ctx, exec.TenantID, exec)
		}
	}
	return nil
}

func (s *playbookService) reloadAndNotify(dbc dbctx.Context, tenantID, execID uuid.UUID) (*types.PlaybookExecution, error) {
	exec, err := s.GetExecution(dbc, tenantID, execID)
	if err != nil {
		return nil, err
	}
	if s.Notify != nil {
		s.Notify.PlaybookExecution(dbc.Ctx, tenantID, exec)
	}
	return exec, nil
}

func (s *playbookService) Execute(dbc dbctx.Context, execID uuid.UUID) (*types.PlaybookExecution, error) {
	exec, err := s.Executions.GetByIDAnyTenant(dbc, execID)
	if err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, apierr.NotFound("execution_not_found", "execution %s", execID)
	}
	if exec.IsTerminal() {
		return exec, nil
	}
	started := s.now()
	ok, err := s.Executions.UpdateFieldsIfStatus(dbc, execID, []string{noc.ExecutionQueued, noc.ExecutionRunning}, map[string]interface{}{
		"status":     noc.ExecutionRunning,
		"started_at": started,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		// Pending approval or finished concurrently.
		return s.Executions.GetByIDAnyTenant(dbc, execID)
	}
	exec.Status = noc.ExecutionRunning
	exec.StartedAt = &started
	if s.Notify != nil {
		s.Notify.PlaybookExecution(dbc.Ctx, exec.TenantID, exec)
	}

	pb, err := s.Playbooks.GetByID(dbc, exec.TenantID, exec.PlaybookID)
	if err != nil {
		return nil, err
	}
	var alert *types.AlertEvent
	if exec.AlertID != nil {
		if alert, err = s.Alerts.GetByID(dbc, exec.TenantID, *exec.AlertID); err != nil {
			return nil, err
		}
	}

	var results []noc.StepResult
	status := noc.ExecutionSucceeded
	errMsg := ""
	if pb == nil {
		status = noc.ExecutionFailed
		errMsg = "playbook no longer exists"
	} else {
		env := &stepEnv{exec: exec, playbook: pb, alert: alert}
		steps := pb.DecodeSteps()
		for i, step := range steps {
			res := noc.StepResult{Step: step.Name, Action: step.Action, StartedAt: s.now()}
			out, serr := s.runStep(dbc, env, step)
			finished := s.now()
			res.FinishedAt = &finished
			res.Output = out
			if serr != nil {
				res.Status = noc.StepStatusFailed
				res.Error = serr.Error()
			} else {
				res.Status = noc.StepStatusSucceeded
			}
			results = append(results, res)
			if serr != nil && !step.ContinueOnError {
				status = noc.ExecutionFailed
				errMsg = fmt.Sprintf("step %q failed: %v", step.Name, serr)
				for _, rest := range steps[i+1:] {
					results = append(results, noc.StepResult{Step: rest.Name, Action: rest.Action, Status: noc.StepStatusSkipped, StartedAt: finished})
				}
				break
			}
			ok, err := s.saveResults(dbc, execID, results)
			if err != nil {
				return nil, err
			}
			if !ok {
				s.log.Info("Playbook execution stopped after cancel", "execution_id", execID, "steps_run", len(results))
				return s.Executions.GetByIDAnyTenant(dbc, execID)
			}
		}
	}

	raw, err := encodeStepResults(results)
	if err != nil {
		s.log.Warn("Encode step results failed", "execution_id", execID, "error", err)
		status = noc.ExecutionFailed
		errMsg = err.Error()
	}
	finished := s.now()
	ok, err = s.Executions.UpdateFieldsIfStatus(dbc, execID, []string{noc.ExecutionRunning}, map[string]interface{}{
		"status":       status,
		"step_results": raw,
		"finished_at":  finished,
		"error":        errMsg,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return s.Executions.GetByIDAnyTenant(dbc, execID)
	}
	exec.Status = status
	exec.StepResults = raw
	exec.FinishedAt = &finished
	exec.Error = errMsg
	s.Metrics.PlaybookRun(status)
	s.log.Info("Playbook execution finished", "execution_id", execID, "status", status, "steps", len(results))
	if s.Notify != nil {
		s.Notify.PlaybookExecution(dbc.Ctx, exec.TenantID, exec)
	}
	return exec, nil
}

// encodeStepResults returns an empty list alongside the error when results
// cannot be encoded.
func encodeStepResults(results []noc.StepResult) (datatypes.JSON, error) {
	if results == nil {
		results = []noc.StepResult{}
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return datatypes.JSON([]byte(`[]`)), fmt.Errorf("encode step results: %w", err)
	}
	return datatypes.JSON(raw), nil
}

// saveResults reports false once the execution has left running, which is
// how a cancel reaches a run in progress.
func (s *playbookService) saveResults(dbc dbctx.Context, execID uuid.UUID, results []noc.StepResult) (bool, error) {
	updates := map[string]interface{}{}
	if raw, err := encodeStepResults(results); err != nil {
		s.log.Warn("Encode step results failed", "execution_id", execID, "error", err)
	} else {
		updates["step_results"] = raw
	}
	return s.Executions.UpdateFieldsIfStatus(dbc, execID, []string{noc.ExecutionRunning}, updates)
}

func (s *playbookService) ListExecutions(dbc dbctx.Context, tenantID uuid.UUID, f repos.ExecutionFilter) ([]*types.PlaybookExecution, int64, error) {
	return s.Executions.List(dbc, tenantID, f)
}

func (s *playbookService) GetExecution(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.PlaybookExecution, error) {
	exec, err := s.Executions.GetByID(dbc, tenantID, id)
	if err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, apierr.NotFound("execution_not_found", "execution %s", id)
	}
	return exec, nil
}
