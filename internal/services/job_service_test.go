package services

import (
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/noc-backend/internal/data/repos"
	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/jobs"
	"github.com/yungbote/noc-backend/internal/pkg/apierr"
)

type countingJobNotifier struct {
	mu       sync.Mutex
	created  int
	canceled int
}

func (n *countingJobNotifier) JobCreated(*types.JobRun) {
	n.mu.Lock()
	n.created++
	n.mu.Unlock()
}
func (n *countingJobNotifier) JobProgress(*types.JobRun, string, int, string) {}
func (n *countingJobNotifier) JobFailed(*types.JobRun, string, string)        {}
func (n *countingJobNotifier) JobDone(*types.JobRun)                          {}
func (n *countingJobNotifier) JobCanceled(*types.JobRun) {
	n.mu.Lock()
	n.canceled++
	n.mu.Unlock()
}

func TestJobEnqueueIfIdle(t *testing.T) {
	f := newFixture(t)
	notify := &countingJobNotifier{}
	svc := NewJobService(f.db, f.log, repos.NewJobRunRepo(f.db, f.log), notify, nil, "")
	tenant := f.tenant(t)

	req := EnqueueRequest{
		TenantID:   &tenant,
		JobType:    jobs.TypeAlertRescore,
		EntityType: jobs.EntityTenant,
		EntityID:   &tenant,
	}
	first, ok, err := svc.EnqueueIfIdle(f.dbc, req)
	if err != nil || !ok || first == nil {
		t.Fatalf("first EnqueueIfIdle: ok=%v err=%v", ok, err)
	}
	if first.Status != jobs.StatusQueued {
		t.Fatalf("status: want=%s got=%s", jobs.StatusQueued, first.Status)
	}
	second, ok, err := svc.EnqueueIfIdle(f.dbc, req)
	if err != nil || ok || second != nil {
		t.Fatalf("second EnqueueIfIdle: want skip got ok=%v job=%v err=%v", ok, second, err)
	}

	other := f.tenant(t)
	req.TenantID, req.EntityID = &other, &other
	if _, ok, err := svc.EnqueueIfIdle(f.dbc, req); err != nil || !ok {
		t.Fatalf("other tenant: want enqueue got ok=%v err=%v", ok, err)
	}
	if notify.created != 2 {
		t.Fatalf("created events: want=2 got=%d", notify.created)
	}

	_, err = svc.Enqueue(f.dbc, EnqueueRequest{})
	if status, code := apierr.StatusOf(err); status != http.StatusBadRequest || code != "missing_job_type" {
		t.Fatalf("no type: want=400/missing_job_type got=%d/%s", status, code)
	}
}

func TestJobCancelForTenant(t *testing.T) {
	f := newFixture(t)
	notify := &countingJobNotifier{}
	svc := NewJobService(f.db, f.log, repos.NewJobRunRepo(f.db, f.log), notify, nil, "")
	tenant := f.tenant(t)

	job, err := svc.Enqueue(f.dbc, EnqueueRequest{TenantID: &tenant, JobType: jobs.TypeRecommendationRefresh})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := svc.Dispatch(f.dbc, job.ID); err != nil {
		t.Fatalf("poll-mode Dispatch: want nil got=%v", err)
	}

	_, err = svc.GetForTenant(f.dbc, f.tenant(t), job.ID)
	if status, code := apierr.StatusOf(err); status != http.StatusNotFound || code != "job_not_found" {
		t.Fatalf("cross-tenant Get: want=404/job_not_found got=%d/%s", status, code)
	}

	canceled, err := svc.CancelForTenant(f.dbc, tenant, job.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if canceled.Status != jobs.StatusCanceled {
		t.Fatalf("status: want=%s got=%s", jobs.StatusCanceled, canceled.Status)
	}
	again, err := svc.CancelForTenant(f.dbc, tenant, job.ID)
	if err != nil || again.Status != jobs.StatusCanceled {
		t.Fatalf("second cancel: job=%v err=%v", again, err)
	}
	if notify.canceled != 1 {
		t.Fatalf("cancel events: want=1 got=%d", notify.canceled)
	}

	stored, err := svc.GetForTenant(f.dbc, tenant, job.ID)
	if err != nil || stored.Status != jobs.StatusCanceled {
		t.Fatalf("reload: job=%v err=%v", stored, err)
	}
	if _, err := svc.GetForTenant(f.dbc, tenant, uuid.Nil); err == nil {
		t.Fatalf("nil id: want error got=nil")
	}
}
