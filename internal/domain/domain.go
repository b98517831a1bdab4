package domain

import (
	"github.com/yungbote/noc-backend/internal/domain/analytics"
	"github.com/yungbote/noc-backend/internal/domain/auth"
	"github.com/yungbote/noc-backend/internal/domain/jobs"
	"github.com/yungbote/noc-backend/internal/domain/noc"
)

type (
	Tenant         = auth.Tenant
	TenantSettings = auth.TenantSettings
	User           = auth.User
)

type (
	Severity              = noc.Severity
	AlertEvent            = noc.AlertEvent
	CorrelatedIncident    = noc.CorrelatedIncident
	Incident              = noc.Incident
	IncidentTimelineEntry = noc.IncidentTimelineEntry
	Playbook              = noc.Playbook
	PlaybookTrigger       = noc.PlaybookTrigger
	PlaybookStep          = noc.PlaybookStep
	PlaybookExecution     = noc.PlaybookExecution
	StepResult            = noc.StepResult
	Resolution            = noc.Resolution
	MetricSnapshot        = noc.MetricSnapshot
	MetricRollup          = noc.MetricRollup
	RollupWatermark       = noc.RollupWatermark
)

type (
	JobRun      = jobs.JobRun
	JobRunEvent = jobs.JobRunEvent
)

type (
	BehaviorEvent            = analytics.BehaviorEvent
	UserBehaviorProfile      = analytics.UserBehaviorProfile
	NavigationTransition     = analytics.NavigationTransition
	ContentRecommendation    = analytics.ContentRecommendation
	NavigationRecommendation = analytics.NavigationRecommendation
	Experiment               = analytics.Experiment
	ExperimentVariant        = analytics.Variant
	ExperimentAssignment     = analytics.ExperimentAssignment
	ExperimentEvent          = analytics.ExperimentEvent
	HeatmapClick             = analytics.HeatmapClick
)

// Models lists every persisted type in migration order.
func Models() []any {
	return []any{
		&Tenant{},
		&User{},

		&AlertEvent{},
		&CorrelatedIncident{},
		&Incident{},
		&IncidentTimelineEntry{},
		&Playbook{},
		&PlaybookExecution{},
		&MetricSnapshot{},
		&MetricRollup{},
		&RollupWatermark{},

		&JobRun{},
		&JobRunEvent{},

		&UserBehaviorProfile{},
		&NavigationTransition{},
		&ContentRecommendation{},
		&NavigationRecommendation{},
		&Experiment{},
		&ExperimentAssignment{},
		&ExperimentEvent{},
		&HeatmapClick{},
	}
}
