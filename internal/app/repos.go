package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/noc-backend/internal/data/repos"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
)

type Repos struct {
	Tenant repos.TenantRepo
	User   repos.UserRepo

	JobRun      repos.JobRunRepo
	JobRunEvent repos.JobRunEventRepo

	Alert             repos.AlertRepo
	Correlation       repos.CorrelationRepo
	Incident          repos.IncidentRepo
	Playbook          repos.PlaybookRepo
	PlaybookExecution repos.PlaybookExecutionRepo
	MetricSnapshot    repos.MetricSnapshotRepo
	MetricRollup      repos.MetricRollupRepo

	BehaviorProfile      repos.BehaviorProfileRepo
	NavigationTransition repos.NavigationTransitionRepo
	Recommendation       repos.RecommendationRepo
	Experiment           repos.ExperimentRepo
	ExperimentAssignment repos.ExperimentAssignmentRepo
	ExperimentEvent      repos.ExperimentEventRepo
	Heatmap              repos.HeatmapRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Tenant: repos.NewTenantRepo(db, log),
		User:   repos.NewUserRepo(db, log),

		JobRun:      repos.NewJobRunRepo(db, log),
		JobRunEvent: repos.NewJobRunEventRepo(db, log),

		Alert:             repos.NewAlertRepo(db, log),
		Correlation:       repos.NewCorrelationRepo(db, log),
		Incident:          repos.NewIncidentRepo(db, log),
		Playbook:          repos.NewPlaybookRepo(db, log),
		PlaybookExecution: repos.NewPlaybookExecutionRepo(db, log),
		MetricSnapshot:    repos.NewMetricSnapshotRepo(db, log),
		MetricRollup:      repos.NewMetricRollupRepo(db, log),

		BehaviorProfile:      repos.NewBehaviorProfileRepo(db, log),
		NavigationTransition: repos.NewNavigationTransitionRepo(db, log),
		Recommendation:       repos.NewRecommendationRepo(db, log),
		Experiment:           repos.NewExperimentRepo(db, log),
		ExperimentAssignment: repos.NewExperimentAssignmentRepo(db, log),
		ExperimentEvent:      repos.NewExperimentEventRepo(db, log),
		Heatmap:              repos.NewHeatmapRepo(db, log),
	}
}
