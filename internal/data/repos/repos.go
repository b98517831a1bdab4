package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/noc-backend/internal/data/repos/analytics"
	"github.com/yungbote/noc-backend/internal/data/repos/auth"
	"github.com/yungbote/noc-backend/internal/data/repos/jobs"
	"github.com/yungbote/noc-backend/internal/data/repos/noc"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
)

type TenantRepo = auth.TenantRepo
type UserRepo = auth.UserRepo

type JobRunRepo = jobs.JobRunRepo
type JobRunEventRepo = jobs.JobRunEventRepo

type AlertRepo = noc.AlertRepo
type AlertFilter = noc.AlertFilter
type AlertCounts = noc.AlertCounts
type CorrelationRepo = noc.CorrelationRepo
type IncidentRepo = noc.IncidentRepo
type IncidentFilter = noc.IncidentFilter
type PlaybookRepo = noc.PlaybookRepo
type PlaybookExecutionRepo = noc.PlaybookExecutionRepo
type ExecutionFilter = noc.ExecutionFilter
type MetricSnapshotRepo = noc.MetricSnapshotRepo
type MetricRollupRepo = noc.MetricRollupRepo
type TierStats = noc.TierStats

type BehaviorProfileRepo = analytics.BehaviorProfileRepo
type NavigationTransitionRepo = analytics.NavigationTransitionRepo
type RecommendationRepo = analytics.RecommendationRepo
type ExperimentRepo = analytics.ExperimentRepo
type ExperimentAssignmentRepo = analytics.ExperimentAssignmentRepo
type ExperimentEventRepo = analytics.ExperimentEventRepo
type HeatmapRepo = analytics.HeatmapRepo
type HeatmapQuery = analytics.HeatmapQuery
type SelectorCount = analytics.SelectorCount

func NewTenantRepo(db *gorm.DB, baseLog *logger.Logger) TenantRepo {
	return auth.NewTenantRepo(db, baseLog)
}
func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo { return auth.NewUserRepo(db, baseLog) }

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return jobs.NewJobRunRepo(db, baseLog)
}
func NewJobRunEventRepo(db *gorm.DB, baseLog *logger.Logger) JobRunEventRepo {
	return jobs.NewJobRunEventRepo(db, baseLog)
}

func NewAlertRepo(db *gorm.DB, baseLog *logger.Logger) AlertRepo {
	return noc.NewAlertRepo(db, baseLog)
}
func NewCorrelationRepo(db *gorm.DB, baseLog *logger.Logger) CorrelationRepo {
	return noc.NewCorrelationRepo(db, baseLog)
}
func NewIncidentRepo(db *gorm.DB, baseLog *logger.Logger) IncidentRepo {
	return noc.NewIncidentRepo(db, baseLog)
}
func NewPlaybookRepo(db *gorm.DB, baseLog *logger.Logger) PlaybookRepo {
	return noc.NewPlaybookRepo(db, baseLog)
}
func NewPlaybookExecutionRepo(db *gorm.DB, baseLog *logger.Logger) PlaybookExecutionRepo {
	return noc.NewPlaybookExecutionRepo(db, baseLog)
}
func NewMetricSnapshotRepo(db *gorm.DB, baseLog *logger.Logger) MetricSnapshotRepo {
	return noc.NewMetricSnapshotRepo(db, baseLog)
}
func NewMetricRollupRepo(db *gorm.DB, baseLog *logger.Logger) MetricRollupRepo {
	return noc.NewMetricRollupRepo(db, baseLog)
}

func NewBehaviorProfileRepo(db *gorm.DB, baseLog *logger.Logger) BehaviorProfileRepo {
	return analytics.NewBehaviorProfileRepo(db, baseLog)
}
func NewNavigationTransitionRepo(db *gorm.DB, baseLog *logger.Logger) NavigationTransitionRepo {
	return analytics.NewNavigationTransitionRepo(db, baseLog)
}
func NewRecommendationRepo(db *gorm.DB, baseLog *logger.Logger) RecommendationRepo {
	return analytics.NewRecommendationRepo(db, baseLog)
}
func NewExperimentRepo(db *gorm.DB, baseLog *logger.Logger) ExperimentRepo {
	return analytics.NewExperimentRepo(db, baseLog)
}
func NewExperimentAssignmentRepo(db *gorm.DB, baseLog *logger.Logger) ExperimentAssignmentRepo {
	return analytics.NewExperimentAssignmentRepo(db, baseLog)
}
func NewExperimentEventRepo(db *gorm.DB, baseLog *logger.Logger) ExperimentEventRepo {
	return analytics.NewExperimentEventRepo(db, baseLog)
}
func NewHeatmapRepo(db *gorm.DB, baseLog *logger.Logger) HeatmapRepo {
	return analytics.NewHeatmapRepo(db, baseLog)
}
