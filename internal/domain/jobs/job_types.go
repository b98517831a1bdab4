package jobs

const (
	TypeMetricSnapshotCapture = "metric_snapshot_capture"
	TypeMetricRollup          = "metric_rollup"
	TypeMetricCleanup         = "metric_cleanup"
	TypeAlertRecorrelate      = "alert_recorrelate"
	TypeAlertRescore          = "alert_rescore"
	TypePlaybookExecute       = "playbook_execute"
	TypeRecommendationRefresh = "recommendation_refresh"
	TypeCorrelationCloseStale = "correlation_close_stale"
)

// Entity types jobs are keyed on for EnqueueIfIdle.
const (
	EntityTenant            = "tenant"
	EntityPlaybookExecution = "playbook_execution"
	EntitySystem            = "system"
)
