package auth

const (
	RoleAdmin       = "admin"
	RoleOperator    = "operator"
	RoleViewer      = "viewer"
	RoleAnalyst     = "analyst"
	RoleIntegration = "integration"
)

const (
	CapAlertsRead        = "noc.alerts.read"
	CapAlertsWrite       = "noc.alerts.write"
	CapAlertsIngest      = "noc.alerts.ingest"
	CapIncidentsManage   = "noc.incidents.manage"
	CapPlaybooksManage   = "noc.playbooks.manage"
	CapPlaybooksApprove  = "noc.playbooks.approve"
	CapMetricsRead       = "noc.metrics.read"
	CapMetricsAdmin      = "noc.metrics.admin"
	CapAnalyticsRead     = "analytics.read"
	CapAnalyticsWrite    = "analytics.write"
	CapExperimentsManage = "experiments.manage"
	CapUsersManage       = "tenant.users.manage"
)

var roleCapabilities = map[string][]string{
	RoleAdmin: {
		CapAlertsRead, CapAlertsWrite, CapAlertsIngest, CapIncidentsManage,
		CapPlaybooksManage, CapPlaybooksApprove, CapMetricsRead, CapMetricsAdmin,
		CapAnalyticsRead, CapAnalyticsWrite, CapExperimentsManage, CapUsersManage,
	},
	RoleOperator: {
		CapAlertsRead, CapAlertsWrite, CapIncidentsManage, CapPlaybooksApprove,
		CapMetricsRead,
	},
	RoleViewer:      {CapAlertsRead, CapMetricsRead, CapAnalyticsRead},
	RoleAnalyst:     {CapMetricsRead, CapAnalyticsRead, CapAnalyticsWrite, CapExperimentsManage},
	RoleIntegration: {CapAlertsIngest, CapAnalyticsWrite},
}

func ValidRole(role string) bool {
	_, ok := roleCapabilities[role]
	return ok
}

// Capabilities returns the effective capability set for role; unknown roles get none.
func Capabilities(role string) map[string]bool {
	caps := roleCapabilities[role]
	out := make(map[string]bool, len(caps))
	for _, c := range caps {
		out[c] = true
	}
	return out
}

func HasCapability(role, capability string) bool {
	for _, c := range roleCapabilities[role] {
		if c == capability {
			return true
		}
	}
	return false
}
