package relay

// Topic naming convention shared by hosts and controllers. Per-display
// topics carry control traffic; the per-tenant topic carries the
// presence roster.

// CommandTopic carries controller-to-host commands
func CommandTopic(displayID string) string {
	return "display:" + displayID + ":command"
}

// StateTopic carries host state broadcasts; the latest state is
// retained so new subscribers get an immediate snapshot
func StateTopic(displayID string) string {
	return "display:" + displayID + ":state"
}

// PingTopic carries connectivity probes, independent of application
// state
func PingTopic(displayID string) string {
	return "display:" + displayID + ":ping"
}

// PongTopic carries probe answers
func PongTopic(displayID string) string {
	return "display:" + displayID + ":pong"
}

// PresenceTopic carries join/leave roster events for a tenant
func PresenceTopic(tenantID string) string {
	return "tenant:" + tenantID + ":presence"
}
