package domain

const (
	CanonicalEventClassDomain        = "domain"
	CanonicalEventClassAnalyticsOnly = "analytics_only"
	CanonicalEventClassOps           = "ops"
)

const (
	EventAgentRegistered      = "agent.registered"
	EventServiceRegistered    = "service.registered"
	EventTransactionCompleted = "transaction.completed"
	EventDisputeFiled         = "dispute.filed"
	EventDisputeResolved      = "dispute.resolved"
	EventEvidenceCommitted    = "evidence.committed"
)

func IsCanonicalInputEvent(string) bool { return false }

func IsCanonicalEmittedEvent(eventType string) bool {
	switch eventType {
	case EventAgentRegistered, EventServiceRegistered, EventTransactionCompleted,
		EventDisputeFiled, EventDisputeResolved, EventEvidenceCommitted:
		return true
	default:
		return false
	}
}

func CanonicalEventClass(eventType string) string {
	switch eventType {
	case EventTransactionCompleted, EventDisputeFiled, EventDisputeResolved:
		return CanonicalEventClassDomain
	case EventAgentRegistered, EventServiceRegistered, EventEvidenceCommitted:
		return CanonicalEventClassAnalyticsOnly
	default:
		return ""
	}
}

func CanonicalPartitionKeyPath(eventType string) string {
	switch eventType {
	case EventAgentRegistered:
		return "data.agent"
	case EventServiceRegistered:
		return "data.service_id"
	case EventTransactionCompleted:
		return "data.transaction_id"
	case EventDisputeFiled, EventDisputeResolved:
		return "data.dispute_id"
	case EventEvidenceCommitted:
		return "data.key"
	default:
		return ""
	}
}
