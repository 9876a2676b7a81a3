package audit

import "strings"

// Decision is the reviewer's answer to an audit report.
type Decision string

const (
	DecisionApproved          Decision = "approved"
	DecisionApprovedDefault   Decision = "approved_default"
	DecisionRevisionRequested Decision = "revision_requested"
	DecisionEscalated         Decision = "escalated"
	DecisionCancelled         Decision = "cancelled"
)

// ParseDecision maps the A/R/E/C answer to a decision. Anything else
// approves by default.
func ParseDecision(s string) Decision {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a":
		return DecisionApproved
	case "r":
		return DecisionRevisionRequested
	case "e":
		return DecisionEscalated
	case "c":
		return DecisionCancelled
	default:
		return DecisionApprovedDefault
	}
}

// Proceeds reports whether the task continues to review. Revision and
// cancellation block it.
func (d Decision) Proceeds() bool {
	return d != DecisionRevisionRequested && d != DecisionCancelled
}
