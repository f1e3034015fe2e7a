package entity

// ClaimStatus is the workflow phase of a claim
type ClaimStatus string

// Claim workflow phases
const (
	StatusPendingAcceptance     ClaimStatus = "PENDING_ACCEPTANCE"
	StatusPendingCountermeasure ClaimStatus = "PENDING_COUNTERMEASURE"
	StatusCompleted             ClaimStatus = "COMPLETED"
)

// ValidClaimTransitions lists the statuses reachable from each status.
// COMPLETED -> PENDING_COUNTERMEASURE is the "request changes" regression.
var ValidClaimTransitions = map[ClaimStatus][]ClaimStatus{
	StatusPendingAcceptance:     {StatusPendingCountermeasure},
	StatusPendingCountermeasure: {StatusPendingCountermeasure, StatusCompleted},
	StatusCompleted:             {StatusPendingCountermeasure},
}

// Valid reports whether s is a known status.
func (s ClaimStatus) Valid() bool {
	_, ok := ValidClaimTransitions[s]
	return ok
}

// IsTerminal reports whether s is the final phase.
func (s ClaimStatus) IsTerminal() bool {
	return s == StatusCompleted
}

// CanTransitionTo reports whether the table allows moving from s to next.
func (s ClaimStatus) CanTransitionTo(next ClaimStatus) bool {
	for _, allowed := range ValidClaimTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
