package usecase

import (
	"strings"

	"tcar-claims-service/internal/domain/entity"
	"tcar-claims-service/pkg/apperror"
)

// Transition is the outcome of checking a patch against a claim's current
// status. Event is empty when the change notifies nobody.
type Transition struct {
	From  entity.ClaimStatus
	To    entity.ClaimStatus
	Event entity.EventKey
}

// Changed reports whether the status moves
func (t Transition) Changed() bool {
	return t.From != t.To
}

// ResolveTransition validates the status requested by patch against the
// claim's current status and returns which workflow event it fires.
//
// A patch without status, or one restating PENDING_ACCEPTANCE or COMPLETED,
// leaves the phase alone. Restating PENDING_COUNTERMEASURE is the
// countermeasure submission.
func ResolveTransition(claim *entity.Claim, patch *entity.ClaimPatch) (Transition, error) {
	current := claim.Status
	t := Transition{From: current, To: current}
	if patch.Status == nil {
		return t, nil
	}

	next := *patch.Status
	if !next.Valid() {
		return t, apperror.Validation("unknown status").WithDetail("status", string(next))
	}
	t.To = next

	if next == current && current != entity.StatusPendingCountermeasure {
		return t, nil
	}
	if !current.CanTransitionTo(next) {
		return t, apperror.InvalidTransition(string(current), string(next))
	}

	switch {
	case current == entity.StatusPendingAcceptance && next == entity.StatusPendingCountermeasure:
		if err := requireAssignees(claim, patch); err != nil {
			return t, err
		}
		t.Event = entity.EventClaimAccepted

	case current == entity.StatusPendingCountermeasure && next == entity.StatusPendingCountermeasure:
		t.Event = entity.EventCountermeasureSubmitted

	case next == entity.StatusCompleted:
		if err := requireActionText(patch); err != nil {
			return t, err
		}
		t.Event = entity.EventTechnicalApproved

	case current == entity.StatusCompleted && next == entity.StatusPendingCountermeasure:
		// request changes: sent back for rework without a notification
	}
	return t, nil
}

// requireAssignees checks that the accepted claim ends up with both
// assignees, taken from the patch when present and from the claim otherwise
func requireAssignees(claim *entity.Claim, patch *entity.ClaimPatch) error {
	err := apperror.Validation("acceptance requires a technical and a factory assignee")
	missing := false
	if isBlank(merged(patch.AssigneeTech, claim.AssigneeTech)) {
		err.WithDetail("assigneeTech", "is required")
		missing = true
	}
	if isBlank(merged(patch.AssigneeFactory, claim.AssigneeFactory)) {
		err.WithDetail("assigneeFactory", "is required")
		missing = true
	}
	if missing {
		return err
	}
	return nil
}

// requireActionText rejects blank corrective or preventive text on approval
func requireActionText(patch *entity.ClaimPatch) error {
	err := apperror.Validation("technical approval requires non-blank action text")
	blank := false
	if patch.CorrectiveAction != nil && isBlank(patch.CorrectiveAction) {
		err.WithDetail("correctiveAction", "must not be blank")
		blank = true
	}
	if patch.PreventiveAction != nil && isBlank(patch.PreventiveAction) {
		err.WithDetail("preventiveAction", "must not be blank")
		blank = true
	}
	if blank {
		return err
	}
	return nil
}

func merged(patched *string, current string) *string {
	if patched != nil {
		return patched
	}
	return &current
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
