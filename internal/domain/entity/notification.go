package entity

import (
	"fmt"
	"net/mail"
	"strings"

	"tcar-claims-service/pkg/apperror"
)

// EventKey names a workflow checkpoint that may notify recipients
type EventKey string

// Workflow events
const (
	EventClaimCreated            EventKey = "onClaimCreated"
	EventClaimAccepted           EventKey = "onClaimAccepted"
	EventCountermeasureSubmitted EventKey = "onCountermeasureSubmitted"
	EventTechnicalApproved       EventKey = "onTechnicalApproved"
)

// EventKeys lists every workflow event in lifecycle order
var EventKeys = []EventKey{
	EventClaimCreated,
	EventClaimAccepted,
	EventCountermeasureSubmitted,
	EventTechnicalApproved,
}

// WorkflowEvent is handed to notification handlers after a claim change has
// been persisted
type WorkflowEvent struct {
	Key   EventKey
	Claim *Claim
}

// NotificationGroup is a named list of recipients
type NotificationGroup struct {
	ID     string   `json:"id" bson:"id"`
	Name   string   `json:"name" bson:"name"`
	Emails []string `json:"emails" bson:"emails"`
}

// WorkflowNotificationSettings maps each event to the group ids to notify
type WorkflowNotificationSettings struct {
	OnClaimCreated            []string `json:"onClaimCreated" bson:"onClaimCreated"`
	OnClaimAccepted           []string `json:"onClaimAccepted" bson:"onClaimAccepted"`
	OnCountermeasureSubmitted []string `json:"onCountermeasureSubmitted" bson:"onCountermeasureSubmitted"`
	OnTechnicalApproved       []string `json:"onTechnicalApproved" bson:"onTechnicalApproved"`
}

// NotificationSettings is the persisted recipient configuration
type NotificationSettings struct {
	Groups           []NotificationGroup          `json:"groups" bson:"groups"`
	WorkflowSettings WorkflowNotificationSettings `json:"workflowSettings" bson:"workflowSettings"`
}

// DefaultNotificationSettings returns empty settings with every list non-nil.
func DefaultNotificationSettings() *NotificationSettings {
	s := &NotificationSettings{}
	s.Normalize()
	return s
}

// GroupsFor returns the group ids selected for an event.
func (w *WorkflowNotificationSettings) GroupsFor(key EventKey) []string {
	switch key {
	case EventClaimCreated:
		return w.OnClaimCreated
	case EventClaimAccepted:
		return w.OnClaimAccepted
	case EventCountermeasureSubmitted:
		return w.OnCountermeasureSubmitted
	case EventTechnicalApproved:
		return w.OnTechnicalApproved
	}
	return nil
}

// Validate reports every group email that is not a single RFC 5322 address.
// Blank entries are not errors, Normalize drops them.
func (s *NotificationSettings) Validate() error {
	invalid := map[string]string{}
	for i, g := range s.Groups {
		for j, e := range g.Emails {
			if strings.TrimSpace(e) == "" {
				continue
			}
			if _, ok := cleanEmail(e); !ok {
				invalid[fmt.Sprintf("groups[%d].emails[%d]", i, j)] = "invalid email address"
			}
		}
	}
	if len(invalid) == 0 {
		return nil
	}
	err := apperror.Validation("invalid notification settings")
	for field, msg := range invalid {
		err = err.WithDetail(field, msg)
	}
	return err
}

// Normalize drops groups without id or name, reduces emails to their bare
// address and drops blank or unparseable ones, and replaces nil lists with
// empty ones.
func (s *NotificationSettings) Normalize() {
	groups := make([]NotificationGroup, 0, len(s.Groups))
	for _, g := range s.Groups {
		g.ID = strings.TrimSpace(g.ID)
		g.Name = strings.TrimSpace(g.Name)
		if g.ID == "" || g.Name == "" {
			continue
		}
		emails := make([]string, 0, len(g.Emails))
		for _, e := range g.Emails {
			if addr, ok := cleanEmail(e); ok {
				emails = append(emails, addr)
			}
		}
		g.Emails = emails
		groups = append(groups, g)
	}
	s.Groups = groups

	w := &s.WorkflowSettings
	w.OnClaimCreated = nonNil(w.OnClaimCreated)
	w.OnClaimAccepted = nonNil(w.OnClaimAccepted)
	w.OnCountermeasureSubmitted = nonNil(w.OnCountermeasureSubmitted)
	w.OnTechnicalApproved = nonNil(w.OnTechnicalApproved)
}

// RecipientsFor returns the de-duplicated emails of every group selected for
// the event, in group order.
func (s *NotificationSettings) RecipientsFor(key EventKey) []string {
	selected := make(map[string]bool)
	for _, id := range s.WorkflowSettings.GroupsFor(key) {
		selected[id] = true
	}

	seen := make(map[string]bool)
	emails := []string{}
	for _, g := range s.Groups {
		if !selected[g.ID] {
			continue
		}
		for _, e := range g.Emails {
			addr, ok := cleanEmail(e)
			if !ok || seen[addr] {
				continue
			}
			seen[addr] = true
			emails = append(emails, addr)
		}
	}
	return emails
}

// cleanEmail parses one address and returns its bare form. Values carrying
// line breaks never pass, whatever the parser makes of them.
func cleanEmail(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, "\r\n") {
		return "", false
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return "", false
	}
	return addr.Address, true
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
