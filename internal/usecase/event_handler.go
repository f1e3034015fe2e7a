package usecase

import (
	"context"

	"tcar-claims-service/internal/domain/entity"
)

// EventHandler defines the interface for workflow side effects
type EventHandler interface {
	// Name identifies the handler in logs and metrics
	Name() string

	// CanHandle determines if this handler reacts to the given event
	CanHandle(key entity.EventKey) bool

	// Handle performs the side effect for a persisted claim change
	Handle(ctx context.Context, event *entity.WorkflowEvent) error
}

// EventRouter routes workflow events to the handlers interested in them
type EventRouter interface {
	// Register registers a handler
	Register(handler EventHandler)

	// HandlersFor returns every handler that can process the event, in
	// registration order
	HandlersFor(key entity.EventKey) []EventHandler
}
