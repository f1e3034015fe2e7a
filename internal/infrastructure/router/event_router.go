package router

import (
	"sync"

	"tcar-claims-service/internal/domain/entity"
	"tcar-claims-service/internal/usecase"
	"tcar-claims-service/pkg/logger"
)

// EventRouter routes workflow events to registered handlers
type EventRouter struct {
	mu       sync.RWMutex
	handlers []usecase.EventHandler
	logger   logger.Logger
}

// NewEventRouter creates a new event router
func NewEventRouter(logger logger.Logger) *EventRouter {
	return &EventRouter{
		handlers: make([]usecase.EventHandler, 0),
		logger:   logger,
	}
}

// Register registers a handler
func (r *EventRouter) Register(handler usecase.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers = append(r.handlers, handler)
	r.logger.Info("Registered handler", "handler", handler.Name())
}

// HandlersFor returns the handlers for an event
func (r *EventRouter) HandlersFor(key entity.EventKey) []usecase.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []usecase.EventHandler
	for _, handler := range r.handlers {
		if handler.CanHandle(key) {
			matched = append(matched, handler)
		}
	}
	return matched
}
