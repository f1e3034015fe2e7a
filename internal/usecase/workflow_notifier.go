package usecase

import (
	"context"
	"sync"
	"time"

	"tcar-claims-service/internal/domain/entity"
	"tcar-claims-service/pkg/logger"
	"tcar-claims-service/pkg/metrics"
)

// Notifier receives workflow events once the claim change is persisted.
// Notify must not block and must not fail the caller.
type Notifier interface {
	Notify(key entity.EventKey, claim *entity.Claim)
}

// WorkflowNotifier queues workflow events and dispatches them to the router's
// handlers from a background worker
type WorkflowNotifier struct {
	router  EventRouter
	queue   chan *entity.WorkflowEvent
	timeout time.Duration
	metrics *metrics.Metrics
	logger  logger.Logger

	wg sync.WaitGroup
}

// NewWorkflowNotifier creates a notifier with a queue of queueSize events.
// Each dispatch runs under timeout.
func NewWorkflowNotifier(
	router EventRouter,
	queueSize int,
	timeout time.Duration,
	metrics *metrics.Metrics,
	logger logger.Logger,
) *WorkflowNotifier {
	if queueSize < 1 {
		queueSize = 1
	}
	return &WorkflowNotifier{
		router:  router,
		queue:   make(chan *entity.WorkflowEvent, queueSize),
		timeout: timeout,
		metrics: metrics,
		logger:  logger,
	}
}

// Notify enqueues the event. A full queue drops the event with a log line.
func (n *WorkflowNotifier) Notify(key entity.EventKey, claim *entity.Claim) {
	event := &entity.WorkflowEvent{Key: key, Claim: claim.Clone()}

	select {
	case n.queue <- event:
		n.metrics.NotificationsQueued.Inc()
	default:
		n.metrics.NotificationsTotal.WithLabelValues(string(key), "dropped").Inc()
		n.logger.Warn("Notification queue full, dropping event",
			"event", key,
			"tcarNo", claim.TcarNo)
	}
}

// Start launches the dispatch worker. It runs until ctx is cancelled, then
// drains what is left in the queue.
func (n *WorkflowNotifier) Start(ctx context.Context) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.run(ctx)
	}()
}

func (n *WorkflowNotifier) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			n.drain()
			n.logger.Info("Workflow notifier stopped")
			return
		case event := <-n.queue:
			n.metrics.NotificationsQueued.Dec()
			n.Dispatch(context.Background(), event)
		}
	}
}

// Wait blocks until the worker started by Start has returned
func (n *WorkflowNotifier) Wait() {
	n.wg.Wait()
}

func (n *WorkflowNotifier) drain() {
	for {
		select {
		case event := <-n.queue:
			n.metrics.NotificationsQueued.Dec()
			n.Dispatch(context.Background(), event)
		default:
			return
		}
	}
}

// Dispatch runs every handler registered for the event. Handler errors are
// logged and swallowed.
func (n *WorkflowNotifier) Dispatch(ctx context.Context, event *entity.WorkflowEvent) {
	handlers := n.router.HandlersFor(event.Key)
	if len(handlers) == 0 {
		n.logger.Debug("No handler found for event", "event", event.Key)
		return
	}

	for _, handler := range handlers {
		n.runHandler(ctx, handler, event)
	}
}

func (n *WorkflowNotifier) runHandler(ctx context.Context, handler EventHandler, event *entity.WorkflowEvent) {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			n.metrics.NotificationsTotal.WithLabelValues(string(event.Key), "failed").Inc()
			n.logger.Error("Handler panicked",
				"handler", handler.Name(),
				"event", event.Key,
				"panic", r)
		}
	}()

	if err := handler.Handle(ctx, event); err != nil {
		n.metrics.NotificationsTotal.WithLabelValues(string(event.Key), "failed").Inc()
		n.logger.Error("Handler failed to process event",
			"handler", handler.Name(),
			"event", event.Key,
			"tcarNo", event.Claim.TcarNo,
			"error", err)
		return
	}

	n.metrics.NotificationsTotal.WithLabelValues(string(event.Key), "sent").Inc()
	n.logger.Info("Event processed successfully",
		"handler", handler.Name(),
		"event", event.Key,
		"tcarNo", event.Claim.TcarNo)
}
