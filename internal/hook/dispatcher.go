package hook

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/ayusman/lizard/internal/logger"
)

// Dispatcher delivers session events to every hook that handles them.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
	log      *zap.Logger
	wg       sync.WaitGroup
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(manager *Manager, executor *Executor, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		manager:  manager,
		executor: executor,
		log:      logger.OrNop(log).Named("hook"),
	}
}

// Dispatch runs the hooks for event one after another and returns the
// number that succeeded. Failures are logged.
func (d *Dispatcher) Dispatch(ctx context.Context, event, sessionID string, payload any) int {
	hooks := d.manager.For(event)
	if len(hooks) == 0 {
		return 0
	}

	data, err := json.Marshal(payload)
	if err != nil {
		d.log.Error("failed to encode payload", zap.String("event", event), zap.Error(err))
		return 0
	}

	ok := 0
	for _, h := range hooks {
		resp, err := d.executor.Execute(ctx, h, &Request{
			Event:     event,
			SessionID: sessionID,
			Payload:   data,
		})
		switch {
		case err != nil:
			d.log.Warn("hook failed", zap.String("hook", h.Manifest.Name), zap.String("event", event), zap.Error(err))
		case !resp.Success:
			d.log.Warn("hook reported failure", zap.String("hook", h.Manifest.Name), zap.String("event", event), zap.String("error", resp.Error))
		default:
			ok++
			d.log.Debug("hook ran", zap.String("hook", h.Manifest.Name), zap.String("event", event))
		}
	}
	return ok
}

// Fire dispatches event in the background.
func (d *Dispatcher) Fire(event, sessionID string, payload any) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.Dispatch(context.Background(), event, sessionID, payload)
	}()
}

// Wait blocks until every fired event has been delivered.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
