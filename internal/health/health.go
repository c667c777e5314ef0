package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/clambin/zoned/internal/controller"
	"github.com/clambin/zoned/internal/poller"
)

// Statuses returns the most recent status of every controller.
type Statuses interface {
	Statuses() []*controller.Status
}

type Health struct {
	poller.Poller
	controllers Statuses
	logger      *slog.Logger
	update      poller.Update
	updated     bool
	lock        sync.RWMutex
}

func New(p poller.Poller, controllers Statuses, logger *slog.Logger) *Health {
	return &Health{
		Poller:      p,
		controllers: controllers,
		logger:      logger,
	}
}

func (h *Health) Run(ctx context.Context) error {
	h.logger.Debug("started")
	defer h.logger.Debug("stopped")

	ch := h.Poller.Subscribe()
	defer h.Poller.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-ch:
			h.lock.Lock()
			h.update = update
			h.updated = true
			h.lock.Unlock()
		}
	}
}

type report struct {
	Updated     time.Time            `json:"updated"`
	Age         string               `json:"age"`
	Devices     int                  `json:"devices"`
	Controllers []*controller.Status `json:"controllers"`
}

func (h *Health) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.lock.RLock()
	defer h.lock.RUnlock()
	if !h.updated {
		http.Error(w, "no update yet", http.StatusServiceUnavailable)
		h.Poller.Refresh()
		return
	}

	w.Header().Set("Content-Type", "application/json")

	r := report{
		Updated: h.update.Timestamp,
		Age:     time.Since(h.update.Timestamp).Round(time.Second).String(),
		Devices: len(h.update.Devices),
	}
	if h.controllers != nil {
		r.Controllers = h.controllers.Statuses()
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(r); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
