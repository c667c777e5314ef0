package controller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/clambin/zoned/internal/configuration"
	"github.com/clambin/zoned/internal/controller/notifier"
	"github.com/clambin/zoned/internal/poller"
	"github.com/clambin/zoned/internal/store"
	"golang.org/x/sync/errgroup"
)

// A Manager creates one Controller per configured thermostat, runs them and
// routes name-addressed requests to the right one.
type Manager struct {
	controllers []*Controller
	logger      *slog.Logger
}

func NewManager(cfg configuration.Configuration, p poller.Poller, devices DeviceSetter, db *store.Store, bot notifier.SlackSender, metrics *Metrics, logger *slog.Logger) *Manager {
	m := Manager{logger: logger}
	for _, controllerCfg := range cfg.Controllers {
		m.controllers = append(m.controllers, New(
			controllerCfg, p, devices, db, bot, metrics,
			logger.With(slog.String("controller", controllerCfg.Name)),
		))
	}
	return &m
}

// Run starts all controllers and waits for them to terminate.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Debug("controller manager starting")
	defer m.logger.Debug("controller manager stopping")

	var g errgroup.Group
	for _, c := range m.controllers {
		g.Go(func() error { return c.Run(ctx) })
	}
	return g.Wait()
}

// Controllers returns the names of all managed controllers, in configuration
// order.
func (m *Manager) Controllers() []string {
	names := make([]string, 0, len(m.controllers))
	for _, c := range m.controllers {
		names = append(names, c.Name())
	}
	return names
}

func (m *Manager) controller(name string) (*Controller, error) {
	for _, c := range m.controllers {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Pause pauses the named controller.
func (m *Manager) Pause(ctx context.Context, name string) error {
	c, err := m.controller(name)
	if err != nil {
		return err
	}
	return c.Pause(ctx)
}

// Resume lifts the named controller's pause.
func (m *Manager) Resume(ctx context.Context, name string) error {
	c, err := m.controller(name)
	if err != nil {
		return err
	}
	return c.Resume(ctx)
}

// Recalculate forces a fresh evaluation cycle on the named controller.
func (m *Manager) Recalculate(ctx context.Context, name string) error {
	c, err := m.controller(name)
	if err != nil {
		return err
	}
	return c.Recalculate(ctx)
}

// Set changes a runtime setting on the named controller.
func (m *Manager) Set(ctx context.Context, name, setting, value string) error {
	c, err := m.controller(name)
	if err != nil {
		return err
	}
	return c.Set(ctx, setting, value)
}

// Status returns the named controller's latest status. It is nil when the
// controller has not yet published one.
func (m *Manager) Status(name string) (*Status, error) {
	c, err := m.controller(name)
	if err != nil {
		return nil, err
	}
	return c.Status(), nil
}

// Statuses returns the latest status of every controller that has published
// one.
func (m *Manager) Statuses() []*Status {
	statuses := make([]*Status, 0, len(m.controllers))
	for _, c := range m.controllers {
		if status := c.Status(); status != nil {
			statuses = append(statuses, status)
		}
	}
	return statuses
}
