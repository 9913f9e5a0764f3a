package rabbitmq

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/kbukum/service-template/component"
	apperrors "github.com/kbukum/service-template/errors"
)

// ensure Manager satisfies component.Component
var _ component.Component = (*Manager)(nil)

// Name returns the component name.
func (m *Manager) Name() string { return "rabbitmq" }

// Start connects to the broker. It fails the service start-up when the
// broker cannot be reached.
func (m *Manager) Start(ctx context.Context) error {
	return m.SetUp(ctx)
}

// Stop disconnects from the broker.
func (m *Manager) Stop(ctx context.Context) error {
	if !m.Disconnect(ctx) {
		return apperrors.BrokerConnection("disconnect", fmt.Errorf("rabbitmq left in state %s", m.State()))
	}
	return m.Wait(ctx)
}

// Health maps IsUp to a component health status.
func (m *Manager) Health(ctx context.Context) component.Health {
	if m.IsUp(ctx) {
		return component.Health{Name: m.Name(), Status: component.StatusHealthy}
	}
	return component.Health{
		Name:    m.Name(),
		Status:  component.StatusUnhealthy,
		Message: "state=" + m.State().String(),
	}
}

// Describe returns infrastructure summary info for the bootstrap display.
func (m *Manager) Describe() component.Description {
	desc := component.Description{
		Name:    "RabbitMQ",
		Type:    "broker",
		Details: m.cfg.Address(),
	}
	if u, err := url.Parse(m.cfg.URL); err == nil {
		desc.Details = u.Hostname()
		if port, err := strconv.Atoi(u.Port()); err == nil {
			desc.Port = port
		}
	}
	return desc
}
