package postgres

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/kbukum/service-template/component"
)

// ensure Store satisfies component.Component
var _ component.Component = (*Store)(nil)

// Name returns the component name.
func (s *Store) Name() string { return "postgres" }

// Start opens the connection pool.
func (s *Store) Start(ctx context.Context) error {
	if err := s.Open(ctx); err != nil {
		return fmt.Errorf("postgres start: %w", err)
	}
	return nil
}

// Stop closes the connection pool.
func (s *Store) Stop(_ context.Context) error {
	return s.Close()
}

// Health returns the current health status of the database.
func (s *Store) Health(ctx context.Context) component.Health {
	up, err := s.IsUp(ctx)
	switch {
	case err != nil:
		return component.Health{Name: s.Name(), Status: component.StatusUnhealthy, Message: err.Error()}
	case !up:
		return component.Health{Name: s.Name(), Status: component.StatusUnhealthy, Message: "database not open"}
	default:
		return component.Health{Name: s.Name(), Status: component.StatusHealthy}
	}
}

// Describe returns infrastructure summary info for the bootstrap display.
func (s *Store) Describe() component.Description {
	desc := component.Description{
		Name:    "PostgreSQL",
		Type:    "database",
		Details: fmt.Sprintf("pool=%d/%d", s.cfg.MaxOpenConns, s.cfg.MaxIdleConns),
	}
	if host, port, err := net.SplitHostPort(s.cfg.Address()); err == nil {
		desc.Details = host + " " + desc.Details
		desc.Port, _ = strconv.Atoi(port)
	}
	return desc
}
