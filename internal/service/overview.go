package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"opsboard/internal/core"
)

// OverviewService builds the dashboard summary.
type OverviewService struct {
	incidents *IncidentService
	datasets  *DatasetService
	tickets   *TicketService
}

func NewOverviewService(incidents *IncidentService, datasets *DatasetService, tickets *TicketService) *OverviewService {
	return &OverviewService{incidents: incidents, datasets: datasets, tickets: tickets}
}

// Summary gathers the three statistics concurrently. The first failure
// cancels the rest.
func (s *OverviewService) Summary(ctx context.Context) (core.Overview, error) {
	var out core.Overview
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		stats, err := s.incidents.Statistics(ctx)
		out.Incidents = stats
		return err
	})
	g.Go(func() error {
		stats, err := s.datasets.Statistics(ctx)
		out.Datasets = stats
		return err
	})
	g.Go(func() error {
		stats, err := s.tickets.Statistics(ctx)
		out.Tickets = stats
		return err
	})

	if err := g.Wait(); err != nil {
		return core.Overview{}, err
	}
	return out, nil
}
