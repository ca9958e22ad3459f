package service

import (
	"context"
	"strings"
	"time"

	"opsboard/internal/core"
	"opsboard/internal/logger"
)

type IncidentService struct {
	repo core.IncidentRepository
	now  func() time.Time
}

func NewIncidentService(repo core.IncidentRepository) *IncidentService {
	return &IncidentService{repo: repo, now: time.Now}
}

// List returns every incident, newest first.
func (s *IncidentService) List(ctx context.Context) ([]core.SecurityIncident, error) {
	incidents, err := s.repo.List(ctx)
	if err != nil {
		return nil, storeFailed(err)
	}
	return incidents, nil
}

func (s *IncidentService) Get(ctx context.Context, id int64) (*core.SecurityIncident, error) {
	inc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeFailed(err)
	}
	if inc == nil {
		return nil, notFound("incident", id)
	}
	return inc, nil
}

func (s *IncidentService) ListBySeverity(ctx context.Context, severity core.Level) ([]core.SecurityIncident, error) {
	if err := checkLevel("Severity", severity); err != nil {
		return nil, err
	}
	incidents, err := s.repo.ListBySeverity(ctx, severity)
	if err != nil {
		return nil, storeFailed(err)
	}
	return incidents, nil
}

func (s *IncidentService) ListByStatus(ctx context.Context, status core.Status) ([]core.SecurityIncident, error) {
	if err := checkStatus(status, core.IncidentStatuses); err != nil {
		return nil, err
	}
	incidents, err := s.repo.ListByStatus(ctx, status)
	if err != nil {
		return nil, storeFailed(err)
	}
	return incidents, nil
}

// Create records a new Open incident timestamped now and returns its id.
func (s *IncidentService) Create(ctx context.Context, category string, severity core.Level, description string, reportedBy *string) (int64, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return 0, core.InvalidInput("Category is required")
	}
	if err := checkLevel("Severity", severity); err != nil {
		return 0, err
	}

	inc := &core.SecurityIncident{
		Category:    category,
		Severity:    severity,
		Status:      core.StatusOpen,
		Description: description,
		Timestamp:   s.now(),
		ReportedBy:  reportedBy,
	}
	if err := s.repo.Create(ctx, inc); err != nil {
		return 0, storeFailed(err)
	}
	logger.Info.Printf("Created %s", inc)
	return inc.ID, nil
}

// UpdateStatus reports false when no incident has that id.
func (s *IncidentService) UpdateStatus(ctx context.Context, id int64, status core.Status) (bool, error) {
	if err := checkStatus(status, core.IncidentStatuses); err != nil {
		return false, err
	}
	ok, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return false, storeFailed(err)
	}
	return ok, nil
}

func (s *IncidentService) Delete(ctx context.Context, id int64) (bool, error) {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, storeFailed(err)
	}
	return ok, nil
}

func (s *IncidentService) CountByCategory(ctx context.Context) (core.Counts, error) {
	counts, err := s.repo.CountBy(ctx, "category")
	if err != nil {
		return nil, storeFailed(err)
	}
	return counts, nil
}

// HighSeverityByStatus counts High severity incidents per status.
func (s *IncidentService) HighSeverityByStatus(ctx context.Context) (core.Counts, error) {
	counts, err := s.repo.StatusCountsForSeverity(ctx, core.LevelHigh)
	if err != nil {
		return nil, storeFailed(err)
	}
	return counts, nil
}

// Statistics groups incidents by category, severity and status. Known
// severities and statuses with no incidents are reported as 0.
func (s *IncidentService) Statistics(ctx context.Context) (core.IncidentStats, error) {
	byCategory, err := s.repo.CountBy(ctx, "category")
	if err != nil {
		return core.IncidentStats{}, storeFailed(err)
	}
	bySeverity, err := s.repo.CountBy(ctx, "severity")
	if err != nil {
		return core.IncidentStats{}, storeFailed(err)
	}
	byStatus, err := s.repo.CountBy(ctx, "status")
	if err != nil {
		return core.IncidentStats{}, storeFailed(err)
	}

	return core.IncidentStats{
		Total:      byStatus.Sum(),
		ByCategory: byCategory,
		BySeverity: withZeroGroups(bySeverity, core.Levels),
		ByStatus:   withZeroGroups(byStatus, core.IncidentStatuses),
	}, nil
}
