package service

import (
	"context"
	"strings"
	"time"

	"opsboard/internal/core"
	"opsboard/internal/logger"
)

type TicketService struct {
	repo core.TicketRepository
	now  func() time.Time
}

func NewTicketService(repo core.TicketRepository) *TicketService {
	return &TicketService{repo: repo, now: time.Now}
}

func (s *TicketService) List(ctx context.Context) ([]core.ITTicket, error) {
	tickets, err := s.repo.List(ctx)
	if err != nil {
		return nil, storeFailed(err)
	}
	return tickets, nil
}

func (s *TicketService) Get(ctx context.Context, id int64) (*core.ITTicket, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeFailed(err)
	}
	if t == nil {
		return nil, notFound("ticket", id)
	}
	return t, nil
}

func (s *TicketService) ListByStatus(ctx context.Context, status core.Status) ([]core.ITTicket, error) {
	if err := checkStatus(status, core.TicketStatuses); err != nil {
		return nil, err
	}
	return s.listBy(ctx, "status", string(status))
}

func (s *TicketService) ListByPriority(ctx context.Context, priority core.Level) ([]core.ITTicket, error) {
	if err := checkLevel("Priority", priority); err != nil {
		return nil, err
	}
	return s.listBy(ctx, "priority", string(priority))
}

func (s *TicketService) ListByAssignee(ctx context.Context, assignee string) ([]core.ITTicket, error) {
	if assignee == "" {
		return nil, core.InvalidInput("Assignee is required")
	}
	return s.listBy(ctx, "assigned_to", assignee)
}

func (s *TicketService) listBy(ctx context.Context, column, value string) ([]core.ITTicket, error) {
	tickets, err := s.repo.ListBy(ctx, column, value)
	if err != nil {
		return nil, storeFailed(err)
	}
	return tickets, nil
}

// Create opens a ticket created now. A blank assignee leaves it unassigned.
func (s *TicketService) Create(ctx context.Context, priority core.Level, description string, assignedTo string) (int64, error) {
	if err := checkLevel("Priority", priority); err != nil {
		return 0, err
	}
	if strings.TrimSpace(description) == "" {
		return 0, core.InvalidInput("Description is required")
	}

	t := &core.ITTicket{
		Priority:    priority,
		Description: description,
		Status:      core.StatusOpen,
		AssignedTo:  core.OptionalString(assignedTo),
		CreatedAt:   s.now(),
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return 0, storeFailed(err)
	}
	logger.Info.Printf("Created %s", t)
	return t.ID, nil
}

func (s *TicketService) UpdateStatus(ctx context.Context, id int64, status core.Status) (bool, error) {
	if err := checkStatus(status, core.TicketStatuses); err != nil {
		return false, err
	}
	ok, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return false, storeFailed(err)
	}
	return ok, nil
}

// Assign hands the ticket to assignee; blank unassigns it.
func (s *TicketService) Assign(ctx context.Context, id int64, assignee string) (bool, error) {
	ok, err := s.repo.Assign(ctx, id, core.OptionalString(assignee))
	if err != nil {
		return false, storeFailed(err)
	}
	return ok, nil
}

// UpdateStatusAndAssign applies both changes atomically.
func (s *TicketService) UpdateStatusAndAssign(ctx context.Context, id int64, status core.Status, assignee string) (bool, error) {
	if err := checkStatus(status, core.TicketStatuses); err != nil {
		return false, err
	}
	ok, err := s.repo.UpdateStatusAndAssign(ctx, id, status, core.OptionalString(assignee))
	if err != nil {
		return false, storeFailed(err)
	}
	return ok, nil
}

func (s *TicketService) Close(ctx context.Context, id int64) (bool, error) {
	return s.UpdateStatus(ctx, id, core.StatusClosed)
}

func (s *TicketService) Delete(ctx context.Context, id int64) (bool, error) {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, storeFailed(err)
	}
	return ok, nil
}

// Statistics counts tickets by status and priority and averages the
// resolution time of tickets that have one.
func (s *TicketService) Statistics(ctx context.Context) (core.TicketStats, error) {
	byStatus, err := s.repo.CountBy(ctx, "status")
	if err != nil {
		return core.TicketStats{}, storeFailed(err)
	}
	byPriority, err := s.repo.CountBy(ctx, "priority")
	if err != nil {
		return core.TicketStats{}, storeFailed(err)
	}
	avg, err := s.repo.AvgResolutionHours(ctx)
	if err != nil {
		return core.TicketStats{}, storeFailed(err)
	}

	return core.TicketStats{
		Total:              byStatus.Sum(),
		ByStatus:           withZeroGroups(byStatus, core.TicketStatuses),
		ByPriority:         withZeroGroups(byPriority, core.Levels),
		AvgResolutionHours: round2(avg),
	}, nil
}
