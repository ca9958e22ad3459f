package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"opsboard/internal/core"
)

const ticketColumns = `ticket_id, priority, description, status, assigned_to, created_at, resolution_time_hours`

// ticketFilterColumns whitelists the columns tickets can be filtered or grouped by.
var ticketFilterColumns = map[string]bool{
	"status":      true,
	"priority":    true,
	"assigned_to": true,
}

type TicketRepo struct {
	store Querier
	tx    func(ctx context.Context, fn func(q Querier) error) error
}

// NewTicketRepo builds a ticket repository over the store. Multi-statement
// updates run in a store transaction.
func NewTicketRepo(store *Store) *TicketRepo {
	return &TicketRepo{store: store, tx: store.InTx}
}

type ticketRow struct {
	id          int64
	priority    string
	description string
	status      string
	assignedTo  sql.NullString
	createdAt   string
	resolution  sql.NullFloat64
}

func (r *ticketRow) dest() []any {
	return []any{&r.id, &r.priority, &r.description, &r.status, &r.assignedTo, &r.createdAt, &r.resolution}
}

func (r *ticketRow) ticket() (core.ITTicket, error) {
	created, err := core.ParseTime(r.createdAt)
	if err != nil {
		return core.ITTicket{}, fmt.Errorf("ticket %d created_at: %w", r.id, err)
	}
	t := core.ITTicket{
		ID:          r.id,
		Priority:    core.Level(r.priority),
		Description: r.description,
		Status:      core.Status(r.status),
		CreatedAt:   created,
	}
	if r.assignedTo.Valid {
		a := r.assignedTo.String
		t.AssignedTo = &a
	}
	if r.resolution.Valid {
		h := r.resolution.Float64
		t.ResolutionTimeHours = &h
	}
	return t, nil
}

func (r *TicketRepo) list(ctx context.Context, op, where string, params core.Params) ([]core.ITTicket, error) {
	query := `SELECT ` + ticketColumns + ` FROM it_tickets`
	if where != "" {
		query += ` WHERE ` + where
	}
	query += ` ORDER BY ticket_id DESC`

	tickets := []core.ITTicket{}
	err := r.store.FetchAll(ctx, query, params, func(scan ScanFunc) error {
		var row ticketRow
		if err := scan(row.dest()...); err != nil {
			return err
		}
		t, err := row.ticket()
		if err != nil {
			return err
		}
		tickets = append(tickets, t)
		return nil
	})
	if err != nil {
		return nil, core.WrapStore(op, err)
	}
	return tickets, nil
}

func (r *TicketRepo) List(ctx context.Context) ([]core.ITTicket, error) {
	return r.list(ctx, "list tickets", "", nil)
}

// ListBy filters on status, priority or assigned_to
func (r *TicketRepo) ListBy(ctx context.Context, column, value string) ([]core.ITTicket, error) {
	if !ticketFilterColumns[column] {
		return nil, fmt.Errorf("cannot filter tickets by %q", column)
	}
	return r.list(ctx, "list tickets by "+column, column+` = {value}`, core.Params{"value": value})
}

func (r *TicketRepo) GetByID(ctx context.Context, id int64) (*core.ITTicket, error) {
	var row ticketRow
	found, err := r.store.FetchOne(ctx,
		`SELECT `+ticketColumns+` FROM it_tickets WHERE ticket_id = {id}`,
		core.Params{"id": id}, row.dest()...)
	if err != nil {
		return nil, core.WrapStore("get ticket", err)
	}
	if !found {
		//nolint:nilnil
		return nil, nil
	}
	t, err := row.ticket()
	if err != nil {
		return nil, core.WrapStore("get ticket", err)
	}
	return &t, nil
}

func (r *TicketRepo) Create(ctx context.Context, t *core.ITTicket) error {
	var assignedTo, resolution any
	if t.AssignedTo != nil {
		assignedTo = *t.AssignedTo
	}
	if t.ResolutionTimeHours != nil {
		resolution = *t.ResolutionTimeHours
	}
	id, err := r.store.Insert(ctx, "it_tickets", "ticket_id", core.Params{
		"priority":              string(t.Priority),
		"description":           t.Description,
		"status":                string(t.Status),
		"assigned_to":           assignedTo,
		"created_at":            core.FormatTimestamp(t.CreatedAt),
		"resolution_time_hours": resolution,
	})
	if err != nil {
		return core.WrapStore("create ticket", err)
	}
	t.ID = id
	t.CreatedAt = t.CreatedAt.Truncate(time.Second)
	return nil
}

func (r *TicketRepo) UpdateStatus(ctx context.Context, id int64, status core.Status) (bool, error) {
	n, err := updateTicketStatus(ctx, r.store, id, status)
	if err != nil {
		return false, core.WrapStore("update ticket status", err)
	}
	return n > 0, nil
}

// Assign sets or clears (nil) the assignee
func (r *TicketRepo) Assign(ctx context.Context, id int64, assignee *string) (bool, error) {
	n, err := assignTicket(ctx, r.store, id, assignee)
	if err != nil {
		return false, core.WrapStore("assign ticket", err)
	}
	return n > 0, nil
}

// UpdateStatusAndAssign changes status and assignee in one transaction, so a
// failure between the two writes leaves the ticket untouched.
func (r *TicketRepo) UpdateStatusAndAssign(ctx context.Context, id int64, status core.Status, assignee *string) (bool, error) {
	var updated bool
	err := r.tx(ctx, func(q Querier) error {
		n, err := updateTicketStatus(ctx, q, id, status)
		if err != nil || n == 0 {
			return err
		}
		if _, err := assignTicket(ctx, q, id, assignee); err != nil {
			return err
		}
		updated = true
		return nil
	})
	if err != nil {
		return false, core.WrapStore("update ticket", err)
	}
	return updated, nil
}

func (r *TicketRepo) Delete(ctx context.Context, id int64) (bool, error) {
	n, err := r.store.Exec(ctx, `DELETE FROM it_tickets WHERE ticket_id = {id}`, core.Params{"id": id})
	if err != nil {
		return false, core.WrapStore("delete ticket", err)
	}
	return n > 0, nil
}

// CountBy groups tickets by status, priority or assigned_to
func (r *TicketRepo) CountBy(ctx context.Context, column string) (core.Counts, error) {
	if !ticketFilterColumns[column] {
		return nil, fmt.Errorf("cannot group tickets by %q", column)
	}
	counts, err := countGroups(ctx, r.store, `SELECT `+column+`, COUNT(*) FROM it_tickets GROUP BY `+column, nil)
	if err != nil {
		return nil, core.WrapStore("count tickets by "+column, err)
	}
	return counts, nil
}

// AvgResolutionHours averages over tickets that have a resolution time; 0 when none do.
func (r *TicketRepo) AvgResolutionHours(ctx context.Context) (float64, error) {
	var avg sql.NullFloat64
	_, err := r.store.FetchOne(ctx,
		`SELECT AVG(resolution_time_hours * 1.0) FROM it_tickets WHERE resolution_time_hours IS NOT NULL`,
		nil, &avg)
	if err != nil {
		return 0, core.WrapStore("average resolution time", err)
	}
	return avg.Float64, nil
}

func updateTicketStatus(ctx context.Context, q Querier, id int64, status core.Status) (int64, error) {
	return q.Exec(ctx, `UPDATE it_tickets SET status = {status} WHERE ticket_id = {id}`,
		core.Params{"status": string(status), "id": id})
}

func assignTicket(ctx context.Context, q Querier, id int64, assignee *string) (int64, error) {
	var value any
	if assignee != nil {
		value = *assignee
	}
	return q.Exec(ctx, `UPDATE it_tickets SET assigned_to = {assigned_to} WHERE ticket_id = {id}`,
		core.Params{"assigned_to": value, "id": id})
}
