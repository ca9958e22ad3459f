package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"opsboard/internal/core"
)

const incidentColumns = `incident_id, reported_at, category, severity, status, description, reported_by`

// incidentGroupColumns whitelists the columns incidents can be counted by.
var incidentGroupColumns = map[string]bool{
	"category": true,
	"severity": true,
	"status":   true,
}

type IncidentRepo struct {
	store Querier
}

func NewIncidentRepo(store Querier) *IncidentRepo {
	return &IncidentRepo{store: store}
}

type incidentRow struct {
	id          int64
	reportedAt  string
	category    string
	severity    string
	status      string
	description string
	reportedBy  sql.NullString
}

func (r *incidentRow) dest() []any {
	return []any{&r.id, &r.reportedAt, &r.category, &r.severity, &r.status, &r.description, &r.reportedBy}
}

func (r *incidentRow) incident() (core.SecurityIncident, error) {
	ts, err := core.ParseTime(r.reportedAt)
	if err != nil {
		return core.SecurityIncident{}, fmt.Errorf("incident %d timestamp: %w", r.id, err)
	}
	inc := core.SecurityIncident{
		ID:          r.id,
		Category:    r.category,
		Severity:    core.Level(r.severity),
		Status:      core.Status(r.status),
		Description: r.description,
		Timestamp:   ts,
	}
	if r.reportedBy.Valid {
		by := r.reportedBy.String
		inc.ReportedBy = &by
	}
	return inc, nil
}

func (r *IncidentRepo) list(ctx context.Context, op, where string, params core.Params) ([]core.SecurityIncident, error) {
	query := `SELECT ` + incidentColumns + ` FROM cyber_incidents`
	if where != "" {
		query += ` WHERE ` + where
	}
	query += ` ORDER BY incident_id DESC`

	incidents := []core.SecurityIncident{}
	err := r.store.FetchAll(ctx, query, params, func(scan ScanFunc) error {
		var row incidentRow
		if err := scan(row.dest()...); err != nil {
			return err
		}
		inc, err := row.incident()
		if err != nil {
			return err
		}
		incidents = append(incidents, inc)
		return nil
	})
	if err != nil {
		return nil, core.WrapStore(op, err)
	}
	return incidents, nil
}

// List returns every incident, most recent id first
func (r *IncidentRepo) List(ctx context.Context) ([]core.SecurityIncident, error) {
	return r.list(ctx, "list incidents", "", nil)
}

func (r *IncidentRepo) ListBySeverity(ctx context.Context, severity core.Level) ([]core.SecurityIncident, error) {
	return r.list(ctx, "list incidents by severity", `severity = {severity}`, core.Params{"severity": string(severity)})
}

func (r *IncidentRepo) ListByStatus(ctx context.Context, status core.Status) ([]core.SecurityIncident, error) {
	return r.list(ctx, "list incidents by status", `status = {status}`, core.Params{"status": string(status)})
}

func (r *IncidentRepo) GetByID(ctx context.Context, id int64) (*core.SecurityIncident, error) {
	var row incidentRow
	found, err := r.store.FetchOne(ctx,
		`SELECT `+incidentColumns+` FROM cyber_incidents WHERE incident_id = {id}`,
		core.Params{"id": id}, row.dest()...)
	if err != nil {
		return nil, core.WrapStore("get incident", err)
	}
	if !found {
		//nolint:nilnil
		return nil, nil
	}
	inc, err := row.incident()
	if err != nil {
		return nil, core.WrapStore("get incident", err)
	}
	return &inc, nil
}

// Create inserts the incident and fills in its id
func (r *IncidentRepo) Create(ctx context.Context, inc *core.SecurityIncident) error {
	var reportedBy any
	if inc.ReportedBy != nil {
		reportedBy = *inc.ReportedBy
	}
	id, err := r.store.Insert(ctx, "cyber_incidents", "incident_id", core.Params{
		"reported_at": core.FormatTimestamp(inc.Timestamp),
		"category":    inc.Category,
		"severity":    string(inc.Severity),
		"status":      string(inc.Status),
		"description": inc.Description,
		"reported_by": reportedBy,
	})
	if err != nil {
		return core.WrapStore("create incident", err)
	}
	inc.ID = id
	inc.Timestamp = inc.Timestamp.Truncate(time.Second)
	return nil
}

func (r *IncidentRepo) UpdateStatus(ctx context.Context, id int64, status core.Status) (bool, error) {
	n, err := r.store.Exec(ctx,
		`UPDATE cyber_incidents SET status = {status} WHERE incident_id = {id}`,
		core.Params{"status": string(status), "id": id})
	if err != nil {
		return false, core.WrapStore("update incident status", err)
	}
	return n > 0, nil
}

func (r *IncidentRepo) Delete(ctx context.Context, id int64) (bool, error) {
	n, err := r.store.Exec(ctx, `DELETE FROM cyber_incidents WHERE incident_id = {id}`, core.Params{"id": id})
	if err != nil {
		return false, core.WrapStore("delete incident", err)
	}
	return n > 0, nil
}

// CountBy groups incidents by one of category, severity or status
func (r *IncidentRepo) CountBy(ctx context.Context, column string) (core.Counts, error) {
	if !incidentGroupColumns[column] {
		return nil, fmt.Errorf("cannot group incidents by %q", column)
	}
	counts, err := countGroups(ctx, r.store,
		`SELECT `+column+`, COUNT(*) FROM cyber_incidents GROUP BY `+column, nil)
	if err != nil {
		return nil, core.WrapStore("count incidents by "+column, err)
	}
	return counts, nil
}

func (r *IncidentRepo) StatusCountsForSeverity(ctx context.Context, severity core.Level) (core.Counts, error) {
	counts, err := countGroups(ctx, r.store,
		`SELECT status, COUNT(*) FROM cyber_incidents WHERE severity = {severity} GROUP BY status`,
		core.Params{"severity": string(severity)})
	if err != nil {
		return nil, core.WrapStore("count incidents by status", err)
	}
	return counts, nil
}

// countGroups reads (key, count) rows into Counts.
func countGroups(ctx context.Context, q Querier, query string, params core.Params) (core.Counts, error) {
	counts := core.Counts{}
	err := q.FetchAll(ctx, query, params, func(scan ScanFunc) error {
		var key sql.NullString
		var n int64
		if err := scan(&key, &n); err != nil {
			return err
		}
		counts[key.String] += n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}
