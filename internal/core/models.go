package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Text layouts. Timestamps are written by FormatTimestamp; TimestampLayout is
// still accepted on read. Dataset upload dates use DateLayout.
const (
	TimestampLayout = "2006-01-02T15:04:05"
	DateLayout      = "2006-01-02"
)

// Domain id floors. The first record of each kind gets floor+1.
const (
	IncidentIDFloor int64 = 1000
	TicketIDFloor   int64 = 2000
	DatasetIDFloor  int64 = 0
)

type Role string

const (
	RoleUser    Role = "user"
	RoleAnalyst Role = "analyst"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAnalyst, RoleAdmin:
		return true
	}
	return false
}

// Level orders roles: user < analyst < admin. Unknown roles are 0.
func (r Role) Level() int {
	switch r {
	case RoleUser:
		return 1
	case RoleAnalyst:
		return 2
	case RoleAdmin:
		return 3
	}
	return 0
}

// Level is shared by incident severity and ticket priority.
type Level string

const (
	LevelLow      Level = "Low"
	LevelMedium   Level = "Medium"
	LevelHigh     Level = "High"
	LevelCritical Level = "Critical"
)

var Levels = []Level{LevelLow, LevelMedium, LevelHigh, LevelCritical}

func (l Level) Valid() bool {
	for _, v := range Levels {
		if l == v {
			return true
		}
	}
	return false
}

// Rank returns 1 (Low) to 4 (Critical), case-insensitively, and 0 for anything else.
func (l Level) Rank() int {
	for i, v := range Levels {
		if strings.EqualFold(string(l), string(v)) {
			return i + 1
		}
	}
	return 0
}

type Status string

const (
	StatusOpen           Status = "Open"
	StatusInProgress     Status = "In Progress"
	StatusResolved       Status = "Resolved"
	StatusClosed         Status = "Closed"
	StatusWaitingForUser Status = "Waiting for User"
)

var (
	IncidentStatuses = []Status{StatusOpen, StatusInProgress, StatusResolved, StatusClosed}
	TicketStatuses   = []Status{StatusOpen, StatusInProgress, StatusResolved, StatusClosed, StatusWaitingForUser}
)

func (s Status) ValidFor(allowed []Status) bool {
	for _, v := range allowed {
		if s == v {
			return true
		}
	}
	return false
}

// Account is a stored identity. PasswordHash never leaves the auth boundary.
type Account struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

type SecurityIncident struct {
	ID          int64     `json:"id"`
	Category    string    `json:"category"`
	Severity    Level     `json:"severity"`
	Status      Status    `json:"status"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	ReportedBy  *string   `json:"reported_by"`
}

func (i SecurityIncident) String() string {
	return fmt.Sprintf("Incident %d [%s] %s - %s", i.ID, strings.ToUpper(string(i.Severity)), i.Category, i.Status)
}

type Dataset struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	RowCount    int64     `json:"row_count"`
	ColumnCount int64     `json:"column_count"`
	UploadedBy  string    `json:"uploaded_by"`
	UploadDate  time.Time `json:"upload_date"`
}

// bytesPerCell is the rough per-cell footprint used for size estimates.
const bytesPerCell = 100

// SizeEstimate guesses the in-memory size of the dataset, e.g. "1.2 MiB".
func (d Dataset) SizeEstimate() string {
	return humanize.IBytes(uint64(d.RowCount) * uint64(d.ColumnCount) * bytesPerCell)
}

type ITTicket struct {
	ID                  int64     `json:"id"`
	Priority            Level     `json:"priority"`
	Description         string    `json:"description"`
	Status              Status    `json:"status"`
	AssignedTo          *string   `json:"assigned_to"`
	CreatedAt           time.Time `json:"created_at"`
	ResolutionTimeHours *float64  `json:"resolution_time_hours"`
}

func (t ITTicket) String() string {
	assignee := "Unassigned"
	if t.AssignedTo != nil && *t.AssignedTo != "" {
		assignee = *t.AssignedTo
	}
	desc := t.Description
	if len(desc) > 30 {
		desc = desc[:30] + "..."
	}
	return fmt.Sprintf("Ticket %d: %s [%s] - %s (assigned to: %s)", t.ID, desc, t.Priority, t.Status, assignee)
}

// Counts maps a group key (status, category, ...) to its row count.
type Counts map[string]int64

// Sum adds up every group.
func (c Counts) Sum() int64 {
	var total int64
	for _, n := range c {
		total += n
	}
	return total
}

type IncidentStats struct {
	Total      int64  `json:"total"`
	ByCategory Counts `json:"by_category"`
	BySeverity Counts `json:"by_severity"`
	ByStatus   Counts `json:"by_status"`
}

type DatasetStats struct {
	DatasetCount int64   `json:"dataset_count"`
	TotalRows    int64   `json:"total_rows"`
	AvgColumns   float64 `json:"avg_columns"`
}

type TicketStats struct {
	Total              int64   `json:"total"`
	ByStatus           Counts  `json:"by_status"`
	ByPriority         Counts  `json:"by_priority"`
	AvgResolutionHours float64 `json:"avg_resolution_hours"`
}

// Overview is the dashboard summary across all three record types.
type Overview struct {
	Incidents IncidentStats `json:"incidents"`
	Datasets  DatasetStats  `json:"datasets"`
	Tickets   TicketStats   `json:"tickets"`
}
