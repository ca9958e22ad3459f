package core

import "context"

// PasswordHasher produces salted digests.
type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// PasswordVerifier checks a plain password against a stored digest.
type PasswordVerifier interface {
	Verify(plain, hash string) bool
}

// AccountRepository defines storage operations for accounts
type AccountRepository interface {
	Create(ctx context.Context, username, passwordHash string, role Role) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	GetByID(ctx context.Context, id int64) (*Account, error)
	Exists(ctx context.Context, username string) (bool, error)
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) (bool, error)
	Count(ctx context.Context) (int64, error)
}

// IncidentRepository defines storage operations for security incidents
type IncidentRepository interface {
	List(ctx context.Context) ([]SecurityIncident, error)
	GetByID(ctx context.Context, id int64) (*SecurityIncident, error)
	ListBySeverity(ctx context.Context, severity Level) ([]SecurityIncident, error)
	ListByStatus(ctx context.Context, status Status) ([]SecurityIncident, error)
	Create(ctx context.Context, incident *SecurityIncident) error
	UpdateStatus(ctx context.Context, id int64, status Status) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	CountBy(ctx context.Context, column string) (Counts, error)
	StatusCountsForSeverity(ctx context.Context, severity Level) (Counts, error)
}

// DatasetRepository defines storage operations for dataset metadata
type DatasetRepository interface {
	List(ctx context.Context) ([]Dataset, error)
	GetByID(ctx context.Context, id int64) (*Dataset, error)
	ListByUploader(ctx context.Context, uploadedBy string) ([]Dataset, error)
	Create(ctx context.Context, dataset *Dataset) error
	Delete(ctx context.Context, id int64) (bool, error)
	Stats(ctx context.Context) (DatasetStats, error)
}

// TicketRepository defines storage operations for IT tickets
type TicketRepository interface {
	List(ctx context.Context) ([]ITTicket, error)
	GetByID(ctx context.Context, id int64) (*ITTicket, error)
	ListBy(ctx context.Context, column, value string) ([]ITTicket, error)
	Create(ctx context.Context, ticket *ITTicket) error
	UpdateStatus(ctx context.Context, id int64, status Status) (bool, error)
	Assign(ctx context.Context, id int64, assignee *string) (bool, error)
	UpdateStatusAndAssign(ctx context.Context, id int64, status Status, assignee *string) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	CountBy(ctx context.Context, column string) (Counts, error)
	AvgResolutionHours(ctx context.Context) (float64, error)
}

// Credentials is what the auth service needs from the Credential Manager.
type Credentials interface {
	PasswordHasher
	PasswordVerifier
	ValidateStrength(password string) (bool, string)
}
