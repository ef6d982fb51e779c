package storage

import (
	"context"
	"time"
)

// Ticket is a tracked work item. CreatedAt is kept as the stored ISO date
// text; it is only parsed when a report is generated.
type Ticket struct {
	ID        int64
	Title     string
	Requester string
	Owner     *string
	Priority  string
	Status    string
	CreatedAt string
}

type AuditEvent struct {
	ID          string
	Action      string
	TargetType  string
	TargetID    string
	Result      string
	DetailsJSON string
	PrevHash    string
	EventHash   string
	CreatedAt   time.Time
}

type AuditFilter struct {
	Action string
	Since  *time.Time
	Until  *time.Time
	Limit  int
}

type TicketRepository interface {
	InsertMany(ctx context.Context, tickets []Ticket) ([]Ticket, error)
	ReplaceAll(ctx context.Context, tickets []Ticket) ([]Ticket, error)
	SelectAll(ctx context.Context) ([]Ticket, error)
	DeleteAll(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int, error)
}

type AuditRepository interface {
	AppendWithTip(ctx context.Context, event *AuditEvent, tip string) error
	List(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)
	ChainTip(ctx context.Context) (string, error)
}
