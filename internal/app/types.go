package app

import (
	"errors"

	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/storage"
)

var ErrValidation = errors.New("app: validation failed")

const sampleOwner = "Nicolas"

type AddTicketRequest struct {
	Title     string
	Requester string
	Owner     *string
	Priority  string
	Status    string
	// CreatedAt defaults to the service clock's current date when empty.
	CreatedAt string
}

type SeedResult struct {
	Tickets []storage.Ticket `json:"tickets"`
}

type ExportResult struct {
	Path string `json:"path"`
	Rows int    `json:"rows"`
}

// SampleTickets returns the canonical seed rows in insertion order.
func SampleTickets() []storage.Ticket {
	owner := func() *string { v := sampleOwner; return &v }
	return []storage.Ticket{
		{Title: "Fix reporting bug", Requester: "Ops", Owner: owner(), Priority: "P1", Status: "New", CreatedAt: "2026-01-05"},
		{Title: "Add export format", Requester: "Sales", Owner: owner(), Priority: "P2", Status: "Triaged", CreatedAt: "2026-01-10"},
		{Title: "Investigate anomaly", Requester: "QA", Owner: owner(), Priority: "P2", Status: "In Progress", CreatedAt: "2026-01-15"},
	}
}
