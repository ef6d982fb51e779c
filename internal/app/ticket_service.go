package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/audit"
	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/clock"
	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/report"
	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/storage"
)

const targetTypeTicket = "ticket"

type TicketService struct {
	tickets  storage.TicketRepository
	reports  *report.Generator
	activity *audit.Service
	clock    clock.Clock
	logger   *slog.Logger
}

// NewTicketService wires the ticket operations. activity may be nil, in which
// case no activity events are recorded.
func NewTicketService(
	tickets storage.TicketRepository,
	reports *report.Generator,
	activity *audit.Service,
	c clock.Clock,
	logger *slog.Logger,
) *TicketService {
	if c == nil {
		c = clock.NewSystem()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TicketService{
		tickets:  tickets,
		reports:  reports,
		activity: activity,
		clock:    c,
		logger:   logger,
	}
}

// Seed clears every ticket and inserts SampleTickets in one transaction.
func (s *TicketService) Seed(ctx context.Context) (*SeedResult, error) {
	inserted, err := s.tickets.ReplaceAll(ctx, SampleTickets())
	if err != nil {
		return nil, fmt.Errorf("seed tickets: %w", err)
	}

	s.logger.Info("tickets seeded", slog.Int("rows", len(inserted)))
	if err := s.record(ctx, audit.Event{
		Action:     audit.ActionTicketsSeed,
		TargetType: targetTypeTicket,
		Details: struct {
			Rows int `json:"rows"`
		}{Rows: len(inserted)},
	}); err != nil {
		return nil, fmt.Errorf("seed tickets: %w", err)
	}
	return &SeedResult{Tickets: inserted}, nil
}

func (s *TicketService) Add(ctx context.Context, req AddTicketRequest) (*storage.Ticket, error) {
	ticket, err := s.normalizeAdd(req)
	if err != nil {
		return nil, err
	}

	inserted, err := s.tickets.InsertMany(ctx, []storage.Ticket{ticket})
	if err != nil {
		return nil, fmt.Errorf("add ticket: %w", err)
	}
	created := inserted[0]

	s.logger.Info("ticket added",
		slog.Int64("ticket_id", created.ID),
		slog.String("priority", created.Priority),
	)
	if err := s.record(ctx, audit.Event{
		Action:     audit.ActionTicketsAdd,
		TargetType: targetTypeTicket,
		TargetID:   strconv.FormatInt(created.ID, 10),
		Details: struct {
			Priority string `json:"priority"`
			Status   string `json:"status"`
		}{Priority: created.Priority, Status: created.Status},
	}); err != nil {
		return nil, fmt.Errorf("add ticket: %w", err)
	}
	return &created, nil
}

func (s *TicketService) List(ctx context.Context) ([]storage.Ticket, error) {
	tickets, err := s.tickets.SelectAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return tickets, nil
}

// Export writes the weekly status report. A failed export is still recorded
// as an activity event with result=failure.
func (s *TicketService) Export(ctx context.Context) (*ExportResult, error) {
	result, exportErr := s.reports.Export(ctx, s.tickets)
	if exportErr != nil {
		if err := s.record(ctx, audit.Event{
			Action:     audit.ActionReportExport,
			TargetType: "report",
			TargetID:   s.reports.Path(),
			Result:     audit.ResultFailure,
			Details: struct {
				Error string `json:"error"`
			}{Error: exportErr.Error()},
		}); err != nil {
			s.logger.Warn("record failed export", slog.String("error", err.Error()))
		}
		return nil, exportErr
	}

	if err := s.record(ctx, audit.Event{
		Action:     audit.ActionReportExport,
		TargetType: "report",
		TargetID:   result.Path,
		Details: struct {
			Rows int `json:"rows"`
		}{Rows: result.Rows},
	}); err != nil {
		return nil, fmt.Errorf("export report: %w", err)
	}
	return &ExportResult{Path: result.Path, Rows: result.Rows}, nil
}

func (s *TicketService) record(ctx context.Context, event audit.Event) error {
	if s.activity == nil {
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock.Now()
	}
	return s.activity.Record(ctx, event)
}

func (s *TicketService) normalizeAdd(req AddTicketRequest) (storage.Ticket, error) {
	ticket := storage.Ticket{
		Title:     strings.TrimSpace(req.Title),
		Requester: strings.TrimSpace(req.Requester),
		Priority:  strings.TrimSpace(req.Priority),
		Status:    strings.TrimSpace(req.Status),
		CreatedAt: strings.TrimSpace(req.CreatedAt),
	}
	if req.Owner != nil {
		owner := strings.TrimSpace(*req.Owner)
		if owner != "" {
			ticket.Owner = &owner
		}
	}

	for _, field := range []struct{ name, value string }{
		{"title", ticket.Title},
		{"requester", ticket.Requester},
		{"priority", ticket.Priority},
		{"status", ticket.Status},
	} {
		if field.value == "" {
			return storage.Ticket{}, fmt.Errorf("%w: %s is required", ErrValidation, field.name)
		}
	}

	if ticket.CreatedAt == "" {
		ticket.CreatedAt = clock.Today(s.clock).Format("2006-01-02")
	} else if _, err := report.ParseDate(ticket.CreatedAt); err != nil {
		return storage.Ticket{}, fmt.Errorf("%w: created_at: %v", ErrValidation, err)
	}
	return ticket, nil
}
