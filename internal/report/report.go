// Package report builds the weekly status CSV: every ticket in store order
// plus its age in days.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/clock"
	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/storage"
)

const DefaultPath = "out/weekly_status.csv"

var Header = []string{"ticket_id", "title", "owner", "priority", "status", "created_at", "days_open"}

// TicketSource yields tickets ordered by priority, then id.
type TicketSource interface {
	SelectAll(ctx context.Context) ([]storage.Ticket, error)
}

type Row struct {
	Ticket   storage.Ticket
	DaysOpen int
}

type Report struct {
	Today time.Time
	Rows  []Row
}

type Result struct {
	Path string
	Rows int
}

type Generator struct {
	path   string
	clock  clock.Clock
	logger *slog.Logger
}

func NewGenerator(path string, c clock.Clock, logger *slog.Logger) *Generator {
	if path == "" {
		path = DefaultPath
	}
	if c == nil {
		c = clock.NewSystem()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Generator{path: path, clock: c, logger: logger}
}

func (g *Generator) Path() string {
	return g.path
}

// Build computes days_open for every ticket against the clock's current date.
// The first unparsable created_at aborts the build with *MalformedDateError.
func (g *Generator) Build(tickets []storage.Ticket) (Report, error) {
	today := clock.Today(g.clock)
	report := Report{Today: today, Rows: make([]Row, 0, len(tickets))}
	for _, ticket := range tickets {
		created, err := ParseDate(ticket.CreatedAt)
		if err != nil {
			var malformed *MalformedDateError
			if errors.As(err, &malformed) {
				malformed.TicketID = ticket.ID
			}
			return Report{}, err
		}
		report.Rows = append(report.Rows, Row{
			Ticket:   ticket,
			DaysOpen: DaysBetween(created, today),
		})
	}
	return report, nil
}

// Render writes the header and one line per row using csv.Writer quoting:
// a field is quoted when it contains a comma, quote, or line break, when it
// starts with whitespace, or when it is exactly `\.`. Everything else is
// written verbatim.
func Render(w io.Writer, report Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("render report: header: %w", err)
	}
	for _, row := range report.Rows {
		owner := ""
		if row.Ticket.Owner != nil {
			owner = *row.Ticket.Owner
		}
		record := []string{
			strconv.FormatInt(row.Ticket.ID, 10),
			row.Ticket.Title,
			owner,
			row.Ticket.Priority,
			row.Ticket.Status,
			row.Ticket.CreatedAt,
			strconv.Itoa(row.DaysOpen),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("render report: ticket %d: %w", row.Ticket.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("render report: flush: %w", err)
	}
	return nil
}

// Export reads every ticket from src and replaces the report file in full.
// The report is rendered in memory first, so a failure leaves any previous
// file untouched.
func (g *Generator) Export(ctx context.Context, src TicketSource) (Result, error) {
	tickets, err := src.SelectAll(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("export report: %w", err)
	}

	report, err := g.Build(tickets)
	if err != nil {
		return Result{}, fmt.Errorf("export report: %w", err)
	}

	var buf bytes.Buffer
	if err := Render(&buf, report); err != nil {
		return Result{}, fmt.Errorf("export report: %w", err)
	}

	if err := writeFileAtomic(g.path, buf.Bytes()); err != nil {
		return Result{}, fmt.Errorf("export report: %w", err)
	}

	g.logger.Info("report exported",
		slog.String("path", g.path),
		slog.Int("rows", len(report.Rows)),
		slog.String("today", report.Today.Format(isoDateLayout)),
	)
	return Result{Path: g.path, Rows: len(report.Rows)}, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
