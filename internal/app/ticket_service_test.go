package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/audit"
	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/clock"
	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/report"
	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/storage"
	"github.com/stretchr/testify/require"
)

var testClock = clock.NewFixed(time.Date(2026, time.January, 12, 9, 30, 0, 0, time.UTC))

type appFixture struct {
	store      *storage.Store
	activity   *audit.Service
	svc        *TicketService
	reportPath string
}

func TestSeedInsertsSampleTickets(t *testing.T) {
	t.Parallel()

	fx := newAppFixture(t)
	ctx := context.Background()

	result, err := fx.svc.Seed(ctx)
	require.NoError(t, err)
	require.Len(t, result.Tickets, 3)

	tickets, err := fx.svc.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Fix reporting bug", "Add export format", "Investigate anomaly"}, titles(tickets))
	require.Equal(t, []int64{1, 2, 3}, ids(tickets))
	for _, ticket := range tickets {
		require.NotNil(t, ticket.Owner)
		require.Equal(t, "Nicolas", *ticket.Owner)
	}
}

func TestSeedIsDestructive(t *testing.T) {
	t.Parallel()

	fx := newAppFixture(t)
	ctx := context.Background()

	_, err := fx.svc.Add(ctx, AddTicketRequest{Title: "Extra", Requester: "Ops", Priority: "P3", Status: "New"})
	require.NoError(t, err)

	_, err = fx.svc.Seed(ctx)
	require.NoError(t, err)
	_, err = fx.svc.Seed(ctx)
	require.NoError(t, err)

	count, err := fx.store.Tickets.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	tickets, err := fx.svc.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Fix reporting bug", "Add export format", "Investigate anomaly"}, titles(tickets))
}

func TestAddDefaultsCreatedAtToToday(t *testing.T) {
	t.Parallel()

	fx := newAppFixture(t)
	created, err := fx.svc.Add(context.Background(), AddTicketRequest{
		Title:     "  Rotate credentials ",
		Requester: "Security",
		Priority:  "P1",
		Status:    "New",
	})
	require.NoError(t, err)
	require.Equal(t, "Rotate credentials", created.Title)
	require.Equal(t, "2026-01-12", created.CreatedAt)
	require.Nil(t, created.Owner)
	require.Positive(t, created.ID)
}

func TestAddKeepsExplicitCreatedAtAndOwner(t *testing.T) {
	t.Parallel()

	fx := newAppFixture(t)
	owner := "Dana"
	created, err := fx.svc.Add(context.Background(), AddTicketRequest{
		Title:     "Backfill",
		Requester: "Finance",
		Owner:     &owner,
		Priority:  "P2",
		Status:    "Triaged",
		CreatedAt: "2025-12-31",
	})
	require.NoError(t, err)
	require.Equal(t, "2025-12-31", created.CreatedAt)
	require.NotNil(t, created.Owner)
	require.Equal(t, "Dana", *created.Owner)
}

func TestAddValidatesRequiredFields(t *testing.T) {
	t.Parallel()

	fx := newAppFixture(t)
	ctx := context.Background()
	valid := AddTicketRequest{Title: "t", Requester: "r", Priority: "P1", Status: "New"}

	cases := map[string]func(*AddTicketRequest){
		"title":     func(r *AddTicketRequest) { r.Title = " " },
		"requester": func(r *AddTicketRequest) { r.Requester = "" },
		"priority":  func(r *AddTicketRequest) { r.Priority = "" },
		"status":    func(r *AddTicketRequest) { r.Status = "" },
		"created_at": func(r *AddTicketRequest) {
			r.CreatedAt = "2026-13-40"
		},
	}
	for name, mutate := range cases {
		req := valid
		mutate(&req)
		_, err := fx.svc.Add(ctx, req)
		require.ErrorIsf(t, err, ErrValidation, "field %s", name)
		require.Containsf(t, err.Error(), name, "field %s", name)
	}

	count, err := fx.store.Tickets.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestExportWritesReportAndRecordsActivity(t *testing.T) {
	t.Parallel()

	fx := newAppFixture(t)
	ctx := context.Background()

	_, err := fx.svc.Seed(ctx)
	require.NoError(t, err)

	result, err := fx.svc.Export(ctx)
	require.NoError(t, err)
	require.Equal(t, fx.reportPath, result.Path)
	require.Equal(t, 3, result.Rows)

	content, err := os.ReadFile(fx.reportPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
	require.Len(t, lines, 4)
	require.Equal(t, "1,Fix reporting bug,Nicolas,P1,New,2026-01-05,7", lines[1])

	events, err := fx.activity.List(ctx, audit.Filter{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, audit.ActionTicketsSeed, events[0].Action)
	require.Equal(t, audit.ActionReportExport, events[1].Action)
	require.Equal(t, audit.ResultSuccess, events[1].Result)
	require.JSONEq(t, `{"rows":3}`, events[1].DetailsJSON)

	verify, err := fx.activity.Verify(ctx)
	require.NoError(t, err)
	require.True(t, verify.Valid)
	require.Equal(t, 2, verify.EventCount)
}

func TestExportMalformedDateRecordsFailure(t *testing.T) {
	t.Parallel()

	fx := newAppFixture(t)
	ctx := context.Background()

	_, err := fx.store.Tickets.InsertMany(ctx, []storage.Ticket{
		{Title: "Broken", Requester: "QA", Priority: "P1", Status: "New", CreatedAt: "2026-13-40"},
	})
	require.NoError(t, err)

	_, err = fx.svc.Export(ctx)
	var malformed *report.MalformedDateError
	require.ErrorAs(t, err, &malformed)
	require.NoFileExists(t, fx.reportPath)

	events, err := fx.activity.List(ctx, audit.Filter{Action: audit.ActionReportExport})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, audit.ResultFailure, events[0].Result)
	require.Contains(t, events[0].DetailsJSON, "2026-13-40")
}

func TestServiceWithoutActivityStillWorks(t *testing.T) {
	t.Parallel()

	store, err := storage.Open(filepath.Join(t.TempDir(), "tickets.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })

	path := filepath.Join(t.TempDir(), "weekly_status.csv")
	svc := NewTicketService(store.Tickets, report.NewGenerator(path, testClock, nil), nil, testClock, nil)
	require.Equal(t, slog.DiscardHandler, svc.logger.Handler())

	_, err = svc.Seed(context.Background())
	require.NoError(t, err)
	_, err = svc.Export(context.Background())
	require.NoError(t, err)
	require.FileExists(t, path)
}

func newAppFixture(t *testing.T) appFixture {
	t.Helper()

	dir := t.TempDir()
	store, err := storage.Open(filepath.Join(dir, "out", "tickets.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })

	activity, err := audit.NewService(context.Background(), store.Audit)
	require.NoError(t, err)

	reportPath := filepath.Join(dir, "out", "weekly_status.csv")
	svc := NewTicketService(
		store.Tickets,
		report.NewGenerator(reportPath, testClock, nil),
		activity,
		testClock,
		nil,
	)
	return appFixture{store: store, activity: activity, svc: svc, reportPath: reportPath}
}

func titles(tickets []storage.Ticket) []string {
	out := make([]string, 0, len(tickets))
	for _, ticket := range tickets {
		out = append(out, ticket.Title)
	}
	return out
}

func ids(tickets []storage.Ticket) []int64 {
	out := make([]int64, 0, len(tickets))
	for _, ticket := range tickets {
		out = append(out, ticket.ID)
	}
	return out
}
