package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestRunMigrationsAppliesAllSequentially(t *testing.T) {
	t.Parallel()

	db := openRawTestDB(t)
	defer closeNoErr(t, db)

	err := RunMigrations(db, DefaultMigrations())
	require.NoError(t, err)

	require.Equal(t, CurrentSchemaVersion(), mustSchemaVersion(t, db))

	for _, table := range []string{"app_meta", "schema_migrations", "tickets", "audit_events"} {
		require.Truef(t, tableExists(t, db, table), "expected table %s to exist", table)
	}
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	t.Parallel()

	db := openRawTestDB(t)
	defer closeNoErr(t, db)

	require.NoError(t, EnsureSchema(db))
	require.NoError(t, EnsureSchema(db))

	require.Equal(t, 1, countTables(t, db, "tickets"))
	require.Equal(t, CurrentSchemaVersion(), mustSchemaVersion(t, db))

	var applied int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&applied))
	require.Equal(t, len(DefaultMigrations()), applied)
}

func TestEnsureSchemaAdoptsUnversionedTicketsTable(t *testing.T) {
	t.Parallel()

	path := rawDBPath(t)
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE tickets (
		ticket_id INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		requester TEXT NOT NULL,
		owner TEXT,
		priority TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO tickets(title, requester, owner, priority, status, created_at) VALUES('Old', 'Ops', NULL, 'P3', 'New', '2025-12-01')`)
	require.NoError(t, err)
	closeNoErr(t, db)

	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { closeStoreNoErr(t, store) })

	tickets, err := store.Tickets.SelectAll(context.Background())
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	require.Equal(t, "Old", tickets[0].Title)
	require.Nil(t, tickets[0].Owner)
}

func TestRunMigrationsIsAtomic(t *testing.T) {
	t.Parallel()

	db := openRawTestDB(t)
	defer closeNoErr(t, db)

	migrations := []Migration{
		{
			Version:     1,
			Description: "create a",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`CREATE TABLE test_a (id TEXT PRIMARY KEY)`)
				return err
			},
		},
		{
			Version:     2,
			Description: "create b then fail",
			Up: func(tx *sql.Tx) error {
				if _, err := tx.Exec(`CREATE TABLE test_b (id TEXT PRIMARY KEY)`); err != nil {
					return err
				}
				return errors.New("boom")
			},
		},
	}

	err := RunMigrations(db, migrations)
	require.Error(t, err)
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	require.Equal(t, 1, mustSchemaVersion(t, db))
	require.True(t, tableExists(t, db, "test_a"))
	require.False(t, tableExists(t, db, "test_b"))
}

func TestOpenRefusesNewerSchemaVersion(t *testing.T) {
	t.Parallel()

	path := rawDBPath(t)
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	require.NoError(t, RunMigrations(db, DefaultMigrations()))
	_, err = db.Exec(`UPDATE app_meta SET value = ? WHERE key = 'schema_version'`, CurrentSchemaVersion()+1)
	require.NoError(t, err)
	closeNoErr(t, db)

	store, err := Open(path)
	if store != nil {
		t.Cleanup(func() { _ = store.Close() })
	}
	require.ErrorIs(t, err, ErrSchemaTooNew)
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "out", "tickets.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { closeStoreNoErr(t, store) })
	require.Equal(t, path, store.Path())
	require.FileExists(t, path)
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := Open("")
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
}

func TestTicketInsertSelectRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	input := []Ticket{
		{ID: 99, Title: "Fix reporting bug", Requester: "Ops", Owner: strPtr("Nicolas"), Priority: "P1", Status: "New", CreatedAt: "2026-01-05"},
		{ID: 98, Title: "Add export format", Requester: "Sales", Owner: nil, Priority: "P2", Status: "Triaged", CreatedAt: "2026-01-10"},
		{Title: "Investigate anomaly", Requester: "QA", Owner: strPtr(""), Priority: "P2", Status: "In Progress", CreatedAt: "2026-01-15"},
	}

	inserted, err := store.Tickets.InsertMany(ctx, input)
	require.NoError(t, err)
	require.Len(t, inserted, len(input))

	seen := map[int64]bool{}
	for i, ticket := range inserted {
		require.NotZero(t, ticket.ID)
		require.False(t, seen[ticket.ID], "duplicate id %d", ticket.ID)
		seen[ticket.ID] = true
		if input[i].ID != 0 {
			require.NotEqual(t, input[i].ID, ticket.ID)
		}
	}

	got, err := store.Tickets.SelectAll(ctx)
	require.NoError(t, err)
	require.Equal(t, inserted, got)

	count, err := store.Tickets.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

func TestTicketInsertMissingRequiredFieldFails(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Tickets.InsertMany(ctx, []Ticket{
		{Title: "ok", Requester: "Ops", Priority: "P1", Status: "New", CreatedAt: "2026-01-05"},
		{Title: "", Requester: "Ops", Priority: "P1", Status: "New", CreatedAt: "2026-01-05"},
	})
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)

	// The whole batch is rolled back.
	count, err := store.Tickets.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestTicketOperationsFailOnClosedStore(t *testing.T) {
	t.Parallel()

	store, err := Open(rawDBPath(t))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = store.Tickets.SelectAll(context.Background())
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)

	_, err = store.Tickets.InsertMany(context.Background(), []Ticket{sampleTicket("P1")})
	require.ErrorAs(t, err, &storageErr)
}

func TestSelectAllOrdersByPriorityThenID(t *testing.T) {
	t.Parallel()

	priorities := []string{"P2", "P1", "P10", "P2", "P1"}
	for _, perm := range permutations(len(priorities)) {
		store := newTestStore(t)
		ctx := context.Background()

		batch := make([]Ticket, 0, len(perm))
		for _, idx := range perm {
			batch = append(batch, sampleTicket(priorities[idx]))
		}
		_, err := store.Tickets.InsertMany(ctx, batch)
		require.NoError(t, err)

		got, err := store.Tickets.SelectAll(ctx)
		require.NoError(t, err)
		require.Len(t, got, len(priorities))
		require.True(t, sort.SliceIsSorted(got, func(i, j int) bool {
			if got[i].Priority != got[j].Priority {
				return got[i].Priority < got[j].Priority
			}
			return got[i].ID < got[j].ID
		}), "tickets not ordered for permutation %v: %+v", perm, got)
	}
}

func TestSelectAllUsesLexicalPriority(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Tickets.InsertMany(ctx, []Ticket{sampleTicket("P2"), sampleTicket("P10"), sampleTicket("P1")})
	require.NoError(t, err)

	got, err := store.Tickets.SelectAll(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"P1", "P10", "P2"}, priorityList(got))
}

func TestReplaceAllClearsExistingRows(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Tickets.InsertMany(ctx, []Ticket{sampleTicket("P1"), sampleTicket("P2")})
	require.NoError(t, err)

	replaced, err := store.Tickets.ReplaceAll(ctx, []Ticket{sampleTicket("P3")})
	require.NoError(t, err)
	require.Len(t, replaced, 1)

	got, err := store.Tickets.SelectAll(ctx)
	require.NoError(t, err)
	require.Equal(t, replaced, got)
}

func TestReplaceAllKeepsRowsWhenInsertFails(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Tickets.InsertMany(ctx, []Ticket{sampleTicket("P1")})
	require.NoError(t, err)

	bad := sampleTicket("P2")
	bad.CreatedAt = ""
	_, err = store.Tickets.ReplaceAll(ctx, []Ticket{bad})
	require.Error(t, err)

	count, err := store.Tickets.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestDeleteAllReportsRemovedRows(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Tickets.InsertMany(ctx, []Ticket{sampleTicket("P1"), sampleTicket("P2")})
	require.NoError(t, err)

	removed, err := store.Tickets.DeleteAll(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, removed)

	got, err := store.Tickets.SelectAll(ctx)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestAuditAppendMovesChainTip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	tip, err := store.Audit.ChainTip(ctx)
	require.NoError(t, err)
	require.Empty(t, tip)

	event := &AuditEvent{Action: "tickets.seed", Result: "success", EventHash: "abc"}
	require.NoError(t, store.Audit.AppendWithTip(ctx, event, "abc"))
	require.NotEmpty(t, event.ID)
	require.False(t, event.CreatedAt.IsZero())

	tip, err = store.Audit.ChainTip(ctx)
	require.NoError(t, err)
	require.Equal(t, "abc", tip)

	events, err := store.Audit.List(ctx, AuditFilter{Action: "tickets.seed"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "{}", events[0].DetailsJSON)

	events, err = store.Audit.List(ctx, AuditFilter{Action: "report.export"})
	require.NoError(t, err)
	require.Empty(t, events)
}

func openRawTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := rawDBPath(t)
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	return db
}

func rawDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "tickets.db")
}

func mustSchemaVersion(t *testing.T, db *sql.DB) int {
	t.Helper()
	version, err := ReadSchemaVersion(db)
	require.NoError(t, err)
	return version
}

func tableExists(t *testing.T, db *sql.DB, table string) bool {
	t.Helper()
	return countTables(t, db, table) == 1
}

func countTables(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var count int
	err := db.QueryRow(`SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&count)
	require.NoError(t, err)
	return count
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(rawDBPath(t))
	require.NoError(t, err)
	t.Cleanup(func() { closeStoreNoErr(t, store) })
	return store
}

func closeStoreNoErr(t *testing.T, store *Store) {
	t.Helper()
	require.NoError(t, store.Close())
}

func closeNoErr(t *testing.T, db *sql.DB) {
	t.Helper()
	require.NoError(t, db.Close())
}

func sampleTicket(priority string) Ticket {
	return Ticket{Title: "t-" + priority, Requester: "Ops", Priority: priority, Status: "New", CreatedAt: "2026-01-05"}
}

func priorityList(tickets []Ticket) []string {
	out := make([]string, 0, len(tickets))
	for _, ticket := range tickets {
		out = append(out, ticket.Priority)
	}
	return out
}

func strPtr(v string) *string {
	return &v
}

// permutations returns every ordering of 0..n-1 (Heap's algorithm).
func permutations(n int) [][]int {
	current := make([]int, n)
	for i := range current {
		current[i] = i
	}
	out := [][]int{append([]int(nil), current...)}
	c := make([]int, n)
	for i := 0; i < n; {
		if c[i] < i {
			if i%2 == 0 {
				current[0], current[i] = current[i], current[0]
			} else {
				current[c[i]], current[i] = current[i], current[c[i]]
			}
			out = append(out, append([]int(nil), current...))
			c[i]++
			i = 0
			continue
		}
		c[i] = 0
		i++
	}
	return out
}
