package storage

import (
	"context"
	"database/sql"
)

type ticketRepository struct {
	db *sql.DB
}

const selectTicketsOrdered = `
	SELECT ticket_id, title, requester, owner, priority, status, created_at
	FROM tickets
	ORDER BY priority ASC, ticket_id ASC
`

// InsertMany appends tickets in a single transaction and returns copies
// carrying the ids SQLite assigned. Input ids are ignored.
func (r *ticketRepository) InsertMany(ctx context.Context, tickets []Ticket) ([]Ticket, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("insert tickets: begin tx", err)
	}

	out, err := insertTickets(ctx, tx, tickets)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("insert tickets: commit", err)
	}
	return out, nil
}

// ReplaceAll clears the table and inserts tickets atomically.
func (r *ticketRepository) ReplaceAll(ctx context.Context, tickets []Ticket) ([]Ticket, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("replace tickets: begin tx", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tickets`); err != nil {
		_ = tx.Rollback()
		return nil, storageErr("replace tickets: clear", err)
	}

	out, err := insertTickets(ctx, tx, tickets)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("replace tickets: commit", err)
	}
	return out, nil
}

func (r *ticketRepository) SelectAll(ctx context.Context) ([]Ticket, error) {
	rows, err := r.db.QueryContext(ctx, selectTicketsOrdered)
	if err != nil {
		return nil, storageErr("select tickets", err)
	}
	defer rows.Close()

	out := []Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, storageErr("select tickets: scan", err)
		}
		out = append(out, *ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("select tickets: iterate", err)
	}
	return out, nil
}

func (r *ticketRepository) DeleteAll(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tickets`)
	if err != nil {
		return 0, storageErr("delete tickets", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, storageErr("delete tickets: rows affected", err)
	}
	return count, nil
}

func (r *ticketRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets`).Scan(&count); err != nil {
		return 0, storageErr("count tickets", err)
	}
	return count, nil
}

func insertTickets(ctx context.Context, tx *sql.Tx, tickets []Ticket) ([]Ticket, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tickets(title, requester, owner, priority, status, created_at)
		VALUES(?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, storageErr("insert tickets: prepare", err)
	}
	defer stmt.Close()

	out := make([]Ticket, 0, len(tickets))
	for _, ticket := range tickets {
		result, err := stmt.ExecContext(
			ctx,
			requiredText(ticket.Title),
			requiredText(ticket.Requester),
			optionalText(ticket.Owner),
			requiredText(ticket.Priority),
			requiredText(ticket.Status),
			requiredText(ticket.CreatedAt),
		)
		if err != nil {
			return nil, storageErr("insert tickets", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return nil, storageErr("insert tickets: last insert id", err)
		}
		ticket.ID = id
		if ticket.Owner != nil {
			owner := *ticket.Owner
			ticket.Owner = &owner
		}
		out = append(out, ticket)
	}
	return out, nil
}

type ticketScanner interface {
	Scan(dest ...any) error
}

func scanTicket(scanner ticketScanner) (*Ticket, error) {
	var (
		ticket Ticket
		owner  sql.NullString
	)
	if err := scanner.Scan(&ticket.ID, &ticket.Title, &ticket.Requester, &owner, &ticket.Priority, &ticket.Status, &ticket.CreatedAt); err != nil {
		return nil, err
	}
	ticket.Owner = textPointer(owner)
	return &ticket, nil
}
