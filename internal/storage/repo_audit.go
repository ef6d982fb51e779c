package storage

import (
	"context"
	"database/sql"
	"errors"
)

type auditRepository struct {
	db *sql.DB
}

// AppendWithTip inserts event and moves the chain tip in one transaction so
// the stored tip never points past the last persisted event.
func (r *auditRepository) AppendWithTip(ctx context.Context, event *AuditEvent, tip string) error {
	if event == nil {
		return storageErrf("append audit event", "event is nil")
	}
	if event.Action == "" {
		return storageErrf("append audit event", "action is required")
	}
	event.ID = ensureID(event.ID)
	if event.CreatedAt.IsZero() {
		event.CreatedAt = nowUTC()
	}
	if event.DetailsJSON == "" {
		event.DetailsJSON = "{}"
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("append audit event: begin tx", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_events(id, action, target_type, target_id, result, details_json, prev_hash, event_hash, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, event.ID, event.Action, event.TargetType, event.TargetID, event.Result, event.DetailsJSON, event.PrevHash, event.EventHash, fmtTime(event.CreatedAt))
	if err != nil {
		_ = tx.Rollback()
		return storageErr("append audit event", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO app_meta(key, value) VALUES(?, ?)`, auditChainTipMetaKey, tip); err != nil {
		_ = tx.Rollback()
		return storageErr("append audit event: write chain tip", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("append audit event: commit", err)
	}
	return nil
}

func (r *auditRepository) List(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}

	query := `
		SELECT
			id,
			action,
			COALESCE(target_type, ''),
			COALESCE(target_id, ''),
			COALESCE(result, ''),
			COALESCE(details_json, '{}'),
			COALESCE(prev_hash, ''),
			COALESCE(event_hash, ''),
			created_at
		FROM audit_events
		WHERE 1=1
	`
	args := make([]any, 0, 4)
	if filter.Action != "" {
		query += ` AND action = ? `
		args = append(args, filter.Action)
	}
	if filter.Since != nil {
		query += ` AND created_at >= ? `
		args = append(args, fmtTime(*filter.Since))
	}
	if filter.Until != nil {
		query += ` AND created_at <= ? `
		args = append(args, fmtTime(*filter.Until))
	}
	query += ` ORDER BY rowid ASC LIMIT ? `
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list audit events", err)
	}
	defer rows.Close()

	events := []AuditEvent{}
	for rows.Next() {
		var (
			event   AuditEvent
			created string
		)
		if err := rows.Scan(
			&event.ID,
			&event.Action,
			&event.TargetType,
			&event.TargetID,
			&event.Result,
			&event.DetailsJSON,
			&event.PrevHash,
			&event.EventHash,
			&created,
		); err != nil {
			return nil, storageErr("list audit events: scan row", err)
		}
		event.CreatedAt, err = parseTime(created)
		if err != nil {
			return nil, storageErr("list audit events", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list audit events: iterate", err)
	}
	return events, nil
}

func (r *auditRepository) ChainTip(ctx context.Context) (string, error) {
	var tip string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM app_meta WHERE key = ?`, auditChainTipMetaKey).Scan(&tip)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", storageErr("read audit chain tip", err)
	}
	return tip, nil
}
