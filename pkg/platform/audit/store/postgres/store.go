package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	audit "corkboard/pkg/platform/audit"
	txcontext "corkboard/pkg/platform/tx"
)

// Store implements audit.Store on the audit_log table.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) execer(ctx context.Context) txcontext.Executor {
	return txcontext.Exec(ctx, s.db)
}

const selectColumns = `id, category, user_id, action, resource, resource_id,
	ip_address, user_agent, success, error_message, metadata, request_id, timestamp`

// Append inserts one entry on its own connection. A transaction on ctx is
// ignored so that a rolled-back request still leaves its audit trail.
func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	id, err := uuid.Parse(entry.ID)
	if err != nil {
		id = uuid.New()
	}
	metadata := entry.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}

	query := `
		INSERT INTO audit_log (` + selectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = s.db.ExecContext(ctx, query,
		id,
		string(entry.Category),
		nullString(entry.UserID),
		string(entry.Action),
		nullString(entry.Resource),
		nullString(entry.ResourceID),
		entry.IPAddress,
		entry.UserAgent,
		entry.Success,
		nullString(entry.ErrorMessage),
		metadataJSON,
		nullString(entry.RequestID),
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// whereClause renders filter as a WHERE clause with positional args.
func whereClause(filter audit.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.Action != "" {
		add("action = $%d", string(filter.Action))
	}
	if filter.Resource != "" {
		add("resource = $%d", filter.Resource)
	}
	if filter.ResourceID != "" {
		add("resource_id = $%d", filter.ResourceID)
	}
	if filter.Success != nil {
		add("success = $%d", *filter.Success)
	}
	if !filter.Since.IsZero() {
		add("timestamp >= $%d", filter.Since)
	}
	if !filter.Until.IsZero() {
		add("timestamp < $%d", filter.Until)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Search returns one page of matches, newest first, and the total count.
func (s *Store) Search(ctx context.Context, filter audit.Filter) ([]audit.Entry, int, error) {
	filter = filter.Normalize()
	where, args := whereClause(filter)

	var total int
	if err := s.execer(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}
	if total == 0 || filter.Offset >= total {
		return []audit.Entry{}, total, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM audit_log%s ORDER BY timestamp DESC LIMIT $%d OFFSET $%d`,
		selectColumns, where, len(args)+1, len(args)+2)
	rows, err := s.execer(ctx).QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// Stats groups entries by action and outcome.
func (s *Store) Stats(ctx context.Context, userID string, since time.Time) (*audit.Stats, error) {
	query := `
		SELECT action, success, COUNT(*)
		FROM audit_log
		WHERE timestamp >= $1 AND ($2 = '' OR user_id = $2)
		GROUP BY action, success
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, since, userID)
	if err != nil {
		return nil, fmt.Errorf("query audit stats: %w", err)
	}
	defer rows.Close()

	stats := audit.NewStats(userID, since)
	for rows.Next() {
		var (
			action  string
			success bool
			count   int
		)
		if err := rows.Scan(&action, &success, &count); err != nil {
			return nil, fmt.Errorf("scan audit stats: %w", err)
		}
		stats.Add(audit.Action(action), success, count)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit stats: %w", err)
	}
	return stats, nil
}

// PurgeBefore deletes entries older than cutoff.
func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM audit_log WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge audit entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge audit entries: %w", err)
	}
	return n, nil
}

// scanEntries scans multiple rows into an audit.Entry slice.
func scanEntries(rows *sql.Rows) ([]audit.Entry, error) {
	var entries []audit.Entry

	for rows.Next() {
		var (
			entry                        audit.Entry
			id                           uuid.UUID
			category, action             string
			userID, resource, resourceID sql.NullString
			errorMessage, requestID      sql.NullString
			metadataJSON                 []byte
		)
		err := rows.Scan(
			&id,
			&category,
			&userID,
			&action,
			&resource,
			&resourceID,
			&entry.IPAddress,
			&entry.UserAgent,
			&entry.Success,
			&errorMessage,
			&metadataJSON,
			&requestID,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}

		entry.ID = id.String()
		entry.Category = audit.Category(category)
		entry.Action = audit.Action(action)
		entry.UserID = userID.String
		entry.Resource = resource.String
		entry.ResourceID = resourceID.String
		entry.ErrorMessage = errorMessage.String
		entry.RequestID = requestID.String
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata: %w", err)
			}
			if len(entry.Metadata) == 0 {
				entry.Metadata = nil
			}
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
