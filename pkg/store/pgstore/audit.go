package pgstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/entitlekit/pkg/audit"
)

const auditColumns = `id, tenant_id, action, actor, result, error, before, after, state_version, metadata, created_at`

const insertAudit = `INSERT INTO audit_records (` + auditColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`

// AuditStorage is an audit.BatchStorage on the audit_records table.
// Snapshots and metadata are stored as JSONB and come back as decoded JSON values.
type AuditStorage struct {
	db DB
}

var _ audit.BatchStorage = (*AuditStorage)(nil)

// NewAuditStorage panics if db is nil.
func NewAuditStorage(db DB) *AuditStorage {
	if db == nil {
		panic("pgstore: db is required")
	}
	return &AuditStorage{db: db}
}

func (s *AuditStorage) Store(ctx context.Context, r audit.Record) error {
	values, err := auditValues(r)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, insertAudit, values...); err != nil {
		return fmt.Errorf("store audit record: %w", err)
	}
	return nil
}

// StoreBatch inserts records in one round trip; the batch runs in an implicit
// transaction, so either all records are stored or none.
func (s *AuditStorage) StoreBatch(ctx context.Context, records []audit.Record) error {
	if len(records) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for _, r := range records {
		values, err := auditValues(r)
		if err != nil {
			return err
		}
		b.Queue(insertAudit, values...)
	}
	if err := s.db.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("store audit batch: %w", err)
	}
	return nil
}

// Query returns matching records oldest first.
func (s *AuditStorage) Query(ctx context.Context, c audit.Criteria) ([]audit.Record, error) {
	query, values := auditQuery(c)
	rows, err := s.db.Query(ctx, query, values...)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var out []audit.Record
	for rows.Next() {
		var (
			r                       audit.Record
			result                  string
			before, after, metadata []byte
		)
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Action, &r.Actor, &result, &r.Error,
			&before, &after, &r.StateVersion, &metadata, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		r.Result = audit.Result(result)
		if r.Before, err = decodeJSON(before); err != nil {
			return nil, err
		}
		if r.After, err = decodeJSON(after); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &r.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata: %w", err)
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	return out, nil
}

func auditQuery(c audit.Criteria) (string, []any) {
	var a args
	var conds []string

	if c.TenantID != uuid.Nil {
		conds = append(conds, "tenant_id = "+a.add(c.TenantID))
	}
	if c.Action != "" {
		conds = append(conds, "action = "+a.add(c.Action))
	}
	if !c.Since.IsZero() {
		conds = append(conds, "created_at >= "+a.add(c.Since))
	}
	if !c.Until.IsZero() {
		conds = append(conds, "created_at < "+a.add(c.Until))
	}

	query := "SELECT " + auditColumns + " FROM audit_records" + where(conds) + " ORDER BY created_at, id"
	if c.Limit > 0 {
		query += " LIMIT " + a.add(c.Limit)
	}
	if c.Offset > 0 {
		query += " OFFSET " + a.add(c.Offset)
	}
	return query, a.values
}

func auditValues(r audit.Record) ([]any, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	before, err := encodeJSON(r.Before)
	if err != nil {
		return nil, fmt.Errorf("encode before snapshot: %w", err)
	}
	after, err := encodeJSON(r.After)
	if err != nil {
		return nil, fmt.Errorf("encode after snapshot: %w", err)
	}
	var metadata []byte
	if len(r.Metadata) > 0 {
		if metadata, err = json.Marshal(r.Metadata); err != nil {
			return nil, fmt.Errorf("encode audit metadata: %w", err)
		}
	}
	return []any{
		r.ID, r.TenantID, r.Action, r.Actor, string(r.Result), r.Error,
		before, after, r.StateVersion, metadata, r.CreatedAt,
	}, nil
}

func encodeJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func decodeJSON(b []byte) (any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("decode audit snapshot: %w", err)
	}
	return v, nil
}
