package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/entitlekit/pkg/edition"
	"github.com/dmitrymomot/entitlekit/pkg/pg"
)

const editionColumns = `id, name, display_name, monthly_price, annual_price, currency,
	is_active, sort_order, created_at, updated_at`

// Editions is an edition.Repository on the editions and edition_features tables.
type Editions struct {
	db DB
}

var _ edition.Repository = (*Editions)(nil)

// NewEditions panics if db is nil.
func NewEditions(db DB) *Editions {
	if db == nil {
		panic("pgstore: db is required")
	}
	return &Editions{db: db}
}

func (s *Editions) FindByID(ctx context.Context, id string) (*edition.Edition, error) {
	return s.findOne(ctx, `SELECT `+editionColumns+` FROM editions WHERE id = $1`, id)
}

func (s *Editions) FindByName(ctx context.Context, name string) (*edition.Edition, error) {
	return s.findOne(ctx, `SELECT `+editionColumns+` FROM editions WHERE name = $1`, name)
}

func (s *Editions) findOne(ctx context.Context, query string, arg string) (*edition.Edition, error) {
	e, err := scanEdition(s.db.QueryRow(ctx, query, arg))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, edition.ErrEditionNotFound
		}
		return nil, fmt.Errorf("find edition %q: %w", arg, err)
	}
	return e, nil
}

func (s *Editions) List(ctx context.Context) ([]*edition.Edition, error) {
	rows, err := s.db.Query(ctx, `SELECT `+editionColumns+` FROM editions ORDER BY sort_order, name`)
	if err != nil {
		return nil, fmt.Errorf("list editions: %w", err)
	}
	defer rows.Close()

	var out []*edition.Edition
	for rows.Next() {
		e, err := scanEdition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan edition: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list editions: %w", err)
	}
	return out, nil
}

func (s *Editions) Create(ctx context.Context, e *edition.Edition) error {
	_, err := s.db.Exec(ctx, `INSERT INTO editions (`+editionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		e.ID, e.Name, e.DisplayName, e.MonthlyPrice, e.AnnualPrice, e.Currency,
		e.IsActive, e.SortOrder, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return duplicateEdition(err)
		}
		return fmt.Errorf("create edition %q: %w", e.ID, err)
	}
	return nil
}

func (s *Editions) Update(ctx context.Context, e *edition.Edition) error {
	tag, err := s.db.Exec(ctx, `UPDATE editions SET
		name = $2, display_name = $3, monthly_price = $4, annual_price = $5, currency = $6,
		is_active = $7, sort_order = $8, updated_at = $9
		WHERE id = $1`,
		e.ID, e.Name, e.DisplayName, e.MonthlyPrice, e.AnnualPrice, e.Currency,
		e.IsActive, e.SortOrder, e.UpdatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return duplicateEdition(err)
		}
		return fmt.Errorf("update edition %q: %w", e.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return edition.ErrEditionNotFound
	}
	return nil
}

// Delete removes the edition; its feature assignments cascade.
func (s *Editions) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM editions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete edition %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return edition.ErrEditionNotFound
	}
	return nil
}

func (s *Editions) GetFeaturesMap(ctx context.Context, id string) (map[string]string, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM editions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("find edition %q: %w", id, err)
	}
	if !exists {
		return nil, edition.ErrEditionNotFound
	}
	return queryMap(ctx, s.db, `SELECT feature_key, value FROM edition_features WHERE edition_id = $1`, id)
}

// ReplaceFeatures swaps the whole assignment set in one transaction so that
// readers never observe a partially replaced edition.
func (s *Editions) ReplaceFeatures(ctx context.Context, id string, assignments map[string]string) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var locked string
		err := tx.QueryRow(ctx, `SELECT id FROM editions WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if err != nil {
			if pg.IsNotFoundError(err) {
				return edition.ErrEditionNotFound
			}
			return fmt.Errorf("lock edition %q: %w", id, err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM edition_features WHERE edition_id = $1`, id); err != nil {
			return fmt.Errorf("clear features of %q: %w", id, err)
		}
		if len(assignments) == 0 {
			return nil
		}

		rows := make([][]any, 0, len(assignments))
		for key, value := range assignments {
			rows = append(rows, []any{id, key, value})
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"edition_features"},
			[]string{"edition_id", "feature_key", "value"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return fmt.Errorf("insert features of %q: %w", id, err)
		}
		return nil
	})
}

// duplicateEdition maps a unique violation to the sentinel of the violated constraint.
func duplicateEdition(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.ConstraintName == "editions_name_key" {
		return edition.ErrEditionNameTaken
	}
	return edition.ErrEditionIDTaken
}

func scanEdition(row pgx.Row) (*edition.Edition, error) {
	var e edition.Edition
	err := row.Scan(
		&e.ID, &e.Name, &e.DisplayName, &e.MonthlyPrice, &e.AnnualPrice, &e.Currency,
		&e.IsActive, &e.SortOrder, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
