package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/entitlekit/pkg/pg"
	"github.com/dmitrymomot/entitlekit/pkg/tenant"
)

const tenantColumns = `id, name, billing_email, edition_id, subscription_state,
	subscription_start_date, subscription_end_date, trial_end_date, trial_ends_at,
	past_due_since, grace_started_at, grace_period_end_date,
	is_suspended, suspended_at, suspension_reason, deactivated_at,
	last_payment_failure_at, last_payment_success_at, last_invoice_id,
	state_version, expiration_policy, created_at, updated_at`

// Tenants is a tenant.Repository on the tenants table.
type Tenants struct {
	db DB
}

var _ tenant.Repository = (*Tenants)(nil)

// NewTenants panics if db is nil.
func NewTenants(db DB) *Tenants {
	if db == nil {
		panic("pgstore: db is required")
	}
	return &Tenants{db: db}
}

// Create inserts t. Seeding and tests only; the engine never creates tenants.
func (s *Tenants) Create(ctx context.Context, t *tenant.Tenant) error {
	policy, err := encodePolicy(t.ExpirationPolicy)
	if err != nil {
		return err
	}
	now := time.Now()
	created, updated := t.CreatedAt, t.UpdatedAt
	if created.IsZero() {
		created = now
	}
	if updated.IsZero() {
		updated = created
	}

	_, err = s.db.Exec(ctx, `INSERT INTO tenants (`+tenantColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)`,
		t.ID, t.Name, t.BillingEmail, t.EditionID, string(t.SubscriptionState),
		t.SubscriptionStartDate, t.SubscriptionEndDate, t.TrialEndDate, t.TrialEndsAt,
		t.PastDueSince, t.GraceStartedAt, t.GracePeriodEndDate,
		t.IsSuspended, t.SuspendedAt, t.SuspensionReason, t.DeactivatedAt,
		t.LastPaymentFailureAt, t.LastPaymentSuccessAt, t.LastInvoiceID,
		t.StateVersion, policy, created, updated,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return fmt.Errorf("create tenant %s: already exists: %w", t.ID, err)
		}
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

func (s *Tenants) FindByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	row := s.db.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	t, err := scanTenant(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, tenant.ErrTenantNotFound
		}
		return nil, fmt.Errorf("find tenant %s: %w", id, err)
	}
	return t, nil
}

func (s *Tenants) Update(ctx context.Context, id uuid.UUID, patch tenant.Patch) error {
	query, values, err := updateStatement(id, patch)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, query, values...)
	if err != nil {
		return fmt.Errorf("update tenant %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return tenant.ErrTenantNotFound
	}
	return nil
}

func (s *Tenants) FindWithFilters(ctx context.Context, q tenant.Query) ([]*tenant.Tenant, error) {
	query, values := filterStatement(q)
	rows, err := s.db.Query(ctx, query, values...)
	if err != nil {
		return nil, fmt.Errorf("find tenants: %w", err)
	}
	defer rows.Close()

	var out []*tenant.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find tenants: %w", err)
	}
	return out, nil
}

func updateStatement(id uuid.UUID, p tenant.Patch) (string, []any, error) {
	var a args
	var sets []string
	set := func(col string, v any) {
		sets = append(sets, col+" = "+a.add(v))
	}

	if p.EditionID.Set {
		set("edition_id", p.EditionID.Value)
	}
	if p.SubscriptionState.Set {
		set("subscription_state", string(p.SubscriptionState.Value))
	}
	times := []struct {
		col string
		f   tenant.Field[*time.Time]
	}{
		{"subscription_start_date", p.SubscriptionStartDate},
		{"subscription_end_date", p.SubscriptionEndDate},
		{"trial_end_date", p.TrialEndDate},
		{"past_due_since", p.PastDueSince},
		{"grace_started_at", p.GraceStartedAt},
		{"grace_period_end_date", p.GracePeriodEndDate},
		{"suspended_at", p.SuspendedAt},
		{"deactivated_at", p.DeactivatedAt},
		{"last_payment_failure_at", p.LastPaymentFailureAt},
		{"last_payment_success_at", p.LastPaymentSuccessAt},
	}
	for _, tf := range times {
		if tf.f.Set {
			set(tf.col, tf.f.Value)
		}
	}
	if p.IsSuspended.Set {
		set("is_suspended", p.IsSuspended.Value)
	}
	if p.SuspensionReason.Set {
		set("suspension_reason", p.SuspensionReason.Value)
	}
	if p.LastInvoiceID.Set {
		set("last_invoice_id", p.LastInvoiceID.Value)
	}
	if p.StateVersion.Set {
		set("state_version", p.StateVersion.Value)
	}
	if p.ExpirationPolicy.Set {
		policy, err := encodePolicy(p.ExpirationPolicy.Value)
		if err != nil {
			return "", nil, err
		}
		set("expiration_policy", policy)
	}
	sets = append(sets, "updated_at = now()")

	query := "UPDATE tenants SET " + strings.Join(sets, ", ") + " WHERE id = " + a.add(id)
	return query, a.values, nil
}

func filterStatement(q tenant.Query) (string, []any) {
	var a args
	var conds []string

	if len(q.States) > 0 {
		states := make([]string, len(q.States))
		for i, st := range q.States {
			states[i] = string(st)
		}
		conds = append(conds, "subscription_state = ANY("+a.add(states)+")")
	}
	if q.EndAfter != nil {
		conds = append(conds, "subscription_end_date > "+a.add(*q.EndAfter))
	}
	if q.EndBefore != nil {
		conds = append(conds, "subscription_end_date < "+a.add(*q.EndBefore))
	}
	if q.TrialEndBefore != nil {
		conds = append(conds, "COALESCE(trial_end_date, trial_ends_at) < "+a.add(*q.TrialEndBefore))
	}
	if q.GraceEndBefore != nil {
		conds = append(conds, "grace_period_end_date < "+a.add(*q.GraceEndBefore))
	}
	if q.PastDueSinceBefore != nil {
		conds = append(conds, "past_due_since < "+a.add(*q.PastDueSinceBefore))
	}
	if q.AfterID != uuid.Nil {
		conds = append(conds, "id > "+a.add(q.AfterID))
	}

	query := "SELECT " + tenantColumns + " FROM tenants" + where(conds) +
		" ORDER BY id LIMIT " + a.add(q.PageSize())
	return query, a.values
}

func scanTenant(row pgx.Row) (*tenant.Tenant, error) {
	var (
		t      tenant.Tenant
		state  string
		policy []byte
	)
	err := row.Scan(
		&t.ID, &t.Name, &t.BillingEmail, &t.EditionID, &state,
		&t.SubscriptionStartDate, &t.SubscriptionEndDate, &t.TrialEndDate, &t.TrialEndsAt,
		&t.PastDueSince, &t.GraceStartedAt, &t.GracePeriodEndDate,
		&t.IsSuspended, &t.SuspendedAt, &t.SuspensionReason, &t.DeactivatedAt,
		&t.LastPaymentFailureAt, &t.LastPaymentSuccessAt, &t.LastInvoiceID,
		&t.StateVersion, &policy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.SubscriptionState = tenant.SubscriptionState(state)
	if len(policy) > 0 {
		var p tenant.ExpirationPolicy
		if err := json.Unmarshal(policy, &p); err != nil {
			return nil, fmt.Errorf("decode expiration policy of %s: %w", t.ID, err)
		}
		t.ExpirationPolicy = &p
	}
	return &t, nil
}

// encodePolicy returns nil for a nil policy so the column stays NULL.
func encodePolicy(p *tenant.ExpirationPolicy) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode expiration policy: %w", err)
	}
	return b, nil
}

// Overrides is a tenant.OverrideRepository on the tenant_features table.
type Overrides struct {
	db DB
}

var _ tenant.OverrideRepository = (*Overrides)(nil)

// NewOverrides panics if db is nil.
func NewOverrides(db DB) *Overrides {
	if db == nil {
		panic("pgstore: db is required")
	}
	return &Overrides{db: db}
}

func (s *Overrides) FindMapByTenantID(ctx context.Context, tenantID uuid.UUID) (map[string]string, error) {
	return queryMap(ctx, s.db, `SELECT feature_key, value FROM tenant_features WHERE tenant_id = $1`, tenantID)
}

// Set upserts one override value. Values are stored raw and validated on read.
func (s *Overrides) Set(ctx context.Context, tenantID uuid.UUID, key, raw string) error {
	_, err := s.db.Exec(ctx, `INSERT INTO tenant_features (tenant_id, feature_key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, feature_key) DO UPDATE SET value = EXCLUDED.value`,
		tenantID, key, raw)
	if err != nil {
		if pg.IsForeignKeyViolationError(err) {
			return tenant.ErrTenantNotFound
		}
		return fmt.Errorf("set override %s for %s: %w", key, tenantID, err)
	}
	return nil
}

// Delete removes one override. Missing rows are not an error.
func (s *Overrides) Delete(ctx context.Context, tenantID uuid.UUID, key string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM tenant_features WHERE tenant_id = $1 AND feature_key = $2`, tenantID, key); err != nil {
		return fmt.Errorf("delete override %s for %s: %w", key, tenantID, err)
	}
	return nil
}

func queryMap(ctx context.Context, db DB, query string, arg any) (map[string]string, error) {
	rows, err := db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query features: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query features: %w", err)
	}
	return out, nil
}
