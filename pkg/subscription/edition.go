package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/entitlekit/pkg/events"
	"github.com/dmitrymomot/entitlekit/pkg/tenant"
)

// EditionChange moves a tenant to another edition.
// Only immediate changes are supported.
type EditionChange struct {
	EditionID     string
	EffectiveDate time.Time
	Reason        string
	Actor         string
}

func (s *service) ChangeTenantEdition(ctx context.Context, tenantID uuid.UUID, ch EditionChange) (*tenant.Tenant, error) {
	if ch.EffectiveDate.IsZero() {
		return nil, ErrInvalidEffectiveDate
	}
	if ch.EffectiveDate.After(s.now()) {
		return nil, ErrScheduledChangeNotSupported
	}

	t, err := s.load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if _, err := s.editions.Get(ctx, ch.EditionID); err != nil {
		return nil, err
	}
	if t.EditionID == ch.EditionID {
		return t, nil
	}

	after, err := s.commit(ctx, t, change{
		action: ActionEditionChanged,
		actor:  actorOr(ch.Actor),
		patch:  tenant.Patch{EditionID: tenant.Set(ch.EditionID)},
		metadata: map[string]any{
			"previous_edition_id": t.EditionID,
			"edition_id":          ch.EditionID,
			"effective_date":      ch.EffectiveDate.UTC(),
			"reason":              ch.Reason,
		},
	})
	if err != nil {
		return nil, err
	}
	s.entitlements.InvalidateTenant(ctx, tenantID)

	s.publish(ctx, events.SubscriptionPlanChanged, tenantID, map[string]any{
		"previous_edition_id": t.EditionID,
		"edition_id":          ch.EditionID,
		"reason":              ch.Reason,
	})
	return after, nil
}

func (s *service) AssignFallbackEdition(ctx context.Context, tenantID uuid.UUID, editionID, actor string) (*tenant.Tenant, error) {
	t, err := s.load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if _, err := s.editions.Get(ctx, editionID); err != nil {
		return nil, err
	}

	var patch tenant.Patch
	ensure(&patch.EditionID, t.EditionID, editionID)
	clearIfSet(&patch.SubscriptionEndDate, t.SubscriptionEndDate)

	after, err := s.commit(ctx, t, change{
		action: ActionFallbackAssigned,
		actor:  actorOr(actor),
		patch:  patch,
		metadata: map[string]any{
			"previous_edition_id": t.EditionID,
			"edition_id":          editionID,
		},
	})
	if err != nil {
		return nil, err
	}
	if patch.EditionID.Set {
		s.entitlements.InvalidateTenant(ctx, tenantID)
	}
	return after, nil
}
