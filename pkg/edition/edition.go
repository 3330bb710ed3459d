package edition

import (
	"context"
	"time"
)

// Edition is a named pricing and feature bundle.
type Edition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`

	// Prices are in minor currency units.
	MonthlyPrice int64  `json:"monthly_price"`
	AnnualPrice  int64  `json:"annual_price"`
	Currency     string `json:"currency,omitempty"`

	IsActive  bool      `json:"is_active"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository persists editions and their feature assignments.
type Repository interface {
	// FindByID returns ErrEditionNotFound if the edition does not exist.
	FindByID(ctx context.Context, id string) (*Edition, error)
	// FindByName returns ErrEditionNotFound if no edition has the name.
	FindByName(ctx context.Context, name string) (*Edition, error)
	List(ctx context.Context) ([]*Edition, error)
	Create(ctx context.Context, e *Edition) error
	Update(ctx context.Context, e *Edition) error
	Delete(ctx context.Context, id string) error

	// GetFeaturesMap returns feature key -> raw value for the edition.
	GetFeaturesMap(ctx context.Context, id string) (map[string]string, error)
	// ReplaceFeatures deletes all assignments of the edition and inserts the given set.
	ReplaceFeatures(ctx context.Context, id string, assignments map[string]string) error
}
