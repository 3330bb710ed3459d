package billing

import "errors"

var (
	ErrInvalidSignature = errors.New("billing: invalid webhook signature")
	ErrMalformedPayload = errors.New("billing: malformed webhook payload")
	ErrMissingTenantID  = errors.New("billing: custom_data.tenant_id is missing or invalid")
	ErrMissingSecret    = errors.New("billing: webhook secret is required")
)
