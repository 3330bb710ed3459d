package subscription

import "errors"

var (
	ErrInvalidSubscriptionEndDate  = errors.New("invalid subscription end date")
	ErrInvalidTrialEndDate         = errors.New("invalid trial end date")
	ErrInvalidEffectiveDate        = errors.New("invalid effective date")
	ErrInvalidSuspensionReason     = errors.New("invalid suspension reason")
	ErrInvalidMode                 = errors.New("invalid subscription mode")
	ErrReactivationNotAllowed      = errors.New("reactivation not allowed")
	ErrScheduledChangeNotSupported = errors.New("scheduled edition change not supported")
	ErrSubscriptionInactive        = errors.New("subscription is not active")
)
