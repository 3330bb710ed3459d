package webhook

import "errors"

var (
	ErrInvalidURL       = errors.New("invalid webhook url")
	ErrCircuitOpen      = errors.New("webhook circuit is open")
	ErrPermanentFailure = errors.New("webhook rejected the delivery")
	ErrDeliveryFailed   = errors.New("webhook delivery failed")
	ErrQueueFull        = errors.New("webhook queue is full")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrSignatureExpired = errors.New("webhook signature timestamp is outside the tolerance")
)
