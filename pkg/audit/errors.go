package audit

import "errors"

var (
	// ErrStorageNotAvailable indicates the storage backend is unavailable.
	ErrStorageNotAvailable = errors.New("audit storage is unavailable")

	// ErrRecordValidation indicates a record is missing required fields.
	ErrRecordValidation = errors.New("audit record validation failed")
)
