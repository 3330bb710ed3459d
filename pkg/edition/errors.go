package edition

import "errors"

var (
	ErrEditionNotFound     = errors.New("edition not found")
	ErrEditionNameTaken    = errors.New("edition name already taken")
	ErrEditionIDTaken      = errors.New("edition id already taken")
	ErrInvalidEditionName  = errors.New("edition name is required")
	ErrInvalidEditionPrice = errors.New("edition price must not be negative")
	ErrInvalidAssignments  = errors.New("invalid edition feature assignments")
)
