package jobs

import "errors"

var (
	ErrJobAlreadyRegistered = errors.New("job already registered")
	ErrJobNotFound          = errors.New("job not found")
	ErrInvalidJob           = errors.New("job name, schedule and func are required")
	ErrNoJobs               = errors.New("scheduler has no jobs")
)
