package cascade

import "errors"

var (
	// Store errors.
	ErrNoStore         = errors.New("cascade: no store configured")
	ErrNoQueue         = errors.New("cascade: no queue configured")
	ErrStoreClosed     = errors.New("cascade: store closed")
	ErrMigrationFailed = errors.New("cascade: migration failed")

	// Not found errors.
	ErrJobNotFound      = errors.New("cascade: job not found")
	ErrPipelineNotFound = errors.New("cascade: pipeline not found")
	ErrCronNotFound     = errors.New("cascade: cron entry not found")

	// Conflict errors.
	ErrJobAlreadyExists      = errors.New("cascade: job already exists")
	ErrPipelineAlreadyExists = errors.New("cascade: pipeline already exists")
	ErrDuplicateCron         = errors.New("cascade: duplicate cron entry")

	// State errors.
	ErrInvalidTransition  = errors.New("cascade: invalid status transition")
	ErrMaxRetriesExceeded = errors.New("cascade: max retries exceeded")

	// Graph errors.
	ErrCyclicGraph   = errors.New("cascade: dependency graph contains a cycle")
	ErrUnknownJobKey = errors.New("cascade: dependency references unknown job key")
	ErrNoHandler     = errors.New("cascade: no handler registered for job function")
	ErrMissingParam  = errors.New("cascade: required pipeline parameter missing")

	// Queue errors.
	ErrQueueClosed = errors.New("cascade: queue closed")
)
