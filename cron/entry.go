package cron

import (
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
)

// Entry represents a scheduled job creation: on each due tick the
// scheduler creates and enqueues a fresh independent job from this
// template.
type Entry struct {
	cascade.Entity

	ID   id.ID  `json:"id"`
	Name string `json:"name"`

	// Schedule is a cron expression ("0 3 * * *", "@every 30m").
	Schedule string `json:"schedule"`

	// Function is the dispatch name of the job to create on each fire.
	Function string `json:"function"`

	// Params is the params template for created jobs.
	Params map[string]any `json:"params,omitempty"`

	Enabled   bool       `json:"enabled"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	NextRunAt *time.Time `json:"next_run_at,omitempty"`

	// Lock fields guard against double-firing when several scheduler
	// instances observe the same due entry.
	LockedBy    string     `json:"locked_by,omitempty"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
}

// NewEntry creates an enabled entry with a fresh ID. NextRunAt is
// stamped from the schedule at registration time by the caller.
func NewEntry(name, schedule, function string, params map[string]any) *Entry {
	return &Entry{
		Entity:   cascade.NewEntity(),
		ID:       id.NewCronID(),
		Name:     name,
		Schedule: schedule,
		Function: function,
		Params:   params,
		Enabled:  true,
	}
}
