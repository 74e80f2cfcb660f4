package pipeline

import "github.com/xraph/cascade/job"

// ComputeStatus derives a pipeline's status from its member jobs. Pure
// function, safe to call redundantly from concurrent terminal-
// transition events.
//
//   - FAILED if any member is FAILED.
//   - SUCCEEDED if every member is terminal and none is FAILED. SKIPPED
//     branches do not prevent success.
//   - PENDING if there are no members or none has left PENDING.
//   - RUNNING otherwise.
func ComputeStatus(jobs []*job.Job) Status {
	if len(jobs) == 0 {
		return StatusPending
	}

	allTerminal := true
	allPending := true
	for _, j := range jobs {
		if j.Status == job.StatusFailed {
			return StatusFailed
		}
		if !j.Status.Terminal() {
			allTerminal = false
		}
		if j.Status != job.StatusPending {
			allPending = false
		}
	}

	switch {
	case allTerminal:
		return StatusSucceeded
	case allPending:
		return StatusPending
	default:
		return StatusRunning
	}
}
