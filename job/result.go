package job

// ResultStatus is the outcome a job body reports for itself.
type ResultStatus string

const (
	// ResultOK means the body completed its work.
	ResultOK ResultStatus = "ok"
	// ResultFailed means the body determined the operation cannot
	// proceed (missing precondition, nothing to do). An expected
	// business failure, terminal without retries.
	ResultFailed ResultStatus = "failed"
)

// Result is the structured value every job body returns. Data is merged
// into the job's metadata on success; ExceptionDetails is persisted on
// failure.
type Result struct {
	Status           ResultStatus   `json:"status"`
	Data             map[string]any `json:"data,omitempty"`
	ExceptionDetails map[string]any `json:"exception_details,omitempty"`
}

// OK builds a successful result carrying data for downstream jobs.
func OK(data map[string]any) *Result {
	return &Result{Status: ResultOK, Data: data}
}

// Fail builds an expected-failure result with explanatory details.
func Fail(details map[string]any) *Result {
	return &Result{Status: ResultFailed, ExceptionDetails: details}
}

// Succeeded reports whether the body declared the work done.
func (r *Result) Succeeded() bool {
	return r != nil && r.Status == ResultOK
}
