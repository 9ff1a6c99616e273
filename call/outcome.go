package call

import "time"

// Status is the settled state of one outbound call.
type Status string

const (
	// StatusSucceeded means the call completed with a non-error HTTP status.
	StatusSucceeded Status = "succeeded"
	// StatusFailed means the call completed with a transport error or an
	// error HTTP status (>= 400).
	StatusFailed Status = "failed"
	// StatusTimedOut means the per-call or continuation deadline elapsed
	// before the call completed.
	StatusTimedOut Status = "timed_out"
	// StatusCancelled means the continuation was cancelled while the call
	// was still outstanding.
	StatusCancelled Status = "cancelled"
)

// Outcome is the settled result of one outbound call. It is always a
// value, never an error: transport failures and timeouts are carried in
// Status and Error so the resume handler can inspect them.
type Outcome struct {
	// Label echoes the descriptor's label.
	Label string `json:"label"`

	// Status classifies the settlement.
	Status Status `json:"status"`

	// HTTPStatus is the response status code, when a response was
	// received at all (success or HTTP-level failure).
	HTTPStatus int `json:"http_status,omitempty"`

	// Body is the response body, when one was received.
	Body []byte `json:"body,omitempty"`

	// Error holds transport or status detail for failed and timed-out
	// calls. Empty on success.
	Error string `json:"error,omitempty"`

	// Elapsed is how long the call took to settle.
	Elapsed time.Duration `json:"elapsed"`

	// SettledAt is when the outcome was recorded.
	SettledAt time.Time `json:"settled_at"`
}

// OK reports whether the call succeeded.
func (o *Outcome) OK() bool { return o.Status == StatusSucceeded }

// Succeeded builds a success outcome.
func Succeeded(label string, httpStatus int, body []byte, elapsed time.Duration) *Outcome {
	return &Outcome{
		Label:      label,
		Status:     StatusSucceeded,
		HTTPStatus: httpStatus,
		Body:       body,
		Elapsed:    elapsed,
		SettledAt:  time.Now().UTC(),
	}
}

// Failed builds a failure outcome. httpStatus is zero for transport-level
// failures where no response was received.
func Failed(label string, httpStatus int, body []byte, detail string, elapsed time.Duration) *Outcome {
	return &Outcome{
		Label:      label,
		Status:     StatusFailed,
		HTTPStatus: httpStatus,
		Body:       body,
		Error:      detail,
		Elapsed:    elapsed,
		SettledAt:  time.Now().UTC(),
	}
}

// TimedOut builds a timeout outcome.
func TimedOut(label string, elapsed time.Duration) *Outcome {
	return &Outcome{
		Label:     label,
		Status:    StatusTimedOut,
		Error:     "deadline exceeded",
		Elapsed:   elapsed,
		SettledAt: time.Now().UTC(),
	}
}

// Cancelled builds a cancellation outcome.
func Cancelled(label string) *Outcome {
	return &Outcome{
		Label:     label,
		Status:    StatusCancelled,
		Error:     "continuation cancelled",
		SettledAt: time.Now().UTC(),
	}
}
