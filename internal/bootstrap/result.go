package bootstrap

// Status is the outcome reported back to the lifecycle caller.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Result is the terminal outcome of one invocation.
type Result struct {
	Status      Status    `json:"status"`
	Kind        ErrorKind `json:"errorKind,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	ExecutionID string    `json:"executionId,omitempty"`
	Statements  int       `json:"statements,omitempty"`

	err error
}

// Succeeded reports whether the invocation succeeded.
func (r Result) Succeeded() bool { return r.Status == StatusSuccess }

// Err returns the failure as an error, or nil on success.
func (r Result) Err() error {
	if r.Succeeded() {
		return nil
	}
	if r.err != nil {
		return r.err
	}
	return &Error{Kind: r.Kind, Message: r.Reason}
}

func success(executionID string, statements int) Result {
	return Result{Status: StatusSuccess, ExecutionID: executionID, Statements: statements}
}

func failure(err *Error, executionID string) Result {
	return Result{
		Status:      StatusFailed,
		Kind:        err.Kind,
		Reason:      err.Message,
		ExecutionID: executionID,
		err:         err,
	}
}
