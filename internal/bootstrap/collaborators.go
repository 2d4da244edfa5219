package bootstrap

import "context"

// AssetStore reads the SQL script. Implementations return an error wrapping
// ErrNotFound when the object does not exist.
type AssetStore interface {
	Fetch(ctx context.Context, bucket, key string) ([]byte, error)
}

// Credential is the warehouse admin login held by the admin secret.
type Credential struct {
	SecretARN string
	Username  string
	Password  string
}

// CredentialResolver reads the admin secret. Implementations wrap ErrNotFound
// for a missing secret and ErrMalformed for one without a usable credential.
type CredentialResolver interface {
	Resolve(ctx context.Context, secretRef string) (Credential, error)
}

// Batch is one submission of the whole script to the warehouse.
type Batch struct {
	WorkgroupName string
	DatabaseName  string
	Credential    Credential
	Statements    []string
	// ClientToken makes a redelivered submission resolve to the same
	// execution.
	ClientToken   string
	StatementName string
}

// ExecutionState mirrors the Redshift Data API statement status.
type ExecutionState string

const (
	StateSubmitted ExecutionState = "SUBMITTED"
	StatePicked    ExecutionState = "PICKED"
	StateStarted   ExecutionState = "STARTED"
	StateFinished  ExecutionState = "FINISHED"
	StateFailed    ExecutionState = "FAILED"
	StateAborted   ExecutionState = "ABORTED"
)

// Terminal reports whether the execution will not change state again.
func (s ExecutionState) Terminal() bool {
	switch s {
	case StateFinished, StateFailed, StateAborted:
		return true
	default:
		return false
	}
}

// Execution is one observation of a submitted batch.
type Execution struct {
	ID    string
	State ExecutionState
	Error string
}

// Executor submits batches to the warehouse and reports on them.
type Executor interface {
	Submit(ctx context.Context, batch Batch) (string, error)
	Describe(ctx context.Context, id string) (Execution, error)
	Cancel(ctx context.Context, id string) error
}
