package bootstrap

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	cause := fmt.Errorf("GetSecretValue: %w", ErrNotFound)
	err := newError(KindCredentialResolution, cause, "resolving admin secret %s", "admin")

	assert.Equal(t, "CredentialResolutionError: resolving admin secret admin: GetSecretValue: not found", err.Error())
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, KindCredentialResolution, KindOf(fmt.Errorf("wrapped: %w", err)))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
}

func TestResultErr(t *testing.T) {
	ok := success("exec-1", 3)
	assert.NoError(t, ok.Err())

	failed := failure(newError(KindExecutionTimeout, nil, "too slow"), "exec-2")
	assert.Equal(t, "ExecutionTimeout: too slow", failed.Err().Error())
	assert.Equal(t, "exec-2", failed.ExecutionID)

	bare := Result{Status: StatusFailed, Kind: KindSubmission, Reason: "rejected"}
	assert.Equal(t, KindSubmission, KindOf(bare.Err()))
}
