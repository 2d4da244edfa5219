package warehouse

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiquetal/ultimate-aws-data-engineering-book/internal/bootstrap"
	"github.com/kiquetal/ultimate-aws-data-engineering-book/internal/config"
)

type fakeConn struct {
	mu     sync.Mutex
	execs  []string
	failOn string
	block  bool
	closed bool
}

func (c *fakeConn) Exec(ctx context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	c.mu.Lock()
	c.execs = append(c.execs, sql)
	c.mu.Unlock()
	if c.block && sql != "BEGIN" && sql != "ROLLBACK" {
		<-ctx.Done()
		return pgconn.CommandTag{}, ctx.Err()
	}
	if sql == c.failOn {
		return pgconn.CommandTag{}, errors.New(`ERROR: syntax error at or near "TABLEE"`)
	}
	return pgconn.CommandTag{}, nil
}

func (c *fakeConn) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) snapshot() ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.execs...), c.closed
}

func newTestDirect(conn *fakeConn, connectErr error) (*DirectExecutor, *bootstrap.Credential) {
	var got bootstrap.Credential
	e := NewDirectExecutor(config.DirectConfig{Host: "lab2-workgroup.example", Port: 5439, SSLMode: "require"})
	e.connect = func(_ context.Context, _ config.DirectConfig, _ string, cred bootstrap.Credential) (sqlConn, error) {
		got = cred
		if connectErr != nil {
			return nil, connectErr
		}
		return conn, nil
	}
	return e, &got
}

func directBatch(statements ...string) bootstrap.Batch {
	return bootstrap.Batch{
		WorkgroupName: "lab2-workgroup",
		DatabaseName:  "lab2db",
		Credential:    bootstrap.Credential{Username: "admin", Password: "pw"},
		Statements:    statements,
		ClientToken:   "token-1",
	}
}

func TestDirectExecutor_Finished(t *testing.T) {
	conn := &fakeConn{}
	e, cred := newTestDirect(conn, nil)
	ctx := context.Background()

	id, err := e.Submit(ctx, directBatch("CREATE SCHEMA IF NOT EXISTS staging", "CREATE TABLE IF NOT EXISTS staging.t (id INT)"))
	require.NoError(t, err)
	assert.Equal(t, "token-1", id)
	assert.Equal(t, "admin", cred.Username)

	require.NoError(t, e.Wait(ctx, id))
	exec, err := e.Describe(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, bootstrap.StateFinished, exec.State)

	execs, closed := conn.snapshot()
	assert.Equal(t, []string{
		"BEGIN",
		"CREATE SCHEMA IF NOT EXISTS staging",
		"CREATE TABLE IF NOT EXISTS staging.t (id INT)",
		"COMMIT",
	}, execs)
	assert.True(t, closed)
}

func TestDirectExecutor_Failed(t *testing.T) {
	conn := &fakeConn{failOn: "CREATE TABLEE t"}
	e, _ := newTestDirect(conn, nil)
	ctx := context.Background()

	id, err := e.Submit(ctx, directBatch("CREATE SCHEMA s", "CREATE TABLEE t", "SELECT 1"))
	require.NoError(t, err)
	require.NoError(t, e.Wait(ctx, id))

	exec, err := e.Describe(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, bootstrap.StateFailed, exec.State)
	assert.Contains(t, exec.Error, "statement 2")
	assert.Contains(t, exec.Error, "syntax error")

	execs, _ := conn.snapshot()
	assert.Equal(t, []string{"BEGIN", "CREATE SCHEMA s", "CREATE TABLEE t", "ROLLBACK"}, execs)
}

func TestDirectExecutor_Cancel(t *testing.T) {
	conn := &fakeConn{block: true}
	e, _ := newTestDirect(conn, nil)
	ctx := context.Background()

	id, err := e.Submit(ctx, directBatch("VACUUM"))
	require.NoError(t, err)

	exec, err := e.Describe(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, bootstrap.StateStarted, exec.State)

	require.NoError(t, e.Cancel(ctx, id))

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, e.Wait(waitCtx, id))

	exec, err = e.Describe(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, bootstrap.StateAborted, exec.State)
}

func TestDirectExecutor_ConnectError(t *testing.T) {
	e, _ := newTestDirect(nil, errors.New("connection refused"))

	_, err := e.Submit(context.Background(), directBatch("SELECT 1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lab2-workgroup.example:5439")
}

func TestDirectExecutor_DuplicateToken(t *testing.T) {
	conn := &fakeConn{}
	e, _ := newTestDirect(conn, nil)
	ctx := context.Background()

	first, err := e.Submit(ctx, directBatch("SELECT 1"))
	require.NoError(t, err)
	require.NoError(t, e.Wait(ctx, first))

	second, err := e.Submit(ctx, directBatch("SELECT 1"))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	execs, _ := conn.snapshot()
	assert.Equal(t, []string{"BEGIN", "SELECT 1", "COMMIT"}, execs)
}

func TestDirectExecutor_UnknownID(t *testing.T) {
	e, _ := newTestDirect(&fakeConn{}, nil)

	_, err := e.Describe(context.Background(), "nope")
	assert.Error(t, err)
	assert.Error(t, e.Cancel(context.Background(), "nope"))
}

func TestDirectExecutor_EventuallyTerminal(t *testing.T) {
	conn := &fakeConn{}
	e, _ := newTestDirect(conn, nil)

	id, err := e.Submit(context.Background(), directBatch("SELECT 1"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		exec, err := e.Describe(context.Background(), id)
		return err == nil && exec.State.Terminal()
	}, time.Second, time.Millisecond)
}
