package warehouse

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kiquetal/ultimate-aws-data-engineering-book/internal/bootstrap"
	"github.com/kiquetal/ultimate-aws-data-engineering-book/internal/config"
)

var _ bootstrap.Executor = (*DirectExecutor)(nil)

// sqlConn abstracts the pgx.Conn methods the executor uses so that tests can
// inject a fake without standing up a database.
type sqlConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close(ctx context.Context) error
}

// DirectExecutor runs batches over the Postgres wire protocol against the
// workgroup endpoint, inside a single transaction. Each submission runs in
// its own goroutine; Describe observes it without blocking.
type DirectExecutor struct {
	cfg     config.DirectConfig
	connect func(ctx context.Context, cfg config.DirectConfig, database string, cred bootstrap.Credential) (sqlConn, error)

	mu   sync.Mutex
	runs map[string]*run
}

type run struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewDirectExecutor returns an executor that connects lazily on Submit.
func NewDirectExecutor(cfg config.DirectConfig) *DirectExecutor {
	return &DirectExecutor{
		cfg:     cfg,
		connect: realConnect,
		runs:    make(map[string]*run),
	}
}

// Submit starts the batch. A repeated client token returns the existing run.
func (e *DirectExecutor) Submit(ctx context.Context, batch bootstrap.Batch) (string, error) {
	if len(batch.Statements) == 0 {
		return "", errors.New("batch has no statements")
	}

	id := batch.ClientToken
	if id == "" {
		id = uuid.NewString()
	}

	e.mu.Lock()
	if _, ok := e.runs[id]; ok {
		e.mu.Unlock()
		return id, nil
	}
	e.mu.Unlock()

	conn, err := e.connect(ctx, e.cfg, batch.DatabaseName, batch.Credential)
	if err != nil {
		return "", fmt.Errorf("connect to %s: %w", net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port)), err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{cancel: cancel, done: make(chan struct{})}

	e.mu.Lock()
	if _, ok := e.runs[id]; ok {
		e.mu.Unlock()
		cancel()
		_ = conn.Close(ctx)
		return id, nil
	}
	e.runs[id] = r
	e.mu.Unlock()

	go func() {
		defer close(r.done)
		defer cancel()
		r.err = execInTx(runCtx, conn, batch.Statements)
	}()

	return id, nil
}

// Describe reports STARTED until the run completes.
func (e *DirectExecutor) Describe(_ context.Context, id string) (bootstrap.Execution, error) {
	r, err := e.lookup(id)
	if err != nil {
		return bootstrap.Execution{}, err
	}

	select {
	case <-r.done:
	default:
		return bootstrap.Execution{ID: id, State: bootstrap.StateStarted}, nil
	}

	switch {
	case r.err == nil:
		return bootstrap.Execution{ID: id, State: bootstrap.StateFinished}, nil
	case errors.Is(r.err, context.Canceled):
		return bootstrap.Execution{ID: id, State: bootstrap.StateAborted, Error: r.err.Error()}, nil
	default:
		return bootstrap.Execution{ID: id, State: bootstrap.StateFailed, Error: r.err.Error()}, nil
	}
}

// Cancel aborts the run. The transaction is rolled back when the connection
// drops.
func (e *DirectExecutor) Cancel(_ context.Context, id string) error {
	r, err := e.lookup(id)
	if err != nil {
		return err
	}
	r.cancel()
	return nil
}

// Wait blocks until the run finishes or ctx is done.
func (e *DirectExecutor) Wait(ctx context.Context, id string) error {
	r, err := e.lookup(id)
	if err != nil {
		return err
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *DirectExecutor) lookup(id string) (*run, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.runs[id]
	if !ok {
		return nil, fmt.Errorf("unknown execution %s", id)
	}
	return r, nil
}

func execInTx(ctx context.Context, conn sqlConn, statements []string) (err error) {
	defer func() {
		// Close with a fresh context; ctx may already be cancelled.
		if cerr := conn.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = fmt.Errorf("close connection: %w", cerr)
		}
	}()

	if _, err := conn.Exec(ctx, "BEGIN"); err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	for i, stmt := range statements {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			if ctx.Err() == nil {
				_, _ = conn.Exec(ctx, "ROLLBACK")
			}
			return fmt.Errorf("statement %d: %w", i+1, err)
		}
	}
	if _, err := conn.Exec(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// realConnect opens a pgx connection to the workgroup endpoint. Statements go
// over the simple query protocol since Redshift does not support pgx's
// statement cache.
func realConnect(ctx context.Context, cfg config.DirectConfig, database string, cred bootstrap.Credential) (sqlConn, error) {
	dsn := (&url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + database,
		RawQuery: url.Values{"sslmode": []string{cfg.SSLMode}}.Encode(),
	}).String()

	connCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing redshift DSN: %w", err)
	}
	connCfg.User = cred.Username
	connCfg.Password = cred.Password
	connCfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	conn, err := pgx.ConnectConfig(ctx, connCfg)
	if err != nil {
		return nil, fmt.Errorf("opening redshift connection: %w", err)
	}
	return conn, nil
}
