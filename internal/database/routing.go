package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"
)

// ErrUnavailable is returned when a statement could not be served by either
// backend: the replica exhausted its retry budget and the primary failed as
// well.  Handlers should translate this into an HTTP 503 response.
var ErrUnavailable = errors.New("database unavailable")

// Querier is the statement surface shared by *sql.DB and *RoutingSession.
// Repositories declare routing intent through the method they call:
// QueryContext for reads, ExecContext for writes.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// RoutingSession is a per-request unit of work over two connections: reads go
// to the replica, writes go to the primary inside a lazily opened
// transaction.  After the first write, reads on the same session are forced
// to the primary so the request observes its own writes despite replica lag.
// Sessions are never shared between requests.
type RoutingSession struct {
	// ctx is the construction context and bounds the lifetime of the
	// transaction.  Statement contexts are often narrower (a handler
	// timeout) and expire before the middleware commits; a transaction
	// begun on one of those would be rolled back by database/sql the
	// moment it is cancelled, silently discarding every write.
	ctx context.Context

	primary *sql.Conn
	replica *sql.Conn
	tx      *sql.Tx

	usePrimaryNext bool

	attempts int
	backoff  time.Duration
}

// NewRoutingSession checks out one connection from each pool.  attempts and
// backoff control the replica retry loop; attempts below 1 is treated as 1.
func NewRoutingSession(ctx context.Context, primary, replica *sql.DB, attempts int, backoff time.Duration) (*RoutingSession, error) {
	if attempts < 1 {
		attempts = 1
	}
	pc, err := primary.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: primary checkout: %v", ErrUnavailable, err)
	}
	rc, err := replica.Conn(ctx)
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("%w: replica checkout: %v", ErrUnavailable, err)
	}
	return &RoutingSession{
		ctx:      ctx,
		primary:  pc,
		replica:  rc,
		attempts: attempts,
		backoff:  backoff,
	}, nil
}

// QueryContext serves a read.  The replica is tried first unless a write has
// already happened on this session.  Replica failures are retried with a
// fixed backoff and then recovered via the primary; they are surfaced to the
// caller only when the primary also fails.  Context cancellation is never
// retried.
func (s *RoutingSession) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if s.usePrimaryNext {
		return s.primaryQuery(ctx, query, args...)
	}

	var lastErr error
	for i := 0; i < s.attempts; i++ {
		rows, err := s.replica.QueryContext(ctx, query, args...)
		if err == nil {
			return rows, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if i < s.attempts-1 && s.backoff > 0 {
			select {
			case <-time.After(s.backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	log.Printf("routing: replica read failed after %d attempts: %v; falling back to primary", s.attempts, lastErr)
	rows, err := s.primaryQuery(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: replica: %v; primary: %v", ErrUnavailable, lastErr, err)
	}
	return rows, nil
}

// ExecContext serves a write on the primary.  The first write opens the
// session transaction; every write flags the session so subsequent reads are
// routed to the primary as well.
func (s *RoutingSession) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if err := s.ensureTx(); err != nil {
		return nil, err
	}
	s.usePrimaryNext = true
	return s.tx.ExecContext(ctx, query, args...)
}

func (s *RoutingSession) primaryQuery(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if s.tx != nil {
		return s.tx.QueryContext(ctx, query, args...)
	}
	return s.primary.QueryContext(ctx, query, args...)
}

// ensureTx opens the session transaction on the session context, never the
// statement context: the transaction must stay alive until Commit even when
// the statement that opened it ran under a narrower deadline.
func (s *RoutingSession) ensureTx() error {
	if s.tx != nil {
		return nil
	}
	tx, err := s.primary.BeginTx(s.ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrUnavailable, err)
	}
	s.tx = tx
	return nil
}

// Commit commits the primary transaction, if one was opened.  The replica is
// read-only and carries nothing to commit.  The read-after-write flag resets
// so the next read may use the replica again.
func (s *RoutingSession) Commit() error {
	s.usePrimaryNext = false
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit()
	s.tx = nil
	return err
}

// Rollback discards the primary transaction.  Replica reads run autocommit,
// so only the primary side carries transactional state to unwind.
func (s *RoutingSession) Rollback() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	return err
}

// Close releases both connections unconditionally; a failure on one side
// never prevents releasing the other.  An open transaction is rolled back
// first so no partial writes survive a cancelled request.
func (s *RoutingSession) Close() error {
	var errs []error
	if s.tx != nil {
		if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			errs = append(errs, err)
		}
		s.tx = nil
	}
	if err := s.primary.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.replica.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
