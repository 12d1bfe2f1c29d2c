package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestSession builds a session over two mocked pools.  Backoff is zero so
// retry tests run instantly.
func newTestSession(t *testing.T, attempts int) (*RoutingSession, sqlmock.Sqlmock, sqlmock.Sqlmock) {
	t.Helper()
	primaryDB, pmock, err := sqlmock.New()
	require.NoError(t, err)
	replicaDB, rmock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		primaryDB.Close()
		replicaDB.Close()
	})

	rs, err := NewRoutingSession(context.Background(), primaryDB, replicaDB, attempts, 0)
	require.NoError(t, err)
	t.Cleanup(func() { rs.Close() })
	return rs, pmock, rmock
}

func drain(t *testing.T, rows *sql.Rows) {
	t.Helper()
	for rows.Next() {
	}
	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())
}

func TestReadsGoToReplica(t *testing.T) {
	rs, pmock, rmock := newTestSession(t, 3)

	rmock.ExpectQuery("SELECT id FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1"))

	rows, err := rs.QueryContext(context.Background(), "SELECT id FROM users")
	require.NoError(t, err)
	drain(t, rows)

	assert.NoError(t, rmock.ExpectationsWereMet())
	assert.NoError(t, pmock.ExpectationsWereMet()) // primary untouched
}

func TestWritesGoToPrimaryInTx(t *testing.T) {
	rs, pmock, rmock := newTestSession(t, 3)

	pmock.ExpectBegin()
	pmock.ExpectExec("UPDATE sessions SET deleted_at").
		WillReturnResult(sqlmock.NewResult(0, 1))
	pmock.ExpectCommit()

	res, err := rs.ExecContext(context.Background(), "UPDATE sessions SET deleted_at = NOW()")
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, rs.Commit())
	assert.NoError(t, pmock.ExpectationsWereMet())
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestReadAfterWriteUsesPrimary(t *testing.T) {
	rs, pmock, rmock := newTestSession(t, 3)

	pmock.ExpectBegin()
	pmock.ExpectExec("INSERT INTO sessions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// The follow-up read must run inside the same primary transaction.
	pmock.ExpectQuery("SELECT id FROM sessions").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("s1"))
	pmock.ExpectCommit()

	_, err := rs.ExecContext(context.Background(), "INSERT INTO sessions (id) VALUES (?)", "s1")
	require.NoError(t, err)

	rows, err := rs.QueryContext(context.Background(), "SELECT id FROM sessions WHERE id = ?", "s1")
	require.NoError(t, err)
	drain(t, rows)

	require.NoError(t, rs.Commit())
	assert.NoError(t, pmock.ExpectationsWereMet())
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestCommitResetsReadRouting(t *testing.T) {
	rs, pmock, rmock := newTestSession(t, 3)

	pmock.ExpectBegin()
	pmock.ExpectExec("UPDATE users").WillReturnResult(sqlmock.NewResult(0, 1))
	pmock.ExpectCommit()
	rmock.ExpectQuery("SELECT id FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1"))

	_, err := rs.ExecContext(context.Background(), "UPDATE users SET name = ?", "x")
	require.NoError(t, err)
	require.NoError(t, rs.Commit())

	// After commit the replica serves reads again.
	rows, err := rs.QueryContext(context.Background(), "SELECT id FROM users")
	require.NoError(t, err)
	drain(t, rows)

	assert.NoError(t, pmock.ExpectationsWereMet())
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestReplicaFailureRetriedThenPrimary(t *testing.T) {
	rs, pmock, rmock := newTestSession(t, 3)

	replicaErr := errors.New("connection refused")
	for i := 0; i < 3; i++ {
		rmock.ExpectQuery("SELECT id FROM users").WillReturnError(replicaErr)
	}
	pmock.ExpectQuery("SELECT id FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1"))

	rows, err := rs.QueryContext(context.Background(), "SELECT id FROM users")
	require.NoError(t, err)
	drain(t, rows)

	assert.NoError(t, rmock.ExpectationsWereMet())
	assert.NoError(t, pmock.ExpectationsWereMet())
}

func TestBothBackendsDownIsUnavailable(t *testing.T) {
	rs, pmock, rmock := newTestSession(t, 2)

	rmock.ExpectQuery("SELECT id FROM users").WillReturnError(errors.New("replica down"))
	rmock.ExpectQuery("SELECT id FROM users").WillReturnError(errors.New("replica down"))
	pmock.ExpectQuery("SELECT id FROM users").WillReturnError(errors.New("primary down"))

	_, err := rs.QueryContext(context.Background(), "SELECT id FROM users")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NoError(t, rmock.ExpectationsWereMet())
	assert.NoError(t, pmock.ExpectationsWereMet())
}

func TestCancelledContextNotRetried(t *testing.T) {
	rs, _, rmock := newTestSession(t, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rmock.ExpectQuery("SELECT id FROM users").WillReturnError(context.Canceled)

	// A retried read would exhaust the single expectation and fall back to
	// the primary, surfacing ErrUnavailable instead of the context error.
	_, err := rs.QueryContext(ctx, "SELECT id FROM users")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

// The transaction belongs to the session, not to the statement that opened
// it.  A handler-scoped timeout context expires when the handler returns,
// before the middleware commits; if the transaction were bound to it,
// database/sql would roll back every write behind the middleware's back.
func TestTxSurvivesStatementContextCancel(t *testing.T) {
	rs, pmock, _ := newTestSession(t, 1)

	pmock.ExpectBegin()
	pmock.ExpectExec("INSERT INTO sessions").WillReturnResult(sqlmock.NewResult(0, 1))
	pmock.ExpectCommit()

	stmtCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	_, err := rs.ExecContext(stmtCtx, "INSERT INTO sessions (id) VALUES (?)", "s1")
	require.NoError(t, err)
	cancel() // the handler's deferred cancel fires before the middleware commits

	require.NoError(t, rs.Commit())
	assert.NoError(t, pmock.ExpectationsWereMet())
}

func TestRollbackDiscardsWrites(t *testing.T) {
	rs, pmock, _ := newTestSession(t, 3)

	pmock.ExpectBegin()
	pmock.ExpectExec("DELETE FROM sessions").WillReturnResult(sqlmock.NewResult(0, 3))
	pmock.ExpectRollback()

	_, err := rs.ExecContext(context.Background(), "DELETE FROM sessions WHERE user_id = ?", "u1")
	require.NoError(t, err)
	require.NoError(t, rs.Rollback())
	assert.NoError(t, pmock.ExpectationsWereMet())
}

func TestCloseRollsBackOpenTx(t *testing.T) {
	primaryDB, pmock, err := sqlmock.New()
	require.NoError(t, err)
	replicaDB, rmock, err := sqlmock.New()
	require.NoError(t, err)
	defer primaryDB.Close()
	defer replicaDB.Close()

	rs, err := NewRoutingSession(context.Background(), primaryDB, replicaDB, 1, 0)
	require.NoError(t, err)

	pmock.ExpectBegin()
	pmock.ExpectExec("UPDATE users").WillReturnResult(sqlmock.NewResult(0, 1))
	pmock.ExpectRollback()

	_, err = rs.ExecContext(context.Background(), "UPDATE users SET name = ?", "x")
	require.NoError(t, err)

	assert.NoError(t, rs.Close())
	assert.NoError(t, pmock.ExpectationsWereMet())
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestCommitWithoutWritesIsNoop(t *testing.T) {
	rs, pmock, _ := newTestSession(t, 3)
	assert.NoError(t, rs.Commit())
	assert.NoError(t, pmock.ExpectationsWereMet())
}
