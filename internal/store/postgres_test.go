// AngelaMos | 2026
// postgres_test.go

package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/pocketree/internal/core"
)

var loginAt = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

const touchLogin = `UPDATE users\s+SET last_login_at = \$2`

func newMockPostgres(t *testing.T, retries int) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPostgres(sqlx.NewDb(db, "pgx"), retries, logger), mock
}

type attempts struct {
	runs  int
	hooks int
}

func (a *attempts) touch(ctx context.Context, tx Tx) error {
	a.runs++
	tx.AfterCommit(func() { a.hooks++ })
	return tx.Users().TouchLastLogin(ctx, "u1", loginAt)
}

func TestWithinTxReplaysSerializationFailure(t *testing.T) {
	pg, mock := newMockPostgres(t, 3)

	mock.ExpectBegin()
	mock.ExpectExec(touchLogin).WithArgs("u1", loginAt).
		WillReturnError(&pgconn.PgError{Code: "40001"})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec(touchLogin).WithArgs("u1", loginAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var a attempts
	require.NoError(t, pg.WithinTx(context.Background(), a.touch))

	assert.Equal(t, 2, a.runs)
	assert.Equal(t, 1, a.hooks, "hooks from the aborted attempt must be dropped")
}

func TestWithinTxGivesUpAfterRetries(t *testing.T) {
	pg, mock := newMockPostgres(t, 1)

	for range 2 {
		mock.ExpectBegin()
		mock.ExpectExec(touchLogin).WithArgs("u1", loginAt).
			WillReturnError(&pgconn.PgError{Code: "40P01"})
		mock.ExpectRollback()
	}

	var a attempts
	err := pg.WithinTx(context.Background(), a.touch)

	require.Error(t, err)
	assert.True(t, core.IsRetryableTxError(err))
	assert.Equal(t, 2, a.runs)
	assert.Zero(t, a.hooks)
}

func TestWithinTxDoesNotReplayOtherErrors(t *testing.T) {
	pg, mock := newMockPostgres(t, 3)

	mock.ExpectBegin()
	mock.ExpectExec(touchLogin).WithArgs("u1", loginAt).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	var a attempts
	err := pg.WithinTx(context.Background(), a.touch)

	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, 1, a.runs)
	assert.Zero(t, a.hooks)
}

func TestWithinTxSkipsHooksWhenCommitFails(t *testing.T) {
	pg, mock := newMockPostgres(t, 0)

	mock.ExpectBegin()
	mock.ExpectExec(touchLogin).WithArgs("u1", loginAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

	var a attempts
	err := pg.WithinTx(context.Background(), a.touch)

	assert.ErrorContains(t, err, "commit transaction")
	assert.Zero(t, a.hooks)
}
