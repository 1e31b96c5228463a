// AngelaMos | 2026
// repository_test.go

package user

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/pocketree/internal/core"
)

func newMockRepository(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})

	return NewRepository(sqlx.NewDb(db, "pgx")), mock
}

func TestUpdateProgressNeverLowersLevel(t *testing.T) {
	repo, mock := newMockRepository(t)
	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(`SET total_coins = \$2,\s+` +
		`current_level = GREATEST\(current_level, \$3\),\s+` +
		`last_activity_at = \$4`).
		WithArgs("u1", 900, 2, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateProgress(context.Background(), "u1", 900, 2, at))
}

func TestUpdateProgressDeletedUser(t *testing.T) {
	repo, mock := newMockRepository(t)
	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(`WHERE id = \$1 AND deleted_at IS NULL`).
		WithArgs("gone", 100, 1, at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateProgress(context.Background(), "gone", 100, 1, at)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestAdjustTaskCountersFloorsUncompleted(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`uncompleted_task_count = GREATEST\(uncompleted_task_count \+ \$2, 0\)`).
		WithArgs("u1", -1, 0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.AdjustTaskCounters(context.Background(), "u1", -1, 0))
}

func TestGetForUpdateLocksUserRow(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`FROM users\s+WHERE id = \$1 AND deleted_at IS NULL\s+FOR UPDATE`).
		WithArgs("gone").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetForUpdate(context.Background(), "gone")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestListEscapesSearchPattern(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users WHERE deleted_at IS NULL ` +
		`AND \(email ILIKE \$1 OR username ILIKE \$1\)`).
		WithArgs(`%50\%\_off%`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`ORDER BY total_coins DESC, created_at ASC\s+LIMIT \$2 OFFSET \$3`).
		WithArgs(`%50\%\_off%`, 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	users, total, err := repo.List(context.Background(), ListUsersParams{Search: "50%_off"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, users)
}
