// AngelaMos | 2026
// repository_test.go

package task

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

var day = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

func TestFindActiveAssignmentLocksRow(t *testing.T) {
	repo, mock := newMockRepository(t)
	locked := `FROM task_assignments\s+` +
		`WHERE user_id = \$1 AND task_id = \$2 AND assigned_on = \$3\s+` +
		`AND status = 'assigned'\s+FOR UPDATE`

	mock.ExpectQuery(locked).
		WithArgs("u1", int64(7), day).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "task_id", "assigned_on", "status", "completed_at",
		}).AddRow(11, "u1", 7, day, "assigned", nil))

	a, err := repo.FindActiveAssignment(context.Background(), "u1", 7, day)
	require.NoError(t, err)
	assert.Equal(t, int64(11), a.ID)
	assert.Equal(t, StatusAssigned, a.Status)
	assert.Nil(t, a.CompletedAt)
}

func TestFindActiveAssignmentMissing(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("u1", int64(7), day).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindActiveAssignment(context.Background(), "u1", 7, day)
	assert.ErrorIs(t, err, ErrNoActiveAssignment)
}

func TestMarkCompletedOnlyOnce(t *testing.T) {
	repo, mock := newMockRepository(t)
	at := day.Add(9 * time.Hour)
	guarded := `SET status = 'completed', completed_at = \$2\s+` +
		`WHERE id = \$1 AND status = 'assigned'`

	mock.ExpectExec(guarded).WithArgs(int64(11), at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(guarded).WithArgs(int64(11), at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkCompleted(context.Background(), 11, at))
	err := repo.MarkCompleted(context.Background(), 11, at)
	assert.ErrorIs(t, err, ErrNoActiveAssignment)
}

func TestExpireAllBeforeCountsPerUser(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`DELETE FROM task_assignments\s+` +
		`WHERE status = 'assigned' AND assigned_on < \$1\s+RETURNING user_id`).
		WithArgs(day).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expired"}).
			AddRow("u1", 3).
			AddRow("u2", 1))

	counts, err := repo.ExpireAllBefore(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"u1": 3, "u2": 1}, counts)
}
