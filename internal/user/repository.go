// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carterperez-dev/pocketree/internal/core"
)

type Repository interface {
	Create(ctx context.Context, user *User, missionName string) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetForUpdate(ctx context.Context, id string) (*User, error)
	Update(ctx context.Context, user *User) error
	UpdateProgress(
		ctx context.Context,
		id string,
		totalCoins, level int,
		activityAt time.Time,
	) error
	IncrementFailedVerifications(ctx context.Context, id string) error
	AdjustTaskCounters(
		ctx context.Context,
		id string,
		uncompletedDelta, notAttemptedDelta int,
	) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	IncrementTokenVersion(ctx context.Context, id string) error
	SoftDelete(ctx context.Context, id string) error
	List(ctx context.Context, params ListUsersParams) ([]User, int, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	GetSettings(ctx context.Context, userID string) (*Settings, error)
	UpdateSettings(ctx context.Context, settings *Settings) error
	ListPreferences(ctx context.Context, userID string) ([]Preference, error)
	ReplacePreferences(
		ctx context.Context,
		userID string,
		prefs []Preference,
	) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const userColumns = `id, email, password_hash, username, role,
		       total_coins, current_level, last_login_at, last_activity_at,
		       failed_verification_count, uncompleted_task_count,
		       not_attempted_task_count, token_version,
		       created_at, updated_at, deleted_at`

// Create inserts the user together with default settings and the user's
// first tree for missionName. A single statement keeps the three rows
// all-or-nothing without an explicit transaction.
func (r *repository) Create(
	ctx context.Context,
	user *User,
	missionName string,
) error {
	query := `
		WITH new_user AS (
			INSERT INTO users (id, email, password_hash, username, role)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at, updated_at, token_version,
			          total_coins, current_level
		), new_settings AS (
			INSERT INTO user_settings (user_id)
			SELECT id FROM new_user
		), new_tree AS (
			INSERT INTO trees (user_id, mission_id)
			SELECT new_user.id, m.id
			FROM new_user, global_missions m
			WHERE m.name = $6
		)
		SELECT created_at, updated_at, token_version, total_coins, current_level
		FROM new_user`

	err := r.db.GetContext(ctx, user, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Username,
		user.Role,
		missionName,
	)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE id = $1 AND deleted_at IS NULL`

	var user User
	err := r.db.GetContext(ctx, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &user, nil
}

func (r *repository) GetByEmail(
	ctx context.Context,
	email string,
) (*User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE email = $1 AND deleted_at IS NULL`

	var user User
	err := r.db.GetContext(ctx, &user, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user by email: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return &user, nil
}

// GetForUpdate locks the user row for the rest of the transaction. Every
// write to coins, level or task counters goes through this lock first.
func (r *repository) GetForUpdate(
	ctx context.Context,
	id string,
) (*User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE`

	var user User
	err := r.db.GetContext(ctx, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lock user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lock user: %w", err)
	}

	return &user, nil
}

func (r *repository) Update(ctx context.Context, user *User) error {
	query := `
		UPDATE users
		SET username = $2, role = $3, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &user.UpdatedAt, query,
		user.ID,
		user.Username,
		user.Role,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update user: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	return nil
}

// UpdateProgress never lowers the stored level, even if a caller passes a
// smaller value.
func (r *repository) UpdateProgress(
	ctx context.Context,
	id string,
	totalCoins, level int,
	activityAt time.Time,
) error {
	query := `
		UPDATE users
		SET total_coins = $2,
		    current_level = GREATEST(current_level, $3),
		    last_activity_at = $4,
		    updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, "update progress", query,
		id, totalCoins, level, activityAt)
}

func (r *repository) IncrementFailedVerifications(
	ctx context.Context,
	id string,
) error {
	query := `
		UPDATE users
		SET failed_verification_count = failed_verification_count + 1,
		    updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, "increment failed verifications", query, id)
}

func (r *repository) AdjustTaskCounters(
	ctx context.Context,
	id string,
	uncompletedDelta, notAttemptedDelta int,
) error {
	query := `
		UPDATE users
		SET uncompleted_task_count = GREATEST(uncompleted_task_count + $2, 0),
		    not_attempted_task_count = not_attempted_task_count + $3,
		    updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, "adjust task counters", query,
		id, uncompletedDelta, notAttemptedDelta)
}

func (r *repository) TouchLastLogin(
	ctx context.Context,
	id string,
	at time.Time,
) error {
	query := `
		UPDATE users
		SET last_login_at = $2
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, "touch last login", query, id, at)
}

func (r *repository) UpdatePassword(
	ctx context.Context,
	id, passwordHash string,
) error {
	query := `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, "update password", query, id, passwordHash)
}

func (r *repository) IncrementTokenVersion(
	ctx context.Context,
	id string,
) error {
	query := `
		UPDATE users
		SET token_version = token_version + 1, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, "increment token version", query, id)
}

func (r *repository) SoftDelete(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, "delete user", query, id)
}

func (r *repository) List(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	params.Normalize()

	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, "deleted_at IS NULL")

	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(email ILIKE $%d OR username ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+escapeLike(params.Search)+"%")
		argIdx++
	}

	if params.Role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argIdx))
		args = append(args, params.Role)
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(
		"SELECT COUNT(*) FROM users WHERE %s",
		whereClause,
	)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT `+userColumns+`
		FROM users
		WHERE %s
		ORDER BY total_coins DESC, created_at ASC
		LIMIT $%d OFFSET $%d`,
		whereClause, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	var users []User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	return users, total, nil
}

func (r *repository) ExistsByEmail(
	ctx context.Context,
	email string,
) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 AND deleted_at IS NULL)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, email); err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}

	return exists, nil
}

func (r *repository) GetSettings(
	ctx context.Context,
	userID string,
) (*Settings, error) {
	query := `
		SELECT user_id, use_recommendation, email_notification, theme
		FROM user_settings
		WHERE user_id = $1`

	var s Settings
	err := r.db.GetContext(ctx, &s, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get settings: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	return &s, nil
}

func (r *repository) UpdateSettings(
	ctx context.Context,
	settings *Settings,
) error {
	query := `
		INSERT INTO user_settings
			(user_id, use_recommendation, email_notification, theme)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET use_recommendation = EXCLUDED.use_recommendation,
		    email_notification = EXCLUDED.email_notification,
		    theme = EXCLUDED.theme`

	_, err := r.db.ExecContext(ctx, query,
		settings.UserID,
		settings.UseRecommendation,
		settings.EmailNotification,
		settings.Theme,
	)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}

	return nil
}

func (r *repository) ListPreferences(
	ctx context.Context,
	userID string,
) ([]Preference, error) {
	query := `
		SELECT category, difficulty
		FROM user_preferences
		WHERE user_id = $1
		ORDER BY id`

	var prefs []Preference
	if err := r.db.SelectContext(ctx, &prefs, query, userID); err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}

	return prefs, nil
}

func (r *repository) ReplacePreferences(
	ctx context.Context,
	userID string,
	prefs []Preference,
) error {
	categories := make([]string, 0, len(prefs))
	difficulties := make([]string, 0, len(prefs))
	for _, p := range prefs {
		categories = append(categories, p.Category)
		difficulties = append(difficulties, p.Difficulty)
	}

	query := `
		WITH cleared AS (
			DELETE FROM user_preferences WHERE user_id = $1
		)
		INSERT INTO user_preferences (user_id, category, difficulty)
		SELECT $1, c, d
		FROM unnest($2::text[], $3::text[]) AS p(c, d)`

	if _, err := r.db.ExecContext(
		ctx, query, userID, categories, difficulties,
	); err != nil {
		return fmt.Errorf("replace preferences: %w", err)
	}

	return nil
}

func (r *repository) execOne(
	ctx context.Context,
	op, query string,
	args ...any,
) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	return nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
