// AngelaMos | 2026
// evaluator.go

package badge

import (
	"context"
	"fmt"
	"time"

	"github.com/carterperez-dev/pocketree/internal/task"
)

// CompletionCounter reads a user's completed-task history.
type CompletionCounter interface {
	CountCompletedByDifficulty(
		ctx context.Context,
		userID string,
		difficulty task.Difficulty,
	) (int, error)
}

// Subject is the user state badges are judged against.
type Subject struct {
	UserID string
	Level  int
}

type Evaluator struct{}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate awards every unowned badge the subject now qualifies for and
// returns the ones this call inserted. Both repositories must be bound to
// the caller's transaction.
func (e *Evaluator) Evaluate(
	ctx context.Context,
	badges Repository,
	history CompletionCounter,
	subject Subject,
	at time.Time,
) ([]Badge, error) {
	candidates, err := badges.ListUnowned(ctx, subject.UserID)
	if err != nil {
		return nil, fmt.Errorf("evaluate badges: %w", err)
	}

	counts := make(map[task.Difficulty]int)
	earned := make([]Badge, 0)

	for _, b := range candidates {
		ok, err := e.eligible(ctx, history, subject, b, counts)
		if err != nil {
			return nil, fmt.Errorf("evaluate badge %d: %w", b.ID, err)
		}
		if !ok {
			continue
		}

		inserted, err := badges.Award(ctx, subject.UserID, b.ID, at)
		if err != nil {
			return nil, fmt.Errorf("evaluate badges: %w", err)
		}
		if inserted {
			earned = append(earned, b)
		}
	}

	return earned, nil
}

func (e *Evaluator) eligible(
	ctx context.Context,
	history CompletionCounter,
	subject Subject,
	b Badge,
	counts map[task.Difficulty]int,
) (bool, error) {
	switch b.CriteriaType {
	case CriteriaLevelUp:
		return subject.Level >= b.RequiredCount, nil

	case CriteriaTaskCount:
		difficulty := task.Difficulty(b.RequiredDifficulty)
		if !difficulty.Valid() {
			return false, nil
		}

		count, seen := counts[difficulty]
		if !seen {
			n, err := history.CountCompletedByDifficulty(
				ctx,
				subject.UserID,
				difficulty,
			)
			if err != nil {
				return false, err
			}
			counts[difficulty] = n
			count = n
		}
		return count >= b.RequiredCount, nil
	}

	return false, nil
}
