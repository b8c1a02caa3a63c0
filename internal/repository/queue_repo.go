package repository

import (
	"context"
	"time"

	"github.com/packhub/boxflow/internal/domain"
)

// QueueRepository defines all persistence operations for queue items.
// The pgx implementation is in pg_queue_repo.go.
// Tests use a hand-written mock (mock_queue_repo.go).
//
// State transitions map onto methods one-to-one:
//
//	ClaimNext       pending    -> processing (atomic, FIFO by priority)
//	MarkCompleted   processing -> completed
//	ScheduleRetry   processing -> pending (retry_after gates re-claim)
//	MarkFailed      processing -> failed, and pending -> failed (dead-letter)
//	ResetStuck      processing -> pending (recovery; attempts untouched)
type QueueRepository interface {
	Create(ctx context.Context, item *domain.QueueItem) error
	GetByID(ctx context.Context, id string) (*domain.QueueItem, error)
	List(ctx context.Context, filter domain.ListFilter) ([]*domain.QueueItem, int, error)
	CountByStatus(ctx context.Context) (map[domain.Status]int, error)

	// ClaimNext atomically claims the oldest ready pending item: it sets
	// status=processing, started_at=now and clears retry_after in one
	// conditional update, so concurrent dispatchers can never double-claim.
	// Returns (nil, nil) when the ready pool is empty.
	ClaimNext(ctx context.Context, now time.Time) (*domain.QueueItem, error)

	// RecordAttempt increments the attempt counter and returns the new value.
	// Called only after structural validation passes, so dead-lettered items
	// keep attempts at their pre-claim value.
	RecordAttempt(ctx context.Context, id string) (int, error)

	MarkCompleted(ctx context.Context, id string, result *domain.AssignmentResult, completedAt time.Time) error
	ScheduleRetry(ctx context.Context, id string, errMsg string, retryAfter time.Time) error
	MarkFailed(ctx context.Context, id string, errMsg string, completedAt time.Time) error

	// FindStuck returns processing items whose started_at predates the cutoff
	// or is absent despite status=processing (corruption-defensive case).
	FindStuck(ctx context.Context, cutoff time.Time) ([]*domain.QueueItem, error)

	// ResetStuck returns the given items to pending, clearing started_at and
	// retry_after while preserving attempts and last_error.
	ResetStuck(ctx context.Context, ids []string) (int, error)
}
