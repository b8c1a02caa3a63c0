package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/packhub/boxflow/internal/domain"
)

const queueColumns = `id, payload, order_id, order_number, status, priority,
	attempts, last_error, retry_after, result, created_at, started_at, completed_at`

type pgQueueRepository struct {
	pool *pgxpool.Pool
}

// NewPgQueueRepository returns a QueueRepository backed by PostgreSQL.
func NewPgQueueRepository(pool *pgxpool.Pool) QueueRepository {
	return &pgQueueRepository{pool: pool}
}

func (r *pgQueueRepository) Create(ctx context.Context, item *domain.QueueItem) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO queue_items
			(id, payload, order_id, order_number, status, priority, attempts, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		item.ID, item.Payload, item.OrderID, item.OrderNumber,
		item.Status, item.Priority, item.Attempts, item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert queue item: %w", err)
	}
	return nil
}

func (r *pgQueueRepository) GetByID(ctx context.Context, id string) (*domain.QueueItem, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+queueColumns+` FROM queue_items WHERE id = $1`, id)

	item, err := scanQueueItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return item, err
}

func (r *pgQueueRepository) List(ctx context.Context, f domain.ListFilter) ([]*domain.QueueItem, int, error) {
	where, args := buildListWhere(f)
	offset := (f.Page - 1) * f.Limit

	// Count total matching rows for pagination metadata.
	var total int
	countQuery := "SELECT COUNT(*) FROM queue_items" + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count queue items: %w", err)
	}

	// Append pagination args after the WHERE args.
	args = append(args, f.Limit, offset)
	limitPlaceholder := fmt.Sprintf("$%d", len(args)-1)
	offsetPlaceholder := fmt.Sprintf("$%d", len(args))

	query := fmt.Sprintf(`
		SELECT `+queueColumns+`
		FROM queue_items%s
		ORDER BY priority DESC
		LIMIT %s OFFSET %s`, where, limitPlaceholder, offsetPlaceholder)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	items, err := scanQueueItems(rows)
	return items, total, err
}

func (r *pgQueueRepository) CountByStatus(ctx context.Context) (map[domain.Status]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM queue_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Status]int)
	for rows.Next() {
		var status domain.Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// ClaimNext uses a conditional UPDATE over a SKIP LOCKED subselect: the row
// is claimed only if it is still pending at write time, and two concurrent
// claims can never pick the same row. Items are ordered by original enqueue
// time, so retried items outrank newer ones.
func (r *pgQueueRepository) ClaimNext(ctx context.Context, now time.Time) (*domain.QueueItem, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE queue_items
		SET status = 'processing', started_at = $1, retry_after = NULL
		WHERE id = (
			SELECT id FROM queue_items
			WHERE status = 'pending'
			  AND (retry_after IS NULL OR retry_after <= $1)
			ORDER BY priority ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+queueColumns, now)

	item, err := scanQueueItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil // ready pool is empty
	}
	if err != nil {
		return nil, fmt.Errorf("claim next item: %w", err)
	}
	return item, nil
}

func (r *pgQueueRepository) RecordAttempt(ctx context.Context, id string) (int, error) {
	var attempts int
	err := r.pool.QueryRow(ctx, `
		UPDATE queue_items SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts`, id).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("record attempt: %w", err)
	}
	return attempts, nil
}

func (r *pgQueueRepository) MarkCompleted(ctx context.Context, id string, result *domain.AssignmentResult, completedAt time.Time) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE queue_items
		SET status = 'completed', result = $1, completed_at = $2, last_error = NULL
		WHERE id = $3`, resultJSON, completedAt, id)
	return err
}

func (r *pgQueueRepository) ScheduleRetry(ctx context.Context, id string, errMsg string, retryAfter time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE queue_items
		SET status = 'pending', last_error = $1, retry_after = $2, started_at = NULL
		WHERE id = $3`, errMsg, retryAfter, id)
	return err
}

func (r *pgQueueRepository) MarkFailed(ctx context.Context, id string, errMsg string, completedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE queue_items
		SET status = 'failed', last_error = $1, completed_at = $2, retry_after = NULL
		WHERE id = $3`, errMsg, completedAt, id)
	return err
}

func (r *pgQueueRepository) FindStuck(ctx context.Context, cutoff time.Time) ([]*domain.QueueItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+queueColumns+`
		FROM queue_items
		WHERE status = 'processing'
		  AND (started_at IS NULL OR started_at < $1)
		LIMIT 500`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("find stuck items: %w", err)
	}
	defer rows.Close()
	return scanQueueItems(rows)
}

func (r *pgQueueRepository) ResetStuck(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	// Attempts and last_error deliberately untouched: recovery is not a
	// failed attempt, and the prior error stays visible to operators.
	tag, err := r.pool.Exec(ctx, `
		UPDATE queue_items
		SET status = 'pending', started_at = NULL, retry_after = NULL
		WHERE id = ANY($1) AND status = 'processing'`, ids)
	if err != nil {
		return 0, fmt.Errorf("reset stuck items: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ---- helpers ----

// scanQueueItem reads a single queue item row from any pgx row type.
func scanQueueItem(row pgx.Row) (*domain.QueueItem, error) {
	var item domain.QueueItem
	var payload, result []byte
	err := row.Scan(
		&item.ID, &payload, &item.OrderID, &item.OrderNumber,
		&item.Status, &item.Priority, &item.Attempts,
		&item.LastError, &item.RetryAfter, &result,
		&item.CreatedAt, &item.StartedAt, &item.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Payload = payload
	if len(result) > 0 {
		var r domain.AssignmentResult
		if err := json.Unmarshal(result, &r); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		item.Result = &r
	}
	return &item, nil
}

func scanQueueItems(rows pgx.Rows) ([]*domain.QueueItem, error) {
	var result []*domain.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

// buildListWhere builds a parameterised WHERE clause from a ListFilter.
func buildListWhere(f domain.ListFilter) (string, []any) {
	var conditions []string
	var args []any

	if f.Status != nil {
		args = append(args, *f.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
