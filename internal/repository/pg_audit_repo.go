package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/packhub/boxflow/internal/domain"
)

type pgAuditRepository struct {
	pool *pgxpool.Pool
}

// NewPgAuditRepository returns an AuditRepository backed by PostgreSQL.
func NewPgAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &pgAuditRepository{pool: pool}
}

func (r *pgAuditRepository) Record(ctx context.Context, e *domain.AuditEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO assignment_audit
			(order_number, success, total_size, box_name, missing_skus, error, duration_ms)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		e.OrderNumber, e.Success, e.TotalSize, e.BoxName,
		e.MissingSKUs, e.Error, e.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}
