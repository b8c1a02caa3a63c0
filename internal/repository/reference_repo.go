package repository

import (
	"context"

	"github.com/packhub/boxflow/internal/domain"
)

// ReferenceRepository loads the two slow-changing reference tables the
// assignment engine depends on. The refcache package wraps it in a
// timer-refreshed immutable snapshot; nothing reads these per event.
type ReferenceRepository interface {
	LoadProducts(ctx context.Context) ([]domain.Product, error)
	LoadBoxClasses(ctx context.Context) ([]domain.BoxClass, error)
}

// AuditRepository records one entry per terminal assignment outcome.
// Best-effort: callers log and continue on failure, the queue item's
// own state is authoritative.
type AuditRepository interface {
	Record(ctx context.Context, entry *domain.AuditEntry) error
}
