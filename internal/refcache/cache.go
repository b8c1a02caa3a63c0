// Package refcache holds the in-memory snapshot of the product-size and
// box-capacity lookup tables.
//
// The snapshot is immutable and swapped wholesale behind an atomic pointer:
// readers never observe a torn state, and a failed refresh simply keeps the
// prior snapshot serving (stale-but-available over empty).
package refcache

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/packhub/boxflow/internal/domain"
	"github.com/packhub/boxflow/internal/repository"
)

// Snapshot is one immutable view of the reference tables.
// BoxClasses are sorted by ascending capacity so the engine's
// smallest-fitting-box scan is a single pass.
type Snapshot struct {
	Products   map[string]domain.Product
	BoxClasses []domain.BoxClass
	FetchedAt  time.Time
}

// Empty reports whether either reference table is missing, which hard-fails
// every assignment until a successful load repopulates it.
func (s *Snapshot) Empty() bool {
	return len(s.Products) == 0 || len(s.BoxClasses) == 0
}

// Age returns how long ago the snapshot was fetched.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.FetchedAt)
}

// Cache refreshes the snapshot on a fixed interval and on staleness-triggered
// demand. All methods are safe for concurrent use.
type Cache struct {
	repo       repository.ReferenceRepository
	maxAge     time.Duration
	snap       atomic.Pointer[Snapshot]
	refreshing atomic.Bool
	logger     *zap.Logger
}

func New(repo repository.ReferenceRepository, maxAge time.Duration, logger *zap.Logger) *Cache {
	c := &Cache{repo: repo, maxAge: maxAge, logger: logger}
	// Start empty: assignments hard-fail until the first successful load.
	c.snap.Store(&Snapshot{})
	return c
}

// Load fetches both tables and swaps in a new snapshot. On failure the prior
// snapshot is left in place and the error returned.
func (c *Cache) Load(ctx context.Context) error {
	products, err := c.repo.LoadProducts(ctx)
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}
	classes, err := c.repo.LoadBoxClasses(ctx)
	if err != nil {
		return fmt.Errorf("load box classes: %w", err)
	}

	bySKU := make(map[string]domain.Product, len(products))
	for _, p := range products {
		bySKU[p.SKU] = p
	}
	sorted := append([]domain.BoxClass(nil), classes...)
	sortBoxClasses(sorted)

	c.snap.Store(&Snapshot{
		Products:   bySKU,
		BoxClasses: sorted,
		FetchedAt:  time.Now().UTC(),
	})

	c.logger.Info("reference cache loaded",
		zap.Int("products", len(products)),
		zap.Int("box_classes", len(classes)),
	)
	return nil
}

// Snapshot returns the current snapshot. Never nil.
func (c *Cache) Snapshot() *Snapshot {
	return c.snap.Load()
}

// Fresh returns the current snapshot and, if it is older than maxAge,
// triggers a single background refresh. The caller is never blocked and
// always gets the current snapshot (stale-while-revalidate).
func (c *Cache) Fresh(ctx context.Context) *Snapshot {
	snap := c.snap.Load()
	if snap.Age(time.Now().UTC()) <= c.maxAge {
		return snap
	}
	if c.refreshing.CompareAndSwap(false, true) {
		go func() {
			defer c.refreshing.Store(false)
			refreshCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := c.Load(refreshCtx); err != nil {
				c.logger.Warn("stale-triggered refresh failed, serving prior snapshot", zap.Error(err))
			}
		}()
	}
	return snap
}

// Run refreshes the cache every interval until ctx is cancelled.
// A refresh failure logs and keeps the prior snapshot.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.logger.Info("reference cache refresher started", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("reference cache refresher stopping")
			return
		case <-ticker.C:
			if err := c.Load(ctx); err != nil {
				c.logger.Warn("reference refresh failed, serving prior snapshot", zap.Error(err))
			}
		}
	}
}

// sortBoxClasses orders by capacity, then name for a deterministic tiebreak.
func sortBoxClasses(classes []domain.BoxClass) {
	sort.Slice(classes, func(i, j int) bool {
		if classes[i].MaxCapacity != classes[j].MaxCapacity {
			return classes[i].MaxCapacity < classes[j].MaxCapacity
		}
		return classes[i].Name < classes[j].Name
	})
}
