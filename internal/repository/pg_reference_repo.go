package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/packhub/boxflow/internal/domain"
)

type pgReferenceRepository struct {
	pool *pgxpool.Pool
}

// NewPgReferenceRepository returns a ReferenceRepository backed by PostgreSQL.
func NewPgReferenceRepository(pool *pgxpool.Pool) ReferenceRepository {
	return &pgReferenceRepository{pool: pool}
}

func (r *pgReferenceRepository) LoadProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT sku, unit_size FROM products ORDER BY sku`)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.SKU, &p.UnitSize); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *pgReferenceRepository) LoadBoxClasses(ctx context.Context) ([]domain.BoxClass, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT name, max_capacity FROM box_classes ORDER BY max_capacity`)
	if err != nil {
		return nil, fmt.Errorf("load box classes: %w", err)
	}
	defer rows.Close()

	var classes []domain.BoxClass
	for rows.Next() {
		var b domain.BoxClass
		if err := rows.Scan(&b.Name, &b.MaxCapacity); err != nil {
			return nil, err
		}
		classes = append(classes, b)
	}
	return classes, rows.Err()
}
