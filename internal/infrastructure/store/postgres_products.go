package store

import (
	"context"

	"github.com/weddify/binks/internal/model"
)

const productColumns = `id, slug, title, description, image, price, is_active, stock_count, sold_count, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Description, &p.Image, &p.Price,
		&p.IsActive, &p.StockCount, &p.SoldCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *pgTx) GetProduct(ctx context.Context, idOrSlug string) (*model.Product, error) {
	row := t.q.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 OR slug = $1 LIMIT 1`, idOrSlug)
	p, err := scanProduct(row)
	if err != nil {
		return nil, mapErr(err)
	}
	return p, nil
}

func (t *pgTx) ListProducts(ctx context.Context, activeOnly bool) ([]model.Product, error) {
	rows, err := t.q.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE ($1 = FALSE OR is_active) ORDER BY created_at DESC`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (t *pgTx) InsertProduct(ctx context.Context, p *model.Product) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO products (id, slug, title, description, image, price, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.Slug, p.Title, p.Description, p.Image, p.Price, p.IsActive, p.CreatedAt, p.UpdatedAt)
	return mapErr(err)
}

func (t *pgTx) UpdateProduct(ctx context.Context, p *model.Product) error {
	return t.execOne(ctx,
		`UPDATE products SET slug = $2, title = $3, description = $4, image = $5, price = $6,
		        is_active = $7, updated_at = $8
		 WHERE id = $1`,
		p.ID, p.Slug, p.Title, p.Description, p.Image, p.Price, p.IsActive, p.UpdatedAt)
}

func (t *pgTx) LockProduct(ctx context.Context, productID string) error {
	var id string
	err := t.q.QueryRowContext(ctx, `SELECT id FROM products WHERE id = $1 FOR UPDATE`, productID).Scan(&id)
	return mapErr(err)
}

func (t *pgTx) SetStockCount(ctx context.Context, productID string, count int) error {
	return t.execOne(ctx,
		`UPDATE products SET stock_count = $2, updated_at = NOW() WHERE id = $1`, productID, count)
}

func (t *pgTx) AddSoldCount(ctx context.Context, productID string, delta int) error {
	return t.execOne(ctx,
		`UPDATE products SET sold_count = sold_count + $2, updated_at = NOW() WHERE id = $1`, productID, delta)
}

// execOne runs an update that must touch exactly one row.
func (t *pgTx) execOne(ctx context.Context, query string, args ...any) error {
	res, err := t.q.ExecContext(ctx, query, args...)
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
