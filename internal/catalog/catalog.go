// Package catalog is the product collaborator: plain CRUD plus the browse
// queries the storefront uses. Stock is owned by the order engine; this
// package only ever reads it.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/games-store/api/internal/orders"
)

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category,omitempty"`
	Platform    string          `json:"platform,omitempty"`
	Developer   string          `json:"developer,omitempty"`
	Publisher   string          `json:"publisher,omitempty"`
	ReleaseDate *time.Time      `json:"release_date,omitempty"`
	AgeRating   string          `json:"age_rating,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
	Stock       int             `json:"stock"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Filter narrows List. Every field is bound as a parameter.
type Filter struct {
	Category   string
	Platform   string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Search     string
	ActiveOnly bool
	Limit      int
	Offset     int
}

type Repo struct{ DB *pgxpool.Pool }

func Validate(p *Product) error {
	if p.Name == "" {
		return orders.ErrInvalidArgumentf("product name is required")
	}
	if p.Price.IsNegative() {
		return orders.ErrInvalidArgumentf("product price must not be negative")
	}
	if p.Stock < 0 {
		return orders.ErrInvalidArgumentf("product stock must not be negative")
	}
	return nil
}

const productCols = `id, name, description, price::text, category, platform, developer, publisher,
	release_date, age_rating, image_url, stock, active, created_at, updated_at`

func (r *Repo) Create(ctx context.Context, p *Product) error {
	if err := Validate(p); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	_, err := r.DB.Exec(ctx, `
		INSERT INTO products (id, name, description, price, category, platform, developer, publisher,
		                      release_date, age_rating, image_url, stock, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		p.ID, p.Name, p.Description, p.Price.StringFixed(2), p.Category, p.Platform, p.Developer,
		p.Publisher, p.ReleaseDate, p.AgeRating, p.ImageURL, p.Stock, p.Active, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return orders.ErrInternal("create product", err)
	}
	return nil
}

func (r *Repo) Update(ctx context.Context, p *Product) error {
	if err := Validate(p); err != nil {
		return err
	}
	p.UpdatedAt = time.Now().UTC()
	ct, err := r.DB.Exec(ctx, `
		UPDATE products SET name=$2, description=$3, price=$4, category=$5, platform=$6,
		       developer=$7, publisher=$8, release_date=$9, age_rating=$10, image_url=$11,
		       stock=$12, active=$13, updated_at=$14
		WHERE id=$1`,
		p.ID, p.Name, p.Description, p.Price.StringFixed(2), p.Category, p.Platform, p.Developer,
		p.Publisher, p.ReleaseDate, p.AgeRating, p.ImageURL, p.Stock, p.Active, p.UpdatedAt)
	if err != nil {
		return orders.ErrInternal("update product", err)
	}
	if ct.RowsAffected() != 1 {
		return orders.ErrNotFound("product", p.ID)
	}
	return nil
}

// Delete deactivates rather than removes: order items keep referencing the
// product row for price/name history.
func (r *Repo) Delete(ctx context.Context, id string) error {
	ct, err := r.DB.Exec(ctx, `UPDATE products SET active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return orders.ErrInternal("delete product", err)
	}
	if ct.RowsAffected() != 1 {
		return orders.ErrNotFound("product", id)
	}
	return nil
}

func (r *Repo) ByID(ctx context.Context, id string) (*Product, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrNotFound("product", id)
	}
	if err != nil {
		return nil, orders.ErrInternal("load product", err)
	}
	return p, nil
}

func (r *Repo) List(ctx context.Context, f Filter) ([]Product, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	var minP, maxP string
	if f.MinPrice != nil {
		minP = f.MinPrice.StringFixed(2)
	}
	if f.MaxPrice != nil {
		maxP = f.MaxPrice.StringFixed(2)
	}
	rows, err := r.DB.Query(ctx, `
		SELECT `+productCols+` FROM products
		WHERE ($1 = '' OR category = $1)
		  AND ($2 = '' OR platform = $2)
		  AND ($3 = '' OR price >= $3::numeric)
		  AND ($4 = '' OR price <= $4::numeric)
		  AND ($5 = '' OR name ILIKE '%' || $5 || '%' OR description ILIKE '%' || $5 || '%')
		  AND (NOT $6 OR active)
		ORDER BY name
		LIMIT $7 OFFSET $8`,
		f.Category, f.Platform, minP, maxP, f.Search, f.ActiveOnly, f.Limit, f.Offset)
	if err != nil {
		return nil, orders.ErrInternal("list products", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, orders.ErrInternal("scan product", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, orders.ErrInternal("list products", err)
	}
	return out, nil
}

func (r *Repo) Categories(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, `SELECT DISTINCT category FROM products WHERE active AND category <> '' ORDER BY category`)
}

func (r *Repo) Platforms(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, `SELECT DISTINCT platform FROM products WHERE active AND platform <> '' ORDER BY platform`)
}

func (r *Repo) distinct(ctx context.Context, q string) ([]string, error) {
	rows, err := r.DB.Query(ctx, q)
	if err != nil {
		return nil, orders.ErrInternal("distinct products", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, orders.ErrInternal("distinct products", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(r rowScanner) (*Product, error) {
	var p Product
	var price string
	err := r.Scan(&p.ID, &p.Name, &p.Description, &price, &p.Category, &p.Platform, &p.Developer,
		&p.Publisher, &p.ReleaseDate, &p.AgeRating, &p.ImageURL, &p.Stock, &p.Active,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, err
	}
	return &p, nil
}
