package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Product is a catalog entry. Price is in major units for display; the payment
// provider works in minor units, converted at line-item build time.
type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	ImageURL    string    `json:"imageUrl"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Repo struct{ DB *pgxpool.Pool }

var ErrNotFound = errors.New("product not found")

func (r *Repo) List(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, description, price::float8, image_url, created_at
		FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, description, price::float8, image_url, created_at
		FROM products WHERE id=$1`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (r *Repo) Create(ctx context.Context, p *Product) error {
	return r.DB.QueryRow(ctx, `
		INSERT INTO products(name, description, price, image_url)
		VALUES ($1,$2,$3,$4)
		RETURNING id, created_at`,
		p.Name, p.Description, p.Price, p.ImageURL,
	).Scan(&p.ID, &p.CreatedAt)
}

// Seed fills an empty catalog with the demo products.
func (r *Repo) Seed(ctx context.Context) error {
	var n int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	seed := []Product{
		{Name: "Eco-Friendly Backpack", Description: "Durable and stylish, made from recycled materials.", Price: 49.99, ImageURL: "https://picsum.photos/300?random=1"},
		{Name: "Noise Cancelling Headphones", Description: "High-quality sound and comfort for work or play.", Price: 129.99, ImageURL: "https://picsum.photos/300?random=2"},
		{Name: "Smart LED Lamp", Description: "Touch control and adjustable lighting modes.", Price: 24.99, ImageURL: "https://picsum.photos/300?random=3"},
		{Name: "Minimalist Wristwatch", Description: "Sleek and simple design with a leather strap.", Price: 89.99, ImageURL: "https://picsum.photos/300?random=4"},
	}
	for i := range seed {
		if err := r.Create(ctx, &seed[i]); err != nil {
			return err
		}
	}
	return nil
}
