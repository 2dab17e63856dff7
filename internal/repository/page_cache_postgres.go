package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kasbot/internal/entities"
)

// PostgresPageCache stores scraped pages in the scraped_pages table. The
// schema is created by infrastructure.PostgresClient.Migrate.
type PostgresPageCache struct {
	db *pgxpool.Pool
}

func NewPostgresPageCache(db *pgxpool.Pool) *PostgresPageCache {
	return &PostgresPageCache{db: db}
}

func (c *PostgresPageCache) Put(ctx context.Context, p entities.ScrapedPage) error {
	cols, err := encodePageColumns(p)
	if err != nil {
		return err
	}
	_, err = c.db.Exec(ctx, `
		INSERT INTO scraped_pages (product_id, url, title, price, body_text, bullets, pdf_links, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (product_id) DO UPDATE
		SET url = EXCLUDED.url,
		    title = EXCLUDED.title,
		    price = EXCLUDED.price,
		    body_text = EXCLUDED.body_text,
		    bullets = EXCLUDED.bullets,
		    pdf_links = EXCLUDED.pdf_links,
		    fetched_at = EXCLUDED.fetched_at;
	`, p.ProductID, p.URL, p.Title, p.Price, p.Text, string(cols.Bullets), string(cols.PDFLinks), p.FetchedAt)
	if err != nil {
		return fmt.Errorf("store page %s: %w", p.ProductID, err)
	}
	return nil
}

func (c *PostgresPageCache) Get(ctx context.Context, productID string) (entities.ScrapedPage, error) {
	row := c.db.QueryRow(ctx, `
		SELECT product_id, url, title, price, body_text, bullets::text, pdf_links::text, fetched_at
		FROM scraped_pages WHERE product_id = $1`, productID)
	p, err := scanPostgresPage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return entities.ScrapedPage{}, ErrCacheMiss
	}
	if err != nil {
		return entities.ScrapedPage{}, fmt.Errorf("load page %s: %w", productID, err)
	}
	return p, nil
}

func (c *PostgresPageCache) All(ctx context.Context) ([]entities.ScrapedPage, error) {
	rows, err := c.db.Query(ctx, `
		SELECT product_id, url, title, price, body_text, bullets::text, pdf_links::text, fetched_at
		FROM scraped_pages ORDER BY product_id`)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var pages []entities.ScrapedPage
	for rows.Next() {
		p, err := scanPostgresPage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// Close is a no-op; the pool belongs to the PostgresClient.
func (c *PostgresPageCache) Close() error { return nil }

func scanPostgresPage(r pgx.Row) (entities.ScrapedPage, error) {
	var (
		p       entities.ScrapedPage
		bullets string
		links   string
	)
	if err := r.Scan(&p.ProductID, &p.URL, &p.Title, &p.Price, &p.Text, &bullets, &links, &p.FetchedAt); err != nil {
		return entities.ScrapedPage{}, err
	}
	if err := decodePageColumns(&p, pageColumns{Bullets: []byte(bullets), PDFLinks: []byte(links)}); err != nil {
		return entities.ScrapedPage{}, err
	}
	return p, nil
}
