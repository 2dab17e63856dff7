package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver

	"kasbot/internal/entities"
)

// SQLitePageCache keeps the last good scrape of each product page in a local file.
type SQLitePageCache struct {
	db *sql.DB
}

func NewSQLitePageCache(ctx context.Context, path string) (*SQLitePageCache, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite page cache: %w", err)
	}
	db.SetMaxOpenConns(1)

	c := &SQLitePageCache{db: db}
	if err := c.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite page cache: %w", err)
	}
	return c, nil
}

func (c *SQLitePageCache) migrate(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS scraped_pages (
			product_id TEXT PRIMARY KEY,
			url        TEXT NOT NULL,
			title      TEXT NOT NULL DEFAULT '',
			price      TEXT NOT NULL DEFAULT '',
			body_text  TEXT NOT NULL DEFAULT '',
			bullets    TEXT NOT NULL DEFAULT '[]',
			pdf_links  TEXT NOT NULL DEFAULT '[]',
			fetched_at INTEGER NOT NULL
		)`)
	return err
}

func (c *SQLitePageCache) Put(ctx context.Context, p entities.ScrapedPage) error {
	cols, err := encodePageColumns(p)
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO scraped_pages (product_id, url, title, price, body_text, bullets, pdf_links, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (product_id) DO UPDATE
		SET url = excluded.url,
		    title = excluded.title,
		    price = excluded.price,
		    body_text = excluded.body_text,
		    bullets = excluded.bullets,
		    pdf_links = excluded.pdf_links,
		    fetched_at = excluded.fetched_at`,
		p.ProductID, p.URL, p.Title, p.Price, p.Text, string(cols.Bullets), string(cols.PDFLinks), p.FetchedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("store page %s: %w", p.ProductID, err)
	}
	return nil
}

func (c *SQLitePageCache) Get(ctx context.Context, productID string) (entities.ScrapedPage, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT product_id, url, title, price, body_text, bullets, pdf_links, fetched_at
		FROM scraped_pages WHERE product_id = ?`, productID)
	p, err := scanSQLitePage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.ScrapedPage{}, ErrCacheMiss
	}
	if err != nil {
		return entities.ScrapedPage{}, fmt.Errorf("load page %s: %w", productID, err)
	}
	return p, nil
}

func (c *SQLitePageCache) All(ctx context.Context) ([]entities.ScrapedPage, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT product_id, url, title, price, body_text, bullets, pdf_links, fetched_at
		FROM scraped_pages ORDER BY product_id`)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var pages []entities.ScrapedPage
	for rows.Next() {
		p, err := scanSQLitePage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (c *SQLitePageCache) Close() error {
	return c.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLitePage(r rowScanner) (entities.ScrapedPage, error) {
	var (
		p         entities.ScrapedPage
		bullets   string
		links     string
		fetchedMS int64
	)
	if err := r.Scan(&p.ProductID, &p.URL, &p.Title, &p.Price, &p.Text, &bullets, &links, &fetchedMS); err != nil {
		return entities.ScrapedPage{}, err
	}
	p.FetchedAt = time.UnixMilli(fetchedMS).UTC()
	if err := decodePageColumns(&p, pageColumns{Bullets: []byte(bullets), PDFLinks: []byte(links)}); err != nil {
		return entities.ScrapedPage{}, err
	}
	return p, nil
}
