package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"kasbot/internal/entities"
)

// ErrCacheMiss is returned by page caches when a product page was never stored.
var ErrCacheMiss = errors.New("page cache miss")

// pageColumns holds the list-valued fields of a ScrapedPage as JSON text.
type pageColumns struct {
	Bullets  []byte
	PDFLinks []byte
}

func encodePageColumns(p entities.ScrapedPage) (pageColumns, error) {
	bullets, err := json.Marshal(nonNil(p.Bullets))
	if err != nil {
		return pageColumns{}, fmt.Errorf("encode bullets: %w", err)
	}
	links, err := json.Marshal(nonNilManuals(p.PDFLinks))
	if err != nil {
		return pageColumns{}, fmt.Errorf("encode pdf links: %w", err)
	}
	return pageColumns{Bullets: bullets, PDFLinks: links}, nil
}

func decodePageColumns(p *entities.ScrapedPage, c pageColumns) error {
	if len(c.Bullets) > 0 {
		if err := json.Unmarshal(c.Bullets, &p.Bullets); err != nil {
			return fmt.Errorf("decode bullets: %w", err)
		}
	}
	if len(c.PDFLinks) > 0 {
		if err := json.Unmarshal(c.PDFLinks, &p.PDFLinks); err != nil {
			return fmt.Errorf("decode pdf links: %w", err)
		}
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilManuals(s []entities.Manual) []entities.Manual {
	if s == nil {
		return []entities.Manual{}
	}
	return s
}

// NopPageCache stores nothing. Used when the cache driver is "none".
type NopPageCache struct{}

func (NopPageCache) Get(context.Context, string) (entities.ScrapedPage, error) {
	return entities.ScrapedPage{}, ErrCacheMiss
}

func (NopPageCache) Put(context.Context, entities.ScrapedPage) error     { return nil }
func (NopPageCache) All(context.Context) ([]entities.ScrapedPage, error) { return nil, nil }
func (NopPageCache) Close() error                                        { return nil }
