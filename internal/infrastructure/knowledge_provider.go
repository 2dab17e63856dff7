package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"kasbot/internal/entities"
	"kasbot/internal/interfaces"
	"kasbot/internal/observability"
	"kasbot/internal/repository"
)

// KnowledgeLoader reads the static knowledge.
type KnowledgeLoader interface {
	Load() (*entities.Knowledge, error)
}

// PageFetcher scrapes one product page.
type PageFetcher interface {
	Fetch(ctx context.Context, p entities.Product) (entities.ScrapedPage, error)
}

type ProviderOptions struct {
	// Fetcher is nil when scraping is disabled; cached pages are still merged.
	Fetcher     PageFetcher
	Cache       interfaces.PageCache
	Concurrency int
	Logger      *observability.Logger
}

// KnowledgeProvider publishes immutable knowledge snapshots. Readers call
// Current without locking; Refresh builds a complete snapshot off to the side
// and swaps it in with a single atomic store.
type KnowledgeProvider struct {
	loader      KnowledgeLoader
	fetcher     PageFetcher
	cache       interfaces.PageCache
	concurrency int
	logger      *observability.Logger
	now         func() time.Time

	current atomic.Pointer[entities.Snapshot]
	version atomic.Uint64
	lastErr atomic.Pointer[string]

	mu    sync.Mutex // serializes Refresh
	pages map[string]entities.ScrapedPage
}

func NewKnowledgeProvider(loader KnowledgeLoader, opts ProviderOptions) *KnowledgeProvider {
	if opts.Cache == nil {
		opts.Cache = repository.NopPageCache{}
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = observability.Nop()
	}
	return &KnowledgeProvider{
		loader:      loader,
		fetcher:     opts.Fetcher,
		cache:       opts.Cache,
		concurrency: opts.Concurrency,
		logger:      opts.Logger.WithComponent("knowledge_provider"),
		now:         time.Now,
		pages:       make(map[string]entities.ScrapedPage),
	}
}

func (p *KnowledgeProvider) Current() *entities.Snapshot {
	return p.current.Load()
}

// Health reports the current snapshot's health, with the last refresh error
// if the most recent attempt failed.
func (p *KnowledgeProvider) Health() entities.Health {
	var h entities.Health
	if snap := p.current.Load(); snap != nil {
		h = snap.Health
	}
	if e := p.lastErr.Load(); e != nil {
		h.OK = false
		h.Error = *e
	}
	return h
}

// Refresh reloads the knowledge file, scrapes product pages and publishes the
// result. A page that fails, or is still pending when ctx ends, keeps its last
// good version and is reported in PageFailures. If the knowledge file cannot
// be read the current snapshot stays in place.
func (p *KnowledgeProvider) Refresh(ctx context.Context) (*entities.Snapshot, error) {
	return p.refresh(ctx, p.fetcher)
}

// RefreshCached publishes a snapshot from the knowledge file and the page
// cache without scraping.
func (p *KnowledgeProvider) RefreshCached(ctx context.Context) (*entities.Snapshot, error) {
	return p.refresh(ctx, nil)
}

func (p *KnowledgeProvider) refresh(ctx context.Context, fetcher PageFetcher) (*entities.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := p.now()
	log := p.logger.WithContext(ctx).WithOperation("refresh")

	k, err := p.loader.Load()
	if err != nil {
		p.setErr(err)
		log.Error().Err(err).Msg("knowledge load failed, keeping current snapshot")
		return nil, fmt.Errorf("load knowledge: %w", err)
	}

	pages, failures := p.collectPages(ctx, fetcher, k)

	snap := &entities.Snapshot{
		Version:   p.version.Add(1),
		LoadedAt:  p.now(),
		Knowledge: mergePages(k, pages),
	}
	snap.Health = entities.Health{
		OK:       true,
		Version:  snap.Version,
		LoadedAt: snap.LoadedAt,
		Counts: entities.Counts{
			Branches:    len(k.Branches),
			Departments: len(k.Departments),
			Products:    len(k.Products),
			Scraped:     len(pages),
		},
	}
	if fetcher != nil {
		snap.Health.LastRefresh = snap.LoadedAt
	}
	if len(failures) > 0 {
		snap.Health.PageFailures = failures
	}

	p.current.Store(snap)
	p.pages = pages
	p.lastErr.Store(nil)

	log.Info().
		Uint64("version", snap.Version).
		Int("products", len(k.Products)).
		Int("scraped", len(pages)).
		Int("failures", len(failures)).
		Dur("took", p.now().Sub(start)).
		Msg("knowledge snapshot published")
	return snap, nil
}

func (p *KnowledgeProvider) setErr(err error) {
	s := err.Error()
	p.lastErr.Store(&s)
}

type pageResult struct {
	page entities.ScrapedPage
	ok   bool
	err  error
}

// cacheTimeout bounds cache access once the refresh context has ended.
const cacheTimeout = 5 * time.Second

// collectPages scrapes every product concurrently. Without a fetcher it
// returns whatever the cache holds. Cache reads and writes use a context
// detached from ctx so an expired pass can still resolve last good pages.
func (p *KnowledgeProvider) collectPages(ctx context.Context, fetcher PageFetcher, k *entities.Knowledge) (map[string]entities.ScrapedPage, map[string]string) {
	pages := make(map[string]entities.ScrapedPage, len(k.Products))
	failures := make(map[string]string)

	cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheTimeout)
	defer cancel()

	if fetcher == nil {
		cached, err := p.cache.All(cacheCtx)
		if err != nil {
			p.logger.Warn().Err(err).Msg("page cache unavailable")
		}
		for _, page := range cached {
			pages[page.ProductID] = page
		}
		return pages, failures
	}

	results := make([]pageResult, len(k.Products))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, prod := range k.Products {
		if prod.URL == "" {
			continue
		}
		g.Go(func() error {
			page, err := fetcher.Fetch(gctx, prod)
			if err != nil {
				results[i] = p.lastGood(cacheCtx, prod.ID, err)
				return nil
			}
			if err := p.cache.Put(cacheCtx, page); err != nil {
				p.logger.Warn().Err(err).Str("product", prod.ID).Msg("page cache write failed")
			}
			results[i] = pageResult{page: page, ok: true}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		p.logger.Warn().Err(err).Msg("refresh pass cut short, publishing partial pages")
	}

	for i, r := range results {
		id := k.Products[i].ID
		if r.err != nil {
			failures[id] = r.err.Error()
			p.logger.Warn().Err(r.err).Str("product", id).Msg("product page refresh failed")
		}
		if r.ok {
			pages[id] = r.page
		}
	}
	return pages, failures
}

// lastGood falls back to the previous in-memory page, then the persistent cache.
func (p *KnowledgeProvider) lastGood(ctx context.Context, productID string, fetchErr error) pageResult {
	if page, ok := p.pages[productID]; ok {
		return pageResult{page: page, ok: true, err: fetchErr}
	}
	page, err := p.cache.Get(ctx, productID)
	if err == nil {
		return pageResult{page: page, ok: true, err: fetchErr}
	}
	if !errors.Is(err, repository.ErrCacheMiss) {
		p.logger.Warn().Err(err).Str("product", productID).Msg("page cache read failed")
	}
	return pageResult{err: fetchErr}
}

// mergePages returns a copy of k with scraped data folded into products.
// Scraped bullets replace static specs; PDF links are used only when the
// product has no configured manuals.
func mergePages(k *entities.Knowledge, pages map[string]entities.ScrapedPage) *entities.Knowledge {
	out := *k
	out.Products = make([]entities.Product, len(k.Products))
	for i, prod := range k.Products {
		if page, ok := pages[prod.ID]; ok {
			if len(page.Bullets) > 0 {
				prod.Specs = append([]string(nil), page.Bullets...)
			}
			if len(prod.Manuals) == 0 && len(page.PDFLinks) > 0 {
				prod.Manuals = append([]entities.Manual(nil), page.PDFLinks...)
			}
			if prod.Price == "" {
				prod.Price = page.Price
			}
		}
		out.Products[i] = prod
	}
	return &out
}
