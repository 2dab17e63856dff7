package main

import (
	"context"
	"fmt"

	"kasbot/internal/config"
	"kasbot/internal/infrastructure"
	"kasbot/internal/interfaces"
	"kasbot/internal/observability"
	"kasbot/internal/repository"
)

// knowledgeStack is the provider plus whatever it holds open.
type knowledgeStack struct {
	provider *infrastructure.KnowledgeProvider
	cache    interfaces.PageCache
	pg       *infrastructure.PostgresClient
}

func (s *knowledgeStack) Close() {
	if err := s.cache.Close(); err != nil {
		logger.Warn().Err(err).Msg("close page cache")
	}
	if s.pg != nil {
		s.pg.Close()
	}
}

// openPageCache opens the configured page cache backend.
func openPageCache(ctx context.Context, c config.CacheConfig) (interfaces.PageCache, *infrastructure.PostgresClient, error) {
	switch c.Driver {
	case "", "none":
		return repository.NopPageCache{}, nil, nil
	case "sqlite":
		cache, err := repository.NewSQLitePageCache(ctx, c.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return cache, nil, nil
	case "postgres":
		pg, err := infrastructure.NewPostgresClient(ctx, c.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		return repository.NewPostgresPageCache(pg.Pool), pg, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache driver %q", c.Driver)
	}
}

// buildKnowledge wires the knowledge file, page cache and, when scrape is
// true, the product page scraper into a provider. No snapshot is published yet.
func buildKnowledge(ctx context.Context, cfg *config.Config, scrape bool, log *observability.Logger) (*knowledgeStack, error) {
	cache, pg, err := openPageCache(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}

	opts := infrastructure.ProviderOptions{
		Cache:       cache,
		Concurrency: cfg.Scraper.Concurrency,
		Logger:      log,
	}
	if scrape {
		opts.Fetcher = infrastructure.NewScraper(cfg.Scraper)
	}

	loader := repository.NewKnowledgeRepository(cfg.Knowledge.Path)
	return &knowledgeStack{
		provider: infrastructure.NewKnowledgeProvider(loader, opts),
		cache:    cache,
		pg:       pg,
	}, nil
}
