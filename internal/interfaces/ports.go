package interfaces

import (
	"context"

	"kasbot/internal/entities"
)

// KnowledgeProvider hands out the current knowledge snapshot. Current returns
// nil until the first snapshot has been published.
type KnowledgeProvider interface {
	Current() *entities.Snapshot
}

// KnowledgeRefresher rebuilds and publishes a new snapshot.
type KnowledgeRefresher interface {
	KnowledgeProvider
	Refresh(ctx context.Context) (*entities.Snapshot, error)
}

// KnowledgeMonitor is a refresher that also reports how the last refresh went.
type KnowledgeMonitor interface {
	KnowledgeRefresher
	Health() entities.Health
}

// Responder answers one chat turn.
type Responder interface {
	Respond(ctx context.Context, msg entities.Message, convCtx entities.ConversationContext) (entities.Reply, error)
}

// Messenger delivers replies on a chat channel.
type Messenger interface {
	SendMessage(ctx context.Context, to, content string) error
	SendReply(ctx context.Context, to string, reply entities.Reply) error
}

// PageCache persists the last good scrape of each product page.
type PageCache interface {
	Get(ctx context.Context, productID string) (entities.ScrapedPage, error)
	Put(ctx context.Context, page entities.ScrapedPage) error
	All(ctx context.Context) ([]entities.ScrapedPage, error)
	Close() error
}

// WhatsAppLink exposes the linking state of the WhatsApp device.
type WhatsAppLink interface {
	GetQR() string
	IsLoggedIn() bool
	IsConnected() bool
	GetPhoneNumber() string
	GetName() string
}
