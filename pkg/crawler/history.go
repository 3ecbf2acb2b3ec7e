package crawler

import (
	"context"
	"fmt"

	"fbscraper/pkg/errors"
	"fbscraper/pkg/logger"
	"fbscraper/pkg/messenger"
	"fbscraper/pkg/models"
	"fbscraper/pkg/paginate"
	"fbscraper/pkg/ratelimit"
)

// ThreadFetcher fetches history chunks
type ThreadFetcher interface {
	FetchThread(ctx context.Context, ref messenger.ThreadRef, offset, limit int, timestamp string) (*messenger.HistoryPage, error)
}

// HistoryOptions configures a HistoryCrawler
type HistoryOptions struct {
	// ChunkSize is the number of messages requested per chunk
	ChunkSize int
	// StartOffset skips the most recent messages
	StartOffset int
	// Pacer spaces successive requests; nil disables pacing
	Pacer ratelimit.Limiter
	// Progress, if set, is called before each request with the requested range
	Progress func(id string, from, to int)
}

// HistoryCrawler retrieves the full message history of conversations
type HistoryCrawler struct {
	source ThreadFetcher
	dir    *Directory
	opts   HistoryOptions
	logger logger.Logger
}

// NewHistoryCrawler creates a history crawler resolving ids against dir
func NewHistoryCrawler(source ThreadFetcher, dir *Directory, opts HistoryOptions, log logger.Logger) *HistoryCrawler {
	if log == nil {
		log = logger.GetLogger()
	}
	return &HistoryCrawler{source: source, dir: dir, opts: opts, logger: log}
}

// Crawl returns the messages of conversation id, oldest first. Ids missing
// from the directory are rejected before any request is made.
func (h *HistoryCrawler) Crawl(ctx context.Context, id string) ([]models.Message, error) {
	conv, ok := h.dir.Conversation(id)
	if !ok {
		return nil, errors.UnknownConversation(id)
	}
	ref := messenger.ThreadRef{ID: conv.ID, Kind: conv.Kind}
	log := h.logger.WithField("conversation_id", id)

	fetch := func(ctx context.Context, pos paginate.Position, limit int) (paginate.Page[models.Message], error) {
		if h.opts.Pacer != nil {
			if err := h.opts.Pacer.Wait(ctx); err != nil {
				return paginate.Page[models.Message]{}, err
			}
		}
		if h.opts.Progress != nil {
			h.opts.Progress(id, pos.Offset, pos.Offset+limit)
		}
		page, err := h.source.FetchThread(ctx, ref, pos.Offset, limit, pos.Timestamp)
		if err != nil {
			return paginate.Page[models.Message]{}, err
		}
		return paginate.Page[models.Message]{Records: page.Actions, EndOfStream: page.EndOfHistory}, nil
	}
	stamp := func(m models.Message) string { return m.StampString() }

	start := paginate.Position{Offset: h.opts.StartOffset, Timestamp: "0"}
	cursor := paginate.NewTimestampCursor(fetch, stamp, h.opts.ChunkSize, start)

	var messages []models.Message
	for {
		pos := cursor.Position()
		chunk, state, err := cursor.Advance(ctx)
		if err != nil {
			return nil, fmt.Errorf("crawl history of %s at offset %d: %w", id, pos.Offset, err)
		}
		if state == paginate.More && len(chunk) == 0 {
			return nil, errors.Protocol(fmt.Sprintf("empty history chunk at offset %d of %s without end-of-history marker", pos.Offset, id))
		}

		// chunks arrive newest first, so each one goes in front
		merged := make([]models.Message, 0, len(chunk)+len(messages))
		merged = append(merged, chunk...)
		messages = append(merged, messages...)

		logger.LogCrawlProgress(log, "history", pos.Offset, len(chunk), len(messages))
		if state == paginate.Exhausted {
			break
		}
	}

	log.InfoWithFields("History complete", map[string]interface{}{
		"messages": len(messages),
		"requests": cursor.Requests(),
	})
	return messages, nil
}
