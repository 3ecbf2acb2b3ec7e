package scraper

import (
	"context"
	"io"

	"fbscraper/pkg/messenger"
)

// MessengerClient defines the remote operations a run depends on
type MessengerClient interface {
	FetchThreadList(ctx context.Context, p messenger.Partition, offset, limit int) (*messenger.ThreadListPage, error)
	FetchThread(ctx context.Context, ref messenger.ThreadRef, offset, limit int, timestamp string) (*messenger.HistoryPage, error)
	Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error)
}
