package crawler

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"fbscraper/internal/testserver"
	"fbscraper/pkg/errors"
	"fbscraper/pkg/logger"
	"fbscraper/pkg/messenger"
	"fbscraper/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetchCall struct {
	ref       messenger.ThreadRef
	offset    int
	limit     int
	timestamp string
}

// fakeFetcher answers the i-th request with respond(i)
type fakeFetcher struct {
	calls   []fetchCall
	respond func(i int) (*messenger.HistoryPage, error)
}

func (f *fakeFetcher) FetchThread(_ context.Context, ref messenger.ThreadRef, offset, limit int, timestamp string) (*messenger.HistoryPage, error) {
	f.calls = append(f.calls, fetchCall{ref, offset, limit, timestamp})
	return f.respond(len(f.calls) - 1)
}

// countingPacer records Wait calls without sleeping
type countingPacer struct{ waits int32 }

func (p *countingPacer) Allow() bool { return true }
func (p *countingPacer) Wait(context.Context) error {
	atomic.AddInt32(&p.waits, 1)
	return nil
}
func (p *countingPacer) Reset() {}

func msg(ts int64) models.Message {
	other := "42"
	return models.Message{OtherUserID: &other, Author: "fbid:42", Body: fmt.Sprintf("m%d", ts), Timestamp: ts}
}

// chunk returns the n messages ending at newest, oldest first, the way the
// endpoint orders a chunk
func chunk(newest, n int64) []models.Message {
	out := make([]models.Message, 0, n)
	for ts := newest - n + 1; ts <= newest; ts++ {
		out = append(out, msg(ts))
	}
	return out
}

func testDirectory() *Directory {
	return NewDirectoryFrom([]models.Conversation{
		{ID: "42", Kind: models.KindDirect, Name: "Ada"},
		{ID: "900", Kind: models.KindGroup, Name: "Book club"},
	}, nil)
}

func TestHistoryOrderAcrossChunks(t *testing.T) {
	chunks := [][]models.Message{chunk(30, 10), chunk(20, 10), chunk(10, 10)}
	fetcher := &fakeFetcher{respond: func(i int) (*messenger.HistoryPage, error) {
		return &messenger.HistoryPage{Actions: chunks[i], EndOfHistory: i == len(chunks)-1}, nil
	}}

	h := NewHistoryCrawler(fetcher, testDirectory(), HistoryOptions{ChunkSize: 10}, logger.NewNopLogger())
	messages, err := h.Crawl(context.Background(), "42")
	require.NoError(t, err)

	require.Len(t, messages, 30)
	for i, m := range messages {
		assert.Equal(t, int64(i+1), m.Timestamp)
	}

	require.Len(t, fetcher.calls, 3)
	assert.Equal(t, fetchCall{messenger.ThreadRef{ID: "42", Kind: models.KindDirect}, 0, 10, "0"}, fetcher.calls[0])
	assert.Equal(t, 10, fetcher.calls[1].offset)
	assert.Equal(t, "21", fetcher.calls[1].timestamp)
	assert.Equal(t, 20, fetcher.calls[2].offset)
	assert.Equal(t, "11", fetcher.calls[2].timestamp)
}

func TestHistoryStopsAtSentinel(t *testing.T) {
	for _, k := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			fetcher := &fakeFetcher{respond: func(i int) (*messenger.HistoryPage, error) {
				return &messenger.HistoryPage{Actions: chunk(int64(100-i*5), 5), EndOfHistory: i == k-1}, nil
			}}

			h := NewHistoryCrawler(fetcher, testDirectory(), HistoryOptions{ChunkSize: 5}, logger.NewNopLogger())
			messages, err := h.Crawl(context.Background(), "900")
			require.NoError(t, err)

			assert.Len(t, fetcher.calls, k)
			assert.Len(t, messages, 5*k)
			assert.Equal(t, models.KindGroup, fetcher.calls[0].ref.Kind)
		})
	}
}

func TestHistoryShortChunkDoesNotTerminate(t *testing.T) {
	fetcher := &fakeFetcher{respond: func(i int) (*messenger.HistoryPage, error) {
		if i == 0 {
			return &messenger.HistoryPage{Actions: chunk(50, 3)}, nil
		}
		return &messenger.HistoryPage{Actions: chunk(47, 2), EndOfHistory: true}, nil
	}}

	h := NewHistoryCrawler(fetcher, testDirectory(), HistoryOptions{ChunkSize: 10}, logger.NewNopLogger())
	messages, err := h.Crawl(context.Background(), "42")
	require.NoError(t, err)

	assert.Len(t, fetcher.calls, 2)
	assert.Len(t, messages, 5)
}

func TestHistoryWithoutSentinelNeverTerminatesOnItsOwn(t *testing.T) {
	const maxIter = 50
	errStop := stderrors.New("stop")
	fetcher := &fakeFetcher{respond: func(i int) (*messenger.HistoryPage, error) {
		if i == maxIter {
			return nil, errStop
		}
		return &messenger.HistoryPage{Actions: chunk(int64(10000-i), 1)}, nil
	}}

	h := NewHistoryCrawler(fetcher, testDirectory(), HistoryOptions{ChunkSize: 1}, logger.NewNopLogger())
	messages, err := h.Crawl(context.Background(), "42")

	require.ErrorIs(t, err, errStop)
	assert.Nil(t, messages)
	assert.Len(t, fetcher.calls, maxIter+1)
}

func TestHistoryEmptyChunkWithoutSentinelIsProtocolError(t *testing.T) {
	fetcher := &fakeFetcher{respond: func(i int) (*messenger.HistoryPage, error) {
		if i == 0 {
			return &messenger.HistoryPage{Actions: chunk(10, 2)}, nil
		}
		return &messenger.HistoryPage{}, nil
	}}

	h := NewHistoryCrawler(fetcher, testDirectory(), HistoryOptions{ChunkSize: 2}, logger.NewNopLogger())
	_, err := h.Crawl(context.Background(), "42")

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeProtocol))
	assert.Len(t, fetcher.calls, 2)
}

func TestHistoryUnknownConversation(t *testing.T) {
	fetcher := &fakeFetcher{respond: func(int) (*messenger.HistoryPage, error) {
		t.Fatal("no request expected")
		return nil, nil
	}}

	h := NewHistoryCrawler(fetcher, testDirectory(), HistoryOptions{ChunkSize: 10}, logger.NewNopLogger())
	_, err := h.Crawl(context.Background(), "nope")

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnknownConversation))
	assert.Empty(t, fetcher.calls)
}

func TestHistoryStartOffsetPacerAndProgress(t *testing.T) {
	fetcher := &fakeFetcher{respond: func(i int) (*messenger.HistoryPage, error) {
		return &messenger.HistoryPage{Actions: chunk(int64(20-i*4), 4), EndOfHistory: i == 1}, nil
	}}
	pacer := &countingPacer{}
	var ranges [][2]int

	h := NewHistoryCrawler(fetcher, testDirectory(), HistoryOptions{
		ChunkSize:   4,
		StartOffset: 8,
		Pacer:       pacer,
		Progress:    func(_ string, from, to int) { ranges = append(ranges, [2]int{from, to}) },
	}, logger.NewNopLogger())
	_, err := h.Crawl(context.Background(), "42")
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&pacer.waits))
	assert.Equal(t, [][2]int{{8, 12}, {12, 16}}, ranges)
	assert.Equal(t, 8, fetcher.calls[0].offset)
}

func TestHistoryPacerCancellation(t *testing.T) {
	fetcher := &fakeFetcher{respond: func(int) (*messenger.HistoryPage, error) {
		return &messenger.HistoryPage{Actions: chunk(10, 1)}, nil
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := NewHistoryCrawler(fetcher, testDirectory(), HistoryOptions{
		ChunkSize: 1,
		Pacer:     blockingPacer{},
	}, logger.NewNopLogger())
	_, err := h.Crawl(ctx, "42")

	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fetcher.calls)
}

type blockingPacer struct{}

func (blockingPacer) Allow() bool { return false }
func (blockingPacer) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Minute):
		return nil
	}
}
func (blockingPacer) Reset() {}

func TestHistoryCrawlAgainstServer(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()
	srv.SetHistory("42", &testserver.History{Chunks: [][]testserver.Action{
		{testserver.UserMessage("42", "42", "three", 3000), testserver.UserMessage("42", "1", "four", 4000)},
		{testserver.UserMessage("42", "1", "one", 1000), testserver.UserMessage("42", "42", "two", 2000)},
	}})

	client := messenger.NewClient(messenger.Options{BaseURL: srv.URL(), Logger: logger.NewNopLogger()})
	h := NewHistoryCrawler(client, testDirectory(), HistoryOptions{ChunkSize: 2}, logger.NewNopLogger())
	messages, err := h.Crawl(context.Background(), "42")
	require.NoError(t, err)

	var bodies []string
	for _, m := range messages {
		bodies = append(bodies, m.Body)
	}
	assert.Equal(t, []string{"one", "two", "three", "four"}, bodies)

	forms := srv.Forms(testserver.ThreadInfoEndpoint)
	require.Len(t, forms, 2)
	assert.Equal(t, "3000", forms[1].Get("messages[user_ids][42][timestamp]"))
}
