package crawler

import (
	"context"
	"fmt"

	"fbscraper/pkg/errors"
	"fbscraper/pkg/logger"
	"fbscraper/pkg/messenger"
	"fbscraper/pkg/models"
	"fbscraper/pkg/paginate"
)

// ThreadLister fetches directory pages
type ThreadLister interface {
	FetchThreadList(ctx context.Context, p messenger.Partition, offset, limit int) (*messenger.ThreadListPage, error)
}

// Directory is the conversation index and participant directory of an
// account. It is only written during a crawl and is safe for concurrent
// readers afterwards.
type Directory struct {
	conversations map[string]models.Conversation
	order         []string
	participants  map[string]models.Participant
}

func newDirectory() *Directory {
	return &Directory{
		conversations: make(map[string]models.Conversation),
		participants:  make(map[string]models.Participant),
	}
}

// Conversation looks up a conversation by id
func (d *Directory) Conversation(id string) (models.Conversation, bool) {
	c, ok := d.conversations[id]
	return c, ok
}

// Conversations returns every conversation in discovery order
func (d *Directory) Conversations() []models.Conversation {
	out := make([]models.Conversation, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.conversations[id])
	}
	return out
}

// Participant looks up a participant by id
func (d *Directory) Participant(id string) (models.Participant, bool) {
	p, ok := d.participants[id]
	return p, ok
}

// ParticipantName returns the display name of a participant, or "" when the
// id is unknown.
func (d *Directory) ParticipantName(id string) string {
	return d.participants[id].Name
}

// Len returns the number of conversations
func (d *Directory) Len() int {
	return len(d.order)
}

// merge validates a whole page and only then folds it into the directory.
// The returned conversations are the page's entries in page order.
func (d *Directory) merge(page *messenger.ThreadListPage) ([]models.Conversation, error) {
	pageParticipants := make(map[string]models.Participant, len(page.Participants))
	for i, p := range page.Participants {
		if p.ID == "" {
			return nil, errors.Protocol(fmt.Sprintf("participant %d of %s page has no id", i, page.Partition))
		}
		pageParticipants[p.ID] = p
	}

	lookup := func(id string) (models.Participant, bool) {
		if p, ok := pageParticipants[id]; ok {
			return p, true
		}
		p, ok := d.participants[id]
		return p, ok
	}

	convs := make([]models.Conversation, 0, len(page.Threads))
	for i := range page.Threads {
		t := &page.Threads[i]
		if t.ThreadID == "" {
			return nil, errors.Protocol(fmt.Sprintf("thread %d of %s page has no id", i, page.Partition))
		}
		kind, ok := t.Kind()
		if !ok {
			return nil, errors.Protocol(fmt.Sprintf("thread %s has unknown type %d", t.ThreadID, t.ThreadType))
		}

		name := t.Name
		if kind == models.KindDirect {
			other, ok := lookup(t.OtherUserID)
			if !ok {
				return nil, errors.Protocol(fmt.Sprintf("thread %s references unknown participant %q", t.ThreadID, t.OtherUserID))
			}
			name = other.Name
		}

		convs = append(convs, models.Conversation{
			ID:            t.ThreadID,
			Kind:          kind,
			Name:          name,
			Status:        page.Partition.Status,
			Participants:  t.Participants,
			OtherUserID:   t.OtherUserID,
			LastMessageAt: t.LastMessageTimestamp,
		})
	}

	for id, p := range pageParticipants {
		d.participants[id] = p
	}
	for _, c := range convs {
		if _, seen := d.conversations[c.ID]; !seen {
			d.order = append(d.order, c.ID)
		}
		d.conversations[c.ID] = c
	}
	return convs, nil
}

// DirectoryCrawler builds a Directory from every partition of the account
type DirectoryCrawler struct {
	source   ThreadLister
	pageSize int
	logger   logger.Logger
}

// NewDirectoryCrawler creates a directory crawler requesting pageSize threads per page
func NewDirectoryCrawler(source ThreadLister, pageSize int, log logger.Logger) *DirectoryCrawler {
	if log == nil {
		log = logger.GetLogger()
	}
	return &DirectoryCrawler{source: source, pageSize: pageSize, logger: log}
}

// Crawl walks the active partition then the archived one. A malformed page
// aborts the crawl without being merged.
func (c *DirectoryCrawler) Crawl(ctx context.Context) (*Directory, error) {
	dir := newDirectory()

	for _, p := range messenger.Partitions() {
		fetch := func(ctx context.Context, pos paginate.Position, limit int) (paginate.Page[models.Conversation], error) {
			page, err := c.source.FetchThreadList(ctx, p, pos.Offset, limit)
			if err != nil {
				return paginate.Page[models.Conversation]{}, err
			}
			convs, err := dir.merge(page)
			if err != nil {
				return paginate.Page[models.Conversation]{}, err
			}
			return paginate.Page[models.Conversation]{Records: convs}, nil
		}

		cursor := paginate.NewOffsetCursor(fetch, c.pageSize)
		for {
			offset := cursor.Position().Offset
			records, state, err := cursor.Advance(ctx)
			if err != nil {
				return nil, fmt.Errorf("crawl %s conversations at offset %d: %w", p, offset, err)
			}
			logger.LogCrawlProgress(c.logger, "directory:"+p.String(), offset, len(records), dir.Len())
			if state == paginate.Exhausted {
				break
			}
		}
	}

	c.logger.InfoWithFields("Conversation directory complete", map[string]interface{}{
		"conversations": dir.Len(),
		"participants":  len(dir.participants),
	})
	return dir, nil
}

// NewDirectoryFrom builds a directory from known entries. Later entries with
// the same id replace earlier ones.
func NewDirectoryFrom(convs []models.Conversation, participants []models.Participant) *Directory {
	dir := newDirectory()
	for _, p := range participants {
		dir.participants[p.ID] = p
	}
	for _, c := range convs {
		if _, seen := dir.conversations[c.ID]; !seen {
			dir.order = append(dir.order, c.ID)
		}
		dir.conversations[c.ID] = c
	}
	return dir
}
