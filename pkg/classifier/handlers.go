package classifier

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"fbscraper/internal/downloader"
	"fbscraper/pkg/messenger"
	"fbscraper/pkg/models"
)

// Handler extracts one category from a message
type Handler interface {
	Category() Category
	Handle(p *Pass, m *models.Message) error
}

var handlers = map[Category]Handler{
	Messages: messageHandler{},
	Pictures: mediaHandler{category: Pictures, kind: models.AttachPhoto},
	Gifs:     mediaHandler{category: Gifs, kind: models.AttachAnimatedImage},
	Videos:   mediaHandler{category: Videos, kind: models.AttachVideo},
	Files:    mediaHandler{category: Files, kind: models.AttachFile},
	Links:    linkHandler{},
}

const (
	messageFormat   = "Message body: %q - attachments {%s} - sent by: '%s' (%s) - the %s"
	timestampLayout = "2006-01-02 15:04:05"
)

type messageHandler struct{}

func (messageHandler) Category() Category { return Messages }

func (messageHandler) Handle(p *Pass, m *models.Message) error {
	var names []string
	for _, a := range m.Attachments {
		if a.Kind != models.AttachError {
			names = append(names, a.Name)
		}
	}

	author := m.AuthorID()
	name := ""
	if p.Names != nil {
		name = p.Names.ParticipantName(author)
	}
	sent := time.UnixMilli(m.Timestamp).In(p.Location).Format(timestampLayout)

	p.emit(Messages, fmt.Sprintf(messageFormat, m.Body, strings.Join(names, " "), name, author, sent))
	return nil
}

// mediaHandler covers the retrievable attachment kinds
type mediaHandler struct {
	category Category
	kind     models.AttachmentKind
}

func (h mediaHandler) Category() Category { return h.category }

func (h mediaHandler) Handle(p *Pass, m *models.Message) error {
	for i := range m.Attachments {
		a := &m.Attachments[i]
		if a.Kind != h.kind {
			continue
		}
		u := a.RetrievalURL()
		if u == "" {
			continue
		}

		p.emit(h.category, u)
		err := p.submit(downloader.Request{
			URL:            u,
			Destination:    filepath.Join(p.OutputDir, string(h.category), p.uniqueName(h.category, fileName(a.Name, u))),
			Category:       string(h.category),
			ConversationID: p.Conversation.ID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

type linkHandler struct{}

func (linkHandler) Category() Category { return Links }

func (linkHandler) Handle(p *Pass, m *models.Message) error {
	for _, a := range m.Attachments {
		if a.Kind != models.AttachShare || a.Share == nil || a.Share.URI == nil {
			continue
		}
		p.emit(Links, messenger.UnwrapRedirect(*a.Share.URI))
	}
	for _, r := range m.Ranges {
		p.emit(Links, r.Entity.URL)
	}
	return nil
}

// fileName returns a single path element for an attachment, falling back to
// the last element of its URL
func fileName(name, rawURL string) string {
	name = strings.TrimSpace(filepath.Base(filepath.FromSlash(name)))
	if name != "" && name != "." && name != ".." && name != string(filepath.Separator) {
		return name
	}
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "." && base != "/" {
			return base
		}
	}
	return "attachment"
}

// uniqueName suffixes repeated names within a category so that two
// attachments called the same do not overwrite each other. Every name handed
// out is recorded, suffixed ones included; the value is the next suffix to
// try for that name.
func (p *Pass) uniqueName(c Category, name string) string {
	used, ok := p.names[c]
	if !ok {
		used = make(map[string]int)
		p.names[c] = used
	}
	next, taken := used[name]
	if !taken {
		used[name] = 1
		return name
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := next; ; n++ {
		candidate := fmt.Sprintf("%s-%d%s", stem, n, ext)
		if _, taken := used[candidate]; !taken {
			used[name] = n + 1
			used[candidate] = 1
			return candidate
		}
	}
}
