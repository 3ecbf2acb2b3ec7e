package classifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fbscraper/internal/downloader"
	"fbscraper/pkg/logger"
	"fbscraper/pkg/models"
)

// NameResolver maps participant ids to display names
type NameResolver interface {
	ParticipantName(id string) string
}

// Submitter accepts download requests while classification runs
type Submitter interface {
	Submit(req downloader.Request) error
}

// Pass is the state of one classification run over one conversation. It is
// owned by a single goroutine; downloads only see the requests it submits.
type Pass struct {
	Conversation models.Conversation
	Names        NameResolver
	// OutputDir is the conversation folder; downloads go to its category subfolders
	OutputDir string
	Mode      Mode
	Submitter Submitter
	// Location renders message timestamps; nil means local time
	Location *time.Location

	streams   map[Category]*strings.Builder
	counts    Counts
	names     map[Category]map[string]int
	submitted int
}

func (p *Pass) init() {
	p.streams = make(map[Category]*strings.Builder)
	p.counts = make(Counts)
	p.names = make(map[Category]map[string]int)
	if p.Location == nil {
		p.Location = time.Local
	}
}

func (p *Pass) emit(c Category, line string) {
	b, ok := p.streams[c]
	if !ok {
		b = &strings.Builder{}
		p.streams[c] = b
	}
	b.WriteString(line)
	b.WriteByte('\n')
	p.counts[c]++
}

func (p *Pass) submit(req downloader.Request) error {
	if p.Mode != ModeDownload {
		return nil
	}
	if p.Submitter == nil {
		return fmt.Errorf("download mode without a submitter")
	}
	if err := p.Submitter.Submit(req); err != nil {
		return fmt.Errorf("submit %s: %w", req.URL, err)
	}
	p.submitted++
	return nil
}

// Result holds the typed text streams and counts of a pass
type Result struct {
	Categories []Category
	Streams    map[Category]string
	Counts     Counts
	// Submitted is the number of download requests handed to the submitter
	Submitted int
}

// Stream returns the text of category c, "" when nothing was produced
func (r *Result) Stream(c Category) string {
	return r.Streams[c]
}

// Classifier routes messages into category streams
type Classifier struct {
	categories []Category
	handlers   []Handler
	logger     logger.Logger
}

// New creates a classifier for the requested categories. Handlers always run
// in the fixed category order regardless of the order requested.
func New(categories []Category, log logger.Logger) *Classifier {
	if log == nil {
		log = logger.GetLogger()
	}
	requested := make(map[Category]bool, len(categories))
	for _, c := range categories {
		requested[c] = true
	}

	c := &Classifier{logger: log}
	for _, cat := range AllCategories {
		if requested[cat] {
			c.categories = append(c.categories, cat)
			c.handlers = append(c.handlers, handlers[cat])
		}
	}
	return c
}

// Categories returns the categories this classifier produces
func (c *Classifier) Categories() []Category {
	return c.categories
}

// Classify runs every requested handler over the user-generated messages.
// A submission failure stops the pass; the partial result is still returned.
func (c *Classifier) Classify(ctx context.Context, pass *Pass, messages []models.Message) (*Result, error) {
	pass.init()
	log := c.logger.WithField("conversation_id", pass.Conversation.ID)

	var err error
	skipped := 0
loop:
	for i := range messages {
		if ctx.Err() != nil {
			err = ctx.Err()
			break
		}
		m := &messages[i]
		if !m.IsUserGenerated() {
			skipped++
			continue
		}
		for _, h := range c.handlers {
			if err = h.Handle(pass, m); err != nil {
				break loop
			}
		}
	}

	res := &Result{
		Categories: c.categories,
		Streams:    make(map[Category]string, len(pass.streams)),
		Counts:     make(Counts, len(c.categories)),
		Submitted:  pass.submitted,
	}
	for _, cat := range c.categories {
		res.Counts[cat] = pass.counts[cat]
		if b, ok := pass.streams[cat]; ok {
			res.Streams[cat] = b.String()
		}
	}

	log.DebugWithFields("Classification finished", map[string]interface{}{
		"messages":  len(messages),
		"skipped":   skipped,
		"submitted": pass.submitted,
	})
	return res, err
}
