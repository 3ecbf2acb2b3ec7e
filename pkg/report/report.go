// Package report renders classification results as the text reports and
// console lines of a run.
package report

import (
	"fmt"
	"strings"
	"time"

	"fbscraper/pkg/classifier"
	"fbscraper/pkg/models"
)

const (
	metadataFormat  = "[+] - ID: '%s' - Name: '%s' - Last msg: '%s' - Type: '%s' - Status: '%s' - Users: '%s'"
	summaryFormat   = "[+]     - Data report : %d messages, %d pictures, %d gifs, %d videos, %d files, %d links parsed"
	timestampLayout = "2006-01-02 15:04:05"
	ruleWidth       = 79
)

// Names resolves participant ids to display names
type Names interface {
	ParticipantName(id string) string
}

// FormatMetadata renders one line per conversation
func FormatMetadata(convs []models.Conversation, names Names, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	lines := make([]string, 0, len(convs))
	for _, c := range convs {
		users := make([]string, 0, len(c.Participants))
		for _, ref := range c.Participants {
			users = append(users, names.ParticipantName(models.ParticipantRef(ref)))
		}
		last := time.UnixMilli(c.LastMessageAt).In(loc).Format(timestampLayout)
		lines = append(lines, fmt.Sprintf(metadataFormat, c.ID, c.Name, last, c.Kind, c.Status, strings.Join(users, " | ")))
	}
	return strings.Join(lines, "\n")
}

// Summary renders the per-category count line
func Summary(counts classifier.Counts) string {
	return fmt.Sprintf(summaryFormat,
		counts[classifier.Messages],
		counts[classifier.Pictures],
		counts[classifier.Gifs],
		counts[classifier.Videos],
		counts[classifier.Files],
		counts[classifier.Links],
	)
}

// Block is one named report
type Block struct {
	Category classifier.Category
	Content  string
}

// Assemble returns the six report blocks of a conversation in category order.
// When the messages category was requested its block starts with the
// conversation's metadata line and a rule.
func Assemble(conv models.Conversation, names Names, res *classifier.Result, loc *time.Location) []Block {
	requested := make(map[classifier.Category]bool, len(res.Categories))
	for _, c := range res.Categories {
		requested[c] = true
	}

	blocks := make([]Block, 0, len(classifier.AllCategories))
	for _, c := range classifier.AllCategories {
		content := res.Stream(c)
		if c == classifier.Messages && requested[c] {
			content = Header(conv, names, loc) + content
		}
		blocks = append(blocks, Block{Category: c, Content: content})
	}
	return blocks
}

// Header is the metadata line and rule heading a messages report
func Header(conv models.Conversation, names Names, loc *time.Location) string {
	return FormatMetadata([]models.Conversation{conv}, names, loc) + "\n" + strings.Repeat("-", ruleWidth) + "\n\n"
}
