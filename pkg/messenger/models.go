package messenger

import (
	"encoding/json"

	"fbscraper/pkg/models"
)

// Thread types of a conversation summary
const (
	ThreadTypeDirect = 1
	ThreadTypeGroup  = 2
)

// ThreadSummary is one conversation entry of a directory page
type ThreadSummary struct {
	ThreadID             string   `json:"thread_fbid"`
	ThreadType           int      `json:"thread_type"`
	Name                 string   `json:"name"`
	OtherUserID          string   `json:"other_user_fbid"`
	Participants         []string `json:"participants"`
	LastMessageTimestamp int64    `json:"last_message_timestamp"`
}

// Kind maps the thread type onto a conversation kind
func (t *ThreadSummary) Kind() (models.ConversationKind, bool) {
	switch t.ThreadType {
	case ThreadTypeGroup:
		return models.KindGroup, true
	case ThreadTypeDirect:
		return models.KindDirect, true
	default:
		return "", false
	}
}

// ThreadRef addresses a conversation in history requests
type ThreadRef struct {
	ID   string
	Kind models.ConversationKind
}

// ThreadListPage is a decoded directory page
type ThreadListPage struct {
	Partition    Partition
	Threads      []ThreadSummary
	Participants []models.Participant
}

// HistoryPage is a decoded history chunk. Actions are newest-last within the
// chunk and the chunk itself precedes every chunk received before it.
type HistoryPage struct {
	Actions      []models.Message
	EndOfHistory bool
}

// envelope is the top level of every response
type envelope map[string]json.RawMessage

type threadListPayload struct {
	Threads      []ThreadSummary      `json:"threads"`
	Participants []models.Participant `json:"participants"`
}

type historyPayload struct {
	Actions []models.Message `json:"actions"`
}
