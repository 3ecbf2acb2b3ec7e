package messenger

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"fbscraper/pkg/models"
)

const (
	// ThreadListEndpoint lists conversation summaries of one partition
	ThreadListEndpoint = "/ajax/mercury/threadlist_info.php"

	// ThreadInfoEndpoint returns one chunk of a conversation history
	ThreadInfoEndpoint = "/ajax/mercury/thread_info.php"

	// ResponsePrefix guards every JSON response against script inclusion
	ResponsePrefix = "for (;;);"

	// EndOfHistoryKey marks the last history chunk of a conversation
	EndOfHistoryKey = "end_of_history"

	clientName = "web_messenger"
)

// Partition is one status partition of the conversation directory
type Partition struct {
	Status models.Status
	key    string
}

var (
	// Active holds conversations shown in the inbox
	Active = Partition{Status: models.StatusActive, key: "inbox"}
	// Archived holds archived conversations
	Archived = Partition{Status: models.StatusArchived, key: "action:archived"}
)

// Partitions lists the directory partitions in crawl order
func Partitions() []Partition {
	return []Partition{Active, Archived}
}

func (p Partition) String() string {
	return string(p.Status)
}

// ThreadListForm builds the form of a directory page request
func ThreadListForm(p Partition, offset, limit int) url.Values {
	form := url.Values{}
	form.Set(p.key+"[offset]", strconv.Itoa(offset))
	form.Set(p.key+"[limit]", strconv.Itoa(limit))
	form.Set(p.key+"[filter]", "")
	form.Set("client", clientName)
	return form
}

// ThreadInfoForm builds the form of a history chunk request. Group threads are
// addressed by thread id, direct threads by the other user's id.
func ThreadInfoForm(kind models.ConversationKind, id string, offset, limit int, timestamp string) url.Values {
	idKey := "user_ids"
	if kind == models.KindGroup {
		idKey = "thread_fbids"
	}
	prefix := fmt.Sprintf("messages[%s][%s]", idKey, id)

	form := url.Values{}
	form.Set(prefix+"[offset]", strconv.Itoa(offset))
	form.Set(prefix+"[limit]", strconv.Itoa(limit))
	form.Set(prefix+"[timestamp]", timestamp)
	form.Set("client", clientName)
	return form
}

var redirectPattern = regexp.MustCompile(`https://l\.facebook\.com/l\.php\?u=(.*?)&h=`)

// UnwrapRedirect returns the target of an outbound redirect link. URIs that do
// not match the redirect wrapper are returned unchanged.
func UnwrapRedirect(uri string) string {
	m := redirectPattern.FindStringSubmatch(uri)
	if m == nil {
		return uri
	}
	return unquote(m[1])
}

// unquote decodes every valid %XX escape and leaves malformed ones as they
// are. Invalid UTF-8 in the result is replaced with U+FFFD.
func unquote(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
			continue
		}
		b.WriteByte(s[i])
	}
	return strings.ToValidUTF8(b.String(), "\uFFFD")
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

func joinURL(base, endpoint string) string {
	return strings.TrimRight(base, "/") + endpoint
}
