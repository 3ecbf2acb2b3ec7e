// Package testserver emulates the messaging endpoints and an attachment CDN
// for tests. Every JSON response carries the anti-hijacking prefix.
package testserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	threadListPath = "/ajax/mercury/threadlist_info.php"
	threadInfoPath = "/ajax/mercury/thread_info.php"
	cdnPrefix      = "/cdn/"
	responsePrefix = "for (;;);"
)

// Thread is a conversation summary served by the thread list endpoint
type Thread struct {
	ID           string   `json:"thread_fbid"`
	Type         int      `json:"thread_type"`
	Name         string   `json:"name"`
	OtherUserID  string   `json:"other_user_fbid,omitempty"`
	Participants []string `json:"participants"`
	LastMessage  int64    `json:"last_message_timestamp"`
}

// Participant is a directory entry served alongside threads
type Participant struct {
	ID   string `json:"fbid"`
	Name string `json:"name"`
}

// Action is a raw history record
type Action map[string]interface{}

// History describes the chunks served for one conversation. Chunk i answers
// the i-th request. When NoSentinel is set the end-of-history marker is never
// sent and requests past the last chunk get empty action lists.
type History struct {
	Chunks     [][]Action
	NoSentinel bool
}

// Server is a fake messaging backend
type Server struct {
	server *httptest.Server

	mu           sync.RWMutex
	partitions   map[string][]Thread
	participants []Participant
	histories    map[string]*History
	remoteErrors map[string]string
	rawPayloads  map[string]string
	files        map[string][]byte
	fileStatus   map[string]int
	delays       map[string]time.Duration
	forms        map[string][]url.Values

	requestCount int32
}

// New starts a fake backend
func New() *Server {
	s := &Server{
		partitions:   map[string][]Thread{"inbox": nil, "action:archived": nil},
		histories:    make(map[string]*History),
		remoteErrors: make(map[string]string),
		rawPayloads:  make(map[string]string),
		files:        make(map[string][]byte),
		fileStatus:   make(map[string]int),
		delays:       make(map[string]time.Duration),
		forms:        make(map[string][]url.Values),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(threadListPath, s.handleThreadList)
	mux.HandleFunc(threadInfoPath, s.handleThreadInfo)
	mux.HandleFunc(cdnPrefix, s.handleCDN)

	s.server = httptest.NewServer(mux)
	return s
}

// URL returns the base URL of the backend
func (s *Server) URL() string {
	return s.server.URL
}

// FileURL returns the CDN URL serving name
func (s *Server) FileURL(name string) string {
	return s.server.URL + cdnPrefix + name
}

// Close shuts the backend down
func (s *Server) Close() {
	s.server.Close()
}

// AddThreads appends threads to the "inbox" or "action:archived" partition
func (s *Server) AddThreads(partition string, threads ...Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partitions[partition] = append(s.partitions[partition], threads...)
}

// AddParticipants registers participants returned with every thread list page
// that references them.
func (s *Server) AddParticipants(ps ...Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants = append(s.participants, ps...)
}

// SetHistory sets the history served for conversation id
func (s *Server) SetHistory(id string, h *History) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories[id] = h
}

// SetRemoteError makes endpoint answer with an error document
func (s *Server) SetRemoteError(endpoint, summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remoteErrors[endpoint] = summary
}

// SetRawPayload makes endpoint answer with body verbatim (prefix included)
func (s *Server) SetRawPayload(endpoint, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rawPayloads[endpoint] = body
}

// SetFile serves data at FileURL(name)
func (s *Server) SetFile(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = data
}

// SetFileStatus makes FileURL(name) answer with status
func (s *Server) SetFileStatus(name string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileStatus[name] = status
}

// SetDelay delays responses for a path
func (s *Server) SetDelay(path string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[path] = d
}

// Forms returns every form received on endpoint, in arrival order
func (s *Server) Forms(endpoint string) []url.Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]url.Values(nil), s.forms[endpoint]...)
}

// RequestCount returns the number of requests served
func (s *Server) RequestCount() int {
	return int(atomic.LoadInt32(&s.requestCount))
}

// ThreadListEndpoint and ThreadInfoEndpoint name the endpoints for the setters
const (
	ThreadListEndpoint = threadListPath
	ThreadInfoEndpoint = threadInfoPath
)

func (s *Server) begin(w http.ResponseWriter, r *http.Request) (url.Values, bool) {
	atomic.AddInt32(&s.requestCount, 1)

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return nil, false
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return nil, false
	}

	s.mu.Lock()
	s.forms[r.URL.Path] = append(s.forms[r.URL.Path], r.PostForm)
	delay := s.delays[r.URL.Path]
	summary, failing := s.remoteErrors[r.URL.Path]
	raw, hasRaw := s.rawPayloads[r.URL.Path]
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if failing {
		writeJSON(w, map[string]interface{}{"error": 1357001, "errorSummary": summary})
		return nil, false
	}
	if hasRaw {
		fmt.Fprint(w, raw)
		return nil, false
	}
	return r.PostForm, true
}

func (s *Server) handleThreadList(w http.ResponseWriter, r *http.Request) {
	form, ok := s.begin(w, r)
	if !ok {
		return
	}

	partition := ""
	for key := range form {
		if strings.HasSuffix(key, "[offset]") {
			partition = strings.TrimSuffix(key, "[offset]")
		}
	}
	offset, _ := strconv.Atoi(form.Get(partition + "[offset]"))
	limit, _ := strconv.Atoi(form.Get(partition + "[limit]"))

	s.mu.RLock()
	threads, known := s.partitions[partition]
	var page []Thread
	if known && offset < len(threads) {
		end := offset + limit
		if end > len(threads) {
			end = len(threads)
		}
		page = threads[offset:end]
	}
	participants := s.participantsFor(page)
	s.mu.RUnlock()

	if !known {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if page == nil {
		page = []Thread{}
	}

	writeJSON(w, map[string]interface{}{
		"payload": map[string]interface{}{
			"threads":      page,
			"participants": participants,
		},
	})
}

func (s *Server) participantsFor(threads []Thread) []Participant {
	wanted := make(map[string]bool)
	for _, t := range threads {
		for _, ref := range t.Participants {
			wanted[strings.TrimPrefix(ref, "fbid:")] = true
		}
		if t.OtherUserID != "" {
			wanted[t.OtherUserID] = true
		}
	}
	out := []Participant{}
	for _, p := range s.participants {
		if wanted[p.ID] {
			out = append(out, p)
		}
	}
	return out
}

var historyKey = regexp.MustCompile(`^messages\[(user_ids|thread_fbids)\]\[([^\]]+)\]\[offset\]$`)

func (s *Server) handleThreadInfo(w http.ResponseWriter, r *http.Request) {
	form, ok := s.begin(w, r)
	if !ok {
		return
	}

	var id, prefix string
	for key := range form {
		if m := historyKey.FindStringSubmatch(key); m != nil {
			id = m[2]
			prefix = strings.TrimSuffix(key, "[offset]")
		}
	}
	offset, _ := strconv.Atoi(form.Get(prefix + "[offset]"))
	limit, _ := strconv.Atoi(form.Get(prefix + "[limit]"))

	s.mu.RLock()
	h, known := s.histories[id]
	s.mu.RUnlock()
	if !known || limit <= 0 {
		writeJSON(w, map[string]interface{}{"error": 1357031, "errorSummary": "This content is no longer available"})
		return
	}

	index := offset / limit
	actions := []Action{}
	if index < len(h.Chunks) {
		actions = h.Chunks[index]
	}

	payload := map[string]interface{}{"actions": actions}
	if !h.NoSentinel && index >= len(h.Chunks)-1 {
		payload["end_of_history"] = []interface{}{map[string]string{"type": "user"}}
	}
	writeJSON(w, map[string]interface{}{"payload": payload})
}

func (s *Server) handleCDN(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&s.requestCount, 1)
	name := strings.TrimPrefix(r.URL.Path, cdnPrefix)

	s.mu.RLock()
	status := s.fileStatus[name]
	data, ok := s.files[name]
	delay := s.delays[r.URL.Path]
	s.mu.RUnlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if status != 0 {
		w.WriteHeader(status)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-javascript; charset=utf-8")
	fmt.Fprint(w, responsePrefix)
	w.Write(data)
}

// UserMessage builds a user-generated action record for a direct thread
func UserMessage(otherUserID, authorID, body string, timestamp int64, attachments ...map[string]interface{}) Action {
	if attachments == nil {
		attachments = []map[string]interface{}{}
	}
	return Action{
		"thread_fbid":     nil,
		"other_user_fbid": otherUserID,
		"author":          "fbid:" + authorID,
		"body":            body,
		"timestamp":       timestamp,
		"action_type":     "ma-type:user-generated-message",
		"attachments":     attachments,
	}
}
