package messenger

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"fbscraper/internal/testserver"
	"fbscraper/pkg/errors"
	"fbscraper/pkg/logger"
	"fbscraper/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRoundTripper allows us to intercept HTTP requests
type mockRoundTripper struct {
	handler func(req *http.Request) (*http.Response, error)
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.handler(req)
}

func newResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return NewClient(Options{
		BaseURL:         baseURL,
		UserAgent:       "test-agent",
		RequestTimeout:  5 * time.Second,
		DownloadTimeout: 5 * time.Second,
		Headers:         map[string]string{"Cookie": "c_user=1; xs=abc"},
		Form:            url.Values{"__user": {"1"}, "fb_dtsg": {"token"}},
		Logger:          logger.NewTestLogger(),
	})
}

func TestPostForwardsCredentials(t *testing.T) {
	var got *http.Request
	var gotBody url.Values
	client := newTestClient(t, "https://messenger.test")
	client.httpClient = &http.Client{Transport: &mockRoundTripper{handler: func(req *http.Request) (*http.Response, error) {
		got = req
		require.NoError(t, req.ParseForm())
		gotBody = req.PostForm
		return newResponse(http.StatusOK, `for (;;);{"payload":{"threads":[],"participants":[]}}`), nil
	}}}

	_, err := client.FetchThreadList(context.Background(), Archived, 1000, 1000)
	require.NoError(t, err)

	assert.Equal(t, "/ajax/mercury/threadlist_info.php", got.URL.Path)
	assert.Equal(t, "c_user=1; xs=abc", got.Header.Get("Cookie"))
	assert.Equal(t, "test-agent", got.Header.Get("User-Agent"))
	assert.Equal(t, "application/x-www-form-urlencoded", got.Header.Get("Content-Type"))
	assert.Equal(t, "1", gotBody.Get("__user"))
	assert.Equal(t, "token", gotBody.Get("fb_dtsg"))
	assert.Equal(t, "1000", gotBody.Get("action:archived[offset]"))
	assert.Equal(t, "1000", gotBody.Get("action:archived[limit]"))
	assert.Equal(t, "web_messenger", gotBody.Get("client"))
}

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantErr  errors.ErrorType
		contains string
	}{
		{"remote error summary", `for (;;);{"error":1357001,"errorSummary":"Please log in"}`, errors.ErrorTypeProtocol, "Please log in"},
		{"missing payload", `for (;;);{"lid":"1"}`, errors.ErrorTypeProtocol, "no payload"},
		{"null payload", `for (;;);{"payload":null}`, errors.ErrorTypeProtocol, "no payload"},
		{"not json", `for (;;);<html>`, errors.ErrorTypeProtocol, "not a JSON object"},
		{"payload not object", `for (;;);{"payload":[1]}`, errors.ErrorTypeProtocol, "not an object"},
	}

	client := newTestClient(t, "https://messenger.test")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.decodeEnvelope(ThreadInfoEndpoint, []byte(tt.body))
			require.Error(t, err)
			assert.True(t, errors.IsType(err, tt.wantErr), "got %v", err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}

	payload, err := client.decodeEnvelope(ThreadInfoEndpoint, []byte(`{"payload":{"actions":[]}}`))
	require.NoError(t, err)
	assert.Contains(t, payload, "actions")
}

func TestStatusErrors(t *testing.T) {
	client := newTestClient(t, "https://messenger.test")
	client.httpClient = &http.Client{Transport: &mockRoundTripper{handler: func(req *http.Request) (*http.Response, error) {
		resp := newResponse(http.StatusForbidden, "denied")
		resp.Request = req
		return resp, nil
	}}}

	_, err := client.FetchThreadList(context.Background(), Active, 0, 10)

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCredentials))
}

func TestNetworkError(t *testing.T) {
	client := newTestClient(t, "https://messenger.test")
	client.httpClient = &http.Client{Transport: &mockRoundTripper{handler: func(*http.Request) (*http.Response, error) {
		return nil, io.ErrUnexpectedEOF
	}}}

	_, err := client.FetchThread(context.Background(), ThreadRef{ID: "1", Kind: models.KindDirect}, 0, 10, "0")

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNetwork))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestFetchThreadListAgainstServer(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()
	srv.AddParticipants(testserver.Participant{ID: "200", Name: "Ada"})
	srv.AddThreads("inbox", testserver.Thread{ID: "200", Type: ThreadTypeDirect, OtherUserID: "200", Participants: []string{"fbid:1", "fbid:200"}, LastMessage: 1500000000000})

	client := newTestClient(t, srv.URL())
	page, err := client.FetchThreadList(context.Background(), Active, 0, 1000)
	require.NoError(t, err)

	require.Len(t, page.Threads, 1)
	assert.Equal(t, Active, page.Partition)
	kind, ok := page.Threads[0].Kind()
	assert.True(t, ok)
	assert.Equal(t, models.KindDirect, kind)
	assert.Equal(t, []models.Participant{{ID: "200", Name: "Ada"}}, page.Participants)
}

func TestFetchThreadListMissingField(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()
	srv.SetRawPayload(testserver.ThreadListEndpoint, `for (;;);{"payload":{"threads":[]}}`)

	client := newTestClient(t, srv.URL())
	_, err := client.FetchThreadList(context.Background(), Active, 0, 1000)

	require.Error(t, err)
	assert.Contains(t, err.Error(), `"participants"`)
}

func TestFetchThreadSentinel(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()
	srv.SetHistory("300", &testserver.History{Chunks: [][]testserver.Action{
		{testserver.UserMessage("", "1", "newest", 30)},
		{testserver.UserMessage("", "1", "oldest", 10)},
	}})

	client := newTestClient(t, srv.URL())
	ref := ThreadRef{ID: "300", Kind: models.KindGroup}

	first, err := client.FetchThread(context.Background(), ref, 0, 1, "0")
	require.NoError(t, err)
	assert.False(t, first.EndOfHistory)
	require.Len(t, first.Actions, 1)
	assert.Equal(t, "newest", first.Actions[0].Body)

	second, err := client.FetchThread(context.Background(), ref, 1, 1, "30")
	require.NoError(t, err)
	assert.True(t, second.EndOfHistory)

	forms := srv.Forms(testserver.ThreadInfoEndpoint)
	require.Len(t, forms, 2)
	assert.Equal(t, "30", forms[1].Get("messages[thread_fbids][300][timestamp]"))
	assert.Equal(t, "1", forms[1].Get("messages[thread_fbids][300][offset]"))
}

func TestFetchThreadMissingActions(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()
	srv.SetRawPayload(testserver.ThreadInfoEndpoint, `for (;;);{"payload":{"roger":{}}}`)

	client := newTestClient(t, srv.URL())
	_, err := client.FetchThread(context.Background(), ThreadRef{ID: "1", Kind: models.KindDirect}, 0, 10, "0")

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeProtocol))
}

func TestFetchDownload(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()
	srv.SetFile("a.jpg", []byte("jpeg-bytes"))
	srv.SetFileStatus("gone.jpg", http.StatusGone)

	client := newTestClient(t, srv.URL())

	body, err := client.Fetch(context.Background(), srv.FileURL("a.jpg"))
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	body.Close()
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	_, err = client.Fetch(context.Background(), srv.FileURL("gone.jpg"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeDownload))
	assert.Contains(t, err.Error(), "410")
}
