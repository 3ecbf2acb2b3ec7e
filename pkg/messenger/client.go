package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fbscraper/pkg/errors"
	"fbscraper/pkg/logger"
)

// Options configures a Client
type Options struct {
	BaseURL         string
	UserAgent       string
	RequestTimeout  time.Duration
	DownloadTimeout time.Duration

	// Headers and Form are the credential fields forwarded verbatim on every
	// endpoint request.
	Headers map[string]string
	Form    url.Values

	Logger logger.Logger
}

// Client talks to the messaging endpoints
type Client struct {
	httpClient     *http.Client
	downloadClient *http.Client
	headers        map[string]string
	form           url.Values
	baseURL        string
	logger         logger.Logger
}

// NewClient creates a new messaging client
func NewClient(opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	headers := map[string]string{
		"Origin":          opts.BaseURL,
		"Referer":         joinURL(opts.BaseURL, "/messages/"),
		"Accept":          "*/*",
		"Accept-Language": "en-US,en;q=0.8",
		"Cache-Control":   "no-cache",
		"Pragma":          "no-cache",
		"Content-Type":    "application/x-www-form-urlencoded",
	}
	if opts.UserAgent != "" {
		headers["User-Agent"] = opts.UserAgent
	}
	for k, v := range opts.Headers {
		headers[k] = v
	}

	form := url.Values{}
	for k, vs := range opts.Form {
		form[k] = append([]string(nil), vs...)
	}

	return &Client{
		httpClient:     &http.Client{Timeout: opts.RequestTimeout},
		downloadClient: &http.Client{Timeout: opts.DownloadTimeout},
		headers:        headers,
		form:           form,
		baseURL:        opts.BaseURL,
		logger:         log,
	}
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorWithFields("request failed", map[string]interface{}{
			"endpoint": req.URL.Path,
			"error":    err.Error(),
			"duration": time.Since(start),
		})
		return nil, errors.Wrap(errors.ErrorTypeNetwork, req.URL.Path, err)
	}

	logger.LogRequest(c.logger, req.URL.Path, resp.StatusCode, time.Since(start))
	return resp, nil
}

// Post sends form plus the credential fields to endpoint and returns the
// decoded payload object. A response carrying an error field fails with a
// protocol error holding the remote error summary.
func (c *Client) Post(ctx context.Context, endpoint string, form url.Values) (map[string]json.RawMessage, error) {
	body := url.Values{}
	for k, vs := range form {
		body[k] = vs
	}
	for k, vs := range c.form {
		body[k] = vs
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(c.baseURL, endpoint), strings.NewReader(body.Encode()))
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeNetwork, "failed to create request", err)
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeNetwork, "failed to read response body", err)
	}

	if err := c.checkResponseStatus(resp, endpoint, raw); err != nil {
		return nil, err
	}

	return c.decodeEnvelope(endpoint, raw)
}

func (c *Client) decodeEnvelope(endpoint string, raw []byte) (map[string]json.RawMessage, error) {
	raw = bytes.TrimPrefix(bytes.TrimSpace(raw), []byte(ResponsePrefix))

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		preview := string(raw)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse response", map[string]interface{}{
			"endpoint":     endpoint,
			"error":        err.Error(),
			"body_preview": preview,
		})
		return nil, errors.Wrap(errors.ErrorTypeProtocol, "response is not a JSON object", err)
	}

	if _, failed := env["error"]; failed {
		var summary string
		_ = json.Unmarshal(env["errorSummary"], &summary)
		if summary == "" {
			summary = "remote service reported an error"
		}
		c.logger.WarnWithFields("remote error", map[string]interface{}{
			"endpoint": endpoint,
			"summary":  summary,
		})
		return nil, errors.Protocol(summary)
	}

	rawPayload, ok := env["payload"]
	if !ok || isNull(rawPayload) {
		return nil, errors.Protocol("response has no payload")
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(rawPayload, &payload); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeProtocol, "payload is not an object", err)
	}
	return payload, nil
}

func (c *Client) checkResponseStatus(resp *http.Response, endpoint string, body []byte) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	preview := string(body)
	if len(preview) > 200 {
		preview = preview[:200]
	}
	c.logger.WarnWithFields("unexpected status", map[string]interface{}{
		"status":   resp.StatusCode,
		"endpoint": endpoint,
	})
	return errors.StatusError(resp.StatusCode, preview)
}

// FetchThreadList requests one directory page of partition p. The payload
// must carry both the threads and participants fields.
func (c *Client) FetchThreadList(ctx context.Context, p Partition, offset, limit int) (*ThreadListPage, error) {
	payload, err := c.Post(ctx, ThreadListEndpoint, ThreadListForm(p, offset, limit))
	if err != nil {
		return nil, err
	}

	for _, key := range []string{"threads", "participants"} {
		if _, ok := payload[key]; !ok {
			return nil, errors.Protocol(fmt.Sprintf("thread list payload has no %q field", key))
		}
	}

	var decoded threadListPayload
	if err := decodePayload(payload, &decoded); err != nil {
		return nil, err
	}

	return &ThreadListPage{
		Partition:    p,
		Threads:      decoded.Threads,
		Participants: decoded.Participants,
	}, nil
}

// FetchThread requests one history chunk of a conversation. The chunk must
// carry an actions field unless it is the last one.
func (c *Client) FetchThread(ctx context.Context, ref ThreadRef, offset, limit int, timestamp string) (*HistoryPage, error) {
	payload, err := c.Post(ctx, ThreadInfoEndpoint, ThreadInfoForm(ref.Kind, ref.ID, offset, limit, timestamp))
	if err != nil {
		return nil, err
	}

	_, end := payload[EndOfHistoryKey]
	if _, ok := payload["actions"]; !ok && !end {
		return nil, errors.Protocol("thread payload has no \"actions\" field")
	}

	var decoded historyPayload
	if err := decodePayload(payload, &decoded); err != nil {
		return nil, err
	}

	return &HistoryPage{Actions: decoded.Actions, EndOfHistory: end}, nil
}

// Fetch opens rawURL for download. The caller closes the returned body.
func (c *Client) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Download(rawURL, err)
	}
	if ua, ok := c.headers["User-Agent"]; ok {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.downloadClient.Do(req)
	if err != nil {
		return nil, errors.Download(rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.Download(rawURL, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	return resp.Body, nil
}

func decodePayload(payload map[string]json.RawMessage, target interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(errors.ErrorTypeProtocol, "payload re-encode failed", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return errors.Wrap(errors.ErrorTypeProtocol, "payload has unexpected shape", err)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
