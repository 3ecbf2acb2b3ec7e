// Package messenger is the transport client for the web messaging endpoints.
//
// Requests are form-encoded POSTs carrying the session's credential fields.
// Responses are JSON documents behind a "for (;;);" guard; a top-level
// "error" field turns into a protocol error holding the remote errorSummary.
//
// The client performs no retries: a failing request ends the crawl step that
// issued it.
package messenger
