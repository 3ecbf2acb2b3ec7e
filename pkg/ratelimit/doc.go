// Package ratelimit paces requests to the messaging endpoints and downloads.
//
// Interval keeps successive history requests a fixed delay apart; the remote
// service starts refusing requests when they arrive too quickly. TokenBucket
// caps download starts per minute when configured.
//
// Both implement Limiter and their Wait methods return early with the context
// error when the run is cancelled.
package ratelimit
