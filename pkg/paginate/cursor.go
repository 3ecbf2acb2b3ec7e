// Package paginate drives externally paginated sources.
//
// Two cursors are provided. OffsetCursor walks a source by a running offset
// and treats a page shorter than the requested size as the last one.
// TimestampCursor additionally rolls a timestamp forward from the first record
// of each page and only stops when the source reports the end of the stream.
//
// Both return a tri-state result from Advance: a nil error with More or
// Exhausted, or a non-nil error.
package paginate

import (
	"context"
	"errors"
)

// State is the continuation state after a successful Advance
type State int

const (
	More State = iota
	Exhausted
)

func (s State) String() string {
	if s == Exhausted {
		return "exhausted"
	}
	return "more"
}

// ErrExhausted is returned when advancing a cursor that already finished
var ErrExhausted = errors.New("paginate: cursor exhausted")

// Position is the continuation token sent with each request
type Position struct {
	Offset    int
	Timestamp string
}

// Page is one response of a paginated source
type Page[T any] struct {
	Records     []T
	EndOfStream bool
}

// FetchFunc requests one page at pos
type FetchFunc[T any] func(ctx context.Context, pos Position, limit int) (Page[T], error)

// OffsetCursor pages through a source by offset
type OffsetCursor[T any] struct {
	fetch    FetchFunc[T]
	pageSize int
	pos      Position
	done     bool
	requests int
}

// NewOffsetCursor creates a cursor starting at offset 0
func NewOffsetCursor[T any](fetch FetchFunc[T], pageSize int) *OffsetCursor[T] {
	return &OffsetCursor[T]{fetch: fetch, pageSize: pageSize}
}

// Advance fetches the next page. The cursor is exhausted when the source flags
// the end of the stream or returns fewer records than the page size; a total
// that is an exact multiple of the page size costs one extra empty request.
func (c *OffsetCursor[T]) Advance(ctx context.Context) ([]T, State, error) {
	if c.done {
		return nil, Exhausted, ErrExhausted
	}

	c.requests++
	page, err := c.fetch(ctx, c.pos, c.pageSize)
	if err != nil {
		return nil, More, err
	}

	c.pos.Offset += c.pageSize
	if page.EndOfStream || len(page.Records) < c.pageSize {
		c.done = true
		return page.Records, Exhausted, nil
	}
	return page.Records, More, nil
}

// Position returns the position of the next request
func (c *OffsetCursor[T]) Position() Position { return c.pos }

// Requests returns how many times the source was called
func (c *OffsetCursor[T]) Requests() int { return c.requests }

// TimestampCursor pages backward through time with an (offset, timestamp) pair
type TimestampCursor[T any] struct {
	fetch    FetchFunc[T]
	stamp    func(T) string
	pageSize int
	pos      Position
	done     bool
	requests int
}

// NewTimestampCursor creates a cursor starting at start. stamp extracts the
// continuation timestamp from a record.
func NewTimestampCursor[T any](fetch FetchFunc[T], stamp func(T) string, pageSize int, start Position) *TimestampCursor[T] {
	return &TimestampCursor[T]{fetch: fetch, stamp: stamp, pageSize: pageSize, pos: start}
}

// Advance fetches the next page. Only an explicit end-of-stream marker
// exhausts the cursor: an empty page without it reports More, and callers
// must decide whether that is an error.
func (c *TimestampCursor[T]) Advance(ctx context.Context) ([]T, State, error) {
	if c.done {
		return nil, Exhausted, ErrExhausted
	}

	c.requests++
	page, err := c.fetch(ctx, c.pos, c.pageSize)
	if err != nil {
		return nil, More, err
	}

	c.pos.Offset += c.pageSize
	if len(page.Records) > 0 {
		c.pos.Timestamp = c.stamp(page.Records[0])
	}
	if page.EndOfStream {
		c.done = true
		return page.Records, Exhausted, nil
	}
	return page.Records, More, nil
}

// Position returns the position of the next request
func (c *TimestampCursor[T]) Position() Position { return c.pos }

// Requests returns how many times the source was called
func (c *TimestampCursor[T]) Requests() int { return c.requests }
