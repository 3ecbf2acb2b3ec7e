package paginate

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceSource serves total integers in pages and records every position asked for
type sliceSource struct {
	total     int
	positions []Position
}

func (s *sliceSource) fetch(_ context.Context, pos Position, limit int) (Page[int], error) {
	s.positions = append(s.positions, pos)
	var records []int
	for i := pos.Offset; i < pos.Offset+limit && i < s.total; i++ {
		records = append(records, i)
	}
	return Page[int]{Records: records}, nil
}

func drainOffset(t *testing.T, c *OffsetCursor[int]) []int {
	t.Helper()
	var all []int
	for i := 0; i < 100; i++ {
		records, state, err := c.Advance(context.Background())
		require.NoError(t, err)
		all = append(all, records...)
		if state == Exhausted {
			return all
		}
	}
	t.Fatal("cursor never exhausted")
	return nil
}

func TestOffsetCursorShortPage(t *testing.T) {
	src := &sliceSource{total: 25}
	c := NewOffsetCursor(src.fetch, 10)

	all := drainOffset(t, c)

	assert.Len(t, all, 25)
	assert.Equal(t, 3, c.Requests())
	assert.Equal(t, []Position{{Offset: 0}, {Offset: 10}, {Offset: 20}}, src.positions)
}

func TestOffsetCursorExactMultipleCostsOneExtraCall(t *testing.T) {
	src := &sliceSource{total: 20}
	c := NewOffsetCursor(src.fetch, 10)

	all := drainOffset(t, c)

	assert.Len(t, all, 20)
	assert.Equal(t, 3, c.Requests())
}

func TestOffsetCursorHonoursEndOfStream(t *testing.T) {
	fetch := func(_ context.Context, pos Position, limit int) (Page[int], error) {
		return Page[int]{Records: make([]int, limit), EndOfStream: pos.Offset == 10}, nil
	}
	c := NewOffsetCursor(fetch, 10)

	_, state, err := c.Advance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, More, state)

	_, state, err = c.Advance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Exhausted, state)
	assert.Equal(t, 2, c.Requests())
}

func TestOffsetCursorAdvanceAfterExhausted(t *testing.T) {
	src := &sliceSource{total: 3}
	c := NewOffsetCursor(src.fetch, 10)

	drainOffset(t, c)
	_, state, err := c.Advance(context.Background())

	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, Exhausted, state)
	assert.Equal(t, 1, c.Requests())
}

func TestOffsetCursorErrorDoesNotMove(t *testing.T) {
	boom := errors.New("boom")
	fetch := func(_ context.Context, _ Position, _ int) (Page[int], error) {
		return Page[int]{}, boom
	}
	c := NewOffsetCursor(fetch, 10)

	_, _, err := c.Advance(context.Background())

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Position{}, c.Position())
}

func TestTimestampCursorRollsTimestamp(t *testing.T) {
	var seen []Position
	pages := [][]int{{30, 31}, {20, 21}, {10, 11}}
	fetch := func(_ context.Context, pos Position, _ int) (Page[int], error) {
		i := len(seen)
		seen = append(seen, pos)
		return Page[int]{Records: pages[i], EndOfStream: i == len(pages)-1}, nil
	}
	c := NewTimestampCursor(fetch, strconv.Itoa, 2, Position{Timestamp: "0"})

	for {
		_, state, err := c.Advance(context.Background())
		require.NoError(t, err)
		if state == Exhausted {
			break
		}
	}

	assert.Equal(t, []Position{
		{Offset: 0, Timestamp: "0"},
		{Offset: 2, Timestamp: "30"},
		{Offset: 4, Timestamp: "20"},
	}, seen)
}

func TestTimestampCursorNeverExhaustsWithoutSentinel(t *testing.T) {
	fetch := func(_ context.Context, _ Position, _ int) (Page[int], error) {
		return Page[int]{}, nil
	}
	c := NewTimestampCursor(fetch, strconv.Itoa, 5, Position{Timestamp: "0"})

	for i := 0; i < 50; i++ {
		records, state, err := c.Advance(context.Background())
		require.NoError(t, err)
		assert.Empty(t, records)
		assert.Equal(t, More, state)
	}
	assert.Equal(t, 50, c.Requests())
	assert.Equal(t, "0", c.Position().Timestamp)
}

func TestTimestampCursorStopsAtSentinel(t *testing.T) {
	const k = 4
	calls := 0
	fetch := func(_ context.Context, _ Position, _ int) (Page[int], error) {
		calls++
		return Page[int]{Records: []int{calls}, EndOfStream: calls == k}, nil
	}
	c := NewTimestampCursor(fetch, strconv.Itoa, 1, Position{Timestamp: "0"})

	for {
		_, state, err := c.Advance(context.Background())
		require.NoError(t, err)
		if state == Exhausted {
			break
		}
	}

	assert.Equal(t, k, calls)
	_, _, err := c.Advance(context.Background())
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, k, calls)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "more", More.String())
	assert.Equal(t, "exhausted", Exhausted.String())
}
