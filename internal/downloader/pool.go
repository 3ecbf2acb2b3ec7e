package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	fberrors "fbscraper/pkg/errors"
	"fbscraper/pkg/logger"
	"fbscraper/pkg/ratelimit"
)

// ErrAborted is returned by Submit once the pool has been aborted, and is the
// error recorded for requests that never started.
var ErrAborted = errors.New("download aborted")

// ErrNotStarted is returned by Submit and Wait before Start
var ErrNotStarted = errors.New("download pool not started")

// Request is a single attachment transfer
type Request struct {
	URL            string
	Destination    string
	Category       string
	ConversationID string
}

// Status is the final state of a request
type Status int

const (
	StatusSaved Status = iota
	StatusFailed
)

func (s Status) String() string {
	if s == StatusSaved {
		return "saved"
	}
	return "failed"
}

// Outcome represents the result of a request
type Outcome struct {
	Request  Request
	Status   Status
	Err      error
	Duration time.Duration
	Size     int64
}

// Batch is the outcome table of a pool, in completion order
type Batch struct {
	Outcomes []Outcome
	Saved    int
	Failed   int
}

// Failures returns the failed outcomes
func (b *Batch) Failures() []Outcome {
	var out []Outcome
	for _, o := range b.Outcomes {
		if o.Status == StatusFailed {
			out = append(out, o)
		}
	}
	return out
}

// Fetcher opens the body of a remote file
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// FileCreator opens a destination for writing. If the returned writer also
// has a Discard method it is called instead of Close when a transfer fails.
type FileCreator interface {
	Create(path string) (io.WriteCloser, error)
}

type discarder interface {
	Discard() error
}

// Abort is a process-wide stop flag, set from a signal handler and checked
// between chunks. The zero value is ready to use; a nil *Abort is never set.
type Abort struct {
	set atomic.Bool
}

// Trigger sets the flag
func (a *Abort) Trigger() {
	if a != nil {
		a.set.Store(true)
	}
}

// Triggered reports whether the flag is set
func (a *Abort) Triggered() bool {
	return a != nil && a.set.Load()
}

// Options configures a Pool
type Options struct {
	// Workers is the number of concurrent transfers
	Workers int
	// FailFast aborts the whole batch on the first failure
	FailFast bool
	// ChunkSize is the copy buffer size in bytes
	ChunkSize int
	// Limiter, if set, is waited on before every transfer
	Limiter ratelimit.Limiter
	Abort   *Abort
	Logger  logger.Logger
	// OnOutcome is called from the collector goroutine in completion order
	OnOutcome func(Outcome)
}

const defaultChunkSize = 1024

// Pool runs a bounded number of transfers. Requests may be submitted while
// earlier ones are in flight.
type Pool struct {
	fetcher Fetcher
	creator FileCreator
	opts    Options

	jobs    chan Request
	results chan Outcome
	group   *errgroup.Group
	parent  context.Context
	ctx     context.Context
	cancel  context.CancelCauseFunc

	submitMu sync.RWMutex
	closed   bool
	started  bool

	pending       atomic.Int64
	collectorDone chan struct{}
	outcomes      []Outcome

	waitOnce sync.Once
	batch    *Batch
	waitErr  error
}

// NewPool creates a pool transferring from fetcher into creator
func NewPool(fetcher Fetcher, creator FileCreator, opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}

	return &Pool{
		fetcher:       fetcher,
		creator:       creator,
		opts:          opts,
		jobs:          make(chan Request, opts.Workers*2),
		results:       make(chan Outcome, opts.Workers),
		collectorDone: make(chan struct{}),
	}
}

// Start launches the workers and the collector
func (p *Pool) Start(ctx context.Context) {
	p.submitMu.Lock()
	defer p.submitMu.Unlock()
	if p.started {
		return
	}
	p.started = true

	p.parent, p.cancel = context.WithCancelCause(ctx)
	p.group, p.ctx = errgroup.WithContext(p.parent)

	logger.LogComponentStart(p.opts.Logger, "download_pool", map[string]interface{}{
		"workers":   p.opts.Workers,
		"fail_fast": p.opts.FailFast,
	})

	go p.collect()
	for i := 0; i < p.opts.Workers; i++ {
		id := i
		p.group.Go(func() error { return p.worker(id) })
	}
}

// Submit queues a request. It blocks while the queue is full and returns
// ErrAborted once the batch has been aborted.
func (p *Pool) Submit(req Request) error {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()

	if !p.started || p.closed {
		return ErrNotStarted
	}
	if p.aborted() {
		return ErrAborted
	}

	p.pending.Add(1)
	select {
	case p.jobs <- req:
		p.opts.Logger.DebugWithFields("Request queued", map[string]interface{}{
			"url":         req.URL,
			"destination": req.Destination,
		})
		return nil
	case <-p.ctx.Done():
		p.pending.Add(-1)
		return ErrAborted
	}
}

// Pending returns the number of submitted requests without an outcome yet
func (p *Pool) Pending() int {
	return int(p.pending.Load())
}

// Wait closes the queue, waits for every submitted request to resolve and
// returns the outcome table. In fail-fast mode the error is the first failure;
// it is also non-nil when the batch was aborted or its context cancelled.
// Later calls return the same table and error.
func (p *Pool) Wait() (*Batch, error) {
	p.submitMu.Lock()
	if !p.started {
		p.submitMu.Unlock()
		return nil, ErrNotStarted
	}
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.submitMu.Unlock()

	p.waitOnce.Do(p.finish)
	return p.batch, p.waitErr
}

func (p *Pool) finish() {
	err := p.group.Wait()
	close(p.results)
	<-p.collectorDone

	// the cause holds the first failure even when several workers failed
	if cause := context.Cause(p.parent); cause != nil {
		err = cause
	} else if err == nil && p.opts.Abort.Triggered() {
		err = ErrAborted
	}
	p.cancel(nil)

	batch := &Batch{Outcomes: p.outcomes}
	for _, o := range p.outcomes {
		if o.Status == StatusSaved {
			batch.Saved++
		} else {
			batch.Failed++
		}
	}

	reason := "completed"
	if err != nil {
		reason = err.Error()
	}
	logger.LogComponentStop(p.opts.Logger, "download_pool", reason)
	p.batch, p.waitErr = batch, err
}

func (p *Pool) aborted() bool {
	return p.opts.Abort.Triggered() || p.ctx.Err() != nil
}

// collect is the only writer of the outcome table
func (p *Pool) collect() {
	defer close(p.collectorDone)
	for o := range p.results {
		p.outcomes = append(p.outcomes, o)
		p.pending.Add(-1)
		if p.opts.OnOutcome != nil {
			p.opts.OnOutcome(o)
		}
	}
}

// worker drains the queue until it is closed. After an abort it keeps
// draining so that every queued request resolves and Submit never blocks.
func (p *Pool) worker(id int) error {
	log := p.opts.Logger.WithField("worker_id", id)
	log.Debug("Worker started")

	var failure error
	for req := range p.jobs {
		if p.aborted() {
			p.results <- Outcome{Request: req, Status: StatusFailed, Err: ErrAborted}
			continue
		}

		o := p.process(req)
		logger.LogDownload(log, req.ConversationID, req.Category, req.URL, o.Size, o.Err)
		p.results <- o

		if o.Status == StatusFailed && p.opts.FailFast && failure == nil && !errors.Is(o.Err, ErrAborted) {
			failure = o.Err
			p.cancel(o.Err)
		}
	}

	log.Debug("Worker stopping - queue closed")
	return failure
}

func (p *Pool) process(req Request) Outcome {
	start := time.Now()
	size, err := p.transfer(req)
	o := Outcome{Request: req, Status: StatusSaved, Size: size, Duration: time.Since(start)}
	if err != nil {
		o.Status = StatusFailed
		o.Err = err
	}
	return o
}

func (p *Pool) transfer(req Request) (int64, error) {
	ctx := p.ctx
	if p.opts.Limiter != nil {
		if err := p.opts.Limiter.Wait(ctx); err != nil {
			return 0, ErrAborted
		}
	}

	body, err := p.fetcher.Fetch(ctx, req.URL)
	if err != nil {
		if p.aborted() {
			return 0, ErrAborted
		}
		return 0, err
	}
	defer body.Close()

	dst, err := p.creator.Create(req.Destination)
	if err != nil {
		return 0, fberrors.Download(req.URL, fmt.Errorf("create %s: %w", req.Destination, err))
	}

	n, err := p.copyChunks(dst, body)
	if err != nil {
		if d, ok := dst.(discarder); ok {
			d.Discard()
		} else {
			dst.Close()
		}
		if errors.Is(err, ErrAborted) {
			return n, ErrAborted
		}
		return n, fberrors.Download(req.URL, err)
	}
	if err := dst.Close(); err != nil {
		return n, fberrors.Download(req.URL, fmt.Errorf("close %s: %w", req.Destination, err))
	}
	return n, nil
}

// copyChunks copies src to dst one chunk at a time, stopping between chunks
// when the pool is aborted
func (p *Pool) copyChunks(dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, p.opts.ChunkSize)
	var written int64
	for {
		if p.aborted() {
			return written, ErrAborted
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			written += int64(w)
			if werr != nil {
				return written, werr
			}
			if w != n {
				return written, io.ErrShortWrite
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}
