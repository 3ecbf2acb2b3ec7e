package scraper

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fbscraper/internal/downloader"
	"fbscraper/pkg/auth"
	"fbscraper/pkg/classifier"
	"fbscraper/pkg/config"
	"fbscraper/pkg/crawler"
	"fbscraper/pkg/errors"
	"fbscraper/pkg/logger"
	"fbscraper/pkg/messenger"
	"fbscraper/pkg/models"
	"fbscraper/pkg/ratelimit"
	"fbscraper/pkg/report"
	"fbscraper/pkg/storage"
	"fbscraper/pkg/ui"
)

// Scraper orchestrates directory crawls, dumps and parses
type Scraper struct {
	client         MessengerClient
	storageManager *storage.Manager
	pacer          *ratelimit.Interval
	abort          *downloader.Abort
	tracker        *ui.DownloadTracker
	config         *config.Config
	logger         logger.Logger
	runID          string
	location       *time.Location

	dirMu sync.Mutex
	dir   *crawler.Directory
}

// New creates a Scraper authenticated with creds
func New(cfg *config.Config, creds *auth.RequestData) (*Scraper, error) {
	if creds == nil {
		return nil, errors.New(errors.ErrorTypeCredentials, "no request data")
	}

	runID := uuid.NewString()
	log := logger.GetLogger().WithField("run_id", runID)

	client := messenger.NewClient(messenger.Options{
		BaseURL:         cfg.Messenger.BaseURL,
		UserAgent:       cfg.Messenger.UserAgent,
		RequestTimeout:  cfg.Messenger.RequestTimeout,
		DownloadTimeout: cfg.Download.Timeout,
		Headers:         creds.Headers(),
		Form:            creds.Form,
		Logger:          log,
	})

	return newScraper(cfg, client, runID, log)
}

// NewWithClient creates a Scraper over an existing client
func NewWithClient(cfg *config.Config, client MessengerClient) (*Scraper, error) {
	runID := uuid.NewString()
	return newScraper(cfg, client, runID, logger.GetLogger().WithField("run_id", runID))
}

func newScraper(cfg *config.Config, client MessengerClient, runID string, log logger.Logger) (*Scraper, error) {
	storageManager, err := storage.NewManager(cfg.Output.BaseDirectory)
	if err != nil {
		log.WithError(err).Error("Failed to create storage manager")
		return nil, err
	}

	log.InfoWithFields("Scraper ready", map[string]interface{}{
		"output_dir": cfg.Output.BaseDirectory,
		"chunk_size": cfg.Crawl.ChunkSize,
		"delay":      cfg.Crawl.RequestDelay.String(),
	})

	return &Scraper{
		client:         client,
		storageManager: storageManager,
		pacer:          ratelimit.NewInterval(cfg.Crawl.RequestDelay),
		abort:          &downloader.Abort{},
		tracker:        ui.NewDownloadTracker(),
		config:         cfg,
		logger:         log,
		runID:          runID,
		location:       time.Local,
	}, nil
}

// RunID returns the id tagging this run's logs
func (s *Scraper) RunID() string {
	return s.runID
}

// Abort returns the flag that stops in-flight downloads
func (s *Scraper) Abort() *downloader.Abort {
	return s.abort
}

// Tracker returns the download statistics of the run
func (s *Scraper) Tracker() *ui.DownloadTracker {
	return s.tracker
}

// SetLocation sets the zone used to render timestamps
func (s *Scraper) SetLocation(loc *time.Location) {
	s.location = loc
}

// Directory crawls the conversation directory on first use
func (s *Scraper) Directory(ctx context.Context) (*crawler.Directory, error) {
	s.dirMu.Lock()
	defer s.dirMu.Unlock()

	if s.dir != nil {
		return s.dir, nil
	}
	dir, err := crawler.NewDirectoryCrawler(s.client, s.config.Crawl.ThreadPageSize, s.logger).Crawl(ctx)
	if err != nil {
		return nil, err
	}
	s.dir = dir
	return dir, nil
}

// ListConversations returns one metadata line per known conversation
func (s *Scraper) ListConversations(ctx context.Context) (string, error) {
	dir, err := s.Directory(ctx)
	if err != nil {
		return "", err
	}
	ui.PrintStep("Printing conversations metadata (total: %d)", dir.Len())
	return report.FormatMetadata(dir.Conversations(), dir, s.location), nil
}

// targets returns ids, or every conversation of dir when ids is empty
func targets(dir *crawler.Directory, ids []string) []string {
	if len(ids) > 0 {
		return ids
	}
	convs := dir.Conversations()
	out := make([]string, 0, len(convs))
	for _, c := range convs {
		out = append(out, c.ID)
	}
	return out
}

func (s *Scraper) history(dir *crawler.Directory) *crawler.HistoryCrawler {
	return crawler.NewHistoryCrawler(s.client, dir, crawler.HistoryOptions{
		ChunkSize:   s.config.Crawl.ChunkSize,
		StartOffset: s.config.Crawl.Offset,
		Pacer:       s.pacer,
		Progress: func(id string, from, to int) {
			ui.PrintDetail("Retrieving messages %d-%d", from, to)
		},
	}, s.logger)
}

// Dump writes the full history of each conversation in ids (all when empty)
// and returns the written file paths
func (s *Scraper) Dump(ctx context.Context, ids []string) ([]string, error) {
	dir, err := s.Directory(ctx)
	if err != nil {
		return nil, err
	}

	ids = targets(dir, ids)
	if len(ids) == dir.Len() {
		ui.PrintStep("Dumping JSON from all conversations (total: %d)", len(ids))
	} else {
		ui.PrintStep("Dumping JSON from %d conversations", len(ids))
	}

	hist := s.history(dir)
	var written []string
	for _, id := range ids {
		conv, ok := dir.Conversation(id)
		if !ok {
			return written, errors.UnknownConversation(id)
		}
		ui.PrintStep("Dumping JSON from conversation with ID: '%s' and name: '%s'", id, storage.ASCIIName(conv.Name))

		messages, err := hist.Crawl(ctx, id)
		if err != nil {
			return written, fmt.Errorf("dump %s: %w", id, err)
		}

		folder, err := s.storageManager.PrepareConversation(conv)
		if err != nil {
			return written, err
		}
		paths, err := s.storageManager.WriteDump(folder, messages, s.config.Output.DumpFormat)
		if err != nil {
			return written, err
		}
		written = append(written, paths...)

		s.logger.InfoWithFields("Conversation dumped", map[string]interface{}{
			"conversation_id": id,
			"messages":        len(messages),
			"files":           len(paths),
		})
	}
	return written, nil
}

// ParseOptions selects what Parse reads and produces
type ParseOptions struct {
	// Inputs are dump files; when empty the history of IDs is crawled live
	Inputs []string
	// IDs restricts a live parse; empty means every conversation
	IDs        []string
	Categories []classifier.Category
	Mode       classifier.Mode
	FailFast   bool
	// Verbose lists every saved file
	Verbose bool
}

// ConversationResult is the outcome of parsing one conversation
type ConversationResult struct {
	Conversation models.Conversation
	Counts       classifier.Counts
	// Batch is nil in report mode
	Batch *downloader.Batch
}

type source struct {
	id       string
	messages []models.Message
}

// Parse classifies each source conversation into reports and, in download
// mode, fetches its attachments. A malformed dump file aborts the run before
// anything is written for it.
func (s *Scraper) Parse(ctx context.Context, opts ParseOptions) ([]ConversationResult, error) {
	if len(opts.Categories) == 0 {
		opts.Categories = classifier.AllCategories
	}

	dir, err := s.Directory(ctx)
	if err != nil {
		return nil, err
	}

	cls := classifier.New(opts.Categories, s.logger)
	ui.PrintStep("Parsing JSON to retrieve %s", joinNames(cls.Categories()))

	next, total := s.sources(dir, opts)
	if len(opts.Inputs) > 0 {
		ui.PrintStep("Parsing JSON for %d files", total)
	} else {
		ui.PrintStep("Parsing %d conversations", total)
	}

	var results []ConversationResult
	for {
		src, ok, err := next(ctx)
		if err != nil {
			return results, err
		}
		if !ok {
			break
		}

		conv, known := dir.Conversation(src.id)
		if !known {
			return results, errors.UnknownConversation(src.id)
		}

		res, err := s.parseConversation(ctx, cls, dir, conv, src.messages, opts)
		results = append(results, res)
		if err != nil {
			return results, err
		}
	}

	ui.PrintDetail("JSON parsed succesfully, saving results inside folder '%s'", s.storageManager.GetOutputDir())
	return results, nil
}

// sources returns an iterator over the conversations to parse and their count
func (s *Scraper) sources(dir *crawler.Directory, opts ParseOptions) (func(context.Context) (source, bool, error), int) {
	if len(opts.Inputs) > 0 {
		i := 0
		return func(ctx context.Context) (source, bool, error) {
			if i >= len(opts.Inputs) {
				return source{}, false, nil
			}
			path := opts.Inputs[i]
			i++
			ui.PrintStep("Loading JSON from file '%s'", path)
			id, messages, err := storage.LoadDump(path)
			if err != nil {
				s.logger.WithError(err).WithField("path", path).Error("Failed to load dump")
				return source{}, false, err
			}
			return source{id: id, messages: messages}, true, nil
		}, len(opts.Inputs)
	}

	ids := targets(dir, opts.IDs)
	hist := s.history(dir)
	i := 0
	return func(ctx context.Context) (source, bool, error) {
		if i >= len(ids) {
			return source{}, false, nil
		}
		id := ids[i]
		i++
		ui.PrintStep("Retrieving conversation with ID: '%s'", id)
		messages, err := hist.Crawl(ctx, id)
		if err != nil {
			return source{}, false, err
		}
		return source{id: id, messages: messages}, true, nil
	}, len(ids)
}

func (s *Scraper) parseConversation(ctx context.Context, cls *classifier.Classifier, dir *crawler.Directory, conv models.Conversation, messages []models.Message, opts ParseOptions) (ConversationResult, error) {
	result := ConversationResult{Conversation: conv}
	log := s.logger.WithField("conversation_id", conv.ID)

	var subdirs []string
	if opts.Mode == classifier.ModeDownload {
		for _, c := range classifier.AllCategories {
			if c.Downloadable() {
				subdirs = append(subdirs, string(c))
			}
		}
	}
	folder, err := s.storageManager.PrepareConversation(conv, subdirs...)
	if err != nil {
		return result, err
	}

	pass := &classifier.Pass{
		Conversation: conv,
		Names:        dir,
		OutputDir:    folder,
		Mode:         opts.Mode,
		Location:     s.location,
	}

	var pool *downloader.Pool
	if opts.Mode == classifier.ModeDownload {
		pool = s.newPool(opts.FailFast, log)
		pool.Start(ctx)
		pass.Submitter = pool
	}

	res, classifyErr := cls.Classify(ctx, pass, messages)
	result.Counts = res.Counts
	ui.PrintLine(report.Summary(res.Counts))

	for _, block := range report.Assemble(conv, dir, res, s.location) {
		if err := s.storageManager.WriteReport(folder, string(block.Category), block.Content); err != nil {
			log.WithError(err).Error("Failed to write report")
			if classifyErr == nil {
				classifyErr = err
			}
		}
	}

	if pool != nil {
		batch, waitErr := s.waitDownloads(pool, opts.Verbose)
		result.Batch = batch
		if classifyErr == nil {
			classifyErr = waitErr
		}
	}

	if classifyErr != nil {
		log.WithError(classifyErr).Error("Conversation parse stopped")
	}
	return result, classifyErr
}

func (s *Scraper) newPool(failFast bool, log logger.Logger) *downloader.Pool {
	opts := downloader.Options{
		Workers:   s.config.Download.Workers,
		FailFast:  failFast || s.config.Download.FailFast,
		ChunkSize: s.config.Download.ChunkSize,
		Abort:     s.abort,
		Logger:    log,
		OnOutcome: func(o downloader.Outcome) {
			s.tracker.Record(o.Status == downloader.StatusSaved, o.Size)
		},
	}
	if n := s.config.Download.RequestsPerMinute; n > 0 {
		opts.Limiter = ratelimit.PerMinute(n)
	}
	return downloader.NewPool(s.client, s.storageManager, opts)
}

// waitDownloads shows the spinner until the pool drains, then reports each file
func (s *Scraper) waitDownloads(pool *downloader.Pool, verbose bool) (*downloader.Batch, error) {
	ui.PrintDetail("Waiting for downloading threads to finished")

	spinner := ui.NewSpinner(s.config.UI.SpinnerInterval, pool.Pending)
	spinner.Start()
	batch, err := pool.Wait()
	spinner.Stop()

	if batch != nil {
		for _, o := range batch.Outcomes {
			switch {
			case o.Status == downloader.StatusFailed:
				ui.PrintDetail("File '%s' generated an exception: %v", o.Request.URL, o.Err)
			case verbose:
				ui.PrintDetail("File '%s' saved", o.Request.URL)
			}
		}
	}
	return batch, err
}

func joinNames(cs []classifier.Category) string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
