package scrapers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/raushankrgupta/product-image-scraper/metrics"
	"github.com/raushankrgupta/product-image-scraper/models"
)

const (
	// NavigationTimeout bounds a single page navigation
	NavigationTimeout = 20 * time.Second
	// SettleTimeout caps the wait for client-side rendering after navigation
	SettleTimeout = 3 * time.Second
)

// ErrBrowserLaunch is returned when the browser session cannot be started.
var ErrBrowserLaunch = errors.New("failed to launch browser")

// ProgressFunc observes per-URL progress. It is advisory only.
type ProgressFunc func(models.Progress)

// Extractor resolves one product image link per page URL using a single browser session.
type Extractor struct {
	launcher    Launcher
	matcher     ImageMatcher
	readyScript string
	logger      *zap.Logger
	progress    ProgressFunc
	metrics     *metrics.Metrics
	concurrency int
}

// Option configures an Extractor
type Option func(*Extractor)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithProgress registers a progress observer
func WithProgress(fn ProgressFunc) Option {
	return func(e *Extractor) {
		e.progress = fn
	}
}

// WithMetrics records page and batch metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Extractor) {
		e.metrics = m
	}
}

// WithConcurrency sets how many tabs work through the URL list at once.
// The default of 1 processes URLs strictly one after another in input order.
func WithConcurrency(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// NewExtractor creates an Extractor
func NewExtractor(launcher Launcher, matcher ImageMatcher, opts ...Option) *Extractor {
	e := &Extractor{
		launcher:    launcher,
		matcher:     matcher,
		logger:      zap.NewNop(),
		concurrency: 1,
	}
	if probe, ok := matcher.(ReadinessProbe); ok {
		e.readyScript = probe.ReadyScript()
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract visits every URL and returns one Result per URL, in input order.
// Per-URL failures are recorded in the Result; the only error returned is a
// failure to start the browser session, in which case no results are produced.
func (e *Extractor) Extract(ctx context.Context, urls []string) ([]models.Result, error) {
	e.metrics.BatchStarted(len(urls))

	browser, err := e.launcher.Launch(ctx)
	if err != nil {
		e.metrics.BatchFinished("launch_failed")
		return nil, fmt.Errorf("%w: %w", ErrBrowserLaunch, err)
	}
	defer func() {
		if cerr := browser.Close(); cerr != nil {
			e.logger.Warn("Failed to close browser", zap.Error(cerr))
		}
	}()

	workers := e.concurrency
	if workers > len(urls) {
		workers = len(urls)
	}

	pages := make([]Page, 0, workers)
	defer func() {
		for _, p := range pages {
			if cerr := p.Close(); cerr != nil {
				e.logger.Debug("Failed to close page", zap.Error(cerr))
			}
		}
	}()
	for i := 0; i < workers; i++ {
		page, err := browser.NewPage(ctx)
		if err != nil {
			e.metrics.BatchFinished("launch_failed")
			return nil, fmt.Errorf("%w: open page: %w", ErrBrowserLaunch, err)
		}
		pages = append(pages, page)
	}

	e.logger.Info("Starting image extraction",
		zap.Int("urls", len(urls)),
		zap.Int("workers", workers),
	)

	results := make([]models.Result, len(urls))
	tasks := make(chan int)
	var (
		wg       sync.WaitGroup
		notifyMu sync.Mutex
	)

	for _, page := range pages {
		wg.Add(1)
		go func(page Page) {
			defer wg.Done()
			for i := range tasks {
				res, perr := e.processURL(ctx, page, urls[i])
				results[i] = res

				notifyMu.Lock()
				e.notify(models.Progress{
					Index:  i,
					Total:  len(urls),
					URL:    urls[i],
					Result: res,
					Err:    perr,
				})
				notifyMu.Unlock()
			}
		}(page)
	}

	for i := range urls {
		tasks <- i
	}
	close(tasks)
	wg.Wait()

	e.metrics.BatchFinished("completed")
	e.logger.Info("Image extraction finished", zap.Int("urls", len(urls)))
	return results, nil
}

// processURL never fails the batch: errors and panics become the record's image field.
func (e *Extractor) processURL(ctx context.Context, page Page, pageURL string) (res models.Result, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing page: %v", r)
			res = models.ErrorResult(pageURL, err)
		}

		outcome := metrics.OutcomeFound
		switch {
		case err != nil:
			outcome = metrics.OutcomeError
		case res.ImageURL == models.ImageNotFound:
			outcome = metrics.OutcomeNotFound
		}
		e.metrics.ObservePage(outcome, time.Since(start))
	}()

	html, err := page.Render(ctx, pageURL, e.readyScript)
	if err != nil {
		return models.ErrorResult(pageURL, err), err
	}

	image, found, err := ResolveImage(html, e.matcher)
	if err != nil {
		return models.ErrorResult(pageURL, err), err
	}
	if !found {
		return models.Result{ProductPageURL: pageURL, ImageURL: models.ImageNotFound}, nil
	}
	return models.Result{ProductPageURL: pageURL, ImageURL: image}, nil
}

func (e *Extractor) notify(p models.Progress) {
	fields := []zap.Field{
		zap.Int("index", p.Index),
		zap.Int("total", p.Total),
		zap.String("url", p.URL),
	}
	if p.Err != nil {
		e.logger.Warn(p.Message(), append(fields, zap.Error(p.Err))...)
	} else {
		e.logger.Info(p.Message(), append(fields, zap.String("image_url", p.Result.ImageURL))...)
	}

	if e.progress != nil {
		e.progress(p)
	}
}
