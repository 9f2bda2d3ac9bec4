package base

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/raushankrgupta/product-image-scraper/scrapers"
)

// retryDelay spaces readiness polls across a client-side navigation
const retryDelay = 100 * time.Millisecond

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Headers sent with every page request
var defaultHeaders = map[string]interface{}{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.5",
	"Upgrade-Insecure-Requests": "1",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Sec-Fetch-User":            "?1",
}

// ChromeLauncher starts headless Chrome through chromedp
type ChromeLauncher struct {
	ExecPath  string // empty uses chromedp's lookup
	UserAgent string
	Logger    *zap.Logger

	NavigationTimeout time.Duration
	SettleTimeout     time.Duration
}

// NewChromeLauncher creates a launcher for the given Chrome binary
func NewChromeLauncher(execPath string, logger *zap.Logger) *ChromeLauncher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromeLauncher{
		ExecPath:          execPath,
		UserAgent:         defaultUserAgent,
		Logger:            logger,
		NavigationTimeout: scrapers.NavigationTimeout,
		SettleTimeout:     scrapers.SettleTimeout,
	}
}

// Launch starts the browser and waits until it accepts commands
func (l *ChromeLauncher) Launch(ctx context.Context) (scrapers.Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"), // Use new headless mode
		chromedp.UserAgent(l.UserAgent),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if l.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)

	sugar := l.Logger.Sugar()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Debugf),
	)

	// The browser process only starts on the first Run
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	l.Logger.Info("Browser started", zap.String("exec_path", l.ExecPath))
	return &chromeBrowser{
		ctx:         browserCtx,
		cancelAlloc: cancelAlloc,
		logger:      l.Logger,
		navTimeout:  orDefault(l.NavigationTimeout, scrapers.NavigationTimeout),
		settleFor:   orDefault(l.SettleTimeout, scrapers.SettleTimeout),
	}, nil
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

type chromeBrowser struct {
	ctx         context.Context
	cancelAlloc context.CancelFunc
	logger      *zap.Logger
	navTimeout  time.Duration
	settleFor   time.Duration

	closeOnce sync.Once
	closeErr  error
}

func (b *chromeBrowser) NewPage(ctx context.Context) (scrapers.Page, error) {
	tabCtx, cancel := chromedp.NewContext(b.ctx)

	// tabCtx owns the target; ctx only aborts the setup
	stop := context.AfterFunc(ctx, cancel)
	err := chromedp.Run(tabCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers(defaultHeaders)),
	)
	if !stop() || err != nil {
		cancel()
		if err == nil {
			err = context.Cause(ctx)
		}
		return nil, fmt.Errorf("chromedp header error: %w", err)
	}

	return &chromePage{
		ctx:        tabCtx,
		cancel:     cancel,
		navTimeout: b.navTimeout,
		settleFor:  b.settleFor,
		logger:     b.logger,
	}, nil
}

// Close shuts Chrome down; calls after the first are no-ops
func (b *chromeBrowser) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = chromedp.Cancel(b.ctx)
		b.cancelAlloc()
		b.logger.Info("Browser closed")
	})
	return b.closeErr
}

type chromePage struct {
	ctx        context.Context
	cancel     context.CancelFunc
	navTimeout time.Duration
	settleFor  time.Duration
	logger     *zap.Logger
}

func (p *chromePage) Render(ctx context.Context, url string, readyScript string) (string, error) {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	navCtx, cancelNav := context.WithTimeout(runCtx, p.navTimeout)
	err := chromedp.Run(navCtx, chromedp.Navigate(url))
	cancelNav()
	if err != nil {
		return "", fmt.Errorf("navigate %s: %w", url, err)
	}

	if err := p.settle(runCtx, readyScript); err != nil {
		return "", err
	}

	var htmlContent string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &htmlContent, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read rendered html: %w", err)
	}
	return htmlContent, nil
}

// settle blocks until readyScript holds or the settle timeout elapses. Running
// out of time is not an error: the page is inspected as it is. A client-side
// navigation that tears down the script's context restarts the poll on the
// new document within the same budget.
func (p *chromePage) settle(ctx context.Context, readyScript string) error {
	if readyScript == "" {
		return chromedp.Run(ctx, chromedp.Sleep(p.settleFor))
	}

	deadline := time.Now().Add(p.settleFor)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}

		var ready bool
		err := chromedp.Run(ctx, chromedp.Poll(readyScript, &ready,
			chromedp.WithPollingTimeout(remaining),
		))
		switch {
		case err == nil, errors.Is(err, chromedp.ErrPollingTimeout):
			return nil
		case ctx.Err() == nil && isContextDestroyed(err):
			p.logger.Debug("Page navigated while waiting for render", zap.Error(err))
			if err := chromedp.Run(ctx, chromedp.Sleep(min(retryDelay, remaining))); err != nil {
				return fmt.Errorf("wait for render: %w", err)
			}
		default:
			return fmt.Errorf("wait for render: %w", err)
		}
	}
}

// isContextDestroyed reports whether err comes from the page's JavaScript
// context going away, as happens on a client-side redirect.
func isContextDestroyed(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Execution context was destroyed") ||
		strings.Contains(msg, "Cannot find context with specified id") ||
		strings.Contains(msg, "Inspected target navigated or closed")
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}
