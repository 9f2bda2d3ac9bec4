package scrapers

import (
	"context"

	"github.com/PuerkitoBio/goquery"
)

// Launcher starts the headless browser used for one extraction batch
type Launcher interface {
	// Launch starts the browser. An error here means nothing can be scraped.
	Launch(ctx context.Context) (Browser, error)
}

// Browser is a running browser session
type Browser interface {
	// NewPage opens a tab that can be reused across many URLs
	NewPage(ctx context.Context) (Page, error)
	// Close shuts the browser down
	Close() error
}

// Page is a single browser tab
type Page interface {
	// Render navigates to url, waits until readyScript evaluates to true (or the
	// settle period elapses) and returns the rendered document HTML.
	// An empty readyScript means a fixed settle period.
	Render(ctx context.Context, url string, readyScript string) (string, error)
	Close() error
}

// ImageMatcher decides whether an img element is the product image
type ImageMatcher interface {
	// MatchImage returns the normalized image URL when img is accepted
	MatchImage(img *goquery.Selection) (string, bool)
}

// ReadinessProbe is implemented by matchers that can tell when a page is ready.
// ReadyScript returns a JavaScript expression evaluating to a boolean.
type ReadinessProbe interface {
	ReadyScript() string
}
