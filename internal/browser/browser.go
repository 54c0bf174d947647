// Package browser implements the Browser Context Factory (C5): a factory
// that produces a fresh isolated browsing session per source-adapter
// invocation. No teacher package ever drives a browser, so this is built in
// the shape of the teacher's other thin-HTTP-client-over-an-external-engine
// adapters (internal/adapter/textextractor/tika, internal/adapter/vector/qdrant):
// a narrow interface with a Stub (in-memory, used by dry runs and unit
// tests) and a Remote implementation driving an external browser-automation
// sidecar over plain net/http.
package browser

import (
	"context"
	"time"

	"github.com/trendloom/harvester/internal/domain"
)

// Page is a scoped, isolated browsing session handle. Implementations must
// make Close idempotent and safe to call from a deferred cleanup on every
// exit path, including cancellation and panics.
type Page interface {
	Goto(ctx context.Context, url string, timeout time.Duration) error
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	QueryAll(ctx context.Context, selector string) ([]string, error)
	Click(ctx context.Context, selector string) error
	ScrollToBottom(ctx context.Context) error
	Screenshot(ctx context.Context, path string) error
	ContentHTML(ctx context.Context) (string, error)
	Close() error
}

// Options configures one Page acquisition.
type Options struct {
	Proxy     *domain.ProxyEntry
	Locale    string
	Timezone  string
	UserAgent string
	Viewport  Viewport
}

// Viewport is the browser window's pixel size.
type Viewport struct {
	Width  int
	Height int
}

// DefaultOptions fills the fields the caller leaves unset with plausible
// desktop-browser values: locale en-US, timezone UTC, a Chrome user-agent
// string and a 1366x768 viewport. It does not suppress the automation flag,
// set further HTTP headers, or randomize timings.
func DefaultOptions(o Options) Options {
	if o.Locale == "" {
		o.Locale = "en-US"
	}
	if o.Timezone == "" {
		o.Timezone = "UTC"
	}
	if o.UserAgent == "" {
		o.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	}
	if o.Viewport == (Viewport{}) {
		o.Viewport = Viewport{Width: 1366, Height: 768}
	}
	return o
}

// Factory produces scoped Page handles.
type Factory interface {
	NewPage(ctx context.Context, opts Options) (Page, error)
}

// WithPage acquires a page from f, invokes fn, and guarantees Close runs on
// every exit path including a panic in fn (scoped acquisition, spec.md §5).
func WithPage(ctx context.Context, f Factory, opts Options, fn func(Page) error) (err error) {
	page, err := f.NewPage(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := page.Close()
		if err == nil {
			err = closeErr
		}
	}()
	return fn(page)
}
