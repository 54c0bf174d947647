package browser

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// StubFactory produces in-memory Page handles seeded with canned HTML per
// URL, used by dry runs (`run --once` without a real browser engine) and
// adapter unit tests.
type StubFactory struct {
	mu      sync.Mutex
	Pages   map[string]string // url -> content_html()
	Visited []string
}

// NewStubFactory constructs a StubFactory seeded with pages.
func NewStubFactory(pages map[string]string) *StubFactory {
	if pages == nil {
		pages = map[string]string{}
	}
	return &StubFactory{Pages: pages}
}

// NewPage returns a new stubPage bound to this factory's page set.
func (f *StubFactory) NewPage(_ context.Context, _ Options) (Page, error) {
	return &stubPage{factory: f}, nil
}

type stubPage struct {
	factory *StubFactory
	current string
	closed  bool
}

func (p *stubPage) Goto(_ context.Context, url string, _ time.Duration) error {
	p.factory.mu.Lock()
	p.factory.Visited = append(p.factory.Visited, url)
	p.factory.mu.Unlock()
	p.current = url
	return nil
}

func (p *stubPage) WaitFor(_ context.Context, _ string, _ time.Duration) error { return nil }

func (p *stubPage) QueryAll(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

func (p *stubPage) Click(_ context.Context, _ string) error { return nil }

func (p *stubPage) ScrollToBottom(_ context.Context) error { return nil }

func (p *stubPage) Screenshot(_ context.Context, _ string) error { return nil }

func (p *stubPage) ContentHTML(_ context.Context) (string, error) {
	p.factory.mu.Lock()
	defer p.factory.mu.Unlock()
	html, ok := p.factory.Pages[p.current]
	if !ok {
		return "", fmt.Errorf("op=browser.stub.content_html: no stubbed page for %q", p.current)
	}
	return html, nil
}

func (p *stubPage) Close() error {
	p.closed = true
	return nil
}
