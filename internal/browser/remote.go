package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteFactory drives a remote browser-automation sidecar (e.g. a chromedp
// or Playwright server) over plain net/http, matching the teacher's
// thin-REST-client-over-an-external-engine idiom (tika.Client, qdrant's
// client).
type RemoteFactory struct {
	baseURL    string
	httpClient *http.Client
}

// NewRemoteFactory constructs a RemoteFactory targeting baseURL.
func NewRemoteFactory(baseURL string) *RemoteFactory {
	return &RemoteFactory{baseURL: baseURL, httpClient: &http.Client{Timeout: 30 * time.Second}}
}

// NewPage requests a new session from the sidecar.
func (f *RemoteFactory) NewPage(ctx context.Context, opts Options) (Page, error) {
	opts = DefaultOptions(opts)
	body, err := json.Marshal(map[string]any{
		"locale":     opts.Locale,
		"timezone":   opts.Timezone,
		"user_agent": opts.UserAgent,
		"viewport":   map[string]int{"width": opts.Viewport.Width, "height": opts.Viewport.Height},
		"proxy":      proxyAddress(opts),
	})
	if err != nil {
		return nil, fmt.Errorf("op=browser.remote.new_page.marshal: %w", err)
	}

	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := f.do(ctx, http.MethodPost, "/sessions", body, &out); err != nil {
		return nil, fmt.Errorf("op=browser.remote.new_page: %w", err)
	}
	return &remotePage{factory: f, sessionID: out.SessionID}, nil
}

func proxyAddress(opts Options) string {
	if opts.Proxy == nil {
		return ""
	}
	return opts.Proxy.Address
}

func (f *RemoteFactory) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, f.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sidecar returned %d: %s", resp.StatusCode, string(respBody))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type remotePage struct {
	factory   *RemoteFactory
	sessionID string
}

func (p *remotePage) Goto(ctx context.Context, url string, timeout time.Duration) error {
	return p.factory.do(ctx, http.MethodPost, p.path("/goto"), mustJSON(map[string]any{"url": url, "timeout_ms": timeout.Milliseconds()}), nil)
}

func (p *remotePage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	return p.factory.do(ctx, http.MethodPost, p.path("/wait_for"), mustJSON(map[string]any{"selector": selector, "timeout_ms": timeout.Milliseconds()}), nil)
}

func (p *remotePage) QueryAll(ctx context.Context, selector string) ([]string, error) {
	var out struct {
		Matches []string `json:"matches"`
	}
	if err := p.factory.do(ctx, http.MethodPost, p.path("/query_all"), mustJSON(map[string]any{"selector": selector}), &out); err != nil {
		return nil, err
	}
	return out.Matches, nil
}

func (p *remotePage) Click(ctx context.Context, selector string) error {
	return p.factory.do(ctx, http.MethodPost, p.path("/click"), mustJSON(map[string]any{"selector": selector}), nil)
}

func (p *remotePage) ScrollToBottom(ctx context.Context) error {
	return p.factory.do(ctx, http.MethodPost, p.path("/scroll_to_bottom"), nil, nil)
}

func (p *remotePage) Screenshot(ctx context.Context, path string) error {
	return p.factory.do(ctx, http.MethodPost, p.path("/screenshot"), mustJSON(map[string]any{"path": path}), nil)
}

func (p *remotePage) ContentHTML(ctx context.Context) (string, error) {
	var out struct {
		HTML string `json:"html"`
	}
	if err := p.factory.do(ctx, http.MethodGet, p.path("/content"), nil, &out); err != nil {
		return "", err
	}
	return out.HTML, nil
}

func (p *remotePage) Close() error {
	return p.factory.do(context.Background(), http.MethodDelete, p.path(""), nil, nil)
}

func (p *remotePage) path(suffix string) string {
	return "/sessions/" + p.sessionID + suffix
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
