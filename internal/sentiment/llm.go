package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/trendloom/harvester/internal/config"
	"github.com/trendloom/harvester/internal/observability"
)

// LLMDetector is the optional second sentiment detector: an OpenAI-compatible
// chat-completion call, adapted from internal/adapter/ai/real.Client.ChatJSON
// (same cenkalti/backoff retry loop, wrapped in the teacher's ObservableClient
// for circuit breaking and adaptive timeouts instead of re-deriving both).
type LLMDetector struct {
	cfg    config.Config
	hc     *http.Client
	obs    *observability.ObservableClient
	minGap time.Duration
	lastAt time.Time
}

// NewLLMDetector constructs an LLMDetector; it always returns a detector and
// does not check the API key (callers check cfg.LLMSentimentEnabled &&
// cfg.LLMAPIKey != "" first).
func NewLLMDetector(cfg config.Config) *LLMDetector {
	return &LLMDetector{
		cfg: cfg,
		hc:  &http.Client{Timeout: 20 * time.Second},
		obs: observability.NewObservableClient(
			observability.ConnectionTypeLLM, observability.OperationTypeEnrich,
			cfg.LLMBaseURL, 10*time.Second, 2*time.Second, 30*time.Second,
		),
		minGap: cfg.LLMMinInterval,
	}
}

// DetectPolarity asks the configured chat model for a single polarity score
// in [-1, 1] for caption, retrying transient failures with exponential
// backoff inside the circuit breaker's budget.
func (d *LLMDetector) DetectPolarity(ctx context.Context, caption string) (float64, error) {
	var polarity float64
	err := d.obs.ExecuteWithMetrics(ctx, "sentiment_chat", func(callCtx context.Context) error {
		expo := backoff.NewExponentialBackOff()
		expo.MaxElapsedTime = 20 * time.Second
		expo.InitialInterval = 500 * time.Millisecond
		expo.MaxInterval = 5 * time.Second
		bo := backoff.WithContext(expo, callCtx)

		return backoff.Retry(func() error {
			if gap := time.Since(d.lastAt); gap < d.minGap {
				time.Sleep(d.minGap - gap)
			}
			p, err := d.call(callCtx, caption)
			if err != nil {
				if isPermanentLLMError(err) {
					return backoff.Permanent(err)
				}
				return err
			}
			d.lastAt = time.Now()
			polarity = p
			return nil
		}, bo)
	})
	return polarity, err
}

func isPermanentLLMError(err error) bool {
	return strings.Contains(err.Error(), "status 401") || strings.Contains(err.Error(), "status 400")
}

func (d *LLMDetector) call(ctx context.Context, caption string) (float64, error) {
	reqBody, err := json.Marshal(map[string]any{
		"model": d.cfg.LLMModel,
		"messages": []map[string]string{
			{"role": "system", "content": "Reply with only a number between -1 and 1 representing the sentiment polarity of the user's text. No words, no punctuation."},
			{"role": "user", "content": caption},
		},
		"max_tokens": 8,
	})
	if err != nil {
		return 0, fmt.Errorf("op=sentiment.llm.marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.LLMBaseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return 0, fmt.Errorf("op=sentiment.llm.new_request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+d.cfg.LLMAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.hc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("op=sentiment.llm.do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("op=sentiment.llm.call: status %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("op=sentiment.llm.decode: %w", err)
	}
	if len(out.Choices) == 0 {
		return 0, fmt.Errorf("op=sentiment.llm.call: empty choices")
	}

	text := strings.TrimSpace(out.Choices[0].Message.Content)
	polarity, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("op=sentiment.llm.parse_polarity: unparseable response %q: %w", text, err)
	}
	if polarity > 1 {
		polarity = 1
	}
	if polarity < -1 {
		polarity = -1
	}
	return polarity, nil
}
