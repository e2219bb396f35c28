package dataprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/AmoghJohri/Epidemic-Modeling/pkg/logger"
	"github.com/AmoghJohri/Epidemic-Modeling/pkg/utils"
)

// DefaultURL is the India case-count history endpoint.
const DefaultURL = "https://api.rootnet.in/covid19-in/stats/history"

type historyResponse struct {
	Data []struct {
		Day     string `json:"day"`
		Summary struct {
			Total      float64 `json:"total"`
			Discharged float64 `json:"discharged"`
			Deaths     float64 `json:"deaths"`
		} `json:"summary"`
	} `json:"data"`
}

// HTTPProvider fetches the history JSON and retries transient failures.
type HTTPProvider struct {
	url        string
	httpClient *http.Client
	attempts   int
	backoff    utils.BackoffStrategy
	logger     *slog.Logger
}

// NewHTTPProvider creates a provider for url, DefaultURL when empty.
func NewHTTPProvider(url string) *HTTPProvider {
	if url == "" {
		url = DefaultURL
	}
	return &HTTPProvider{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		attempts:   3,
		backoff:    utils.NewExponentialBackoff(500*time.Millisecond, 10*time.Second, 2.0, true),
		logger:     logger.Default,
	}
}

// WithHTTPClient sets the HTTP client
func (p *HTTPProvider) WithHTTPClient(c *http.Client) *HTTPProvider {
	if c != nil {
		p.httpClient = c
	}
	return p
}

// WithRetry sets the number of attempts and the delay between them
func (p *HTTPProvider) WithRetry(attempts int, backoff utils.BackoffStrategy) *HTTPProvider {
	p.attempts = attempts
	p.backoff = backoff
	return p
}

// WithLogger sets the provider's logger
func (p *HTTPProvider) WithLogger(l *slog.Logger) *HTTPProvider {
	p.logger = logger.OrDefault(l)
	return p
}

// History fetches the full history and returns the [from, to] window.
func (p *HTTPProvider) History(ctx context.Context, from, to time.Time) ([]Record, error) {
	var records []Record
	err := utils.Retry(ctx, p.attempts, p.backoff, func(ctx context.Context) error {
		var err error
		records, err = p.fetch(ctx)
		if err != nil {
			p.logger.Warn("history fetch failed", "url", p.url, "error", err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", p.url, err)
	}

	window := Window(records, from, to)
	p.logger.Info("Fetched case history",
		"url", p.url,
		"records", len(records),
		"window", len(window))
	return window, nil
}

func (p *HTTPProvider) fetch(ctx context.Context) ([]Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, utils.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, utils.Permanent(err)
		}
		return nil, err
	}

	var payload historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, utils.Permanent(fmt.Errorf("decoding history: %w", err))
	}

	records := make([]Record, 0, len(payload.Data))
	for _, d := range payload.Data {
		day, err := ParseDay(d.Day)
		if err != nil {
			return nil, utils.Permanent(fmt.Errorf("parsing day %q: %w", d.Day, err))
		}
		records = append(records, Record{
			Day:       day,
			Total:     d.Summary.Total,
			Recovered: d.Summary.Discharged,
			Deaths:    d.Summary.Deaths,
		})
	}
	return records, nil
}
