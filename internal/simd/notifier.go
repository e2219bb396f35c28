package simd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AmoghJohri/Epidemic-Modeling/internal/policy"
	"github.com/AmoghJohri/Epidemic-Modeling/pkg/logger"
	"github.com/AmoghJohri/Epidemic-Modeling/pkg/utils"
)

var (
	ErrInvalidURL       = errors.New("invalid callback url")
	ErrMetadataEndpoint = errors.New("callback url targets a cloud metadata endpoint")
	ErrInternalHost     = errors.New("callback url targets an internal address")
	ErrCircuitOpen      = errors.New("callback host circuit is open")
)

// DeliveryIDHeader carries an ID shared by every attempt of one delivery, so
// receivers can drop retried duplicates.
const DeliveryIDHeader = "X-Epidemic-Delivery-ID"

// NotificationPayload is the JSON body posted to a calibration's callback URL.
type NotificationPayload struct {
	RunID     string `json:"run_id"`
	Run       Run    `json:"run"`
	Timestamp int64  `json:"timestamp"` // when the notification was sent
}

// Notifier posts calibration completion to callback URLs.
type Notifier struct {
	httpClient *http.Client
	attempts   int
	backoff    utils.BackoffStrategy
	breaker    policy.CircuitBreakerPolicy // keyed by callback host; nil disables
	logger     *slog.Logger
}

// NewNotifier creates a notifier with a 10s client timeout and three
// retries on exponential backoff starting at one second.
func NewNotifier() *Notifier {
	return &Notifier{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		attempts: 4,
		backoff:  utils.NewExponentialBackoff(time.Second, 30*time.Second, 2, false),
		logger:   logger.Default,
	}
}

func (n *Notifier) WithHTTPClient(c *http.Client) *Notifier {
	if c != nil {
		n.httpClient = c
	}
	return n
}

// WithRetry sets the total number of attempts and the delay between them.
func (n *Notifier) WithRetry(attempts int, backoff utils.BackoffStrategy) *Notifier {
	n.attempts = max(attempts, 1)
	n.backoff = backoff
	return n
}

// WithCircuitBreaker skips callbacks to hosts whose recent deliveries failed.
func (n *Notifier) WithCircuitBreaker(cb policy.CircuitBreakerPolicy) *Notifier {
	n.breaker = cb
	return n
}

func (n *Notifier) WithLogger(l *slog.Logger) *Notifier {
	n.logger = logger.OrDefault(l)
	return n
}

// Send posts run to callbackURL, replacing any {run_id} placeholder, and
// retries transport failures, 5xx and 429 responses under one delivery ID. A delivery that fails
// after all attempts counts once against the host's circuit.
func (n *Notifier) Send(ctx context.Context, callbackURL, callbackSecret string, run Run) error {
	finalURL := strings.ReplaceAll(callbackURL, "{run_id}", url.PathEscape(run.ID))
	host := ""
	if u, err := url.Parse(finalURL); err == nil {
		host = u.Host
	}
	if n.breaker != nil && !n.breaker.AllowRequest(host, time.Now()) {
		return fmt.Errorf("%w: %s", ErrCircuitOpen, host)
	}
	body, err := json.Marshal(NotificationPayload{
		RunID:     run.ID,
		Run:       run,
		Timestamp: time.Now().UTC().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification payload: %w", err)
	}

	deliveryID := utils.GenerateID()
	attempt := 0
	err = utils.Retry(ctx, n.attempts, n.backoff, func(ctx context.Context) error {
		attempt++
		err := n.post(ctx, finalURL, callbackSecret, deliveryID, body)
		if err != nil {
			n.logger.Warn("notification attempt failed",
				"callback_url", finalURL,
				"run_id", run.ID,
				"attempt", attempt,
				"error", err)
		}
		return err
	})
	if err != nil {
		if n.breaker != nil {
			n.breaker.RecordFailure(host, time.Now())
		}
		return err
	}
	if n.breaker != nil {
		n.breaker.RecordSuccess(host, time.Now())
	}
	n.logger.Info("notification sent successfully", "run_id", run.ID, "status", run.Status)
	return nil
}

func (n *Notifier) post(ctx context.Context, target, secret, deliveryID string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return utils.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "epidemicd/1.0")
	req.Header.Set(DeliveryIDHeader, deliveryID)
	if secret != "" {
		req.Header.Set("X-Epidemic-Callback-Secret", secret)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
	err = fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return utils.Permanent(err)
	}
	return err
}

// validateCallbackURL rejects callback targets that are malformed or that
// would let a request reach the daemon's own network. "localhost" is
// allowed by name for development.
func validateCallbackURL(raw string) error {
	u, err := url.Parse(strings.ReplaceAll(raw, "{run_id}", "run"))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidURL, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: missing hostname", ErrInvalidURL)
	}
	if strings.EqualFold(host, "metadata.google.internal") || host == "169.254.169.254" {
		return fmt.Errorf("%w: %s", ErrMetadataEndpoint, host)
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsUnspecified() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsPrivate() {
			return fmt.Errorf("%w: %s", ErrInternalHost, host)
		}
	}
	return nil
}
