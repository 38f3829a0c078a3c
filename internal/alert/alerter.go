package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var alertDedupScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// dedupWindow bounds identical alerts to one delivery per hour.
const dedupWindow = time.Hour

// Alerter delivers critical failure notifications to a webhook,
// deduplicated through Redis so a flapping provider does not flood
// the receiving channel.
type Alerter struct {
	redisClient *redis.Client
	prefix      string
	webhookURL  string
	httpClient  *http.Client
	logger      *slog.Logger
}

// New creates an alerter. A nil redis client or empty webhook URL
// yields a no-op alerter so callers need not branch.
func New(client *redis.Client, prefix, webhookURL string, logger *slog.Logger) *Alerter {
	if client == nil || strings.TrimSpace(webhookURL) == "" {
		return nil
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "contentforge:alerts"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Alerter{
		redisClient: client,
		prefix:      prefix,
		webhookURL:  strings.TrimSpace(webhookURL),
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		logger:      logger,
	}
}

type payload struct {
	Kind    string    `json:"kind"`
	Subject string    `json:"subject"`
	Detail  string    `json:"detail"`
	At      time.Time `json:"at"`
}

// Notify sends one alert of the given kind and subject. Identical
// kind/subject pairs are delivered at most once per hour; duplicates
// within the window are counted but not sent.
func (a *Alerter) Notify(ctx context.Context, kind, subject, detail string) error {
	if a == nil {
		return nil
	}
	key := fmt.Sprintf("%s:%s:%s", a.prefix, sanitizeSegment(kind), sanitizeSegment(subject))
	dedupCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	count, err := alertDedupScript.Run(dedupCtx, a.redisClient, []string{key}, dedupWindow.Milliseconds()).Int64()
	if err != nil {
		// Dedup unavailable. Deliver anyway; a duplicate beats silence.
		a.logger.Warn("alert dedup unavailable", "error", err)
	} else if count > 1 {
		a.logger.Debug("alert suppressed", "kind", kind, "subject", subject, "count", count)
		return nil
	}
	return a.deliver(ctx, payload{
		Kind:    kind,
		Subject: subject,
		Detail:  detail,
		At:      time.Now().UTC(),
	})
}

func (a *Alerter) deliver(ctx context.Context, p payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver alert: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}
	a.logger.Info("alert delivered", "kind", p.Kind, "subject", p.Subject)
	return nil
}

func sanitizeSegment(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}
	replacer := strings.NewReplacer(":", "_", "|", "_", " ", "_")
	return replacer.Replace(in)
}
