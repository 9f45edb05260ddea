// Package alert delivers transition messages to operators.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/vietddude/guildwatch/internal/core/transition"
)

// Notifier sends alertable transitions of one guild. Delivery failures are
// logged by the implementation and never returned to the caller.
type Notifier interface {
	Notify(ctx context.Context, guild, chainLabel, header string, msgs []transition.Message)
}

// LogNotifier writes alerts to the log.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a new LogNotifier.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log.With("component", "alert")}
}

func (n *LogNotifier) Notify(ctx context.Context, guild, chainLabel, header string, msgs []transition.Message) {
	if len(msgs) == 0 {
		return
	}
	for _, m := range msgs {
		n.log.Info(header, "guild", guild, "chain", chainLabel, "state", m.State, "message", m.Text)
	}
}

// Payload is the webhook request body.
type Payload struct {
	Guild    string               `json:"guild"`
	Chain    string               `json:"chain"`
	Header   string               `json:"header"`
	Messages []transition.Message `json:"messages"`
	SentAt   time.Time            `json:"sent_at"`
}

// WebhookNotifier posts alerts as JSON, authenticated with an HS256 bearer token.
type WebhookNotifier struct {
	url        string
	secret     []byte
	httpClient *http.Client
	log        *slog.Logger
}

// NewWebhookNotifier creates a new WebhookNotifier.
func NewWebhookNotifier(url, secret string, timeout time.Duration, log *slog.Logger) *WebhookNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookNotifier{
		url:        url,
		secret:     []byte(secret),
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With("component", "alert"),
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, guild, chainLabel, header string, msgs []transition.Message) {
	if len(msgs) == 0 {
		return
	}
	if err := n.send(ctx, Payload{
		Guild:    guild,
		Chain:    chainLabel,
		Header:   header,
		Messages: msgs,
		SentAt:   time.Now().UTC(),
	}); err != nil {
		n.log.Error("Failed to deliver alert", "guild", guild, "chain", chainLabel, "error", err)
	}
}

func (n *WebhookNotifier) send(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	token, err := n.token(p.Guild)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post alert: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned http %d", resp.StatusCode)
	}
	return nil
}

func (n *WebhookNotifier) token(guild string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    "guildwatch",
		Subject:   guild,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(n.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}
