// Package notify posts report summaries to Discord and Telegram.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/xchpool-tools/xchpool-stats/internal/config"
	"github.com/xchpool-tools/xchpool-stats/internal/estimate"
	"github.com/xchpool-tools/xchpool-stats/internal/util"
)

// Retry configuration
const (
	MaxRetries     = 3
	RetryBaseDelay = 2 * time.Second
	RateLimitDelay = 5 * time.Second
)

// DefaultTelegramAPI is the Telegram Bot API base URL
const DefaultTelegramAPI = "https://api.telegram.org"

// Embed colors
const (
	colorAhead  = 0x00FF00
	colorBehind = 0xFF0000
)

// Notifier sends report summaries
type Notifier struct {
	cfg         *config.NotifyConfig
	client      *http.Client
	member      string
	telegramAPI string
	retryDelay  time.Duration
	rateDelay   time.Duration
}

// NewNotifier creates a notifier for the member identified by launcherID
func NewNotifier(cfg *config.NotifyConfig, launcherID string) *Notifier {
	return &Notifier{
		cfg: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		member:      util.ShortID(launcherID, 8),
		telegramAPI: DefaultTelegramAPI,
		retryDelay:  RetryBaseDelay,
		rateDelay:   RateLimitDelay,
	}
}

// Enabled returns true if notifications are on and a target is configured
func (n *Notifier) Enabled() bool {
	return n.cfg.Enabled && (n.discordEnabled() || n.telegramEnabled())
}

func (n *Notifier) discordEnabled() bool {
	return n.cfg.DiscordURL != ""
}

func (n *Notifier) telegramEnabled() bool {
	return n.cfg.TelegramBot != "" && n.cfg.TelegramChat != ""
}

// NotifyReport sends r to every configured target
func (n *Notifier) NotifyReport(ctx context.Context, r *estimate.Report) error {
	if !n.Enabled() {
		return nil
	}

	var errs []error
	if n.discordEnabled() {
		if err := n.sendDiscordMessage(ctx, discordReport(r, n.member)); err != nil {
			errs = append(errs, fmt.Errorf("discord: %w", err))
		}
	}
	if n.telegramEnabled() {
		if err := n.sendTelegramMessage(ctx, telegramReport(r, n.member)); err != nil {
			errs = append(errs, fmt.Errorf("telegram: %w", err))
		}
	}
	return errors.Join(errs...)
}

// DiscordEmbed represents a Discord embed object
type DiscordEmbed struct {
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color,omitempty"`
	Fields      []DiscordField `json:"fields,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Footer      *DiscordFooter `json:"footer,omitempty"`
}

// DiscordField represents a field in a Discord embed
type DiscordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// DiscordFooter represents the footer of a Discord embed
type DiscordFooter struct {
	Text string `json:"text"`
}

// DiscordMessage represents a Discord webhook message
type DiscordMessage struct {
	Content string         `json:"content,omitempty"`
	Embeds  []DiscordEmbed `json:"embeds,omitempty"`
}

// TelegramMessage represents a Telegram bot message
type TelegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func aheadLabel(r *estimate.Report) string {
	if r.Ahead() {
		return "ahead"
	}
	return "behind"
}

func discordReport(r *estimate.Report, member string) DiscordMessage {
	color := colorBehind
	if r.Ahead() {
		color = colorAhead
	}

	embed := DiscordEmbed{
		Title:       "XCHPool report",
		Description: fmt.Sprintf("Pool is **%s** by %.2f blocks this period", aheadLabel(r), r.AheadBehind),
		Color:       color,
		Fields: []DiscordField{
			{Name: "Expected blocks", Value: fmt.Sprintf("%.2f", r.ExpectedBlocksPeriod), Inline: true},
			{Name: "Until now", Value: fmt.Sprintf("%.2f", r.ExpectedBlocksElapsed), Inline: true},
			{Name: "Actual", Value: fmt.Sprintf("%d", r.ActualBlocks), Inline: true},
			{Name: "Poolshare", Value: fmt.Sprintf("%.6f %%", r.PoolShare*100), Inline: true},
			{Name: "Points", Value: fmt.Sprintf("%d", r.Points), Inline: true},
			{Name: "Price", Value: fmt.Sprintf("%.2f USD", r.Price), Inline: true},
			{Name: "Payout until now", Value: fmt.Sprintf("%.6f XCH (%.2f USD)", r.PayoutToDate, r.PayoutToDateFiat())},
			{Name: "Expected payout", Value: fmt.Sprintf("%.6f XCH (%.2f USD)", r.ProjectedTotal, r.ProjectedTotalFiat())},
		},
		Timestamp: r.Timestamp.UTC().Format(time.RFC3339),
		Footer: &DiscordFooter{
			Text: member,
		},
	}

	return DiscordMessage{Embeds: []DiscordEmbed{embed}}
}

func telegramReport(r *estimate.Report, member string) string {
	return fmt.Sprintf(
		"*XCHPool report* `%s`\n\n"+
			"Blocks: `%d` of `%.2f` expected (%s by `%.2f`)\n"+
			"Poolshare: `%.6f %%`\n"+
			"Payout until now: `%.6f XCH`\n"+
			"Expected payout: `%.6f XCH` (`%.2f USD`)",
		member,
		r.ActualBlocks, r.ExpectedBlocksElapsed, aheadLabel(r), r.AheadBehind,
		r.PoolShare*100,
		r.PayoutToDate,
		r.ProjectedTotal, r.ProjectedTotalFiat(),
	)
}

func (n *Notifier) sendDiscordMessage(ctx context.Context, msg DiscordMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return n.postWithRetry(ctx, n.cfg.DiscordURL, body)
}

func (n *Notifier) sendTelegramMessage(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", n.telegramAPI, n.cfg.TelegramBot)

	body, err := json.Marshal(TelegramMessage{
		ChatID:    n.cfg.TelegramChat,
		Text:      text,
		ParseMode: "Markdown",
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return n.postWithRetry(ctx, url, body)
}

// postWithRetry posts body with exponential backoff between attempts
func (n *Notifier) postWithRetry(ctx context.Context, url string, body []byte) error {
	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 2s, 4s
			delay := n.retryDelay * time.Duration(1<<uint(attempt-1))
			if err := sleep(ctx, delay); err != nil {
				return err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()

		if resp.StatusCode < 400 {
			return nil
		}

		lastErr = fmt.Errorf("status %d", resp.StatusCode)

		// Rate limited - wait longer
		if resp.StatusCode == http.StatusTooManyRequests {
			if err := sleep(ctx, n.rateDelay); err != nil {
				return err
			}
		}
	}

	util.Warnf("Failed to send notification after %d attempts: %v", MaxRetries, lastErr)
	return lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
