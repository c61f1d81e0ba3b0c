package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xchpool-tools/xchpool-stats/internal/config"
	"github.com/xchpool-tools/xchpool-stats/internal/estimate"
)

const testLauncherID = "a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90"

func testReport(aheadBehind float64) *estimate.Report {
	return &estimate.Report{
		Timestamp:             time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC),
		ExpectedBlocksPeriod:  11.52,
		ExpectedBlocksElapsed: 5.76,
		ActualBlocks:          2,
		AheadBehind:           aheadBehind,
		Points:                1234,
		PoolShare:             0.01,
		Price:                 30,
		PayoutToDate:          0.035,
		ProjectedTotal:        0.1358,
	}
}

func fastNotifier(cfg *config.NotifyConfig) *Notifier {
	n := NewNotifier(cfg, testLauncherID)
	n.retryDelay = time.Millisecond
	n.rateDelay = time.Millisecond
	return n
}

func TestNewNotifier(t *testing.T) {
	cfg := &config.NotifyConfig{Enabled: true, DiscordURL: "https://discord.com/api/webhooks/test"}
	n := NewNotifier(cfg, testLauncherID)

	if n.cfg != cfg {
		t.Error("Notifier.cfg not set correctly")
	}
	if n.client.Timeout != 10*time.Second {
		t.Errorf("Client timeout = %v, want 10s", n.client.Timeout)
	}
	if n.telegramAPI != DefaultTelegramAPI {
		t.Errorf("telegramAPI = %s, want %s", n.telegramAPI, DefaultTelegramAPI)
	}
	if n.member != "a1b2c3d4...6d7e8f90" {
		t.Errorf("member = %s", n.member)
	}
}

func TestEnabled(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.NotifyConfig
		expected bool
	}{
		{"disabled", config.NotifyConfig{DiscordURL: "http://x"}, false},
		{"no targets", config.NotifyConfig{Enabled: true}, false},
		{"discord", config.NotifyConfig{Enabled: true, DiscordURL: "http://x"}, true},
		{"telegram", config.NotifyConfig{Enabled: true, TelegramBot: "bot", TelegramChat: "chat"}, true},
		{"telegram without chat", config.NotifyConfig{Enabled: true, TelegramBot: "bot"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			if got := NewNotifier(&cfg, testLauncherID).Enabled(); got != tt.expected {
				t.Errorf("Enabled() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestNotifyReportDisabled(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	n := fastNotifier(&config.NotifyConfig{Enabled: false, DiscordURL: server.URL})
	if err := n.NotifyReport(context.Background(), testReport(-3.76)); err != nil {
		t.Fatalf("NotifyReport() error = %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("disabled notifier should not send")
	}
}

func TestNotifyReportDiscord(t *testing.T) {
	tests := []struct {
		name        string
		aheadBehind float64
		color       int
		label       string
	}{
		{"behind", -3.76, colorBehind, "behind"},
		{"ahead", 1.5, colorAhead, "ahead"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var received DiscordMessage
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Content-Type") != "application/json" {
					t.Errorf("Content-Type = %s", r.Header.Get("Content-Type"))
				}
				if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
					t.Errorf("decode: %v", err)
				}
				w.WriteHeader(http.StatusNoContent)
			}))
			defer server.Close()

			n := fastNotifier(&config.NotifyConfig{Enabled: true, DiscordURL: server.URL})
			if err := n.NotifyReport(context.Background(), testReport(tt.aheadBehind)); err != nil {
				t.Fatalf("NotifyReport() error = %v", err)
			}

			if len(received.Embeds) != 1 {
				t.Fatalf("embeds = %d, want 1", len(received.Embeds))
			}
			embed := received.Embeds[0]
			if embed.Color != tt.color {
				t.Errorf("Color = %x, want %x", embed.Color, tt.color)
			}
			if !strings.Contains(embed.Description, tt.label) {
				t.Errorf("Description = %q, want %q", embed.Description, tt.label)
			}
			if embed.Timestamp != "2024-03-02T09:00:00Z" {
				t.Errorf("Timestamp = %s", embed.Timestamp)
			}
		})
	}
}

func TestNotifyReportTelegram(t *testing.T) {
	var path string
	var received TelegramMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&received)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	n := fastNotifier(&config.NotifyConfig{Enabled: true, TelegramBot: "123:ABC", TelegramChat: "-100"})
	n.telegramAPI = server.URL

	if err := n.NotifyReport(context.Background(), testReport(-3.76)); err != nil {
		t.Fatalf("NotifyReport() error = %v", err)
	}
	if path != "/bot123:ABC/sendMessage" {
		t.Errorf("path = %s", path)
	}
	if received.ChatID != "-100" || received.ParseMode != "Markdown" {
		t.Errorf("message = %+v", received)
	}
	if !strings.Contains(received.Text, "behind") || !strings.Contains(received.Text, "0.035000 XCH") {
		t.Errorf("Text = %q", received.Text)
	}
}

func TestNotifyReportRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := fastNotifier(&config.NotifyConfig{Enabled: true, DiscordURL: server.URL})
	if err := n.NotifyReport(context.Background(), testReport(1)); err != nil {
		t.Fatalf("NotifyReport() error = %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestNotifyReportRateLimited(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	n := fastNotifier(&config.NotifyConfig{Enabled: true, DiscordURL: server.URL})
	err := n.NotifyReport(context.Background(), testReport(1))
	if err == nil || !strings.Contains(err.Error(), "status 429") {
		t.Fatalf("NotifyReport() error = %v, want status 429", err)
	}
	if got := atomic.LoadInt32(&calls); got != MaxRetries {
		t.Errorf("calls = %d, want %d", got, MaxRetries)
	}
}

func TestNotifyReportBothTargetsFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	n := fastNotifier(&config.NotifyConfig{
		Enabled:      true,
		DiscordURL:   server.URL,
		TelegramBot:  "bot",
		TelegramChat: "chat",
	})
	n.telegramAPI = server.URL

	err := n.NotifyReport(context.Background(), testReport(1))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "discord") || !strings.Contains(err.Error(), "telegram") {
		t.Errorf("error = %v, want both targets", err)
	}
}

func TestNotifyReportCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := NewNotifier(&config.NotifyConfig{Enabled: true, DiscordURL: server.URL}, testLauncherID)
	n.retryDelay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := n.NotifyReport(ctx, testReport(1)); err == nil {
		t.Fatal("expected error")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("NotifyReport did not stop on context cancellation")
	}
}
