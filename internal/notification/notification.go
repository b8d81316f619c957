package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"binance-signal-monitor/internal/monitor"
)

// TelegramConfig holds Telegram delivery settings
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// TelegramNotifier delivers alerts to a Telegram chat
type TelegramNotifier struct {
	botToken string
	chatID   string
	client   *http.Client
}

// NewTelegramNotifier returns nil when the config is incomplete, so
// callers can append the result unconditionally
func NewTelegramNotifier(cfg TelegramConfig) *TelegramNotifier {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil
	}
	return &TelegramNotifier{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify implements monitor.Notifier
func (t *TelegramNotifier) Notify(alert monitor.Alert) error {
	text := fmt.Sprintf("*[%s] %s*\n%s", alert.Level, alert.Category, alert.Message)
	if alert.Symbol != "" {
		text = fmt.Sprintf("*[%s] %s %s*\n%s", alert.Level, alert.Category, alert.Symbol, alert.Message)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	resp, err := t.client.Post(url, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}

// DiscordConfig holds Discord webhook settings
type DiscordConfig struct {
	WebhookURL string
}

// DiscordNotifier delivers alerts to a Discord webhook as embeds
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordNotifier returns nil when no webhook URL is configured
func NewDiscordNotifier(cfg DiscordConfig) *DiscordNotifier {
	if cfg.WebhookURL == "" {
		return nil
	}
	return &DiscordNotifier{
		webhookURL: cfg.WebhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func embedColor(level monitor.AlertLevel) int {
	switch level {
	case monitor.AlertCritical:
		return 0xFF0000
	case monitor.AlertWarning:
		return 0xFFA500
	default:
		return 0x00FF00
	}
}

// Notify implements monitor.Notifier
func (d *DiscordNotifier) Notify(alert monitor.Alert) error {
	embed := map[string]interface{}{
		"title":       fmt.Sprintf("[%s] %s", alert.Level, alert.Category),
		"description": alert.Message,
		"color":       embedColor(alert.Level),
		"timestamp":   alert.Time.Format(time.RFC3339),
	}
	if alert.Symbol != "" {
		embed["fields"] = []map[string]interface{}{
			{"name": "Symbol", "value": alert.Symbol, "inline": true},
		}
	}

	payload, err := json.Marshal(map[string]interface{}{
		"embeds": []map[string]interface{}{embed},
	})
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	resp, err := d.client.Post(d.webhookURL, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("send discord message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("discord API returned status %d", resp.StatusCode)
	}
	return nil
}

// Build assembles the notifiers for the given settings, skipping any
// channel that is not configured
func Build(tg TelegramConfig, dc DiscordConfig) []monitor.Notifier {
	var out []monitor.Notifier
	if n := NewTelegramNotifier(tg); n != nil {
		out = append(out, n)
	}
	if n := NewDiscordNotifier(dc); n != nil {
		out = append(out, n)
	}
	return out
}
