package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/NordCoder/Uptimer/internal/domain/channel"
)

// Sender delivers one payload to one channel described by its raw config.
type Sender interface {
	Send(ctx context.Context, cfg json.RawMessage, p Payload) error
}

var (
	ErrNotImplemented = errors.New("email notifications not yet implemented")
	ErrUnknownType    = errors.New("unknown notification type")
)

type SenderConfig struct {
	TelegramAPI string
	PushoverAPI string
}

// NewSenders builds the sender for every supported channel type around one HTTP client.
func NewSenders(client *http.Client, cfg SenderConfig) map[channel.Type]Sender {
	if cfg.TelegramAPI == "" {
		cfg.TelegramAPI = "https://api.telegram.org"
	}
	if cfg.PushoverAPI == "" {
		cfg.PushoverAPI = "https://api.pushover.net/1/messages.json"
	}
	return map[channel.Type]Sender{
		channel.TypeTelegram: &Telegram{client: client, apiBase: strings.TrimRight(cfg.TelegramAPI, "/")},
		channel.TypeDiscord:  &Discord{client: client},
		channel.TypeSlack:    &Slack{client: client},
		channel.TypeTeams:    &Teams{client: client},
		channel.TypeWebhook:  &Webhook{client: client},
		channel.TypePushover: &Pushover{client: client, endpoint: cfg.PushoverAPI},
		channel.TypeEmail:    Email{},
	}
}

func decodeConfig(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return errors.New("missing channel config")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid channel config: %w", err)
	}
	return nil
}

// doJSON sends body as JSON and returns the status code and up to 64KiB of the answer.
func doJSON(ctx context.Context, client *http.Client, method, target string, headers map[string]string, body any) (int, []byte, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return 0, nil, stripURL(err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return do(client, req)
}

func do(client *http.Client, req *http.Request) (int, []byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, stripURL(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}

// stripURL drops the request URL from client errors. Bot tokens and webhook
// secrets live in the path, and these errors end up in logs and API responses.
func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s request: %w", strings.ToLower(uerr.Op), uerr.Err)
	}
	return err
}

func ok(code int) bool { return code >= 200 && code < 300 }

type Telegram struct {
	client  *http.Client
	apiBase string
}

type TelegramConfig struct {
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

var markdownV2 = strings.NewReplacer(
	`\`, `\\`, "_", `\_`, "*", `\*`, "[", `\[`, "]", `\]`, "(", `\(`, ")", `\)`,
	"~", `\~`, "`", "\\`", ">", `\>`, "#", `\#`, "+", `\+`, "-", `\-`, "=", `\=`,
	"|", `\|`, "{", `\{`, "}", `\}`, ".", `\.`, "!", `\!`,
)

func escapeMarkdown(s string) string { return markdownV2.Replace(s) }

func statusEmoji(s Status) string {
	switch s {
	case StatusUp:
		return "✅"
	case StatusDown:
		return "🔴"
	default:
		return "⚠️"
	}
}

func telegramText(p Payload) string {
	var b strings.Builder
	b.WriteString(statusEmoji(p.Status) + " *" + escapeMarkdown(p.Title) + "*\n\n" + escapeMarkdown(p.Message))
	if p.MonitorName != "" {
		b.WriteString("\n\n📍 *Monitor:* " + escapeMarkdown(p.MonitorName))
	}
	if p.MonitorURL != "" {
		b.WriteString("\n🔗 *URL:* " + escapeMarkdown(p.MonitorURL))
	}
	if p.Timestamp != "" {
		b.WriteString("\n🕐 *Time:* " + escapeMarkdown(p.Timestamp))
	}
	return b.String()
}

func (s *Telegram) Send(ctx context.Context, raw json.RawMessage, p Payload) error {
	var cfg TelegramConfig
	if err := decodeConfig(raw, &cfg); err != nil {
		return err
	}
	code, data, err := doJSON(ctx, s.client, http.MethodPost, s.apiBase+"/bot"+cfg.BotToken+"/sendMessage", nil, map[string]any{
		"chat_id":                  cfg.ChatID,
		"text":                     telegramText(p),
		"parse_mode":               "MarkdownV2",
		"disable_web_page_preview": true,
	})
	if err != nil {
		return err
	}
	var res struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	_ = json.Unmarshal(data, &res)
	if !ok(code) || !res.OK {
		if res.Description != "" {
			return errors.New(res.Description)
		}
		return errors.New("failed to send telegram message")
	}
	return nil
}

type WebhookURLConfig struct {
	WebhookURL string `json:"webhook_url"`
}

type field struct {
	Name   string `json:"name,omitempty"`
	Title  string `json:"title,omitempty"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
	Short  bool   `json:"short,omitempty"`
}

func colorFor(s Status, up, down, other int) int {
	switch s {
	case StatusUp:
		return up
	case StatusDown:
		return down
	default:
		return other
	}
}

type Discord struct{ client *http.Client }

func (s *Discord) Send(ctx context.Context, raw json.RawMessage, p Payload) error {
	var cfg WebhookURLConfig
	if err := decodeConfig(raw, &cfg); err != nil {
		return err
	}
	fields := []field{}
	if p.MonitorName != "" {
		fields = append(fields, field{Name: "Monitor", Value: p.MonitorName, Inline: true})
	}
	if p.MonitorURL != "" {
		fields = append(fields, field{Name: "URL", Value: p.MonitorURL, Inline: true})
	}
	ts := p.Timestamp
	if ts == "" {
		ts = time.Now().UTC().Format(time.RFC3339)
	}
	code, _, err := doJSON(ctx, s.client, http.MethodPost, cfg.WebhookURL, nil, map[string]any{
		"embeds": []map[string]any{{
			"title":       p.Title,
			"description": p.Message,
			"color":       colorFor(p.Status, 0x00ff00, 0xff0000, 0xffff00),
			"fields":      fields,
			"timestamp":   ts,
		}},
	})
	if err != nil {
		return err
	}
	if !ok(code) {
		return fmt.Errorf("discord api error: %d", code)
	}
	return nil
}

type Slack struct{ client *http.Client }

func slackColor(s Status) string {
	switch s {
	case StatusUp:
		return "good"
	case StatusDown:
		return "danger"
	default:
		return "warning"
	}
}

func (s *Slack) Send(ctx context.Context, raw json.RawMessage, p Payload) error {
	var cfg WebhookURLConfig
	if err := decodeConfig(raw, &cfg); err != nil {
		return err
	}
	fields := []field{}
	if p.MonitorName != "" {
		fields = append(fields, field{Title: "Monitor", Value: p.MonitorName, Short: true})
	}
	if p.MonitorURL != "" {
		fields = append(fields, field{Title: "URL", Value: p.MonitorURL, Short: true})
	}
	ts := time.Now()
	if t, err := time.Parse(time.RFC3339, p.Timestamp); err == nil {
		ts = t
	}
	code, _, err := doJSON(ctx, s.client, http.MethodPost, cfg.WebhookURL, nil, map[string]any{
		"attachments": []map[string]any{{
			"color":  slackColor(p.Status),
			"title":  p.Title,
			"text":   p.Message,
			"fields": fields,
			"ts":     float64(ts.UnixMilli()) / 1000,
		}},
	})
	if err != nil {
		return err
	}
	if !ok(code) {
		return fmt.Errorf("slack api error: %d", code)
	}
	return nil
}

type Teams struct{ client *http.Client }

func (s *Teams) Send(ctx context.Context, raw json.RawMessage, p Payload) error {
	var cfg WebhookURLConfig
	if err := decodeConfig(raw, &cfg); err != nil {
		return err
	}
	facts := []field{}
	if p.MonitorName != "" {
		facts = append(facts, field{Name: "Monitor", Value: p.MonitorName})
	}
	if p.MonitorURL != "" {
		facts = append(facts, field{Name: "URL", Value: p.MonitorURL})
	}
	if p.Timestamp != "" {
		facts = append(facts, field{Name: "Time", Value: p.Timestamp})
	}
	code, _, err := doJSON(ctx, s.client, http.MethodPost, cfg.WebhookURL, nil, map[string]any{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": fmt.Sprintf("%06X", colorFor(p.Status, 0x00ff00, 0xff0000, 0xffff00)),
		"summary":    p.Title,
		"sections": []map[string]any{{
			"activityTitle":    p.Title,
			"activitySubtitle": p.Message,
			"facts":            facts,
			"markdown":         true,
		}},
	})
	if err != nil {
		return err
	}
	if !ok(code) {
		return fmt.Errorf("teams api error: %d", code)
	}
	return nil
}

type Webhook struct{ client *http.Client }

type WebhookConfig struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
}

func (s *Webhook) Send(ctx context.Context, raw json.RawMessage, p Payload) error {
	var cfg WebhookConfig
	if err := decodeConfig(raw, &cfg); err != nil {
		return err
	}
	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = http.MethodPost
	}
	var body any = p
	if method == http.MethodGet {
		body = nil
	}
	code, _, err := doJSON(ctx, s.client, method, cfg.URL, cfg.Headers, body)
	if err != nil {
		return err
	}
	if !ok(code) {
		return fmt.Errorf("webhook error: %d", code)
	}
	return nil
}

type Pushover struct {
	client   *http.Client
	endpoint string
}

type PushoverConfig struct {
	UserKey  string `json:"user_key"`
	Token    string `json:"token"`
	Priority int    `json:"priority"`
	Sound    string `json:"sound"`
}

func (s *Pushover) Send(ctx context.Context, raw json.RawMessage, p Payload) error {
	var cfg PushoverConfig
	if err := decodeConfig(raw, &cfg); err != nil {
		return err
	}
	form := url.Values{}
	form.Set("user", cfg.UserKey)
	form.Set("token", cfg.Token)
	form.Set("title", p.Title)
	form.Set("message", p.Message)
	if cfg.Priority != 0 {
		form.Set("priority", strconv.Itoa(cfg.Priority))
	}
	if cfg.Sound != "" {
		form.Set("sound", cfg.Sound)
	}
	if p.MonitorURL != "" {
		form.Set("url", p.MonitorURL)
	}
	if p.MonitorName != "" {
		form.Set("url_title", p.MonitorName)
	}
	if t, err := time.Parse(time.RFC3339, p.Timestamp); err == nil {
		form.Set("timestamp", strconv.FormatInt(t.Unix(), 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	code, data, err := do(s.client, req)
	if err != nil {
		return err
	}
	var res struct {
		Status int      `json:"status"`
		Errors []string `json:"errors"`
	}
	_ = json.Unmarshal(data, &res)
	if !ok(code) || res.Status != 1 {
		if len(res.Errors) > 0 {
			return errors.New(strings.Join(res.Errors, ", "))
		}
		return fmt.Errorf("pushover api error: %s", http.StatusText(code))
	}
	return nil
}

// Email is declared so the type is known, but delivery always fails.
type Email struct{}

func (Email) Send(context.Context, json.RawMessage, Payload) error { return ErrNotImplemented }
