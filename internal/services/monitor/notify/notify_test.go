package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NordCoder/Uptimer/internal/domain/channel"
	"github.com/NordCoder/Uptimer/internal/domain/heartbeat"
	"github.com/NordCoder/Uptimer/internal/domain/transition"
)

var at = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type captured struct {
	mu     sync.Mutex
	path   string
	header http.Header
	body   []byte
	hits   int
}

func capture(t *testing.T, status int, reply string) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.path, c.header, c.body = r.URL.Path, r.Header.Clone(), b
		c.hits++
		c.mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func rawCfg(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestFromEvent(t *testing.T) {
	down := heartbeat.StatusDown
	p, ok := FromEvent(transition.Event{Kind: transition.KindDown, TargetName: "API", Address: "https://api.example.com", Message: "HTTP 503", At: at})
	require.True(t, ok)
	assert.Equal(t, "🔴 API is Down", p.Title)
	assert.Equal(t, "HTTP 503", p.Message)
	assert.Equal(t, StatusDown, p.Status)
	assert.Equal(t, "2026-03-01T12:00:00Z", p.Timestamp)

	p, ok = FromEvent(transition.Event{Kind: transition.KindRecovery, TargetName: "API", From: &down, At: at})
	require.True(t, ok)
	assert.Equal(t, "✅ API is Back Online", p.Title)
	assert.Equal(t, "Service has recovered and is operational", p.Message)
	assert.Equal(t, StatusUp, p.Status)

	_, ok = FromEvent(transition.Event{Kind: transition.KindNone})
	assert.False(t, ok)
}

func TestTelegramText(t *testing.T) {
	p := DownPayload("my-site.com", "https://my-site.com", "HTTP 500", at)
	got := telegramText(p)
	assert.Equal(t,
		"🔴 *🔴 my\\-site\\.com is Down*\n\nHTTP 500"+
			"\n\n📍 *Monitor:* my\\-site\\.com"+
			"\n🔗 *URL:* https://my\\-site\\.com"+
			"\n🕐 *Time:* 2026\\-03\\-01T12:00:00Z", got)
}

func TestTelegramSend(t *testing.T) {
	srv, c := capture(t, http.StatusOK, `{"ok":true}`)
	s := NewSenders(srv.Client(), SenderConfig{TelegramAPI: srv.URL})[channel.TypeTelegram]

	err := s.Send(context.Background(), rawCfg(t, TelegramConfig{BotToken: "123:abc", ChatID: "42"}), TestPayload(at))
	require.NoError(t, err)
	assert.Equal(t, "/bot123:abc/sendMessage", c.path)

	var body map[string]any
	require.NoError(t, json.Unmarshal(c.body, &body))
	assert.Equal(t, "42", body["chat_id"])
	assert.Equal(t, "MarkdownV2", body["parse_mode"])
	assert.Equal(t, true, body["disable_web_page_preview"])
}

func TestTelegramError(t *testing.T) {
	srv, _ := capture(t, http.StatusBadRequest, `{"ok":false,"description":"Bad Request: chat not found"}`)
	s := NewSenders(srv.Client(), SenderConfig{TelegramAPI: srv.URL})[channel.TypeTelegram]
	err := s.Send(context.Background(), rawCfg(t, TelegramConfig{BotToken: "t", ChatID: "1"}), TestPayload(at))
	require.EqualError(t, err, "Bad Request: chat not found")

	srv2, _ := capture(t, http.StatusBadGateway, `nope`)
	s = NewSenders(srv2.Client(), SenderConfig{TelegramAPI: srv2.URL})[channel.TypeTelegram]
	err = s.Send(context.Background(), rawCfg(t, TelegramConfig{BotToken: "t", ChatID: "1"}), TestPayload(at))
	require.EqualError(t, err, "failed to send telegram message")
}

func TestSendErrorsHideSecretURLs(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	const token = "123456:SECRET-BOT-TOKEN"
	d := NewDispatcher(&fakeChannels{}, NewSenders(&http.Client{}, SenderConfig{TelegramAPI: base}), time.Second, zap.NewNop())

	err := d.Test(context.Background(), channel.TypeTelegram, rawCfg(t, TelegramConfig{BotToken: token, ChatID: "1"}))
	require.Error(t, err)
	assert.NotContains(t, err.Error(), token)
	assert.Contains(t, err.Error(), "post request")

	hook := base + "/api/webhooks/1/SECRET-HOOK"
	err = d.Test(context.Background(), channel.TypeDiscord, rawCfg(t, WebhookURLConfig{WebhookURL: hook}))
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET-HOOK")
}

func TestWebhookSenders(t *testing.T) {
	p := DownPayload("API", "https://api.example.com", "HTTP 503", at)

	t.Run("discord", func(t *testing.T) {
		srv, c := capture(t, http.StatusNoContent, "")
		s := NewSenders(srv.Client(), SenderConfig{})[channel.TypeDiscord]
		require.NoError(t, s.Send(context.Background(), rawCfg(t, WebhookURLConfig{WebhookURL: srv.URL}), p))

		var body struct {
			Embeds []struct {
				Title  string `json:"title"`
				Color  int    `json:"color"`
				Fields []struct {
					Name   string `json:"name"`
					Value  string `json:"value"`
					Inline bool   `json:"inline"`
				} `json:"fields"`
			} `json:"embeds"`
		}
		require.NoError(t, json.Unmarshal(c.body, &body))
		require.Len(t, body.Embeds, 1)
		assert.Equal(t, p.Title, body.Embeds[0].Title)
		assert.Equal(t, 0xff0000, body.Embeds[0].Color)
		require.Len(t, body.Embeds[0].Fields, 2)
		assert.Equal(t, "Monitor", body.Embeds[0].Fields[0].Name)
		assert.True(t, body.Embeds[0].Fields[0].Inline)
	})

	t.Run("slack error", func(t *testing.T) {
		srv, c := capture(t, http.StatusForbidden, "")
		s := NewSenders(srv.Client(), SenderConfig{})[channel.TypeSlack]
		err := s.Send(context.Background(), rawCfg(t, WebhookURLConfig{WebhookURL: srv.URL}), p)
		require.EqualError(t, err, "slack api error: 403")
		assert.Contains(t, string(c.body), `"color":"danger"`)
	})

	t.Run("teams", func(t *testing.T) {
		srv, c := capture(t, http.StatusOK, "1")
		s := NewSenders(srv.Client(), SenderConfig{})[channel.TypeTeams]
		require.NoError(t, s.Send(context.Background(), rawCfg(t, WebhookURLConfig{WebhookURL: srv.URL}), p))
		assert.Contains(t, string(c.body), `"@type":"MessageCard"`)
		assert.Contains(t, string(c.body), `"themeColor":"FF0000"`)
	})

	t.Run("generic webhook", func(t *testing.T) {
		srv, c := capture(t, http.StatusOK, "")
		s := NewSenders(srv.Client(), SenderConfig{})[channel.TypeWebhook]
		cfg := WebhookConfig{URL: srv.URL + "/hook", Method: "put", Headers: map[string]string{"X-Token": "s3cret"}}
		require.NoError(t, s.Send(context.Background(), rawCfg(t, cfg), p))
		assert.Equal(t, "/hook", c.path)
		assert.Equal(t, "s3cret", c.header.Get("X-Token"))
		assert.Equal(t, "application/json", c.header.Get("Content-Type"))

		var got Payload
		require.NoError(t, json.Unmarshal(c.body, &got))
		assert.Equal(t, p, got)
	})

	t.Run("generic webhook error", func(t *testing.T) {
		srv, _ := capture(t, http.StatusInternalServerError, "")
		s := NewSenders(srv.Client(), SenderConfig{})[channel.TypeWebhook]
		err := s.Send(context.Background(), rawCfg(t, WebhookConfig{URL: srv.URL}), p)
		require.EqualError(t, err, "webhook error: 500")
	})
}

func TestPushover(t *testing.T) {
	srv, c := capture(t, http.StatusOK, `{"status":1}`)
	s := NewSenders(srv.Client(), SenderConfig{PushoverAPI: srv.URL})[channel.TypePushover]
	p := DownPayload("API", "https://api.example.com", "HTTP 503", at)
	require.NoError(t, s.Send(context.Background(), rawCfg(t, PushoverConfig{UserKey: "u", Token: "tk", Priority: 1}), p))

	form, err := url.ParseQuery(string(c.body))
	require.NoError(t, err)
	assert.Equal(t, "u", form.Get("user"))
	assert.Equal(t, "tk", form.Get("token"))
	assert.Equal(t, "1", form.Get("priority"))
	assert.Equal(t, "https://api.example.com", form.Get("url"))
	assert.Equal(t, "API", form.Get("url_title"))
	assert.Equal(t, "1772366400", form.Get("timestamp"))

	bad, _ := capture(t, http.StatusBadRequest, `{"status":0,"errors":["user key is invalid","token is invalid"]}`)
	s = NewSenders(bad.Client(), SenderConfig{PushoverAPI: bad.URL})[channel.TypePushover]
	err = s.Send(context.Background(), rawCfg(t, PushoverConfig{UserKey: "u", Token: "tk"}), p)
	require.EqualError(t, err, "user key is invalid, token is invalid")
}

type fakeChannels struct {
	list []channel.Channel
}

func (f *fakeChannels) ListActiveByOwner(_ context.Context, ownerID int64) ([]channel.Channel, error) {
	var out []channel.Channel
	for _, c := range f.list {
		if c.OwnerID == ownerID && c.Active {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeChannels) GetByID(_ context.Context, id int64) (*channel.Channel, error) {
	for _, c := range f.list {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, channel.ErrNotFound
}

func TestNotifyOwnerPartialFailure(t *testing.T) {
	failing, _ := capture(t, http.StatusInternalServerError, "")
	healthy, c := capture(t, http.StatusOK, "")

	repo := &fakeChannels{list: []channel.Channel{
		{ID: 1, OwnerID: 7, Name: "A", Type: channel.TypeWebhook, Config: rawCfg(t, WebhookConfig{URL: failing.URL}), Active: true},
		{ID: 2, OwnerID: 7, Name: "B", Type: channel.TypeWebhook, Config: rawCfg(t, WebhookConfig{URL: healthy.URL}), Active: true},
		{ID: 3, OwnerID: 7, Name: "C", Type: channel.TypeWebhook, Config: rawCfg(t, WebhookConfig{URL: healthy.URL}), Active: false},
		{ID: 4, OwnerID: 8, Name: "D", Type: channel.TypeWebhook, Config: rawCfg(t, WebhookConfig{URL: healthy.URL}), Active: true},
	}}
	d := NewDispatcher(repo, NewSenders(http.DefaultClient, SenderConfig{}), time.Second, zap.NewNop())

	p := DownPayload("API", "https://api.example.com", "HTTP 503", at)
	res, err := d.NotifyOwner(context.Background(), 7, p)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []string{"A: webhook error: 500"}, res.Errors)
	assert.Error(t, res.Err())
	assert.Equal(t, 1, c.hits)

	var got Payload
	require.NoError(t, json.Unmarshal(c.body, &got))
	assert.Equal(t, p, got)
}

func TestNotifyOwnerNoChannels(t *testing.T) {
	d := NewDispatcher(&fakeChannels{}, nil, time.Second, zap.NewNop())
	res, err := d.NotifyOwner(context.Background(), 1, TestPayload(at))
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.NoError(t, res.Err())
}

func TestDispatcherTest(t *testing.T) {
	srv, c := capture(t, http.StatusOK, "")
	repo := &fakeChannels{list: []channel.Channel{
		{ID: 5, Name: "hook", Type: channel.TypeWebhook, Config: rawCfg(t, WebhookConfig{URL: srv.URL})},
	}}
	d := NewDispatcher(repo, NewSenders(srv.Client(), SenderConfig{}), time.Second, zap.NewNop())
	d.now = func() time.Time { return at }

	require.NoError(t, d.TestChannel(context.Background(), 5))
	var got Payload
	require.NoError(t, json.Unmarshal(c.body, &got))
	assert.Equal(t, "Test Notification", got.Title)
	assert.Equal(t, "This is a test notification from your Uptime Monitor.", got.Message)

	assert.ErrorIs(t, d.TestChannel(context.Background(), 99), channel.ErrNotFound)
	assert.EqualError(t, d.Test(context.Background(), "sms", nil), "unknown notification type: sms")
	assert.ErrorIs(t, d.Test(context.Background(), channel.TypeEmail, nil), ErrNotImplemented)
}
