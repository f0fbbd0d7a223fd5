package channel

import "encoding/json"

type Type string

const (
	TypeTelegram Type = "telegram"
	TypeDiscord  Type = "discord"
	TypeSlack    Type = "slack"
	TypeTeams    Type = "teams"
	TypeWebhook  Type = "webhook"
	TypePushover Type = "pushover"
	TypeEmail    Type = "email"
)

type Channel struct {
	ID      int64           `json:"id"`
	OwnerID int64           `json:"owner_id"`
	Name    string          `json:"name"`
	Type    Type            `json:"type"`
	Config  json.RawMessage `json:"config"`
	Active  bool            `json:"active"`
}
