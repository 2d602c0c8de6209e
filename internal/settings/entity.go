package settings

import (
	"encoding/json"
	"time"
)

// Section names for the systemsettings document.
const (
	SectionSMTP   = "smtp"
	SectionTeams  = "teams"
	SectionSlack  = "slack"
	SectionPortal = "portal"
)

// Section is one persisted configuration block. Config is stored as JSONB;
// the version implements optimistic locking on saves.
type Section struct {
	Name      string          `db:"name"`
	Config    json.RawMessage `db:"config"`
	Version   int64           `db:"version"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// SMTPConfig is the outbound mail configuration.
type SMTPConfig struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	EnableSSL   bool   `json:"enableSsl"`
	UserName    string `json:"userName"`
	Password    string `json:"password"`
	FromEmail   string `json:"fromEmail"`
	DisplayName string `json:"displayName"`
	SenderName  string `json:"senderName"`
}

// TeamsConfig carries the OAuth client settings for Teams notifications.
type TeamsConfig struct {
	TenantID     string `json:"tenantId"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	Scope        string `json:"scope"`
	GrantType    string `json:"grantType"`
	TokenURL     string `json:"tokenUrl"`
}

// SlackConfig carries the webhook/bot settings for Slack notifications.
type SlackConfig struct {
	SlackWebhookURL  string `json:"slackWebhookURL"`
	SlackAppName     string `json:"slackAppName"`
	SlackChannelName string `json:"slackChannelName"`
	SlackBotToken    string `json:"slackBotToken"`
	SlackBotName     string `json:"slackBotName"`
	SlackBaseAddress string `json:"slackBaseAddress"`
}

// PortalConfig holds portal-wide defaults.
type PortalConfig struct {
	DefaultNotificationMethod string `json:"defaultNotificationMethod"`
}

// Payload renders the section the way the console expects: the config fields
// flattened alongside version and updatedAt.
func (s *Section) Payload() (map[string]any, error) {
	out := map[string]any{}
	if len(s.Config) > 0 {
		if err := json.Unmarshal(s.Config, &out); err != nil {
			return nil, err
		}
	}
	out["version"] = s.Version
	out["updatedAt"] = s.UpdatedAt
	return out, nil
}
