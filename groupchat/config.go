package groupchat

import (
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// GroupIDPlaceholder is replaced by the escaped group id in Config.ChannelURL.
const GroupIDPlaceholder = "{group_id}"

// Config controls how the SDK talks to the EduFlow backend.
type Config struct {
	APIBaseURL   string `validate:"required,url"`                   // e.g. http://localhost:8000/api
	ChannelURL   string `validate:"required,contains={group_id}"` // e.g. ws://localhost:8000/ws/chat/{group_id}/
	AccessToken  string // JWT sent as cookie and bearer token
	RefreshToken string
	AccessCookie string `validate:"required"`

	HandshakeTimeout time.Duration `validate:"gte=0"`
	ReadTimeout      time.Duration `validate:"gte=0"` // 0 disables; rely on PingInterval instead
	WriteTimeout     time.Duration `validate:"gte=0"`
	RequestTimeout   time.Duration `validate:"gte=0"`
	PingInterval     time.Duration `validate:"gte=0"`

	SendBuffer    int   `validate:"gte=1"`
	MaxFrameBytes int64 `validate:"gte=0"`

	Reconnect ReconnectConfig
}

// ReconnectConfig controls the session-level reconnect supervisor.
type ReconnectConfig struct {
	Enabled      bool
	MaxAttempts  int           `validate:"gte=0"` // 0 retries until the session ends
	InitialDelay time.Duration `validate:"gte=0"`
	MaxDelay     time.Duration `validate:"gte=0"`
	Factor       float64       `validate:"gte=0"`
	Jitter       float64       `validate:"gte=0,lte=1"`
}

// DefaultConfig returns sensible defaults for a local backend.
func DefaultConfig() Config {
	return Config{
		APIBaseURL:       "http://localhost:8000/api",
		ChannelURL:       "ws://localhost:8000/ws/chat/" + GroupIDPlaceholder + "/",
		AccessCookie:     "access",
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		RequestTimeout:   30 * time.Second,
		PingInterval:     25 * time.Second,
		SendBuffer:       16,
		MaxFrameBytes:    1 << 20,
		Reconnect:        DefaultReconnectConfig(),
	}
}

// DefaultReconnectConfig returns a baseline reconnect policy. It is disabled
// by default: a dropped channel ends the session.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		Enabled:      false,
		MaxAttempts:  5,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Factor:       2,
		Jitter:       0.2,
	}
}

var configValidator = validator.New()

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return WrapError(ErrorInvalidConfig, "invalid config", err)
	}
	u, err := url.Parse(strings.ReplaceAll(c.ChannelURL, GroupIDPlaceholder, "x"))
	if err != nil {
		return WrapError(ErrorInvalidConfig, "invalid channel url", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return NewError(ErrorInvalidConfig, "channel url must use ws or wss, got "+u.Scheme)
	}
	return nil
}

// channelURL renders the websocket address of a group.
func (c Config) channelURL(groupID string) string {
	return strings.ReplaceAll(c.ChannelURL, GroupIDPlaceholder, url.PathEscape(groupID))
}
