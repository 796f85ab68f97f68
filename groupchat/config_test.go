package groupchat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	req := require.New(t)
	cfg := DefaultConfig()
	req.NoError(cfg.Validate())
	req.False(cfg.Reconnect.Enabled)
	req.Equal("access", cfg.AccessCookie)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing api url", func(c *Config) { c.APIBaseURL = "" }},
		{"api url not a url", func(c *Config) { c.APIBaseURL = "localhost" }},
		{"channel url without placeholder", func(c *Config) { c.ChannelURL = "ws://localhost:8000/ws/chat/" }},
		{"channel url with http scheme", func(c *Config) { c.ChannelURL = "http://localhost:8000/ws/chat/{group_id}/" }},
		{"empty cookie name", func(c *Config) { c.AccessCookie = "" }},
		{"zero send buffer", func(c *Config) { c.SendBuffer = 0 }},
		{"negative timeout", func(c *Config) { c.WriteTimeout = -1 }},
		{"jitter above one", func(c *Config) { c.Reconnect.Jitter = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.True(t, hasCode(err, ErrorInvalidConfig))
		})
	}
}

func TestChannelURLEscapesGroupID(t *testing.T) {
	req := require.New(t)
	cfg := DefaultConfig()
	req.Equal("ws://localhost:8000/ws/chat/g1/", cfg.channelURL("g1"))
	req.Equal("ws://localhost:8000/ws/chat/a%2Fb/", cfg.channelURL("a/b"))
}
