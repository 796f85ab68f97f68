package groupchat

import (
	"context"
	"fmt"
	"net/http"

	"github.com/eduflow/eduflow-chat-sdk-go/groupchat/rest"
)

// Client provides high-level SDK for EduFlow group chat. It owns the REST
// client and builds sessions wired to it.
type Client struct {
	cfg     Config
	REST    *rest.Client
	logger  Logger
	metrics *Metrics
}

// NewClient constructs a client with provided config.
// Use DefaultConfig() as a starting point and call Config.Validate before.
// Set a timeout to 0 to disable it.
func NewClient(cfg Config) *Client {
	api := rest.NewClient(cfg.APIBaseURL)
	api.SetAccessCookie(cfg.AccessCookie)
	api.SetToken(cfg.AccessToken)
	api.SetRefreshToken(cfg.RefreshToken)
	api.SetHTTPClient(&http.Client{Timeout: cfg.RequestTimeout})

	return &Client{
		cfg:    cfg,
		REST:   api,
		logger: noopLogger{},
	}
}

// SetLogger overrides logger (optional).
func (c *Client) SetLogger(l Logger) {
	if l == nil {
		return
	}
	c.logger = l
}

// SetMetrics attaches Prometheus collectors to every session built later.
func (c *Client) SetMetrics(m *Metrics) { c.metrics = m }

// Config returns the client configuration.
func (c *Client) Config() Config { return c.cfg }

// ResolveIdentity determines the current user from the access token claims,
// asking the backend for whatever the token does not carry.
func (c *Client) ResolveIdentity(ctx context.Context) (Identity, error) {
	var id Identity
	if tok := c.REST.Token(); tok != "" {
		if claims, err := IdentityFromToken(tok); err == nil {
			id = claims
		} else {
			c.logger.Debug("token carries no identity", map[string]any{"error": err.Error()})
		}
	}
	if id.ID != "" && id.Username != "" {
		return id, nil
	}

	me, err := c.REST.Me(ctx)
	if err != nil {
		return Identity{}, fmt.Errorf("resolve identity: %w", err)
	}
	if id.ID == "" {
		id.ID = me.ID.String()
	}
	id.Username = me.Username
	c.logger.Debug("identity resolved", map[string]any{"user_id": id.ID, "username": id.Username})
	return id, nil
}

// NewSession builds a session for self backed by this client's REST API and
// websocket endpoint. nav may be nil.
func (c *Client) NewSession(self Identity, nav Navigator) *Session {
	history := NewHistoryLoader(c.REST, self)
	history.SetLogger(c.logger)
	history.SetMetrics(c.metrics)

	s := NewSession(c.cfg, self, Deps{
		History:   history,
		Dialer:    NewWebsocketDialer(c.cfg, c.REST.Token),
		Leaver:    c.REST,
		Images:    c.REST,
		Navigator: nav,
	})
	s.SetLogger(c.logger)
	s.SetMetrics(c.metrics)
	return s
}
