package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const tracerName = "github.com/eduflow/eduflow-chat-sdk-go/groupchat/rest"

// refreshTimeout bounds a token refresh shared by concurrent 401s.
const refreshTimeout = 30 * time.Second

// Client provides REST API access to the EduFlow backend.
type Client struct {
	baseURL      string
	accessCookie string
	httpClient   *http.Client
	tracer       trace.Tracer

	mu           sync.RWMutex
	token        string
	refreshToken string
	refreshes    singleflight.Group
}

// NewClient creates a new REST API client.
// baseURL should be the base URL of the API, e.g., "http://localhost:8000/api".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:      baseURL,
		accessCookie: "access",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		tracer: otel.Tracer(tracerName),
	}
}

// SetHTTPClient allows setting a custom HTTP client.
func (c *Client) SetHTTPClient(client *http.Client) {
	if client != nil {
		c.httpClient = client
	}
}

// SetAccessCookie overrides the cookie name carrying the access token.
func (c *Client) SetAccessCookie(name string) {
	if name != "" {
		c.accessCookie = name
	}
}

// SetToken sets the JWT access token for authenticated requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// SetRefreshToken enables one transparent refresh-and-replay on 401.
func (c *Client) SetRefreshToken(token string) {
	c.mu.Lock()
	c.refreshToken = token
	c.mu.Unlock()
}

// Token returns the current access token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Group endpoints

// GroupDetails returns group metadata, member count and message history.
func (c *Client) GroupDetails(ctx context.Context, groupID string) (*GroupDetailsResponse, error) {
	var resp GroupDetailsResponse
	err := c.call(ctx, "rest.GroupDetails", groupID, func(ctx context.Context) (*http.Request, error) {
		return c.jsonRequest(ctx, http.MethodPost, "/groups/group-details/", groupIDRequest{ID: groupID})
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// LeaveGroup removes the authenticated user from a group.
func (c *Client) LeaveGroup(ctx context.Context, groupID string) error {
	return c.call(ctx, "rest.LeaveGroup", groupID, func(ctx context.Context) (*http.Request, error) {
		return c.jsonRequest(ctx, http.MethodPost, "/groups/leave-group/", groupIDRequest{ID: groupID})
	}, nil)
}

// SendImage uploads an image to a group as multipart form data. The response
// body is not consumed: the resulting chat message arrives over the live channel.
func (c *Client) SendImage(ctx context.Context, groupID, filename, contentType string, r io.Reader) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("id", groupID); err != nil {
		return fmt.Errorf("write form field: %w", err)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create form part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("copy image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}
	body := buf.Bytes()

	return c.call(ctx, "rest.SendImage", groupID, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/groups/send-image/", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return req, nil
	}, nil)
}

// Account endpoints

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*UserInfo, error) {
	var resp UserInfo
	err := c.call(ctx, "rest.Me", "", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/accounts/me/", http.NoBody)
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// RefreshToken exchanges the refresh token for a new access token.
func (c *Client) RefreshToken(ctx context.Context) error {
	c.mu.RLock()
	refresh := c.refreshToken
	c.mu.RUnlock()
	if refresh == "" {
		return errors.New("no refresh token")
	}

	req, err := c.jsonRequest(ctx, http.MethodPost, "/accounts/token/refresh/", refreshRequest{Refresh: refresh})
	if err != nil {
		return err
	}
	req.AddCookie(&http.Cookie{Name: "refresh", Value: refresh})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return newAPIError(resp.StatusCode, body)
	}

	access := ""
	for _, ck := range resp.Cookies() {
		if ck.Name == c.accessCookie {
			access = ck.Value
		}
	}
	if access == "" && len(body) > 0 {
		var rr refreshResponse
		if err := json.Unmarshal(body, &rr); err == nil {
			access = rr.Access
		}
	}
	if access == "" {
		return errors.New("refresh response carried no access token")
	}
	c.SetToken(access)
	return nil
}

// Helper methods

type requestFunc func(ctx context.Context) (*http.Request, error)

// call runs one authenticated request inside a span. A 401 triggers a single
// shared token refresh and one replay of the request.
func (c *Client) call(ctx context.Context, op, groupID string, build requestFunc, dest any) error {
	ctx, span := c.tracer.Start(ctx, op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	if groupID != "" {
		span.SetAttributes(attribute.String("eduflow.group_id", groupID))
	}

	status, err := c.send(ctx, build, dest)
	if status == http.StatusUnauthorized && c.canRefresh() {
		span.AddEvent("token refresh")
		_, rerr, _ := c.refreshes.Do("refresh", func() (any, error) {
			// Shared by every waiting caller, so it must not end with the first one.
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
			defer cancel()
			return nil, c.RefreshToken(rctx)
		})
		if rerr == nil {
			status, err = c.send(ctx, build, dest)
		}
	}

	span.SetAttributes(attribute.Int("http.response.status_code", status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) canRefresh() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshToken != ""
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) send(ctx context.Context, build requestFunc, dest any) (int, error) {
	req, err := build(ctx)
	if err != nil {
		return 0, err
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
		req.AddCookie(&http.Cookie{Name: c.accessCookie, Value: token})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return resp.StatusCode, newAPIError(resp.StatusCode, body)
	}

	if dest != nil {
		if err := json.Unmarshal(body, dest); err != nil {
			return resp.StatusCode, fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func newAPIError(status int, body []byte) *APIError {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		if errResp.Error != "" {
			return &APIError{StatusCode: status, Message: errResp.Error}
		}
		if errResp.Detail != "" {
			return &APIError{StatusCode: status, Message: errResp.Detail}
		}
	}
	return &APIError{StatusCode: status, Message: string(body)}
}
