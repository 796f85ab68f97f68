package rest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ID is a backend identifier. The API mixes UUID strings and integer keys,
// so both JSON strings and numbers are accepted.
type ID string

// UnmarshalJSON accepts a JSON string, number or null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Group types

// GroupType is the visibility of a group.
type GroupType string

const (
	GroupTypePublic  GroupType = "public"
	GroupTypePrivate GroupType = "private"
)

// GroupInfo represents group metadata.
type GroupInfo struct {
	ID          ID        `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Type        GroupType `json:"type"`
	Status      string    `json:"status"`
	CreatedBy   ID        `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// GroupMessageInfo represents a single message in the history.
type GroupMessageInfo struct {
	ID         ID        `json:"id"`
	User       ID        `json:"user"`
	Username   string    `json:"username"`
	ProfilePic string    `json:"profile_pic"`
	Image      string    `json:"image"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

// GroupDetailsResponse is the group-details snapshot.
type GroupDetailsResponse struct {
	Group         GroupInfo          `json:"group"`
	UsersCount    int                `json:"users_count"`
	GroupMessages []GroupMessageInfo `json:"group_messages"`
}

type groupIDRequest struct {
	ID string `json:"id"`
}

// Account types

// UserInfo describes the authenticated user.
type UserInfo struct {
	ID         ID     `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	ProfilePic string `json:"profile_pic"`
}

type refreshRequest struct {
	Refresh string `json:"refresh,omitempty"`
}

type refreshResponse struct {
	Access string `json:"access"`
}

// Errors

// ErrorResponse represents an API error body.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// APIError is returned for any response with status >= 400.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool { return hasStatus(err, http.StatusNotFound) }

// IsUnauthorized reports whether err is a 401 or 403 from the API.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized) || hasStatus(err, http.StatusForbidden)
}

func hasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
