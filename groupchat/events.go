package groupchat

import (
	"strings"
	"time"

	"github.com/eduflow/eduflow-chat-sdk-go/groupchat/rest"
)

// Identity is the current user, used to mark message ownership.
type Identity struct {
	ID       string
	Username string
}

// Owns reports whether a message with the given sender belongs to the user.
// Empty values never match.
func (i Identity) Owns(senderID, senderName string) bool {
	if i.ID != "" && senderID == i.ID {
		return true
	}
	return i.Username != "" && senderName == i.Username
}

// Visibility of a group.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Group is a metadata snapshot. It is only ever replaced by a full re-fetch.
type Group struct {
	ID          string
	Name        string
	Description string
	Visibility  Visibility
	Status      string
	MemberCount int
	CreatedAt   time.Time
}

// InviteLink returns the shareable chat link of the group under a web app base URL.
func (g Group) InviteLink(appBaseURL string) string {
	return strings.TrimRight(appBaseURL, "/") + "/groups/chat/" + g.ID + "/"
}

// Attachment is an image reference carried by a message.
type Attachment struct {
	URL string
}

// Source tells where a message entered the store from.
type Source int

const (
	SourceHistory Source = iota
	SourceLive
)

func (s Source) String() string {
	if s == SourceLive {
		return "live"
	}
	return "history"
}

// Message is an immutable chat message.
type Message struct {
	ID           string
	SenderID     string
	SenderName   string
	SenderAvatar string
	Body         string
	Attachment   *Attachment
	CreatedAt    time.Time
	IsOwn        bool
	Source       Source
	// ServerTime is false when CreatedAt is the local receipt time.
	ServerTime bool
}

// HasContent reports whether the message carries text or an image.
func (m Message) HasContent() bool {
	return strings.TrimSpace(m.Body) != "" || (m.Attachment != nil && m.Attachment.URL != "")
}

func groupFromInfo(info rest.GroupInfo, members int) Group {
	vis := VisibilityPublic
	if info.Type == rest.GroupTypePrivate {
		vis = VisibilityPrivate
	}
	return Group{
		ID:          info.ID.String(),
		Name:        info.Name,
		Description: info.Description,
		Visibility:  vis,
		Status:      info.Status,
		MemberCount: members,
		CreatedAt:   info.CreatedAt,
	}
}

func messageFromHistory(row rest.GroupMessageInfo, self Identity) Message {
	msg := Message{
		ID:           row.ID.String(),
		SenderID:     row.User.String(),
		SenderName:   row.Username,
		SenderAvatar: row.ProfilePic,
		Body:         row.Message,
		CreatedAt:    row.CreatedAt,
		IsOwn:        self.Owns(row.User.String(), row.Username),
		Source:       SourceHistory,
		ServerTime:   true,
	}
	if row.Image != "" {
		msg.Attachment = &Attachment{URL: row.Image}
	}
	return msg
}

// messageFromEvent builds a store entry from a live frame. Frames without a
// server id get newID(); frames without a timestamp get receivedAt.
func messageFromEvent(ev LiveEvent, self Identity, receivedAt time.Time, newID func() string) Message {
	var msg Message
	var sentAt time.Time
	switch e := ev.(type) {
	case TextMessage:
		msg = Message{ID: e.ID, SenderName: e.From, Body: e.Text}
		sentAt = e.SentAt
	case ImageMessage:
		msg = Message{ID: e.ID, SenderName: e.From, Body: e.Caption, Attachment: &Attachment{URL: e.ImageURL}}
		sentAt = e.SentAt
	}
	if msg.ID == "" {
		msg.ID = newID()
	}
	msg.Source = SourceLive
	msg.IsOwn = self.Owns("", msg.SenderName)
	if sentAt.IsZero() {
		msg.CreatedAt = receivedAt
	} else {
		msg.CreatedAt = sentAt
		msg.ServerTime = true
	}
	return msg
}
