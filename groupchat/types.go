package groupchat

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/eduflow/eduflow-chat-sdk-go/groupchat/rest"
)

// OutboundFrame is the envelope client -> server.
type OutboundFrame struct {
	Message  string `json:"message"`
	Username string `json:"username"`
}

// InboundFrame is the flat envelope server -> client. Optional fields are
// inferred by presence.
type InboundFrame struct {
	ID        rest.ID `json:"id,omitempty" validate:"omitempty,max=64"`
	Username  string  `json:"username" validate:"required"`
	Message   string  `json:"message,omitempty"`
	Image     string  `json:"image,omitempty" validate:"omitempty,max=2048"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// LiveEvent is a parsed inbound frame: either TextMessage or ImageMessage.
type LiveEvent interface {
	// Sender returns the username the server attributed the frame to.
	Sender() string
	isLiveEvent()
}

// TextMessage is a live frame carrying only text.
type TextMessage struct {
	ID     string    // server id, empty when the frame has none
	From   string    // username
	Text   string
	SentAt time.Time // zero when the frame carries no timestamp
}

// ImageMessage is a live frame carrying an image reference and an optional caption.
type ImageMessage struct {
	ID       string
	From     string
	ImageURL string
	Caption  string
	SentAt   time.Time
}

func (TextMessage) isLiveEvent()  {}
func (ImageMessage) isLiveEvent() {}

func (m TextMessage) Sender() string  { return m.From }
func (m ImageMessage) Sender() string { return m.From }

var frameValidator = validator.New()

// ParseInbound decodes and validates a raw inbound frame. Frames without a
// sender, or with neither text nor image, are rejected with ErrorProtocol.
func ParseInbound(raw json.RawMessage) (LiveEvent, error) {
	var f InboundFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, WrapError(ErrorProtocol, "malformed frame", err)
	}
	f.Username = strings.TrimSpace(f.Username)
	f.Image = strings.TrimSpace(f.Image)
	if err := frameValidator.Struct(f); err != nil {
		return nil, WrapError(ErrorProtocol, "invalid frame", err)
	}

	var sentAt time.Time
	if f.Timestamp != "" {
		ts, err := parseTimestamp(f.Timestamp)
		if err != nil {
			return nil, WrapError(ErrorProtocol, "invalid frame timestamp", err)
		}
		sentAt = ts
	}

	id := f.ID.String()
	switch {
	case f.Image != "":
		return ImageMessage{ID: id, From: f.Username, ImageURL: f.Image, Caption: f.Message, SentAt: sentAt}, nil
	case strings.TrimSpace(f.Message) != "":
		return TextMessage{ID: id, From: f.Username, Text: f.Message, SentAt: sentAt}, nil
	default:
		return nil, NewError(ErrorProtocol, "frame has neither message nor image")
	}
}

// naiveLayout matches isoformat() output of timezone-unaware backends.
const naiveLayout = "2006-01-02T15:04:05.999999999"

func parseTimestamp(v string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err == nil {
		return ts, nil
	}
	if naive, nerr := time.ParseInLocation(naiveLayout, v, time.UTC); nerr == nil {
		return naive, nil
	}
	return time.Time{}, err
}
