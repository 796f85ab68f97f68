//go:generate go run go.uber.org/mock/mockgen -source=collaborators.go -destination=../mocks/mock_collaborators.go -package=mocks
package groupchat

import (
	"context"
	"io"

	"github.com/eduflow/eduflow-chat-sdk-go/groupchat/rest"
)

// GroupDetailsFetcher loads a group with its stored messages. *rest.Client
// implements it.
type GroupDetailsFetcher interface {
	GroupDetails(ctx context.Context, groupID string) (*rest.GroupDetailsResponse, error)
}

// GroupLeaver removes the current user from a group on the server.
type GroupLeaver interface {
	LeaveGroup(ctx context.Context, groupID string) error
}

// ImageSender uploads an image to a group. The server broadcasts the
// resulting message over the live channel.
type ImageSender interface {
	SendImage(ctx context.Context, groupID, filename, contentType string, r io.Reader) error
}

// Navigator moves the user away from a group view after leaving it.
type Navigator interface {
	NavigateAway(groupID string)
}
