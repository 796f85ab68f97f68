package groupchat

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eduflow/eduflow-chat-sdk-go/groupchat/rest"
)

func TestChatErrorMatchesByCode(t *testing.T) {
	req := require.New(t)
	cause := &rest.APIError{StatusCode: 404, Message: "Not found."}
	err := WrapError(ErrorFetch, "load group history", cause)

	req.ErrorIs(err, ErrFetch)
	req.NotErrorIs(err, ErrChannel)
	req.True(IsFetchError(err))
	req.False(IsProtocolError(err))

	var apiErr *rest.APIError
	req.ErrorAs(err, &apiErr)
	req.True(rest.IsNotFound(apiErr))
	req.Contains(err.Error(), "fetch_error")
	req.Contains(err.Error(), "Not found.")
}

func TestChatErrorThroughWrapping(t *testing.T) {
	req := require.New(t)
	err := fmt.Errorf("start: %w", NewError(ErrorProtocol, "frame has neither message nor image"))
	req.True(IsProtocolError(err))
	req.ErrorIs(err, ErrProtocol)
	req.False(IsChannelError(errors.New("plain")))
}

func TestTimeoutCountsAsChannelError(t *testing.T) {
	require.True(t, IsChannelError(NewError(ErrorTimeout, "heartbeat failed")))
}
