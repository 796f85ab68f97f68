package groupchat

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/eduflow/eduflow-chat-sdk-go/groupchat/rest"
)

// History is the result of a history load: group metadata plus the stored
// messages, oldest first.
type History struct {
	Group       Group
	Messages    []Message
	MemberCount int
}

// HistoryFetcher loads the history of a group.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, groupID string) (*History, error)
}

// HistoryLoader implements HistoryFetcher on top of the group details endpoint.
type HistoryLoader struct {
	api     GroupDetailsFetcher
	self    Identity
	logger  Logger
	metrics *Metrics
}

func NewHistoryLoader(api GroupDetailsFetcher, self Identity) *HistoryLoader {
	return &HistoryLoader{api: api, self: self, logger: noopLogger{}}
}

// SetLogger overrides logger (optional).
func (h *HistoryLoader) SetLogger(l Logger) {
	if l == nil {
		return
	}
	h.logger = l
}

// SetMetrics attaches Prometheus collectors (optional).
func (h *HistoryLoader) SetMetrics(m *Metrics) { h.metrics = m }

// FetchHistory loads group metadata and messages. Rows with neither text nor
// image are skipped. Failures are returned as ErrorFetch.
func (h *HistoryLoader) FetchHistory(ctx context.Context, groupID string) (*History, error) {
	start := time.Now()
	resp, err := h.api.GroupDetails(ctx, groupID)
	h.metrics.historyFetched(time.Since(start))
	if err != nil {
		h.logger.Warn("history load failed", map[string]any{"group_id": groupID, "error": err.Error()})
		return nil, WrapError(ErrorFetch, "load group history", err)
	}

	rows := lo.Filter(resp.GroupMessages, func(row rest.GroupMessageInfo, _ int) bool {
		return strings.TrimSpace(row.Message) != "" || row.Image != ""
	})
	if skipped := len(resp.GroupMessages) - len(rows); skipped > 0 {
		h.logger.Warn("skipped empty history rows", map[string]any{"group_id": groupID, "count": skipped})
	}

	msgs := lo.Map(rows, func(row rest.GroupMessageInfo, _ int) Message {
		msg := messageFromHistory(row, h.self)
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		return msg
	})

	h.logger.Debug("history loaded", map[string]any{"group_id": groupID, "messages": len(msgs)})
	return &History{
		Group:       groupFromInfo(resp.Group, resp.UsersCount),
		Messages:    msgs,
		MemberCount: resp.UsersCount,
	}, nil
}
