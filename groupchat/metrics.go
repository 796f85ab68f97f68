package groupchat

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the SDK's Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// MessagesReceived counts live messages appended. Labels: kind (text|image)
	MessagesReceived *prometheus.CounterVec

	// MessagesSent counts outbound frames handed to the write pump.
	MessagesSent prometheus.Counter

	// ProtocolErrors counts rejected inbound frames.
	ProtocolErrors prometheus.Counter

	// DuplicatesDropped counts inserts refused because the id was already stored.
	DuplicatesDropped prometheus.Counter

	// ChannelTransitions counts channel state changes. Labels: state
	ChannelTransitions *prometheus.CounterVec

	// Reconnects counts reconnect attempts. Labels: result (success|error)
	Reconnects *prometheus.CounterVec

	// Uploads counts attachment uploads. Labels: status (success|error)
	Uploads *prometheus.CounterVec

	// HistoryFetchDuration measures history loads in seconds.
	HistoryFetchDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		MessagesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eduflow_chat_messages_received_total",
			Help: "Live chat messages appended to the store by kind",
		}, []string{"kind"}),
		MessagesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "eduflow_chat_messages_sent_total",
			Help: "Outbound chat messages queued on the live channel",
		}),
		ProtocolErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "eduflow_chat_protocol_errors_total",
			Help: "Inbound frames rejected as malformed",
		}),
		DuplicatesDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "eduflow_chat_duplicates_dropped_total",
			Help: "Messages dropped because their id was already stored",
		}),
		ChannelTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eduflow_chat_channel_transitions_total",
			Help: "Live channel state transitions by new state",
		}, []string{"state"}),
		Reconnects: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eduflow_chat_reconnects_total",
			Help: "Live channel reconnect attempts by result",
		}, []string{"result"}),
		Uploads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eduflow_chat_uploads_total",
			Help: "Attachment uploads by status",
		}, []string{"status"}),
		HistoryFetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "eduflow_chat_history_fetch_duration_seconds",
			Help:    "Duration of group history loads in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
	}
}

func (m *Metrics) messageReceived(kind string) {
	if m != nil {
		m.MessagesReceived.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) messageSent() {
	if m != nil {
		m.MessagesSent.Inc()
	}
}

func (m *Metrics) protocolError() {
	if m != nil {
		m.ProtocolErrors.Inc()
	}
}

func (m *Metrics) duplicateDropped() {
	if m != nil {
		m.DuplicatesDropped.Inc()
	}
}

func (m *Metrics) channelState(s ChannelState) {
	if m != nil {
		m.ChannelTransitions.WithLabelValues(s.String()).Inc()
	}
}

func (m *Metrics) reconnect(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.Reconnects.WithLabelValues(result).Inc()
}

func (m *Metrics) upload(err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.Uploads.WithLabelValues(status).Inc()
}

func (m *Metrics) historyFetched(d time.Duration) {
	if m != nil {
		m.HistoryFetchDuration.Observe(d.Seconds())
	}
}
