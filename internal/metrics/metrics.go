package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks the routing core: live connections, online users, and
// message throughput. All methods are nil-safe so the hub and router can
// run without a registry in tests.
type Metrics struct {
	connections     prometheus.Gauge
	onlineUsers     prometheus.Gauge
	messagesRouted  *prometheus.CounterVec
	deliveries      prometheus.Counter
	rejectedEvents  prometheus.Counter
	authFailures    prometheus.Counter
	roomJoins       prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_connections",
			Help: "Currently registered WebSocket connections.",
		}),
		onlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_online_users",
			Help: "Distinct users with at least one live connection.",
		}),
		messagesRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_messages_routed_total",
			Help: "Inbound events accepted by the router, by kind.",
		}, []string{"kind"}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_deliveries_total",
			Help: "Outbound event writes to individual connections.",
		}),
		rejectedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_rejected_events_total",
			Help: "Inbound events rejected before or during routing.",
		}),
		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_auth_failures_total",
			Help: "WebSocket handshakes rejected for credential reasons.",
		}),
		roomJoins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_room_joins_total",
			Help: "Room subscriptions issued to the transport layer.",
		}),
	}

	reg.MustRegister(
		m.connections,
		m.onlineUsers,
		m.messagesRouted,
		m.deliveries,
		m.rejectedEvents,
		m.authFailures,
		m.roomJoins,
	)
	return m
}

func (m *Metrics) SetConnections(n int) {
	if m == nil {
		return
	}
	m.connections.Set(float64(n))
}

func (m *Metrics) SetOnlineUsers(n int) {
	if m == nil {
		return
	}
	m.onlineUsers.Set(float64(n))
}

func (m *Metrics) RecordRouted(kind string) {
	if m == nil {
		return
	}
	m.messagesRouted.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordDelivery() {
	if m == nil {
		return
	}
	m.deliveries.Inc()
}

func (m *Metrics) RecordRejected() {
	if m == nil {
		return
	}
	m.rejectedEvents.Inc()
}

func (m *Metrics) RecordAuthFailure() {
	if m == nil {
		return
	}
	m.authFailures.Inc()
}

func (m *Metrics) RecordRoomJoin() {
	if m == nil {
		return
	}
	m.roomJoins.Inc()
}
