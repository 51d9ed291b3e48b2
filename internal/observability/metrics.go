package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec

	ticketsCreatedTotal    *prometheus.CounterVec
	ticketTransitionsTotal *prometheus.CounterVec
	assignmentsTotal       *prometheus.CounterVec

	notificationsDispatchedTotal *prometheus.CounterVec
	notificationsSuppressedTotal *prometheus.CounterVec
	streamClientsActive          prometheus.Gauge

	chatConnectionsTotal      prometheus.Counter
	chatMessagesSentTotal     prometheus.Counter
	chatMessagesArchivedTotal prometheus.Counter

	loginAttemptsTotal   *prometheus.CounterVec
	accountLockoutsTotal prometheus.Counter

	uploadRequestsTotal  *prometheus.CounterVec
	uploadRejectedTotal  *prometheus.CounterVec
	uploadLatencySeconds prometheus.Histogram
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "helpdesk_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		ticketsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_tickets_created_total",
			Help: "Tickets submitted, labelled by category and urgency.",
		}, []string{"category", "urgency"})

		ticketTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_ticket_transitions_total",
			Help: "Ticket status transitions that committed.",
		}, []string{"from", "to"})

		assignmentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_assignments_total",
			Help: "Assignment routing outcomes.",
		}, []string{"outcome"})

		notificationsDispatchedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_notifications_dispatched_total",
			Help: "Notifications delivered to recipients, by event kind.",
		}, []string{"kind"})

		notificationsSuppressedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_notifications_suppressed_total",
			Help: "Notifications skipped because the recipient opted out.",
		}, []string{"kind"})

		streamClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "helpdesk_stream_clients_active",
			Help: "Currently connected notification stream clients.",
		})

		chatConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "helpdesk_chat_connections_total",
			Help: "Websocket chat connections accepted.",
		})

		chatMessagesSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "helpdesk_chat_messages_sent_total",
			Help: "Chat messages persisted and broadcast.",
		})

		chatMessagesArchivedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "helpdesk_chat_messages_archived_total",
			Help: "Chat messages frozen by conversation archival.",
		})

		loginAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_login_attempts_total",
			Help: "Sign-in attempts by outcome.",
		}, []string{"outcome"})

		accountLockoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "helpdesk_account_lockouts_total",
			Help: "Accounts locked after repeated failed sign-ins.",
		})

		uploadRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_upload_requests_total",
			Help: "Attachments stored, by detected type.",
		}, []string{"type"})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_upload_rejected_total",
			Help: "Attachments rejected, by reason.",
		}, []string{"reason"})

		uploadLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "helpdesk_upload_latency_seconds",
			Help:    "End to end attachment upload latency.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			ticketsCreatedTotal, ticketTransitionsTotal, assignmentsTotal,
			notificationsDispatchedTotal, notificationsSuppressedTotal, streamClientsActive,
			chatConnectionsTotal, chatMessagesSentTotal, chatMessagesArchivedTotal,
			loginAttemptsTotal, accountLockoutsTotal,
			uploadRequestsTotal, uploadRejectedTotal, uploadLatencySeconds,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// TicketsCreated exposes the counter for submitted tickets.
func TicketsCreated() *prometheus.CounterVec {
	RegisterMetrics()
	return ticketsCreatedTotal
}

// TicketTransitions exposes the counter for committed status transitions.
func TicketTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return ticketTransitionsTotal
}

// AssignmentsTotal exposes the counter for assignment outcomes.
func AssignmentsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return assignmentsTotal
}

// NotificationsDispatched exposes the counter for delivered notifications.
func NotificationsDispatched() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsDispatchedTotal
}

// NotificationsSuppressed exposes the counter for opted-out deliveries.
func NotificationsSuppressed() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsSuppressedTotal
}

// StreamClientsActive exposes the gauge of live stream subscribers.
func StreamClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return streamClientsActive
}

// ChatConnectionsTotal exposes the counter for accepted chat sockets.
func ChatConnectionsTotal() prometheus.Counter {
	RegisterMetrics()
	return chatConnectionsTotal
}

// ChatMessagesSent exposes the counter for persisted chat messages.
func ChatMessagesSent() prometheus.Counter {
	RegisterMetrics()
	return chatMessagesSentTotal
}

// ChatMessagesArchived exposes the counter for archived chat messages.
func ChatMessagesArchived() prometheus.Counter {
	RegisterMetrics()
	return chatMessagesArchivedTotal
}

// LoginAttempts exposes the sign-in counter for the given outcome.
func LoginAttempts(outcome string) prometheus.Counter {
	RegisterMetrics()
	return loginAttemptsTotal.WithLabelValues(outcome)
}

// AccountLockouts exposes the counter for tripped lockouts.
func AccountLockouts() prometheus.Counter {
	RegisterMetrics()
	return accountLockoutsTotal
}

// UploadRequests exposes the counter for stored attachments.
func UploadRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRequestsTotal
}

// UploadRejected exposes the counter for rejected attachments.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

// UploadLatency exposes the upload latency histogram.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatencySeconds
}
