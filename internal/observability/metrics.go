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

	chatMessagesTotal    *prometheus.CounterVec
	chatConnectionsTotal prometheus.Counter
	chatEditsTotal       *prometheus.CounterVec

	uploadRequestsTotal  *prometheus.CounterVec
	uploadRejectedTotal  *prometheus.CounterVec
	uploadLatencySeconds prometheus.Histogram

	invitesTotal *prometheus.CounterVec

	engineSendsTotal      *prometheus.CounterVec
	engineRecordingsTotal *prometheus.CounterVec
	engineMalformedTotal  *prometheus.CounterVec
	engineInvitesTotal    *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the chat store and engine.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		chatMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Chat messages accepted by the store, by transport kind.",
		}, []string{"kind"})

		chatConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_connections_total",
			Help: "Websocket subscriptions opened against chat streams.",
		})

		chatEditsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_edits_total",
			Help: "Event message edits by outcome.",
		}, []string{"outcome"})

		uploadRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upload_requests_total",
			Help: "Attachments stored, by normalised mime type.",
		}, []string{"type"})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upload_rejected_total",
			Help: "Attachments rejected, by reason.",
		}, []string{"reason"})

		uploadLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "upload_latency_seconds",
			Help:    "Time spent validating and storing attachments.",
			Buckets: prometheus.DefBuckets,
		})

		invitesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "activity_invites_total",
			Help: "Activity invitations recorded by the store, by outcome.",
		}, []string{"outcome"})

		engineSendsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_engine_sends_total",
			Help: "Send attempts made by the chat engine, by outcome.",
		}, []string{"outcome"})

		engineRecordingsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_engine_recordings_total",
			Help: "Voice recordings finished by the chat engine, by outcome.",
		}, []string{"outcome"})

		engineMalformedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_engine_malformed_payloads_total",
			Help: "Tagged message bodies that failed to decode, by tag.",
		}, []string{"tag"})

		engineInvitesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_engine_invites_total",
			Help: "Invite attempts made by the chat engine, by outcome.",
		}, []string{"outcome"})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			chatMessagesTotal, chatConnectionsTotal, chatEditsTotal,
			uploadRequestsTotal, uploadRejectedTotal, uploadLatencySeconds,
			invitesTotal,
			engineSendsTotal, engineRecordingsTotal, engineMalformedTotal, engineInvitesTotal,
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

// ChatMessagesSent exposes the counter of stored chat messages.
func ChatMessagesSent() *prometheus.CounterVec {
	RegisterMetrics()
	return chatMessagesTotal
}

// ChatConnectionsTotal exposes the websocket subscription counter.
func ChatConnectionsTotal() prometheus.Counter {
	RegisterMetrics()
	return chatConnectionsTotal
}

// ChatEdits exposes the event edit counter.
func ChatEdits() *prometheus.CounterVec {
	RegisterMetrics()
	return chatEditsTotal
}

// UploadRequests exposes the stored attachment counter.
func UploadRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRequestsTotal
}

// UploadRejected exposes the rejected attachment counter.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

// UploadLatency exposes the attachment storage histogram.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatencySeconds
}

// Invites exposes the server side invitation counter.
func Invites() *prometheus.CounterVec {
	RegisterMetrics()
	return invitesTotal
}

// EngineSends exposes the engine send counter.
func EngineSends() *prometheus.CounterVec {
	RegisterMetrics()
	return engineSendsTotal
}

// EngineRecordings exposes the engine recording counter.
func EngineRecordings() *prometheus.CounterVec {
	RegisterMetrics()
	return engineRecordingsTotal
}

// EngineMalformedPayloads exposes the malformed payload counter.
func EngineMalformedPayloads() *prometheus.CounterVec {
	RegisterMetrics()
	return engineMalformedTotal
}

// EngineInvites exposes the engine invite counter.
func EngineInvites() *prometheus.CounterVec {
	RegisterMetrics()
	return engineInvitesTotal
}
