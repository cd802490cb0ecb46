package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fcm_api_requests_total", Help: "API requests"},
		[]string{"endpoint", "status"},
	)
	Enqueues = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fcm_enqueue_total", Help: "SQS enqueue results"},
		[]string{"result"},
	)
	FCMSend = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fcm_send_total", Help: "FCM send outcomes"},
		[]string{"kind", "result"},
	)
	FCMLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "fcm_send_latency_seconds", Help: "FCM send latency"},
	)
	Retries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fcm_send_retries_total", Help: "Async send retries"},
		[]string{"terminal"},
	)
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fcm_webhook_deliveries_total", Help: "Webhook delivery outcomes"},
		[]string{"event", "result"},
	)
	SweepResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fcm_sweep_total", Help: "Periodic sweep results"},
		[]string{"sweep", "result"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(APIRequests, Enqueues, FCMSend, FCMLatency, Retries, WebhookDeliveries, SweepResults)
}
