package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PaymentReconciliations считает попытки сверки платежа по источнику (poll/webhook) и исходу.
	PaymentReconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_payment_reconciliations_total",
			Help: "Payment reconciliation attempts by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	// WebhookEvents считает входящие вебхуки шлюза по результату обработки.
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_payment_webhooks_total",
			Help: "Inbound payment gateway webhooks by result",
		},
		[]string{"result"},
	)

	// OTPVerifications считает попытки подтверждения аккаунта.
	OTPVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_otp_verifications_total",
			Help: "Account OTP verification attempts by result",
		},
		[]string{"result"},
	)

	// NotificationsSent считает отправку кодов по каналу и результату.
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_notifications_sent_total",
			Help: "Outbound notifications by channel and result",
		},
		[]string{"channel", "result"},
	)

	// GatewayDuration длительность вызовов платёжного шлюза.
	GatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shop_payment_gateway_duration_seconds",
			Help:    "Payment gateway call duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "result"},
	)

	// HTTPRequestDuration длительность HTTP запросов по маршруту.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shop_http_request_duration_seconds",
			Help:    "HTTP request duration by route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// ObserveGateway фиксирует длительность вызова шлюза.
func ObserveGateway(operation string, started time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	GatewayDuration.WithLabelValues(operation, result).Observe(time.Since(started).Seconds())
}
