package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "zipdrop",
		Name:      "orders_created_total",
		Help:      "Number of orders created.",
	})

	OrderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zipdrop",
		Name:      "order_transitions_total",
		Help:      "Number of order status transitions, by target status.",
	}, []string{"to_status"})

	OTPVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zipdrop",
		Name:      "otp_verifications_total",
		Help:      "Number of OTP verification attempts, by result.",
	}, []string{"result"})
)
