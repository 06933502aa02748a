package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PaymentsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "servineo_payments_created_total",
		Help: "Payments created",
	})

	PaymentsPaid = promauto.NewCounter(prometheus.CounterOpts{
		Name: "servineo_payments_paid_total",
		Help: "Payments confirmed as paid",
	})

	ConfirmAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "servineo_confirm_attempts_total",
		Help: "Confirmation attempts by outcome",
	}, []string{"outcome"})

	Lockouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "servineo_confirm_lockouts_total",
		Help: "Lockouts applied after exhausting the attempt budget",
	})

	CodesRegenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "servineo_codes_regenerated_total",
		Help: "Confirmation codes regenerated by the requester",
	})
)
