package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ApplicationsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collably_applications_submitted_total",
		Help: "Total campaign applications submitted",
	})

	ApplicationsDecided = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collably_applications_decided_total",
		Help: "Total application decisions",
	}, []string{"decision"})

	OrdersAdvanced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collably_orders_advanced_total",
		Help: "Total order lifecycle events applied",
	}, []string{"event"})

	EscrowMovements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collably_escrow_movements_total",
		Help: "Total escrow fund movements",
	}, []string{"movement"})

	EscrowAmount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collably_escrow_amount_cents_total",
		Help: "Total cents moved through escrow",
	}, []string{"movement"})

	WorkflowErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collably_workflow_errors_total",
		Help: "Total workflow operations rejected",
	}, []string{"kind"})
)
