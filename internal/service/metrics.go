package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/punchamoorthee/bankledger/internal/service")

var (
	balanceOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_balance_operations_total",
		Help: "Credit and transfer operations, labeled by outcome kind",
	}, []string{"operation", "outcome"})

	lockWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_lock_wait_seconds",
		Help:    "Time spent acquiring account row locks",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"operation"})
)
