package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cartOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_operations_total",
			Help: "Total cart operations by type and outcome",
		},
		[]string{"operation", "result"},
	)

	providerConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cart_provider_conflicts_total",
			Help: "Total add attempts rejected because the cart held another provider's items",
		},
	)

	cartsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carts_expired_total",
			Help: "Total carts discarded after passing their expiry deadline",
		},
	)

	reservationSoftFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cart_reservation_soft_failures_total",
			Help: "Total stock reservation attempts that failed without blocking the cart mutation",
		},
	)
)

// observeOp records an operation outcome.
func observeOp(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	cartOperationsTotal.WithLabelValues(operation, result).Inc()
}
