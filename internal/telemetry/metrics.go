package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Счётчики цикла распродажи. Регистрируются в глобальном реестре,
// отдаются сервером /metrics.
var (
	ListingsPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seller_listings_placed_total",
		Help: "Listings successfully placed on the market.",
	})

	ListingsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seller_listings_cancelled_total",
		Help: "Listings cancelled during cleanup rounds.",
	})

	ListingsConfirmed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seller_listings_confirmed_total",
		Help: "Listings confirmed after a pending-confirmation reply.",
	})

	ItemsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seller_items_dropped_total",
		Help: "Items dropped from a run after repeated inventory misses.",
	})

	RetryCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seller_retry_cycles_total",
		Help: "Retry cycles of remote calls by error class.",
	}, []string{"class"})

	SolverFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seller_solver_fallbacks_total",
		Help: "Selections served by the greedy fallback by solver status.",
	}, []string{"status"})

	Runs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seller_runs_total",
		Help: "Liquidation runs by outcome.",
	}, []string{"outcome"})
)
