package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quantumshop_orders_created_total",
		Help: "Total number of orders successfully created.",
	})

	ReturnsAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quantumshop_returns_accepted_total",
		Help: "Total number of return requests successfully accepted.",
	})

	UsersRegisteredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quantumshop_users_registered_total",
		Help: "Total number of user profiles registered.",
	})

	StatusTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quantumshop_order_status_transitions_total",
		Help: "Total number of order status changes by target status and trigger.",
	},
		[]string{"status", "trigger"},
	)

	OperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quantumshop_operation_errors_total",
		Help: "Total number of errors encountered during specific operations.",
	},
		[]string{"operation"},
	)

	OrderCacheItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quantumshop_order_cache_items",
		Help: "Current number of items in the order cache.",
	})

	ChatRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quantumshop_chat_requests_total",
		Help: "Total number of chatbot requests by outcome.",
	},
		[]string{"outcome"},
	)

	CompletionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quantumshop_completion_duration_seconds",
		Help:    "Latency of chat completion API calls.",
		Buckets: prometheus.DefBuckets,
	})

	SessionsCleared = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quantumshop_sessions_cleared_total",
		Help: "Total number of conversation sessions cleared on request.",
	})

	OutboxTasksPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quantumshop_outbox_tasks_published_total",
		Help: "Outbox tasks handed to the broker by result.",
	},
		[]string{"result"},
	)

	GRPCRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quantumshop_grpc_requests_total",
		Help: "Total number of gRPC requests by method and code.",
	},
		[]string{"method", "code"},
	)
)
