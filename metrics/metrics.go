package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MongoConnectAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mongograph_mongo_connect_attempts_total",
			Help: "MongoDB connection attempts by result (success, failure, timeout)",
		},
		[]string{"result"},
	)

	MongoConnectDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mongograph_mongo_connect_duration_seconds",
			Help:    "Time taken by a MongoDB connection attempt",
			Buckets: prometheus.DefBuckets,
		},
	)

	GraphQLRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mongograph_graphql_requests_total",
			Help: "GraphQL HTTP requests by response status code",
		},
		[]string{"code"},
	)

	GraphQLRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mongograph_graphql_request_duration_seconds",
			Help:    "Time taken to serve a GraphQL HTTP request",
			Buckets: prometheus.DefBuckets,
		},
	)

	UserStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mongograph_user_store_errors_total",
			Help: "User store operations that failed with an unexpected error",
		},
		[]string{"operation"},
	)
)
