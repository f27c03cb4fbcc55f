package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"mongograph/metrics"
	"mongograph/util"
)

// healthTimeout bounds the database ping behind /health
const healthTimeout = 2 * time.Second

// maxGraphQLBodySize caps a GraphQL request body
const maxGraphQLBodySize = 1 << 20

// handleGraphQL serves POST /graphql through the relay handler
func (a *API) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	r.Body = http.MaxBytesReader(rec, r.Body, maxGraphQLBodySize)
	a.graphql.ServeHTTP(rec, r)

	metrics.GraphQLRequests.WithLabelValues(strconv.Itoa(rec.status)).Inc()
	metrics.GraphQLRequestDuration.Observe(time.Since(start).Seconds())
}

type databaseHealth struct {
	Connected bool   `json:"connected"`
	Host      string `json:"host"`
	Error     string `json:"error,omitempty"`
}

type healthResponse struct {
	Status   string         `json:"status"`
	Time     string         `json:"time"`
	Database databaseHealth `json:"database"`
}

// healthCheck reports 200 when the database answers a ping, 503 otherwise
func (a *API) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{
		Status:   "healthy",
		Time:     time.Now().UTC().Format(time.RFC3339),
		Database: databaseHealth{Connected: true, Host: a.dbHost},
	}
	status := http.StatusOK

	if err := a.db.HealthCheck(ctx); err != nil {
		a.logger.Warnw("Database health check failed", "error", util.SanitizeError(err))
		resp.Status = "unhealthy"
		resp.Database.Connected = false
		resp.Database.Error = util.SanitizeError(err)
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}

// writeJSON writes v as a JSON response with the given status
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
