package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	applog "expensetracker/internal/log"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(r.Context(), w, http.StatusOK, map[string]any{
		"status": "healthy",
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleReady checks the store and the broker concurrently. A disconnected broker
// degrades readiness without failing it, since events are best effort.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var storeErr error
	brokerState := "not_configured"

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		storeErr = s.expenses.Ping(gctx)
		return storeErr
	})
	if s.broker != nil {
		g.Go(func() error {
			if s.broker.IsConnected() {
				brokerState = "ok"
			} else {
				brokerState = "disconnected"
			}
			return nil
		})
	}
	_ = g.Wait()

	checks := map[string]string{"store": "ok", "broker": brokerState}
	status, httpStatus := "ready", http.StatusOK
	if storeErr != nil {
		checks["store"] = fmt.Sprintf("failed: %v", storeErr)
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
		s.logger.WarnContext(r.Context(), "Readiness check failed", applog.FieldError, storeErr)
	} else if brokerState == "disconnected" {
		status = "degraded"
	}

	respondJSON(r.Context(), w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in the Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	traceMetrics := s.trace.GetMetrics()
	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	for _, k := range traceMetrics.SortedKeys() {
		fmt.Fprintf(w, "http_requests_total{method=%q,status=\"%d\"} %d\n", k.Method, k.Status, traceMetrics.ByMethodStatus[k])
	}
	fmt.Fprintf(w, "\n# HELP http_request_duration_seconds_sum Total time spent serving requests\n")
	fmt.Fprintf(w, "# TYPE http_request_duration_seconds_sum counter\n")
	fmt.Fprintf(w, "http_request_duration_seconds_sum %.6f\n\n", float64(traceMetrics.DurationMicros)/1e6)

	stats := s.expenses.Stats()
	writeCounter(w, "expenses_created_total", "Expenses created", stats.Created)
	writeCounter(w, "expenses_updated_total", "Expenses updated", stats.Updated)
	writeCounter(w, "expenses_deleted_total", "Expenses deleted", stats.Deleted)
	writeCounter(w, "expense_event_publish_failures_total", "Expense events that could not be published", stats.PublishFailures)

	sec := s.detector.GetMetrics()
	writeCounter(w, "security_suspicious_requests_total", "Requests matching a probe pattern", sec.SuspiciousRequests)
	writeCounter(w, "security_invalid_ip_attempts_total", "Invalid forwarded client addresses", sec.InvalidIPAttempts)

	if s.rateLimiter != nil {
		rl := s.rateLimiter.GetMetrics()
		writeCounter(w, "rate_limit_rejected_total", "Requests rejected by the rate limiter", rl.Rejected)
		writeGauge(w, "rate_limit_active_clients", "Clients tracked by the rate limiter", rl.ClientCount)
	}

	if s.cacheStats != nil {
		cs := s.cacheStats()
		writeCounter(w, "category_cache_hits_total", "Category cache hits", cs.Hits)
		writeCounter(w, "category_cache_misses_total", "Category cache misses", cs.Misses)
		writeGauge(w, "category_cache_entries", "Category cache entries", int64(cs.Size))
	}

	writeGauge(w, "process_uptime_seconds", "Seconds since the server started", int64(time.Since(s.startedAt).Seconds()))
}

func writeCounter(w http.ResponseWriter, name, help string, v int64) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n\n", name, help, name, name, v)
}

func writeGauge(w http.ResponseWriter, name, help string, v int64) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n\n", name, help, name, name, v)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	respondError(r.Context(), w, http.StatusNotFound, applog.ErrorTypeNotFound, "route not found", nil)
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondError(r.Context(), w, http.StatusMethodNotAllowed, applog.ErrorTypeBadRequest,
		fmt.Sprintf("method %s not allowed", r.Method), nil)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	respondError(r.Context(), w, http.StatusTooManyRequests, applog.ErrorTypeRateLimited,
		"rate limit exceeded, try again later", nil)
}
