// Package telemetry provides the HTTP request metrics middleware.
package telemetry

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// HTTPMetrics returns middleware recording request count and duration per
// method/path/status. Returns nil when provider is nil so callers can skip
// wrapping entirely.
func HTTPMetrics(provider *sdkmetric.MeterProvider) func(http.Handler) http.Handler {
	if provider == nil {
		return nil
	}
	meter := provider.Meter("specsync.server")
	requests, err := meter.Int64Counter("http.server.requests",
		otelmetric.WithDescription("HTTP requests served"))
	if err != nil {
		log.Printf("telemetry: counter init: %v", err)
		return nil
	}
	duration, err := meter.Float64Histogram("http.server.duration",
		otelmetric.WithDescription("HTTP request duration"), otelmetric.WithUnit("ms"))
	if err != nil {
		log.Printf("telemetry: histogram init: %v", err)
		return nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			attrs := otelmetric.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", r.URL.Path),
				attribute.Int("http.status_code", ww.Status()),
			)
			requests.Add(r.Context(), 1, attrs)
			duration.Record(r.Context(), float64(time.Since(start).Milliseconds()), attrs)
		})
	}
}
