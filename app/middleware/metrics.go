package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var httpLabels = []string{"method", "route", "status"}

var (
	apiRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "API requests served, by method, route template and status code",
	}, httpLabels)

	apiLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "API request latency",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 15, 60},
	}, httpLabels)

	apiResponseBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: "api",
		Name:      "response_size_bytes",
		Help:      "API response body size",
		Buckets:   prometheus.ExponentialBuckets(128, 4, 8),
	}, []string{"route"})

	apiInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "api",
		Name:      "requests_in_flight",
		Help:      "API requests currently being handled",
	})
)

// Metrics instruments every request except skipPath
func Metrics(skipPath string) fiber.Handler {
	return func(c fiber.Ctx) error {
		if skipPath != "" && c.Path() == skipPath {
			return c.Next()
		}

		apiInFlight.Inc()
		began := time.Now()
		err := c.Next()
		apiInFlight.Dec()

		code := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}

		route := "unmatched"
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}

		apiRequests.WithLabelValues(c.Method(), route, strconv.Itoa(code)).Inc()
		apiLatency.WithLabelValues(c.Method(), route, strconv.Itoa(code)).Observe(time.Since(began).Seconds())
		apiResponseBytes.WithLabelValues(route).Observe(float64(len(c.Response().Body())))
		return err
	}
}
