package admind

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type httpMetrics struct {
	duration *prometheus.HistogramVec
	total    *prometheus.CounterVec
}

func newHTTPMetrics(reg prometheus.Registerer) *httpMetrics {
	factory := promauto.With(reg)
	return &httpMetrics{
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ircd_admin",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method"}),
		total: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ircd_admin",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by status code",
		}, []string{"path", "method", "code"}),
	}
}

// middleware records latency and status per route pattern, so path
// parameters do not inflate label cardinality.
func (m *httpMetrics) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			method := c.Request().Method
			m.duration.WithLabelValues(path, method).Observe(time.Since(start).Seconds())
			m.total.WithLabelValues(path, method, strconv.Itoa(c.Response().Status)).Inc()
			return nil
		}
	}
}
