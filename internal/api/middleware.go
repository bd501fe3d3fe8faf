package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var bulkItems = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tabula",
	Name:      "bulk_items_total",
	Help:      "Items processed by bulk and batch endpoints.",
}, []string{"op", "result"})

// Collectors returns the metrics the API records, for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{bulkItems}
}

func countBulk(op string, ok, failed int) {
	bulkItems.WithLabelValues(op, "ok").Add(float64(ok))
	bulkItems.WithLabelValues(op, "failed").Add(float64(failed))
}

// RequestLogger logs one line per request. Paths in skip are not logged.
func RequestLogger(logger zerolog.Logger, skip ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, p := range skip {
			if p == c.Request.URL.Path {
				c.Next()
				return
			}
		}

		t1 := time.Now()
		c.Next()

		logger.Info().Timestamp().Fields(map[string]interface{}{
			"remote_ip":  c.ClientIP(),
			"url":        c.Request.URL.Path,
			"method":     c.Request.Method,
			"status":     c.Writer.Status(),
			"latency_ms": float64(time.Since(t1).Nanoseconds()) / 1000000.0,
			"bytes_out":  c.Writer.Size(),
		}).Msg("incoming_request")
	}
}
