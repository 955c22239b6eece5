package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/victornm/q3log/internal/domain"
	"github.com/victornm/q3log/internal/errors"
)

// Label values are bounded: causes come from a fixed table, codes from internal/errors
// and endpoints are route patterns.
var (
	gamesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "q3log_games_total",
		Help: "Games reconstructed from ingested logs",
	})

	killsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "q3log_kills_total",
		Help: "Kills recorded in ingested games",
	}, []string{"cause"})

	playersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "q3log_players_total",
		Help: "Players connected in ingested games",
	})

	scanErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "q3log_scan_errors_total",
		Help: "Log scans aborted by an error",
	}, []string{"code"})

	scanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "q3log_scan_duration_seconds",
		Help:    "Time spent scanning a log",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "q3log_http_requests_total",
		Help: "HTTP requests served",
	}, []string{"method", "endpoint", "status"})
)

// ObserveScan records a successful scan and the games it produced.
func ObserveScan(games []domain.Game, d time.Duration) {
	scanDuration.Observe(d.Seconds())
	gamesTotal.Add(float64(len(games)))

	for _, g := range games {
		playersTotal.Add(float64(len(g.Players)))
		for c, n := range g.KillsByCause {
			killsTotal.WithLabelValues(c.String()).Add(float64(n))
		}
	}
}

// ObserveScanError records a failed scan by error code.
func ObserveScanError(err error, d time.Duration) {
	scanDuration.Observe(d.Seconds())
	scanErrorsTotal.WithLabelValues(errors.Convert(err).Code.String()).Inc()
}

// GinMiddleware counts requests by route pattern. Unmatched routes are grouped.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		requestTotal.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
