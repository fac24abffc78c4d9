package telemetry

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/shared"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const scrapeTimeout = 5 * time.Second

// QueueStats is the read side of the job queue needed for depth gauges
type QueueStats interface {
	CountByStatus(ctx context.Context) (map[shared.JobStatus]int64, error)
	CountByType(ctx context.Context, status shared.JobStatus) (map[string]int64, error)
}

// CatalogStats is the read side of the catalog needed for size gauges
type CatalogStats interface {
	CountByCategory(ctx context.Context) (map[string]int64, error)
}

// queueCollector reads queue depth from the jobs table on every scrape
type queueCollector struct {
	stats  QueueStats
	logger *zap.Logger

	byStatus *prometheus.Desc
	backlog  *prometheus.Desc
	dead     *prometheus.Desc
}

func newQueueCollector(stats QueueStats, logger *zap.Logger) *queueCollector {
	return &queueCollector{
		stats:  stats,
		logger: logger,
		byStatus: prometheus.NewDesc("catalog_queue_jobs",
			"Jobs in the queue by status", []string{"status"}, nil),
		backlog: prometheus.NewDesc("catalog_queue_backlog",
			"Pending jobs by type", []string{"job_type"}, nil),
		dead: prometheus.NewDesc("catalog_queue_dead",
			"Dead jobs by type", []string{"job_type"}, nil),
	}
}

func (c *queueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.byStatus
	ch <- c.backlog
	ch <- c.dead
}

func (c *queueCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), scrapeTimeout)
	defer cancel()

	counts, err := c.stats.CountByStatus(ctx)
	if err != nil {
		c.logger.Warn("Failed to read queue depth", zap.Error(err))
		return
	}
	for _, status := range []shared.JobStatus{
		shared.JobStatusPending,
		shared.JobStatusRunning,
		shared.JobStatusCompleted,
		shared.JobStatusFailed,
		shared.JobStatusDead,
	} {
		ch <- prometheus.MustNewConstMetric(c.byStatus, prometheus.GaugeValue, float64(counts[status]), string(status))
	}

	c.collectByType(ctx, ch, c.backlog, shared.JobStatusPending)
	c.collectByType(ctx, ch, c.dead, shared.JobStatusDead)
}

func (c *queueCollector) collectByType(ctx context.Context, ch chan<- prometheus.Metric, desc *prometheus.Desc, status shared.JobStatus) {
	byType, err := c.stats.CountByType(ctx, status)
	if err != nil {
		c.logger.Warn("Failed to read queue depth by type", zap.String("status", string(status)), zap.Error(err))
		return
	}
	for jobType, n := range byType {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(n), jobType)
	}
}

// catalogCollector reports catalog rows per category
type catalogCollector struct {
	stats  CatalogStats
	logger *zap.Logger
	size   *prometheus.Desc
}

func (c *catalogCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.size
}

func (c *catalogCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), scrapeTimeout)
	defer cancel()

	counts, err := c.stats.CountByCategory(ctx)
	if err != nil {
		c.logger.Warn("Failed to read catalog size", zap.Error(err))
		return
	}
	for category, n := range counts {
		ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(n), category)
	}
}

// ScrapeConfig lists what the /metrics registry exposes. Nil sources are skipped.
type ScrapeConfig struct {
	Queue   QueueStats
	Catalog CatalogStats
	DB      *sql.DB
	DBName  string
	Runtime bool // Go runtime and process collectors
}

// NewRegistry builds a prometheus registry for the scrape endpoint
func NewRegistry(cfg ScrapeConfig, logger *zap.Logger) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	if cfg.Runtime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	if cfg.Queue != nil {
		reg.MustRegister(newQueueCollector(cfg.Queue, logger))
	}
	if cfg.Catalog != nil {
		reg.MustRegister(&catalogCollector{
			stats:  cfg.Catalog,
			logger: logger,
			size: prometheus.NewDesc("catalog_products",
				"Catalog rows per category", []string{"category_id"}, nil),
		})
	}
	if cfg.DB != nil {
		reg.MustRegister(collectors.NewDBStatsCollector(cfg.DB, cfg.DBName))
	}
	return reg
}

// MetricsHandler serves the registry in the prometheus text format
func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
