package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// PipelineMetrics records crawl pipeline activity. It observes the job
// queue, the ingestion handlers, catalog change events and mixed search.
type PipelineMetrics struct {
	jobsEnqueued     *Counter
	jobsCompleted    *Counter
	jobsRetried      *Counter
	jobsDead         *Counter
	jobDuration      *Histogram
	productsUpserted *Counter
	productsDeleted  *Counter
	itemsDropped     *Counter
	catalogChanges   *Counter
	searchFailures   *Counter
}

// NewPipelineMetrics creates the pipeline instruments on meter
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	m := &PipelineMetrics{}
	counters := []struct {
		dst  **Counter
		name string
		desc string
		unit string
	}{
		{&m.jobsEnqueued, "catalog_jobs_enqueued_total", "Jobs enqueued", "{job}"},
		{&m.jobsCompleted, "catalog_jobs_completed_total", "Jobs completed successfully", "{job}"},
		{&m.jobsRetried, "catalog_jobs_retried_total", "Failed job attempts that were rescheduled", "{job}"},
		{&m.jobsDead, "catalog_jobs_dead_total", "Jobs that exhausted their attempts or failed permanently", "{job}"},
		{&m.productsUpserted, "catalog_products_upserted_total", "Observations merged into the catalog", "{product}"},
		{&m.productsDeleted, "catalog_products_deleted_total", "Catalog rows removed", "{product}"},
		{&m.itemsDropped, "catalog_items_dropped_total", "Upstream items dropped because they could not be normalized", "{item}"},
		{&m.catalogChanges, "catalog_changes_total", "Catalog change events published", "{event}"},
		{&m.searchFailures, "catalog_search_provider_failures_total", "Provider calls that failed during mixed search", "{call}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(meter, c.name, c.desc, c.unit)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	duration, err := NewHistogram(meter, HistogramOpts{
		Name:        "catalog_job_duration_seconds",
		Description: "Run time of successful jobs",
		Unit:        "s",
		Boundaries:  JobDurationBuckets,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}
	m.jobDuration = duration

	return m, nil
}

// JobEnqueued implements queue.Observer
func (m *PipelineMetrics) JobEnqueued(ctx context.Context, jobType string) {
	m.jobsEnqueued.Inc(ctx, AttrJobType.String(jobType))
}

// JobCompleted implements queue.Observer
func (m *PipelineMetrics) JobCompleted(ctx context.Context, jobType string, elapsed time.Duration) {
	m.jobsCompleted.Inc(ctx, AttrJobType.String(jobType))
	m.jobDuration.RecordDuration(ctx, elapsed, AttrJobType.String(jobType))
}

// JobRetried implements queue.Observer
func (m *PipelineMetrics) JobRetried(ctx context.Context, jobType string) {
	m.jobsRetried.Inc(ctx, AttrJobType.String(jobType))
}

// JobDead implements queue.Observer
func (m *PipelineMetrics) JobDead(ctx context.Context, jobType string) {
	m.jobsDead.Inc(ctx, AttrJobType.String(jobType))
}

// ItemsDropped implements ingestion.Recorder
func (m *PipelineMetrics) ItemsDropped(ctx context.Context, provider string, n int) {
	if n <= 0 {
		return
	}
	m.itemsDropped.AddN(ctx, int64(n), AttrProvider.String(provider))
}

// ProductUpserted implements ingestion.Recorder
func (m *PipelineMetrics) ProductUpserted(ctx context.Context, created bool) {
	outcome := "updated"
	if created {
		outcome = "created"
	}
	m.productsUpserted.Inc(ctx, AttrOutcome.String(outcome))
}

// ProductDeleted implements ingestion.Recorder
func (m *PipelineMetrics) ProductDeleted(ctx context.Context, reason string) {
	m.productsDeleted.Inc(ctx, AttrReason.String(reason))
}

// CatalogChanged implements event.CatalogChangeRecorder
func (m *PipelineMetrics) CatalogChanged(ctx context.Context, eventType string) {
	m.catalogChanges.Inc(ctx, AttrEventType.String(eventType))
}

// ProviderSearchFailed implements search.Recorder
func (m *PipelineMetrics) ProviderSearchFailed(ctx context.Context, provider string) {
	m.searchFailures.Inc(ctx, AttrProvider.String(provider))
}
