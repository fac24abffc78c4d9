package telemetry_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/shared"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeQueueStats struct {
	byStatus map[shared.JobStatus]int64
	byType   map[shared.JobStatus]map[string]int64
	err      error
}

func (f *fakeQueueStats) CountByStatus(context.Context) (map[shared.JobStatus]int64, error) {
	return f.byStatus, f.err
}

func (f *fakeQueueStats) CountByType(_ context.Context, status shared.JobStatus) (map[string]int64, error) {
	return f.byType[status], f.err
}

type fakeCatalogStats map[string]int64

func (f fakeCatalogStats) CountByCategory(context.Context) (map[string]int64, error) {
	return f, nil
}

func TestRegistry_QueueDepth(t *testing.T) {
	stats := &fakeQueueStats{
		byStatus: map[shared.JobStatus]int64{
			shared.JobStatusPending: 7,
			shared.JobStatusDead:    2,
		},
		byType: map[shared.JobStatus]map[string]int64{
			shared.JobStatusPending: {"catalog.upsert": 5, "catalog.category": 2},
			shared.JobStatusDead:    {"catalog.category": 2},
		},
	}
	reg := telemetry.NewRegistry(telemetry.ScrapeConfig{
		Queue:   stats,
		Catalog: fakeCatalogStats{"CAT1": 30, "CAT2": 10},
	}, zap.NewNop())

	expected := `
# HELP catalog_queue_backlog Pending jobs by type
# TYPE catalog_queue_backlog gauge
catalog_queue_backlog{job_type="catalog.category"} 2
catalog_queue_backlog{job_type="catalog.upsert"} 5
# HELP catalog_queue_dead Dead jobs by type
# TYPE catalog_queue_dead gauge
catalog_queue_dead{job_type="catalog.category"} 2
# HELP catalog_products Catalog rows per category
# TYPE catalog_products gauge
catalog_products{category_id="CAT1"} 30
catalog_products{category_id="CAT2"} 10
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"catalog_queue_backlog", "catalog_queue_dead", "catalog_products"))

	count, err := testutil.GatherAndCount(reg, "catalog_queue_jobs")
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestRegistry_QueueReadFailure(t *testing.T) {
	reg := telemetry.NewRegistry(telemetry.ScrapeConfig{
		Queue: &fakeQueueStats{err: errors.New("db down")},
	}, zap.NewNop())

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMetricsHandler(t *testing.T) {
	reg := telemetry.NewRegistry(telemetry.ScrapeConfig{
		Catalog: fakeCatalogStats{"CAT1": 3},
		Runtime: true,
	}, zap.NewNop())

	rec := httptest.NewRecorder()
	telemetry.MetricsHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `catalog_products{category_id="CAT1"} 3`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
