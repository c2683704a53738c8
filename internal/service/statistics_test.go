package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"babycare-backend/internal/cache"
	"babycare-backend/internal/metrics"
	"babycare-backend/internal/models"
	"babycare-backend/internal/stats"
	"babycare-backend/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockEventSource struct{ mock.Mock }

func (m *mockEventSource) ListEventsSince(ctx context.Context, deviceID string, since time.Time) ([]models.Event, error) {
	args := m.Called(ctx, deviceID, since)
	events, _ := args.Get(0).([]models.Event)
	return events, args.Error(1)
}

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func utcParams() stats.Params {
	p := stats.DefaultParams()
	p.Location = time.UTC
	return p
}

func sampleEvents() []models.Event {
	return []models.Event{
		{ID: "1", DeviceID: "d1", Type: models.EventProne, Time: fixedNow.Add(-2 * time.Hour)},
		{ID: "2", DeviceID: "d1", Type: models.EventCrying, Time: fixedNow.Add(-90 * time.Minute)},
		{ID: "3", DeviceID: "d1", Type: models.EventNoBlanket, Time: fixedNow.Add(-time.Hour)},
	}
}

func newSnapshotCache(t *testing.T) *store.SnapshotCache {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return store.NewSnapshotCache(store.NewRedisKV(client), time.Minute, zap.NewNop())
}

func TestLookbackStart(t *testing.T) {
	p := utcParams()
	assert.Equal(t, time.Date(2026, 10, 13, 0, 0, 0, 0, time.UTC), LookbackStart(fixedNow, p))

	p.CorrelationDays = 1
	assert.Equal(t, fixedNow.Add(-24*time.Hour), LookbackStart(fixedNow, p))
}

func TestStatisticsService_ComputeFromEvents(t *testing.T) {
	src := &mockEventSource{}
	src.On("ListEventsSince", mock.Anything, "d1", LookbackStart(fixedNow, utcParams())).Return(sampleEvents(), nil)

	svc := NewStatisticsService(src, nil, 0, nil, utcParams(), zap.NewNop())
	svc.now = func() time.Time { return fixedNow }

	snap, err := svc.Compute(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, "d1", snap.DeviceID)
	assert.Equal(t, 3, snap.EventCount)
	assert.Equal(t, fixedNow.UnixMilli(), snap.GeneratedAt)
	assert.Equal(t, models.PositionProne, snap.Status.Position.Status)
	assert.True(t, snap.Status.Crying.IsDetected)
	assert.False(t, snap.Status.Blanket.IsDetected)
	assert.Equal(t, 1, snap.Statistics.Overview.BadPosition.Count)
	assert.Equal(t, 1, snap.Statistics.Overview.Crying.Count)
	assert.Len(t, snap.Statistics.Correlation.Crying, 7)
	src.AssertExpectations(t)
}

func TestStatisticsService_FetchErrorDegradesToEmpty(t *testing.T) {
	src := &mockEventSource{}
	src.On("ListEventsSince", mock.Anything, "d1", mock.Anything).Return(nil, errors.New("db down"))

	svc := NewStatisticsService(src, nil, 0, nil, utcParams(), zap.NewNop())
	svc.now = func() time.Time { return fixedNow }

	data := svc.Statistics(context.Background(), "d1")
	assert.Equal(t, models.EmptyOverview(), data.Overview.BadPosition)
	assert.Equal(t, models.EmptyOverview(), data.Overview.Crying)
	assert.Equal(t, make([]int, 8), data.Histogram.BadPosition)
	for _, p := range data.Correlation.Crying {
		assert.Zero(t, p.Value)
	}

	status := svc.Status(context.Background(), "d1")
	assert.Equal(t, models.PositionSupine, status.Position.Status)
}

func TestStatisticsService_MemoAvoidsRepeatedQueries(t *testing.T) {
	src := &mockEventSource{}
	src.On("ListEventsSince", mock.Anything, "d1", mock.Anything).Return(sampleEvents(), nil).Twice()

	memo := cache.NewMemo[[]models.Event](10, time.Minute, zap.NewNop())
	svc := NewStatisticsService(src, memo, time.Minute, nil, utcParams(), zap.NewNop())
	svc.now = func() time.Time { return fixedNow }

	ctx := context.Background()
	assert.Len(t, svc.Events(ctx, "d1"), 3)
	assert.Len(t, svc.Events(ctx, "d1"), 3)
	src.AssertNumberOfCalls(t, "ListEventsSince", 1)

	svc.Invalidate("d1")
	svc.Events(ctx, "d1")
	src.AssertNumberOfCalls(t, "ListEventsSince", 2)
}

func TestStatisticsService_FetchErrorNotMemoized(t *testing.T) {
	src := &mockEventSource{}
	src.On("ListEventsSince", mock.Anything, "d1", mock.Anything).Return(nil, errors.New("db down")).Once()
	src.On("ListEventsSince", mock.Anything, "d1", mock.Anything).Return(sampleEvents(), nil).Once()

	memo := cache.NewMemo[[]models.Event](10, time.Minute, zap.NewNop())
	svc := NewStatisticsService(src, memo, time.Minute, nil, utcParams(), zap.NewNop())
	svc.now = func() time.Time { return fixedNow }

	assert.Empty(t, svc.Events(context.Background(), "d1"))
	assert.Len(t, svc.Events(context.Background(), "d1"), 3)
}

func TestStatisticsService_SnapshotUsesCache(t *testing.T) {
	src := &mockEventSource{}
	src.On("ListEventsSince", mock.Anything, "d1", mock.Anything).Return(sampleEvents(), nil).Once()

	snapshots := newSnapshotCache(t)
	svc := NewStatisticsService(src, nil, 0, snapshots, utcParams(), zap.NewNop())
	svc.now = func() time.Time { return fixedNow }

	ctx := context.Background()
	first := svc.Snapshot(ctx, "d1")
	second := svc.Snapshot(ctx, "d1")
	assert.Equal(t, first.EventCount, second.EventCount)
	assert.Equal(t, first.Statistics, second.Statistics)
	src.AssertNumberOfCalls(t, "ListEventsSince", 1)

	cached, err := snapshots.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 3, cached.EventCount)
}

func TestStatisticsService_ComputeReportsFetchError(t *testing.T) {
	src := &mockEventSource{}
	src.On("ListEventsSince", mock.Anything, "d1", mock.Anything).Return(nil, errors.New("db down"))

	svc := NewStatisticsService(src, nil, 0, nil, utcParams(), zap.NewNop())
	svc.now = func() time.Time { return fixedNow }

	snap, err := svc.Compute(context.Background(), "d1")
	require.Error(t, err)
	require.NotNil(t, snap)
	assert.Zero(t, snap.EventCount)
	assert.Equal(t, models.EmptyOverview(), snap.Statistics.Overview.Crying)
}

func TestStatisticsService_SnapshotNotCachedOnFetchError(t *testing.T) {
	src := &mockEventSource{}
	src.On("ListEventsSince", mock.Anything, "d1", mock.Anything).Return(nil, errors.New("db down")).Once()
	src.On("ListEventsSince", mock.Anything, "d1", mock.Anything).Return(sampleEvents(), nil).Once()

	snapshots := newSnapshotCache(t)
	svc := NewStatisticsService(src, nil, 0, snapshots, utcParams(), zap.NewNop())
	svc.now = func() time.Time { return fixedNow }

	ctx := context.Background()
	degraded := svc.Snapshot(ctx, "d1")
	assert.Zero(t, degraded.EventCount)

	_, err := snapshots.Get(ctx, "d1")
	assert.ErrorIs(t, err, store.ErrMiss)

	recovered := svc.Snapshot(ctx, "d1")
	assert.Equal(t, 3, recovered.EventCount)
	cached, err := snapshots.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 3, cached.EventCount)
}

// statisticsCount 读取 babycare_statistics_computations_total{source,result}
func statisticsCount(t *testing.T, source, result string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "babycare_statistics_computations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["source"] == source && labels["result"] == result {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestStatisticsService_ComputeMetricsBySource(t *testing.T) {
	metrics.Init()

	src := &mockEventSource{}
	src.On("ListEventsSince", mock.Anything, "d1", mock.Anything).Return(sampleEvents(), nil).Once()
	src.On("ListEventsSince", mock.Anything, "d2", mock.Anything).Return(nil, errors.New("db down")).Once()

	memo := cache.NewMemo[[]models.Event](10, time.Minute, zap.NewNop())
	svc := NewStatisticsService(src, memo, time.Minute, nil, utcParams(), zap.NewNop())
	svc.now = func() time.Time { return fixedNow }

	dbOK := statisticsCount(t, "database", metrics.ResultSuccess)
	dbErr := statisticsCount(t, "database", metrics.ResultError)
	memoOK := statisticsCount(t, "memo", metrics.ResultSuccess)

	ctx := context.Background()
	_, err := svc.Compute(ctx, "d1")
	require.NoError(t, err)
	_, err = svc.Compute(ctx, "d1")
	require.NoError(t, err)
	_, err = svc.Compute(ctx, "d2")
	require.Error(t, err)

	assert.Equal(t, dbOK+1, statisticsCount(t, "database", metrics.ResultSuccess))
	assert.Equal(t, memoOK+1, statisticsCount(t, "memo", metrics.ResultSuccess))
	assert.Equal(t, dbErr+1, statisticsCount(t, "database", metrics.ResultError))
}
