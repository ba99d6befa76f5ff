package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DrSkyle/spendscope/pkg/analytics"
	"github.com/DrSkyle/spendscope/pkg/engine"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	err        error
	lastRange  engine.TimeRange
	lastID     string
	lastMetric analytics.Metric
}

func (f *fakeService) ComputeCostSummary(_ context.Context, tr engine.TimeRange) (*engine.CostSummary, error) {
	f.lastRange = tr
	if f.err != nil {
		return nil, f.err
	}
	return &engine.CostSummary{TotalSpend: 790, TotalSpendTrend: analytics.TrendUp, TimeRange: tr}, nil
}

func (f *fakeService) ListInstances(context.Context) ([]engine.Instance, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []engine.Instance{{ID: "i-1", Type: "t3.micro", Region: "us-east-1"}}, nil
}

func (f *fakeService) InstanceMetrics(_ context.Context, id string, m analytics.Metric) ([]analytics.UtilizationSample, error) {
	f.lastID, f.lastMetric = id, m
	if f.err != nil {
		return nil, f.err
	}
	return []analytics.UtilizationSample{{Timestamp: "2024-03-15T12:00:00Z", Value: 42}}, nil
}

func (f *fakeService) FleetStatus(context.Context) (*engine.FleetReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &engine.FleetReport{Wasted: 1}, nil
}

func serve(t *testing.T, svc Service, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	NewServer(svc, nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestCosts(t *testing.T) {
	svc := &fakeService{}
	rec := serve(t, svc, "/api/costs?timeRange=30d")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, 790.0, body["totalSpend"])
	assert.Equal(t, "up", body["totalSpendTrend"])
	assert.Equal(t, engine.Range30d, svc.lastRange)

	_, err := uuid.Parse(rec.Header().Get(echo.HeaderXRequestID))
	assert.NoError(t, err, "responses carry a uuid request id")
}

func TestCostsDefaultRange(t *testing.T) {
	svc := &fakeService{}
	rec := serve(t, svc, "/api/costs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, DefaultTimeRange, svc.lastRange)
}

func TestCostsInvalidRange(t *testing.T) {
	rec := serve(t, &fakeService{}, "/api/costs?timeRange=90d")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, "Invalid time range", body.Error)
	assert.Contains(t, body.Details, "90d")
}

func TestFetchErrors(t *testing.T) {
	svc := &fakeService{err: errors.New("ThrottlingException")}
	for _, target := range []string{"/api/costs?timeRange=7d", "/api/instances", "/api/metrics?id=i-1", "/api/fleet"} {
		t.Run(target, func(t *testing.T) {
			rec := serve(t, svc, target)
			require.Equal(t, http.StatusInternalServerError, rec.Code)
			body := decode[ErrorResponse](t, rec)
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, "ThrottlingException", body.Details)
		})
	}
}

func TestInstances(t *testing.T) {
	rec := serve(t, &fakeService{}, "/api/instances")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[InstancesResponse](t, rec)
	require.Len(t, body.Instances, 1)
	assert.Equal(t, "i-1", body.Instances[0].ID)
}

func TestMetrics(t *testing.T) {
	svc := &fakeService{}
	rec := serve(t, svc, "/api/metrics?id=i-1&metric=gpu")
	require.Equal(t, http.StatusOK, rec.Code)
	samples := decode[[]analytics.UtilizationSample](t, rec)
	assert.Equal(t, 42.0, samples[0].Value)
	assert.Equal(t, "i-1", svc.lastID)
	assert.Equal(t, analytics.MetricGPU, svc.lastMetric)

	serve(t, svc, "/api/metrics?id=i-2")
	assert.Equal(t, analytics.MetricCPU, svc.lastMetric, "cpu is the default metric")
}

func TestMetricsValidation(t *testing.T) {
	rec := serve(t, &fakeService{}, "/api/metrics")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing instanceId", decode[ErrorResponse](t, rec).Error)

	rec = serve(t, &fakeService{}, "/api/metrics?id=i-1&metric=network")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Details, "cpu, ram, gpu, disk")
}

func TestFleetAndHealth(t *testing.T) {
	rec := serve(t, &fakeService{}, "/api/fleet")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[engine.FleetReport](t, rec).Wasted)

	rec = serve(t, &fakeService{}, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}
