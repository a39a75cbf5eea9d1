package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelsync-service/internal/domain/entity"
	apperrors "travelsync-service/internal/errors"
	memrepo "travelsync-service/internal/interface/repository"
	"travelsync-service/internal/scheduler"
	"travelsync-service/pkg/logger"
	"travelsync-service/pkg/metrics"
)

type fixture struct {
	router  http.Handler
	sched   *scheduler.Scheduler
	store   *memrepo.MemoryStore
	release chan struct{}
	started chan struct{}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("travelsync", reg)
	store := memrepo.NewMemoryStore()
	sched := scheduler.New(store, m, logger.NewNopLogger())

	f := &fixture{
		sched:   sched,
		store:   store,
		release: make(chan struct{}),
		started: make(chan struct{}, 1),
	}

	require.NoError(t, sched.Register("email_scan", scheduler.Interval{Every: time.Hour}, func(context.Context) (entity.JobSummary, error) {
		return entity.JobSummary{Processed: 4, Created: 1}, nil
	}))
	require.NoError(t, sched.Register("flight_status", scheduler.Interval{Every: time.Hour}, func(context.Context) (entity.JobSummary, error) {
		return entity.JobSummary{}, apperrors.NewTransient("UNITED", errors.New("timeout"))
	}))
	require.NoError(t, sched.Register("share_cleanup", scheduler.Interval{Every: time.Hour}, func(ctx context.Context) (entity.JobSummary, error) {
		f.started <- struct{}{}
		<-f.release
		return entity.JobSummary{}, nil
	}))

	f.router = NewRouter(Deps{
		Jobs:      sched,
		RunLog:    store,
		Gatherer:  reg,
		Logger:    logger.NewNopLogger(),
		Version:   "test",
		StartTime: time.Now(),
	})
	return f
}

func (f *fixture) do(method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/health")

	require.Equal(t, http.StatusOK, rec.Code)
	var body healthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "test", body.Version)
}

func TestRunJob_WaitReturnsSummary(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/jobs/email_scan/run?wait=true")

	require.Equal(t, http.StatusOK, rec.Code)
	var body runResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "completed", body.Status)
	require.NotNil(t, body.Summary)
	assert.Equal(t, 4, body.Summary.Processed)
	assert.Equal(t, 1, body.Summary.Created)

	rec = f.do(http.MethodGet, "/jobs/email_scan/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []entity.RunLogEntry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "email_scan", runs[0].JobName)
	assert.Equal(t, 1, runs[0].RecordsCreated)
}

func TestRunJob_FailureShowsOnlyUserMessage(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/jobs/flight_status/run?wait=true")

	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), apperrors.MessageTemporary)
	assert.NotContains(t, rec.Body.String(), "timeout")

	rec = f.do(http.MethodGet, "/jobs/flight_status")
	require.Equal(t, http.StatusOK, rec.Code)
	var status scheduler.JobStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, scheduler.StateFailed, status.State)
}

func TestRunJob_ConflictWhileRunning(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/jobs/share_cleanup/run")
	require.Equal(t, http.StatusAccepted, rec.Code)
	<-f.started

	rec = f.do(http.MethodPost, "/jobs/share_cleanup/run")
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = f.do(http.MethodPost, "/jobs/share_cleanup/run?wait=true")
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(f.release)
	f.sched.Stop()
}

func TestUnknownJob(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/jobs/nope/run").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/jobs/nope").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/jobs/nope/runs").Code)
}

func TestListJobs(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/jobs/")

	require.Equal(t, http.StatusOK, rec.Code)
	var jobs []scheduler.JobStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&jobs))
	require.Len(t, jobs, 3)
	assert.Equal(t, "email_scan", jobs[0].Name)
	assert.Equal(t, scheduler.StateIdle, jobs[0].State)
	assert.Equal(t, "every 1h0m0s", jobs[0].Trigger)
}

func TestListRuns_InvalidLimit(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/jobs/email_scan/runs?limit=abc").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodPost, "/jobs/email_scan/run?wait=true")

	rec := f.do(http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `travelsync_job_runs_total{job="email_scan",outcome="success"} 1`), body)
}
