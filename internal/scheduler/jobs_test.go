package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidnei-almeida/groq-finance-inference/internal/modules/quant"
)

type fakeFetcher struct {
	period string
	err    error
}

func (f *fakeFetcher) FetchBenchmark(_ context.Context, period string) (*quant.ReturnSeries, error) {
	f.period = period
	if f.err != nil {
		return nil, f.err
	}
	return &quant.ReturnSeries{Values: []float64{0.01, -0.02}}, nil
}

func TestBenchmarkWarmJob(t *testing.T) {
	fetcher := &fakeFetcher{}
	job := NewBenchmarkWarmJob(fetcher, "1y", zerolog.Nop())

	require.NoError(t, job.Run())
	assert.Equal(t, "1y", fetcher.period)
	assert.Equal(t, "benchmark_warm", job.Name())
}

func TestBenchmarkWarmJob_PropagatesError(t *testing.T) {
	job := NewBenchmarkWarmJob(&fakeFetcher{err: errors.New("upstream down")}, "1y", zerolog.Nop())
	assert.Error(t, job.Run())
}

type fakePurger struct {
	deleted int64
	err     error
	called  bool
}

func (f *fakePurger) PurgeExpired() (int64, error) {
	f.called = true
	return f.deleted, f.err
}

func TestCachePurgeJob(t *testing.T) {
	purger := &fakePurger{deleted: 3}
	job := NewCachePurgeJob(purger, zerolog.Nop())

	require.NoError(t, job.Run())
	assert.True(t, purger.called)
}

type fakeRetention struct {
	age time.Duration
}

func (f *fakeRetention) PurgeOlderThan(age time.Duration) (int64, error) {
	f.age = age
	return 1, nil
}

func TestReportRetentionJob(t *testing.T) {
	store := &fakeRetention{}
	job := NewReportRetentionJob(store, 30*24*time.Hour, zerolog.Nop())

	require.NoError(t, job.Run())
	assert.Equal(t, 30*24*time.Hour, store.age)
}
