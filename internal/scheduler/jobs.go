package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sidnei-almeida/groq-finance-inference/internal/modules/quant"
)

// BenchmarkFetcher keeps the benchmark return series warm in the cache.
type BenchmarkFetcher interface {
	FetchBenchmark(ctx context.Context, period string) (*quant.ReturnSeries, error)
}

// ExpiredPurger removes stale cache entries.
type ExpiredPurger interface {
	PurgeExpired() (int64, error)
}

// AnalysisPurger removes analyses older than a retention window.
type AnalysisPurger interface {
	PurgeOlderThan(age time.Duration) (int64, error)
}

// BenchmarkWarmJob pre-fetches the benchmark series so the first analysis of
// the day does not pay the upstream round trip.
type BenchmarkWarmJob struct {
	fetcher BenchmarkFetcher
	period  string
	log     zerolog.Logger
}

// NewBenchmarkWarmJob creates the benchmark warm job.
func NewBenchmarkWarmJob(fetcher BenchmarkFetcher, period string, log zerolog.Logger) *BenchmarkWarmJob {
	return &BenchmarkWarmJob{
		fetcher: fetcher,
		period:  period,
		log:     log.With().Str("job", "benchmark_warm").Logger(),
	}
}

// Name returns the job name.
func (j *BenchmarkWarmJob) Name() string { return "benchmark_warm" }

// Run fetches the benchmark series for the configured period.
func (j *BenchmarkWarmJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	series, err := j.fetcher.FetchBenchmark(ctx, j.period)
	if err != nil {
		return err
	}
	j.log.Debug().Int("observations", len(series.Values)).Msg("Benchmark warmed")
	return nil
}

// CachePurgeJob evicts expired price cache entries.
type CachePurgeJob struct {
	cache ExpiredPurger
	log   zerolog.Logger
}

// NewCachePurgeJob creates the cache purge job.
func NewCachePurgeJob(cache ExpiredPurger, log zerolog.Logger) *CachePurgeJob {
	return &CachePurgeJob{
		cache: cache,
		log:   log.With().Str("job", "cache_purge").Logger(),
	}
}

// Name returns the job name.
func (j *CachePurgeJob) Name() string { return "cache_purge" }

// Run deletes expired cache rows.
func (j *CachePurgeJob) Run() error {
	deleted, err := j.cache.PurgeExpired()
	if err != nil {
		return err
	}
	if deleted > 0 {
		j.log.Info().Int64("deleted", deleted).Msg("Purged expired cache entries")
	}
	return nil
}

// ReportRetentionJob deletes analyses past the retention window.
type ReportRetentionJob struct {
	store     AnalysisPurger
	retention time.Duration
	log       zerolog.Logger
}

// NewReportRetentionJob creates the retention job.
func NewReportRetentionJob(store AnalysisPurger, retention time.Duration, log zerolog.Logger) *ReportRetentionJob {
	return &ReportRetentionJob{
		store:     store,
		retention: retention,
		log:       log.With().Str("job", "report_retention").Logger(),
	}
}

// Name returns the job name.
func (j *ReportRetentionJob) Name() string { return "report_retention" }

// Run deletes analyses older than the retention window.
func (j *ReportRetentionJob) Run() error {
	_, err := j.store.PurgeOlderThan(j.retention)
	return err
}
