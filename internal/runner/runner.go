// Package runner performs one report invocation: fetch, estimate and record.
package runner

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/xchpool-tools/xchpool-stats/internal/config"
	"github.com/xchpool-tools/xchpool-stats/internal/estimate"
	"github.com/xchpool-tools/xchpool-stats/internal/newrelic"
	"github.com/xchpool-tools/xchpool-stats/internal/report"
	"github.com/xchpool-tools/xchpool-stats/internal/rpc"
	"github.com/xchpool-tools/xchpool-stats/internal/types"
	"github.com/xchpool-tools/xchpool-stats/internal/util"
)

// ReportStore persists computed reports
type ReportStore interface {
	SaveReport(ctx context.Context, r *estimate.Report) error
}

// ReportNotifier delivers report summaries
type ReportNotifier interface {
	NotifyReport(ctx context.Context, r *estimate.Report) error
}

// Runner ties the fetcher, the estimation engine and the optional sinks together
type Runner struct {
	cfg      *config.Config
	fetcher  *rpc.Fetcher
	params   estimate.Params
	appender *report.Appender
	store    ReportStore
	notifier ReportNotifier
	agent    *newrelic.Agent
	now      func() time.Time
}

// Option configures a Runner
type Option func(*Runner)

// WithDays sets the number of days of recent earnings to summarize
func WithDays(days int) Option {
	return func(r *Runner) { r.params.Days = days }
}

// WithAppender appends every recorded report to the log file at path
func WithAppender(path string) Option {
	return func(r *Runner) {
		if path != "" {
			r.appender = report.NewAppender(path)
		}
	}
}

// WithStore saves every recorded report to s
func WithStore(s ReportStore) Option {
	return func(r *Runner) { r.store = s }
}

// WithNotifier sends every recorded report through n
func WithNotifier(n ReportNotifier) Option {
	return func(r *Runner) { r.notifier = n }
}

// WithAgent instruments fetches and records reports with a New Relic agent
func WithAgent(a *newrelic.Agent) Option {
	return func(r *Runner) { r.agent = a }
}

// WithClock overrides the evaluation time source
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New creates a runner for cfg
func New(cfg *config.Config, opts ...Option) *Runner {
	r := &Runner{
		cfg:     cfg,
		fetcher: rpc.NewFetcher(cfg),
		params: estimate.Params{
			PeriodLength:   cfg.Period.Length,
			BlocksPerDay:   cfg.Period.BlocksPerDay,
			BlockReward:    cfg.Period.BlockReward,
			ReferenceSpace: cfg.ReferenceSpaceBytes(),
			Days:           estimate.DefaultDays,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.agent != nil && r.agent.IsEnabled() {
		r.fetcher.Client().SetTransport(r.agent.RoundTripper(http.DefaultTransport))
	}
	return r
}

// Params returns the estimation parameters in use
func (r *Runner) Params() estimate.Params {
	return r.params
}

// Fetcher returns the data fetcher
func (r *Runner) Fetcher() *rpc.Fetcher {
	return r.fetcher
}

// traced runs fn inside a New Relic transaction when an agent is running
func (r *Runner) traced(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if r.agent == nil {
		return fn(ctx)
	}

	txn := r.agent.StartTransaction(name)
	if txn == nil {
		return fn(ctx)
	}
	defer txn.End()

	err := fn(r.agent.NewContext(ctx, txn))
	r.agent.NoticeError(txn, err)
	return err
}

// Report fetches member, pool, price and yield data in that order and computes the estimate
func (r *Runner) Report(ctx context.Context) (*estimate.Report, error) {
	var (
		member *types.MemberStats
		pool   *types.PoolStats
		price  *types.MarketPrice
		yield  *types.YieldReference
	)

	steps := []struct {
		name string
		fn   func(ctx context.Context) error
	}{
		{"fetch/member", func(ctx context.Context) (err error) {
			member, err = r.fetcher.FetchMemberStats(ctx, r.cfg.LauncherID)
			return err
		}},
		{"fetch/poolstats", func(ctx context.Context) (err error) {
			pool, err = r.fetcher.FetchPoolStats(ctx)
			return err
		}},
		{"fetch/price", func(ctx context.Context) (err error) {
			price, err = r.fetcher.FetchPrice(ctx)
			return err
		}},
		{"fetch/yield", func(ctx context.Context) (err error) {
			yield, err = r.fetcher.FetchYieldReference(ctx)
			return err
		}},
	}

	for _, step := range steps {
		start := time.Now()
		if err := r.traced(ctx, step.name, step.fn); err != nil {
			return nil, err
		}
		util.Debugw("fetched", "step", step.name, "took", time.Since(start))
	}

	rep, err := estimate.Compute(estimate.Inputs{
		Pool:   *pool,
		Member: *member,
		Price:  *price,
		Yield:  *yield,
		Now:    r.now(),
	}, r.params)
	if err != nil {
		return nil, fmt.Errorf("estimate: %w", err)
	}

	util.Infof("report computed: %.2f expected, %d actual, %+.2f", rep.ExpectedBlocksElapsed, rep.ActualBlocks, rep.AheadBehind)
	return rep, nil
}

// Record hands rep to every configured sink. Only a log file failure is
// returned; store, notify and APM failures are logged.
func (r *Runner) Record(ctx context.Context, rep *estimate.Report) error {
	var logErr error
	if r.appender != nil {
		logErr = r.appender.Append(rep)
	}

	if r.store != nil {
		if err := r.store.SaveReport(ctx, rep); err != nil {
			util.Warnf("Failed to save report snapshot: %v", err)
		}
	}

	if r.notifier != nil {
		if err := r.notifier.NotifyReport(ctx, rep); err != nil {
			util.Warnf("Failed to send report notification: %v", err)
		}
	}

	if r.agent != nil {
		r.agent.RecordReport(rep, r.cfg.LauncherID)
	}
	return logErr
}

// Run computes a report and records it
func (r *Runner) Run(ctx context.Context) (*estimate.Report, error) {
	rep, err := r.Report(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.Record(ctx, rep); err != nil {
		return rep, err
	}
	return rep, nil
}

// Refresh computes and records a report for serve mode. Sink failures,
// including the log file, are logged and the report is still returned.
func (r *Runner) Refresh(ctx context.Context) (*estimate.Report, error) {
	rep, err := r.Report(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.Record(ctx, rep); err != nil {
		util.Warnf("Failed to append report log: %v", err)
	}
	return rep, nil
}
