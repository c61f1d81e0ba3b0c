// Package newrelic provides New Relic APM integration for report runs.
package newrelic

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/xchpool-tools/xchpool-stats/internal/config"
	"github.com/xchpool-tools/xchpool-stats/internal/estimate"
	"github.com/xchpool-tools/xchpool-stats/internal/util"
)

// Event and metric names
const (
	EventPoolReport = "PoolReport"

	MetricExpectedBlocks  = "Custom/Pool/ExpectedBlocks"
	MetricAheadBehind     = "Custom/Pool/AheadBehind"
	MetricPoolshare       = "Custom/Member/Poolshare"
	MetricProjectedPayout = "Custom/Member/ProjectedPayout"
	MetricPrice           = "Custom/Market/Price"
)

// Agent wraps New Relic APM functionality
type Agent struct {
	cfg *config.NewRelicConfig
	app *newrelic.Application
	mu  sync.RWMutex
}

// NewAgent creates a new New Relic agent
func NewAgent(cfg *config.NewRelicConfig) *Agent {
	return &Agent{
		cfg: cfg,
	}
}

// Start initializes the New Relic agent
func (a *Agent) Start() error {
	if !a.cfg.Enabled {
		util.Debugf("New Relic APM disabled")
		return nil
	}

	if a.cfg.LicenseKey == "" {
		util.Warnf("New Relic license key not configured, APM disabled")
		return nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(a.cfg.AppName),
		newrelic.ConfigLicense(a.cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
	)
	if err != nil {
		return err
	}

	// Wait for connection (up to 5 seconds)
	if err := app.WaitForConnection(5 * time.Second); err != nil {
		util.Warnf("New Relic connection timeout: %v (will retry in background)", err)
	}

	a.mu.Lock()
	a.app = app
	a.mu.Unlock()

	util.Infof("New Relic APM enabled for app: %s", a.cfg.AppName)
	return nil
}

// Stop flushes pending data and shuts down the agent
func (a *Agent) Stop() {
	a.mu.RLock()
	app := a.app
	a.mu.RUnlock()

	if app != nil {
		util.Info("Shutting down New Relic agent")
		app.Shutdown(10 * time.Second)
	}
}

func (a *Agent) application() *newrelic.Application {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.app
}

// IsEnabled returns true if New Relic is enabled and connected
func (a *Agent) IsEnabled() bool {
	return a.application() != nil
}

// StartTransaction starts a new transaction, or returns nil when disabled
func (a *Agent) StartTransaction(name string) *newrelic.Transaction {
	app := a.application()
	if app == nil {
		return nil
	}
	return app.StartTransaction(name)
}

// NoticeError records an error on txn
func (a *Agent) NoticeError(txn *newrelic.Transaction, err error) {
	if txn != nil && err != nil {
		txn.NoticeError(err)
	}
}

// NewContext adds transaction to context
func (a *Agent) NewContext(ctx context.Context, txn *newrelic.Transaction) context.Context {
	if txn == nil {
		return ctx
	}
	return newrelic.NewContext(ctx, txn)
}

// RoundTripper instruments base with external segments when the agent runs.
// Outbound requests are attributed to the transaction in their context.
func (a *Agent) RoundTripper(base http.RoundTripper) http.RoundTripper {
	if !a.IsEnabled() {
		return base
	}
	return newrelic.NewRoundTripper(base)
}

// RecordCustomEvent records a custom event
func (a *Agent) RecordCustomEvent(eventType string, params map[string]interface{}) {
	if app := a.application(); app != nil {
		app.RecordCustomEvent(eventType, params)
	}
}

// RecordCustomMetric records a custom metric
func (a *Agent) RecordCustomMetric(name string, value float64) {
	if app := a.application(); app != nil {
		app.RecordCustomMetric(name, value)
	}
}

// RecordReport emits one PoolReport event and the report metrics
func (a *Agent) RecordReport(r *estimate.Report, launcherID string) {
	if !a.IsEnabled() {
		return
	}

	a.RecordCustomEvent(EventPoolReport, ReportAttributes(r, launcherID))
	for name, value := range ReportMetrics(r) {
		a.RecordCustomMetric(name, value)
	}
}

// ReportAttributes returns the custom event attributes of r
func ReportAttributes(r *estimate.Report, launcherID string) map[string]interface{} {
	attrs := map[string]interface{}{
		"member":                util.MemberKey(launcherID),
		"periodStart":           r.PeriodStart.Unix(),
		"totalSpace":            r.TotalSpace,
		"poolSpace":             r.PoolSpace,
		"expectedBlocksPeriod":  r.ExpectedBlocksPeriod,
		"expectedBlocksElapsed": r.ExpectedBlocksElapsed,
		"actualBlocks":          r.ActualBlocks,
		"aheadBehind":           r.AheadBehind,
		"ahead":                 r.Ahead(),
		"points":                r.Points,
		"memberNetspace":        r.MemberNetspace,
		"poolshare":             r.PoolShare,
		"price":                 r.Price,
		"priceSource":           r.PriceSource,
		"payoutToDate":          r.PayoutToDate,
		"projectedTotal":        r.ProjectedTotal,
	}
	if r.ProfitabilityKnown {
		attrs["profitability"] = r.Profitability
	}
	return attrs
}

// ReportMetrics returns the custom metric values of r
func ReportMetrics(r *estimate.Report) map[string]float64 {
	return map[string]float64{
		MetricExpectedBlocks:  r.ExpectedBlocksPeriod,
		MetricAheadBehind:     r.AheadBehind,
		MetricPoolshare:       r.PoolShare,
		MetricProjectedPayout: r.ProjectedTotal,
		MetricPrice:           r.Price,
	}
}
