package newrelic

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/xchpool-tools/xchpool-stats/internal/config"
	"github.com/xchpool-tools/xchpool-stats/internal/estimate"
)

const testLauncherID = "a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90"

func testReport() *estimate.Report {
	return &estimate.Report{
		Timestamp:            time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC),
		PeriodStart:          time.Date(2024, 3, 2, 6, 0, 0, 0, time.UTC),
		ExpectedBlocksPeriod: 11.52,
		AheadBehind:          -3.76,
		ActualBlocks:         2,
		PoolShare:            0.01,
		Price:                30,
		ProjectedTotal:       0.1358,
	}
}

// offlineAgent returns an agent with a local application that never connects
func offlineAgent(t *testing.T) *Agent {
	t.Helper()

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName("xchpool-stats-test"),
		newrelic.ConfigEnabled(false),
	)
	if err != nil {
		t.Fatalf("NewApplication() error = %v", err)
	}

	agent := NewAgent(&config.NewRelicConfig{Enabled: true, AppName: "xchpool-stats-test"})
	agent.app = app
	return agent
}

func TestNewAgent(t *testing.T) {
	cfg := &config.NewRelicConfig{
		Enabled:    true,
		AppName:    "xchpool-stats",
		LicenseKey: "test_key",
	}

	agent := NewAgent(cfg)
	if agent.cfg != cfg {
		t.Error("Agent.cfg not set correctly")
	}
	if agent.app != nil {
		t.Error("Agent.app should be nil before Start()")
	}
}

func TestStartDisabled(t *testing.T) {
	agent := NewAgent(&config.NewRelicConfig{Enabled: false})

	if err := agent.Start(); err != nil {
		t.Errorf("Start() returned error when disabled: %v", err)
	}
	if agent.IsEnabled() {
		t.Error("agent should not be enabled")
	}
}

func TestStartNoLicenseKey(t *testing.T) {
	agent := NewAgent(&config.NewRelicConfig{Enabled: true, AppName: "xchpool-stats"})

	if err := agent.Start(); err != nil {
		t.Errorf("Start() returned error with empty license key: %v", err)
	}
	if agent.IsEnabled() {
		t.Error("agent should not be enabled without license key")
	}
}

func TestNotStarted(t *testing.T) {
	agent := NewAgent(&config.NewRelicConfig{})

	// None of these may panic on a stopped agent
	agent.Stop()
	agent.RecordReport(testReport(), testLauncherID)
	agent.RecordCustomEvent("Test", map[string]interface{}{"k": 1})
	agent.RecordCustomMetric("Custom/Test", 1)
	agent.NoticeError(nil, errors.New("boom"))

	if txn := agent.StartTransaction("fetch"); txn != nil {
		t.Error("StartTransaction should return nil when not started")
	}

	ctx := context.Background()
	if got := agent.NewContext(ctx, nil); got != ctx {
		t.Error("NewContext with nil transaction should return the same context")
	}

	base := http.DefaultTransport
	if rt := agent.RoundTripper(base); rt != base {
		t.Error("RoundTripper should return base when not started")
	}
}

func TestOfflineAgent(t *testing.T) {
	agent := offlineAgent(t)
	defer agent.Stop()

	if !agent.IsEnabled() {
		t.Fatal("agent with application should be enabled")
	}

	txn := agent.StartTransaction("fetch")
	if txn == nil {
		t.Fatal("StartTransaction returned nil")
	}
	defer txn.End()

	ctx := agent.NewContext(context.Background(), txn)
	if newrelic.FromContext(ctx) != txn {
		t.Error("transaction not attached to context")
	}

	if rt := agent.RoundTripper(http.DefaultTransport); rt == http.DefaultTransport {
		t.Error("RoundTripper should wrap base when enabled")
	}

	agent.NoticeError(txn, errors.New("fetch failed"))
	agent.RecordReport(testReport(), testLauncherID)
}

func TestReportAttributes(t *testing.T) {
	r := testReport()
	attrs := ReportAttributes(r, testLauncherID)

	tests := []struct {
		key      string
		expected interface{}
	}{
		{"expectedBlocksPeriod", 11.52},
		{"aheadBehind", -3.76},
		{"ahead", false},
		{"actualBlocks", int64(2)},
		{"poolshare", 0.01},
		{"periodStart", r.PeriodStart.Unix()},
	}
	for _, tt := range tests {
		if attrs[tt.key] != tt.expected {
			t.Errorf("attrs[%s] = %v, want %v", tt.key, attrs[tt.key], tt.expected)
		}
	}

	if _, ok := attrs["profitability"]; ok {
		t.Error("unknown profitability should be omitted")
	}
	if member, _ := attrs["member"].(string); len(member) != 32 {
		t.Errorf("member = %q, want hashed key", member)
	}

	r.ProfitabilityKnown = true
	r.Profitability = 0.5
	if ReportAttributes(r, testLauncherID)["profitability"] != 0.5 {
		t.Error("known profitability should be reported")
	}
}

func TestReportMetrics(t *testing.T) {
	metrics := ReportMetrics(testReport())

	expected := map[string]float64{
		MetricExpectedBlocks:  11.52,
		MetricAheadBehind:     -3.76,
		MetricPoolshare:       0.01,
		MetricProjectedPayout: 0.1358,
		MetricPrice:           30,
	}
	if len(metrics) != len(expected) {
		t.Fatalf("metrics = %d entries, want %d", len(metrics), len(expected))
	}
	for name, want := range expected {
		if metrics[name] != want {
			t.Errorf("%s = %v, want %v", name, metrics[name], want)
		}
	}
}

func TestConcurrentAccess(t *testing.T) {
	agent := offlineAgent(t)
	defer agent.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			agent.IsEnabled()
			agent.RecordReport(testReport(), testLauncherID)
			if txn := agent.StartTransaction("concurrent"); txn != nil {
				txn.End()
			}
		}()
	}
	wg.Wait()
}
