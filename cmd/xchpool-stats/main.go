// xchpool-stats - XCHPool member report
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/xchpool-tools/xchpool-stats/internal/api"
	"github.com/xchpool-tools/xchpool-stats/internal/config"
	"github.com/xchpool-tools/xchpool-stats/internal/estimate"
	"github.com/xchpool-tools/xchpool-stats/internal/newrelic"
	"github.com/xchpool-tools/xchpool-stats/internal/notify"
	"github.com/xchpool-tools/xchpool-stats/internal/profiling"
	"github.com/xchpool-tools/xchpool-stats/internal/report"
	"github.com/xchpool-tools/xchpool-stats/internal/runner"
	"github.com/xchpool-tools/xchpool-stats/internal/storage"
	"github.com/xchpool-tools/xchpool-stats/internal/util"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

type options struct {
	configPath string
	days       int
	logPath    string
	serve      bool
	noColor    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file (default ./config.json)")
	flag.IntVar(&opts.days, "days", estimate.DefaultDays, "Days of recent earnings to compare, 0 to skip")
	flag.StringVar(&opts.logPath, "log", "", "Append a semicolon separated row to this file")
	flag.BoolVar(&opts.serve, "serve", false, "Serve the report over HTTP instead of printing it")
	flag.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("xchpool-stats v%s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	err := run(opts)
	util.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	if opts.days < 0 {
		return fmt.Errorf("-days must not be negative, got %d", opts.days)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	level := cfg.Log.Level
	if opts.serve && level == config.DefaultLogLevel {
		level = "info"
	}
	if err := util.InitLogger(level, cfg.Log.Format, cfg.Log.File); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	util.Infof("xchpool-stats v%s starting for member %s", version, util.ShortID(cfg.LauncherID, 8))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agent := newrelic.NewAgent(&cfg.NewRelic)
	if err := agent.Start(); err != nil {
		util.Warnf("Failed to start New Relic agent: %v", err)
	}
	defer agent.Stop()

	runOpts := []runner.Option{
		runner.WithDays(opts.days),
		runner.WithAppender(opts.logPath),
		runner.WithAgent(agent),
	}

	var store *storage.RedisClient
	if cfg.Redis.Enabled {
		store, err = storage.NewRedisClient(ctx, cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB, cfg.LauncherID, cfg.Redis.History)
		if err != nil {
			if opts.serve {
				return err
			}
			util.Warnf("Report history disabled: %v", err)
		} else {
			defer store.Close()
			runOpts = append(runOpts, runner.WithStore(store))
		}
	}

	if cfg.NotifyEnabled() {
		runOpts = append(runOpts, runner.WithNotifier(notify.NewNotifier(&cfg.Notify, cfg.LauncherID)))
	}

	r := runner.New(cfg, runOpts...)

	if opts.serve {
		return serve(ctx, cfg, r, store)
	}

	rep, err := r.Report(ctx)
	if err != nil {
		return err
	}

	renderer := report.NewRenderer(os.Stdout, opts.noColor || color.NoColor)
	if err := renderer.Render(rep); err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	return r.Record(ctx, rep)
}

func serve(ctx context.Context, cfg *config.Config, r *runner.Runner, store *storage.RedisClient) error {
	var history api.HistoryStore
	if store != nil {
		history = store
	}

	prof := profiling.NewServer(&cfg.Profiling)
	if err := prof.Start(); err != nil {
		return fmt.Errorf("start profiling server: %w", err)
	}
	defer prof.Stop()

	server := api.NewServer(cfg, r.Refresh, history)
	server.SetUpstream(r.Fetcher().Client())
	if err := server.Start(); err != nil {
		return fmt.Errorf("start API server: %w", err)
	}

	util.Info("Serving reports. Press Ctrl+C to stop.")
	<-ctx.Done()
	util.Info("Shutting down...")

	if err := server.Stop(); err != nil {
		util.Warnf("API server shutdown: %v", err)
	}
	util.Info("Stopped")
	return nil
}
