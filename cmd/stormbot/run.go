package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hairizuan-noorazman/stormbot/loadtest"
	"github.com/hairizuan-noorazman/stormbot/report"
	"github.com/hairizuan-noorazman/stormbot/run"
)

var runFlags struct {
	url       string
	users     int
	duration  int
	aiEnabled bool
	reportDir string
	headless  bool
	json      bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a load test against a URL",
	Example: `  stormbot run --url https://example.com --users 10 --duration 120
  stormbot run --url https://example.com --ai-enabled=false`,
	RunE: runLoadTest,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.url, "url", "", "target URL (required)")
	f.IntVar(&runFlags.users, "users", 5, "number of concurrent agents")
	f.IntVar(&runFlags.duration, "duration", 60, "test duration in seconds")
	f.BoolVar(&runFlags.aiEnabled, "ai-enabled", true, "use the AI oracle for classification, personas and strategies")
	f.StringVar(&runFlags.reportDir, "report-dir", "", "local report directory (overrides storage.base_dir)")
	f.BoolVar(&runFlags.headless, "headless", true, "run browsers headless")
	f.BoolVar(&runFlags.json, "json", false, "print the results report as JSON instead of the console summary")
	_ = runCmd.MarkFlagRequired("url")

	rootCmd.AddCommand(runCmd)
}

func runLoadTest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runFlags.reportDir != "" {
		cfg.Storage.BaseDir = runFlags.reportDir
	}
	if cmd.Flags().Changed("headless") {
		cfg.Browser.Headless = runFlags.headless
	}

	log := newLogger(cfg)
	log.Info(ctx, "starting stormbot", map[string]interface{}{
		"version": Version,
		"commit":  Commit,
		"date":    BuildDate,
	})

	o, err := newOracle(ctx, cfg, runFlags.aiEnabled)
	if err != nil {
		return fmt.Errorf("failed to initialize oracle: %w", err)
	}

	blobStorage, err := newStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	var runStore run.Store
	if cfg.History.Enabled {
		store, closeDB, err := openHistory(cfg, log)
		if err != nil {
			return err
		}
		defer closeDB()
		runStore = store
	}

	orchCfg := loadtest.DefaultConfig()
	orchCfg.Agent.ConfidenceThreshold = cfg.Agent.ConfidenceThreshold
	orchCfg.Agent.EventBuffer = cfg.Agent.EventBuffer
	if cfg.Agent.DelayScale > 0 {
		orchCfg.Agent.Delays = orchCfg.Agent.Delays.Scale(cfg.Agent.DelayScale)
	}

	orch := loadtest.NewOrchestrator(orchCfg, newLauncher(cfg), o, blobStorage, runStore, log)
	out, err := orch.Run(ctx, loadtest.Params{
		TargetURL: runFlags.url,
		Users:     runFlags.users,
		Duration:  time.Duration(runFlags.duration) * time.Second,
		AIEnabled: runFlags.aiEnabled,
	})
	if err != nil {
		return err
	}

	if runFlags.json {
		printJSON(out.Report)
		return nil
	}
	return report.RenderConsole(os.Stdout, out.Report, locate(blobStorage.Location, out.Artifacts))
}

// locate rewrites artifact paths to their storage locations for display.
func locate(location func(string) string, a report.Artifacts) report.Artifacts {
	for _, p := range []*string{&a.Results, &a.ErrorReport, &a.AgentReport} {
		if *p != "" {
			*p = location(*p)
		}
	}
	a.Dir = location(a.Dir)
	return a
}
