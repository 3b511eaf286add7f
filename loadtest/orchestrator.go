// Package loadtest coordinates a full load-test run: page classification, persona
// generation, concurrent agents and the final report.
package loadtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hairizuan-noorazman/stormbot/agent"
	"github.com/hairizuan-noorazman/stormbot/analysis"
	"github.com/hairizuan-noorazman/stormbot/browser"
	"github.com/hairizuan-noorazman/stormbot/logger"
	"github.com/hairizuan-noorazman/stormbot/oracle"
	"github.com/hairizuan-noorazman/stormbot/persona"
	"github.com/hairizuan-noorazman/stormbot/report"
	"github.com/hairizuan-noorazman/stormbot/run"
	"github.com/hairizuan-noorazman/stormbot/storage"
	"github.com/hairizuan-noorazman/stormbot/strategy"
)

// Outcome is what a finished run produced.
type Outcome struct {
	RunID     uuid.UUID
	Report    report.Report
	Artifacts report.Artifacts
}

// Orchestrator runs load tests.
type Orchestrator struct {
	config     Config
	launcher   browser.Launcher
	classifier *analysis.Classifier
	personas   *persona.Generator
	runner     *agent.Runner
	writer     *report.Writer
	runStore   run.Store
	logger     logger.Logger
}

// NewOrchestrator creates an orchestrator. runStore may be nil, in which case no run
// history is kept.
func NewOrchestrator(
	config Config,
	launcher browser.Launcher,
	o oracle.Oracle,
	blobStorage storage.BlobStorage,
	runStore run.Store,
	log logger.Logger,
) *Orchestrator {
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.Agent.Now == nil {
		config.Agent.Now = config.Now
	}
	return &Orchestrator{
		config:     config,
		launcher:   launcher,
		classifier: analysis.NewClassifier(o, log),
		personas:   persona.NewGenerator(o, log),
		runner: agent.NewRunner(
			config.Agent,
			strategy.NewEngine(o, log),
			agent.NewSummarizer(o, log),
			blobStorage,
			log,
		),
		writer:   report.NewWriter(blobStorage, log),
		runStore: runStore,
		logger:   log,
	}
}

// sessions tracks every browsing session opened during a run so teardown can close
// them all, including ones opened before a failure.
type sessions struct {
	mu   sync.Mutex
	open []browser.Session
}

func (s *sessions) track(sess browser.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = append(s.open, sess)
}

func (s *sessions) closeAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, sess := range s.open {
		if err := sess.Close(); err != nil && !errors.Is(err, browser.ErrClosed) {
			errs = append(errs, err)
		}
	}
	s.open = nil
	return errors.Join(errs...)
}

// Run executes a load test and writes its report. Agent failures never fail the run;
// only invalid parameters, browser launch failures and report persistence do.
func (o *Orchestrator) Run(ctx context.Context, p Params) (*Outcome, error) {
	// 1. Validate and record the run
	r := &run.Run{
		ID:        uuid.New(),
		TargetURL: p.TargetURL,
		Users:     p.Users,
		Duration:  int(p.Duration / time.Second),
		AIEnabled: p.AIEnabled,
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	log := o.logger.WithField("run_id", r.ID.String())

	start := o.config.Now()
	deadline := start.Add(p.Duration)
	dir := report.DirName(start)
	r.ReportDir = dir

	if o.runStore != nil {
		if err := o.runStore.Create(ctx, r); err != nil {
			return nil, fmt.Errorf("failed to record run: %w", err)
		}
		if err := o.runStore.Start(ctx, r.ID); err != nil {
			o.failRun(ctx, r.ID, fmt.Sprintf("failed to start run: %v", err))
			return nil, err
		}
	}

	log.Info(ctx, "load test started", map[string]interface{}{
		"target_url": p.TargetURL,
		"users":      p.Users,
		"duration":   p.Duration.String(),
		"ai_enabled": p.AIEnabled,
		"report_dir": dir,
	})

	tracked := &sessions{}
	defer func() {
		if err := tracked.closeAll(); err != nil {
			log.Warn(ctx, "failed to close browser sessions", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	// 2. Classify the target page once
	pa := analysis.Fallback()
	if p.AIEnabled {
		var err error
		pa, err = o.classify(ctx, tracked, p.TargetURL)
		if err != nil {
			o.failRun(ctx, r.ID, err.Error())
			return nil, err
		}
	}

	// 3. Personas
	var personas []persona.Persona
	if p.AIEnabled {
		personas = o.personas.GenerateOrFallback(ctx, pa.Type, p.Users)
	} else {
		personas = persona.Generic(p.Users)
	}

	// 4. One isolated session per agent
	assignments := make([]agent.Assignment, p.Users)
	for i := range assignments {
		sess, err := o.launcher.Launch(ctx)
		if err != nil {
			err = fmt.Errorf("failed to launch session for agent %d: %w", i+1, err)
			o.failRun(ctx, r.ID, err.Error())
			return nil, err
		}
		tracked.track(sess)
		assignments[i] = agent.Assignment{
			Index:     i + 1,
			Persona:   personas[i],
			Analysis:  pa,
			TargetURL: p.TargetURL,
			Deadline:  deadline,
			Session:   sess,
			RunDir:    dir,
		}
	}

	// 5. Run every agent concurrently; each writes only its own slot
	results := make([]agent.Result, p.Users)
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range assignments {
		g.Go(func() error {
			results[i] = o.runner.Run(gctx, a)
			return nil
		})
	}
	_ = g.Wait()

	if err := tracked.closeAll(); err != nil {
		log.Warn(ctx, "failed to close browser sessions", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// 6. Aggregate and persist. An interrupted run still gets its partial report.
	persistCtx := context.WithoutCancel(ctx)
	end := o.config.Now()
	rep := report.Aggregate(report.Meta{
		ID:           r.ID.String(),
		TargetURL:    p.TargetURL,
		Users:        p.Users,
		Duration:     p.Duration,
		AIEnabled:    p.AIEnabled,
		StartTime:    start,
		EndTime:      end,
		PageAnalysis: pa,
		Personas:     personas,
	}, results)

	artifacts, err := o.writer.Write(persistCtx, dir, rep)
	if err != nil {
		err = fmt.Errorf("failed to write report: %w", err)
		o.failRun(persistCtx, r.ID, err.Error())
		return nil, err
	}

	// 7. Mark the run completed
	if o.runStore != nil {
		summary, err := run.ToJSONMap(rep.Summary)
		if err == nil {
			err = o.runStore.Complete(persistCtx, r.ID, run.StatusCompleted, summary)
		}
		if err != nil {
			log.Error(persistCtx, "failed to mark run as completed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	log.Info(persistCtx, "load test completed", map[string]interface{}{
		"total_errors":      rep.Summary.TotalErrors,
		"successful_agents": rep.Summary.SuccessfulAgents,
		"total_agents":      rep.Summary.TotalAgents,
		"elapsed":           end.Sub(start).String(),
		"interrupted":       ctx.Err() != nil,
	})

	return &Outcome{RunID: r.ID, Report: rep, Artifacts: artifacts}, nil
}

// classify opens a throwaway session, loads the target and classifies it. Navigation
// failures fall back to the default analysis; only a launch failure is an error.
func (o *Orchestrator) classify(ctx context.Context, tracked *sessions, targetURL string) (analysis.PageAnalysis, error) {
	sess, err := o.launcher.Launch(ctx)
	if err != nil {
		return analysis.PageAnalysis{}, fmt.Errorf("failed to launch classification session: %w", err)
	}
	tracked.track(sess)
	defer sess.Close()

	page, err := sess.NewPage(ctx)
	if err != nil {
		o.logger.Warn(ctx, "classification page unavailable, using fallback analysis", map[string]interface{}{
			"error": err.Error(),
		})
		return analysis.Fallback(), nil
	}
	if _, err := page.Goto(ctx, targetURL); err != nil {
		o.logger.Warn(ctx, "classification navigation failed, using fallback analysis", map[string]interface{}{
			"error": err.Error(),
		})
		return analysis.Fallback(), nil
	}
	return o.classifier.Classify(ctx, page), nil
}

// failRun marks a run as failed with the given reason.
func (o *Orchestrator) failRun(ctx context.Context, runID uuid.UUID, reason string) {
	o.logger.Error(ctx, "load test failed", map[string]interface{}{
		"run_id": runID.String(),
		"reason": reason,
	})
	if o.runStore == nil {
		return
	}

	ctx = context.WithoutCancel(ctx)
	if err := o.runStore.Complete(ctx, runID, run.StatusFailed, run.JSONMap{
		"error": reason,
	}); err != nil {
		// The run may never have reached running.
		if err2 := o.runStore.Update(ctx, runID, run.SetStatus(run.StatusFailed), run.SetError(reason)); err2 != nil {
			o.logger.Error(ctx, "failed to mark run as failed", map[string]interface{}{
				"error":  err2.Error(),
				"run_id": runID.String(),
			})
		}
	}
}
