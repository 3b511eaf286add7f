// Package agent drives one simulated user through its full lifecycle against the
// target page.
package agent

import (
	"context"
	"fmt"
	"math/rand/v2"
	"path"
	"time"

	"github.com/hairizuan-noorazman/stormbot/action"
	"github.com/hairizuan-noorazman/stormbot/analysis"
	"github.com/hairizuan-noorazman/stormbot/browser"
	"github.com/hairizuan-noorazman/stormbot/logger"
	"github.com/hairizuan-noorazman/stormbot/persona"
	"github.com/hairizuan-noorazman/stormbot/storage"
	"github.com/hairizuan-noorazman/stormbot/strategy"
)

// Assignment is everything a runner needs for one agent.
type Assignment struct {
	Index     int
	Persona   persona.Persona
	Analysis  analysis.PageAnalysis
	TargetURL string
	Deadline  time.Time
	Session   browser.Session
	// RunDir is the storage prefix screenshots are written under.
	RunDir string
}

// Runner executes agents. One runner is shared by every agent of a run; all per-agent
// state lives inside Run.
type Runner struct {
	cfg        Config
	engine     *strategy.Engine
	summarizer *Summarizer
	storage    storage.BlobStorage
	logger     logger.Logger
}

// NewRunner creates a runner.
func NewRunner(cfg Config, engine *strategy.Engine, summarizer *Summarizer, blobStorage storage.BlobStorage, log logger.Logger) *Runner {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Runner{
		cfg:        cfg,
		engine:     engine,
		summarizer: summarizer,
		storage:    blobStorage,
		logger:     log,
	}
}

// agentRun is the state owned by a single Run call.
type agentRun struct {
	a        Assignment
	result   *Result
	events   *eventBuffer
	page     browser.Page
	rnd      *rand.Rand
	executor *action.Executor
	logger   logger.Logger
	// suggested is the last oracle vocabulary written to the action log.
	suggested string
}

// Run drives the agent until the deadline passes or ctx is done. It never fails: every
// error is recorded on the returned Result.
func (r *Runner) Run(ctx context.Context, a Assignment) Result {
	seed := r.cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	st := &agentRun{
		a:      a,
		result: newResult(a.Index, a.Persona, a.Analysis),
		events: newEventBuffer(r.cfg.EventBuffer),
		rnd:    rand.New(rand.NewPCG(seed, uint64(a.Index))),
		logger: r.logger.WithFields(map[string]interface{}{
			"agent_index": a.Index,
			"persona":     a.Persona.Name,
		}),
	}
	st.executor = action.NewExecutor(r.cfg.Delays, action.NewTextSource(seed+uint64(a.Index)), st.logger)
	st.result.StartedAt = r.cfg.Now()

	r.execute(ctx, st)

	st.events.drain(st.result)
	if dropped := st.events.dropped.Load(); dropped > 0 {
		st.logger.Warn(ctx, "page events dropped", map[string]interface{}{
			"dropped": dropped,
		})
	}
	st.result.FinishedAt = r.cfg.Now()

	st.logger.Info(ctx, "agent finished", map[string]interface{}{
		"actions":  len(st.result.Actions),
		"errors":   st.result.ErrorCount(),
		"requests": st.result.Requests,
	})
	return *st.result
}

// execute holds the navigate and loop phases. A panic anywhere inside is converted into
// an interaction error record so the agent still returns its partial result.
func (r *Runner) execute(ctx context.Context, st *agentRun) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		st.events.drain(st.result)
		st.logger.Error(ctx, "agent loop crashed", map[string]interface{}{
			"panic": fmt.Sprint(rec),
		})
		st.result.InteractionErrors = append(st.result.InteractionErrors,
			r.failure(ctx, st, fmt.Sprintf("agent crashed: %v", rec), "agent", true))
	}()

	page, err := st.a.Session.NewPage(ctx)
	if err != nil {
		st.result.NetworkErrors = append(st.result.NetworkErrors,
			r.failure(ctx, st, fmt.Sprintf("failed to open page: %v", err), "navigation", false))
		return
	}
	st.page = page
	page.OnEvent(st.events.push)

	// 1. Navigate and wait for network idle
	start := r.cfg.Now()
	if _, err := page.Goto(ctx, st.a.TargetURL); err != nil {
		st.logger.Warn(ctx, "navigation failed", map[string]interface{}{
			"error":      err.Error(),
			"target_url": st.a.TargetURL,
		})
		st.events.drain(st.result)
		st.result.NetworkErrors = append(st.result.NetworkErrors,
			r.failure(ctx, st, err.Error(), "navigation", true))
		return
	}
	st.result.PageLoadTime = r.cfg.Now().Sub(start).Milliseconds()
	st.result.Actions = append(st.result.Actions, "page loaded")

	// 2. Capture timing metrics and page dimensions
	st.result.Performance = collectPerformance(ctx, page)
	height := pageHeight(ctx, page)

	// 3. Act until the deadline
	for r.cfg.Now().Before(st.a.Deadline) && ctx.Err() == nil {
		st.events.drain(st.result)

		if kind, ok := r.decide(ctx, st); ok {
			out, err := st.executor.Execute(ctx, page, st.rnd, action.Request{
				Kind:       kind,
				Persona:    st.a.Persona.Name,
				PageHeight: height,
			})
			st.logger.Debug(ctx, "action performed", map[string]interface{}{
				"kind":       string(kind),
				"elapsed_ms": out.Elapsed.Milliseconds(),
			})
			switch {
			case err != nil:
				st.result.InteractionErrors = append(st.result.InteractionErrors,
					r.failure(ctx, st, err.Error(), string(kind), false))
			case out.Description != "":
				st.result.Actions = append(st.result.Actions, out.Description)
			}
		}

		d := st.executor.Delays()
		_ = action.Sleep(ctx, action.Between(st.rnd, d.PostMin, d.PostMax))
	}
}

// decide picks the next action. Above the confidence threshold it samples the persona's
// weight table, which may select nothing, and narrows generic picks to the oracle's
// suggested subtypes. Otherwise it draws a basic action.
func (r *Runner) decide(ctx context.Context, st *agentRun) (strategy.Kind, bool) {
	if st.a.Analysis.Confidence > r.cfg.ConfidenceThreshold {
		s := r.engine.Strategy(ctx, st.a.Persona, st.a.Analysis)
		if desc := s.Describe(); desc != st.suggested {
			st.suggested = desc
			st.result.Actions = append(st.result.Actions, "AI strategy: "+desc)
		}
		if len(s.Priorities) > 0 {
			kind, ok := strategy.Choose(s.Priorities, st.rnd)
			if !ok {
				return "", false
			}
			return s.Refine(kind), true
		}
	}
	return strategy.Basic(1 + st.rnd.IntN(4)), true
}

// failure builds an error record with a best-effort screenshot and, when summarize is
// set, an oracle summary.
func (r *Runner) failure(ctx context.Context, st *agentRun, msg, errContext string, summarize bool) ErrorRecord {
	rec := ErrorRecord{
		Timestamp: r.cfg.Now(),
		Message:   msg,
		Context:   errContext,
		SourceURL: st.a.TargetURL,
	}
	if st.page != nil {
		if u := st.page.URL(ctx); u != "" {
			rec.SourceURL = u
		}
		rec.ScreenshotPath = r.screenshot(ctx, st)
	}
	if summarize && r.summarizer != nil {
		rec.AISummary = r.summarizer.Summarize(ctx, rec)
	}
	return rec
}

// ScreenshotName is the artifact name for an error screenshot.
func ScreenshotName(index int, at time.Time) string {
	return fmt.Sprintf("error-user-%d-%d.png", index, at.UnixMilli())
}

func (r *Runner) screenshot(ctx context.Context, st *agentRun) string {
	data, err := st.page.Screenshot(ctx)
	if err != nil {
		st.logger.Debug(ctx, "screenshot capture failed", map[string]interface{}{"error": err.Error()})
		return ScreenshotUnavailable
	}
	if r.storage == nil {
		return ScreenshotUnavailable
	}

	name := path.Join(st.a.RunDir, ScreenshotName(st.a.Index, r.cfg.Now()))
	if err := r.storage.Write(ctx, name, data); err != nil {
		st.logger.Warn(ctx, "failed to store screenshot", map[string]interface{}{
			"error": err.Error(),
			"path":  name,
		})
		return ScreenshotUnavailable
	}
	st.result.Screenshots = append(st.result.Screenshots, name)
	return name
}
