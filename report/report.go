// Package report folds finished agent results into run summaries and persists them.
package report

import (
	"sort"
	"strconv"
	"time"

	"github.com/hairizuan-noorazman/stormbot/agent"
	"github.com/hairizuan-noorazman/stormbot/analysis"
	"github.com/hairizuan-noorazman/stormbot/persona"
)

// Artifact names inside a run directory.
const (
	ResultsFile     = "test-results.json"
	ErrorReportFile = "error-report.json"
	AgentReportFile = "agent-report.json"

	// DirPrefix starts every run directory name.
	DirPrefix = "test-"
)

// DirName is the run directory for a run started at start.
func DirName(start time.Time) string {
	return DirPrefix + strconv.FormatInt(start.UnixMilli(), 10)
}

// Meta describes the run independent of its agents.
type Meta struct {
	ID           string
	TargetURL    string
	Users        int
	Duration     time.Duration
	AIEnabled    bool
	StartTime    time.Time
	EndTime      time.Time
	PageAnalysis analysis.PageAnalysis
	Personas     []persona.Persona
}

type TestInfo struct {
	ID        string    `json:"id"`
	TargetURL string    `json:"targetUrl"`
	Users     int       `json:"users"`
	Duration  int       `json:"duration"`
	AIEnabled bool      `json:"aiEnabled"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// ErrorCounts holds the per-category error totals.
type ErrorCounts struct {
	TotalErrors            int `json:"totalErrors"`
	TotalConsoleErrors     int `json:"totalConsoleErrors"`
	TotalPageErrors        int `json:"totalPageErrors"`
	TotalNetworkErrors     int `json:"totalNetworkErrors"`
	TotalHTTPErrors        int `json:"totalHttpErrors"`
	TotalInteractionErrors int `json:"totalInteractionErrors"`
}

type Summary struct {
	TotalRequests int `json:"totalRequests"`
	ErrorCounts
	AverageLoadTime  float64 `json:"averageLoadTime"`
	SuccessfulAgents int     `json:"successfulAgents"`
	TotalAgents      int     `json:"totalAgents"`
	TotalActions     int     `json:"totalActions"`
}

// Report is the full results artifact.
type Report struct {
	TestInfo     TestInfo              `json:"testInfo"`
	Summary      Summary               `json:"summary"`
	PageAnalysis analysis.PageAnalysis `json:"pageAnalysis"`
	Personas     []persona.Persona     `json:"personas"`
	Results      []agent.Result        `json:"results"`
}

type AgentErrors struct {
	Index             int                 `json:"index"`
	Name              string              `json:"name"`
	ConsoleErrors     []agent.ErrorRecord `json:"consoleErrors"`
	PageErrors        []agent.ErrorRecord `json:"pageErrors"`
	NetworkErrors     []agent.ErrorRecord `json:"networkErrors"`
	HTTPErrors        []agent.ErrorRecord `json:"httpErrors"`
	InteractionErrors []agent.ErrorRecord `json:"interactionErrors"`
	Screenshots       []string            `json:"screenshots"`
}

// ErrorReport lists only agents that recorded at least one error.
type ErrorReport struct {
	Summary ErrorCounts   `json:"summary"`
	Agents  []AgentErrors `json:"agents"`
}

type AgentSummary struct {
	Index       int               `json:"index"`
	Name        string            `json:"name"`
	Persona     string            `json:"persona"`
	Actions     int               `json:"actions"`
	Errors      int               `json:"errors"`
	LoadTime    int64             `json:"loadTime"`
	Requests    int               `json:"requests"`
	Performance agent.Performance `json:"performance"`
}

// AgentReport is the per-agent performance breakdown.
type AgentReport struct {
	Agents []AgentSummary `json:"agents"`
}

// Aggregate is a pure fold over results. Agents appear in index order regardless of the
// order they finished in.
func Aggregate(meta Meta, results []agent.Result) Report {
	ordered := make([]agent.Result, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].AgentIndex < ordered[j].AgentIndex })

	personas := meta.Personas
	if personas == nil {
		personas = []persona.Persona{}
	}

	return Report{
		TestInfo: TestInfo{
			ID:        meta.ID,
			TargetURL: meta.TargetURL,
			Users:     meta.Users,
			Duration:  int(meta.Duration / time.Second),
			AIEnabled: meta.AIEnabled,
			StartTime: meta.StartTime,
			EndTime:   meta.EndTime,
		},
		Summary:      Summarize(ordered),
		PageAnalysis: meta.PageAnalysis,
		Personas:     personas,
		Results:      ordered,
	}
}

// Summarize computes the summary counters.
func Summarize(results []agent.Result) Summary {
	s := Summary{TotalAgents: len(results)}
	var loadTotal int64
	for _, r := range results {
		s.TotalRequests += r.Requests
		s.TotalConsoleErrors += len(r.ConsoleErrors)
		s.TotalPageErrors += len(r.PageErrors)
		s.TotalNetworkErrors += len(r.NetworkErrors)
		s.TotalHTTPErrors += len(r.HTTPErrors)
		s.TotalInteractionErrors += len(r.InteractionErrors)
		s.TotalActions += len(r.Actions)
		loadTotal += r.PageLoadTime
		if r.Successful() {
			s.SuccessfulAgents++
		}
	}
	s.TotalErrors = s.TotalConsoleErrors + s.TotalPageErrors + s.TotalNetworkErrors + s.TotalHTTPErrors + s.TotalInteractionErrors
	if len(results) > 0 {
		s.AverageLoadTime = float64(loadTotal) / float64(len(results))
	}
	return s
}

// Errors builds the error artifact, or nil when no agent recorded an error.
func (r Report) Errors() *ErrorReport {
	if r.Summary.TotalErrors == 0 {
		return nil
	}
	er := &ErrorReport{Summary: r.Summary.ErrorCounts, Agents: []AgentErrors{}}
	for _, res := range r.Results {
		if res.ErrorCount() == 0 {
			continue
		}
		er.Agents = append(er.Agents, AgentErrors{
			Index:             res.AgentIndex,
			Name:              res.Persona.Name,
			ConsoleErrors:     res.ConsoleErrors,
			PageErrors:        res.PageErrors,
			NetworkErrors:     res.NetworkErrors,
			HTTPErrors:        res.HTTPErrors,
			InteractionErrors: res.InteractionErrors,
			Screenshots:       res.Screenshots,
		})
	}
	return er
}

// Agents builds the per-agent breakdown.
func (r Report) Agents() AgentReport {
	ar := AgentReport{Agents: make([]AgentSummary, 0, len(r.Results))}
	for _, res := range r.Results {
		ar.Agents = append(ar.Agents, AgentSummary{
			Index:       res.AgentIndex,
			Name:        res.Persona.Name,
			Persona:     res.Persona.Descriptor,
			Actions:     len(res.Actions),
			Errors:      res.ErrorCount(),
			LoadTime:    res.PageLoadTime,
			Requests:    res.Requests,
			Performance: res.Performance,
		})
	}
	return ar
}
