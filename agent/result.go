package agent

import (
	"time"

	"github.com/hairizuan-noorazman/stormbot/analysis"
	"github.com/hairizuan-noorazman/stormbot/persona"
)

// ScreenshotUnavailable replaces a record's screenshot path when capture or upload fails.
const ScreenshotUnavailable = "screenshot-unavailable"

// ErrorRecord is one failure observed by an agent. Records are never mutated after
// creation.
type ErrorRecord struct {
	Timestamp      time.Time `json:"timestamp"`
	Message        string    `json:"message"`
	Context        string    `json:"context,omitempty"`
	SourceURL      string    `json:"sourceUrl,omitempty"`
	Status         int       `json:"status,omitempty"`
	ScreenshotPath string    `json:"screenshotPath,omitempty"`
	AISummary      string    `json:"aiSummary,omitempty"`
}

// Performance is the navigation-timing snapshot taken after the first load, in ms.
type Performance struct {
	DOMContentLoaded       float64 `json:"domContentLoaded"`
	LoadComplete           float64 `json:"loadComplete"`
	FirstPaint             float64 `json:"firstPaint"`
	FirstContentfulPaint   float64 `json:"firstContentfulPaint"`
	LargestContentfulPaint float64 `json:"largestContentfulPaint"`
}

// Result is everything one agent observed. It is owned by its Runner until Run returns.
type Result struct {
	AgentIndex        int                   `json:"agentIndex"`
	Persona           persona.Persona       `json:"persona"`
	PageLoadTime      int64                 `json:"pageLoadTime"`
	Actions           []string              `json:"actions"`
	ConsoleErrors     []ErrorRecord         `json:"consoleErrors"`
	PageErrors        []ErrorRecord         `json:"pageErrors"`
	NetworkErrors     []ErrorRecord         `json:"networkErrors"`
	HTTPErrors        []ErrorRecord         `json:"httpErrors"`
	InteractionErrors []ErrorRecord         `json:"interactionErrors"`
	Screenshots       []string              `json:"screenshots"`
	Requests          int                   `json:"requests"`
	Performance       Performance           `json:"performance"`
	PageAnalysis      analysis.PageAnalysis `json:"pageAnalysis"`
	StartedAt         time.Time             `json:"startedAt"`
	FinishedAt        time.Time             `json:"finishedAt"`
}

func newResult(index int, p persona.Persona, pa analysis.PageAnalysis) *Result {
	return &Result{
		AgentIndex:        index,
		Persona:           p,
		PageAnalysis:      pa,
		Actions:           []string{},
		ConsoleErrors:     []ErrorRecord{},
		PageErrors:        []ErrorRecord{},
		NetworkErrors:     []ErrorRecord{},
		HTTPErrors:        []ErrorRecord{},
		InteractionErrors: []ErrorRecord{},
		Screenshots:       []string{},
	}
}

// ErrorCount is the number of errors across every category.
func (r Result) ErrorCount() int {
	return len(r.ConsoleErrors) + len(r.PageErrors) + len(r.NetworkErrors) + len(r.HTTPErrors) + len(r.InteractionErrors)
}

// Successful reports whether the agent recorded at least one action.
func (r Result) Successful() bool {
	return len(r.Actions) > 0
}
