package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hairizuan-noorazman/stormbot/agent"
)

// Load time thresholds for the insights section, in milliseconds.
const (
	SlowLoadMs = 3000
	FastLoadMs = 1000
)

type consoleStyles struct {
	Title   lipgloss.Style
	Section lipgloss.Style
	Label   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
}

func newConsoleStyles() consoleStyles {
	return consoleStyles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Section: lipgloss.NewStyle().Bold(true).Underline(true),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// Insights derives the human-readable observations for a report.
func Insights(rep Report) []string {
	s := rep.Summary
	var out []string
	switch {
	case s.TotalAgents == 0:
	case s.AverageLoadTime > SlowLoadMs:
		out = append(out, "High average load time detected")
	case s.AverageLoadTime < FastLoadMs:
		out = append(out, "Excellent page load performance")
	default:
		out = append(out, "Acceptable page load performance")
	}
	if s.TotalConsoleErrors > 0 {
		out = append(out, fmt.Sprintf("%d console errors detected", s.TotalConsoleErrors))
	} else {
		out = append(out, "No console errors detected")
	}
	if s.TotalErrors > 0 {
		out = append(out, fmt.Sprintf("%d total errors across %d categories", s.TotalErrors, errorCategories(s.ErrorCounts)))
	}
	if secs := rep.TestInfo.Duration; secs > 0 {
		out = append(out, fmt.Sprintf("%.2f requests per second", float64(s.TotalRequests)/float64(secs)))
	}
	return out
}

func errorCategories(c ErrorCounts) int {
	n := 0
	for _, v := range []int{c.TotalConsoleErrors, c.TotalPageErrors, c.TotalNetworkErrors, c.TotalHTTPErrors, c.TotalInteractionErrors} {
		if v > 0 {
			n++
		}
	}
	return n
}

// RenderConsole writes the human-readable run summary.
func RenderConsole(w io.Writer, rep Report, artifacts Artifacts) error {
	st := newConsoleStyles()
	s := rep.Summary
	var b strings.Builder

	line := func(label string, value interface{}) {
		fmt.Fprintf(&b, "  %s %v\n", st.Label.Render(label+":"), value)
	}

	b.WriteString(st.Title.Render("StormBot load test report") + "\n")
	line("Target", rep.TestInfo.TargetURL)
	line("Duration", fmt.Sprintf("%ds", rep.TestInfo.Duration))
	line("Total requests", s.TotalRequests)
	line("Console errors", s.TotalConsoleErrors)
	line("Total errors", s.TotalErrors)
	line("Average load time", fmt.Sprintf("%.0fms", s.AverageLoadTime))
	line("Successful users", fmt.Sprintf("%d/%d", s.SuccessfulAgents, s.TotalAgents))

	if rep.TestInfo.AIEnabled {
		b.WriteString("\n" + st.Section.Render("AI analysis") + "\n")
		line("Page type", fmt.Sprintf("%s (%.0f%% confidence)", rep.PageAnalysis.Type, rep.PageAnalysis.Confidence*100))
		for _, p := range rep.Personas {
			fmt.Fprintf(&b, "  %s\n", st.Muted.Render("- "+p.String()))
		}
	}

	if len(rep.Results) > 0 {
		b.WriteString("\n" + st.Section.Render("Per-user breakdown") + "\n")
	}
	for _, r := range rep.Results {
		status := st.Success.Render("ok")
		if !r.Successful() {
			status = st.Error.Render("failed")
		}
		fmt.Fprintf(&b, "  User %d %s [%s]: %dms load, %d requests, %d console errors, %d actions\n",
			r.AgentIndex, r.Persona.String(), status, r.PageLoadTime, r.Requests, len(r.ConsoleErrors), len(r.Actions))
		for _, msg := range errorMessages(r) {
			fmt.Fprintf(&b, "    %s\n", st.Error.Render(msg))
		}
	}

	b.WriteString("\n" + st.Section.Render("Insights") + "\n")
	for _, in := range Insights(rep) {
		style := st.Success
		if strings.Contains(in, "High") || (strings.Contains(in, "errors") && !strings.HasPrefix(in, "No")) {
			style = st.Warning
		}
		fmt.Fprintf(&b, "  %s\n", style.Render(in))
	}

	b.WriteString("\n" + st.Section.Render("Artifacts") + "\n")
	paths := []string{artifacts.Results, artifacts.ErrorReport, artifacts.AgentReport}
	sort.Strings(paths)
	for _, p := range paths {
		if p != "" {
			fmt.Fprintf(&b, "  %s\n", p)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// errorMessages lists up to three messages from an agent's error records.
func errorMessages(r agent.Result) []string {
	const limit = 3
	total := r.ErrorCount()
	var out []string
	for _, group := range [][]agent.ErrorRecord{r.NetworkErrors, r.PageErrors, r.ConsoleErrors, r.HTTPErrors, r.InteractionErrors} {
		for _, e := range group {
			if len(out) == limit {
				return append(out, fmt.Sprintf("... and %d more", total-limit))
			}
			out = append(out, e.Message)
		}
	}
	return out
}
