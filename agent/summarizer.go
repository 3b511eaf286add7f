package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/hairizuan-noorazman/stormbot/logger"
	"github.com/hairizuan-noorazman/stormbot/oracle"
)

// NoSummary is recorded when the oracle cannot summarize an error.
const NoSummary = "No summary available"

// Summarizer turns an error record into a short human-readable explanation.
type Summarizer struct {
	oracle oracle.Oracle
	logger logger.Logger
}

// NewSummarizer creates a summarizer.
func NewSummarizer(o oracle.Oracle, log logger.Logger) *Summarizer {
	return &Summarizer{oracle: o, logger: log}
}

// Summarize never fails; oracle errors and empty replies yield NoSummary.
func (s *Summarizer) Summarize(ctx context.Context, rec ErrorRecord) string {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return NoSummary
	}
	reply, err := oracle.Ask(ctx, s.oracle, "Summarize the following error context into a human-readable summary:\n"+string(data))
	if err != nil {
		fields := map[string]interface{}{"error": err.Error()}
		if oracle.IsRecoverable(err) {
			s.logger.Debug(ctx, "error summary unavailable", fields)
		} else {
			s.logger.Warn(ctx, "error summary failed", fields)
		}
		return NoSummary
	}
	reply = strings.TrimSpace(oracle.CleanReply(reply))
	if reply == "" {
		return NoSummary
	}
	return reply
}
