package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hairizuan-noorazman/stormbot/analysis"
	"github.com/hairizuan-noorazman/stormbot/logger"
	"github.com/hairizuan-noorazman/stormbot/oracle"
	"github.com/hairizuan-noorazman/stormbot/persona"
)

// Strategy is the vocabulary and weight table for one decision.
type Strategy struct {
	Actions    []Kind      `json:"actions"`
	Priorities WeightTable `json:"priorities"`
}

// Refine narrows a generic click or read to the first suggested kind of the same
// category, so a chosen "click" becomes "click_products" when the oracle suggested it.
// Any other kind is returned unchanged.
func (s Strategy) Refine(k Kind) Kind {
	if k != Click && k != Read {
		return k
	}
	for _, a := range s.Actions {
		if a != k && a.Category() == k.Category() {
			return a
		}
	}
	return k
}

// Describe renders the suggested vocabulary as a comma separated list.
func (s Strategy) Describe() string {
	out := make([]string, len(s.Actions))
	for i, a := range s.Actions {
		out[i] = string(a)
	}
	return strings.Join(out, ", ")
}

// FallbackActions is the vocabulary used when the oracle cannot suggest actions.
func FallbackActions() []Kind {
	return []Kind{Scroll, Click, Read, Wait}
}

// Fallback returns the strategy used when the oracle fails.
func Fallback() Strategy {
	return Strategy{Actions: FallbackActions(), Priorities: DefaultTable()}
}

// Engine derives a fresh Strategy for each decision.
type Engine struct {
	oracle oracle.Oracle
	logger logger.Logger
}

// NewEngine creates a strategy engine.
func NewEngine(o oracle.Oracle, log logger.Logger) *Engine {
	return &Engine{oracle: o, logger: log}
}

// Strategy asks the oracle for action suggestions and pairs them with the persona's
// archetype table. It never fails; oracle errors yield Fallback().
func (e *Engine) Strategy(ctx context.Context, p persona.Persona, pa analysis.PageAnalysis) Strategy {
	reply, err := oracle.Ask(ctx, e.oracle, BuildPrompt(p, pa.Type))
	if err != nil {
		fields := map[string]interface{}{"error": err.Error()}
		if oracle.IsRecoverable(err) {
			e.logger.Debug(ctx, "action suggestion unavailable, using fallback strategy", fields)
		} else {
			e.logger.Warn(ctx, "action suggestion failed, using fallback strategy", fields)
		}
		return Fallback()
	}

	actions, err := ParseActions(reply)
	if err != nil {
		e.logger.Debug(ctx, "unparseable action suggestion, using fallback strategy", map[string]interface{}{
			"error": err.Error(),
		})
		return Fallback()
	}

	return Strategy{Actions: actions, Priorities: TableFor(p.Name)}
}

// BuildPrompt renders the action-suggestion prompt.
func BuildPrompt(p persona.Persona, pageType string) string {
	return fmt.Sprintf(
		"You are simulating a %s (%s). Given the page type: %s, generate 3 realistic user actions as a JSON array of strings. "+
			"Choose from: %s.",
		p.Name, p.Descriptor, pageType, strings.Join(vocabulary(), ", "),
	)
}

func vocabulary() []string {
	kinds := []Kind{Scroll, Click, ClickProducts, ClickCTA, ClickArticles, Read, ReadContent, ReadHeadlines, Wait, Search, FillForm, FillFields}
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

// ParseActions reads a JSON array of strings from reply. Kinds outside the vocabulary
// are dropped.
func ParseActions(reply string) ([]Kind, error) {
	raw := oracle.ExtractJSON(reply)
	if !strings.HasPrefix(raw, "[") {
		return nil, fmt.Errorf("no JSON array in reply")
	}

	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("failed to decode actions: %w", err)
	}

	actions := make([]Kind, 0, len(items))
	for _, item := range items {
		if k := ParseKind(item); k.Known() {
			actions = append(actions, k)
		}
	}
	if len(actions) == 0 {
		return nil, fmt.Errorf("empty action list")
	}
	return actions, nil
}
