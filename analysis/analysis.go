// Package analysis classifies the purpose of a loaded page.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hairizuan-noorazman/stormbot/browser"
	"github.com/hairizuan-noorazman/stormbot/logger"
	"github.com/hairizuan-noorazman/stormbot/oracle"
)

const (
	// FallbackType is the label used whenever classification cannot complete.
	FallbackType = "other"
	// FallbackConfidence pairs with FallbackType.
	FallbackConfidence = 0.5
	// LabelOnlyConfidence is assigned when the oracle answers with a bare label.
	LabelOnlyConfidence = 0.75

	maxBodyText = 1000
)

// PageAnalysis is the one-per-run classification of the target page.
type PageAnalysis struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// Fallback returns the analysis used when classification fails.
func Fallback() PageAnalysis {
	return PageAnalysis{Type: FallbackType, Confidence: FallbackConfidence}
}

// Content is the salient text pulled from a rendered page.
type Content struct {
	Title    string   `json:"title"`
	Headings []string `json:"headings"`
	Buttons  []string `json:"buttons"`
	Text     string   `json:"text"`
}

const extractScript = `(() => {
  const text = (el) => (el.innerText || el.value || "").trim();
  return {
    title: document.title || "",
    headings: Array.from(document.querySelectorAll("h1, h2, h3, h4, h5, h6")).map(text).filter(Boolean),
    buttons: Array.from(document.querySelectorAll("button, a, input[type=submit], [role=button]")).map(text).filter(Boolean),
    text: (document.body ? document.body.innerText : "").substring(0, 1000)
  };
})()`

// Extract reads the title, headings, interactive labels and the start of the body text.
func Extract(ctx context.Context, page browser.Page) (Content, error) {
	var c Content
	if err := page.Evaluate(ctx, extractScript, &c); err != nil {
		return Content{}, fmt.Errorf("failed to extract page content: %w", err)
	}
	if r := []rune(c.Text); len(r) > maxBodyText {
		c.Text = string(r[:maxBodyText])
	}
	return c, nil
}

// Classifier asks the oracle for a page-type label.
type Classifier struct {
	oracle oracle.Oracle
	logger logger.Logger
}

// NewClassifier creates a classifier.
func NewClassifier(o oracle.Oracle, log logger.Logger) *Classifier {
	return &Classifier{oracle: o, logger: log}
}

// Classify never fails: extraction or oracle errors yield Fallback().
func (c *Classifier) Classify(ctx context.Context, page browser.Page) PageAnalysis {
	content, err := Extract(ctx, page)
	if err != nil {
		c.logger.Warn(ctx, "page extraction failed, using fallback analysis", map[string]interface{}{
			"error": err.Error(),
		})
		return Fallback()
	}

	reply, err := oracle.Ask(ctx, c.oracle, BuildPrompt(content))
	if err != nil {
		c.logger.Warn(ctx, "page classification failed, using fallback analysis", map[string]interface{}{
			"error": err.Error(),
		})
		return Fallback()
	}

	result := ParseReply(reply)
	c.logger.Info(ctx, "page classified", map[string]interface{}{
		"type":       result.Type,
		"confidence": result.Confidence,
	})
	return result
}

// BuildPrompt renders the classification prompt for content.
func BuildPrompt(c Content) string {
	var b strings.Builder
	b.WriteString("Classify the following page content into one of the following types (but not limited to): ")
	b.WriteString("login page, CV page, portfolio page, product page, article page, checkout page, dashboard, ")
	b.WriteString("landing page, search engine homepage, blog, forum, or other relevant category.\n")
	b.WriteString(`Respond with JSON only: {"type": "<label>", "confidence": <number between 0 and 1>}` + "\n\n")
	fmt.Fprintf(&b, "Title: %s\n", c.Title)
	fmt.Fprintf(&b, "Headings: %s\n", strings.Join(c.Headings, " | "))
	fmt.Fprintf(&b, "Buttons: %s\n", strings.Join(c.Buttons, " | "))
	fmt.Fprintf(&b, "Text: %s\n", c.Text)
	return b.String()
}

// ParseReply accepts either the requested JSON object or a bare label.
func ParseReply(reply string) PageAnalysis {
	cleaned := oracle.CleanReply(reply)

	if raw := oracle.ExtractJSON(cleaned); strings.HasPrefix(raw, "{") {
		var parsed struct {
			Type       string   `json:"type"`
			Confidence *float64 `json:"confidence"`
		}
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
			label := normalizeLabel(parsed.Type)
			if label == "" {
				return Fallback()
			}
			confidence := LabelOnlyConfidence
			if parsed.Confidence != nil {
				confidence = clamp(*parsed.Confidence)
			}
			return PageAnalysis{Type: label, Confidence: confidence}
		}
	}

	line := cleaned
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	label := normalizeLabel(line)
	if label == "" {
		return Fallback()
	}
	return PageAnalysis{Type: label, Confidence: LabelOnlyConfidence}
}

func normalizeLabel(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'.`)
	return strings.ToLower(strings.TrimSpace(s))
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
