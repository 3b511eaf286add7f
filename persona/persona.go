// Package persona synthesizes the simulated users that drive each agent.
package persona

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hairizuan-noorazman/stormbot/logger"
	"github.com/hairizuan-noorazman/stormbot/oracle"
)

// ErrNoPersonas is returned when the oracle reply contains no usable persona lines.
var ErrNoPersonas = errors.New("no personas in oracle reply")

// GenericDescriptor is used for fallback personas and lines without a descriptor.
const GenericDescriptor = "general"

// Persona is the name/descriptor pair that biases one agent's behavior.
type Persona struct {
	Name       string `json:"name"`
	Descriptor string `json:"descriptor"`
}

// String renders the persona in its wire form, "Name-Descriptor".
func (p Persona) String() string {
	return p.Name + "-" + p.Descriptor
}

// GenericName is the fallback name for the agent at 1-based index.
func GenericName(index int) string {
	return fmt.Sprintf("user %d", index)
}

// Generic returns n generic personas named "user 1".."user n".
func Generic(n int) []Persona {
	if n < 0 {
		n = 0
	}
	out := make([]Persona, n)
	for i := range out {
		out[i] = Persona{Name: GenericName(i + 1), Descriptor: GenericDescriptor}
	}
	return out
}

// ParseLine splits line on its first "-". Malformed lines degrade to usable fields:
// a missing separator makes the whole line the name, and empty segments fall back to
// the generic name for index and GenericDescriptor.
func ParseLine(line string, index int) Persona {
	line = stripListMarker(strings.TrimSpace(line))

	name, descriptor, found := strings.Cut(line, "-")
	if !found {
		descriptor = ""
	}
	name = strings.TrimSpace(name)
	descriptor = strings.TrimSpace(descriptor)

	if name == "" {
		name = GenericName(index)
	}
	if descriptor == "" {
		descriptor = GenericDescriptor
	}
	return Persona{Name: name, Descriptor: descriptor}
}

// stripListMarker removes leading "1.", "2)", "-", "*" or "•" markers models like to add.
// A dash only counts as a marker when whitespace follows it.
func stripListMarker(line string) string {
	line = strings.TrimLeft(line, "*• ")
	if rest, ok := strings.CutPrefix(line, "- "); ok {
		line = strings.TrimLeft(rest, " ")
	}
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		line = line[i+1:]
	}
	return strings.TrimSpace(line)
}

// Parse converts an oracle reply into exactly n personas, padding with generic
// personas when the reply is short and dropping extra lines.
func Parse(reply string, n int) []Persona {
	if n <= 0 {
		return []Persona{}
	}
	out := make([]Persona, 0, n)
	for _, line := range strings.Split(oracle.CleanReply(reply), "\n") {
		if len(out) == n {
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, ParseLine(line, len(out)+1))
	}
	for len(out) < n {
		out = append(out, Persona{Name: GenericName(len(out) + 1), Descriptor: GenericDescriptor})
	}
	return out
}

// Generator asks the oracle for a mix of personas suited to a page type.
type Generator struct {
	oracle oracle.Oracle
	logger logger.Logger
}

// NewGenerator creates a persona generator.
func NewGenerator(o oracle.Oracle, log logger.Logger) *Generator {
	return &Generator{oracle: o, logger: log}
}

// Generate returns exactly n personas for pageType. Oracle failures and empty replies
// are returned as errors; callers fall back to Generic(n).
func (g *Generator) Generate(ctx context.Context, pageType string, n int) ([]Persona, error) {
	if n <= 0 {
		return []Persona{}, nil
	}

	reply, err := oracle.Ask(ctx, g.oracle, BuildPrompt(pageType, n))
	if err != nil {
		return nil, fmt.Errorf("failed to generate personas: %w", err)
	}
	if strings.TrimSpace(oracle.CleanReply(reply)) == "" {
		return nil, ErrNoPersonas
	}

	personas := Parse(reply, n)
	g.logger.Info(ctx, "personas generated", map[string]interface{}{
		"page_type": pageType,
		"count":     len(personas),
	})
	return personas, nil
}

// GenerateOrFallback is Generate with the generic fallback applied.
func (g *Generator) GenerateOrFallback(ctx context.Context, pageType string, n int) []Persona {
	personas, err := g.Generate(ctx, pageType, n)
	if err != nil {
		g.logger.Warn(ctx, "persona generation failed, using generic personas", map[string]interface{}{
			"error": err.Error(),
			"count": n,
		})
		return Generic(n)
	}
	return personas
}

// BuildPrompt renders the persona prompt with the 45/30/25 mixture policy.
func BuildPrompt(pageType string, n int) string {
	aligned, forms, random := Mix(n)

	var b strings.Builder
	fmt.Fprintf(&b, "Generate exactly %d user personas for load testing a %s.\n", n, pageType)
	fmt.Fprintf(&b, "- %d personas aligned with the primary purpose of a %s\n", aligned, pageType)
	fmt.Fprintf(&b, "- %d personas focused on forms, inputs and interaction edge cases\n", forms)
	fmt.Fprintf(&b, "- %d generic or random testers\n", random)
	b.WriteString("Output one persona per line in the exact format Name-Descriptor, ")
	b.WriteString("for example: Shopper-compares prices before buying. ")
	b.WriteString("Do not number the lines or add any other text.")
	return b.String()
}

// Mix splits n into aligned, form-focused and random counts (about 45%, 30%, 25%).
func Mix(n int) (aligned, forms, random int) {
	if n <= 0 {
		return 0, 0, 0
	}
	aligned = (n*45 + 50) / 100
	forms = (n*30 + 50) / 100
	if aligned+forms > n {
		forms = n - aligned
	}
	random = n - aligned - forms
	return aligned, forms, random
}
