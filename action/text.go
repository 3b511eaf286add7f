package action

import (
	"fmt"
	"strings"
	"sync"

	"github.com/brianvoe/gofakeit/v7"
)

// TextSource produces persona-tagged strings for search boxes and form fields.
type TextSource struct {
	mu    sync.Mutex
	faker *gofakeit.Faker
}

// NewTextSource creates a deterministic source for seed.
func NewTextSource(seed uint64) *TextSource {
	return &TextSource{faker: gofakeit.New(seed)}
}

// Query returns a search query tagged with the persona name.
func (t *TextSource) Query(personaName string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fmt.Sprintf("%s %s %s", tag(personaName), t.faker.Adjective(), t.faker.Noun())
}

// FormValue returns placeholder input tagged with the persona name.
func (t *TextSource) FormValue(personaName string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fmt.Sprintf("%s %s <%s>", tag(personaName), t.faker.Name(), t.faker.Email())
}

func tag(personaName string) string {
	name := strings.Join(strings.Fields(strings.ToLower(personaName)), "-")
	if name == "" {
		name = "stormbot"
	}
	return "[" + name + "]"
}
