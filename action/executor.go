// Package action performs a chosen action kind against a live page.
package action

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hairizuan-noorazman/stormbot/browser"
	"github.com/hairizuan-noorazman/stormbot/logger"
	"github.com/hairizuan-noorazman/stormbot/strategy"
)

// Element selectors, one per click subtype plus inputs.
const (
	SelectorProducts = `[data-product], .product, .item, [class*="product"], [class*="item"]`
	SelectorCTA      = `[class*="cta"], [class*="button"], .btn-primary, .btn-cta`
	SelectorArticles = `article, .article, .post, .news-item`
	SelectorGeneral  = `a, button, [role="button"], input[type="submit"]`
	SelectorSearch   = `input[type="search"], input[name*="search"], .search-input`
	SelectorFill     = `input[type="text"], input[type="email"], textarea`
)

// viewportHeight is subtracted from the page height when picking a scroll offset.
const viewportHeight = 800

// ErrInteraction wraps every click, search and fill failure.
var ErrInteraction = errors.New("element interaction failed")

// Request is one action to perform.
type Request struct {
	Kind       strategy.Kind
	Persona    string
	PageHeight int
}

// Outcome describes what happened. Description is empty when nothing was done.
type Outcome struct {
	Description string
	// Elapsed is the time spent inside the action, pauses included.
	Elapsed time.Duration
}

// Executor dispatches action kinds to DOM interactions.
type Executor struct {
	delays Delays
	text   *TextSource
	logger logger.Logger
}

// NewExecutor creates an executor.
func NewExecutor(delays Delays, text *TextSource, log logger.Logger) *Executor {
	return &Executor{delays: delays, text: text, logger: log}
}

// Delays returns the executor's timing configuration.
func (e *Executor) Delays() Delays {
	return e.delays
}

// Execute performs req on page. Only click, search and fill return errors, always
// wrapping ErrInteraction. Scroll, read and wait never fail the iteration; unknown kinds
// are no-ops. Context cancellation during a pause is not an error.
func (e *Executor) Execute(ctx context.Context, page browser.Page, rnd Random, req Request) (Outcome, error) {
	start := time.Now()
	var (
		desc string
		err  error
	)

	switch req.Kind.Category() {
	case strategy.CategoryScroll:
		desc = e.scroll(ctx, page, rnd, req.PageHeight)
	case strategy.CategoryClick:
		desc, err = e.click(ctx, page, rnd, req.Kind)
	case strategy.CategoryRead:
		d := Between(rnd, e.delays.ReadMin, e.delays.ReadMax)
		_ = Sleep(ctx, d)
		desc = fmt.Sprintf("read for %dms", d.Milliseconds())
	case strategy.CategoryWait:
		d := Between(rnd, e.delays.WaitMin, e.delays.WaitMax)
		_ = Sleep(ctx, d)
		desc = fmt.Sprintf("waited %dms", d.Milliseconds())
	case strategy.CategorySearch:
		desc, err = e.search(ctx, page, req.Persona)
	case strategy.CategoryFill:
		desc, err = e.fill(ctx, page, rnd, req.Persona)
	default:
		e.logger.Debug(ctx, "unknown action kind, skipping", map[string]interface{}{
			"kind": string(req.Kind),
		})
	}

	return Outcome{Description: desc, Elapsed: time.Since(start)}, err
}

func (e *Executor) scroll(ctx context.Context, page browser.Page, rnd Random, height int) string {
	maxY := height - viewportHeight
	if maxY < 0 {
		maxY = 0
	}
	y := rnd.IntN(maxY + 1)
	var landed int
	if err := page.Evaluate(ctx, fmt.Sprintf("(window.scrollTo(0, %d), %d)", y, y), &landed); err != nil {
		e.logger.Debug(ctx, "scroll failed", map[string]interface{}{"error": err.Error()})
	}
	return fmt.Sprintf("scrolled to %dpx", y)
}

// ClickSelector returns the candidate selector for a click subtype.
func ClickSelector(k strategy.Kind) string {
	switch k {
	case strategy.ClickProducts:
		return SelectorProducts
	case strategy.ClickCTA:
		return SelectorCTA
	case strategy.ClickArticles:
		return SelectorArticles
	default:
		return SelectorGeneral
	}
}

func (e *Executor) candidates(ctx context.Context, page browser.Page, k strategy.Kind) ([]browser.Element, error) {
	selector := ClickSelector(k)
	elements, err := page.Query(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(elements) == 0 && selector != SelectorGeneral {
		return page.Query(ctx, SelectorGeneral)
	}
	return elements, nil
}

func (e *Executor) click(ctx context.Context, page browser.Page, rnd Random, k strategy.Kind) (string, error) {
	elements, err := e.candidates(ctx, page, k)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInteraction, k, err)
	}
	if len(elements) == 0 {
		return "", nil
	}

	el := elements[rnd.IntN(len(elements))]
	visible, err := el.Visible(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInteraction, k, err)
	}
	if !visible {
		return "", nil
	}
	if err := el.Click(ctx); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInteraction, k, err)
	}
	_ = Sleep(ctx, e.delays.ClickPause)
	return fmt.Sprintf("clicked: %s", k), nil
}

func (e *Executor) search(ctx context.Context, page browser.Page, personaName string) (string, error) {
	inputs, err := page.Query(ctx, SelectorSearch)
	if err != nil {
		return "", fmt.Errorf("%w: search: %v", ErrInteraction, err)
	}
	if len(inputs) == 0 {
		return "", nil
	}

	query := e.text.Query(personaName)
	if err := inputs[0].Fill(ctx, query); err != nil {
		return "", fmt.Errorf("%w: search: %v", ErrInteraction, err)
	}
	if err := inputs[0].Press(ctx, browser.KeyEnter); err != nil {
		return "", fmt.Errorf("%w: search: %v", ErrInteraction, err)
	}
	_ = Sleep(ctx, e.delays.SearchPause)
	return fmt.Sprintf("searched for %q", query), nil
}

func (e *Executor) fill(ctx context.Context, page browser.Page, rnd Random, personaName string) (string, error) {
	inputs, err := page.Query(ctx, SelectorFill)
	if err != nil {
		return "", fmt.Errorf("%w: fill: %v", ErrInteraction, err)
	}
	if len(inputs) == 0 {
		return "", nil
	}

	if err := inputs[rnd.IntN(len(inputs))].Fill(ctx, e.text.FormValue(personaName)); err != nil {
		return "", fmt.Errorf("%w: fill: %v", ErrInteraction, err)
	}
	return "filled form field", nil
}
