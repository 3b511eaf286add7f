package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hairizuan-noorazman/stormbot/browser"
)

// FakeLauncher is an in-memory browser.Launcher. Each launched session hands out pages
// produced by PageFactory.
type FakeLauncher struct {
	mu sync.Mutex

	// PageFactory builds the page for the n-th launched session (0-based).
	PageFactory func(n int) *FakePage
	// LaunchErr, when set, fails launches with index >= FailFrom.
	LaunchErr error
	FailFrom  int

	Sessions []*FakeSession
}

// Launch creates a fake session.
func (l *FakeLauncher) Launch(ctx context.Context) (browser.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.Sessions)
	if l.LaunchErr != nil && n >= l.FailFrom {
		return nil, l.LaunchErr
	}
	var p *FakePage
	if l.PageFactory != nil {
		p = l.PageFactory(n)
	}
	if p == nil {
		p = NewFakePage()
	}
	s := &FakeSession{page: p}
	l.Sessions = append(l.Sessions, s)
	return s, nil
}

// Launched returns the number of sessions launched so far.
func (l *FakeLauncher) Launched() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Sessions)
}

// AllClosed reports whether every launched session was closed.
func (l *FakeLauncher) AllClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.Sessions {
		if !s.Closed() {
			return false
		}
	}
	return true
}

// FakeSession is a browser.Session with a single page.
type FakeSession struct {
	mu     sync.Mutex
	page   *FakePage
	closed bool
}

func (s *FakeSession) NewPage(ctx context.Context) (browser.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, browser.ErrClosed
	}
	return s.page, nil
}

func (s *FakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *FakeSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Page returns the session's page.
func (s *FakeSession) Page() *FakePage {
	return s.page
}

// FakePage is a scriptable browser.Page.
type FakePage struct {
	mu sync.Mutex

	CurrentURL string
	Status     int
	GotoErr    error
	GotoDelay  time.Duration
	// AfterGoto runs after a successful navigation, typically to Emit events.
	AfterGoto func(p *FakePage)

	// Elements maps a CSS selector to the handles Query returns.
	Elements map[string][]*FakeElement
	QueryErr error

	// EvalFunc answers Evaluate; nil leaves out untouched.
	EvalFunc func(expression string, out interface{}) error

	ScreenshotData []byte
	ScreenshotErr  error

	// PanicOnQuery makes Query panic, simulating an unexpected runtime failure.
	PanicOnQuery bool

	handlers    []func(browser.Event)
	visited     []string
	evaluated   []string
	screenshots int
}

// NewFakePage returns a page that navigates successfully with status 200.
func NewFakePage() *FakePage {
	return &FakePage{
		Status:         200,
		Elements:       map[string][]*FakeElement{},
		ScreenshotData: []byte("\x89PNG fake"),
	}
}

func (p *FakePage) Goto(ctx context.Context, url string) (*browser.Response, error) {
	if p.GotoDelay > 0 {
		select {
		case <-time.After(p.GotoDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	p.visited = append(p.visited, url)
	if p.GotoErr != nil {
		err := p.GotoErr
		p.mu.Unlock()
		return nil, errors.Join(browser.ErrNavigation, err)
	}
	p.CurrentURL = url
	status := p.Status
	after := p.AfterGoto
	p.mu.Unlock()

	if after != nil {
		after(p)
	}
	return &browser.Response{URL: url, Status: status}, nil
}

func (p *FakePage) Query(ctx context.Context, selector string) ([]browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.PanicOnQuery {
		panic("query on crashed page")
	}
	if p.QueryErr != nil {
		return nil, p.QueryErr
	}
	matches := p.Elements[selector]
	out := make([]browser.Element, 0, len(matches))
	for _, e := range matches {
		out = append(out, e)
	}
	return out, nil
}

func (p *FakePage) Evaluate(ctx context.Context, expression string, out interface{}) error {
	p.mu.Lock()
	p.evaluated = append(p.evaluated, expression)
	fn := p.EvalFunc
	p.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(expression, out)
}

func (p *FakePage) Screenshot(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.screenshots++
	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	return p.ScreenshotData, nil
}

func (p *FakePage) URL(ctx context.Context) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CurrentURL
}

func (p *FakePage) OnEvent(handler func(browser.Event)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, handler)
}

// Emit delivers ev to every registered listener.
func (p *FakePage) Emit(ev browser.Event) {
	p.mu.Lock()
	handlers := make([]func(browser.Event), len(p.handlers))
	copy(handlers, p.handlers)
	p.mu.Unlock()

	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	for _, h := range handlers {
		h(ev)
	}
}

// Visited returns the URLs passed to Goto.
func (p *FakePage) Visited() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.visited...)
}

// Evaluated returns the expressions passed to Evaluate.
func (p *FakePage) Evaluated() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.evaluated...)
}

// Screenshots returns how many captures were attempted.
func (p *FakePage) Screenshots() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.screenshots
}

// FakeElement is a scriptable browser.Element.
type FakeElement struct {
	mu sync.Mutex

	Hidden   bool
	ClickErr error
	FillErr  error
	PressErr error

	clicks int
	values []string
	keys   []string
}

func (e *FakeElement) Visible(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.Hidden, nil
}

func (e *FakeElement) Click(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ClickErr != nil {
		return e.ClickErr
	}
	e.clicks++
	return nil
}

func (e *FakeElement) Fill(ctx context.Context, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.FillErr != nil {
		return e.FillErr
	}
	e.values = append(e.values, value)
	return nil
}

func (e *FakeElement) Press(ctx context.Context, key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.PressErr != nil {
		return e.PressErr
	}
	e.keys = append(e.keys, key)
	return nil
}

// Clicks returns the number of successful clicks.
func (e *FakeElement) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

// Values returns every value filled into the element.
func (e *FakeElement) Values() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.values...)
}

// Keys returns every key pressed on the element.
func (e *FakeElement) Keys() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.keys...)
}
