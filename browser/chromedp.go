package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// ChromeConfig configures headless Chrome sessions.
type ChromeConfig struct {
	Headless          bool
	ExecPath          string
	NavigationTimeout time.Duration
	IdleTimeout       time.Duration
}

// ChromeLauncher launches one Chrome process per session, mirroring one browser per agent.
type ChromeLauncher struct {
	config ChromeConfig
}

// NewChromeLauncher creates a launcher with defaults for unset timeouts.
func NewChromeLauncher(cfg ChromeConfig) *ChromeLauncher {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 10 * time.Second
	}
	return &ChromeLauncher{config: cfg}
}

// Launch starts a browser process and returns its session.
func (l *ChromeLauncher) Launch(ctx context.Context) (Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
	)
	if l.config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.config.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// An empty Run starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	return &chromeSession{
		config:  l.config,
		ctx:     browserCtx,
		cancels: []context.CancelFunc{cancelBrowser, cancelAlloc},
	}, nil
}

type chromeSession struct {
	config ChromeConfig
	ctx    context.Context

	mu      sync.Mutex
	first   bool
	closed  bool
	cancels []context.CancelFunc
}

// NewPage opens a tab. The first call reuses the tab created at launch.
func (s *chromeSession) NewPage(ctx context.Context) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	tabCtx := s.ctx
	if s.first {
		var cancel context.CancelFunc
		tabCtx, cancel = chromedp.NewContext(s.ctx)
		s.cancels = append([]context.CancelFunc{cancel}, s.cancels...)
	}
	s.first = true

	p := &chromePage{config: s.config, ctx: tabCtx, requests: map[network.RequestID]string{}}
	chromedp.ListenTarget(tabCtx, p.dispatch)

	if err := chromedp.Run(tabCtx,
		network.Enable(),
		page.SetLifecycleEventsEnabled(true),
	); err != nil {
		return nil, fmt.Errorf("failed to enable page domains: %w", err)
	}
	return p, nil
}

// Close terminates the browser process. Safe to call more than once.
func (s *chromeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	err := chromedp.Cancel(s.ctx)
	for _, cancel := range s.cancels {
		cancel()
	}
	return err
}

type chromePage struct {
	config ChromeConfig
	ctx    context.Context

	mu       sync.Mutex
	handlers []func(Event)
	requests map[network.RequestID]string
	idle     chan struct{}
}

// run executes actions on the tab, bounded by the caller's ctx.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) Goto(ctx context.Context, url string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.NavigationTimeout)
	defer cancel()

	idle := make(chan struct{})
	p.mu.Lock()
	p.idle = idle
	p.mu.Unlock()

	runCtx, cancelRun := context.WithCancel(p.ctx)
	defer cancelRun()
	stop := context.AfterFunc(ctx, cancelRun)
	defer stop()

	resp, err := chromedp.RunResponse(runCtx, chromedp.Navigate(url))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNavigation, url, err)
	}

	select {
	case <-idle:
	case <-time.After(p.config.IdleTimeout):
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %v", ErrNavigation, url, ctx.Err())
	}

	out := &Response{URL: url}
	if resp != nil {
		out.URL = resp.URL
		out.Status = int(resp.Status)
		out.StatusText = resp.StatusText
	}
	return out, nil
}

func (p *chromePage) Query(ctx context.Context, selector string) ([]Element, error) {
	var nodes []*cdp.Node
	if err := p.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	elements := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, &chromeElement{page: p, node: n})
	}
	return elements, nil
}

func (p *chromePage) Evaluate(ctx context.Context, expression string, out interface{}) error {
	if out == nil {
		if err := p.run(ctx, chromedp.Evaluate(expression, nil)); err != nil {
			return fmt.Errorf("evaluate: %w", err)
		}
		return nil
	}
	var raw []byte
	if err := p.run(ctx, chromedp.Evaluate(expression, &raw)); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	return json.Unmarshal(raw, out)
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

func (p *chromePage) URL(ctx context.Context) string {
	var loc string
	if err := p.run(ctx, chromedp.Location(&loc)); err != nil {
		return ""
	}
	return loc
}

func (p *chromePage) OnEvent(handler func(Event)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, handler)
}

func (p *chromePage) emit(ev Event) {
	p.mu.Lock()
	handlers := make([]func(Event), len(p.handlers))
	copy(handlers, p.handlers)
	p.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

// dispatch translates CDP events; it runs on chromedp's event goroutine.
func (p *chromePage) dispatch(ev interface{}) {
	now := time.Now()
	switch ev := ev.(type) {
	case *runtime.EventConsoleAPICalled:
		if ev.Type != runtime.APITypeError {
			return
		}
		p.emit(Event{Kind: EventConsoleError, Time: now, Message: consoleText(ev.Args)})

	case *runtime.EventExceptionThrown:
		if ev.ExceptionDetails == nil {
			return
		}
		msg := ev.ExceptionDetails.Text
		if ev.ExceptionDetails.Exception != nil && ev.ExceptionDetails.Exception.Description != "" {
			msg = ev.ExceptionDetails.Exception.Description
		}
		p.emit(Event{Kind: EventPageError, Time: now, Message: msg, URL: ev.ExceptionDetails.URL})

	case *network.EventRequestWillBeSent:
		p.mu.Lock()
		p.requests[ev.RequestID] = ev.Request.URL
		p.mu.Unlock()
		p.emit(Event{Kind: EventRequest, Time: now, URL: ev.Request.URL, Method: ev.Request.Method})

	case *network.EventLoadingFailed:
		p.mu.Lock()
		url := p.requests[ev.RequestID]
		delete(p.requests, ev.RequestID)
		p.mu.Unlock()
		p.emit(Event{Kind: EventRequestFailed, Time: now, Message: ev.ErrorText, URL: url})

	case *network.EventLoadingFinished:
		p.mu.Lock()
		delete(p.requests, ev.RequestID)
		p.mu.Unlock()

	case *network.EventResponseReceived:
		if ev.Response == nil {
			return
		}
		p.emit(Event{
			Kind:    EventResponse,
			Time:    now,
			URL:     ev.Response.URL,
			Status:  int(ev.Response.Status),
			Message: ev.Response.StatusText,
		})

	case *page.EventLifecycleEvent:
		if ev.Name != "networkIdle" {
			return
		}
		p.mu.Lock()
		if p.idle != nil {
			close(p.idle)
			p.idle = nil
		}
		p.mu.Unlock()
	}
}

func consoleText(args []*runtime.RemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == nil {
			continue
		}
		if len(arg.Value) > 0 {
			var s string
			if err := json.Unmarshal(arg.Value, &s); err == nil {
				parts = append(parts, s)
				continue
			}
			parts = append(parts, string(arg.Value))
			continue
		}
		if arg.Description != "" {
			parts = append(parts, arg.Description)
		}
	}
	return strings.Join(parts, " ")
}

type chromeElement struct {
	page *chromePage
	node *cdp.Node
}

func (e *chromeElement) ids() []cdp.NodeID {
	return []cdp.NodeID{e.node.NodeID}
}

// Visible reports whether the node has a non-empty box model.
func (e *chromeElement) Visible(ctx context.Context) (bool, error) {
	var visible bool
	err := e.page.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		box, err := dom.GetBoxModel().WithNodeID(e.node.NodeID).Do(ctx)
		if err != nil {
			// Nodes without layout (display:none, detached) have no box model.
			visible = false
			return nil
		}
		visible = box.Width > 0 && box.Height > 0
		return nil
	}))
	return visible, err
}

func (e *chromeElement) Click(ctx context.Context) error {
	return e.page.run(ctx, chromedp.MouseClickNode(e.node))
}

func (e *chromeElement) Fill(ctx context.Context, value string) error {
	return e.page.run(ctx,
		chromedp.Focus(e.ids(), chromedp.ByNodeID),
		chromedp.SetValue(e.ids(), value, chromedp.ByNodeID),
	)
}

func (e *chromeElement) Press(ctx context.Context, key string) error {
	keys := key
	if key == KeyEnter {
		keys = kb.Enter
	}
	return e.page.run(ctx, chromedp.SendKeys(e.ids(), keys, chromedp.ByNodeID))
}
