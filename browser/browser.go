// Package browser defines the browser-automation surface agents drive, and its
// chromedp implementation.
package browser

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNavigation wraps failures to load the target URL.
	ErrNavigation = errors.New("navigation failed")

	// ErrLaunch wraps failures to start the automation runtime.
	ErrLaunch = errors.New("failed to launch browser")

	// ErrClosed is returned by operations on a closed session or page.
	ErrClosed = errors.New("browser session closed")
)

// Launcher starts isolated browsing sessions.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// Session is one isolated browsing context (separate cookies and storage).
type Session interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Response describes the main document response of a navigation.
type Response struct {
	URL        string
	Status     int
	StatusText string
}

// Page is a live, mutable DOM.
type Page interface {
	// Goto navigates and waits until the network is idle.
	Goto(ctx context.Context, url string) (*Response, error)

	// Query returns every element matching the CSS selector; none is not an error.
	Query(ctx context.Context, selector string) ([]Element, error)

	// Evaluate runs a JavaScript expression and decodes its JSON result into out.
	Evaluate(ctx context.Context, expression string, out interface{}) error

	// Screenshot captures the viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)

	// URL returns the page's current location.
	URL(ctx context.Context) string

	// OnEvent registers a listener. Listeners run on the browser's event goroutine and
	// must not block.
	OnEvent(handler func(Event))
}

// Element is a handle to a DOM node that may detach at any time.
type Element interface {
	Visible(ctx context.Context) (bool, error)
	Click(ctx context.Context) error
	Fill(ctx context.Context, value string) error
	Press(ctx context.Context, key string) error
}

// EventKind identifies a page event.
type EventKind int

const (
	EventConsoleError EventKind = iota + 1
	EventPageError
	EventRequest
	EventRequestFailed
	EventResponse
)

func (k EventKind) String() string {
	switch k {
	case EventConsoleError:
		return "console"
	case EventPageError:
		return "pageerror"
	case EventRequest:
		return "request"
	case EventRequestFailed:
		return "requestfailed"
	case EventResponse:
		return "response"
	default:
		return "unknown"
	}
}

// Event is a page event delivered to OnEvent listeners.
type Event struct {
	Kind    EventKind
	Time    time.Time
	Message string
	URL     string
	Method  string
	Status  int
}

// KeyEnter is the key name accepted by Element.Press for the return key.
const KeyEnter = "Enter"
