package browser

import (
	"testing"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPage() (*chromePage, *[]Event) {
	p := &chromePage{requests: map[network.RequestID]string{}}
	var events []Event
	p.OnEvent(func(ev Event) { events = append(events, ev) })
	return p, &events
}

func TestChromePage_DispatchConsole(t *testing.T) {
	p, events := newTestPage()

	p.dispatch(&runtime.EventConsoleAPICalled{
		Type: runtime.APITypeLog,
		Args: []*runtime.RemoteObject{{Value: []byte(`"ignored"`)}},
	})
	p.dispatch(&runtime.EventConsoleAPICalled{
		Type: runtime.APITypeError,
		Args: []*runtime.RemoteObject{
			{Value: []byte(`"Uncaught"`)},
			{Value: []byte(`42`)},
			{Description: "TypeError: x is undefined"},
		},
	})

	require.Len(t, *events, 1)
	assert.Equal(t, EventConsoleError, (*events)[0].Kind)
	assert.Equal(t, "Uncaught 42 TypeError: x is undefined", (*events)[0].Message)
}

func TestChromePage_DispatchException(t *testing.T) {
	p, events := newTestPage()

	p.dispatch(&runtime.EventExceptionThrown{ExceptionDetails: &runtime.ExceptionDetails{
		Text:      "Uncaught",
		URL:       "https://example.com/app.js",
		Exception: &runtime.RemoteObject{Description: "ReferenceError: foo is not defined"},
	}})
	p.dispatch(&runtime.EventExceptionThrown{})

	require.Len(t, *events, 1)
	assert.Equal(t, EventPageError, (*events)[0].Kind)
	assert.Equal(t, "ReferenceError: foo is not defined", (*events)[0].Message)
	assert.Equal(t, "https://example.com/app.js", (*events)[0].URL)
}

func TestChromePage_DispatchNetwork(t *testing.T) {
	p, events := newTestPage()

	p.dispatch(&network.EventRequestWillBeSent{
		RequestID: "1",
		Request:   &network.Request{URL: "https://example.com/api", Method: "GET"},
	})
	p.dispatch(&network.EventLoadingFailed{RequestID: "1", ErrorText: "net::ERR_CONNECTION_REFUSED"})
	p.dispatch(&network.EventResponseReceived{
		RequestID: "2",
		Response:  &network.Response{URL: "https://example.com/missing", Status: 404, StatusText: "Not Found"},
	})

	require.Len(t, *events, 3)
	assert.Equal(t, EventRequest, (*events)[0].Kind)
	assert.Equal(t, "GET", (*events)[0].Method)

	assert.Equal(t, EventRequestFailed, (*events)[1].Kind)
	assert.Equal(t, "https://example.com/api", (*events)[1].URL)
	assert.Equal(t, "net::ERR_CONNECTION_REFUSED", (*events)[1].Message)
	assert.Empty(t, p.requests)

	assert.Equal(t, EventResponse, (*events)[2].Kind)
	assert.Equal(t, 404, (*events)[2].Status)
}

func TestChromePage_DispatchNetworkIdle(t *testing.T) {
	p, _ := newTestPage()
	idle := make(chan struct{})
	p.idle = idle

	p.dispatch(&page.EventLifecycleEvent{Name: "load"})
	select {
	case <-idle:
		t.Fatal("idle signalled on load event")
	default:
	}

	p.dispatch(&page.EventLifecycleEvent{Name: "networkIdle"})
	p.dispatch(&page.EventLifecycleEvent{Name: "networkIdle"})
	_, open := <-idle
	assert.False(t, open)
	assert.Nil(t, p.idle)
}

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "console", EventConsoleError.String())
	assert.Equal(t, "pageerror", EventPageError.String())
	assert.Equal(t, "request", EventRequest.String())
	assert.Equal(t, "requestfailed", EventRequestFailed.String())
	assert.Equal(t, "response", EventResponse.String())
	assert.Equal(t, "unknown", EventKind(0).String())
}
