package agent

import (
	"fmt"
	"sync/atomic"

	"github.com/hairizuan-noorazman/stormbot/browser"
)

const (
	defaultEventBuffer = 1024
	httpErrorStatus    = 400
)

// eventBuffer decouples browser listeners from the agent's Result. Listeners push
// without blocking; the agent drains between actions and once more at exit.
type eventBuffer struct {
	ch      chan browser.Event
	dropped atomic.Int64
}

func newEventBuffer(size int) *eventBuffer {
	if size <= 0 {
		size = defaultEventBuffer
	}
	return &eventBuffer{ch: make(chan browser.Event, size)}
}

func (b *eventBuffer) push(ev browser.Event) {
	select {
	case b.ch <- ev:
	default:
		b.dropped.Add(1)
	}
}

// drain moves every pending event into res and returns how many were applied.
func (b *eventBuffer) drain(res *Result) int {
	n := 0
	for {
		select {
		case ev := <-b.ch:
			apply(res, ev)
			n++
		default:
			return n
		}
	}
}

func apply(res *Result, ev browser.Event) {
	switch ev.Kind {
	case browser.EventConsoleError:
		res.ConsoleErrors = append(res.ConsoleErrors, ErrorRecord{
			Timestamp: ev.Time,
			Message:   ev.Message,
			Context:   "console",
			SourceURL: ev.URL,
		})
	case browser.EventPageError:
		res.PageErrors = append(res.PageErrors, ErrorRecord{
			Timestamp: ev.Time,
			Message:   ev.Message,
			Context:   "pageerror",
			SourceURL: ev.URL,
		})
	case browser.EventRequest:
		res.Requests++
	case browser.EventRequestFailed:
		res.NetworkErrors = append(res.NetworkErrors, ErrorRecord{
			Timestamp: ev.Time,
			Message:   ev.Message,
			Context:   "requestfailed",
			SourceURL: ev.URL,
		})
	case browser.EventResponse:
		if ev.Status < httpErrorStatus {
			return
		}
		res.HTTPErrors = append(res.HTTPErrors, ErrorRecord{
			Timestamp: ev.Time,
			Message:   fmt.Sprintf("HTTP %d %s", ev.Status, ev.Message),
			Context:   "response",
			SourceURL: ev.URL,
			Status:    ev.Status,
		})
	}
}
