package agent

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hairizuan-noorazman/stormbot/action"
	"github.com/hairizuan-noorazman/stormbot/analysis"
	"github.com/hairizuan-noorazman/stormbot/browser"
	"github.com/hairizuan-noorazman/stormbot/logger"
	"github.com/hairizuan-noorazman/stormbot/oracle"
	"github.com/hairizuan-noorazman/stormbot/persona"
	"github.com/hairizuan-noorazman/stormbot/storage"
	"github.com/hairizuan-noorazman/stormbot/strategy"
	"github.com/hairizuan-noorazman/stormbot/testutil"
)

func fastDelays() action.Delays {
	return action.DefaultDelays().Scale(0.001)
}

func newTestRunner(t *testing.T, o oracle.Oracle, store storage.BlobStorage, delays action.Delays) (*Runner, *logger.TestLogger) {
	t.Helper()
	log := logger.NewTestLogger()
	cfg := DefaultConfig()
	cfg.Delays = delays
	cfg.Seed = 1
	return NewRunner(cfg, strategy.NewEngine(o, log), NewSummarizer(o, log), store, log), log
}

func sessionFor(page *testutil.FakePage) browser.Session {
	l := &testutil.FakeLauncher{PageFactory: func(int) *testutil.FakePage { return page }}
	s, _ := l.Launch(context.Background())
	return s
}

func TestRunner_CollectsEvents(t *testing.T) {
	page := testutil.NewFakePage()
	page.Elements[action.SelectorGeneral] = []*testutil.FakeElement{{}}
	page.AfterGoto = func(p *testutil.FakePage) {
		p.Emit(browser.Event{Kind: browser.EventRequest, URL: "https://example.com/"})
		p.Emit(browser.Event{Kind: browser.EventRequest, URL: "https://example.com/app.js"})
		p.Emit(browser.Event{Kind: browser.EventConsoleError, Message: "Uncaught TypeError"})
		p.Emit(browser.Event{Kind: browser.EventPageError, Message: "ReferenceError: x is not defined"})
		p.Emit(browser.Event{Kind: browser.EventRequestFailed, Message: "net::ERR_FAILED", URL: "https://cdn.example.com/a.css"})
		p.Emit(browser.Event{Kind: browser.EventResponse, Status: 404, Message: "Not Found", URL: "https://example.com/missing"})
		p.Emit(browser.Event{Kind: browser.EventResponse, Status: 200, Message: "OK", URL: "https://example.com/"})
	}
	runner, log := newTestRunner(t, oracle.Disabled{}, nil, fastDelays())

	start := time.Now()
	deadline := start.Add(100 * time.Millisecond)
	res := runner.Run(context.Background(), Assignment{
		Index:     1,
		Persona:   persona.Persona{Name: "user 1", Descriptor: "general"},
		Analysis:  analysis.Fallback(),
		TargetURL: "https://example.com/",
		Deadline:  deadline,
		Session:   sessionFor(page),
	})

	assert.Equal(t, 1, res.AgentIndex)
	assert.Equal(t, []string{"https://example.com/"}, page.Visited())
	require.GreaterOrEqual(t, len(res.Actions), 2)
	assert.Equal(t, "page loaded", res.Actions[0])
	assert.Equal(t, 2, res.Requests)
	assert.Len(t, res.ConsoleErrors, 1)
	assert.Len(t, res.PageErrors, 1)
	require.Len(t, res.NetworkErrors, 1)
	assert.Equal(t, "https://cdn.example.com/a.css", res.NetworkErrors[0].SourceURL)
	require.Len(t, res.HTTPErrors, 1)
	assert.Equal(t, 404, res.HTTPErrors[0].Status)
	assert.Equal(t, "HTTP 404 Not Found", res.HTTPErrors[0].Message)
	assert.Empty(t, res.InteractionErrors)
	assert.Equal(t, 4, res.ErrorCount())
	assert.True(t, res.Successful())
	assert.False(t, res.FinishedAt.Before(deadline))

	for _, e := range log.Entries() {
		if e.Message == "agent finished" {
			assert.Equal(t, 1, e.Fields["agent_index"])
			assert.Equal(t, "user 1", e.Fields["persona"])
		}
	}
}

func TestRunner_NavigationFailure(t *testing.T) {
	page := testutil.NewFakePage()
	page.GotoErr = errors.New("net::ERR_NAME_NOT_RESOLVED")
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	o := oracle.Func(func(ctx context.Context, msgs []oracle.Message) (string, error) {
		return "The site could not be reached.", nil
	})
	runner, _ := newTestRunner(t, o, store, fastDelays())

	res := runner.Run(context.Background(), Assignment{
		Index:     2,
		Persona:   persona.Persona{Name: "user 2", Descriptor: "general"},
		Analysis:  analysis.Fallback(),
		TargetURL: "https://unreachable.invalid/",
		Deadline:  time.Now().Add(time.Minute),
		Session:   sessionFor(page),
		RunDir:    "test-1",
	})

	assert.Empty(t, res.Actions)
	assert.False(t, res.Successful())
	require.Len(t, res.NetworkErrors, 1)
	rec := res.NetworkErrors[0]
	assert.Equal(t, "navigation", rec.Context)
	assert.Contains(t, rec.Message, "navigation failed")
	assert.Equal(t, "The site could not be reached.", rec.AISummary)
	require.Len(t, res.Screenshots, 1)
	assert.Equal(t, rec.ScreenshotPath, res.Screenshots[0])
	assert.True(t, strings.HasPrefix(rec.ScreenshotPath, "test-1/error-user-2-"))

	ok, err := store.Exists(context.Background(), rec.ScreenshotPath)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRunner_InteractionFailureRecorded(t *testing.T) {
	page := testutil.NewFakePage()
	page.ScreenshotErr = errors.New("target closed")
	page.Elements[action.SelectorGeneral] = []*testutil.FakeElement{{ClickErr: errors.New("node is detached from document")}}
	runner, _ := newTestRunner(t, oracle.Func(func(ctx context.Context, msgs []oracle.Message) (string, error) {
		return `["click"]`, nil
	}), nil, fastDelays())

	// Searcher weights click at 0.3 after search 0.5; no search box so only clicks fail.
	res := runner.Run(context.Background(), Assignment{
		Index:     3,
		Persona:   persona.Persona{Name: strategy.ArchetypeSearcher, Descriptor: "looks things up"},
		Analysis:  analysis.PageAnalysis{Type: "search engine homepage", Confidence: 0.9},
		TargetURL: "https://example.com/",
		Deadline:  time.Now().Add(150 * time.Millisecond),
		Session:   sessionFor(page),
	})

	require.NotEmpty(t, res.InteractionErrors)
	rec := res.InteractionErrors[0]
	assert.Equal(t, "click", rec.Context)
	assert.Contains(t, rec.Message, action.ErrInteraction.Error())
	assert.Equal(t, ScreenshotUnavailable, rec.ScreenshotPath)
	assert.Empty(t, rec.AISummary)
	assert.Empty(t, res.Screenshots)
}

func TestRunner_FollowsSuggestedActions(t *testing.T) {
	page := testutil.NewFakePage()
	product := &testutil.FakeElement{}
	page.Elements[action.SelectorProducts] = []*testutil.FakeElement{product}
	runner, _ := newTestRunner(t, oracle.Func(func(ctx context.Context, msgs []oracle.Message) (string, error) {
		return `["click_products"]`, nil
	}), nil, fastDelays())

	// Skimmer weights a generic click at 0.2; the suggestion narrows it to products.
	res := runner.Run(context.Background(), Assignment{
		Index:     5,
		Persona:   persona.Persona{Name: strategy.ArchetypeSkimmer, Descriptor: "reads headlines"},
		Analysis:  analysis.PageAnalysis{Type: "online store", Confidence: 0.9},
		TargetURL: "https://example.com/",
		Deadline:  time.Now().Add(300 * time.Millisecond),
		Session:   sessionFor(page),
	})

	require.GreaterOrEqual(t, len(res.Actions), 2)
	assert.Equal(t, "page loaded", res.Actions[0])
	assert.Equal(t, "AI strategy: click_products", res.Actions[1])

	var strategies, productClicks int
	for _, a := range res.Actions {
		switch {
		case strings.HasPrefix(a, "AI strategy:"):
			strategies++
		case a == "clicked: click_products":
			productClicks++
		}
		assert.NotEqual(t, "clicked: click", a)
	}
	assert.Equal(t, 1, strategies, "an unchanged suggestion is logged once")
	assert.Greater(t, productClicks, 0, "actions: %v", res.Actions)
	assert.Equal(t, productClicks, product.Clicks())
	assert.Empty(t, res.InteractionErrors)
}

func TestRunner_ConfidenceThreshold(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		wantCalls bool
	}{
		{"zero threshold consults strategy", 0, true},
		{"default threshold falls back to basic actions", DefaultConfidenceThreshold, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			o := oracle.Func(func(ctx context.Context, msgs []oracle.Message) (string, error) {
				calls.Add(1)
				return `["scroll"]`, nil
			})
			log := logger.NewTestLogger()
			cfg := DefaultConfig()
			cfg.Delays = fastDelays()
			cfg.Seed = 1
			cfg.ConfidenceThreshold = tt.threshold
			runner := NewRunner(cfg, strategy.NewEngine(o, log), nil, nil, log)

			res := runner.Run(context.Background(), Assignment{
				Index:     6,
				Persona:   persona.Persona{Name: "user 6"},
				Analysis:  analysis.PageAnalysis{Type: "blog", Confidence: 0.5},
				TargetURL: "https://example.com/",
				Deadline:  time.Now().Add(50 * time.Millisecond),
				Session:   sessionFor(testutil.NewFakePage()),
			})

			if tt.wantCalls {
				assert.Greater(t, calls.Load(), int32(0))
				assert.Contains(t, res.Actions, "AI strategy: scroll")
			} else {
				assert.Zero(t, calls.Load())
				assert.NotContains(t, res.Actions, "AI strategy: scroll")
			}
		})
	}
}

func TestRunner_RecoversFromPanic(t *testing.T) {
	page := testutil.NewFakePage()
	page.PanicOnQuery = true
	o := oracle.Func(func(ctx context.Context, msgs []oracle.Message) (string, error) {
		if strings.HasPrefix(msgs[0].Content, "Summarize") {
			return "The page crashed while looking for links.", nil
		}
		return "", oracle.ErrUnavailable
	})
	runner, log := newTestRunner(t, o, nil, fastDelays())

	res := runner.Run(context.Background(), Assignment{
		Index:     4,
		Persona:   persona.Persona{Name: "user 4", Descriptor: "general"},
		Analysis:  analysis.PageAnalysis{Type: "blog", Confidence: 0.9},
		TargetURL: "https://example.com/",
		Deadline:  time.Now().Add(500 * time.Millisecond),
		Session:   sessionFor(page),
	})

	require.Len(t, res.InteractionErrors, 1)
	rec := res.InteractionErrors[0]
	assert.Equal(t, "agent", rec.Context)
	assert.Contains(t, rec.Message, "query on crashed page")
	assert.Equal(t, "The page crashed while looking for links.", rec.AISummary)
	assert.Equal(t, "page loaded", res.Actions[0])
	assert.Contains(t, log.Messages("error"), "agent loop crashed")
}

func TestRunner_DeadlineAlreadyPassed(t *testing.T) {
	page := testutil.NewFakePage()
	runner, _ := newTestRunner(t, oracle.Disabled{}, nil, fastDelays())

	res := runner.Run(context.Background(), Assignment{
		Index:     1,
		Persona:   persona.Persona{Name: "user 1"},
		Analysis:  analysis.Fallback(),
		TargetURL: "https://example.com/",
		Deadline:  time.Now().Add(-time.Second),
		Session:   sessionFor(page),
	})

	assert.Equal(t, []string{"page loaded"}, res.Actions)
}

func TestRunner_DeadlineReachedMidSleep(t *testing.T) {
	page := testutil.NewFakePage()
	page.Elements[action.SelectorGeneral] = []*testutil.FakeElement{{}}

	// Every action completes instantly and records a description; only the post-action
	// delay takes time, and it outlasts the deadline.
	delays := action.Delays{PostMin: 80 * time.Millisecond, PostMax: 80 * time.Millisecond}
	runner, _ := newTestRunner(t, oracle.Disabled{}, nil, delays)

	start := time.Now()
	res := runner.Run(context.Background(), Assignment{
		Index:     1,
		Persona:   persona.Persona{Name: "user 1"},
		Analysis:  analysis.Fallback(),
		TargetURL: "https://example.com/",
		Deadline:  start.Add(30 * time.Millisecond),
		Session:   sessionFor(page),
	})

	assert.Len(t, res.Actions, 2, "one iteration after page load: %v", res.Actions)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestRunner_ContextCancelled(t *testing.T) {
	page := testutil.NewFakePage()
	runner, _ := newTestRunner(t, oracle.Disabled{}, nil, action.DefaultDelays())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := runner.Run(ctx, Assignment{
		Index:     1,
		Persona:   persona.Persona{Name: "user 1"},
		Analysis:  analysis.Fallback(),
		TargetURL: "https://example.com/",
		Deadline:  time.Now().Add(time.Hour),
		Session:   sessionFor(page),
	})

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, "page loaded", res.Actions[0])
}

func TestEventBuffer_DropsWhenFull(t *testing.T) {
	buf := newEventBuffer(2)
	for i := 0; i < 5; i++ {
		buf.push(browser.Event{Kind: browser.EventConsoleError, Message: "boom"})
	}

	res := newResult(1, persona.Persona{}, analysis.Fallback())
	assert.Equal(t, 2, buf.drain(res))
	assert.Len(t, res.ConsoleErrors, 2)
	assert.Equal(t, int64(3), buf.dropped.Load())
	assert.Equal(t, 0, buf.drain(res))
}

func TestSummarizer(t *testing.T) {
	rec := ErrorRecord{Message: "boom", Context: "agent"}

	var prompt string
	s := NewSummarizer(oracle.Func(func(ctx context.Context, msgs []oracle.Message) (string, error) {
		prompt = msgs[0].Content
		return "  A crash.  ", nil
	}), logger.NewTestLogger())
	assert.Equal(t, "A crash.", s.Summarize(context.Background(), rec))
	assert.Contains(t, prompt, `"message": "boom"`)

	log := logger.NewTestLogger()
	s = NewSummarizer(oracle.Disabled{}, log)
	assert.Equal(t, NoSummary, s.Summarize(context.Background(), rec))
	assert.Contains(t, log.Messages("debug"), "error summary unavailable")
	assert.Empty(t, log.Messages("warn"))

	log = logger.NewTestLogger()
	s = NewSummarizer(oracle.Func(func(ctx context.Context, msgs []oracle.Message) (string, error) {
		return "", errors.New("failed to decode completion")
	}), log)
	assert.Equal(t, NoSummary, s.Summarize(context.Background(), rec))
	assert.Contains(t, log.Messages("warn"), "error summary failed")
}

func TestScreenshotName(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	assert.Equal(t, "error-user-7-1700000000123.png", ScreenshotName(7, at))
}
