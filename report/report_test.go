package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/hairizuan-noorazman/stormbot/agent"
	"github.com/hairizuan-noorazman/stormbot/analysis"
	"github.com/hairizuan-noorazman/stormbot/logger"
	"github.com/hairizuan-noorazman/stormbot/persona"
	"github.com/hairizuan-noorazman/stormbot/storage"
)

var testStart = time.Date(2020, 3, 1, 10, 0, 0, 0, time.UTC)

func testMeta(users int) Meta {
	return Meta{
		ID:           "run-1",
		TargetURL:    "https://shop.example.com",
		Users:        users,
		Duration:     10 * time.Second,
		AIEnabled:    true,
		StartTime:    testStart,
		EndTime:      testStart.Add(10 * time.Second),
		PageAnalysis: analysis.PageAnalysis{Type: "ecommerce", Confidence: 0.9},
		Personas:     persona.Generic(users),
	}
}

func records(n int, msg string) []agent.ErrorRecord {
	out := make([]agent.ErrorRecord, n)
	for i := range out {
		out[i] = agent.ErrorRecord{Timestamp: testStart, Message: fmt.Sprintf("%s %d", msg, i)}
	}
	return out
}

func cleanResult(index int, loadMs int64, actions ...string) agent.Result {
	return agent.Result{
		AgentIndex:   index,
		Persona:      persona.Persona{Name: persona.GenericName(index), Descriptor: persona.GenericDescriptor},
		PageLoadTime: loadMs,
		Actions:      actions,
		Requests:     4,
	}
}

func newTestStorage(t *testing.T) *storage.LocalStorage {
	t.Helper()
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name    string
		results []agent.Result
		want    Summary
	}{
		{
			name:    "no agents",
			results: nil,
			want:    Summary{},
		},
		{
			name: "clean agents",
			results: []agent.Result{
				cleanResult(1, 800, "page loaded", "scroll to 400px"),
				cleanResult(2, 1200, "page loaded"),
			},
			want: Summary{
				TotalRequests:    8,
				AverageLoadTime:  1000,
				SuccessfulAgents: 2,
				TotalAgents:      2,
				TotalActions:     3,
			},
		},
		{
			name: "three agents each with a console error",
			results: func() []agent.Result {
				var rs []agent.Result
				for i := 1; i <= 3; i++ {
					r := cleanResult(i, 500, "page loaded")
					r.ConsoleErrors = records(1, "ReferenceError")
					rs = append(rs, r)
				}
				return rs
			}(),
			want: Summary{
				TotalRequests:    12,
				ErrorCounts:      ErrorCounts{TotalErrors: 3, TotalConsoleErrors: 3},
				AverageLoadTime:  500,
				SuccessfulAgents: 3,
				TotalAgents:      3,
				TotalActions:     3,
			},
		},
		{
			name: "failed navigation is not successful",
			results: func() []agent.Result {
				r := cleanResult(1, 0)
				r.NetworkErrors = records(1, "net::ERR_NAME_NOT_RESOLVED")
				return []agent.Result{r}
			}(),
			want: Summary{
				TotalRequests: 4,
				ErrorCounts:   ErrorCounts{TotalErrors: 1, TotalNetworkErrors: 1},
				TotalAgents:   1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := Aggregate(testMeta(len(tt.results)), tt.results)
			assert.Equal(t, tt.want, rep.Summary)
			assert.Equal(t, 10, rep.TestInfo.Duration)
			assert.Len(t, rep.Results, len(tt.results))
		})
	}
}

func TestAggregate_OrdersByIndex(t *testing.T) {
	results := []agent.Result{cleanResult(3, 1), cleanResult(1, 1), cleanResult(2, 1)}
	rep := Aggregate(testMeta(3), results)

	for i, r := range rep.Results {
		assert.Equal(t, i+1, r.AgentIndex)
	}
	assert.Equal(t, 3, results[0].AgentIndex, "input must not be reordered")
}

func TestAggregate_CountsMatchCategories(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 8).Draw(t, "agents")
		results := make([]agent.Result, n)
		perAgent := 0
		for i := range results {
			r := cleanResult(i+1, rapid.Int64Range(0, 10000).Draw(t, "load"))
			r.ConsoleErrors = records(rapid.IntRange(0, 3).Draw(t, "console"), "c")
			r.PageErrors = records(rapid.IntRange(0, 3).Draw(t, "page"), "p")
			r.NetworkErrors = records(rapid.IntRange(0, 3).Draw(t, "network"), "n")
			r.HTTPErrors = records(rapid.IntRange(0, 3).Draw(t, "http"), "h")
			r.InteractionErrors = records(rapid.IntRange(0, 3).Draw(t, "interaction"), "i")
			perAgent += r.ErrorCount()
			results[i] = r
		}

		s := Aggregate(testMeta(n), results).Summary
		sum := s.TotalConsoleErrors + s.TotalPageErrors + s.TotalNetworkErrors + s.TotalHTTPErrors + s.TotalInteractionErrors
		if s.TotalErrors != sum {
			t.Fatalf("totalErrors %d != category sum %d", s.TotalErrors, sum)
		}
		if s.TotalErrors != perAgent {
			t.Fatalf("totalErrors %d != per-agent sum %d", s.TotalErrors, perAgent)
		}
		if s.SuccessfulAgents > s.TotalAgents {
			t.Fatalf("successful %d > total %d", s.SuccessfulAgents, s.TotalAgents)
		}
	})
}

func TestReport_Errors(t *testing.T) {
	clean := Aggregate(testMeta(1), []agent.Result{cleanResult(1, 100, "page loaded")})
	assert.Nil(t, clean.Errors())

	bad := cleanResult(2, 100, "page loaded")
	bad.HTTPErrors = records(2, "HTTP 500")
	bad.Screenshots = []string{"test-1/error-user-2-1.png"}
	rep := Aggregate(testMeta(2), []agent.Result{cleanResult(1, 100, "page loaded"), bad})

	er := rep.Errors()
	require.NotNil(t, er)
	assert.Equal(t, 2, er.Summary.TotalHTTPErrors)
	require.Len(t, er.Agents, 1, "agents without errors are omitted")
	assert.Equal(t, 2, er.Agents[0].Index)
	assert.Equal(t, "user 2", er.Agents[0].Name)
	assert.Equal(t, bad.Screenshots, er.Agents[0].Screenshots)
}

func TestReport_Agents(t *testing.T) {
	r := cleanResult(1, 640, "page loaded", "waited 1000ms")
	r.ConsoleErrors = records(1, "boom")
	r.Performance = agent.Performance{DOMContentLoaded: 320}

	ar := Aggregate(testMeta(1), []agent.Result{r}).Agents()
	require.Len(t, ar.Agents, 1)
	assert.Equal(t, AgentSummary{
		Index:       1,
		Name:        "user 1",
		Persona:     persona.GenericDescriptor,
		Actions:     2,
		Errors:      1,
		LoadTime:    640,
		Requests:    4,
		Performance: agent.Performance{DOMContentLoaded: 320},
	}, ar.Agents[0])
}

func TestWriter_Write(t *testing.T) {
	ctx := context.Background()

	t.Run("clean run omits error report", func(t *testing.T) {
		store := newTestStorage(t)
		w := NewWriter(store, logger.NewTestLogger())
		rep := Aggregate(testMeta(1), []agent.Result{cleanResult(1, 100, "page loaded")})

		a, err := w.Write(ctx, DirName(testStart), rep)
		require.NoError(t, err)
		assert.Empty(t, a.ErrorReport)

		exists, err := store.Exists(ctx, path.Join(DirName(testStart), ErrorReportFile))
		require.NoError(t, err)
		assert.False(t, exists)

		for _, p := range []string{a.Results, a.AgentReport} {
			exists, err := store.Exists(ctx, p)
			require.NoError(t, err)
			assert.True(t, exists, p)
		}
	})

	t.Run("errors produce error report", func(t *testing.T) {
		store := newTestStorage(t)
		w := NewWriter(store, logger.NewTestLogger())
		r := cleanResult(1, 100, "page loaded")
		r.PageErrors = records(1, "Uncaught TypeError")
		rep := Aggregate(testMeta(1), []agent.Result{r})

		a, err := w.Write(ctx, DirName(testStart), rep)
		require.NoError(t, err)
		require.NotEmpty(t, a.ErrorReport)

		data, err := store.Read(ctx, a.ErrorReport)
		require.NoError(t, err)
		var er ErrorReport
		require.NoError(t, json.Unmarshal(data, &er))
		assert.Equal(t, 1, er.Summary.TotalPageErrors)
		assert.Equal(t, "Uncaught TypeError 0", er.Agents[0].PageErrors[0].Message)
	})

	t.Run("rewriting is byte identical", func(t *testing.T) {
		store := newTestStorage(t)
		w := NewWriter(store, logger.NewTestLogger())
		r := cleanResult(1, 100, "page loaded")
		r.InteractionErrors = records(1, "element detached")
		rep := Aggregate(testMeta(1), []agent.Result{r})

		a, err := w.Write(ctx, "test-1", rep)
		require.NoError(t, err)
		first := map[string][]byte{}
		for _, p := range []string{a.Results, a.ErrorReport, a.AgentReport} {
			first[p], err = store.Read(ctx, p)
			require.NoError(t, err)
		}

		_, err = w.Write(ctx, "test-1", rep)
		require.NoError(t, err)
		for p, want := range first {
			got, err := store.Read(ctx, p)
			require.NoError(t, err)
			assert.Equal(t, want, got, p)
		}
	})
}

func TestList(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)
	w := NewWriter(store, logger.NewTestLogger())
	log := logger.NewTestLogger()

	older := DirName(testStart)
	newer := DirName(testStart.Add(time.Hour))

	rep := Aggregate(testMeta(1), []agent.Result{cleanResult(1, 100, "page loaded")})
	_, err := w.Write(ctx, older, rep)
	require.NoError(t, err)
	_, err = w.Write(ctx, newer, rep)
	require.NoError(t, err)

	require.NoError(t, store.Write(ctx, "test-broken/test-results.json", []byte("{not json")))
	require.NoError(t, store.Write(ctx, "other/test-results.json", []byte("{}")))

	entries, err := List(ctx, store, log)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// test-broken carries no timestamp, so it falls back to its file time.
	assert.Equal(t, "test-broken", entries[0].ID)
	assert.Nil(t, entries[0].Summary)

	assert.Equal(t, newer, entries[1].ID)
	assert.Equal(t, older, entries[2].ID)
	assert.Equal(t, testStart, entries[2].CreatedAt)
	require.NotNil(t, entries[1].Summary)
	assert.Equal(t, 1, entries[1].Summary.TotalAgents)
	assert.Contains(t, log.Messages("warn"), "failed to parse results")
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)
	w := NewWriter(store, logger.NewTestLogger())

	r := cleanResult(1, 100, "page loaded")
	r.NetworkErrors = records(1, "net::ERR_CONNECTION_REFUSED")
	dir := DirName(testStart)
	_, err := w.Write(ctx, dir, Aggregate(testMeta(1), []agent.Result{r}))
	require.NoError(t, err)
	require.NoError(t, store.Write(ctx, path.Join(dir, "error-user-1-5.png"), []byte{0x89, 'P', 'N', 'G'}))

	d, err := Load(ctx, store, dir)
	require.NoError(t, err)
	require.NotNil(t, d.Results)
	require.NotNil(t, d.Errors)
	require.NotNil(t, d.Agents)
	assert.Equal(t, 1, d.Results.Summary.TotalNetworkErrors)
	assert.Equal(t, []string{path.Join(dir, "error-user-1-5.png")}, d.Screenshots)

	_, err = Load(ctx, store, "test-404")
	assert.ErrorIs(t, err, ErrReportNotFound)
	_, err = Load(ctx, store, "../etc")
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func TestInsights(t *testing.T) {
	tests := []struct {
		name    string
		summary Summary
		want    []string
	}{
		{
			name:    "fast and clean",
			summary: Summary{TotalAgents: 1, AverageLoadTime: 400, TotalRequests: 20},
			want:    []string{"Excellent page load performance", "No console errors detected", "2.00 requests per second"},
		},
		{
			name:    "slow with console errors",
			summary: Summary{TotalAgents: 2, AverageLoadTime: 4500, ErrorCounts: ErrorCounts{TotalErrors: 3, TotalConsoleErrors: 2, TotalHTTPErrors: 1}},
			want: []string{
				"High average load time detected",
				"2 console errors detected",
				"3 total errors across 2 categories",
				"0.00 requests per second",
			},
		},
		{
			name:    "acceptable",
			summary: Summary{TotalAgents: 1, AverageLoadTime: 1500},
			want:    []string{"Acceptable page load performance", "No console errors detected", "0.00 requests per second"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := Report{TestInfo: TestInfo{Duration: 10}, Summary: tt.summary}
			assert.Equal(t, tt.want, Insights(rep))
		})
	}
}

func TestRenderConsole(t *testing.T) {
	r := cleanResult(1, 900, "page loaded")
	r.ConsoleErrors = records(5, "ReferenceError")
	rep := Aggregate(testMeta(1), []agent.Result{r})

	var buf bytes.Buffer
	require.NoError(t, RenderConsole(&buf, rep, Artifacts{Results: "test-1/test-results.json"}))

	out := buf.String()
	assert.Contains(t, out, "https://shop.example.com")
	assert.Contains(t, out, "1/1")
	assert.Contains(t, out, "ecommerce (90% confidence)")
	assert.Contains(t, out, "ReferenceError 0")
	assert.Contains(t, out, "... and 2 more")
	assert.Contains(t, out, "test-1/test-results.json")
}
