package tracer

import (
	"bytes"
	"errors"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/qtrace/pattern"
	"github.com/dbsmedya/qtrace/report"
	"github.com/dbsmedya/qtrace/stats"
)

type lineRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *lineRecorder) WriteLine(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

// steppingClock advances by step on every call.
func steppingClock(step time.Duration) func() time.Time {
	var mu sync.Mutex
	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(step)
		return current
	}
}

func newTestInterceptor(t *testing.T, opts ...Option) (*Interceptor, *pattern.Registry, *stats.Store, *lineRecorder) {
	t.Helper()
	reg := pattern.NewRegistry()
	store := stats.NewStore()
	sink := &lineRecorder{}
	base := []Option{
		WithRegistry(reg),
		WithStore(store),
		WithSink(sink),
		WithClock(steppingClock(250 * time.Millisecond)),
		WithFrameFilter(skipStdlib),
	}
	return New(append(base, opts...)...), reg, store, sink
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"already normalized", "SELECT * FROM users", "SELECT * FROM users"},
		{"multi-line indented", "SELECT *\n    FROM users\n\t\tWHERE id = 1", "SELECT * FROM users WHERE id = 1"},
		{"carriage returns", "UPDATE a\r\nSET b = 1", "UPDATE a SET b = 1"},
		{"repeated spaces", "INSERT   INTO  t", "INSERT INTO t"},
		{"leading and trailing", "\n  SELECT 1  \n", " SELECT 1 "},
		{"empty", "", ""},
		{"vertical tab and no-break space", "SELECT\v*\u00a0FROM users", "SELECT * FROM users"},
		{"unicode separators", "UPDATE a\u2028SET\u3000b = 1\u0085", "UPDATE a SET b = 1 "},
		{"mixed run", "SELECT 1 \u00a0\t\v\n FROM dual", "SELECT 1 FROM dual"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestDo_ReturnsResultAndRecords(t *testing.T) {
	i, _, store, _ := newTestInterceptor(t)

	got, err := Do(i, "SELECT *\n  FROM users\n  WHERE id = 1", func() (int, error) {
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)

	snap := store.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, stats.Entry{Key: "select users", Count: 1, Total: 250 * time.Millisecond}, snap[0])
}

func TestDo_ErrorPropagatesUnchanged(t *testing.T) {
	i, _, store, _ := newTestInterceptor(t)
	execErr := errors.New("deadlock found")

	got, err := Do(i, "UPDATE accounts SET balance = 0", func() (string, error) {
		return "partial", execErr
	})

	assert.Same(t, execErr, err)
	assert.Equal(t, "partial", got)
	assert.Equal(t, 0, store.Len(), "failed calls must not be recorded")
}

func TestExec(t *testing.T) {
	i, _, store, _ := newTestInterceptor(t)

	called := 0
	require.NoError(t, i.Exec("INSERT INTO `orders` VALUES (1)", func() error {
		called++
		return nil
	}))

	execErr := errors.New("duplicate entry")
	err := i.Exec("INSERT INTO `orders` VALUES (1)", func() error {
		called++
		return execErr
	})
	assert.True(t, errors.Is(err, execErr))

	assert.Equal(t, 2, called)
	snap := store.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "insert orders", snap[0].Key)
	assert.Equal(t, int64(1), snap[0].Count)
}

func TestDo_UnclassifiedIsNotRecorded(t *testing.T) {
	i, _, store, _ := newTestInterceptor(t)

	_, err := Do(i, "DELETE FROM users WHERE id = 1", func() (int64, error) { return 1, nil })

	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestDo_RepeatedCallsAccumulate(t *testing.T) {
	i, _, store, _ := newTestInterceptor(t)

	for n := 0; n < 4; n++ {
		require.NoError(t, i.Exec("SELECT id FROM orders", func() error { return nil }))
	}

	snap := store.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, int64(4), snap[0].Count)
	assert.Equal(t, time.Second, snap[0].Total)
}

func TestDo_TracesWatchedStatement(t *testing.T) {
	i, reg, _, sink := newTestInterceptor(t)
	reg.WatchLiteral("users")

	require.NoError(t, i.Exec("SELECT *\n   FROM users", func() error { return nil }))

	require.NotEmpty(t, sink.lines)
	assert.Equal(t, "SELECT * FROM users", sink.lines[0])

	frames := sink.lines[1:]
	require.NotEmpty(t, frames)
	found := false
	for _, line := range frames {
		assert.NotContains(t, line, "testing.tRunner", "standard library frames must be dropped")
		assert.NotContains(t, line, "runtime.goexit")
		if strings.Contains(line, "TestDo_TracesWatchedStatement") {
			found = true
			assert.Contains(t, line, "tracer_test.go:")
		}
	}
	assert.True(t, found, "trace should include the calling test frame, got %v", frames)
}

func TestDo_UnwatchedStatementIsNotTraced(t *testing.T) {
	i, reg, _, sink := newTestInterceptor(t)
	reg.WatchLiteral("orders")

	require.NoError(t, i.Exec("SELECT * FROM users", func() error { return nil }))

	assert.Empty(t, sink.lines)
}

func TestDo_NoPatternsNoTrace(t *testing.T) {
	i, _, _, sink := newTestInterceptor(t)

	require.NoError(t, i.Exec("SELECT * FROM users", func() error { return nil }))

	assert.Empty(t, sink.lines)
}

func TestDo_TraceHappensBeforeExec(t *testing.T) {
	i, reg, _, sink := newTestInterceptor(t)
	reg.WatchLiteral("accounts")

	var linesAtExec int
	_ = i.Exec("UPDATE accounts SET x = 1", func() error {
		linesAtExec = len(sink.lines)
		return errors.New("boom")
	})

	assert.Greater(t, linesAtExec, 0, "watched statements are traced even when execution fails")
}

func TestDo_FrameFilterApplied(t *testing.T) {
	i, reg, _, sink := newTestInterceptor(t, WithFrameFilter(func(runtime.Frame) bool { return false }))
	reg.WatchLiteral("users")

	require.NoError(t, i.Exec("SELECT * FROM users", func() error { return nil }))

	assert.Equal(t, []string{"SELECT * FROM users"}, sink.lines)
}

func TestObserve(t *testing.T) {
	i, reg, store, sink := newTestInterceptor(t)
	reg.WatchLiteral("orders")

	i.Observe("SELECT * \n FROM orders", 40*time.Millisecond, nil)
	i.Observe("SELECT * FROM orders", 60*time.Millisecond, nil)
	i.Observe("SELECT * FROM orders", time.Second, errors.New("timeout"))
	i.Observe("SHOW TABLES", time.Second, nil)

	snap := store.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, stats.Entry{Key: "select orders", Count: 2, Total: 100 * time.Millisecond}, snap[0])

	statementLines := 0
	for _, line := range sink.lines {
		if line == "SELECT * FROM orders" {
			statementLines++
		}
	}
	assert.Equal(t, 3, statementLines)
}

func TestWatched(t *testing.T) {
	i, reg, _, _ := newTestInterceptor(t)
	reg.WatchLiteral("FROM users WHERE")

	assert.True(t, i.Watched("SELECT *\nFROM   users\nWHERE id = 1"))
	assert.False(t, i.Watched("SELECT * FROM orders"))
}

func TestFlushReport(t *testing.T) {
	i, _, store, _ := newTestInterceptor(t, WithReportOptions(report.Options{}))
	store.Record("select users", 1250*time.Millisecond)
	store.Record("insert orders", 500*time.Millisecond)
	for n := 0; n < 4; n++ {
		store.Record("select users", 0)
	}
	store.Record("insert orders", 0)

	var buf bytes.Buffer
	require.NoError(t, i.FlushReport(&buf))

	expected := strings.Join([]string{
		"",
		"QTrace statistics",
		"",
		"| Request       | No. calls | Time   |",
		"| select users  |         5 | 1.2500 |",
		"| insert orders |         2 | 0.5000 |",
		"| Total         |         7 | 1.7500 |",
	}, "\n") + "\n"
	assert.Equal(t, expected, buf.String())
}

func TestNew_Defaults(t *testing.T) {
	i := New()

	assert.Same(t, pattern.Default(), i.registry)
	assert.Same(t, stats.Default(), i.store)
	assert.Same(t, stats.Default(), i.Store())
	assert.NotNil(t, i.keepFrame)
	assert.NotPanics(t, func() { i.sink.WriteLine("discarded") })
}

func TestSinkFunc(t *testing.T) {
	var got []string
	var s Sink = SinkFunc(func(line string) { got = append(got, line) })
	s.WriteLine("a")
	s.WriteLine("b")
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestDo_Concurrent(t *testing.T) {
	i, reg, store, _ := newTestInterceptor(t)
	reg.WatchLiteral("users")

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				_ = i.Exec("SELECT * FROM users", func() error { return nil })
			}
		}()
	}
	wg.Wait()

	snap := store.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, int64(400), snap[0].Count)
}
