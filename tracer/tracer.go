// Package tracer wraps statement execution to echo watched statements with
// their call sites, time each call and feed per-table statistics.
//
// Hosts route their execute path through an Interceptor:
//
//	t := tracer.New(tracer.WithSink(tracer.SinkFunc(func(line string) {
//		log.Println("** " + line)
//	})))
//	res, err := tracer.Do(t, query, func() (sql.Result, error) {
//		return db.ExecContext(ctx, query, args...)
//	})
//	...
//	_ = t.FlushReport(os.Stdout)
package tracer

import (
	"io"
	"regexp"
	"time"

	"github.com/dbsmedya/qtrace/classify"
	"github.com/dbsmedya/qtrace/pattern"
	"github.com/dbsmedya/qtrace/report"
	"github.com/dbsmedya/qtrace/stats"
)

// Sink receives trace output one line at a time.
type Sink interface {
	WriteLine(line string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(line string)

// WriteLine calls f(line).
func (f SinkFunc) WriteLine(line string) {
	f(line)
}

type discardSink struct{}

func (discardSink) WriteLine(string) {}

// Interceptor times and classifies the statements routed through it.
// It holds no mutable state of its own and is safe for concurrent use.
type Interceptor struct {
	registry   *pattern.Registry
	store      *stats.Store
	sink       Sink
	keepFrame  FrameFilter
	now        func() time.Time
	reportOpts report.Options
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithRegistry sets the watch patterns consulted for tracing.
func WithRegistry(r *pattern.Registry) Option {
	return func(i *Interceptor) { i.registry = r }
}

// WithStore sets the statistics destination.
func WithStore(s *stats.Store) Option {
	return func(i *Interceptor) { i.store = s }
}

// WithSink sets where traces of watched statements are written.
func WithSink(s Sink) Option {
	return func(i *Interceptor) { i.sink = s }
}

// WithFrameFilter replaces the default call-stack filter.
func WithFrameFilter(f FrameFilter) Option {
	return func(i *Interceptor) { i.keepFrame = f }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(i *Interceptor) { i.now = now }
}

// WithReportOptions sets the options FlushReport renders with.
func WithReportOptions(opts report.Options) Option {
	return func(i *Interceptor) { i.reportOpts = opts }
}

// New creates an Interceptor. Without options it uses the process-wide
// registry and store, discards traces and applies DefaultFrameFilter.
func New(opts ...Option) *Interceptor {
	i := &Interceptor{
		registry:  pattern.Default(),
		store:     stats.Default(),
		sink:      discardSink{},
		keepFrame: DefaultFrameFilter(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// whitespaceRun matches Unicode white space: RE2's \s is ASCII-only and
// omits \v, so vertical tab, NEL and the Z categories are listed explicitly.
var whitespaceRun = regexp.MustCompile(`[\s\v\x{85}\p{Z}]+`)

// Normalize collapses every run of whitespace, line breaks and non-breaking
// spaces included, into a single space.
func Normalize(statement string) string {
	return whitespaceRun.ReplaceAllString(statement, " ")
}

// Do runs exec on behalf of statement and returns exactly what exec returns.
// A watched statement is traced before exec runs. Successful calls are timed,
// classified and recorded; failed calls are not recorded.
func Do[T any](i *Interceptor, statement string, exec func() (T, error)) (T, error) {
	normalized := Normalize(statement)
	i.traceIfWatched(normalized)

	start := i.now()
	result, err := exec()
	if err != nil {
		return result, err
	}

	i.record(normalized, i.now().Sub(start))
	return result, nil
}

// Exec is Do for operations that only report an error.
func (i *Interceptor) Exec(statement string, exec func() error) error {
	_, err := Do(i, statement, func() (struct{}, error) {
		return struct{}{}, exec()
	})
	return err
}

// Observe handles a statement the host already executed and timed itself,
// such as an ORM log hook. It traces watched statements and records the call
// unless err is non-nil.
func (i *Interceptor) Observe(statement string, elapsed time.Duration, err error) {
	normalized := Normalize(statement)
	i.traceIfWatched(normalized)
	if err != nil {
		return
	}
	i.record(normalized, elapsed)
}

// Watched reports whether statement matches a registered watch pattern.
func (i *Interceptor) Watched(statement string) bool {
	return i.registry.Matches(Normalize(statement))
}

// Store returns the statistics destination.
func (i *Interceptor) Store() *stats.Store {
	return i.store
}

// FlushReport renders the current statistics to w.
func (i *Interceptor) FlushReport(w io.Writer) error {
	return report.Write(w, i.store.Snapshot(), i.reportOpts)
}

func (i *Interceptor) traceIfWatched(normalized string) {
	if !i.registry.Matches(normalized) {
		return
	}
	i.sink.WriteLine(normalized)
	for _, line := range callers(2, i.keepFrame) {
		i.sink.WriteLine(line)
	}
}

func (i *Interceptor) record(normalized string, elapsed time.Duration) {
	key, ok := classify.Classify(normalized)
	if !ok {
		return
	}
	i.store.Record(key.String(), elapsed)
}
