package tracer

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// maxFrames bounds how deep a trace walks the call stack.
const maxFrames = 64

// FrameFilter decides whether a call-stack frame is included in a trace.
// It returns true to keep the frame.
type FrameFilter func(frame runtime.Frame) bool

// DefaultExcludes are dropped from traces in addition to standard library
// frames: the host-facing instrumentation packages of this module and the
// ORM's own call chain.
var DefaultExcludes = []string{
	"github.com/dbsmedya/qtrace/tracer.",
	"github.com/dbsmedya/qtrace/sqltrace.",
	"github.com/dbsmedya/qtrace/gormtrace.",
	"gorm.io/gorm",
}

// ExcludeFrames returns a filter that drops frames whose file or function
// contains any of substrings. Empty substrings are ignored.
func ExcludeFrames(substrings ...string) FrameFilter {
	var subs []string
	for _, s := range substrings {
		if s != "" {
			subs = append(subs, s)
		}
	}
	return func(frame runtime.Frame) bool {
		for _, s := range subs {
			if strings.Contains(frame.File, s) || strings.Contains(frame.Function, s) {
				return false
			}
		}
		return true
	}
}

// AllOf keeps a frame only if every filter keeps it.
func AllOf(filters ...FrameFilter) FrameFilter {
	return func(frame runtime.Frame) bool {
		for _, f := range filters {
			if f != nil && !f(frame) {
				return false
			}
		}
		return true
	}
}

// DefaultFrameFilter drops standard library frames and DefaultExcludes.
func DefaultFrameFilter() FrameFilter {
	return AllOf(skipStdlib, ExcludeFrames(DefaultExcludes...))
}

func skipStdlib(frame runtime.Frame) bool {
	return !isStdlib(frame)
}

// gorootSrc is the directory standard library sources are recorded under,
// taken from the file of a known standard library function. It is empty
// when the binary was built with -trimpath.
var gorootSrc = stdlibSourceDir()

func stdlibSourceDir() string {
	pc := reflect.ValueOf(strings.Contains).Pointer()
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return ""
	}
	file, _ := fn.FileLine(pc)
	dir, ok := strings.CutSuffix(file, "strings/strings.go")
	if !ok {
		return ""
	}
	return dir
}

// isStdlib reports whether frame belongs to the standard library or the
// runtime, judged by where its source file lives.
func isStdlib(frame runtime.Frame) bool {
	if frame.Function == "" && frame.File == "" {
		return true
	}
	if gorootSrc != "" {
		return strings.HasPrefix(frame.File, gorootSrc)
	}
	return isStdlibPath(frame.Function)
}

// isStdlibPath classifies a function by import path. Paths outside the
// standard library usually start with a domain, so their first element
// contains a dot. It only serves -trimpath builds, where file paths carry no
// GOROOT to compare against, and misjudges dotless module paths there.
func isStdlibPath(fn string) bool {
	pkg := fn
	if slash := strings.LastIndex(pkg, "/"); slash >= 0 {
		if dot := strings.Index(pkg[slash:], "."); dot >= 0 {
			pkg = pkg[:slash+dot]
		}
	} else if dot := strings.Index(pkg, "."); dot >= 0 {
		pkg = pkg[:dot]
	}
	if pkg == "main" {
		return false
	}
	first, _, _ := strings.Cut(pkg, "/")
	return !strings.Contains(first, ".")
}

// callers returns the formatted frames above the caller of callers, minus
// anything keep rejects.
func callers(skip int, keep FrameFilter) []string {
	pcs := make([]uintptr, maxFrames)
	n := runtime.Callers(skip+2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var lines []string
	for {
		frame, more := frames.Next()
		if keep == nil || keep(frame) {
			lines = append(lines, formatFrame(frame))
		}
		if !more {
			break
		}
	}
	return lines
}

func formatFrame(frame runtime.Frame) string {
	return fmt.Sprintf("%s:%d in %s", frame.File, frame.Line, frame.Function)
}
