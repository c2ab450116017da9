package icsdoc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// DiagnosticKind classifies a non-fatal problem found during conversion.
type DiagnosticKind string

const (
	// DiagMismatch: an END name differs from the innermost open BEGIN.
	DiagMismatch DiagnosticKind = "mismatch"
	// DiagUnrecognized: a logical line matches no known shape.
	DiagUnrecognized DiagnosticKind = "unrecognized"
	// DiagUnexpectedEnd: an END with no open section.
	DiagUnexpectedEnd DiagnosticKind = "unexpected-end"
	// DiagUnclosed: a section still open at end of input.
	DiagUnclosed DiagnosticKind = "unclosed"
	// DiagConflict: a key changed kind, e.g. a plain property after a
	// parameterized one.
	DiagConflict DiagnosticKind = "conflict"
	// DiagBadKey: the serializer emitted a key the parser would reject.
	DiagBadKey DiagnosticKind = "bad-key"
	// DiagLineBreak: the serializer emitted a value containing a raw line break.
	DiagLineBreak DiagnosticKind = "line-break"
	// DiagAmbiguous: a decoded JSON array could be parameter lists or
	// sections and was read as parameter lists.
	DiagAmbiguous DiagnosticKind = "ambiguous"
)

// Diagnostic is one reportable condition. Line is the 1-based physical line
// where the logical line started; it is zero for serializer and JSON
// diagnostics, whose Text names the key instead.
type Diagnostic struct {
	Kind    DiagnosticKind
	Line    int
	Text    string
	Message string
}

func (d Diagnostic) Error() string {
	if d.Line > 0 {
		return fmt.Sprintf("line %d: %s: %s: %q", d.Line, d.Kind, d.Message, d.Text)
	}
	return fmt.Sprintf("%s: %s: %q", d.Kind, d.Message, d.Text)
}

// Diagnostics is the ordered list of problems raised by one call.
type Diagnostics []Diagnostic

// Err joins all diagnostics into a single error, or returns nil.
func (ds Diagnostics) Err() error {
	if len(ds) == 0 {
		return nil
	}
	errs := make([]error, len(ds))
	for i, d := range ds {
		errs[i] = d
	}
	return errors.Join(errs...)
}

// Count returns how many diagnostics have the given kind.
func (ds Diagnostics) Count(kind DiagnosticKind) int {
	n := 0
	for _, d := range ds {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// Reporter receives diagnostics as they are raised.
type Reporter interface {
	Report(Diagnostic)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Diagnostic)

func (f ReporterFunc) Report(d Diagnostic) { f(d) }

// Collector is a Reporter that keeps every diagnostic it receives.
type Collector struct {
	Diagnostics Diagnostics
}

func (c *Collector) Report(d Diagnostic) {
	c.Diagnostics = append(c.Diagnostics, d)
}

// MultiReporter returns a Reporter that forwards each diagnostic to every
// non-nil reporter in rs.
func MultiReporter(rs ...Reporter) Reporter {
	return ReporterFunc(func(d Diagnostic) {
		for _, r := range rs {
			if r != nil {
				r.Report(d)
			}
		}
	})
}

// NewLogReporter returns a Reporter that writes each diagnostic to logger at
// warn level, tagged with attrs (e.g. the file being converted).
func NewLogReporter(logger *slog.Logger, attrs ...any) Reporter {
	l := logger.With(attrs...)
	return ReporterFunc(func(d Diagnostic) {
		l.LogAttrs(context.Background(), slog.LevelWarn, d.Message,
			slog.String("kind", string(d.Kind)),
			slog.Int("line", d.Line),
			slog.String("text", d.Text),
		)
	})
}

// diagSink fans one diagnostic out to the result list and an optional
// Reporter.
type diagSink struct {
	list     Diagnostics
	reporter Reporter
}

func (s *diagSink) add(kind DiagnosticKind, line int, text, format string, args ...any) {
	d := Diagnostic{Kind: kind, Line: line, Text: text, Message: fmt.Sprintf(format, args...)}
	s.list = append(s.list, d)
	if s.reporter != nil {
		s.reporter.Report(d)
	}
}
