package icsdoc

import (
	"strings"
)

// Parser turns iCalendar-style text into a Document. A Parser holds no
// per-call state and is safe for concurrent use.
type Parser struct {
	grammar  *Grammar
	reporter Reporter
	promote  bool
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithReporter forwards every diagnostic to r as it is raised, in addition to
// collecting it in the Result.
func WithReporter(r Reporter) ParserOption {
	return func(p *Parser) { p.reporter = r }
}

// WithPromotion controls whether the single top-level section of a wrapped
// calendar is merged into the root document. It is on by default.
func WithPromotion(enabled bool) ParserOption {
	return func(p *Parser) { p.promote = enabled }
}

// NewParser returns a Parser using g. A nil grammar means DefaultGrammar.
func NewParser(g *Grammar, opts ...ParserOption) *Parser {
	if g == nil {
		g = DefaultGrammar()
	}
	p := &Parser{grammar: g, promote: true}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result is the outcome of one Parse call.
type Result struct {
	Document    *Document
	Diagnostics Diagnostics
	// Wrapped is set when the input carried the VCALENDAR wrapper.
	Wrapped bool
}

// logicalLine is an unfolded content line and the physical line it began on.
type logicalLine struct {
	no   int
	text string
}

var newlineReplacer = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// unfold normalizes line breaks and merges continuation lines. A physical
// line starting with a space or tab loses that one character and is appended
// to the previous logical line.
func unfold(text string) []logicalLine {
	physical := strings.Split(newlineReplacer.Replace(text), "\n")
	lines := make([]logicalLine, 0, len(physical))
	for i, l := range physical {
		if len(lines) > 0 && l != "" && (l[0] == ' ' || l[0] == '\t') {
			lines[len(lines)-1].text += l[1:]
			continue
		}
		lines = append(lines, logicalLine{no: i + 1, text: l})
	}
	return lines
}

type frame struct {
	name string
	line int
	doc  *Document
}

// Parse converts text into a Document. It never fails: malformed lines are
// reported as diagnostics and skipped.
func (p *Parser) Parse(text string) *Result {
	sink := &diagSink{reporter: p.reporter}
	root := NewDocument()
	var stack []frame
	wrapped := false

	current := func() *Document {
		if len(stack) == 0 {
			return root
		}
		return stack[len(stack)-1].doc
	}
	closeTop := func() frame {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !current().AppendSection(top.name, top.doc) {
			sink.add(DiagConflict, top.line, "BEGIN:"+top.name, "section %s replaces a property of the same name", top.name)
		}
		return top
	}

	for _, ll := range unfold(text) {
		line := ll.text
		if strings.TrimSpace(line) == "" {
			continue
		}
		if p.grammar.isWrapper(line) {
			wrapped = true
			continue
		}

		if name, ok := p.grammar.matchBegin(line); ok {
			stack = append(stack, frame{name: name, line: ll.no, doc: NewDocument()})
			continue
		}

		if name, ok := p.grammar.matchEnd(line); ok {
			if len(stack) == 0 {
				sink.add(DiagUnexpectedEnd, ll.no, line, "no open section to close")
				continue
			}
			if top := closeTop(); top.name != name {
				sink.add(DiagMismatch, ll.no, line, "closing section %s does not match open section %s", name, top.name)
			}
			continue
		}

		if key, rest, ok := p.grammar.matchParams(line); ok {
			if !current().AppendParams(key, parseParams(rest)) {
				sink.add(DiagConflict, ll.no, line, "parameterized property %s replaces a value of another kind", key)
			}
			continue
		}

		if key, value, ok := p.grammar.matchPlain(line); ok {
			doc := current()
			if existing, found := doc.Get(key); found && existing.Kind() != KindScalar {
				sink.add(DiagConflict, ll.no, line, "property %s replaces a value of kind %s", key, existing.Kind())
			}
			doc.SetScalar(key, value)
			continue
		}

		sink.add(DiagUnrecognized, ll.no, line, "error parsing line")
	}

	for len(stack) > 0 {
		top := closeTop()
		sink.add(DiagUnclosed, top.line, "BEGIN:"+top.name, "section %s was never closed", top.name)
	}

	if wrapped && p.promote {
		root = promoteSingleton(root, p.grammar)
	}
	return &Result{Document: root, Diagnostics: sink.list, Wrapped: wrapped}
}

// parseParams reads the NAME=VALUE segments that follow the property key, up
// to the first colon outside double quotes. The property value is dropped.
func parseParams(rest string) Params {
	var params Params
	for _, seg := range splitUnquoted(paramSection(rest), ';') {
		if seg == "" {
			continue
		}
		name, value, _ := strings.Cut(seg, "=")
		params = append(params, Param{Name: name, Value: value})
	}
	return params
}

func paramSection(rest string) string {
	quoted := false
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case '"':
			quoted = !quoted
		case ':':
			if !quoted {
				return rest[:i]
			}
		}
	}
	return rest
}

func splitUnquoted(s string, sep byte) []string {
	var parts []string
	quoted := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			quoted = !quoted
		case sep:
			if !quoted {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// promoteSingleton merges the only section occurrence of root into root
// itself, keeping its position. Root is returned unchanged when there is not
// exactly one occurrence, the section is a nested-only component such as
// VALARM, or a key would collide.
func promoteSingleton(root *Document, g *Grammar) *Document {
	sectionKey := ""
	var only *Document
	for _, e := range root.Entries() {
		s, ok := e.Value.(Sections)
		if !ok {
			continue
		}
		if only != nil || len(s) != 1 {
			return root
		}
		sectionKey, only = e.Key, s[0]
	}
	if only == nil || g.IsNested(sectionKey) {
		return root
	}
	for _, e := range only.Entries() {
		if _, clash := root.Get(e.Key); clash && e.Key != sectionKey {
			return root
		}
	}

	out := NewDocument()
	for _, e := range root.Entries() {
		if e.Key != sectionKey {
			out.Set(e.Key, e.Value)
			continue
		}
		for _, inner := range only.Entries() {
			out.Set(inner.Key, inner.Value)
		}
	}
	return out
}
