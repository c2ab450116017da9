package icsdoc

import (
	"strings"
	"unicode/utf8"
)

// MaxLineOctets is the longest physical line the serializer emits.
const MaxLineOctets = 75

// EventName is the component a promoted single event is wrapped in again.
const EventName = "VEVENT"

// calendarProps belong to VCALENDAR itself and stay outside the event wrapper.
var calendarProps = map[string]bool{
	"VERSION":  true,
	"PRODID":   true,
	"CALSCALE": true,
	"METHOD":   true,
}

// Serializer turns a Document back into folded iCalendar-style text. It only
// reads the documents it is given and is safe for concurrent use.
type Serializer struct {
	grammar  *Grammar
	reporter Reporter
	runeSafe bool
}

// SerializerOption configures a Serializer.
type SerializerOption func(*Serializer)

// WithSerializerReporter forwards serializer diagnostics to r.
func WithSerializerReporter(r Reporter) SerializerOption {
	return func(s *Serializer) { s.reporter = r }
}

// WithRuneSafeFolding moves each fold point back to the start of a UTF-8
// sequence so multi-octet characters are never split across lines.
func WithRuneSafeFolding() SerializerOption {
	return func(s *Serializer) { s.runeSafe = true }
}

// NewSerializer returns a Serializer using g. A nil grammar means
// DefaultGrammar.
func NewSerializer(g *Grammar, opts ...SerializerOption) *Serializer {
	if g == nil {
		g = DefaultGrammar()
	}
	s := &Serializer{grammar: g}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Output is the outcome of one Serialize call.
type Output struct {
	Text        string
	Diagnostics Diagnostics
}

// Serialize renders doc as lines joined by "\n", without the VCALENDAR
// wrapper and without a trailing newline.
func (s *Serializer) Serialize(doc *Document) *Output {
	sink := &diagSink{reporter: s.reporter}
	lines := s.appendDocument(nil, doc, sink)
	return &Output{Text: strings.Join(lines, "\n"), Diagnostics: sink.list}
}

// SerializeCalendar renders doc inside the VCALENDAR wrapper. A document
// without a top-level component is taken to be a promoted single event: its
// calendar properties stay at the top and the rest goes into a VEVENT, so
// parsing the text again promotes the same document.
func (s *Serializer) SerializeCalendar(doc *Document) *Output {
	calendar, event := s.splitPromoted(doc)
	if event.Len() > 0 {
		calendar.Set(EventName, Sections{event})
	}
	out := s.Serialize(calendar)
	out.Text = Wrap(out.Text)
	return out
}

// splitPromoted separates calendar properties from the fields of a promoted
// event. A document holding a top-level component is returned whole.
func (s *Serializer) splitPromoted(doc *Document) (calendar, event *Document) {
	for _, e := range doc.Entries() {
		if e.Value.Kind() == KindSections && s.grammar.IsComponent(e.Key) && !s.grammar.IsNested(e.Key) {
			return doc.Clone(), NewDocument()
		}
	}
	calendar, event = NewDocument(), NewDocument()
	for _, e := range doc.Entries() {
		if calendarProps[e.Key] {
			calendar.Set(e.Key, e.Value)
		} else {
			event.Set(e.Key, e.Value)
		}
	}
	return calendar, event
}

func (s *Serializer) appendDocument(lines []string, doc *Document, sink *diagSink) []string {
	for _, e := range doc.Entries() {
		switch v := e.Value.(type) {
		case Sections:
			for _, sub := range v {
				lines = append(lines, "BEGIN:"+e.Key)
				lines = s.appendDocument(lines, sub, sink)
				lines = append(lines, "END:"+e.Key)
			}
		case ParamList:
			s.checkKey(e.Key, sink)
			for _, params := range v {
				lines = s.fold(lines, e.Key+";"+formatParams(params)+":")
			}
		case Scalar:
			s.checkKey(e.Key, sink)
			if strings.ContainsAny(string(v), "\r\n") {
				sink.add(DiagLineBreak, 0, e.Key, "value of %s contains a raw line break", e.Key)
			}
			lines = s.fold(lines, e.Key+":"+string(v))
		}
	}
	return lines
}

func (s *Serializer) checkKey(key string, sink *diagSink) {
	if !s.grammar.ValidKey(key) {
		sink.add(DiagBadKey, 0, key, "key %s will not be recognized when parsed back", key)
	}
}

func formatParams(params Params) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.Name + "=" + p.Value
	}
	return strings.Join(parts, ";")
}

// fold appends line split into physical lines of at most MaxLineOctets
// octets. Every line after the first starts with a single space, which
// counts towards its length.
func (s *Serializer) fold(lines []string, line string) []string {
	for {
		if len(line) <= MaxLineOctets {
			return append(lines, line)
		}
		cut := MaxLineOctets
		if s.runeSafe {
			cut = runeCut(line, MaxLineOctets)
		}
		lines = append(lines, line[:cut])
		line = " " + line[cut:]
	}
}

// runeCut returns the last rune start at or before limit. Input that is not
// valid UTF-8 has no rune start nearby and is cut at limit.
func runeCut(line string, limit int) int {
	for i := limit; i > limit-utf8.UTFMax; i-- {
		if utf8.RuneStart(line[i]) {
			return i
		}
	}
	return limit
}

// Wrap encloses serialized text in the VCALENDAR wrapper. Use
// SerializeCalendar for documents that came from a promoted single event.
func Wrap(text string) string {
	if text == "" {
		return "BEGIN:" + WrapperName + "\nEND:" + WrapperName
	}
	return "BEGIN:" + WrapperName + "\n" + text + "\nEND:" + WrapperName
}
