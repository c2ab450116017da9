package icsdoc

import (
	"regexp"
	"strings"
)

// WrapperName is the outermost calendar section. Its BEGIN and END lines are
// skipped by the parser and never emitted by the serializer.
const WrapperName = "VCALENDAR"

// Grammar holds the compiled line shapes and the component names a parser or
// serializer works with. A Grammar is read-only once built and may be shared.
type Grammar struct {
	begin      *regexp.Regexp
	end        *regexp.Regexp
	withParams *regexp.Regexp
	plain      *regexp.Regexp
	key        *regexp.Regexp
	components map[string]bool
}

var defaultComponents = []string{
	"VEVENT",
	"VTODO",
	"VJOURNAL",
	"VFREEBUSY",
	"VTIMEZONE",
	"VALARM",
	"STANDARD",
	"DAYLIGHT",
	"VAVAILABILITY",
	"AVAILABLE",
	"VLOCATION",
	"VRESOURCE",
	"PARTICIPANT",
	"VVENUE",
}

// nestedComponents only ever appear inside another component, never directly
// in a calendar.
var nestedComponents = map[string]bool{
	"VALARM":      true,
	"STANDARD":    true,
	"DAYLIGHT":    true,
	"AVAILABLE":   true,
	"VLOCATION":   true,
	"VRESOURCE":   true,
	"PARTICIPANT": true,
}

// knownProperties are the RFC 5545, 7986 and 9073 property names.
var knownProperties = map[string]bool{
	"CALSCALE": true, "METHOD": true, "PRODID": true, "VERSION": true,
	"ATTACH": true, "CATEGORIES": true, "CLASS": true, "COMMENT": true,
	"DESCRIPTION": true, "GEO": true, "LOCATION": true, "PERCENT-COMPLETE": true,
	"PRIORITY": true, "RESOURCES": true, "STATUS": true, "SUMMARY": true,
	"COMPLETED": true, "DTEND": true, "DUE": true, "DTSTART": true,
	"DURATION": true, "FREEBUSY": true, "TRANSP": true, "TZID": true,
	"TZNAME": true, "TZOFFSETFROM": true, "TZOFFSETTO": true, "TZURL": true,
	"ATTENDEE": true, "CONTACT": true, "ORGANIZER": true, "RECURRENCE-ID": true,
	"RELATED-TO": true, "URL": true, "UID": true, "EXDATE": true,
	"RDATE": true, "RRULE": true, "ACTION": true, "REPEAT": true,
	"TRIGGER": true, "CREATED": true, "DTSTAMP": true, "LAST-MODIFIED": true,
	"SEQUENCE": true, "REQUEST-STATUS": true, "NAME": true, "REFRESH-INTERVAL": true,
	"SOURCE": true, "COLOR": true, "IMAGE": true, "CONFERENCE": true,
	"LOCATION-TYPE": true, "PARTICIPANT-TYPE": true, "RESOURCE-TYPE": true,
	"CALENDAR-ADDRESS": true, "STYLED-DESCRIPTION": true, "STRUCTURED-DATA": true,
}

// DefaultGrammar builds a grammar recognizing the RFC 5545, 7953 and 9073
// component names.
func DefaultGrammar() *Grammar {
	return NewGrammar(defaultComponents...)
}

// NewGrammar builds a grammar that treats the given names as components when
// classifying decoded JSON arrays.
func NewGrammar(components ...string) *Grammar {
	g := &Grammar{
		begin:      regexp.MustCompile(`^BEGIN:(.+)$`),
		end:        regexp.MustCompile(`^END:(.+)$`),
		withParams: regexp.MustCompile(`^([A-Z-]+);(.*)$`),
		plain:      regexp.MustCompile(`^([A-Z-]+):(.*)$`),
		key:        regexp.MustCompile(`^[A-Z-]+$`),
		components: make(map[string]bool, len(components)),
	}
	for _, c := range components {
		g.components[strings.ToUpper(c)] = true
	}
	return g
}

// IsComponent reports whether name is a known component name.
func (g *Grammar) IsComponent(name string) bool {
	return g.components[strings.ToUpper(name)]
}

// IsNested reports whether name is a component that only occurs inside
// another component, such as VALARM.
func (g *Grammar) IsNested(name string) bool {
	return g.IsComponent(name) && nestedComponents[strings.ToUpper(name)]
}

// IsProperty reports whether name is a standard property name. Such keys hold
// parameter lists, never sections.
func (g *Grammar) IsProperty(name string) bool {
	return knownProperties[strings.ToUpper(name)]
}

// ValidKey reports whether a property line starting with key would be
// recognized on parse.
func (g *Grammar) ValidKey(key string) bool {
	return g.key.MatchString(key)
}

func (g *Grammar) isWrapper(line string) bool {
	return line == "BEGIN:"+WrapperName || line == "END:"+WrapperName
}

func (g *Grammar) matchBegin(line string) (string, bool) {
	m := g.begin.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func (g *Grammar) matchEnd(line string) (string, bool) {
	m := g.end.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func (g *Grammar) matchParams(line string) (key, rest string, ok bool) {
	m := g.withParams.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

func (g *Grammar) matchPlain(line string) (key, value string, ok bool) {
	m := g.plain.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}
