package icalconv

import (
	"testing"
	"time"

	"icsjson/internal/icsdoc"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCalendar() *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//test//EN")

	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, "event-1")
	ve.Props.SetText(ical.PropSummary, "Planning")
	ve.Props.SetDateTime(ical.PropDateTimeStamp, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	ve.Props.SetDateTime(ical.PropDateTimeStart, time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))

	attendee := ical.NewProp(ical.PropAttendee)
	attendee.Params.Set(ical.ParamCommonName, "Jane")
	attendee.Value = "mailto:jane@example.com"
	ve.Props.Add(attendee)

	cal.Children = append(cal.Children, ve)
	return cal
}

func TestDocumentFromCalendar(t *testing.T) {
	res, err := DocumentFromCalendar(icsdoc.DefaultGrammar(), sampleCalendar())
	require.NoError(t, err)
	assert.Empty(t, res.Diagnostics)
	assert.True(t, res.Wrapped)

	doc := res.Document
	version, _ := doc.Scalar(ical.PropVersion)
	assert.Equal(t, "2.0", version)

	events, ok := doc.Sections(ical.CompEvent)
	require.True(t, ok, "single events are not promoted")
	require.Len(t, events, 1)

	uid, _ := events[0].Scalar(ical.PropUID)
	assert.Equal(t, "event-1", uid)
	summary, _ := events[0].Scalar(ical.PropSummary)
	assert.Equal(t, "Planning", summary)

	attendees, ok := events[0].Params(ical.PropAttendee)
	require.True(t, ok)
	require.Len(t, attendees, 1)
	cn, _ := attendees[0].Get(ical.ParamCommonName)
	assert.Equal(t, "Jane", cn)
}

func TestCalendarFromDocument_FlattenedEvent(t *testing.T) {
	doc := icsdoc.NewDocument()
	doc.SetScalar("VERSION", "2.0")
	doc.SetScalar("UID", "flat-1")
	doc.SetScalar("SUMMARY", "Lunch")
	doc.Set("ATTENDEE", icsdoc.ParamList{{{Name: "CN", Value: "Jane"}}})

	cal, diags, err := CalendarFromDocument(icsdoc.DefaultGrammar(), doc)
	require.NoError(t, err)
	assert.Empty(t, diags)

	assert.Equal(t, "2.0", cal.Props.Get(ical.PropVersion).Value)
	assert.Equal(t, ProductID, cal.Props.Get(ical.PropProductID).Value)

	require.Len(t, cal.Children, 1)
	event := cal.Children[0]
	assert.Equal(t, ical.CompEvent, event.Name)
	assert.Equal(t, "flat-1", event.Props.Get(ical.PropUID).Value)
	assert.Nil(t, event.Props.Get(ical.PropVersion))

	attendee := event.Props.Get(ical.PropAttendee)
	require.NotNil(t, attendee)
	assert.Equal(t, "Jane", attendee.Params.Get(ical.ParamCommonName))
}

func TestCalendarFromDocument_StructuredCalendar(t *testing.T) {
	first := icsdoc.NewDocument()
	first.SetScalar("UID", "1")
	second := icsdoc.NewDocument()
	second.SetScalar("UID", "2")

	doc := icsdoc.NewDocument()
	doc.SetScalar("PRODID", "-//mine//EN")
	doc.Set("VEVENT", icsdoc.Sections{first, second})

	cal, _, err := CalendarFromDocument(icsdoc.DefaultGrammar(), doc)
	require.NoError(t, err)
	assert.Equal(t, "-//mine//EN", cal.Props.Get(ical.PropProductID).Value)
	assert.Equal(t, "2.0", cal.Props.Get(ical.PropVersion).Value)
	require.Len(t, cal.Children, 2)
	assert.Equal(t, "2", cal.Children[1].Props.Get(ical.PropUID).Value)
}

func TestCalendarFromDocument_ReportsSerializerDiagnostics(t *testing.T) {
	doc := icsdoc.NewDocument()
	doc.SetScalar("UID", "x")
	doc.SetScalar("x-lower", "y")

	var c icsdoc.Collector
	_, diags, _ := CalendarFromDocument(icsdoc.DefaultGrammar(), doc, icsdoc.WithSerializerReporter(&c))
	assert.Equal(t, 1, diags.Count(icsdoc.DiagBadKey))
	assert.Equal(t, diags, c.Diagnostics)
}

func TestCalendarFromDocument_FillsRequiredEventProps(t *testing.T) {
	doc := icsdoc.NewDocument()
	doc.SetScalar("SUMMARY", "No identity")

	cal, _, err := CalendarFromDocument(icsdoc.DefaultGrammar(), doc)
	require.NoError(t, err)
	require.Len(t, cal.Children, 1)
	assert.NotEmpty(t, cal.Children[0].Props.Get(ical.PropUID).Value)
	assert.NotNil(t, cal.Children[0].Props.Get(ical.PropDateTimeStamp))
}

func TestCalendarRoundTrip(t *testing.T) {
	g := icsdoc.DefaultGrammar()
	res, err := DocumentFromCalendar(g, sampleCalendar())
	require.NoError(t, err)

	cal, _, err := CalendarFromDocument(g, res.Document)
	require.NoError(t, err)

	again, err := DocumentFromCalendar(g, cal)
	require.NoError(t, err)

	events, _ := again.Document.Sections(ical.CompEvent)
	require.Len(t, events, 1)
	summary, _ := events[0].Scalar(ical.PropSummary)
	assert.Equal(t, "Planning", summary)
	_, ok := events[0].Params(ical.PropAttendee)
	assert.True(t, ok)
}
