// Package icalconv bridges go-ical calendars and icsdoc documents.
package icalconv

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"icsjson/internal/icsdoc"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
)

// ProductID is set on calendars that carry none.
const ProductID = "-//icsjson//EN"

// DocumentFromCalendar encodes cal with go-ical and parses the text into a
// document. The calendar structure is kept as is, without promotion.
func DocumentFromCalendar(g *icsdoc.Grammar, cal *ical.Calendar, opts ...icsdoc.ParserOption) (*icsdoc.Result, error) {
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("failed to encode calendar: %w", err)
	}
	opts = append(opts, icsdoc.WithPromotion(false))
	return icsdoc.NewParser(g, opts...).Parse(buf.String()), nil
}

// CalendarFromDocument serializes doc into a VCALENDAR and decodes it with
// go-ical, which rejects text a CalDAV server would not accept. A document
// with no top-level component is taken to be a single flattened event. Events
// missing UID or DTSTAMP get generated ones.
func CalendarFromDocument(g *icsdoc.Grammar, doc *icsdoc.Document, opts ...icsdoc.SerializerOption) (*ical.Calendar, icsdoc.Diagnostics, error) {
	out := icsdoc.NewSerializer(g, opts...).SerializeCalendar(doc)
	text, diags := out.Text, out.Diagnostics

	crlf := strings.ReplaceAll(text, "\n", "\r\n") + "\r\n"
	cal, err := ical.NewDecoder(strings.NewReader(crlf)).Decode()
	if err != nil {
		return nil, diags, fmt.Errorf("document is not a valid calendar: %w", err)
	}
	if cal.Props.Get(ical.PropVersion) == nil {
		cal.Props.SetText(ical.PropVersion, "2.0")
	}
	if cal.Props.Get(ical.PropProductID) == nil {
		cal.Props.SetText(ical.PropProductID, ProductID)
	}
	for _, child := range cal.Children {
		if child.Name != ical.CompEvent {
			continue
		}
		if child.Props.Get(ical.PropUID) == nil {
			child.Props.SetText(ical.PropUID, uuid.NewString())
		}
		if child.Props.Get(ical.PropDateTimeStamp) == nil {
			child.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
		}
	}
	return cal, diags, nil
}
