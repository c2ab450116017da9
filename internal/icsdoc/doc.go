// Package icsdoc converts iCalendar-style text into ordered structured
// documents and back.
//
// A Parser unfolds continuation lines and tracks BEGIN/END sections on an
// explicit stack. A Serializer walks a Document depth-first and folds long
// lines at 75 octets. Neither reports malformed content as an error: every
// problem becomes a Diagnostic and the conversion continues.
//
//	res := icsdoc.NewParser(icsdoc.DefaultGrammar()).Parse(text)
//	if err := res.Diagnostics.Err(); err != nil {
//	    // lenient callers may only log this
//	}
//	out := icsdoc.NewSerializer(icsdoc.DefaultGrammar()).Serialize(res.Document)
package icsdoc
