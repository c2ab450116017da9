package icsdoc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalJSON_PreservesOrder(t *testing.T) {
	alarm := NewDocument()
	alarm.SetScalar("ACTION", "DISPLAY")

	doc := NewDocument()
	doc.SetScalar("SUMMARY", "<b>lunch</b>")
	doc.Set("ATTENDEE", ParamList{{{Name: "ROLE", Value: "REQ"}, {Name: "CN", Value: "A"}}})
	doc.Set("VALARM", Sections{alarm})
	doc.SetScalar("DTSTART", "20240101T120000Z")

	raw, err := doc.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t,
		`{"SUMMARY":"<b>lunch</b>","ATTENDEE":[{"ROLE":"REQ","CN":"A"}],"VALARM":[{"ACTION":"DISPLAY"}],"DTSTART":"20240101T120000Z"}`,
		string(raw))
}

func TestMarshalIndent(t *testing.T) {
	doc := NewDocument()
	doc.SetScalar("SUMMARY", "Test")

	raw, err := MarshalIndent(doc)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"SUMMARY\": \"Test\"\n}", string(raw))
}

func TestDecodeJSON(t *testing.T) {
	input := `{
  "VERSION": "2.0",
  "SEQUENCE": 3,
  "X-FLAG": true,
  "X-NOTHING": null,
  "ATTENDEE": [{"ROLE": "REQ"}, {"ROLE": "OPT", "RSVP": "TRUE"}],
  "VEVENT": [{"SUMMARY": "flat but a component"}],
  "X-SECTION": [{"NESTED": [{"A": "1"}]}],
  "X-SINGLE": {"A": "1"}
}`
	doc, err := DecodeJSON([]byte(input), DefaultGrammar())
	require.NoError(t, err)

	assert.Equal(t, []string{"VERSION", "SEQUENCE", "X-FLAG", "X-NOTHING", "ATTENDEE", "VEVENT", "X-SECTION", "X-SINGLE"}, doc.Keys())

	seq, _ := doc.Scalar("SEQUENCE")
	assert.Equal(t, "3", seq)
	flag, _ := doc.Scalar("X-FLAG")
	assert.Equal(t, "true", flag)
	nothing, ok := doc.Scalar("X-NOTHING")
	assert.True(t, ok)
	assert.Equal(t, "", nothing)

	attendees, ok := doc.Params("ATTENDEE")
	require.True(t, ok)
	assert.Equal(t, ParamList{
		{{Name: "ROLE", Value: "REQ"}},
		{{Name: "ROLE", Value: "OPT"}, {Name: "RSVP", Value: "TRUE"}},
	}, attendees)

	events, ok := doc.Sections("VEVENT")
	require.True(t, ok)
	assert.Len(t, events, 1)

	sections, ok := doc.Sections("X-SECTION")
	require.True(t, ok)
	require.Len(t, sections, 1)
	_, ok = sections[0].Params("NESTED")
	assert.True(t, ok, "flat elements under a non-component key are params")

	single, ok := doc.Sections("X-SINGLE")
	require.True(t, ok)
	assert.Len(t, single, 1)
}

func TestDecodeJSON_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "top level array", input: `[{"A":"1"}]`},
		{name: "array of strings", input: `{"A":["x"]}`},
		{name: "truncated", input: `{"A":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeJSON([]byte(tt.input), nil)
			assert.Error(t, err)
		})
	}

	_, err := DecodeJSON([]byte(`"x"`), nil)
	assert.ErrorIs(t, err, ErrNotObject)
}

func TestUnmarshalJSON(t *testing.T) {
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(`{"B":"2","A":"1"}`), &doc))
	assert.Equal(t, []string{"B", "A"}, doc.Keys())
}

func TestDecodeJSON_AmbiguousArrays(t *testing.T) {
	input := `{
  "ATTENDEE": [{"CN": "Ann"}],
  "VLOCATION": [{"NAME": "Room"}],
  "X-ROOM": [{"NAME": "Annex"}],
  "VEVENT": [{"X-SPOT": [{"A": "1"}]}]
}`
	var c Collector
	doc, err := DecodeJSON([]byte(input), DefaultGrammar(), WithDecodeReporter(&c))
	require.NoError(t, err)

	_, ok := doc.Params("ATTENDEE")
	assert.True(t, ok)
	_, ok = doc.Sections("VLOCATION")
	assert.True(t, ok, "VLOCATION is a component")
	_, ok = doc.Params("X-ROOM")
	assert.True(t, ok, "unknown flat arrays still decode as parameter lists")

	require.Len(t, c.Diagnostics, 2)
	assert.Equal(t, DiagAmbiguous, c.Diagnostics[0].Kind)
	assert.Equal(t, "X-ROOM", c.Diagnostics[0].Text)
	assert.Equal(t, "VEVENT.X-SPOT", c.Diagnostics[1].Text)
}
