package dav

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"icsjson/internal/icsdoc"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer serves backend over CalDAV and returns a connected client for
// the calendar named "Work".
func newTestServer(t *testing.T, backend *memoryBackend) *Client {
	t.Helper()
	srv := httptest.NewServer(&caldav.Handler{Backend: backend})
	t.Cleanup(srv.Close)

	client, err := NewClient(context.Background(), testLogger(), Config{
		Endpoint: srv.URL + "/",
		Username: "alice",
		Password: "secret",
		Calendar: "Work",
	})
	require.NoError(t, err)
	return client
}

func eventCalendar(uid, summary string) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//test//EN")

	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetText(ical.PropSummary, summary)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	ve.Props.SetDateTime(ical.PropDateTimeStart, time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))
	cal.Children = append(cal.Children, ve)
	return cal
}

func TestBasicAuthTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "alice" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, r.Header.Get("User-Agent"))
	}))
	defer srv.Close()

	client := &http.Client{Transport: &basicAuthTransport{
		Username:  "alice",
		Password:  "secret",
		Transport: http.DefaultTransport,
	}}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "icsjson/1.0", string(body))
}

func TestNewClient_DiscoveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(context.Background(), testLogger(), Config{Endpoint: srv.URL, Calendar: "Work"})
	assert.Error(t, err)
}

func TestNewClient_UnknownCalendar(t *testing.T) {
	srv := httptest.NewServer(&caldav.Handler{Backend: newMemoryBackend("Home")})
	defer srv.Close()

	_, err := NewClient(context.Background(), testLogger(), Config{Endpoint: srv.URL + "/", Calendar: "Work"})
	assert.ErrorIs(t, err, ErrNoCalendar)
}

func TestPull(t *testing.T) {
	backend := newMemoryBackend("Home", "Work")
	_, err := backend.PutCalendarObject(context.Background(), testHomeSet+"work/standup.ics", eventCalendar("standup-1", "Standup"), nil)
	require.NoError(t, err)
	_, err = backend.PutCalendarObject(context.Background(), testHomeSet+"home/dentist.ics", eventCalendar("dentist-1", "Dentist"), nil)
	require.NoError(t, err)

	client := newTestServer(t, backend)
	assert.Equal(t, testHomeSet+"work/", client.calendarPath)

	objects, err := client.Pull(context.Background())
	require.NoError(t, err)
	require.Len(t, objects, 1, "only the configured calendar is queried")

	obj := objects[0]
	assert.Equal(t, testHomeSet+"work/standup.ics", obj.Path)
	assert.NotEmpty(t, obj.ETag)
	assert.Empty(t, obj.Diagnostics)

	events, ok := obj.Document.Sections(ical.CompEvent)
	require.True(t, ok, "pulled documents keep their VEVENT section")
	require.Len(t, events, 1)
	summary, _ := events[0].Scalar(ical.PropSummary)
	assert.Equal(t, "Standup", summary)
}

func TestPush_GeneratesName(t *testing.T) {
	backend := newMemoryBackend("Work")
	client := newTestServer(t, backend)

	doc := icsdoc.NewDocument()
	doc.SetScalar("SUMMARY", "Review")
	doc.SetScalar("DTSTART", "20240301T090000Z")

	objectPath, err := client.Push(context.Background(), "", doc)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(objectPath, testHomeSet+"work/"), objectPath)
	assert.True(t, strings.HasSuffix(objectPath, ".ics"), objectPath)
	assert.Len(t, strings.TrimSuffix(strings.TrimPrefix(objectPath, testHomeSet+"work/"), ".ics"), 36, "a UUID name")

	stored, ok := backend.object(objectPath)
	require.True(t, ok)
	require.Len(t, stored.Data.Children, 1)
	event := stored.Data.Children[0]
	assert.Equal(t, ical.CompEvent, event.Name)
	assert.Equal(t, "Review", event.Props.Get(ical.PropSummary).Value)
	assert.NotEmpty(t, event.Props.Get(ical.PropUID).Value)
}

func TestPush_NamedObject(t *testing.T) {
	backend := newMemoryBackend("Work")
	client := newTestServer(t, backend)

	doc := icsdoc.NewDocument()
	doc.SetScalar("UID", "retro-1")
	doc.SetScalar("SUMMARY", "Retro")
	doc.SetScalar("DTSTART", "20240301T090000Z")

	objectPath, err := client.Push(context.Background(), "retro", doc)
	require.NoError(t, err)
	assert.Equal(t, testHomeSet+"work/retro.ics", objectPath)

	objects, err := client.Pull(context.Background())
	require.NoError(t, err)
	require.Len(t, objects, 1)
	events, _ := objects[0].Document.Sections(ical.CompEvent)
	require.Len(t, events, 1)
	uid, _ := events[0].Scalar(ical.PropUID)
	assert.Equal(t, "retro-1", uid)
}
