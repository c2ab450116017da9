package dav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"

	"icsjson/internal/icalconv"
	"icsjson/internal/icsdoc"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"
)

// DefaultEndpoint is used when Config.Endpoint is empty.
const DefaultEndpoint = "https://caldav.icloud.com/"

// ErrNoCalendar is returned when no calendar matches the configured name.
var ErrNoCalendar = errors.New("calendar not found")

// Config holds the CalDAV connection settings.
type Config struct {
	Endpoint string
	Username string
	Password string
	Calendar string
}

// basicAuthTransport adds Basic Auth and a User-Agent to each request.
type basicAuthTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "icsjson/1.0")
	return t.Transport.RoundTrip(req)
}

// Client moves documents in and out of one CalDAV calendar.
type Client struct {
	caldavClient *caldav.Client
	logger       *slog.Logger
	grammar      *icsdoc.Grammar
	calendarPath string
}

// Object is one calendar object converted to a document.
type Object struct {
	Path        string
	ETag        string
	Document    *icsdoc.Document
	Diagnostics icsdoc.Diagnostics
}

// NewClient connects to the server and locates the configured calendar.
func NewClient(ctx context.Context, logger *slog.Logger, cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	httpClient := &http.Client{Transport: &basicAuthTransport{
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: http.DefaultTransport,
	}}

	caldavClient, err := caldav.NewClient(httpClient, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}

	c := &Client{
		caldavClient: caldavClient,
		logger:       logger,
		grammar:      icsdoc.DefaultGrammar(),
	}

	logger.Info("Finding calendar", "calendarName", cfg.Calendar, "endpoint", cfg.Endpoint)
	calendarPath, err := c.findCalendar(ctx, cfg.Calendar)
	if err != nil {
		return nil, fmt.Errorf("could not find calendar '%s': %w", cfg.Calendar, err)
	}
	c.calendarPath = calendarPath
	logger.Info("Found calendar", "path", calendarPath)

	return c, nil
}

// Pull fetches every VEVENT object of the calendar as a document. Objects
// that cannot be converted are logged and skipped.
func (c *Client) Pull(ctx context.Context) ([]Object, error) {
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     ical.CompCalendar,
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name:  ical.CompCalendar,
			Comps: []caldav.CompFilter{{Name: ical.CompEvent}},
		},
	}
	objects, err := c.caldavClient.QueryCalendar(ctx, c.calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar: %w", err)
	}
	c.logger.Info("Fetched calendar objects.", "count", len(objects))

	var out []Object
	for _, obj := range objects {
		if obj.Data == nil {
			c.logger.Warn("Calendar object has no data, skipping.", "path", obj.Path)
			continue
		}
		reporter := icsdoc.NewLogReporter(c.logger, "path", obj.Path)
		res, err := icalconv.DocumentFromCalendar(c.grammar, obj.Data, icsdoc.WithReporter(reporter))
		if err != nil {
			c.logger.Error("Failed to convert calendar object", "path", obj.Path, "error", err)
			continue
		}
		out = append(out, Object{Path: obj.Path, ETag: obj.ETag, Document: res.Document, Diagnostics: res.Diagnostics})
	}
	return out, nil
}

// Push stores doc as <name>.ics in the calendar and returns the path used.
// An empty name gets a generated UUID.
func (c *Client) Push(ctx context.Context, name string, doc *icsdoc.Document) (string, error) {
	if name == "" {
		name = uuid.NewString()
	}
	reporter := icsdoc.NewLogReporter(c.logger, "object", name)
	cal, diags, err := icalconv.CalendarFromDocument(c.grammar, doc, icsdoc.WithSerializerReporter(reporter))
	if err != nil {
		return "", err
	}

	objectPath := path.Join(c.calendarPath, name+".ics")
	c.logger.Debug("Uploading calendar object", "path", objectPath, "diagnostics", len(diags))

	obj, err := c.caldavClient.PutCalendarObject(ctx, objectPath, cal)
	if err != nil {
		return "", fmt.Errorf("failed to upload calendar object: %w", err)
	}

	c.logger.Info("Uploaded calendar object", "path", obj.Path, "etag", obj.ETag)
	return obj.Path, nil
}

// findCalendar discovers the user's calendars and returns the path of the one
// with the matching name.
func (c *Client) findCalendar(ctx context.Context, name string) (string, error) {
	principalPath, err := c.caldavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := c.caldavClient.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := c.caldavClient.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if cal.Name == name {
			return cal.Path, nil
		}
	}
	return "", fmt.Errorf("%w: no calendar named '%s'", ErrNoCalendar, name)
}
