package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"icsjson/internal/icalconv"

	"github.com/emersion/go-ical"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const (
	credentialsFile = "credentials.json"
)

// CalendarClient provides a client for interacting with the Google Calendar API.
type CalendarClient struct {
	service *calendar.Service
	logger  *slog.Logger
}

// NewClient creates a new Google Calendar client.
// It handles loading credentials and setting up an authenticated HTTP client.
// Each account has its own token file, token-<accountName>.json.
func NewClient(ctx context.Context, logger *slog.Logger, clientID, clientSecret, accountName string) (*CalendarClient, error) {
	config, err := getOAuthConfig(clientID, clientSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth config: %w", err)
	}

	tokenFile := TokenFile(accountName)
	token, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("could not load token for account %s: %w. Please run the 'auth' command first", accountName, err)
	}

	client := config.Client(ctx, token)
	service, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &CalendarClient{service: service, logger: logger}, nil
}

// ExportUpcoming fetches the next days of events from calendarID as a
// VCALENDAR.
func (c *CalendarClient) ExportUpcoming(ctx context.Context, calendarID string, days int) (*ical.Calendar, error) {
	c.logger.Debug("Fetching upcoming events", "calendarID", calendarID, "days", days)
	now := time.Now().UTC()
	tmax := now.Add(time.Duration(days) * 24 * time.Hour).Format(time.RFC3339)
	tmin := now.Format(time.RFC3339)

	events, err := c.service.Events.List(calendarID).
		Context(ctx).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(tmin).
		TimeMax(tmax).
		OrderBy("startTime").
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve events: %w", err)
	}

	c.logger.Info("Successfully fetched events from Google Calendar", "count", len(events.Items), "calendarID", calendarID)
	return toCalendar(events.Items, calendarID), nil
}

// toCalendar converts Google Calendar events into VEVENT components.
func toCalendar(items []*calendar.Event, source string) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, icalconv.ProductID)
	cal.Props.SetText("X-WR-CALNAME", source)

	stamp := time.Now().UTC()
	for _, item := range items {
		// All-day events carry a Date instead of a DateTime.
		if item.Start == nil || item.Start.DateTime == "" {
			continue
		}
		cal.Children = append(cal.Children, toEvent(item, stamp))
	}
	return cal
}

func toEvent(item *calendar.Event, stamp time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	uid := item.ICalUID
	if uid == "" {
		uid = item.Id
	}
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetText(ical.PropSummary, item.Summary)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp)

	if start, err := time.Parse(time.RFC3339, item.Start.DateTime); err == nil {
		ve.Props.SetDateTime(ical.PropDateTimeStart, start.UTC())
	}
	if item.End != nil {
		if end, err := time.Parse(time.RFC3339, item.End.DateTime); err == nil {
			ve.Props.SetDateTime(ical.PropDateTimeEnd, end.UTC())
		}
	}
	if item.Description != "" {
		ve.Props.SetText(ical.PropDescription, item.Description)
	}
	if item.Location != "" {
		ve.Props.SetText(ical.PropLocation, item.Location)
	}
	if item.Organizer != nil && item.Organizer.Email != "" {
		p := ical.NewProp(ical.PropOrganizer)
		p.Value = "mailto:" + item.Organizer.Email
		if item.Organizer.DisplayName != "" {
			p.Params.Set(ical.ParamCommonName, item.Organizer.DisplayName)
		}
		ve.Props.Add(p)
	}
	for _, a := range item.Attendees {
		p := ical.NewProp(ical.PropAttendee)
		p.Value = "mailto:" + a.Email
		if a.DisplayName != "" {
			p.Params.Set(ical.ParamCommonName, a.DisplayName)
		}
		if a.ResponseStatus != "" {
			p.Params.Set(ical.ParamParticipationStatus, partStat(a.ResponseStatus))
		}
		if a.Optional {
			p.Params.Set(ical.ParamRole, "OPT-PARTICIPANT")
		} else {
			p.Params.Set(ical.ParamRole, "REQ-PARTICIPANT")
		}
		ve.Props.Add(p)
	}
	return ve
}

// partStat maps a Google response status to an iCalendar PARTSTAT.
func partStat(status string) string {
	switch status {
	case "accepted":
		return "ACCEPTED"
	case "declined":
		return "DECLINED"
	case "tentative":
		return "TENTATIVE"
	default:
		return "NEEDS-ACTION"
	}
}

// GetOAuthConfigForAuthFlow is used by the auth command to get the config for the web flow.
func GetOAuthConfigForAuthFlow(clientID, clientSecret string) (*oauth2.Config, error) {
	return getOAuthConfig(clientID, clientSecret)
}

// getOAuthConfig reads credentials and returns an OAuth2 config.
// It prioritizes environment variables over a local credentials.json file.
func getOAuthConfig(clientID, clientSecret string) (*oauth2.Config, error) {
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
			Scopes:       []string{calendar.CalendarReadonlyScope},
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		if _, ok := err.(*fs.PathError); ok {
			return nil, fmt.Errorf("credentials.json not found. Please provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars or place credentials.json in the working directory")
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = "urn:ietf:wg:oauth:2.0:oob"
	return config, nil
}

// TokenFromWeb is called by the auth flow to retrieve a token.
func TokenFromWeb(ctx context.Context, config *oauth2.Config, authCode string) (*oauth2.Token, error) {
	return config.Exchange(ctx, authCode)
}

// TokenFile returns the token file name for an account.
func TokenFile(accountName string) string {
	return "token-" + accountName + ".json"
}

// SaveToken saves a token to a file path.
func SaveToken(path string, token *oauth2.Token) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// tokenFromFile retrieves a token from a local file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// DiscoverCalendars finds all calendars associated with the authenticated account.
func (c *CalendarClient) DiscoverCalendars(ctx context.Context) ([]string, error) {
	list, err := c.service.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	var calendarIDs []string
	for _, item := range list.Items {
		calendarIDs = append(calendarIDs, item.Id)
	}
	return calendarIDs, nil
}

// GetTokenAccounts lists the accounts that have a token file in dir.
func GetTokenAccounts(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var accounts []string
	for _, file := range files {
		if strings.HasPrefix(file.Name(), "token-") && strings.HasSuffix(file.Name(), ".json") {
			accountName := strings.TrimSuffix(strings.TrimPrefix(file.Name(), "token-"), ".json")
			accounts = append(accounts, accountName)
		}
	}
	return accounts, nil
}
