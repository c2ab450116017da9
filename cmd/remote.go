package main

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"icsjson/internal/dav"
	"icsjson/internal/google"
	"icsjson/internal/icalconv"
	"icsjson/internal/icsdoc"

	"github.com/urfave/cli/v2"
)

func davFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "endpoint", Value: dav.DefaultEndpoint, EnvVars: []string{"CALDAV_ENDPOINT"}, Usage: "CalDAV server URL."},
		&cli.StringFlag{Name: "username", EnvVars: []string{"CALDAV_USERNAME", "ICLOUD_USERNAME"}, Usage: "CalDAV user name."},
		&cli.StringFlag{Name: "password", EnvVars: []string{"CALDAV_PASSWORD", "ICLOUD_APP_SPECIFIC_PASSWORD"}, Usage: "CalDAV password."},
		&cli.StringFlag{Name: "calendar", EnvVars: []string{"CALDAV_CALENDAR", "ICLOUD_CALENDAR_NAME"}, Required: true, Usage: "Name of the calendar to use."},
	}
}

func davConfig(c *cli.Context) dav.Config {
	return dav.Config{
		Endpoint: c.String("endpoint"),
		Username: c.String("username"),
		Password: c.String("password"),
		Calendar: c.String("calendar"),
	}
}

func writeDocument(dir, name string, doc *icsdoc.Document) (string, error) {
	data, err := icsdoc.MarshalIndent(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", name, err)
	}
	target := filepath.Join(dir, name+".json")
	if err := os.WriteFile(target, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", target, err)
	}
	return target, nil
}

func pullCommand() *cli.Command {
	return &cli.Command{
		Name:  "pull",
		Usage: "Download the events of a CalDAV calendar as JSON documents.",
		Flags: append(davFlags(),
			&cli.StringFlag{Name: "out", Value: ".", Usage: "Directory to write documents to."},
		),
		Action: func(c *cli.Context) error {
			logger := setupLogger(c.String("log-level"))
			client, err := dav.NewClient(c.Context, logger, davConfig(c))
			if err != nil {
				return fmt.Errorf("failed to create caldav client: %w", err)
			}

			objects, err := client.Pull(c.Context)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(c.String("out"), 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}

			var failed int
			for _, obj := range objects {
				name := strings.TrimSuffix(path.Base(obj.Path), path.Ext(obj.Path))
				target, err := writeDocument(c.String("out"), name, obj.Document)
				if err != nil {
					logger.Error("Failed to save calendar object", "path", obj.Path, "error", err)
					failed++
					continue
				}
				logger.Info("Saved calendar object.", "path", obj.Path, "file", target, "diagnostics", len(obj.Diagnostics))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d objects could not be saved", failed, len(objects))
			}
			return nil
		},
	}
}

func pushCommand() *cli.Command {
	return &cli.Command{
		Name:      "push",
		Usage:     "Upload JSON documents to a CalDAV calendar.",
		ArgsUsage: "FILES...",
		Flags:     davFlags(),
		Action: func(c *cli.Context) error {
			logger := setupLogger(c.String("log-level"))
			if c.NArg() == 0 {
				return fmt.Errorf("no input files given")
			}
			client, err := dav.NewClient(c.Context, logger, davConfig(c))
			if err != nil {
				return fmt.Errorf("failed to create caldav client: %w", err)
			}

			var errs []error
			for _, file := range c.Args().Slice() {
				data, err := os.ReadFile(file)
				if err != nil {
					logger.Error("Failed to read document", "file", file, "error", err)
					errs = append(errs, err)
					continue
				}
				doc, err := icsdoc.DecodeJSON(data, nil, icsdoc.WithDecodeReporter(icsdoc.NewLogReporter(logger, "file", file)))
				if err != nil {
					logger.Error("Failed to decode document", "file", file, "error", err)
					errs = append(errs, fmt.Errorf("%s: %w", file, err))
					continue
				}
				name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
				if _, err := client.Push(c.Context, name, doc); err != nil {
					logger.Error("Failed to push document", "file", file, "error", err)
					errs = append(errs, fmt.Errorf("%s: %w", file, err))
				}
			}
			return errors.Join(errs...)
		},
	}
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func exportGoogleCommand() *cli.Command {
	return &cli.Command{
		Name:  "export-google",
		Usage: "Export upcoming Google Calendar events as JSON documents.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Value: ".", Usage: "Directory to write documents to."},
			&cli.IntFlag{Name: "days", Value: 7, Usage: "How many days ahead to export."},
			&cli.StringFlag{Name: "calendars", EnvVars: []string{"GOOGLE_CALENDAR_IDS"}, Usage: "Comma-separated calendar IDs (default: all calendars of each account)."},
		},
		Action: func(c *cli.Context) error {
			logger := setupLogger(c.String("log-level"))

			accounts, err := google.GetTokenAccounts(".")
			if err != nil {
				return fmt.Errorf("could not find any google accounts, did you run auth command? %w", err)
			}
			if len(accounts) == 0 {
				return fmt.Errorf("no google accounts found. Run the 'auth' command first")
			}
			if err := os.MkdirAll(c.String("out"), 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}

			grammar := icsdoc.DefaultGrammar()
			for _, acc := range accounts {
				client, err := google.NewClient(c.Context, logger, os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"), acc)
				if err != nil {
					return fmt.Errorf("failed to create google client for account %s: %w", acc, err)
				}

				var calendarIDs []string
				if ids := c.String("calendars"); ids != "" {
					calendarIDs = strings.Split(ids, ",")
				} else if calendarIDs, err = client.DiscoverCalendars(c.Context); err != nil {
					logger.Error("Could not list calendars", "account", acc, "error", err)
					continue
				}

				for _, calID := range calendarIDs {
					calID = strings.TrimSpace(calID)
					cal, err := client.ExportUpcoming(c.Context, calID, c.Int("days"))
					if err != nil {
						logger.Error("Could not fetch events for a google calendar", "calendarID", calID, "error", err)
						continue
					}
					res, err := icalconv.DocumentFromCalendar(grammar, cal, icsdoc.WithReporter(icsdoc.NewLogReporter(logger, "calendarID", calID)))
					if err != nil {
						logger.Error("Could not convert calendar", "calendarID", calID, "error", err)
						continue
					}
					name := acc + "-" + unsafeName.ReplaceAllString(calID, "_")
					target, err := writeDocument(c.String("out"), name, res.Document)
					if err != nil {
						logger.Error("Could not save calendar", "calendarID", calID, "error", err)
						continue
					}
					logger.Info("Exported calendar.", "calendarID", calID, "file", target)
				}
			}
			return nil
		},
	}
}
