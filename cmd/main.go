package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"icsjson/internal/converter"
	"icsjson/internal/google"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "icsjson",
		Usage: "Convert iCalendar files to JSON documents and back.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "info", EnvVars: []string{"LOG_LEVEL"}, Usage: "debug, info, warn or error"},
		},
		Commands: []*cli.Command{
			convertCommand(),
			watchCommand(),
			pullCommand(),
			pushCommand(),
			authCommand(),
			exportGoogleCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func conversionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "revert", Aliases: []string{"r"}, Usage: "Convert .json documents back to .ics."},
		&cli.BoolFlag{Name: "wrap", Usage: "Wrap reverted output in BEGIN:VCALENDAR/END:VCALENDAR."},
		&cli.BoolFlag{Name: "strict", Usage: "Fail a file when any diagnostic is raised."},
		&cli.IntFlag{Name: "jobs", Aliases: []string{"j"}, Usage: "Concurrent conversions (default: number of CPUs)."},
	}
}

func conversionOptions(c *cli.Context) converter.Options {
	return converter.Options{
		Revert: c.Bool("revert"),
		Wrap:   c.Bool("wrap"),
		Strict: c.Bool("strict"),
		Jobs:   c.Int("jobs"),
	}
}

func convertCommand() *cli.Command {
	return &cli.Command{
		Name:      "convert",
		Usage:     "Convert .ics files to .json (or back with --revert).",
		ArgsUsage: "FILES...",
		Flags: append(conversionFlags(),
			&cli.BoolFlag{Name: "dry-run", Usage: "Convert without writing any output."},
			&cli.StringFlag{Name: "report", Usage: "Write a JSON report of the run to this file."},
		),
		Action: func(c *cli.Context) error {
			logger := setupLogger(c.String("log-level"))
			if c.NArg() == 0 {
				return fmt.Errorf("no input files given")
			}

			opts := conversionOptions(c)
			opts.DryRun = c.Bool("dry-run")
			if opts.DryRun {
				logger.Info("Performing a dry run. No files will be written.")
			}

			report, err := converter.New(logger, opts).Run(c.Context, c.Args().Slice())
			if err != nil {
				return err
			}
			if path := c.String("report"); path != "" {
				if err := report.Save(path); err != nil {
					return fmt.Errorf("failed to save report: %w", err)
				}
				logger.Info("Saved run report.", "file", path)
			}
			if report.Failed() > 0 {
				return fmt.Errorf("%d of %d files failed", report.Failed(), len(report.Files))
			}
			return nil
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Convert files, then convert them again whenever they change.",
		ArgsUsage: "FILES...",
		Flags:     conversionFlags(),
		Action: func(c *cli.Context) error {
			logger := setupLogger(c.String("log-level"))
			if c.NArg() == 0 {
				return fmt.Errorf("no input files given")
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return converter.New(logger, conversionOptions(c)).Watch(ctx, c.Args().Slice())
		},
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account to get an API token.",
		Action: func(c *cli.Context) error {
			logger := setupLogger(c.String("log-level"))
			logger.Info("Starting Google authentication flow.")

			config, err := google.GetOAuthConfigForAuthFlow(os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"))
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.TokenFromWeb(c.Context, config, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			fmt.Print("Enter a name for this account (e.g., 'personal', 'work'): ")
			accountName, _ := reader.ReadString('\n')
			tokenFile := google.TokenFile(strings.TrimSpace(accountName))

			if err := google.SaveToken(tokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "file", tokenFile)
			return nil
		},
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
