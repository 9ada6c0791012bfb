package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/nhle/inbox-triage/internal/ai"
	"github.com/nhle/inbox-triage/internal/calendar"
	"github.com/nhle/inbox-triage/internal/credential"
	"github.com/nhle/inbox-triage/internal/mailbox"
	"github.com/nhle/inbox-triage/internal/model"
	"github.com/nhle/inbox-triage/internal/store"
	"github.com/nhle/inbox-triage/internal/triage"
)

// Version is set via -ldflags at build time.
var Version = "dev"

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newApp creates the CLI application with all commands.
func newApp() *cli.App {
	return &cli.App{
		Name:    "inbox-triage",
		Usage:   "Triage a mailbox with model-assisted classification",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to the YAML config file",
				Value: model.DefaultConfigPath(),
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "Path to the triage database (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable verbose development logging",
			},
		},
		Commands: []*cli.Command{
			triageCmd(),
			historyCmd(),
			loginCmd(),
			logoutCmd(),
		},
	}
}

// newLogger builds the process logger. Production config by default,
// human-readable development output behind --debug.
func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// loadConfig reads the config file and applies the --db override.
func loadConfig(c *cli.Context) (*model.AppConfig, error) {
	cfg, err := model.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if dbPath := c.String("db"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, nil
}

// triageCmd runs one full triage pass over the mailbox.
func triageCmd() *cli.Command {
	return &cli.Command{
		Name:  "triage",
		Usage: "Run one triage pass: ingest, classify, label, schedule, validate",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			log, err := newLogger(c.Bool("debug"))
			if err != nil {
				return fmt.Errorf("initializing logger: %w", err)
			}
			defer log.Sync()

			s, err := store.NewSQLiteStore(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("opening triage store: %w", err)
			}
			defer s.Close()

			mailboxPassword, err := credential.Get(credential.KeyMailboxPassword)
			if err != nil {
				return fmt.Errorf(
					"mailbox password not found, run 'inbox-triage login' first: %w", err,
				)
			}
			apiKey, err := credential.Get(credential.KeyModelAPIKey)
			if err != nil {
				return fmt.Errorf(
					"model API key not found, run 'inbox-triage login' first: %w", err,
				)
			}
			// The calendar token is optional until a calendar service
			// is configured.
			calendarToken, _ := credential.Get(credential.KeyCalendarToken)

			mbox := mailbox.NewIMAPMailbox(cfg.Mailbox, mailboxPassword)
			cal := calendar.NewClient(cfg.Calendar.BaseURL, calendarToken)
			llm := ai.New(cfg.AI, apiKey)

			pipeline := triage.New(s, mbox, cal, llm, cfg.Triage, log)

			result, err := pipeline.Run(c.Context)
			if err != nil {
				return err
			}

			fmt.Printf("Triage run %s completed: %d message(s) ingested.\n",
				result.RunID, result.Ingested)
			for _, note := range result.Notes {
				fmt.Println(note)
			}

			if len(result.StageErrors) > 0 {
				fmt.Printf("%d stage(s) halted early; see notes above.\n",
					len(result.StageErrors))
			}
			return nil
		},
	}
}

// historyCmd prints the most recently triaged records.
func historyCmd() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recently triaged messages",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of records to show",
				Value: 20,
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			s, err := store.NewSQLiteStore(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("opening triage store: %w", err)
			}
			defer s.Close()

			records, err := s.GetRecentCategorized(c.Context, c.Int("limit"))
			if err != nil {
				return err
			}

			if len(records) == 0 {
				fmt.Println("No triaged messages yet.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MESSAGE\tCATEGORY\tCONFIDENCE\tSCHEDULED\tSUBJECT")
			for _, rec := range records {
				scheduled := ""
				if rec.ScheduledAt != nil {
					scheduled = rec.ScheduledAt.Format("2006-01-02 15:04")
				}
				confidence := ""
				if rec.Confidence != nil {
					confidence = fmt.Sprintf("%.2f", *rec.Confidence)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					rec.MessageID, rec.CurrentCategory(),
					confidence, scheduled, rec.Subject,
				)
			}
			return w.Flush()
		},
	}
}

// credentialKeys maps CLI credential names to keyring keys.
var credentialKeys = map[string]string{
	"mailbox":  credential.KeyMailboxPassword,
	"model":    credential.KeyModelAPIKey,
	"calendar": credential.KeyCalendarToken,
}

// credentialKey resolves a CLI credential name, erroring on unknown names
// before any keyring access happens.
func credentialKey(which string) (string, error) {
	key, ok := credentialKeys[which]
	if !ok {
		return "", fmt.Errorf(
			"unknown credential %q: expected mailbox, model, or calendar",
			which,
		)
	}
	return key, nil
}

// loginCmd stores collaborator secrets in the system keyring.
func loginCmd() *cli.Command {
	return &cli.Command{
		Name:      "login",
		Usage:     "Store a credential in the system keyring",
		ArgsUsage: "<mailbox|model|calendar>",
		Action: func(c *cli.Context) error {
			which := c.Args().First()
			key, err := credentialKey(which)
			if err != nil {
				return err
			}

			fmt.Printf("Enter %s credential: ", which)
			reader := bufio.NewReader(os.Stdin)
			value, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("reading credential: %w", err)
			}
			value = strings.TrimSpace(value)
			if value == "" {
				return fmt.Errorf("credential must not be empty")
			}

			if err := credential.Set(key, value); err != nil {
				return err
			}

			fmt.Printf("Stored %s credential.\n", which)
			return nil
		},
	}
}

// logoutCmd removes a stored credential from the system keyring.
func logoutCmd() *cli.Command {
	return &cli.Command{
		Name:      "logout",
		Usage:     "Remove a credential from the system keyring",
		ArgsUsage: "<mailbox|model|calendar>",
		Action: func(c *cli.Context) error {
			which := c.Args().First()
			key, err := credentialKey(which)
			if err != nil {
				return err
			}

			if err := credential.Delete(key); err != nil {
				return err
			}

			fmt.Printf("Removed %s credential.\n", which)
			return nil
		},
	}
}
