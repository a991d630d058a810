// Package config loads the tool configuration from a TOML file and
// CROSTORE_-prefixed environment variables.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all tool configuration.
type Config struct {
	Log     LogConfig
	Google  GoogleConfig
	Gmail   GmailConfig
	Sheets  SheetsConfig
	Browser BrowserConfig
	Run     RunConfig
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	Output     string // stdout, stderr, or a file path
	TimeFormat string
}

// GoogleConfig holds the OAuth client files shared by the Gmail and
// Sheets services.
type GoogleConfig struct {
	CredentialsFile string // OAuth client secret JSON
	TokenFile       string // cached user token JSON
}

// GmailConfig holds the sale-notification mailbox settings.
type GmailConfig struct {
	UserID            string  // mailbox owner, "me" for the authorized user
	HandledLabel      string  // label marking already-processed notifications
	RequestsPerSecond float64 // client-side API politeness limit
}

// SheetsConfig holds the mapping-spreadsheet settings. Columns maps a
// platform code to the column carrying that platform's item ids.
type SheetsConfig struct {
	SpreadsheetID     string
	SheetName         string
	IDColumn          string
	Columns           map[string]string
	RequestsPerSecond float64
}

// BrowserConfig holds the Chrome session settings.
type BrowserConfig struct {
	RemoteURL       string // attach to a running Chrome instead of launching one
	UserDataDir     string // profile directory carrying the marketplace logins
	Headless        bool
	NoSandbox       bool
	PageLoadTimeout time.Duration
	ScreenshotDir   string // where cancellation-failure screenshots go, empty disables
}

// RunConfig holds per-run knobs.
type RunConfig struct {
	Platforms []string      // platform codes to reconcile, empty means all
	OpTimeout time.Duration // per browser operation: probes, clicks, waits
	Limit     int           // stop after this many cancellations, 0 is unlimited
}

// columnPattern matches a spreadsheet column reference like "A" or "AB".
var columnPattern = regexp.MustCompile(`^[A-Z]{1,3}$`)

// Load reads configuration from path, or if path is empty searches
// crostore.toml in the working directory and ~/.crostore. Priority
// (highest to lowest): CROSTORE_-prefixed environment variables, the
// config file, built-in defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		v.SetConfigName("crostore")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.crostore")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
			// No config file is fine, defaults and env vars carry it.
		}
	}

	v.SetEnvPrefix("CROSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans cannot be defaulted after the fact, an unset key and an
	// explicit false read the same.
	v.SetDefault("browser.headless", true)

	cfg := &Config{
		Log: LogConfig{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Output:     v.GetString("log.output"),
			TimeFormat: v.GetString("log.time_format"),
		},
		Google: GoogleConfig{
			CredentialsFile: v.GetString("google.credentials_file"),
			TokenFile:       v.GetString("google.token_file"),
		},
		Gmail: GmailConfig{
			UserID:            v.GetString("gmail.user_id"),
			HandledLabel:      v.GetString("gmail.handled_label"),
			RequestsPerSecond: v.GetFloat64("gmail.requests_per_second"),
		},
		Sheets: SheetsConfig{
			SpreadsheetID:     v.GetString("sheets.spreadsheet_id"),
			SheetName:         v.GetString("sheets.sheet_name"),
			IDColumn:          v.GetString("sheets.id_column"),
			Columns:           v.GetStringMapString("sheets.columns"),
			RequestsPerSecond: v.GetFloat64("sheets.requests_per_second"),
		},
		Browser: BrowserConfig{
			RemoteURL:       v.GetString("browser.remote_url"),
			UserDataDir:     v.GetString("browser.user_data_dir"),
			Headless:        v.GetBool("browser.headless"),
			NoSandbox:       v.GetBool("browser.no_sandbox"),
			PageLoadTimeout: v.GetDuration("browser.page_load_timeout"),
			ScreenshotDir:   v.GetString("browser.screenshot_dir"),
		},
		Run: RunConfig{
			Platforms: v.GetStringSlice("run.platforms"),
			OpTimeout: v.GetDuration("run.op_timeout"),
			Limit:     v.GetInt("run.limit"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields.
func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
	}
	if cfg.Log.TimeFormat == "" {
		cfg.Log.TimeFormat = "2006-01-02T15:04:05.000Z07:00"
	}
	if cfg.Google.CredentialsFile == "" {
		cfg.Google.CredentialsFile = "credentials.json"
	}
	if cfg.Google.TokenFile == "" {
		cfg.Google.TokenFile = "token.json"
	}
	if cfg.Gmail.UserID == "" {
		cfg.Gmail.UserID = "me"
	}
	if cfg.Gmail.HandledLabel == "" {
		cfg.Gmail.HandledLabel = "crostored"
	}
	if cfg.Gmail.RequestsPerSecond == 0 {
		cfg.Gmail.RequestsPerSecond = 4
	}
	if cfg.Sheets.IDColumn == "" {
		cfg.Sheets.IDColumn = "A"
	}
	if len(cfg.Sheets.Columns) == 0 {
		cfg.Sheets.Columns = map[string]string{
			"mercari":       "B",
			"yahoo_auction": "C",
		}
	}
	cfg.Sheets.IDColumn = strings.ToUpper(cfg.Sheets.IDColumn)
	for code, column := range cfg.Sheets.Columns {
		cfg.Sheets.Columns[code] = strings.ToUpper(column)
	}
	if cfg.Sheets.RequestsPerSecond == 0 {
		cfg.Sheets.RequestsPerSecond = 1
	}
	if cfg.Browser.PageLoadTimeout == 0 {
		cfg.Browser.PageLoadTimeout = 30 * time.Second
	}
	if cfg.Run.OpTimeout == 0 {
		cfg.Run.OpTimeout = 10 * time.Second
	}
}

// validate performs validation on the configuration.
func (c *Config) validate() error {
	if !columnPattern.MatchString(c.Sheets.IDColumn) {
		return fmt.Errorf("sheets.id_column %q is not a column reference", c.Sheets.IDColumn)
	}
	used := map[string]string{c.Sheets.IDColumn: "sheets.id_column"}
	for code, column := range c.Sheets.Columns {
		if !columnPattern.MatchString(column) {
			return fmt.Errorf("sheets.columns.%s %q is not a column reference", code, column)
		}
		if holder, ok := used[column]; ok {
			return fmt.Errorf("sheets.columns.%s reuses column %s already held by %s", code, column, holder)
		}
		used[column] = "sheets.columns." + code
	}
	if c.Gmail.RequestsPerSecond <= 0 {
		return fmt.Errorf("gmail.requests_per_second must be positive")
	}
	if c.Sheets.RequestsPerSecond <= 0 {
		return fmt.Errorf("sheets.requests_per_second must be positive")
	}
	if c.Browser.PageLoadTimeout <= 0 {
		return fmt.Errorf("browser.page_load_timeout must be positive")
	}
	if c.Run.OpTimeout <= 0 {
		return fmt.Errorf("run.op_timeout must be positive")
	}
	if c.Run.Limit < 0 {
		return fmt.Errorf("run.limit cannot be negative")
	}
	return nil
}
