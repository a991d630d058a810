package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crostore.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "stderr", cfg.Log.Output)
	assert.Equal(t, "credentials.json", cfg.Google.CredentialsFile)
	assert.Equal(t, "token.json", cfg.Google.TokenFile)
	assert.Equal(t, "me", cfg.Gmail.UserID)
	assert.Equal(t, "crostored", cfg.Gmail.HandledLabel)
	assert.Equal(t, float64(4), cfg.Gmail.RequestsPerSecond)
	assert.Equal(t, "A", cfg.Sheets.IDColumn)
	assert.Equal(t, map[string]string{"mercari": "B", "yahoo_auction": "C"}, cfg.Sheets.Columns)
	assert.Equal(t, float64(1), cfg.Sheets.RequestsPerSecond)
	assert.True(t, cfg.Browser.Headless)
	assert.False(t, cfg.Browser.NoSandbox)
	assert.Equal(t, 30*time.Second, cfg.Browser.PageLoadTimeout)
	assert.Empty(t, cfg.Run.Platforms)
	assert.Equal(t, 10*time.Second, cfg.Run.OpTimeout)
	assert.Zero(t, cfg.Run.Limit)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
[log]
level = "debug"
format = "json"

[google]
credentials_file = "/etc/crostore/credentials.json"
token_file = "/etc/crostore/token.json"

[gmail]
handled_label = "handled"
requests_per_second = 2.5

[sheets]
spreadsheet_id = "1aBcDeFg"
sheet_name = "listings"
id_column = "a"
requests_per_second = 0.5

[sheets.columns]
mercari = "b"
yahoo_auction = "c"

[browser]
user_data_dir = "/home/seller/.crostore/chrome"
headless = false
no_sandbox = true
page_load_timeout = "45s"

[run]
platforms = ["mercari"]
op_timeout = "5s"
limit = 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "/etc/crostore/credentials.json", cfg.Google.CredentialsFile)
	assert.Equal(t, "handled", cfg.Gmail.HandledLabel)
	assert.Equal(t, 2.5, cfg.Gmail.RequestsPerSecond)
	assert.Equal(t, "1aBcDeFg", cfg.Sheets.SpreadsheetID)
	assert.Equal(t, "listings", cfg.Sheets.SheetName)
	assert.Equal(t, 0.5, cfg.Sheets.RequestsPerSecond)
	assert.Equal(t, "/home/seller/.crostore/chrome", cfg.Browser.UserDataDir)
	assert.False(t, cfg.Browser.Headless)
	assert.True(t, cfg.Browser.NoSandbox)
	assert.Equal(t, 45*time.Second, cfg.Browser.PageLoadTimeout)
	assert.Equal(t, []string{"mercari"}, cfg.Run.Platforms)
	assert.Equal(t, 5*time.Second, cfg.Run.OpTimeout)
	assert.Equal(t, 3, cfg.Run.Limit)

	t.Run("column references are normalized to upper case", func(t *testing.T) {
		assert.Equal(t, "A", cfg.Sheets.IDColumn)
		assert.Equal(t, map[string]string{"mercari": "B", "yahoo_auction": "C"}, cfg.Sheets.Columns)
	})
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CROSTORE_GMAIL_HANDLED_LABEL", "done")
	t.Setenv("CROSTORE_SHEETS_SPREADSHEET_ID", "fromenv")

	cfg, err := Load(writeConfigFile(t, `
[sheets]
spreadsheet_id = "fromfile"
`))
	require.NoError(t, err)

	assert.Equal(t, "done", cfg.Gmail.HandledLabel)
	assert.Equal(t, "fromenv", cfg.Sheets.SpreadsheetID)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "id column must be a column reference",
			content: `
[sheets]
id_column = "A1"
`,
			wantErr: "not a column reference",
		},
		{
			name: "platform columns must be column references",
			content: `
[sheets.columns]
mercari = "2"
yahoo_auction = "C"
`,
			wantErr: "not a column reference",
		},
		{
			name: "platform columns cannot collide with the id column",
			content: `
[sheets]
id_column = "B"

[sheets.columns]
mercari = "B"
yahoo_auction = "C"
`,
			wantErr: "already held",
		},
		{
			name: "rate limit must be positive",
			content: `
[gmail]
requests_per_second = -1.0
`,
			wantErr: "must be positive",
		},
		{
			name: "limit cannot be negative",
			content: `
[run]
limit = -1
`,
			wantErr: "cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfigFile(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
