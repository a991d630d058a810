// Package googleauth turns stored OAuth material into token sources for
// the Google API clients.
package googleauth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// TokenSource builds an auto-refreshing token source from an OAuth client
// secret file and a previously stored user token. The token file is the
// JSON produced by an interactive consent flow; rerun one if it is
// missing or revoked.
func TokenSource(ctx context.Context, credentialsFile, tokenFile string, scopes ...string) (oauth2.TokenSource, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client secret %s: %w", credentialsFile, err)
	}
	cfg, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse oauth client secret %s: %w", credentialsFile, err)
	}
	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth token %s (complete a consent flow and store its token there): %w", tokenFile, err)
	}
	return cfg.TokenSource(ctx, tok), nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return tok, nil
}
