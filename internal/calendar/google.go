package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// GoogleConfig selects how the Google Calendar client authenticates. A service
// account credentials file wins over an OAuth client secret plus stored token.
type GoogleConfig struct {
	CalendarID       string
	CredentialsFile  string
	ClientSecretFile string
	TokenFile        string
}

// GoogleInserter creates events through the Calendar v3 API.
type GoogleInserter struct {
	events     *gcal.EventsService
	calendarID string
}

// NewGoogleInserter builds a Calendar client from cfg.
func NewGoogleInserter(ctx context.Context, cfg GoogleConfig) (*GoogleInserter, error) {
	opt, err := clientOption(ctx, cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gcal.NewService(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("unable to create calendar service: %w", err)
	}

	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	return &GoogleInserter{events: svc.Events, calendarID: calendarID}, nil
}

func clientOption(ctx context.Context, cfg GoogleConfig) (option.ClientOption, error) {
	if cfg.CredentialsFile != "" {
		return option.WithCredentialsFile(cfg.CredentialsFile), nil
	}
	if cfg.ClientSecretFile == "" || cfg.TokenFile == "" {
		return nil, fmt.Errorf("calendar: credentials_file or client_secret_file with token_file is required")
	}

	secret, err := os.ReadFile(cfg.ClientSecretFile)
	if err != nil {
		return nil, fmt.Errorf("read client secret: %w", err)
	}
	oauthCfg, err := google.ConfigFromJSON(secret, gcal.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("parse client secret: %w", err)
	}

	tok, err := loadToken(cfg.TokenFile)
	if err != nil {
		return nil, err
	}
	return option.WithTokenSource(oauthCfg.TokenSource(ctx, tok)), nil
}

func loadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token file: %w", err)
	}
	return tok, nil
}

// Insert creates the event and returns its htmlLink.
func (g *GoogleInserter) Insert(ctx context.Context, event *gcal.Event) (string, error) {
	created, err := g.events.Insert(g.calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert calendar event: %w", err)
	}
	return created.HtmlLink, nil
}
