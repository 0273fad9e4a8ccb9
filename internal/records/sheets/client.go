// Package sheets reads the record store tables from a Google Sheets
// spreadsheet, one tab per table with a header row.
package sheets

import (
	"context"
	"time"

	sheetsv4 "google.golang.org/api/sheets/v4"

	"github.com/tomohito-hyodo01/jujo-discord-app/internal/gauth"
)

type Client struct {
	srv           *sheetsv4.Service
	spreadsheetID string
	loc           *time.Location
}

func New(ctx context.Context, creds gauth.Credentials, spreadsheetID string, loc *time.Location) (*Client, error) {
	opts, err := gauth.ClientOptions(creds, sheetsv4.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, err
	}
	srv, err := sheetsv4.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	return &Client{srv: srv, spreadsheetID: spreadsheetID, loc: loc}, nil
}

func (c *Client) Close() error { return nil }
