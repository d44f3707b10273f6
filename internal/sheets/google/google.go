// Package google mirrors the ledger to a Google Spreadsheet.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"uscite/internal/core"
	ports "uscite/internal/sheets"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	expensesSheet string
	summarySheet  string
}

// Ensure interface conformance
var (
	_ ports.MirrorWriter  = (*Client)(nil)
	_ ports.MirrorDeleter = (*Client)(nil)
	_ ports.SummaryWriter = (*Client)(nil)
	_ ports.MirrorLister  = (*Client)(nil)
)

// Options carries everything needed to reach the spreadsheet. OAuth client
// and token may be given inline or as file paths; inline wins.
type Options struct {
	SpreadsheetID string
	ExpensesSheet string
	SummarySheet  string

	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenJSON  string
	OAuthTokenFile  string
}

// New creates a Sheets client authenticated with the OAuth token produced by
// cmd/oauth-init.
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.SpreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if opts.ExpensesSheet == "" {
		opts.ExpensesSheet = "Uscite"
	}
	if opts.SummarySheet == "" {
		opts.SummarySheet = "Riepiloghi"
	}

	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		expensesSheet: opts.ExpensesSheet,
		summarySheet:  opts.SummarySheet,
	}, nil
}

func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	clientJSON, err := loadBytes(opts.OAuthClientJSON, opts.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("load oauth client: %w", err)
	}
	if clientJSON == nil {
		return nil, errors.New("missing OAuth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")
	}
	tokenJSON, err := loadBytes(opts.OAuthTokenJSON, opts.OAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("load oauth token: %w", err)
	}
	if tokenJSON == nil {
		return nil, errors.New("missing OAuth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE, see cmd/oauth-init)")
	}

	cfg, err := googleoauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(tokenJSON, &token); err != nil {
		return nil, fmt.Errorf("decode oauth token: %w", err)
	}

	httpClient := cfg.Client(ctx, &token)
	service, err := gsheet.NewService(ctx, goption.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created")
	return service, nil
}

func loadBytes(inline, file string) ([]byte, error) {
	if inline != "" {
		return []byte(inline), nil
	}
	if file != "" {
		return os.ReadFile(file)
	}
	return nil, nil
}

// Append mirrors one expense as a row: ID, date, reason, notes, amount.
func (c *Client) Append(ctx context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:E", c.expensesSheet)
	vr := &gsheet.ValueRange{Values: [][]any{{
		e.ID,
		e.OccurredAt.Format("2006-01-02"),
		e.Reason,
		e.Notes,
		e.Amount.Euros(),
	}}}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.expensesSheet, err)
	}

	ref := ""
	if resp.Updates != nil {
		ref = resp.Updates.UpdatedRange
	}
	return ref, nil
}

// ListIDs reads the ID column of the expenses sheet. Cleared rows leave
// empty cells behind, which are skipped.
func (c *Client) ListIDs(ctx context.Context) ([]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	cells, err := c.readIDColumn(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(cells))
	for _, id := range cells {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (c *Client) readIDColumn(ctx context.Context) ([]string, error) {
	rng := fmt.Sprintf("%s!A:A", c.expensesSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read id column of sheet %s: %w", c.expensesSheet, err)
	}
	out := make([]string, len(resp.Values))
	for i, cells := range resp.Values {
		if len(cells) > 0 {
			if id, ok := cells[0].(string); ok {
				out[i] = id
			}
		}
	}
	return out, nil
}

// Delete locates the mirrored row by the ID column and clears it. A row that
// was never mirrored is a no-op.
func (c *Client) Delete(ctx context.Context, e core.Expense) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	cells, err := c.readIDColumn(ctx)
	if err != nil {
		return err
	}

	row := -1
	for i, id := range cells {
		if id == e.ID {
			row = i + 1 // sheet rows are 1-based
			break
		}
	}
	if row < 0 {
		slog.WarnContext(ctx, "Mirrored row not found for delete", "expense_id", e.ID)
		return nil
	}

	clearRange := fmt.Sprintf("%s!A%d:E%d", c.expensesSheet, row, row)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear row %d in sheet %s: %w", row, c.expensesSheet, err)
	}
	return nil
}

// AppendSummary mirrors a dispatched monthly summary.
func (c *Client) AppendSummary(ctx context.Context, mk core.MonthKey, total core.Money, sentAt time.Time) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:D", c.summarySheet)
	vr := &gsheet.ValueRange{Values: [][]any{{
		mk.String(),
		mk.Human(),
		total.Euros(),
		sentAt.Format(time.RFC3339),
	}}}

	if _, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("append to sheet %s: %w", c.summarySheet, err)
	}
	return nil
}
