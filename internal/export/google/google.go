package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	ports "wagebook/internal/export"
)

// Client exports payroll registers to a Google Spreadsheet. Each run gets a
// block of rows on a year-prefixed sheet (e.g. "2026 Payroll").
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	registerBase  string
}

var _ ports.RegisterWriter = (*Client)(nil)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Credentials: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
// Optional: GOOGLE_REGISTER_SHEET_NAME (default "Payroll").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	registerBase := strings.TrimSpace(os.Getenv("GOOGLE_REGISTER_SHEET_NAME"))
	if registerBase == "" {
		registerBase = "Payroll"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		registerBase:  registerBase,
	}, nil
}

// newSheetsService initializes a Sheets Service. Service account credentials
// take precedence; an OAuth client plus a stored token (see cmd/oauth-init)
// works for personal spreadsheets where service accounts cannot be shared.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))

	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return newSheetsServiceOAuth(ctx)
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created")
	return service, nil
}

// newSheetsServiceOAuth falls back to an OAuth client config and a token file
// produced by cmd/oauth-init.
func newSheetsServiceOAuth(ctx context.Context) (*gsheet.Service, error) {
	clientJSON := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_JSON"))
	clientFile := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_FILE"))

	var b []byte
	var err error
	switch {
	case clientJSON != "":
		b = []byte(clientJSON)
	case clientFile != "":
		b, err = os.ReadFile(clientFile)
		if err != nil {
			return nil, fmt.Errorf("read oauth client file: %w", err)
		}
	default:
		return nil, errors.New("missing Google credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, GOOGLE_APPLICATION_CREDENTIALS, or GOOGLE_OAUTH_CLIENT_JSON/GOOGLE_OAUTH_CLIENT_FILE)")
	}

	cfg, err := goauth.ConfigFromJSON(b, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth client config: %w", err)
	}

	tokenFile := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_TOKEN_FILE"))
	if tokenFile == "" {
		tokenFile = "token.json"
	}
	tf, err := os.Open(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("open token file (run oauth-init first): %w", err)
	}
	defer tf.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(tf).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token file: %w", err)
	}

	service, err := gsheet.NewService(ctx, goption.WithTokenSource(cfg.TokenSource(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created", "auth", "oauth")
	return service, nil
}

// WriteRegister appends the register below any existing content on the
// year's sheet: a title row, a header row, one row per employee, and a
// totals row.
func (c *Client) WriteRegister(ctx context.Context, r ports.Register) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if len(r.Rows) == 0 {
		return "", errors.New("empty register")
	}

	sheetName := yearPrefixedName(c.registerBase, r.Year)

	// Find the next empty row by reading column A.
	rng := fmt.Sprintf("%s!A:A", sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get sheet dimensions for %s: %w", sheetName, err)
	}
	startRow := len(resp.Values) + 1

	values := [][]any{
		{fmt.Sprintf("%s — %s %d-%02d", r.CompanyName, r.Reference, r.Year, r.Month)},
		{"Staff no", "Employee", "Gross", "PAYE", "Pension", "NHF", "NHIS", "Advance", "Net"},
	}
	for _, row := range r.Rows {
		values = append(values, []any{
			row.StaffNumber,
			row.EmployeeName,
			row.Gross.Naira(),
			row.PAYE.Naira(),
			row.Pension.Naira(),
			row.NHF.Naira(),
			row.NHIS.Naira(),
			row.AdvanceRecovered.Naira(),
			row.Net.Naira(),
		})
	}
	values = append(values, []any{
		"", "Totals",
		r.TotalGross.Naira(),
		r.TotalPAYE.Naira(),
		"", "", "", "",
		r.TotalNet.Naira(),
	})

	endRow := startRow + len(values) - 1
	dataRange := fmt.Sprintf("%s!A%d:I%d", sheetName, startRow, endRow)
	vr := &gsheet.ValueRange{Values: values}

	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("write register to %s: %w", sheetName, err)
	}

	slog.InfoContext(ctx, "Payroll register exported",
		"reference", r.Reference,
		"sheet", sheetName,
		"rows", len(r.Rows))

	return dataRange, nil
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
