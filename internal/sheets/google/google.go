// Package google exports census aggregates to a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"treecensus/internal/core"
	ports "treecensus/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	// Species names come from an open API; RAW keeps them from being parsed
	// as formulas, dates or numbers.
	valueInputOption = "RAW"
	// Rows per Values.Update call; keeps request bodies well under the API
	// payload limit.
	defaultChunkRows = 5000
)

// Config selects the spreadsheet, its two sheets and the credentials.
type Config struct {
	SpreadsheetID      string
	HealthSheet        string
	StewardSheet       string
	ServiceAccountJSON string
	ServiceAccountFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	healthSheet   string
	stewardSheet  string
	chunkRows     int
}

// Ensure interface conformance
var _ ports.AggregateExporter = (*Client)(nil)

// New creates a Sheets exporter authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := newSheetsService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, cfg Config) *Client {
	health, steward := cfg.HealthSheet, cfg.StewardSheet
	if health == "" {
		health = "Health"
	}
	if steward == "" {
		steward = "Stewards"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		healthSheet:   health,
		stewardSheet:  steward,
		chunkRows:     defaultChunkRows,
	}
}

func loadCredentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.ServiceAccountJSON) != "":
		return []byte(cfg.ServiceAccountJSON), nil
	case strings.TrimSpace(cfg.ServiceAccountFile) != "":
		b, err := os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		if path := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")); path != "" {
			b, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read GOOGLE_APPLICATION_CREDENTIALS: %w", err)
			}
			return b, nil
		}
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

func newSheetsService(ctx context.Context, opts ...goption.ClientOption) (*gsheet.Service, error) {
	service, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return service, nil
}

// ExportHealth replaces the health sheet with rows.
func (c *Client) ExportHealth(ctx context.Context, rows []core.HealthAggregate) (string, error) {
	return c.replaceSheet(ctx, c.healthSheet, ports.HealthValues(rows))
}

// ExportStewards replaces the steward sheet with rows.
func (c *Client) ExportStewards(ctx context.Context, rows []core.StewardAggregate) (string, error) {
	return c.replaceSheet(ctx, c.stewardSheet, ports.StewardValues(rows))
}

// replaceSheet clears the sheet and writes values from A1 down, in chunks.
func (c *Client) replaceSheet(ctx context.Context, sheet string, values [][]any) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	clearRange := fmt.Sprintf("%s!A:Z", quoteSheet(sheet))
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", clearRange, err)
	}

	chunk := c.chunkRows
	if chunk <= 0 {
		chunk = defaultChunkRows
	}
	for start := 0; start < len(values); start += chunk {
		end := min(start+chunk, len(values))
		rng := fmt.Sprintf("%s!A%d", quoteSheet(sheet), start+1)
		vr := &gsheet.ValueRange{Values: values[start:end]}
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption(valueInputOption).Context(ctx).Do(); err != nil {
			return "", fmt.Errorf("update %s: %w", rng, err)
		}
	}

	written := fmt.Sprintf("%s!A1:%s%d", quoteSheet(sheet), columnName(len(values[0])), len(values))
	slog.InfoContext(ctx, "Sheet replaced",
		"sheet", sheet,
		"sheets_range", written,
		"rows", len(values)-1)
	return written, nil
}

// quoteSheet quotes a sheet name for A1 notation when it contains anything
// other than letters, digits or underscores.
func quoteSheet(name string) string {
	plain := name != ""
	for _, r := range name {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			plain = false
			break
		}
	}
	if plain {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// columnName converts a 1-based column index to its A1 letters.
func columnName(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}
