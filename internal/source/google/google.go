package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"bankfees/internal/core"
	applog "bankfees/internal/log"
	"bankfees/internal/source"
)

const backendName = "sheets"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *applog.Logger
}

// Ensure interface conformance
var _ source.Source = (*Client)(nil)

type Config struct {
	SpreadsheetID string
	// SheetName is the tab holding the bank rows. Default "Banks".
	SheetName string
	// CredentialsJSON takes precedence over CredentialsFile. When both are
	// empty GOOGLE_APPLICATION_CREDENTIALS is used.
	CredentialsJSON string
	CredentialsFile string
	// Options replaces credential lookup entirely when set.
	Options []goption.ClientOption
}

// New creates a Sheets-backed bank source.
func New(ctx context.Context, cfg Config, logger *applog.Logger) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = "Banks"
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentSheets)

	opts := cfg.Options
	if len(opts) == 0 {
		creds, err := loadCredentials(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsReadonlyScope),
		}
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.Info("Google Sheets service created", "sheet", sheet)

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheet,
		logger:        logger,
	}, nil
}

// loadCredentials resolves Service Account credentials from inline JSON, a
// file, or GOOGLE_APPLICATION_CREDENTIALS.
func loadCredentials(ctx context.Context, cfg Config, logger *applog.Logger) ([]byte, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		logger.DebugContext(ctx, "Using inline JSON credentials", "json_length", len(inline))
		return []byte(inline), nil
	case file != "":
		logger.DebugContext(ctx, "Reading credentials from file", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// ListBanks reads the whole bank sheet.
func (c *Client) ListBanks(ctx context.Context) ([]core.Bank, error) {
	values, err := c.readSheet(ctx)
	if err != nil {
		return nil, source.Fetch(backendName, applog.OpList, err)
	}
	banks, err := parseBanks(values)
	if err != nil {
		return nil, source.Fetch(backendName, applog.OpParse, err)
	}
	c.logger.Debug("Read banks from sheet", applog.FieldCount, len(banks), "rows", len(values))
	return banks, nil
}

// GetBank scans the sheet for id. Sheets has no keyed lookup, so this reads
// every row.
func (c *Client) GetBank(ctx context.Context, id string) (core.Bank, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Bank{}, core.ErrBankNotFound
	}
	banks, err := c.ListBanks(ctx)
	if err != nil {
		return core.Bank{}, err
	}
	for _, b := range banks {
		if b.ID == id {
			return b, nil
		}
	}
	return core.Bank{}, core.ErrBankNotFound
}

func (c *Client) readSheet(ctx context.Context) ([][]interface{}, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:Z", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		c.logger.Error("Sheet read failed", "range", rng, applog.FieldError, err)
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}
