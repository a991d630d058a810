// Package spreadsheet stores the cross-listing mapping in a Google
// Sheets spreadsheet: one row per physical item, one column per
// marketplace.
package spreadsheet

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	sheets "google.golang.org/api/sheets/v4"

	"github.com/crostore/backend/internal/domain/crosslist"
)

const defaultRequestsPerSecond = 1

// Config holds the spreadsheet settings.
type Config struct {
	SpreadsheetID     string
	SheetName         string  // empty targets the first sheet
	RequestsPerSecond float64 // client-side API politeness limit
}

// GoogleSheets reads and writes mapping cells through the Sheets API. It
// implements crosslist.ColumnStore.
type GoogleSheets struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string
	limiter       *rate.Limiter
	log           *zap.Logger
}

var _ crosslist.ColumnStore = (*GoogleSheets)(nil)

// NewGoogleSheets creates a column store over an authorized Sheets
// service.
func NewGoogleSheets(svc *sheets.Service, cfg Config, log *zap.Logger) (*GoogleSheets, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("spreadsheet: spreadsheet id is required")
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultRequestsPerSecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &GoogleSheets{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
		limiter:       rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		log:           log,
	}, nil
}

// Column reads one column top to bottom. Trailing empty cells are
// omitted, matching the Sheets API's trimming.
func (s *GoogleSheets) Column(ctx context.Context, column string) ([]string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	readRange := s.rangeFor(column + ":" + column)
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, readRange).
		MajorDimension("COLUMNS").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read column %s: %w", readRange, err)
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}
	cells := make([]string, len(resp.Values[0]))
	for i, cell := range resp.Values[0] {
		cells[i] = cellString(cell)
	}
	return cells, nil
}

// WriteCell sets a single cell. The value goes in as USER_ENTERED, the
// same way a typed-in id would.
func (s *GoogleSheets) WriteCell(ctx context.Context, column string, row int, value string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	cellRange := s.rangeFor(fmt.Sprintf("%s%d", column, row+1))
	body := &sheets.ValueRange{
		Range:          cellRange,
		MajorDimension: "COLUMNS",
		Values:         [][]interface{}{{value}},
	}
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, cellRange, body).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write cell %s: %w", cellRange, err)
	}
	s.log.Debug("wrote mapping cell",
		zap.String("range", cellRange),
		zap.String("value", value),
	)
	return nil
}

// ClearCell empties a single cell, keeping the row.
func (s *GoogleSheets) ClearCell(ctx context.Context, column string, row int) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	cellRange := s.rangeFor(fmt.Sprintf("%s%d", column, row+1))
	_, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, cellRange, &sheets.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear cell %s: %w", cellRange, err)
	}
	s.log.Debug("cleared mapping cell", zap.String("range", cellRange))
	return nil
}

// rangeFor qualifies an A1 reference with the sheet name when one is
// configured.
func (s *GoogleSheets) rangeFor(ref string) string {
	if s.sheetName == "" {
		return ref
	}
	return s.sheetName + "!" + ref
}

func cellString(cell interface{}) string {
	if s, ok := cell.(string); ok {
		return s
	}
	return fmt.Sprint(cell)
}
