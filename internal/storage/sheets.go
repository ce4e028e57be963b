package storage

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const valueInputRaw = "RAW"

type SheetsConfig struct {
	SpreadsheetID   string
	SheetName       string
	SheetGID        int64
	CredentialsFile string
}

// SheetsStore addresses rows of one tab of a Google spreadsheet.
type SheetsStore struct {
	values *sheets.SpreadsheetsValuesService
	sheets *sheets.SpreadsheetsService
	cfg    SheetsConfig
	log    zerolog.Logger
}

// NewSheetsStore authenticates with the service-account credentials file.
// A missing credentials file is reported as ErrMissingCredentials.
func NewSheetsStore(ctx context.Context, cfg SheetsConfig, logger zerolog.Logger) (*SheetsStore, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("spreadsheet id is required")
	}
	if _, err := os.Stat(cfg.CredentialsFile); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingCredentials, cfg.CredentialsFile)
	}

	srv, err := sheets.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &SheetsStore{
		values: srv.Spreadsheets.Values,
		sheets: srv.Spreadsheets,
		cfg:    cfg,
		log:    logger.With().Str("component", "Sheets").Logger(),
	}, nil
}

// ListAll reads the whole tab
func (s *SheetsStore) ListAll(ctx context.Context) ([][]string, error) {
	resp, err := s.values.Get(s.cfg.SpreadsheetID, s.cfg.SheetName).Context(ctx).Do()
	if err != nil {
		return nil, unavailable("get", err)
	}

	rows := make([][]string, len(resp.Values))
	for i, raw := range resp.Values {
		rows[i] = cellsToStrings(raw)
	}
	s.log.Debug().Int("rows", len(rows)).Msg("Read sheet")
	return rows, nil
}

// AppendRow appends after the last non-empty row
func (s *SheetsStore) AppendRow(ctx context.Context, row []string) error {
	body := &sheets.ValueRange{Values: [][]interface{}{stringsToCells(row)}}
	_, err := s.values.Append(s.cfg.SpreadsheetID, s.cfg.SheetName, body).
		ValueInputOption(valueInputRaw).
		Context(ctx).
		Do()
	if err != nil {
		return unavailable("append", err)
	}
	return nil
}

// ReplaceRow overwrites the row starting at column A
func (s *SheetsStore) ReplaceRow(ctx context.Context, position int, row []string) error {
	if position < 0 {
		return fmt.Errorf("%w: %d", ErrOutOfRange, position)
	}
	body := &sheets.ValueRange{Values: [][]interface{}{stringsToCells(row)}}
	_, err := s.values.Update(s.cfg.SpreadsheetID, A1Row(s.cfg.SheetName, position), body).
		ValueInputOption(valueInputRaw).
		Context(ctx).
		Do()
	if err != nil {
		return unavailable("update", err)
	}
	return nil
}

// DeleteRow removes the row dimension so following rows shift up
func (s *SheetsStore) DeleteRow(ctx context.Context, position int) error {
	if position < 0 {
		return fmt.Errorf("%w: %d", ErrOutOfRange, position)
	}
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:         s.cfg.SheetGID,
					Dimension:       "ROWS",
					StartIndex:      int64(position),
					EndIndex:        int64(position + 1),
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}
	if _, err := s.sheets.BatchUpdate(s.cfg.SpreadsheetID, req).Context(ctx).Do(); err != nil {
		return unavailable("delete", err)
	}
	return nil
}

// A1Row returns the A1 range of the row at a zero-based position.
func A1Row(sheetName string, position int) string {
	return fmt.Sprintf("%s!A%d", sheetName, position+1)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: sheets %s: %w", ErrUnavailable, op, err)
}

func cellsToStrings(raw []interface{}) []string {
	out := make([]string, len(raw))
	for i, v := range raw {
		if v == nil {
			continue
		}
		out[i] = fmt.Sprint(v)
	}
	return out
}

func stringsToCells(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}
