package sheets

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mamadbah2/nutritrack/internal/config"
	"github.com/mamadbah2/nutritrack/internal/domain/models"
)

// Repository defines the persistence operations supported by the Google Sheets adapter.
type Repository interface {
	WriteRow(ctx context.Context, sheetRange string, values []interface{}) error
	ReadRange(ctx context.Context, sheetRange string) ([][]interface{}, error)
}

// GoogleSheetRepository implements the Repository interface using the official Google Sheets API.
type GoogleSheetRepository struct {
	service       *sheetsapi.Service
	spreadsheetID string
	logger        *zap.Logger
}

// NewGoogleSheetRepository builds a Google Sheets backed repository instance.
func NewGoogleSheetRepository(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*GoogleSheetRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(sheetsapi.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &GoogleSheetRepository{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger,
	}, nil
}

// WriteRow appends the provided values to the supplied sheet range.
func (r *GoogleSheetRepository) WriteRow(ctx context.Context, sheetRange string, values []interface{}) error {
	if sheetRange == "" {
		return fmt.Errorf("sheetRange must not be empty")
	}

	payload := &sheetsapi.ValueRange{Values: [][]interface{}{values}}

	call := r.service.Spreadsheets.Values.Append(r.spreadsheetID, sheetRange, payload).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx)

	if _, err := call.Do(); err != nil {
		return fmt.Errorf("append row into range %s: %w", sheetRange, err)
	}

	r.logger.Debug("row appended to sheet", zap.String("range", sheetRange))
	return nil
}

// ReadRange fetches a rectangular data range from the spreadsheet.
func (r *GoogleSheetRepository) ReadRange(ctx context.Context, sheetRange string) ([][]interface{}, error) {
	if sheetRange == "" {
		return nil, fmt.Errorf("sheetRange must not be empty")
	}

	resp, err := r.service.Spreadsheets.Values.Get(r.spreadsheetID, sheetRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", sheetRange, err)
	}

	return resp.Values, nil
}

// summaryColumns is the column order of an exported summary row.
var summaryColumns = []string{"user_id", "day", "calories", "protein", "fat", "carbs", "meals", "last_updated"}

// SummaryExporter appends daily summaries as rows, one row per user and day.
type SummaryExporter struct {
	repo       Repository
	sheetRange string
	logger     *zap.Logger
}

// NewSummaryExporter binds a repository to the range summaries are appended to.
func NewSummaryExporter(repo Repository, sheetRange string, logger *zap.Logger) *SummaryExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SummaryExporter{repo: repo, sheetRange: sheetRange, logger: logger}
}

// ExportSummary appends one summary row.
func (e *SummaryExporter) ExportSummary(ctx context.Context, userID string, summary models.DailySummary) error {
	if err := e.repo.WriteRow(ctx, e.sheetRange, SummaryRow(userID, summary)); err != nil {
		return fmt.Errorf("export summary %s/%s: %w", userID, summary.Day, err)
	}
	e.logger.Info("summary exported",
		zap.String("user_id", userID),
		zap.String("day", summary.Day),
		zap.Int("calories", summary.TotalCalories),
	)
	return nil
}

// ReadSummaries returns every exported row of userID. Header and malformed rows are skipped.
func (e *SummaryExporter) ReadSummaries(ctx context.Context, userID string) ([]models.DailySummary, error) {
	rows, err := e.repo.ReadRange(ctx, e.sheetRange)
	if err != nil {
		return nil, err
	}
	out := make([]models.DailySummary, 0, len(rows))
	for i, row := range rows {
		rowUser, summary, err := ParseSummaryRow(row)
		if err != nil {
			if i > 0 {
				e.logger.Warn("skipping malformed summary row", zap.Int("row", i+1), zap.Error(err))
			}
			continue
		}
		if rowUser == userID {
			out = append(out, summary)
		}
	}
	return out, nil
}

// HeaderRow lists the column names of an exported summary.
func HeaderRow() []interface{} {
	row := make([]interface{}, len(summaryColumns))
	for i, c := range summaryColumns {
		row[i] = c
	}
	return row
}

// SummaryRow maps a summary onto the exported column order.
func SummaryRow(userID string, s models.DailySummary) []interface{} {
	return []interface{}{
		userID,
		s.Day,
		s.TotalCalories,
		s.TotalProtein,
		s.TotalFat,
		s.TotalCarbs,
		s.MealCount,
		s.LastUpdated.UTC().Format(time.RFC3339Nano),
	}
}

// ParseSummaryRow reverses SummaryRow. The Sheets API returns cells as strings or numbers.
func ParseSummaryRow(row []interface{}) (string, models.DailySummary, error) {
	var s models.DailySummary
	if len(row) < len(summaryColumns) {
		return "", s, fmt.Errorf("expected %d columns, got %d", len(summaryColumns), len(row))
	}
	userID := cellString(row[0])
	s.Day = cellString(row[1])
	if _, err := time.Parse(models.DateLayout, s.Day); err != nil {
		return "", s, fmt.Errorf("day column: %w", err)
	}

	calories, err := cellFloat(row[2])
	if err != nil {
		return "", s, fmt.Errorf("calories column: %w", err)
	}
	s.TotalCalories = int(calories)
	if s.TotalProtein, err = cellFloat(row[3]); err != nil {
		return "", s, fmt.Errorf("protein column: %w", err)
	}
	if s.TotalFat, err = cellFloat(row[4]); err != nil {
		return "", s, fmt.Errorf("fat column: %w", err)
	}
	if s.TotalCarbs, err = cellFloat(row[5]); err != nil {
		return "", s, fmt.Errorf("carbs column: %w", err)
	}
	meals, err := cellFloat(row[6])
	if err != nil {
		return "", s, fmt.Errorf("meals column: %w", err)
	}
	s.MealCount = int(meals)
	if s.LastUpdated, err = time.Parse(time.RFC3339Nano, cellString(row[7])); err != nil {
		return "", s, fmt.Errorf("last_updated column: %w", err)
	}
	return userID, s, nil
}

func cellString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func cellFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case string:
		return strconv.ParseFloat(t, 64)
	default:
		return 0, fmt.Errorf("unexpected cell type %T", v)
	}
}
