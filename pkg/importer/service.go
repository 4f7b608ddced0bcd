// Package importer loads leads from spreadsheets into the pending queue.
// Each import creates a named batch, which supervisors can later activate
// or deactivate as a whole.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/xuri/excelize/v2"

	"github.com/jordanlanch/salesbot/pkg/models"
	"github.com/jordanlanch/salesbot/pkg/phone"
	"github.com/jordanlanch/salesbot/pkg/store"
)

// Required spreadsheet columns, matched case-insensitively.
var requiredColumns = []string{"nome", "cpf", "telefone"}

// Options controls one import run.
type Options struct {
	BatchName    string
	WipeExisting bool // delete every stored lead before importing
}

// RowError describes why one spreadsheet row was skipped.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Result summarizes an import run.
type Result struct {
	BatchName string     `json:"batch_name"`
	TotalRows int        `json:"total_rows"`
	Imported  int        `json:"imported"`
	Skipped   int        `json:"skipped"`
	Wiped     int64      `json:"wiped"`
	Errors    []RowError `json:"errors,omitempty"`
}

type row struct {
	Name  string `validate:"required,min=2"`
	TaxID string `validate:"omitempty,numeric,len=11"`
	Phone string `validate:"required,min=8"`
}

// Service handles spreadsheet imports.
type Service struct {
	leads    store.LeadStore
	batches  store.BatchStore
	validate *validator.Validate
	now      func() time.Time
}

// NewService creates a new import service.
func NewService(leads store.LeadStore, batches store.BatchStore) *Service {
	return &Service{leads: leads, batches: batches, validate: validator.New(), now: time.Now}
}

// ImportXLSX reads the first sheet of an xlsx workbook and inserts one
// pending lead per valid row. The batch is recorded as active; a batch
// name that already exists is rejected.
func (s *Service) ImportXLSX(ctx context.Context, r io.Reader, opts Options) (*Result, error) {
	batchName := strings.TrimSpace(opts.BatchName)
	if batchName == "" {
		return nil, fmt.Errorf("batch name is required")
	}
	if _, err := s.batches.ByName(ctx, batchName); err == nil {
		return nil, fmt.Errorf("batch %q already exists", batchName)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to check batch: %w", err)
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	columns, err := mapColumns(rows[0])
	if err != nil {
		return nil, err
	}

	result := &Result{BatchName: batchName, TotalRows: len(rows) - 1}
	var leads []models.Lead
	for i, cells := range rows[1:] {
		rowNum := i + 2 // 1-based, after the header
		rec := row{
			Name:  cellAt(cells, columns["nome"]),
			TaxID: phone.Digits(cellAt(cells, columns["cpf"])),
			Phone: strings.TrimSpace(cellAt(cells, columns["telefone"])),
		}
		if err := s.validate.Struct(rec); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, RowError{Row: rowNum, Message: err.Error()})
			continue
		}
		leads = append(leads, models.Lead{
			Name:      strings.TrimSpace(rec.Name),
			TaxID:     rec.TaxID,
			Phone:     rec.Phone,
			Status:    models.LeadStatusPending,
			BatchName: batchName,
		})
	}
	if len(leads) == 0 {
		return nil, fmt.Errorf("no valid rows in sheet %q", sheet)
	}

	if opts.WipeExisting {
		wiped, err := s.leads.DeleteAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to wipe leads: %w", err)
		}
		result.Wiped = wiped
	}

	inserted, err := s.leads.Insert(ctx, leads)
	if err != nil {
		return nil, fmt.Errorf("failed to insert leads: %w", err)
	}
	result.Imported = inserted

	batch := &models.ImportBatch{
		Name:       batchName,
		ImportedAt: s.now(),
		LeadCount:  inserted,
		Active:     true,
	}
	if err := s.batches.Insert(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to record batch: %w", err)
	}
	return result, nil
}

// AdoptOrphans labels every unlabeled lead with the given batch, creating
// the batch record when needed. Meant for databases that predate batch
// tracking.
func (s *Service) AdoptOrphans(ctx context.Context, batchName string) (int64, error) {
	batchName = strings.TrimSpace(batchName)
	if batchName == "" {
		return 0, fmt.Errorf("batch name is required")
	}
	adopted, err := s.leads.AdoptOrphans(ctx, batchName)
	if err != nil {
		return 0, fmt.Errorf("failed to adopt leads: %w", err)
	}
	if adopted == 0 {
		return 0, nil
	}

	if _, err := s.batches.ByName(ctx, batchName); err == nil {
		return adopted, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return adopted, fmt.Errorf("failed to check batch: %w", err)
	}

	batch := &models.ImportBatch{
		Name:       batchName,
		ImportedAt: s.now(),
		LeadCount:  int(adopted),
		Active:     true,
	}
	if err := s.batches.Insert(ctx, batch); err != nil {
		return adopted, fmt.Errorf("failed to record batch: %w", err)
	}
	return adopted, nil
}

func mapColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range requiredColumns {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", strings.ToUpper(required))
		}
	}
	return columns, nil
}

func cellAt(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return cells[idx]
}
