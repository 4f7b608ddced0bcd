// Package export generates the performance spreadsheet with every
// finalized lead, for supervisors and for the daily snapshot job.
package export

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/jordanlanch/salesbot/pkg/models"
	"github.com/jordanlanch/salesbot/pkg/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const sheetName = "Atendimentos"

// Service handles spreadsheet generation.
type Service struct {
	leads  store.LeadStore
	agents store.AgentStore
}

// NewService creates a new export service.
func NewService(leads store.LeadStore, agents store.AgentStore) *Service {
	return &Service{leads: leads, agents: agents}
}

// WritePerformance writes the full performance workbook to w: one row per
// finalized lead, with the responsible agent resolved by name. Returns how
// many leads were exported.
func (s *Service) WritePerformance(ctx context.Context, w io.Writer) (int, error) {
	leads, err := s.leads.ListDone(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list finalized leads: %w", err)
	}
	names, err := s.agentNames(ctx)
	if err != nil {
		return 0, err
	}

	f := excelize.NewFile()
	defer f.Close()

	defaultSheet := f.GetSheetName(0)
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return 0, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if defaultSheet != sheetName {
		f.DeleteSheet(defaultSheet)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create style: %w", err)
	}

	headers := []string{
		"Nome", "CPF", "Telefone", "Vendedor", "Status Final",
		"Data Finalização", "Tempo Atendimento", "Banco", "Resultado Consulta",
		"Saldo", "Base", "Observações",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, lead := range leads {
		row := rowIdx + 2
		setRow(f, row, []interface{}{
			lead.Name,
			lead.TaxID,
			lead.Phone,
			agentName(names, lead.AssignedTo),
			lead.FinalStatus,
			formatTime(lead.FinalizedAt),
			handlingTime(lead.AssignedAt, lead.FinalizedAt),
			lead.InquiryBank,
			lead.InquiryResult,
			balanceValue(lead.InquiryBalance),
			lead.BatchName,
			joinNotes(lead.Notes),
		})
	}

	if err := f.Write(w); err != nil {
		return 0, fmt.Errorf("failed to write workbook: %w", err)
	}
	return len(leads), nil
}

func (s *Service) agentNames(ctx context.Context) (map[primitive.ObjectID]string, error) {
	agents, err := s.agents.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	names := make(map[primitive.ObjectID]string, len(agents))
	for _, a := range agents {
		names[a.ID] = a.Name
	}
	return names, nil
}

func setRow(f *excelize.File, row int, values []interface{}) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		f.SetCellValue(sheetName, cell, v)
	}
}

func agentName(names map[primitive.ObjectID]string, id *primitive.ObjectID) string {
	if id == nil {
		return ""
	}
	if name, ok := names[*id]; ok {
		return name
	}
	return id.Hex()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("02/01/2006 15:04")
}

// handlingTime is how long the lead sat in progress before finalization.
func handlingTime(assigned, finalized *time.Time) string {
	if assigned == nil || finalized == nil || finalized.Before(*assigned) {
		return ""
	}
	return finalized.Sub(*assigned).Round(time.Minute).String()
}

func balanceValue(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func joinNotes(notes []models.Note) string {
	if len(notes) == 0 {
		return ""
	}
	parts := make([]string, len(notes))
	for i, n := range notes {
		parts[i] = fmt.Sprintf("[%s] %s: %s", n.At.Format("02/01 15:04"), n.Author, n.Text)
	}
	return strings.Join(parts, " | ")
}
