package importer

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jordanlanch/salesbot/pkg/models"
	"github.com/jordanlanch/salesbot/pkg/store"
)

func sheetBytes(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, cells := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &cells))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestImportXLSX(t *testing.T) {
	ctx := context.Background()
	leads := store.NewMemoryLeadStore()
	batches := store.NewMemoryBatchStore()
	svc := NewService(leads, batches)

	buf := sheetBytes(t, [][]interface{}{
		{"NOME", "CPF", "TELEFONE"},
		{"Maria Souza", "123.456.789-01", "(11) 99988-7766"},
		{"João Lima", "", "11911112222"},
		{"", "12345678901", "11933334444"},    // no name
		{"Pedro Santos", "12345678901", ""},   // no phone
		{"Rita Alves", "1234", "11955556666"}, // short cpf
	})

	result, err := svc.ImportXLSX(ctx, buf, Options{BatchName: "base_agosto"})
	require.NoError(t, err)
	assert.Equal(t, 5, result.TotalRows)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 3, result.Skipped)
	assert.Len(t, result.Errors, 3)

	pending, err := leads.CountPending(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, pending)

	batch, err := batches.ByName(ctx, "base_agosto")
	require.NoError(t, err)
	assert.True(t, batch.Active)
	assert.Equal(t, 2, batch.LeadCount)

	// CPF is stored as bare digits.
	lead, err := leads.ByPhoneDigits(ctx, "11999887766")
	require.NoError(t, err)
	assert.Equal(t, "12345678901", lead.TaxID)
	assert.Equal(t, models.LeadStatusPending, lead.Status)
	assert.Equal(t, "base_agosto", lead.BatchName)
}

func TestImportXLSXMissingColumn(t *testing.T) {
	svc := NewService(store.NewMemoryLeadStore(), store.NewMemoryBatchStore())
	buf := sheetBytes(t, [][]interface{}{
		{"NOME", "TELEFONE"},
		{"Maria", "11999887766"},
	})

	_, err := svc.ImportXLSX(context.Background(), buf, Options{BatchName: "base"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CPF")
}

func TestImportXLSXDuplicateBatch(t *testing.T) {
	ctx := context.Background()
	leads := store.NewMemoryLeadStore()
	batches := store.NewMemoryBatchStore()
	svc := NewService(leads, batches)

	mk := func() *bytes.Buffer {
		return sheetBytes(t, [][]interface{}{
			{"NOME", "CPF", "TELEFONE"},
			{"Maria", "12345678901", "11999887766"},
		})
	}
	_, err := svc.ImportXLSX(ctx, mk(), Options{BatchName: "base"})
	require.NoError(t, err)
	_, err = svc.ImportXLSX(ctx, mk(), Options{BatchName: "base"})
	assert.Error(t, err)
}

func TestImportXLSXWipe(t *testing.T) {
	ctx := context.Background()
	leads := store.NewMemoryLeadStore()
	batches := store.NewMemoryBatchStore()
	_, err := leads.Insert(ctx, []models.Lead{{Name: "Antigo", Status: models.LeadStatusPending}})
	require.NoError(t, err)

	svc := NewService(leads, batches)
	buf := sheetBytes(t, [][]interface{}{
		{"NOME", "CPF", "TELEFONE"},
		{"Maria", "12345678901", "11999887766"},
	})

	result, err := svc.ImportXLSX(ctx, buf, Options{BatchName: "base", WipeExisting: true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.Wiped)

	pending, err := leads.CountPending(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending)
}

func TestAdoptOrphans(t *testing.T) {
	ctx := context.Background()
	leads := store.NewMemoryLeadStore()
	batches := store.NewMemoryBatchStore()
	_, err := leads.Insert(ctx, []models.Lead{
		{Name: "Sem Base", Status: models.LeadStatusPending},
		{Name: "Com Base", Status: models.LeadStatusPending, BatchName: "base_velha"},
	})
	require.NoError(t, err)

	svc := NewService(leads, batches)
	adopted, err := svc.AdoptOrphans(ctx, "base_legado")
	require.NoError(t, err)
	assert.EqualValues(t, 1, adopted)

	batch, err := batches.ByName(ctx, "base_legado")
	require.NoError(t, err)
	assert.True(t, batch.Active)

	// Nothing left to adopt; no new batch is recorded.
	adopted, err = svc.AdoptOrphans(ctx, "outra_base")
	require.NoError(t, err)
	assert.Zero(t, adopted)
	_, err = batches.ByName(ctx, "outra_base")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
