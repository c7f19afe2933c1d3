package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"certmint/certificate-portal/certificate-portal-backend/internal/certificate"
)

func TestParseCSV(t *testing.T) {
	input := "name,course,score\nAda Lovelace,Analytical Engines,97\nAlan Turing,Computability,95\n"

	source, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 2, source.Len())

	rec, ok := source.Next()
	require.True(t, ok)
	assert.Equal(t, certificate.Record{"name": "Ada Lovelace", "course": "Analytical Engines", "score": "97"}, rec)

	rec, ok = source.Next()
	require.True(t, ok)
	assert.Equal(t, "Alan Turing", rec["name"])

	_, ok = source.Next()
	assert.False(t, ok)
}

func TestParseCSVShortAndBlankRows(t *testing.T) {
	input := "name,course\nAda\n\n,\nAlan,Math,extra\n"

	source, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 2, source.Len())

	rec, _ := source.Next()
	assert.Equal(t, certificate.Record{"name": "Ada", "course": ""}, rec, "short rows are padded")

	rec, _ = source.Next()
	assert.Equal(t, certificate.Record{"name": "Alan", "course": "Math"}, rec, "extra cells are dropped")
}

func TestParseCSVHeaderOnly(t *testing.T) {
	source, err := ParseCSV(strings.NewReader("name,course\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, source.Len())
}

func TestParseCSVEmpty(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrMissingHeader)
}

func TestParseExcel(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetCellValue(sheet, "A1", "name"))
	require.NoError(t, f.SetCellValue(sheet, "B1", "score"))
	require.NoError(t, f.SetCellValue(sheet, "A2", "Ada Lovelace"))
	require.NoError(t, f.SetCellValue(sheet, "B2", 97))
	require.NoError(t, f.SetCellValue(sheet, "A3", "Alan Turing"))
	require.NoError(t, f.SetCellValue(sheet, "B3", 95))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	source, err := ParseExcel(buf)
	require.NoError(t, err)
	require.Equal(t, 2, source.Len())

	rec, ok := source.Next()
	require.True(t, ok)
	assert.Equal(t, "Ada Lovelace", rec["name"])
	assert.Equal(t, "97", rec["score"])
}

func TestParseDispatch(t *testing.T) {
	source, err := Parse("roster.csv", strings.NewReader("name\nAda\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, source.Len())

	_, err = Parse("roster.pdf", strings.NewReader("whatever"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
