package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/listing-cli/internal/model"
)

func sampleRecords(t *testing.T) []model.BusinessRecord {
	t.Helper()
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	cafe, ok := model.NewRecord(model.SourceMapDirectory, 1, "Cafe X", "Vernon", at)
	require.True(t, ok)
	cafe.Phone = "250-555-0142"
	cafe.URL = "https://cafex.ca/"
	bistro, ok := model.NewRecord(model.SourceListingDirectory, 2, "Bistro Nord", "Vernon", at)
	require.True(t, ok)
	return []model.BusinessRecord{cafe, bistro}
}

func readJSON(t *testing.T, path string) []model.BusinessRecord {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var records []model.BusinessRecord
	require.NoError(t, json.Unmarshal(data, &records))
	return records
}

func TestWriteJSON_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	recs := sampleRecords(t)

	require.NoError(t, WriteJSON(path, recs))

	assert.Equal(t, recs, readJSON(t, path))
}

func TestWriteJSON_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, WriteJSON(path, sampleRecords(t)))
	require.NoError(t, WriteJSON(path, sampleRecords(t)[:1]))

	assert.Len(t, readJSON(t, path), 1)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestWriteJSON_EmptyIsArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, WriteJSON(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestWriteJSON_AbsentFieldsAreEmptyStrings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, WriteJSON(path, sampleRecords(t)[1:]))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"email": ""`)
	assert.Contains(t, string(data), `"industry": "Business"`)
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.xlsx")
	require.NoError(t, WriteXLSX(path, sampleRecords(t)))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet, ok := f.Sheet[SheetName]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 3)

	header := make([]string, 0, len(Columns))
	for _, c := range sheet.Rows[0].Cells {
		header = append(header, c.String())
	}
	assert.Equal(t, Columns, header)

	first := sheet.Rows[1].Cells
	assert.Equal(t, "Cafe X", first[0].String())
	assert.Equal(t, "250-555-0142", first[4].String())
	assert.Equal(t, "map_directory", first[8].String())
	assert.Equal(t, "1", first[9].String())
	assert.Equal(t, "2026-03-14T09:30:00Z", first[10].String())
}
