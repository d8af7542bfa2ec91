package export

import (
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/listing-cli/internal/model"
)

// SheetName is the worksheet WriteXLSX creates.
const SheetName = "Results"

// Columns is the header row of the spreadsheet export.
var Columns = []string{
	"Title", "Industry", "City", "URL", "Phone", "Email", "Address",
	"Rating", "Source", "Rank", "Scraped At",
}

// WriteXLSX writes records to path as a single-sheet workbook with a header
// row, replacing any previous file.
func WriteXLSX(path string, records []model.BusinessRecord) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	addRow(sheet, Columns)
	for _, r := range records {
		addRow(sheet, recordRow(r))
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}

func recordRow(r model.BusinessRecord) []string {
	scraped := ""
	if !r.ScrapedAt.IsZero() {
		scraped = r.ScrapedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		r.Title, r.Industry, r.City, r.URL, r.Phone, r.Email, r.Address,
		r.Rating, string(r.Source), strconv.Itoa(r.Rank), scraped,
	}
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, v := range cells {
		row.AddCell().SetString(v)
	}
}
