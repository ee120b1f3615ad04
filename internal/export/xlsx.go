package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/zombor/docscan/internal/document"
)

const xlsxSheet = "Documents"

var xlsxHeader = []any{"ID", "Timestamp", "Date", "Amount", "Tags", "Language", "Summary", "Text"}

func exportXLSX(docs []*document.Document) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return nil, fmt.Errorf("naming sheet: %w", err)
	}
	if err := f.SetSheetRow(xlsxSheet, "A1", &xlsxHeader); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}

	for i, doc := range docs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("locating row: %w", err)
		}
		row := []any{
			doc.ID,
			timestamp(doc),
			doc.Fields.Date,
			doc.Fields.Total,
			strings.Join(doc.Tags, ", "),
			doc.Language,
			doc.Summary,
			doc.Text,
		}
		if err := f.SetSheetRow(xlsxSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("writing row for %s: %w", doc.ID, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}
