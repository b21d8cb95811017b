package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractExcel returns one Table element per non-empty sheet, rows as tab-separated lines.
func extractExcel(content []byte) ([]Element, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	var elements []Element
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
		}
		var buf strings.Builder
		for _, row := range rows {
			buf.WriteString(strings.Join(row, "\t"))
			buf.WriteByte('\n')
		}
		if text := strings.TrimSpace(buf.String()); text != "" {
			elements = append(elements, Element{
				Type:     "Table",
				Text:     text,
				Metadata: map[string]interface{}{"sheet": sheet},
			})
		}
	}
	return elements, nil
}
