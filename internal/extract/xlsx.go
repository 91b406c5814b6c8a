package extract

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// maxCellsPerSheet bounds the rendered output for very large workbooks.
const maxCellsPerSheet = 1000

func extractXLSX(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("parse xlsx %s: %w", path, err)
	}
	defer f.Close()

	var parts []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			parts = append(parts, fmt.Sprintf("--- Sheet: %s (read failed: %v) ---", sheet, err))
			continue
		}

		var b strings.Builder
		fmt.Fprintf(&b, "--- Sheet: %s ---\n", sheet)
		cells := 0
		for _, row := range rows {
			if cells >= maxCellsPerSheet {
				b.WriteString("... (truncated)\n")
				break
			}
			fields := make([]string, 0, len(row))
			for _, cell := range row {
				if text := strings.TrimSpace(cell); text != "" {
					fields = append(fields, text)
					cells++
				}
			}
			if len(fields) > 0 {
				b.WriteString(strings.Join(fields, "\t"))
				b.WriteString("\n")
			}
		}
		parts = append(parts, strings.TrimRight(b.String(), "\n"))
	}
	return strings.Join(parts, "\n\n"), nil
}
