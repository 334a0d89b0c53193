// Package medicationparser turns protocol documents into medication records:
// it finds medication tables, splits usage text into fields and normalizes them.
package medicationparser

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/giygas/protoscan/docx"
	"github.com/giygas/protoscan/logging"
	"github.com/giygas/protoscan/medicationparser/entities"
)

// headerSearchRows is how many leading rows may hold the header
const headerSearchRows = 3

type column int

const (
	columnLoE column = iota
	columnUsage
	columnName
	columnCount
)

// columnKeywords in the order categories are checked. Keywords of three runes
// or fewer must match a whole word of the header cell.
var columnKeywords = [columnCount][]string{
	columnLoE:   {"уровень доказательности", "level of evidence", "evidence", "уд", "loe"},
	columnUsage: {"способ", "применени", "режим", "дозир", "доза", "дозы", "dosage", "usage", "regimen", "dose", "доз"},
	columnName:  {"препарат", "наименование", "лекарствен", "medication", "drug", "name", "мнн", "inn"},
}

// TableLayout locates the medication columns of a recognised table
type TableLayout struct {
	TableIndex int
	HeaderRow  int
	NameCol    int
	UsageCol   int
	LoECol     int // -1 when the table has no level of evidence column
}

// DetectLayout looks for a header row in the first rows of table. It reports
// false when no row has both a name and a usage column.
func DetectLayout(table docx.Table) (TableLayout, bool) {
	limit := min(headerSearchRows, len(table.Rows))
	for r := 0; r < limit; r++ {
		cols := [columnCount]int{-1, -1, -1}
		for c, cell := range table.Rows[r] {
			header := Fold(cell)
			if header == "" {
				continue
			}
			for cat := columnLoE; cat < columnCount; cat++ {
				if cols[cat] == -1 && matchesAny(header, columnKeywords[cat]) {
					cols[cat] = c
					break
				}
			}
		}
		if cols[columnName] >= 0 && cols[columnUsage] >= 0 {
			return TableLayout{
				HeaderRow: r,
				NameCol:   cols[columnName],
				UsageCol:  cols[columnUsage],
				LoECol:    cols[columnLoE],
			}, true
		}
	}
	return TableLayout{}, false
}

func matchesAny(header string, keywords []string) bool {
	var words []string
	for _, kw := range keywords {
		if utf8.RuneCountInString(kw) > 3 {
			if strings.Contains(header, kw) {
				return true
			}
			continue
		}
		if words == nil {
			words = strings.FieldsFunc(header, func(r rune) bool {
				return !unicode.IsLetter(r) && !unicode.IsDigit(r)
			})
		}
		for _, w := range words {
			if w == kw {
				return true
			}
		}
	}
	return false
}

// LoadRows returns one MedicationRow per data row of every recognised
// medication table, in document order
func LoadRows(doc *docx.Document) []entities.MedicationRow {
	var rows []entities.MedicationRow
	for ti, table := range doc.Tables {
		layout, ok := DetectLayout(table)
		if !ok {
			logging.Debug("Table is not a medication table", "table", ti)
			continue
		}
		layout.TableIndex = ti
		rows = append(rows, tableRows(table, layout)...)
	}
	return rows
}

func tableRows(table docx.Table, layout TableLayout) []entities.MedicationRow {
	var rows []entities.MedicationRow
	for r := layout.HeaderRow + 1; r < len(table.Rows); r++ {
		cells := table.Rows[r]
		if isBlankRow(cells) {
			continue
		}
		if isSectionHeading(cells) {
			logging.Debug("Skipping section heading row", "table", layout.TableIndex, "row", r, "text", cells[0])
			continue
		}

		name := cellAt(cells, layout.NameCol)
		if name == "" {
			logging.Warn("Skipping medication row without a name", "table", layout.TableIndex, "row", r)
			continue
		}

		rows = append(rows, entities.MedicationRow{
			RawName:    name,
			RawUsage:   cellAt(cells, layout.UsageCol),
			RawLoE:     cellAt(cells, layout.LoECol),
			RowIndex:   r,
			TableIndex: layout.TableIndex,
		})
	}
	return rows
}

func cellAt(cells []string, col int) string {
	if col < 0 || col >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[col])
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// isSectionHeading reports rows made of one cell spanning the whole table,
// which the reader expands into identical cells
func isSectionHeading(cells []string) bool {
	if len(cells) < 2 {
		return false
	}
	for _, c := range cells[1:] {
		if c != cells[0] {
			return false
		}
	}
	return true
}

// RowsFromDrugList converts the AI drug list into rows, used when a document
// has no medication table
func RowsFromDrugList(drugs []entities.ProtocolDrug) []entities.MedicationRow {
	rows := make([]entities.MedicationRow, 0, len(drugs))
	for i, d := range drugs {
		name := strings.TrimSpace(d.INNProtocol)
		if name == "" {
			continue
		}
		rows = append(rows, entities.MedicationRow{
			RawName:    name,
			RawUsage:   strings.TrimSpace(d.UsageProtocol),
			RawLoE:     strings.TrimSpace(d.LoEProtocol),
			RowIndex:   i,
			TableIndex: -1,
		})
	}
	return rows
}

// DiseaseFallback returns the first non-empty paragraph, used as the disease
// context when no AI answer is available
func DiseaseFallback(doc *docx.Document) string {
	for _, p := range doc.Paragraphs {
		if s := strings.TrimSpace(p); s != "" {
			return s
		}
	}
	return ""
}

// String renders a layout for CLI output
func (l TableLayout) String() string {
	return fmt.Sprintf("table %d: header row %d, name col %d, usage col %d, loe col %d",
		l.TableIndex, l.HeaderRow, l.NameCol, l.UsageCol, l.LoECol)
}
