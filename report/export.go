// Package report renders analyses: the .docx export with its fixed column
// layout, the parser that reads that table back, and the HTML views.
package report

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/giygas/protoscan/docx"
	"github.com/giygas/protoscan/medicationparser/entities"
)

// ErrNoReportTable is returned by ParseTable when no table has the export header
var ErrNoReportTable = errors.New("document has no report table")

// NoLinks fills the PubMed cell of a record without links
const NoLinks = "None"

// Columns is the export table header, in order
var Columns = []string{
	"Name (protocol)",
	"INN",
	"Dosage",
	"Unit",
	"Route",
	"Frequency",
	"LoE (protocol)",
	"System LoE",
	"Description",
	"WHO EML",
	"FDA",
	"EMA",
	"PubMed",
}

// FormatDosage renders a dosage without trailing zeros; zero renders empty
func FormatDosage(d float64) string {
	if d == 0 {
		return ""
	}
	return strconv.FormatFloat(d, 'f', -1, 64)
}

// PubMedCell renders links one per line, or NoLinks
func PubMedCell(links []string) string {
	if len(links) == 0 {
		return NoLinks
	}
	return strings.Join(links, "\n")
}

// Row renders one record in Columns order
func Row(r entities.MedicationRecord) []string {
	return []string{
		r.Name,
		r.INN,
		FormatDosage(r.Dosage),
		r.Unit,
		r.Route,
		r.Frequency,
		r.LevelOfEvidence,
		r.SystemLoE,
		r.Description,
		r.Sources.EMLStatus,
		r.Sources.FDAStatus,
		r.Sources.EMAStatus,
		PubMedCell(r.Sources.PubMedLinks),
	}
}

// Heading is the title paragraph of an export
func Heading(filename string) string {
	return "Analysis results: " + filename
}

// Export renders the analysis as a .docx with a heading and the records table
func Export(a *entities.Analysis) ([]byte, error) {
	b := docx.NewBuilder()
	b.Heading(Heading(a.Filename))
	if a.DiseaseContext != "" {
		b.Paragraph("Disease context: " + a.DiseaseContext)
	}

	rows := make([][]string, 0, len(a.Records)+1)
	rows = append(rows, Columns)
	for _, r := range a.Records {
		rows = append(rows, Row(r))
	}
	b.Table(rows)

	content, err := b.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return content, nil
}

// ParseTable reads the records back from the first table whose header row
// matches Columns
func ParseTable(doc *docx.Document) ([]entities.MedicationRecord, error) {
	for _, table := range doc.Tables {
		if len(table.Rows) == 0 || !isReportHeader(table.Rows[0]) {
			continue
		}

		records := make([]entities.MedicationRecord, 0, len(table.Rows)-1)
		for i, cells := range table.Rows[1:] {
			rec, err := parseRow(cells)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+1, err)
			}
			records = append(records, rec)
		}
		return records, nil
	}
	return nil, ErrNoReportTable
}

func isReportHeader(cells []string) bool {
	if len(cells) != len(Columns) {
		return false
	}
	for i, c := range cells {
		if c != Columns[i] {
			return false
		}
	}
	return true
}

func parseRow(cells []string) (entities.MedicationRecord, error) {
	if len(cells) != len(Columns) {
		return entities.MedicationRecord{}, fmt.Errorf("expected %d cells, got %d", len(Columns), len(cells))
	}

	var dosage float64
	if cells[2] != "" {
		d, err := strconv.ParseFloat(cells[2], 64)
		if err != nil {
			return entities.MedicationRecord{}, fmt.Errorf("invalid dosage %q: %w", cells[2], err)
		}
		dosage = d
	}

	var links []string
	if cells[12] != "" && cells[12] != NoLinks {
		for _, l := range strings.Split(cells[12], "\n") {
			if l = strings.TrimSpace(l); l != "" {
				links = append(links, l)
			}
		}
	}

	return entities.MedicationRecord{
		Name:            cells[0],
		INN:             cells[1],
		Dosage:          dosage,
		Unit:            cells[3],
		Route:           cells[4],
		Frequency:       cells[5],
		LevelOfEvidence: cells[6],
		SystemLoE:       cells[7],
		Description:     cells[8],
		Sources: entities.Sources{
			EMLStatus:   cells[9],
			FDAStatus:   cells[10],
			EMAStatus:   cells[11],
			PubMedLinks: links,
		},
	}, nil
}
