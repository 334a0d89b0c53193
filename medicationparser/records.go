package medicationparser

import (
	"strings"
	"unicode"

	"github.com/giygas/protoscan/medicationparser/entities"
)

// BuildRecord maps a row to a record with usage fields extracted. INN is
// pre-filled from the name when the name is already in Latin script.
func (e *Extractor) BuildRecord(row entities.MedicationRow) entities.MedicationRecord {
	record := entities.MedicationRecord{
		Name:            row.RawName,
		Usage:           row.RawUsage,
		LevelOfEvidence: row.RawLoE,
	}
	record.ApplyUsage(e.Extract(row.RawUsage))
	if isLatin(row.RawName) {
		record.INN = LatinINN(row.RawName)
	}
	return record
}

// BuildRecords maps rows one to one, preserving order
func (e *Extractor) BuildRecords(rows []entities.MedicationRow) []entities.MedicationRecord {
	records := make([]entities.MedicationRecord, len(rows))
	for i, row := range rows {
		records[i] = e.BuildRecord(row)
	}
	return records
}

func isLatin(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if !unicode.Is(unicode.Latin, r) {
				return false
			}
			hasLetter = true
		}
	}
	return hasLetter
}

// LatinINN reduces a Latin drug name cell to a lower-case INN candidate,
// dropping anything after the first parenthesis, comma or newline
func LatinINN(name string) string {
	if i := strings.IndexAny(name, "(,\n;"); i >= 0 {
		name = name[:i]
	}
	return Fold(name)
}
