package medicationparser

import (
	"testing"

	"github.com/giygas/protoscan/docx"
	"github.com/giygas/protoscan/medicationparser/entities"
)

func TestExtract(t *testing.T) {
	extractor := NewExtractor(nil)

	tests := []struct {
		name     string
		usage    string
		expected entities.Usage
	}{
		{
			name:     "english abbreviations",
			usage:    "500 mg PO TID",
			expected: entities.Usage{Dosage: 500, Unit: "mg", Route: entities.RouteOral, Frequency: "TID"},
		},
		{
			name:     "english words",
			usage:    "500 mg orally twice daily",
			expected: entities.Usage{Dosage: 500, Unit: "mg", Route: entities.RouteOral, Frequency: "twice daily"},
		},
		{
			name:     "russian with decimal comma",
			usage:    "0,5 г внутрь 3 раза в сутки",
			expected: entities.Usage{Dosage: 0.5, Unit: "g", Route: entities.RouteOral, Frequency: "3 times daily"},
		},
		{
			name:     "interval frequency",
			usage:    "1 g IV q8h",
			expected: entities.Usage{Dosage: 1, Unit: "g", Route: entities.RouteIV, Frequency: "q8h"},
		},
		{
			name:     "russian intramuscular",
			usage:    "в/м 2 мл 1 раз в сутки",
			expected: entities.Usage{Dosage: 2, Unit: "ml", Route: entities.RouteIM, Frequency: "once daily"},
		},
		{
			name:     "range keeps lower bound",
			usage:    "1,5-2 g IV",
			expected: entities.Usage{Dosage: 1.5, Unit: "g", Route: entities.RouteIV},
		},
		{
			name:     "comma thousands separator",
			usage:    "1,000 mg IV q8h",
			expected: entities.Usage{Dosage: 1000, Unit: "mg", Route: entities.RouteIV, Frequency: "q8h"},
		},
		{
			name:     "space thousands separator",
			usage:    "1 000 mg PO BID",
			expected: entities.Usage{Dosage: 1000, Unit: "mg", Route: entities.RouteOral, Frequency: "BID"},
		},
		{
			name:     "no-break space thousands separator",
			usage:    "1\u00a0000 мг внутрь",
			expected: entities.Usage{Dosage: 1000, Unit: "mg", Route: entities.RouteOral},
		},
		{
			name:     "leading zero keeps decimal comma",
			usage:    "0,500 г внутрь",
			expected: entities.Usage{Dosage: 0.5, Unit: "g", Route: entities.RouteOral},
		},
		{
			name:     "disease stage is not a route",
			usage:    "Stage IV: 500 mg PO",
			expected: entities.Usage{Dosage: 500, Unit: "mg", Route: entities.RouteOral},
		},
		{
			name:     "heart failure class is not a route",
			usage:    "NYHA class IV 12,5 mg",
			expected: entities.Usage{Dosage: 12.5, Unit: "mg", Route: entities.RouteUnspecified},
		},
		{
			name:     "dosage form as unit",
			usage:    "2 tabs 3 times a day",
			expected: entities.Usage{Dosage: 2, Unit: "tablet", Form: "tablet", Route: entities.RouteUnspecified, Frequency: "3 times daily"},
		},
		{
			name:     "compound unit passes through",
			usage:    "5 mg/kg/day IV",
			expected: entities.Usage{Dosage: 5, Unit: "mg/kg/day", Route: entities.RouteIV},
		},
		{
			name:     "other route",
			usage:    "Vitamin B12 1000 mcg SC",
			expected: entities.Usage{Dosage: 1000, Unit: "mcg", Route: entities.RouteOther},
		},
		{
			name:     "inhaled puffs",
			usage:    "2 puffs inhaled bid",
			expected: entities.Usage{Dosage: 2, Unit: "puff", Route: entities.RouteOther, Frequency: "BID"},
		},
		{
			name:     "every n hours",
			usage:    "IV every 12 hours",
			expected: entities.Usage{Route: entities.RouteIV, Frequency: "q12h"},
		},
		{
			name:     "nothing recognised",
			usage:    "see protocol section 4",
			expected: entities.Usage{Route: entities.RouteUnspecified},
		},
		{
			name:     "empty",
			usage:    "",
			expected: entities.Usage{Route: entities.RouteUnspecified},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractor.Extract(tt.usage)
			if got != tt.expected {
				t.Errorf("Extract(%q) = %+v, want %+v", tt.usage, got, tt.expected)
			}
		})
	}
}

func TestExtractNeverPanics(t *testing.T) {
	extractor := NewExtractor(nil)
	inputs := []string{
		"мг", "500", "..", "q h", "1,", "–", "1 до", "999999999999999999999999 mg",
		"\x00\xff", "в/", "p.o", "0,5,5 г", "раз в сутки", "IV IV IV", "🙂 10 mg",
	}
	for _, in := range inputs {
		got := extractor.Extract(in)
		if got.Route == "" {
			t.Errorf("Extract(%q) returned an empty route", in)
		}
	}
}

func TestNormalizer(t *testing.T) {
	n := NewNormalizer()

	tests := []struct {
		name     string
		fn       func(string) string
		input    string
		expected string
	}{
		{"unit plural", n.Unit, "mgs", "mg"},
		{"unit cyrillic upper", n.Unit, "МГ", "mg"},
		{"unit micro sign", n.Unit, "µg", "mcg"},
		{"unit fullwidth", n.Unit, "ｍｇ", "mg"},
		{"unit trailing period", n.Unit, "mg.", "mg"},
		{"unit unknown passes through", n.Unit, "furlongs", "furlongs"},
		{"route per os", n.Route, "per  os", entities.RouteOral},
		{"route dotted", n.Route, "P.O.", entities.RouteOral},
		{"route russian", n.Route, "в/в", entities.RouteIV},
		{"route subcutaneous", n.Route, "SC", entities.RouteOther},
		{"form tabs", n.Form, "Tabs", "tablet"},
		{"form russian", n.Form, "капсулы", "capsule"},
		{"empty", n.Form, "  ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.input); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}

	if _, ok := n.Lookup(Units, "tablet"); ok {
		t.Error("tablet should not be a unit")
	}
	if _, ok := n.Lookup(Vocabulary(42), "mg"); ok {
		t.Error("unknown vocabulary should miss")
	}
}

func TestBuildRecord(t *testing.T) {
	extractor := NewExtractor(nil)

	record := extractor.BuildRecord(entities.MedicationRow{
		RawName:  "Amoxicillin",
		RawUsage: "500 mg PO TID",
		RawLoE:   "A",
	})

	if record.Name != "Amoxicillin" || record.Usage != "500 mg PO TID" {
		t.Errorf("Raw fields not kept: %+v", record)
	}
	if record.Dosage != 500 || record.Unit != "mg" || record.Route != "oral" || record.Frequency != "TID" {
		t.Errorf("Unexpected usage fields: %+v", record)
	}
	if record.LevelOfEvidence != "A" {
		t.Errorf("Expected LoE A, got %q", record.LevelOfEvidence)
	}
	if record.INN != "amoxicillin" {
		t.Errorf("Expected Latin INN prefill, got %q", record.INN)
	}

	cyrillic := extractor.BuildRecord(entities.MedicationRow{RawName: "Амоксициллин"})
	if cyrillic.INN != "" {
		t.Errorf("Cyrillic name should leave INN empty, got %q", cyrillic.INN)
	}
	if cyrillic.Route != entities.RouteUnspecified {
		t.Errorf("Expected unspecified route, got %q", cyrillic.Route)
	}
}

func TestBuildRecordsKeepsOrderAndCount(t *testing.T) {
	extractor := NewExtractor(nil)
	rows := []entities.MedicationRow{
		{RawName: "Ceftriaxone", RawUsage: "1 g IV"},
		{RawName: "Ceftriaxone", RawUsage: "1 g IV"},
		{RawName: "Paracetamol (acetaminophen)", RawUsage: "500 mg PO"},
	}

	records := extractor.BuildRecords(rows)
	if len(records) != len(rows) {
		t.Fatalf("Expected %d records, got %d", len(rows), len(records))
	}
	if records[2].INN != "paracetamol" {
		t.Errorf("Expected paracetamol, got %q", records[2].INN)
	}
}

func buildDocument(t *testing.T, build func(b *docx.Builder)) *docx.Document {
	t.Helper()
	b := docx.NewBuilder()
	build(b)
	content, err := b.Bytes()
	if err != nil {
		t.Fatalf("Failed to build docx: %v", err)
	}
	doc, err := docx.Read(content)
	if err != nil {
		t.Fatalf("Failed to read docx: %v", err)
	}
	return doc
}

func TestLoadRows(t *testing.T) {
	doc := buildDocument(t, func(b *docx.Builder) {
		b.Paragraph("")
		b.Paragraph("Клинический протокол: внебольничная пневмония")
		b.Table([][]string{
			{"Показатель", "Значение"},
			{"Температура", "38"},
		})
		b.Table([][]string{
			{"№", "Препарат (МНН)", "Способ применения и дозы", "УД"},
			{"1", "Амоксициллин", "500 мг внутрь 3 раза в сутки", "A"},
			{"", "", "", ""},
			{"Антибиотики", "Антибиотики", "Антибиотики", "Антибиотики"},
			{"3", "", "1 g IV", ""},
			{"4", "Ceftriaxone", "1 g IV q24h", "B"},
		})
		b.Table([][]string{
			{"Таблица 2", "Таблица 2"},
			{"Drug", "Dose"},
			{"Azithromycin", "500 mg PO once daily"},
		})
	})

	rows := LoadRows(doc)
	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d: %+v", len(rows), rows)
	}

	first := rows[0]
	if first.RawName != "Амоксициллин" || first.RawUsage != "500 мг внутрь 3 раза в сутки" || first.RawLoE != "A" {
		t.Errorf("Unexpected first row: %+v", first)
	}
	if first.TableIndex != 1 || first.RowIndex != 1 {
		t.Errorf("Unexpected first row position: %+v", first)
	}
	if rows[1].RawName != "Ceftriaxone" || rows[1].RowIndex != 5 {
		t.Errorf("Unexpected second row: %+v", rows[1])
	}
	if rows[2].RawName != "Azithromycin" || rows[2].RawLoE != "" {
		t.Errorf("Unexpected third row: %+v", rows[2])
	}

	if got := DiseaseFallback(doc); got != "Клинический протокол: внебольничная пневмония" {
		t.Errorf("Unexpected disease fallback: %q", got)
	}
}

func TestDetectLayout(t *testing.T) {
	tests := []struct {
		name   string
		rows   [][]string
		ok     bool
		layout TableLayout
	}{
		{
			name:   "english header",
			rows:   [][]string{{"Drug name", "Dosage", "Level of evidence"}},
			ok:     true,
			layout: TableLayout{NameCol: 0, UsageCol: 1, LoECol: 2},
		},
		{
			name:   "no loe column",
			rows:   [][]string{{"МНН", "Режим дозирования"}},
			ok:     true,
			layout: TableLayout{NameCol: 0, UsageCol: 1, LoECol: -1},
		},
		{
			name: "short keyword needs whole word",
			rows: [][]string{{"Innovation", "Dose"}},
			ok:   false,
		},
		{
			name: "header beyond search window",
			rows: [][]string{{"a"}, {"b"}, {"c"}, {"Drug", "Dose"}},
			ok:   false,
		},
		{
			name: "empty table",
			rows: nil,
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layout, ok := DetectLayout(docx.Table{Rows: tt.rows})
			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && layout != tt.layout {
				t.Errorf("Expected %+v, got %+v", tt.layout, layout)
			}
		})
	}
}

func TestRowsFromDrugList(t *testing.T) {
	rows := RowsFromDrugList([]entities.ProtocolDrug{
		{INNProtocol: " Амоксициллин ", UsageProtocol: "500 мг", LoEProtocol: "A"},
		{INNProtocol: ""},
		{INNProtocol: "Цефтриаксон"},
	})
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0].RawName != "Амоксициллин" || rows[0].TableIndex != -1 {
		t.Errorf("Unexpected row: %+v", rows[0])
	}
}
