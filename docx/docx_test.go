package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestBuilderRoundTrip(t *testing.T) {
	b := NewBuilder()
	b.Heading("Клинический протокол")
	b.Paragraph("Pneumonia & <sepsis>")
	b.Table([][]string{
		{"Препарат", "Способ применения"},
		{"Амоксициллин", "500 мг внутрь 3 раза в сутки"},
		{"Ceftriaxone", "1 g IV\nonce daily"},
	})

	content, err := b.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}

	doc, err := Read(content)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if len(doc.Paragraphs) < 2 {
		t.Fatalf("Expected at least 2 paragraphs, got %d", len(doc.Paragraphs))
	}
	if doc.Paragraphs[0] != "Клинический протокол" {
		t.Errorf("Unexpected heading: %q", doc.Paragraphs[0])
	}
	if doc.Paragraphs[1] != "Pneumonia & <sepsis>" {
		t.Errorf("Escaped text not preserved: %q", doc.Paragraphs[1])
	}

	if len(doc.Tables) != 1 {
		t.Fatalf("Expected 1 table, got %d", len(doc.Tables))
	}
	rows := doc.Tables[0].Rows
	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(rows))
	}
	if rows[1][0] != "Амоксициллин" || rows[1][1] != "500 мг внутрь 3 раза в сутки" {
		t.Errorf("Unexpected row: %v", rows[1])
	}
	if rows[2][1] != "1 g IV\nonce daily" {
		t.Errorf("Multi-paragraph cell not joined with newline: %q", rows[2][1])
	}
}

func TestReadRejectsNonDocx(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
	}{
		{"plain text", []byte("hello world")},
		{"empty", nil},
		{"zip without document part", zipWith(t, "other.xml", "<x/>")},
		{"broken xml", zipWith(t, documentPart, "<w:document><w:body><w:p>")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(tt.content)
			if !errors.Is(err, ErrNotDocx) {
				t.Errorf("Expected ErrNotDocx, got %v", err)
			}
		})
	}
}

func TestReadMergedCells(t *testing.T) {
	body := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		`<w:tbl>` +
		`<w:tr><w:tc><w:tcPr><w:gridSpan w:val="2"/></w:tcPr><w:p><w:r><w:t>Header</w:t></w:r></w:p></w:tc></w:tr>` +
		`<w:tr><w:tc><w:tcPr><w:vMerge w:val="restart"/></w:tcPr><w:p><w:r><w:t>Group</w:t></w:r></w:p></w:tc>` +
		`<w:tc><w:p><w:r><w:t>a</w:t></w:r></w:p></w:tc></w:tr>` +
		`<w:tr><w:tc><w:tcPr><w:vMerge/></w:tcPr><w:p/></w:tc>` +
		`<w:tc><w:p><w:r><w:t>b</w:t><w:tab/><w:t>c</w:t></w:r></w:p></w:tc></w:tr>` +
		`</w:tbl></w:body></w:document>`

	doc, err := Read(zipWith(t, documentPart, body))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	rows := doc.Tables[0].Rows
	if len(rows[0]) != 2 || rows[0][1] != "Header" {
		t.Errorf("gridSpan not repeated: %v", rows[0])
	}
	if rows[2][0] != "Group" {
		t.Errorf("vMerge continuation not copied from above: %v", rows[2])
	}
	if rows[2][1] != "b\tc" {
		t.Errorf("Tab not preserved: %q", rows[2][1])
	}
}

func TestNestedTableFoldsIntoCell(t *testing.T) {
	body := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		`<w:tbl><w:tr><w:tc><w:p><w:r><w:t>outer</w:t></w:r></w:p>` +
		`<w:tbl><w:tr><w:tc><w:p><w:r><w:t>inner</w:t></w:r></w:p></w:tc></w:tr></w:tbl>` +
		`</w:tc></w:tr></w:tbl></w:body></w:document>`

	doc, err := Read(zipWith(t, documentPart, body))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(doc.Tables) != 1 {
		t.Fatalf("Expected only the outer table, got %d", len(doc.Tables))
	}
	if got := doc.Tables[0].Rows[0][0]; got != "outer\ninner" {
		t.Errorf("Unexpected cell text %q", got)
	}
}

const testNamespace = `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"` +
	` xmlns:mc="http://schemas.openxmlformats.org/markup-compatibility/2006"` +
	` xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"><w:body>`

func TestReadClampsGridSpan(t *testing.T) {
	body := testNamespace +
		`<w:tbl><w:tr><w:tc><w:tcPr><w:gridSpan w:val="5000000"/></w:tcPr><w:p><w:r><w:t>x</w:t></w:r></w:p></w:tc></w:tr></w:tbl>` +
		`</w:body></w:document>`

	doc, err := Read(zipWith(t, documentPart, body))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got := len(doc.Tables[0].Rows[0]); got != maxGridSpan {
		t.Errorf("Expected span clamped to %d cells, got %d", maxGridSpan, got)
	}
}

func TestReadRejectsOversizedTables(t *testing.T) {
	wideCell := `<w:tc><w:tcPr><w:gridSpan w:val="40"/></w:tcPr><w:p/></w:tc>`
	row := `<w:tr><w:tc><w:p/></w:tc></w:tr>`

	tests := []struct {
		name  string
		table string
	}{
		{"too many cells in a row", `<w:tbl><w:tr>` + wideCell + wideCell + `</w:tr></w:tbl>`},
		{"too many rows", `<w:tbl>` + strings.Repeat(row, maxTableRows+1) + `</w:tbl>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(zipWith(t, documentPart, testNamespace+tt.table+`</w:body></w:document>`))
			if !errors.Is(err, ErrNotDocx) {
				t.Errorf("Expected ErrNotDocx, got %v", err)
			}
		})
	}
}

func TestReadTextBoxInsideParagraph(t *testing.T) {
	textBox := `<w:r><w:drawing><w:txbxContent><w:p><w:r><w:t>inner</w:t></w:r></w:p></w:txbxContent></w:drawing></w:r>`
	body := testNamespace +
		`<w:p><w:r><w:t xml:space="preserve">Before box </w:t></w:r>` + textBox + `<w:r><w:t>after</w:t></w:r></w:p>` +
		`<w:tbl><w:tr>` +
		`<w:tc><w:p><w:r><w:t>Амоксициллин</w:t></w:r><w:r><a:p><a:r><a:t>shape</a:t></a:r></a:p></w:r></w:p></w:tc>` +
		`<w:tc><w:p><w:r><w:t>500 mg PO</w:t></w:r></w:p></w:tc>` +
		`</w:tr></w:tbl></w:body></w:document>`

	doc, err := Read(zipWith(t, documentPart, body))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if len(doc.Paragraphs) != 1 {
		t.Fatalf("Expected the text box folded into one paragraph, got %q", doc.Paragraphs)
	}
	if got := doc.Paragraphs[0]; got != "Before box \ninner\nafter" {
		t.Errorf("Unexpected paragraph %q", got)
	}

	cells := doc.Tables[0].Rows[0]
	if cells[0] != "Амоксициллин\nshape" || cells[1] != "500 mg PO" {
		t.Errorf("Unexpected cells %q", cells)
	}
}

func TestReadSkipsCompatibilityFallback(t *testing.T) {
	body := testNamespace +
		`<w:p><w:r><w:t xml:space="preserve">Label </w:t></w:r><w:r><mc:AlternateContent>` +
		`<mc:Choice Requires="wps"><w:txbxContent><w:p><w:r><w:t>boxed</w:t></w:r></w:p></w:txbxContent></mc:Choice>` +
		`<mc:Fallback><w:txbxContent><w:p><w:r><w:t>boxed</w:t></w:r></w:p></w:txbxContent></mc:Fallback>` +
		`</mc:AlternateContent></w:r></w:p></w:body></w:document>`

	doc, err := Read(zipWith(t, documentPart, body))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got := doc.Paragraphs[0]; strings.Count(got, "boxed") != 1 {
		t.Errorf("Expected the text box once, got %q", got)
	}
}

func TestDocumentText(t *testing.T) {
	doc := &Document{Paragraphs: []string{"a", "b"}}
	if doc.Text() != "a\nb" {
		t.Errorf("Unexpected text %q", doc.Text())
	}
}

func zipWith(t *testing.T, name, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestBuilderWriteTo(t *testing.T) {
	b := NewBuilder()
	b.Paragraph("x")
	var buf bytes.Buffer
	n, err := b.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	if n == 0 || !strings.HasPrefix(buf.String(), "PK") {
		t.Errorf("Expected a zip package, got %d bytes", n)
	}
}
