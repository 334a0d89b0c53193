package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// MIMEType is the content type of a .docx file
const MIMEType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const documentHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`

const documentFooter = `<w:sectPr><w:pgSz w:w="16838" w:h="11906" w:orient="landscape"/>` +
	`<w:pgMar w:top="720" w:right="720" w:bottom="720" w:left="720" w:header="708" w:footer="708" w:gutter="0"/>` +
	`</w:sectPr></w:body></w:document>`

const tableBorders = `<w:tblBorders>` +
	`<w:top w:val="single" w:sz="4" w:space="0" w:color="000000"/>` +
	`<w:left w:val="single" w:sz="4" w:space="0" w:color="000000"/>` +
	`<w:bottom w:val="single" w:sz="4" w:space="0" w:color="000000"/>` +
	`<w:right w:val="single" w:sz="4" w:space="0" w:color="000000"/>` +
	`<w:insideH w:val="single" w:sz="4" w:space="0" w:color="000000"/>` +
	`<w:insideV w:val="single" w:sz="4" w:space="0" w:color="000000"/>` +
	`</w:tblBorders>`

// Builder accumulates body content and renders a minimal .docx package
type Builder struct {
	body bytes.Buffer
}

// NewBuilder creates an empty document builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Heading appends a bold, enlarged paragraph
func (b *Builder) Heading(text string) {
	b.body.WriteString(`<w:p>`)
	b.run(text, `<w:rPr><w:b/><w:sz w:val="32"/></w:rPr>`)
	b.body.WriteString(`</w:p>`)
}

// Paragraph appends a plain paragraph; newlines become line breaks
func (b *Builder) Paragraph(text string) {
	b.body.WriteString(`<w:p>`)
	b.run(text, "")
	b.body.WriteString(`</w:p>`)
}

// Table appends a bordered table. The first row is rendered bold.
// Newlines inside a cell become separate paragraphs.
func (b *Builder) Table(rows [][]string) {
	if len(rows) == 0 {
		return
	}
	b.body.WriteString(`<w:tbl><w:tblPr><w:tblW w:w="0" w:type="auto"/>`)
	b.body.WriteString(tableBorders)
	b.body.WriteString(`</w:tblPr>`)

	for i, row := range rows {
		b.body.WriteString(`<w:tr>`)
		for _, cell := range row {
			b.body.WriteString(`<w:tc>`)
			props := ""
			if i == 0 {
				props = `<w:rPr><w:b/></w:rPr>`
			}
			for _, line := range strings.Split(cell, "\n") {
				b.body.WriteString(`<w:p>`)
				b.run(line, props)
				b.body.WriteString(`</w:p>`)
			}
			b.body.WriteString(`</w:tc>`)
		}
		b.body.WriteString(`</w:tr>`)
	}
	b.body.WriteString(`</w:tbl>`)
	// Word requires a paragraph between consecutive tables
	b.body.WriteString(`<w:p/>`)
}

func (b *Builder) run(text, props string) {
	lines := strings.Split(text, "\n")
	b.body.WriteString(`<w:r>`)
	b.body.WriteString(props)
	for i, line := range lines {
		if i > 0 {
			b.body.WriteString(`<w:br/>`)
		}
		b.body.WriteString(`<w:t xml:space="preserve">`)
		// EscapeText only fails on writer errors; bytes.Buffer never returns one
		_ = xml.EscapeText(&b.body, []byte(line))
		b.body.WriteString(`</w:t>`)
	}
	b.body.WriteString(`</w:r>`)
}

// WriteTo writes the .docx package to w
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	content, err := b.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(content)
	return int64(n), err
}

// Bytes renders the .docx package
func (b *Builder) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	parts := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", relsXML},
		{documentPart, documentHeader + b.body.String() + documentFooter},
	}

	for _, part := range parts {
		fw, err := zw.Create(part.name)
		if err != nil {
			return nil, fmt.Errorf("failed to create part %s: %w", part.name, err)
		}
		if _, err := io.WriteString(fw, part.content); err != nil {
			return nil, fmt.Errorf("failed to write part %s: %w", part.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize docx: %w", err)
	}
	return buf.Bytes(), nil
}
