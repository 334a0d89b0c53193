// Package docx reads and writes the small subset of WordprocessingML the analyzer
// needs: body paragraphs and tables of plain text.
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrNotDocx is returned when the input is not a readable .docx package
var ErrNotDocx = errors.New("not a docx document")

const (
	documentPart = "word/document.xml"
	// Upper bound on the decompressed main part, guards against zip bombs
	maxDocumentPartSize = 64 * 1024 * 1024
)

// Table is a top-level table as rows of cell text
type Table struct {
	Rows [][]string
}

// Document holds the text content of a .docx body
type Document struct {
	Paragraphs []string
	Tables     []Table
}

// Text returns all body paragraphs joined with newlines
func (d *Document) Text() string {
	return strings.Join(d.Paragraphs, "\n")
}

// Open reads a .docx file from disk
func Open(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Read(content)
}

// Read parses the content of a .docx package
func Read(content []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDocx, err)
	}

	var part *zip.File
	for _, f := range zr.File {
		if f.Name == documentPart {
			part = f
			break
		}
	}
	if part == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrNotDocx, documentPart)
	}

	rc, err := part.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDocx, err)
	}
	defer rc.Close()

	doc, err := parseDocumentXML(io.LimitReader(rc, maxDocumentPartSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDocx, err)
	}
	return doc, nil
}

// Limits on table shape. Word allows at most 63 grid columns; anything past the
// caps is treated as a corrupt document.
const (
	maxGridSpan   = 63
	maxRowCells   = 63
	maxTableRows  = 10000
	maxTotalCells = 200000
)

var errTableTooLarge = errors.New("table exceeds size limits")

// bodyParser walks document.xml as a token stream. Only top-level tables are
// collected; text of nested tables is folded into the enclosing cell. A
// paragraph nested in another one (text boxes, DrawingML shapes) is folded
// into its parent on its own line.
type bodyParser struct {
	doc Document

	tableDepth int
	rows       [][]string
	row        []string
	cells      int

	cell          strings.Builder
	cellHasText   bool
	cellSpan      int
	cellContinued bool

	paras         []*strings.Builder
	inText        bool
	inTabs        bool
	fallbackDepth int
}

func parseDocumentXML(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(r)
	p := &bodyParser{}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if p.fallbackDepth > 0 || t.Name.Local == "Fallback" {
				// mc:Fallback repeats the content of mc:Choice for older readers
				p.fallbackDepth++
				continue
			}
			p.start(t)
		case xml.EndElement:
			if p.fallbackDepth > 0 {
				p.fallbackDepth--
				continue
			}
			if err := p.end(t); err != nil {
				return nil, err
			}
		case xml.CharData:
			if p.inText {
				if para := p.current(); para != nil {
					para.Write(t)
				}
			}
		}
	}

	return &p.doc, nil
}

// current returns the innermost open paragraph, if any
func (p *bodyParser) current() *strings.Builder {
	if len(p.paras) == 0 {
		return nil
	}
	return p.paras[len(p.paras)-1]
}

func (p *bodyParser) start(t xml.StartElement) {
	switch t.Name.Local {
	case "tbl":
		p.tableDepth++
		if p.tableDepth == 1 {
			p.rows = nil
		}
	case "tr":
		if p.tableDepth == 1 {
			p.row = nil
		}
	case "tc":
		if p.tableDepth == 1 {
			p.cell.Reset()
			p.cellHasText = false
			p.cellSpan = 1
			p.cellContinued = false
		}
	case "gridSpan":
		if p.tableDepth == 1 {
			if n, err := strconv.Atoi(attr(t, "val")); err == nil && n > 1 {
				p.cellSpan = min(n, maxGridSpan)
			}
		}
	case "vMerge":
		if p.tableDepth == 1 {
			v := attr(t, "val")
			p.cellContinued = v == "" || v == "continue"
		}
	case "p":
		p.paras = append(p.paras, &strings.Builder{})
	case "t":
		p.inText = true
	case "tabs":
		p.inTabs = true
	case "tab":
		if para := p.current(); para != nil && !p.inTabs {
			para.WriteByte('\t')
		}
	case "br", "cr":
		if para := p.current(); para != nil {
			para.WriteByte('\n')
		}
	}
}

func (p *bodyParser) end(t xml.EndElement) error {
	switch t.Name.Local {
	case "t":
		p.inText = false
	case "tabs":
		p.inTabs = false
	case "p":
		if len(p.paras) == 0 {
			return nil
		}
		text := p.current().String()
		p.paras = p.paras[:len(p.paras)-1]

		if parent := p.current(); parent != nil {
			if text = strings.TrimSpace(text); text != "" {
				parent.WriteByte('\n')
				parent.WriteString(text)
				parent.WriteByte('\n')
			}
			return nil
		}
		if p.tableDepth == 0 {
			p.doc.Paragraphs = append(p.doc.Paragraphs, strings.TrimSpace(text))
			return nil
		}
		if p.cellHasText {
			p.cell.WriteByte('\n')
		}
		p.cell.WriteString(text)
		p.cellHasText = true
	case "tc":
		if p.tableDepth != 1 {
			return nil
		}
		if len(p.row)+p.cellSpan > maxRowCells || p.cells+p.cellSpan > maxTotalCells {
			return errTableTooLarge
		}
		text := strings.TrimSpace(p.cell.String())
		if p.cellContinued && len(p.rows) > 0 {
			above := p.rows[len(p.rows)-1]
			if col := len(p.row); col < len(above) {
				text = above[col]
			}
		}
		for i := 0; i < p.cellSpan; i++ {
			p.row = append(p.row, text)
		}
		p.cells += p.cellSpan
	case "tr":
		if p.tableDepth == 1 {
			if len(p.rows) >= maxTableRows {
				return errTableTooLarge
			}
			p.rows = append(p.rows, p.row)
		}
	case "tbl":
		if p.tableDepth == 1 {
			p.doc.Tables = append(p.doc.Tables, Table{Rows: p.rows})
		}
		if p.tableDepth > 0 {
			p.tableDepth--
		}
	}
	return nil
}

func attr(t xml.StartElement, local string) string {
	for _, a := range t.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
