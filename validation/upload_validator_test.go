package validation

import (
	"strings"
	"testing"

	"github.com/giygas/protoscan/docx"
)

var docxHead = []byte("PK\x03\x04\x14\x00\x06\x00")

func TestNewUploadValidator(t *testing.T) {
	validator := NewUploadValidator()

	if validator == nil {
		t.Fatal("NewUploadValidator returned nil")
	}

	if _, ok := validator.(*UploadValidatorImpl); !ok {
		t.Error("NewUploadValidator should return *UploadValidatorImpl")
	}
}

func TestValidateUpload(t *testing.T) {
	validator := NewUploadValidator()

	testCases := []struct {
		name        string
		filename    string
		contentType string
		head        []byte
		wantErr     bool
	}{
		{"valid docx", "protocol.docx", docx.MIMEType, docxHead, false},
		{"upper case extension", "PROTOCOL.DOCX", docx.MIMEType, docxHead, false},
		{"octet stream", "protocol.docx", "application/octet-stream", docxHead, false},
		{"content type with params", "protocol.docx", docx.MIMEType + "; charset=binary", docxHead, false},
		{"no content type", "protocol.docx", "", docxHead, false},
		{"accented name", "протокол лечения.docx", docx.MIMEType, docxHead, false},
		{"empty filename", "", docx.MIMEType, docxHead, true},
		{"whitespace filename", "   ", docx.MIMEType, docxHead, true},
		{"doc extension", "protocol.doc", "application/msword", docxHead, true},
		{"pdf", "protocol.pdf", "application/pdf", []byte("%PDF-1.7"), true},
		{"wrong content type", "protocol.docx", "text/plain", docxHead, true},
		{"malformed content type", "protocol.docx", "/;;", docxHead, true},
		{"not a zip", "protocol.docx", docx.MIMEType, []byte("hello world"), true},
		{"empty content", "protocol.docx", docx.MIMEType, nil, true},
		{"path traversal", "../etc/passwd.docx", docx.MIMEType, docxHead, true},
		{"windows path", "..\\boot.docx", docx.MIMEType, docxHead, true},
		{"script tag", "<script>.docx", docx.MIMEType, docxHead, true},
		{"command substitution", "$(reboot).docx", docx.MIMEType, docxHead, true},
		{"slash", "dir/protocol.docx", docx.MIMEType, docxHead, true},
		{"null byte", "protocol\x00.docx", docx.MIMEType, docxHead, true},
		{"repetition", "aaaaaaaaaaaaaaaa.docx", docx.MIMEType, docxHead, true},
		{"too long", strings.Repeat("ab", 130) + ".docx", docx.MIMEType, docxHead, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.ValidateUpload(tc.filename, tc.contentType, tc.head)
			if tc.wantErr && err == nil {
				t.Errorf("Expected error for %q", tc.filename)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Expected no error for %q, got: %v", tc.filename, err)
			}
		})
	}
}

func TestValidateID(t *testing.T) {
	validator := NewUploadValidator()

	testCases := []struct {
		name     string
		input    string
		expected int64
		wantErr  bool
	}{
		{"valid", "42", 42, false},
		{"one", "1", 1, false},
		{"large", "9223372036854775807", 9223372036854775807, false},
		{"empty", "", -1, true},
		{"zero", "0", -1, true},
		{"negative", "-5", -1, true},
		{"letters", "abc", -1, true},
		{"mixed", "12a", -1, true},
		{"leading space", " 12", -1, true},
		{"trailing newline", "12\n", -1, true},
		{"overflow", "9223372036854775808", -1, true},
		{"decimal", "1.5", -1, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := validator.ValidateID(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error for %q, got: %v", tc.input, err)
			}
			if id != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, id)
			}
		})
	}
}

func TestValidatePage(t *testing.T) {
	validator := NewUploadValidator()

	testCases := []struct {
		name     string
		input    string
		expected int
		wantErr  bool
	}{
		{"empty defaults to first page", "", 1, false},
		{"first", "1", 1, false},
		{"third", "3", 3, false},
		{"max", "100000", 100000, false},
		{"zero", "0", -1, true},
		{"negative", "-1", -1, true},
		{"too large", "100001", -1, true},
		{"letters", "two", -1, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			page, err := validator.ValidatePage(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error for %q, got: %v", tc.input, err)
			}
			if page != tc.expected {
				t.Errorf("Expected page %d, got %d", tc.expected, page)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"protocol.docx", "protocol.docx"},
		{"C:\\Users\\doc\\protocol.docx", "protocol.docx"},
		{"/tmp/protocol.docx", "protocol.docx"},
		{"proto<col>.docx", "protocol.docx"},
		{"Протокол (v2).docx", "Протокол (v2).docx"},
		{"", "document.docx"},
		{"..", "document.docx"},
		{"<>", "document.docx"},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			if got := SanitizeFilename(tc.input); got != tc.expected {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestSanitizeFilenameTruncates(t *testing.T) {
	got := SanitizeFilename(strings.Repeat("a", 300) + ".docx")

	if len(got) != maxFilenameLength {
		t.Errorf("Expected length %d, got %d", maxFilenameLength, len(got))
	}
	if !strings.HasSuffix(got, ".docx") {
		t.Errorf("Expected .docx suffix, got %q", got)
	}
}

func TestHasExcessiveRepetition(t *testing.T) {
	v := &UploadValidatorImpl{}

	if !v.hasExcessiveRepetition("xxxxxxxxxxx") {
		t.Error("Expected 11 repeated characters to be flagged")
	}
	if v.hasExcessiveRepetition("xxxxxxxxxx") {
		t.Error("Expected 10 repeated characters to pass")
	}
	if v.hasExcessiveRepetition("protocol.docx") {
		t.Error("Expected normal filename to pass")
	}
}
