// Package validation checks user input reaching the HTTP handlers: uploaded
// files, analysis IDs and history page numbers.
package validation

import (
	"bytes"
	"fmt"
	"mime"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/giygas/protoscan/docx"
	"github.com/giygas/protoscan/interfaces"
)

const (
	maxFilenameLength = 255
	maxPage           = 100000
)

// zipMagic opens every .docx package
var zipMagic = []byte("PK\x03\x04")

var (
	// Characters removed from filenames before they are stored or displayed
	unsafeFilenameChars = regexp.MustCompile(`[^\p{L}\p{N}\s\-_.()+,]`)

	// Dangerous patterns as strings (faster than regex for simple substring matching)
	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"eval(", "expression(",
		// Path traversal patterns
		"../", "..\\", "%2e%2e", "file://",
		// Command injection patterns
		"`", "$(", "${",
	}

	allowedContentTypes = []string{
		docx.MIMEType,
		"application/octet-stream",
		"application/zip",
	}
)

// UploadValidatorImpl implements the interfaces.UploadValidator interface
type UploadValidatorImpl struct{}

// NewUploadValidator creates a new upload validator
func NewUploadValidator() interfaces.UploadValidator {
	return &UploadValidatorImpl{}
}

// ValidateUpload accepts .docx files only. The declared content type may be
// empty; browsers that do not know the type send application/octet-stream.
func (v *UploadValidatorImpl) ValidateUpload(filename, contentType string, head []byte) error {
	name := strings.TrimSpace(filename)
	if name == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	if len(name) > maxFilenameLength {
		return fmt.Errorf("filename too long (max %d characters)", maxFilenameLength)
	}

	lower := strings.ToLower(name)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("filename contains dangerous content")
		}
	}

	if strings.ContainsAny(name, "\x00/\\") {
		return fmt.Errorf("filename contains invalid characters")
	}

	if v.hasExcessiveRepetition(name) {
		return fmt.Errorf("filename contains excessive repetition")
	}

	if filepath.Ext(lower) != ".docx" {
		return fmt.Errorf("only .docx files are accepted")
	}

	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return fmt.Errorf("invalid content type: %s", contentType)
		}
		allowed := false
		for _, t := range allowedContentTypes {
			if mediaType == t {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("unsupported content type: %s", mediaType)
		}
	}

	if !bytes.HasPrefix(head, zipMagic) {
		return fmt.Errorf("file is not a .docx document")
	}

	return nil
}

// ValidateID validates analysis IDs: positive integers without whitespace
func (v *UploadValidatorImpl) ValidateID(input string) (int64, error) {
	if input == "" {
		return -1, fmt.Errorf("input cannot be empty")
	}

	if strings.TrimSpace(input) != input {
		return -1, fmt.Errorf("input contains invalid characters. Only numeric characters are allowed")
	}

	id, err := strconv.ParseInt(input, 10, 64)
	if err != nil {
		return -1, fmt.Errorf("input contains invalid characters. Only numeric characters are allowed")
	}

	if id <= 0 {
		return -1, fmt.Errorf("id must be a positive number")
	}

	return id, nil
}

// ValidatePage validates history page numbers. An empty input is page 1.
func (v *UploadValidatorImpl) ValidatePage(input string) (int, error) {
	if input == "" {
		return 1, nil
	}

	page, err := strconv.Atoi(input)
	if err != nil {
		return -1, fmt.Errorf("page must be a number")
	}

	if page < 1 || page > maxPage {
		return -1, fmt.Errorf("page must be between 1 and %d", maxPage)
	}

	return page, nil
}

// SanitizeFilename keeps the base name of an upload and strips characters
// outside letters, digits and safe punctuation
func SanitizeFilename(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)
	if strings.Trim(name, ".") == "" {
		return "document.docx"
	}
	if len(name) > maxFilenameLength {
		ext := filepath.Ext(name)
		if len(ext) > 16 {
			ext = ""
		}
		name = strings.ToValidUTF8(name[:maxFilenameLength-len(ext)], "") + ext
	}
	return name
}

// hasExcessiveRepetition checks for potential DoS patterns with excessive character repetition
func (v *UploadValidatorImpl) hasExcessiveRepetition(input string) bool {
	// Check for the same character repeated more than 10 times consecutively
	for i := 0; i < len(input)-10; i++ {
		allSame := true
		for j := 1; j <= 10; j++ {
			if input[i] != input[i+j] {
				allSame = false
				break
			}
		}
		if allSame {
			return true
		}
	}
	return false
}
