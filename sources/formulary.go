// Package sources looks medications up in reference lists and remote
// databases: the WHO Essential Medicines List, openFDA, the EMA register and PubMed.
package sources

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/giygas/protoscan/logging"
	"github.com/giygas/protoscan/medicationparser"
	"golang.org/x/text/encoding/charmap"
)

// LoadFormulary reads a drug list with one name per line. Files that are not
// valid UTF-8 are decoded as ISO-8859-1. Blank lines and # comments are ignored.
func LoadFormulary(path string) (map[string]struct{}, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read formulary %s: %w", path, err)
	}

	names := make(map[string]struct{})
	scanner := bufio.NewScanner(utf8Reader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names[medicationparser.Fold(line)] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error in %s: %w", path, err)
	}

	logging.Debug("Formulary loaded", "path", path, "names", len(names))
	return names, nil
}

func utf8Reader(content []byte) io.Reader {
	if utf8.Valid(content) {
		return bytes.NewReader(content)
	}
	return charmap.ISO8859_1.NewDecoder().Reader(bytes.NewReader(content))
}

var (
	sectionNumber  = regexp.MustCompile(`^\d+(\.\d+)*\s`)
	validDrugName  = regexp.MustCompile(`^[a-z\s\-+]+$`)
	leadingBullet  = regexp.MustCompile(`^\s*[•▪◦\x{F000}-\x{F0FF}]\s*`)
	leadingDash    = regexp.MustCompile(`^\s*-\s*`)
	parenthesized  = regexp.MustCompile(`\(.*\)`)
	trailingMarker = regexp.MustCompile(`(\s*\[c\]|\s+a|\s*\*)\s*$`)
)

var dosageFormStarters = []string{
	"tablet", "injection", "oral liquid", "solid oral", "capsule",
	"powder for", "rectal", "transdermal", "solution", "concentrate",
	"inhalation", "pessary", "gel", "enema", "suppository", "lozenge",
}

func isDosageForm(line string) bool {
	line = strings.ToLower(strings.TrimSpace(line))
	for _, starter := range dosageFormStarters {
		if strings.HasPrefix(line, starter) {
			return true
		}
	}
	return false
}

func isHeaderOrFooter(line string) bool {
	lower := strings.ToLower(line)
	if strings.Contains(lower, "who model list") || strings.Contains(lower, "page") {
		return true
	}
	if sectionNumber.MatchString(line) {
		return true
	}
	switch strings.TrimSpace(lower) {
	case "complementary list", "therapeutic alternatives:":
		return true
	}
	return false
}

func cleanDrugName(line string) string {
	line = leadingBullet.ReplaceAllString(line, "")
	line = leadingDash.ReplaceAllString(line, "")
	line = parenthesized.ReplaceAllString(line, "")
	for {
		trimmed := trailingMarker.ReplaceAllString(line, "")
		if trimmed == line {
			break
		}
		line = trimmed
	}
	return strings.TrimSpace(line)
}

func isValidDrugName(name string) bool {
	return len(name) >= 3 && validDrugName.MatchString(name)
}

// BuildFormulary extracts drug names from the text of the WHO EML, one text
// line per input line. A name is kept when the following line starts with a
// dosage form, or when it is a "- name" entry under therapeutic alternatives.
// The result is sorted and de-duplicated.
func BuildFormulary(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read formulary text: %w", err)
	}

	names := make(map[string]struct{})
	inAlternatives := false
	for i, line := range lines {
		lower := strings.ToLower(strings.TrimSpace(line))
		if lower == "" || isHeaderOrFooter(line) || isDosageForm(line) {
			if strings.Contains(lower, "therapeutic alternatives") {
				inAlternatives = true
			} else if !strings.HasPrefix(lower, "-") {
				inAlternatives = false
			}
			continue
		}

		name := cleanDrugName(lower)
		if !isValidDrugName(name) {
			continue
		}

		if inAlternatives && strings.HasPrefix(strings.TrimSpace(line), "-") {
			names[name] = struct{}{}
			continue
		}

		if i+1 < len(lines) && isDosageForm(lines[i+1]) {
			names[name] = struct{}{}
		}
	}

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)
	return sorted, nil
}

// WriteFormulary writes names one per line
func WriteFormulary(w io.Writer, names []string) error {
	bw := bufio.NewWriter(w)
	for _, name := range names {
		if _, err := bw.WriteString(name + "\n"); err != nil {
			return fmt.Errorf("failed to write formulary: %w", err)
		}
	}
	return bw.Flush()
}
