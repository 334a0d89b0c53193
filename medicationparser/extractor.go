package medicationparser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/giygas/protoscan/medicationparser/entities"
	"golang.org/x/text/unicode/norm"
)

// amountPattern captures a number, an optional range upper bound and the token
// after it. Digit groups of three separated by a space or comma ("1 000",
// "1,000") are tried before a decimal comma.
var amountPattern = regexp.MustCompile(`([1-9]\d{0,2}(?:[ ,]\d{3})+(?:\.\d+)?|\d+(?:[.,]\d+)?)(?:\s*(?:-|–|—|to|до)\s*\d+(?:[.,]\d+)?)?\s*([\p{L}µμ%][\p{L}µμ/%.\d²]*)`)

// groupedNumber is a whole amount written with thousands separators
var groupedNumber = regexp.MustCompile(`^[1-9]\d{0,2}(?:[ ,]\d{3})+(?:\.\d+)?$`)

// stagingPattern matches Roman numerals of disease stages and classes, which
// would otherwise read as a route ("stage IV")
var stagingPattern = regexp.MustCompile(`(?:^|[^\p{L}])(?:stage|grade|class|type|nyha|gold|стади\p{L}*|степен\p{L}*|класс\p{L}*|тип\p{L}*)` +
	`[\s:.-]*(?:iv|i{1,3}|v)[abc]?(?:[^\p{L}]|$)`)

// Word boundaries that work for Cyrillic, unlike \b
const (
	leftBoundary  = `(?:^|[^\p{L}\d])`
	rightBoundary = `(?:[^\p{L}]|$)`
)

type routeRule struct {
	route   string
	pattern *regexp.Regexp
}

func bounded(alternatives string) *regexp.Regexp {
	return regexp.MustCompile(leftBoundary + `(` + alternatives + `)` + rightBoundary)
}

// routeRules are tried in order, first match wins
var routeRules = []routeRule{
	{entities.RouteIV, bounded(`в/в|внутривенн\p{L}*|i\.v\.?|iv|intravenous\p{L}*`)},
	{entities.RouteIM, bounded(`в/м|внутримышечн\p{L}*|i\.m\.?|im|intramuscular\p{L}*`)},
	{entities.RouteOral, bounded(`внутрь|перорал\p{L}*|per\s+os|p\.o\.?|po|orally|oral|by\s+mouth`)},
	{entities.RouteOther, bounded(`п/к|подкожн\p{L}*|s\.c\.?|sc|sq|subcutaneous\p{L}*|topical\p{L}*|местно|наружно|` +
		`inhal\p{L}*|ингаляц\p{L}*|rectal\p{L}*|ректальн\p{L}*|sublingual\p{L}*|сублингвальн\p{L}*|под\s+язык|` +
		`intranasal\p{L}*|интраназальн\p{L}*|transdermal\p{L}*|трансдермальн\p{L}*|vaginal\p{L}*|вагинальн\p{L}*|` +
		`intrathecal\p{L}*|эндолюмбальн\p{L}*|nebuli[sz]\p{L}*|небулайзер\p{L}*`)},
}

type frequencyRule struct {
	pattern *regexp.Regexp
	render  func(match []string) string
}

func fixed(value string) func([]string) string {
	return func([]string) string { return value }
}

func timesDaily(match []string) string {
	n, _ := strconv.Atoi(match[2])
	switch n {
	case 1:
		return "once daily"
	case 2:
		return "twice daily"
	default:
		return fmt.Sprintf("%d times daily", n)
	}
}

func everyHours(match []string) string {
	return "q" + match[2] + "h"
}

// frequencyRules are tried in order on the lower-cased text, first match wins
var frequencyRules = []frequencyRule{
	{bounded(`q\s?(\d+)\s?h`), func(m []string) string { return "q" + m[2] + "h" }},
	{bounded(`b\.?i\.?d\.?|t\.?i\.?d\.?|q\.?i\.?d\.?|q\.?d\.?|o\.?d\.?|q\.?h\.?s\.?|h\.?s\.?|p\.?r\.?n\.?`), abbreviation},
	{bounded(`(?:every|each)\s+(\d+)\s*(?:hours?|hrs?|h)`), everyHours},
	{bounded(`кажды[ех]\s+(\d+)\s*(?:час\p{L}*|ч)`), everyHours},
	{bounded(`(\d+)\s*(?:times?|x)\s*(?:a|per|/)?\s*(?:day|daily)`), timesDaily},
	{bounded(`(\d+)[\s-]*(?:раз\p{L}*|р\.?)\s*(?:в\s*(?:сутки|день|сут\.?)|/\s*сут\p{L}*)`), timesDaily},
	{bounded(`once\s+(?:a\s+day|daily)|once\s+per\s+day`), fixed("once daily")},
	{bounded(`twice\s+(?:a\s+day|daily)|twice\s+per\s+day`), fixed("twice daily")},
	{bounded(`three\s+times\s+(?:a\s+day|daily)`), fixed("3 times daily")},
	{bounded(`four\s+times\s+(?:a\s+day|daily)`), fixed("4 times daily")},
	{bounded(`daily|every\s+day|ежедневно`), fixed("once daily")},
	{bounded(`at\s+(?:night|bedtime)|на\s+ночь`), fixed("at bedtime")},
	{bounded(`as\s+needed|on\s+demand|по\s+требованию|при\s+необходимости`), fixed("as needed")},
	{bounded(`однократно|single\s+dose|once`), fixed("once")},
}

// abbreviation renders Latin frequency abbreviations upper-case without dots
func abbreviation(match []string) string {
	return strings.ToUpper(strings.ReplaceAll(match[1], ".", ""))
}

// Extractor splits free-text usage cells into structured fields
type Extractor struct {
	normalizer *Normalizer
}

func NewExtractor(normalizer *Normalizer) *Extractor {
	if normalizer == nil {
		normalizer = NewNormalizer()
	}
	return &Extractor{normalizer: normalizer}
}

// Extract parses a usage string. Fields it cannot recognise keep their zero
// value, except the route which defaults to "unspecified".
func (e *Extractor) Extract(usage string) entities.Usage {
	result := entities.Usage{Route: entities.RouteUnspecified}

	text := strings.ToLower(norm.NFKC.String(usage))
	if strings.TrimSpace(text) == "" {
		return result
	}

	e.extractAmount(text, &result)
	result.Route = e.extractRoute(text)
	result.Frequency = extractFrequency(text)
	return result
}

func (e *Extractor) extractAmount(text string, result *entities.Usage) {
	for _, idx := range amountPattern.FindAllStringSubmatchIndex(text, -1) {
		// Digits glued to a preceding letter belong to a name such as "B12"
		if idx[0] > 0 {
			if r, _ := utf8.DecodeLastRuneInString(text[:idx[0]]); unicode.IsLetter(r) {
				continue
			}
		}

		number := text[idx[2]:idx[3]]
		token := strings.TrimRight(text[idx[4]:idx[5]], ".")

		value, err := parseAmount(number)
		if err != nil {
			continue
		}

		if unit, ok := e.normalizer.Lookup(Units, token); ok {
			result.Dosage, result.Unit = value, unit
			return
		}
		if form, ok := e.normalizer.Lookup(Forms, token); ok {
			result.Dosage, result.Unit, result.Form = value, form, form
			return
		}
		if strings.Contains(token, "/") {
			result.Dosage, result.Unit = value, e.normalizer.Unit(token)
			return
		}
	}
}

// parseAmount reads a grouped number ("1,000", "1 000") as a whole amount and
// otherwise treats a comma as the decimal separator
func parseAmount(number string) (float64, error) {
	if groupedNumber.MatchString(number) {
		number = strings.NewReplacer(" ", "", ",", "").Replace(number)
	} else {
		number = strings.Replace(number, ",", ".", 1)
	}
	return strconv.ParseFloat(number, 64)
}

func (e *Extractor) extractRoute(text string) string {
	text = stagingPattern.ReplaceAllString(text, " ")
	for _, rule := range routeRules {
		m := rule.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if route, ok := e.normalizer.Lookup(Routes, m[1]); ok {
			return route
		}
		return rule.route
	}
	return entities.RouteUnspecified
}

func extractFrequency(text string) string {
	for _, rule := range frequencyRules {
		if m := rule.pattern.FindStringSubmatch(text); m != nil {
			return rule.render(m)
		}
	}
	return ""
}
