package medicationparser

import (
	"strings"

	"github.com/giygas/protoscan/logging"
	"github.com/giygas/protoscan/medicationparser/entities"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Vocabulary selects one of the normalizer lookup tables
type Vocabulary int

const (
	Units Vocabulary = iota
	Routes
	Forms
)

func (v Vocabulary) String() string {
	switch v {
	case Units:
		return "unit"
	case Routes:
		return "route"
	case Forms:
		return "form"
	default:
		return "unknown"
	}
}

var unitSynonyms = map[string][]string{
	"mg":     {"mg", "mgs", "milligram", "milligrams", "мг", "миллиграмм", "миллиграмма"},
	"g":      {"g", "gm", "gram", "grams", "г", "гр", "грамм", "грамма"},
	"mcg":    {"mcg", "µg", "ug", "microgram", "micrograms", "мкг", "микрограмм"},
	"ng":     {"ng", "нг"},
	"kg":     {"kg", "кг"},
	"ml":     {"ml", "mls", "millilitre", "milliliter", "мл"},
	"l":      {"l", "litre", "liter", "л"},
	"IU":     {"iu", "ме", "international units"},
	"units":  {"unit", "units", "u", "ед", "единиц", "единицы"},
	"%":      {"%"},
	"mmol":   {"mmol", "ммоль"},
	"mEq":    {"meq", "мэкв"},
	"mg/kg":  {"mg/kg", "мг/кг"},
	"mcg/kg": {"mcg/kg", "µg/kg", "мкг/кг"},
	"mg/m2":  {"mg/m2", "mg/m²", "мг/м2", "мг/м²"},
	"ml/kg":  {"ml/kg", "мл/кг"},
	"drop":   {"drop", "drops", "gtt", "капля", "капли", "капель", "кап"},
	"puff":   {"puff", "puffs", "вдох", "вдоха", "вдохов"},
}

var routeSynonyms = map[string][]string{
	entities.RouteOral: {"oral", "orally", "po", "p.o", "per os", "by mouth", "внутрь", "перорально", "пероральный"},
	entities.RouteIV:   {"iv", "i.v", "intravenous", "intravenously", "в/в", "внутривенно", "внутривенный", "внутривенная"},
	entities.RouteIM:   {"im", "i.m", "intramuscular", "intramuscularly", "в/м", "внутримышечно", "внутримышечный"},
	entities.RouteOther: {
		"sc", "s.c", "sq", "subcutaneous", "subcutaneously", "п/к", "подкожно",
		"topical", "topically", "местно", "наружно",
		"inhaled", "inhalation", "ингаляционно",
		"rectal", "rectally", "ректально",
		"sublingual", "sublingually", "сублингвально", "под язык",
		"intranasal", "интраназально",
		"transdermal", "трансдермально",
		"vaginal", "вагинально",
		"intrathecal", "эндолюмбально",
	},
}

var formSynonyms = map[string][]string{
	"tablet":      {"tab", "tabs", "tablet", "tablets", "табл", "таблетка", "таблетки", "таблеток", "тб"},
	"capsule":     {"cap", "caps", "capsule", "capsules", "капс", "капсула", "капсулы", "капсул"},
	"ampoule":     {"amp", "ampoule", "ampoules", "амп", "ампула", "ампулы"},
	"vial":        {"vial", "vials", "флакон", "фл"},
	"sachet":      {"sachet", "sachets", "саше", "пакетик", "пакетика"},
	"suppository": {"supp", "suppository", "suppositories", "свеча", "свечи", "суппозиторий"},
	"dose":        {"dose", "doses", "доза", "дозы"},
	"spray":       {"spray", "sprays", "впрыск", "впрыскивание"},
	"patch":       {"patch", "patches", "пластырь"},
}

// Normalizer maps extracted tokens to the canonical vocabulary
type Normalizer struct {
	tables map[Vocabulary]map[string]string
}

// NewNormalizer builds the lookup tables with folded keys
func NewNormalizer() *Normalizer {
	n := &Normalizer{tables: make(map[Vocabulary]map[string]string, 3)}
	n.tables[Units] = invert(unitSynonyms)
	n.tables[Routes] = invert(routeSynonyms)
	n.tables[Forms] = invert(formSynonyms)
	return n
}

func invert(synonyms map[string][]string) map[string]string {
	table := make(map[string]string)
	for canonical, keys := range synonyms {
		table[Fold(canonical)] = canonical
		for _, k := range keys {
			table[Fold(k)] = canonical
		}
	}
	return table
}

// Fold applies NFKC, lower-cases, collapses inner whitespace and drops a
// trailing period so that "Mg.", "mg" and "ｍｇ" compare equal
func Fold(token string) string {
	s := norm.NFKC.String(token)
	s = cases.Lower(language.Und).String(s)
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimRight(s, ".")
}

// Lookup returns the canonical form of token without logging misses
func (n *Normalizer) Lookup(v Vocabulary, token string) (string, bool) {
	table, ok := n.tables[v]
	if !ok {
		return "", false
	}
	canonical, ok := table[Fold(token)]
	return canonical, ok
}

// normalize returns the canonical form or the token unchanged, with a warning
func (n *Normalizer) normalize(v Vocabulary, token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	if canonical, ok := n.Lookup(v, token); ok {
		return canonical
	}
	logging.Warn("Unknown token passed through normalizer", "vocabulary", v.String(), "token", token)
	return token
}

func (n *Normalizer) Unit(token string) string {
	return n.normalize(Units, token)
}

func (n *Normalizer) Route(token string) string {
	return n.normalize(Routes, token)
}

func (n *Normalizer) Form(token string) string {
	return n.normalize(Forms, token)
}
