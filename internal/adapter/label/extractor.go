// Package label finds declared ingredients in product label text.
package label

import (
	"regexp"
	"strings"
	"unicode"

	"nhp/internal/domain"
)

type headerKind int

const (
	enterNonMedicinal headerKind = iota
	enterMedicinal
	leaveSection
)

type header struct {
	kind headerKind
	re   *regexp.Regexp
}

// headerPattern anchors a header at line start and captures whatever follows it on the line.
func headerPattern(p string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^\s*(?:` + p + `)\b\s*(?:\([^)]*\))?\s*[:\-]?\s*(.*)$`)
}

// headers is evaluated in order. Non-medicinal headers come before medicinal ones so that
// "Non-medicinal ingredients" never opens the medicinal section.
var headers = []header{
	{enterNonMedicinal, headerPattern(`non[- ]?medicinal ingredients?`)},
	{enterNonMedicinal, headerPattern(`inactive ingredients?`)},
	{enterNonMedicinal, headerPattern(`other ingredients?`)},
	{enterNonMedicinal, headerPattern(`excipients?`)},
	{enterNonMedicinal, regexp.MustCompile(`(?i)^\s*inactive\s*:\s*(.*)$`)},

	{enterMedicinal, headerPattern(`medicinal ingredients?`)},
	{enterMedicinal, headerPattern(`active ingredients?`)},
	{enterMedicinal, headerPattern(`each (?:tablet|capsule|softgel|caplet|serving|dose|ml) contains`)},
	{enterMedicinal, regexp.MustCompile(`(?i)^\s*active\s*:\s*(.*)$`)},
	{enterMedicinal, headerPattern(`section 8\b.*composition`)},

	{leaveSection, headerPattern(`total weight`)},
	{leaveSection, headerPattern(`directions`)},
	{leaveSection, headerPattern(`recommended (?:use|dose)`)},
	{leaveSection, headerPattern(`dose`)},
	{leaveSection, headerPattern(`warnings?`)},
	{leaveSection, headerPattern(`cautions?`)},
	{leaveSection, headerPattern(`storage`)},
	{leaveSection, headerPattern(`contra-?indications`)},
	{leaveSection, headerPattern(`known adverse`)},
	{leaveSection, headerPattern(`risk information`)},
}

var (
	amountRe      = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(billion CFU|mcg|µg|ug|mg|IU|mL|CFU|g|%)(?:\b|$|\s)`)
	nameRe        = regexp.MustCompile(`^(\pL[\pL\pN\s'/.\-]*?)(?:\s{2,}|\s\d|\t|:|$)`)
	parentheticRe = regexp.MustCompile(`\s*\([^)]*\)`)
	brandRe       = regexp.MustCompile(`(?i)\b(?:PharmaPure|MenaQ7|ppm)\b`)
	longDigitsRe  = regexp.MustCompile(`\s*\d{4,}`)
	punctRe       = regexp.MustCompile(`[,*:]`)
	spacesRe      = regexp.MustCompile(`\s+`)

	inspectionRe = regexp.MustCompile(`(?i)Item Name\s+([\w\s\-,]+?)\s*\(`)
	coaTitleRe   = regexp.MustCompile(`(?i)CERTIFICATE OF ANALYSIS[ \t]*\n([^\n]+)`)
	coaTestsRe   = regexp.MustCompile(`(?i)TESTS[ \t]*\n([^\n]+)`)
	genericRes   = []*regexp.Regexp{
		regexp.MustCompile(`(?im)PRODUCT NAME[ \t]*[: \t]+([\w \t()\-,]+)$`),
		regexp.MustCompile(`(?im)DESCRIPTION[ \t]*[: \t]+([\w \t,]+)$`),
		regexp.MustCompile(`(?im)Material Description:[ \t]*([\w \t]+)$`),
	}
)

var (
	// boilerplateRe matches registration, lot and manufacturer lines that follow ingredient lists.
	boilerplateRe = regexp.MustCompile(`(?i)^\s*(?:NPN|DIN(?:-HM)?|Lot|Exp(?:iry)?|Best before|Manufactured|Distributed|Made in|Product of)\b`)
	// tableHeaderRe matches column heading rows of ingredient tables.
	tableHeaderRe = regexp.MustCompile(`(?i)^\s*(?:ingredient name|ingredient|name)\s*(?:\s{2,}|\t|\|)\s*(?:quantity|amount|potency|source|strength)\b|^\s*ingredient names?\s*$`)
)

// columnLabels are table headings that sit inside ingredient sections.
var columnLabels = map[string]bool{
	"ingredient":         true,
	"ingredients":        true,
	"quantity":           true,
	"amount":             true,
	"amount per serving": true,
	"potency":            true,
	"source":             true,
}

const maxNameWords = 7

// Extractor partitions label text into medicinal and non-medicinal ingredients
// using section headers.
type Extractor struct {
	singleFallback bool
}

// NewExtractor returns an Extractor. With singleFallback, documents without any section header
// are searched for a single product name (inspection forms, certificates of analysis).
func NewExtractor(singleFallback bool) *Extractor {
	return &Extractor{singleFallback: singleFallback}
}

// Extract returns ingredients in document order, deduplicated per section.
// A section ends at a leave header, at a label boilerplate line, or at the first blank line
// after it produced an entry.
func (e *Extractor) Extract(text string) []domain.Ingredient {
	var (
		out        []domain.Ingredient
		seen       = map[domain.Section]map[string]bool{}
		section    domain.Section
		produced   int
		sawHeaders bool
	)

	add := func(sec domain.Section, entry string) {
		ing, ok := parseEntry(entry, sec)
		if !ok {
			return
		}
		produced++
		key := strings.ToLower(ing.Name)
		if seen[sec] == nil {
			seen[sec] = map[string]bool{}
		}
		if seen[sec][key] {
			return
		}
		seen[sec][key] = true
		out = append(out, ing)
	}

	for _, line := range strings.Split(text, "\n") {
		if kind, rest, ok := matchHeader(line); ok {
			sawHeaders = true
			switch kind {
			case enterNonMedicinal:
				section = domain.SectionNonMedicinal
			case enterMedicinal:
				section = domain.SectionMedicinal
			default:
				section = ""
				continue
			}
			produced = 0
			for _, entry := range splitList(rest) {
				add(section, entry)
			}
			continue
		}
		if section == "" {
			continue
		}
		switch {
		case strings.TrimSpace(line) == "":
			if produced > 0 {
				section = ""
			}
			continue
		case boilerplateRe.MatchString(line):
			section = ""
			continue
		case tableHeaderRe.MatchString(line):
			continue
		}
		for _, entry := range splitList(line) {
			add(section, entry)
		}
	}

	if !sawHeaders && e.singleFallback {
		if name, ok := singleIngredient(text); ok {
			return []domain.Ingredient{{Name: name, Section: domain.SectionMedicinal}}
		}
	}
	return out
}

func matchHeader(line string) (headerKind, string, bool) {
	for _, h := range headers {
		if m := h.re.FindStringSubmatch(line); m != nil {
			return h.kind, strings.TrimSpace(m[1]), true
		}
	}
	return 0, "", false
}

// splitList splits on commas and semicolons outside parentheses.
func splitList(s string) []string {
	var (
		parts []string
		depth int
		start int
	)
	for i, r := range s {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		case ',', ';':
			if r == ',' && i > 0 && i+1 < len(s) && isDigit(s[i-1]) && isDigit(s[i+1]) {
				continue
			}
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])

	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func parseEntry(entry string, sec domain.Section) (domain.Ingredient, bool) {
	entry = strings.TrimLeftFunc(entry, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune("-•*·–", r)
	})

	var amount string
	if m := amountRe.FindStringSubmatch(entry); m != nil {
		amount = m[1] + " " + m[2]
	}

	m := nameRe.FindStringSubmatch(parentheticRe.ReplaceAllString(entry, ""))
	if m == nil {
		return domain.Ingredient{}, false
	}
	name, ok := CleanName(m[1])
	if !ok || columnLabels[strings.ToLower(name)] {
		return domain.Ingredient{}, false
	}
	return domain.Ingredient{Name: name, DeclaredAmount: amount, Section: sec}, true
}

// CleanName strips parentheticals, brand marks, ppm units, lot numbers and stray punctuation.
// "Oil" is kept so that "Fish Oil" stays distinct from "Fish".
// It reports false when what remains does not look like an ingredient name.
func CleanName(name string) (string, bool) {
	name = parentheticRe.ReplaceAllString(name, "")
	name = brandRe.ReplaceAllString(name, "")
	name = longDigitsRe.ReplaceAllString(name, "")
	name = punctRe.ReplaceAllString(name, "")
	name = strings.TrimSpace(spacesRe.ReplaceAllString(name, " "))
	name = strings.Trim(name, "-./ ")

	if len([]rune(name)) < 3 || len(strings.Fields(name)) > maxNameWords {
		return "", false
	}
	if strings.IndexFunc(name, unicode.IsLetter) < 0 {
		return "", false
	}
	return name, true
}

func singleIngredient(text string) (string, bool) {
	if m := inspectionRe.FindStringSubmatch(text); m != nil {
		if name, ok := CleanName(m[1]); ok {
			return name, true
		}
	}

	if strings.Contains(strings.ToLower(text), "certificate of analysis") {
		for _, re := range []*regexp.Regexp{coaTitleRe, coaTestsRe} {
			if m := re.FindStringSubmatch(text); m != nil {
				if name, ok := CleanName(m[1]); ok {
					return name, true
				}
			}
		}
	}

	for _, re := range genericRes {
		if m := re.FindStringSubmatch(text); m != nil {
			if name, ok := CleanName(m[1]); ok {
				return name, true
			}
		}
	}
	return "", false
}
