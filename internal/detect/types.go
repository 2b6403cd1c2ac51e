package detect

import (
	"strings"
	"unicode"
)

// typeCategories maps a canonical fund category to the wordings that denote it.
var typeCategories = []struct {
	canonical string
	variants  []string
}{
	{"pe", []string{"private equity", "privateequity", "pe fund", "buyout"}},
	{"vc", []string{"venture capital", "venturecapital", "venture", "vc fund"}},
	{"hedge", []string{"hedge fund", "hedgefund", "hedge"}},
	{"re", []string{"real estate", "realestate", "re fund"}},
}

// vcSynonyms are the fund type wordings permitted under the venture capital
// adviser exemption.
var vcSynonyms = []string{"venture", "vc"}

// typeWords lower-cases a declared type and reduces it to single-space
// separated words, padded so variants can be matched on word boundaries.
func typeWords(fundType string) string {
	fields := strings.FieldsFunc(strings.ToLower(fundType), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return " " + strings.Join(fields, " ") + " "
}

func inCategory(words, canonical string, variants []string) bool {
	if words == " "+canonical+" " {
		return true
	}
	for _, v := range variants {
		if strings.Contains(words, " "+v+" ") {
			return true
		}
	}
	return false
}

// TypeCategories returns every canonical category the declared type falls
// in.
func TypeCategories(fundType string) []string {
	words := typeWords(fundType)
	var out []string
	for _, c := range typeCategories {
		if inCategory(words, c.canonical, c.variants) {
			out = append(out, c.canonical)
		}
	}
	return out
}

// TypeCategory returns the first canonical category the declared type falls
// in, or "".
func TypeCategory(fundType string) string {
	if categories := TypeCategories(fundType); len(categories) > 0 {
		return categories[0]
	}
	return ""
}

// TypesEquivalent reports whether two declared fund types describe the same
// kind of fund: equal ignoring case and surrounding space, or sharing any
// category.
func TypesEquivalent(a, b string) bool {
	if lowerTrim(a) == lowerTrim(b) {
		return true
	}
	shared := map[string]bool{}
	for _, c := range TypeCategories(a) {
		shared[c] = true
	}
	for _, c := range TypeCategories(b) {
		if shared[c] {
			return true
		}
	}
	return false
}

// permittedUnderVCExemption reports whether a declared type is allowed for an
// adviser relying on the venture capital exemption. Blank types carry no
// evidence either way.
func permittedUnderVCExemption(fundType string) bool {
	value := lowerTrim(fundType)
	if value == "" {
		return true
	}
	for _, s := range vcSynonyms {
		if strings.Contains(value, s) {
			return true
		}
	}
	return false
}
