// Package identity turns free-text filer and adviser names into comparable
// keys and scores how likely two names denote the same organisation.
package identity

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Name is the normalised identity of a filer or entity name.
type Name struct {
	// Display is a human readable manager name: the "series of" operand as
	// written, or the cleaned entity name.
	Display string
	// Key is the canonical matching key; see Key.
	Key string
	// Series is true when the name used a "series of" construction.
	Series bool
}

var (
	legalSuffixTokens = map[string]bool{
		"LLC": true, "LP": true, "LLP": true, "LLLP": true, "PLLC": true,
		"INC": true, "INCORPORATED": true, "LTD": true, "LIMITED": true,
		"CORP": true, "CORPORATION": true,
	}
	// Spelled-out forms after punctuation has been replaced, e.g. "L.L.C." -> "L L C".
	legalSuffixSequences = [][]string{
		{"L", "L", "L", "P"},
		{"L", "L", "C"},
		{"L", "L", "P"},
		{"L", "P"},
	}
	seriesLikeTokens = map[string]bool{"SERIES": true, "CLASS": true, "TRANCHE": true}

	romanNumeral = regexp.MustCompile(`^[IVX]+$`)
	digitsOnly   = regexp.MustCompile(`^[0-9]+$`)
	shortLabel   = regexp.MustCompile(`^[A-Z0-9]{1,4}$`)

	seriesOfComma  = regexp.MustCompile(`(?i)[,\s]+a\s+series\s+of\s+(.+)$`)
	seriesOfDash   = regexp.MustCompile(`(?i)\s+-\s+series\s+of\s+(.+)$`)
	managerSeries  = regexp.MustCompile(`(?i)^(.+?)\s+-\s+series\s+[a-z0-9]+$`)
	cleanRoman     = regexp.MustCompile(`(?i)\s+(fund\s+)?[ivx]+$`)
	cleanFundDigit = regexp.MustCompile(`(?i)\s+fund\s+\d+$`)
	cleanDigits    = regexp.MustCompile(`\s+\d+$`)
	cleanSeries    = regexp.MustCompile(`(?i)\s*-?\s*(series|class|tranche)\s+[a-z0-9-]+$`)
	cleanLegal     = regexp.MustCompile(`(?i)(?:,\s*|\s+)(?:l\.?l\.?c\.?|l\.?p\.?|ltd\.?|limited|inc\.?|incorporated)$`)
)

var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize returns the display name and canonical key for a filer name.
func Normalize(name string) Name {
	display, series := SeriesManager(name)
	if !series {
		display = CleanEntityName(name)
	}
	return Name{Display: display, Key: Key(name), Series: series}
}

// Key canonicalises a name for matching. The "series of" operand replaces the
// whole name, legal suffixes and trailing fund numbers or series labels are
// removed, and the result is upper case without punctuation. Key is
// idempotent: Key(Key(x)) == Key(x).
func Key(name string) string {
	tokens := tokenize(name)
	for {
		next := extractSeriesOperand(tokens)
		next = stripTrailing(next)
		if len(next) == len(tokens) {
			break
		}
		tokens = next
	}
	return strings.Join(tokens, " ")
}

// SeriesManager extracts the controlling manager from "X, a series of Y",
// "X - Series of Y" and "Y - Series A" names. Nested constructions resolve to
// the outermost manager.
func SeriesManager(name string) (string, bool) {
	current := strings.TrimSpace(name)
	found := false
	for {
		operand, ok := seriesOperandText(current)
		if !ok || operand == current {
			break
		}
		current = operand
		found = true
	}
	if !found {
		if m := managerSeries.FindStringSubmatch(current); m != nil && IsCompanyName(m[1]) {
			return strings.TrimSpace(m[1]), true
		}
	}
	return current, found
}

func seriesOperandText(name string) (string, bool) {
	for _, re := range []*regexp.Regexp{seriesOfComma, seriesOfDash} {
		if m := re.FindStringSubmatchIndex(name); m != nil && m[0] > 0 {
			operand := strings.TrimRight(strings.TrimSpace(name[m[2]:m[3]]), " ,;")
			if operand != "" {
				return operand, true
			}
		}
	}
	return "", false
}

// CleanEntityName removes fund numbers, series or class labels and legal
// suffixes from an entity name, keeping its original casing.
func CleanEntityName(name string) string {
	original := strings.TrimSpace(name)
	cleaned := cleanLegal.ReplaceAllString(original, "")
	cleaned = cleanRoman.ReplaceAllString(cleaned, "")
	cleaned = cleanFundDigit.ReplaceAllString(cleaned, "")
	cleaned = cleanDigits.ReplaceAllString(cleaned, "")
	cleaned = cleanSeries.ReplaceAllString(cleaned, "")
	cleaned = cleanLegal.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimRight(strings.TrimSpace(cleaned), " ,-")
	if cleaned == "" {
		return original
	}
	return cleaned
}

// tokenize upper-cases, folds accents and splits on anything that is not a
// letter or digit.
func tokenize(name string) []string {
	upper := strings.ToUpper(name)
	if folded, _, err := transform.String(accentFolder, upper); err == nil {
		upper = strings.ToUpper(folded)
	}
	return strings.FieldsFunc(upper, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func extractSeriesOperand(tokens []string) []string {
	for i := 1; i+2 < len(tokens); i++ {
		if tokens[i] == "SERIES" && tokens[i+1] == "OF" {
			return tokens[i+2:]
		}
	}
	return tokens
}

// stripTrailing removes one legal suffix, fund number or series label from
// the end of tokens. It never removes the last remaining token.
func stripTrailing(tokens []string) []string {
	n := len(tokens)
	if n < 2 {
		return tokens
	}
	last := tokens[n-1]

	if legalSuffixTokens[last] {
		return tokens[:n-1]
	}
	for _, seq := range legalSuffixSequences {
		if n > len(seq) && hasSuffix(tokens, seq) {
			return tokens[:n-len(seq)]
		}
	}
	if romanNumeral.MatchString(last) || digitsOnly.MatchString(last) {
		if n > 2 && tokens[n-2] == "FUND" {
			return tokens[:n-2]
		}
		return tokens[:n-1]
	}
	if n > 2 && seriesLikeTokens[tokens[n-2]] && shortLabel.MatchString(last) {
		return tokens[:n-2]
	}
	return tokens
}

func hasSuffix(tokens, suffix []string) bool {
	offset := len(tokens) - len(suffix)
	for i, s := range suffix {
		if tokens[offset+i] != s {
			return false
		}
	}
	return true
}
