package identity

import "unicode"

// MinDistinctiveLength is the shortest token treated as distinctive.
const MinDistinctiveLength = 3

// Tokens splits a name into upper-case, accent-folded words.
func Tokens(name string) []string {
	return tokenize(name)
}

// DistinctiveTokens returns up to limit tokens of name that identify it:
// alphabetic, at least MinDistinctiveLength letters, not boilerplate and not
// a legal suffix. Order follows the name; duplicates are dropped.
func DistinctiveTokens(name string, limit int) []string {
	var out []string
	seen := map[string]bool{}
	for _, tok := range tokenize(name) {
		if limit > 0 && len(out) == limit {
			break
		}
		if seen[tok] || !distinctive(tok) {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

func distinctive(tok string) bool {
	if len([]rune(tok)) < MinDistinctiveLength || genericWords[tok] || legalSuffixTokens[tok] {
		return false
	}
	for _, r := range tok {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
