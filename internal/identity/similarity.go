package identity

import "strings"

// MatchThreshold is the minimum Similarity at which two names are treated as
// the same organisation.
const MatchThreshold = 0.8

// genericWords carry no identity on their own: two "X Capital Partners" firms
// must not match on boilerplate.
var genericWords = map[string]bool{
	"FUND": true, "FUNDS": true, "MANAGEMENT": true, "CAPITAL": true,
	"PARTNERS": true, "PARTNER": true, "INVESTMENTS": true, "INVESTMENT": true,
	"ADVISORS": true, "ADVISERS": true, "ADVISOR": true, "ADVISER": true,
	"VENTURES": true, "VENTURE": true, "HOLDINGS": true, "GROUP": true,
	"COMPANY": true, "CO": true, "THE": true, "OF": true, "AND": true, "GP": true,
	"I": true, "II": true, "III": true, "IV": true, "V": true, "VI": true,
	"VII": true, "VIII": true, "IX": true, "X": true,
}

type profile struct {
	normalized  string
	words       []string
	wordSet     map[string]struct{}
	distinctive map[string]struct{}
}

// newProfile prepares a name for scoring: upper case, no punctuation, legal
// suffix words removed wherever they appear.
func newProfile(name string) profile {
	tokens := tokenize(name)
	kept := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		if legalSuffixTokens[tokens[i]] {
			continue
		}
		if skip := legalSequenceAt(tokens, i); skip > 0 {
			i += skip - 1
			continue
		}
		kept = append(kept, tokens[i])
	}

	p := profile{
		normalized:  strings.Join(kept, " "),
		wordSet:     map[string]struct{}{},
		distinctive: map[string]struct{}{},
	}
	for _, w := range kept {
		if len(w) <= 1 {
			continue
		}
		p.words = append(p.words, w)
		p.wordSet[w] = struct{}{}
		if !genericWords[w] {
			p.distinctive[w] = struct{}{}
		}
	}
	return p
}

// legalSequenceAt returns the length of a spelled-out legal suffix starting at
// tokens[i] and ending the name, or 0.
func legalSequenceAt(tokens []string, i int) int {
	for _, seq := range legalSuffixSequences {
		if i > 0 && i+len(seq) == len(tokens) && hasSuffix(tokens, seq) {
			return len(seq)
		}
	}
	return 0
}

// Similarity scores how likely two names denote the same organisation, in
// [0,1]. The first applicable rule wins:
//
//	exact normalised match                       1.0
//	one normalised name contains the other       0.9
//	all distinctive words of the smaller set     0.95
//	at least half of the larger distinctive set  0.85
//	first two words equal                        0.85
//	otherwise shared words / larger word count
//
// Similarity is symmetric, and reflexive for every name that is not blank.
func Similarity(a, b string) float64 {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return 0
	}
	if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
		return 1
	}
	return score(newProfile(a), newProfile(b))
}

func score(p1, p2 profile) float64 {
	if p1.normalized == "" || p2.normalized == "" {
		return 0
	}
	if p1.normalized == p2.normalized {
		return 1
	}
	if strings.Contains(p1.normalized, p2.normalized) || strings.Contains(p2.normalized, p1.normalized) {
		return 0.9
	}
	if len(p1.words) == 0 || len(p2.words) == 0 {
		return 0
	}

	if len(p1.distinctive) > 0 && len(p2.distinctive) > 0 {
		shared := overlap(p1.distinctive, p2.distinctive)
		smaller := min(len(p1.distinctive), len(p2.distinctive))
		larger := max(len(p1.distinctive), len(p2.distinctive))
		if shared == smaller {
			return 0.95
		}
		if shared >= 1 && float64(shared)/float64(larger) >= 0.5 {
			return 0.85
		}
	}

	if len(p1.words) >= 2 && len(p2.words) >= 2 &&
		p1.words[0] == p2.words[0] && p1.words[1] == p2.words[1] {
		return 0.85
	}

	shared := overlap(p1.wordSet, p2.wordSet)
	larger := max(len(p1.wordSet), len(p2.wordSet))
	return float64(shared) / float64(larger)
}

func overlap(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}
