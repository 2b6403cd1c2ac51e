package identity

// Match is the registered name a candidate resolved to.
type Match struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
	Exact bool    `json:"exact"`
}

type matcherEntry struct {
	id      string
	name    string
	profile profile
}

// Matcher scores names against a fixed corpus of registered names. Profiles
// are computed once so repeated lookups only pay for the comparison.
type Matcher struct {
	entries []matcherEntry
	byKey   map[string]int
}

// NewMatcher returns an empty matcher.
func NewMatcher() *Matcher {
	return &Matcher{byKey: map[string]int{}}
}

// Add registers a name under id. Blank names are ignored; the first entry
// wins when two names share a normalised form.
func (m *Matcher) Add(id, name string) {
	p := newProfile(name)
	if p.normalized == "" {
		return
	}
	if _, exists := m.byKey[p.normalized]; !exists {
		m.byKey[p.normalized] = len(m.entries)
	}
	m.entries = append(m.entries, matcherEntry{id: id, name: name, profile: p})
}

// Len returns the number of registered names.
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Best returns the highest scoring registered name at or above
// MatchThreshold. Exact normalised matches short-circuit the scan; ties keep
// the earliest registered name.
func (m *Matcher) Best(name string) (Match, bool) {
	if m == nil || len(m.entries) == 0 {
		return Match{}, false
	}
	p := newProfile(name)
	if p.normalized == "" {
		return Match{}, false
	}
	if idx, ok := m.byKey[p.normalized]; ok {
		e := m.entries[idx]
		return Match{ID: e.id, Name: e.name, Score: 1, Exact: true}, true
	}

	best := -1
	bestScore := 0.0
	for i := range m.entries {
		s := score(p, m.entries[i].profile)
		if s >= MatchThreshold && s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 {
		return Match{}, false
	}
	e := m.entries[best]
	return Match{ID: e.id, Name: e.name, Score: bestScore}, true
}

// FirstMatch tries each candidate in order and returns the first that matches.
func (m *Matcher) FirstMatch(candidates []Candidate) (Match, Candidate, bool) {
	for _, c := range candidates {
		if match, ok := m.Best(c.Name); ok {
			return match, c, true
		}
	}
	return Match{}, Candidate{}, false
}
