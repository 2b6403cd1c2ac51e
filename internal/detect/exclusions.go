package detect

import "strings"

// Exclusions are the Investment Company Act exclusions a fund relies on.
type Exclusions struct {
	C1 bool `json:"3c1"`
	C7 bool `json:"3c7"`
}

var (
	c7Markers = []string{"3C.7", "3(C)(7)", "3C7"}
	c1Markers = []string{"3C.1", "3(C)(1)", "3C1"}
)

// ParseExclusions reads the federal exemptions list of an offering notice.
// "3C.7", "3(C)(7)" and "3C7" mark 3(c)(7); "3C.1", "3(C)(1)" and "3C1" mark
// 3(c)(1). A bare "3C" item means 3(c)(1) unless a 3(c)(7) marker is present.
func ParseExclusions(text string) Exclusions {
	upper := strings.ToUpper(text)
	compact := strings.Join(strings.Fields(upper), "")

	var ex Exclusions
	ex.C7 = containsAny(compact, c7Markers)
	ex.C1 = containsAny(compact, c1Markers)

	if !ex.C1 && !ex.C7 {
		items := strings.FieldsFunc(upper, func(r rune) bool {
			return r == ',' || r == ';' || r == '|' || r == '/' || r == ' ' || r == '\t' || r == '\n'
		})
		for _, item := range items {
			if item == "3C" {
				ex.C1 = true
				break
			}
		}
	}
	return ex
}

func containsAny(value string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(value, n) {
			return true
		}
	}
	return false
}
