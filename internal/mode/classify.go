package mode

import (
	"regexp"
	"sort"
	"strings"
)

// Scoring constants. A regex hit is a definite signal; keyword hits build
// confidence from a 0.6 base, one step per matched keyword up to the cap.
const (
	regexConfidence = 1.0
	keywordBase     = 0.6
	keywordStep     = 0.1
	keywordCap      = 4
)

// Match is the classification outcome. Mode is nil when nothing matched.
// Matched lists the keywords or regex patterns that fired, in pattern order.
type Match struct {
	Mode       *Mode
	Confidence float64
	Matched    []string
}

// Classify scores query against the given modes and returns the best match.
//
// Modes are evaluated by priority (descending); ties keep the slice order,
// which for registry-provided slices is registration order. A mode wins only
// by strictly exceeding the best confidence seen so far, so equal scores
// resolve to the earlier mode. Confidence never exceeds 1.0 and a miss
// returns the zero Match.
//
// Classify is pure: it reads nothing but its arguments and leaves the slice
// untouched. Invalid regex patterns are skipped.
func Classify(query string, modes []*Mode) Match {
	if strings.TrimSpace(query) == "" || len(modes) == 0 {
		return Match{}
	}

	ordered := make([]*Mode, len(modes))
	copy(ordered, modes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Patterns.Priority > ordered[j].Patterns.Priority
	})

	var best Match
	for _, m := range ordered {
		confidence, matched := score(query, m)
		if confidence > best.Confidence {
			best = Match{Mode: m, Confidence: confidence, Matched: matched}
			if best.Confidence >= regexConfidence {
				// Nothing can exceed a definite match.
				break
			}
		}
	}
	return best
}

// score rates one mode against the query.
func score(query string, m *Mode) (float64, []string) {
	for _, pattern := range m.Patterns.Regexes {
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		if re.MatchString(query) {
			return regexConfidence, []string{pattern}
		}
	}

	lower := strings.ToLower(query)
	var matched []string
	for _, kw := range m.Patterns.Keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	if len(matched) == 0 {
		return 0, nil
	}

	steps := min(len(matched), keywordCap)
	confidence := keywordBase + keywordStep*float64(steps)
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence, matched
}
