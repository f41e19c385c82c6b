// Package matcher decides whether a caller's question matches a stored one.
// It is pure: no I/O, deterministic for a given pair set.
package matcher

import (
	"sort"
	"strings"

	"github.com/cultiflow/voicedesk/internal/models"
)

// Tier names which rule produced a match, in precedence order.
type Tier string

const (
	TierExact   Tier = "exact"
	TierFuzzy   Tier = "fuzzy"
	TierKeyword Tier = "keyword"
)

// Normalize lower-cases, trims, and strips trailing sentence punctuation.
// Total: any input (including empty) yields a valid key.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimRight(s, ".?!,;:")
	return strings.TrimSpace(s)
}

// Match runs the three tiers over pairs in precedence order and returns the
// first hit. orgToken gates the keyword tier: the stored answer must contain
// it (lower-cased) for an identity-question fallback to fire. A miss returns
// (nil, "", false) and is not an error.
func Match(query string, pairs []models.QAPair, orgToken string) (*models.QAPair, Tier, bool) {
	q := Normalize(query)
	if q == "" {
		return nil, "", false
	}

	for i := range pairs {
		if Normalize(pairs[i].QuestionText) == q {
			return &pairs[i], TierExact, true
		}
	}

	// Fuzzy substring, only for multi-token queries so a single word never
	// matches every long question containing it. Longest stored question
	// first: most specific candidate wins.
	if len(strings.Fields(q)) >= 2 {
		byLen := make([]*models.QAPair, 0, len(pairs))
		for i := range pairs {
			byLen = append(byLen, &pairs[i])
		}
		sort.SliceStable(byLen, func(i, j int) bool {
			return len(Normalize(byLen[i].QuestionText)) > len(Normalize(byLen[j].QuestionText))
		})
		for _, p := range byLen {
			stored := Normalize(p.QuestionText)
			if stored == "" || len(strings.Fields(stored)) <= 1 {
				continue
			}
			if strings.Contains(q, stored) || strings.Contains(stored, q) {
				return p, TierFuzzy, true
			}
		}
	}

	// Keyword fallback for paraphrased identity questions. Intentionally
	// narrow: both query and stored question must carry the "company" and
	// "name" tokens, and the answer must mention the organization.
	if orgToken != "" && containsToken(q, "company") && containsToken(q, "name") {
		org := strings.ToLower(orgToken)
		for i := range pairs {
			stored := Normalize(pairs[i].QuestionText)
			if containsToken(stored, "company") && containsToken(stored, "name") &&
				strings.Contains(strings.ToLower(pairs[i].AnswerText), org) {
				return &pairs[i], TierKeyword, true
			}
		}
	}

	return nil, "", false
}

func containsToken(s, token string) bool {
	for _, f := range strings.Fields(s) {
		if strings.Trim(f, ".?!,;:'\"") == token {
			return true
		}
	}
	return false
}
