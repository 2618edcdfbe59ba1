// Package dedup collapses person mentions scattered across analyzed
// documents into a deduplicated roster of real individuals.
package dedup

import (
	"regexp"
	"sort"
	"strings"

	"github.com/Donnadieu/Epstein-File-Explorer-sub002/internal/analysis"
)

// PersonAggregate is all evidence for one person name across the
// corpus, before cross-name merging.
type PersonAggregate struct {
	Name          string
	TotalMentions int
	Documents     []string
	// RoleCounts and CategoryCounts tally per-document votes; the
	// deduplicator picks winners from these after merging.
	RoleCounts     map[string]int
	CategoryCounts map[analysis.Category]int
}

// MentionSource yields analyzed results one at a time, so aggregation
// works over a database cursor or a directory walk alike.
type MentionSource interface {
	Next() (analysis.TieredAnalysisResult, bool, error)
}

var (
	redactionPattern = regexp.MustCompile(`(?i)\[?\bredact`)
	doePattern       = regexp.MustCompile(`(?i)^(jane|john)\s+doe\b`)
	numericToken     = regexp.MustCompile(`^\d+$`)
	initialToken     = regexp.MustCompile(`^[A-Z]\.?$`)
)

// isAllInitials reports whether every token is a single-letter initial
// ("J. E."), which carries no resolvable identity.
func isAllInitials(name string) bool {
	for _, tok := range strings.Fields(name) {
		if !initialToken.MatchString(tok) {
			return false
		}
	}
	return true
}

// Keywords that mark a name as an organization rather than a person.
var orgKeywords = []string{
	"inc", "llc", "ltd", "corp", "corporation", "company", "co.",
	"foundation", "trust", "bank", "group", "associates", "partners",
	"department", "office", "bureau", "agency", "court", "county",
	"city", "state", "united states", "commission", "committee",
	"university", "school", "institute", "airlines", "aviation",
	"holdings", "enterprises", "management", "services", "fund",
	"police", "sheriff",
}

// Generic role words that appear as standalone "names" in transcripts.
var genericNames = map[string]bool{
	"the witness": true, "the court": true, "the deponent": true,
	"the victim": true, "the defendant": true, "the plaintiff": true,
	"unknown": true, "unknown female": true, "unknown male": true,
	"flight attendant": true, "housekeeper": true, "masseuse": true,
}

// IsLikelyPerson filters out redactions, placeholders, organizations,
// and generic role text. A real person name has at least two words.
func IsLikelyPerson(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || !strings.Contains(name, " ") {
		return false
	}
	if redactionPattern.MatchString(name) || doePattern.MatchString(name) {
		return false
	}
	if isAllInitials(name) {
		return false
	}
	lower := strings.ToLower(name)
	if genericNames[lower] {
		return false
	}
	for _, kw := range orgKeywords {
		if containsWord(lower, kw) {
			return false
		}
	}
	for _, tok := range strings.Fields(name) {
		if numericToken.MatchString(tok) {
			return false
		}
	}
	return true
}

func containsWord(haystack, word string) bool {
	idx := 0
	for {
		i := strings.Index(haystack[idx:], word)
		if i < 0 {
			return false
		}
		i += idx
		before := i == 0 || !isWordChar(haystack[i-1])
		afterIdx := i + len(word)
		after := afterIdx >= len(haystack) || !isWordChar(haystack[afterIdx])
		if before && after {
			return true
		}
		idx = i + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// Aggregate folds every person mention from src into per-name
// aggregates, filtering non-person names. Output is sorted by total
// mentions descending, then name, so runs are reproducible.
func Aggregate(src MentionSource) ([]PersonAggregate, error) {
	byKey := map[string]*PersonAggregate{}
	for {
		res, ok, err := src.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		for _, p := range res.Persons {
			name := strings.TrimSpace(p.Name)
			if !IsLikelyPerson(name) {
				continue
			}
			key := strings.ToLower(name)
			agg := byKey[key]
			if agg == nil {
				agg = &PersonAggregate{
					Name:           name,
					RoleCounts:     map[string]int{},
					CategoryCounts: map[analysis.Category]int{},
				}
				byKey[key] = agg
			}
			count := p.MentionCount
			if count < 1 {
				count = 1
			}
			agg.TotalMentions += count
			agg.Documents = appendUnique(agg.Documents, res.FileName)
			if role := strings.TrimSpace(p.Role); role != "" {
				agg.RoleCounts[role] += count
			}
			if analysis.ValidCategory(p.Category) {
				agg.CategoryCounts[p.Category] += count
			}
		}
	}

	out := make([]PersonAggregate, 0, len(byKey))
	for _, agg := range byKey {
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalMentions != out[j].TotalMentions {
			return out[i].TotalMentions > out[j].TotalMentions
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

// SliceSource adapts an in-memory result slice to MentionSource.
type SliceSource struct {
	Results []analysis.TieredAnalysisResult
	i       int
}

func (s *SliceSource) Next() (analysis.TieredAnalysisResult, bool, error) {
	if s.i >= len(s.Results) {
		return analysis.TieredAnalysisResult{}, false, nil
	}
	r := s.Results[s.i]
	s.i++
	return r, true, nil
}
