package analysis

import (
	"sort"
	"strings"
)

// Merge combines per-chunk results for one document into a single
// result. A single input is returned unchanged. Persons are merged by
// case-insensitive name with mention counts summed; connections, events,
// locations, and key facts are deduplicated preserving first-seen order.
func Merge(results []AnalysisResult) AnalysisResult {
	if len(results) == 0 {
		return AnalysisResult{}
	}
	if len(results) == 1 {
		return results[0]
	}

	out := AnalysisResult{
		FileName:     results[0].FileName,
		DataSet:      results[0].DataSet,
		DocumentType: results[0].DocumentType,
		DateOriginal: results[0].DateOriginal,
		AnalyzedAt:   results[0].AnalyzedAt,
		Persons:      []PersonMention{},
		Connections:  []Connection{},
		Events:       []Event{},
		Locations:    []string{},
		KeyFacts:     []string{},
	}

	personIdx := map[string]int{}
	connSeen := map[string]bool{}
	eventSeen := map[string]bool{}
	locSeen := map[string]bool{}
	factSeen := map[string]bool{}
	var summaries []string

	for _, r := range results {
		if out.DocumentType == "" {
			out.DocumentType = r.DocumentType
		}
		if out.DateOriginal == "" {
			out.DateOriginal = r.DateOriginal
		}
		if s := strings.TrimSpace(r.Summary); s != "" {
			summaries = append(summaries, s)
		}

		for _, p := range r.Persons {
			key := strings.ToLower(p.Name)
			if i, ok := personIdx[key]; ok {
				merged := &out.Persons[i]
				merged.MentionCount += p.MentionCount
				if len(p.Context) > len(merged.Context) {
					merged.Context = p.Context
				}
				if merged.Role == "" || strings.EqualFold(merged.Role, "unknown") {
					merged.Role = p.Role
				}
				continue
			}
			personIdx[key] = len(out.Persons)
			out.Persons = append(out.Persons, p)
		}

		for _, c := range r.Connections {
			if !connSeen[connectionKey(c)] {
				connSeen[connectionKey(c)] = true
				out.Connections = append(out.Connections, c)
			}
		}

		for _, e := range r.Events {
			key := strings.ToLower(e.Date + "|" + e.Title)
			if !eventSeen[key] {
				eventSeen[key] = true
				out.Events = append(out.Events, e)
			}
		}

		for _, loc := range r.Locations {
			key := strings.ToLower(loc)
			if !locSeen[key] {
				locSeen[key] = true
				out.Locations = append(out.Locations, loc)
			}
		}

		for _, f := range r.KeyFacts {
			key := strings.ToLower(f)
			if !factSeen[key] {
				factSeen[key] = true
				out.KeyFacts = append(out.KeyFacts, f)
			}
		}
	}

	out.Summary = strings.Join(summaries, " ")
	return out
}

// connectionKey is order-insensitive over the person pair so A-B and
// B-A collapse to one connection.
func connectionKey(c Connection) string {
	pair := []string{strings.ToLower(c.Person1), strings.ToLower(c.Person2)}
	sort.Strings(pair)
	return pair[0] + "|" + pair[1] + "|" + strings.ToLower(c.RelationshipType)
}
