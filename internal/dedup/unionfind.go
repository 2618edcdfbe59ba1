package dedup

import (
	"sort"
	"strings"

	"github.com/Donnadieu/Epstein-File-Explorer-sub002/internal/analysis"
)

// Person is one deduplicated roster entry.
type Person struct {
	Name          string            `json:"name"`
	TotalMentions int               `json:"totalMentions"`
	DocCount      int               `json:"docCount"`
	TopRole       string            `json:"role"`
	TopCategory   analysis.Category `json:"category"`
}

// categoryRank orders categories by specificity; lower wins.
var categoryRank = map[analysis.Category]int{
	analysis.CategoryKeyFigure:      0,
	analysis.CategoryAssociate:      1,
	analysis.CategoryVictim:         2,
	analysis.CategoryWitness:        3,
	analysis.CategoryLegal:          4,
	analysis.CategoryPolitical:      5,
	analysis.CategoryLawEnforcement: 6,
	analysis.CategoryStaff:          7,
	analysis.CategoryOther:          8,
}

// unionFind is a disjoint-set over indices with union by rank and path
// compression.
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.rank[ra] < uf.rank[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	if uf.rank[ra] == uf.rank[rb] {
		uf.rank[ra]++
	}
}

// Deduplicate clusters aggregates whose names the matcher merges and
// collapses each cluster to one roster entry. Pairwise comparison is
// quadratic, which is fine at the corpus scale of hundreds to low
// thousands of names. Mention totals are conserved: the output sum
// equals the input sum.
func Deduplicate(aggs []PersonAggregate, matcher *NameMatcher) []Person {
	if matcher == nil {
		matcher = NewNameMatcher(DefaultMatchConfig())
	}
	uf := newUnionFind(len(aggs))
	for i := 0; i < len(aggs); i++ {
		for j := i + 1; j < len(aggs); j++ {
			if matcher.ShouldMerge(aggs[i].Name, aggs[j].Name) {
				uf.union(i, j)
			}
		}
	}

	clusters := map[int][]int{}
	for i := range aggs {
		root := uf.find(i)
		clusters[root] = append(clusters[root], i)
	}

	out := make([]Person, 0, len(clusters))
	for _, members := range clusters {
		out = append(out, collapse(aggs, members))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalMentions != out[j].TotalMentions {
			return out[i].TotalMentions > out[j].TotalMentions
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// collapse folds one cluster into a roster entry. The canonical name is
// the highest-mention member's; the role comes from the highest-mention
// member with a usable role; the category is the most specific seen.
func collapse(aggs []PersonAggregate, members []int) Person {
	// Highest mentions first, name as tiebreak for determinism.
	sort.Slice(members, func(i, j int) bool {
		a, b := aggs[members[i]], aggs[members[j]]
		if a.TotalMentions != b.TotalMentions {
			return a.TotalMentions > b.TotalMentions
		}
		return a.Name < b.Name
	})

	canonical := aggs[members[0]]
	p := Person{
		Name:        canonical.Name,
		TopRole:     topRole(canonical),
		TopCategory: analysis.CategoryOther,
	}

	docs := map[string]bool{}
	for _, idx := range members {
		m := aggs[idx]
		p.TotalMentions += m.TotalMentions
		for _, d := range m.Documents {
			docs[d] = true
		}
		if p.TopRole == "" {
			p.TopRole = topRole(m)
		}
		if cat, ok := topCategory(m); ok && categoryRank[cat] < categoryRank[p.TopCategory] {
			p.TopCategory = cat
		}
	}
	p.DocCount = len(docs)
	if p.TopRole == "" {
		p.TopRole = "Unknown"
	}
	return p
}

// topRole picks the member's most-voted role, skipping "Unknown".
func topRole(a PersonAggregate) string {
	best, bestCount := "", 0
	for role, count := range a.RoleCounts {
		if strings.EqualFold(role, "unknown") {
			continue
		}
		if count > bestCount || (count == bestCount && role < best) {
			best, bestCount = role, count
		}
	}
	return best
}

// topCategory picks the member's most-voted category, specificity as
// tiebreak.
func topCategory(a PersonAggregate) (analysis.Category, bool) {
	var best analysis.Category
	bestCount := 0
	found := false
	for cat, count := range a.CategoryCounts {
		if !found || count > bestCount ||
			(count == bestCount && categoryRank[cat] < categoryRank[best]) {
			best, bestCount, found = cat, count, true
		}
	}
	return best, found
}
