package dedup

import "strings"

// MatchConfig holds the fuzzy-matching thresholds. The defaults are
// empirically tuned against a labeled sample; treat them as tunables,
// not derived constants.
type MatchConfig struct {
	// MinCoreLen is the minimum length of a "first + last" core for a
	// suffix-stripped comparison to count.
	MinCoreLen int
	// MinConcatLen gates the space-removed concatenation rule.
	MinConcatLen int
	// MinLastLen gates the same-last-name rule.
	MinLastLen int
	// MinFuzzyFirstLen gates Levenshtein matching on first names.
	MinFuzzyFirstLen int
	// MinFuzzyLastLen gates Levenshtein matching on last names.
	MinFuzzyLastLen int
	// MinStrictFuzzyLastLen gates the canonical-first + fuzzy-last rule.
	MinStrictFuzzyLastLen int
	// MinWholeNameLen gates whole-name Levenshtein matching.
	MinWholeNameLen int
	// MinContainLen gates the prefix/containment rule.
	MinContainLen int
	// MaxEditDistance is the Levenshtein ceiling for every fuzzy rule.
	MaxEditDistance int
}

// DefaultMatchConfig trades recall for precision: merges require
// either long shared cores or multiple agreeing signals.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		MinCoreLen:            6,
		MinConcatLen:          6,
		MinLastLen:            3,
		MinFuzzyFirstLen:      4,
		MinFuzzyLastLen:       5,
		MinStrictFuzzyLastLen: 6,
		MinWholeNameLen:       8,
		MinContainLen:         8,
		MaxEditDistance:       2,
	}
}

var nameSuffixes = map[string]bool{
	"jr": true, "sr": true, "ii": true, "iii": true, "iv": true, "esq": true,
}

// nicknames maps common short forms to canonical first names.
var nicknames = map[string]string{
	"bob": "robert", "rob": "robert", "bobby": "robert",
	"bill": "william", "billy": "william", "will": "william", "liam": "william",
	"jeff": "jeffrey", "jeffry": "jeffrey",
	"mike": "michael", "mick": "michael",
	"jim": "james", "jimmy": "james", "jamie": "james",
	"dick": "richard", "rick": "richard", "rich": "richard", "richie": "richard",
	"tom": "thomas", "tommy": "thomas",
	"dave": "david",
	"dan": "daniel", "danny": "daniel",
	"chris": "christopher",
	"ken": "kenneth", "kenny": "kenneth",
	"steve": "steven", "stevie": "steven",
	"ed": "edward", "eddie": "edward", "ted": "edward",
	"tony": "anthony",
	"andy": "andrew", "drew": "andrew",
	"alex": "alexander",
	"joe": "joseph", "joey": "joseph",
	"larry": "lawrence",
	"nick": "nicholas",
	"pat": "patricia", "patty": "patricia",
	"liz": "elizabeth", "beth": "elizabeth", "betty": "elizabeth",
	"peggy": "margaret", "meg": "margaret",
	"kate": "katherine", "kathy": "katherine", "katie": "katherine",
	"sue": "susan", "susie": "susan",
	"jen": "jennifer", "jenny": "jennifer",
	"ginny": "virginia",
	"sandy": "sandra",
	"debbie": "deborah", "deb": "deborah",
	"les": "leslie",
	"greg": "gregory",
	"sam": "samuel",
	"ben": "benjamin",
	"don": "donald", "donny": "donald",
}

// NameMatcher decides whether two normalized names denote the same
// individual. All methods expect lower-cased, whitespace-normalized
// input; ShouldMerge is symmetric.
type NameMatcher struct {
	cfg MatchConfig
}

func NewNameMatcher(cfg MatchConfig) *NameMatcher {
	return &NameMatcher{cfg: cfg}
}

// ShouldMerge runs the decision chain; any rule returning true merges
// the pair.
func (m *NameMatcher) ShouldMerge(a, b string) bool {
	a = normalizeName(a)
	b = normalizeName(b)
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}

	aTok := tokenizeName(a)
	bTok := tokenizeName(b)

	// Suffix-stripped first+last core.
	if core := m.coreName(aTok); core != "" && core == m.coreName(bTok) && len(core) >= m.cfg.MinCoreLen {
		return true
	}

	// Space-removed concatenation catches tokenization artifacts.
	aFlat := strings.ReplaceAll(a, " ", "")
	bFlat := strings.ReplaceAll(b, " ", "")
	if aFlat == bFlat && len(aFlat) >= m.cfg.MinConcatLen {
		return true
	}

	aFirst, aLast := firstLast(aTok)
	bFirst, bLast := firstLast(bTok)
	if aFirst == "" || bFirst == "" || aLast == "" || bLast == "" {
		return false
	}

	// Same last name with an agreeing first name.
	if aLast == bLast && len(aLast) >= m.cfg.MinLastLen && m.firstNamesMatch(aFirst, bFirst) {
		return true
	}

	// Fuzzy last name with an agreeing first name.
	if m.fuzzyEqual(aLast, bLast, m.cfg.MinFuzzyLastLen) && m.firstNamesMatch(aFirst, bFirst) {
		return true
	}

	// Identical canonical first with a slightly longer fuzzy-last gate.
	if canonicalFirst(aFirst) == canonicalFirst(bFirst) &&
		m.fuzzyEqual(aLast, bLast, m.cfg.MinStrictFuzzyLastLen) {
		return true
	}

	// Last-name prefix containment ("mennin" vs "menninger") with the
	// exact same first name.
	if aFirst == bFirst && lastNamePrefix(aLast, bLast, m.cfg.MinLastLen) {
		return true
	}

	// Whole-name edit distance with a shared token anchor.
	if len(a) >= m.cfg.MinWholeNameLen && len(b) >= m.cfg.MinWholeNameLen &&
		levenshtein(a, b) <= m.cfg.MaxEditDistance &&
		(aFirst == bFirst || aLast == bLast) {
		return true
	}

	// Containment: a long short name embedded token-aligned in a longer.
	if m.contained(a, b) || m.contained(b, a) {
		return true
	}

	return false
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// tokenizeName splits a name and drops suffixes and punctuation.
func tokenizeName(s string) []string {
	var out []string
	for _, tok := range strings.Fields(s) {
		tok = strings.Trim(tok, ".,")
		if tok == "" || nameSuffixes[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// coreName is "first last" with middle tokens dropped, for names of
// two to five words.
func (m *NameMatcher) coreName(tok []string) string {
	if len(tok) < 2 || len(tok) > 5 {
		return ""
	}
	return tok[0] + " " + tok[len(tok)-1]
}

func firstLast(tok []string) (string, string) {
	if len(tok) < 2 {
		return "", ""
	}
	return tok[0], tok[len(tok)-1]
}

// firstNamesMatch applies the first-name rules: exact, one-character
// initial, mutual prefix, nickname canonicalization, or edit distance.
func (m *NameMatcher) firstNamesMatch(a, b string) bool {
	if a == b {
		return true
	}
	if len(a) == 1 && strings.HasPrefix(b, a) {
		return true
	}
	if len(b) == 1 && strings.HasPrefix(a, b) {
		return true
	}
	if len(a) >= 3 && len(b) >= 3 && (strings.HasPrefix(a, b) || strings.HasPrefix(b, a)) {
		return true
	}
	if canonicalFirst(a) == canonicalFirst(b) {
		return true
	}
	if len(a) >= m.cfg.MinFuzzyFirstLen && len(b) >= m.cfg.MinFuzzyFirstLen &&
		levenshtein(a, b) <= m.cfg.MaxEditDistance {
		return true
	}
	return false
}

func canonicalFirst(name string) string {
	if canon, ok := nicknames[name]; ok {
		return canon
	}
	return name
}

func (m *NameMatcher) fuzzyEqual(a, b string, minLen int) bool {
	if len(a) < minLen || len(b) < minLen {
		return false
	}
	return levenshtein(a, b) <= m.cfg.MaxEditDistance
}

// lastNamePrefix reports whether one last name is a proper prefix of
// the other, with the shorter at least minLen+2 characters.
func lastNamePrefix(a, b string, minLen int) bool {
	if a == b {
		return false
	}
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	return len(short) >= minLen+2 && strings.HasPrefix(long, short)
}

// contained reports whether short is a prefix of long or appears
// token-aligned inside it.
func (m *NameMatcher) contained(short, long string) bool {
	if len(short) < m.cfg.MinContainLen || len(short) >= len(long) {
		return false
	}
	if strings.HasPrefix(long, short+" ") {
		return true
	}
	idx := strings.Index(long, " "+short)
	if idx >= 0 {
		end := idx + 1 + len(short)
		return end == len(long) || long[end] == ' '
	}
	return false
}

// levenshtein is the classic two-row edit distance. Pack repos carry no
// string-metric dependency, so this stays local.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
