package analysis

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// GazetteerEntry is one known person the rule-based pass scans for.
// The dedupe stage emits entries in this shape as its roster output.
type GazetteerEntry struct {
	Name     string   `json:"name"`
	Role     string   `json:"role"`
	Category Category `json:"category"`
}

// DefaultGazetteer is the seed list of known individuals. The dedupe
// stage emits a refreshed roster that can replace this list between
// runs.
var DefaultGazetteer = []GazetteerEntry{
	{"Jeffrey Epstein", "Financier", CategoryKeyFigure},
	{"Ghislaine Maxwell", "Associate", CategoryKeyFigure},
	{"Jean-Luc Brunel", "Modeling agent", CategoryAssociate},
	{"Sarah Kellen", "Assistant", CategoryStaff},
	{"Nadia Marcinkova", "Associate", CategoryAssociate},
	{"Adriana Ross", "Assistant", CategoryStaff},
	{"Lesley Groff", "Executive assistant", CategoryStaff},
	{"Juan Alessi", "House manager", CategoryStaff},
	{"Alfredo Rodriguez", "House manager", CategoryStaff},
	{"Virginia Giuffre", "Accuser", CategoryVictim},
	{"Alan Dershowitz", "Attorney", CategoryLegal},
	{"Kenneth Starr", "Attorney", CategoryLegal},
	{"Jack Goldberger", "Attorney", CategoryLegal},
	{"Alexander Acosta", "U.S. Attorney", CategoryPolitical},
	{"Barry Krischer", "State Attorney", CategoryLegal},
	{"Joseph Recarey", "Detective", CategoryLawEnforcement},
	{"Michael Reiter", "Police chief", CategoryLawEnforcement},
	{"Prince Andrew", "Associate", CategoryAssociate},
	{"Bill Clinton", "Former president", CategoryPolitical},
	{"Donald Trump", "Businessman", CategoryPolitical},
	{"Les Wexner", "Businessman", CategoryAssociate},
	{"Glenn Dubin", "Financier", CategoryAssociate},
	{"David Rodgers", "Pilot", CategoryStaff},
	{"Larry Visoski", "Pilot", CategoryStaff},
}

// topicPattern maps an ordered topic regex to a document type. First
// match wins.
type topicPattern struct {
	re      *regexp.Regexp
	docType string
}

var topicPatterns = []topicPattern{
	{regexp.MustCompile(`(?i)\bflight\s+log`), "flight log"},
	{regexp.MustCompile(`(?i)\bdeposition\b`), "deposition"},
	{regexp.MustCompile(`(?i)\bgrand\s+jury\b`), "grand jury"},
	{regexp.MustCompile(`(?i)\bsearch\s+warrant\b`), "search warrant"},
	{regexp.MustCompile(`(?i)\bfbi\b.{0,40}\breport\b|\bfederal bureau of investigation\b`), "fbi report"},
	{regexp.MustCompile(`(?i)\bsubject:\s|\bfrom:.*@|\bemail\b`), "email"},
	{regexp.MustCompile(`(?i)\bmotion\b|\bplaintiff\b|\bdefendant\b|\bcourt\s+filing\b`), "court filing"},
	{regexp.MustCompile(`(?i)\bwire\s+transfer\b|\bbank\s+statement\b|\binvoice\b|\bfinancial\s+record\b`), "financial record"},
	{regexp.MustCompile(`(?i)\bcontact\s+list\b|\baddress\s+book\b|\brolodex\b`), "contact list"},
	{regexp.MustCompile(`(?i)\bproperty\s+record\b|\bdeed\b|\bparcel\b`), "property record"},
	{regexp.MustCompile(`(?i)\bpolice\s+report\b|\bincident\s+report\b`), "police report"},
}

const defaultDocumentType = "government record"

// datePattern matches the first date-like substring: a written month
// date, MM/DD/YYYY, or YYYY-MM-DD.
var datePattern = regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4}\b|\b\d{1,2}/\d{1,2}/\d{4}\b|\b\d{4}-\d{2}-\d{2}\b`)

var knownLocations = []string{
	"Palm Beach",
	"Little St. James",
	"Little Saint James",
	"New York",
	"Manhattan",
	"New Mexico",
	"Zorro Ranch",
	"Santa Fe",
	"Virgin Islands",
	"St. Thomas",
	"Mar-a-Lago",
	"Miami",
	"West Palm Beach",
	"Paris",
	"London",
	"Columbus",
	"Interlachen Road",
	"El Brillo Way",
	"East 71st Street",
}

var locationPatterns = compileLocationPatterns()

func compileLocationPatterns() map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(knownLocations))
	for _, loc := range knownLocations {
		out[loc] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(loc) + `\b`)
	}
	return out
}

// RuleBasedClassifier is the free Tier 0 pass: a pure gazetteer and
// regex scan with no I/O. It never fails and runs in time linear in the
// text length.
type RuleBasedClassifier struct {
	gazetteer []GazetteerEntry
	patterns  []*regexp.Regexp
	now       func() time.Time
}

// NewRuleBasedClassifier compiles word-boundary patterns for each
// gazetteer entry. A nil or empty gazetteer falls back to the default.
func NewRuleBasedClassifier(gazetteer []GazetteerEntry) *RuleBasedClassifier {
	if len(gazetteer) == 0 {
		gazetteer = DefaultGazetteer
	}
	c := &RuleBasedClassifier{gazetteer: gazetteer, now: time.Now}
	for _, e := range gazetteer {
		c.patterns = append(c.patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(e.Name)+`\b`))
	}
	return c
}

// Classify runs the Tier 0 pass over a document. Connections, events,
// and key facts are always empty at this tier.
func (c *RuleBasedClassifier) Classify(text, fileName, dataSet string) TieredAnalysisResult {
	res := TieredAnalysisResult{
		AnalysisResult: AnalysisResult{
			FileName:     fileName,
			DataSet:      dataSet,
			DocumentType: inferDocumentType(text),
			DateOriginal: datePattern.FindString(text),
			Persons:      []PersonMention{},
			Connections:  []Connection{},
			Events:       []Event{},
			Locations:    extractLocations(text),
			KeyFacts:     []string{},
			AnalyzedAt:   c.now().UTC(),
		},
		Tier: 0,
	}

	for i, e := range c.gazetteer {
		matches := c.patterns[i].FindAllStringIndex(text, -1)
		if len(matches) == 0 {
			continue
		}
		res.Persons = append(res.Persons, PersonMention{
			Name:         e.Name,
			Role:         e.Role,
			Category:     e.Category,
			Context:      excerpt(text, matches[0][0], matches[0][1]),
			MentionCount: len(matches),
		})
	}

	res.Summary = buildSummary(res.DocumentType, dataSet, res.Persons, text)
	return res
}

func inferDocumentType(text string) string {
	for _, tp := range topicPatterns {
		if tp.re.MatchString(text) {
			return tp.docType
		}
	}
	return defaultDocumentType
}

func extractLocations(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, loc := range knownLocations {
		key := strings.ToLower(loc)
		if seen[key] {
			continue
		}
		if locationPatterns[loc].MatchString(text) {
			seen[key] = true
			out = append(out, loc)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}

// excerpt returns the text surrounding [start,end) with a fixed radius
// on each side, trimmed to rune-safe bounds.
func excerpt(text string, start, end int) string {
	lo := start - contextRadius
	if lo < 0 {
		lo = 0
	}
	hi := end + contextRadius
	if hi > len(text) {
		hi = len(text)
	}
	return strings.TrimSpace(strings.ToValidUTF8(text[lo:hi], ""))
}

func buildSummary(docType, dataSet string, persons []PersonMention, text string) string {
	var names []string
	for i, p := range persons {
		if i == 3 {
			break
		}
		names = append(names, p.Name)
	}
	head := strings.TrimSpace(text)
	if len(head) > 200 {
		head = strings.ToValidUTF8(head[:200], "") + "..."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Likely %s from dataset %s.", docType, dataSet)
	if len(names) > 0 {
		fmt.Fprintf(&b, " Key persons detected: %s.", strings.Join(names, ", "))
	}
	if head != "" {
		fmt.Fprintf(&b, " Begins: %s", head)
	}
	return b.String()
}
