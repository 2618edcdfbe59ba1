package analysis

import "time"

const (
	// MinDocumentChars is the floor below which a document carries too
	// little signal to analyze and is skipped entirely.
	MinDocumentChars = 100

	// MaxChunkChars bounds how much document text goes into a single
	// model call. Oversized documents are split at page boundaries.
	MaxChunkChars = 100000

	contextRadius = 80
)

// Category is the closed set of person categories. Ordering for
// specificity lives in the dedup package.
type Category string

const (
	CategoryKeyFigure      Category = "key figure"
	CategoryAssociate      Category = "associate"
	CategoryVictim         Category = "victim"
	CategoryWitness        Category = "witness"
	CategoryLegal          Category = "legal"
	CategoryPolitical      Category = "political"
	CategoryLawEnforcement Category = "law enforcement"
	CategoryStaff          Category = "staff"
	CategoryOther          Category = "other"
)

// ValidCategory reports whether c is a member of the closed enum.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryKeyFigure, CategoryAssociate, CategoryVictim, CategoryWitness,
		CategoryLegal, CategoryPolitical, CategoryLawEnforcement, CategoryStaff, CategoryOther:
		return true
	}
	return false
}

// PersonMention is one person detected in a document.
type PersonMention struct {
	Name         string   `json:"name"`
	Role         string   `json:"role"`
	Category     Category `json:"category"`
	Context      string   `json:"context"`
	MentionCount int      `json:"mentionCount"`
}

// Connection is a detected relationship between two named persons.
// Strength is 1 (weak) to 5 (strong).
type Connection struct {
	Person1          string `json:"person1"`
	Person2          string `json:"person2"`
	RelationshipType string `json:"relationshipType"`
	Description      string `json:"description"`
	Strength         int    `json:"strength"`
}

// Event is a dated occurrence extracted from a document. Date is a
// partial ISO date or the raw date text; empty when undated.
type Event struct {
	Date            string   `json:"date"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Category        string   `json:"category"`
	Significance    int      `json:"significance"`
	PersonsInvolved []string `json:"personsInvolved"`
}

// AnalysisResult is the structured record for one document, either
// produced directly or merged from per-chunk results. Persons holds at
// most one entry per case-insensitive name.
type AnalysisResult struct {
	FileName     string          `json:"fileName"`
	DataSet      string          `json:"dataSet"`
	DocumentType string          `json:"documentType"`
	DateOriginal string          `json:"dateOriginal,omitempty"`
	Summary      string          `json:"summary"`
	Persons      []PersonMention `json:"persons"`
	Connections  []Connection    `json:"connections"`
	Events       []Event         `json:"events"`
	Locations    []string        `json:"locations"`
	KeyFacts     []string        `json:"keyFacts"`
	AnalyzedAt   time.Time       `json:"analyzedAt"`
}

// TieredAnalysisResult wraps an AnalysisResult with tier and cost
// accounting. Tier 0 always has zero cost and no connections, events,
// or key facts.
type TieredAnalysisResult struct {
	AnalysisResult
	Tier         int     `json:"tier"`
	CostCents    float64 `json:"costCents"`
	InputTokens  int     `json:"inputTokens"`
	OutputTokens int     `json:"outputTokens"`
}

// Document is the input contract from the extraction collaborator.
type Document struct {
	Text     string `json:"text"`
	FileName string `json:"fileName,omitempty"`
}
