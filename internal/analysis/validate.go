package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ValidationError describes why a model response was rejected. The
// Reason is persisted alongside the raw payload in the invalid sink.
type ValidationError struct {
	Reason     string
	Violations []string
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return e.Reason
	}
	return e.Reason + ": " + strings.Join(e.Violations, "; ")
}

// responsePayload mirrors the extraction schema the model is asked for.
type responsePayload struct {
	DocumentType string          `json:"documentType"`
	DateOriginal string          `json:"dateOriginal"`
	Summary      string          `json:"summary"`
	Persons      []PersonMention `json:"persons"`
	Connections  []Connection    `json:"connections"`
	Events       []Event         `json:"events"`
	Locations    []string        `json:"locations"`
	KeyFacts     []string        `json:"keyFacts"`
}

// ParseResponse turns a raw model response into an AnalysisResult.
// Markdown code fences are stripped, the text is parsed as JSON, and on
// a parse failure the largest balanced {...} substring is retried. A
// response that parses but violates the schema, or that does not parse
// at all, returns a *ValidationError.
func ParseResponse(raw, fileName, dataSet string) (AnalysisResult, error) {
	clean := stripCodeFences(raw)

	var payload responsePayload
	if err := json.Unmarshal([]byte(clean), &payload); err != nil {
		obj := extractBalancedObject(clean)
		if obj == "" {
			return AnalysisResult{}, &ValidationError{Reason: fmt.Sprintf("json parse failed: %v", err)}
		}
		if err2 := json.Unmarshal([]byte(obj), &payload); err2 != nil {
			return AnalysisResult{}, &ValidationError{Reason: fmt.Sprintf("json parse failed: %v", err2)}
		}
	}

	if violations := validatePayload(&payload); len(violations) > 0 {
		return AnalysisResult{}, &ValidationError{Reason: "schema validation failed", Violations: violations}
	}

	res := AnalysisResult{
		FileName:     fileName,
		DataSet:      dataSet,
		DocumentType: strings.TrimSpace(payload.DocumentType),
		DateOriginal: strings.TrimSpace(payload.DateOriginal),
		Summary:      strings.TrimSpace(payload.Summary),
		Persons:      payload.Persons,
		Connections:  payload.Connections,
		Events:       payload.Events,
		Locations:    payload.Locations,
		KeyFacts:     payload.KeyFacts,
	}
	if res.Persons == nil {
		res.Persons = []PersonMention{}
	}
	if res.Connections == nil {
		res.Connections = []Connection{}
	}
	if res.Events == nil {
		res.Events = []Event{}
	}
	if res.Locations == nil {
		res.Locations = []string{}
	}
	if res.KeyFacts == nil {
		res.KeyFacts = []string{}
	}
	return res, nil
}

// validatePayload collects every schema violation rather than stopping
// at the first, so the invalid sink records a complete picture.
func validatePayload(p *responsePayload) []string {
	var v []string
	if strings.TrimSpace(p.DocumentType) == "" {
		v = append(v, "documentType empty")
	}
	if strings.TrimSpace(p.Summary) == "" {
		v = append(v, "summary empty")
	}
	for i := range p.Persons {
		person := &p.Persons[i]
		person.Name = properCase(strings.TrimSpace(person.Name))
		if person.Name == "" {
			v = append(v, fmt.Sprintf("persons[%d].name empty", i))
		}
		person.Category = Category(strings.ToLower(strings.TrimSpace(string(person.Category))))
		if !ValidCategory(person.Category) {
			v = append(v, fmt.Sprintf("persons[%d].category %q not in enum", i, person.Category))
		}
		if person.MentionCount < 1 {
			person.MentionCount = 1
		}
	}
	for i, c := range p.Connections {
		if strings.TrimSpace(c.Person1) == "" || strings.TrimSpace(c.Person2) == "" {
			v = append(v, fmt.Sprintf("connections[%d] missing person", i))
		}
		if c.Strength < 1 || c.Strength > 5 {
			v = append(v, fmt.Sprintf("connections[%d].strength %d out of range 1-5", i, c.Strength))
		}
	}
	for i, e := range p.Events {
		if strings.TrimSpace(e.Title) == "" {
			v = append(v, fmt.Sprintf("events[%d].title empty", i))
		}
		if e.Significance < 1 || e.Significance > 5 {
			v = append(v, fmt.Sprintf("events[%d].significance %d out of range 1-5", i, e.Significance))
		}
	}
	return v
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		}
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

// extractBalancedObject returns the largest balanced {...} substring,
// ignoring braces inside JSON strings. Empty when none exists.
func extractBalancedObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}

// properCase normalizes a raw name to proper case, keeping particles
// like "de" or "van" lower when they are not the first word.
func properCase(name string) string {
	words := strings.Fields(strings.ToLower(name))
	for i, w := range words {
		if i > 0 && isNameParticle(w) {
			continue
		}
		words[i] = upperFirst(w)
	}
	return strings.Join(words, " ")
}

func isNameParticle(w string) bool {
	switch w {
	case "de", "del", "della", "van", "von", "da", "la", "le", "bin", "al":
		return true
	}
	return false
}

func upperFirst(w string) string {
	if w == "" {
		return w
	}
	// Hyphenated names capitalize each part ("Jean-Luc").
	if i := strings.Index(w, "-"); i > 0 && i < len(w)-1 {
		return upperFirst(w[:i]) + "-" + upperFirst(w[i+1:])
	}
	r := []rune(w)
	if r[0] >= 'a' && r[0] <= 'z' {
		r[0] = r[0] - 'a' + 'A'
	}
	return string(r)
}
