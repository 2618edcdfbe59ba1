package analysis

import (
	"errors"
	"strings"
	"testing"
)

const validResponse = `{
  "documentType": "deposition",
  "dateOriginal": "2005-03",
  "summary": "A witness describes events at the Palm Beach residence.",
  "persons": [
    {"name": "jeffrey epstein", "role": "Financier", "category": "Key Figure", "context": "...", "mentionCount": 4}
  ],
  "connections": [
    {"person1": "Jeffrey Epstein", "person2": "Sarah Kellen", "relationshipType": "employer", "description": "scheduling", "strength": 4}
  ],
  "events": [
    {"date": "2005-03-14", "title": "Interview conducted", "description": "witness interview", "category": "legal", "significance": 3, "personsInvolved": ["Jeffrey Epstein"]}
  ],
  "locations": ["Palm Beach"],
  "keyFacts": ["Interview recorded"]
}`

func TestParseResponseValid(t *testing.T) {
	res, err := ParseResponse(validResponse, "doc001.json", "court-records")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.FileName != "doc001.json" || res.DataSet != "court-records" {
		t.Fatalf("identity not stamped: %+v", res)
	}
	if len(res.Persons) != 1 {
		t.Fatalf("expected 1 person, got %d", len(res.Persons))
	}
	if res.Persons[0].Name != "Jeffrey Epstein" {
		t.Fatalf("name not normalized to proper case: %q", res.Persons[0].Name)
	}
	if res.Persons[0].Category != CategoryKeyFigure {
		t.Fatalf("category not normalized: %q", res.Persons[0].Category)
	}
}

func TestParseResponseFencedWithTrailingComma(t *testing.T) {
	raw := "```json\n{\n  \"documentType\": \"email\",\n  \"summary\": \"a summary\",\n}\n```"
	_, err := ParseResponse(raw, "doc.json", "ds")
	if err == nil {
		t.Fatal("expected a validation error for trailing-comma JSON")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if !strings.Contains(verr.Reason, "parse") {
		t.Fatalf("expected a parse failure reason, got %q", verr.Reason)
	}
}

func TestParseResponseStripsFences(t *testing.T) {
	raw := "```json\n" + validResponse + "\n```"
	res, err := ParseResponse(raw, "doc.json", "ds")
	if err != nil {
		t.Fatalf("fenced valid JSON should parse: %v", err)
	}
	if res.DocumentType != "deposition" {
		t.Fatalf("unexpected documentType %q", res.DocumentType)
	}
}

func TestParseResponseExtractsEmbeddedObject(t *testing.T) {
	raw := "Here is the extraction you asked for:\n" + validResponse + "\nLet me know if you need anything else."
	res, err := ParseResponse(raw, "doc.json", "ds")
	if err != nil {
		t.Fatalf("embedded object should be recovered: %v", err)
	}
	if len(res.Locations) != 1 || res.Locations[0] != "Palm Beach" {
		t.Fatalf("unexpected locations %v", res.Locations)
	}
}

func TestParseResponseSchemaViolations(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"unknown category", `{"documentType":"email","summary":"s","persons":[{"name":"A B","role":"r","category":"celebrity","context":"","mentionCount":1}]}`},
		{"strength out of range", `{"documentType":"email","summary":"s","connections":[{"person1":"A","person2":"B","relationshipType":"t","description":"","strength":9}]}`},
		{"significance out of range", `{"documentType":"email","summary":"s","events":[{"date":"","title":"T","description":"","category":"","significance":0,"personsInvolved":[]}]}`},
		{"empty summary", `{"documentType":"email","summary":"  "}`},
		{"empty documentType", `{"documentType":"","summary":"s"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseResponse(tc.raw, "doc.json", "ds")
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if len(verr.Violations) == 0 {
				t.Fatal("expected at least one recorded violation")
			}
		})
	}
}

func TestParseResponseDefaultsMentionCount(t *testing.T) {
	raw := `{"documentType":"email","summary":"s","persons":[{"name":"Alan Dershowitz","role":"Attorney","category":"legal","context":"","mentionCount":0}]}`
	res, err := ParseResponse(raw, "doc.json", "ds")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Persons[0].MentionCount != 1 {
		t.Fatalf("mentionCount should default to 1, got %d", res.Persons[0].MentionCount)
	}
}

func TestProperCase(t *testing.T) {
	for _, tc := range []struct{ in, want string }{
		{"jeffrey epstein", "Jeffrey Epstein"},
		{"JEAN-LUC BRUNEL", "Jean-Luc Brunel"},
		{"ghislaine de la maxwell", "Ghislaine de la Maxwell"},
	} {
		if got := properCase(tc.in); got != tc.want {
			t.Fatalf("properCase(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
