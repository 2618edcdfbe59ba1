package dedup

import (
	"testing"

	"github.com/Donnadieu/Epstein-File-Explorer-sub002/internal/analysis"
)

func resultWith(fileName string, persons ...analysis.PersonMention) analysis.TieredAnalysisResult {
	return analysis.TieredAnalysisResult{
		AnalysisResult: analysis.AnalysisResult{
			FileName: fileName,
			Persons:  persons,
		},
	}
}

func TestIsLikelyPerson(t *testing.T) {
	accept := []string{
		"Jeffrey Epstein",
		"JEFFREY EPSTEIN",
		"Ghislaine Maxwell",
		"Jean-Luc Brunel",
		"Virginia Roberts Giuffre",
	}
	for _, name := range accept {
		if !IsLikelyPerson(name) {
			t.Errorf("expected %q to be a likely person", name)
		}
	}

	reject := []string{
		"Epstein",
		"Jane Doe",
		"John Doe 2",
		"[REDACTED] Smith",
		"Victim 1",
		"J. E.",
		"The Witness",
		"Palm Beach Police Department",
		"Southern Trust Company",
		"Florida Science Foundation",
		"United States of America",
		"",
	}
	for _, name := range reject {
		if IsLikelyPerson(name) {
			t.Errorf("expected %q to be filtered", name)
		}
	}
}

func TestAggregateSumsAcrossDocuments(t *testing.T) {
	src := &SliceSource{Results: []analysis.TieredAnalysisResult{
		resultWith("a.json",
			analysis.PersonMention{Name: "Jeffrey Epstein", Role: "Financier", Category: analysis.CategoryKeyFigure, MentionCount: 3}),
		resultWith("b.json",
			analysis.PersonMention{Name: "jeffrey epstein", Role: "Financier", Category: analysis.CategoryKeyFigure, MentionCount: 2},
			analysis.PersonMention{Name: "Sarah Kellen", Role: "Assistant", Category: analysis.CategoryStaff, MentionCount: 1}),
	}}

	aggs, err := Aggregate(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(aggs) != 2 {
		t.Fatalf("expected 2 aggregates, got %d", len(aggs))
	}
	top := aggs[0]
	if top.TotalMentions != 5 {
		t.Fatalf("case-insensitive grouping should sum to 5, got %d", top.TotalMentions)
	}
	if len(top.Documents) != 2 {
		t.Fatalf("expected 2 source documents, got %v", top.Documents)
	}
	if top.RoleCounts["Financier"] != 5 {
		t.Fatalf("role votes should sum, got %v", top.RoleCounts)
	}
}

func TestAggregateFiltersNonPersons(t *testing.T) {
	src := &SliceSource{Results: []analysis.TieredAnalysisResult{
		resultWith("a.json",
			analysis.PersonMention{Name: "Jane Doe", MentionCount: 9},
			analysis.PersonMention{Name: "Palm Beach Police Department", MentionCount: 4},
			analysis.PersonMention{Name: "Alan Dershowitz", Role: "Attorney", Category: analysis.CategoryLegal, MentionCount: 1}),
	}}
	aggs, err := Aggregate(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(aggs) != 1 || aggs[0].Name != "Alan Dershowitz" {
		t.Fatalf("expected only the real person, got %+v", aggs)
	}
}

func TestAggregateSortedAndDeterministic(t *testing.T) {
	src := &SliceSource{Results: []analysis.TieredAnalysisResult{
		resultWith("a.json",
			analysis.PersonMention{Name: "Sarah Kellen", MentionCount: 2},
			analysis.PersonMention{Name: "Jeffrey Epstein", MentionCount: 7},
			analysis.PersonMention{Name: "Alan Dershowitz", MentionCount: 2}),
	}}
	aggs, err := Aggregate(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if aggs[0].Name != "Jeffrey Epstein" {
		t.Fatalf("highest mentions first, got %q", aggs[0].Name)
	}
	if aggs[1].Name != "Alan Dershowitz" || aggs[2].Name != "Sarah Kellen" {
		t.Fatalf("ties break by name: %+v", aggs)
	}
}

func TestAggregateZeroMentionCountsAsOne(t *testing.T) {
	src := &SliceSource{Results: []analysis.TieredAnalysisResult{
		resultWith("a.json", analysis.PersonMention{Name: "Sarah Kellen", MentionCount: 0}),
	}}
	aggs, err := Aggregate(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(aggs) != 1 || aggs[0].TotalMentions != 1 {
		t.Fatalf("zero mention count should floor at 1: %+v", aggs)
	}
}
