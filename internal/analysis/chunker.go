package analysis

import "regexp"

// pageMarker matches the page delimiters the extraction stage leaves in
// document text ("Page 12", "Page 12 of 40", "--- Page 12 ---").
var pageMarker = regexp.MustCompile(`(?mi)^[-=\s]*Page\s+\d+(\s+of\s+\d+)?[-=\s]*$`)

// Chunk splits text into pieces of at most maxChars, cutting only at
// page boundaries. Whole pages are packed greedily; a single page
// longer than maxChars is emitted alone rather than split mid-page.
// Chunks are exact substrings of text in order, so concatenating them
// reproduces the input. Deterministic for a given input.
func Chunk(text string, maxChars int) []string {
	if maxChars <= 0 || len(text) <= maxChars {
		return []string{text}
	}

	pages := splitPages(text)

	var chunks []string
	start, end := -1, -1
	flush := func() {
		if start >= 0 {
			chunks = append(chunks, text[start:end])
			start, end = -1, -1
		}
	}
	for _, p := range pages {
		if start >= 0 && p.end-start > maxChars {
			flush()
		}
		if start < 0 {
			start = p.start
		}
		end = p.end
		if end-start > maxChars {
			// A single oversized page: emit as its own chunk.
			flush()
		}
	}
	flush()
	return chunks
}

type pageSpan struct{ start, end int }

// splitPages partitions text into spans, each beginning at a page
// marker. Text before the first marker is its own span.
func splitPages(text string) []pageSpan {
	marks := pageMarker.FindAllStringIndex(text, -1)
	if len(marks) == 0 {
		return []pageSpan{{0, len(text)}}
	}
	var pages []pageSpan
	if marks[0][0] > 0 {
		pages = append(pages, pageSpan{0, marks[0][0]})
	}
	for i, m := range marks {
		end := len(text)
		if i+1 < len(marks) {
			end = marks[i+1][0]
		}
		pages = append(pages, pageSpan{m[0], end})
	}
	return pages
}
