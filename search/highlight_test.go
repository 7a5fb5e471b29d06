package search

import (
	"strings"
	"testing"

	"chunkstore/model"
)

func TestHighlightWrapsMatchingSentences(t *testing.T) {
	content := "The quick brown fox jumps. Nothing relevant here. Foxes are quick animals."
	got := highlight(content, model.ParseQuery("quick fox"))

	if !strings.Contains(got, "<b>The quick brown fox jumps.</b>") {
		t.Errorf("matching sentence not wrapped: %q", got)
	}
	if strings.Contains(got, "<b>Nothing relevant here.</b>") {
		t.Errorf("non-matching sentence wrapped: %q", got)
	}
}

func TestHighlightPhraseMatch(t *testing.T) {
	content := "Alpha beta gamma. The exact phrase lives here."
	got := highlight(content, model.ParseQuery(`"exact phrase"`))

	if !strings.Contains(got, "<b>The exact phrase lives here.</b>") {
		t.Errorf("phrase sentence not wrapped: %q", got)
	}
	if strings.Contains(got, "<b>Alpha beta gamma.</b>") {
		t.Errorf("unrelated sentence wrapped: %q", got)
	}
}

func TestHighlightIgnoresNegatedTerms(t *testing.T) {
	content := "This mentions spam explicitly."
	got := highlight(content, model.ParseQuery("-spam"))

	if strings.Contains(got, "<b>") {
		t.Errorf("negated term must not highlight: %q", got)
	}
}

func TestHighlightNoTermsReturnsContentUnchanged(t *testing.T) {
	content := "Left exactly as it was."
	if got := highlight(content, model.ParseQuery("a -x")); got != content {
		t.Errorf("highlight(%q) = %q, want unchanged", content, got)
	}
}

func TestHighlightTerms(t *testing.T) {
	parsed := model.ParseQuery(`"hello world" -spam searching for foo.`)
	terms := highlightTerms(parsed)

	want := map[string]bool{
		"hello world": true,
		"hello":       true,
		"world":       true,
		"searching":   true,
		"for":         true,
		"foo":         true,
	}
	if len(terms) != len(want) {
		t.Fatalf("terms = %v, want keys %v", terms, want)
	}
	for _, term := range terms {
		if !want[term] {
			t.Errorf("unexpected term %q in %v", term, terms)
		}
	}
}
