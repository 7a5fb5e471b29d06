package model

import (
	"reflect"
	"testing"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		wantQuotes  []string
		wantNegated []string
	}{
		{
			name:  "plain_terms",
			query: "brown fox jumps",
		},
		{
			name:       "single_phrase",
			query:      `find "hello world" now`,
			wantQuotes: []string{"hello world"},
		},
		{
			name:       "multiple_phrases",
			query:      `"first phrase" and "second phrase"`,
			wantQuotes: []string{"first phrase", "second phrase"},
		},
		{
			name:        "negated_terms",
			query:       "fox -spam -junk",
			wantNegated: []string{"spam", "junk"},
		},
		{
			name:        "phrase_and_negation",
			query:       `"hello world" -spam foo`,
			wantQuotes:  []string{"hello world"},
			wantNegated: []string{"spam"},
		},
		{
			name:  "empty_query",
			query: "",
		},
		{
			name:  "bare_dash_not_negation",
			query: "foo - bar",
		},
		{
			name:  "unbalanced_quote_ignored",
			query: `foo "dangling`,
		},
		{
			name:  "empty_phrase_skipped",
			query: `foo "" bar`,
		},
		{
			name:       "backslashes_stripped_before_extraction",
			query:      `\"hello\" world`,
			wantQuotes: []string{"hello"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseQuery(tt.query)
			if got.Query != tt.query {
				t.Errorf("Query = %q, want original %q", got.Query, tt.query)
			}
			if !reflect.DeepEqual(got.QuoteWords, tt.wantQuotes) {
				t.Errorf("QuoteWords = %v, want %v", got.QuoteWords, tt.wantQuotes)
			}
			if !reflect.DeepEqual(got.NegatedWords, tt.wantNegated) {
				t.Errorf("NegatedWords = %v, want %v", got.NegatedWords, tt.wantNegated)
			}
		})
	}
}

func TestParseSearchMode(t *testing.T) {
	tests := []struct {
		raw  string
		want SearchMode
	}{
		{"semantic", SearchSemantic},
		{"fulltext", SearchFulltext},
		{"hybrid", SearchHybrid},
		{"", SearchSemantic},
		{"nonsense", SearchSemantic},
	}
	for _, tt := range tests {
		if got := ParseSearchMode(tt.raw); got != tt.want {
			t.Errorf("ParseSearchMode(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
