package model

import (
	"regexp"
	"strings"
)

var quoteRe = regexp.MustCompile(`"(.*?)"`)

// ParsedQuery is the structured form of a raw search query. Query always
// holds the original text unmodified; QuoteWords and NegatedWords are nil
// (not empty) when the query carries no phrases or negations, so downstream
// code can skip phrase and negation handling cheaply.
type ParsedQuery struct {
	Query        string
	QuoteWords   []string
	NegatedWords []string
}

// ParseQuery extracts quoted phrase literals and '-'-prefixed negated terms
// from a raw query. It is total: any input yields a usable ParsedQuery.
//
// Backslashes are stripped before phrase extraction, so a literal escaped
// quote cannot be expressed. Known limitation.
func ParseQuery(query string) ParsedQuery {
	var quoteWords []string
	for _, capture := range quoteRe.FindAllStringSubmatch(strings.ReplaceAll(query, `\`, ""), -1) {
		if capture[1] != "" {
			quoteWords = append(quoteWords, capture[1])
		}
	}

	var negatedWords []string
	for _, word := range strings.Fields(query) {
		if rest, ok := strings.CutPrefix(word, "-"); ok && rest != "" {
			negatedWords = append(negatedWords, rest)
		}
	}

	return ParsedQuery{
		Query:        query,
		QuoteWords:   quoteWords,
		NegatedWords: negatedWords,
	}
}
