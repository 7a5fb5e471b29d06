package search

import (
	"strings"

	"chunkstore/model"

	"github.com/jdkato/prose/v2"
)

// highlightTerms picks the sub-strings worth emphasizing: quoted phrases
// verbatim, plus residual tokens long enough to be meaningful. Negated terms
// never highlight.
func highlightTerms(parsed model.ParsedQuery) []string {
	negated := make(map[string]bool, len(parsed.NegatedWords))
	for _, w := range parsed.NegatedWords {
		negated[strings.ToLower(w)] = true
	}

	var terms []string
	for _, phrase := range parsed.QuoteWords {
		terms = append(terms, strings.ToLower(phrase))
	}
	for _, word := range strings.Fields(strings.ReplaceAll(parsed.Query, `"`, " ")) {
		if strings.HasPrefix(word, "-") {
			continue
		}
		word = strings.ToLower(strings.Trim(word, `.,;:!?`))
		if len(word) < 3 || negated[word] {
			continue
		}
		terms = append(terms, word)
	}
	return terms
}

// highlight wraps the sentences matching the query in <b> tags. Purely
// cosmetic: it runs after scoring and ordering are final.
func highlight(content string, parsed model.ParsedQuery) string {
	terms := highlightTerms(parsed)
	if len(terms) == 0 || strings.TrimSpace(content) == "" {
		return content
	}

	doc, err := prose.NewDocument(content,
		prose.WithTagging(false),
		prose.WithExtraction(false),
		prose.WithSegmentation(true))
	if err != nil {
		return content
	}

	var b strings.Builder
	for idx, sentence := range doc.Sentences() {
		if idx > 0 {
			b.WriteString(" ")
		}
		lower := strings.ToLower(sentence.Text)
		matched := false
		for _, term := range terms {
			if strings.Contains(lower, term) {
				matched = true
				break
			}
		}
		if matched {
			b.WriteString("<b>")
			b.WriteString(sentence.Text)
			b.WriteString("</b>")
		} else {
			b.WriteString(sentence.Text)
		}
	}
	return b.String()
}
