package ingest

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"chunkstore/fault"
	"chunkstore/model"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// IngestPDF extracts the text of a PDF, splits it into chunks of at most
// maxChunkChars characters on sentence boundaries, and ingests each one
// through the regular create path, so every piece goes through quota and
// collision detection. When base carries a tracking id, piece N gets the
// suffix "-N". Ingestion stops at the first failing piece; pieces already
// ingested stay.
func (e *Engine) IngestPDF(ctx context.Context, ds model.Dataset, data []byte, base CreateRequest, maxChunkChars int) ([]CreateResult, error) {
	text, err := e.extractPDFText(data)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fault.Validation("pdf contains no extractable text")
	}

	pieces := SplitText(text, maxChunkChars)
	results := make([]CreateResult, 0, len(pieces))
	for i, piece := range pieces {
		req := base
		req.Content = piece
		req.Embedding = nil
		if base.TrackingID != nil {
			tid := fmt.Sprintf("%s-%d", *base.TrackingID, i+1)
			req.TrackingID = &tid
		}
		result, err := e.Create(ctx, ds, req)
		if err != nil {
			return results, fmt.Errorf("failed to ingest pdf piece %d of %d: %w", i+1, len(pieces), err)
		}
		results = append(results, result)
	}
	return results, nil
}

func (e *Engine) extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fault.Validation("failed to parse pdf: %v", err)
	}

	var fullText strings.Builder
	totalPages := reader.NumPage()
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			e.logger.Warn("skipping null pdf page", zap.Int("page", pageNum))
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Warn("failed to extract pdf page text",
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}
		fullText.WriteString(text)
		fullText.WriteString("\n\n")
	}
	return fullText.String(), nil
}

// SplitText packs sentences into pieces no longer than maxChars. A single
// sentence longer than maxChars becomes its own oversized piece rather than
// being cut mid-word.
func SplitText(text string, maxChars int) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var (
		pieces  []string
		builder strings.Builder
	)
	flush := func() {
		if piece := strings.TrimSpace(builder.String()); piece != "" {
			pieces = append(pieces, piece)
		}
		builder.Reset()
	}

	for _, sentence := range sentences {
		if builder.Len() > 0 && builder.Len()+1+len(sentence) > maxChars {
			flush()
		}
		if builder.Len() > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(sentence)
	}
	flush()
	return pieces
}

// splitSentences breaks text on terminal punctuation, looking ahead past
// whitespace so abbreviations followed by more punctuation do not split.
func splitSentences(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	runes := []rune(trimmed)
	var (
		sentences []string
		builder   strings.Builder
	)

	isBoundary := func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}

	flush := func() {
		if sentence := strings.TrimSpace(builder.String()); sentence != "" {
			sentences = append(sentences, sentence)
		}
		builder.Reset()
	}

	for idx, r := range runes {
		builder.WriteRune(r)
		if !isBoundary(r) {
			continue
		}
		next := idx + 1
		for next < len(runes) && (runes[next] == ' ' || runes[next] == '\n' || runes[next] == '\t') {
			next++
		}
		if next >= len(runes) || isBoundary(runes[next]) {
			continue
		}
		flush()
	}
	flush()

	if len(sentences) == 0 {
		return []string{trimmed}
	}
	return sentences
}
