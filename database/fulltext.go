package database

import (
	"context"
	"fmt"
	"strings"

	"chunkstore/model"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// sanitizeLexeme strips everything a tsquery lexeme cannot carry.
func sanitizeLexeme(term string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(term) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// buildTsQuery translates a parsed query into to_tsquery input. Residual
// terms AND together, quoted phrases become adjacency chains, negated terms
// become !lexemes. Returns "" when nothing searchable remains.
func buildTsQuery(parsed model.ParsedQuery) string {
	negated := make(map[string]bool, len(parsed.NegatedWords))
	for _, w := range parsed.NegatedWords {
		negated[sanitizeLexeme(w)] = true
	}

	var parts []string
	for _, word := range strings.Fields(strings.ReplaceAll(parsed.Query, `"`, " ")) {
		if strings.HasPrefix(word, "-") {
			continue
		}
		lex := sanitizeLexeme(word)
		if lex == "" || negated[lex] {
			continue
		}
		parts = append(parts, lex)
	}

	for _, phrase := range parsed.QuoteWords {
		var chain []string
		for _, word := range strings.Fields(phrase) {
			if lex := sanitizeLexeme(word); lex != "" {
				chain = append(chain, lex)
			}
		}
		if len(chain) == 1 {
			parts = append(parts, chain[0])
		} else if len(chain) > 1 {
			parts = append(parts, "("+strings.Join(chain, " <-> ")+")")
		}
	}

	if len(parts) == 0 {
		return ""
	}

	for _, w := range parsed.NegatedWords {
		if lex := sanitizeLexeme(w); lex != "" {
			parts = append(parts, "!"+lex)
		}
	}

	return strings.Join(parts, " & ")
}

// appendFilterSQL renders the uniform search filter against the chunks table.
// Link and tag constraints are index-backed; metadata filters are substring
// matches over JSONB values with no index support, a documented linear scan.
func appendFilterSQL(builder *strings.Builder, args *[]any, filter model.Filter) {
	param := func(v any) string {
		*args = append(*args, v)
		return fmt.Sprintf("$%d", len(*args))
	}

	if len(filter.Links) > 0 {
		fmt.Fprintf(builder, " AND link = ANY(%s)", param(pq.Array(filter.Links)))
	}
	if len(filter.Tags) > 0 {
		fmt.Fprintf(builder, " AND tag_set && %s::TEXT[]", param(pq.Array(filter.Tags)))
	}
	if filter.TimeAfter != nil {
		fmt.Fprintf(builder, " AND ts >= %s", param(*filter.TimeAfter))
	}
	if filter.TimeUntil != nil {
		fmt.Fprintf(builder, " AND ts <= %s", param(*filter.TimeUntil))
	}
	for key, val := range filter.Metadata {
		fmt.Fprintf(builder, " AND metadata ->> %s ILIKE '%%' || %s || '%%'", param(key), param(val))
	}
}

// SearchFulltext runs the lexical query against the Postgres full-text index.
// Scores are ts_rank_cd biased by chunk weight; ties break on id so repeated
// calls paginate deterministically.
func (s *PostgresStore) SearchFulltext(ctx context.Context, parsed model.ParsedQuery, filter model.Filter, datasetID uuid.UUID, limit, offset int) ([]model.LexicalHit, error) {
	tsQuery := buildTsQuery(parsed)
	if tsQuery == "" {
		return nil, nil
	}

	var hits []model.LexicalHit
	err := s.block(ctx, func() error {
		args := []any{tsQuery, datasetID}
		var builder strings.Builder
		builder.WriteString(`SELECT id, ts_rank_cd(search_vec, q) * weight AS score
            FROM chunks, to_tsquery('english', $1) q
            WHERE dataset_id = $2 AND search_vec @@ q`)
		appendFilterSQL(&builder, &args, filter)
		args = append(args, limit, offset)
		fmt.Fprintf(&builder, " ORDER BY score DESC, id ASC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

		rows, err := s.DB.QueryContext(ctx, builder.String(), args...)
		if err != nil {
			return fmt.Errorf("fulltext search failed: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var hit model.LexicalHit
			if err := rows.Scan(&hit.ChunkID, &hit.Score); err != nil {
				return fmt.Errorf("failed to scan fulltext hit: %w", err)
			}
			hits = append(hits, hit)
		}
		return rows.Err()
	})
	return hits, err
}

// CountFulltext returns the total matched-candidate count for the same query
// and filters, used to report total pages independent of fusion.
func (s *PostgresStore) CountFulltext(ctx context.Context, parsed model.ParsedQuery, filter model.Filter, datasetID uuid.UUID) (int64, error) {
	tsQuery := buildTsQuery(parsed)
	if tsQuery == "" {
		return 0, nil
	}

	var count int64
	err := s.block(ctx, func() error {
		args := []any{tsQuery, datasetID}
		var builder strings.Builder
		builder.WriteString(`SELECT COUNT(*)
            FROM chunks, to_tsquery('english', $1) q
            WHERE dataset_id = $2 AND search_vec @@ q`)
		appendFilterSQL(&builder, &args, filter)

		if err := s.DB.QueryRowContext(ctx, builder.String(), args...).Scan(&count); err != nil {
			return fmt.Errorf("fulltext count failed: %w", err)
		}
		return nil
	})
	return count, err
}
