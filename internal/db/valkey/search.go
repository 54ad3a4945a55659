package valkey

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/himanshuraimau/rag-movie-agent/internal/db"
	"github.com/himanshuraimau/rag-movie-agent/internal/domain/search/filter"
)

// SearchKNN runs a pre-filtered KNN query via FT.SEARCH.
// Entries come back ordered by ascending distance, i.e. most similar first.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	args := []string{
		q.IndexName, buildQuery(q),
		"PARAMS", "2", "BLOB", db.EncodeVector(q.Vector),
		"LIMIT", "0", strconv.Itoa(q.K),
		"DIALECT", "2",
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isServerErr(err, "unknown index name", "not found") {
			return nil, &db.Error{Op: db.OpSearch, Err: db.ErrIndexNotFound}
		}
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	return parseKNNResult(raw)
}

func buildQuery(q *db.KNNQuery) string {
	knn := fmt.Sprintf("[KNN %d @%s $BLOB]", q.K, q.Field())
	if f := buildFilter(q.Filters); f != "" {
		return "(" + f + ")=>" + knn
	}
	return "*=>" + knn
}

// parseKNNResult reads the RESP2 reply [total, key1, fields1, key2, fields2, ...].
func parseKNNResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, (len(raw)-1)/2)
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		pairs, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		entry := db.SearchEntry{Key: key, Fields: parseFieldPairs(pairs)}
		// __vector_score is the cosine distance; report similarity.
		if dist, ok := entry.Fields[db.FieldScore]; ok {
			if d, err := strconv.ParseFloat(dist, 64); err == nil {
				entry.Score = 1 - d
			}
			delete(entry.Fields, db.FieldScore)
		}
		delete(entry.Fields, db.FieldVector)
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// buildFilter translates a conjunction into an FT.SEARCH pre-filter.
func buildFilter(expr filter.Expression) string {
	if expr.IsEmpty() {
		return ""
	}
	parts := make([]string, 0, len(expr.Must()))
	for _, cond := range expr.Must() {
		switch {
		case cond.IsMatch():
			parts = append(parts, fmt.Sprintf("@%s:{%s}", cond.Key(), tagEscaper.Replace(cond.Match())))
		case cond.IsRange():
			parts = append(parts, buildNumericFilter(cond.Key(), *cond.Range()))
		}
	}
	return strings.Join(parts, " ")
}

func buildNumericFilter(key string, r filter.Range) string {
	lo, hi := "-inf", "+inf"
	switch {
	case r.GT() != nil:
		lo = "(" + formatFloat(*r.GT())
	case r.GTE() != nil:
		lo = formatFloat(*r.GTE())
	}
	switch {
	case r.LT() != nil:
		hi = "(" + formatFloat(*r.LT())
	case r.LTE() != nil:
		hi = formatFloat(*r.LTE())
	}
	return fmt.Sprintf("@%s:[%s %s]", key, lo, hi)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

var tagEscaper = strings.NewReplacer(
	`\`, `\\`,
	",", `\,`,
	".", `\.`,
	"<", `\<`,
	">", `\>`,
	"{", `\{`,
	"}", `\}`,
	"[", `\[`,
	"]", `\]`,
	`"`, `\"`,
	"'", `\'`,
	":", `\:`,
	";", `\;`,
	"!", `\!`,
	"@", `\@`,
	"#", `\#`,
	"$", `\$`,
	"%", `\%`,
	"^", `\^`,
	"&", `\&`,
	"*", `\*`,
	"(", `\(`,
	")", `\)`,
	"-", `\-`,
	"+", `\+`,
	"=", `\=`,
	"~", `\~`,
	"|", `\|`,
	"/", `\/`,
	" ", `\ `,
)
