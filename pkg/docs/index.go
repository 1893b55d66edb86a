package docs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	_ "modernc.org/sqlite"
)

// ScoredFragment is a search hit. Higher scores rank first and are always positive.
type ScoredFragment struct {
	Fragment
	Score float64
}

// Index is an in-memory SQLite FTS5 table ranked with bm25().
type Index struct {
	log *slog.Logger
	db  *sql.DB
}

// NewIndex builds an index over the given fragments.
func NewIndex(ctx context.Context, log *slog.Logger, fragments []Fragment) (*Index, error) {
	if log == nil {
		return nil, errors.New("logger is required")
	}
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `CREATE VIRTUAL TABLE fragments USING fts5(id UNINDEXED, source UNINDEXED, content)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create fts5 table: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, f := range fragments {
		if _, err := tx.ExecContext(ctx, `INSERT INTO fragments (id, source, content) VALUES (?, ?, ?)`, f.ID, f.Source, f.Content); err != nil {
			_ = tx.Rollback()
			_ = db.Close()
			return nil, fmt.Errorf("failed to index fragment %s: %w", f.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to commit index: %w", err)
	}

	log.Info("docs: index built", "fragments", len(fragments))
	return &Index{log: log, db: db}, nil
}

func (ix *Index) Close() error {
	return ix.db.Close()
}

// Search returns at most k fragments in descending score order. Queries without any
// indexable term return no hits.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]ScoredFragment, error) {
	match := matchExpr(query)
	if match == "" || k <= 0 {
		return nil, nil
	}

	rows, err := ix.db.QueryContext(ctx, `
		SELECT id, source, content, bm25(fragments) AS rank
		FROM fragments
		WHERE fragments MATCH ?
		ORDER BY rank
		LIMIT ?
	`, match, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search fragments: %w", err)
	}
	defer rows.Close()

	var out []ScoredFragment
	for rows.Next() {
		var hit ScoredFragment
		var rank float64
		if err := rows.Scan(&hit.ID, &hit.Source, &hit.Content, &rank); err != nil {
			return nil, fmt.Errorf("failed to scan hit: %w", err)
		}
		// bm25() is negated so that better matches are numerically lower.
		hit.Score = -rank
		if hit.Score <= 0 {
			continue
		}
		out = append(out, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating hits: %w", err)
	}
	ix.log.Debug("docs: search", "query", query, "k", k, "hits", len(out))
	return out, nil
}

// matchExpr turns free text into an FTS5 OR-query of quoted terms, so punctuation and
// FTS5 operators in questions cannot produce syntax errors.
func matchExpr(query string) string {
	terms := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(terms))
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		if seen[t] {
			continue
		}
		seen[t] = true
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " OR ")
}
