package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"sitebook/api/internal/policy"
)

// PgFTS implements document search using PostgreSQL full-text search as a
// fallback. Access control is enforced inside the query itself by ANDing the
// caller's predicate, so its results never need re-verification.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Search runs plainto_tsquery over the documents table, restricted to rows
// the access filter permits, with ts_headline snippets ranked by ts_rank.
func (p *PgFTS) Search(ctx context.Context, q Query, access policy.Filter) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	accessSQL, accessArgs := access.SQL(argN)
	args = append(args, accessArgs...)
	argN += len(accessArgs)

	where := fmt.Sprintf("d.fts @@ %s AND (%s)", tsQuery, accessSQL)
	if q.Category != "" {
		where += fmt.Sprintf(" AND d.category = $%d", argN)
		args = append(args, q.Category)
		argN++
	}
	if q.ProjectID != "" {
		where += fmt.Sprintf(" AND d.project_id = $%d", argN)
		args = append(args, q.ProjectID)
		argN++
	}

	base := fmt.Sprintf(`
		SELECT d.id, d.name,
			ts_headline('english', coalesce(d.description, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
			d.category, coalesce(d.project_id, '') AS project_id,
			ts_rank(d.fts, %s) AS rank
		FROM documents d
		WHERE %s`, tsQuery, tsQuery, where)

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub", base)

	dataSQL := fmt.Sprintf(`SELECT id, name, snippet, category, project_id
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`, base, limit, offset)

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Name, &r.Snippet, &r.Category, &r.ProjectID); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all indexable document records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]DocumentRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, coalesce(description, ''), category, coalesce(project_id, ''), status
		FROM documents
	`)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	defer rows.Close()

	records := make([]DocumentRecord, 0)
	for rows.Next() {
		var r DocumentRecord
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.Category, &r.ProjectID, &r.Status); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
