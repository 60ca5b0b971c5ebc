package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"capcorn_sync/internal/domain"
)

// upsertChunk bounds placeholders per statement; MySQL caps them at 65535.
const upsertChunk = 500

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// ReplaceCollection writes a full snapshot of one kind in a single
// transaction: every document is upserted under the run generation,
// then rows of older generations are deleted. A reader either sees the
// previous snapshot or the new one, never a mix.
func (r *Repo) ReplaceCollection(ctx context.Context, kind domain.ResourceKind, generation int64, docs []domain.Document) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.StoreWriteError{Kind: kind, Cause: err}
	}
	defer func() { _ = tx.Rollback() }()

	for start := 0; start < len(docs); start += upsertChunk {
		end := start + upsertChunk
		if end > len(docs) {
			end = len(docs)
		}
		if err := upsertDocs(ctx, tx, kind, generation, docs[start:end]); err != nil {
			return &domain.StoreWriteError{Kind: kind, Cause: err}
		}
	}

	if _, err := tx.ExecContext(ctx, deleteStaleSQL, string(kind), generation); err != nil {
		return &domain.StoreWriteError{Kind: kind, Cause: err}
	}
	if err := tx.Commit(); err != nil {
		return &domain.StoreWriteError{Kind: kind, Cause: err}
	}
	return nil
}

func upsertDocs(ctx context.Context, tx *sql.Tx, kind domain.ResourceKind, generation int64, docs []domain.Document) error {
	values := make([]string, 0, len(docs))
	args := make([]any, 0, len(docs)*4)
	for _, d := range docs {
		values = append(values, "(?,?,?,?)")
		args = append(args, string(kind), d.ExternalID, string(d.Body), generation)
	}
	sqlStr := upsertDocumentsPrefix + strings.Join(values, ",") + upsertDocumentsOnDup
	_, err := tx.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *Repo) SaveRunSummary(ctx context.Context, s domain.SyncRunSummary) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, insertRunSQL, s.RunID, s.RunAt.UTC().Format(time.DateTime), string(b))
	return err
}

func (r *Repo) Collection(ctx context.Context, kind domain.ResourceKind, limit int) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, selectCollectionSQL, string(kind), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Document
	for rows.Next() {
		var d domain.Document
		var body []byte
		if err := rows.Scan(&d.ExternalID, &body); err != nil {
			return nil, err
		}
		d.Body = body
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Repo) Counts(ctx context.Context) (map[domain.ResourceKind]int, error) {
	rows, err := r.db.QueryContext(ctx, countsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[domain.ResourceKind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[domain.ResourceKind(kind)] = n
	}
	return out, rows.Err()
}
