// Package store persists publications and run history in PostgreSQL.
//
// The publications table is keyed by content hash: the store never holds two
// live rows with the same hash. Inserts use ON CONFLICT DO NOTHING so that
// resubmitting a known record is a no-op, which keeps the no-duplicate
// invariant even if concurrent writers are ever introduced.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"lexwatch/monitor-service/internal/model"
)

// Store wraps a pgx pool with the publication and sync-run tables.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store over an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// InitSchema creates the tables and indexes if they do not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS publications (
			content_hash       TEXT PRIMARY KEY,
			source_id          TEXT NOT NULL,
			source             TEXT NOT NULL,
			case_number        TEXT NOT NULL,
			tribunal           TEXT NOT NULL,
			court_body         TEXT,
			publication_date   DATE NOT NULL,
			communication_type TEXT NOT NULL,
			body_text          TEXT,
			source_url         TEXT,
			recipients         JSONB,
			collected_at       TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE INDEX IF NOT EXISTS idx_publications_date ON publications (publication_date);
		CREATE INDEX IF NOT EXISTS idx_publications_case ON publications (case_number);

		CREATE TABLE IF NOT EXISTS sync_runs (
			id                      TEXT PRIMARY KEY,
			started_at              TIMESTAMPTZ NOT NULL,
			finished_at             TIMESTAMPTZ NOT NULL,
			sources_queried         TEXT[],
			total_fetched           INTEGER NOT NULL,
			new_records             INTEGER NOT NULL,
			cross_source_duplicates INTEGER NOT NULL,
			errors                  TEXT[]
		);
	`)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Upsert writes the publication unless its content hash is already known.
// Returns inserted=false when the hash exists; the stored row is never
// overwritten.
func (s *Store) Upsert(ctx context.Context, pub model.Publication) (inserted bool, err error) {
	recipients, err := json.Marshal(pub.Recipients)
	if err != nil {
		return false, fmt.Errorf("marshal recipients: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO publications
		(content_hash, source_id, source, case_number, tribunal, court_body,
		 publication_date, communication_type, body_text, source_url, recipients)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb)
		ON CONFLICT (content_hash) DO NOTHING
	`,
		pub.ContentHash,
		pub.ID,
		pub.Source,
		pub.CaseNumber,
		pub.Tribunal,
		pub.CourtBody,
		pub.PublicationDate,
		pub.CommunicationType,
		pub.BodyText,
		pub.SourceURL,
		string(recipients),
	)
	if err != nil {
		return false, fmt.Errorf("insert publication: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// ByDateRange returns publications whose publication date falls in
// [from, to], ordered by date then case number for stable output.
func (s *Store) ByDateRange(ctx context.Context, from, to time.Time) ([]model.Publication, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT content_hash, source_id, source, case_number, tribunal, court_body,
		       publication_date, communication_type, body_text, source_url, recipients
		FROM publications
		WHERE publication_date BETWEEN $1 AND $2
		ORDER BY publication_date, case_number, content_hash
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query publications: %w", err)
	}
	defer rows.Close()
	return scanPublications(rows)
}

// ByIdentity returns publications in [from, to] whose recipient list names
// the tracked identity.
func (s *Store) ByIdentity(ctx context.Context, id model.TrackedIdentity, from, to time.Time) ([]model.Publication, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT content_hash, source_id, source, case_number, tribunal, court_body,
		       publication_date, communication_type, body_text, source_url, recipients
		FROM publications
		WHERE publication_date BETWEEN $1 AND $2
		  AND recipients @> $3::jsonb
		ORDER BY publication_date, case_number, content_hash
	`, from, to, fmt.Sprintf(`[{"oabNumber":%q,"oabState":%q}]`, id.OABNumber, id.OABState))
	if err != nil {
		return nil, fmt.Errorf("query publications by identity: %w", err)
	}
	defer rows.Close()
	return scanPublications(rows)
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanPublications(rows pgxRows) ([]model.Publication, error) {
	var pubs []model.Publication
	for rows.Next() {
		var p model.Publication
		var courtBody, bodyText, sourceURL *string
		var recipients []byte
		if err := rows.Scan(
			&p.ContentHash, &p.ID, &p.Source, &p.CaseNumber, &p.Tribunal, &courtBody,
			&p.PublicationDate, &p.CommunicationType, &bodyText, &sourceURL, &recipients,
		); err != nil {
			return nil, fmt.Errorf("scan publication: %w", err)
		}
		if courtBody != nil {
			p.CourtBody = *courtBody
		}
		if bodyText != nil {
			p.BodyText = *bodyText
		}
		if sourceURL != nil {
			p.SourceURL = *sourceURL
		}
		if len(recipients) > 0 {
			if err := json.Unmarshal(recipients, &p.Recipients); err != nil {
				return nil, fmt.Errorf("unmarshal recipients: %w", err)
			}
		}
		pubs = append(pubs, p)
	}
	return pubs, rows.Err()
}

// AppendRun records one scheduler cycle in the append-only history.
func (s *Store) AppendRun(ctx context.Context, run model.SyncRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_runs
		(id, started_at, finished_at, sources_queried, total_fetched,
		 new_records, cross_source_duplicates, errors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		run.ID,
		run.StartedAt,
		run.FinishedAt,
		run.SourcesQueried,
		run.TotalFetched,
		run.NewRecords,
		run.CrossSourceDuplicates,
		run.Errors,
	)
	if err != nil {
		return fmt.Errorf("insert sync run: %w", err)
	}
	return nil
}

// RecentRuns returns the latest runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]model.SyncRun, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, started_at, finished_at, sources_queried, total_fetched,
		       new_records, cross_source_duplicates, errors
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sync runs: %w", err)
	}
	defer rows.Close()

	var runs []model.SyncRun
	for rows.Next() {
		var r model.SyncRun
		if err := rows.Scan(
			&r.ID, &r.StartedAt, &r.FinishedAt, &r.SourcesQueried, &r.TotalFetched,
			&r.NewRecords, &r.CrossSourceDuplicates, &r.Errors,
		); err != nil {
			return nil, fmt.Errorf("scan sync run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
