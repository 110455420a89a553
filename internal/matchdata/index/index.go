// Package index keeps a SQLite table of every match-data revision written,
// so finished matches can be listed without opening their files.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/signalsfoundry/territory-controller/internal/matchdata"
)

// ErrNotFound is returned when a match has no recorded revision.
var ErrNotFound = errors.New("match not indexed")

// Index wraps the SQLite database. It is safe for concurrent use.
type Index struct {
	db *sql.DB
}

// Open opens (or creates) the index database in WAL mode and applies the
// schema.
func Open(path string) (*Index, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	db.SetMaxOpenConns(1)

	idx := &Index{db: db}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate index: %w", err)
	}
	return idx, nil
}

// Close closes the database.
func (i *Index) Close() error { return i.db.Close() }

func (i *Index) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS revisions (
		match_id   TEXT NOT NULL,
		revision   INTEGER NOT NULL,
		entries    INTEGER NOT NULL,
		digest     TEXT NOT NULL,
		path       TEXT NOT NULL,
		written_at INTEGER NOT NULL, -- unix nanoseconds
		PRIMARY KEY (match_id, revision)
	);
	CREATE INDEX IF NOT EXISTS idx_revisions_written ON revisions(written_at);
	`
	_, err := i.db.Exec(schema)
	return err
}

// RecordRevision stores one completed write. Re-recording a revision
// replaces it.
func (i *Index) RecordRevision(ctx context.Context, rev matchdata.Revision) error {
	_, err := i.db.ExecContext(ctx,
		`INSERT INTO revisions (match_id, revision, entries, digest, path, written_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(match_id, revision) DO UPDATE SET
		   entries = excluded.entries,
		   digest = excluded.digest,
		   path = excluded.path,
		   written_at = excluded.written_at`,
		rev.MatchID, rev.Revision, rev.Entries, rev.Digest, rev.Path,
		rev.WrittenAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("record revision %s/%d: %w", rev.MatchID, rev.Revision, err)
	}
	return nil
}

// Latest returns the most recent revision of matchID.
func (i *Index) Latest(ctx context.Context, matchID string) (matchdata.Revision, error) {
	row := i.db.QueryRowContext(ctx,
		`SELECT match_id, revision, entries, digest, path, written_at
		 FROM revisions WHERE match_id = ? ORDER BY revision DESC LIMIT 1`, matchID)
	rev, err := scanRevision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return matchdata.Revision{}, fmt.Errorf("%w: %s", ErrNotFound, matchID)
	}
	return rev, err
}

// Revisions returns every revision of matchID in write order.
func (i *Index) Revisions(ctx context.Context, matchID string) ([]matchdata.Revision, error) {
	rows, err := i.db.QueryContext(ctx,
		`SELECT match_id, revision, entries, digest, path, written_at
		 FROM revisions WHERE match_id = ? ORDER BY revision`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []matchdata.Revision
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rev)
	}
	return res, rows.Err()
}

// Matches lists indexed match ids, most recently written first.
func (i *Index) Matches(ctx context.Context) ([]string, error) {
	rows, err := i.db.QueryContext(ctx,
		`SELECT match_id FROM revisions GROUP BY match_id ORDER BY MAX(written_at) DESC, match_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRevision(s scanner) (matchdata.Revision, error) {
	var (
		rev     matchdata.Revision
		written int64
	)
	if err := s.Scan(&rev.MatchID, &rev.Revision, &rev.Entries, &rev.Digest, &rev.Path, &written); err != nil {
		return matchdata.Revision{}, err
	}
	rev.WrittenAt = time.Unix(0, written).UTC()
	return rev, nil
}
