package sinks

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/daniacca/genekin/internal/kinetics"
	_ "modernc.org/sqlite"
)

const countsSchema = `
CREATE TABLE IF NOT EXISTS counts (
	run_id       TEXT    NOT NULL,
	time         REAL    NOT NULL,
	species      TEXT    NOT NULL,
	protein      INTEGER NOT NULL,
	transcript   INTEGER NOT NULL,
	ribo_density REAL    NOT NULL,
	collisions   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS counts_run_time ON counts (run_id, time);
`

// SQLiteSink appends count rows for one run to a SQLite database.
type SQLiteSink struct {
	sqlDB *sql.DB
	runID kinetics.RunID
}

// OpenSQLite opens or creates the database at path. Rows written through
// the returned sink are tagged with runID.
func OpenSQLite(path string, runID kinetics.RunID) (*SQLiteSink, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(countsSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create counts table: %w", err)
	}
	return &SQLiteSink{sqlDB: sqlDB, runID: runID}, nil
}

// WriteRows inserts one report in a single transaction.
func (s *SQLiteSink) WriteRows(ctx context.Context, rows []kinetics.CountRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO counts (run_id, time, species, protein, transcript, ribo_density, collisions)
VALUES (?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx,
			string(s.runID),
			row.Time,
			string(row.Species),
			row.Protein,
			row.Transcript,
			row.RiboDensity,
			row.Collisions,
		); err != nil {
			return fmt.Errorf("insert %s at t=%g: %w", row.Species, row.Time, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rows returns every stored row of runID ordered by time then species.
func (s *SQLiteSink) Rows(ctx context.Context, runID kinetics.RunID) ([]kinetics.CountRow, error) {
	rs, err := s.sqlDB.QueryContext(ctx, `
SELECT time, species, protein, transcript, ribo_density, collisions
FROM counts
WHERE run_id = ?
ORDER BY time, species
`, string(runID))
	if err != nil {
		return nil, fmt.Errorf("query counts: %w", err)
	}
	defer rs.Close()

	var out []kinetics.CountRow
	for rs.Next() {
		var (
			row     kinetics.CountRow
			species string
		)
		if err := rs.Scan(&row.Time, &species, &row.Protein, &row.Transcript, &row.RiboDensity, &row.Collisions); err != nil {
			return nil, fmt.Errorf("scan count row: %w", err)
		}
		row.Species = kinetics.SpeciesName(species)
		out = append(out, row)
	}
	return out, rs.Err()
}

// Close releases the SQLite connection.
func (s *SQLiteSink) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}
