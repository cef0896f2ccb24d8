package kinetics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// CountsHeader is the header line of the tab-separated counts output.
const CountsHeader = "time\tspecies\tprotein\ttranscript\tribo_density\tcollisions\n"

// CountRow is one species line of a periodic registry report.
type CountRow struct {
	Time        float64     `json:"time"`
	Species     SpeciesName `json:"species"`
	Protein     int         `json:"protein"`
	Transcript  int         `json:"transcript"`
	RiboDensity float64     `json:"ribo_density"`
	Collisions  int         `json:"collisions"`
}

// TSV formats the row as one tab-separated line including the newline.
func (r CountRow) TSV() string {
	var b strings.Builder
	b.WriteString(strconv.FormatFloat(r.Time, 'g', -1, 64))
	b.WriteByte('\t')
	b.WriteString(string(r.Species))
	b.WriteByte('\t')
	b.WriteString(strconv.Itoa(r.Protein))
	b.WriteByte('\t')
	b.WriteString(strconv.Itoa(r.Transcript))
	b.WriteByte('\t')
	b.WriteString(strconv.FormatFloat(r.RiboDensity, 'g', -1, 64))
	b.WriteByte('\t')
	b.WriteString(strconv.Itoa(r.Collisions))
	b.WriteByte('\n')
	return b.String()
}

// EncodeRowsTSV writes rows without a header.
func EncodeRowsTSV(w io.Writer, rows []CountRow) error {
	for _, row := range rows {
		if _, err := io.WriteString(w, row.TSV()); err != nil {
			return fmt.Errorf("write count row: %w", err)
		}
	}
	return nil
}

// CountSink receives the rows produced at each output interval.
type CountSink interface {
	WriteRows(ctx context.Context, rows []CountRow) error
	Close() error
}

// MemorySink keeps every row in memory.
type MemorySink struct {
	Rows []CountRow
}

func (m *MemorySink) WriteRows(_ context.Context, rows []CountRow) error {
	m.Rows = append(m.Rows, rows...)
	return nil
}

func (m *MemorySink) Close() error { return nil }

// teeSink writes every report to each sink in turn.
type teeSink []CountSink

func (t teeSink) WriteRows(ctx context.Context, rows []CountRow) error {
	for _, s := range t {
		if err := s.WriteRows(ctx, rows); err != nil {
			return err
		}
	}
	return nil
}

func (t teeSink) Close() error {
	var errs []error
	for _, s := range t {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Snapshot represents a point-in-time capture of a run's counts.
type Snapshot struct {
	RunID RunID      `json:"run_id"`
	Time  float64    `json:"time"`
	Steps uint64     `json:"steps"`
	Rows  []CountRow `json:"rows"`
}

// ValidateSnapshot checks that rows carry no negative counts and no
// duplicate species.
func ValidateSnapshot(snapshot Snapshot) error {
	seen := make(map[SpeciesName]struct{}, len(snapshot.Rows))
	for i, row := range snapshot.Rows {
		if row.Species == "" {
			return fmt.Errorf("row at index %d has empty species", i)
		}
		if _, exists := seen[row.Species]; exists {
			return fmt.Errorf("duplicate species in snapshot: %s", row.Species)
		}
		seen[row.Species] = struct{}{}
		if row.Protein < 0 || row.Transcript < 0 || row.Collisions < 0 {
			return fmt.Errorf("species %s has a negative count", row.Species)
		}
	}
	return nil
}

// SnapshotPath returns the file a run's snapshot is saved to inside dir.
func SnapshotPath(dir string, id RunID) string {
	return filepath.Join(dir, string(id)+".snapshot.json")
}

// SaveSnapshotFile writes snapshot into dir atomically and returns its path.
func SaveSnapshotFile(dir string, snapshot Snapshot) (string, error) {
	if err := ValidateSnapshot(snapshot); err != nil {
		return "", err
	}
	data, err := EncodeSnapshotJSON(snapshot)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	path := SnapshotPath(dir, snapshot.RunID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("replace snapshot: %w", err)
	}
	return path, nil
}

// EncodeSnapshotJSON encodes a snapshot to JSON format.
func EncodeSnapshotJSON(snapshot Snapshot) ([]byte, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshotJSON decodes a snapshot from JSON format.
func DecodeSnapshotJSON(data []byte) (Snapshot, error) {
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snapshot, nil
}
