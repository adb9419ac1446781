package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when no run matches the lookup
var ErrRunNotFound = errors.New("run not found")

// timeLayout is fixed width so created_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Run is the metadata of a stored analysis
type Run struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"createdAt"`
	DurationMs     int64     `json:"durationMs"`
	EngineVersion  string    `json:"engineVersion"`
	GraphVersion   uint64    `json:"graphVersion"`
	InputDigest    string    `json:"inputDigest"`
	ReflexionEdges int       `json:"reflexionEdges"`
	Violations     int       `json:"violations"`
	UnmappedEdges  int       `json:"unmappedEdges"`
	Deltas         int       `json:"deltas"`
}

// RunStore saves and loads runs and their encoded snapshots
type RunStore struct {
	db          *DB
	compression Compression
}

// NewRunStore creates a run store writing payloads with compression c
func NewRunStore(db *DB, c Compression) *RunStore {
	return &RunStore{db: db, compression: c}
}

// SaveRun stores run metadata and its payload in one transaction. An empty
// ID is replaced by a new UUID; a zero CreatedAt by the current time. The
// stored run is returned.
func (s *RunStore) SaveRun(run Run, payload []byte) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	run.CreatedAt = run.CreatedAt.UTC()

	compressed, err := compress(s.compression, payload)
	if err != nil {
		return Run{}, err
	}

	err = s.db.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO runs (id, created_at, duration_ms, engine_version, graph_version,
				input_digest, reflexion_edges, violations, unmapped_edges, deltas)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, run.CreatedAt.Format(timeLayout), run.DurationMs, run.EngineVersion,
			int64(run.GraphVersion), run.InputDigest, run.ReflexionEdges, run.Violations,
			run.UnmappedEdges, run.Deltas)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		_, err = tx.Exec(`
			INSERT INTO run_payloads (run_id, compression, raw_size, payload)
			VALUES (?, ?, ?, ?)
		`, run.ID, string(s.compression), len(payload), compressed)
		if err != nil {
			return fmt.Errorf("failed to insert run payload: %w", err)
		}
		return nil
	})
	if err != nil {
		return Run{}, err
	}

	s.db.logger.Debug("Run saved",
		"id", run.ID,
		"digest", run.InputDigest,
		"rawBytes", len(payload),
		"storedBytes", len(compressed),
	)
	return run, nil
}

const runColumns = `id, created_at, duration_ms, engine_version, graph_version,
	input_digest, reflexion_edges, violations, unmapped_edges, deltas`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		r            Run
		createdAt    string
		graphVersion int64
	)
	err := row.Scan(&r.ID, &createdAt, &r.DurationMs, &r.EngineVersion, &graphVersion,
		&r.InputDigest, &r.ReflexionEdges, &r.Violations, &r.UnmappedEdges, &r.Deltas)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, err
	}
	r.GraphVersion = uint64(graphVersion)
	if r.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return Run{}, fmt.Errorf("invalid created_at for run %s: %w", r.ID, err)
	}
	return r, nil
}

// GetRun returns the run with id and its decompressed payload
func (s *RunStore) GetRun(id string) (Run, []byte, error) {
	run, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err != nil {
		return Run{}, nil, err
	}

	var (
		compression string
		rawSize     int
		payload     []byte
	)
	err = s.db.QueryRow(`SELECT compression, raw_size, payload FROM run_payloads WHERE run_id = ?`, id).
		Scan(&compression, &rawSize, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, nil, fmt.Errorf("run %s has no payload: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, nil, err
	}

	raw, err := decompress(Compression(compression), payload, rawSize)
	if err != nil {
		return Run{}, nil, err
	}
	return run, raw, nil
}

// ListRuns returns up to limit runs, newest first. limit <= 0 means no limit.
func (s *RunStore) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.conn.Query(`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LatestRunByDigest returns the newest run whose inputs hashed to digest
func (s *RunStore) LatestRunByDigest(digest string) (Run, error) {
	return scanRun(s.db.QueryRow(`
		SELECT `+runColumns+` FROM runs
		WHERE input_digest = ?
		ORDER BY created_at DESC, id
		LIMIT 1
	`, digest))
}

// DeleteRun removes a run and its payload
func (s *RunStore) DeleteRun(id string) error {
	return s.db.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM run_payloads WHERE run_id = ?`, id); err != nil {
			return err
		}
		res, err := tx.Exec(`DELETE FROM runs WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrRunNotFound
		}
		return nil
	})
}
