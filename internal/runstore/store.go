// Package runstore keeps scenario run reports in SQLite so batches can be
// compared across tuning changes.
package runstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/Garsondee/Nav-Sense/internal/sim"
)

// Store wraps a SQLite connection holding batches and their runs.
type Store struct {
	conn *sqlx.DB
}

// Batch is one invocation of the report tool.
type Batch struct {
	ID      string    `db:"id"`
	Created time.Time `db:"created"`
	Config  string    `db:"config"` // YAML of the navigation tuning
	Note    string    `db:"note"`
}

// Run is one stored scenario run.
type Run struct {
	ID         int64   `db:"id"`
	BatchID    string  `db:"batch_id"`
	Scenario   string  `db:"scenario"`
	Seed       int64   `db:"seed"`
	Unit       string  `db:"unit"`
	Outcome    string  `db:"outcome"`
	Expected   bool    `db:"expected"`
	Ticks      int     `db:"ticks"`
	Distance   float64 `db:"distance"`
	Straight   float64 `db:"straight"`
	Restarts   int     `db:"restarts"`
	Collisions int     `db:"collisions"`
	Leaks      int     `db:"leaks"`
	PlanPoints int     `db:"plan_points"`
	Trail      string  `db:"trail"`
}

// OutcomeCount is one row of a per-scenario outcome breakdown.
type OutcomeCount struct {
	Scenario  string  `db:"scenario"`
	Outcome   string  `db:"outcome"`
	Runs      int     `db:"runs"`
	MeanTicks float64 `db:"mean_ticks"`
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*Store, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		created TIMESTAMP NOT NULL,
		config TEXT NOT NULL,
		note TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id TEXT NOT NULL REFERENCES batches(id),
		scenario TEXT NOT NULL,
		seed INTEGER NOT NULL,
		unit TEXT NOT NULL,
		outcome TEXT NOT NULL,
		expected INTEGER NOT NULL,
		ticks INTEGER NOT NULL,
		distance REAL NOT NULL,
		straight REAL NOT NULL,
		restarts INTEGER NOT NULL,
		collisions INTEGER NOT NULL,
		leaks INTEGER NOT NULL,
		plan_points INTEGER NOT NULL,
		trail TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_batch ON runs(batch_id);
	CREATE INDEX IF NOT EXISTS idx_runs_scenario ON runs(scenario);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// NewBatch records a new batch and returns its ID.
func (s *Store) NewBatch(config, note string) (Batch, error) {
	b := Batch{
		ID:      uuid.NewString(),
		Created: time.Now().UTC(),
		Config:  config,
		Note:    note,
	}
	_, err := s.conn.NamedExec(
		"INSERT INTO batches (id, created, config, note) VALUES (:id, :created, :config, :note)", b)
	if err != nil {
		return Batch{}, fmt.Errorf("new batch: %w", err)
	}
	return b, nil
}

// SaveRuns writes reports under batch in one transaction. want maps a
// scenario name to its expected failure, nil meaning success.
func (s *Store) SaveRuns(batch string, reports []sim.RunReport, want map[string]error) error {
	tx, err := s.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamed(`INSERT INTO runs
		(batch_id, scenario, seed, unit, outcome, expected, ticks, distance, straight,
		 restarts, collisions, leaks, plan_points, trail)
		VALUES (:batch_id, :scenario, :seed, :unit, :outcome, :expected, :ticks, :distance, :straight,
		 :restarts, :collisions, :leaks, :plan_points, :trail)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range reports {
		if _, err := stmt.Exec(fromReport(batch, r, want[r.Scenario])); err != nil {
			return fmt.Errorf("save run %s/%d: %w", r.Scenario, r.Seed, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	log.Debug("runs saved", "batch", batch, "runs", len(reports))
	return nil
}

func fromReport(batch string, r sim.RunReport, want error) Run {
	return Run{
		BatchID:    batch,
		Scenario:   r.Scenario,
		Seed:       r.Seed,
		Unit:       r.Unit,
		Outcome:    r.Outcome(),
		Expected:   r.Matches(want),
		Ticks:      r.Ticks,
		Distance:   r.Distance,
		Straight:   r.Straight,
		Restarts:   r.Restarts,
		Collisions: r.Collisions,
		Leaks:      r.Leaks,
		PlanPoints: r.PlanPoints,
		Trail:      strings.Join(r.Trail, ","),
	}
}

// Batches returns the most recent batches, newest first.
func (s *Store) Batches(limit int) ([]Batch, error) {
	var out []Batch
	err := s.conn.Select(&out,
		"SELECT id, created, config, note FROM batches ORDER BY created DESC, rowid DESC LIMIT ?", limit)
	return out, err
}

// Runs returns the runs of a batch in insertion order.
func (s *Store) Runs(batch string) ([]Run, error) {
	var out []Run
	err := s.conn.Select(&out,
		"SELECT * FROM runs WHERE batch_id = ? ORDER BY id", batch)
	return out, err
}

// Outcomes breaks a batch down by scenario and outcome.
func (s *Store) Outcomes(batch string) ([]OutcomeCount, error) {
	var out []OutcomeCount
	err := s.conn.Select(&out, `
		SELECT scenario, outcome, COUNT(*) AS runs, AVG(ticks) AS mean_ticks
		FROM runs WHERE batch_id = ?
		GROUP BY scenario, outcome
		ORDER BY scenario, outcome`, batch)
	return out, err
}

// Unexpected counts the runs of a batch that did not end as expected.
func (s *Store) Unexpected(batch string) (int, error) {
	var n int
	err := s.conn.Get(&n, "SELECT COUNT(*) FROM runs WHERE batch_id = ? AND expected = 0", batch)
	return n, err
}
