package seed

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
)

// JobRecord is one row of seed/cleanup job history: operator-facing
// metadata about a run, never tile data or per-tile mtimes (those stay
// file-mtime-only per the cache's own freshness model).
type JobRecord struct {
	ID          string       `db:"id"`
	Kind        string       `db:"kind"` // "seed" or "cleanup"
	Coverage    string       `db:"coverage_desc"`
	Levels      string       `db:"levels"` // comma-joined, e.g. "0,1,2,3"
	StartedAt   time.Time    `db:"started_at"`
	FinishedAt  sql.NullTime `db:"finished_at"`
	TilesDone   int64        `db:"tiles_done"`
	Outcome     string       `db:"outcome"` // "running", "ok", "error", "cancelled"
	Error       sql.NullString `db:"error"`
}

// JobStore persists JobRecords, the supplemented "seed/cleanup history"
// feature spec.md's distillation dropped (the original CLI printed a
// summary and discarded it — see SPEC_FULL.md).
//
// Grounded on the teacher's sqlx repository idiom (NamedExec/Get/Select
// over a *sqlx.DB).
type JobStore struct {
	db *sqlx.DB
}

// NewJobStore builds a store over an existing *sqlx.DB. The caller is
// responsible for the seed_job table existing (plain SQL migration,
// applied out of band — this package has no schema-migration dependency).
func NewJobStore(db *sqlx.DB) *JobStore {
	return &JobStore{db: db}
}

func (s *JobStore) Start(rec JobRecord) error {
	_, err := s.db.NamedExec(
		`INSERT INTO seed_job (id, kind, coverage_desc, levels, started_at, outcome)
		 VALUES (:id, :kind, :coverage_desc, :levels, :started_at, :outcome)`,
		&rec,
	)
	return err
}

func (s *JobStore) Finish(id string, tilesDone int64, outcome string, jobErr error) error {
	var errText sql.NullString
	if jobErr != nil {
		errText = sql.NullString{String: jobErr.Error(), Valid: true}
	}
	_, err := s.db.Exec(
		`UPDATE seed_job SET finished_at=$1, tiles_done=$2, outcome=$3, error=$4 WHERE id=$5`,
		time.Now(), tilesDone, outcome, errText, id,
	)
	return err
}

func (s *JobStore) Get(id string) (JobRecord, error) {
	var rec JobRecord
	err := s.db.Get(&rec, `SELECT * FROM seed_job WHERE id=$1`, id)
	if err == sql.ErrNoRows {
		return JobRecord{}, ErrJobNotFound
	}
	return rec, err
}

func (s *JobStore) List(limit int) ([]JobRecord, error) {
	var recs []JobRecord
	err := s.db.Select(&recs, `SELECT * FROM seed_job ORDER BY started_at DESC LIMIT $1`, limit)
	return recs, err
}
