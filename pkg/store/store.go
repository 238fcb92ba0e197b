// Package store archives analysis runs in a local SQLite database so past
// ROI results can be listed and compared across sessions.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"cardiosync/pkg/analysis"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	created_at    TEXT NOT NULL,
	source        TEXT NOT NULL,
	roi_start     REAL NOT NULL,
	roi_end       REAL NOT NULL,
	sample_rate   REAL NOT NULL,
	n_samples     INTEGER NOT NULL,
	hr_bpm        REAL,
	sdnn_s        REAL,
	rmssd_s       REAL,
	lf_hf         REAL,
	ptt_mean_s    REAL,
	ptt_count     INTEGER NOT NULL,
	delay_xcorr_s REAL,
	result_json   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source);
`

// Store wraps the runs database.
type Store struct {
	*sql.DB
}

// RunRecord is one archived analysis run. Metric fields are NaN when the
// run could not compute them.
type RunRecord struct {
	ID        string
	CreatedAt time.Time
	Source    string
	ROIStart  float64
	ROIEnd    float64
	Rate      float64
	Samples   int
	BPM       float64
	SDNN      float64
	RMSSD     float64
	LFHF      float64
	PTTMean   float64
	PTTCount  int
	DelaySec  float64
}

// Open opens (or creates) the runs database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: initializing schema: %w", err)
	}
	return &Store{db}, nil
}

// SaveRun archives res and returns the new run ID.
func (s *Store) SaveRun(res *analysis.Result) (string, error) {
	blob, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("store: encoding result: %w", err)
	}

	id := uuid.NewString()
	query := `
		INSERT INTO runs (
			id, created_at, source, roi_start, roi_end, sample_rate,
			n_samples, hr_bpm, sdnn_s, rmssd_s, lf_hf, ptt_mean_s,
			ptt_count, delay_xcorr_s, result_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.Exec(query,
		id,
		time.Now().UTC().Format(time.RFC3339),
		res.Source,
		res.ROI.Start,
		res.ROI.End,
		res.SampleRate,
		res.NumSamples,
		nullable(res.ECG.Rate.BPM),
		nullable(res.HRV.SDNN),
		nullable(res.HRV.RMSSD),
		nullable(res.HRV.LFHF),
		nullable(res.PTT.Mean),
		res.PTT.Count,
		nullable(res.DelaySec),
		string(blob),
	)
	if err != nil {
		return "", fmt.Errorf("store: inserting run: %w", err)
	}
	return id, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.Query(`
		SELECT id, created_at, source, roi_start, roi_end, sample_rate,
		       n_samples, hr_bpm, sdnn_s, rmssd_s, lf_hf, ptt_mean_s,
		       ptt_count, delay_xcorr_s
		FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: listing runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetRunResult loads the full archived result for one run.
func (s *Store) GetRunResult(id string) (*analysis.Result, error) {
	var blob string
	err := s.QueryRow(`SELECT result_json FROM runs WHERE id = ?`, id).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: loading run %s: %w", id, err)
	}
	var res analysis.Result
	if err := json.Unmarshal([]byte(blob), &res); err != nil {
		return nil, fmt.Errorf("store: decoding run %s: %w", id, err)
	}
	return &res, nil
}

func scanRun(rows *sql.Rows) (RunRecord, error) {
	var rec RunRecord
	var created string
	var bpm, sdnn, rmssd, lfhf, ptt, delay sql.NullFloat64
	err := rows.Scan(&rec.ID, &created, &rec.Source, &rec.ROIStart, &rec.ROIEnd,
		&rec.Rate, &rec.Samples, &bpm, &sdnn, &rmssd, &lfhf, &ptt,
		&rec.PTTCount, &delay)
	if err != nil {
		return rec, fmt.Errorf("store: scanning run: %w", err)
	}
	rec.CreatedAt, err = time.Parse(time.RFC3339, created)
	if err != nil {
		return rec, fmt.Errorf("store: parsing timestamp %q: %w", created, err)
	}
	rec.BPM = fromNullable(bpm)
	rec.SDNN = fromNullable(sdnn)
	rec.RMSSD = fromNullable(rmssd)
	rec.LFHF = fromNullable(lfhf)
	rec.PTTMean = fromNullable(ptt)
	rec.DelaySec = fromNullable(delay)
	return rec, nil
}

// nullable maps NaN metrics to SQL NULL.
func nullable(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func fromNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
