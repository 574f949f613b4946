package db

import (
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/hpungsan/ale2ccc/internal/errors"
)

// Run statuses.
const (
	StatusOK          = "ok"           // CCC written
	StatusFailed      = "failed"       // aborted before writing (schema, input)
	StatusWriteFailed = "write_failed" // collection built, destination not writable
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.CDLError{
	Code:    "UNIQUE_CONSTRAINT",
	Message: "unique constraint violation",
}

// Run is one recorded conversion.
type Run struct {
	ID           string   `json:"id"`
	Inputs       []string `json:"inputs"`
	Output       string   `json:"output"`
	Naming       string   `json:"naming_pattern"`
	Status       string   `json:"status"`
	RowsRead     int      `json:"rows_read"`
	Entries      int      `json:"entries"`
	Skipped      int      `json:"skipped"`
	Renamed      int      `json:"renamed"`
	ErrorCode    *string  `json:"error_code,omitempty"`
	ErrorMessage *string  `json:"error_message,omitempty"`
	StartedAt    int64    `json:"started_at"`
	FinishedAt   int64    `json:"finished_at"`
}

// Correction is one ColorCorrection written by a run, with its provenance.
type Correction struct {
	Position   int    `json:"position"`
	ID         string `json:"id"`
	RawName    string `json:"raw_name"`
	Source     string `json:"source"`
	Line       int    `json:"line"`
	Slope      string `json:"slope"`
	Offset     string `json:"offset"`
	Power      string `json:"power"`
	Saturation string `json:"saturation"`
}

// InsertRun stores a run and its corrections in one transaction.
func InsertRun(db *sql.DB, r *Run, corrections []Correction) error {
	inputsJSON, err := json.Marshal(r.Inputs)
	if err != nil {
		return errors.NewInternal(err)
	}

	tx, err := db.Begin()
	if err != nil {
		return errors.NewInternal(err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO runs (
			id, inputs_json, output, naming, status,
			rows_read, entries, skipped, renamed,
			error_code, error_message, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, string(inputsJSON), r.Output, r.Naming, r.Status,
		r.RowsRead, r.Entries, r.Skipped, r.Renamed,
		toNullString(r.ErrorCode), toNullString(r.ErrorMessage), r.StartedAt, r.FinishedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}

	if len(corrections) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO corrections (
				run_id, position, cdl_id, raw_name, source, line,
				sop_slope, sop_offset, sop_power, saturation
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return errors.NewInternal(err)
		}
		defer stmt.Close()

		for _, c := range corrections {
			if _, err := stmt.Exec(
				r.ID, c.Position, c.ID, c.RawName, c.Source, c.Line,
				c.Slope, c.Offset, c.Power, c.Saturation,
			); err != nil {
				return errors.NewInternal(err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ListFilters narrows ListRuns.
type ListFilters struct {
	Output string // exact output path
	Status string
}

// ListRuns returns runs newest first, and the total matching count.
func ListRuns(db *sql.DB, filters ListFilters, limit, offset int) ([]Run, int, error) {
	var (
		where []string
		args  []any
	)
	if filters.Output != "" {
		where = append(where, "output = ?")
		args = append(args, filters.Output)
	}
	if filters.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filters.Status)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.QueryRow("SELECT COUNT(*) FROM runs"+clause, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `
		SELECT id, inputs_json, output, naming, status,
			rows_read, entries, skipped, renamed,
			error_code, error_message, started_at, finished_at
		FROM runs` + clause + `
		ORDER BY started_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	rows, err := db.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return runs, total, nil
}

// GetRun retrieves a run by its ULID.
func GetRun(db *sql.DB, id string) (*Run, error) {
	row := db.QueryRow(`
		SELECT id, inputs_json, output, naming, status,
			rows_read, entries, skipped, renamed,
			error_code, error_message, started_at, finished_at
		FROM runs
		WHERE id = ?
	`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return r, nil
}

// ListCorrections returns the corrections of a run in output order.
func ListCorrections(db *sql.DB, runID string) ([]Correction, error) {
	rows, err := db.Query(`
		SELECT position, cdl_id, raw_name, source, line,
			sop_slope, sop_offset, sop_power, saturation
		FROM corrections
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	out := []Correction{}
	for rows.Next() {
		var c Correction
		if err := rows.Scan(
			&c.Position, &c.ID, &c.RawName, &c.Source, &c.Line,
			&c.Slope, &c.Offset, &c.Power, &c.Saturation,
		); err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// DeleteRunsBefore removes runs started before cutoff (unix seconds) and
// returns how many were removed. Corrections cascade.
func DeleteRunsBefore(db *sql.DB, cutoff int64) (int, error) {
	result, err := db.Exec("DELETE FROM runs WHERE started_at < ?", cutoff)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRun scans a single row into a Run struct.
func scanRun(row scanner) (*Run, error) {
	var (
		r          Run
		inputsJSON string
		errCode    sql.NullString
		errMessage sql.NullString
	)

	err := row.Scan(
		&r.ID, &inputsJSON, &r.Output, &r.Naming, &r.Status,
		&r.RowsRead, &r.Entries, &r.Skipped, &r.Renamed,
		&errCode, &errMessage, &r.StartedAt, &r.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	r.ErrorCode = fromNullString(errCode)
	r.ErrorMessage = fromNullString(errMessage)

	if err := json.Unmarshal([]byte(inputsJSON), &r.Inputs); err != nil {
		return nil, err
	}
	return &r, nil
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
