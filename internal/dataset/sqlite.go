package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/spigell/internship-recommender/internal/apperr"
)

const (
	internshipsTable = "internships"
	resumesTable     = "resumes"
)

// OpenSQLite opens a sqlite database file with the pragmas used for dataset reads.
// The ping is bounded by ctx and a short timeout.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	// modernc sqlite uses DSN like: file:foo.db?_pragma=busy_timeout(5000)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// LoadSQLite reads the internships and resumes tables of a sqlite database.
// Both tables use the same column names as the CSV files.
func LoadSQLite(ctx context.Context, path string) (*Bundle, error) {
	db, err := OpenSQLite(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite dataset %q: %w", path, err)
	}
	defer db.Close()

	internshipRows, err := readSQLTable(ctx, db, internshipsTable)
	if err != nil {
		return nil, err
	}
	internships, err := decodeInternships(internshipRows)
	if err != nil {
		return nil, err
	}

	resumeRows, err := readSQLTable(ctx, db, resumesTable)
	if err != nil {
		return nil, err
	}
	resumes, err := decodeResumes(resumeRows)
	if err != nil {
		return nil, err
	}

	return NewBundle(internships, resumes), nil
}

func readSQLTable(ctx context.Context, db *sql.DB, name string) (*table, error) {
	// name is one of the package constants, never user input.
	rows, err := db.QueryContext(ctx, "SELECT * FROM "+name)
	if err != nil {
		return nil, apperr.Newf(apperr.ErrDatasetMalformed, "table %s: %v", name, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("table %s: columns: %w", name, err)
	}

	t := &table{name: name, columns: columns}
	for rows.Next() {
		cells := make([]sql.NullString, len(columns))
		dest := make([]any, len(columns))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("table %s: scan: %w", name, err)
		}

		row := make([]string, len(columns))
		for i, cell := range cells {
			if cell.Valid {
				row[i] = cell.String
			}
		}
		t.rows = append(t.rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("table %s: %w", name, err)
	}

	return t, nil
}
