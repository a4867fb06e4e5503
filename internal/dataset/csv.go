package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spigell/internship-recommender/internal/apperr"
)

const utf8BOM = "\ufeff"

// LoadCSV reads the internship and resume CSV files into a Bundle.
func LoadCSV(internshipsPath, resumesPath string) (*Bundle, error) {
	internshipsTable, err := readCSVFile(internshipsPath)
	if err != nil {
		return nil, fmt.Errorf("reading internships: %w", err)
	}
	internships, err := decodeInternships(internshipsTable)
	if err != nil {
		return nil, err
	}

	resumesTable, err := readCSVFile(resumesPath)
	if err != nil {
		return nil, fmt.Errorf("reading resumes: %w", err)
	}
	resumes, err := decodeResumes(resumesTable)
	if err != nil {
		return nil, err
	}

	return NewBundle(internships, resumes), nil
}

// ReadInternshipsCSV decodes internship records from r.
func ReadInternshipsCSV(name string, r io.Reader) (*Internships, error) {
	t, err := readCSV(name, r)
	if err != nil {
		return nil, err
	}
	return decodeInternships(t)
}

// ReadResumesCSV decodes resume records from r.
func ReadResumesCSV(name string, r io.Reader) ([]*Resume, error) {
	t, err := readCSV(name, r)
	if err != nil {
		return nil, err
	}
	return decodeResumes(t)
}

func readCSVFile(path string) (*table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return readCSV(path, file)
}

func readCSV(name string, r io.Reader) (*table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperr.Newf(apperr.ErrDatasetMalformed, "%s: no header row", name)
	}
	if err != nil {
		return nil, apperr.Newf(apperr.ErrDatasetMalformed, "%s: %v", name, err)
	}

	columns := make([]string, len(header))
	for idx, column := range header {
		if idx == 0 {
			column = strings.TrimPrefix(column, utf8BOM)
		}
		columns[idx] = strings.TrimSpace(column)
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, apperr.Newf(apperr.ErrDatasetMalformed, "%s: %v", name, err)
	}

	return &table{name: name, columns: columns, rows: rows}, nil
}
