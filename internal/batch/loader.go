package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var requiredColumns = []string{"ID", "Question", "Answer"}

// LoadSubmissions reads submissions from a CSV file with the columns ID, Question
// and Answer. Additional columns are ignored.
func LoadSubmissions(path string) ([]Submission, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return ReadSubmissions(f)
}

// ReadSubmissions parses submissions from CSV data.
func ReadSubmissions(r io.Reader) ([]Submission, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // Allow variable field counts.

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		// Spreadsheet exports often start with a byte order mark.
		colIndex[strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))] = i
	}

	for _, required := range requiredColumns {
		if _, ok := colIndex[required]; !ok {
			return nil, fmt.Errorf("missing required CSV column: %s", required)
		}
	}

	minCols := 0
	for _, name := range requiredColumns {
		if idx := colIndex[name]; idx >= minCols {
			minCols = idx + 1
		}
	}

	type firstUse struct {
		id  string
		row int
	}
	seen := make(map[string]firstUse)
	var submissions []Submission
	for lineNum := 2; ; lineNum++ { // lineNum starts at 2 (1-indexed, after header).
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", lineNum, err)
		}
		if len(record) < minCols {
			return nil, fmt.Errorf("CSV row %d has %d columns, expected at least %d", lineNum, len(record), minCols)
		}

		id := strings.TrimSpace(record[colIndex["ID"]])
		if id == "" {
			return nil, fmt.Errorf("CSV row %d has an empty ID", lineNum)
		}
		file := feedbackFileName(id)
		if prev, ok := seen[file]; ok {
			if prev.id == id {
				return nil, fmt.Errorf("CSV row %d repeats ID %q from row %d", lineNum, id, prev.row)
			}
			return nil, fmt.Errorf("CSV row %d: ID %q and ID %q from row %d share the feedback file %s",
				lineNum, id, prev.id, prev.row, file)
		}
		seen[file] = firstUse{id: id, row: lineNum}

		submissions = append(submissions, Submission{
			ID:       id,
			Question: record[colIndex["Question"]],
			Answer:   record[colIndex["Answer"]],
		})
	}

	if len(submissions) == 0 {
		return nil, fmt.Errorf("no submissions found")
	}
	return submissions, nil
}
