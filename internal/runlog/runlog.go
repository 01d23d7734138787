// Package runlog keeps an append-only CSV record of import and classify runs.
package runlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Actions recorded by the commands.
const (
	ActionImport   = "import"
	ActionClassify = "classify"
	ActionRules    = "rules"
)

// ErrUnknownFormat is returned when the log header does not match Header.
var ErrUnknownFormat = errors.New("unknown run log format")

// Entry is one row in the run log. Matched and Uncategorized are only
// filled in by classify runs.
type Entry struct {
	Timestamp     time.Time
	RunID         string
	Action        string
	Transactions  int
	Matched       int
	Uncategorized int
	Details       string
	CommitHash    string
}

// Header is the CSV header for classify-log.csv.
const Header = "timestamp,run_id,action,transactions,matched,uncategorized,details,commit_hash"

const (
	logDir  = "logs"
	logFile = "logs/classify-log.csv"
)

const (
	colTimestamp = iota
	colRunID
	colAction
	colTransactions
	colMatched
	colUncategorized
	colDetails
	colCommitHash
	numFields
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colRunID] = e.RunID
	row[colAction] = e.Action
	row[colTransactions] = strconv.Itoa(e.Transactions)
	row[colMatched] = strconv.Itoa(e.Matched)
	row[colUncategorized] = strconv.Itoa(e.Uncategorized)
	row[colDetails] = e.Details
	row[colCommitHash] = e.CommitHash
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	e := Entry{
		Timestamp:  ts,
		RunID:      record[colRunID],
		Action:     record[colAction],
		Details:    record[colDetails],
		CommitHash: record[colCommitHash],
	}
	counts := []struct {
		col  int
		name string
		dst  *int
	}{
		{colTransactions, "transactions", &e.Transactions},
		{colMatched, "matched", &e.Matched},
		{colUncategorized, "uncategorized", &e.Uncategorized},
	}
	for _, c := range counts {
		n, err := strconv.Atoi(record[c.col])
		if err != nil {
			return Entry{}, fmt.Errorf("parsing %s %q: %w", c.name, record[c.col], err)
		}
		if n < 0 {
			return Entry{}, fmt.Errorf("parsing %s: negative count %d", c.name, n)
		}
		*c.dst = n
	}
	return e, nil
}

// Path returns the run log location under a repo root.
func Path(repoRoot string) string {
	return filepath.Join(repoRoot, logFile)
}

// Append writes entries to <repoRoot>/logs/classify-log.csv, creating the file and header if needed.
func Append(repoRoot string, entries []Entry) error {
	if err := os.MkdirAll(filepath.Join(repoRoot, logDir), 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	path := Path(repoRoot)
	_, statErr := os.Stat(path)
	needsHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read returns all entries from <repoRoot>/logs/classify-log.csv, oldest first.
// A missing file yields no entries.
func Read(repoRoot string) ([]Entry, error) {
	f, err := os.Open(Path(repoRoot))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading run log header: %w", err)
	}
	if strings.Join(header, ",") != Header {
		return nil, fmt.Errorf("%w: header %q", ErrUnknownFormat, strings.Join(header, ","))
	}

	var entries []Entry
	for row := 2; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading run log row %d: %w", row, err)
		}
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		entries = append(entries, e)
	}
}
