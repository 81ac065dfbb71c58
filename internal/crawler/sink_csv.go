package crawler

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// OutputFileName is the CSV written inside the run's output directory.
const OutputFileName = "scraped_data.csv"

const (
	fallbackDirName = "scraped_data"
	utf8BOM         = "\ufeff"
)

var (
	unsafeDirChars = regexp.MustCompile(`[^\w\-.]`)
	csvHeader      = []string{"URL", "Content", "Chunk Number"}
)

// OutputDir derives the output directory for seedHost (host[:port]) under
// workDir. It fails with *SecurityError unless the result is strictly inside
// workDir.
func OutputDir(workDir, seedHost string) (string, error) {
	name := strings.TrimLeft(unsafeDirChars.ReplaceAllString(seedHost, "_"), ".")
	if name == "" {
		name = fallbackDirName
	}
	base, err := filepath.Abs(workDir)
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w", err)
	}
	dir, err := filepath.Abs(filepath.Join(base, name))
	if err != nil {
		return "", fmt.Errorf("resolve output directory: %w", err)
	}
	rel, err := filepath.Rel(base, dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &SecurityError{Target: dir, Reason: "output directory escapes working directory"}
	}
	return dir, nil
}

// SanitizeCSVValue neutralizes values a spreadsheet would treat as a formula.
func SanitizeCSVValue(v string) string {
	if v == "" {
		return v
	}
	switch v[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + v
	}
	return v
}

// CSVSink appends sanitized rows to scraped_data.csv. Rows are flushed as
// they are written so an interrupted run leaves a readable file.
type CSVSink struct {
	mu   sync.Mutex
	path string
	file *os.File
	w    *csv.Writer
	rows int
}

// NewCSVSink creates dir and a fresh CSV file with a UTF-8 BOM and header.
func NewCSVSink(dir string) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, OutputFileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := file.WriteString(utf8BOM); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("write BOM to %s: %w", path, err)
	}
	s := &CSVSink{path: path, file: file, w: csv.NewWriter(file)}
	if err := s.writeRecord(csvHeader); err != nil {
		_ = file.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the CSV file location.
func (s *CSVSink) Path() string { return s.path }

// Rows returns the number of data rows written so far.
func (s *CSVSink) Rows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}

// Write appends one sanitized row.
func (s *CSVSink) Write(row Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record := []string{
		SanitizeCSVValue(row.URL),
		SanitizeCSVValue(row.Content),
		strconv.Itoa(row.ChunkNumber),
	}
	if err := s.writeRecord(record); err != nil {
		return err
	}
	s.rows++
	return nil
}

// Close flushes and closes the file.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Flush()
	flushErr := s.w.Error()
	closeErr := s.file.Close()
	if flushErr != nil {
		return fmt.Errorf("flush %s: %w", s.path, flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close %s: %w", s.path, closeErr)
	}
	return nil
}

func (s *CSVSink) writeRecord(record []string) error {
	if err := s.w.Write(record); err != nil {
		return fmt.Errorf("write row to %s: %w", s.path, err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", s.path, err)
	}
	return nil
}
