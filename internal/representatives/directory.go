package representatives

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/JaimeStill/pathways/internal/submissions"
)

// Column headers read from the directory file.
const (
	columnConstituency = "Constituency"
	columnEmail        = "Email"
	columnName         = "Name"
)

// ErrMissingColumn is returned when the directory header lacks a required column.
var ErrMissingColumn = errors.New("directory missing column")

// Directory maps constituency names to their representatives.
// It is safe for concurrent use and may be reloaded in place.
type Directory struct {
	path string

	mu      sync.RWMutex
	entries map[string]submissions.Representative
}

// LoadDirectory reads the CSV directory at path.
func LoadDirectory(path string) (*Directory, error) {
	d := &Directory{path: path}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// NewDirectory returns a Directory backed by an in-memory entry set.
func NewDirectory(entries map[string]submissions.Representative) *Directory {
	return &Directory{entries: entries}
}

// Reload re-reads the directory file. On error the previous entries are kept.
func (d *Directory) Reload() error {
	f, err := os.Open(d.path)
	if err != nil {
		return fmt.Errorf("open directory: %w", err)
	}
	defer f.Close()

	entries, err := ParseDirectory(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", d.path, err)
	}

	d.mu.Lock()
	d.entries = entries
	d.mu.Unlock()
	return nil
}

// Find returns the representative for constituency.
func (d *Directory) Find(constituency string) (*submissions.Representative, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rep, ok := d.entries[strings.TrimSpace(constituency)]
	if !ok {
		return nil, false
	}
	return &rep, true
}

// Len returns the number of loaded entries.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// ParseDirectory reads CSV rows keyed by constituency.
// Rows without a constituency or email are skipped.
func ParseDirectory(r io.Reader) (map[string]submissions.Representative, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, col := range []string{columnConstituency, columnEmail, columnName} {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	field := func(record []string, col string) string {
		i := index[col]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	entries := make(map[string]submissions.Representative)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		constituency := field(record, columnConstituency)
		email := field(record, columnEmail)
		if constituency == "" || email == "" {
			continue
		}

		entries[constituency] = submissions.Representative{
			Name:  field(record, columnName),
			Email: email,
		}
	}

	return entries, nil
}
