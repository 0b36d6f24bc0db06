package importer

import (
	"fmt"
	"strings"

	"github.com/straye-as/sheet-ledger/internal/domain"
)

// column is a logical field with the header spellings accepted for it.
// The first alias is the canonical name used in templates and messages.
type column struct {
	key     string
	aliases []string
}

func (c column) name() string {
	return c.aliases[0]
}

// MissingColumnsError rejects a file that lacks required columns. It lists
// every missing column, not just the first.
type MissingColumnsError struct {
	Sheet   string
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	where := "file"
	if e.Sheet != "" {
		where = "sheet " + e.Sheet
	}
	return fmt.Sprintf("%s is missing required columns: %s", where, strings.Join(e.Missing, ", "))
}

func (e *MissingColumnsError) Unwrap() error { return domain.ErrValidation }

// columnIndex maps column keys to their position in a header row
type columnIndex map[string]int

func normalizeHeader(h string) string {
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

// resolveColumns locates required and optional columns in the sheet header
func resolveColumns(s *Sheet, required, optional []column) (columnIndex, error) {
	positions := make(map[string]int, len(s.Header))
	for i, h := range s.Header {
		n := normalizeHeader(h)
		if _, seen := positions[n]; !seen {
			positions[n] = i
		}
	}

	find := func(c column) (int, bool) {
		for _, a := range c.aliases {
			if i, ok := positions[normalizeHeader(a)]; ok {
				return i, true
			}
		}
		return 0, false
	}

	idx := make(columnIndex)
	var missing []string
	for _, c := range required {
		i, ok := find(c)
		if !ok {
			missing = append(missing, c.name())
			continue
		}
		idx[c.key] = i
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Sheet: s.Name, Missing: missing}
	}
	for _, c := range optional {
		if i, ok := find(c); ok {
			idx[c.key] = i
		}
	}
	return idx, nil
}

// get returns the cell of row for key, or "" when the column is absent
func (idx columnIndex) get(row []string, key string) string {
	i, ok := idx[key]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func rowError(line int, format string, args ...interface{}) domain.RowIssue {
	return domain.RowIssue{Row: line, Message: fmt.Sprintf(format, args...), Err: domain.ErrValidation}
}
