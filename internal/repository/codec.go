package repository

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/straye-as/sheet-ledger/internal/domain"
	"github.com/straye-as/sheet-ledger/internal/tablestore"
)

// TimeLayout is the timestamp format written to every table
const TimeLayout = "2006-01-02 15:04:05"

var readLayouts = []string{
	TimeLayout,
	"2006-01-02 15:04",
	"2006-01-02",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"02.01.2006",
	time.RFC3339,
}

// fieldReader decodes typed values from a record and remembers the first error
type fieldReader struct {
	rec tablestore.Record
	err error
}

func (r *fieldReader) fail(col string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("column %s: %w", col, err)
	}
}

func (r *fieldReader) str(col string) string {
	return strings.TrimSpace(r.rec[col])
}

func (r *fieldReader) int(col string) int {
	v := r.str(col)
	if v == "" {
		return 0
	}
	n, err := ParseQuantity(v)
	if err != nil {
		r.fail(col, err)
	}
	return n
}

func (r *fieldReader) float(col string) float64 {
	v := r.str(col)
	if v == "" {
		return 0
	}
	f, err := ParseDecimal(v)
	if err != nil {
		r.fail(col, err)
	}
	return f
}

func (r *fieldReader) ref(col string) domain.Ref {
	ref, err := domain.ParseRef(r.str(col))
	if err != nil {
		r.fail(col, err)
	}
	return ref
}

func (r *fieldReader) time(col string) time.Time {
	v := r.str(col)
	if v == "" {
		return time.Time{}
	}
	t, err := ParseTime(v)
	if err != nil {
		r.fail(col, err)
	}
	return t
}

// ParseDecimal parses a number written with either a point or a comma
func ParseDecimal(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	return strconv.ParseFloat(s, 64)
}

// ParseQuantity parses an integer quantity. Spreadsheets often store
// integers as "5.0", so a float with no fractional part is accepted.
func ParseQuantity(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := ParseDecimal(s)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("%q is not a whole number", s)
	}
	return int(f), nil
}

// ParseTime parses the timestamp formats found in ledger tables
func ParseTime(s string) (time.Time, error) {
	for _, layout := range readLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

func formatInt(n int) string {
	return strconv.Itoa(n)
}

func formatFloat(f float64) string {
	return domain.FormatNumber(f)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimeLayout)
}
