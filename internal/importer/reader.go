// Package importer reads materials, orders and laser event files into
// ledger requests. Files are xlsx workbooks or delimited text.
package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Errors returned when a file has no usable sheet
var (
	ErrSheetNotFound = errors.New("sheet not found")
	ErrEmptySheet    = errors.New("sheet is empty")
)

// Sheet is a header row plus data rows, trimmed and padded to the header width
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]string
	// Lines holds the source line or row number of each entry of Rows
	Lines []int
}

func newSheet(name string, records [][]string, firstLine int) *Sheet {
	s := &Sheet{Name: name}
	if len(records) == 0 {
		return s
	}
	s.Header = make([]string, len(records[0]))
	for i, h := range records[0] {
		s.Header[i] = strings.TrimSpace(h)
	}
	for i, rec := range records[1:] {
		row := make([]string, len(s.Header))
		empty := true
		for j := range row {
			if j < len(rec) {
				row[j] = strings.TrimSpace(rec[j])
				if row[j] != "" {
					empty = false
				}
			}
		}
		if empty {
			continue
		}
		s.Rows = append(s.Rows, row)
		s.Lines = append(s.Lines, firstLine+i+1)
	}
	return s
}

// ReadCSV reads delimited text. A UTF-8 BOM and an Excel "sep=" hint line are
// honoured; input that is not valid UTF-8 is decoded as Windows-1251.
func ReadCSV(r io.Reader, sep rune) (*Sheet, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})

	var text io.Reader = bytes.NewReader(raw)
	if !utf8.Valid(raw) {
		text = transform.NewReader(bytes.NewReader(raw), charmap.Windows1251.NewDecoder())
	}

	br := bufio.NewReader(text)
	firstLine := 1
	if peek, _ := br.Peek(4); strings.EqualFold(string(peek), "sep=") {
		hint, _ := br.ReadString('\n')
		hint = strings.TrimRight(strings.TrimPrefix(strings.ToLower(hint), "sep="), "\r\n")
		if c, _ := utf8.DecodeRuneInString(hint); c != utf8.RuneError {
			sep = c
		}
		firstLine = 2
	}

	reader := csv.NewReader(br)
	reader.Comma = sep
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var records [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse csv: %w", err)
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: csv file has no rows", ErrEmptySheet)
	}
	return newSheet("", records, firstLine), nil
}

// Workbook is an opened xlsx file
type Workbook struct {
	f *excelize.File
}

// OpenWorkbook reads an xlsx workbook
func OpenWorkbook(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	return &Workbook{f: f}, nil
}

// Close releases the workbook
func (w *Workbook) Close() error {
	return w.f.Close()
}

// Sheet returns the first sheet whose name is one of names (case-insensitive).
// With no names the first sheet of the workbook is returned.
func (w *Workbook) Sheet(names ...string) (*Sheet, error) {
	sheets := w.f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrSheetNotFound)
	}

	target := ""
	if len(names) == 0 {
		target = sheets[0]
	}
	for _, want := range names {
		for _, have := range sheets {
			if strings.EqualFold(strings.TrimSpace(have), want) {
				target = have
				break
			}
		}
		if target != "" {
			break
		}
	}
	if target == "" {
		return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, strings.Join(names, " / "))
	}

	rows, err := w.f.GetRows(target)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", target, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptySheet, target)
	}
	return newSheet(target, rows, 1), nil
}

// IsWorkbook reports whether a file name looks like an xlsx workbook
func IsWorkbook(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return true
	}
	return false
}

// ReadFile opens path as a workbook or csv and returns the sheet named by
// sheetNames (first sheet when none given; ignored for csv)
func ReadFile(path string, sep rune, sheetNames ...string) (*Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if !IsWorkbook(path) {
		return ReadCSV(f, sep)
	}
	wb, err := OpenWorkbook(f)
	if err != nil {
		return nil, err
	}
	defer wb.Close()
	return wb.Sheet(sheetNames...)
}
