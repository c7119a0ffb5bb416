// Package csvimport turns uploaded CSV bytes into typed student attendance rows.
//
// The header row must name the seven columns below (any order, extra columns ignored).
// Each data row then yields either a Row or a RowError; only encoding and header problems
// fail the whole file.
package csvimport

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/trezcool/asistencia/core"
)

// Columns
const (
	ColFirstName        = "first_name"
	ColLastName         = "last_name"
	ColBirthDate        = "birth_date"
	ColGender           = "gender"
	ColGrade            = "grade"
	ColAttendanceDate   = "attendance_date"
	ColAttendanceStatus = "attendance_status"
)

var (
	Columns = []string{
		ColFirstName, ColLastName, ColBirthDate, ColGender, ColGrade, ColAttendanceDate, ColAttendanceStatus,
	}

	// accepted date layouts, tried in order
	dateLayouts = []string{
		"2006-1-2",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		time.RFC3339,
		"2/1/2006",
		"2-1-2006",
		"2006/1/2",
	}

	// attendance_status values meaning "present"; anything else is "absent"
	presentLiterals = []string{"presente", "present"}

	minSuggestionRatio = 0.6
)

// Row is a validated data row.
type Row struct {
	Index          int
	FirstName      string
	LastName       string
	BirthDate      time.Time // UTC calendar day
	Gender         string
	Grade          string
	AttendanceDate time.Time // UTC calendar day
	Present        bool
}

type rawRow struct {
	FirstName        string `csv:"first_name" validate:"notblank"`
	LastName         string `csv:"last_name" validate:"notblank"`
	BirthDate        string `csv:"birth_date" validate:"notblank"`
	Gender           string `csv:"gender"`
	Grade            string `csv:"grade"`
	AttendanceDate   string `csv:"attendance_date" validate:"notblank"`
	AttendanceStatus string `csv:"attendance_status"`
}

// Reader iterates over the data rows of a parsed file. It cannot be rewound; parse the file again to restart.
//
//	rdr, err := csvimport.Parse(data)
//	for rdr.Next() {
//		if rowErr := rdr.RowErr(); rowErr != nil { ... continue }
//		row := rdr.Row()
//	}
//	err = rdr.Err()
type Reader struct {
	csv    *csv.Reader
	cols   map[string]int
	index  int
	row    Row
	rowErr *RowError
	err    error
}

// Parse checks the encoding and the header row of data and returns a Reader over its data rows.
// It fails with *EncodingError or *SchemaError before any data row is read.
func Parse(data []byte) (*Reader, error) {
	if offset := invalidUTF8Offset(data); offset >= 0 {
		return nil, &EncodingError{Offset: offset}
	}

	// strip the UTF-8 BOM spreadsheet exports tend to add
	src := transform.NewReader(bytes.NewReader(data), unicode.BOMOverride(transform.Nop))

	r := csv.NewReader(src)
	r.FieldsPerRecord = 0 // every record must be as wide as the header
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, &SchemaError{Missing: append([]string(nil), Columns...), Err: err}
	}
	if err != nil {
		return nil, &SchemaError{Err: err}
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}
	return &Reader{csv: r, cols: cols}, nil
}

func invalidUTF8Offset(data []byte) int {
	if utf8.Valid(data) {
		return -1
	}
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return -1
}

func mapColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}

	var missing []string
	for _, col := range Columns {
		if _, ok := cols[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) == 0 {
		return cols, nil
	}

	suggestions := make(map[string]string)
	for _, col := range missing {
		if found := closestHeader(col, header); found != "" {
			suggestions[col] = found
		}
	}
	return nil, &SchemaError{Missing: missing, Suggestions: suggestions}
}

// closestHeader returns the unknown header most similar to col, if similar enough.
func closestHeader(col string, header []string) string {
	known := make(map[string]bool, len(Columns))
	for _, c := range Columns {
		known[c] = true
	}

	var best string
	bestRatio := minSuggestionRatio
	for _, h := range header {
		h = strings.TrimSpace(h)
		if h == "" || known[h] {
			continue
		}
		m := difflib.NewMatcher(strings.Split(strings.ToLower(col), ""), strings.Split(strings.ToLower(h), ""))
		if ratio := m.Ratio(); ratio >= bestRatio {
			best, bestRatio = h, ratio
		}
	}
	return best
}

// Next advances to the next data row. It returns false once the file is exhausted or unreadable.
func (rdr *Reader) Next() bool {
	if rdr.err != nil {
		return false
	}

	for {
		record, err := rdr.csv.Read()
		if err == io.EOF {
			return false
		}
		rdr.index++
		rdr.row, rdr.rowErr = Row{}, nil

		if err != nil {
			if pErr, ok := err.(*csv.ParseError); ok {
				if pErr.Err == csv.ErrFieldCount && isBlank(record) {
					continue
				}
				rdr.rowErr = &RowError{Index: rdr.index, Message: fmt.Sprintf("malformed record: %v", pErr.Err)}
				return true
			}
			rdr.err = err
			return false
		}
		if isBlank(record) {
			continue
		}

		rdr.row, rdr.rowErr = rdr.decode(record)
		return true
	}
}

// Row returns the current row; meaningless when RowErr is not nil.
func (rdr *Reader) Row() Row { return rdr.row }

// RowErr returns why the current row was rejected, or nil.
func (rdr *Reader) RowErr() *RowError { return rdr.rowErr }

// Index returns the 1-based index of the current data row.
func (rdr *Reader) Index() int { return rdr.index }

// Err returns the error that stopped the iteration early, if any.
func (rdr *Reader) Err() error { return rdr.err }

// All drains the reader.
func (rdr *Reader) All() ([]Row, []RowError, error) {
	var rows []Row
	var rowErrs []RowError
	for rdr.Next() {
		if rowErr := rdr.RowErr(); rowErr != nil {
			rowErrs = append(rowErrs, *rowErr)
			continue
		}
		rows = append(rows, rdr.Row())
	}
	return rows, rowErrs, rdr.Err()
}

func (rdr *Reader) field(record []string, col string) string {
	return strings.TrimSpace(record[rdr.cols[col]])
}

func (rdr *Reader) decode(record []string) (Row, *RowError) {
	raw := rawRow{
		FirstName:        rdr.field(record, ColFirstName),
		LastName:         rdr.field(record, ColLastName),
		BirthDate:        rdr.field(record, ColBirthDate),
		Gender:           rdr.field(record, ColGender),
		Grade:            rdr.field(record, ColGrade),
		AttendanceDate:   rdr.field(record, ColAttendanceDate),
		AttendanceStatus: rdr.field(record, ColAttendanceStatus),
	}

	if err := core.Validate.Struct(raw); err != nil {
		flds := core.FieldErrors(err)
		if len(flds) == 0 {
			return Row{}, &RowError{Index: rdr.index, Message: err.Error()}
		}
		msgs := make([]string, 0, len(flds))
		for _, f := range flds {
			msgs = append(msgs, f.Error)
		}
		return Row{}, &RowError{Index: rdr.index, Field: flds[0].Field, Message: strings.Join(msgs, "; ")}
	}

	birthDate, err := ParseDate(raw.BirthDate)
	if err != nil {
		return Row{}, &RowError{Index: rdr.index, Field: ColBirthDate, Message: err.Error()}
	}
	attDate, err := ParseDate(raw.AttendanceDate)
	if err != nil {
		return Row{}, &RowError{Index: rdr.index, Field: ColAttendanceDate, Message: err.Error()}
	}

	return Row{
		Index:          rdr.index,
		FirstName:      raw.FirstName,
		LastName:       raw.LastName,
		BirthDate:      birthDate,
		Gender:         raw.Gender,
		Grade:          raw.Grade,
		AttendanceDate: attDate,
		Present:        ParsePresence(raw.AttendanceStatus),
	}, nil
}

// ParseDate parses an ISO (YYYY-MM-DD, optionally with a time part) or day-first (DD/MM/YYYY) date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.DateOf(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// ParsePresence reports whether an attendance_status value means "present".
// Unrecognized values, typos included, count as absent.
func ParsePresence(s string) bool {
	s = strings.TrimSpace(s)
	for _, lit := range presentLiterals {
		if strings.EqualFold(s, lit) {
			return true
		}
	}
	return false
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
