package csvimport

import (
	"fmt"
	"sort"
	"strings"
)

// SchemaError rejects a whole file whose header row lacks required columns.
type SchemaError struct {
	Missing []string
	// Suggestions maps a missing column to the closest header actually found in the file.
	Suggestions map[string]string
	Err         error
}

func (e SchemaError) Error() string {
	if len(e.Missing) == 0 {
		if e.Err != nil {
			return "invalid header: " + e.Err.Error()
		}
		return "invalid header"
	}

	var b strings.Builder
	b.WriteString("missing required column(s): ")
	b.WriteString(strings.Join(e.Missing, ", "))

	hints := make([]string, 0, len(e.Suggestions))
	for _, col := range e.Missing {
		if found, ok := e.Suggestions[col]; ok {
			hints = append(hints, fmt.Sprintf("%q instead of %q", col, found))
		}
	}
	if len(hints) > 0 {
		sort.Strings(hints)
		b.WriteString(" (did you mean ")
		b.WriteString(strings.Join(hints, ", "))
		b.WriteString("?)")
	}
	return b.String()
}

// EncodingError rejects a file that is not valid UTF-8.
type EncodingError struct {
	Offset int // byte offset of the first invalid sequence
}

func (e EncodingError) Error() string {
	return fmt.Sprintf("file is not valid UTF-8 (invalid byte sequence at offset %d)", e.Offset)
}

// RowError describes one data row that was skipped. Index is 1-based and does not count the header.
type RowError struct {
	Index   int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Index, e.Message)
}
