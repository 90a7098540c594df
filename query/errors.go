package query

import "fmt"

// LineTooLongError is returned by the line framer when a logical line
// exceeds the configured byte limit before its terminator is observed.
type LineTooLongError struct {
	Limit int
}

func (e *LineTooLongError) Error() string {
	return fmt.Sprintf("line exceeds limit of %d bytes", e.Limit)
}

// MalformedRowError is returned by the state machine when a logical line
// cannot be split into fields per the CSV dialect (the row splitter's own
// error is wrapped into this type) or is otherwise not a valid row.
type MalformedRowError struct {
	LineNo int
	Reason string
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("malformed row on line %d: %s", e.LineNo, e.Reason)
}

// SchemaMismatchError is returned when a row's field count disagrees with
// the table's declared column count (annotation rows against the header,
// or data rows against the header).
type SchemaMismatchError struct {
	Expected int
	Got      int
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch: expected %d fields, got %d", e.Expected, e.Got)
}

// DuplicateColumnError is returned when a header row names the same column
// twice.
type DuplicateColumnError struct {
	Name string
}

func (e *DuplicateColumnError) Error() string {
	return fmt.Sprintf("duplicate column %q", e.Name)
}

// UnsupportedTypeError is returned when a #datatype annotation names a type
// this client does not recognize.
type UnsupportedTypeError struct {
	Text string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported datatype %q", e.Text)
}

// IncompleteTableError is returned when the stream ends while an annotation
// block has been started but not finished with a header row.
type IncompleteTableError struct{}

func (e *IncompleteTableError) Error() string {
	return "stream ended with an incomplete table (annotation block never reached a header row)"
}

// ValueDecodeError is returned when a data cell cannot be decoded as its
// column's declared type. The parser never skips the offending record; it
// surfaces this error and ends the stream.
type ValueDecodeError struct {
	Table  int
	Record int
	Column string
	Cause  error
}

func (e *ValueDecodeError) Error() string {
	return fmt.Sprintf("table %d record %d: column %q: %v", e.Table, e.Record, e.Column, e.Cause)
}

func (e *ValueDecodeError) Unwrap() error { return e.Cause }

// MissingValueError is returned when a cell is empty, no default applies,
// and the column's type cannot represent an absent value (only String can).
type MissingValueError struct {
	Column string
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("missing value for column %q", e.Column)
}

// QueryError is returned when the server streams a result table whose
// header marks it as an error table (see SPEC_FULL.md §4.4.1): the query
// started executing, began a 200 response, and then failed mid-stream.
type QueryError struct {
	Message   string
	Reference string
}

func (e *QueryError) Error() string {
	if e.Reference != "" {
		return fmt.Sprintf("query error: %s (reference %s)", e.Message, e.Reference)
	}
	return fmt.Sprintf("query error: %s", e.Message)
}

// TransportError wraps an I/O failure encountered while reading the
// response body, whether before or during the byte stream.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// HTTPError is returned when the server responds with a status >= 400. Body
// is the response body, truncated to the configured max_error_body cap.
type HTTPError struct {
	Status int
	Body   []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}
