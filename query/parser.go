package query

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
)

// Parser is the annotated-CSV state machine. It consumes logical lines from
// a [LineFramer], recognizes annotation rows, header rows, and data rows,
// maintains the active table's schema, and emits [Record] values one at a
// time. A Parser is driven entirely by [Parser.Next]; there is no internal
// buffering beyond the current line and the current table's metadata
// (spec.md §5 memory bound).
type Parser struct {
	framer *LineFramer
	logger *slog.Logger

	lineNo int

	tableIndex  int
	recordIndex int

	// annotation-block accumulators for the table currently being opened.
	haveDatatype         bool
	haveGroup            bool
	annotationFieldCount int
	kinds                []Kind
	groupFlags           []bool
	defaults             []string

	phaseInTable      bool
	meta              *TableMetadata
	pendingErrorTable bool

	done bool
}

// Option configures a [Parser] at construction.
type Option func(*Parser)

// WithMaxLineBytes overrides the line framer's byte bound.
func WithMaxLineBytes(n int) Option {
	return func(p *Parser) { p.framer.maxLineBytes = n }
}

// WithLogger attaches a logger used for non-fatal diagnostic messages. A
// nil logger (the default) disables logging.
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) { p.logger = l }
}

// NewParser builds a Parser reading annotated CSV from src.
func NewParser(src io.Reader, opts ...Option) *Parser {
	p := &Parser{
		framer:               NewLineFramer(src, 0),
		annotationFieldCount: -1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RecordSeq is the range-over-func shape of a parsed record stream, for
// callers that prefer `for rec, err := range seq`-style iteration over
// calling [Parser.Next] directly.
type RecordSeq = iter.Seq2[Record, error]

// Stream adapts Next into a [RecordSeq]. Iteration stops after the first
// error, which is yielded as the final pair with a zero Record.
func (p *Parser) Stream(ctx context.Context) RecordSeq {
	return func(yield func(Record, error) bool) {
		for {
			rec, err, ok := p.Next(ctx)
			if err != nil {
				yield(Record{}, err)
				return
			}
			if !ok {
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Next advances the state machine and returns the next Record. ok is false
// when the stream has ended, either cleanly (err is nil) or because err
// terminated it. Once Next returns a non-nil error or ok=false, every
// subsequent call returns ok=false, err=nil.
func (p *Parser) Next(ctx context.Context) (Record, error, bool) {
	for {
		if p.done {
			return Record{}, nil, false
		}

		line, lerr := p.framer.Next(ctx)
		if lerr != nil {
			p.done = true
			if lerr == io.EOF {
				if p.annotationInProgress() {
					return Record{}, &IncompleteTableError{}, false
				}
				return Record{}, nil, false
			}
			return Record{}, lerr, false
		}
		p.lineNo++

		rec, hasRecord, ferr := p.feed(line)
		if ferr != nil {
			p.done = true
			return Record{}, ferr, false
		}
		if hasRecord {
			return rec, nil, true
		}
	}
}

// annotationInProgress reports whether an annotation block has been opened
// for a table that never reached its header row.
func (p *Parser) annotationInProgress() bool {
	return !p.phaseInTable && (p.haveDatatype || p.haveGroup || p.defaults != nil)
}

// feed processes one logical line, looping internally to re-process the
// same line when a data-table row turns out to be the first annotation row
// of a new table (spec.md §4.4: "InTable, annotation row -> Start, then
// re-feed").
func (p *Parser) feed(line []byte) (Record, bool, error) {
	for {
		if len(line) == 0 {
			if p.phaseInTable {
				p.retireTable()
			}
			return Record{}, false, nil
		}

		fields, err := splitRow(line)
		if err != nil {
			reason := "malformed row"
			if se, ok := err.(*rowSyntaxError); ok {
				reason = se.reason
			}
			return Record{}, false, &MalformedRowError{LineNo: p.lineNo, Reason: reason}
		}

		marker := string(fields[0])
		isAnnotation := len(marker) > 0 && marker[0] == '#'

		if p.phaseInTable {
			if isAnnotation {
				p.retireTable()
				continue
			}
			return p.feedDataRow(fields)
		}

		if isAnnotation {
			if err := p.applyAnnotation(marker, fields[1:]); err != nil {
				return Record{}, false, err
			}
			return Record{}, false, nil
		}

		if !p.haveDatatype {
			return Record{}, false, &MalformedRowError{
				LineNo: p.lineNo,
				Reason: "header row encountered without a #datatype annotation",
			}
		}
		if err := p.finalizeHeader(fields); err != nil {
			return Record{}, false, err
		}
		return Record{}, false, nil
	}
}

func (p *Parser) feedDataRow(fields [][]byte) (Record, bool, error) {
	if p.pendingErrorTable {
		if len(fields) < 3 {
			return Record{}, false, &MalformedRowError{
				LineNo: p.lineNo,
				Reason: "error table row has too few fields",
			}
		}
		if p.logger != nil {
			p.logger.Warn("query returned an error result table", "table", p.meta.Index)
		}
		return Record{}, false, &QueryError{
			Message:   string(fields[1]),
			Reference: string(fields[2]),
		}
	}

	rec, err := p.buildRecord(fields)
	if err != nil {
		return Record{}, false, err
	}
	p.recordIndex++
	return rec, true, nil
}

func (p *Parser) buildRecord(fields [][]byte) (Record, error) {
	cols := p.meta.Columns()
	if len(fields)-1 != len(cols) {
		return Record{}, &SchemaMismatchError{Expected: len(cols), Got: len(fields) - 1}
	}

	values := make([]Value, len(cols))
	for i, col := range cols {
		cell := string(fields[i+1])
		v, err := decode(cell, col.Kind, col.Default)
		if err != nil {
			if err == errMissingValue {
				return Record{}, &MissingValueError{Column: col.Name}
			}
			return Record{}, &ValueDecodeError{
				Table:  p.meta.Index,
				Record: p.recordIndex,
				Column: col.Name,
				Cause:  err,
			}
		}
		values[i] = v
	}
	return Record{meta: p.meta, values: values}, nil
}

// applyAnnotation folds one annotation row (#datatype, #group, or #default)
// into the accumulators for the table currently being opened.
func (p *Parser) applyAnnotation(marker string, rawFields [][]byte) error {
	n := len(rawFields)
	if p.annotationFieldCount == -1 {
		p.annotationFieldCount = n
	} else if n != p.annotationFieldCount {
		return &SchemaMismatchError{Expected: p.annotationFieldCount, Got: n}
	}

	switch marker {
	case "#datatype":
		kinds := make([]Kind, n)
		for i, f := range rawFields {
			k, err := parseKind(string(f))
			if err != nil {
				return err
			}
			kinds[i] = k
		}
		p.kinds = kinds
		p.haveDatatype = true
	case "#group":
		groups := make([]bool, n)
		for i, f := range rawFields {
			groups[i] = string(f) == "true"
		}
		p.groupFlags = groups
		p.haveGroup = true
	case "#default":
		if p.defaults == nil {
			p.defaults = make([]string, n)
		}
		for i, f := range rawFields {
			if len(f) > 0 {
				p.defaults[i] = string(f)
			}
		}
	default:
		return &MalformedRowError{
			LineNo: p.lineNo,
			Reason: fmt.Sprintf("unrecognized annotation marker %q", marker),
		}
	}
	return nil
}

// finalizeHeader builds the active TableMetadata from the accumulated
// annotations and the header row's column names.
func (p *Parser) finalizeHeader(fields [][]byte) error {
	colCount := len(fields) - 1
	if p.annotationFieldCount != colCount {
		return &SchemaMismatchError{Expected: p.annotationFieldCount, Got: colCount}
	}

	names := make([]string, colCount)
	for i, f := range fields[1:] {
		names[i] = string(f)
	}

	groups := p.groupFlags
	if groups == nil {
		groups = make([]bool, colCount)
	}
	defaults := p.defaults
	if defaults == nil {
		defaults = make([]string, colCount)
	}

	meta, err := newTableMetadata(p.tableIndex, names, p.kinds, groups, defaults)
	if err != nil {
		return err
	}

	if colCount >= 2 && names[0] == "error" && names[1] == "reference" {
		p.pendingErrorTable = true
	}

	p.meta = meta
	p.tableIndex++
	p.recordIndex = 0
	p.phaseInTable = true
	p.resetAnnotationAccumulators()
	return nil
}

func (p *Parser) retireTable() {
	p.phaseInTable = false
	p.meta = nil
	p.pendingErrorTable = false
	p.recordIndex = 0
	p.resetAnnotationAccumulators()
}

func (p *Parser) resetAnnotationAccumulators() {
	p.haveDatatype = false
	p.haveGroup = false
	p.annotationFieldCount = -1
	p.kinds = nil
	p.groupFlags = nil
	p.defaults = nil
}
