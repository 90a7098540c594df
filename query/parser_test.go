package query

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/tsquery-go/fluxclient/query/internal/fixture"
)

func drainAll(t *testing.T, p *Parser) ([]Record, error) {
	t.Helper()
	var records []Record
	for {
		rec, err, ok := p.Next(context.Background())
		if err != nil {
			return records, err
		}
		if !ok {
			return records, nil
		}
		records = append(records, rec)
	}
}

// TestMinimalSingleRecord is scenario S1.
func TestMinimalSingleRecord(t *testing.T) {
	body := "#datatype,string,long,dateTime:RFC3339,double\n" +
		"#group,false,false,false,false\n" +
		"#default,_result,,,\n" +
		",result,table,_time,_value\n" +
		",,0,2024-01-01T00:00:00Z,1.5\n"

	p := NewParser(strings.NewReader(body))
	records, err := drainAll(t, p)
	if err != nil {
		t.Fatalf("drainAll: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]

	result, ok := rec.String("result")
	if !ok || result != "_result" {
		t.Errorf("result = %q, %v", result, ok)
	}
	table, ok := rec.Long("table")
	if !ok || table != 0 {
		t.Errorf("table = %v, %v", table, ok)
	}
	ts, ok := rec.Time()
	if !ok || !ts.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("_time = %v, %v", ts, ok)
	}
	v, ok := rec.FloatValue()
	if !ok || v != 1.5 {
		t.Errorf("_value = %v, %v", v, ok)
	}
}

// TestTwoTables is scenario S2.
func TestTwoTables(t *testing.T) {
	var b fixture.Builder
	b.Table(
		[]string{"_value"}, []string{"long"}, []bool{false}, []string{""},
		[][]string{{"1"}},
	)
	b.Table(
		[]string{"_value"}, []string{"long"}, []bool{false}, []string{""},
		[][]string{{"2"}},
	)

	p := NewParser(strings.NewReader(b.String()))
	records, err := drainAll(t, p)
	if err != nil {
		t.Fatalf("drainAll: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Table().Index != 0 || records[1].Table().Index != 1 {
		t.Fatalf("table indices: %d, %d", records[0].Table().Index, records[1].Table().Index)
	}
	v0, _ := records[0].Long("_value")
	v1, _ := records[1].Long("_value")
	if v0 != 1 || v1 != 2 {
		t.Fatalf("got %d, %d", v0, v1)
	}
}

// TestDefaultSubstitution is scenario S3.
func TestDefaultSubstitution(t *testing.T) {
	body := "#datatype,string,long\n" +
		"#group,false,false\n" +
		"#default,_result,\n" +
		",result,n\n" +
		",,7\n"

	p := NewParser(strings.NewReader(body))
	records, err := drainAll(t, p)
	if err != nil {
		t.Fatalf("drainAll: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records", len(records))
	}
	result, _ := records[0].String("result")
	if result != "_result" {
		t.Fatalf("got %q", result)
	}
}

// TestValueDecodeFailure is scenario S4.
func TestValueDecodeFailure(t *testing.T) {
	body := "#datatype,long\n" +
		"#group,false\n" +
		"#default,\n" +
		",_value\n" +
		",1\n" +
		",1.5\n"

	p := NewParser(strings.NewReader(body))

	rec, err, ok := p.Next(context.Background())
	if err != nil || !ok {
		t.Fatalf("first record: err=%v ok=%v", err, ok)
	}
	v, _ := rec.Long("_value")
	if v != 1 {
		t.Fatalf("got %d", v)
	}

	_, err, ok = p.Next(context.Background())
	if ok {
		t.Fatal("want no record for malformed decode")
	}
	var decodeErr *ValueDecodeError
	if !asError(err, &decodeErr) {
		t.Fatalf("want *ValueDecodeError, got %v", err)
	}
	if decodeErr.Column != "_value" {
		t.Errorf("got column %q", decodeErr.Column)
	}

	_, err, ok = p.Next(context.Background())
	if err != nil || ok {
		t.Fatalf("stream must end after the error: err=%v ok=%v", err, ok)
	}
}

// TestChunkBoundaryFuzz is scenario S5: the headline property.
func TestChunkBoundaryFuzz(t *testing.T) {
	var b fixture.Builder
	b.Table(
		[]string{"_time", "_value"}, []string{"dateTime:RFC3339", "double"}, []bool{false, false}, []string{"", ""},
		[][]string{
			{"2024-01-01T00:00:00Z", "1"},
			{"2024-01-01T00:00:01Z", "2"},
			{"2024-01-01T00:00:02Z", "3"},
		},
	)
	body := []byte(b.String())

	baseline := parseAll(t, &chunkedReader{data: body, chunkSize: len(body)})

	for cut := 1; cut < len(body); cut++ {
		got := parseAll(t, &twoChunkReader{data: body, cut: cut})
		if len(got) != len(baseline) {
			t.Fatalf("cut=%d: got %d records, want %d", cut, len(got), len(baseline))
		}
		for i := range baseline {
			if !got[i].Equal(baseline[i]) {
				t.Fatalf("cut=%d record %d differs", cut, i)
			}
		}
	}
}

func parseAll(t *testing.T, r io.Reader) []Record {
	t.Helper()
	p := NewParser(r)
	records, err := drainAll(t, p)
	if err != nil {
		t.Fatalf("drainAll: %v", err)
	}
	return records
}

type twoChunkReader struct {
	data []byte
	cut  int
	pos  int
}

func (r *twoChunkReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	end := len(r.data)
	if r.pos == 0 && r.cut < end {
		end = r.cut
	}
	n := copy(p, r.data[r.pos:end])
	r.pos += n
	return n, nil
}

// TestOversizedLine is scenario S6.
func TestOversizedLine(t *testing.T) {
	body := strings.Repeat("x", 10*1024)
	p := NewParser(strings.NewReader(body), WithMaxLineBytes(4096))
	_, err, ok := p.Next(context.Background())
	if ok {
		t.Fatal("want no record")
	}
	var tooLong *LineTooLongError
	if !asError(err, &tooLong) {
		t.Fatalf("want *LineTooLongError, got %v", err)
	}
	if tooLong.Limit != 4096 {
		t.Errorf("got limit %d", tooLong.Limit)
	}
}

// TestErrorResultTable is scenario S8.
func TestErrorResultTable(t *testing.T) {
	var b fixture.Builder
	b.ErrorTable("failed to execute query", "123")

	p := NewParser(strings.NewReader(b.String()))
	records, err := drainAll(t, p)
	if len(records) != 0 {
		t.Fatalf("want zero records, got %d", len(records))
	}
	var qerr *QueryError
	if !asError(err, &qerr) {
		t.Fatalf("want *QueryError, got %v", err)
	}
	if qerr.Message != "failed to execute query" || qerr.Reference != "123" {
		t.Errorf("got %+v", qerr)
	}
}

func TestIncompleteTableAtEOF(t *testing.T) {
	body := "#datatype,long\n#group,false\n"
	p := NewParser(strings.NewReader(body))
	_, err, ok := p.Next(context.Background())
	if ok {
		t.Fatal("want no record")
	}
	var incomplete *IncompleteTableError
	if !asError(err, &incomplete) {
		t.Fatalf("want *IncompleteTableError, got %v", err)
	}
}

func TestZeroTablesIsValid(t *testing.T) {
	p := NewParser(strings.NewReader(""))
	records, err := drainAll(t, p)
	if err != nil {
		t.Fatalf("drainAll: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("got %d records", len(records))
	}
}

func TestSchemaMismatch(t *testing.T) {
	body := "#datatype,long,long\n#group,false,false\n#default,,\n,a,b\n,1\n"
	p := NewParser(strings.NewReader(body))
	_, err, ok := p.Next(context.Background())
	if ok {
		t.Fatal("want no record")
	}
	var mismatch *SchemaMismatchError
	if !asError(err, &mismatch) {
		t.Fatalf("want *SchemaMismatchError, got %v", err)
	}
}

func TestDuplicateColumnInHeader(t *testing.T) {
	body := "#datatype,long,long\n#group,false,false\n#default,,\n,a,a\n,1,2\n"
	p := NewParser(strings.NewReader(body))
	_, err, ok := p.Next(context.Background())
	if ok {
		t.Fatal("want no record")
	}
	var dup *DuplicateColumnError
	if !asError(err, &dup) {
		t.Fatalf("want *DuplicateColumnError, got %v", err)
	}
}

func TestUnsupportedDatatype(t *testing.T) {
	body := "#datatype,complex128\n#group,false\n#default,\n,a\n,1\n"
	p := NewParser(strings.NewReader(body))
	_, err, ok := p.Next(context.Background())
	if ok {
		t.Fatal("want no record")
	}
	var unsupported *UnsupportedTypeError
	if !asError(err, &unsupported) {
		t.Fatalf("want *UnsupportedTypeError, got %v", err)
	}
}

func TestAnnotationOrderIsUnconstrained(t *testing.T) {
	body := "#default,_result\n#group,false\n#datatype,string\n,result\n,x\n"
	p := NewParser(strings.NewReader(body))
	records, err := drainAll(t, p)
	if err != nil {
		t.Fatalf("drainAll: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records", len(records))
	}
	result, _ := records[0].String("result")
	if result != "x" {
		t.Fatalf("got %q", result)
	}
}

