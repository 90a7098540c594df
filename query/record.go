package query

import "time"

// Record is one decoded data row: an ordered, named tuple of Values sharing
// a TableMetadata by reference. A Record's lifetime is independent of the
// parser's continued advancement; once returned it is fully owned by the
// caller.
type Record struct {
	meta   *TableMetadata
	values []Value
}

// Table returns the metadata shared by every Record from the same result
// table.
func (r Record) Table() *TableMetadata { return r.meta }

// Get performs a by-name lookup, returning the zero Value and false if no
// column of that name exists on this Record's table.
func (r Record) Get(name string) (Value, bool) {
	_, i, ok := r.meta.ColumnByName(name)
	if !ok {
		return Value{}, false
	}
	return r.values[i], true
}

// String returns the named column's value as a string, if present and of
// String kind.
func (r Record) String(name string) (string, bool) {
	v, ok := r.Get(name)
	if !ok {
		return "", false
	}
	return v.AsString()
}

// Double returns the named column's value as a float64, if present and of
// Double kind.
func (r Record) Double(name string) (float64, bool) {
	v, ok := r.Get(name)
	if !ok {
		return 0, false
	}
	return v.AsDouble()
}

// Long returns the named column's value as an int64, if present and of Long
// kind.
func (r Record) Long(name string) (int64, bool) {
	v, ok := r.Get(name)
	if !ok {
		return 0, false
	}
	return v.AsLong()
}

// Bool returns the named column's value as a bool, if present and of Bool
// kind.
func (r Record) Bool(name string) (bool, bool) {
	v, ok := r.Get(name)
	if !ok {
		return false, false
	}
	return v.AsBool()
}

// Time returns the conventional "_time" column as a time.Time.
func (r Record) Time() (time.Time, bool) {
	v, ok := r.Get("_time")
	if !ok {
		return time.Time{}, false
	}
	return v.AsTimeRFC()
}

// Measurement returns the conventional "_measurement" column.
func (r Record) Measurement() (string, bool) {
	return r.String("_measurement")
}

// Field returns the conventional "_field" column.
func (r Record) Field() (string, bool) {
	return r.String("_field")
}

// FloatValue returns the conventional "_value" column as a float64.
func (r Record) FloatValue() (float64, bool) {
	return r.Double("_value")
}

// Equal reports whether r and other carry the same column count, names, and
// values in the same order. It does not require the two Records to share
// the same *TableMetadata pointer, only equivalent column schemas, so that
// Records from distinct but structurally identical tables compare equal.
func (r Record) Equal(other Record) bool {
	a, b := r.meta.Columns(), other.meta.Columns()
	if len(a) != len(b) || len(r.values) != len(other.values) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Kind != b[i].Kind {
			return false
		}
		if !r.values[i].Equal(other.values[i]) {
			return false
		}
	}
	return true
}
