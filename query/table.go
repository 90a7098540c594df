package query

// Column describes one named, typed field of a result table, as declared by
// the table's annotation block.
type Column struct {
	Name    string
	Kind    Kind
	Group   bool
	Default string
}

// TableMetadata is the schema shared by reference across every Record
// belonging to one result table. It is built once, when the table's header
// row is reached, and never mutated afterward.
type TableMetadata struct {
	// Index is this table's position within the result set, counting from
	// zero in the order annotation blocks were opened.
	Index int

	columns []Column
}

// Columns returns the table's columns in declaration order. The returned
// slice must not be mutated.
func (m *TableMetadata) Columns() []Column { return m.columns }

// ColumnNames returns the declared column names in order.
func (m *TableMetadata) ColumnNames() []string {
	names := make([]string, len(m.columns))
	for i, c := range m.columns {
		names[i] = c.Name
	}
	return names
}

// ColumnByName performs the sequential scan lookup a Record uses for
// by-name access. Column counts in practice are small enough (well under a
// few dozen) that this beats a map's allocation cost.
func (m *TableMetadata) ColumnByName(name string) (Column, int, bool) {
	for i, c := range m.columns {
		if c.Name == name {
			return c, i, true
		}
	}
	return Column{}, -1, false
}

// newTableMetadata builds a TableMetadata from the per-column annotation
// accumulators the parser has gathered, validating uniqueness of column
// names. It is the sole constructor; callers past this point treat the
// result as immutable.
func newTableMetadata(index int, names []string, kinds []Kind, groups []bool, defaults []string) (*TableMetadata, error) {
	seen := make(map[string]struct{}, len(names))
	cols := make([]Column, len(names))
	for i, name := range names {
		if _, dup := seen[name]; dup {
			return nil, &DuplicateColumnError{Name: name}
		}
		seen[name] = struct{}{}
		cols[i] = Column{
			Name:    name,
			Kind:    kinds[i],
			Group:   groups[i],
			Default: defaults[i],
		}
	}
	return &TableMetadata{Index: index, columns: cols}, nil
}
