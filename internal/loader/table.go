package loader

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingTable  = errors.New("missing table")
	ErrMissingColumn = errors.New("missing column")
)

// Table is an untyped, in-memory copy of a source table. Cells are null
// when the source value is SQL NULL or an empty CSV field.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]sql.NullString

	index map[string]int
}

func NewTable(name string, columns []string) *Table {
	t := &Table{
		Name:    name,
		Columns: columns,
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		t.index[normalizeColumn(c)] = i
	}
	return t
}

// Append adds a row, padding or truncating it to the table width.
func (t *Table) Append(row []sql.NullString) {
	if len(row) != len(t.Columns) {
		fixed := make([]sql.NullString, len(t.Columns))
		copy(fixed, row)
		row = fixed
	}
	t.Rows = append(t.Rows, row)
}

func (t *Table) Column(name string) (int, error) {
	idx, ok := t.index[normalizeColumn(name)]
	if !ok {
		return -1, fmt.Errorf("%w: %s.%s", ErrMissingColumn, t.Name, name)
	}
	return idx, nil
}

// columns resolves several column names at once.
func (t *Table) columns(names ...string) ([]int, error) {
	idx := make([]int, len(names))
	for i, name := range names {
		c, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		idx[i] = c
	}
	return idx, nil
}

type Diagnostics struct {
	Table      string         `json:"table"`
	Rows       int            `json:"rows"`
	Columns    int            `json:"columns"`
	Nulls      map[string]int `json:"nulls"`
	Duplicates int            `json:"duplicates"`
}

func (d Diagnostics) TotalNulls() int {
	total := 0
	for _, n := range d.Nulls {
		total += n
	}
	return total
}

// Diagnostics reports the shape of the table, nulls per column and the number
// of rows that fully repeat an earlier row.
func (t *Table) Diagnostics() Diagnostics {
	d := Diagnostics{
		Table:   t.Name,
		Rows:    len(t.Rows),
		Columns: len(t.Columns),
		Nulls:   make(map[string]int, len(t.Columns)),
	}
	for _, c := range t.Columns {
		d.Nulls[c] = 0
	}

	seen := make(map[string]struct{}, len(t.Rows))
	var key strings.Builder
	for _, row := range t.Rows {
		key.Reset()
		for i, cell := range row {
			if !cell.Valid {
				d.Nulls[t.Columns[i]]++
				key.WriteByte(0)
			} else {
				key.WriteString(cell.String)
			}
			key.WriteByte(0x1f)
		}
		k := key.String()
		if _, dup := seen[k]; dup {
			d.Duplicates++
			continue
		}
		seen[k] = struct{}{}
	}
	return d
}

func normalizeColumn(name string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
}

func cell(row []sql.NullString, idx int) string {
	if idx < 0 || idx >= len(row) || !row[idx].Valid {
		return ""
	}
	return strings.TrimSpace(row[idx].String)
}
