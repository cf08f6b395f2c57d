package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Column is one table column and its native type name.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Graph is the aggregated description of a database handed to the model.
// References is a reverse foreign-key index: it is keyed by the referenced
// "table.column" and lists the "table.column" entries pointing at it.
type Graph struct {
	Tables     map[string][]Column `json:"tables"`
	References map[string][]string `json:"references"`

	order []string
}

// ColumnRow is one row of the column enumeration query.
type ColumnRow struct {
	Table   string `db:"table_name"`
	Column  string `db:"column_name"`
	Type    string `db:"column_type"`
	Ordinal int64  `db:"ordinal"`
}

// ForeignKeyRow is one row of the foreign-key enumeration query.
type ForeignKeyRow struct {
	ReferencingTable  string `db:"referencing_table"`
	ReferencingColumn string `db:"referencing_column"`
	ReferencedTable   string `db:"referenced_table"`
	ReferencedColumn  string `db:"referenced_column"`
}

// Build aggregates catalog rows into a Graph. Tables keep first-seen order and
// columns keep arrival order.
func Build(columns []ColumnRow, foreignKeys []ForeignKeyRow) *Graph {
	g := &Graph{
		Tables:     make(map[string][]Column),
		References: make(map[string][]string),
	}
	for _, c := range columns {
		if _, seen := g.Tables[c.Table]; !seen {
			g.order = append(g.order, c.Table)
		}
		g.Tables[c.Table] = append(g.Tables[c.Table], Column{Name: c.Column, Type: c.Type})
	}
	for _, fk := range foreignKeys {
		referenced := fk.ReferencedTable + "." + fk.ReferencedColumn
		referencing := fk.ReferencingTable + "." + fk.ReferencingColumn
		g.References[referenced] = append(g.References[referenced], referencing)
	}
	return g
}

// TableNames returns table names in first-seen order.
func (g *Graph) TableNames() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Describe renders the graph as plain text for a system prompt.
func (g *Graph) Describe() string {
	var sb strings.Builder
	sb.WriteString("tables:\n")
	for _, name := range g.order {
		cols := g.Tables[name]
		parts := make([]string, len(cols))
		for i, c := range cols {
			parts[i] = strings.TrimSpace(c.Name + " " + c.Type)
		}
		fmt.Fprintf(&sb, "  %s(%s)\n", name, strings.Join(parts, ", "))
	}
	if len(g.References) == 0 {
		return sb.String()
	}
	sb.WriteString("references (referenced <- referencing):\n")
	for _, key := range sortedKeys(g.References) {
		fmt.Fprintf(&sb, "  %s <- %s\n", key, strings.Join(g.References[key], ", "))
	}
	return sb.String()
}

// MarshalJSON writes tables as an object whose keys follow first-seen order.
func (g *Graph) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"tables":{`)
	for i, name := range g.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		cols, err := json.Marshal(g.Tables[name])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(cols)
	}
	buf.WriteString(`},"references":`)
	refs, err := json.Marshal(g.References)
	if err != nil {
		return nil, err
	}
	buf.Write(refs)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
