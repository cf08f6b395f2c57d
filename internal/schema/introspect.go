package schema

import (
	"context"
	"maps"
	"slices"

	"peek/internal/domain"
)

// Querier runs a query and scans every row into dest. *sqlx.DB and *sqlx.Conn satisfy it.
type Querier interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// Dialect holds the two catalog queries for one database engine. ColumnsQuery
// must yield table_name, column_name, column_type, ordinal; ForeignKeysQuery
// must yield referencing_table, referencing_column, referenced_table, referenced_column.
type Dialect struct {
	Name             string
	ColumnsQuery     string
	ForeignKeysQuery string
}

// Postgres enumerates the public schema plus temporary relations of the session.
var Postgres = Dialect{
	Name: "postgres",
	ColumnsQuery: `SELECT table_name, column_name, column_type, ordinal FROM (
    SELECT
        c.table_name::text AS table_name,
        c.column_name::text AS column_name,
        c.udt_name::text AS column_type,
        c.ordinal_position::bigint AS ordinal
    FROM information_schema.columns c
    WHERE c.table_schema = 'public'

    UNION ALL

    SELECT
        c.relname::text AS table_name,
        a.attname::text AS column_name,
        t.typname::text AS column_type,
        a.attnum::bigint AS ordinal
    FROM pg_class c
    JOIN pg_attribute a ON a.attrelid = c.oid
    JOIN pg_type t ON t.oid = a.atttypid
    WHERE c.relpersistence = 't'
      AND c.relkind IN ('r', 'p', 'v', 'm')
      AND a.attnum > 0
      AND NOT a.attisdropped
) AS cols
ORDER BY table_name, ordinal`,
	ForeignKeysQuery: `SELECT
    tc.table_name::text AS referencing_table,
    kcu.column_name::text AS referencing_column,
    ccu.table_name::text AS referenced_table,
    ccu.column_name::text AS referenced_column
FROM information_schema.table_constraints AS tc
JOIN information_schema.key_column_usage AS kcu
    ON tc.constraint_name = kcu.constraint_name
    AND tc.table_schema = kcu.table_schema
JOIN information_schema.constraint_column_usage AS ccu
    ON ccu.constraint_name = tc.constraint_name
    AND ccu.table_schema = tc.table_schema
WHERE tc.constraint_type = 'FOREIGN KEY'
  AND tc.table_schema = 'public'
ORDER BY tc.table_name, kcu.ordinal_position`,
}

// SQLite enumerates main and temp tables and views. A foreign key declared
// without a target column resolves to the referenced table's primary key.
var SQLite = Dialect{
	Name: "sqlite",
	ColumnsQuery: `SELECT
    m.name AS table_name,
    p.name AS column_name,
    p.type AS column_type,
    p.cid AS ordinal
FROM (
    SELECT name, type FROM sqlite_schema
    UNION ALL
    SELECT name, type FROM sqlite_temp_schema
) AS m
JOIN pragma_table_info(m.name) AS p
WHERE m.type IN ('table', 'view')
  AND m.name NOT LIKE 'sqlite_%'
ORDER BY m.name, p.cid`,
	ForeignKeysQuery: `SELECT
    m.name AS referencing_table,
    f."from" AS referencing_column,
    f."table" AS referenced_table,
    COALESCE(f."to", (
        SELECT k.name FROM pragma_table_info(f."table") AS k WHERE k.pk = 1
    ), '') AS referenced_column
FROM sqlite_schema AS m
JOIN pragma_foreign_key_list(m.name) AS f
WHERE m.type = 'table'
ORDER BY m.name, f.id, f.seq`,
}

// Introspector builds a Graph from a database's catalog.
type Introspector struct {
	q       Querier
	dialect Dialect
}

// NewIntrospector returns an Introspector issuing dialect's queries through q. q must not be nil.
func NewIntrospector(q Querier, dialect Dialect) *Introspector {
	if q == nil {
		panic("schema: querier must not be nil")
	}
	return &Introspector{q: q, dialect: dialect}
}

// Introspect runs both catalog queries and aggregates them. If either query
// fails it returns a *domain.IntrospectionError and no graph.
func (i *Introspector) Introspect(ctx context.Context) (*Graph, error) {
	var columns []ColumnRow
	if err := i.q.SelectContext(ctx, &columns, i.dialect.ColumnsQuery); err != nil {
		return nil, &domain.IntrospectionError{Stage: "columns", Err: err}
	}
	var foreignKeys []ForeignKeyRow
	if err := i.q.SelectContext(ctx, &foreignKeys, i.dialect.ForeignKeysQuery); err != nil {
		return nil, &domain.IntrospectionError{Stage: "foreign key info", Err: err}
	}
	return Build(columns, foreignKeys), nil
}

func sortedKeys(m map[string][]string) []string {
	return slices.Sorted(maps.Keys(m))
}
