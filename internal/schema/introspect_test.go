package schema

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"peek/internal/domain"
)

// =============================================================================
// Build tests
// =============================================================================

func TestBuild_ShouldGroupColumnsInArrivalOrder(t *testing.T) {
	columns := []ColumnRow{
		{Table: "orders", Column: "id", Type: "int4"},
		{Table: "customers", Column: "id", Type: "int4"},
		{Table: "orders", Column: "customer_id", Type: "int4"},
		{Table: "customers", Column: "email", Type: "text"},
	}

	g := Build(columns, nil)

	if diff := cmp.Diff([]string{"orders", "customers"}, g.TableNames()); diff != "" {
		t.Errorf("table order mismatch (-want +got):\n%s", diff)
	}
	wantOrders := []Column{{Name: "id", Type: "int4"}, {Name: "customer_id", Type: "int4"}}
	if diff := cmp.Diff(wantOrders, g.Tables["orders"]); diff != "" {
		t.Errorf("orders columns mismatch (-want +got):\n%s", diff)
	}
	if len(g.References) != 0 {
		t.Errorf("expected no references, got %v", g.References)
	}
}

func TestBuild_ShouldInvertForeignKeys(t *testing.T) {
	fks := []ForeignKeyRow{
		{ReferencingTable: "orders", ReferencingColumn: "customer_id", ReferencedTable: "customers", ReferencedColumn: "id"},
		{ReferencingTable: "invoices", ReferencingColumn: "customer_id", ReferencedTable: "customers", ReferencedColumn: "id"},
		{ReferencingTable: "lines", ReferencingColumn: "order_id", ReferencedTable: "orders", ReferencedColumn: "id"},
	}

	g := Build(nil, fks)

	want := map[string][]string{
		"customers.id": {"orders.customer_id", "invoices.customer_id"},
		"orders.id":    {"lines.order_id"},
	}
	if diff := cmp.Diff(want, g.References); diff != "" {
		t.Errorf("references mismatch (-want +got):\n%s", diff)
	}
}

func TestGraph_Describe_ShouldListTablesAndReferences(t *testing.T) {
	g := Build(
		[]ColumnRow{{Table: "orders", Column: "id", Type: "int4"}, {Table: "orders", Column: "note", Type: ""}},
		[]ForeignKeyRow{{ReferencingTable: "orders", ReferencingColumn: "customer_id", ReferencedTable: "customers", ReferencedColumn: "id"}},
	)

	got := g.Describe()

	for _, want := range []string{"orders(id int4, note)", "customers.id <- orders.customer_id"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in:\n%s", want, got)
		}
	}
}

func TestGraph_MarshalJSON_ShouldKeepTableOrder(t *testing.T) {
	g := Build(
		[]ColumnRow{{Table: "zeta", Column: "id", Type: "int4"}, {Table: "alpha", Column: "id", Type: "int4"}},
		nil,
	)

	data, err := json.Marshal(g)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	want := `{"tables":{"zeta":[{"name":"id","type":"int4"}],"alpha":[{"name":"id","type":"int4"}]},"references":{}}`
	if string(data) != want {
		t.Errorf("want %s, got %s", want, data)
	}
}

// =============================================================================
// Introspector tests
// =============================================================================

type failingQuerier struct {
	failOn string
	calls  int
}

func (f *failingQuerier) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	f.calls++
	if strings.Contains(query, f.failOn) {
		return errors.New("permission denied")
	}
	return nil
}

func TestIntrospect_WhenColumnQueryFails_ShouldReturnIntrospectionError(t *testing.T) {
	q := &failingQuerier{failOn: "pragma_table_info"}

	g, err := NewIntrospector(q, SQLite).Introspect(context.Background())

	var ie *domain.IntrospectionError
	if !errors.As(err, &ie) || ie.Stage != "columns" {
		t.Fatalf("expected columns IntrospectionError, got %v", err)
	}
	if g != nil {
		t.Error("expected no partial graph")
	}
	if q.calls != 1 {
		t.Errorf("expected the foreign key query to be skipped, got %d calls", q.calls)
	}
}

func TestIntrospect_WhenForeignKeyQueryFails_ShouldReturnNoGraph(t *testing.T) {
	q := &failingQuerier{failOn: "pragma_foreign_key_list"}

	g, err := NewIntrospector(q, SQLite).Introspect(context.Background())

	var ie *domain.IntrospectionError
	if !errors.As(err, &ie) || !strings.Contains(ie.Error(), "foreign key") {
		t.Fatalf("expected foreign key IntrospectionError, got %v", err)
	}
	if g != nil {
		t.Error("expected no partial graph")
	}
}

func TestNewIntrospector_WhenQuerierNil_ShouldPanic(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for nil querier")
		}
	}()
	NewIntrospector(nil, Postgres)
}

func openSQLite(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Connect("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestIntrospect_SQLite_ShouldBuildReverseForeignKeyIndex(t *testing.T) {
	// Given: orders(id, customer_id) referencing customers(id)
	db := openSQLite(t)
	db.MustExec(`CREATE TABLE customers (id INTEGER PRIMARY KEY)`)
	db.MustExec(`CREATE TABLE orders (id INTEGER PRIMARY KEY, customer_id INTEGER REFERENCES customers(id))`)

	// When: introspecting
	g, err := NewIntrospector(db, SQLite).Introspect(context.Background())
	if err != nil {
		t.Fatalf("introspect: %v", err)
	}

	// Then: the referenced column lists the referencing one
	if diff := cmp.Diff([]string{"orders.customer_id"}, g.References["customers.id"]); diff != "" {
		t.Errorf("references mismatch (-want +got):\n%s", diff)
	}
	wantOrders := []Column{{Name: "id", Type: "INTEGER"}, {Name: "customer_id", Type: "INTEGER"}}
	if diff := cmp.Diff(wantOrders, g.Tables["orders"]); diff != "" {
		t.Errorf("orders columns mismatch (-want +got):\n%s", diff)
	}
	if len(g.Tables["customers"]) != 1 {
		t.Errorf("expected customers(id), got %v", g.Tables["customers"])
	}
}

func TestIntrospect_SQLite_ShouldIncludeTemporaryTables(t *testing.T) {
	db := openSQLite(t)
	db.MustExec(`CREATE TEMP TABLE scratch (k TEXT, v JSON)`)

	g, err := NewIntrospector(db, SQLite).Introspect(context.Background())
	if err != nil {
		t.Fatalf("introspect: %v", err)
	}

	want := []Column{{Name: "k", Type: "TEXT"}, {Name: "v", Type: "JSON"}}
	if diff := cmp.Diff(want, g.Tables["scratch"]); diff != "" {
		t.Errorf("scratch columns mismatch (-want +got):\n%s", diff)
	}
}

func TestIntrospect_SQLite_WhenForeignKeyOmitsColumn_ShouldResolvePrimaryKey(t *testing.T) {
	db := openSQLite(t)
	db.MustExec(`CREATE TABLE customers (cid INTEGER PRIMARY KEY)`)
	db.MustExec(`CREATE TABLE orders (id INTEGER PRIMARY KEY, customer INTEGER REFERENCES customers)`)

	g, err := NewIntrospector(db, SQLite).Introspect(context.Background())
	if err != nil {
		t.Fatalf("introspect: %v", err)
	}

	if diff := cmp.Diff([]string{"orders.customer"}, g.References["customers.cid"]); diff != "" {
		t.Errorf("references mismatch (-want +got):\n%s", diff)
	}
}
