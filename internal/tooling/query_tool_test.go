package tooling

import (
	"errors"
	"testing"
)

func TestQueryToolDefinition_ShouldNameExecuteQuery(t *testing.T) {
	d := QueryToolDefinition()

	if d.Name != "execute_query" {
		t.Errorf("Expected execute_query, got %q", d.Name)
	}
	if d.Description == "" {
		t.Error("Expected a description")
	}
	if d.Parameters == nil {
		t.Fatal("Expected parameters schema")
	}
}

func TestParseQueryInput_ShouldExtractQuery(t *testing.T) {
	in, err := ParseQueryInput(`{"query":"SELECT * FROM t"}`)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if in.Query != "SELECT * FROM t" {
		t.Errorf("Unexpected query %q", in.Query)
	}
}

func TestParseQueryInput_WhenQueryMissing_ShouldReturnErrNoQuery(t *testing.T) {
	for _, raw := range []string{`{}`, `{"query":""}`, `not json`, `{"query":5}`} {
		if _, err := ParseQueryInput(raw); !errors.Is(err, ErrNoQuery) {
			t.Errorf("ParseQueryInput(%q): expected ErrNoQuery, got %v", raw, err)
		}
	}
}
