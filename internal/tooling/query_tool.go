package tooling

import (
	"encoding/json"
	"errors"
	"fmt"

	"peek/internal/domain"
)

// QueryToolName is the name the model uses to ask for a query to be run.
const QueryToolName = "execute_query"

// QueryInput is the argument object of execute_query.
type QueryInput struct {
	Query string `json:"query" jsonschema:"description=The SQL query to execute against the connected database"`
}

// ErrNoQuery is returned by ParseQueryInput when the arguments carry no query.
var ErrNoQuery = errors.New("no query parameter provided")

// QueryToolDefinition describes execute_query with a schema reflected from QueryInput.
func QueryToolDefinition() domain.ToolDefinition {
	return CreateTool(
		QueryToolName,
		"Execute a SQL query against the connected database and return the result rows as JSON",
		GenerateSchema(QueryInput{}),
	)
}

// ParseQueryInput extracts the query from raw execute_query arguments.
func ParseQueryInput(raw string) (QueryInput, error) {
	var in QueryInput
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return QueryInput{}, fmt.Errorf("%w: %v", ErrNoQuery, err)
	}
	if in.Query == "" {
		return QueryInput{}, ErrNoQuery
	}
	return in, nil
}
