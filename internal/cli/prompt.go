package cli

import (
	"fmt"

	"peek/internal/schema"
	"peek/internal/tooling"
)

const systemPromptTemplate = `You are a database expert. Help the user write queries against a %s database and analyse the results.
The schema below lists every table with its columns, followed by references in the form
referenced table.column <- referencing table.column.

%s
Call the %s tool only when the user asks to run a query or needs data from the database.`

// SystemPrompt builds the system instruction for a chat session over graph.
func SystemPrompt(dialect string, graph *schema.Graph) string {
	described := "tables:\n"
	if graph != nil {
		described = graph.Describe()
	}
	return fmt.Sprintf(systemPromptTemplate, dialect, described, tooling.QueryToolName)
}
