// Package render formats query results, schema graphs and chat output for the terminal.
package render

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"peek/internal/db"
	"peek/internal/domain"
	"peek/internal/schema"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	nullStyle   = cellStyle.Faint(true)
	mutedStyle  = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	toolStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// namedColors maps the colour names accepted in connection config to ANSI codes.
var namedColors = map[string]string{
	"black": "0", "red": "1", "green": "2", "yellow": "3",
	"blue": "4", "magenta": "5", "cyan": "6", "white": "7",
}

// Result draws a query result as a bordered table, with a row count footer.
func Result(res *db.Result) string {
	if res == nil || len(res.Rows) == 0 {
		return mutedStyle.Render("(0 rows)")
	}
	headers := make([]string, len(res.Headers))
	for i, h := range res.Headers {
		headers[i] = h.Name
	}
	rows := make([][]string, len(res.Rows))
	for i, r := range res.Rows {
		cells := make([]string, len(r))
		for j, v := range r {
			cells[j] = v.String()
		}
		rows[i] = cells
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row >= 0 && row < len(res.Rows) && col < len(res.Rows[row]) && res.Rows[row][col].IsNull() {
				return nullStyle
			}
			return cellStyle
		})

	noun := "rows"
	if len(rows) == 1 {
		noun = "row"
	}
	return t.Render() + "\n" + mutedStyle.Render(fmt.Sprintf("(%d %s)", len(rows), noun))
}

// Graph lists every table with its columns and the reverse foreign-key index.
func Graph(g *schema.Graph) string {
	if g == nil || len(g.TableNames()) == 0 {
		return mutedStyle.Render("(no tables)")
	}
	var sb strings.Builder
	for _, name := range g.TableNames() {
		sb.WriteString(headerStyle.UnsetPadding().Render(name))
		sb.WriteByte('\n')
		for _, c := range g.Tables[name] {
			fmt.Fprintf(&sb, "  %s %s\n", c.Name, mutedStyle.Render(c.Type))
		}
	}
	if len(g.References) > 0 {
		sb.WriteString(headerStyle.UnsetPadding().Render("referenced by"))
		sb.WriteByte('\n')
		for _, key := range slices.Sorted(maps.Keys(g.References)) {
			fmt.Fprintf(&sb, "  %s <- %s\n", key, strings.Join(g.References[key], ", "))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// ConnectionLabel renders "[workspace] name" in the connection's colour.
func ConnectionLabel(c domain.ConnectionChoice) string {
	style := lipgloss.NewStyle().Bold(true)
	if color := c.Connection.Color; color != "" {
		if code, ok := namedColors[strings.ToLower(color)]; ok {
			color = code
		}
		style = style.Foreground(lipgloss.Color(color))
	}
	return style.Render(c.DisplayName())
}

// ToolCall renders a tool invocation line shown while the model works.
func ToolCall(call domain.ToolCall) string {
	return toolStyle.Render(fmt.Sprintf("-> %s %s", call.Name, call.Arguments))
}

// Error renders an error line.
func Error(err error) string {
	return errorStyle.Render("error: ") + err.Error()
}

// Muted renders secondary text such as token counts.
func Muted(s string) string {
	return mutedStyle.Render(s)
}
