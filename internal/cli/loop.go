// Package cli runs interactive chat sessions against a database: it reads
// prompts, streams replies, dispatches tool calls and feeds their results
// back to the model.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"peek/internal/db"
	"peek/internal/domain"
	"peek/internal/render"
	"peek/internal/tooling"
)

// MaxToolHops bounds how many tool results are fed back for a single prompt.
// Each result is sent with its own request, so a reply with several calls
// only works against providers that accept a partially answered history.
// The OpenAI provider asks for one call per reply.
const MaxToolHops = 8

// toolCallMarker prefixes raw tool-call markup some local models leak as text.
const toolCallMarker = "<tool_call>"

// QueryExecutor runs SQL for the session loop. *db.Database satisfies it.
type QueryExecutor interface {
	Results(ctx context.Context, query string) (*db.Result, error)
	Execute(ctx context.Context, stmt string) (string, error)
}

// Conversation is the streaming chat engine driven by the loop. *brain.Session satisfies it.
type Conversation interface {
	StreamCompletion(ctx context.Context, prompt string, onEvent func(domain.StreamEvent)) ([]domain.ToolCall, error)
	AddToolResult(ctx context.Context, toolCallID, result string, onEvent func(domain.StreamEvent)) ([]domain.ToolCall, error)
}

// tokenCounter is implemented by conversations that can report context size.
type tokenCounter interface {
	ContextTokens() (int, error)
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithLoopLogger sets the logger for dispatch diagnostics.
func WithLoopLogger(l zerolog.Logger) LoopOption {
	return func(lp *Loop) {
		lp.logger = l
	}
}

// WithMaxToolHops overrides MaxToolHops. Values below 1 are ignored.
func WithMaxToolHops(n int) LoopOption {
	return func(lp *Loop) {
		if n > 0 {
			lp.maxHops = n
		}
	}
}

// Loop is one interactive chat session.
type Loop struct {
	conv     Conversation
	exec     QueryExecutor
	out      io.Writer
	errOut   io.Writer
	label    string
	tools    *tooling.Registry
	maxHops  int
	logger   zerolog.Logger
}

// NewLoop returns a Loop writing replies to out and diagnostics to errOut.
// label prefixes each reply, usually the rendered connection name.
func NewLoop(conv Conversation, exec QueryExecutor, out, errOut io.Writer, label string, opts ...LoopOption) *Loop {
	l := &Loop{
		conv:     conv,
		exec:     exec,
		out:      out,
		errOut:   errOut,
		label:    label,
		tools:    tooling.NewRegistry(tooling.QueryToolDefinition()),
		maxHops:  MaxToolHops,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run reads prompts line by line from in until EOF, "exit" or "quit", or
// until ctx is cancelled. Failed turns are reported and the loop continues.
func (l *Loop) Run(ctx context.Context, in io.Reader) error {
	br := lineReader(in)
	for {
		fmt.Fprint(l.out, "You: ")
		line, err := readLine(br)
		if err != nil {
			fmt.Fprintln(l.out)
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		prompt := strings.TrimSpace(line)
		switch prompt {
		case "":
			fmt.Fprintln(l.errOut, "Prompt cannot be empty")
			continue
		case "exit", "quit":
			return nil
		}
		if err := l.Turn(ctx, prompt); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintln(l.errOut, render.Error(err))
		}
	}
}

// Turn sends one prompt and dispatches every tool call the reply asks for,
// including calls made in reply to earlier tool results.
func (l *Loop) Turn(ctx context.Context, prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return errors.New("prompt cannot be empty")
	}
	fmt.Fprintf(l.out, "\n%s ", l.label)
	calls, err := l.conv.StreamCompletion(ctx, prompt, l.onEvent)
	fmt.Fprintln(l.out)
	if err != nil {
		return err
	}

	for hops := 0; len(calls) > 0; hops++ {
		if hops == l.maxHops {
			l.logger.Warn().Int("hops", hops).Int("pending", len(calls)).Msg("tool hop limit reached; remaining calls dropped")
			break
		}
		call := calls[0]
		calls = calls[1:]

		result := l.dispatch(ctx, call)
		fmt.Fprintf(l.out, "%s ", l.label)
		next, err := l.conv.AddToolResult(ctx, call.ID, result, l.onEvent)
		fmt.Fprintln(l.out)
		if err != nil {
			return fmt.Errorf("add tool result: %w", err)
		}
		calls = append(calls, next...)
	}

	if tc, ok := l.conv.(tokenCounter); ok {
		if n, err := tc.ContextTokens(); err == nil {
			l.logger.Debug().Int("tokens", n).Msg("context size")
		}
	}
	return nil
}

func (l *Loop) onEvent(ev domain.StreamEvent) {
	switch e := ev.(type) {
	case domain.TextEvent:
		if strings.HasPrefix(e.Text, toolCallMarker) {
			return
		}
		fmt.Fprint(l.out, e.Text)
	case domain.ToolCallEvent:
		fmt.Fprintln(l.out)
		fmt.Fprintln(l.out, render.ToolCall(e.Call))
	}
}

// dispatch runs one tool call and returns the text handed back to the model.
// Failures are reported to the model as text rather than aborting the turn.
func (l *Loop) dispatch(ctx context.Context, call domain.ToolCall) string {
	l.logger.Debug().Str("tool", call.Name).Str("id", call.ID).Msg("dispatching tool call")
	def, ok := l.tools.Find(call.Name)
	if !ok {
		return "Unknown tool: " + call.Name
	}
	switch def.Name {
	case tooling.QueryToolName:
		return l.runQuery(ctx, def, call.Arguments)
	default:
		return "Unknown tool: " + call.Name
	}
}

func (l *Loop) runQuery(ctx context.Context, def domain.ToolDefinition, arguments string) string {
	in, err := tooling.ParseQueryInput(arguments)
	if err != nil {
		return "Error: No query parameter provided"
	}
	if err := tooling.ValidateArguments(def, arguments); err != nil {
		return "Error parsing arguments: " + err.Error()
	}

	fmt.Fprintln(l.out, render.Muted("Running query: "+in.Query))
	res, err := l.exec.Results(ctx, in.Query)
	if err != nil {
		fmt.Fprintln(l.errOut, render.Error(err))
		return "Error executing query: " + err.Error()
	}
	fmt.Fprintln(l.out, render.Result(res))

	text, err := res.JSON()
	if err != nil {
		return "Error executing query: " + err.Error()
	}
	return text
}

// lineReader reuses r when it is already buffered so that successive readers
// of the same input do not lose read-ahead.
func lineReader(r io.Reader) *bufio.Reader {
	if br, ok := r.(*bufio.Reader); ok {
		return br
	}
	return bufio.NewReader(r)
}

// readLine returns the next line without its terminator. A final line without
// a newline is returned before io.EOF.
func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
