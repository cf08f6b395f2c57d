package domain

import (
	"bytes"
	"encoding/json"
)

// =============================================================================
// Core Configuration
// =============================================================================

type Config struct {
	Workspaces    []Workspace `yaml:"workspaces"`
	AI            AIConfig    `yaml:"ai"`
	Log           LogConfig   `yaml:"log"`
	Retry         RetryConfig `yaml:"retry"`
	TranscriptDir string      `yaml:"transcript_dir,omitempty"` // When set, every session writes a JSONL transcript here
}

// AIConfig selects the inference provider used by chat sessions.
type AIConfig struct {
	Provider  string `yaml:"provider"` // "ollama" | "openai" | "openrouter" | "gemini" | "local"
	Model     string `yaml:"model"`
	URL       string `yaml:"url"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"` // Name of the environment variable holding the API key
}

type LogConfig struct {
	Level  string `yaml:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `yaml:"format"` // "json" | "text"
}

// RetryConfig controls retry behaviour of the session loop when it connects to a database.
type RetryConfig struct {
	MaxRetries     int `yaml:"max_retries"`        // Maximum retry attempts (0 = no retries)
	InitialBackoff int `yaml:"initial_backoff_ms"` // Initial backoff in milliseconds
	MaxBackoff     int `yaml:"max_backoff_ms"`     // Maximum backoff in milliseconds
	Multiplier     int `yaml:"multiplier"`         // Backoff multiplier (e.g. 2 for exponential doubling)
}

type Workspace struct {
	Name        string       `yaml:"name"`
	Connections []Connection `yaml:"connections"`
}

type Connection struct {
	Name  string `yaml:"name"`
	Color string `yaml:"color,omitempty"`
	URL   string `yaml:"url"`
}

// ConnectionChoice is a connection flattened with its workspace for selection menus.
type ConnectionChoice struct {
	Workspace  string
	Connection Connection
}

// DisplayName renders the choice as "[workspace] connection".
func (c ConnectionChoice) DisplayName() string {
	return "[" + c.Workspace + "] " + c.Connection.Name
}

// Connections flattens every workspace connection in configuration order.
func (c *Config) Connections() []ConnectionChoice {
	if c == nil {
		return nil
	}
	var out []ConnectionChoice
	for _, ws := range c.Workspaces {
		for _, conn := range ws.Connections {
			out = append(out, ConnectionChoice{Workspace: ws.Name, Connection: conn})
		}
	}
	return out
}

// =============================================================================
// Conversation Protocol
// =============================================================================

type Role string

const (
	RoleSystem     Role = "system"
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolResult Role = "tool"
)

// Turn is one role-tagged message of a conversation. Content is what the model
// sees; ToolCallID and ToolCalls are side metadata for wire formats that need
// them and never alter Content.
type Turn struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// toolResultPayload is the wire shape of a tool turn's content. Field order matters.
type toolResultPayload struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
}

// NewToolResultTurn serializes {"tool_call_id", "content"} into a tool turn.
// HTML escaping is disabled so SQL operators reach the model verbatim.
func NewToolResultTurn(toolCallID, result string) Turn {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding two strings cannot fail.
	_ = enc.Encode(toolResultPayload{ToolCallID: toolCallID, Content: result})
	return Turn{
		Role:       RoleToolResult,
		Content:    string(bytes.TrimRight(buf.Bytes(), "\n")),
		ToolCallID: toolCallID,
	}
}

// ParseToolResultContent extracts the id and result text from a tool turn's content.
func ParseToolResultContent(content string) (toolCallID, result string, err error) {
	var p toolResultPayload
	if err := json.Unmarshal([]byte(content), &p); err != nil {
		return "", "", err
	}
	return p.ToolCallID, p.Content, nil
}

// =============================================================================
// Tooling
// =============================================================================

// ToolDefinition describes a callable capability offered to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCall is a model request to invoke a tool. Arguments is raw JSON text and
// is not validated by the conversation engine.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type ToolChoice string

const (
	ToolChoiceNone ToolChoice = "none"
	ToolChoiceAuto ToolChoice = "auto"
)

// =============================================================================
// Stream Events
// =============================================================================

type EventKind string

const (
	EventText     EventKind = "text"
	EventToolCall EventKind = "tool_call"
)

// StreamEvent is one incremental unit of a streamed reply: TextEvent or ToolCallEvent.
type StreamEvent interface {
	Kind() EventKind
}

type TextEvent struct {
	Text string
}

func (TextEvent) Kind() EventKind { return EventText }

type ToolCallEvent struct {
	Call ToolCall
}

func (ToolCallEvent) Kind() EventKind { return EventToolCall }

// =============================================================================
// Inference Wire Model
// =============================================================================

// ChatRequest is what the conversation engine hands to an InferenceProvider.
type ChatRequest struct {
	Turns      []Turn
	Tools      []ToolDefinition
	ToolChoice ToolChoice
}

// ChatChunk is one incremental response unit. Consumers read Choices[0] only.
type ChatChunk struct {
	Choices []ChunkChoice
}

type ChunkChoice struct {
	Delta        ChunkDelta
	FinishReason string
}

// ChunkDelta carries an optional text fragment and tool-call deltas.
// Consumers read ToolCalls[0] only.
type ChunkDelta struct {
	Content   *string
	ToolCalls []ToolCallDelta
}

type ToolCallDelta struct {
	ID        string
	Name      string
	Arguments string
}

// =============================================================================
// Relational Results
// =============================================================================

// ColumnDescriptor is one result column: its name and the source type tag.
type ColumnDescriptor struct {
	Name string `json:"name"`
	Type string `json:"type"`
}
