package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	"peek/internal/domain"
)

var (
	dataPrefix = []byte("data:")
	doneMarker = []byte("[DONE]")
)

// maxEventSize bounds one SSE data line.
const maxEventSize = 1 << 20

// sseStream turns an OpenAI-style event stream into chunks. Tool-call
// arguments arrive as fragments spread over many events; they are assembled
// per index and surfaced as one complete delta once the call is finished: a
// new index starts, a finish_reason arrives, or the stream ends.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	queue   []domain.ChatChunk
	pending *pendingCall
	done    bool
}

type pendingCall struct {
	index int
	id    string
	name  string
	args  bytes.Buffer
}

func newSSEStream(body io.ReadCloser) *sseStream {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	return &sseStream{body: body, scanner: sc}
}

// Next implements domain.ChatStream.
func (s *sseStream) Next(ctx context.Context) (domain.ChatChunk, error) {
	for {
		if len(s.queue) > 0 {
			c := s.queue[0]
			s.queue = s.queue[1:]
			return c, nil
		}
		if s.done {
			return domain.ChatChunk{}, io.EOF
		}
		if err := ctx.Err(); err != nil {
			return domain.ChatChunk{}, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return domain.ChatChunk{}, fmt.Errorf("read stream: %w", err)
			}
			s.finish("")
			continue
		}
		line := bytes.TrimSpace(s.scanner.Bytes())
		if !bytes.HasPrefix(line, dataPrefix) {
			continue
		}
		data := bytes.TrimSpace(bytes.TrimPrefix(line, dataPrefix))
		if bytes.Equal(data, doneMarker) {
			s.finish("")
			continue
		}
		if err := s.handle(data); err != nil {
			return domain.ChatChunk{}, err
		}
	}
}

// Close implements domain.ChatStream.
func (s *sseStream) Close() error {
	return s.body.Close()
}

func (s *sseStream) handle(data []byte) error {
	var chunk openAIChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return fmt.Errorf("decode stream event: %w", err)
	}
	if len(chunk.Choices) == 0 {
		return nil
	}
	choice := chunk.Choices[0]

	for i, tc := range choice.Delta.ToolCalls {
		index := i
		if tc.Index != nil {
			index = *tc.Index
		}
		if s.pending != nil && s.pending.index != index {
			s.flush("")
		}
		if s.pending == nil {
			s.pending = &pendingCall{index: index}
		}
		if tc.ID != "" {
			s.pending.id = tc.ID
		}
		if tc.Function.Name != "" {
			s.pending.name = tc.Function.Name
		}
		s.pending.args.WriteString(tc.Function.Arguments)
	}

	if c := choice.Delta.Content; c != nil && *c != "" {
		text := *c
		s.queue = append(s.queue, domain.ChatChunk{Choices: []domain.ChunkChoice{{
			Delta: domain.ChunkDelta{Content: &text},
		}}})
	}

	if choice.FinishReason != nil && *choice.FinishReason != "" {
		s.finish(*choice.FinishReason)
	}
	return nil
}

// finish flushes any pending call and, at end of stream, marks the stream done.
func (s *sseStream) finish(reason string) {
	if s.pending != nil {
		s.flush(reason)
	}
	if reason == "" {
		s.done = true
	}
}

func (s *sseStream) flush(reason string) {
	p := s.pending
	s.pending = nil
	id := p.id
	if id == "" {
		id = "call_" + uuid.NewString()
	}
	args := p.args.String()
	if args == "" {
		args = "{}"
	}
	s.queue = append(s.queue, domain.ChatChunk{Choices: []domain.ChunkChoice{{
		Delta:        domain.ChunkDelta{ToolCalls: []domain.ToolCallDelta{{ID: id, Name: p.name, Arguments: args}}},
		FinishReason: reason,
	}}})
}
