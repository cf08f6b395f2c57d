// Package session persists chat transcripts as JSONL files.
package session

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"peek/internal/domain"
)

// writeFunc is used to write content so tests can inject a failing implementation.
type writeFunc func(f *os.File, data []byte) (int, error)

// marshalFunc is the JSON marshaling function; tests may replace it to force errors.
type marshalFunc func(v any) ([]byte, error)

// now is the clock used for entry timestamps and file names.
var now = time.Now

// entry is one line of a transcript file.
type entry struct {
	SessionID string      `json:"session_id"`
	At        time.Time   `json:"at"`
	Turn      domain.Turn `json:"turn"`
}

// Transcript appends conversation turns to a JSONL file, one JSON object per
// line, and reads back the most recent ones.
type Transcript struct {
	mu        sync.Mutex
	path      string
	id        string
	writeFn   writeFunc   // nil means use f.Write
	marshalFn marshalFunc // nil means use json.Marshal
}

// NewTranscript creates dir if needed and returns a transcript writing to a
// fresh file named after the current time and a random session id.
func NewTranscript(dir string) (*Transcript, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("transcript dir: %w", err)
	}
	id := uuid.NewString()
	name := now().UTC().Format("20060102T150405") + "-" + id[:8] + ".jsonl"
	return &Transcript{path: filepath.Join(dir, name), id: id}, nil
}

// OpenTranscript returns a transcript appending to an existing or new file at path.
func OpenTranscript(path string) *Transcript {
	return &Transcript{path: path, id: uuid.NewString()}
}

// Path reports the file the transcript writes to.
func (t *Transcript) Path() string { return t.path }

// SessionID reports the id stamped on every entry.
func (t *Transcript) SessionID() string { return t.id }

// Append serializes turn with a timestamp and appends it as a single line.
func (t *Transcript) Append(turn domain.Turn) error {
	marshal := json.Marshal
	if t.marshalFn != nil {
		marshal = t.marshalFn
	}
	data, err := marshal(entry{SessionID: t.id, At: now().UTC(), Turn: turn})
	if err != nil {
		return err
	}
	data = append(data, '\n')

	t.mu.Lock()
	defer t.mu.Unlock()
	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	var writeErr error
	if t.writeFn != nil {
		_, writeErr = t.writeFn(f, data)
	} else {
		_, writeErr = f.Write(data)
	}
	closeErr := f.Close()
	if writeErr != nil {
		return writeErr
	}
	return closeErr
}

// Load reads the last n turns. Returns an empty slice when the file does not
// exist or n <= 0. Corrupt lines are skipped.
func (t *Transcript) Load(n int) ([]domain.Turn, error) {
	if n <= 0 {
		return nil, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	f, err := os.Open(t.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)
	var lines [][]byte
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		lines = append(lines, append([]byte(nil), line...))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	turns := make([]domain.Turn, 0, len(lines))
	for _, line := range lines {
		var e entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		turns = append(turns, e.Turn)
	}
	return turns, nil
}

// Ensure Transcript implements domain.TranscriptStore.
var _ domain.TranscriptStore = (*Transcript)(nil)
