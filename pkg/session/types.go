// Package session holds the persistent conversation state keyed by thread
// identifier, enabling suspend/resume across process boundaries.
package session

import (
	"encoding/json"

	"github.com/foreman-dev/foreman/pkg/llm"
)

// Action is an immutable record of one committed operation
type Action struct {
	Name   string            `json:"name"`
	Params map[string]string `json:"params"`
}

// Session is the full orchestration state for one conversation thread.
// The invariant is that Followup is non-empty exactly while the session is
// suspended waiting for the user's next message.
type Session struct {
	ThreadID string `json:"thread_id"`

	// UserInput is the text driving the current turn
	UserInput string `json:"user_input"`

	// Messages is the append-only conversation history; insertion order is
	// the conversation order and is load-bearing for prompt construction
	Messages []llm.Message `json:"messages"`

	// Queue holds pending sub-workflow names, FIFO
	Queue []string `json:"queue"`

	// Prev is the resume target for clarifications raised at the top level,
	// or the human label of the last completed operation for suggestions
	Prev string `json:"prev,omitempty"`

	// Followup is the question last surfaced to the user, if any
	Followup string `json:"followup,omitempty"`

	// Resume identifies which state re-enters on the next inbound message
	Resume string `json:"resume,omitempty"`

	// Workflow is the suspended sub-workflow snapshot, if a suspension was
	// raised below the orchestrator
	Workflow json.RawMessage `json:"workflow,omitempty"`

	Output  string   `json:"output,omitempty"`
	Actions []Action `json:"actions"`
}

// New creates a fresh session for a thread
func New(threadID string) *Session {
	return &Session{ThreadID: threadID}
}

// Suspended reports whether the session is waiting on user input
func (s *Session) Suspended() bool {
	return s.Followup != ""
}

// Append adds messages to the conversation history
func (s *Session) Append(messages ...llm.Message) {
	s.Messages = append(s.Messages, messages...)
}
