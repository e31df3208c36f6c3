// Package workflow implements the per-operation sub-workflow pipeline:
// context resolution, guided dialogue with tool calls, and commit.
package workflow

import (
	"github.com/foreman-dev/foreman/pkg/llm"
)

// Phase identifies a state within the sub-workflow pipeline
type Phase string

const (
	PhaseContext  Phase = "context"
	PhaseDialogue Phase = "dialogue"
	PhaseCommit   Phase = "commit"
)

// State is the working state of one sub-workflow run. It is seeded from the
// parent conversation history when the orchestrator dispatches, carried
// across suspensions, and discarded once the run commits.
type State struct {
	Kind  string `json:"kind"`
	Phase Phase  `json:"phase"`

	// Messages is the sub-workflow's own conversation view
	Messages []llm.Message `json:"messages"`

	// Redirect is the phase a clarification resumes into
	Redirect Phase  `json:"redirect,omitempty"`
	Followup string `json:"followup,omitempty"`
	Finish   bool   `json:"finish"`

	// Slots holds operation-specific fields by name
	Slots map[string]string `json:"slots"`

	// Lists holds contextual value sets fetched from the store, such as
	// existing project or task names
	Lists map[string][]string `json:"lists,omitempty"`

	// Matches holds candidate resources for assignment disambiguation as
	// (first name, last name, contact) triples
	Matches [][]string `json:"matches,omitempty"`

	// ProjectID is the resolved anchor for analysis runs
	ProjectID int64 `json:"project_id,omitempty"`

	// ContextLoaded marks that a static context load already ran
	ContextLoaded bool `json:"context_loaded"`
}

// NewState seeds a fresh sub-workflow state from the parent history
func NewState(kind string, history []llm.Message) *State {
	messages := make([]llm.Message, len(history))
	copy(messages, history)

	return &State{
		Kind:     kind,
		Phase:    PhaseContext,
		Messages: messages,
		Slots:    map[string]string{},
		Lists:    map[string][]string{},
	}
}

// Slot returns the current value of a named slot
func (s *State) Slot(name string) string {
	return s.Slots[name]
}

// SetSlot overwrites a named slot
func (s *State) SetSlot(name, value string) {
	s.Slots[name] = value
}

// List returns a named contextual value set
func (s *State) List(name string) []string {
	return s.Lists[name]
}

// SetList stores a named contextual value set
func (s *State) SetList(name string, values []string) {
	s.Lists[name] = values
}

// HasListed reports whether value is present in the named list
func (s *State) HasListed(name, value string) bool {
	for _, v := range s.Lists[name] {
		if v == value {
			return true
		}
	}
	return false
}

// prefer returns the explicit tool argument when supplied, falling back to
// the current slot value
func prefer(explicit, current string) string {
	if explicit != "" {
		return explicit
	}
	return current
}

// invalidValues returns all values absent from existing
func invalidValues(values, existing []string) []string {
	var invalid []string
	for _, v := range values {
		found := false
		for _, e := range existing {
			if v == e {
				found = true
				break
			}
		}
		if !found {
			invalid = append(invalid, v)
		}
	}
	return invalid
}
